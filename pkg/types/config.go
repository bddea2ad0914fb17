package types

import "time"

type Config struct {
	Environment     string `envconfig:"ENVIRONMENT" default:"development"`
	ServerPort      uint   `envconfig:"SERVER_PORT" default:"8080"`
	DatabaseURL     string `envconfig:"DATABASE_URL"`
	DatabaseSchema  string `envconfig:"DATABASE_SCHEMA" default:"trinetra"`
	ReadTimeoutSec  uint   `envconfig:"READ_TIMEOUT_SEC" default:"10"`
	WriteTimeoutSec uint   `envconfig:"WRITE_TIMEOUT_SEC" default:"60"`
	MaxUploadMB     int64  `envconfig:"MAX_UPLOAD_MB" default:"32"`

	// Geodistance gate
	MapsAPIKey         string  `envconfig:"MAPS_API_KEY"`
	MaxDistanceMeters  float64 `envconfig:"MAX_DISTANCE_METERS" default:"10000"`
	UpstreamTimeoutSec uint    `envconfig:"UPSTREAM_TIMEOUT_SEC" default:"10"`
	GeocodeCacheTTLMin uint    `envconfig:"GEOCODE_CACHE_TTL_MIN" default:"1440"`

	// Form lifecycle
	DraftTTLHours      uint   `envconfig:"DRAFT_TTL_HOURS" default:"48"`
	ExpirySweepMinutes uint   `envconfig:"EXPIRY_SWEEP_MINUTES" default:"15"` // 0 disables the sweeper
	RenderTimeoutSec   uint   `envconfig:"RENDER_TIMEOUT_SEC" default:"30"`
	ReportOrganization string `envconfig:"REPORT_ORGANIZATION" default:"Trinetra Verification"`

	// Operator auth
	JWTSecret     string `envconfig:"JWT_SECRET"`
	TokenTTLHours uint   `envconfig:"TOKEN_TTL_HOURS" default:"24"`
	OTPTTLMinutes uint   `envconfig:"OTP_TTL_MINUTES" default:"5"`

	// Auth Configuration
	CookieName       string `envconfig:"SESSION_COOKIE_NAME" default:"trinetra_session"`
	SessionMaxAgeSec int    `envconfig:"SESSION_MAX_AGE_SEC" default:"86400"` // 1 day

	// Cookie encryption keys (base64 encoded)
	// openssl rand -base64 32
	// to generate values
	CookieHashKey  string `envconfig:"COOKIE_HASH_KEY"`  // 32 or 64 bytes
	CookieBlockKey string `envconfig:"COOKIE_BLOCK_KEY"` // 16, 24, or 32 bytes

	// File storage
	StorageDriver  string `envconfig:"STORAGE_DRIVER" default:"local"` // local, s3, supabase
	StorageDir     string `envconfig:"STORAGE_DIR" default:"public"`
	PublicBaseURL  string `envconfig:"PUBLIC_BASE_URL" default:"http://localhost:8080"`
	S3BucketName   string `envconfig:"S3_BUCKET_NAME"`
	SupabaseURL    string `envconfig:"SUPABASE_URL"`
	SupabaseKey    string `envconfig:"SUPABASE_SERVICE_KEY"`
	SupabaseBucket string `envconfig:"SUPABASE_BUCKET" default:"trinetra"`

	// Optional infrastructure
	RedisURL   string `envconfig:"REDIS_URL"`
	NATSURL    string `envconfig:"NATS_URL"`
	MailDriver string `envconfig:"MAIL_DRIVER" default:"log"` // log, ses
	MailFrom   string `envconfig:"MAIL_FROM" default:"no-reply@trinetra.local"`
}

func (c *Config) UpstreamTimeout() time.Duration {
	return time.Duration(c.UpstreamTimeoutSec) * time.Second
}

func (c *Config) RenderTimeout() time.Duration {
	return time.Duration(c.RenderTimeoutSec) * time.Second
}

func (c *Config) DraftTTL() time.Duration {
	return time.Duration(c.DraftTTLHours) * time.Hour
}

func (c *Config) ExpirySweep() time.Duration {
	return time.Duration(c.ExpirySweepMinutes) * time.Minute
}

func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLHours) * time.Hour
}

func (c *Config) OTPTTL() time.Duration {
	return time.Duration(c.OTPTTLMinutes) * time.Minute
}

func (c *Config) GeocodeCacheTTL() time.Duration {
	return time.Duration(c.GeocodeCacheTTLMin) * time.Minute
}

func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}
