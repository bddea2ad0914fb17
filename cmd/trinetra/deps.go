package main

import (
	"context"
	"fmt"
	"strings"

	"trinetra/internal/auth"
	"trinetra/internal/db"
	"trinetra/internal/geo"
	"trinetra/internal/metrics"
	"trinetra/internal/notify"
	"trinetra/internal/report"
	"trinetra/internal/storage"
	"trinetra/internal/store"
	"trinetra/internal/store/memstore"
	"trinetra/internal/verification"
	"trinetra/pkg/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// repositories is the persistence behind the services, either Postgres or
// the in-memory store.
type repositories struct {
	links   verification.LinkRepository
	avf     verification.AVFRepository
	bgv     verification.BGVRepository
	reports verification.ReportRepository
	users   auth.UserRepository

	// pool is nil for the in-memory store.
	pool  *pgxpool.Pool
	close func()
}

func openRepositories(ctx context.Context, config *types.Config, memory bool, logger *logrus.Logger) (*repositories, error) {
	if memory {
		logger.Warn("using the in-memory store, data is lost on exit")
		mem := memstore.New()
		return &repositories{
			links:   mem,
			avf:     mem,
			bgv:     mem,
			reports: mem,
			users:   mem,
			close:   func() {},
		}, nil
	}

	if config.DatabaseURL == "" {
		return nil, fmt.Errorf("set DATABASE_URL or pass --memory")
	}

	pool, err := db.Connect(ctx, config)
	if err != nil {
		return nil, err
	}

	return &repositories{
		links:   store.NewFormLinkRepository(pool),
		avf:     store.NewAVFResponseRepository(pool),
		bgv:     store.NewBGVFormRepository(pool),
		reports: store.NewReportRepository(pool),
		users:   store.NewUserRepository(pool),
		pool:    pool,
		close:   pool.Close,
	}, nil
}

// awsConfig loads the AWS configuration once, and only for the drivers that
// need it.
type awsConfig struct {
	cfg    *aws.Config
	loaded bool
}

func (a *awsConfig) get(ctx context.Context) (aws.Config, error) {
	if a.loaded {
		return *a.cfg, nil
	}
	cfg, err := loadAWSConfig(ctx)
	if err != nil {
		return aws.Config{}, err
	}
	a.cfg, a.loaded = &cfg, true
	return cfg, nil
}

func openFiles(ctx context.Context, config *types.Config, awsCfg *awsConfig) (storage.Store, error) {
	switch strings.ToLower(config.StorageDriver) {
	case "", "local":
		return storage.NewLocalStore(config.StorageDir, strings.TrimSuffix(config.PublicBaseURL, "/")+"/files")
	case "s3":
		if config.S3BucketName == "" {
			return nil, fmt.Errorf("set S3_BUCKET_NAME for the s3 storage driver")
		}
		cfg, err := awsCfg.get(ctx)
		if err != nil {
			return nil, err
		}
		return storage.NewS3Store(s3.NewFromConfig(cfg), config.S3BucketName, cfg.Region, ""), nil
	case "supabase":
		if config.SupabaseURL == "" || config.SupabaseKey == "" {
			return nil, fmt.Errorf("set SUPABASE_URL and SUPABASE_SERVICE_KEY for the supabase storage driver")
		}
		return storage.NewSupabaseStore(config.SupabaseURL, config.SupabaseKey, config.SupabaseBucket), nil
	}

	return nil, fmt.Errorf("unknown storage driver %q", config.StorageDriver)
}

func openGeocodeCache(ctx context.Context, config *types.Config, logger *logrus.Logger) (geo.Cache, func(), error) {
	if config.RedisURL == "" {
		return geo.NewMemoryCache(config.GeocodeCacheTTL()), func() {}, nil
	}

	client, err := geo.NewRedisClient(ctx, config.RedisURL)
	if err != nil {
		return nil, nil, err
	}

	logger.Info("geocode cache backed by redis")
	return geo.NewRedisCache(client, config.GeocodeCacheTTL()), func() { _ = client.Close() }, nil
}

func openNotifier(config *types.Config, logger *logrus.Logger) (notify.Notifier, error) {
	if config.NATSURL == "" {
		return notify.Nop{}, nil
	}
	return notify.NewNATSNotifier(config.NATSURL, logger)
}

func openMailer(ctx context.Context, config *types.Config, awsCfg *awsConfig, logger *logrus.Logger) (auth.Mailer, error) {
	switch strings.ToLower(config.MailDriver) {
	case "", "log":
		return auth.NewLogMailer(logger), nil
	case "ses":
		cfg, err := awsCfg.get(ctx)
		if err != nil {
			return nil, err
		}
		return auth.NewSESMailer(sesv2.NewFromConfig(cfg), config.MailFrom), nil
	}

	return nil, fmt.Errorf("unknown mail driver %q", config.MailDriver)
}

func newAuthService(config *types.Config, repos *repositories, mailer auth.Mailer, logger *logrus.Logger) (*auth.Service, error) {
	if config.JWTSecret == "" {
		return nil, fmt.Errorf("set JWT_SECRET")
	}
	tokens := auth.NewTokens(config.JWTSecret, config.TokenTTL())
	return auth.NewService(repos.users, tokens, mailer, config.OTPTTL(), logger), nil
}

type verificationOptions struct {
	geocoder geo.Geocoder
	files    storage.Store
	notifier notify.Notifier
	metrics  *metrics.Metrics
}

func newVerificationService(config *types.Config, repos *repositories, opts verificationOptions, logger *logrus.Logger) *verification.Service {
	renderer := report.NewGuarded(report.NewPDFRenderer(config.ReportOrganization), config.RenderTimeout(), logger)

	return verification.New(verification.Deps{
		Logger:     logger,
		Links:      repos.links,
		AVF:        repos.avf,
		BGV:        repos.bgv,
		Reports:    repos.reports,
		Geocoder:   opts.geocoder,
		Policy:     geo.NewPolicy(config.MaxDistanceMeters),
		MapsAPIKey: config.MapsAPIKey,
		Renderer:   renderer,
		Files:      opts.files,
		Notifier:   opts.notifier,
		Metrics:    opts.metrics,
		DraftTTL:   config.DraftTTL(),
	})
}
