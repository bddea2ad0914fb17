package auth

import (
	"fmt"
	"time"

	"trinetra/pkg/types"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwt"
)

const issuer = "trinetra"

// Claims is the identity carried by an operator session token.
type Claims struct {
	UserID      string
	Username    string
	Email       string
	Role        types.Role
	Permissions types.Permissions
	ExpiresAt   time.Time
}

// Tokens issues and verifies HS256 session tokens.
type Tokens struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Tokens{key: []byte(secret), ttl: ttl, now: time.Now}
}

func (t *Tokens) Issue(u *types.User) (string, error) {
	now := t.now()

	perms := make(map[string]bool, len(u.Permissions))
	for k, v := range u.Permissions {
		perms[k] = v
	}

	token, err := jwt.NewBuilder().
		Issuer(issuer).
		Subject(u.ID).
		IssuedAt(now).
		Expiration(now.Add(t.ttl)).
		Claim("userId", u.ID).
		Claim("username", u.Username).
		Claim("email", u.Email).
		Claim("role", string(u.Role)).
		Claim("permissions", perms).
		Build()
	if err != nil {
		return "", fmt.Errorf("build token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256(), t.key))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return string(signed), nil
}

func (t *Tokens) Parse(raw string) (*Claims, error) {
	token, err := jwt.Parse(
		[]byte(raw),
		jwt.WithKey(jwa.HS256(), t.key),
		jwt.WithValidate(true),
		jwt.WithIssuer(issuer),
		jwt.WithClock(jwt.ClockFunc(t.now)),
	)
	if err != nil {
		return nil, types.Unauthorized("Invalid or expired session.")
	}

	// Use Subject() for the standard "sub" claim
	userID, ok := token.Subject()
	if !ok || userID == "" {
		return nil, types.Unauthorized("Session is missing a subject.")
	}

	claims := &Claims{UserID: userID}
	if exp, ok := token.Expiration(); ok {
		claims.ExpiresAt = exp
	}

	// Use Get() for private claims
	_ = token.Get("username", &claims.Username)
	_ = token.Get("email", &claims.Email)

	var role string
	if err := token.Get("role", &role); err == nil {
		claims.Role = types.Role(role)
	}

	var perms map[string]any
	if err := token.Get("permissions", &perms); err == nil {
		claims.Permissions = make(types.Permissions, len(perms))
		for k, v := range perms {
			if b, ok := v.(bool); ok {
				claims.Permissions[k] = b
			}
		}
	}

	return claims, nil
}
