// Package auth verifies bearer tokens issued by the identity provider.
// Tokens are Supabase-style HS256 JWTs signed with a shared secret; the
// verifier validates signature, expiry, and audience, and extracts the
// subject as the user ID.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"mealtrack/internal/config"
	"mealtrack/internal/core"
	"mealtrack/internal/types"
)

// defaultLeeway tolerates small clock skew between the token issuer and
// this service when validating exp/nbf claims.
const defaultLeeway = 30 * time.Second

// JWTVerifier validates HS256 JWT access tokens using the shared signing
// secret. It implements core.Authenticator.
type JWTVerifier struct {
	secret   []byte
	audience string
	parser   *jwt.Parser
}

// NewJWTVerifier builds a verifier from the auth configuration.
func NewJWTVerifier(cfg config.AuthConfig) (*JWTVerifier, error) {
	secret := cfg.JWTSecret.Unmask()
	if secret == "" {
		return nil, errors.New("JWT secret must be set")
	}

	opts := []jwt.ParserOption{
		jwt.WithLeeway(defaultLeeway),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
	}
	if cfg.JWTAudience != "" {
		opts = append(opts, jwt.WithAudience(cfg.JWTAudience))
	}

	return &JWTVerifier{
		secret:   []byte(secret),
		audience: cfg.JWTAudience,
		parser:   jwt.NewParser(opts...),
	}, nil
}

// ResolveToken parses and validates a bearer token and returns the subject
// claim as the user ID. All failures map to auth_* error codes; the
// underlying parse error is preserved for logging but never sent to clients.
func (v *JWTVerifier) ResolveToken(_ context.Context, token string) (string, error) {
	parsed, err := v.parser.Parse(token, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", types.NewAppError(types.ErrCodeAuthTokenExpired, "token has expired", err)
		}
		return "", types.NewAppError(types.ErrCodeAuthTokenInvalid, "token verification failed", err)
	}
	if !parsed.Valid {
		return "", types.NewAppError(types.ErrCodeAuthTokenInvalid, "token is not valid", nil)
	}

	subject, err := parsed.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", types.NewAppError(types.ErrCodeAuthTokenInvalid, "token is missing a subject claim", err)
	}

	return subject, nil
}

// Compile-time interface compliance check.
var _ core.Authenticator = (*JWTVerifier)(nil)
