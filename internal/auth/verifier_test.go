package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mealtrack/internal/config"
	"mealtrack/internal/types"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestVerifier(t *testing.T) *JWTVerifier {
	t.Helper()
	v, err := NewJWTVerifier(config.AuthConfig{
		JWTSecret:   config.SecretString(testSecret),
		JWTAudience: "authenticated",
	})
	require.NoError(t, err)
	return v
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestJWTVerifier_ValidToken(t *testing.T) {
	v := newTestVerifier(t)

	token := signToken(t, testSecret, jwt.MapClaims{
		"sub": "user-42",
		"aud": "authenticated",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	userID, err := v.ResolveToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", userID)
}

func TestJWTVerifier_ExpiredToken(t *testing.T) {
	v := newTestVerifier(t)

	token := signToken(t, testSecret, jwt.MapClaims{
		"sub": "user-42",
		"aud": "authenticated",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	_, err := v.ResolveToken(context.Background(), token)
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeAuthTokenExpired, appErr.Code)
}

func TestJWTVerifier_WrongSecret(t *testing.T) {
	v := newTestVerifier(t)

	token := signToken(t, "another-secret-another-secret-xx", jwt.MapClaims{
		"sub": "user-42",
		"aud": "authenticated",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	_, err := v.ResolveToken(context.Background(), token)
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeAuthTokenInvalid, appErr.Code)
}

func TestJWTVerifier_WrongAudience(t *testing.T) {
	v := newTestVerifier(t)

	token := signToken(t, testSecret, jwt.MapClaims{
		"sub": "user-42",
		"aud": "anon",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	_, err := v.ResolveToken(context.Background(), token)
	require.Error(t, err)
}

func TestJWTVerifier_MissingSubject(t *testing.T) {
	v := newTestVerifier(t)

	token := signToken(t, testSecret, jwt.MapClaims{
		"aud": "authenticated",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	_, err := v.ResolveToken(context.Background(), token)
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeAuthTokenInvalid, appErr.Code)
}

func TestJWTVerifier_RejectsUnsignedAlg(t *testing.T) {
	v := newTestVerifier(t)

	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "user-42",
		"aud": "authenticated",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = v.ResolveToken(context.Background(), signed)
	require.Error(t, err)
}

func TestNewJWTVerifier_RequiresSecret(t *testing.T) {
	_, err := NewJWTVerifier(config.AuthConfig{})
	require.Error(t, err)
}
