package core

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mealtrack/internal/config"
	"mealtrack/internal/types"
)

type staticAuthenticator struct {
	userID string
	err    error
}

func (a *staticAuthenticator) ResolveToken(_ context.Context, _ string) (string, error) {
	return a.userID, a.err
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	srv, err := NewServer(&config.Config{}, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	return srv
}

func TestAuthMiddleware_ResolvesUser(t *testing.T) {
	srv := newTestServer(t)
	srv.Authenticator = &staticAuthenticator{userID: "user-1"}

	var gotUserID string
	handler := srv.AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID, _ = types.GetUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/meals", nil)
	req.Header.Set("Authorization", "Bearer token-abc")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", gotUserID)
}

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	srv := newTestServer(t)
	srv.Authenticator = &staticAuthenticator{userID: "user-1"}

	handler := srv.AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/meals", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "auth_token_missing")
}

func TestAuthMiddleware_WrongScheme(t *testing.T) {
	srv := newTestServer(t)
	srv.Authenticator = &staticAuthenticator{userID: "user-1"}

	handler := srv.AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/meals", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "auth_token_invalid")
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	srv := newTestServer(t)
	srv.Authenticator = &staticAuthenticator{
		err: types.NewAppError(types.ErrCodeAuthTokenExpired, "token expired", nil),
	}

	handler := srv.AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/meals", nil)
	req.Header.Set("Authorization", "Bearer expired")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "auth_token_expired")
}
