package core

import (
	"net/http"
	"strings"

	"mealtrack/internal/types"
)

// AuthMiddleware resolves the Authorization bearer token to a user ID and
// stores it in the request context. It is applied to the /v1 route group;
// webhook and health routes are mounted outside it.
//
// Failures are returned as structured 401 responses without reaching the
// handlers.
func (s *Server) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Authenticator == nil {
			Error(w, r, types.NewAppError(
				types.ErrCodeInternalUnexpected,
				"authenticator is not configured",
				nil,
			))
			return
		}

		token, err := bearerToken(r)
		if err != nil {
			Error(w, r, err)
			return
		}

		userID, err := s.Authenticator.ResolveToken(r.Context(), token)
		if err != nil {
			Error(w, r, err)
			return
		}

		ctx := types.WithUserID(r.Context(), userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", types.NewAppError(
			types.ErrCodeAuthTokenMissing,
			"missing Authorization header",
			nil,
		)
	}

	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", types.NewAppError(
			types.ErrCodeAuthTokenInvalid,
			"Authorization header must use the Bearer scheme",
			nil,
		)
	}

	token := strings.TrimSpace(header[len(prefix):])
	if token == "" {
		return "", types.NewAppError(
			types.ErrCodeAuthTokenMissing,
			"empty bearer token",
			nil,
		)
	}

	return token, nil
}
