package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"memory-map-backend/internal/models"

	"github.com/rs/zerolog/log"
)

type contextKey string

const userIDKey contextKey = "user_id"

// SessionCookie is the cookie carrying the session token for browser clients
const SessionCookie = "session"

// Authenticator resolves a session token to a user id
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (string, error)
}

// AuthMiddleware creates a middleware for JWT authentication. The token is
// taken from a Bearer authorization header or the session cookie.
func AuthMiddleware(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := auth.Authenticate(r.Context(), TokenFromRequest(r))
			if err != nil {
				if errors.Is(err, models.ErrUnauthenticated) {
					respondError(w, models.ErrUnauthenticated.Error(), http.StatusUnauthorized)
					return
				}
				log.Error().Err(err).Msg("Failed to authenticate request")
				respondError(w, "internal server error", http.StatusInternalServerError)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// TokenFromRequest returns the session token of a request, or ""
func TokenFromRequest(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// WithUserID stores an authenticated user id in a context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserID extracts user ID from context
func GetUserID(ctx context.Context) string {
	userID, ok := ctx.Value(userIDKey).(string)
	if !ok {
		return ""
	}
	return userID
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
