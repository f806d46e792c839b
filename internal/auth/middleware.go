package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/sungwon/newsletter/internal/logger"
	"github.com/sungwon/newsletter/internal/metrics"
	"github.com/sungwon/newsletter/internal/storage"
)

type contextKey string

const (
	userIDKey   contextKey = "user_id"
	usernameKey contextKey = "username"
)

// UserFromContext retrieves the authenticated user ID from the request
// context. Returns uuid.Nil if no user is set.
func UserFromContext(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(userIDKey).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

// UsernameFromContext retrieves the authenticated username from the request
// context. Returns an empty string if no user is set.
func UsernameFromContext(ctx context.Context) string {
	if name, ok := ctx.Value(usernameKey).(string); ok {
		return name
	}
	return ""
}

// WithUser stores the authenticated user in ctx.
func WithUser(ctx context.Context, userID uuid.UUID, username string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, usernameKey, username)
}

// APIKeyLookup is the subset of storage.Querier needed to resolve API keys.
type APIKeyLookup interface {
	GetUserByAPIKey(ctx context.Context, apiKey string) (storage.User, error)
}

// BearerAuth returns an HTTP middleware that accepts EITHER a JWT access
// token OR an API key in the Authorization header. Tokens containing dots
// are validated as JWTs; anything else is looked up as an API key.
func BearerAuth(jwtService *JWTService, keys APIKeyLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := logger.FromContext(r.Context())

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				unauthorized(w, "authorization header required")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				unauthorized(w, "invalid authorization format, expected Bearer <token>")
				return
			}

			token := parts[1]
			if token == "" {
				unauthorized(w, "empty token")
				return
			}

			if strings.Contains(token, ".") {
				claims, err := jwtService.ValidateAccessToken(token)
				if err != nil {
					log.Debug().Err(err).Msg("rejected access token")
					unauthorized(w, "invalid or expired token")
					return
				}
				userID, err := uuid.Parse(claims.Subject)
				if err != nil {
					unauthorized(w, "invalid token claims")
					return
				}
				next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), userID, claims.Username)))
				return
			}

			user, err := keys.GetUserByAPIKey(r.Context(), token)
			if err != nil {
				unauthorized(w, "invalid credentials")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user.UserID, user.Username)))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	metrics.APIAuthFailuresTotal.Inc()
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="publish"`)
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}
