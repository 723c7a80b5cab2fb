package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/pizza-nz/shiftreport-service/internal/api"
	"github.com/pizza-nz/shiftreport-service/internal/models"
)

// contextKey is a type for context keys
type contextKey string

const UserKey contextKey = "user"

// TokenResolver turns a bearer token into the user it was issued to.
// service.AuthService implements it.
type TokenResolver interface {
	GetUserFromToken(ctx context.Context, token string) (*models.User, error)
}

// BearerToken extracts the token from an Authorization header
func BearerToken(r *http.Request) (string, bool) {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// Auth middleware for authenticating requests
func Auth(resolver TokenResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				api.Unauthorized(w, "authorization header required")
				return
			}

			user, err := resolver.GetUserFromToken(r.Context(), token)
			if err != nil {
				api.Error(w, r, err)
				return
			}

			if user.Status == models.UserStatusInactive {
				log.Debug().Str("user_id", user.ID.String()).Msg("inactive user rejected")
				api.Unauthorized(w, "account is inactive")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// WithUser stores the authenticated user in ctx
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, UserKey, user)
}

// GetUser returns the authenticated user
func GetUser(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(UserKey).(*models.User)
	return user, ok && user != nil
}
