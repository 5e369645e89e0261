package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/pmoura/go-recipe-api/internal/api"
	"github.com/pmoura/go-recipe-api/internal/types"
)

// Typed context key for the resolved caller identity.
type contextKey string

const userKey contextKey = "authenticatedUser"

const (
	tokenCacheTTL     = 5 * time.Minute
	tokenCacheCleanup = 10 * time.Minute
)

// NewTokenCache builds the cache used by Authenticate to avoid a database
// lookup on every request.
func NewTokenCache() *gocache.Cache {
	return gocache.New(tokenCacheTTL, tokenCacheCleanup)
}

// Authenticate validates the opaque bearer token from the Authorization
// header and places the resolved user in the request context. All
// failures yield a generic 401 before any resource handler runs.
func Authenticate(logger *slog.Logger, service AuthService, tokenCache *gocache.Cache) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			l := logger.With(slog.String("middleware", "Authenticate"))

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				l.WarnContext(ctx, "Missing Authorization header")
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Authorization header required")
				return
			}

			headerParts := strings.Split(authHeader, " ")
			if len(headerParts) != 2 || strings.ToLower(headerParts[0]) != "bearer" {
				l.WarnContext(ctx, "Invalid Authorization header format")
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Authorization header format must be Bearer {token}")
				return
			}
			token := headerParts[1]

			if cached, ok := tokenCache.Get(token); ok {
				user := cached.(types.AuthenticatedUser)
				next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, userKey, user)))
				return
			}

			user, err := service.GetUserByToken(ctx, token)
			if err != nil {
				l.WarnContext(ctx, "Token resolution failed", slog.Any("error", err))
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Invalid token")
				return
			}

			tokenCache.Set(token, *user, gocache.DefaultExpiration)

			ctx = context.WithValue(ctx, userKey, *user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserFromContext returns the caller identity placed by Authenticate.
func GetUserFromContext(ctx context.Context) (types.AuthenticatedUser, bool) {
	user, ok := ctx.Value(userKey).(types.AuthenticatedUser)
	return user, ok
}

// ContextWithUser is used by handler tests to simulate an authenticated
// request without going through the middleware.
func ContextWithUser(ctx context.Context, user types.AuthenticatedUser) context.Context {
	return context.WithValue(ctx, userKey, user)
}
