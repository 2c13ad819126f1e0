package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/zatekoja/hospital-appointments/internal/domain/entities"
	"github.com/zatekoja/hospital-appointments/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/hospital-appointments/pkg/errors"
)

type principalKey struct{}

// TokenParser verifies a bearer token
type TokenParser interface {
	Parse(token string) (*entities.Principal, error)
}

// WithPrincipal returns a context carrying the authenticated principal
func WithPrincipal(ctx context.Context, principal *entities.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, principal)
}

// PrincipalFromContext returns the authenticated principal, or nil for anonymous requests
func PrincipalFromContext(ctx context.Context) *entities.Principal {
	principal, _ := ctx.Value(principalKey{}).(*entities.Principal)
	return principal
}

// AuthMiddleware resolves the bearer token into a principal. Requests without
// an Authorization header pass through anonymously; a malformed or invalid
// token is rejected with 401.
func AuthMiddleware(parser TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			scheme, token, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				writeUnauthorized(w, "authorization header must be a bearer token")
				return
			}

			principal, err := parser.Parse(strings.TrimSpace(token))
			if err != nil {
				observability.LoggerFromContext(r.Context()).Debug().Err(err).Msg("rejected bearer token")
				writeUnauthorized(w, "invalid or expired token")
				return
			}

			logger := observability.LoggerFromContext(r.Context()).With().
				Str("user_id", principal.UserID).
				Str("role", string(principal.Role)).
				Logger()
			ctx := logger.WithContext(WithPrincipal(r.Context(), principal))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
		"code":  apperrors.CodeUnauthenticated,
	})
}
