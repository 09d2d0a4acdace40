package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/Bidon15/printspool/internal/auth"
	"github.com/Bidon15/printspool/internal/models"
	brokererrors "github.com/Bidon15/printspool/internal/pkg/errors"
	"github.com/Bidon15/printspool/internal/pkg/response"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// ClaimsKey is the context key holding the verified token claims.
const ClaimsKey contextKey = "claims"

// Auth returns a middleware that requires a valid Bearer token and puts
// its claims on the request context.
func Auth(tokens *auth.Manager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				response.Error(w, brokererrors.ErrUnauthorized)
				return
			}

			claims, err := tokens.ValidateToken(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				response.Error(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClaims retrieves the verified token claims from context. Returns nil
// when the request did not pass through Auth.
func GetClaims(ctx context.Context) *auth.Claims {
	if v := ctx.Value(ClaimsKey); v != nil {
		return v.(*auth.Claims)
	}
	return nil
}

// RequireRole returns a middleware admitting only principals carrying one
// of the given roles. Admins pass every role check.
func RequireRole(roles ...models.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaims(r.Context())
			if claims == nil {
				response.Error(w, brokererrors.ErrUnauthorized)
				return
			}
			if claims.HasRole(models.RoleAdmin.String()) {
				next.ServeHTTP(w, r)
				return
			}
			for _, role := range roles {
				if claims.HasRole(role.String()) {
					next.ServeHTTP(w, r)
					return
				}
			}
			response.Error(w, brokererrors.ErrForbidden)
		})
	}
}
