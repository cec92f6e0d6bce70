package http

import (
	"errors"
	"net/http"

	"github.com/certvault/certauth/internal/auth/domain"
	"github.com/certvault/certauth/internal/auth/service"
	"github.com/certvault/certauth/pkg/httpx"
	"github.com/certvault/certauth/pkg/slogx"
)

// RequireAuth verifies the bearer token against the store and attaches the
// caller's identity to the request context.
func RequireAuth(a *service.Authorizer) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			id, err := a.Authenticate(ctx, r.Header.Get("Authorization"))
			if err != nil {
				var authErr *service.AuthError
				if errors.As(err, &authErr) {
					httpx.WriteBearerError(w, authErr.Error())
					return
				}
				slogx.FromContext(ctx).Error("authentication lookup failed", "error", err)
				httpx.WriteError(w, http.StatusInternalServerError, "Authentication failed")
				return
			}

			ctx = httpx.WithPrincipal(ctx, httpx.Principal{
				UserID: id.UserID,
				Email:  id.Email,
				Role:   id.Role.String(),
			})
			ctx = slogx.With(ctx, "user_id", id.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole is RequireAuth followed by an exact role check.
func RequireRole(a *service.Authorizer, role domain.Role) httpx.Middleware {
	authn := RequireAuth(a)
	authz := httpx.RequireRole(role.String())
	return func(next http.Handler) http.Handler {
		return authn(authz(next))
	}
}

func principal(r *http.Request) (httpx.Principal, bool) {
	return httpx.PrincipalFromContext(r.Context())
}
