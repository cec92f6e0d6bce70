package httpx

import (
	"net/http"
)

// RequireRole admits callers whose role equals one of roles exactly. It must
// run after a middleware that attached a Principal; unauthenticated requests
// get a 401, authenticated ones with another role a 403.
func RequireRole(roles ...string) Middleware {
	want := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		want[r] = struct{}{}
	}
	denied := "Access denied"
	if len(roles) == 1 {
		denied = "Access denied: " + roles[0] + " role required"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				WriteBearerError(w, "Not authenticated")
				return
			}
			if _, ok := want[p.Role]; !ok {
				WriteError(w, http.StatusForbidden, denied)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
