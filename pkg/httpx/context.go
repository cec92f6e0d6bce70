package httpx

import "context"

type ctxKey string

const (
	CtxKeyUserID ctxKey = "user_id"
	CtxKeyEmail  ctxKey = "email"
	CtxKeyRole   ctxKey = "role"
)

// Principal is the authenticated caller attached to a request.
type Principal struct {
	UserID string
	Email  string
	Role   string
}

// WithPrincipal stores p in ctx under the individual keys.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	ctx = context.WithValue(ctx, CtxKeyUserID, p.UserID)
	ctx = context.WithValue(ctx, CtxKeyEmail, p.Email)
	ctx = context.WithValue(ctx, CtxKeyRole, p.Role)
	return ctx
}

// PrincipalFromContext returns the caller stored by WithPrincipal. ok is
// false when the request was not authenticated.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	id, ok := ctx.Value(CtxKeyUserID).(string)
	if !ok || id == "" {
		return Principal{}, false
	}
	email, _ := ctx.Value(CtxKeyEmail).(string)
	role, _ := ctx.Value(CtxKeyRole).(string)
	return Principal{UserID: id, Email: email, Role: role}, true
}
