package http

import (
	"net/http"
	"time"

	"github.com/certvault/certauth/internal/auth/store"
	"github.com/certvault/certauth/pkg/authsdk"
	"github.com/certvault/certauth/pkg/httpx"
	"github.com/certvault/certauth/pkg/slogx"
)

// healthHandler answers the orchestrator's liveness and readiness checks.
type healthHandler struct {
	started  time.Time
	version  string
	store    store.Store
	limiters *httpx.Limiters
}

func (p healthHandler) response(status string, checks *authsdk.HealthChecks) authsdk.HealthResponse {
	return authsdk.HealthResponse{
		Status:  status,
		Uptime:  time.Since(p.started).Truncate(time.Second).String(),
		Version: p.version,
		Checks:  checks,
	}
}

// Livez godoc
//
//	@Summary		Liveness check
//	@Description	Returns 200 while the process is serving requests. Dependencies are not checked.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse	"status, uptime, version"
//	@Router			/livez [get].
func (p healthHandler) Livez(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, p.response("ok", nil))
}

// Readyz godoc
//
//	@Summary		Readiness check
//	@Description	Pings the credential database and reports which rate limiter backend is in use.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse	"status, uptime, version, checks"
//	@Failure		503	{object}	authsdk.HealthResponse	"database unreachable"
//	@Router			/readyz [get].
func (p healthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := &authsdk.HealthChecks{
		Database:  "ok",
		RateLimit: p.limiters.String(),
	}

	if err := p.store.Ping(r.Context()); err != nil {
		slogx.FromContext(r.Context()).Warn("readiness ping failed", "error", err)
		checks.Database = "error"
		httpx.WriteJSON(w, http.StatusServiceUnavailable, p.response("degraded", checks))
		return
	}

	httpx.WriteJSON(w, http.StatusOK, p.response("ok", checks))
}
