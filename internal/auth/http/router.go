package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/certvault/certauth/internal/auth/domain"
	"github.com/certvault/certauth/internal/auth/service"
	"github.com/certvault/certauth/internal/auth/store"
	"github.com/certvault/certauth/pkg/httpx"
	"github.com/certvault/certauth/pkg/slogx"

	_ "github.com/certvault/certauth/api/auth" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	limiters     *httpx.Limiters

	store             store.Store
	AuthService       *service.AuthService
	InvitationService *service.InvitationService
	UserService       *service.UserService
	Authorizer        *service.Authorizer
}

// NewRouter builds a router. A nil limiters falls back to in-process rate
// limiting.
func NewRouter(
	buildVersion string,
	st store.Store,
	limiters *httpx.Limiters,
	logger *slog.Logger,
) *Router {
	if limiters == nil {
		limiters = httpx.NewLimiters(nil, nil)
	}
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		limiters:     limiters,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerAdmin()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			CertVault Authentication Service API
//	@version		0.1.0
//	@description	Email and password authentication for the certificate platform, issuing HS256 JWT access and refresh tokens.
//	@description
//	@description				Every failed request returns {"success": false, "message": "..."}.
//
//	@contact.name				CertVault Team
//	@contact.url				https://github.com/certvault/certauth
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{AuthService: r.AuthService}

	// POST /login - strict, keyed by IP + email to slow credential stuffing
	r.Mux.Handle("POST /api/auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			r.limiters.For("login", httpx.StrictLimit,
				httpx.CompositeKeyExtractor(":", r.limiters.ClientIP, httpx.JSONFieldKeyExtractor("email"))),
		),
	)

	// Public signup endpoints - strict by IP
	r.Mux.Handle("POST /api/auth/register",
		httpx.Chain(http.HandlerFunc(h.HandleRegister),
			r.limiters.For("register", httpx.StrictLimit, r.limiters.ClientIP),
		),
	)
	r.Mux.Handle("POST /api/auth/register/issuer",
		httpx.Chain(http.HandlerFunc(h.HandleRegisterIssuer),
			r.limiters.For("register_issuer", httpx.StrictLimit, r.limiters.ClientIP),
		),
	)

	r.Mux.Handle("POST /api/auth/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			r.limiters.For("refresh", httpx.ModerateLimit, r.limiters.ClientIP),
		),
	)

	// Authenticated endpoints - lenient rate limit by user
	r.Mux.Handle("POST /api/auth/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			RequireAuth(r.Authorizer),
			r.limiters.For("logout", httpx.LenientLimit, httpx.UserIDKeyExtractor),
		),
	)
	r.Mux.Handle("GET /api/auth/me",
		httpx.Chain(http.HandlerFunc(h.HandleMe),
			RequireAuth(r.Authorizer),
			r.limiters.For("me", httpx.LenientLimit, httpx.UserIDKeyExtractor),
		),
	)
}

func (r *Router) registerAdmin() {
	h := &AdminHandler{
		InvitationService: r.InvitationService,
		UserService:       r.UserService,
	}

	admin := func(name string, fn http.HandlerFunc) http.Handler {
		return httpx.Chain(fn,
			RequireRole(r.Authorizer, domain.RoleAdmin),
			r.limiters.For(name, httpx.ModerateLimit, httpx.UserIDKeyExtractor),
		)
	}

	r.Mux.Handle("POST /api/admin/create-issuer-link", admin("create_issuer_link", h.HandleCreateIssuerLink))
	r.Mux.Handle("GET /api/admin/users", admin("list_users", h.HandleListUsers))
	r.Mux.Handle("GET /api/admin/invitations", admin("list_invitations", h.HandleListInvitations))
}

func (r *Router) registerSystem() {
	p := healthHandler{started: r.startTime, version: r.buildVersion, store: r.store, limiters: r.limiters}

	// Monitoring polls often, so health checks get the lenient profile.
	r.Mux.Handle("GET /livez",
		httpx.Chain(http.HandlerFunc(p.Livez),
			r.limiters.For("livez", httpx.LenientLimit, r.limiters.ClientIP),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(http.HandlerFunc(p.Readyz),
			r.limiters.For("readyz", httpx.LenientLimit, r.limiters.ClientIP),
		),
	)
}
