package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/certvault/certauth/internal/auth/domain"
	httpapi "github.com/certvault/certauth/internal/auth/http"
	"github.com/certvault/certauth/internal/auth/service"
	"github.com/certvault/certauth/internal/auth/store"
	"github.com/certvault/certauth/internal/auth/store/drivers/postgres"
	"github.com/certvault/certauth/internal/auth/store/drivers/sqlite"
	"github.com/certvault/certauth/pkg/cryptox"
	"github.com/certvault/certauth/pkg/httpx"
	"github.com/certvault/certauth/pkg/jwtx"
	"github.com/certvault/certauth/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Services bundles the business logic built on one store and codec.
type Services struct {
	Auth        *service.AuthService
	Invitations *service.InvitationService
	Users       *service.UserService
	Bootstrap   *service.BootstrapService
	Authorizer  *service.Authorizer
}

// NewServices wires the services for cfg. authctl uses it too.
func NewServices(cfg Config, st store.Store, codec *jwtx.Codec) *Services {
	invitations := &service.InvitationService{
		Store:   st,
		BaseURL: cfg.InviteBaseURL,
		TTL:     cfg.InviteTTL,
	}
	auth := &service.AuthService{
		Store:               st,
		Codec:               codec,
		Invitations:         invitations,
		RotateRefreshTokens: cfg.RotateRefreshTokens,
	}
	return &Services{
		Auth:        auth,
		Invitations: invitations,
		Users:       &service.UserService{Store: st},
		Bootstrap:   &service.BootstrapService{Store: st, Auth: auth},
		Authorizer:  &service.Authorizer{Store: st, Codec: codec},
	}
}

// NewCodec builds the token codec. A missing or short secret is fatal;
// there is no fallback key.
func NewCodec(cfg Config) (*jwtx.Codec, error) {
	codec, err := jwtx.NewCodec(jwtx.CodecOptions{
		Secret:     []byte(cfg.JWTSecret),
		Issuer:     cfg.Issuer,
		AccessTTL:  cfg.AccessTTL,
		RefreshTTL: cfg.RefreshTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token codec: %w", err)
	}
	return codec, nil
}

// OpenStore connects to the configured database and applies migrations.
func OpenStore(ctx context.Context, cfg Config) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.DBDriver {
	case DriverPostgres:
		st, err = postgres.NewStore(ctx, cfg.DatabaseURL, postgres.Options{MaxOpenConns: cfg.DBMaxOpenConns})
	default:
		dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", cfg.DatabaseFile)
		st, err = sqlite.NewStoreWithOptions(dsn, sqlite.Options{MaxOpenConns: cfg.DBMaxOpenConns})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := st.ApplyMigrations(); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to apply database migrations: %w", err)
	}
	return st, nil
}

// Application encapsulates the auth service application with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db    store.Store
	codec *jwtx.Codec
	redis *redis.Client

	services            *Services
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "auth-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	// Set pepper path for password hashing
	cryptox.SetPepperPath(app.cfg.PepperFile)

	codec, err := NewCodec(cfg)
	if err != nil {
		return nil, err
	}
	app.codec = codec

	ctx := context.Background()
	if err := app.initDatabase(ctx); err != nil {
		return nil, err
	}
	if err := app.initRedis(ctx); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initServices()
	if err := app.bootstrap(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}
	if err := app.initHTTP(); err != nil {
		_ = app.Close()
		return nil, err
	}

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	// Start housekeeping service
	app.housekeepingService.Start()

	app.logger.Info("auth service starting", "port", app.cfg.Port, "version", BuildVersion)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		// Perform graceful shutdown
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	// Shutdown the HTTP server
	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if err := app.Close(); err != nil {
		app.logger.Error("error closing backends", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

// Close stops housekeeping and releases the database and Redis connections.
// It does not stop the HTTP server; Shutdown does that first.
func (app *Application) Close() error {
	if app.housekeepingService != nil {
		app.housekeepingService.Stop()
	}

	var errs []error
	if app.redis != nil {
		errs = append(errs, app.redis.Close())
	}
	errs = append(errs, app.db.Close())
	return errors.Join(errs...)
}

// initDatabase opens the configured store and applies migrations
func (app *Application) initDatabase(ctx context.Context) error {
	db, err := OpenStore(ctx, app.cfg)
	if err != nil {
		return err
	}
	app.db = db

	app.logger.Info("database migrations applied successfully", "driver", app.cfg.DBDriver)
	return nil
}

// initRedis connects the shared rate limit backend when REDIS_URL is set.
func (app *Application) initRedis(ctx context.Context) error {
	if app.cfg.RedisURL == "" {
		return nil
	}

	opts, err := redis.ParseURL(app.cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	app.redis = client
	app.logger.Info("redis rate limiting enabled", "addr", opts.Addr)
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	app.services = NewServices(app.cfg, app.db, app.codec)

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// bootstrap seeds the configured admin account.
func (app *Application) bootstrap(ctx context.Context) error {
	ctx = slogx.WithContext(ctx, app.logger)

	if app.cfg.AdminEmail == "" {
		empty, err := app.services.Bootstrap.NeedsBootstrap(ctx)
		if err != nil {
			return err
		}
		if empty {
			app.logger.Warn("no users exist; set AUTH_ADMIN_EMAIL/AUTH_ADMIN_PASSWORD or run authctl seed-admin")
		}
		return nil
	}

	_, _, err := app.services.Bootstrap.SeedAdmin(ctx, domain.BootstrapData{
		AdminEmail:    app.cfg.AdminEmail,
		AdminPassword: app.cfg.AdminPassword,
	})
	if err != nil {
		return fmt.Errorf("failed to seed admin: %w", err)
	}
	return nil
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() error {
	proxies, err := httpx.ParseTrustedProxies(app.cfg.TrustedProxies)
	if err != nil {
		return fmt.Errorf("invalid TRUSTED_PROXIES: %w", err)
	}

	var limiters *httpx.Limiters
	if app.redis != nil {
		limiters = httpx.NewLimiters(app.redis, proxies)
	} else {
		limiters = httpx.NewLimiters(nil, proxies)
	}

	router := httpapi.NewRouter(BuildVersion, app.db, limiters, app.logger)

	// Wire services to router
	router.AuthService = app.services.Auth
	router.InvitationService = app.services.Invitations
	router.UserService = app.services.Users
	router.Authorizer = app.services.Authorizer
	router.ApplyRoutes()

	app.router = router

	// Initialize HTTP server
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
	return nil
}

// Handler exposes the configured router, for tests.
func (app *Application) Handler() http.Handler {
	return app.router
}
