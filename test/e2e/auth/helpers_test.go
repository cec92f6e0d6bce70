package auth_test

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/certvault/certauth/internal/auth/app"
	"github.com/certvault/certauth/pkg/authsdk"
)

/*
 * End-to-end tests run the full service (the same app.New used by cmd/auth)
 * against real Postgres and Redis containers, and drive it through authsdk.
 */

const (
	adminEmail    = "admin@certvault.test"
	adminPassword = "Admin123!-e2e"
	jwtSecret     = "e2e-secret-0123456789abcdef012345"
)

// startContainer runs image and returns host:port for the exposed port.
func startContainer(t *testing.T, req testcontainers.ContainerRequest, port string) string {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	mappedPort, err := container.MappedPort(ctx, nat.Port(port))
	require.NoError(t, err)
	host, err := container.Host(ctx)
	require.NoError(t, err)

	return fmt.Sprintf("%s:%s", host, mappedPort.Port())
}

// setupAuthService starts Postgres, Redis and the auth service, and returns
// the service's base URL.
func setupAuthService(t *testing.T) (string, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("e2e test skipped in -short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	pgAddr := startContainer(t, testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "certauth",
			"POSTGRES_PASSWORD": "certauth",
			"POSTGRES_DB":       "certauth",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}, "5432")

	redisAddr := startContainer(t, testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor: wait.ForLog("Ready to accept connections").
			WithStartupTimeout(30 * time.Second),
	}, "6379")

	dir := t.TempDir()
	cfg, err := app.LoadConfig()
	require.NoError(t, err)
	cfg.JWTSecret = jwtSecret
	cfg.DBDriver = app.DriverPostgres
	cfg.DatabaseURL = fmt.Sprintf("postgres://certauth:certauth@%s/certauth?sslmode=disable", pgAddr)
	cfg.RedisURL = "redis://" + redisAddr
	cfg.PepperFile = filepath.Join(dir, "pepper")
	cfg.InviteBaseURL = "https://certvault.test"
	cfg.AdminEmail = adminEmail
	cfg.AdminPassword = adminPassword
	cfg.Env = "test"
	cfg.LogLevel = "warn"

	application, err := app.New(cfg)
	require.NoError(t, err)

	srv := httptest.NewServer(application.Handler())

	cleanup := func() {
		srv.Close()
		if err := application.Close(); err != nil {
			t.Logf("failed to close application: %v", err)
		}
	}

	return srv.URL, cleanup
}

// loginAdmin logs in as the seeded admin.
func loginAdmin(t *testing.T, client *authsdk.SDKClient) *authsdk.Session {
	t.Helper()

	session, err := client.Login(t.Context(), adminEmail, adminPassword)
	require.NoError(t, err, "admin login should succeed")
	require.Equal(t, "admin", session.User().Role)
	return session
}

// inviteToken extracts the token query parameter of an invitation link.
func inviteToken(t *testing.T, link string) string {
	t.Helper()

	u, err := url.Parse(link)
	require.NoError(t, err)
	token := u.Query().Get("token")
	require.Len(t, token, 64, "invitation tokens are 32 random bytes, hex encoded")
	return token
}

// assertStatus checks that err is an API error with the given status and message.
func assertStatus(t *testing.T, err error, status int, message string) {
	t.Helper()
	require.Error(t, err)

	var apiErr *authsdk.APIError
	require.True(t, errors.As(err, &apiErr), "expected *authsdk.APIError, got %T: %v", err, err)
	require.Equal(t, status, apiErr.StatusCode, apiErr.Message)
	if message != "" {
		require.Equal(t, message, apiErr.Message)
	}
}

// assertHealthy verifies a health check response is OK.
func assertHealthy(t *testing.T, health *authsdk.HealthResponse, err error) {
	t.Helper()
	require.NoError(t, err)
	require.NotNil(t, health)
	require.Equal(t, "ok", health.Status)
}
