package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/certvault/certauth/internal/auth/domain"
	"github.com/certvault/certauth/pkg/authsdk"
)

func newTestApp(t *testing.T, mutate func(*Config)) *Application {
	t.Helper()

	dir := t.TempDir()
	cfg := validConfig()
	cfg.DatabaseFile = filepath.Join(dir, "auth.db")
	cfg.PepperFile = filepath.Join(dir, "pepper")
	cfg.LogLevel = "error"
	cfg.AdminEmail = "admin@example.com"
	cfg.AdminPassword = "admin-password-1"
	if mutate != nil {
		mutate(&cfg)
	}

	a, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := defaultConfig()
	_, err := New(cfg)
	require.ErrorContains(t, err, "AUTH_JWT_SECRET")
}

func TestNew_SeedsAdminAndServes(t *testing.T) {
	a := newTestApp(t, nil)

	admin, err := a.db.Users().GetUserByEmail(context.Background(), "admin@example.com")
	require.NoError(t, err)
	require.Equal(t, domain.RoleAdmin, admin.Role)

	srv := httptest.NewServer(a.Handler())
	t.Cleanup(srv.Close)

	client := authsdk.NewSDKClient(srv.URL)
	sess, err := client.Login(context.Background(), "admin@example.com", "admin-password-1")
	require.NoError(t, err)
	require.Equal(t, "admin", sess.User().Role)

	resp, err := http.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNew_SeedIsIdempotentAcrossRestarts(t *testing.T) {
	dir := t.TempDir()
	mutate := func(c *Config) {
		c.DatabaseFile = filepath.Join(dir, "auth.db")
		c.PepperFile = filepath.Join(dir, "pepper")
	}

	first := newTestApp(t, mutate)
	u1, err := first.db.Users().GetUserByEmail(context.Background(), "admin@example.com")
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second := newTestApp(t, mutate)
	u2, err := second.db.Users().GetUserByEmail(context.Background(), "admin@example.com")
	require.NoError(t, err)
	require.Equal(t, u1.ID, u2.ID)
	require.Equal(t, u1.PasswordHash, u2.PasswordHash)
}

func TestNew_UsesRedisWhenConfigured(t *testing.T) {
	mr := miniredis.RunT(t)

	a := newTestApp(t, func(c *Config) { c.RedisURL = "redis://" + mr.Addr() })
	require.NotNil(t, a.redis)

	srv := httptest.NewServer(a.Handler())
	t.Cleanup(srv.Close)

	health, err := authsdk.NewSDKClient(srv.URL).GetReadiness(context.Background())
	require.NoError(t, err)
	require.Equal(t, "redis", health.Checks.RateLimit)
}

func TestNew_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	dir := t.TempDir()
	cfg := validConfig()
	cfg.DatabaseFile = filepath.Join(dir, "auth.db")
	cfg.PepperFile = filepath.Join(dir, "pepper")
	cfg.RedisURL = "redis://" + addr

	_, err := New(cfg)
	require.ErrorContains(t, err, "redis")
}
