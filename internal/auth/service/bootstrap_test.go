package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/certvault/certauth/internal/auth/domain"
)

func TestSeedAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := &BootstrapService{Store: env.store, Auth: env.auth}

	empty, err := b.NeedsBootstrap(ctx)
	require.NoError(t, err)
	require.True(t, empty)

	req := domain.BootstrapData{AdminEmail: "admin@example.com", AdminPassword: "pw"}
	id, created, err := b.SeedAdmin(ctx, req)
	require.NoError(t, err)
	require.True(t, created)

	again, created, err := b.SeedAdmin(ctx, domain.BootstrapData{AdminEmail: "admin@example.com", AdminPassword: "different"})
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, id, again)

	// the original password survives a second seed
	_, err = env.auth.Authenticate(ctx, "admin@example.com", "pw")
	require.NoError(t, err)

	empty, err = b.NeedsBootstrap(ctx)
	require.NoError(t, err)
	require.False(t, empty)
}

func TestSeedAdminConflicts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := &BootstrapService{Store: env.store, Auth: env.auth}

	env.register(t, "taken@example.com", "pw", domain.RoleInvestor)
	_, _, err := b.SeedAdmin(ctx, domain.BootstrapData{AdminEmail: "taken@example.com", AdminPassword: "pw"})
	require.ErrorIs(t, err, ErrBootstrapConflict)

	_, _, err = b.SeedAdmin(ctx, domain.BootstrapData{})
	require.ErrorIs(t, err, ErrInvalidRequest)
}
