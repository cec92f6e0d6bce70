package postgres_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/certvault/certauth/internal/auth/domain"
	"github.com/certvault/certauth/internal/auth/store"
	"github.com/certvault/certauth/internal/auth/store/drivers/postgres"
	"github.com/certvault/certauth/pkg/idx"
)

// startPostgres runs a throwaway server. Tests using it are skipped when no
// Docker daemon is available.
func startPostgres(t *testing.T) *postgres.Store {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres integration test skipped in -short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
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
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	url := fmt.Sprintf("postgres://certauth:certauth@%s:%s/certauth?sslmode=disable", host, port.Port())
	s, err := postgres.NewStore(ctx, url, postgres.Options{MaxOpenConns: 8})
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())
	require.NoError(t, s.ApplyMigrations(), "migrations are idempotent")
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPostgresStore(t *testing.T) {
	s := startPostgres(t)
	ctx := context.Background()
	now := time.Now()

	admin := domain.User{ID: idx.New().String(), Email: "admin@example.com", PasswordHash: "h", Role: domain.RoleAdmin}
	require.NoError(t, s.Users().CreateUser(ctx, admin))

	err := s.Users().CreateUser(ctx, domain.User{ID: idx.New().String(), Email: "admin@example.com", PasswordHash: "h", Role: domain.RoleInvestor})
	require.ErrorIs(t, err, store.ErrAlreadyExists)

	_, err = s.Users().GetUserByIDAndRole(ctx, admin.ID, domain.RoleIssuer)
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Users().SetRefreshTokenHash(ctx, admin.ID, "fp", now.Add(-time.Second), now))
	n, err := s.Users().ClearExpiredRefreshTokens(ctx, now)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	inv := domain.Invitation{
		ID:        idx.New().String(),
		TokenHash: "inv-fp",
		Email:     "bob@issuer.com",
		ExpiresAt: now.Add(7 * 24 * time.Hour),
		CreatedBy: admin.ID,
		CreatedAt: now,
	}
	require.NoError(t, s.Invitations().CreateInvitation(ctx, inv))

	got, err := s.Invitations().GetActiveInvitationByTokenHash(ctx, "inv-fp", now)
	require.NoError(t, err)
	require.Equal(t, inv.Email, got.Email)

	// Concurrent redeemers: exactly one transaction commits.
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := range 6 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.WithTx(ctx, func(tx store.Tx) error {
				u := domain.User{
					ID:           idx.New().String(),
					Email:        fmt.Sprintf("bob+%d@issuer.com", i),
					PasswordHash: "h",
					Role:         domain.RoleIssuer,
				}
				if err := tx.Users().CreateUser(ctx, u); err != nil {
					return err
				}
				return tx.Invitations().MarkInvitationUsed(ctx, inv.ID, u.ID, time.Now())
			})
			if err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, winners)

	users, err := s.Users().ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2, "losing transactions rolled back their users")
}
