package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/certvault/certauth/internal/auth/domain"
	"github.com/certvault/certauth/internal/auth/store"
	"github.com/certvault/certauth/internal/auth/store/drivers/sqlite"
	"github.com/certvault/certauth/pkg/idx"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func createUser(t *testing.T, s store.Store, email string, role domain.Role) domain.User {
	t.Helper()

	u := domain.User{
		ID:           idx.New().String(),
		Email:        email,
		PasswordHash: "hash",
		Role:         role,
	}
	require.NoError(t, s.Users().CreateUser(context.Background(), u))
	return u
}

func TestUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	empty, err := s.Users().IsEmpty(ctx)
	require.NoError(t, err)
	require.True(t, empty)

	alice := createUser(t, s, "alice@example.com", domain.RoleInvestor)

	t.Run("lookup by email is exact", func(t *testing.T) {
		got, err := s.Users().GetUserByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		require.Equal(t, alice.ID, got.ID)
		require.Equal(t, domain.RoleInvestor, got.Role)
		require.False(t, got.HasSession())
		require.False(t, got.CreatedAt.IsZero())

		_, err = s.Users().GetUserByEmail(ctx, "Alice@example.com")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("lookup by id and role", func(t *testing.T) {
		_, err := s.Users().GetUserByIDAndRole(ctx, alice.ID, domain.RoleInvestor)
		require.NoError(t, err)

		_, err = s.Users().GetUserByIDAndRole(ctx, alice.ID, domain.RoleAdmin)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("duplicate email", func(t *testing.T) {
		err := s.Users().CreateUser(ctx, domain.User{
			ID:           idx.New().String(),
			Email:        "alice@example.com",
			PasswordHash: "other",
			Role:         domain.RoleIssuer,
		})
		require.ErrorIs(t, err, store.ErrAlreadyExists)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := s.Users().GetUserByID(ctx, "nope")
		require.ErrorIs(t, err, store.ErrNotFound)
		require.ErrorIs(t, s.Users().SetRefreshTokenHash(ctx, "nope", "h", time.Now(), time.Now()), store.ErrNotFound)
	})

	t.Run("password update", func(t *testing.T) {
		require.NoError(t, s.Users().UpdatePasswordHash(ctx, alice.ID, "new-hash", time.Now()))
		got, err := s.Users().GetUserByID(ctx, alice.ID)
		require.NoError(t, err)
		require.Equal(t, "new-hash", got.PasswordHash)
	})

	empty, err = s.Users().IsEmpty(ctx)
	require.NoError(t, err)
	require.False(t, empty)
}

func TestRefreshTokenHash(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := createUser(t, s, "bob@example.com", domain.RoleInvestor)

	exp := time.Now().Add(24 * time.Hour)
	require.NoError(t, s.Users().SetRefreshTokenHash(ctx, u.ID, "first", exp, time.Now()))
	require.NoError(t, s.Users().SetRefreshTokenHash(ctx, u.ID, "second", exp, time.Now()))

	got, err := s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "second", got.RefreshTokenHash, "a new session overwrites the old one")
	require.NotNil(t, got.RefreshExpiresAt)
	require.WithinDuration(t, exp, *got.RefreshExpiresAt, time.Millisecond)

	require.NoError(t, s.Users().ClearRefreshTokenHash(ctx, u.ID, time.Now()))
	require.NoError(t, s.Users().ClearRefreshTokenHash(ctx, u.ID, time.Now()), "clearing twice is fine")

	got, err = s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Empty(t, got.RefreshTokenHash)
	require.Nil(t, got.RefreshExpiresAt)
}

func TestUpdatesStampCallerTime(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := createUser(t, s, "carol@example.com", domain.RoleInvestor)

	updatedAt := func() time.Time {
		got, err := s.Users().GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		return got.UpdatedAt
	}

	at := time.Date(2031, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.Users().SetRefreshTokenHash(ctx, u.ID, "fp", at.Add(time.Hour), at))
	require.WithinDuration(t, at, updatedAt(), time.Millisecond)

	at = at.Add(time.Minute)
	require.NoError(t, s.Users().UpdatePasswordHash(ctx, u.ID, "rehashed", at))
	require.WithinDuration(t, at, updatedAt(), time.Millisecond)

	at = at.Add(time.Minute)
	require.NoError(t, s.Users().ClearRefreshTokenHash(ctx, u.ID, at))
	require.WithinDuration(t, at, updatedAt(), time.Millisecond)
}

func TestClearExpiredRefreshTokens(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	stale := createUser(t, s, "stale@example.com", domain.RoleInvestor)
	live := createUser(t, s, "live@example.com", domain.RoleInvestor)
	idle := createUser(t, s, "idle@example.com", domain.RoleInvestor)

	require.NoError(t, s.Users().SetRefreshTokenHash(ctx, stale.ID, "s", now.Add(-time.Minute), now))
	require.NoError(t, s.Users().SetRefreshTokenHash(ctx, live.ID, "l", now.Add(time.Hour), now))

	n, err := s.Users().ClearExpiredRefreshTokens(ctx, now)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	got, err := s.Users().GetUserByID(ctx, stale.ID)
	require.NoError(t, err)
	require.False(t, got.HasSession())

	got, err = s.Users().GetUserByID(ctx, live.ID)
	require.NoError(t, err)
	require.True(t, got.HasSession())

	got, err = s.Users().GetUserByID(ctx, idle.ID)
	require.NoError(t, err)
	require.False(t, got.HasSession())
}

func TestListAndDeleteUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	admin := createUser(t, s, "admin@example.com", domain.RoleAdmin)
	inv := createUser(t, s, "inv@example.com", domain.RoleInvestor)

	users, err := s.Users().ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)

	require.NoError(t, s.Users().DeleteUser(ctx, inv.ID))
	require.ErrorIs(t, s.Users().DeleteUser(ctx, inv.ID), store.ErrNotFound)

	// An admin that has issued invitations is still referenced.
	createInvitation(t, s, admin.ID, "bob@issuer.com", "fp-1", time.Now().Add(time.Hour))
	require.Error(t, s.Users().DeleteUser(ctx, admin.ID))
}

func createInvitation(t *testing.T, s store.Store, adminID, email, hash string, expiresAt time.Time) domain.Invitation {
	t.Helper()

	inv := domain.Invitation{
		ID:        idx.New().String(),
		TokenHash: hash,
		Email:     email,
		ExpiresAt: expiresAt,
		CreatedBy: adminID,
		CreatedAt: time.Now(),
	}
	require.NoError(t, s.Invitations().CreateInvitation(context.Background(), inv))
	return inv
}

func TestInvitations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	admin := createUser(t, s, "admin@example.com", domain.RoleAdmin)
	active := createInvitation(t, s, admin.ID, "bob@issuer.com", "fp-active", now.Add(7*24*time.Hour))
	createInvitation(t, s, admin.ID, "late@issuer.com", "fp-expired", now.Add(-time.Second))

	t.Run("active lookup", func(t *testing.T) {
		got, err := s.Invitations().GetActiveInvitationByTokenHash(ctx, "fp-active", now)
		require.NoError(t, err)
		require.Equal(t, active.ID, got.ID)
		require.Equal(t, "bob@issuer.com", got.Email)
		require.False(t, got.Used)
		require.WithinDuration(t, active.ExpiresAt, got.ExpiresAt, time.Millisecond)
	})

	t.Run("expired is invisible", func(t *testing.T) {
		_, err := s.Invitations().GetActiveInvitationByTokenHash(ctx, "fp-expired", now)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("expiry boundary is exclusive", func(t *testing.T) {
		_, err := s.Invitations().GetActiveInvitationByTokenHash(ctx, "fp-active", active.ExpiresAt)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("duplicate fingerprint", func(t *testing.T) {
		err := s.Invitations().CreateInvitation(ctx, domain.Invitation{
			ID:        idx.New().String(),
			TokenHash: "fp-active",
			Email:     "x@issuer.com",
			ExpiresAt: now.Add(time.Hour),
			CreatedBy: admin.ID,
			CreatedAt: now,
		})
		require.ErrorIs(t, err, store.ErrAlreadyExists)
	})

	t.Run("mark used once", func(t *testing.T) {
		bob := createUser(t, s, "bob@issuer.com", domain.RoleIssuer)

		require.NoError(t, s.Invitations().MarkInvitationUsed(ctx, active.ID, bob.ID, now))
		require.ErrorIs(t, s.Invitations().MarkInvitationUsed(ctx, active.ID, bob.ID, now), store.ErrNotFound)

		_, err := s.Invitations().GetActiveInvitationByTokenHash(ctx, "fp-active", now)
		require.ErrorIs(t, err, store.ErrNotFound)

		all, err := s.Invitations().ListInvitations(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)

		var used domain.Invitation
		for _, inv := range all {
			if inv.ID == active.ID {
				used = inv
			}
		}
		require.True(t, used.Used)
		require.Equal(t, bob.ID, used.UsedBy)
		require.NotNil(t, used.UsedAt)
	})
}

func TestMarkInvitationUsedRejectsExpired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	admin := createUser(t, s, "admin@example.com", domain.RoleAdmin)
	inv := createInvitation(t, s, admin.ID, "bob@issuer.com", "fp", time.Now().Add(time.Minute))

	err := s.Invitations().MarkInvitationUsed(ctx, inv.ID, admin.ID, time.Now().Add(2*time.Minute))
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestWithTx(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	admin := createUser(t, s, "admin@example.com", domain.RoleAdmin)
	inv := createInvitation(t, s, admin.ID, "bob@issuer.com", "fp", time.Now().Add(time.Hour))

	t.Run("rollback on error", func(t *testing.T) {
		boom := errors.New("boom")
		err := s.WithTx(ctx, func(tx store.Tx) error {
			u := domain.User{ID: idx.New().String(), Email: "bob@issuer.com", PasswordHash: "h", Role: domain.RoleIssuer}
			require.NoError(t, tx.Users().CreateUser(ctx, u))
			require.NoError(t, tx.Invitations().MarkInvitationUsed(ctx, inv.ID, u.ID, time.Now()))
			return boom
		})
		require.ErrorIs(t, err, boom)

		_, err = s.Users().GetUserByEmail(ctx, "bob@issuer.com")
		require.ErrorIs(t, err, store.ErrNotFound)

		_, err = s.Invitations().GetActiveInvitationByTokenHash(ctx, "fp", time.Now())
		require.NoError(t, err, "invitation must remain usable after rollback")
	})

	t.Run("commit", func(t *testing.T) {
		err := s.WithTx(ctx, func(tx store.Tx) error {
			u := domain.User{ID: idx.New().String(), Email: "bob@issuer.com", PasswordHash: "h", Role: domain.RoleIssuer}
			if err := tx.Users().CreateUser(ctx, u); err != nil {
				return err
			}
			return tx.Invitations().MarkInvitationUsed(ctx, inv.ID, u.ID, time.Now())
		})
		require.NoError(t, err)

		_, err = s.Invitations().GetActiveInvitationByTokenHash(ctx, "fp", time.Now())
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestConcurrentRedemptionFileStore(t *testing.T) {
	s, err := sqlite.NewStoreWithOptions(filepath.Join(t.TempDir(), "auth.db"), sqlite.Options{MaxOpenConns: 4})
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())
	t.Cleanup(func() { _ = s.Close() })

	ctx := context.Background()
	admin := createUser(t, s, "admin@example.com", domain.RoleAdmin)
	inv := createInvitation(t, s, admin.ID, "bob@issuer.com", "fp", time.Now().Add(time.Hour))

	const racers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for range racers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Invitations().MarkInvitationUsed(ctx, inv.ID, admin.ID, time.Now())
			if err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, winners)
}
