package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/certvault/certauth/internal/auth/domain"
	"github.com/certvault/certauth/internal/auth/store"
)

// ErrorMapper translates driver errors (unique violations in particular)
// into store sentinels.
type ErrorMapper func(error) error

// Store implements store.Store on a database/sql pool. Drivers embed it and
// add ApplyMigrations.
type Store struct {
	db      *sql.DB
	q       *Queries
	mapErr  ErrorMapper
	nowFunc func() time.Time
}

func NewStore(db *sql.DB, dialect Dialect, mapErr ErrorMapper) *Store {
	if mapErr == nil {
		mapErr = func(err error) error { return err }
	}
	return &Store{
		db:      db,
		q:       New(db, dialect),
		mapErr:  mapErr,
		nowFunc: time.Now,
	}
}

// DB exposes the pool for migrations.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithTx executes fn within a transaction, automatically handling commit/rollback.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	// Safe to call after commit; covers early returns and panics.
	defer func() {
		_ = sqlTx.Rollback()
	}()

	if err := fn(&txStore{q: s.q.WithTx(sqlTx), mapErr: s.mapErr, now: s.nowFunc}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return s.mapErr(err)
	}
	return nil
}

func (s *Store) Users() store.Users {
	return &usersRepo{q: s.q, mapErr: s.mapErr, now: s.nowFunc}
}

func (s *Store) Invitations() store.Invitations {
	return &invitationsRepo{q: s.q, mapErr: s.mapErr}
}

type txStore struct {
	q      *Queries
	mapErr ErrorMapper
	now    func() time.Time
}

func (t *txStore) Users() store.Users {
	return &usersRepo{q: t.q, mapErr: t.mapErr, now: t.now}
}

func (t *txStore) Invitations() store.Invitations {
	return &invitationsRepo{q: t.q, mapErr: t.mapErr}
}

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

func requireRow(n int64, err error) error {
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func mapNullString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func mapNullTimePtr(nt sql.NullTime) *time.Time {
	if nt.Valid {
		val := nt.Time.UTC()
		return &val
	}
	return nil
}

func mapUser(row User) (domain.User, error) {
	role, err := domain.ParseRole(row.Role)
	if err != nil {
		return domain.User{}, fmt.Errorf("user %s: %w", row.ID, err)
	}
	return domain.User{
		ID:               row.ID,
		Email:            row.Email,
		PasswordHash:     row.PasswordHash,
		Role:             role,
		RefreshTokenHash: mapNullString(row.RefreshTokenHash),
		RefreshExpiresAt: mapNullTimePtr(row.RefreshExpiresAt),
		CreatedAt:        row.CreatedAt.UTC(),
		UpdatedAt:        row.UpdatedAt.UTC(),
	}, nil
}

func mapInvitation(row IssuerInvitation) domain.Invitation {
	return domain.Invitation{
		ID:        row.ID,
		TokenHash: row.TokenHash,
		Email:     row.Email,
		ExpiresAt: row.ExpiresAt.UTC(),
		CreatedBy: row.CreatedBy,
		Used:      row.Used,
		UsedBy:    mapNullString(row.UsedBy),
		UsedAt:    mapNullTimePtr(row.UsedAt),
		CreatedAt: row.CreatedAt.UTC(),
	}
}
