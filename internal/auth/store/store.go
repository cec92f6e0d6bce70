package store

import (
	"context"
	"errors"
	"time"

	"github.com/certvault/certauth/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite,
// postgres) implement this. Repositories are reached through methods so
// that a transaction can hand out the same repositories bound to itself,
// and so that nothing can open a transaction within a transaction.
type Store interface {
	Users() Users
	Invitations() Invitations

	ApplyMigrations() error

	// WithTx executes fn within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases the connection pool.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx exposes the repositories bound to an open transaction.
type Tx interface {
	Users() Users
	Invitations() Invitations
}

type Users interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail matches the stored email exactly (case-sensitive).
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// GetUserByIDAndRole returns ErrNotFound unless the user exists and
	// holds role.
	GetUserByIDAndRole(ctx context.Context, id string, role domain.Role) (domain.User, error)

	// CreateUser inserts a new user (id is provided by app via ULID).
	// A duplicate email yields ErrAlreadyExists.
	CreateUser(ctx context.Context, u domain.User) error

	// SetRefreshTokenHash overwrites the user's refresh fingerprint, ending
	// any previous session. now becomes updated_at.
	SetRefreshTokenHash(ctx context.Context, userID, hash string, expiresAt, now time.Time) error

	// ClearRefreshTokenHash sets the fingerprint to NULL. Clearing an already
	// clear user succeeds.
	ClearRefreshTokenHash(ctx context.Context, userID string, now time.Time) error

	// UpdatePasswordHash sets the password hash and bumps updated_at to now.
	UpdatePasswordHash(ctx context.Context, userID, newHash string, now time.Time) error

	// DeleteUser removes the user. Users referenced as an invitation creator
	// cannot be deleted.
	DeleteUser(ctx context.Context, userID string) error

	// ListUsers returns all users, oldest first.
	ListUsers(ctx context.Context) ([]domain.User, error)

	// IsEmpty returns true if there are no users.
	IsEmpty(ctx context.Context) (bool, error)

	// ClearExpiredRefreshTokens drops fingerprints whose expiry is at or
	// before now and returns how many sessions were ended.
	ClearExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}

type Invitations interface {
	// CreateInvitation writes a new invitation keyed by its token fingerprint.
	CreateInvitation(ctx context.Context, inv domain.Invitation) error

	// GetActiveInvitationByTokenHash returns an unused invitation whose
	// expiry is after now.
	GetActiveInvitationByTokenHash(ctx context.Context, hash string, now time.Time) (domain.Invitation, error)

	// MarkInvitationUsed flips used only if the invitation is still unused
	// and unexpired at now. It returns ErrNotFound when nothing matched, so
	// of two concurrent redeemers exactly one succeeds.
	MarkInvitationUsed(ctx context.Context, id, usedBy string, now time.Time) error

	// ListInvitations returns all invitations, newest first.
	ListInvitations(ctx context.Context) ([]domain.Invitation, error)
}
