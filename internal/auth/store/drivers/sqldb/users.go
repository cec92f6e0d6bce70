package sqldb

import (
	"context"
	"time"

	"github.com/certvault/certauth/internal/auth/domain"
)

type usersRepo struct {
	q      *Queries
	mapErr ErrorMapper
	now    func() time.Time
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	row, err := r.q.GetUserByID(ctx, id)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return mapUser(row)
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row, err := r.q.GetUserByEmail(ctx, email)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return mapUser(row)
}

func (r *usersRepo) GetUserByIDAndRole(ctx context.Context, id string, role domain.Role) (domain.User, error) {
	row, err := r.q.GetUserByIDAndRole(ctx, id, string(role))
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return mapUser(row)
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	createdAt := u.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now()
	}
	err := r.q.CreateUser(ctx, CreateUserParams{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		CreatedAt:    createdAt,
	})
	return r.mapErr(err)
}

func (r *usersRepo) SetRefreshTokenHash(ctx context.Context, userID, hash string, expiresAt, now time.Time) error {
	n, err := r.q.SetRefreshTokenHash(ctx, userID, hash, expiresAt, now)
	return requireRow(n, r.mapErr(err))
}

func (r *usersRepo) ClearRefreshTokenHash(ctx context.Context, userID string, now time.Time) error {
	n, err := r.q.ClearRefreshTokenHash(ctx, userID, now)
	return requireRow(n, r.mapErr(err))
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, userID, newHash string, now time.Time) error {
	n, err := r.q.UpdateUserPasswordHash(ctx, userID, newHash, now)
	return requireRow(n, r.mapErr(err))
}

func (r *usersRepo) DeleteUser(ctx context.Context, userID string) error {
	n, err := r.q.DeleteUser(ctx, userID)
	return requireRow(n, r.mapErr(err))
}

func (r *usersRepo) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.q.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.User, 0, len(rows))
	for _, row := range rows {
		u, err := mapUser(row)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

func (r *usersRepo) IsEmpty(ctx context.Context) (bool, error) {
	count, err := r.q.CountUsers(ctx)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

func (r *usersRepo) ClearExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	return r.q.ClearExpiredRefreshTokens(ctx, now)
}
