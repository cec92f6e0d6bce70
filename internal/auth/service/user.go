package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/certvault/certauth/internal/auth/domain"
	"github.com/certvault/certauth/internal/auth/store"
	"github.com/certvault/certauth/pkg/slogx"
)

type UserService struct {
	Store store.Store
}

// ListUsers returns every account, oldest first.
func (s *UserService) ListUsers(ctx context.Context) ([]domain.User, error) {
	users, err := s.Store.Users().ListUsers(ctx)
	if err != nil {
		return nil, persistence(err)
	}
	return users, nil
}

// DeleteUserByEmail removes an account. Admins that created invitations
// cannot be removed while those invitations exist.
func (s *UserService) DeleteUserByEmail(ctx context.Context, email string) error {
	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return persistence(err)
	}
	if err := s.Store.Users().DeleteUser(ctx, user.ID); err != nil {
		return persistence(err)
	}
	slogx.FromContext(ctx).Info("user deleted", slog.String("user_id", user.ID))
	return nil
}
