package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/certvault/certauth/internal/auth/domain"
	"github.com/certvault/certauth/internal/auth/store"
	"github.com/certvault/certauth/pkg/slogx"
)

var ErrBootstrapConflict = errors.New("bootstrap email belongs to a non-admin account")

type BootstrapService struct {
	Store store.Store
	Auth  *AuthService
}

// SeedAdmin makes sure an admin account exists for req.AdminEmail. It
// returns the admin's id and whether it was created by this call. An
// existing admin is left untouched, including its password.
func (s *BootstrapService) SeedAdmin(ctx context.Context, req domain.BootstrapData) (string, bool, error) {
	l := slogx.FromContext(ctx)

	if req.AdminEmail == "" || req.AdminPassword == "" {
		return "", false, fmt.Errorf("%w: admin email and password are required", ErrInvalidRequest)
	}

	// 1. Already seeded?
	existing, err := s.Store.Users().GetUserByEmail(ctx, req.AdminEmail)
	switch {
	case err == nil:
		if existing.Role != domain.RoleAdmin {
			l.Error("bootstrap email is taken by a non-admin account",
				slog.String("user_id", existing.ID),
				slog.String("role", existing.Role.String()),
			)
			return "", false, ErrBootstrapConflict
		}
		l.Debug("admin already present", slog.String("user_id", existing.ID))
		return existing.ID, false, nil
	case !errors.Is(err, store.ErrNotFound):
		return "", false, persistence(err)
	}

	// 2. Create it
	id, err := s.Auth.Register(ctx, req.AdminEmail, req.AdminPassword, domain.RoleAdmin)
	if err != nil {
		l.Error("failed to create admin user", slog.Any("error", err))
		return "", false, err
	}

	l.Info("seeded admin user", slog.String("admin_user_id", id))
	return id, true, nil
}

// NeedsBootstrap reports whether the store holds no users at all.
func (s *BootstrapService) NeedsBootstrap(ctx context.Context) (bool, error) {
	empty, err := s.Store.Users().IsEmpty(ctx)
	if err != nil {
		return false, persistence(err)
	}
	return empty, nil
}
