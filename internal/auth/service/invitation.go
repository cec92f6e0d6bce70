package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/certvault/certauth/internal/auth/domain"
	"github.com/certvault/certauth/internal/auth/store"
	"github.com/certvault/certauth/pkg/cryptox"
	"github.com/certvault/certauth/pkg/idx"
	"github.com/certvault/certauth/pkg/slogx"
)

const DefaultInvitationTTL = 7 * 24 * time.Hour

// IssuedInvitation is handed back to the admin once. The raw token only
// exists here and inside Link; the store keeps its fingerprint.
type IssuedInvitation struct {
	ID        string
	Link      string
	Token     string
	ExpiresAt time.Time
}

type InvitationService struct {
	Store   store.Store
	BaseURL string
	TTL     time.Duration
	Now     Clock
}

func (s *InvitationService) ttl() time.Duration {
	if s.TTL <= 0 {
		return DefaultInvitationTTL
	}
	return s.TTL
}

// CreateInvitation mints a single-use issuer registration link bound to
// issuerEmail. adminID is re-checked against the store rather than trusted
// from the caller's token.
func (s *InvitationService) CreateInvitation(ctx context.Context, issuerEmail, adminID string) (IssuedInvitation, error) {
	log := slogx.FromContext(ctx)

	issuerEmail = strings.TrimSpace(issuerEmail)
	if issuerEmail == "" {
		return IssuedInvitation{}, fmt.Errorf("%w: issuer email is required", ErrInvalidRequest)
	}

	// 1. Confirm the caller is still an admin
	if _, err := s.Store.Users().GetUserByIDAndRole(ctx, adminID, domain.RoleAdmin); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Warn("invitation requested by non-admin", slog.String("user_id", adminID))
			return IssuedInvitation{}, ErrUnauthorized
		}
		log.Error("failed to look up admin", slog.Any("error", err))
		return IssuedInvitation{}, persistence(err)
	}

	// 2. Mint the token
	token, err := cryptox.GenerateHexToken(cryptox.TokenSize256)
	if err != nil {
		log.Error("failed to generate invitation token", slog.Any("error", err))
		return IssuedInvitation{}, err
	}

	// 3. Persist its fingerprint
	now := s.Now.now()
	inv := domain.Invitation{
		ID:        idx.NewAt(now).String(),
		TokenHash: cryptox.FingerprintToken(token),
		Email:     issuerEmail,
		ExpiresAt: now.Add(s.ttl()),
		CreatedBy: adminID,
		CreatedAt: now,
	}
	if err := s.Store.Invitations().CreateInvitation(ctx, inv); err != nil {
		log.Error("failed to store invitation", slog.Any("error", err))
		return IssuedInvitation{}, persistence(err)
	}

	log.Info("issuer invitation created",
		slog.String("invitation_id", inv.ID),
		slog.String("created_by", adminID),
		slog.Time("expires_at", inv.ExpiresAt),
	)
	return IssuedInvitation{
		ID:        inv.ID,
		Link:      s.Link(token, issuerEmail),
		Token:     token,
		ExpiresAt: inv.ExpiresAt,
	}, nil
}

// Link renders the registration URL an invited issuer follows.
func (s *InvitationService) Link(token, email string) string {
	return fmt.Sprintf("%s/register/issuer?token=%s&email=%s",
		strings.TrimRight(s.BaseURL, "/"),
		url.QueryEscape(token),
		url.QueryEscape(email),
	)
}

// RedeemInvitation resolves token to an active invitation issued for email.
// It does not mark the invitation used; that happens inside the
// registration transaction.
func (s *InvitationService) RedeemInvitation(ctx context.Context, token, email string) (domain.Invitation, error) {
	if token == "" {
		return domain.Invitation{}, ErrInvalidInvitation
	}

	inv, err := s.Store.Invitations().GetActiveInvitationByTokenHash(ctx, cryptox.FingerprintToken(token), s.Now.now())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Invitation{}, ErrInvalidInvitation
		}
		slogx.FromContext(ctx).Error("failed to look up invitation", slog.Any("error", err))
		return domain.Invitation{}, persistence(err)
	}

	if inv.Email != email {
		return domain.Invitation{}, ErrInvitationEmailMismatch
	}
	return inv, nil
}

func (s *InvitationService) ListInvitations(ctx context.Context) ([]domain.Invitation, error) {
	invs, err := s.Store.Invitations().ListInvitations(ctx)
	if err != nil {
		return nil, persistence(err)
	}
	return invs, nil
}
