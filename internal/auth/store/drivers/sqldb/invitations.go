package sqldb

import (
	"context"
	"time"

	"github.com/certvault/certauth/internal/auth/domain"
)

type invitationsRepo struct {
	q      *Queries
	mapErr ErrorMapper
}

func (r *invitationsRepo) CreateInvitation(ctx context.Context, inv domain.Invitation) error {
	err := r.q.CreateInvitation(ctx, CreateInvitationParams{
		ID:        inv.ID,
		TokenHash: inv.TokenHash,
		Email:     inv.Email,
		ExpiresAt: inv.ExpiresAt,
		CreatedBy: inv.CreatedBy,
		CreatedAt: inv.CreatedAt,
	})
	return r.mapErr(err)
}

func (r *invitationsRepo) GetActiveInvitationByTokenHash(
	ctx context.Context,
	hash string,
	now time.Time,
) (domain.Invitation, error) {
	row, err := r.q.GetActiveInvitationByTokenHash(ctx, hash, now)
	if err != nil {
		return domain.Invitation{}, mapNotFound(err)
	}
	return mapInvitation(row), nil
}

func (r *invitationsRepo) MarkInvitationUsed(ctx context.Context, id, usedBy string, now time.Time) error {
	n, err := r.q.MarkInvitationUsed(ctx, id, usedBy, now)
	return requireRow(n, r.mapErr(err))
}

func (r *invitationsRepo) ListInvitations(ctx context.Context) ([]domain.Invitation, error) {
	rows, err := r.q.ListInvitations(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Invitation, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapInvitation(row))
	}
	return out, nil
}
