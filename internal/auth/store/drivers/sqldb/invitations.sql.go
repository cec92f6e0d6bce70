package sqldb

import (
	"context"
	"time"
)

const invitationColumns = `id, token_hash, email, expires_at, created_by, used, used_by, used_at, created_at`

func scanInvitation(row rowScanner) (IssuerInvitation, error) {
	var i IssuerInvitation
	err := row.Scan(
		&i.ID,
		&i.TokenHash,
		&i.Email,
		&i.ExpiresAt,
		&i.CreatedBy,
		&i.Used,
		&i.UsedBy,
		&i.UsedAt,
		&i.CreatedAt,
	)
	return i, err
}

const createInvitation = `INSERT INTO issuer_invitations (id, token_hash, email, expires_at, created_by, used, created_at)
VALUES (?, ?, ?, ?, ?, FALSE, ?)`

type CreateInvitationParams struct {
	ID        string
	TokenHash string
	Email     string
	ExpiresAt time.Time
	CreatedBy string
	CreatedAt time.Time
}

func (q *Queries) CreateInvitation(ctx context.Context, arg CreateInvitationParams) error {
	_, err := q.exec(ctx, createInvitation,
		arg.ID, arg.TokenHash, arg.Email, ts(arg.ExpiresAt), arg.CreatedBy, ts(arg.CreatedAt))
	return err
}

const getActiveInvitationByTokenHash = `SELECT ` + invitationColumns + `
FROM issuer_invitations
WHERE token_hash = ? AND used = FALSE AND expires_at > ?`

func (q *Queries) GetActiveInvitationByTokenHash(ctx context.Context, hash string, now time.Time) (IssuerInvitation, error) {
	return scanInvitation(q.queryRow(ctx, getActiveInvitationByTokenHash, hash, ts(now)))
}

// The guard repeats the active-invitation predicate so the flip is a
// compare-and-set.
const markInvitationUsed = `UPDATE issuer_invitations
SET used = TRUE, used_by = ?, used_at = ?
WHERE id = ? AND used = FALSE AND expires_at > ?`

func (q *Queries) MarkInvitationUsed(ctx context.Context, id, usedBy string, now time.Time) (int64, error) {
	at := ts(now)
	res, err := q.exec(ctx, markInvitationUsed, usedBy, at, id, at)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const listInvitations = `SELECT ` + invitationColumns + ` FROM issuer_invitations ORDER BY created_at DESC, id DESC`

func (q *Queries) ListInvitations(ctx context.Context) ([]IssuerInvitation, error) {
	rows, err := q.query(ctx, listInvitations)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []IssuerInvitation
	for rows.Next() {
		i, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}
