package sqldb

import (
	"context"
	"time"
)

const userColumns = `id, email, password_hash, role, refresh_token_hash, refresh_expires_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (User, error) {
	var u User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Role,
		&u.RefreshTokenHash,
		&u.RefreshExpiresAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

const getUserByID = `SELECT ` + userColumns + ` FROM users WHERE id = ?`

func (q *Queries) GetUserByID(ctx context.Context, id string) (User, error) {
	return scanUser(q.queryRow(ctx, getUserByID, id))
}

const getUserByEmail = `SELECT ` + userColumns + ` FROM users WHERE email = ?`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(q.queryRow(ctx, getUserByEmail, email))
}

const getUserByIDAndRole = `SELECT ` + userColumns + ` FROM users WHERE id = ? AND role = ?`

func (q *Queries) GetUserByIDAndRole(ctx context.Context, id, role string) (User, error) {
	return scanUser(q.queryRow(ctx, getUserByIDAndRole, id, role))
}

const createUser = `INSERT INTO users (id, email, password_hash, role, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)`

type CreateUserParams struct {
	ID           string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) error {
	at := ts(arg.CreatedAt)
	_, err := q.exec(ctx, createUser, arg.ID, arg.Email, arg.PasswordHash, arg.Role, at, at)
	return err
}

const setRefreshTokenHash = `UPDATE users
SET refresh_token_hash = ?, refresh_expires_at = ?, updated_at = ?
WHERE id = ?`

func (q *Queries) SetRefreshTokenHash(ctx context.Context, id, hash string, expiresAt, now time.Time) (int64, error) {
	res, err := q.exec(ctx, setRefreshTokenHash, hash, ts(expiresAt), ts(now), id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const clearRefreshTokenHash = `UPDATE users
SET refresh_token_hash = NULL, refresh_expires_at = NULL, updated_at = ?
WHERE id = ?`

func (q *Queries) ClearRefreshTokenHash(ctx context.Context, id string, now time.Time) (int64, error) {
	res, err := q.exec(ctx, clearRefreshTokenHash, ts(now), id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const updateUserPasswordHash = `UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`

func (q *Queries) UpdateUserPasswordHash(ctx context.Context, id, hash string, now time.Time) (int64, error) {
	res, err := q.exec(ctx, updateUserPasswordHash, hash, ts(now), id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteUser = `DELETE FROM users WHERE id = ?`

func (q *Queries) DeleteUser(ctx context.Context, id string) (int64, error) {
	res, err := q.exec(ctx, deleteUser, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const listUsers = `SELECT ` + userColumns + ` FROM users ORDER BY created_at, id`

func (q *Queries) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := q.query(ctx, listUsers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, u)
	}
	return items, rows.Err()
}

const countUsers = `SELECT COUNT(*) FROM users`

func (q *Queries) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := q.queryRow(ctx, countUsers).Scan(&n)
	return n, err
}

const clearExpiredRefreshTokens = `UPDATE users
SET refresh_token_hash = NULL, refresh_expires_at = NULL, updated_at = ?
WHERE refresh_token_hash IS NOT NULL AND refresh_expires_at <= ?`

func (q *Queries) ClearExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	at := ts(now)
	res, err := q.exec(ctx, clearExpiredRefreshTokens, at, at)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
