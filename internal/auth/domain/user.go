package domain

import "time"

type User struct {
	ID           string
	Email        string
	PasswordHash string // argon2id (or legacy bcrypt) encoded
	Role         Role

	// RefreshTokenHash is the fingerprint of the single live refresh token,
	// empty when the user has no session.
	RefreshTokenHash string
	RefreshExpiresAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasSession reports whether a refresh token is currently on record.
func (u User) HasSession() bool {
	return u.RefreshTokenHash != ""
}
