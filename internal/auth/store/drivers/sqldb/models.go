package sqldb

import (
	"database/sql"
	"time"
)

type User struct {
	ID               string
	Email            string
	PasswordHash     string
	Role             string
	RefreshTokenHash sql.NullString
	RefreshExpiresAt sql.NullTime
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type IssuerInvitation struct {
	ID        string
	TokenHash string
	Email     string
	ExpiresAt time.Time
	CreatedBy string
	Used      bool
	UsedBy    sql.NullString
	UsedAt    sql.NullTime
	CreatedAt time.Time
}
