package domain

import "time"

// Invitation pre-authorizes one issuer registration for a specific email.
type Invitation struct {
	ID        string
	TokenHash string // fingerprint of the hex token carried in the link
	Email     string
	ExpiresAt time.Time
	CreatedBy string
	Used      bool
	UsedBy    string // empty until redeemed
	UsedAt    *time.Time
	CreatedAt time.Time
}

