package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Default lifetimes, overridable per deployment.
const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 24 * time.Hour
)

// Kind separates access tokens from refresh tokens. Both are signed with the
// same key, so the kind claim is what stops one being used as the other.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

func (k Kind) Valid() bool {
	return k == KindAccess || k == KindRefresh
}

// Payload is the caller-supplied part of a token. Refresh tokens only carry
// the subject.
type Payload struct {
	Subject string
	Email   string
	Role    string
}

// Claims is the full claim set carried in both token kinds.
type Claims struct {
	jwt.RegisteredClaims

	Kind  Kind   `json:"kind"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// NewClaims builds claims for the given kind. Email and role are dropped
// from refresh tokens.
func NewClaims(p Payload, kind Kind, issuer string, ttl time.Duration, now time.Time) Claims {
	c := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   p.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Kind: kind,
	}
	if kind == KindAccess {
		c.Email = p.Email
		c.Role = p.Role
	}
	return c
}

// Payload returns the caller-visible part of the claims.
func (c *Claims) Payload() Payload {
	return Payload{Subject: c.Subject, Email: c.Email, Role: c.Role}
}

// ValidateIssuer checks the issuer matches expected. An empty expectation
// enforces nothing.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil
	}
	if c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}

// ValidateKind checks the token was minted for the expected purpose.
func (c *Claims) ValidateKind(expected Kind) error {
	if c.Kind != expected {
		return ErrKindMismatch
	}
	return nil
}
