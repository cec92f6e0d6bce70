package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrUserExists         = errors.New("user_exists")
	ErrUserNotFound       = errors.New("user_not_found")
	ErrInvalidInvitation  = errors.New("invalid_invitation")
	ErrInvalidToken       = errors.New("invalid_token")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotAuthenticated   = errors.New("not_authenticated")
	ErrPersistence        = errors.New("persistence_failure")

	ErrMissingOrMalformedHeader = errors.New("missing_or_malformed_header")

	// ErrInvitationEmailMismatch is an ErrInvalidInvitation whose email did
	// not match the one the invitation was issued to.
	ErrInvitationEmailMismatch = fmt.Errorf("%w: email mismatch", ErrInvalidInvitation)
)

func persistence(err error) error {
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}
