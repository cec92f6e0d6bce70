package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/certvault/certauth/internal/auth/domain"
	"github.com/certvault/certauth/internal/auth/store"
	"github.com/certvault/certauth/pkg/jwtx"
	"github.com/certvault/certauth/pkg/slogx"
)

// Identity is the caller behind a verified access token, as currently
// recorded in the store.
type Identity struct {
	UserID string
	Email  string
	Role   domain.Role
}

type AuthFailureReason int

const (
	ReasonNoToken AuthFailureReason = iota
	ReasonMalformedHeader
	ReasonInvalidToken
	ReasonUserNotFound
)

// AuthError explains why a request could not be authenticated. Error
// returns the message shown to clients.
type AuthError struct {
	Reason AuthFailureReason
	Err    error
}

func (e *AuthError) Error() string {
	switch e.Reason {
	case ReasonNoToken:
		return "No token provided"
	case ReasonMalformedHeader:
		return "Invalid token format"
	case ReasonUserNotFound:
		return "User not found"
	default:
		return "Invalid or expired token"
	}
}

func (e *AuthError) Unwrap() []error {
	var kind error
	switch e.Reason {
	case ReasonNoToken, ReasonMalformedHeader:
		kind = ErrMissingOrMalformedHeader
	case ReasonUserNotFound:
		kind = ErrUserNotFound
	default:
		kind = ErrInvalidToken
	}
	errs := []error{ErrNotAuthenticated, kind}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

type Decision int

const (
	DecisionNotAuthenticated Decision = iota
	DecisionForbidden
	DecisionAuthorized
)

func (d Decision) String() string {
	switch d {
	case DecisionAuthorized:
		return "authorized"
	case DecisionForbidden:
		return "forbidden"
	default:
		return "not_authenticated"
	}
}

// AuthzResult is the outcome of Authorize. Message is empty when the
// request is authorized.
type AuthzResult struct {
	Decision Decision
	Identity Identity
	Message  string
}

type Authorizer struct {
	Store store.Store
	Codec *jwtx.Codec
}

// Authenticate verifies the bearer token in header and loads the user it
// names. Failures to authenticate are *AuthError; any other error is a
// persistence failure.
func (a *Authorizer) Authenticate(ctx context.Context, header string) (Identity, error) {
	if header == "" {
		return Identity{}, &AuthError{Reason: ReasonNoToken}
	}

	token, err := jwtx.ExtractBearer(header)
	if err != nil {
		return Identity{}, &AuthError{Reason: ReasonMalformedHeader, Err: err}
	}

	claims, err := a.Codec.VerifyKind(token, jwtx.KindAccess)
	if err != nil {
		slogx.FromContext(ctx).Debug("access token rejected", slog.Any("error", err))
		return Identity{}, &AuthError{Reason: ReasonInvalidToken, Err: err}
	}

	user, err := a.Store.Users().GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Identity{}, &AuthError{Reason: ReasonUserNotFound, Err: err}
		}
		slogx.FromContext(ctx).Error("failed to load authenticated user", slog.Any("error", err))
		return Identity{}, persistence(err)
	}

	return Identity{UserID: user.ID, Email: user.Email, Role: user.Role}, nil
}

// Authorize authenticates header and requires the caller to hold exactly
// role. The error is non-nil only for persistence failures.
func (a *Authorizer) Authorize(ctx context.Context, header string, role domain.Role) (AuthzResult, error) {
	id, err := a.Authenticate(ctx, header)
	if err != nil {
		var authErr *AuthError
		if errors.As(err, &authErr) {
			return AuthzResult{Decision: DecisionNotAuthenticated, Message: authErr.Error()}, nil
		}
		return AuthzResult{}, err
	}

	if id.Role != role {
		return AuthzResult{
			Decision: DecisionForbidden,
			Identity: id,
			Message:  fmt.Sprintf("Access denied: %s role required", role),
		}, nil
	}
	return AuthzResult{Decision: DecisionAuthorized, Identity: id}, nil
}
