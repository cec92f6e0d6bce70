package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/certvault/certauth/internal/auth/domain"
	"github.com/certvault/certauth/internal/auth/store"
	"github.com/certvault/certauth/pkg/cryptox"
	"github.com/certvault/certauth/pkg/idx"
	"github.com/certvault/certauth/pkg/jwtx"
	"github.com/certvault/certauth/pkg/slogx"
)

// MaxPasswordLength bounds the input fed to the password hasher.
const MaxPasswordLength = 1024

type AuthService struct {
	Store       store.Store
	Codec       *jwtx.Codec
	Invitations *InvitationService

	// RotateRefreshTokens mints a new refresh token on every refresh and
	// retires the presented one.
	RotateRefreshTokens bool

	Now Clock
}

// LoginResult is returned by a successful Authenticate.
type LoginResult struct {
	domain.TokenPair
	User domain.User
}

// RefreshResult carries the new access token. RefreshToken is empty
// unless rotation is enabled.
type RefreshResult struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

var (
	dummyHashOnce sync.Once
	dummyHash     string
)

// burnPasswordCheck spends roughly the same time as a real verification so
// unknown emails cannot be told apart from wrong passwords by latency.
func burnPasswordCheck(password string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = cryptox.HashPassword("certauth-dummy-password")
	})
	if dummyHash != "" {
		_ = cryptox.VerifyPassword(password, dummyHash)
	}
}

func validateCredentials(email, password string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return "", fmt.Errorf("%w: email and password are required", ErrInvalidRequest)
	}
	if len(password) > MaxPasswordLength {
		return "", fmt.Errorf("%w: password too long", ErrInvalidRequest)
	}
	return email, nil
}

// Authenticate checks email and password and starts a new session. Any
// previous session of the same user is ended: only the newest refresh
// token remains valid.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (LoginResult, error) {
	log := slogx.FromContext(ctx)

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return LoginResult{}, fmt.Errorf("%w: email and password are required", ErrInvalidRequest)
	}
	// Registration refuses passwords this long, so one can never match.
	if len(password) > MaxPasswordLength {
		burnPasswordCheck(password[:MaxPasswordLength])
		log.Info("login failed", slog.String("reason", "password_too_long"))
		return LoginResult{}, ErrInvalidCredentials
	}

	// 1. Look up the user
	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			burnPasswordCheck(password)
			log.Info("login failed", slog.String("reason", "unknown_email"))
			return LoginResult{}, ErrInvalidCredentials
		}
		log.Error("failed to look up user", slog.Any("error", err))
		return LoginResult{}, persistence(err)
	}

	// 2. Verify the password
	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		if !errors.Is(err, cryptox.ErrPasswordMismatch) {
			log.Error("stored password hash is unusable",
				slog.String("user_id", user.ID),
				slog.Any("error", err),
			)
		}
		log.Info("login failed", slog.String("reason", "bad_password"), slog.String("user_id", user.ID))
		return LoginResult{}, ErrInvalidCredentials
	}

	// 3. Upgrade legacy hashes while the plaintext is at hand
	if cryptox.NeedsRehash(user.PasswordHash) {
		s.rehash(ctx, user.ID, password)
	}

	// 4. Issue tokens and record the refresh fingerprint
	pair, err := s.issueTokens(user)
	if err != nil {
		log.Error("failed to sign tokens", slog.Any("error", err))
		return LoginResult{}, err
	}
	if err := s.Store.Users().SetRefreshTokenHash(ctx, user.ID, cryptox.FingerprintToken(pair.RefreshToken), pair.RefreshExpiresAt, s.Now.now()); err != nil {
		log.Error("failed to store refresh token", slog.Any("error", err))
		return LoginResult{}, persistence(err)
	}

	log.Info("user logged in", slog.String("user_id", user.ID), slog.String("role", user.Role.String()))
	return LoginResult{TokenPair: pair, User: user}, nil
}

func (s *AuthService) rehash(ctx context.Context, userID, password string) {
	log := slogx.FromContext(ctx)
	hash, err := cryptox.HashPassword(password)
	if err != nil {
		log.Warn("failed to rehash legacy password", slog.Any("error", err))
		return
	}
	if err := s.Store.Users().UpdatePasswordHash(ctx, userID, hash, s.Now.now()); err != nil {
		log.Warn("failed to store rehashed password", slog.Any("error", err))
		return
	}
	log.Info("upgraded legacy password hash", slog.String("user_id", userID))
}

func (s *AuthService) issueTokens(user domain.User) (domain.TokenPair, error) {
	payload := jwtx.Payload{Subject: user.ID, Email: user.Email, Role: user.Role.String()}

	access, accessExp, err := s.Codec.Sign(payload, jwtx.KindAccess)
	if err != nil {
		return domain.TokenPair{}, err
	}
	refresh, refreshExp, err := s.Codec.Sign(payload, jwtx.KindRefresh)
	if err != nil {
		return domain.TokenPair{}, err
	}
	return domain.TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Register creates an account with the given role and returns its id.
func (s *AuthService) Register(ctx context.Context, email, password string, role domain.Role) (string, error) {
	log := slogx.FromContext(ctx)

	email, err := validateCredentials(email, password)
	if err != nil {
		return "", err
	}
	if !role.Valid() {
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalidRequest, role)
	}

	if err := s.ensureEmailFree(ctx, email); err != nil {
		return "", err
	}

	user, err := s.newUser(email, password, role)
	if err != nil {
		log.Error("failed to hash password", slog.Any("error", err))
		return "", err
	}
	if err := s.Store.Users().CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return "", ErrUserExists
		}
		log.Error("failed to create user", slog.Any("error", err))
		return "", persistence(err)
	}

	log.Info("user registered", slog.String("user_id", user.ID), slog.String("role", role.String()))
	return user.ID, nil
}

// RegisterIssuer creates an issuer account from an invitation. The account
// and the invitation's used flag are written in one transaction, so a
// failed insert leaves the invitation redeemable and a lost race on the
// invitation leaves no account behind.
func (s *AuthService) RegisterIssuer(ctx context.Context, email, password, token string) (string, error) {
	log := slogx.FromContext(ctx)

	email, err := validateCredentials(email, password)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", fmt.Errorf("%w: invitation token is required", ErrInvalidRequest)
	}

	// 1. Resolve the invitation
	inv, err := s.Invitations.RedeemInvitation(ctx, token, email)
	if err != nil {
		return "", err
	}

	// 2. Cheap duplicate check before paying for the hash
	if err := s.ensureEmailFree(ctx, email); err != nil {
		return "", err
	}

	user, err := s.newUser(email, password, domain.RoleIssuer)
	if err != nil {
		log.Error("failed to hash password", slog.Any("error", err))
		return "", err
	}

	// 3. Create the user and consume the invitation together
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().CreateUser(ctx, user); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return ErrUserExists
			}
			return persistence(err)
		}
		if err := tx.Invitations().MarkInvitationUsed(ctx, inv.ID, user.ID, s.Now.now()); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidInvitation
			}
			return persistence(err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrPersistence) {
			log.Error("failed to register issuer", slog.Any("error", err))
		} else {
			log.Info("issuer registration rejected", slog.String("invitation_id", inv.ID), slog.Any("error", err))
		}
		return "", err
	}

	log.Info("issuer registered",
		slog.String("user_id", user.ID),
		slog.String("invitation_id", inv.ID),
	)
	return user.ID, nil
}

func (s *AuthService) ensureEmailFree(ctx context.Context, email string) error {
	_, err := s.Store.Users().GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		return ErrUserExists
	case errors.Is(err, store.ErrNotFound):
		return nil
	default:
		slogx.FromContext(ctx).Error("failed to look up user", slog.Any("error", err))
		return persistence(err)
	}
}

func (s *AuthService) newUser(email, password string, role domain.Role) (domain.User, error) {
	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return domain.User{}, err
	}
	now := s.Now.now()
	return domain.User{
		ID:           idx.NewAt(now).String(),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Refresh exchanges a refresh token for a new access token. The token must
// be the one recorded by the user's latest login.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (RefreshResult, error) {
	log := slogx.FromContext(ctx)

	if refreshToken == "" {
		return RefreshResult{}, fmt.Errorf("%w: refresh token is required", ErrInvalidRequest)
	}

	claims, err := s.Codec.VerifyKind(refreshToken, jwtx.KindRefresh)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	user, err := s.Store.Users().GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return RefreshResult{}, ErrUserNotFound
		}
		log.Error("failed to look up user", slog.Any("error", err))
		return RefreshResult{}, persistence(err)
	}

	if !cryptox.MatchFingerprint(refreshToken, user.RefreshTokenHash) {
		log.Info("refresh token rejected", slog.String("user_id", user.ID), slog.Bool("has_session", user.HasSession()))
		return RefreshResult{}, ErrInvalidToken
	}

	if !s.RotateRefreshTokens {
		access, exp, err := s.Codec.Sign(jwtx.Payload{Subject: user.ID, Email: user.Email, Role: user.Role.String()}, jwtx.KindAccess)
		if err != nil {
			log.Error("failed to sign access token", slog.Any("error", err))
			return RefreshResult{}, err
		}
		return RefreshResult{AccessToken: access, AccessExpiresAt: exp}, nil
	}

	pair, err := s.issueTokens(user)
	if err != nil {
		log.Error("failed to sign tokens", slog.Any("error", err))
		return RefreshResult{}, err
	}
	if err := s.Store.Users().SetRefreshTokenHash(ctx, user.ID, cryptox.FingerprintToken(pair.RefreshToken), pair.RefreshExpiresAt, s.Now.now()); err != nil {
		log.Error("failed to rotate refresh token", slog.Any("error", err))
		return RefreshResult{}, persistence(err)
	}
	return RefreshResult{
		AccessToken:      pair.AccessToken,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshToken:     pair.RefreshToken,
		RefreshExpiresAt: pair.RefreshExpiresAt,
	}, nil
}

// Logout ends the user's session. Logging out twice is not an error.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	if err := s.Store.Users().ClearRefreshTokenHash(ctx, userID, s.Now.now()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		slogx.FromContext(ctx).Error("failed to clear refresh token", slog.Any("error", err))
		return persistence(err)
	}
	slogx.FromContext(ctx).Info("user logged out", slog.String("user_id", userID))
	return nil
}

// Me returns the stored profile for userID.
func (s *AuthService) Me(ctx context.Context, userID string) (domain.User, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, persistence(err)
	}
	return user, nil
}

// ResetPassword replaces the password of the account registered under email
// and ends its session.
func (s *AuthService) ResetPassword(ctx context.Context, email, newPassword string) error {
	log := slogx.FromContext(ctx)

	email, err := validateCredentials(email, newPassword)
	if err != nil {
		return err
	}

	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return persistence(err)
	}

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		log.Error("failed to hash password", slog.Any("error", err))
		return err
	}

	now := s.Now.now()
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().UpdatePasswordHash(ctx, user.ID, hash, now); err != nil {
			return err
		}
		return tx.Users().ClearRefreshTokenHash(ctx, user.ID, now)
	})
	if err != nil {
		log.Error("failed to reset password", slog.Any("error", err))
		return persistence(err)
	}

	log.Info("password reset", slog.String("user_id", user.ID))
	return nil
}
