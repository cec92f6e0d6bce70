package authsdk

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// refreshSkew is how long before expiry the access token is renewed.
const refreshSkew = 30 * time.Second

// ErrNoRefreshToken is returned when the access token has expired and the
// session cannot renew it.
var ErrNoRefreshToken = errors.New("authsdk: access token expired and no refresh token available")

// Session represents an authenticated session with automatic token refresh.
type Session struct {
	client *SDKClient

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time
	user         UserSummary
}

// tokenExpiry reads exp from a JWT without verifying it. The server is the
// only party that can verify; the client just needs to know when to renew.
func tokenExpiry(token string) time.Time {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil || claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Add(-refreshSkew)
}

// getValidToken returns a valid access token, automatically refreshing if expired.
func (s *Session) getValidToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	if s.expiresAt.IsZero() || time.Now().Before(s.expiresAt) {
		token := s.accessToken
		s.mu.RUnlock()
		return token, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another goroutine may have refreshed while we waited.
	if time.Now().Before(s.expiresAt) {
		return s.accessToken, nil
	}

	if s.refreshToken == "" {
		return "", ErrNoRefreshToken
	}

	if err := s.refreshLocked(ctx); err != nil {
		return "", err
	}
	return s.accessToken, nil
}

func (s *Session) refreshLocked(ctx context.Context) error {
	out, err := s.client.Refresh(ctx, s.refreshToken)
	if err != nil {
		return err
	}
	s.accessToken = out.AccessToken
	s.expiresAt = tokenExpiry(out.AccessToken)
	if out.RefreshToken != "" {
		s.refreshToken = out.RefreshToken
	}
	return nil
}

// Refresh forces an access token renewal.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refreshToken == "" {
		return ErrNoRefreshToken
	}
	return s.refreshLocked(ctx)
}

// AccessToken returns the current access token without checking expiration.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// RefreshToken returns the current refresh token.
func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

// User returns the user reported at login. It is empty for sessions built
// with NewSessionFromTokens.
func (s *Session) User() UserSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// Me returns the caller's profile.
func (s *Session) Me(ctx context.Context) (*UserProfile, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/api/auth/me", nil)
	if err != nil {
		return nil, err
	}

	var out MeResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// Logout revokes the server-side refresh token and forgets local tokens.
func (s *Session) Logout(ctx context.Context) error {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/api/auth/logout", nil)
	if err != nil {
		return err
	}

	var out MessageResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return err
	}

	s.mu.Lock()
	s.refreshToken = ""
	s.mu.Unlock()
	return nil
}

// CreateIssuerLink mints an issuer invitation. Admin only.
func (s *Session) CreateIssuerLink(ctx context.Context, issuerEmail string) (*CreateIssuerLinkResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/api/admin/create-issuer-link", CreateIssuerLinkRequest{
		IssuerEmail: issuerEmail,
	})
	if err != nil {
		return nil, err
	}

	var out CreateIssuerLinkResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListUsers returns every user. Admin only.
func (s *Session) ListUsers(ctx context.Context) ([]UserProfile, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/api/admin/users", nil)
	if err != nil {
		return nil, err
	}

	var out UsersResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Users, nil
}

// ListInvitations returns every invitation. Admin only.
func (s *Session) ListInvitations(ctx context.Context) ([]InvitationView, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/api/admin/invitations", nil)
	if err != nil {
		return nil, err
	}

	var out InvitationsResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Invitations, nil
}
