package authsdk

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// SDKClient is a client for the certauth service.
// It provides access to unauthenticated operations and creates Sessions.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewSDKClient creates a new auth service client.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Register creates an investor account and returns its id.
func (c *SDKClient) Register(ctx context.Context, email, password string) (string, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/auth/register", RegisterRequest{
		Email:    email,
		Password: password,
	})
	if err != nil {
		return "", err
	}

	var out RegisterResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return "", err
	}
	return out.UserID, nil
}

// RegisterIssuer redeems an invitation token and creates an issuer account.
func (c *SDKClient) RegisterIssuer(ctx context.Context, email, password, token string) (string, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/auth/register/issuer", RegisterIssuerRequest{
		Email:    email,
		Password: password,
		Token:    token,
	})
	if err != nil {
		return "", err
	}

	var out RegisterResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return "", err
	}
	return out.UserID, nil
}

// Login exchanges credentials for a token pair and wraps it in a Session.
func (c *SDKClient) Login(ctx context.Context, email, password string) (*Session, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/auth/login", LoginRequest{
		Email:    email,
		Password: password,
	})
	if err != nil {
		return nil, err
	}

	var out LoginResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}

	s := c.NewSessionFromTokens(out.AccessToken, out.RefreshToken)
	s.user = out.User
	return s, nil
}

// Refresh exchanges a refresh token for a new access token.
func (c *SDKClient) Refresh(ctx context.Context, refreshToken string) (*RefreshResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/auth/refresh", RefreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return nil, err
	}

	var out RefreshResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// NewSessionFromTokens creates a session from tokens obtained elsewhere.
func (c *SDKClient) NewSessionFromTokens(accessToken, refreshToken string) *Session {
	return &Session{
		client:       c,
		accessToken:  accessToken,
		refreshToken: refreshToken,
		expiresAt:    tokenExpiry(accessToken),
	}
}
