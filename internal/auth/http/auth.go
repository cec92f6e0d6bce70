package http

import (
	"errors"
	"net/http"

	"github.com/certvault/certauth/internal/auth/domain"
	"github.com/certvault/certauth/internal/auth/service"
	"github.com/certvault/certauth/pkg/authsdk"
	"github.com/certvault/certauth/pkg/httpx"
	"github.com/certvault/certauth/pkg/slogx"
)

// AuthHandler serves the /api/auth endpoints.
type AuthHandler struct {
	AuthService *service.AuthService
}

// HandleLogin godoc
//
//	@Summary		Log in
//	@Description	Exchanges email and password for an access token and a refresh token.
//	@Description	A successful login ends any previous session of the same user.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.LoginRequest	true	"Credentials"
//	@Success		200		{object}	authsdk.LoginResponse	"accessToken, refreshToken, user"
//	@Failure		400		{object}	authsdk.ErrorResponse	"missing fields"
//	@Failure		401		{object}	authsdk.ErrorResponse	"Invalid credentials"
//	@Failure		429		{object}	authsdk.ErrorResponse	"rate limited"
//	@Failure		500		{object}	authsdk.ErrorResponse	"Authentication failed"
//	@Router			/api/auth/login [post].
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req authsdk.LoginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil || req.Email == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	res, err := h.AuthService.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			httpx.WriteError(w, http.StatusUnauthorized, "Invalid credentials")
		case errors.Is(err, service.ErrInvalidRequest):
			httpx.WriteError(w, http.StatusBadRequest, "Email and password are required")
		default:
			slogx.FromContext(ctx).Error("login failed", "error", err)
			httpx.WriteError(w, http.StatusInternalServerError, "Authentication failed")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.LoginResponse{
		Success:      true,
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		User: authsdk.UserSummary{
			ID:    res.User.ID,
			Email: res.User.Email,
			Role:  res.User.Role.String(),
		},
	})
}

// HandleRegister godoc
//
//	@Summary		Register an investor
//	@Description	Creates an investor account. Issuers register through an invitation and admins are seeded by operators.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.RegisterRequest		true	"Credentials"
//	@Success		200		{object}	authsdk.RegisterResponse	"userId"
//	@Failure		400		{object}	authsdk.ErrorResponse		"missing fields or User already exists"
//	@Failure		429		{object}	authsdk.ErrorResponse		"rate limited"
//	@Failure		500		{object}	authsdk.ErrorResponse		"Registration failed"
//	@Router			/api/auth/register [post].
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req authsdk.RegisterRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil || req.Email == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	id, err := h.AuthService.Register(ctx, req.Email, req.Password, domain.RoleInvestor)
	if err != nil {
		writeRegistrationError(w, r, err, "Registration failed")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.RegisterResponse{
		Success: true,
		Message: "Registration successful. You can now log in.",
		UserID:  id,
	})
}

// HandleRegisterIssuer godoc
//
//	@Summary		Register an issuer
//	@Description	Creates an issuer account from an invitation. The email must match the invited one exactly.
//	@Description	The invitation is consumed in the same transaction that creates the account.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.RegisterIssuerRequest	true	"Credentials and invitation token"
//	@Success		200		{object}	authsdk.RegisterResponse		"userId"
//	@Failure		400		{object}	authsdk.ErrorResponse			"missing fields, invalid invitation or User already exists"
//	@Failure		429		{object}	authsdk.ErrorResponse			"rate limited"
//	@Failure		500		{object}	authsdk.ErrorResponse			"Issuer registration failed"
//	@Router			/api/auth/register/issuer [post].
func (h *AuthHandler) HandleRegisterIssuer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req authsdk.RegisterIssuerRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil || req.Email == "" || req.Password == "" || req.Token == "" {
		httpx.WriteError(w, http.StatusBadRequest, "Email, password, and invitation token are required")
		return
	}

	id, err := h.AuthService.RegisterIssuer(ctx, req.Email, req.Password, req.Token)
	if err != nil {
		writeRegistrationError(w, r, err, "Issuer registration failed")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.RegisterResponse{
		Success: true,
		Message: "Issuer registration successful. You can now log in.",
		UserID:  id,
	})
}

func writeRegistrationError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrUserExists):
		httpx.WriteError(w, http.StatusBadRequest, "User already exists")
	case errors.Is(err, service.ErrInvitationEmailMismatch):
		httpx.WriteError(w, http.StatusBadRequest, "Email does not match invitation")
	case errors.Is(err, service.ErrInvalidInvitation):
		httpx.WriteError(w, http.StatusBadRequest, "Invalid or expired invitation")
	case errors.Is(err, service.ErrInvalidRequest):
		httpx.WriteError(w, http.StatusBadRequest, "Invalid registration request")
	default:
		slogx.FromContext(r.Context()).Error("registration failed", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, fallback)
	}
}

// HandleRefresh godoc
//
//	@Summary		Refresh the access token
//	@Description	Exchanges the refresh token of the current session for a new access token.
//	@Description	When rotation is enabled a new refresh token is returned as well and the presented one stops working.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.RefreshRequest	true	"Refresh token"
//	@Success		200		{object}	authsdk.RefreshResponse	"accessToken"
//	@Failure		400		{object}	authsdk.ErrorResponse	"Refresh token is required"
//	@Failure		401		{object}	authsdk.ErrorResponse	"Invalid refresh token"
//	@Failure		500		{object}	authsdk.ErrorResponse	"Token refresh failed"
//	@Router			/api/auth/refresh [post].
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req authsdk.RefreshRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil || req.RefreshToken == "" {
		httpx.WriteError(w, http.StatusBadRequest, "Refresh token is required")
		return
	}

	res, err := h.AuthService.Refresh(ctx, req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidToken):
			httpx.WriteError(w, http.StatusUnauthorized, "Invalid refresh token")
		case errors.Is(err, service.ErrUserNotFound):
			httpx.WriteError(w, http.StatusUnauthorized, "User not found")
		default:
			slogx.FromContext(ctx).Error("refresh failed", "error", err)
			httpx.WriteError(w, http.StatusInternalServerError, "Token refresh failed")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.RefreshResponse{
		Success:      true,
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
	})
}

// HandleLogout godoc
//
//	@Summary		Log out
//	@Description	Ends the caller's session. Access tokens already issued stay valid until they expire.
//	@Tags			Auth
//	@Produce		json
//	@Success		200	{object}	authsdk.MessageResponse	"Logged out successfully"
//	@Failure		401	{object}	authsdk.ErrorResponse	"Not authenticated"
//	@Failure		500	{object}	authsdk.ErrorResponse	"Logout failed"
//	@Security		BearerAuth
//	@Router			/api/auth/logout [post].
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	p, ok := principal(r)
	if !ok {
		httpx.WriteBearerError(w, "Not authenticated")
		return
	}

	if err := h.AuthService.Logout(ctx, p.UserID); err != nil {
		slogx.FromContext(ctx).Error("logout failed", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "Logout failed")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{
		Success: true,
		Message: "Logged out successfully",
	})
}

// HandleMe godoc
//
//	@Summary		Current user
//	@Description	Returns the stored profile of the authenticated caller.
//	@Tags			Auth
//	@Produce		json
//	@Success		200	{object}	authsdk.MeResponse		"user"
//	@Failure		401	{object}	authsdk.ErrorResponse	"Not authenticated"
//	@Failure		404	{object}	authsdk.ErrorResponse	"User not found"
//	@Failure		500	{object}	authsdk.ErrorResponse	"Failed to retrieve user data"
//	@Security		BearerAuth
//	@Router			/api/auth/me [get].
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	p, ok := principal(r)
	if !ok {
		httpx.WriteBearerError(w, "Not authenticated")
		return
	}

	user, err := h.AuthService.Me(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "User not found")
			return
		}
		slogx.FromContext(ctx).Error("failed to load profile", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "Failed to retrieve user data")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.MeResponse{
		Success: true,
		User:    toProfile(user),
	})
}

func toProfile(u domain.User) authsdk.UserProfile {
	return authsdk.UserProfile{
		ID:        u.ID,
		Email:     u.Email,
		Role:      u.Role.String(),
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
