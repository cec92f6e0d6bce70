package http

import (
	"errors"
	"net/http"

	"github.com/certvault/certauth/internal/auth/service"
	"github.com/certvault/certauth/pkg/authsdk"
	"github.com/certvault/certauth/pkg/httpx"
	"github.com/certvault/certauth/pkg/slogx"
)

// AdminHandler serves the /api/admin endpoints. Every route is mounted
// behind RequireRole(admin).
type AdminHandler struct {
	InvitationService *service.InvitationService
	UserService       *service.UserService
}

// HandleCreateIssuerLink godoc
//
//	@Summary		Invite an issuer
//	@Description	Creates a single-use registration link for the given issuer email. The link expires after the configured invitation TTL.
//	@Tags			Admin
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.CreateIssuerLinkRequest		true	"Issuer email"
//	@Success		200		{object}	authsdk.CreateIssuerLinkResponse	"invitationLink, expiresAt"
//	@Failure		400		{object}	authsdk.ErrorResponse				"Issuer email is required"
//	@Failure		401		{object}	authsdk.ErrorResponse				"Not authenticated"
//	@Failure		403		{object}	authsdk.ErrorResponse				"Access denied: admin role required"
//	@Failure		500		{object}	authsdk.ErrorResponse				"Failed to create issuer invitation"
//	@Security		BearerAuth
//	@Router			/api/admin/create-issuer-link [post].
func (h *AdminHandler) HandleCreateIssuerLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	p, ok := principal(r)
	if !ok {
		httpx.WriteBearerError(w, "Not authenticated")
		return
	}

	var req authsdk.CreateIssuerLinkRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil || req.IssuerEmail == "" {
		httpx.WriteError(w, http.StatusBadRequest, "Issuer email is required")
		return
	}

	inv, err := h.InvitationService.CreateInvitation(ctx, req.IssuerEmail, p.UserID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest):
			httpx.WriteError(w, http.StatusBadRequest, "Issuer email is required")
		case errors.Is(err, service.ErrUnauthorized):
			httpx.WriteError(w, http.StatusForbidden, "Unauthorized: Admin privileges required")
		default:
			log.Error("failed to create invitation", "error", err)
			httpx.WriteError(w, http.StatusInternalServerError, "Failed to create issuer invitation")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.CreateIssuerLinkResponse{
		Success:        true,
		InvitationLink: inv.Link,
		ExpiresAt:      inv.ExpiresAt,
	})
}

// HandleListUsers godoc
//
//	@Summary		List users
//	@Description	Returns every account without password or session data.
//	@Tags			Admin
//	@Produce		json
//	@Success		200	{object}	authsdk.UsersResponse	"users"
//	@Failure		401	{object}	authsdk.ErrorResponse	"Not authenticated"
//	@Failure		403	{object}	authsdk.ErrorResponse	"Access denied: admin role required"
//	@Failure		500	{object}	authsdk.ErrorResponse	"Failed to fetch users"
//	@Security		BearerAuth
//	@Router			/api/admin/users [get].
func (h *AdminHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.UserService.ListUsers(r.Context())
	if err != nil {
		slogx.FromContext(r.Context()).Error("failed to list users", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "Failed to fetch users")
		return
	}

	out := make([]authsdk.UserProfile, 0, len(users))
	for _, u := range users {
		out = append(out, toProfile(u))
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.UsersResponse{Success: true, Users: out})
}

// HandleListInvitations godoc
//
//	@Summary		List invitations
//	@Description	Returns every issuer invitation, newest first. Tokens are never returned.
//	@Tags			Admin
//	@Produce		json
//	@Success		200	{object}	authsdk.InvitationsResponse	"invitations"
//	@Failure		401	{object}	authsdk.ErrorResponse		"Not authenticated"
//	@Failure		403	{object}	authsdk.ErrorResponse		"Access denied: admin role required"
//	@Failure		500	{object}	authsdk.ErrorResponse		"Failed to fetch invitations"
//	@Security		BearerAuth
//	@Router			/api/admin/invitations [get].
func (h *AdminHandler) HandleListInvitations(w http.ResponseWriter, r *http.Request) {
	invs, err := h.InvitationService.ListInvitations(r.Context())
	if err != nil {
		slogx.FromContext(r.Context()).Error("failed to list invitations", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "Failed to fetch invitations")
		return
	}

	out := make([]authsdk.InvitationView, 0, len(invs))
	for _, inv := range invs {
		out = append(out, authsdk.InvitationView{
			ID:        inv.ID,
			Email:     inv.Email,
			ExpiresAt: inv.ExpiresAt,
			CreatedBy: inv.CreatedBy,
			Used:      inv.Used,
			UsedBy:    inv.UsedBy,
			CreatedAt: inv.CreatedAt,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.InvitationsResponse{Success: true, Invitations: out})
}
