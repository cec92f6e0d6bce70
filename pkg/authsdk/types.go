package authsdk

import "time"

// Roles understood by the service.
const (
	RoleAdmin    = "admin"
	RoleIssuer   = "issuer"
	RoleInvestor = "investor"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool   `json:"success" example:"false"`
	Message string `json:"message" example:"Invalid credentials"`
}

// MessageResponse is returned by operations with nothing else to report.
type MessageResponse struct {
	Success bool   `json:"success" example:"true"`
	Message string `json:"message,omitempty" example:"Logged out successfully"`
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email" example:"alice@example.com"`
	Password string `json:"password" example:"Passw0rd!"`
}

// UserSummary is the public part of a user returned at login.
type UserSummary struct {
	ID    string `json:"id" example:"01JB8Y3M8K2Q6V7W9X0Z1A2B3C"`
	Email string `json:"email" example:"alice@example.com"`
	Role  string `json:"role" example:"investor"`
}

// LoginResponse carries a fresh token pair.
type LoginResponse struct {
	Success      bool        `json:"success"`
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	User         UserSummary `json:"user"`
}

// RegisterRequest is the body of POST /api/auth/register.
type RegisterRequest struct {
	Email    string `json:"email" example:"alice@example.com"`
	Password string `json:"password" example:"Passw0rd!"`
}

// RegisterIssuerRequest is the body of POST /api/auth/register/issuer.
type RegisterIssuerRequest struct {
	Email    string `json:"email" example:"bob@issuer.com"`
	Password string `json:"password" example:"Passw0rd!"`
	Token    string `json:"token" example:"9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"`
}

// RegisterResponse reports the id of the created user.
type RegisterResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty" example:"Registration successful. You can now log in."`
	UserID  string `json:"userId"`
}

// RefreshRequest is the body of POST /api/auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// RefreshResponse carries a new access token. RefreshToken is only set when
// the server rotates refresh tokens.
type RefreshResponse struct {
	Success      bool   `json:"success"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// UserProfile is the full public view of a user.
type UserProfile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MeResponse is returned by GET /api/auth/me.
type MeResponse struct {
	Success bool        `json:"success"`
	User    UserProfile `json:"user"`
}

// UsersResponse is returned by GET /api/admin/users.
type UsersResponse struct {
	Success bool          `json:"success"`
	Users   []UserProfile `json:"users"`
}

// CreateIssuerLinkRequest is the body of POST /api/admin/create-issuer-link.
type CreateIssuerLinkRequest struct {
	IssuerEmail string `json:"issuerEmail" example:"bob@issuer.com"`
}

// CreateIssuerLinkResponse carries the invitation URL to hand to the issuer.
type CreateIssuerLinkResponse struct {
	Success        bool      `json:"success"`
	InvitationLink string    `json:"invitationLink"`
	ExpiresAt      time.Time `json:"expiresAt"`
}

// InvitationView describes an invitation without its secret.
type InvitationView struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedBy string    `json:"createdBy"`
	Used      bool      `json:"used"`
	UsedBy    string    `json:"usedBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// InvitationsResponse is returned by GET /api/admin/invitations.
type InvitationsResponse struct {
	Success     bool             `json:"success"`
	Invitations []InvitationView `json:"invitations"`
}

// HealthResponse is returned by /livez and /readyz.
type HealthResponse struct {
	Status  string        `json:"status" example:"ok"`
	Uptime  string        `json:"uptime,omitempty" example:"1h2m3s"`
	Version string        `json:"version,omitempty" example:"0.1.0"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports the state of each dependency checked by /readyz.
type HealthChecks struct {
	Database  string `json:"database" example:"ok"`
	RateLimit string `json:"rate_limit,omitempty" example:"memory"`
}
