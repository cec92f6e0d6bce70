package auth_test

import (
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/certvault/certauth/pkg/authsdk"
)

// TestIssuerInvitationFlow tests the complete flow:
// 1. Admin logs in and creates an issuer link
// 2. The issuer registers with the link's token
// 3. The issuer logs in with the issuer role
// 4. The invitation is listed as used and cannot be redeemed again
func TestIssuerInvitationFlow(t *testing.T) {
	baseURL, cleanup := setupAuthService(t)
	defer cleanup()

	client := authsdk.NewSDKClient(baseURL)
	ctx := t.Context()
	admin := loginAdmin(t, client)

	link, err := admin.CreateIssuerLink(ctx, "bob@issuer.test")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(link.InvitationLink, "https://certvault.test/register/issuer?token="))
	require.Contains(t, link.InvitationLink, "email=bob%40issuer.test")
	require.WithinDuration(t, time.Now().Add(7*24*time.Hour), link.ExpiresAt, time.Minute)

	token := inviteToken(t, link.InvitationLink)

	issuerID, err := client.RegisterIssuer(ctx, "bob@issuer.test", "bob-password-1", token)
	require.NoError(t, err)

	issuer, err := client.Login(ctx, "bob@issuer.test", "bob-password-1")
	require.NoError(t, err)
	require.Equal(t, "issuer", issuer.User().Role)

	invitations, err := admin.ListInvitations(ctx)
	require.NoError(t, err)
	require.Len(t, invitations, 1)
	require.True(t, invitations[0].Used)
	require.Equal(t, issuerID, invitations[0].UsedBy)

	_, err = client.RegisterIssuer(ctx, "bob@issuer.test", "bob-password-2", token)
	assertStatus(t, err, http.StatusBadRequest, "Invalid or expired invitation")
}

// TestInvitationEmailMustMatch verifies a token only registers its own email.
func TestInvitationEmailMustMatch(t *testing.T) {
	baseURL, cleanup := setupAuthService(t)
	defer cleanup()

	client := authsdk.NewSDKClient(baseURL)
	ctx := t.Context()
	admin := loginAdmin(t, client)

	link, err := admin.CreateIssuerLink(ctx, "bob@issuer.test")
	require.NoError(t, err)
	token := inviteToken(t, link.InvitationLink)

	_, err = client.RegisterIssuer(ctx, "mallory@issuer.test", "mallory-password", token)
	assertStatus(t, err, http.StatusBadRequest, "Email does not match invitation")

	// The failed attempt does not consume the invitation.
	_, err = client.RegisterIssuer(ctx, "bob@issuer.test", "bob-password-1", token)
	require.NoError(t, err)
}

// TestInvitationRedeemedOnce races registrations for one invitation against
// Postgres. Exactly one wins.
func TestInvitationRedeemedOnce(t *testing.T) {
	baseURL, cleanup := setupAuthService(t)
	defer cleanup()

	client := authsdk.NewSDKClient(baseURL)
	ctx := t.Context()
	admin := loginAdmin(t, client)

	link, err := admin.CreateIssuerLink(ctx, "bob@issuer.test")
	require.NoError(t, err)
	token := inviteToken(t, link.InvitationLink)

	const attempts = 4
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = client.RegisterIssuer(ctx, "bob@issuer.test", "bob-password-1", token)
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var apiErr *authsdk.APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	}
	require.Equal(t, 1, succeeded)
}

// TestNonAdminCannotInvite verifies the admin routes check the stored role.
func TestNonAdminCannotInvite(t *testing.T) {
	baseURL, cleanup := setupAuthService(t)
	defer cleanup()

	client := authsdk.NewSDKClient(baseURL)
	ctx := t.Context()

	_, err := client.Register(ctx, "alice@investor.test", "alice-password-1")
	require.NoError(t, err)
	investor, err := client.Login(ctx, "alice@investor.test", "alice-password-1")
	require.NoError(t, err)

	_, err = investor.CreateIssuerLink(ctx, "bob@issuer.test")
	assertStatus(t, err, http.StatusForbidden, "Access denied: admin role required")

	_, err = investor.ListUsers(ctx)
	assertStatus(t, err, http.StatusForbidden, "")
}
