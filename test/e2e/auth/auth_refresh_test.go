package auth_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/certvault/certauth/pkg/authsdk"
)

// TestRegisterLoginRefreshLogout walks an investor session end to end:
// 1. Register an investor
// 2. Login and read the profile
// 3. Refresh the access token
// 4. Logout; the old refresh token stops working
func TestRegisterLoginRefreshLogout(t *testing.T) {
	baseURL, cleanup := setupAuthService(t)
	defer cleanup()

	client := authsdk.NewSDKClient(baseURL)
	ctx := t.Context()

	userID, err := client.Register(ctx, "alice@investor.test", "alice-password-1")
	require.NoError(t, err)
	require.NotEmpty(t, userID)

	session, err := client.Login(ctx, "alice@investor.test", "alice-password-1")
	require.NoError(t, err)
	require.Equal(t, userID, session.User().ID)
	require.Equal(t, "investor", session.User().Role)

	me, err := session.Me(ctx)
	require.NoError(t, err)
	require.Equal(t, "alice@investor.test", me.Email)

	oldAccess := session.AccessToken()
	refreshToken := session.RefreshToken()

	resp, err := client.Refresh(ctx, refreshToken)
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
	require.NotEqual(t, oldAccess, resp.AccessToken, "a fresh access token is minted")
	require.Empty(t, resp.RefreshToken, "refresh tokens are not rotated by default")

	require.NoError(t, session.Logout(ctx))

	_, err = client.Refresh(ctx, refreshToken)
	assertStatus(t, err, http.StatusUnauthorized, "Invalid refresh token")
}

// TestLoginEndsPreviousSession verifies a user holds one session at a time.
func TestLoginEndsPreviousSession(t *testing.T) {
	baseURL, cleanup := setupAuthService(t)
	defer cleanup()

	client := authsdk.NewSDKClient(baseURL)
	ctx := t.Context()

	first := loginAdmin(t, client)
	second := loginAdmin(t, client)

	_, err := client.Refresh(ctx, first.RefreshToken())
	assertStatus(t, err, http.StatusUnauthorized, "Invalid refresh token")

	_, err = client.Refresh(ctx, second.RefreshToken())
	require.NoError(t, err)
}
