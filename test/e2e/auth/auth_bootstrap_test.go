package auth_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/certvault/certauth/pkg/authsdk"
)

// TestBootstrapSeedsAdmin verifies the configured admin exists after startup
// and can reach the admin endpoints.
func TestBootstrapSeedsAdmin(t *testing.T) {
	baseURL, cleanup := setupAuthService(t)
	defer cleanup()

	client := authsdk.NewSDKClient(baseURL)
	session := loginAdmin(t, client)

	users, err := session.ListUsers(t.Context())
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.Equal(t, adminEmail, users[0].Email)
	require.Equal(t, "admin", users[0].Role)

	t.Logf("Seeded admin %s (ID: %s)", users[0].Email, users[0].ID)
}

// TestBootstrapAdminCannotSelfRegister verifies public registration cannot
// claim the admin's email.
func TestBootstrapAdminCannotSelfRegister(t *testing.T) {
	baseURL, cleanup := setupAuthService(t)
	defer cleanup()

	client := authsdk.NewSDKClient(baseURL)

	_, err := client.Register(t.Context(), adminEmail, "some-other-password")
	assertStatus(t, err, http.StatusBadRequest, "User already exists")
}
