/*
Package authsdk provides the wire types and a Go client for the certauth
service.

# SDKClient vs Session

  - SDKClient: unauthenticated operations (registration, login, health)
  - Session: operations that carry a bearer token, with automatic refresh

Create an SDKClient and log in to obtain a Session:

	client := authsdk.NewSDKClient("https://auth.example.com")

	userID, err := client.Register(ctx, "alice@example.com", "Passw0rd!")

	session, err := client.Login(ctx, "alice@example.com", "Passw0rd!")

	me, err := session.Me(ctx)

Admin sessions can mint issuer invitations:

	link, err := session.CreateIssuerLink(ctx, "bob@issuer.com")

# Token refresh

A Session reads the expiry of its access token and exchanges the refresh
token for a new access token shortly before it lapses. When the server
rotates refresh tokens the Session keeps the replacement.

# Errors

Every non-2xx response is returned as an *APIError carrying the HTTP status
and the server's message. Use errors.As to inspect it:

	var apiErr *authsdk.APIError
	if errors.As(err, &apiErr) && apiErr.IsUnauthorized() {
		// log in again
	}
*/
package authsdk
