/*
Package authsdk is the client side of the authorization server and the home
of the OAuth2 error values both sides share.

Create a client per OAuth2 client identity:

	client := authsdk.NewSDKClient("https://auth.example.com", "trusted-app", secret)

	tok, err := client.ClientCredentialsGrant(ctx, []string{"read"})

	// Refresh, optionally narrowing scopes
	tok, err = client.RefreshGrant(ctx, tok.RefreshToken, nil)

Resource servers can either verify tokens locally against the published
key, or ask the server to decode them:

	verifier, err := client.RemoteVerifier(ctx, "https://auth.example.com")
	claims, err := verifier.Verify(tok.AccessToken)

	claims, err = client.CheckToken(ctx, tok.AccessToken) // needs ROLE_TRUSTED_CLIENT

Errors returned by the server are *OAuth2Error values and match the
package sentinels with errors.Is:

	if errors.Is(err, authsdk.ErrUnauthorizedClient) { ... }
*/
package authsdk
