package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tinmegali/authserver/internal/auth/domain"
	"github.com/tinmegali/authserver/pkg/authsdk"
)

func john() domain.Principal {
	return domain.Principal{
		Username:    "john",
		Authorities: []string{"ROLE_USER"},
		Attributes:  map[string]string{domain.AttrFirstName: "John"},
	}
}

// TestAuthorizationCode_Exchange verifies a code issued after user approval
// is exchanged exactly once by the public client it was issued to.
func TestAuthorizationCode_Exchange(t *testing.T) {
	baseURL, application := setupAuthServer(t)
	ctx := context.Background()

	code, err := application.TokenService().IssueAuthorizationCode(ctx, codeClientID, codeRedirect, john(), []string{"read"})
	require.NoError(t, err)

	client := authsdk.NewSDKClient(baseURL, codeClientID, "")
	resp, err := client.AuthorizationCodeGrant(ctx, code, codeRedirect)
	require.NoError(t, err)
	assertTokenResponse(t, resp, false)
	require.Equal(t, "read", resp.Scope)

	claims := checkToken(t, baseURL, resp.AccessToken)
	require.Equal(t, "john", claims.Subject())
	require.Equal(t, codeClientID, claims.ClientID())
	require.Equal(t, []string{"oauth2-resource"}, claims.Audience())

	_, err = client.AuthorizationCodeGrant(ctx, code, codeRedirect)
	assertOAuth2Error(t, err, authsdk.ErrInvalidGrant, "code replay")
}

func TestAuthorizationCode_Rejections(t *testing.T) {
	baseURL, application := setupAuthServer(t)
	ctx := context.Background()
	issue := func() string {
		code, err := application.TokenService().IssueAuthorizationCode(ctx, codeClientID, codeRedirect, john(), nil)
		require.NoError(t, err)
		return code
	}
	client := authsdk.NewSDKClient(baseURL, codeClientID, "")

	t.Run("redirect mismatch burns the code", func(t *testing.T) {
		code := issue()
		_, err := client.AuthorizationCodeGrant(ctx, code, "http://anywhere?key=other")
		assertOAuth2Error(t, err, authsdk.ErrInvalidGrant, "redirect mismatch")

		_, err = client.AuthorizationCodeGrant(ctx, code, codeRedirect)
		assertOAuth2Error(t, err, authsdk.ErrInvalidGrant, "code after mismatch")
	})

	t.Run("other client", func(t *testing.T) {
		code := issue()
		_, err := authsdk.NewSDKClient(baseURL, "normal-app", "").AuthorizationCodeGrant(ctx, code, codeRedirect)
		assertOAuth2Error(t, err, authsdk.ErrInvalidGrant, "code for another client")
	})

	t.Run("unknown code", func(t *testing.T) {
		_, err := client.AuthorizationCodeGrant(ctx, "made-up", codeRedirect)
		assertOAuth2Error(t, err, authsdk.ErrInvalidGrant, "unknown code")
	})

	t.Run("unregistered redirect at issue time", func(t *testing.T) {
		_, err := application.TokenService().IssueAuthorizationCode(ctx, codeClientID, "http://evil.test/cb", john(), nil)
		require.Error(t, err)
	})
}
