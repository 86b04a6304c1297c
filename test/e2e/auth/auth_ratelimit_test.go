package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tinmegali/authserver/pkg/authsdk"
)

// TestRateLimit_TokenEndpoint verifies the strict limit on /oauth/token is
// enforced per client.
func TestRateLimit_TokenEndpoint(t *testing.T) {
	t.Setenv("RATELIMIT_STRICT_REQUESTS", "3")
	t.Setenv("RATELIMIT_STRICT_BURST", "3")
	baseURL, _ := setupAuthServerWithDefaultRateLimits(t)
	ctx := context.Background()
	client := registerClient(baseURL)

	var limited error
	for range 10 {
		if _, err := client.ClientCredentialsGrant(ctx, nil); err != nil {
			limited = err
			break
		}
	}
	require.Error(t, limited, "strict limit should trigger within ten requests")

	var oauthErr *authsdk.OAuth2Error
	require.ErrorAs(t, limited, &oauthErr)
	require.Equal(t, 429, oauthErr.StatusCode)
	require.ErrorIs(t, limited, authsdk.ErrTemporarilyUnavailable)

	// Another client has its own bucket
	_, err := trustedClient(baseURL).ClientCredentialsGrant(ctx, nil)
	require.NoError(t, err)

	// Health endpoints use the lenient profile
	live, err := authsdk.NewSDKClient(baseURL, "", "").GetLiveness(ctx)
	assertHealthy(t, live, err)
}
