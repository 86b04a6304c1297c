package auth_test

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tinmegali/authserver/internal/auth/app"
	"github.com/tinmegali/authserver/pkg/authsdk"
	"github.com/tinmegali/authserver/pkg/cryptox"
	"github.com/tinmegali/authserver/pkg/jwtx"
	"github.com/tinmegali/authserver/pkg/slogx"
)

/*
 * Common constants and helper functions for auth service end-to-end tests.
 * The server runs in-process from the example configuration under config/,
 * with secret hashes supplied through the environment the way a deployment
 * would supply them.
 */

const (
	testIssuer = "https://auth.e2e.test"

	trustedSecret  = "trusted-secret"
	registerSecret = "register-secret"

	johnPassword   = "reset"
	adminPassword  = "Admin123!"
	adminTOTPSeed  = "JBSWY3DPEHPK3PXP"
	codeRedirect   = "http://anywhere?key=value"
	codeClientID   = "my-client-with-registered-redirect"
	exampleConfigs = "../../../config"
)

var (
	hashOnce sync.Once
	hashes   map[string]string
)

// exampleHashes hashes every example secret once; argon2id is slow on purpose.
func exampleHashes(t *testing.T) map[string]string {
	t.Helper()
	hashOnce.Do(func() {
		hashes = make(map[string]string)
		for env, plain := range map[string]string{
			"TRUSTED_APP_SECRET_HASH":  trustedSecret,
			"REGISTER_APP_SECRET_HASH": registerSecret,
			"JOHN_PASSWORD_HASH":       johnPassword,
			"ADMIN_PASSWORD_HASH":      adminPassword,
		} {
			h, err := cryptox.HashPassword(plain)
			if err != nil {
				panic(err)
			}
			hashes[env] = h
		}
	})
	return hashes
}

// setupAuthServer starts the auth service with relaxed rate limits and
// returns its base URL.
func setupAuthServer(t *testing.T) (string, *app.Application) {
	t.Helper()
	// Tests often make many rapid requests which would otherwise hit the strict production limits
	t.Setenv("RATELIMIT_STRICT_REQUESTS", "1000")
	t.Setenv("RATELIMIT_STRICT_BURST", "1000")
	t.Setenv("RATELIMIT_MODERATE_REQUESTS", "1000")
	t.Setenv("RATELIMIT_MODERATE_BURST", "1000")
	return startAuthServer(t)
}

// setupAuthServerWithDefaultRateLimits starts the auth service with the
// production rate limits. Only the rate limit tests should need it.
func setupAuthServerWithDefaultRateLimits(t *testing.T) (string, *app.Application) {
	t.Helper()
	return startAuthServer(t)
}

func startAuthServer(t *testing.T) (string, *app.Application) {
	t.Helper()

	for env, h := range exampleHashes(t) {
		t.Setenv(env, h)
	}
	t.Setenv("ADMIN_TOTP_SECRET", adminTOTPSeed)

	t.Setenv("AUTH_CLIENTS_FILE", filepath.Join(exampleConfigs, "clients.example.yaml"))
	t.Setenv("AUTH_ACCOUNTS_FILE", filepath.Join(exampleConfigs, "accounts.example.yaml"))
	t.Setenv("AUTH_DATABASE_FILE", filepath.Join(t.TempDir(), "auth.db"))
	t.Setenv("AUTH_ISSUER", testIssuer)
	t.Setenv("AUTH_KEY_ID", "e2e-key-001")
	t.Setenv("AUTH_ALGORITHM", "EdDSA")
	t.Setenv("ENV", "test")

	application, err := app.New(app.LoadConfig(), app.WithLogger(slogx.Discard()))
	require.NoError(t, err, "auth service should start from the example configuration")

	srv := httptest.NewServer(application.Handler())
	t.Cleanup(func() {
		srv.Close()
		_ = application.Close()
	})

	return srv.URL, application
}

func trustedClient(baseURL string) *authsdk.SDKClient {
	return authsdk.NewSDKClient(baseURL, "trusted-app", trustedSecret)
}

func registerClient(baseURL string) *authsdk.SDKClient {
	return authsdk.NewSDKClient(baseURL, "register-app", registerSecret)
}

// assertTokenResponse verifies a token response has all required fields.
func assertTokenResponse(t *testing.T, resp *authsdk.TokenResponse, wantRefresh bool) {
	t.Helper()
	require.NotNil(t, resp)
	require.NotEmpty(t, resp.AccessToken, "Access token should not be empty")
	require.Equal(t, "bearer", resp.TokenType, "Token type should be bearer")
	require.NotEmpty(t, resp.Scope, "Scope should not be empty")
	require.NotEmpty(t, resp.Jti, "jti should not be empty")
	require.Positive(t, resp.ExpiresIn, "expires_in should be positive")
	if wantRefresh {
		require.NotEmpty(t, resp.RefreshToken, "Refresh token should not be empty")
	} else {
		require.Empty(t, resp.RefreshToken, "Refresh token should not be issued")
	}
}

// assertOAuth2Error checks that err carries the given OAuth2 error code.
func assertOAuth2Error(t *testing.T, err error, want *authsdk.OAuth2Error, context string) {
	t.Helper()
	require.Error(t, err, context)
	require.ErrorIs(t, err, want, "%s - got: %v", context, err)
}

// assertHealthy verifies a health check response is OK.
func assertHealthy(t *testing.T, health *authsdk.HealthResponse, err error) {
	t.Helper()
	require.NoError(t, err)
	require.NotNil(t, health)
	require.Equal(t, "ok", health.Status)
}

// assertScopeNotGranted verifies that a token does not contain specific scopes.
func assertScopeNotGranted(t *testing.T, tokenScope string, deniedScopes ...string) {
	t.Helper()
	granted := strings.Fields(tokenScope)
	for _, scope := range deniedScopes {
		require.NotContains(t, granted, scope, "Should not receive %s scope", scope)
	}
}

func checkToken(t *testing.T, baseURL, token string) jwtx.ClaimSet {
	t.Helper()
	claims, err := trustedClient(baseURL).CheckToken(context.Background(), token)
	require.NoError(t, err)
	return claims
}
