package authsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tinmegali/authserver/pkg/httpx"
	"github.com/tinmegali/authserver/pkg/jwtx"
)

// TokenKey fetches the public verification key.
func (c *SDKClient) TokenKey(ctx context.Context) (*TokenKeyResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/oauth/token_key", nil, nil)
	if err != nil {
		return nil, err
	}

	var tk TokenKeyResponse
	if err := decodeJSON(resp, &tk, http.StatusOK); err != nil {
		return nil, err
	}
	return &tk, nil
}

// JWKS fetches the JSON Web Key Set.
func (c *SDKClient) JWKS(ctx context.Context) (*JWKSResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/.well-known/jwks.json", nil, nil)
	if err != nil {
		return nil, err
	}

	var jwks JWKSResponse
	if err := decodeJSON(resp, &jwks, http.StatusOK); err != nil {
		return nil, err
	}
	return &jwks, nil
}

// RemoteVerifier builds a verifier from the server's published keys so a
// resource server can check access tokens locally. Symmetric keys cannot be
// fetched, so HS256 deployments must use CheckToken instead.
func (c *SDKClient) RemoteVerifier(ctx context.Context, issuer string) (jwtx.Verifier, error) {
	tk, err := c.TokenKey(ctx)
	if err != nil {
		return nil, err
	}

	keys := jwtx.NewKeySet()
	if err := keys.ResetFromJWKS(jwtx.JWKS{Keys: tk.Keys}); err != nil {
		return nil, fmt.Errorf("authsdk: load published keys: %w", err)
	}
	if !keys.IsReady() {
		return nil, fmt.Errorf("authsdk: server publishes no public keys for %s", tk.Alg)
	}
	return jwtx.NewVerifier(keys, tk.Alg, issuer), nil
}

// CheckToken asks the server to decode a token. The returned claims include
// "active": true.
func (c *SDKClient) CheckToken(ctx context.Context, token string) (jwtx.ClaimSet, error) {
	data := url.Values{"token": {token}}
	resp, err := c.doRequest(ctx, http.MethodPost, "/oauth/check_token", strings.NewReader(data.Encode()),
		map[string]string{"Content-Type": httpx.FormContentType})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, parseErrorResponse(resp, body)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var claims jwtx.ClaimSet
	if err := dec.Decode(&claims); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return claims, nil
}

// GetLiveness checks if the service is alive.
func (c *SDKClient) GetLiveness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/livez")
}

// GetReadiness checks if the service is ready.
func (c *SDKClient) GetReadiness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/readyz")
}

func (c *SDKClient) health(ctx context.Context, path string) (*HealthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}

	var health HealthResponse
	if err := decodeJSON(resp, &health, http.StatusOK); err != nil {
		return nil, err
	}
	return &health, nil
}
