package authsdk

import "github.com/tinmegali/authserver/pkg/jwtx"

// ErrorResponse is the wire form of an OAuth2 error.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// TokenResponse represents the token endpoint response per RFC 6749.
type TokenResponse struct {
	// AccessToken is the signed JWT access token
	AccessToken string `json:"access_token"`

	// TokenType is always "bearer"
	TokenType string `json:"token_type"`

	// ExpiresIn is the lifetime in seconds of the access token
	ExpiresIn int64 `json:"expires_in"`

	// RefreshToken is a signed JWT carrying an "ati" claim. Omitted when the
	// client may not refresh.
	RefreshToken string `json:"refresh_token,omitempty"`

	// Scope is the space-delimited list of granted scopes
	Scope string `json:"scope"`

	// Jti is the access token's identifier
	Jti string `json:"jti,omitempty"`
}

// TokenKeyResponse is returned by GET /oauth/token_key.
type TokenKeyResponse = jwtx.TokenKey

// JWKSResponse is returned by GET /.well-known/jwks.json.
type JWKSResponse = jwtx.JWKS

// HealthResponse represents the response of /livez and /readyz.
type HealthResponse struct {
	// Status is "ok" or "unavailable"
	Status string `json:"status"`

	// Uptime is the service uptime duration as a string (e.g., "1h23m45s")
	Uptime string `json:"uptime,omitempty"`

	Version string `json:"version,omitempty"`

	// Checks is only set by /readyz
	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks holds per-dependency readiness.
type HealthChecks struct {
	Store  string `json:"store"`
	Signer string `json:"signer"`
}
