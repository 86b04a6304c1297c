package domain

import (
	"time"

	"github.com/tinmegali/authserver/pkg/jwtx"
)

// TokenTypeBearer is the only token type issued.
const TokenTypeBearer = "bearer"

// RefreshPolicy decides what a refresh_token grant returns.
type RefreshPolicy string

const (
	// RefreshRotate consumes the presented refresh token and issues a new one.
	RefreshRotate RefreshPolicy = "rotate"
	// RefreshReuse hands the presented refresh token back unchanged.
	RefreshReuse RefreshPolicy = "reuse"
)

// IsValid reports whether p is a known policy.
func (p RefreshPolicy) IsValid() bool {
	return p == RefreshRotate || p == RefreshReuse
}

// TokenRequest is a token endpoint request after transport decoding. Client
// credentials from a Basic header are folded into ClientID/ClientSecret.
type TokenRequest struct {
	GrantType    string
	ClientID     string
	ClientSecret string
	Scopes       []string

	// password
	Username string
	Password string
	OTP      string

	// authorization_code
	Code        string
	RedirectURI string

	// refresh_token
	RefreshToken string

	// implicit
	Session string
}

// AccessToken is a signed access token. Immutable once issued.
type AccessToken struct {
	Value     string
	Claims    jwtx.ClaimSet
	ExpiresAt time.Time
}

// ID returns the token's jti.
func (t AccessToken) ID() string { return t.Claims.ID() }

// RefreshToken is a signed refresh token. Its claims carry "ati", the jti
// of the access token it was issued with.
type RefreshToken struct {
	Value     string
	Claims    jwtx.ClaimSet
	ExpiresAt time.Time
}

// TokenGrant is the result of a successful token request.
type TokenGrant struct {
	Access  AccessToken
	Refresh *RefreshToken
	Scope   []string
}

// ExpiresIn is the access token lifetime in whole seconds. exp and iat are
// whole Unix seconds, so the lifetime is measured from iat; a sub-second now
// would otherwise lose a second. Without iat, now is truncated to the second.
func (g TokenGrant) ExpiresIn(now time.Time) int64 {
	from := now.Truncate(time.Second)
	if iat := g.Access.Claims.IssuedAt(); !iat.IsZero() {
		from = iat
	}
	secs := int64(g.Access.ExpiresAt.Sub(from) / time.Second)
	return max(secs, 0)
}
