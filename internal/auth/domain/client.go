package domain

import (
	"slices"
	"time"
)

// GrantType is an OAuth2 grant type.
type GrantType string

const (
	GrantAuthorizationCode GrantType = "authorization_code"
	GrantImplicit          GrantType = "implicit"
	GrantClientCredentials GrantType = "client_credentials"
	GrantPassword          GrantType = "password"
	GrantRefreshToken      GrantType = "refresh_token"
)

// KnownGrantTypes lists every grant the server understands.
var KnownGrantTypes = []GrantType{
	GrantAuthorizationCode,
	GrantImplicit,
	GrantClientCredentials,
	GrantPassword,
	GrantRefreshToken,
}

// IsKnown reports whether g is one of KnownGrantTypes.
func (g GrantType) IsKnown() bool {
	return slices.Contains(KnownGrantTypes, g)
}

// ClientPolicy is the registered configuration of one OAuth2 client. Values
// handed out by the registry are copies; changing them has no effect.
type ClientPolicy struct {
	ID string

	// SecretHash is an argon2id PHC string. Empty for public clients.
	SecretHash string

	// Public clients authenticate by client_id alone.
	Public bool

	GrantTypes  []GrantType
	Authorities []string
	Scopes      []string
	ResourceIDs []string

	// Validity values are resolved against the server defaults at load.
	AccessTokenValidity  time.Duration
	RefreshTokenValidity time.Duration

	RedirectURIs []string
}

// Allows reports whether the client may use grant g.
func (p ClientPolicy) Allows(g GrantType) bool {
	return slices.Contains(p.GrantTypes, g)
}

// RequiresSecret reports whether token requests must carry the client secret.
func (p ClientPolicy) RequiresSecret() bool {
	return !p.Public
}

// SupportsRefresh reports whether refresh tokens are issued to this client.
func (p ClientPolicy) SupportsRefresh() bool {
	return p.Allows(GrantRefreshToken)
}

// AllowsRedirect reports whether uri is registered for the client.
func (p ClientPolicy) AllowsRedirect(uri string) bool {
	return slices.Contains(p.RedirectURIs, uri)
}

// HasAuthority reports whether the client was granted any of the authorities.
func (p ClientPolicy) HasAuthority(want ...string) bool {
	for _, a := range want {
		if slices.Contains(p.Authorities, a) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (p ClientPolicy) Clone() ClientPolicy {
	c := p
	c.GrantTypes = slices.Clone(p.GrantTypes)
	c.Authorities = slices.Clone(p.Authorities)
	c.Scopes = slices.Clone(p.Scopes)
	c.ResourceIDs = slices.Clone(p.ResourceIDs)
	c.RedirectURIs = slices.Clone(p.RedirectURIs)
	return c
}
