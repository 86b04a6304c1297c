package service

import (
	"fmt"
	"slices"
)

// AuthorityTrustedClient grants access to token introspection.
const AuthorityTrustedClient = "ROLE_TRUSTED_CLIENT"

// Endpoint names an operation guarded by AccessPolicy.
type Endpoint string

const (
	EndpointTokenKey   Endpoint = "token_key"
	EndpointCheckToken Endpoint = "check_token"
)

// Caller is whoever is calling a guarded endpoint. Transport code fills it
// in after authenticating client credentials.
type Caller struct {
	Anonymous   bool
	ClientID    string
	Authorities []string
}

// AnonymousCaller is a caller that presented no credentials.
var AnonymousCaller = Caller{Anonymous: true}

// Rule admits a caller that is anonymous (when allowed) or holds any of the
// listed authorities.
type Rule struct {
	AllowAnonymous bool
	AnyAuthority   []string
}

// Allows reports whether c satisfies the rule.
func (r Rule) Allows(c Caller) bool {
	if c.Anonymous {
		return r.AllowAnonymous
	}
	if r.AllowAnonymous && len(r.AnyAuthority) == 0 {
		return true
	}
	for _, a := range r.AnyAuthority {
		if slices.Contains(c.Authorities, a) {
			return true
		}
	}
	return false
}

// AccessPolicy holds one rule per guarded endpoint.
type AccessPolicy struct {
	TokenKey   Rule
	CheckToken Rule
}

// DefaultAccessPolicy publishes the token key to anyone and reserves
// check_token for trusted clients.
func DefaultAccessPolicy() AccessPolicy {
	return AccessPolicy{
		TokenKey:   Rule{AllowAnonymous: true, AnyAuthority: []string{AuthorityTrustedClient}},
		CheckToken: Rule{AnyAuthority: []string{AuthorityTrustedClient}},
	}
}

// Authorize returns ErrAccessDenied unless caller may use endpoint. Unknown
// endpoints are denied.
func (p AccessPolicy) Authorize(endpoint Endpoint, caller Caller) error {
	var rule Rule
	switch endpoint {
	case EndpointTokenKey:
		rule = p.TokenKey
	case EndpointCheckToken:
		rule = p.CheckToken
	default:
		return ErrAccessDenied.WithDescription(fmt.Sprintf("unknown endpoint %q", endpoint))
	}
	if !rule.Allows(caller) {
		return ErrAccessDenied
	}
	return nil
}
