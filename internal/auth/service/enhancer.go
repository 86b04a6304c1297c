package service

import (
	"slices"

	"github.com/tinmegali/authserver/internal/auth/domain"
	"github.com/tinmegali/authserver/pkg/jwtx"
)

// DefaultNamespace prefixes the principal claims added by NamespaceEnhancer.
const DefaultNamespace = "http://name.space/"

// Namespaced claim suffixes.
const (
	ClaimUserName    = "user_name"
	ClaimAuthorities = "authorities"
	ClaimGivenName   = "givenName"
)

// Enhancer adds claims about the principal to a token's claims. It receives
// its own copy and returns the claims to use.
type Enhancer func(claims jwtx.ClaimSet, p domain.Principal) jwtx.ClaimSet

// NamespaceEnhancer publishes the username, authorities and given name under
// ns. The given name is omitted when the principal has none.
func NamespaceEnhancer(ns string) Enhancer {
	return func(claims jwtx.ClaimSet, p domain.Principal) jwtx.ClaimSet {
		claims[ns+ClaimUserName] = p.Username
		claims[ns+ClaimAuthorities] = slices.Clone(p.Authorities)
		if name := p.GivenName(); name != "" {
			claims[ns+ClaimGivenName] = name
		}
		return claims
	}
}

// Chain runs the enhancers in order on a copy of the input. Reserved claims
// come out exactly as they went in: changes are reverted, additions dropped
// and removals restored.
func Chain(enhancers ...Enhancer) Enhancer {
	return func(claims jwtx.ClaimSet, p domain.Principal) jwtx.ClaimSet {
		out := claims.Clone()
		for _, e := range enhancers {
			if next := e(out, p.Clone()); next != nil {
				out = next
			}
		}
		return protectReserved(claims, out)
	}
}

func protectReserved(orig, enhanced jwtx.ClaimSet) jwtx.ClaimSet {
	for _, name := range jwtx.ReservedClaims {
		if v, ok := orig[name]; ok {
			enhanced[name] = v
		} else {
			delete(enhanced, name)
		}
	}
	return enhanced
}

// principalFromClaims rebuilds the principal recorded in a token by
// NamespaceEnhancer.
func principalFromClaims(claims jwtx.ClaimSet, ns string) domain.Principal {
	p := domain.Principal{
		Username:    claims.Subject(),
		Authorities: claims.Strings(ns + ClaimAuthorities),
	}
	if name := claims.String(ns + ClaimGivenName); name != "" {
		p.Attributes = map[string]string{domain.AttrFirstName: name}
	}
	return p
}
