package jwtx

import (
	"encoding/json"
	"maps"
	"math"
	"slices"
	"time"
)

// Registered and framework claim names.
const (
	ClaimExpiresAt = "exp"
	ClaimIssuedAt  = "iat"
	ClaimNotBefore = "nbf"
	ClaimIssuer    = "iss"
	ClaimSubject   = "sub"
	ClaimAudience  = "aud"
	ClaimID        = "jti"
	ClaimScope     = "scope"
	ClaimClientID  = "client_id"

	// ClaimAccessTokenID is carried only by refresh tokens and holds the jti
	// of the access token issued alongside it.
	ClaimAccessTokenID = "ati"
)

// ReservedClaims are owned by the issuer. Claims enhancers may not add,
// change or remove them.
var ReservedClaims = []string{
	ClaimExpiresAt,
	ClaimIssuedAt,
	ClaimNotBefore,
	ClaimIssuer,
	ClaimSubject,
	ClaimAudience,
	ClaimID,
	ClaimScope,
	ClaimClientID,
	ClaimAccessTokenID,
}

// IsReserved reports whether name is one of ReservedClaims.
func IsReserved(name string) bool {
	return slices.Contains(ReservedClaims, name)
}

// ClaimSet is the decoded payload of a token. Values are whatever JSON
// produces (string, json.Number, []any, map[string]any, bool) plus the Go
// types the issuer puts in before encoding ([]string, int64).
type ClaimSet map[string]any

// Clone returns a copy that can be modified without touching c. Slices are
// copied, nested maps are shared.
func (c ClaimSet) Clone() ClaimSet {
	out := make(ClaimSet, len(c))
	for k, v := range c {
		switch vv := v.(type) {
		case []string:
			out[k] = slices.Clone(vv)
		case []any:
			out[k] = slices.Clone(vv)
		default:
			out[k] = v
		}
	}
	return out
}

// Has reports whether the claim is present.
func (c ClaimSet) Has(name string) bool {
	_, ok := c[name]
	return ok
}

// String returns a string claim, or "" when absent or not a string.
func (c ClaimSet) String(name string) string {
	s, _ := c[name].(string)
	return s
}

// Strings returns a claim holding a list of strings. A single string is
// returned as a one element list, which is how "aud" may be encoded.
func (c ClaimSet) Strings(name string) []string {
	switch v := c[name].(type) {
	case string:
		return []string{v}
	case []string:
		return slices.Clone(v)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Int64 returns a numeric claim.
func (c ClaimSet) Int64(name string) (int64, bool) {
	switch v := c[name].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(math.Floor(v)), true
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, true
		}
		if f, err := v.Float64(); err == nil {
			return int64(math.Floor(f)), true
		}
	}
	return 0, false
}

func (c ClaimSet) Subject() string { return c.String(ClaimSubject) }
func (c ClaimSet) ClientID() string { return c.String(ClaimClientID) }
func (c ClaimSet) ID() string { return c.String(ClaimID) }
func (c ClaimSet) Issuer() string { return c.String(ClaimIssuer) }
func (c ClaimSet) Scope() []string { return c.Strings(ClaimScope) }
func (c ClaimSet) Audience() []string { return c.Strings(ClaimAudience) }
func (c ClaimSet) AccessTokenID() string { return c.String(ClaimAccessTokenID) }

// IsRefresh reports whether the claims belong to a refresh token.
func (c ClaimSet) IsRefresh() bool {
	return c.Has(ClaimAccessTokenID)
}

// ExpiresAt returns the "exp" claim, or the zero time when it is missing.
func (c ClaimSet) ExpiresAt() time.Time {
	n, ok := c.Int64(ClaimExpiresAt)
	if !ok {
		return time.Time{}
	}
	return time.Unix(n, 0).UTC()
}

// IssuedAt returns the "iat" claim, or the zero time when it is missing.
func (c ClaimSet) IssuedAt() time.Time {
	n, ok := c.Int64(ClaimIssuedAt)
	if !ok {
		return time.Time{}
	}
	return time.Unix(n, 0).UTC()
}

// Names returns the claim names in sorted order.
func (c ClaimSet) Names() []string {
	return slices.Sorted(maps.Keys(c))
}
