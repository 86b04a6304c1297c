package domain

import (
	"maps"
	"slices"
)

// AttrFirstName is the principal attribute published as the "givenName" claim.
const AttrFirstName = "firstName"

// Principal is the authenticated subject a token is issued for. For
// client_credentials the client itself is the principal.
type Principal struct {
	Username    string
	Authorities []string
	Attributes  map[string]string
}

// GivenName returns the firstName attribute, or "".
func (p Principal) GivenName() string {
	return p.Attributes[AttrFirstName]
}

// Clone returns a deep copy.
func (p Principal) Clone() Principal {
	return Principal{
		Username:    p.Username,
		Authorities: slices.Clone(p.Authorities),
		Attributes:  maps.Clone(p.Attributes),
	}
}
