// Package registry holds the static table of OAuth2 clients. The table is
// validated once at load and never changes afterwards.
package registry

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/tinmegali/authserver/internal/auth/domain"
	"github.com/tinmegali/authserver/pkg/cryptox"
)

var (
	ErrNotFound      = errors.New("registry: client not found")
	ErrInvalidClient = errors.New("registry: invalid client policy")
)

// Defaults are the server-wide values applied to clients that leave a field
// unset.
type Defaults struct {
	AccessTokenValidity  time.Duration
	RefreshTokenValidity time.Duration
	ResourceID           string
}

// Registry is an immutable, validated client table. It is safe for
// concurrent use without locking.
type Registry struct {
	clients map[string]domain.ClientPolicy
	ids     []string
}

// New validates the policies, resolves defaults and returns the registry.
// The first violation found is returned and nothing is registered.
func New(policies []domain.ClientPolicy, defaults Defaults) (*Registry, error) {
	if defaults.AccessTokenValidity <= 0 {
		return nil, fmt.Errorf("%w: default access token validity must be positive", ErrInvalidClient)
	}

	r := &Registry{clients: make(map[string]domain.ClientPolicy, len(policies))}
	for i, p := range policies {
		p = p.Clone()
		if err := resolve(&p, defaults); err != nil {
			return nil, fmt.Errorf("client[%d] %q: %w", i, p.ID, err)
		}
		if _, dup := r.clients[p.ID]; dup {
			return nil, fmt.Errorf("client[%d] %q: %w: duplicate client id", i, p.ID, ErrInvalidClient)
		}
		r.clients[p.ID] = p
		r.ids = append(r.ids, p.ID)
	}
	slices.Sort(r.ids)
	return r, nil
}

func resolve(p *domain.ClientPolicy, d Defaults) error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidClient, fmt.Sprintf(format, args...))
	}

	if p.ID == "" {
		return invalid("client id is required")
	}
	if len(p.GrantTypes) == 0 {
		return invalid("at least one grant type is required")
	}
	for _, g := range p.GrantTypes {
		if !g.IsKnown() {
			return invalid("unknown grant type %q", g)
		}
	}

	if p.Public {
		if p.SecretHash != "" {
			return invalid("public clients must not have a secret")
		}
		if p.Allows(domain.GrantClientCredentials) {
			return invalid("public clients cannot use client_credentials")
		}
	} else {
		if p.SecretHash == "" {
			return invalid("confidential clients require a secret hash")
		}
		if !cryptox.IsPasswordHash(p.SecretHash) {
			return invalid("secret must be an argon2id hash")
		}
	}

	if (p.Allows(domain.GrantAuthorizationCode) || p.Allows(domain.GrantImplicit)) && len(p.RedirectURIs) == 0 {
		return invalid("authorization_code and implicit require a redirect uri")
	}

	if p.AccessTokenValidity < 0 || p.RefreshTokenValidity < 0 {
		return invalid("token validity must not be negative")
	}
	if p.AccessTokenValidity == 0 {
		p.AccessTokenValidity = d.AccessTokenValidity
	}
	if p.RefreshTokenValidity == 0 {
		p.RefreshTokenValidity = d.RefreshTokenValidity
	}
	if p.SupportsRefresh() && p.RefreshTokenValidity <= 0 {
		return invalid("refresh_token requires a positive refresh token validity")
	}

	if len(p.ResourceIDs) == 0 && d.ResourceID != "" {
		p.ResourceIDs = []string{d.ResourceID}
	}
	return nil
}

// Lookup returns a copy of the client's policy.
func (r *Registry) Lookup(id string) (domain.ClientPolicy, error) {
	p, ok := r.clients[id]
	if !ok {
		return domain.ClientPolicy{}, ErrNotFound
	}
	return p.Clone(), nil
}

// VerifySecret reports whether presented matches the client's stored secret.
// Unknown clients and clients without a secret never match.
func (r *Registry) VerifySecret(id, presented string) bool {
	p, ok := r.clients[id]
	if !ok || p.SecretHash == "" {
		return false
	}
	return cryptox.VerifyPassword(presented, p.SecretHash) == nil
}

// IDs returns the registered client ids in sorted order.
func (r *Registry) IDs() []string {
	return slices.Clone(r.ids)
}

// Len returns the number of registered clients.
func (r *Registry) Len() int {
	return len(r.clients)
}
