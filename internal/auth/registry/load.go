package registry

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tinmegali/authserver/internal/auth/domain"
	"github.com/tinmegali/authserver/pkg/envx"
)

type fileClient struct {
	ID                   string        `yaml:"id"`
	SecretHash           string        `yaml:"secret_hash"`
	Public               bool          `yaml:"public"`
	GrantTypes           []string      `yaml:"grant_types"`
	Authorities          []string      `yaml:"authorities"`
	Scopes               []string      `yaml:"scopes"`
	ResourceIDs          []string      `yaml:"resource_ids"`
	AccessTokenValidity  time.Duration `yaml:"access_token_validity"`
	RefreshTokenValidity time.Duration `yaml:"refresh_token_validity"`
	RedirectURIs         []string      `yaml:"redirect_uris"`
}

type file struct {
	Clients []fileClient `yaml:"clients"`
}

// Load reads a YAML client table from path. ${VAR} references are expanded
// from the environment before parsing so secret hashes can live outside the
// file. Unknown keys are an error.
func Load(path string, defaults Defaults) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("registry: read %s: %w", path, err)
	}
	policies, err := Parse(strings.NewReader(envx.Expand(string(raw))))
	if err != nil {
		return nil, fmt.Errorf("registry: %s: %w", path, err)
	}
	return New(policies, defaults)
}

// Parse decodes a YAML client table without expanding the environment.
func Parse(r io.Reader) ([]domain.ClientPolicy, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f file
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode clients: %w", err)
	}

	out := make([]domain.ClientPolicy, 0, len(f.Clients))
	for _, c := range f.Clients {
		grants := make([]domain.GrantType, 0, len(c.GrantTypes))
		for _, g := range c.GrantTypes {
			grants = append(grants, domain.GrantType(g))
		}
		out = append(out, domain.ClientPolicy{
			ID:                   c.ID,
			SecretHash:           c.SecretHash,
			Public:               c.Public,
			GrantTypes:           grants,
			Authorities:          c.Authorities,
			Scopes:               c.Scopes,
			ResourceIDs:          c.ResourceIDs,
			AccessTokenValidity:  c.AccessTokenValidity,
			RefreshTokenValidity: c.RefreshTokenValidity,
			RedirectURIs:         c.RedirectURIs,
		})
	}
	return out, nil
}
