package accounts

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tinmegali/authserver/pkg/envx"
)

type fileAccount struct {
	Username     string   `yaml:"username"`
	PasswordHash string   `yaml:"password_hash"`
	Authorities  []string `yaml:"authorities"`
	FirstName    string   `yaml:"first_name"`
	TOTPSecret   string   `yaml:"totp_secret"`
	Disabled     bool     `yaml:"disabled"`
}

type file struct {
	Accounts []fileAccount `yaml:"accounts"`
}

// Load reads a YAML accounts file. ${VAR} references are expanded from the
// environment first (see envx.Expand).
func Load(path string) (*Directory, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("accounts: read %s: %w", path, err)
	}
	list, err := Parse(strings.NewReader(envx.Expand(string(raw))))
	if err != nil {
		return nil, fmt.Errorf("accounts: %s: %w", path, err)
	}
	return New(list)
}

// Parse decodes a YAML accounts document. Unknown keys are an error.
func Parse(r io.Reader) ([]Account, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f file
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode accounts: %w", err)
	}

	out := make([]Account, 0, len(f.Accounts))
	for _, a := range f.Accounts {
		out = append(out, Account{
			Username:     a.Username,
			PasswordHash: a.PasswordHash,
			Authorities:  a.Authorities,
			FirstName:    a.FirstName,
			TOTPSecret:   a.TOTPSecret,
			Disabled:     a.Disabled,
		})
	}
	return out, nil
}
