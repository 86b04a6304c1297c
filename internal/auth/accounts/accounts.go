// Package accounts is a read-only user directory used by the password grant.
// Accounts are loaded from YAML at startup; passwords are argon2id hashes and
// an account may additionally require a TOTP code.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/tinmegali/authserver/internal/auth/domain"
	"github.com/tinmegali/authserver/pkg/cryptox"
)

var (
	ErrBadCredentials  = errors.New("accounts: bad credentials")
	ErrAccountDisabled = errors.New("accounts: account disabled")
	ErrOTPRequired     = errors.New("accounts: one-time code required")
	ErrInvalidOTP      = errors.New("accounts: invalid one-time code")
	ErrInvalidAccount  = errors.New("accounts: invalid account")
)

// Account is one entry of the directory.
type Account struct {
	Username     string
	PasswordHash string
	Authorities  []string
	FirstName    string

	// TOTPSecret is the base32 shared secret. Empty disables the second factor.
	TOTPSecret string

	Disabled bool
}

// Directory authenticates usernames and passwords against a fixed set of
// accounts. It is safe for concurrent use.
type Directory struct {
	accounts map[string]Account

	// dummyHash is verified against for unknown users so the response time
	// does not reveal whether a username exists.
	dummyHash string
}

// New validates the accounts and builds a directory.
func New(list []Account) (*Directory, error) {
	dummy, err := cryptox.HashPassword("dummy-password-for-timing")
	if err != nil {
		return nil, fmt.Errorf("accounts: %w", err)
	}

	d := &Directory{accounts: make(map[string]Account, len(list)), dummyHash: dummy}
	for i, a := range list {
		switch {
		case a.Username == "":
			return nil, fmt.Errorf("account[%d]: %w: username is required", i, ErrInvalidAccount)
		case !cryptox.IsPasswordHash(a.PasswordHash):
			return nil, fmt.Errorf("account[%d] %q: %w: password must be an argon2id hash", i, a.Username, ErrInvalidAccount)
		}
		if _, dup := d.accounts[a.Username]; dup {
			return nil, fmt.Errorf("account[%d] %q: %w: duplicate username", i, a.Username, ErrInvalidAccount)
		}
		a.Authorities = slices.Clone(a.Authorities)
		d.accounts[a.Username] = a
	}
	return d, nil
}

// Authenticate checks the password and, when the account has one, the TOTP
// code. The principal carries the account's authorities and first name.
func (d *Directory) Authenticate(ctx context.Context, username, password, code string) (domain.Principal, error) {
	if err := ctx.Err(); err != nil {
		return domain.Principal{}, err
	}

	a, ok := d.accounts[username]
	if !ok {
		_ = cryptox.VerifyPassword(password, d.dummyHash)
		return domain.Principal{}, ErrBadCredentials
	}
	if err := cryptox.VerifyPassword(password, a.PasswordHash); err != nil {
		return domain.Principal{}, ErrBadCredentials
	}
	if a.Disabled {
		return domain.Principal{}, ErrAccountDisabled
	}

	if a.TOTPSecret != "" {
		if code == "" {
			return domain.Principal{}, ErrOTPRequired
		}
		if !totp.Validate(code, a.TOTPSecret) {
			return domain.Principal{}, ErrInvalidOTP
		}
	}

	p := domain.Principal{
		Username:    a.Username,
		Authorities: slices.Clone(a.Authorities),
	}
	if a.FirstName != "" {
		p.Attributes = map[string]string{domain.AttrFirstName: a.FirstName}
	}
	return p, nil
}

// Len returns the number of accounts.
func (d *Directory) Len() int { return len(d.accounts) }

// Enrollment is a freshly generated TOTP secret and its otpauth:// URL.
type Enrollment struct {
	Secret string
	URL    string
}

// EnrollTOTP generates a TOTP secret for an account. The secret still has to
// be written into the accounts file by an operator.
func EnrollTOTP(issuer, username string) (Enrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: username,
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return Enrollment{}, fmt.Errorf("accounts: generate TOTP key: %w", err)
	}
	return Enrollment{Secret: key.Secret(), URL: key.URL()}, nil
}
