package jwtx

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"os"

	"github.com/tinmegali/authserver/pkg/cryptox"
)

// DefaultSecretKID is used for HS256 keys when no kid is configured.
const DefaultSecretKID = "hs256-key"

// KeyProvider yields the signing key for the process. Implementations fail
// with an error wrapping ErrKeyUnavailable, never with key bytes.
type KeyProvider interface {
	Signer() (Signer, error)
}

// FileKeyProvider reads a PEM private key from disk. The algorithm follows
// the key type. Without a KID, the kid is a fingerprint of the public key so
// it stays stable across restarts.
type FileKeyProvider struct {
	Path string
	KID  string
}

func (p FileKeyProvider) Signer() (Signer, error) {
	if p.Path == "" {
		return nil, fmt.Errorf("%w: no key file configured", ErrKeyUnavailable)
	}
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: read key file: %w", ErrKeyUnavailable, err)
	}

	key, err := cryptox.ParsePrivateKeyPEM(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyUnavailable, err)
	}

	kid := p.KID
	if kid == "" {
		if kid, err = cryptox.PublicKeyFingerprint(key.Public()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrKeyUnavailable, err)
		}
	}

	s, err := NewSigner(kid, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyUnavailable, err)
	}
	return s, nil
}

// SecretKeyProvider supplies an HS256 secret, either inline or from a file.
// A file takes precedence. Surrounding whitespace in the file is trimmed.
type SecretKeyProvider struct {
	Secret []byte
	Path   string
	KID    string
}

func (p SecretKeyProvider) Signer() (Signer, error) {
	secret := p.Secret
	if p.Path != "" {
		data, err := os.ReadFile(p.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: read secret file: %w", ErrKeyUnavailable, err)
		}
		secret = bytes.TrimSpace(data)
	}
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: no signing secret configured", ErrKeyUnavailable)
	}

	kid := p.KID
	if kid == "" {
		kid = DefaultSecretKID
	}

	s, err := NewSignerHS256(kid, secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyUnavailable, err)
	}
	return s, nil
}

// EphemeralKeyProvider generates a fresh key on every call. Tokens do not
// survive a restart, so this is for development and tests.
type EphemeralKeyProvider struct {
	Algorithm string
	// RSABits defaults to 2048.
	RSABits int
	KID     string
}

func (p EphemeralKeyProvider) Signer() (Signer, error) {
	kid := p.KID
	if kid == "" {
		var err error
		if kid, err = generateRandomKeyID(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrKeyUnavailable, err)
		}
	}

	s, err := generateSigner(p.Algorithm, kid, p.RSABits)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyUnavailable, err)
	}
	return s, nil
}

// generateSigner creates a new signer with the specified algorithm and key ID.
func generateSigner(algorithm, keyID string, rsaBits int) (Signer, error) {
	var pemBytes []byte
	var err error

	switch algorithm {
	case AlgorithmRS256:
		bits := rsaBits
		if bits == 0 {
			bits = cryptox.MinRSABits
		}
		pemBytes, err = cryptox.GenerateRSAKey(bits)
	case AlgorithmES256:
		pemBytes, err = cryptox.GenerateES256Key()
	case AlgorithmEdDSA:
		pemBytes, err = cryptox.GenerateEd25519Key()
	case AlgorithmHS256:
		secret := make([]byte, MinHMACSecretLen)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("failed to generate HS256 secret: %w", err)
		}
		return NewSignerHS256(keyID, secret)
	default:
		return nil, fmt.Errorf("unsupported algorithm %q (supported: RS256, ES256, EdDSA, HS256)", algorithm)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to generate %s key: %w", algorithm, err)
	}
	return NewSignerFromPEM(keyID, pemBytes)
}

// generateRandomKeyID creates a random key identifier.
// Format: "auth-{suffix}" with a 128-bit random suffix.
func generateRandomKeyID() (string, error) {
	token, err := cryptox.RandomString(cryptox.KeyIDBytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate random key ID: %w", err)
	}
	return "auth-" + token, nil
}
