package jwtx

import (
	"errors"
	"fmt"
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

// MinHMACSecretLen is the shortest HS256 secret accepted, in bytes.
const MinHMACSecretLen = 32

// HS256Signer signs with a shared secret. Anyone able to verify can also
// mint tokens, so the secret is never published.
type HS256Signer struct {
	kid    string
	secret []byte
}

// NewSignerHS256 creates an HS256 signer. The secret is copied.
func NewSignerHS256(kid string, secret []byte) (Signer, error) {
	if kid == "" {
		return nil, errors.New("jwtx: kid is required")
	}
	if len(secret) < MinHMACSecretLen {
		return nil, fmt.Errorf("jwtx: HS256 secret must be at least %d bytes", MinHMACSecretLen)
	}
	return &HS256Signer{kid: kid, secret: slices.Clone(secret)}, nil
}

func (s *HS256Signer) Alg() string { return AlgorithmHS256 }
func (s *HS256Signer) KID() string { return s.kid }
func (s *HS256Signer) VerificationKey() any { return s.secret }

func (s *HS256Signer) Sign(claims ClaimSet) (string, error) {
	return sign(jwt.SigningMethodHS256, s.kid, claims, s.secret)
}

// PublicJWK returns metadata only. No key bytes are ever included.
func (s *HS256Signer) PublicJWK() JWK {
	return NewOctJWK(s.kid, "sig", AlgorithmHS256)
}

func (s *HS256Signer) Validate() error {
	if len(s.secret) < MinHMACSecretLen {
		return errors.New("jwtx: HS256 secret too short")
	}
	return selfTest(s)
}
