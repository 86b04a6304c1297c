package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

const (
	// AuthorizationCodeBytes is the entropy behind an authorization code.
	// Encoded, a code is 43 characters.
	AuthorizationCodeBytes = 32

	// KeyIDBytes is the entropy behind a generated signing key id.
	KeyIDBytes = 16
)

// NewAuthorizationCode returns a fresh code for the authorization_code grant
// together with its fingerprint. The code goes back to the client once; only
// the fingerprint is handed to the store.
func NewAuthorizationCode() (code, fingerprint string, err error) {
	code, err = RandomString(AuthorizationCodeBytes)
	if err != nil {
		return "", "", err
	}
	return code, CodeFingerprint(code), nil
}

// CodeFingerprint is the key an authorization code is stored and redeemed
// under: the base64url SHA-256 of the presented code. A leaked code table
// therefore holds nothing a client could redeem.
func CodeFingerprint(code string) string {
	sum := sha256.Sum256([]byte(code))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// RandomString returns n random bytes as unpadded base64url.
func RandomString(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("cryptox: random length must be positive, got %d", n)
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("cryptox: read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
