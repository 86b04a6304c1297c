package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for newly created hashes. Verification reads the
// parameters from the encoded hash so these can be raised later.
const (
	memory      = 19 * 1024 // KiB
	iterations  = 2
	parallelism = 1
	keyLength   = 32
	saltLength  = 16
)

var (
	ErrHashFormat       = errors.New("cryptox: invalid argon2id hash format")
	ErrPasswordMismatch = errors.New("cryptox: password does not match")
)

// HashPassword generates a PHC-format Argon2id hash string including salt and parameters.
// It is used for both account passwords and client secrets.
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	hash := argon2.IDKey([]byte(password+Pepper()), salt, iterations, memory, parallelism, keyLength)

	return fmt.Sprintf(
		"$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		memory,
		iterations,
		parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// VerifyPassword compares a plaintext password against a PHC-style Argon2id
// hash in constant time. A malformed hash never matches.
func VerifyPassword(password, encodedHash string) error {
	// ["", "argon2id", "v=19", "m=X,t=Y,p=Z", "salt", "hash"]
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" || parts[2] != "v=19" {
		return ErrHashFormat
	}

	var mem, iters uint32
	var par uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &iters, &par); err != nil {
		return fmt.Errorf("%w: parameters: %w", ErrHashFormat, err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return fmt.Errorf("%w: salt: %w", ErrHashFormat, err)
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(expected) == 0 {
		return ErrHashFormat
	}

	computed := argon2.IDKey(
		[]byte(password+Pepper()),
		salt,
		iters,
		mem,
		par,
		uint32(len(expected)), // #nosec G115 - bounded by the decoded hash
	)

	if subtle.ConstantTimeCompare(computed, expected) == 1 {
		return nil
	}
	return ErrPasswordMismatch
}

// IsPasswordHash reports whether s looks like a hash VerifyPassword can read.
// Used at load time so a plaintext secret in a config file fails startup.
func IsPasswordHash(s string) bool {
	parts := strings.Split(s, "$")
	return len(parts) == 6 && parts[1] == "argon2id" && parts[2] == "v=19" && parts[4] != "" && parts[5] != ""
}

// GenerateSecret returns a random alphanumeric secret of the given length.
func GenerateSecret(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	if length <= 0 {
		return "", fmt.Errorf("cryptox: secret length must be positive, got %d", length)
	}
	secret := make([]byte, length)
	for i := range secret {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", fmt.Errorf("cryptox: failed to generate secret: %w", err)
		}
		secret[i] = charset[n.Int64()]
	}
	return string(secret), nil
}
