package cryptox

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
)

// MinRSABits is the smallest RSA modulus accepted for signing keys.
const MinRSABits = 2048

var ErrUnsupportedKey = errors.New("cryptox: unsupported private key")

// GenerateRSAKey generates a new RSA private key and returns it as PKCS8 PEM.
func GenerateRSAKey(bits int) ([]byte, error) {
	if bits < MinRSABits {
		return nil, fmt.Errorf("cryptox: RSA key size must be at least %d bits", MinRSABits)
	}
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("cryptox: failed to generate RSA key: %w", err)
	}
	return marshalPKCS8(key)
}

// GenerateES256Key generates a new ECDSA P-256 private key as PKCS8 PEM.
func GenerateES256Key() ([]byte, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("cryptox: failed to generate ECDSA key: %w", err)
	}
	return marshalPKCS8(key)
}

// GenerateEd25519Key generates a new Ed25519 private key as PKCS8 PEM.
func GenerateEd25519Key() ([]byte, error) {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("cryptox: failed to generate Ed25519 key: %w", err)
	}
	return marshalPKCS8(key)
}

func marshalPKCS8(key any) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("cryptox: failed to marshal PKCS8 key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

// ParsePrivateKeyPEM decodes the first PEM block in data into a signing key.
// RSA keys may be PKCS1 or PKCS8, EC keys PKCS8 or SEC1, Ed25519 keys PKCS8.
//
// Errors never include the key bytes.
func ParsePrivateKeyPEM(data []byte) (crypto.Signer, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block found", ErrUnsupportedKey)
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid PKCS1 RSA key", ErrUnsupportedKey)
		}
		return checkRSA(key)
	case "EC PRIVATE KEY":
		key, err := x509.ParseECPrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid SEC1 EC key", ErrUnsupportedKey)
		}
		return checkEC(key)
	case "PRIVATE KEY":
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid PKCS8 key", ErrUnsupportedKey)
		}
		switch key := parsed.(type) {
		case *rsa.PrivateKey:
			return checkRSA(key)
		case *ecdsa.PrivateKey:
			return checkEC(key)
		case ed25519.PrivateKey:
			return key, nil
		default:
			return nil, fmt.Errorf("%w: PKCS8 key type %T", ErrUnsupportedKey, parsed)
		}
	default:
		return nil, fmt.Errorf("%w: PEM block type %q", ErrUnsupportedKey, block.Type)
	}
}

func checkRSA(key *rsa.PrivateKey) (crypto.Signer, error) {
	if key.N.BitLen() < MinRSABits {
		return nil, fmt.Errorf("%w: RSA key shorter than %d bits", ErrUnsupportedKey, MinRSABits)
	}
	return key, nil
}

func checkEC(key *ecdsa.PrivateKey) (crypto.Signer, error) {
	if key.Curve != elliptic.P256() {
		return nil, fmt.Errorf("%w: EC curve %s, want P-256", ErrUnsupportedKey, key.Curve.Params().Name)
	}
	return key, nil
}

// PublicKeyFingerprint returns a short stable identifier for a public key,
// the first 16 bytes of the SHA-256 of its PKIX encoding, base64url encoded.
func PublicKeyFingerprint(pub crypto.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("cryptox: marshal public key: %w", err)
	}
	sum := sha256.Sum256(der)
	return base64.RawURLEncoding.EncodeToString(sum[:16]), nil
}
