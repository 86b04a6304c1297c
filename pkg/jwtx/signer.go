package jwtx

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tinmegali/authserver/pkg/cryptox"
)

// Supported JWT signing algorithms
const (
	AlgorithmRS256 = "RS256"
	AlgorithmES256 = "ES256"
	AlgorithmEdDSA = "EdDSA"
	AlgorithmHS256 = "HS256"
)

// Signer is our interface for anything that can sign JWTs.
type Signer interface {
	Alg() string
	KID() string
	Sign(ClaimSet) (string, error)

	// PublicJWK is what gets published in the JWKS. Symmetric signers only
	// publish metadata.
	PublicJWK() JWK

	// VerificationKey is the key handed to the parser when checking a
	// signature made by this signer.
	VerificationKey() any

	Validate() error
}

// keySigner signs with an asymmetric private key.
type keySigner struct {
	kid    string
	method jwt.SigningMethod
	key    crypto.Signer
	pub    crypto.PublicKey
	jwk    JWK
}

// NewSigner wraps an asymmetric private key. The algorithm follows the key
// type: RSA is RS256, P-256 ECDSA is ES256, Ed25519 is EdDSA.
func NewSigner(kid string, key crypto.Signer) (Signer, error) {
	if kid == "" {
		return nil, errors.New("jwtx: kid is required")
	}

	s := &keySigner{kid: kid, key: key, pub: key.Public()}
	switch k := key.(type) {
	case *rsa.PrivateKey:
		s.method = jwt.SigningMethodRS256
		s.jwk = NewRSAJWK(kid, "sig", AlgorithmRS256, &k.PublicKey)
	case *ecdsa.PrivateKey:
		if k.Curve != elliptic.P256() {
			return nil, fmt.Errorf("jwtx: unsupported EC curve %s", k.Curve.Params().Name)
		}
		s.method = jwt.SigningMethodES256
		s.jwk = NewES256JWK(kid, "sig", AlgorithmES256, &k.PublicKey)
	case ed25519.PrivateKey:
		s.method = jwt.SigningMethodEdDSA
		s.jwk = NewEd25519JWK(kid, "sig", AlgorithmEdDSA, k.Public().(ed25519.PublicKey))
	default:
		return nil, fmt.Errorf("jwtx: unsupported key type %T", key)
	}
	return s, nil
}

// NewSignerFromPEM parses a PEM private key and wraps it with NewSigner.
func NewSignerFromPEM(kid string, pemKey []byte) (Signer, error) {
	key, err := cryptox.ParsePrivateKeyPEM(pemKey)
	if err != nil {
		return nil, fmt.Errorf("jwtx: %w", err)
	}
	return NewSigner(kid, key)
}

func (s *keySigner) Alg() string { return s.method.Alg() }
func (s *keySigner) KID() string { return s.kid }
func (s *keySigner) PublicJWK() JWK { return s.jwk }
func (s *keySigner) VerificationKey() any { return s.pub }

// Sign takes the claims and turns them into a signed JWT string.
func (s *keySigner) Sign(claims ClaimSet) (string, error) {
	return sign(s.method, s.kid, claims, s.key)
}

// Validate signs a probe token and checks it against the public key, so a
// broken key pair fails at startup and not on the first request.
func (s *keySigner) Validate() error {
	if s.key == nil || s.pub == nil {
		return errors.New("jwtx: nil signing key")
	}
	return selfTest(s)
}

func sign(method jwt.SigningMethod, kid string, claims ClaimSet, key any) (string, error) {
	t := jwt.NewWithClaims(method, jwt.MapClaims(claims))
	t.Header["kid"] = kid
	return t.SignedString(key)
}

func selfTest(s Signer) error {
	probe, err := s.Sign(ClaimSet{"probe": true})
	if err != nil {
		return fmt.Errorf("jwtx: probe sign: %w", err)
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{s.Alg()}))
	if _, err := parser.Parse(probe, func(*jwt.Token) (any, error) { return s.VerificationKey(), nil }); err != nil {
		return fmt.Errorf("jwtx: probe verify: %w", err)
	}
	return nil
}
