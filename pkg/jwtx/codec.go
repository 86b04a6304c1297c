package jwtx

import (
	"errors"
	"fmt"
)

// ErrKeyUnavailable means no usable signing key could be loaded.
var ErrKeyUnavailable = errors.New("jwtx: key unavailable")

// TokenKey is the public verification material served by the token_key
// endpoint. Value is the PEM public key and is empty for symmetric keys.
type TokenKey struct {
	Alg   string `json:"alg"`
	Kid   string `json:"kid"`
	Value string `json:"value,omitempty"`
	Keys  []JWK  `json:"keys"`
}

// Codec pairs a signer with a verifier over the same key.
type Codec struct {
	signer   Signer
	verifier Verifier
	keys     *KeySet
}

// NewCodec validates the signer and builds a KeySet and verifier for it.
func NewCodec(signer Signer, issuer string, opts ...VerifierOption) (*Codec, error) {
	if signer == nil {
		return nil, fmt.Errorf("%w: nil signer", ErrKeyUnavailable)
	}
	if err := signer.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyUnavailable, err)
	}

	keys := NewKeySet()
	if err := keys.AddSigner(signer); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyUnavailable, err)
	}

	return &Codec{
		signer:   signer,
		verifier: NewVerifier(keys, signer.Alg(), issuer, opts...),
		keys:     keys,
	}, nil
}

// Encode signs the claims. Identical claims and key produce an identical
// token for the deterministic algorithms (RS256, EdDSA, HS256).
func (c *Codec) Encode(claims ClaimSet) (string, error) {
	token, err := c.signer.Sign(claims)
	if err != nil {
		return "", fmt.Errorf("jwtx: sign: %w", err)
	}
	return token, nil
}

// Decode verifies the token and returns its claims.
func (c *Codec) Decode(token string) (ClaimSet, error) {
	return c.verifier.Verify(token)
}

func (c *Codec) Alg() string { return c.signer.Alg() }
func (c *Codec) KID() string { return c.signer.KID() }
func (c *Codec) KeySet() *KeySet { return c.keys }
func (c *Codec) IsReady() bool { return c.keys.IsReady() }
func (c *Codec) Verifier() Verifier { return c.verifier }

// TokenKey returns the public verification material.
func (c *Codec) TokenKey() (TokenKey, error) {
	jwk := c.signer.PublicJWK()
	tk := TokenKey{
		Alg:  c.signer.Alg(),
		Kid:  c.signer.KID(),
		Keys: c.keys.PublicJWKS().Keys,
	}
	if jwk.IsSymmetric() {
		return tk, nil
	}
	value, err := jwk.PEM()
	if err != nil {
		return TokenKey{}, fmt.Errorf("jwtx: encode public key: %w", err)
	}
	tk.Value = value
	return tk, nil
}
