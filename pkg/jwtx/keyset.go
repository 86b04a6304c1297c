package jwtx

import (
	"errors"
	"slices"
	"sync"
)

var ErrNoKey = errors.New("jwtx: key not found")

// KeySet holds the verification keys by kid, along with the JWKS that
// gets published for them.
type KeySet struct {
	mu  sync.RWMutex
	jks JWKS
	pub map[string]any // kid: *rsa.PublicKey | ed25519.PublicKey | *ecdsa.PublicKey | []byte
}

// NewKeySet returns an empty KeySet.
func NewKeySet() *KeySet {
	return &KeySet{
		pub: make(map[string]any),
	}
}

// AddSigner registers a Signer's verification key under its kid.
func (k *KeySet) AddSigner(s Signer) error {
	return k.addKey(s.PublicJWK(), s.VerificationKey())
}

// AddJWK adds a published JWK and parses it into a usable crypto key.
func (k *KeySet) AddJWK(j JWK) error {
	key, err := parseJWKToKey(j)
	if err != nil {
		return err
	}
	return k.addKey(j, key)
}

func (k *KeySet) addKey(j JWK, key any) error {
	if j.Kid == "" {
		return errors.New("jwtx: key without kid")
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, dup := k.pub[j.Kid]; dup {
		return errors.New("jwtx: duplicate kid " + j.Kid)
	}
	k.pub[j.Kid] = key
	k.jks.Keys = append(k.jks.Keys, j)
	return nil
}

// Get returns the verification key for the given kid.
func (k *KeySet) Get(kid string) (any, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if pk, ok := k.pub[kid]; ok {
		return pk, nil
	}
	return nil, ErrNoKey
}

// PublicJWKS returns a snapshot of the KeySet's JWKS for HTTP serving.
func (k *KeySet) PublicJWKS() JWKS {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return JWKS{Keys: slices.Clone(k.jks.Keys)}
}

// IsReady returns true if the KeySet has at least one key loaded.
func (k *KeySet) IsReady() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.pub) > 0
}

// ResetFromJWKS replaces all keys from a fetched JWKS. Symmetric entries
// are skipped since they carry no key material.
func (k *KeySet) ResetFromJWKS(jwks JWKS) error {
	newMap := make(map[string]any, len(jwks.Keys))
	kept := make([]JWK, 0, len(jwks.Keys))
	for _, j := range jwks.Keys {
		if j.IsSymmetric() {
			continue
		}
		key, err := parseJWKToKey(j)
		if err != nil {
			return err
		}
		newMap[j.Kid] = key
		kept = append(kept, j)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.pub = newMap
	k.jks = JWKS{Keys: kept}
	return nil
}
