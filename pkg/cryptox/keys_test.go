package cryptox

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParsePrivateKeyPEM_Generated(t *testing.T) {
	rsaPEM, err := GenerateRSAKey(2048)
	require.NoError(t, err)
	ecPEM, err := GenerateES256Key()
	require.NoError(t, err)
	edPEM, err := GenerateEd25519Key()
	require.NoError(t, err)

	key, err := ParsePrivateKeyPEM(rsaPEM)
	require.NoError(t, err)
	require.IsType(t, &rsa.PrivateKey{}, key)

	key, err = ParsePrivateKeyPEM(ecPEM)
	require.NoError(t, err)
	require.IsType(t, &ecdsa.PrivateKey{}, key)

	key, err = ParsePrivateKeyPEM(edPEM)
	require.NoError(t, err)
	require.IsType(t, ed25519.PrivateKey{}, key)
}

func TestParsePrivateKeyPEM_LegacyEncodings(t *testing.T) {
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pkcs1 := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(rsaKey)})

	key, err := ParsePrivateKeyPEM(pkcs1)
	require.NoError(t, err)
	require.True(t, rsaKey.Equal(key))

	ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalECPrivateKey(ecKey)
	require.NoError(t, err)
	sec1 := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})

	key, err = ParsePrivateKeyPEM(sec1)
	require.NoError(t, err)
	require.True(t, ecKey.Equal(key))
}

func TestParsePrivateKeyPEM_Rejects(t *testing.T) {
	p384, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(p384)
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
	}{
		{"not pem", []byte("not a key")},
		{"unknown block", pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte{1, 2, 3}})},
		{"garbage pkcs8", pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: []byte{1, 2, 3}})},
		{"wrong curve", pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePrivateKeyPEM(tt.data)
			require.ErrorIs(t, err, ErrUnsupportedKey)
		})
	}
}

func TestGenerateRSAKey_TooSmall(t *testing.T) {
	_, err := GenerateRSAKey(1024)
	require.Error(t, err)
}

func TestPublicKeyFingerprint(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	a, err := PublicKeyFingerprint(pub)
	require.NoError(t, err)
	b, err := PublicKeyFingerprint(pub)
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.Len(t, a, 22)
}
