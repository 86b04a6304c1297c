package jwtx_test

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"github.com/tinmegali/authserver/pkg/jwtx"
)

var fixedNow = time.Unix(1700000000, 0).UTC()

func fixedClock() time.Time { return fixedNow }

func isDecodeError(err error) bool {
	for _, target := range []error{
		jwtx.ErrMalformed,
		jwtx.ErrInvalidSig,
		jwtx.ErrAlgMismatch,
		jwtx.ErrUnknownKID,
		jwtx.ErrExpired,
		jwtx.ErrNotYetValid,
		jwtx.ErrIssuer,
		jwtx.ErrInvalidClaim,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func TestVerifier_ExpiryBoundary(t *testing.T) {
	t.Parallel()

	signer := newTestSigner(t, jwtx.AlgorithmHS256)
	codec, err := jwtx.NewCodec(signer, exampleIssuer, jwtx.WithClock(fixedClock))
	require.NoError(t, err)

	tests := []struct {
		name    string
		exp     time.Time
		wantErr error
	}{
		{"one hour left", fixedNow.Add(time.Hour), nil},
		{"one second left", fixedNow.Add(time.Second), nil},
		{"exactly now", fixedNow, jwtx.ErrExpired},
		{"one second ago", fixedNow.Add(-time.Second), jwtx.ErrExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := sampleClaims(fixedNow.Add(-time.Minute), 0)
			claims["exp"] = tt.exp.Unix()

			token, err := codec.Encode(claims)
			require.NoError(t, err)

			// Run it twice, the answer must not change between calls.
			for range 2 {
				_, err = codec.Decode(token)
				if tt.wantErr == nil {
					require.NoError(t, err)
				} else {
					require.ErrorIs(t, err, tt.wantErr)
				}
			}
		})
	}
}

func TestVerifier_RequiresExpiry(t *testing.T) {
	t.Parallel()

	codec, err := jwtx.NewCodec(newTestSigner(t, jwtx.AlgorithmHS256), exampleIssuer)
	require.NoError(t, err)

	claims := sampleClaims(time.Now(), time.Hour)
	delete(claims, "exp")
	token, err := codec.Encode(claims)
	require.NoError(t, err)

	_, err = codec.Decode(token)
	require.ErrorIs(t, err, jwtx.ErrInvalidClaim)
}

func TestVerifier_ByteMutation(t *testing.T) {
	t.Parallel()

	for _, alg := range []string{jwtx.AlgorithmHS256, jwtx.AlgorithmEdDSA} {
		t.Run(alg, func(t *testing.T) {
			t.Parallel()

			codec, err := jwtx.NewCodec(newTestSigner(t, alg), exampleIssuer)
			require.NoError(t, err)

			token, err := codec.Encode(sampleClaims(time.Now(), time.Hour))
			require.NoError(t, err)
			_, err = codec.Decode(token)
			require.NoError(t, err)

			for i := range len(token) {
				if token[i] == '.' {
					continue
				}
				replacement := byte('A')
				if token[i] == 'A' {
					replacement = 'B'
				}
				mutated := token[:i] + string(replacement) + token[i+1:]

				_, err := codec.Decode(mutated)
				require.Error(t, err, "mutation at %d accepted", i)
				require.True(t, isDecodeError(err), "mutation at %d gave unclassified error %v", i, err)
			}
		})
	}
}

func TestVerifier_Rejects(t *testing.T) {
	t.Parallel()

	signer := newTestSigner(t, jwtx.AlgorithmRS256)
	codec, err := jwtx.NewCodec(signer, exampleIssuer)
	require.NoError(t, err)

	other, err := jwtx.EphemeralKeyProvider{Algorithm: jwtx.AlgorithmRS256}.Signer()
	require.NoError(t, err)
	claims := sampleClaims(time.Now(), time.Hour)

	foreignKID, err := other.Sign(claims)
	require.NoError(t, err)

	hsSigner, err := jwtx.NewSignerHS256(signer.KID(), []byte(strings.Repeat("s", 32)))
	require.NoError(t, err)
	wrongAlg, err := hsSigner.Sign(claims)
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims(claims))
	none.Header["kid"] = signer.KID()
	noneToken, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	wrongIss := claims.Clone()
	wrongIss["iss"] = "http://evil.example"
	wrongIssToken, err := signer.Sign(wrongIss)
	require.NoError(t, err)

	notYet := claims.Clone()
	notYet["nbf"] = time.Now().Add(time.Hour).Unix()
	notYetToken, err := signer.Sign(notYet)
	require.NoError(t, err)

	valid, err := signer.Sign(claims)
	require.NoError(t, err)
	parts := strings.Split(valid, ".")
	padded := parts[0] + "." + parts[1] + "=." + parts[2]

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	forgedPayload := strings.Replace(string(payload), `"alice"`, `"admin"`, 1)
	forged := parts[0] + "." + base64.RawURLEncoding.EncodeToString([]byte(forgedPayload)) + "." + parts[2]

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"empty", "", jwtx.ErrMalformed},
		{"garbage", "not.a.jwt", jwtx.ErrMalformed},
		{"two segments", parts[0] + "." + parts[1], jwtx.ErrMalformed},
		{"padded base64", padded, jwtx.ErrMalformed},
		{"unknown kid", foreignKID, jwtx.ErrUnknownKID},
		{"hs256 with rsa kid", wrongAlg, jwtx.ErrAlgMismatch},
		{"alg none", noneToken, jwtx.ErrAlgMismatch},
		{"wrong issuer", wrongIssToken, jwtx.ErrIssuer},
		{"not yet valid", notYetToken, jwtx.ErrNotYetValid},
		{"forged payload", forged, jwtx.ErrInvalidSig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.Decode(tt.token)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestVerifier_IssuerOptional(t *testing.T) {
	t.Parallel()

	signer := newTestSigner(t, jwtx.AlgorithmEdDSA)
	keys := jwtx.NewKeySet()
	require.NoError(t, keys.AddSigner(signer))
	verifier := jwtx.NewVerifier(keys, signer.Alg(), "")

	claims := sampleClaims(time.Now(), time.Hour)
	claims["iss"] = "anyone"
	token, err := signer.Sign(claims)
	require.NoError(t, err)

	got, err := verifier.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "anyone", got.Issuer())
}
