package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/tinmegali/authserver/internal/auth/domain"
	"github.com/tinmegali/authserver/internal/auth/metrics"
	"github.com/tinmegali/authserver/pkg/jwtx"
)

func TestTokenKey(t *testing.T) {
	env := newTestEnv(t)
	intro := env.introspection()
	ctx := context.Background()

	tk, err := intro.TokenKey(ctx, AnonymousCaller)
	require.NoError(t, err)
	require.Equal(t, jwtx.AlgorithmEdDSA, tk.Alg)
	require.Contains(t, tk.Value, "PUBLIC KEY")
	require.Len(t, tk.Keys, 1)

	_, err = intro.TokenKey(ctx, Caller{ClientID: "register-app", Authorities: []string{"ROLE_REGISTER"}})
	require.ErrorIs(t, err, ErrAccessDenied)
}

func TestTokenKey_SymmetricKeyHasNoValue(t *testing.T) {
	signer, err := jwtx.SecretKeyProvider{Secret: []byte(strings.Repeat("k", jwtx.MinHMACSecretLen))}.Signer()
	require.NoError(t, err)
	codec, err := jwtx.NewCodec(signer, "")
	require.NoError(t, err)

	intro := &IntrospectionService{Codec: codec, Policy: DefaultAccessPolicy()}
	tk, err := intro.TokenKey(context.Background(), AnonymousCaller)
	require.NoError(t, err)
	require.Equal(t, jwtx.AlgorithmHS256, tk.Alg)
	require.Empty(t, tk.Value)
}

type brokenCodec struct{ TokenCodec }

func (brokenCodec) TokenKey() (jwtx.TokenKey, error) {
	return jwtx.TokenKey{}, errors.New("hsm offline")
}

func TestTokenKey_KeyUnavailable(t *testing.T) {
	intro := &IntrospectionService{Codec: brokenCodec{}, Policy: DefaultAccessPolicy()}
	_, err := intro.TokenKey(context.Background(), AnonymousCaller)
	require.ErrorIs(t, err, ErrKeyUnavailable)
}

func TestCheckToken(t *testing.T) {
	env := newTestEnv(t)
	m := metrics.New()
	intro := env.introspection()
	intro.Metrics = m
	ctx := context.Background()

	grant := passwordGrant(t, env)

	claims, err := intro.CheckToken(ctx, trustedCaller(), grant.Access.Value)
	require.NoError(t, err)
	require.Equal(t, "alice", claims.Subject())
	require.Equal(t, []string{"read", "write"}, claims.Scope())

	_, err = intro.CheckToken(ctx, AnonymousCaller, grant.Access.Value)
	require.ErrorIs(t, err, ErrAccessDenied)

	_, err = intro.CheckToken(ctx, Caller{ClientID: "register-app", Authorities: []string{"ROLE_REGISTER"}}, grant.Access.Value)
	require.ErrorIs(t, err, ErrAccessDenied)
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(`
# HELP authserver_introspections_total token_key and check_token calls by outcome.
# TYPE authserver_introspections_total counter
authserver_introspections_total{endpoint="check_token",outcome="access_denied"} 2
authserver_introspections_total{endpoint="check_token",outcome="ok"} 1
`), "authserver_introspections_total"))

	_, err = intro.CheckToken(ctx, trustedCaller(), "")
	require.ErrorIs(t, err, ErrInvalidRequest)

	_, err = intro.CheckToken(ctx, trustedCaller(), grant.Refresh.Value)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestCheckToken_Tampered(t *testing.T) {
	env := newTestEnv(t)
	intro := env.introspection()
	grant := passwordGrant(t, env)

	parts := strings.Split(grant.Access.Value, ".")
	require.Len(t, parts, 3)

	for i := range parts {
		mutated := slicesClone(parts)
		b := []byte(mutated[i])
		if b[0] == 'A' {
			b[0] = 'B'
		} else {
			b[0] = 'A'
		}
		mutated[i] = string(b)

		_, err := intro.CheckToken(context.Background(), trustedCaller(), strings.Join(mutated, "."))
		require.ErrorIs(t, err, ErrInvalidToken, "segment %d", i)
	}
}

func TestCheckToken_ExpiryBoundary(t *testing.T) {
	env := newTestEnv(t)
	intro := env.introspection()
	ctx := context.Background()

	grant, err := env.svc.Issue(ctx, domain.TokenRequest{
		GrantType: "client_credentials", ClientID: "trusted-app", ClientSecret: testSecret,
	})
	require.NoError(t, err)

	env.clock.Advance(time.Hour - time.Second)
	_, err = intro.CheckToken(ctx, trustedCaller(), grant.Access.Value)
	require.NoError(t, err)

	env.clock.Advance(time.Second)
	_, err = intro.CheckToken(ctx, trustedCaller(), grant.Access.Value)
	require.ErrorIs(t, err, ErrInvalidToken)
	require.ErrorIs(t, err, jwtx.ErrExpired)
}

func TestCheckToken_OtherKey(t *testing.T) {
	env := newTestEnv(t)
	grant := passwordGrant(t, env)

	// A second instance with its own ephemeral key cannot verify the first one's tokens.
	other := newTestEnv(t)
	_, err := other.introspection().CheckToken(context.Background(), trustedCaller(), grant.Access.Value)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func slicesClone(s []string) []string { return append([]string(nil), s...) }
