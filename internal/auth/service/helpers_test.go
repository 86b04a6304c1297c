package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tinmegali/authserver/internal/auth/accounts"
	"github.com/tinmegali/authserver/internal/auth/domain"
	"github.com/tinmegali/authserver/internal/auth/registry"
	"github.com/tinmegali/authserver/internal/auth/store/drivers/sqlite"
	"github.com/tinmegali/authserver/pkg/cryptox"
	"github.com/tinmegali/authserver/pkg/jwtx"
)

const (
	testIssuer   = "https://auth.test"
	testSecret   = "secret"
	testRedirect = "http://localhost:8080/cb"
)

// testClock is a settable clock shared by the service and the codec.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testEnv struct {
	clock    *testClock
	codec    *jwtx.Codec
	registry *registry.Registry
	store    *sqlite.Store
	svc      *TokenService
}

var (
	hashOnce   sync.Once
	secretHash string
	aliceHash  string
)

// hashes are computed once; argon2id is deliberately slow.
func testHashes(t *testing.T) (string, string) {
	t.Helper()
	hashOnce.Do(func() {
		var err error
		secretHash, err = cryptox.HashPassword(testSecret)
		if err != nil {
			panic(err)
		}
		aliceHash, err = cryptox.HashPassword("wonderland")
		if err != nil {
			panic(err)
		}
	})
	return secretHash, aliceHash
}

func testPolicies(secret string) []domain.ClientPolicy {
	return []domain.ClientPolicy{
		{
			ID:          "trusted-app",
			SecretHash:  secret,
			GrantTypes:  []domain.GrantType{domain.GrantClientCredentials, domain.GrantPassword, domain.GrantRefreshToken},
			Authorities: []string{"ROLE_CLIENT", "ROLE_TRUSTED_CLIENT"},
			Scopes:      []string{"read", "write", "trust"},
		},
		{
			ID:          "register-app",
			SecretHash:  secret,
			GrantTypes:  []domain.GrantType{domain.GrantClientCredentials},
			Authorities: []string{"ROLE_REGISTER"},
			Scopes:      []string{"read", "registerUser"},
		},
		{
			ID:                  "normal-app",
			Public:              true,
			GrantTypes:          []domain.GrantType{domain.GrantAuthorizationCode, domain.GrantImplicit, domain.GrantRefreshToken},
			Authorities:         []string{"ROLE_CLIENT"},
			Scopes:              []string{"read", "write"},
			RedirectURIs:        []string{testRedirect},
			AccessTokenValidity: 10 * time.Minute,
		},
		{
			ID:           "other-app",
			Public:       true,
			GrantTypes:   []domain.GrantType{domain.GrantAuthorizationCode},
			Scopes:       []string{"read"},
			RedirectURIs: []string{"http://other.test/cb"},
		},
	}
}

func alicePrincipal() domain.Principal {
	return domain.Principal{
		Username:    "alice",
		Authorities: []string{"ROLE_USER"},
		Attributes:  map[string]string{domain.AttrFirstName: "Alice"},
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	secret, alice := testHashes(t)

	clock := &testClock{t: time.Unix(1_750_000_000, 0).UTC()}

	signer, err := jwtx.EphemeralKeyProvider{Algorithm: jwtx.AlgorithmEdDSA}.Signer()
	require.NoError(t, err)
	codec, err := jwtx.NewCodec(signer, testIssuer, jwtx.WithClock(clock.Now))
	require.NoError(t, err)

	reg, err := registry.New(testPolicies(secret), registry.Defaults{
		AccessTokenValidity:  time.Hour,
		RefreshTokenValidity: 30 * 24 * time.Hour,
		ResourceID:           "oauth2-resource",
	})
	require.NoError(t, err)

	dir, err := accounts.New([]accounts.Account{
		{Username: "alice", PasswordHash: alice, Authorities: []string{"ROLE_USER"}, FirstName: "Alice"},
	})
	require.NoError(t, err)

	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	sessions := SessionResolverFunc(func(_ context.Context, session string) (domain.Principal, error) {
		if session == "sess-alice" {
			return alicePrincipal(), nil
		}
		return domain.Principal{}, ErrUnknownSession
	})

	return &testEnv{
		clock:    clock,
		codec:    codec,
		registry: reg,
		store:    st,
		svc: &TokenService{
			Clients:       reg,
			Codec:         codec,
			Authenticator: dir,
			Codes:         st.AuthorizationCodes(),
			Sessions:      sessions,
			Rotations:     st.RefreshRotations(),
			Issuer:        testIssuer,
			RefreshPolicy: domain.RefreshRotate,
			Now:           clock.Now,
		},
	}
}

func (e *testEnv) introspection() *IntrospectionService {
	return &IntrospectionService{Codec: e.codec, Policy: DefaultAccessPolicy()}
}

func trustedCaller() Caller {
	return Caller{ClientID: "trusted-app", Authorities: []string{"ROLE_CLIENT", "ROLE_TRUSTED_CLIENT"}}
}
