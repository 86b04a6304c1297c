package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tinmegali/authserver/internal/auth/domain"
	"github.com/tinmegali/authserver/internal/auth/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleCode(hash string, now time.Time) domain.AuthorizationCode {
	return domain.AuthorizationCode{
		ID:          "01HZX0CODE" + hash,
		CodeHash:    hash,
		ClientID:    "normal-app",
		RedirectURI: "http://localhost:8080/cb",
		Principal: domain.Principal{
			Username:    "alice",
			Authorities: []string{"ROLE_USER", "ROLE_ADMIN"},
			Attributes:  map[string]string{domain.AttrFirstName: "Alice"},
		},
		Scopes:    []string{"read", "write"},
		ExpiresAt: now.Add(5 * time.Minute),
		CreatedAt: now,
	}
}

func TestApplyMigrations_Idempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.ApplyMigrations())
	require.NoError(t, s.Ping(context.Background()))
}

func TestAuthorizationCodes_CreateAndRedeem(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	code := sampleCode("hash-1", now)
	require.NoError(t, s.AuthorizationCodes().CreateAuthorizationCode(ctx, code))
	require.ErrorIs(t, s.AuthorizationCodes().CreateAuthorizationCode(ctx, code), store.ErrAlreadyExists)

	got, err := s.AuthorizationCodes().RedeemAuthorizationCode(ctx, "hash-1", now)
	require.NoError(t, err)
	require.Equal(t, code.ClientID, got.ClientID)
	require.Equal(t, code.RedirectURI, got.RedirectURI)
	require.Equal(t, code.Principal, got.Principal)
	require.Equal(t, code.Scopes, got.Scopes)
	require.True(t, code.ExpiresAt.Equal(got.ExpiresAt))
	require.NotNil(t, got.UsedAt)

	_, err = s.AuthorizationCodes().RedeemAuthorizationCode(ctx, "hash-1", now)
	require.ErrorIs(t, err, store.ErrAlreadyConsumed)
}

func TestAuthorizationCodes_RedeemUnknownAndExpired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := s.AuthorizationCodes().RedeemAuthorizationCode(ctx, "missing", now)
	require.ErrorIs(t, err, store.ErrNotFound)

	code := sampleCode("hash-2", now)
	require.NoError(t, s.AuthorizationCodes().CreateAuthorizationCode(ctx, code))

	_, err = s.AuthorizationCodes().RedeemAuthorizationCode(ctx, "hash-2", code.ExpiresAt)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestAuthorizationCodes_ConcurrentRedeemOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, s.AuthorizationCodes().CreateAuthorizationCode(ctx, sampleCode("hash-3", now)))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.AuthorizationCodes().RedeemAuthorizationCode(ctx, "hash-3", now); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), wins.Load())
}

func TestAuthorizationCodes_DeleteExpired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.AuthorizationCodes().CreateAuthorizationCode(ctx, sampleCode("live", now)))
	old := sampleCode("old", now.Add(-time.Hour))
	require.NoError(t, s.AuthorizationCodes().CreateAuthorizationCode(ctx, old))

	n, err := s.AuthorizationCodes().DeleteExpiredAuthorizationCodes(ctx, now)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	_, err = s.AuthorizationCodes().RedeemAuthorizationCode(ctx, "live", now)
	require.NoError(t, err)
}

func TestRefreshRotations_ConsumeOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()
	exp := now.Add(time.Hour)

	require.NoError(t, s.RefreshRotations().ConsumeRefreshToken(ctx, "jti-1", "trusted-app", exp, now))
	require.ErrorIs(t, s.RefreshRotations().ConsumeRefreshToken(ctx, "jti-1", "trusted-app", exp, now), store.ErrAlreadyConsumed)
	require.NoError(t, s.RefreshRotations().ConsumeRefreshToken(ctx, "jti-2", "trusted-app", exp, now))
}

func TestRefreshRotations_StampsIssuingClock(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2020, 1, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.RefreshRotations().ConsumeRefreshToken(ctx, "jti-1", "trusted-app", now.Add(time.Hour), now))

	var consumedAt int64
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT consumed_at FROM refresh_rotations WHERE jti = ?`, "jti-1").Scan(&consumedAt))
	require.Equal(t, now.UnixMilli(), consumedAt)
}

func TestRefreshRotations_DeleteExpired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.RefreshRotations().ConsumeRefreshToken(ctx, "old", "trusted-app", now.Add(-time.Minute), now))
	require.NoError(t, s.RefreshRotations().ConsumeRefreshToken(ctx, "live", "trusted-app", now.Add(time.Hour), now))

	n, err := s.RefreshRotations().DeleteExpiredRefreshRotations(ctx, now)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	// The purged jti is free again, the live one is still consumed.
	require.NoError(t, s.RefreshRotations().ConsumeRefreshToken(ctx, "old", "trusted-app", now.Add(-time.Minute), now))
	require.ErrorIs(t, s.RefreshRotations().ConsumeRefreshToken(ctx, "live", "trusted-app", now.Add(time.Hour), now), store.ErrAlreadyConsumed)
}
