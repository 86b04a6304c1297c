package store

import (
	"context"
	"errors"
	"time"

	"github.com/tinmegali/authserver/internal/auth/domain"
)

var (
	ErrNotFound        = errors.New("store: not found")
	ErrAlreadyExists   = errors.New("store: already exists")
	ErrAlreadyConsumed = errors.New("store: already consumed")
)

// Store is the root data access interface. Concrete drivers (sqlite, redis)
// implement this. It only holds the state the token endpoint needs to keep
// between requests: pending authorization codes and the record of refresh
// tokens that have already been rotated.
type Store interface {
	AuthorizationCodes() AuthorizationCodes
	RefreshRotations() RefreshRotations

	// ApplyMigrations brings the backing schema up to date. Drivers without
	// a schema return nil.
	ApplyMigrations() error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the backend is still reachable.
	Ping(ctx context.Context) error
}

type AuthorizationCodes interface {
	// CreateAuthorizationCode stores a pending code. ErrAlreadyExists is
	// returned when the code hash is already present.
	CreateAuthorizationCode(ctx context.Context, code domain.AuthorizationCode) error

	// RedeemAuthorizationCode marks the code with the given hash as used and
	// returns it. A code is redeemed at most once even under concurrent
	// calls. Unknown and expired codes return ErrNotFound; a code that was
	// already redeemed returns ErrAlreadyConsumed or ErrNotFound depending
	// on whether the driver keeps used codes around.
	RedeemAuthorizationCode(ctx context.Context, codeHash string, now time.Time) (domain.AuthorizationCode, error)

	// DeleteExpiredAuthorizationCodes removes codes that expired before now
	// and returns how many were removed.
	DeleteExpiredAuthorizationCodes(ctx context.Context, now time.Time) (int64, error)
}

type RefreshRotations interface {
	// ConsumeRefreshToken records that the refresh token with this jti has
	// been exchanged. Only the first call for a jti succeeds; later calls
	// return ErrAlreadyConsumed. The record is stamped with now and kept
	// until expiresAt.
	ConsumeRefreshToken(ctx context.Context, jti, clientID string, expiresAt, now time.Time) error

	// DeleteExpiredRefreshRotations removes records whose token has expired.
	DeleteExpiredRefreshRotations(ctx context.Context, now time.Time) (int64, error)
}
