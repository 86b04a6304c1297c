// Package redis is a store driver backed by Redis. Expiry is delegated to
// key TTLs, so the purge methods have nothing to do.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tinmegali/authserver/internal/auth/domain"
	"github.com/tinmegali/authserver/internal/auth/store"
)

// Default timeouts for Redis operations.
const (
	DefaultDialTimeout  = 5 * time.Second
	DefaultReadTimeout  = 3 * time.Second
	DefaultWriteTimeout = 3 * time.Second
)

const (
	keyTypeCode     = "code"
	keyTypeRotation = "rotated"
)

// Config holds Redis connection settings.
type Config struct {
	Addr     string
	Username string
	Password string
	DB       int

	// KeyPrefix namespaces every key, e.g. "auth:".
	KeyPrefix string

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

var _ store.Store = (*Store)(nil)

type Store struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewStore connects to Redis and verifies the connection.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis: address is required")
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: connect: %w", err)
	}
	return NewStoreWithClient(client, cfg.KeyPrefix), nil
}

// NewStoreWithClient wraps an existing client. Used with miniredis in tests.
func NewStoreWithClient(client redis.UniversalClient, keyPrefix string) *Store {
	return &Store{client: client, keyPrefix: keyPrefix}
}

func (s *Store) Close() error { return s.client.Close() }

// Ping checks Redis connectivity (health check).
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// ApplyMigrations is a no-op; Redis has no schema.
func (s *Store) ApplyMigrations() error { return nil }

func (s *Store) AuthorizationCodes() store.AuthorizationCodes { return (*codesRepo)(s) }
func (s *Store) RefreshRotations() store.RefreshRotations     { return (*rotationsRepo)(s) }

func (s *Store) key(kind, id string) string {
	return s.keyPrefix + kind + ":" + id
}

type storedCode struct {
	ID          string            `json:"id"`
	ClientID    string            `json:"client_id"`
	RedirectURI string            `json:"redirect_uri"`
	Username    string            `json:"username"`
	Authorities []string          `json:"authorities,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	Scopes      []string          `json:"scopes,omitempty"`
	ExpiresAt   int64             `json:"expires_at"`
	CreatedAt   int64             `json:"created_at"`
}

type codesRepo Store

func (r *codesRepo) CreateAuthorizationCode(ctx context.Context, code domain.AuthorizationCode) error {
	// The TTL follows the issuing clock, not the wall clock.
	issued := code.CreatedAt
	if issued.IsZero() {
		issued = time.Now()
	}
	ttl := code.ExpiresAt.Sub(issued)
	if ttl <= 0 {
		return errors.New("redis: authorization code already expired")
	}

	data, err := json.Marshal(storedCode{
		ID:          code.ID,
		ClientID:    code.ClientID,
		RedirectURI: code.RedirectURI,
		Username:    code.Principal.Username,
		Authorities: code.Principal.Authorities,
		Attributes:  code.Principal.Attributes,
		Scopes:      code.Scopes,
		ExpiresAt:   code.ExpiresAt.UnixMilli(),
		CreatedAt:   code.CreatedAt.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("redis: marshal code: %w", err)
	}

	ok, err := r.client.SetNX(ctx, (*Store)(r).key(keyTypeCode, code.CodeHash), data, ttl).Result()
	if err != nil {
		return fmt.Errorf("redis: store code: %w", err)
	}
	if !ok {
		return store.ErrAlreadyExists
	}
	return nil
}

// RedeemAuthorizationCode uses GETDEL, so a redeemed code is gone and a
// second attempt sees ErrNotFound.
func (r *codesRepo) RedeemAuthorizationCode(ctx context.Context, codeHash string, now time.Time) (domain.AuthorizationCode, error) {
	data, err := r.client.GetDel(ctx, (*Store)(r).key(keyTypeCode, codeHash)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.AuthorizationCode{}, store.ErrNotFound
		}
		return domain.AuthorizationCode{}, fmt.Errorf("redis: redeem code: %w", err)
	}

	var sc storedCode
	if err := json.Unmarshal(data, &sc); err != nil {
		return domain.AuthorizationCode{}, fmt.Errorf("redis: unmarshal code: %w", err)
	}

	used := now
	code := domain.AuthorizationCode{
		ID:          sc.ID,
		CodeHash:    codeHash,
		ClientID:    sc.ClientID,
		RedirectURI: sc.RedirectURI,
		Principal: domain.Principal{
			Username:    sc.Username,
			Authorities: sc.Authorities,
			Attributes:  sc.Attributes,
		},
		Scopes:    sc.Scopes,
		ExpiresAt: time.UnixMilli(sc.ExpiresAt).UTC(),
		UsedAt:    &used,
		CreatedAt: time.UnixMilli(sc.CreatedAt).UTC(),
	}
	// The TTL has a coarser clock than ours.
	if code.IsExpired(now) {
		return domain.AuthorizationCode{}, store.ErrNotFound
	}
	return code, nil
}

func (r *codesRepo) DeleteExpiredAuthorizationCodes(context.Context, time.Time) (int64, error) {
	return 0, nil
}

type rotationsRepo Store

func (r *rotationsRepo) ConsumeRefreshToken(ctx context.Context, jti, clientID string, expiresAt, now time.Time) error {
	// A record must outlive the token it guards; an already expired token
	// still gets a short record so the call stays single-use.
	ttl := max(expiresAt.Sub(now), time.Second)

	ok, err := r.client.SetNX(ctx, (*Store)(r).key(keyTypeRotation, jti), clientID, ttl).Result()
	if err != nil {
		return fmt.Errorf("redis: consume refresh token: %w", err)
	}
	if !ok {
		return store.ErrAlreadyConsumed
	}
	return nil
}

func (r *rotationsRepo) DeleteExpiredRefreshRotations(context.Context, time.Time) (int64, error) {
	return 0, nil
}
