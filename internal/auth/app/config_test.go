package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tinmegali/authserver/internal/auth/domain"
	"github.com/tinmegali/authserver/internal/auth/service"
	"github.com/tinmegali/authserver/pkg/jwtx"
)

func validConfig() Config {
	return Config{
		ResourceID:           "oauth2-resource",
		AccessTokenValidity:  time.Hour,
		RefreshTokenValidity: 30 * 24 * time.Hour,
		RefreshPolicy:        domain.RefreshRotate,
		ClientsFile:          "clients.yaml",
		KeySource:            KeySourceEphemeral,
		Algorithm:            jwtx.AlgorithmEdDSA,
		Store:                StoreSQLite,
		DatabaseFile:         "auth.db",
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("AUTH_CLIENTS_FILE", "/etc/auth/clients.yaml")

	cfg := LoadConfig()
	require.Equal(t, "/etc/auth/clients.yaml", cfg.ClientsFile)
	require.Equal(t, "oauth2-resource", cfg.ResourceID)
	require.Equal(t, time.Hour, cfg.AccessTokenValidity)
	require.Equal(t, 30*24*time.Hour, cfg.RefreshTokenValidity)
	require.Equal(t, service.DefaultNamespace, cfg.Namespace)
	require.Equal(t, domain.RefreshRotate, cfg.RefreshPolicy)
	require.Equal(t, 5*time.Minute, cfg.CodeTTL)
	require.Equal(t, KeySourceEphemeral, cfg.KeySource)
	require.Equal(t, jwtx.AlgorithmEdDSA, cfg.Algorithm)
	require.Equal(t, StoreSQLite, cfg.Store)
	require.Equal(t, "auth:", cfg.RedisPrefix)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, service.DefaultCollaboratorTimeout, cfg.CollaboratorTimeout)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("AUTH_CLIENTS_FILE", "clients.yaml")
	t.Setenv("AUTH_ISSUER", "https://auth.example.com")
	t.Setenv("AUTH_ACCESS_TOKEN_VALIDITY", "15m")
	t.Setenv("AUTH_REFRESH_TOKEN_VALIDITY", "3600")
	t.Setenv("AUTH_REFRESH_POLICY", "REUSE")
	t.Setenv("AUTH_KEY_SOURCE", "Secret")
	t.Setenv("AUTH_SIGNING_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("AUTH_STORE", "redis")
	t.Setenv("AUTH_REDIS_ADDR", "localhost:6379")
	t.Setenv("AUTH_REDIS_DB", "2")
	t.Setenv("PORT", "9090")
	t.Setenv("RATELIMIT_STRICT_REQUESTS", "3")

	cfg := LoadConfig()
	require.Equal(t, "https://auth.example.com", cfg.Issuer)
	require.Equal(t, 15*time.Minute, cfg.AccessTokenValidity)
	require.Equal(t, time.Hour, cfg.RefreshTokenValidity)
	require.Equal(t, domain.RefreshReuse, cfg.RefreshPolicy)
	require.Equal(t, KeySourceSecret, cfg.KeySource)
	require.Equal(t, StoreRedis, cfg.Store)
	require.Equal(t, 2, cfg.RedisDB)
	require.Equal(t, 9090, cfg.Port)
	require.Equal(t, 3, cfg.RateLimits.Strict.RequestsPerWindow)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_BadValuesFallBack(t *testing.T) {
	t.Setenv("AUTH_ACCESS_TOKEN_VALIDITY", "soon")
	t.Setenv("PORT", "eighty")

	cfg := LoadConfig()
	require.Equal(t, time.Hour, cfg.AccessTokenValidity)
	require.Equal(t, 8080, cfg.Port)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:    "zero access validity",
			mutate:  func(c *Config) { c.AccessTokenValidity = 0 },
			wantErr: "AUTH_ACCESS_TOKEN_VALIDITY",
		},
		{
			name:    "negative refresh validity",
			mutate:  func(c *Config) { c.RefreshTokenValidity = -time.Second },
			wantErr: "AUTH_REFRESH_TOKEN_VALIDITY",
		},
		{
			name:    "unknown refresh policy",
			mutate:  func(c *Config) { c.RefreshPolicy = "sometimes" },
			wantErr: "AUTH_REFRESH_POLICY",
		},
		{
			name:    "missing clients file",
			mutate:  func(c *Config) { c.ClientsFile = "" },
			wantErr: "AUTH_CLIENTS_FILE",
		},
		{
			name:    "file source without key",
			mutate:  func(c *Config) { c.KeySource = KeySourceFile },
			wantErr: "AUTH_SIGNING_KEY_FILE",
		},
		{
			name:    "secret source without secret",
			mutate:  func(c *Config) { c.KeySource = KeySourceSecret },
			wantErr: "AUTH_SIGNING_SECRET",
		},
		{
			name: "secret source with file",
			mutate: func(c *Config) {
				c.KeySource = KeySourceSecret
				c.SigningSecretFile = "/run/secrets/jwt"
			},
		},
		{
			name:    "unknown key source",
			mutate:  func(c *Config) { c.KeySource = "hsm" },
			wantErr: "AUTH_KEY_SOURCE",
		},
		{
			name:    "redis without address",
			mutate:  func(c *Config) { c.Store = StoreRedis },
			wantErr: "AUTH_REDIS_ADDR",
		},
		{
			name:    "unknown store",
			mutate:  func(c *Config) { c.Store = "postgres" },
			wantErr: "AUTH_STORE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_ValidateReportsEveryProblem(t *testing.T) {
	cfg := validConfig()
	cfg.AccessTokenValidity = 0
	cfg.ClientsFile = ""
	cfg.Store = "postgres"

	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "AUTH_ACCESS_TOKEN_VALIDITY")
	require.Contains(t, err.Error(), "AUTH_CLIENTS_FILE")
	require.Contains(t, err.Error(), "AUTH_STORE")
}
