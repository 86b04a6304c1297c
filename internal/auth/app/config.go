package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tinmegali/authserver/internal/auth/domain"
	"github.com/tinmegali/authserver/internal/auth/service"
	"github.com/tinmegali/authserver/pkg/httpx"
	"github.com/tinmegali/authserver/pkg/jwtx"
)

// Key sources.
const (
	KeySourceFile      = "file"
	KeySourceSecret    = "secret"
	KeySourceEphemeral = "ephemeral"
)

// Store drivers.
const (
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

type Config struct {
	Issuer               string               // Optional: iss claim; empty omits it
	ResourceID           string               // Optional: default aud for clients without resource_ids (default: oauth2-resource)
	AccessTokenValidity  time.Duration        // Optional: default access token lifetime (default: 1h)
	RefreshTokenValidity time.Duration        // Optional: default refresh token lifetime (default: 30d)
	Namespace            string               // Optional: prefix for principal claims (default: http://name.space/)
	RefreshPolicy        domain.RefreshPolicy // Optional: rotate or reuse (default: rotate)
	CodeTTL              time.Duration        // Optional: authorization code lifetime (default: 5m)

	ClientsFile  string // Required: YAML client table
	AccountsFile string // Optional: YAML accounts; without it the password grant is refused

	KeySource         string // Optional: file, secret or ephemeral (default: ephemeral)
	SigningKeyFile    string // Required for file: PEM private key
	SigningSecret     string // Required for secret unless SigningSecretFile is set
	SigningSecretFile string // Optional: file holding the HS256 secret
	Algorithm         string // Optional: algorithm for ephemeral keys (default: EdDSA)
	KeyID             string // Optional: kid header

	Store         string // Optional: sqlite or redis (default: sqlite)
	DatabaseFile  string // Optional: path to SQLite database file (default: ./auth.db)
	RedisAddr     string // Required for redis
	RedisPassword string
	RedisDB       int
	RedisPrefix   string // Optional: key prefix (default: auth:)

	CollaboratorTimeout  time.Duration    // Optional: bound on authenticator and store calls (default: 3s)
	PepperFile           string           // Optional: path to file containing pepper for secret hashing
	Env                  string           // Environment (dev, staging, prod) (default: dev)
	LogLevel             string           // Log level (debug, info, warn, error) (default: info)
	LogFormat            string           // Log format (json, text) (default: json)
	Port                 int              // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration    // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration    // Housekeeping interval (default: 1h)
	RateLimits           httpx.RateLimits // RATELIMIT_* overrides
}

func LoadConfig() Config {
	return Config{
		Issuer:               os.Getenv("AUTH_ISSUER"),
		ResourceID:           getEnvOrDefault("AUTH_RESOURCE_ID", "oauth2-resource"),
		AccessTokenValidity:  getEnvDurationOrDefault("AUTH_ACCESS_TOKEN_VALIDITY", time.Hour),
		RefreshTokenValidity: getEnvDurationOrDefault("AUTH_REFRESH_TOKEN_VALIDITY", 30*24*time.Hour),
		Namespace:            getEnvOrDefault("AUTH_NAMESPACE", service.DefaultNamespace),
		RefreshPolicy:        domain.RefreshPolicy(strings.ToLower(getEnvOrDefault("AUTH_REFRESH_POLICY", string(domain.RefreshRotate)))),
		CodeTTL:              getEnvDurationOrDefault("AUTH_CODE_TTL", 5*time.Minute),

		ClientsFile:  os.Getenv("AUTH_CLIENTS_FILE"),
		AccountsFile: os.Getenv("AUTH_ACCOUNTS_FILE"),

		KeySource:         strings.ToLower(getEnvOrDefault("AUTH_KEY_SOURCE", KeySourceEphemeral)),
		SigningKeyFile:    os.Getenv("AUTH_SIGNING_KEY_FILE"),
		SigningSecret:     os.Getenv("AUTH_SIGNING_SECRET"),
		SigningSecretFile: os.Getenv("AUTH_SIGNING_SECRET_FILE"),
		Algorithm:         getEnvOrDefault("AUTH_ALGORITHM", jwtx.AlgorithmEdDSA),
		KeyID:             os.Getenv("AUTH_KEY_ID"),

		Store:         strings.ToLower(getEnvOrDefault("AUTH_STORE", StoreSQLite)),
		DatabaseFile:  getEnvOrDefault("AUTH_DATABASE_FILE", "auth.db"),
		RedisAddr:     os.Getenv("AUTH_REDIS_ADDR"),
		RedisPassword: os.Getenv("AUTH_REDIS_PASSWORD"),
		RedisDB:       getEnvIntOrDefault("AUTH_REDIS_DB", 0),
		RedisPrefix:   getEnvOrDefault("AUTH_REDIS_PREFIX", "auth:"),

		CollaboratorTimeout:  getEnvDurationOrDefault("AUTH_COLLABORATOR_TIMEOUT", service.DefaultCollaboratorTimeout),
		PepperFile:           os.Getenv("AUTH_PEPPER_FILE"),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
		RateLimits:           httpx.RateLimitsFromEnv(),
	}
}

// Validate rejects configurations the server must not start with.
func (c Config) Validate() error {
	var errs []error

	if c.AccessTokenValidity <= 0 {
		errs = append(errs, errors.New("AUTH_ACCESS_TOKEN_VALIDITY must be positive"))
	}
	if c.RefreshTokenValidity <= 0 {
		errs = append(errs, errors.New("AUTH_REFRESH_TOKEN_VALIDITY must be positive"))
	}
	if !c.RefreshPolicy.IsValid() {
		errs = append(errs, fmt.Errorf("AUTH_REFRESH_POLICY %q is not rotate or reuse", c.RefreshPolicy))
	}
	if c.ClientsFile == "" {
		errs = append(errs, errors.New("AUTH_CLIENTS_FILE is required"))
	}

	switch c.KeySource {
	case KeySourceFile:
		if c.SigningKeyFile == "" {
			errs = append(errs, errors.New("AUTH_SIGNING_KEY_FILE is required for the file key source"))
		}
	case KeySourceSecret:
		if c.SigningSecret == "" && c.SigningSecretFile == "" {
			errs = append(errs, errors.New("AUTH_SIGNING_SECRET or AUTH_SIGNING_SECRET_FILE is required for the secret key source"))
		}
	case KeySourceEphemeral:
	default:
		errs = append(errs, fmt.Errorf("AUTH_KEY_SOURCE %q is not file, secret or ephemeral", c.KeySource))
	}

	switch c.Store {
	case StoreSQLite:
		if c.DatabaseFile == "" {
			errs = append(errs, errors.New("AUTH_DATABASE_FILE is required for the sqlite store"))
		}
	case StoreRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("AUTH_REDIS_ADDR is required for the redis store"))
		}
	default:
		errs = append(errs, fmt.Errorf("AUTH_STORE %q is not sqlite or redis", c.Store))
	}

	return errors.Join(errs...)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are seconds, matching how token validities are usually written
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
