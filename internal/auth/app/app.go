package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tinmegali/authserver/internal/auth/accounts"
	httpapi "github.com/tinmegali/authserver/internal/auth/http"
	"github.com/tinmegali/authserver/internal/auth/metrics"
	"github.com/tinmegali/authserver/internal/auth/registry"
	"github.com/tinmegali/authserver/internal/auth/service"
	"github.com/tinmegali/authserver/internal/auth/store"
	"github.com/tinmegali/authserver/internal/auth/store/drivers/redis"
	"github.com/tinmegali/authserver/internal/auth/store/drivers/sqlite"
	"github.com/tinmegali/authserver/pkg/cryptox"
	"github.com/tinmegali/authserver/pkg/jwtx"
	"github.com/tinmegali/authserver/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application encapsulates the auth service application with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db       store.Store
	codec    *jwtx.Codec
	clients  *registry.Registry
	accounts *accounts.Directory
	metrics  *metrics.Metrics

	// Services
	tokenService         *service.TokenService
	introspectionService *service.IntrospectionService
	housekeepingService  *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// Option adjusts an Application before its services are built.
type Option func(*Application)

// WithLogger replaces the logger built from the configuration.
func WithLogger(l *slog.Logger) Option {
	return func(app *Application) { app.logger = l }
}

// New creates a new Application instance with all dependencies initialized.
// Configuration errors and key failures stop startup here.
func New(cfg Config, opts ...Option) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &Application{cfg: cfg}
	for _, opt := range opts {
		opt(app)
	}
	if app.logger == nil {
		app.logger = slogx.New(slogx.Config{
			Service: "auth-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		})
	}

	// Pepper must be in place before any secret hash is checked
	if err := cryptox.LoadPepper(cfg.PepperFile); err != nil {
		return nil, fmt.Errorf("failed to load pepper: %w", err)
	}

	codec, err := InitSigningKey(cfg, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize signing key: %w", err)
	}
	app.codec = codec

	if err := app.initDirectories(); err != nil {
		return nil, err
	}

	ctx := context.Background()
	if err := app.initStore(ctx); err != nil {
		return nil, err
	}

	app.metrics = metrics.New()
	app.initServices()
	app.initHTTP()

	return app, nil
}

// Handler returns the fully wired HTTP handler.
func (app *Application) Handler() http.Handler { return app.router }

// TokenService exposes the issuer, e.g. to mint authorization codes.
func (app *Application) TokenService() *service.TokenService { return app.tokenService }

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	// Start housekeeping service
	app.housekeepingService.Start()

	app.logger.Info("auth service starting", "port", app.cfg.Port, "version", BuildVersion)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		// Perform graceful shutdown
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	// Shutdown the HTTP server
	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	// Stop the housekeeping service
	app.housekeepingService.Stop()

	return app.Close()
}

// Close releases the store without touching the HTTP server.
func (app *Application) Close() error {
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing store", "error", err)
		return err
	}
	app.logger.Info("auth service stopped")
	return nil
}

// initDirectories loads the client table and, if configured, the accounts.
func (app *Application) initDirectories() error {
	clients, err := registry.Load(app.cfg.ClientsFile, registry.Defaults{
		AccessTokenValidity:  app.cfg.AccessTokenValidity,
		RefreshTokenValidity: app.cfg.RefreshTokenValidity,
		ResourceID:           app.cfg.ResourceID,
	})
	if err != nil {
		return fmt.Errorf("failed to load clients: %w", err)
	}
	app.clients = clients
	app.logger.Info("client registry loaded", "clients", clients.Len())

	if app.cfg.AccountsFile == "" {
		app.logger.Warn("no accounts file configured - password grant is disabled")
		return nil
	}
	dir, err := accounts.Load(app.cfg.AccountsFile)
	if err != nil {
		return fmt.Errorf("failed to load accounts: %w", err)
	}
	app.accounts = dir
	app.logger.Info("accounts loaded", "accounts", dir.Len())
	return nil
}

// initStore opens the configured code and rotation store
func (app *Application) initStore(ctx context.Context) error {
	switch app.cfg.Store {
	case StoreRedis:
		db, err := redis.NewStore(ctx, redis.Config{
			Addr:      app.cfg.RedisAddr,
			Password:  app.cfg.RedisPassword,
			DB:        app.cfg.RedisDB,
			KeyPrefix: app.cfg.RedisPrefix,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		app.db = db
		app.logger.Info("redis store connected", "addr", app.cfg.RedisAddr)
		return nil

	default:
		dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", app.cfg.DatabaseFile)
		db, err := sqlite.NewStore(dsn)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		app.db = db

		if err := db.ApplyMigrations(); err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to apply database migrations: %w", err)
		}

		app.logger.Info("database migrations applied successfully")
		return nil
	}
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	app.tokenService = &service.TokenService{
		Clients:             app.clients,
		Codec:               app.codec,
		Codes:               app.db.AuthorizationCodes(),
		Rotations:           app.db.RefreshRotations(),
		Namespace:           app.cfg.Namespace,
		Issuer:              app.cfg.Issuer,
		RefreshPolicy:       app.cfg.RefreshPolicy,
		CollaboratorTimeout: app.cfg.CollaboratorTimeout,
		CodeTTL:             app.cfg.CodeTTL,
		Metrics:             app.metrics,
	}
	// A nil *Directory in the interface would not compare equal to nil
	if app.accounts != nil {
		app.tokenService.Authenticator = app.accounts
	}

	app.introspectionService = &service.IntrospectionService{
		Codec:   app.codec,
		Policy:  service.DefaultAccessPolicy(),
		Metrics: app.metrics,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.codec,
		app.db,
		BuildVersion,
		app.cfg.RateLimits,
		app.metrics,
		app.logger,
	)

	// Wire services to router
	router.Clients = app.clients
	router.TokenService = app.tokenService
	router.IntrospectionService = app.introspectionService
	router.ApplyRoutes()

	app.router = router

	// Initialize HTTP server
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
