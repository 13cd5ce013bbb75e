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

	httpapi "github.com/halcyonlabs/vaultgate/internal/server/http"
	"github.com/halcyonlabs/vaultgate/internal/server/service"
	"github.com/halcyonlabs/vaultgate/internal/server/store"
	"github.com/halcyonlabs/vaultgate/internal/server/store/drivers/memory"
	"github.com/halcyonlabs/vaultgate/internal/server/store/drivers/sqlite"
	"github.com/halcyonlabs/vaultgate/pkg/certx"
	"github.com/halcyonlabs/vaultgate/pkg/cryptox"
	"github.com/halcyonlabs/vaultgate/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the auth server with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db       store.Store
	verifier *certx.Verifier
	cipher   *cryptox.PayloadCipher

	// Services
	authService         *service.AuthService
	sessionService      *service.SessionService
	certGate            *service.CertGate
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "vaultgate-server",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	// Set pepper path for password hashing
	cryptox.SetPepperPath(app.cfg.PepperFile)

	if err := app.initStore(); err != nil {
		return nil, err
	}
	if err := app.initCrypto(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	if err := app.seedAccount(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("vaultgate server starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"store", app.cfg.StoreDriver,
		"tls", app.server.TLSConfig != nil,
	)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		if app.server.TLSConfig != nil {
			// Keypair already lives in TLSConfig.
			serverErrors <- app.server.ListenAndServeTLS("", "")
			return
		}
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down vaultgate server...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing store", "error", err)
		return err
	}

	app.logger.Info("vaultgate server stopped")
	return nil
}

// initStore initializes the configured store driver.
func (app *Application) initStore() error {
	switch app.cfg.StoreDriver {
	case "memory":
		app.db = memory.NewStore()
		return nil

	case "sqlite":
		dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
		db, err := sqlite.NewStore(dsn)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		if err := db.ApplyMigrations(); err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to apply database migrations: %w", err)
		}
		app.db = db
		app.logger.Info("database migrations applied successfully")
		return nil

	default:
		return fmt.Errorf("unknown store driver %q", app.cfg.StoreDriver)
	}
}

// initCrypto loads the payload cipher and the client certificate verifier.
func (app *Application) initCrypto() error {
	cipher, err := cryptox.LoadPayloadCipher(app.cfg.PayloadKeyFile)
	if err != nil {
		return fmt.Errorf("failed to load payload cipher: %w", err)
	}
	app.cipher = cipher

	verifier, err := certx.LoadVerifier(app.cfg.CACertFile)
	if err != nil {
		if !app.cfg.CertParseOnly {
			return fmt.Errorf("failed to load trust anchor: %w", err)
		}
		// Dev escape hatch: run without a CA, accepting any parseable cert.
		app.logger.Warn("trust anchor unavailable, running in parse-only certificate mode",
			"ca_cert_file", app.cfg.CACertFile)
		verifier = certx.ParseOnlyVerifier()
	}
	verifier.ParseOnly = app.cfg.CertParseOnly
	app.verifier = verifier

	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	app.authService = &service.AuthService{
		Store:  app.db,
		Issuer: app.cfg.Issuer,
	}
	app.sessionService = &service.SessionService{
		Store: app.db,
		TTL:   app.cfg.SessionTTL,
	}
	app.certGate = &service.CertGate{Verifier: app.verifier}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(app.db, app.logger)
	router.AuthService = app.authService
	router.SessionService = app.sessionService
	router.CertGate = app.certGate
	router.PayloadCipher = app.cipher
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}

	// TLS listen with client-cert request is opt-in: all three paths must
	// be configured.
	if app.cfg.TLSCertFile != "" && app.cfg.TLSKeyFile != "" {
		tlsConfig, err := certx.ServerTLSConfig(app.cfg.TLSCertFile, app.cfg.TLSKeyFile, app.cfg.CACertFile)
		if err != nil {
			app.logger.Warn("TLS keypair unavailable, serving plain HTTP", "error", err)
			return
		}
		app.server.TLSConfig = tlsConfig
	}
}

// seedAccount provisions the configured bootstrap account if it does not
// already exist. The password never appears in logs.
func (app *Application) seedAccount() error {
	if app.cfg.SeedUsername == "" {
		return nil
	}

	ctx := context.Background()
	_, err := app.authService.Provision(ctx, app.cfg.SeedUsername, app.cfg.SeedPassword)
	if errors.Is(err, service.ErrUsernameTaken) {
		app.logger.Info("seed account already provisioned", "username", app.cfg.SeedUsername)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to provision seed account: %w", err)
	}

	app.logger.Info("seed account provisioned", "username", app.cfg.SeedUsername)
	return nil
}
