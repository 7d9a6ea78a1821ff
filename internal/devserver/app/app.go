package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	httpapi "github.com/aussiebroadwan/sessiongate/internal/devserver/http"
	"github.com/aussiebroadwan/sessiongate/internal/devserver/service"
	"github.com/aussiebroadwan/sessiongate/internal/metrics"
	"github.com/aussiebroadwan/sessiongate/internal/store"
	"github.com/aussiebroadwan/sessiongate/internal/store/drivers/sqlite"
	"github.com/aussiebroadwan/sessiongate/pkg/cryptox"
	"github.com/aussiebroadwan/sessiongate/pkg/jwtx"
	"github.com/aussiebroadwan/sessiongate/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"

	signingKeyID = "devauth-1"
)

// Application is the development auth backend: password login, rotating
// refresh cookies and role assignments for the seeded users.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db       store.Store
	signer   *jwtx.EdDSASigner
	verifier jwtx.Verifier
	registry *prometheus.Registry

	tokenService        *service.TokenService
	rolesService        *service.RolesService
	housekeepingService *service.HousekeepingService
	directory           *service.Directory

	server *http.Server
	router *httpapi.Router
}

type Option func(*Application)

// WithLogger replaces the logger built from the config.
func WithLogger(l *slog.Logger) Option {
	return func(a *Application) { a.logger = l }
}

// New creates the backend, migrates and seeds its database.
func New(cfg Config, opts ...Option) (*Application, error) {
	app := &Application{
		cfg:      cfg.withDefaults(),
		registry: prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(app)
	}
	if app.logger == nil {
		app.logger = slogx.SetDefault(slogx.Config{
			Service: "devauth",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		})
	}

	seed, err := service.LoadSeed(app.cfg.SeedFile)
	if err != nil {
		return nil, err
	}

	if err := app.initSigner(); err != nil {
		return nil, err
	}
	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	ctx := slogx.WithContext(context.Background(), app.logger)
	if err := seed.Apply(ctx, app.db); err != nil {
		_ = app.db.Close()
		return nil, fmt.Errorf("failed to seed database: %w", err)
	}
	app.directory = service.NewDirectory(seed.Departments)

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Handler returns the routed handler, for serving from tests.
func (app *Application) Handler() http.Handler { return app.router }

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("devauth starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

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
	app.logger.Info("shutting down devauth...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	return app.Close()
}

// Close releases the database without touching the HTTP server. Use it when
// the backend was only served through Handler.
func (app *Application) Close() error {
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}
	app.logger.Info("devauth stopped")
	return nil
}

func (app *Application) initSigner() error {
	var (
		pemKey []byte
		err    error
	)
	if app.cfg.SigningKeyFile == "" {
		pemKey, err = cryptox.GenerateEd25519Key()
		app.logger.Warn("using an ephemeral signing key, tokens die with the process")
	} else {
		pemKey, err = cryptox.LoadOrGenerateEd25519Key(app.cfg.SigningKeyFile, true)
	}
	if err != nil {
		return fmt.Errorf("failed to load signing key: %w", err)
	}

	signer, err := jwtx.NewSignerEdDSA(signingKeyID, pemKey)
	if err != nil {
		return fmt.Errorf("failed to initialize signer: %w", err)
	}
	app.signer = signer
	app.verifier = jwtx.NewCommonEdDSA(signer, app.cfg.Issuer)
	return nil
}

// initDatabase initializes the database and applies migrations
func (app *Application) initDatabase() error {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", app.cfg.DatabaseFile)
	db, err := sqlite.Open(dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	app.logger.Info("database migrations applied successfully")
	return nil
}

func (app *Application) initServices() {
	app.tokenService = &service.TokenService{
		Store:      app.db,
		Signer:     app.signer,
		Issuer:     app.cfg.Issuer,
		AccessTTL:  app.cfg.AccessTTL,
		RefreshTTL: app.cfg.RefreshTTL,
		Metrics:    metrics.NewServer(app.registry),
	}
	app.rolesService = &service.RolesService{Store: app.db}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.verifier,
		BuildVersion,
		app.registry,
		app.logger,
	)

	if app.cfg.CookieName != "" {
		router.Cookie.Name = app.cfg.CookieName
	}
	router.Cookie.Secure = app.cfg.CookieSecure
	router.Cookie.HttpOnly = app.cfg.CookieHTTPOnly
	router.TokenService = app.tokenService
	router.RolesService = app.rolesService
	router.Directory = app.directory
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
