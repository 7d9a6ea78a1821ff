package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/aussiebroadwan/sessiongate/internal/metrics"
	"github.com/aussiebroadwan/sessiongate/internal/store"
	"github.com/aussiebroadwan/sessiongate/internal/store/drivers/sqlite"
	"github.com/aussiebroadwan/sessiongate/pkg/authsdk"
	"github.com/aussiebroadwan/sessiongate/pkg/authsession"
	"github.com/aussiebroadwan/sessiongate/pkg/authz"
	"github.com/aussiebroadwan/sessiongate/pkg/cookiex"
	"github.com/aussiebroadwan/sessiongate/pkg/cryptox"
	"github.com/aussiebroadwan/sessiongate/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"

	persistTimeout = 5 * time.Second
)

// Application owns one user's session and everything it needs: the cookie
// jar, the HTTP client, durable storage and metrics.
type Application struct {
	cfg      Config
	logger   *slog.Logger
	registry *prometheus.Registry

	db      store.Store // nil when persistence is off
	cookies *store.CookiePersister

	jar     *cookiex.Jar
	client  *authsdk.SDKClient
	session *authsession.Session
	guard   *authsession.Guard
}

type Option func(*Application)

// WithLogger replaces the logger built from the config.
func WithLogger(l *slog.Logger) Option {
	return func(a *Application) { a.logger = l }
}

// New wires the application. Nothing talks to the network until Bootstrap.
func New(cfg Config, opts ...Option) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &Application{
		cfg:      cfg,
		registry: prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(app)
	}
	if app.logger == nil {
		app.logger = slogx.New(slogx.Config{
			Service: "sessiongate",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		})
	}

	origin, err := url.Parse(cfg.APIBaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}

	app.jar = cookiex.New(origin, cookiex.WithRefreshCookie(cfg.RefreshCookie))
	app.client = authsdk.NewSDKClient(cfg.APIBaseURL,
		authsdk.WithCookieJar(app.jar),
		authsdk.WithTimeout(cfg.HTTPTimeout),
	)

	sessionOpts := []authsession.Option{
		authsession.WithLogger(app.logger.With("component", "session")),
		authsession.WithObserver(metrics.NewRecorder(app.registry)),
		authsession.WithLeeway(cfg.RefreshLeeway),
	}
	if cfg.ExactRoles {
		sessionOpts = append(sessionOpts, authsession.WithMatcher(authz.MatchExact))
	}

	if cfg.DatabaseFile != "" {
		stateStore, err := app.initStorage(origin)
		if err != nil {
			return nil, err
		}
		sessionOpts = append(sessionOpts, authsession.WithStateStore(stateStore))
	}

	app.session = authsession.New(app.client, app.client, app.jar, sessionOpts...)
	app.guard = authsession.NewGuard(app.session)

	return app, nil
}

// initStorage opens the database and returns the session's state store.
func (app *Application) initStorage(origin *url.URL) (authsession.StateStore, error) {
	secret, err := LoadMasterKey(app.cfg, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load master key: %w", err)
	}

	tokenSealer, err := cryptox.NewSealer(secret, app.cfg.StorageKey)
	if err != nil {
		return nil, err
	}
	cookieSealer, err := cryptox.NewSealer(secret, "cookies")
	if err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", app.cfg.DatabaseFile)
	db, err := sqlite.Open(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	app.cookies = store.NewCookiePersister(db, cookieSealer, origin.String())
	app.jar.OnChange(app.saveCookies)

	app.logger.Debug("database ready", "file", app.cfg.DatabaseFile)
	return store.NewStateStoreAdapter(db, tokenSealer, app.cfg.StorageKey), nil
}

func (app *Application) saveCookies() {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := app.cookies.Save(ctx, app.jar); err != nil {
		app.logger.Warn("failed to persist cookies", "err", err)
	}
}

// Bootstrap restores any persisted session and runs the initial auth check,
// waiting for role confirmation so the caller sees a settled state.
func (app *Application) Bootstrap(ctx context.Context) error {
	if app.cookies != nil {
		if err := app.cookies.LoadInto(ctx, app.jar); err != nil {
			return err
		}
	}

	if err := app.session.Restore(ctx); err != nil {
		app.logger.Warn("ignoring unreadable session state", "err", err)
	}

	if err := app.session.CheckAuthStatus(ctx); err != nil {
		return err
	}
	return app.session.WaitIdle(ctx)
}

// Login signs in with a password. The refresh credential arrives as a
// cookie (or in the body) and the role cache is filled before returning.
func (app *Application) Login(ctx context.Context, username, password string) error {
	resp, err := app.client.Login(ctx, username, password)
	if err != nil {
		return err
	}

	app.jar.SetRefreshCredential(resp.RefreshToken)
	app.session.SetAccessToken(resp.AccessToken)

	if err := app.session.FetchUserRoles(ctx); err != nil {
		return err
	}
	app.logger.Info("signed in", "username", username)
	return nil
}

// Logout revokes the credential server side, best effort, then clears all
// local state.
func (app *Application) Logout(ctx context.Context) error {
	if err := app.client.Logout(ctx, app.session.AccessToken()); err != nil {
		app.logger.Warn("server logout failed", "err", err)
	}
	return app.session.Logout(ctx)
}

func (app *Application) Session() *authsession.Session { return app.session }
func (app *Application) Guard() *authsession.Guard     { return app.guard }
func (app *Application) Jar() *cookiex.Jar             { return app.jar }
func (app *Application) Logger() *slog.Logger          { return app.logger }

// API returns a client for authenticated calls that keeps the token fresh.
func (app *Application) API() *authsdk.AuthorizedClient {
	return app.client.Authorized(app.session)
}

// Gatherer exposes the session metrics.
func (app *Application) Gatherer() prometheus.Gatherer { return app.registry }

// Close stops background work and flushes state to disk.
func (app *Application) Close() error {
	app.session.Close()

	if app.db == nil {
		return nil
	}

	app.saveCookies()
	return app.db.Close()
}
