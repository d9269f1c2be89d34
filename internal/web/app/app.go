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

	"github.com/aussiebroadwan/bartab-web/internal/web/backend"
	httpapi "github.com/aussiebroadwan/bartab-web/internal/web/http"
	"github.com/aussiebroadwan/bartab-web/internal/web/service"
	"github.com/aussiebroadwan/bartab-web/internal/web/session"
	"github.com/aussiebroadwan/bartab-web/pkg/oidcx"
	"github.com/aussiebroadwan/bartab-web/pkg/otelx"
	"github.com/aussiebroadwan/bartab-web/pkg/sentryx"
	"github.com/aussiebroadwan/bartab-web/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"

	serviceName = "bartab-web"
)

// Application encapsulates the web gateway with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	provider *oidcx.Provider
	sessions *session.Store
	backend  *backend.Client

	// Services
	refreshService *service.RefreshService
	signInService  *service.SignInService

	// Telemetry
	flushSentry   func(time.Duration) bool
	shutdownTrace func(context.Context) error

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: serviceName,
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	ctx := context.Background()

	if err := app.initTelemetry(ctx); err != nil {
		return nil, err
	}

	// Discovery needs a context that lives as long as the provider
	provider, err := oidcx.Discover(ctx, oidcx.Config{
		Issuer:       cfg.Issuer,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		HTTPClient: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelx.Transport(nil),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize identity provider: %w", err)
	}
	app.provider = provider
	app.logger.Info("identity provider discovered", "issuer", cfg.Issuer, "end_session", provider.EndSessionURL() != "")

	sessions, err := session.NewStore([]byte(cfg.AuthSecret), cfg.SessionMaxAge)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session store: %w", err)
	}
	app.sessions = sessions

	// Backend calls carry the signed-in user's access token
	app.backend = backend.NewClient(cfg.BackendURL, &http.Client{
		Timeout:   10 * time.Second,
		Transport: &session.Transport{Base: otelx.Transport(nil)},
	})

	app.initServices()
	if err := app.initHTTP(); err != nil {
		return nil, err
	}

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.logger.Info("web service starting", "port", app.cfg.Port, "version", BuildVersion)

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
	app.logger.Info("shutting down web service...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "err", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "err", err)
		}
	}

	if err := app.shutdownTrace(ctx); err != nil {
		app.logger.Error("error flushing traces", "err", err)
	}
	if !app.flushSentry(2 * time.Second) {
		app.logger.Warn("sentry events may have been dropped")
	}

	app.logger.Info("web service stopped")
	return nil
}

// initTelemetry sets up error reporting and tracing; both are no-ops when
// unconfigured.
func (app *Application) initTelemetry(ctx context.Context) error {
	flush, err := sentryx.Init(sentryx.Config{
		DSN:              app.cfg.SentryDSN,
		Env:              app.cfg.Env,
		Release:          serviceName + "@" + BuildVersion,
		TracesSampleRate: app.cfg.SentryTracesSampleRate,
	})
	if err != nil {
		return err
	}
	app.flushSentry = flush

	shutdown, err := otelx.Setup(ctx, serviceName, BuildVersion, app.cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	app.shutdownTrace = shutdown

	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	app.refreshService = &service.RefreshService{Provider: app.provider}
	app.signInService = &service.SignInService{
		Provider: app.provider,
		Users:    app.backend,
	}
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() error {
	router, err := httpapi.NewRouter(
		[]byte(app.cfg.AuthSecret),
		app.cfg.AuthURL,
		BuildVersion,
		app.logger,
	)
	if err != nil {
		return fmt.Errorf("failed to initialize router: %w", err)
	}

	// Wire services to router
	router.Provider = app.provider
	router.Sessions = app.sessions
	router.Backend = app.backend
	router.RefreshService = app.refreshService
	router.SignInService = app.signInService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           otelx.Handler(router, serviceName),
		ReadHeaderTimeout: 3 * time.Second,
	}
	return nil
}

// Handler returns the fully wrapped HTTP handler.
func (app *Application) Handler() http.Handler {
	return app.server.Handler
}
