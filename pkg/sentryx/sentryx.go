// Package sentryx reports panics and server errors to Sentry.
package sentryx

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
)

type Config struct {
	DSN              string
	Env              string
	Release          string
	TracesSampleRate float64
}

// Enabled reports whether events should be sent. Reporting is skipped in
// development and whenever no DSN is configured.
func (c Config) Enabled() bool {
	return c.DSN != "" && c.Env != "dev"
}

// Init configures the global Sentry client. It returns a flush function to
// be called on shutdown; when reporting is disabled both are no-ops.
func Init(cfg Config) (flush func(timeout time.Duration) bool, err error) {
	noop := func(time.Duration) bool { return true }

	if !cfg.Enabled() {
		return noop, nil
	}

	err = sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Env,
		Release:          cfg.Release,
		EnableTracing:    cfg.TracesSampleRate > 0,
		TracesSampleRate: cfg.TracesSampleRate,
		AttachStacktrace: true,
	})
	if err != nil {
		return noop, fmt.Errorf("failed to initialize sentry: %w", err)
	}

	return sentry.Flush, nil
}

// Middleware gives every request its own hub, records a transaction and
// reports panics before re-raising them to net/http.
func Middleware() func(http.Handler) http.Handler {
	handler := sentryhttp.New(sentryhttp.Options{
		Repanic: true,
		Timeout: 2 * time.Second,
	})
	return handler.Handle
}

// CaptureError reports err on the request's hub, falling back to the
// global hub outside of a request.
func CaptureError(ctx context.Context, err error) {
	if err == nil {
		return
	}

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.CaptureException(err)
}
