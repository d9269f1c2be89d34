package app

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/aussiebroadwan/bartab-web/pkg/cryptox"
)

type Config struct {
	// Identity provider
	ClientID     string `env:"KEYCLOAK_CLIENT_ID"`
	ClientSecret string `env:"KEYCLOAK_CLIENT_SECRET"`
	Issuer       string `env:"KEYCLOAK_ISSUER"`

	BackendURL string `env:"PUBLIC_BACKEND_URL"` // API base URL, e.g. https://api.example.com

	AuthSecret    string        `env:"AUTH_SECRET"`                        // seals session cookies, signs flow state
	AuthURL       string        `env:"AUTH_URL"`                           // external base URL; empty derives it per request
	SessionMaxAge time.Duration `env:"AUTH_SESSION_MAX_AGE" envDefault:"720h"`

	SentryDSN              string  `env:"SENTRY_DSN"`
	SentryTracesSampleRate float64 `env:"SENTRY_TRACES_SAMPLE_RATE" envDefault:"1"`
	OTLPEndpoint           string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	Env                 string        `env:"ENV"                   envDefault:"dev"`  // dev, staging, prod
	LogLevel            string        `env:"LOG_LEVEL"             envDefault:"info"` // debug, info, warn, error
	LogFormat           string        `env:"LOG_FORMAT"            envDefault:"json"` // json, text
	Port                int           `env:"PORT"                  envDefault:"8080"`
	ShutdownGracePeriod time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`
}

// LoadConfig reads Config from the environment and validates it.
func LoadConfig() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every missing or malformed setting at once.
func (c Config) Validate() error {
	var errs []error

	required := []struct{ name, value string }{
		{"KEYCLOAK_CLIENT_ID", c.ClientID},
		{"KEYCLOAK_CLIENT_SECRET", c.ClientSecret},
		{"KEYCLOAK_ISSUER", c.Issuer},
		{"PUBLIC_BACKEND_URL", c.BackendURL},
		{"AUTH_SECRET", c.AuthSecret},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errs = append(errs, fmt.Errorf("%s is required", r.name))
		}
	}

	for _, u := range []struct{ name, value string }{
		{"KEYCLOAK_ISSUER", c.Issuer},
		{"PUBLIC_BACKEND_URL", c.BackendURL},
		{"AUTH_URL", c.AuthURL},
	} {
		if u.value == "" {
			continue
		}
		if parsed, err := url.Parse(u.value); err != nil || parsed.Scheme == "" || parsed.Host == "" {
			errs = append(errs, fmt.Errorf("%s must be an absolute URL", u.name))
		}
	}

	if c.AuthSecret != "" && len(c.AuthSecret) < cryptox.MinSecretLength {
		errs = append(errs, fmt.Errorf("AUTH_SECRET must be at least %d bytes", cryptox.MinSecretLength))
	}
	if c.SessionMaxAge <= 0 {
		errs = append(errs, errors.New("AUTH_SESSION_MAX_AGE must be positive"))
	}
	if c.SentryTracesSampleRate < 0 || c.SentryTracesSampleRate > 1 {
		errs = append(errs, errors.New("SENTRY_TRACES_SAMPLE_RATE must be between 0 and 1"))
	}

	return errors.Join(errs...)
}
