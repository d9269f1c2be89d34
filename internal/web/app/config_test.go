package app_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/bartab-web/internal/web/app"
)

func setRequired(t *testing.T) {
	t.Setenv("KEYCLOAK_CLIENT_ID", "bartab-web")
	t.Setenv("KEYCLOAK_CLIENT_SECRET", "s3cr3t")
	t.Setenv("KEYCLOAK_ISSUER", "https://sso.example.com/realms/bartab")
	t.Setenv("PUBLIC_BACKEND_URL", "https://api.example.com")
	t.Setenv("AUTH_SECRET", "0123456789abcdef0123456789abcdef")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := app.LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "bartab-web", cfg.ClientID)
	require.Equal(t, 720*time.Hour, cfg.SessionMaxAge)
	require.Equal(t, 1.0, cfg.SentryTracesSampleRate)
	require.Equal(t, "dev", cfg.Env)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, "json", cfg.LogFormat)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, 10*time.Second, cfg.ShutdownGracePeriod)
	require.Empty(t, cfg.AuthURL)
	require.Empty(t, cfg.SentryDSN)
}

func TestLoadConfigOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("AUTH_SESSION_MAX_AGE", "24h")
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "prod")
	t.Setenv("SENTRY_TRACES_SAMPLE_RATE", "0.25")

	cfg, err := app.LoadConfig()
	require.NoError(t, err)
	require.Equal(t, 24*time.Hour, cfg.SessionMaxAge)
	require.Equal(t, 9090, cfg.Port)
	require.Equal(t, "prod", cfg.Env)
	require.Equal(t, 0.25, cfg.SentryTracesSampleRate)
}

func TestLoadConfigMalformed(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "not-a-number")

	_, err := app.LoadConfig()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() app.Config {
		return app.Config{
			ClientID:               "bartab-web",
			ClientSecret:           "s3cr3t",
			Issuer:                 "https://sso.example.com/realms/bartab",
			BackendURL:             "https://api.example.com",
			AuthSecret:             "0123456789abcdef0123456789abcdef",
			SessionMaxAge:          time.Hour,
			SentryTracesSampleRate: 1,
		}
	}

	t.Run("valid", func(t *testing.T) {
		require.NoError(t, valid().Validate())
	})

	t.Run("reports every missing value", func(t *testing.T) {
		err := app.Config{SessionMaxAge: time.Hour}.Validate()
		require.Error(t, err)
		for _, name := range []string{
			"KEYCLOAK_CLIENT_ID",
			"KEYCLOAK_CLIENT_SECRET",
			"KEYCLOAK_ISSUER",
			"PUBLIC_BACKEND_URL",
			"AUTH_SECRET",
		} {
			require.ErrorContains(t, err, name)
		}
	})

	tests := []struct {
		name   string
		mutate func(*app.Config)
		want   string
	}{
		{"short secret", func(c *app.Config) { c.AuthSecret = "short" }, "AUTH_SECRET must be at least"},
		{"relative issuer", func(c *app.Config) { c.Issuer = "/realms/bartab" }, "KEYCLOAK_ISSUER must be an absolute URL"},
		{"relative auth url", func(c *app.Config) { c.AuthURL = "app.example.com" }, "AUTH_URL must be an absolute URL"},
		{"zero max age", func(c *app.Config) { c.SessionMaxAge = 0 }, "AUTH_SESSION_MAX_AGE"},
		{"sample rate", func(c *app.Config) { c.SentryTracesSampleRate = 2 }, "SENTRY_TRACES_SAMPLE_RATE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			require.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}
