package sentryx_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/bartab-web/pkg/sentryx"
)

func TestConfigEnabled(t *testing.T) {
	tests := []struct {
		name string
		cfg  sentryx.Config
		want bool
	}{
		{"no dsn", sentryx.Config{Env: "prod"}, false},
		{"dev", sentryx.Config{DSN: "https://key@o1.ingest.sentry.io/1", Env: "dev"}, false},
		{"prod", sentryx.Config{DSN: "https://key@o1.ingest.sentry.io/1", Env: "prod"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.cfg.Enabled())
		})
	}
}

func TestInitDisabledIsNoop(t *testing.T) {
	flush, err := sentryx.Init(sentryx.Config{Env: "dev"})
	require.NoError(t, err)
	require.True(t, flush(time.Second))
}

func TestMiddlewarePassesThrough(t *testing.T) {
	h := sentryx.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sentryx.CaptureError(r.Context(), errors.New("boom"))
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)
}
