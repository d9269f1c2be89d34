package http

import (
	"context"
	"net/http"
	"time"

	"github.com/aussiebroadwan/bartab-web/pkg/httpx"
)

// Pinger is a dependency the service cannot work without.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadyzHandler reports 503 until the identity provider answers.
func ReadyzHandler(startTime time.Time, version string, provider Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{"provider": "ok"}
		status := "ok"
		code := http.StatusOK

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if provider == nil {
			checks["provider"] = "error: not configured"
			status, code = "degraded", http.StatusServiceUnavailable
		} else if err := provider.Ping(ctx); err != nil {
			checks["provider"] = "error: " + err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
		}

		httpx.WriteJSON(w, code, HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
