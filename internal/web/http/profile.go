package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/bartab-web/internal/web/backend"
	"github.com/aussiebroadwan/bartab-web/pkg/httpx"
	"github.com/aussiebroadwan/bartab-web/pkg/sentryx"
	"github.com/aussiebroadwan/bartab-web/pkg/slogx"
)

// ProfileHandler serves GET /api/profile by relaying the backend's view of
// the signed-in user.
type ProfileHandler struct {
	Backend *backend.Client
}

func (h *ProfileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	profile, err := h.Backend.CurrentUser(ctx)
	if err != nil {
		var se *backend.StatusError
		if errors.As(err, &se) {
			httpx.WriteError(w, se.StatusCode, "backend_error", http.StatusText(se.StatusCode))
			return
		}

		slogx.FromContext(ctx).Error("failed to fetch profile", "err", err)
		sentryx.CaptureError(ctx, err)
		httpx.WriteError(w, http.StatusBadGateway, "bad_gateway", "backend unavailable")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, profile)
}
