package http

import (
	"net/http"

	"github.com/aussiebroadwan/bartab-web/internal/web/session"
	"github.com/aussiebroadwan/bartab-web/pkg/httpx"
)

// SessionHandler serves GET /auth/session: the current session as JSON, or
// {} when signed out.
func SessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session.FromContext(r.Context())
		if !ok {
			httpx.WriteJSON(w, http.StatusOK, struct{}{})
			return
		}
		httpx.WriteJSON(w, http.StatusOK, s)
	}
}
