package http

import (
	"net/http"

	"github.com/aussiebroadwan/bartab-web/internal/web/domain"
	"github.com/aussiebroadwan/bartab-web/internal/web/session"
	"github.com/aussiebroadwan/bartab-web/pkg/httpx"
)

type homeResponse struct {
	Authenticated bool         `json:"authenticated"`
	User          *domain.User `json:"user"`
}

// HomeHandler serves the public landing page.
func HomeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var resp homeResponse
		if s, ok := session.FromContext(r.Context()); ok {
			resp.Authenticated = true
			resp.User = &s.User
		}
		httpx.WriteJSON(w, http.StatusOK, resp)
	}
}
