package http

import (
	"net/http"
	"net/url"

	"github.com/aussiebroadwan/bartab-web/internal/web/session"
	"github.com/aussiebroadwan/bartab-web/pkg/oidcx"
	"github.com/aussiebroadwan/bartab-web/pkg/slogx"
)

// SignOutHandler serves GET and POST /auth/signout. It drops the session
// cookie and, when the provider supports it, ends the provider session too.
type SignOutHandler struct {
	Provider *oidcx.Provider
	Sessions *session.Store
	Site     siteURL
}

func (h *SignOutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())

	bundle, found, _ := h.Sessions.Load(r)
	h.Sessions.Clear(w, r)

	status := http.StatusFound
	if r.Method == http.MethodPost {
		status = http.StatusSeeOther
	}

	target := "/"
	if endSession := h.Provider.EndSessionURL(); endSession != "" && found {
		if u, err := url.Parse(endSession); err == nil {
			q := u.Query()
			q.Set("client_id", h.Provider.ClientID())
			q.Set("post_logout_redirect_uri", h.Site.base(r)+"/")
			if bundle.IDToken != "" {
				q.Set("id_token_hint", bundle.IDToken)
			}
			u.RawQuery = q.Encode()
			target = u.String()
		} else {
			log.Warn("ignoring malformed end_session_endpoint", "err", err)
		}
	}

	if found {
		log.Info("user signed out", "user_id", bundle.User.ID)
	}
	http.Redirect(w, r, target, status)
}
