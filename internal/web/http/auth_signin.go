package http

import (
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	"github.com/aussiebroadwan/bartab-web/pkg/cryptox"
	"github.com/aussiebroadwan/bartab-web/pkg/httpx"
	"github.com/aussiebroadwan/bartab-web/pkg/oidcx"
	"github.com/aussiebroadwan/bartab-web/pkg/sentryx"
	"github.com/aussiebroadwan/bartab-web/pkg/slogx"
)

// SignInHandler serves GET /auth/signin. It records a new login attempt in
// the flow cookie and sends the browser to the provider.
type SignInHandler struct {
	Provider *oidcx.Provider
	Flow     *flowCodec
	Site     siteURL
}

func (h *SignInHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	// 1. Fresh state and nonce for this attempt
	state, err := cryptox.RandomString(cryptox.StateSize)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	nonce, err := cryptox.RandomString(cryptox.StateSize)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	verifier := oauth2.GenerateVerifier()

	// 2. Remember them until the provider calls back
	flow := flowState{
		State:       state,
		Nonce:       nonce,
		Verifier:    verifier,
		CallbackURL: safeCallbackURL(r.URL.Query().Get("callbackUrl"), h.Site.base(r)),
	}
	if err := h.Flow.issue(w, r, flow); err != nil {
		h.fail(w, r, err)
		return
	}

	log.Debug("starting sign-in", "callback_url", flow.CallbackURL)

	// 3. Off to the provider
	httpx.NoCache(w)
	http.Redirect(w, r, h.Provider.AuthCodeURL(h.Site.callback(r), state, nonce, verifier), http.StatusFound)
}

func (h *SignInHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	slogx.FromContext(r.Context()).Error("failed to start sign-in", "err", err)
	sentryx.CaptureError(r.Context(), err)
	httpx.WriteError(w, http.StatusInternalServerError, "server_error", "failed to start sign-in")
}

// safeCallbackURL returns raw as a local path+query, or "/" when raw points
// off-site or back into the auth routes.
func safeCallbackURL(raw, base string) string {
	if raw == "" || strings.Contains(raw, `\`) {
		return "/"
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "/"
	}

	if u.Scheme != "" || u.Host != "" {
		b, err := url.Parse(base)
		if err != nil || !strings.EqualFold(u.Scheme, b.Scheme) || !strings.EqualFold(u.Host, b.Host) {
			return "/"
		}
		u.Scheme, u.Host, u.User = "", "", nil
	}

	if !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(u.Path, "//") {
		return "/"
	}
	if strings.HasPrefix(u.Path, authPrefix) {
		return "/"
	}

	u.Fragment = ""
	return u.RequestURI()
}
