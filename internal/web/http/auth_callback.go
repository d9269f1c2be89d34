package http

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/aussiebroadwan/bartab-web/internal/web/service"
	"github.com/aussiebroadwan/bartab-web/internal/web/session"
	"github.com/aussiebroadwan/bartab-web/pkg/httpx"
	"github.com/aussiebroadwan/bartab-web/pkg/sentryx"
	"github.com/aussiebroadwan/bartab-web/pkg/slogx"
)

// CallbackHandler serves GET /auth/callback/keycloak, where the provider
// returns the browser after login.
type CallbackHandler struct {
	SignInService *service.SignInService
	Sessions      *session.Store
	Flow          *flowCodec
	Site          siteURL
}

func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	q := r.URL.Query()

	// 1. The flow cookie is single use, whatever happens next
	flow, flowErr := h.Flow.read(r)
	h.Flow.clear(w, r)

	// 2. The provider may report a failed or cancelled login
	if providerErr := q.Get("error"); providerErr != "" {
		log.Warn("provider returned an error",
			"error", providerErr,
			"error_description", q.Get("error_description"),
		)
		code := ErrCodeCallback
		if providerErr == "access_denied" {
			code = ErrCodeAccessDenied
		}
		redirectToError(w, r, code)
		return
	}

	// 3. The response must belong to the attempt this browser started
	if flowErr != nil {
		log.Warn("rejecting callback", "err", flowErr)
		redirectToError(w, r, ErrCodeCallback)
		return
	}
	if subtle.ConstantTimeCompare([]byte(q.Get("state")), []byte(flow.State)) != 1 {
		log.Warn("rejecting callback", "err", "state mismatch")
		redirectToError(w, r, ErrCodeCallback)
		return
	}
	code := q.Get("code")
	if code == "" {
		log.Warn("rejecting callback", "err", "missing code")
		redirectToError(w, r, ErrCodeCallback)
		return
	}

	// 4. Exchange, verify and register
	bundle, err := h.SignInService.Complete(ctx, h.Site.callback(r), code, flow.Verifier, flow.Nonce)
	if err != nil {
		if errors.Is(err, service.ErrAccessDenied) {
			redirectToError(w, r, ErrCodeAccessDenied)
			return
		}
		log.Error("sign-in callback failed", "err", err)
		sentryx.CaptureError(ctx, err)
		redirectToError(w, r, ErrCodeCallback)
		return
	}

	// 5. Persist the session and return the user where they started
	if err := h.Sessions.Save(w, r, bundle); err != nil {
		log.Error("failed to write session", "err", err)
		sentryx.CaptureError(ctx, err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "failed to save session")
		return
	}

	target := flow.CallbackURL
	if target == "" {
		target = "/"
	}
	http.Redirect(w, r, target, http.StatusFound)
}
