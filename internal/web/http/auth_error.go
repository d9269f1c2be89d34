package http

import (
	"net/http"
	"net/url"

	"github.com/aussiebroadwan/bartab-web/pkg/httpx"
)

// Sign-in error codes passed to /auth/error.
const (
	ErrCodeAccessDenied  = "AccessDenied"
	ErrCodeCallback      = "Callback"
	ErrCodeConfiguration = "Configuration"
	ErrCodeDefault       = "Default"
)

var errorDescriptions = map[string]string{
	ErrCodeAccessDenied:  "You do not have permission to sign in.",
	ErrCodeCallback:      "Sign in failed. Try signing in again.",
	ErrCodeConfiguration: "There is a problem with the server configuration.",
	ErrCodeDefault:       "Unable to sign in.",
}

// ErrorHandler serves GET /auth/error?error=Code.
func ErrorHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("error")
		desc, ok := errorDescriptions[code]
		if !ok {
			code, desc = ErrCodeDefault, errorDescriptions[ErrCodeDefault]
		}
		httpx.WriteError(w, http.StatusBadRequest, code, desc)
	}
}

func redirectToError(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, errorPath+"?"+url.Values{"error": {code}}.Encode(), http.StatusFound)
}
