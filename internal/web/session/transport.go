package session

import "net/http"

// Transport attaches the session's access token to outbound requests made
// with a request context that carries a session. Requests that already set
// Authorization are sent as-is.
type Transport struct {
	Base http.RoundTripper // defaults to http.DefaultTransport
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	s, ok := FromContext(req.Context())
	if !ok || s.AccessToken == "" || req.Header.Get("Authorization") != "" {
		return base.RoundTrip(req)
	}

	// RoundTrippers must not modify the caller's request.
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+s.AccessToken)
	return base.RoundTrip(req)
}
