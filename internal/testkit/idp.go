// Package testkit provides in-process stand-ins for the identity provider
// and the backend API.
package testkit

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/bartab-web/pkg/oidcx"
)

const (
	TestClientID     = "bartab-web"
	TestClientSecret = "s3cr3t"
	testKeyID        = "test-key"

	// TokenPath mirrors Keycloak's token endpoint layout.
	TokenPath      = "/protocol/openid-connect/token"
	AuthPath       = "/protocol/openid-connect/auth"
	EndSessionPath = "/protocol/openid-connect/logout"
	jwksPath       = "/protocol/openid-connect/certs"
)

// TokenReply is what the fake token endpoint answers with.
type TokenReply struct {
	Status int
	Body   map[string]any
}

// IDP is a fake OpenID provider backed by httptest.
type IDP struct {
	Server *httptest.Server
	Key    *rsa.PrivateKey

	mu       sync.Mutex
	requests []url.Values
	reply    func(form url.Values) TokenReply
}

// NewIDP starts a fake provider that is shut down with the test.
func NewIDP(t testing.TB) *IDP {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	idp := &IDP{Key: key}
	idp.reply = func(url.Values) TokenReply {
		return TokenReply{Status: http.StatusOK, Body: map[string]any{
			"access_token":       "access-refreshed",
			"token_type":         "Bearer",
			"expires_in":         300,
			"refresh_token":      "refresh-rotated",
			"refresh_expires_in": 1800,
		}}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/openid-configuration", idp.handleDiscovery)
	mux.HandleFunc("GET "+jwksPath, idp.handleJWKS)
	mux.HandleFunc("POST "+TokenPath, idp.handleToken)

	idp.Server = httptest.NewServer(mux)
	t.Cleanup(idp.Server.Close)

	return idp
}

// Issuer returns the fake issuer URL.
func (i *IDP) Issuer() string { return i.Server.URL }

// Config returns relying-party settings pointing at the fake provider.
func (i *IDP) Config() oidcx.Config {
	return oidcx.Config{
		Issuer:       i.Issuer(),
		ClientID:     TestClientID,
		ClientSecret: TestClientSecret,
		HTTPClient:   i.Server.Client(),
	}
}

// Provider returns a discovered provider for the fake IdP.
func (i *IDP) Provider(t testing.TB) *oidcx.Provider {
	t.Helper()

	p, err := oidcx.Discover(t.Context(), i.Config())
	require.NoError(t, err)
	return p
}

// ReplyWith replaces the token endpoint behaviour.
func (i *IDP) ReplyWith(fn func(form url.Values) TokenReply) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.reply = fn
}

// TokenRequests returns a copy of every form posted to the token endpoint.
func (i *IDP) TokenRequests() []url.Values {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]url.Values(nil), i.requests...)
}

// SignIDToken mints an RS256 ID token. iss, aud, iat and exp are filled in
// unless claims already set them.
func (i *IDP) SignIDToken(t testing.TB, claims jwt.MapClaims) string {
	t.Helper()

	now := time.Now()
	full := jwt.MapClaims{
		"iss": i.Issuer(),
		"aud": TestClientID,
		"iat": now.Unix(),
		"exp": now.Add(5 * time.Minute).Unix(),
	}
	for k, v := range claims {
		full[k] = v
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, full)
	token.Header["kid"] = testKeyID

	signed, err := token.SignedString(i.Key)
	require.NoError(t, err)
	return signed
}

func (i *IDP) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"issuer":                                i.Issuer(),
		"authorization_endpoint":                i.Issuer() + AuthPath,
		"token_endpoint":                        i.Issuer() + TokenPath,
		"jwks_uri":                              i.Issuer() + jwksPath,
		"end_session_endpoint":                  i.Issuer() + EndSessionPath,
		"id_token_signing_alg_values_supported": []string{"RS256"},
		"response_types_supported":              []string{"code"},
		"subject_types_supported":               []string{"public"},
	})
}

func (i *IDP) handleJWKS(w http.ResponseWriter, r *http.Request) {
	pub := i.Key.PublicKey
	writeJSON(w, http.StatusOK, map[string]any{
		"keys": []map[string]string{{
			"kty": "RSA",
			"kid": testKeyID,
			"use": "sig",
			"alg": "RS256",
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}},
	})
}

func (i *IDP) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	i.mu.Lock()
	i.requests = append(i.requests, r.PostForm)
	reply := i.reply
	i.mu.Unlock()

	out := reply(r.PostForm)
	writeJSON(w, out.Status, out.Body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
