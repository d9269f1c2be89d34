package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aussiebroadwan/bartab-web/pkg/cryptox"
	"github.com/aussiebroadwan/bartab-web/pkg/httpx"
	"github.com/aussiebroadwan/bartab-web/pkg/idx"
)

const (
	flowCookieName = "bartab.flow"
	flowTTL        = 10 * time.Minute
	flowIssuer     = "bartab-web"
	flowKeyInfo    = "bartab-web sign-in flow"
)

var errFlowState = errors.New("invalid sign-in flow state")

// flowState is what the callback needs to finish a login started by
// /auth/signin.
type flowState struct {
	State       string
	Nonce       string
	Verifier    string
	CallbackURL string
}

type flowClaims struct {
	jwt.RegisteredClaims
	State       string `json:"state"`
	Nonce       string `json:"nonce"`
	Verifier    string `json:"pkce"`
	CallbackURL string `json:"cb"`
}

// flowCodec keeps a pending login in a short-lived HS256 cookie scoped to
// /auth/.
type flowCodec struct {
	key []byte
	now func() time.Time
}

func newFlowCodec(secret []byte) (*flowCodec, error) {
	key, err := cryptox.DeriveKey(secret, flowKeyInfo, 32)
	if err != nil {
		return nil, err
	}
	return &flowCodec{key: key, now: time.Now}, nil
}

func (c *flowCodec) issue(w http.ResponseWriter, r *http.Request, f flowState) error {
	now := c.now()
	claims := flowClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        idx.NewAt(now).String(),
			Issuer:    flowIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(flowTTL)),
		},
		State:       f.State,
		Nonce:       f.Nonce,
		Verifier:    f.Verifier,
		CallbackURL: f.CallbackURL,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return fmt.Errorf("failed to sign flow state: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     flowCookieName,
		Value:    signed,
		Path:     "/auth/",
		MaxAge:   int(flowTTL.Seconds()),
		Secure:   httpx.IsSecure(r),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (c *flowCodec) read(r *http.Request) (flowState, error) {
	cookie, err := r.Cookie(flowCookieName)
	if err != nil {
		return flowState{}, fmt.Errorf("%w: no flow cookie", errFlowState)
	}

	var claims flowClaims
	_, err = jwt.ParseWithClaims(cookie.Value, &claims,
		func(*jwt.Token) (any, error) { return c.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(flowIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return flowState{}, fmt.Errorf("%w: %w", errFlowState, err)
	}

	return flowState{
		State:       claims.State,
		Nonce:       claims.Nonce,
		Verifier:    claims.Verifier,
		CallbackURL: claims.CallbackURL,
	}, nil
}

// clear drops the flow cookie; each login attempt is single use.
func (c *flowCodec) clear(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     flowCookieName,
		Value:    "",
		Path:     "/auth/",
		MaxAge:   -1,
		Secure:   httpx.IsSecure(r),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
