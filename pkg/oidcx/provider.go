// Package oidcx wraps an OpenID Connect relying-party client: discovery,
// the authorization code flow with PKCE, the refresh grant and ID token
// verification.
package oidcx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// DefaultScopes are requested when Config.Scopes is empty.
var DefaultScopes = []string{oidc.ScopeOpenID, "email", "profile"}

// ErrNonceMismatch is returned when an ID token does not carry the nonce
// that was sent with the authorization request.
var ErrNonceMismatch = errors.New("id token nonce mismatch")

// Config describes the relying party registered at the provider.
type Config struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	Scopes       []string

	// HTTPClient is used for every call to the provider. Defaults to a
	// client with a 10 second timeout.
	HTTPClient *http.Client
}

// Endpoints configures a Provider without discovery.
type Endpoints struct {
	AuthURL       string
	TokenURL      string
	EndSessionURL string
	KeySet        oidc.KeySet
}

// Provider is a configured identity provider.
type Provider struct {
	issuer        string
	oauth2        oauth2.Config
	verifier      *oidc.IDTokenVerifier
	endSessionURL string
	httpClient    *http.Client
}

// Discover loads the provider's metadata from
// {issuer}/.well-known/openid-configuration. ctx should outlive the
// Provider since remote key set refreshes are bound to it.
func Discover(ctx context.Context, cfg Config) (*Provider, error) {
	cfg = withDefaults(cfg)

	provider, err := oidc.NewProvider(oidc.ClientContext(ctx, cfg.HTTPClient), cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to query provider %q: %w", cfg.Issuer, err)
	}

	var metadata struct {
		EndSessionEndpoint string `json:"end_session_endpoint"`
	}
	if err := provider.Claims(&metadata); err != nil {
		return nil, fmt.Errorf("failed to decode provider metadata: %w", err)
	}

	endpoint := provider.Endpoint()
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	return &Provider{
		issuer:        cfg.Issuer,
		oauth2:        newOAuth2Config(cfg, endpoint),
		verifier:      provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		endSessionURL: metadata.EndSessionEndpoint,
		httpClient:    cfg.HTTPClient,
	}, nil
}

// New builds a Provider from explicit endpoints.
func New(cfg Config, ep Endpoints) *Provider {
	cfg = withDefaults(cfg)

	return &Provider{
		issuer: cfg.Issuer,
		oauth2: newOAuth2Config(cfg, oauth2.Endpoint{
			AuthURL:   ep.AuthURL,
			TokenURL:  ep.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		}),
		verifier:      oidc.NewVerifier(cfg.Issuer, ep.KeySet, &oidc.Config{ClientID: cfg.ClientID}),
		endSessionURL: ep.EndSessionURL,
		httpClient:    cfg.HTTPClient,
	}
}

func withDefaults(cfg Config) Config {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes
	}
	return cfg
}

func newOAuth2Config(cfg Config, endpoint oauth2.Endpoint) oauth2.Config {
	return oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     endpoint,
		Scopes:       cfg.Scopes,
	}
}

// Issuer returns the configured issuer URL.
func (p *Provider) Issuer() string { return p.issuer }

// ClientID returns the relying party's client ID.
func (p *Provider) ClientID() string { return p.oauth2.ClientID }

// TokenURL returns the provider's token endpoint.
func (p *Provider) TokenURL() string { return p.oauth2.Endpoint.TokenURL }

// EndSessionURL returns the RP-initiated logout endpoint, or "" when the
// provider does not advertise one.
func (p *Provider) EndSessionURL() string { return p.endSessionURL }

func (p *Provider) config(redirectURL string) *oauth2.Config {
	cfg := p.oauth2
	cfg.RedirectURL = redirectURL
	return &cfg
}

func (p *Provider) clientContext(ctx context.Context) context.Context {
	return oidc.ClientContext(context.WithValue(ctx, oauth2.HTTPClient, p.httpClient), p.httpClient)
}

// AuthCodeURL returns the authorization endpoint URL for a new login,
// carrying state, nonce and the S256 challenge of verifier.
func (p *Provider) AuthCodeURL(redirectURL, state, nonce, verifier string) string {
	return p.config(redirectURL).AuthCodeURL(state,
		oidc.Nonce(nonce),
		oauth2.S256ChallengeOption(verifier),
	)
}

// Exchange trades an authorization code for tokens.
func (p *Provider) Exchange(ctx context.Context, redirectURL, code, verifier string) (*oauth2.Token, error) {
	return p.config(redirectURL).Exchange(p.clientContext(ctx), code, oauth2.VerifierOption(verifier))
}

// Refresh performs a single refresh_token grant. Non-2xx responses come
// back as *oauth2.RetrieveError.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	expired := &oauth2.Token{
		RefreshToken: refreshToken,
		Expiry:       time.Now().Add(-time.Hour),
	}
	return p.config("").TokenSource(p.clientContext(ctx), expired).Token()
}

// VerifyIDToken checks signature, issuer, audience and expiry of rawIDToken,
// and that it carries nonce when nonce is non-empty.
func (p *Provider) VerifyIDToken(ctx context.Context, rawIDToken, nonce string) (*oidc.IDToken, error) {
	idToken, err := p.verifier.Verify(p.clientContext(ctx), rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}

	if nonce != "" && idToken.Nonce != nonce {
		return nil, ErrNonceMismatch
	}

	return idToken, nil
}

// Ping fetches the discovery document to check the provider is reachable.
func (p *Provider) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimSuffix(p.issuer, "/")+"/.well-known/openid-configuration", nil)
	if err != nil {
		return err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach provider: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("provider discovery returned %s", resp.Status)
	}
	return nil
}
