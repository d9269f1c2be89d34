package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/bartab-web/internal/web/backend"
	"github.com/aussiebroadwan/bartab-web/internal/web/service"
	"github.com/aussiebroadwan/bartab-web/internal/web/session"
	"github.com/aussiebroadwan/bartab-web/pkg/httpx"
	"github.com/aussiebroadwan/bartab-web/pkg/oidcx"
	"github.com/aussiebroadwan/bartab-web/pkg/sentryx"
	"github.com/aussiebroadwan/bartab-web/pkg/slogx"
)

// ProviderID names the single configured identity provider in callback
// URLs.
const ProviderID = "keycloak"

const (
	authPrefix   = session.AuthPrefix
	signInPath   = session.SignInPath
	signOutPath  = "/auth/signout"
	sessionPath  = "/auth/session"
	errorPath    = "/auth/error"
	callbackPath = "/auth/callback/" + ProviderID
)

// siteURL resolves absolute URLs of this app. A configured base wins over
// the request's own host.
type siteURL string

func (s siteURL) base(r *http.Request) string {
	if s != "" {
		return strings.TrimRight(string(s), "/")
	}
	return httpx.BaseURL(r)
}

func (s siteURL) callback(r *http.Request) string {
	return s.base(r) + callbackPath
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	site         siteURL
	flow         *flowCodec
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	Provider       *oidcx.Provider
	Sessions       *session.Store
	RefreshService *service.RefreshService
	SignInService  *service.SignInService
	Backend        *backend.Client
}

// NewRouter builds a router. authSecret keys the sign-in flow cookie;
// baseURL may be empty to derive it from each request.
func NewRouter(authSecret []byte, baseURL, buildVersion string, logger *slog.Logger) (*Router, error) {
	flow, err := newFlowCodec(authSecret)
	if err != nil {
		return nil, err
	}

	r := &Router{
		Mux:          http.NewServeMux(),
		site:         siteURL(baseURL),
		flow:         flow,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		sentryx.Middleware(),
		slogx.HTTPMiddleware(r.logger),
	}

	return r, nil
}

// ApplyRoutes registers every route. Services must be wired first.
func (r *Router) ApplyRoutes() {
	r.middlewares = append(r.middlewares, session.Middleware(r.Sessions, r.RefreshService))

	r.registerAuth()
	r.registerSystem()
	r.registerApp()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	// Provider round trips - strict rate limit by IP
	signIn := &SignInHandler{
		Provider: r.Provider,
		Flow:     r.flow,
		Site:     r.site,
	}
	r.Mux.Handle("GET "+signInPath,
		httpx.Chain(signIn, httpx.RateLimitByIP(httpx.SignInLimit)),
	)

	callback := &CallbackHandler{
		SignInService: r.SignInService,
		Sessions:      r.Sessions,
		Flow:          r.flow,
		Site:          r.site,
	}
	r.Mux.Handle("GET "+callbackPath,
		httpx.Chain(callback, httpx.RateLimitByIP(httpx.SignInLimit)),
	)

	// Local session reads and writes - lenient rate limit by IP
	signOut := httpx.Chain(&SignOutHandler{
		Provider: r.Provider,
		Sessions: r.Sessions,
		Site:     r.site,
	}, httpx.RateLimitByIP(httpx.SessionLimit))
	r.Mux.Handle("GET "+signOutPath, signOut)
	r.Mux.Handle("POST "+signOutPath, signOut)

	r.Mux.Handle("GET "+sessionPath,
		httpx.Chain(SessionHandler(), httpx.RateLimitByIP(httpx.SessionLimit)),
	)
	r.Mux.Handle("GET "+errorPath,
		httpx.Chain(ErrorHandler(), httpx.RateLimitByIP(httpx.SessionLimit)),
	)
}

func (r *Router) registerSystem() {
	var provider Pinger
	if r.Provider != nil {
		provider = r.Provider
	}

	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, provider))
}

// registerApp mounts the application behind the session gate. Everything
// not matched by a more specific route above lands here.
func (r *Router) registerApp() {
	app := http.NewServeMux()
	app.Handle("GET /{$}", HomeHandler())
	app.Handle("GET /api/profile", &ProfileHandler{Backend: r.Backend})

	r.Mux.Handle("/", httpx.Chain(app, session.RequireSession()))
}
