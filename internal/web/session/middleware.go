package session

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/aussiebroadwan/bartab-web/internal/web/domain"
	"github.com/aussiebroadwan/bartab-web/internal/web/service"
	"github.com/aussiebroadwan/bartab-web/pkg/httpx"
	"github.com/aussiebroadwan/bartab-web/pkg/sentryx"
	"github.com/aussiebroadwan/bartab-web/pkg/slogx"
)

const (
	// AuthPrefix holds the sign-in routes, which must stay reachable without
	// a session.
	AuthPrefix = "/auth/"
	SignInPath = "/auth/signin"
)

// TokenEnsurer keeps a bundle's access token fresh.
type TokenEnsurer interface {
	Ensure(ctx context.Context, b domain.TokenBundle) (domain.TokenBundle, bool, error)
}

// Middleware loads the session cookie, refreshes the access token when it
// has expired and puts the session on the request context.
//
// A session that can no longer be refreshed is cleared and the user is sent
// to sign in. A provider error during refresh is a 500 carrying the
// provider's status text, except on /auth/ routes where the request
// continues anonymously so the user can sign in again.
func Middleware(store *Store, tokens TokenEnsurer) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			l := slogx.FromContext(ctx)
			onAuthRoute := strings.HasPrefix(r.URL.Path, AuthPrefix)

			bundle, found, err := store.Load(r)
			if err != nil {
				l.Warn("discarding unreadable session cookie", "err", err)
				store.Clear(w, r)
				next.ServeHTTP(w, r)
				return
			}
			if !found {
				next.ServeHTTP(w, r)
				return
			}

			bundle, refreshed, err := tokens.Ensure(ctx, bundle)
			if err != nil {
				if errors.Is(err, service.ErrReauthenticate) {
					store.Clear(w, r)
					if onAuthRoute {
						next.ServeHTTP(w, r)
						return
					}
					http.Redirect(w, r, SignInPath, http.StatusFound)
					return
				}

				l.Error("failed to refresh session", "err", err, "user_id", bundle.User.ID)
				sentryx.CaptureError(ctx, err)

				if onAuthRoute {
					next.ServeHTTP(w, r)
					return
				}

				status := http.StatusText(http.StatusInternalServerError)
				var re *service.RefreshError
				if errors.As(err, &re) {
					status = re.Status
				}
				httpx.WriteError(w, http.StatusInternalServerError, "server_error", status)
				return
			}

			if refreshed {
				if err := store.Save(w, r, bundle); err != nil {
					l.Error("failed to write refreshed session", "err", err)
					sentryx.CaptureError(ctx, err)
					httpx.WriteError(w, http.StatusInternalServerError, "server_error", "failed to save session")
					return
				}
			}

			ctx = WithSession(ctx, FromBundle(bundle))
			ctx = httpx.WithUserID(ctx, bundle.User.ID)
			ctx = slogx.With(ctx, "user_id", bundle.User.ID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSession redirects anonymous requests to the sign-in page, passing
// the original location as callbackUrl. The site root and publicPaths are
// let through.
func RequireSession(publicPaths ...string) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := FromContext(r.Context()); ok || r.URL.Path == "/" || slices.Contains(publicPaths, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			target := SignInPath + "?" + url.Values{"callbackUrl": {r.URL.RequestURI()}}.Encode()
			http.Redirect(w, r, target, http.StatusFound)
		})
	}
}
