package session

import (
	"context"
	"time"

	"github.com/aussiebroadwan/bartab-web/internal/web/domain"
)

// Session is the view of a signed-in user that handlers and clients see.
// The refresh and ID tokens never leave the cookie.
type Session struct {
	User        domain.User `json:"user"`
	AccessToken string      `json:"access_token"`
	Expires     time.Time   `json:"expires"`
}

// FromBundle projects a bundle onto the public session. Expires is when the
// session ends: the refresh token's expiry when bounded, otherwise the
// access token's.
func FromBundle(b domain.TokenBundle) Session {
	expires := b.RefreshTokenExpires
	if expires.IsZero() {
		expires = b.AccessTokenExpires
	}
	return Session{
		User:        b.User,
		AccessToken: b.AccessToken,
		Expires:     expires,
	}
}

type ctxKey struct{}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the request's session. ok is false for anonymous
// requests.
func FromContext(ctx context.Context) (s Session, ok bool) {
	s, ok = ctx.Value(ctxKey{}).(Session)
	return s, ok && s.User.ID != ""
}
