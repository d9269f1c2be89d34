package domain

import "time"

// TokenBundle is everything the session cookie carries: the provider's
// access and refresh tokens with their expiries, the raw ID token and the
// signed-in user.
type TokenBundle struct {
	AccessToken         string    `json:"access_token"`
	AccessTokenExpires  time.Time `json:"access_token_expires"`
	RefreshToken        string    `json:"refresh_token,omitempty"`
	RefreshTokenExpires time.Time `json:"refresh_token_expires"`
	IDToken             string    `json:"id_token,omitempty"` // only used as id_token_hint on logout
	User                User      `json:"user"`
}

// AccessTokenValid reports whether the access token can still be used at now.
func (b TokenBundle) AccessTokenValid(now time.Time) bool {
	return b.AccessToken != "" && now.Before(b.AccessTokenExpires)
}

// CanRefresh reports whether the refresh token may still be exchanged at now.
// A zero RefreshTokenExpires means the provider did not bound the refresh
// token's lifetime, so only the provider can reject it.
func (b TokenBundle) CanRefresh(now time.Time) bool {
	if b.RefreshToken == "" {
		return false
	}
	return b.RefreshTokenExpires.IsZero() || !now.After(b.RefreshTokenExpires)
}
