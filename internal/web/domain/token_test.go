package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTokenBundleAccessTokenValid(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		bundle TokenBundle
		want   bool
	}{
		{"future expiry", TokenBundle{AccessToken: "a", AccessTokenExpires: now.Add(time.Minute)}, true},
		{"expired", TokenBundle{AccessToken: "a", AccessTokenExpires: now.Add(-time.Second)}, false},
		{"expires exactly now", TokenBundle{AccessToken: "a", AccessTokenExpires: now}, false},
		{"zero expiry", TokenBundle{AccessToken: "a"}, false},
		{"no token", TokenBundle{AccessTokenExpires: now.Add(time.Minute)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.bundle.AccessTokenValid(now))
		})
	}
}

func TestTokenBundleCanRefresh(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		bundle TokenBundle
		want   bool
	}{
		{"future expiry", TokenBundle{RefreshToken: "r", RefreshTokenExpires: now.Add(time.Hour)}, true},
		{"expired", TokenBundle{RefreshToken: "r", RefreshTokenExpires: now.Add(-time.Second)}, false},
		{"unbounded", TokenBundle{RefreshToken: "r"}, true},
		{"no refresh token", TokenBundle{RefreshTokenExpires: now.Add(time.Hour)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.bundle.CanRefresh(now))
		})
	}
}

func TestIDTokenClaimsUser(t *testing.T) {
	u := IDTokenClaims{Subject: "sub-1", PreferredUsername: "lachlan", Email: "l@example.com", Picture: "https://img"}.User()
	require.Equal(t, User{ID: "sub-1", Name: "lachlan", Email: "l@example.com", Image: "https://img"}, u)

	u = IDTokenClaims{Subject: "sub-1", Name: "Lachlan", PreferredUsername: "lachlan"}.User()
	require.Equal(t, "Lachlan", u.Name)
}
