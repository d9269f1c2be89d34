package service_test

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/aussiebroadwan/bartab-web/internal/testkit"
	"github.com/aussiebroadwan/bartab-web/internal/web/domain"
	"github.com/aussiebroadwan/bartab-web/internal/web/service"
)

type fakeRegistrar struct {
	ok    bool
	err   error
	token string
	user  domain.User
	calls int
}

func (f *fakeRegistrar) RegisterUser(_ context.Context, accessToken string, user domain.User) (bool, error) {
	f.calls++
	f.token = accessToken
	f.user = user
	return f.ok, f.err
}

const redirectURL = "https://app.example.com/auth/callback/keycloak"

func codeReply(t *testing.T, idp *testkit.IDP, claims jwt.MapClaims) func(url.Values) testkit.TokenReply {
	return func(form url.Values) testkit.TokenReply {
		if form.Get("grant_type") != "authorization_code" {
			return testkit.TokenReply{Status: http.StatusBadRequest, Body: map[string]any{"error": "unsupported_grant_type"}}
		}
		return testkit.TokenReply{Status: http.StatusOK, Body: map[string]any{
			"access_token":       "access-1",
			"token_type":         "Bearer",
			"expires_in":         300,
			"refresh_token":      "refresh-1",
			"refresh_expires_in": 1800,
			"id_token":           idp.SignIDToken(t, claims),
		}}
	}
}

func TestSignInComplete(t *testing.T) {
	profile := jwt.MapClaims{
		"sub":                "user-1",
		"nonce":              "nonce-1",
		"preferred_username": "ada",
		"email":              "ada@example.com",
	}

	t.Run("registers the user and builds the bundle", func(t *testing.T) {
		idp := testkit.NewIDP(t)
		idp.ReplyWith(codeReply(t, idp, profile))
		users := &fakeRegistrar{ok: true}
		svc := &service.SignInService{
			Provider: idp.Provider(t),
			Users:    users,
			Now:      func() time.Time { return fixedNow },
		}

		verifier := oauth2.GenerateVerifier()
		b, err := svc.Complete(t.Context(), redirectURL, "code-1", verifier, "nonce-1")
		require.NoError(t, err)

		require.Equal(t, "access-1", b.AccessToken)
		require.Equal(t, fixedNow.Add(5*time.Minute), b.AccessTokenExpires)
		require.Equal(t, "refresh-1", b.RefreshToken)
		require.Equal(t, fixedNow.Add(30*time.Minute), b.RefreshTokenExpires)
		require.NotEmpty(t, b.IDToken)
		require.Equal(t, domain.User{ID: "user-1", Name: "ada", Email: "ada@example.com"}, b.User)

		require.Equal(t, 1, users.calls)
		require.Equal(t, "access-1", users.token)
		require.Equal(t, b.User, users.user)

		reqs := idp.TokenRequests()
		require.Len(t, reqs, 1)
		require.Equal(t, "code-1", reqs[0].Get("code"))
		require.Equal(t, verifier, reqs[0].Get("code_verifier"))
		require.Equal(t, redirectURL, reqs[0].Get("redirect_uri"))
	})

	t.Run("backend refusal denies access", func(t *testing.T) {
		idp := testkit.NewIDP(t)
		idp.ReplyWith(codeReply(t, idp, profile))
		svc := &service.SignInService{Provider: idp.Provider(t), Users: &fakeRegistrar{ok: false}}

		_, err := svc.Complete(t.Context(), redirectURL, "code-1", "v", "nonce-1")
		require.ErrorIs(t, err, service.ErrAccessDenied)
	})

	t.Run("backend failure is an error", func(t *testing.T) {
		idp := testkit.NewIDP(t)
		idp.ReplyWith(codeReply(t, idp, profile))
		boom := errors.New("connection refused")
		svc := &service.SignInService{Provider: idp.Provider(t), Users: &fakeRegistrar{err: boom}}

		_, err := svc.Complete(t.Context(), redirectURL, "code-1", "v", "nonce-1")
		require.ErrorIs(t, err, boom)
		require.NotErrorIs(t, err, service.ErrAccessDenied)
	})

	t.Run("nonce mismatch never reaches the backend", func(t *testing.T) {
		idp := testkit.NewIDP(t)
		idp.ReplyWith(codeReply(t, idp, profile))
		users := &fakeRegistrar{ok: true}
		svc := &service.SignInService{Provider: idp.Provider(t), Users: users}

		_, err := svc.Complete(t.Context(), redirectURL, "code-1", "v", "other-nonce")
		require.Error(t, err)
		require.Zero(t, users.calls)
	})

	t.Run("missing id token", func(t *testing.T) {
		idp := testkit.NewIDP(t)
		idp.ReplyWith(func(url.Values) testkit.TokenReply {
			return testkit.TokenReply{Status: http.StatusOK, Body: map[string]any{
				"access_token": "access-1",
				"token_type":   "Bearer",
			}}
		})
		svc := &service.SignInService{Provider: idp.Provider(t), Users: &fakeRegistrar{ok: true}}

		_, err := svc.Complete(t.Context(), redirectURL, "code-1", "v", "nonce-1")
		require.ErrorIs(t, err, service.ErrMissingIDToken)
	})

	t.Run("rejected code", func(t *testing.T) {
		idp := testkit.NewIDP(t)
		idp.ReplyWith(func(url.Values) testkit.TokenReply {
			return testkit.TokenReply{Status: http.StatusBadRequest, Body: map[string]any{"error": "invalid_grant"}}
		})
		svc := &service.SignInService{Provider: idp.Provider(t), Users: &fakeRegistrar{ok: true}}

		_, err := svc.Complete(t.Context(), redirectURL, "bad", "v", "nonce-1")
		var re *oauth2.RetrieveError
		require.ErrorAs(t, err, &re)
	})
}
