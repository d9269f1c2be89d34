package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/aussiebroadwan/bartab-web/internal/web/domain"
	"github.com/aussiebroadwan/bartab-web/pkg/slogx"
)

var (
	// ErrAccessDenied means the backend refused to register the user.
	ErrAccessDenied = errors.New("access_denied")
	// ErrMissingIDToken means the token response carried no id_token.
	ErrMissingIDToken = errors.New("token response has no id_token")
)

// CodeExchanger is the part of the provider used to finish a login.
type CodeExchanger interface {
	Exchange(ctx context.Context, redirectURL, code, verifier string) (*oauth2.Token, error)
	VerifyIDToken(ctx context.Context, rawIDToken, nonce string) (*oidc.IDToken, error)
}

// UserRegistrar mirrors a freshly signed-in user to the backend. ok is false
// when the backend answered with a non-2xx status.
type UserRegistrar interface {
	RegisterUser(ctx context.Context, accessToken string, user domain.User) (ok bool, err error)
}

type SignInService struct {
	Provider CodeExchanger
	Users    UserRegistrar
	Now      func() time.Time // defaults to time.Now
}

// Complete finishes an authorization code login: it exchanges the code,
// verifies the ID token against nonce, registers the user with the backend
// and returns the bundle to store in the session.
func (s *SignInService) Complete(ctx context.Context, redirectURL, code, verifier, nonce string) (domain.TokenBundle, error) {
	l := slogx.FromContext(ctx)
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}

	ctx, span := tracer.Start(ctx, "SignInService.Complete")
	defer span.End()

	// 1. Trade the code for tokens
	tok, err := s.Provider.Exchange(ctx, redirectURL, code, verifier)
	if err != nil {
		return domain.TokenBundle{}, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	// 2. Verify the ID token and read the profile
	rawIDToken, _ := tok.Extra("id_token").(string)
	if rawIDToken == "" {
		return domain.TokenBundle{}, ErrMissingIDToken
	}

	idToken, err := s.Provider.VerifyIDToken(ctx, rawIDToken, nonce)
	if err != nil {
		return domain.TokenBundle{}, err
	}

	var claims domain.IDTokenClaims
	if err := idToken.Claims(&claims); err != nil {
		return domain.TokenBundle{}, fmt.Errorf("failed to decode ID token claims: %w", err)
	}
	user := claims.User()

	// 3. The backend decides whether this user may sign in
	ok, err := s.Users.RegisterUser(ctx, tok.AccessToken, user)
	if err != nil {
		return domain.TokenBundle{}, fmt.Errorf("failed to register user: %w", err)
	}
	if !ok {
		l.Info("backend refused sign-in", "user_id", user.ID)
		return domain.TokenBundle{}, ErrAccessDenied
	}

	l.Info("user signed in", "user_id", user.ID)
	return BundleFromToken(tok, user, now), nil
}
