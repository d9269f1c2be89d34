package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/oauth2"

	"github.com/aussiebroadwan/bartab-web/internal/web/domain"
	"github.com/aussiebroadwan/bartab-web/pkg/slogx"
)

var tracer = otel.Tracer("github.com/aussiebroadwan/bartab-web/internal/web/service")

// ErrReauthenticate means the session can no longer be renewed and the user
// has to sign in again.
var ErrReauthenticate = errors.New("reauthenticate")

// RefreshError is returned when the provider answers the refresh grant with
// a non-2xx status.
type RefreshError struct {
	StatusCode int
	Status     string // upstream status text, e.g. "Bad Request"
	Err        error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("token refresh failed: %d %s", e.StatusCode, e.Status)
}

func (e *RefreshError) Unwrap() error { return e.Err }

// TokenRefresher performs the refresh_token grant against the provider.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

type RefreshService struct {
	Provider TokenRefresher
	Now      func() time.Time // defaults to time.Now
}

func (s *RefreshService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Ensure returns a bundle whose access token is usable. A still-valid bundle
// is returned untouched without contacting the provider; otherwise the
// refresh token is exchanged once. refreshed reports whether the bundle
// changed and has to be written back to the client.
func (s *RefreshService) Ensure(ctx context.Context, b domain.TokenBundle) (next domain.TokenBundle, refreshed bool, err error) {
	if b.AccessTokenValid(s.now()) {
		return b, false, nil
	}

	next, err = s.Refresh(ctx, b)
	if err != nil {
		return b, false, err
	}
	return next, true, nil
}

// Refresh exchanges the bundle's refresh token for a new access token.
//
// It returns ErrReauthenticate without any network call when the refresh
// token is missing or past its expiry, and a *RefreshError when the provider
// rejects the grant.
func (s *RefreshService) Refresh(ctx context.Context, b domain.TokenBundle) (domain.TokenBundle, error) {
	now := s.now()
	l := slogx.FromContext(ctx)

	if !b.CanRefresh(now) {
		l.Debug("refresh token expired", "user_id", b.User.ID)
		return b, ErrReauthenticate
	}

	ctx, span := tracer.Start(ctx, "RefreshService.Refresh")
	defer span.End()

	tok, err := s.Provider.Refresh(ctx, b.RefreshToken)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "refresh grant failed")

		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			span.SetAttributes(attribute.Int("http.response.status_code", re.Response.StatusCode))
			return b, &RefreshError{
				StatusCode: re.Response.StatusCode,
				Status:     statusText(re.Response),
				Err:        err,
			}
		}
		return b, fmt.Errorf("failed to refresh access token: %w", err)
	}

	next := b
	next.AccessToken = tok.AccessToken
	next.AccessTokenExpires = accessExpiry(tok, now)

	// Providers that do not rotate refresh tokens omit the field.
	if tok.RefreshToken != "" {
		next.RefreshToken = tok.RefreshToken
	}
	if d, ok := extraSeconds(tok, "refresh_expires_in"); ok && d > 0 {
		next.RefreshTokenExpires = now.Add(d)
	}
	if idToken, ok := tok.Extra("id_token").(string); ok && idToken != "" {
		next.IDToken = idToken
	}

	l.Info("access token refreshed", "user_id", b.User.ID, "expires", next.AccessTokenExpires)
	return next, nil
}

// BundleFromToken builds a fresh bundle from a code exchange response.
func BundleFromToken(tok *oauth2.Token, user domain.User, now time.Time) domain.TokenBundle {
	b := domain.TokenBundle{
		AccessToken:        tok.AccessToken,
		AccessTokenExpires: accessExpiry(tok, now),
		RefreshToken:       tok.RefreshToken,
		User:               user,
	}
	if d, ok := extraSeconds(tok, "refresh_expires_in"); ok && d > 0 {
		b.RefreshTokenExpires = now.Add(d)
	}
	if idToken, ok := tok.Extra("id_token").(string); ok {
		b.IDToken = idToken
	}
	return b
}

// accessExpiry is now + expires_in. Without expires_in the token is treated
// as already expired so the next request refreshes it.
func accessExpiry(tok *oauth2.Token, now time.Time) time.Time {
	if d, ok := extraSeconds(tok, "expires_in"); ok {
		return now.Add(d)
	}
	if !tok.Expiry.IsZero() {
		return tok.Expiry
	}
	return now
}

func extraSeconds(tok *oauth2.Token, key string) (time.Duration, bool) {
	var secs float64
	switch v := tok.Extra(key).(type) {
	case float64:
		secs = v
	case int64:
		secs = float64(v)
	case int:
		secs = float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		secs = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		secs = f
	default:
		return 0, false
	}
	return time.Duration(secs * float64(time.Second)), true
}

// statusText strips the code from "400 Bad Request", falling back to the
// canonical text for servers that send a bare code.
func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}
