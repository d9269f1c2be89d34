// Package backend talks to the application's API server.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/bartab-web/internal/web/domain"
	"github.com/aussiebroadwan/bartab-web/pkg/slogx"
)

const (
	UsersPath       = "/api/users"
	CurrentUserPath = "/api/users/me"

	maxBodySize = 1 << 20
)

// StatusError is returned when the backend answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend responded with %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient returns a client for the API at baseURL. httpClient decides how
// requests are authenticated; pass one built on session.Transport to act on
// behalf of the signed-in user.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// RegisterUser mirrors user to the backend using accessToken as the bearer.
// ok is false when the backend refuses with a non-2xx status.
func (c *Client) RegisterUser(ctx context.Context, accessToken string, user domain.User) (ok bool, err error) {
	body, err := json.Marshal(user)
	if err != nil {
		return false, fmt.Errorf("failed to encode user: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+UsersPath, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to call backend: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slogx.FromContext(ctx).Warn("backend rejected user registration",
			"user_id", user.ID,
			"status", resp.StatusCode,
		)
		return false, nil
	}
	return true, nil
}

// CurrentUser fetches the signed-in user's profile. The request carries
// whatever credentials the client's transport attaches.
func (c *Client) CurrentUser(ctx context.Context) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+CurrentUserPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call backend: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read backend response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: body}
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("backend returned invalid JSON")
	}
	return body, nil
}
