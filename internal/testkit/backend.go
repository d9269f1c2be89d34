package testkit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/aussiebroadwan/bartab-web/internal/web/domain"
)

// Backend is a fake API server recording registrations and the bearer
// tokens it was called with.
type Backend struct {
	Server *httptest.Server

	mu           sync.Mutex
	registerCode int
	registered   []domain.User
	bearers      []string
}

// NewBackend starts a fake API that accepts registrations and serves
// /api/users/me for any bearer it has seen registered.
func NewBackend(t testing.TB) *Backend {
	t.Helper()

	b := &Backend{registerCode: http.StatusCreated}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/users", b.handleRegister)
	mux.HandleFunc("GET /api/users/me", b.handleMe)

	b.Server = httptest.NewServer(mux)
	t.Cleanup(b.Server.Close)

	return b
}

func (b *Backend) URL() string { return b.Server.URL }

// RegisterStatus sets the status returned for user registration.
func (b *Backend) RegisterStatus(code int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.registerCode = code
}

// Registered returns every user posted to /api/users.
func (b *Backend) Registered() []domain.User {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.User(nil), b.registered...)
}

// Bearers returns the Authorization header of every request, in order.
func (b *Backend) Bearers() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.bearers...)
}

func (b *Backend) handleRegister(w http.ResponseWriter, r *http.Request) {
	var u domain.User
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	b.mu.Lock()
	b.bearers = append(b.bearers, r.Header.Get("Authorization"))
	code := b.registerCode
	if code >= 200 && code < 300 {
		b.registered = append(b.registered, u)
	}
	b.mu.Unlock()

	writeJSON(w, code, u)
}

func (b *Backend) handleMe(w http.ResponseWriter, r *http.Request) {
	auth := r.Header.Get("Authorization")

	b.mu.Lock()
	b.bearers = append(b.bearers, auth)
	b.mu.Unlock()

	if auth == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"bearer": auth})
}
