// Package session keeps the user's tokens in a sealed, chunked cookie and
// exposes the resulting session to handlers and outbound requests.
package session

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/bartab-web/internal/web/domain"
	"github.com/aussiebroadwan/bartab-web/pkg/cryptox"
	"github.com/aussiebroadwan/bartab-web/pkg/httpx"
)

const (
	CookieName    = "bartab.session-token"
	DefaultMaxAge = 30 * 24 * time.Hour

	securePrefix = "__Secure-"
	sealInfo     = "bartab-web session cookie"

	// chunkSize keeps each Set-Cookie line under the 4096 byte browser limit
	// once name and attributes are added.
	chunkSize = 3936
)

// ErrInvalidCookie is returned for a session cookie that cannot be opened.
var ErrInvalidCookie = errors.New("invalid session cookie")

// Store reads and writes the session cookie.
type Store struct {
	sealer *cryptox.Sealer
	maxAge time.Duration
	now    func() time.Time
}

// NewStore derives the cookie key from secret. maxAge <= 0 uses
// DefaultMaxAge.
func NewStore(secret []byte, maxAge time.Duration) (*Store, error) {
	sealer, err := cryptox.NewSealer(secret, sealInfo)
	if err != nil {
		return nil, err
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Store{sealer: sealer, maxAge: maxAge, now: time.Now}, nil
}

// Name returns the cookie name used for r. Requests served over HTTPS get
// the __Secure- prefix.
func (s *Store) Name(r *http.Request) string {
	if httpx.IsSecure(r) {
		return securePrefix + CookieName
	}
	return CookieName
}

// Load returns the bundle stored in r's cookies. found is false when there
// is no session cookie; err wraps ErrInvalidCookie when one is present but
// cannot be opened.
func (s *Store) Load(r *http.Request) (b domain.TokenBundle, found bool, err error) {
	name := s.Name(r)

	value, found := readChunks(r, name)
	if !found {
		return domain.TokenBundle{}, false, nil
	}

	sealed, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return domain.TokenBundle{}, true, fmt.Errorf("%w: %w", ErrInvalidCookie, err)
	}

	plain, err := s.sealer.Open(sealed, []byte(name))
	if err != nil {
		return domain.TokenBundle{}, true, fmt.Errorf("%w: %w", ErrInvalidCookie, err)
	}

	if err := json.Unmarshal(plain, &b); err != nil {
		return domain.TokenBundle{}, true, fmt.Errorf("%w: %w", ErrInvalidCookie, err)
	}
	return b, true, nil
}

// Save seals b into one cookie, or into name.0, name.1, ... when it does not
// fit. Cookies left over from a previous layout are expired.
func (s *Store) Save(w http.ResponseWriter, r *http.Request, b domain.TokenBundle) error {
	name := s.Name(r)

	plain, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	sealed, err := s.sealer.Seal(plain, []byte(name))
	if err != nil {
		return fmt.Errorf("failed to seal session: %w", err)
	}
	value := base64.RawURLEncoding.EncodeToString(sealed)

	written := make(map[string]bool)
	expires := s.now().Add(s.maxAge)

	if len(value) <= chunkSize {
		http.SetCookie(w, s.cookie(r, name, value, expires))
		written[name] = true
	} else {
		for i := 0; len(value) > 0; i++ {
			n := min(chunkSize, len(value))
			chunkName := name + "." + strconv.Itoa(i)
			http.SetCookie(w, s.cookie(r, chunkName, value[:n], expires))
			written[chunkName] = true
			value = value[n:]
		}
	}

	for _, c := range r.Cookies() {
		if isSessionCookie(c.Name, name) && !written[c.Name] {
			http.SetCookie(w, s.expired(r, c.Name))
		}
	}
	return nil
}

// Clear expires every session cookie r carries.
func (s *Store) Clear(w http.ResponseWriter, r *http.Request) {
	name := s.Name(r)
	for _, c := range r.Cookies() {
		if isSessionCookie(c.Name, name) {
			http.SetCookie(w, s.expired(r, c.Name))
		}
	}
}

func (s *Store) cookie(r *http.Request, name, value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(s.maxAge.Seconds()),
		Secure:   httpx.IsSecure(r),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func (s *Store) expired(r *http.Request, name string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		Secure:   httpx.IsSecure(r),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func isSessionCookie(cookieName, name string) bool {
	if cookieName == name {
		return true
	}
	suffix, ok := strings.CutPrefix(cookieName, name+".")
	if !ok {
		return false
	}
	_, err := strconv.Atoi(suffix)
	return err == nil
}

type chunk struct {
	index int
	value string
}

// readChunks joins name.0, name.1, ... in index order. A plain name cookie
// wins over chunks.
func readChunks(r *http.Request, name string) (string, bool) {
	if c, err := r.Cookie(name); err == nil {
		return c.Value, true
	}

	var chunks []chunk
	for _, c := range r.Cookies() {
		suffix, ok := strings.CutPrefix(c.Name, name+".")
		if !ok {
			continue
		}
		i, err := strconv.Atoi(suffix)
		if err != nil || i < 0 {
			continue
		}
		chunks = append(chunks, chunk{index: i, value: c.Value})
	}
	if len(chunks) == 0 {
		return "", false
	}

	slices.SortFunc(chunks, func(a, b chunk) int { return a.index - b.index })

	var sb strings.Builder
	for _, c := range chunks {
		sb.WriteString(c.value)
	}
	return sb.String(), true
}
