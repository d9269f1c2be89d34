package httpx_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/bartab-web/pkg/httpx"
)

func TestChainOrder(t *testing.T) {
	var order []string
	tag := func(name string) httpx.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := httpx.Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}), tag("outer"), tag("inner"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestBaseURL(t *testing.T) {
	t.Run("plain request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "http://app.example.com/x", nil)
		require.Equal(t, "http://app.example.com", httpx.BaseURL(req))
		require.False(t, httpx.IsSecure(req))
	})

	t.Run("behind proxy", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "http://10.0.0.5/x", nil)
		req.Header.Set("X-Forwarded-Proto", "https")
		req.Header.Set("X-Forwarded-Host", "bartab.example.com")
		require.Equal(t, "https://bartab.example.com", httpx.BaseURL(req))
		require.True(t, httpx.IsSecure(req))
	})
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	httpx.WriteError(rec, http.StatusInternalServerError, "server_error", "Bad Gateway")

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	require.JSONEq(t, `{"error":"server_error","error_description":"Bad Gateway"}`, rec.Body.String())
}
