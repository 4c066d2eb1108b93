package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveOrigin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		allowed       []string
		requestOrigin string
		want          string
	}{
		{
			name:          "wildcard wins",
			allowed:       []string{"https://a.example.com", "*"},
			requestOrigin: "https://b.example.com",
			want:          "*",
		},
		{
			name:          "allow-listed origin is echoed",
			allowed:       []string{"https://a.example.com", "https://b.example.com"},
			requestOrigin: "https://b.example.com",
			want:          "https://b.example.com",
		},
		{
			name:          "unknown origin falls back to first entry",
			allowed:       []string{"https://a.example.com", "https://b.example.com"},
			requestOrigin: "https://evil.example.com",
			want:          "https://a.example.com",
		},
		{
			name:          "missing origin falls back to first entry",
			allowed:       []string{"https://a.example.com"},
			requestOrigin: "",
			want:          "https://a.example.com",
		},
		{
			name:          "empty allow-list yields nothing",
			allowed:       nil,
			requestOrigin: "https://a.example.com",
			want:          "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, resolveOrigin(tt.allowed, tt.requestOrigin))
		})
	}
}

func TestCorsMiddlewareDecoratesResponses(t *testing.T) {
	t.Parallel()

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	handler := corsMiddleware([]string{"https://client.example.com"})(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://client.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "https://client.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Authorization, Content-Type", rec.Header().Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCorsMiddlewareWildcardOmitsCredentials(t *testing.T) {
	t.Parallel()

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := corsMiddleware([]string{"*"})(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://anyone.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCorsMiddlewarePreflightShortCircuits(t *testing.T) {
	t.Parallel()

	next := http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		t.Fatal("preflight must not reach the next handler")
	})
	handler := corsMiddleware([]string{"*"})(next)

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://client.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
