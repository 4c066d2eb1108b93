package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareStoresVerification(t *testing.T) {
	t.Parallel()

	srv, _ := newIntrospectionServer(t, http.StatusOK,
		`{"me":"https://example.com/","scope":"create"}`)
	v := newTestVerifier(t, srv.URL, time.Minute)

	var seen *Verification
	handler := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = VerificationFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/micropub?q=config", nil)
	req.Header.Set("Authorization", "Bearer tok-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "https://example.com/", seen.Me)
}

func TestMiddlewareUnauthorized(t *testing.T) {
	t.Parallel()

	srv, _ := newIntrospectionServer(t, http.StatusForbidden, `{}`)
	v := newTestVerifier(t, srv.URL, time.Minute)

	handler := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("handler should not run")
	}))

	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"wrong scheme", "Basic dXNlcg=="},
		{"rejected token", "Bearer nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodPost, "/micropub", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, `Bearer realm="micropub", error="invalid_token"`,
				rec.Header().Get("WWW-Authenticate"))
			assert.JSONEq(t, `{"error":"invalid_token"}`, rec.Body.String())
		})
	}
}

func TestMiddlewareSkipsPreflight(t *testing.T) {
	t.Parallel()

	srv, calls := newIntrospectionServer(t, http.StatusOK, `{}`)
	v := newTestVerifier(t, srv.URL, time.Minute)

	handler := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/micropub", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, int64(0), calls.Load(), "preflight must not trigger verification")
}
