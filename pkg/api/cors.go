package api

import (
	"net/http"
	"slices"
)

const (
	corsAllowMethods = "GET, POST, OPTIONS"
	corsAllowHeaders = "Authorization, Content-Type"
)

// resolveOrigin picks the Access-Control-Allow-Origin value: a wildcard
// entry wins outright, an allow-listed request origin is echoed back, and
// anything else falls back to the first configured entry.
func resolveOrigin(allowed []string, requestOrigin string) string {
	if len(allowed) == 0 {
		return ""
	}
	if slices.Contains(allowed, "*") {
		return "*"
	}
	if requestOrigin != "" && slices.Contains(allowed, requestOrigin) {
		return requestOrigin
	}
	return allowed[0]
}

// corsMiddleware decorates every response with the CORS headers and
// answers preflight requests directly, before authentication runs.
func corsMiddleware(allowed []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := resolveOrigin(allowed, r.Header.Get("Origin"))
			if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", corsAllowMethods)
				w.Header().Set("Access-Control-Allow-Headers", corsAllowHeaders)
				if origin != "*" {
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
