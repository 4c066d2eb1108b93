package auth

import (
	"encoding/json"
	"net/http"

	"github.com/indiepub/indiepub/pkg/logger"
)

// wwwAuthenticateInvalidToken is the RFC 6750 challenge sent on every
// authentication failure. Missing and invalid tokens are deliberately
// indistinguishable at this layer.
const wwwAuthenticateInvalidToken = `Bearer realm="micropub", error="invalid_token"`

// Middleware creates an HTTP middleware that extracts and verifies the
// bearer token, storing the verification in the request context. OPTIONS
// requests pass through untouched so CORS preflight never requires
// authentication.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		token, err := ExtractBearerToken(r)
		if err != nil {
			writeUnauthorized(w)
			return
		}

		verification, err := v.Verify(r.Context(), token)
		if err != nil {
			writeUnauthorized(w)
			return
		}

		ctx := WithVerification(r.Context(), verification)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", wwwAuthenticateInvalidToken)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	body := map[string]string{"error": "invalid_token"}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Errorf("failed to encode unauthorized response: %v", err)
	}
}
