package v1

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/indiepub/indiepub/pkg/errors"
	"github.com/indiepub/indiepub/pkg/logger"
)

// errorResponse is the JSON body of every error response.
type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// writeError renders a typed error as the protocol-shaped JSON response.
// Server errors never leak internal detail to the client.
func writeError(w http.ResponseWriter, apiErr *errors.Error) {
	body := errorResponse{Error: apiErr.Type, ErrorDescription: apiErr.Message}

	switch apiErr.Type {
	case errors.ErrInvalidToken:
		w.Header().Set("WWW-Authenticate", `Bearer realm="micropub", error="invalid_token"`)
	case errors.ErrServerError:
		logger.Errorw("request failed", "error", apiErr.Error())
		body.ErrorDescription = ""
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.StatusCode())
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Errorf("failed to encode error response: %v", err)
	}
}

// writeInsufficientScope renders the 403 challenge naming the scope the
// operation requires.
func writeInsufficientScope(w http.ResponseWriter, required string) {
	w.Header().Set("WWW-Authenticate",
		fmt.Sprintf(`Bearer realm="micropub", error="insufficient_scope", scope=%q`, required))
	writeError(w, errors.NewInsufficientScopeError(
		fmt.Sprintf("requires %q scope", required), nil))
}

// writeJSON renders a 200 JSON response.
func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Errorf("failed to encode response: %v", err)
	}
}
