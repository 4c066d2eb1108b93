package auth

import "strings"

// Scopes used by the Micropub endpoints.
const (
	ScopeCreate = "create"
	ScopeUpdate = "update"
	ScopeDelete = "delete"
	ScopeMedia  = "media"
)

// HasScope reports whether required appears as a whitespace-delimited
// token in the scope string. Matching is exact: no case folding, no
// synonym handling. An empty scope string never satisfies any requirement.
func HasScope(scopes, required string) bool {
	if required == "" {
		return false
	}
	for _, s := range strings.Fields(scopes) {
		if s == required {
			return true
		}
	}
	return false
}

// HasAnyScope reports whether at least one of the required scopes is present.
func HasAnyScope(scopes string, required ...string) bool {
	for _, r := range required {
		if HasScope(scopes, r) {
			return true
		}
	}
	return false
}

// HasAllScopes reports whether every one of the required scopes is present.
func HasAllScopes(scopes string, required ...string) bool {
	for _, r := range required {
		if !HasScope(scopes, r) {
			return false
		}
	}
	return true
}
