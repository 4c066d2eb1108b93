package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasScope(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		scopes   string
		required string
		want     bool
	}{
		{"single match", "create", "create", true},
		{"match among several", "create update delete", "update", true},
		{"no match", "create update", "media", false},
		{"empty scope string", "", "create", false},
		{"whitespace only", "   ", "create", false},
		{"empty required", "create", "", false},
		{"no partial token match", "create-post", "create", false},
		{"no case folding", "Create", "create", false},
		{"extra whitespace between tokens", "create\t update\n delete", "delete", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, HasScope(tt.scopes, tt.required))
		})
	}
}

func TestHasAnyScope(t *testing.T) {
	t.Parallel()

	assert.True(t, HasAnyScope("create media", "update", "media"))
	assert.False(t, HasAnyScope("create", "update", "delete"))
	assert.False(t, HasAnyScope("", "create"))
	assert.False(t, HasAnyScope("create"))
}

func TestHasAllScopes(t *testing.T) {
	t.Parallel()

	assert.True(t, HasAllScopes("create update delete", "create", "delete"))
	assert.False(t, HasAllScopes("create update", "create", "media"))
	assert.True(t, HasAllScopes("create"))
	assert.False(t, HasAllScopes("", "create"))
}
