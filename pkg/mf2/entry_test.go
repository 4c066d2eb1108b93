package mf2

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indiepub/indiepub/pkg/errors"
)

func TestFromForm(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		form map[string]any
		want *Entry
	}{
		{
			name: "scalar content wrapped in sequence",
			form: map[string]any{"h": "entry", "content": "Hello World"},
			want: &Entry{
				Type:       []string{"h-entry"},
				Properties: map[string][]any{"content": {"Hello World"}},
			},
		},
		{
			name: "default vocabulary when h absent",
			form: map[string]any{"content": "hi"},
			want: &Entry{
				Type:       []string{"h-entry"},
				Properties: map[string][]any{"content": {"hi"}},
			},
		},
		{
			name: "alternate vocabulary",
			form: map[string]any{"h": "event", "name": "IndieWebCamp"},
			want: &Entry{
				Type:       []string{"h-event"},
				Properties: map[string][]any{"name": {"IndieWebCamp"}},
			},
		},
		{
			name: "action dropped, sequences preserved",
			form: map[string]any{
				"h":        "entry",
				"action":   "create",
				"category": []any{"a", "b"},
				"mp-slug":  "hello",
			},
			want: &Entry{
				Type: []string{"h-entry"},
				Properties: map[string][]any{
					"category": {"a", "b"},
					"mp-slug":  {"hello"},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, FromForm(tt.form))
		})
	}
}

func TestHasAnyProperty(t *testing.T) {
	t.Parallel()

	entry := &Entry{
		Type: []string{"h-entry"},
		Properties: map[string][]any{
			"content": {"hi"},
			"empty":   {},
		},
	}

	assert.True(t, entry.HasAnyProperty("content", "name"))
	assert.False(t, entry.HasAnyProperty("name", "photo"))
	assert.False(t, entry.HasAnyProperty("empty"))
}

func TestFilterProperties(t *testing.T) {
	t.Parallel()

	entry := &Entry{
		Type: []string{"h-entry"},
		Properties: map[string][]any{
			"content":  {"hi"},
			"category": {"a", "b"},
			"photo":    {map[string]any{"url": "https://example.com/p.jpg", "alt": "x"}},
		},
	}

	filtered := entry.FilterProperties([]string{"category", "missing"})
	assert.Equal(t, map[string][]any{"category": {"a", "b"}}, filtered.Properties)
	assert.Equal(t, entry.Type, filtered.Type)

	// Empty filter returns the entry unchanged.
	assert.Same(t, entry, entry.FilterProperties(nil))
}

func TestValidateEntry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{
			name: "valid entry",
			body: `{"type":["h-entry"],"properties":{"content":["Hello"]}}`,
		},
		{
			name: "nested structured values",
			body: `{"type":["h-entry"],"properties":{"photo":[{"url":"https://example.com/a.jpg","alt":"x"}]}}`,
		},
		{
			name:    "missing type",
			body:    `{"properties":{"content":["Hello"]}}`,
			wantErr: true,
		},
		{
			name:    "empty type array",
			body:    `{"type":[],"properties":{}}`,
			wantErr: true,
		},
		{
			name:    "non-string type",
			body:    `{"type":[42],"properties":{}}`,
			wantErr: true,
		},
		{
			name:    "missing properties",
			body:    `{"type":["h-entry"]}`,
			wantErr: true,
		},
		{
			name:    "properties not an object",
			body:    `{"type":["h-entry"],"properties":[]}`,
			wantErr: true,
		},
		{
			name:    "property value not an array",
			body:    `{"type":["h-entry"],"properties":{"content":"Hello"}}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var raw map[string]any
			require.NoError(t, json.Unmarshal([]byte(tt.body), &raw))

			entry, err := ValidateEntry(raw)
			if tt.wantErr {
				require.NotNil(t, err)
				assert.True(t, errors.IsInvalidRequest(err))
				return
			}
			require.Nil(t, err)
			assert.NotEmpty(t, entry.Type)
		})
	}
}

func TestParseAction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		wantErr bool
		check   func(*testing.T, *ActionRequest)
	}{
		{
			name: "delete",
			body: `{"action":"delete","url":"https://example.com/posts/1"}`,
			check: func(t *testing.T, req *ActionRequest) {
				assert.Equal(t, ActionDelete, req.Action)
				assert.Equal(t, "https://example.com/posts/1", req.URL)
				assert.Nil(t, req.Update)
			},
		},
		{
			name: "undelete",
			body: `{"action":"undelete","url":"https://example.com/posts/1"}`,
			check: func(t *testing.T, req *ActionRequest) {
				assert.Equal(t, ActionUndelete, req.Action)
			},
		},
		{
			name: "update with all clauses",
			body: `{
				"action": "update",
				"url": "https://example.com/posts/1",
				"replace": {"content": ["new content"]},
				"add": {"category": ["go"]},
				"delete": {"category": ["old"]}
			}`,
			check: func(t *testing.T, req *ActionRequest) {
				require.NotNil(t, req.Update)
				assert.Equal(t, map[string][]any{"content": {"new content"}}, req.Update.Replace)
				assert.Equal(t, map[string][]any{"category": {"go"}}, req.Update.Add)
				assert.Equal(t, map[string][]any{"category": {"old"}}, req.Update.DeleteValues)
				assert.Empty(t, req.Update.DeleteProperties)
			},
		},
		{
			name: "update with delete as property list",
			body: `{"action":"update","url":"https://example.com/posts/1","delete":["category"]}`,
			check: func(t *testing.T, req *ActionRequest) {
				require.NotNil(t, req.Update)
				assert.Equal(t, []string{"category"}, req.Update.DeleteProperties)
				assert.Nil(t, req.Update.DeleteValues)
			},
		},
		{
			name: "update replace scalar normalized to sequence",
			body: `{"action":"update","url":"https://example.com/posts/1","replace":{"content":"plain"}}`,
			check: func(t *testing.T, req *ActionRequest) {
				assert.Equal(t, map[string][]any{"content": {"plain"}}, req.Update.Replace)
			},
		},
		{
			name:    "missing action",
			body:    `{"url":"https://example.com/posts/1"}`,
			wantErr: true,
		},
		{
			name:    "unknown action",
			body:    `{"action":"destroy","url":"https://example.com/posts/1"}`,
			wantErr: true,
		},
		{
			name:    "missing url",
			body:    `{"action":"delete"}`,
			wantErr: true,
		},
		{
			name:    "relative url",
			body:    `{"action":"delete","url":"/posts/1"}`,
			wantErr: true,
		},
		{
			name:    "replace clause not an object",
			body:    `{"action":"update","url":"https://example.com/posts/1","replace":["content"]}`,
			wantErr: true,
		},
		{
			name:    "delete list with non-string entry",
			body:    `{"action":"update","url":"https://example.com/posts/1","delete":[7]}`,
			wantErr: true,
		},
		{
			name:    "delete clause of wrong type",
			body:    `{"action":"update","url":"https://example.com/posts/1","delete":"category"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var raw map[string]any
			require.NoError(t, json.Unmarshal([]byte(tt.body), &raw))

			req, err := ParseAction(raw)
			if tt.wantErr {
				require.NotNil(t, err)
				assert.True(t, errors.IsInvalidRequest(err))
				return
			}
			require.Nil(t, err)
			tt.check(t, req)
		})
	}
}

func TestIsAbsoluteURL(t *testing.T) {
	t.Parallel()

	assert.True(t, IsAbsoluteURL("https://example.com/posts/1"))
	assert.True(t, IsAbsoluteURL("http://example.com"))
	assert.False(t, IsAbsoluteURL("/posts/1"))
	assert.False(t, IsAbsoluteURL("example.com/posts/1"))
	assert.False(t, IsAbsoluteURL("mailto:someone"))
	assert.False(t, IsAbsoluteURL(""))
}
