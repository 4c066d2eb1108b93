package sqlite

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indiepub/indiepub/pkg/errors"
	"github.com/indiepub/indiepub/pkg/mf2"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(context.Background(), Options{
		DBPath:  filepath.Join(t.TempDir(), "posts.db"),
		SiteURL: "https://example.com",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testEntry(slug string) *mf2.Entry {
	props := map[string][]any{
		"content":  {"Hello World"},
		"category": {"a", "b"},
	}
	if slug != "" {
		props["mp-slug"] = []any{slug}
	}
	return &mf2.Entry{Type: []string{"h-entry"}, Properties: props}
}

func TestCreateAndGetPost(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	meta, err := store.CreatePost(ctx, testEntry("hello-world"))
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/posts/hello-world", meta.URL)
	assert.False(t, meta.Published.IsZero())

	entry, err := store.GetPost(ctx, meta.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"h-entry"}, entry.Type)
	assert.Equal(t, []any{"Hello World"}, entry.Properties["content"])
	assert.Equal(t, []any{"a", "b"}, entry.Properties["category"])
}

func TestCreatePostSlugCollision(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.CreatePost(ctx, testEntry("same"))
	require.NoError(t, err)
	second, err := store.CreatePost(ctx, testEntry("same"))
	require.NoError(t, err)

	assert.NotEqual(t, first.URL, second.URL)
	assert.True(t, strings.HasPrefix(second.URL, "https://example.com/posts/same-"))
}

func TestGetPostNotFound(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	_, err := store.GetPost(context.Background(), "https://example.com/posts/missing", nil)
	assert.True(t, errors.IsNotFound(err))
}

func TestGetPostPropertyFilter(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	meta, err := store.CreatePost(ctx, testEntry("filtered"))
	require.NoError(t, err)

	entry, err := store.GetPost(ctx, meta.URL, []string{"category"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]any{"category": {"a", "b"}}, entry.Properties)
}

func TestUpdatePost(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	meta, err := store.CreatePost(ctx, testEntry("update-me"))
	require.NoError(t, err)

	updated, err := store.UpdatePost(ctx, meta.URL, []mf2.Operation{
		{Kind: mf2.OpReplace, Property: "content", Values: []any{"Rewritten"}},
		{Kind: mf2.OpDelete, Property: "category", Values: []any{"a"}},
	})
	require.NoError(t, err)
	assert.Equal(t, meta.URL, updated.URL)
	assert.False(t, updated.Modified.IsZero())

	entry, err := store.GetPost(ctx, meta.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{"Rewritten"}, entry.Properties["content"])
	assert.Equal(t, []any{"b"}, entry.Properties["category"])
}

func TestUpdatePostNotFound(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	_, err := store.UpdatePost(context.Background(), "https://example.com/posts/missing", nil)
	assert.True(t, errors.IsNotFound(err))
}

func TestDeleteUndeleteCycle(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	meta, err := store.CreatePost(ctx, testEntry("cycle"))
	require.NoError(t, err)

	require.NoError(t, store.DeletePost(ctx, meta.URL))

	_, err = store.GetPost(ctx, meta.URL, nil)
	assert.True(t, errors.IsNotFound(err), "deleted post must read as not found")

	require.NoError(t, store.UndeletePost(ctx, meta.URL))

	entry, err := store.GetPost(ctx, meta.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{"Hello World"}, entry.Properties["content"])
}

func TestDeletePostNotFound(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	err := store.DeletePost(context.Background(), "https://example.com/posts/missing")
	assert.True(t, errors.IsNotFound(err))
}

func TestStructuredValuesSurviveRoundTrip(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	entry := &mf2.Entry{
		Type: []string{"h-entry"},
		Properties: map[string][]any{
			"content": {"photo post"},
			"photo": {map[string]any{
				"value": "https://example.com/files/a.jpg",
				"alt":   "A photo",
			}},
		},
	}
	meta, err := store.CreatePost(ctx, entry)
	require.NoError(t, err)

	got, err := store.GetPost(ctx, meta.URL, nil)
	require.NoError(t, err)
	photo, ok := got.Properties["photo"][0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "A photo", photo["alt"])
}
