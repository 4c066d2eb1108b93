package storage

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/indiepub/indiepub/pkg/errors"
	"github.com/indiepub/indiepub/pkg/mf2"
)

// PostsPrefix is the URL path segment posts are published under.
const PostsPrefix = "posts"

// SlugForEntry derives the slug for a new post: an explicit mp-slug
// wins, otherwise a random identifier.
func SlugForEntry(entry *mf2.Entry) string {
	if values := entry.Properties["mp-slug"]; len(values) > 0 {
		if raw, ok := values[0].(string); ok {
			if slug := Slugify(raw); slug != "" {
				return slug
			}
		}
	}
	return uuid.NewString()
}

// DisambiguateSlug appends a random suffix to a taken slug.
func DisambiguateSlug(slug string) string {
	return slug + "-" + uuid.NewString()[:8]
}

// Slugify reduces a client-supplied slug to [a-z0-9-].
func Slugify(raw string) string {
	var b strings.Builder
	lastDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(raw)) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastDash = false
		case !lastDash && b.Len() > 0:
			b.WriteByte('-')
			lastDash = true
		}
	}
	return strings.Trim(b.String(), "-")
}

// PostURL composes the absolute URL a slug is published under.
func PostURL(siteURL *url.URL, slug string) string {
	return siteURL.JoinPath(PostsPrefix, slug).String()
}

// SlugFromURL maps a post URL back to its slug. The URL must live under
// the site's posts prefix; anything else is a typed not_found or
// invalid_request error.
func SlugFromURL(siteURL *url.URL, postURL string) (string, error) {
	u, err := url.Parse(postURL)
	if err != nil || !u.IsAbs() {
		return "", errors.NewInvalidRequestError(fmt.Sprintf("invalid post URL %q", postURL), err)
	}

	prefix := strings.TrimSuffix(siteURL.Path, "/") + "/" + PostsPrefix + "/"
	if u.Host != siteURL.Host || !strings.HasPrefix(u.Path, prefix) {
		return "", errors.NewNotFoundError(fmt.Sprintf("no post at %s", postURL), nil)
	}

	slug := path.Clean(strings.TrimPrefix(u.Path, prefix))
	if slug == "" || slug == "." || strings.Contains(slug, "/") || strings.Contains(slug, "..") {
		return "", errors.NewNotFoundError(fmt.Sprintf("no post at %s", postURL), nil)
	}
	return slug, nil
}
