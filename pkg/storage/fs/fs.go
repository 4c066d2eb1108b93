// Package fs implements the storage contracts on the local filesystem.
// Posts are JSON documents under a content root; mutations are guarded
// by a cross-process file lock and can optionally be committed to a git
// repository at the content root.
package fs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/gofrs/flock"

	"github.com/indiepub/indiepub/pkg/errors"
	"github.com/indiepub/indiepub/pkg/logger"
	"github.com/indiepub/indiepub/pkg/mf2"
	"github.com/indiepub/indiepub/pkg/storage"
)

// document is the on-disk shape of a stored post.
type document struct {
	Type       []string         `json:"type"`
	Properties map[string][]any `json:"properties"`
	Published  time.Time        `json:"published"`
	Modified   time.Time        `json:"modified,omitzero"`
	Deleted    bool             `json:"deleted,omitempty"`
}

// Options configures the content store.
type Options struct {
	// ContentDir is the directory post documents are written to.
	ContentDir string

	// SiteURL is the absolute URL posts are published under.
	SiteURL string

	// GitCommit records a git commit per mutation. ContentDir must be
	// inside an existing git repository.
	GitCommit bool
}

// Store implements storage.Adapter on the local filesystem.
type Store struct {
	contentDir string
	siteURL    *url.URL
	lock       *flock.Flock
	repo       *git.Repository

	// now is replaceable for tests.
	now func() time.Time
}

var _ storage.Adapter = (*Store)(nil)

// New creates a content store rooted at opts.ContentDir.
func New(opts Options) (*Store, error) {
	site, err := url.Parse(opts.SiteURL)
	if err != nil || !site.IsAbs() || site.Host == "" {
		return nil, fmt.Errorf("site URL must be absolute, got %q", opts.SiteURL)
	}
	if err := os.MkdirAll(filepath.Join(opts.ContentDir, storage.PostsPrefix), 0750); err != nil {
		return nil, fmt.Errorf("failed to create content directory: %w", err)
	}

	store := &Store{
		contentDir: opts.ContentDir,
		siteURL:    site,
		lock:       flock.New(filepath.Join(opts.ContentDir, ".indiepub.lock")),
		now:        time.Now,
	}

	if opts.GitCommit {
		repo, err := git.PlainOpenWithOptions(opts.ContentDir, &git.PlainOpenOptions{DetectDotGit: true})
		if err != nil {
			return nil, fmt.Errorf("failed to open git repository at %s: %w", opts.ContentDir, err)
		}
		store.repo = repo
	}

	return store, nil
}

// CreatePost persists a new entry and returns its metadata.
func (s *Store) CreatePost(_ context.Context, entry *mf2.Entry) (*storage.PostMetadata, error) {
	if err := s.lock.Lock(); err != nil {
		return nil, fmt.Errorf("failed to acquire content lock: %w", err)
	}
	defer s.unlock()

	slug := storage.SlugForEntry(entry)
	if _, err := os.Stat(s.slugPath(slug)); err == nil {
		// Slug taken; disambiguate rather than overwrite.
		slug = storage.DisambiguateSlug(slug)
	}

	doc := &document{
		Type:       entry.Type,
		Properties: entry.Properties,
		Published:  s.now(),
	}
	if err := s.writeDoc(slug, doc); err != nil {
		return nil, err
	}

	postURL := storage.PostURL(s.siteURL, slug)
	logger.Infow("created post", "url", postURL)
	return &storage.PostMetadata{URL: postURL, Published: doc.Published}, nil
}

// GetPost returns the entry stored at postURL, optionally reduced to the
// requested properties. Deleted posts are reported as not found.
func (s *Store) GetPost(_ context.Context, postURL string, properties []string) (*mf2.Entry, error) {
	slug, err := storage.SlugFromURL(s.siteURL, postURL)
	if err != nil {
		return nil, err
	}
	doc, err := s.readDoc(slug)
	if err != nil {
		return nil, err
	}
	if doc.Deleted {
		return nil, errors.NewNotFoundError(fmt.Sprintf("post %s is deleted", postURL), nil)
	}

	entry := &mf2.Entry{Type: doc.Type, Properties: doc.Properties}
	return entry.FilterProperties(properties), nil
}

// UpdatePost applies the operations to the stored entry.
func (s *Store) UpdatePost(_ context.Context, postURL string, ops []mf2.Operation) (*storage.PostMetadata, error) {
	slug, err := storage.SlugFromURL(s.siteURL, postURL)
	if err != nil {
		return nil, err
	}

	if err := s.lock.Lock(); err != nil {
		return nil, fmt.Errorf("failed to acquire content lock: %w", err)
	}
	defer s.unlock()

	doc, err := s.readDoc(slug)
	if err != nil {
		return nil, err
	}
	if doc.Deleted {
		return nil, errors.NewNotFoundError(fmt.Sprintf("post %s is deleted", postURL), nil)
	}

	doc.Properties = mf2.Apply(doc.Properties, ops)
	doc.Modified = s.now()
	if err := s.writeDoc(slug, doc); err != nil {
		return nil, err
	}

	return &storage.PostMetadata{
		URL:       postURL,
		Published: doc.Published,
		Modified:  doc.Modified,
	}, nil
}

// DeletePost marks the post as deleted. The document stays on disk so
// the post can be undeleted.
func (s *Store) DeletePost(_ context.Context, postURL string) error {
	return s.setDeleted(postURL, true)
}

// UndeletePost clears the deleted mark.
func (s *Store) UndeletePost(_ context.Context, postURL string) error {
	return s.setDeleted(postURL, false)
}

func (s *Store) setDeleted(postURL string, deleted bool) error {
	slug, err := storage.SlugFromURL(s.siteURL, postURL)
	if err != nil {
		return err
	}

	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire content lock: %w", err)
	}
	defer s.unlock()

	doc, err := s.readDoc(slug)
	if err != nil {
		return err
	}
	if doc.Deleted == deleted {
		return nil
	}
	doc.Deleted = deleted
	doc.Modified = s.now()
	return s.writeDoc(slug, doc)
}

func (s *Store) unlock() {
	if err := s.lock.Unlock(); err != nil {
		logger.Warnf("failed to release content lock: %v", err)
	}
}

func (s *Store) slugPath(slug string) string {
	return filepath.Join(s.contentDir, storage.PostsPrefix, slug+".json")
}

func (s *Store) readDoc(slug string) (*document, error) {
	data, err := os.ReadFile(s.slugPath(slug))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError(fmt.Sprintf("no post with slug %q", slug), nil)
		}
		return nil, fmt.Errorf("failed to read post %q: %w", slug, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode post %q: %w", slug, err)
	}
	return &doc, nil
}

func (s *Store) writeDoc(slug string, doc *document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode post %q: %w", slug, err)
	}
	if err := os.WriteFile(s.slugPath(slug), data, 0600); err != nil {
		return fmt.Errorf("failed to write post %q: %w", slug, err)
	}
	return s.commit(filepath.Join(storage.PostsPrefix, slug+".json"), fmt.Sprintf("content: update %s", slug))
}

// commit records the changed file in git when commits are enabled.
func (s *Store) commit(relPath, message string) error {
	if s.repo == nil {
		return nil
	}

	worktree, err := s.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to open git worktree: %w", err)
	}
	if _, err := worktree.Add(relPath); err != nil {
		return fmt.Errorf("failed to stage %s: %w", relPath, err)
	}
	_, err = worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "indiepub",
			Email: "indiepub@localhost",
			When:  s.now(),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to commit %s: %w", relPath, err)
	}
	return nil
}
