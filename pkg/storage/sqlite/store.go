package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/url"
	"time"

	sqlite3 "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/indiepub/indiepub/pkg/errors"
	"github.com/indiepub/indiepub/pkg/logger"
	"github.com/indiepub/indiepub/pkg/mf2"
	"github.com/indiepub/indiepub/pkg/storage"
)

// Options configures the SQLite content store.
type Options struct {
	// DBPath is the database file path.
	DBPath string

	// SiteURL is the absolute URL posts are published under.
	SiteURL string
}

// Store implements storage.Adapter on SQLite.
type Store struct {
	wrapper *DB
	db      *sql.DB
	siteURL *url.URL

	// now is replaceable for tests.
	now func() time.Time
}

var _ storage.Adapter = (*Store)(nil)

// New opens the database at opts.DBPath and returns a content store.
func New(ctx context.Context, opts Options) (*Store, error) {
	site, err := url.Parse(opts.SiteURL)
	if err != nil || !site.IsAbs() || site.Host == "" {
		return nil, fmt.Errorf("site URL must be absolute, got %q", opts.SiteURL)
	}

	wrapper, err := Open(ctx, opts.DBPath)
	if err != nil {
		return nil, err
	}

	return &Store{
		wrapper: wrapper,
		db:      wrapper.DB(),
		siteURL: site,
		now:     time.Now,
	}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.wrapper.Close()
}

// CreatePost persists a new entry and returns its metadata.
func (s *Store) CreatePost(ctx context.Context, entry *mf2.Entry) (*storage.PostMetadata, error) {
	typeJSON, propertiesJSON, err := encodeEntry(entry)
	if err != nil {
		return nil, err
	}
	published := s.now()

	slug := storage.SlugForEntry(entry)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO posts (slug, type, properties, published)
		VALUES (?, jsonb(?), jsonb(?), ?)`,
		slug, typeJSON, propertiesJSON, published.Format(time.RFC3339Nano),
	)
	if isUniqueViolation(err) {
		// Slug taken; disambiguate rather than overwrite.
		slug = storage.DisambiguateSlug(slug)
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO posts (slug, type, properties, published)
			VALUES (?, jsonb(?), jsonb(?), ?)`,
			slug, typeJSON, propertiesJSON, published.Format(time.RFC3339Nano),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("inserting post: %w", err)
	}

	postURL := storage.PostURL(s.siteURL, slug)
	logger.Infow("created post", "url", postURL)
	return &storage.PostMetadata{URL: postURL, Published: published}, nil
}

// GetPost returns the entry stored at postURL, optionally reduced to the
// requested properties. Deleted posts are reported as not found.
func (s *Store) GetPost(ctx context.Context, postURL string, properties []string) (*mf2.Entry, error) {
	slug, err := storage.SlugFromURL(s.siteURL, postURL)
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT json(type), json(properties), deleted FROM posts WHERE slug = ?`, slug)

	var typeJSON, propertiesJSON []byte
	var deleted bool
	if err := row.Scan(&typeJSON, &propertiesJSON, &deleted); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFoundError(fmt.Sprintf("no post at %s", postURL), nil)
		}
		return nil, fmt.Errorf("scanning post row: %w", err)
	}
	if deleted {
		return nil, errors.NewNotFoundError(fmt.Sprintf("post %s is deleted", postURL), nil)
	}

	entry, err := decodeEntry(typeJSON, propertiesJSON)
	if err != nil {
		return nil, err
	}
	return entry.FilterProperties(properties), nil
}

// UpdatePost applies the operations to the stored entry.
func (s *Store) UpdatePost(ctx context.Context, postURL string, ops []mf2.Operation) (*storage.PostMetadata, error) {
	slug, err := storage.SlugFromURL(s.siteURL, postURL)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollback(tx)

	row := tx.QueryRowContext(ctx,
		`SELECT json(type), json(properties), published, deleted FROM posts WHERE slug = ?`, slug)

	var typeJSON, propertiesJSON []byte
	var publishedStr string
	var deleted bool
	if err := row.Scan(&typeJSON, &propertiesJSON, &publishedStr, &deleted); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFoundError(fmt.Sprintf("no post at %s", postURL), nil)
		}
		return nil, fmt.Errorf("scanning post row: %w", err)
	}
	if deleted {
		return nil, errors.NewNotFoundError(fmt.Sprintf("post %s is deleted", postURL), nil)
	}

	entry, err := decodeEntry(typeJSON, propertiesJSON)
	if err != nil {
		return nil, err
	}
	entry.Properties = mf2.Apply(entry.Properties, ops)

	_, updatedJSON, err := encodeEntry(entry)
	if err != nil {
		return nil, err
	}
	modified := s.now()

	if _, err := tx.ExecContext(ctx,
		`UPDATE posts SET properties = jsonb(?), modified = ? WHERE slug = ?`,
		updatedJSON, modified.Format(time.RFC3339Nano), slug,
	); err != nil {
		return nil, fmt.Errorf("updating post: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	published, err := time.Parse(time.RFC3339Nano, publishedStr)
	if err != nil {
		return nil, fmt.Errorf("parsing published timestamp: %w", err)
	}
	return &storage.PostMetadata{URL: postURL, Published: published, Modified: modified}, nil
}

// DeletePost marks the post as deleted. The row stays in place so the
// post can be undeleted.
func (s *Store) DeletePost(ctx context.Context, postURL string) error {
	return s.setDeleted(ctx, postURL, true)
}

// UndeletePost clears the deleted mark.
func (s *Store) UndeletePost(ctx context.Context, postURL string) error {
	return s.setDeleted(ctx, postURL, false)
}

func (s *Store) setDeleted(ctx context.Context, postURL string, deleted bool) error {
	slug, err := storage.SlugFromURL(s.siteURL, postURL)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE posts SET deleted = ?, modified = ? WHERE slug = ?`,
		deleted, s.now().Format(time.RFC3339Nano), slug,
	)
	if err != nil {
		return fmt.Errorf("updating deleted mark: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if affected == 0 {
		return errors.NewNotFoundError(fmt.Sprintf("no post at %s", postURL), nil)
	}
	return nil
}

// encodeEntry marshals an entry's fields for the SQLite jsonb() function.
func encodeEntry(entry *mf2.Entry) (typeJSON, propertiesJSON string, err error) {
	t, err := json.Marshal(entry.Type)
	if err != nil {
		return "", "", fmt.Errorf("encoding type: %w", err)
	}
	p, err := json.Marshal(entry.Properties)
	if err != nil {
		return "", "", fmt.Errorf("encoding properties: %w", err)
	}
	return string(t), string(p), nil
}

// decodeEntry unmarshals the JSONB columns back into an entry.
func decodeEntry(typeJSON, propertiesJSON []byte) (*mf2.Entry, error) {
	var entry mf2.Entry
	if err := json.Unmarshal(typeJSON, &entry.Type); err != nil {
		return nil, fmt.Errorf("decoding type: %w", err)
	}
	if err := json.Unmarshal(propertiesJSON, &entry.Properties); err != nil {
		return nil, fmt.Errorf("decoding properties: %w", err)
	}
	return &entry, nil
}

// isUniqueViolation checks for a SQLite UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite3.Error
	if stderrors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3lib.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}

// rollback rolls back tx, ignoring errors (tx may already be committed).
func rollback(tx *sql.Tx) { _ = tx.Rollback() }
