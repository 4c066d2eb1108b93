package fs

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/indiepub/indiepub/pkg/errors"
	"github.com/indiepub/indiepub/pkg/logger"
	"github.com/indiepub/indiepub/pkg/storage"
)

// MediaOptions configures the media store.
type MediaOptions struct {
	// MediaDir is the directory uploaded files are written to.
	MediaDir string

	// BaseURL is the absolute URL prefix files are served under.
	BaseURL string
}

// MediaStore implements storage.MediaAdapter on the local filesystem.
type MediaStore struct {
	mediaDir string
	baseURL  *url.URL
}

var _ storage.MediaAdapter = (*MediaStore)(nil)

// NewMediaStore creates a media store rooted at opts.MediaDir.
func NewMediaStore(opts MediaOptions) (*MediaStore, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil || !base.IsAbs() || base.Host == "" {
		return nil, fmt.Errorf("media base URL must be absolute, got %q", opts.BaseURL)
	}
	if err := os.MkdirAll(opts.MediaDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}
	return &MediaStore{mediaDir: opts.MediaDir, baseURL: base}, nil
}

// SaveFile stores data under the given relative filename and returns the
// absolute URL it is served from.
func (m *MediaStore) SaveFile(_ context.Context, filename string, data []byte) (string, error) {
	rel, err := m.safeRelPath(filename)
	if err != nil {
		return "", err
	}

	target := filepath.Join(m.mediaDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(target), 0750); err != nil {
		return "", fmt.Errorf("failed to create media subdirectory: %w", err)
	}
	if err := os.WriteFile(target, data, 0600); err != nil {
		return "", fmt.Errorf("failed to write media file: %w", err)
	}

	fileURL := m.baseURL.JoinPath(strings.Split(rel, "/")...).String()
	logger.Infow("stored media file", "url", fileURL, "bytes", len(data))
	return fileURL, nil
}

// DeleteFile removes the file previously returned at fileURL.
func (m *MediaStore) DeleteFile(_ context.Context, fileURL string) error {
	u, err := url.Parse(fileURL)
	if err != nil || !u.IsAbs() {
		return errors.NewInvalidRequestError(fmt.Sprintf("invalid media URL %q", fileURL), err)
	}

	prefix := strings.TrimSuffix(m.baseURL.Path, "/") + "/"
	if u.Host != m.baseURL.Host || !strings.HasPrefix(u.Path, prefix) {
		return errors.NewNotFoundError(fmt.Sprintf("no media file at %s", fileURL), nil)
	}

	rel, rerr := m.safeRelPath(strings.TrimPrefix(u.Path, prefix))
	if rerr != nil {
		return rerr
	}

	target := filepath.Join(m.mediaDir, filepath.FromSlash(rel))
	if err := os.Remove(target); err != nil {
		if os.IsNotExist(err) {
			return errors.NewNotFoundError(fmt.Sprintf("no media file at %s", fileURL), nil)
		}
		return fmt.Errorf("failed to delete media file: %w", err)
	}
	return nil
}

// safeRelPath normalizes a slash-separated relative path and rejects
// anything that would escape the media root.
func (m *MediaStore) safeRelPath(rel string) (string, error) {
	cleaned := path.Clean("/" + rel)
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." || strings.Contains(cleaned, "..") {
		return "", errors.NewInvalidRequestError(fmt.Sprintf("invalid media path %q", rel), nil)
	}
	return cleaned, nil
}
