// Package storage defines the contracts the Micropub core consumes for
// persisting posts and media. Implementations decide the persistence
// strategy; the core only relies on the semantics documented here.
package storage

import (
	"context"
	"time"

	"github.com/indiepub/indiepub/pkg/mf2"
)

// PostMetadata describes a stored post. URL is always absolute.
type PostMetadata struct {
	URL       string    `json:"url"`
	Published time.Time `json:"published"`
	Modified  time.Time `json:"modified,omitzero"`
	Deleted   bool      `json:"deleted,omitempty"`
}

// Adapter is the content-storage contract.
//
// Implementations signal a missing post with a not_found error from the
// errors package; any other failure is treated as a server error by the
// handlers. DeletePost is a soft delete: the post must be recoverable
// through UndeletePost.
type Adapter interface {
	// CreatePost persists a new entry and returns its metadata.
	CreatePost(ctx context.Context, entry *mf2.Entry) (*PostMetadata, error)

	// GetPost returns the entry stored at url. A non-empty properties
	// list reduces the returned property bag to the requested keys.
	GetPost(ctx context.Context, url string, properties []string) (*mf2.Entry, error)

	// UpdatePost applies the operations to the entry stored at url.
	UpdatePost(ctx context.Context, url string, ops []mf2.Operation) (*PostMetadata, error)

	// DeletePost marks the post at url as deleted.
	DeletePost(ctx context.Context, url string) error

	// UndeletePost clears the deleted mark on the post at url.
	UndeletePost(ctx context.Context, url string) error
}

// MediaAdapter is the media-storage contract.
type MediaAdapter interface {
	// SaveFile stores data under the given relative filename and
	// returns the absolute URL it is served from.
	SaveFile(ctx context.Context, filename string, data []byte) (string, error)

	// DeleteFile removes the file previously returned at url.
	DeleteFile(ctx context.Context, url string) error
}
