// Package syncer decides which source posts cross over and drives the
// fetch, transcode, publish cycle.
package syncer

import (
	"context"
	"time"

	"github.com/hossain-khan/social-sync/internal/source"
)

// Fetcher reads the account's posts and media from the source platform.
type Fetcher interface {
	FetchRecentPosts(ctx context.Context, limit int, since time.Time) (source.FetchResult, error)
	DownloadBlob(ctx context.Context, authorDID, blobRef string) ([]byte, string, error)
}

// Status is a destination post ready to publish.
type Status struct {
	Text        string
	InReplyToID string
	MediaIDs    []string
	Sensitive   bool
	SpoilerText string
	Language    string
}

// Publisher writes statuses and media to the destination platform.
type Publisher interface {
	Publish(ctx context.Context, status Status) (string, error)
	UploadMedia(ctx context.Context, data []byte, mimeType, description string) (string, error)
}
