// Package storage holds the blob store adapters rendered documents and
// curriculum artifacts are uploaded to.
package storage

import (
	"context"
	"io"
)

// ObjectStorage is a bucket of immutable objects addressed by key.
type ObjectStorage interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// GetURL returns a public URL for the object, or "" when the bucket
	// has no public prefix and objects must be streamed through Download.
	GetURL(key string) string

	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// BucketEnsurer is implemented by backends that can create their bucket.
type BucketEnsurer interface {
	EnsureBucket(ctx context.Context) error
}
