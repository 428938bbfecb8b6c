// Package storage holds the blob stores backing ticket attachments. Blobs
// are addressed by an opaque slash-separated key.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrBlobNotFound is returned when no blob exists under a key.
var ErrBlobNotFound = errors.New("storage: blob not found")

// BlobStore persists attachment payloads.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}
