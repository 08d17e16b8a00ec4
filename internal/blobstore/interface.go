package blobstore

import (
	"context"
	"io"

	"gcs/internal/models"
	"gcs/internal/store"
)

// FilesCollection holds blob metadata next to the records it belongs to.
const FilesCollection = "fs.files"

// ContentStore is the byte-storage backend behind a blob store.
type ContentStore interface {
	Put(ctx context.Context, key string, r io.Reader) (int64, error)
	// Open returns a NotFound error when key holds no content.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete ignores missing keys.
	Delete(ctx context.Context, key string) error
}

// BlobStore streams binary objects keyed by store-assigned ids and keeps
// their metadata queryable.
type BlobStore interface {
	OpenWrite(ctx context.Context, filename, contentType string) (WriteSink, error)
	// OpenRead returns a NotFound error for unknown ids.
	OpenRead(ctx context.Context, id string) (*ReadStream, error)
	// Stat returns a NotFound error for unknown ids.
	Stat(ctx context.Context, id string) (models.Blob, error)
	// Remove returns a NotFound error for unknown ids.
	Remove(ctx context.Context, id string) error
	SetMetadata(ctx context.Context, id string, linkage models.Linkage) error
	Find(ctx context.Context, cond store.Condition, sort ...store.SortField) ([]models.Blob, error)
}

// WriteSink receives the bytes of one new blob.
type WriteSink interface {
	io.Writer
	// ID is the id the blob will have once committed.
	ID() string
	// Commit finishes the write and returns the stored metadata.
	Commit() (models.Blob, error)
	// Abort discards everything written so far.
	Abort() error
}

// ReadStream is an open blob with its metadata.
type ReadStream struct {
	io.ReadCloser
	Blob models.Blob
}
