package store

import (
	"context"

	"gcs/internal/models"
)

// RecordStore is the document store contract used by every pipeline.
// Every call is a single-document or single-query operation.
type RecordStore interface {
	Find(ctx context.Context, collection string, cond Condition, opts Options) ([]models.Document, error)
	// FindOne returns nil without error when no document matches.
	FindOne(ctx context.Context, collection string, cond Condition) (models.Document, error)
	// Insert assigns an _id when the document has none and returns the stored document.
	Insert(ctx context.Context, collection string, doc models.Document) (models.Document, error)
	// Update applies patch to the first matching document.
	Update(ctx context.Context, collection string, cond Condition, patch Patch, opts UpdateOptions) error
	// Remove deletes every matching document.
	Remove(ctx context.Context, collection string, cond Condition) error
	Close() error
}

var _ RecordStore = (*Store)(nil)
