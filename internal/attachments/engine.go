// Package attachments binds records to ordered lists of blobs held in their
// attachment fields.
package attachments

import (
	"context"
	"log/slog"
	"time"

	"github.com/spacemonkeygo/monkit/v3"

	"gcs/internal/apperr"
	"gcs/internal/blobstore"
	"gcs/internal/models"
	"gcs/internal/store"
)

var mon = monkit.Package()

const (
	defaultDeleteConcurrency = 8
	fieldsPrefix             = models.KeyFields + "."
)

// Engine maintains the attachment fields of one collection.
type Engine struct {
	collection  string
	form        []models.FormField
	attachments map[string]models.FormField
	order       []string
	concurrency int
	logger      *slog.Logger
	now         func() time.Time
}

// New classifies form and returns an engine for collection.
func New(collection string, form []models.FormField, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		collection:  collection,
		form:        form,
		attachments: map[string]models.FormField{},
		concurrency: defaultDeleteConcurrency,
		logger:      logger,
		now:         time.Now,
	}
	for _, field := range form {
		if !field.IsAttachment() {
			continue
		}
		if _, seen := e.attachments[field.Name]; seen {
			continue
		}
		e.attachments[field.Name] = field
		e.order = append(e.order, field.Name)
	}
	return e
}

// Collection returns the record collection of the engine.
func (e *Engine) Collection() string {
	return e.collection
}

// IsAttachmentField reports whether name is a declared attachment field.
func (e *Engine) IsAttachmentField(name string) bool {
	_, ok := e.attachments[name]
	return ok
}

// AttachmentFields returns the attachment field names in declared order.
func (e *Engine) AttachmentFields() []string {
	out := make([]string, len(e.order))
	copy(out, e.order)
	return out
}

// Expand replaces the blob ids of every non-empty attachment field of record
// with the blob metadata, keeping list order. A referenced blob that cannot be
// found fails the whole expansion.
func (e *Engine) Expand(ctx context.Context, blobs blobstore.BlobStore, record models.Document) (err error) {
	defer mon.Task()(&ctx)(&err)

	fields := record.Fields()
	if fields == nil {
		return nil
	}
	pending := map[string][]string{}
	for _, name := range e.order {
		if ids := models.IDList(fields[name]); len(ids) > 0 {
			pending[name] = ids
		}
	}
	if len(pending) == 0 {
		return nil
	}

	linked, err := blobs.Find(ctx, store.Condition{store.BlobOwnerPath: record.ID()}, store.SortField{Field: "metadata.position"})
	if err != nil {
		return err
	}
	byID := make(map[string]models.Blob, len(linked))
	for _, blob := range linked {
		byID[blob.ID] = blob
	}

	for _, name := range e.order {
		ids, ok := pending[name]
		if !ok {
			continue
		}
		expanded := make([]any, 0, len(ids))
		for _, id := range ids {
			blob, ok := byID[id]
			if !ok {
				blob, err = blobs.Stat(ctx, id)
				if err != nil {
					return err
				}
			}
			expanded = append(expanded, blob)
		}
		fields[name] = expanded
	}
	return nil
}

func (e *Engine) loadRecord(ctx context.Context, records store.RecordStore, id string) (models.Document, error) {
	record, err := records.FindOne(ctx, e.collection, store.Condition{models.KeyID: id})
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, apperr.BadRequest.New("record %s does not exist", id)
	}
	return record, nil
}

func (e *Engine) pull(ctx context.Context, records store.RecordStore, recordID, field, blobID string) error {
	return records.Update(ctx, e.collection, store.Condition{models.KeyID: recordID},
		store.Pull(fieldsPrefix+field, blobID), store.UpdateOptions{})
}

func (e *Engine) push(ctx context.Context, records store.RecordStore, recordID, field, blobID string) error {
	return records.Update(ctx, e.collection, store.Condition{models.KeyID: recordID},
		store.Push(fieldsPrefix+field, blobID), store.UpdateOptions{})
}
