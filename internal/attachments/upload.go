package attachments

import (
	"context"
	"fmt"
	"io"

	"gcs/internal/apperr"
	"gcs/internal/blobstore"
	"gcs/internal/models"
	"gcs/internal/store"
)

// UploadRequest describes one inbound file and where it attaches.
type UploadRequest struct {
	RecordID    string
	Field       string
	Position    int
	Media       models.MediaKind
	Action      models.UploadAction
	Filename    string
	ContentType string
}

// Validate checks the sidecar fields of an upload.
func (r UploadRequest) Validate() error {
	if _, err := models.ParseID(r.RecordID); err != nil {
		return apperr.BadRequest.New("nid: %v", err)
	}
	if r.Field == "" {
		return apperr.BadRequest.New("field is required")
	}
	if r.Position < 0 {
		return apperr.BadRequest.New("position must be zero or greater")
	}
	if _, err := models.ParseMediaKind(string(r.Media)); err != nil {
		return apperr.BadRequest.Wrap(err)
	}
	switch r.Action {
	case models.UploadActionAdd, models.UploadActionEdit:
	default:
		return apperr.BadRequest.New("invalid action: %s", r.Action)
	}
	if r.Filename == "" {
		return apperr.BadRequest.New("filename is required")
	}
	return nil
}

// Upload streams content into a new blob linked to the request position. With
// the edit action the blob already at {record, position, media} is removed
// first. When linking fails after the write, the new blob is deleted again.
func (e *Engine) Upload(ctx context.Context, records store.RecordStore, blobs blobstore.BlobStore, req UploadRequest, content io.Reader) (_ models.Blob, err error) {
	defer mon.Task()(&ctx)(&err)

	if err := req.Validate(); err != nil {
		return models.Blob{}, err
	}
	recordID, _ := models.ParseID(req.RecordID)
	if !e.IsAttachmentField(req.Field) {
		return models.Blob{}, apperr.BadRequest.New("field %s is not an attachment field", req.Field)
	}
	if _, err := e.loadRecord(ctx, records, recordID); err != nil {
		return models.Blob{}, err
	}

	if req.Action == models.UploadActionEdit {
		if err := e.removeAtPosition(ctx, records, blobs, recordID, req.Field, req.Position, req.Media); err != nil {
			return models.Blob{}, err
		}
	}

	sink, err := blobs.OpenWrite(ctx, req.Filename, req.ContentType)
	if err != nil {
		return models.Blob{}, err
	}
	if _, err := io.Copy(sink, content); err != nil {
		_ = sink.Abort()
		return models.Blob{}, apperr.Blob.Wrap(fmt.Errorf("stream %s: %w", req.Filename, err))
	}
	blob, err := sink.Commit()
	if err != nil {
		return models.Blob{}, err
	}

	linkage := models.Linkage{
		NID:      recordID,
		Field:    req.Field,
		Position: req.Position,
		Media:    req.Media,
		Mime:     blob.ContentType,
	}
	if err := blobs.SetMetadata(ctx, blob.ID, linkage); err != nil {
		e.discard(ctx, blobs, blob.ID, err)
		return models.Blob{}, err
	}
	if err := e.push(ctx, records, recordID, req.Field, blob.ID); err != nil {
		e.discard(ctx, blobs, blob.ID, err)
		return models.Blob{}, err
	}

	blob.Metadata = &linkage
	e.logger.Debug("attached blob", "record", recordID, "field", req.Field, "position", req.Position, "blob", blob.ID)
	return blob, nil
}

// removeAtPosition deletes the blob at {record, field, position, media} and
// pulls it from the field. A missing blob is not an error.
func (e *Engine) removeAtPosition(ctx context.Context, records store.RecordStore, blobs blobstore.BlobStore, recordID, field string, position int, media models.MediaKind) error {
	found, err := blobs.Find(ctx, store.Condition{
		store.BlobOwnerPath: recordID,
		"metadata.field":    field,
		"metadata.position": position,
		"metadata.media":    string(media),
	})
	if err != nil {
		return err
	}
	if len(found) == 0 {
		return nil
	}
	old := found[0]
	if err := blobs.Remove(ctx, old.ID); err != nil && !apperr.IsNotFound(err) {
		return err
	}
	if old.Metadata == nil || old.Metadata.Field == "" {
		return nil
	}
	return e.pull(ctx, records, recordID, field, old.ID)
}

// discard deletes a blob whose linking failed so it does not linger as an orphan.
func (e *Engine) discard(ctx context.Context, blobs blobstore.BlobStore, id string, cause error) {
	if err := blobs.Remove(context.WithoutCancel(ctx), id); err != nil && !apperr.IsNotFound(err) {
		e.logger.Error("orphan blob left behind", "blob", id, "cause", cause, "error", err)
		return
	}
	e.logger.Warn("discarded unlinked blob", "blob", id, "cause", cause)
}
