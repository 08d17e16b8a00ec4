package attachments

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"gcs/internal/apperr"
	"gcs/internal/blobstore"
	"gcs/internal/models"
	"gcs/internal/store"
)

// RemoveRequest names one blob and the record field that references it.
// RecordID and Field may be empty when the blob carries linkage metadata.
type RemoveRequest struct {
	BlobID   string
	RecordID string
	Field    string
}

// RemoveFile deletes one blob and pulls its id from the owning field. When
// the blob linkage disagrees with the caller's record or field nothing is
// deleted.
func (e *Engine) RemoveFile(ctx context.Context, records store.RecordStore, blobs blobstore.BlobStore, req RemoveRequest) (err error) {
	defer mon.Task()(&ctx)(&err)

	blobID, err := models.ParseID(req.BlobID)
	if err != nil {
		return apperr.BadRequest.New("id: %v", err)
	}
	blob, err := blobs.Stat(ctx, blobID)
	if err != nil {
		return err
	}

	recordID, field := req.RecordID, req.Field
	if recordID != "" {
		if recordID, err = models.ParseID(recordID); err != nil {
			return apperr.BadRequest.New("recordId: %v", err)
		}
	}
	if link := blob.Metadata; link != nil {
		if recordID != "" && link.NID != "" && recordID != link.NID {
			return apperr.BadRequest.New("blob %s belongs to record %s, not %s", blobID, link.NID, recordID)
		}
		if field != "" && link.Field != "" && field != link.Field {
			return apperr.BadRequest.New("blob %s belongs to field %s, not %s", blobID, link.Field, field)
		}
		if recordID == "" {
			recordID = link.NID
		}
		if field == "" {
			field = link.Field
		}
	}
	if recordID == "" || field == "" {
		return apperr.BadRequest.New("recordId and fieldName are required for unlinked blob %s", blobID)
	}
	if !e.IsAttachmentField(field) {
		return apperr.BadRequest.New("field %s is not an attachment field", field)
	}

	if err := blobs.Remove(ctx, blobID); err != nil {
		return err
	}
	return e.pull(ctx, records, recordID, field, blobID)
}

// DeleteRecord removes every blob referenced by or linked to the record and
// then the record itself. Blob deletions run concurrently; the record is only
// removed once all of them succeeded. Deleting a missing record is a no-op.
func (e *Engine) DeleteRecord(ctx context.Context, records store.RecordStore, blobs blobstore.BlobStore, recordID string) (err error) {
	defer mon.Task()(&ctx)(&err)

	id, err := models.ParseID(recordID)
	if err != nil {
		return apperr.BadRequest.Wrap(err)
	}
	record, err := records.FindOne(ctx, e.collection, store.Condition{models.KeyID: id})
	if err != nil {
		return err
	}
	if record == nil {
		return nil
	}

	ids, err := e.referencedBlobs(ctx, blobs, record)
	if err != nil {
		return err
	}

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(e.concurrency)
	for _, blobID := range ids {
		group.Go(func() error {
			if err := blobs.Remove(gctx, blobID); err != nil && !apperr.IsNotFound(err) {
				return err
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	if err := records.Remove(ctx, e.collection, store.Condition{models.KeyID: id}); err != nil {
		return err
	}
	e.logger.Debug("deleted record", "collection", e.collection, "record", id, "blobs", len(ids))
	return nil
}

// referencedBlobs returns the union of ids held in attachment fields and ids
// of blobs whose linkage names the record.
func (e *Engine) referencedBlobs(ctx context.Context, blobs blobstore.BlobStore, record models.Document) ([]string, error) {
	set := map[string]struct{}{}
	if fields := record.Fields(); fields != nil {
		for _, name := range e.order {
			for _, id := range models.IDList(fields[name]) {
				set[id] = struct{}{}
			}
		}
	}
	linked, err := blobs.Find(ctx, store.Condition{store.BlobOwnerPath: record.ID()})
	if err != nil {
		return nil, err
	}
	for _, blob := range linked {
		set[blob.ID] = struct{}{}
	}

	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
