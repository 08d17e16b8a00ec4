package attachments

import (
	"context"
	"time"

	"gcs/internal/apperr"
	"gcs/internal/blobstore"
	"gcs/internal/models"
	"gcs/internal/store"
)

// SweepOptions controls orphan collection.
type SweepOptions struct {
	// MinAge keeps blobs younger than this; uploads in flight are not yet linked.
	MinAge time.Duration
	DryRun bool
}

// SweepResult reports what a sweep found and removed.
type SweepResult struct {
	CandidateCount int           `json:"candidate_count"`
	DeletedCount   int           `json:"deleted_count"`
	FailedCount    int           `json:"failed_count"`
	ReclaimedBytes int64         `json:"reclaimed_bytes"`
	DryRun         bool          `json:"dry_run"`
	Orphans        []models.Blob `json:"orphans,omitempty"`
}

// Sweep removes blobs that are no longer referenced by the attachment field
// their linkage names. Blobs without linkage count as orphans once older
// than MinAge.
func (e *Engine) Sweep(ctx context.Context, records store.RecordStore, blobs blobstore.BlobStore, opts SweepOptions) (_ SweepResult, err error) {
	defer mon.Task()(&ctx)(&err)

	result := SweepResult{DryRun: opts.DryRun}
	all, err := blobs.Find(ctx, store.Condition{})
	if err != nil {
		return result, err
	}

	cutoff := e.now().Add(-opts.MinAge)
	owners := map[string]models.Document{}
	for _, blob := range all {
		if opts.MinAge > 0 && blob.UploadDate.After(cutoff) {
			continue
		}
		orphan, err := e.isOrphan(ctx, records, owners, blob)
		if err != nil {
			return result, err
		}
		if !orphan {
			continue
		}
		result.CandidateCount++
		result.Orphans = append(result.Orphans, blob)
		if opts.DryRun {
			continue
		}
		if err := blobs.Remove(ctx, blob.ID); err != nil && !apperr.IsNotFound(err) {
			result.FailedCount++
			e.logger.Warn("sweep remove failed", "blob", blob.ID, "error", err)
			continue
		}
		result.DeletedCount++
		result.ReclaimedBytes += blob.Length
	}

	if result.CandidateCount > 0 {
		e.logger.Info("swept orphan blobs",
			"collection", e.collection,
			"candidates", result.CandidateCount,
			"deleted", result.DeletedCount,
			"failed", result.FailedCount,
			"dry_run", result.DryRun)
	}
	return result, nil
}

func (e *Engine) isOrphan(ctx context.Context, records store.RecordStore, owners map[string]models.Document, blob models.Blob) (bool, error) {
	link := blob.Metadata
	if link == nil || link.NID == "" {
		return true, nil
	}
	// Linked to a field this engine does not manage; leave it alone.
	if link.Field != "" && !e.IsAttachmentField(link.Field) {
		return false, nil
	}
	owner, cached := owners[link.NID]
	if !cached {
		var err error
		owner, err = records.FindOne(ctx, e.collection, store.Condition{models.KeyID: link.NID})
		if err != nil {
			return false, err
		}
		owners[link.NID] = owner
	}
	if owner == nil {
		return true, nil
	}
	fields := owner.Fields()
	if fields == nil {
		return true, nil
	}
	for _, id := range models.IDList(fields[link.Field]) {
		if id == blob.ID {
			return false, nil
		}
	}
	return true, nil
}
