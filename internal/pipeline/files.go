package pipeline

import (
	"context"
	"io"
	"sync"

	"gcs/internal/apperr"
	"gcs/internal/attachments"
	"gcs/internal/blobstore"
	"gcs/internal/models"
	"gcs/internal/pool"
	"gcs/internal/registry"
)

// FileRequest identifies the caller of a file operation.
type FileRequest struct {
	Env       string
	Principal *models.Principal
}

// Upload streams content into the blob store and links it to its record.
// Failures carry the upload code of the definition.
func (e *Engine) Upload(ctx context.Context, req FileRequest, upload attachments.UploadRequest, content io.Reader) (_ models.Blob, err error) {
	defer mon.Task()(&ctx)(&err)

	code := e.def.Files.UploadCode
	lease, err := e.acquire(ctx, registry.NormalizeCode(req.Env), req.Principal)
	if err != nil {
		return models.Blob{}, e.fileFailure(code, "upload", err)
	}
	defer e.releaseLease(lease)

	blob, err := e.attachments.Upload(ctx, lease.Handle.Records, lease.Handle.Blobs, upload, content)
	if err != nil {
		return models.Blob{}, e.fileFailure(code, "upload", err)
	}
	return blob, nil
}

// Download opens blob id for reading. The returned stream holds the handle
// until it is closed. Failures carry the download code of the definition.
func (e *Engine) Download(ctx context.Context, req FileRequest, id string) (_ *blobstore.ReadStream, err error) {
	defer mon.Task()(&ctx)(&err)

	code := e.def.Files.DownloadCode
	blobID, err := models.ParseID(id)
	if err != nil {
		return nil, e.fileFailure(code, "download", apperr.BadRequest.Wrap(err))
	}
	lease, err := e.acquire(ctx, registry.NormalizeCode(req.Env), req.Principal)
	if err != nil {
		return nil, e.fileFailure(code, "download", err)
	}
	stream, err := lease.Handle.Blobs.OpenRead(ctx, blobID)
	if err != nil {
		e.releaseLease(lease)
		return nil, e.fileFailure(code, "download", err)
	}
	return &blobstore.ReadStream{
		ReadCloser: &leasedReader{ReadCloser: stream.ReadCloser, release: func() { e.releaseLease(lease) }},
		Blob:       stream.Blob,
	}, nil
}

// DeleteFile removes one blob and pulls it from its record field. Failures
// carry the delete code of the definition.
func (e *Engine) DeleteFile(ctx context.Context, req FileRequest, remove attachments.RemoveRequest) (err error) {
	defer mon.Task()(&ctx)(&err)

	code := e.def.Files.DeleteCode
	lease, err := e.acquire(ctx, registry.NormalizeCode(req.Env), req.Principal)
	if err != nil {
		return e.fileFailure(code, "deleteFile", err)
	}
	defer e.releaseLease(lease)

	if err := e.attachments.RemoveFile(ctx, lease.Handle.Records, lease.Handle.Blobs, remove); err != nil {
		return e.fileFailure(code, "deleteFile", err)
	}
	return nil
}

// Sweep runs one orphan reconciliation pass on the database of env and tenant.
func (e *Engine) Sweep(ctx context.Context, req FileRequest, opts attachments.SweepOptions) (_ attachments.SweepResult, err error) {
	defer mon.Task()(&ctx)(&err)

	lease, err := e.acquire(ctx, registry.NormalizeCode(req.Env), req.Principal)
	if err != nil {
		return attachments.SweepResult{}, err
	}
	defer e.releaseLease(lease)
	return e.attachments.Sweep(ctx, lease.Handle.Records, lease.Handle.Blobs, opts)
}

func (e *Engine) fileFailure(code int, operation string, err error) *Failure {
	msg := apperr.Message(err)
	if msg == "" {
		msg = e.def.Message(code)
	}
	e.logger.Error("file operation failed", "operation", operation, "code", code, "kind", apperr.Kind(err), "error", err)
	return &Failure{Code: code, Message: msg, Err: err}
}

func (e *Engine) releaseLease(lease *pool.Lease) {
	if err := lease.Release(); err != nil {
		e.logger.Warn("release handle", "error", err)
	}
}

type leasedReader struct {
	io.ReadCloser
	once    sync.Once
	release func()
}

func (r *leasedReader) Close() error {
	err := r.ReadCloser.Close()
	r.once.Do(r.release)
	return err
}
