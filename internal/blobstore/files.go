package blobstore

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spacemonkeygo/monkit/v3"

	"gcs/internal/apperr"
	"gcs/internal/models"
	"gcs/internal/store"
)

var mon = monkit.Package()

const defaultContentType = "application/octet-stream"

// Files is a blob store that keeps metadata in the FilesCollection of a
// record store and bytes in a content store.
type Files struct {
	records   store.RecordStore
	content   ContentStore
	namespace string
	now       func() time.Time
}

var _ BlobStore = (*Files)(nil)

// NewFiles creates a blob store. Content keys are prefixed by namespace so
// databases sharing a content backend never share objects.
func NewFiles(records store.RecordStore, content ContentStore, namespace string) *Files {
	return &Files{
		records:   records,
		content:   content,
		namespace: strings.Trim(strings.TrimSpace(namespace), "/"),
		now:       time.Now,
	}
}

func (f *Files) key(id string) string {
	if f.namespace == "" {
		return id
	}
	return path.Join(f.namespace, id)
}

// OpenWrite starts streaming a new blob into the content store.
func (f *Files) OpenWrite(ctx context.Context, filename, contentType string) (WriteSink, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return nil, apperr.Blob.New("filename is required")
	}
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(filename))
	}
	if contentType == "" {
		contentType = defaultContentType
	}

	id := models.NewID()
	pr, pw := io.Pipe()
	sink := &fileSink{
		files:       f,
		ctx:         ctx,
		id:          id,
		filename:    filename,
		contentType: contentType,
		pw:          pw,
		done:        make(chan putResult, 1),
	}
	go func() {
		n, err := f.content.Put(ctx, f.key(id), pr)
		_ = pr.CloseWithError(err)
		sink.done <- putResult{n: n, err: err}
	}()
	return sink, nil
}

// OpenRead opens the content of blob id.
func (f *Files) OpenRead(ctx context.Context, id string) (_ *ReadStream, err error) {
	defer mon.Task()(&ctx)(&err)

	blob, err := f.Stat(ctx, id)
	if err != nil {
		return nil, err
	}
	rc, err := f.content.Open(ctx, f.key(blob.ID))
	if err != nil {
		return nil, apperr.Blob.Wrap(err)
	}
	return &ReadStream{ReadCloser: rc, Blob: blob}, nil
}

// Stat returns the metadata of blob id.
func (f *Files) Stat(ctx context.Context, id string) (models.Blob, error) {
	doc, err := f.records.FindOne(ctx, FilesCollection, store.Condition{models.KeyID: id})
	if err != nil {
		return models.Blob{}, apperr.Blob.Wrap(err)
	}
	if doc == nil {
		return models.Blob{}, apperr.Blob.Wrap(apperr.NotFound.New("blob %s", id))
	}
	blob, err := models.BlobFromDocument(doc)
	if err != nil {
		return models.Blob{}, apperr.Blob.Wrap(err)
	}
	return blob, nil
}

// Remove deletes the content of blob id and then its metadata.
func (f *Files) Remove(ctx context.Context, id string) (err error) {
	defer mon.Task()(&ctx)(&err)

	if _, err := f.Stat(ctx, id); err != nil {
		return err
	}
	if err := f.content.Delete(ctx, f.key(id)); err != nil {
		return apperr.Blob.Wrap(fmt.Errorf("delete content of %s: %w", id, err))
	}
	if err := f.records.Remove(ctx, FilesCollection, store.Condition{models.KeyID: id}); err != nil {
		return apperr.Blob.Wrap(err)
	}
	return nil
}

// SetMetadata replaces the linkage metadata of blob id.
func (f *Files) SetMetadata(ctx context.Context, id string, linkage models.Linkage) error {
	if _, err := f.Stat(ctx, id); err != nil {
		return err
	}
	patch := store.Set("metadata", linkage.Document())
	if err := f.records.Update(ctx, FilesCollection, store.Condition{models.KeyID: id}, patch, store.UpdateOptions{}); err != nil {
		return apperr.Blob.Wrap(err)
	}
	return nil
}

// Find returns the metadata of every blob matching cond.
func (f *Files) Find(ctx context.Context, cond store.Condition, sort ...store.SortField) ([]models.Blob, error) {
	docs, err := f.records.Find(ctx, FilesCollection, cond, store.Options{Sort: sort})
	if err != nil {
		return nil, apperr.Blob.Wrap(err)
	}
	out := make([]models.Blob, 0, len(docs))
	for _, doc := range docs {
		blob, err := models.BlobFromDocument(doc)
		if err != nil {
			return nil, apperr.Blob.Wrap(err)
		}
		out = append(out, blob)
	}
	return out, nil
}

type putResult struct {
	n   int64
	err error
}

type fileSink struct {
	files       *Files
	ctx         context.Context
	id          string
	filename    string
	contentType string
	pw          *io.PipeWriter
	done        chan putResult

	once   sync.Once
	result putResult
}

func (s *fileSink) ID() string {
	return s.id
}

func (s *fileSink) Write(p []byte) (int, error) {
	return s.pw.Write(p)
}

func (s *fileSink) wait() putResult {
	s.once.Do(func() {
		s.result = <-s.done
	})
	return s.result
}

// Commit closes the stream and records the blob metadata.
func (s *fileSink) Commit() (models.Blob, error) {
	_ = s.pw.Close()
	res := s.wait()
	if res.err != nil {
		return models.Blob{}, apperr.Blob.Wrap(fmt.Errorf("write %s: %w", s.filename, res.err))
	}

	blob := models.Blob{
		ID:          s.id,
		Filename:    s.filename,
		ContentType: s.contentType,
		Length:      res.n,
		UploadDate:  s.files.now().UTC(),
	}
	if _, err := s.files.records.Insert(s.ctx, FilesCollection, blob.Document()); err != nil {
		_ = s.files.content.Delete(context.WithoutCancel(s.ctx), s.files.key(s.id))
		return models.Blob{}, apperr.Blob.Wrap(err)
	}
	return blob, nil
}

// Abort discards the partial content.
func (s *fileSink) Abort() error {
	_ = s.pw.CloseWithError(errAborted)
	s.wait()
	if err := s.files.content.Delete(context.WithoutCancel(s.ctx), s.files.key(s.id)); err != nil {
		return apperr.Blob.Wrap(err)
	}
	return nil
}

var errAborted = fmt.Errorf("blob write aborted")
