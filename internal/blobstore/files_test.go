package blobstore

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"gcs/internal/apperr"
	"gcs/internal/models"
	"gcs/internal/store"
)

func testFiles(t *testing.T, namespace string) (*Files, *store.Store, *LocalFS) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "files.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	content, err := NewLocalFS(t.TempDir())
	if err != nil {
		t.Fatalf("new local fs: %v", err)
	}
	return NewFiles(st, content, namespace), st, content
}

func writeBlob(t *testing.T, files *Files, filename, body string) models.Blob {
	t.Helper()
	sink, err := files.OpenWrite(context.Background(), filename, "")
	if err != nil {
		t.Fatalf("open write: %v", err)
	}
	if _, err := io.Copy(sink, strings.NewReader(body)); err != nil {
		t.Fatalf("write: %v", err)
	}
	blob, err := sink.Commit()
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if blob.ID != sink.ID() {
		t.Fatalf("expected committed id %q, got %q", sink.ID(), blob.ID)
	}
	return blob
}

func TestFilesWriteReadRemove(t *testing.T) {
	files, _, _ := testFiles(t, "DEV_pages")
	ctx := context.Background()

	blob := writeBlob(t, files, "notes.txt", "good morning everyone...")
	if blob.Length != int64(len("good morning everyone...")) {
		t.Fatalf("unexpected length %d", blob.Length)
	}
	if !strings.HasPrefix(blob.ContentType, "text/plain") {
		t.Fatalf("expected text/plain content type, got %q", blob.ContentType)
	}

	stream, err := files.OpenRead(ctx, blob.ID)
	if err != nil {
		t.Fatalf("open read: %v", err)
	}
	data, err := io.ReadAll(stream)
	stream.Close()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "good morning everyone..." {
		t.Fatalf("unexpected content %q", string(data))
	}
	if stream.Blob.Filename != "notes.txt" {
		t.Fatalf("unexpected filename %q", stream.Blob.Filename)
	}

	if err := files.Remove(ctx, blob.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := files.OpenRead(ctx, blob.ID); !apperr.IsNotFound(err) {
		t.Fatalf("expected not found after remove, got %v", err)
	}
	if err := files.Remove(ctx, blob.ID); !apperr.IsNotFound(err) {
		t.Fatalf("expected not found on second remove, got %v", err)
	}
}

func TestFilesUnknownIDIsNotFound(t *testing.T) {
	files, _, _ := testFiles(t, "")
	id := models.NewID()

	if _, err := files.OpenRead(context.Background(), id); !apperr.IsNotFound(err) || !apperr.Blob.Has(err) {
		t.Fatalf("expected blob not found, got %v", err)
	}
	if err := files.SetMetadata(context.Background(), id, models.Linkage{NID: "x"}); !apperr.IsNotFound(err) {
		t.Fatalf("expected not found on set metadata, got %v", err)
	}
}

func TestFilesMetadataAndFind(t *testing.T) {
	files, _, _ := testFiles(t, "")
	ctx := context.Background()
	owner := models.NewID()

	var ids []string
	for _, pos := range []int{2, 0, 1} {
		blob := writeBlob(t, files, "page.pdf", "pdf")
		linkage := models.Linkage{NID: owner, Field: "attachments", Position: pos, Media: models.MediaDocument, Mime: "application/pdf"}
		if err := files.SetMetadata(ctx, blob.ID, linkage); err != nil {
			t.Fatalf("set metadata: %v", err)
		}
		ids = append(ids, blob.ID)
	}
	writeBlob(t, files, "unlinked.bin", "x")

	found, err := files.Find(ctx, store.Condition{"metadata.nid": owner}, store.SortField{Field: "metadata.position"})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(found) != 3 {
		t.Fatalf("expected 3 linked blobs, got %d", len(found))
	}
	wantOrder := []string{ids[1], ids[2], ids[0]}
	for i, blob := range found {
		if blob.ID != wantOrder[i] {
			t.Fatalf("position %d: expected %s, got %s", i, wantOrder[i], blob.ID)
		}
		if blob.Metadata == nil || blob.Metadata.Position != i || blob.Metadata.Field != "attachments" {
			t.Fatalf("unexpected linkage at %d: %#v", i, blob.Metadata)
		}
	}
}

func TestFilesAbortDiscardsContent(t *testing.T) {
	files, _, content := testFiles(t, "ns")
	ctx := context.Background()

	sink, err := files.OpenWrite(ctx, "partial.bin", "application/octet-stream")
	if err != nil {
		t.Fatalf("open write: %v", err)
	}
	if _, err := sink.Write([]byte("partial")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := sink.Abort(); err != nil {
		t.Fatalf("abort: %v", err)
	}

	if _, err := files.Stat(ctx, sink.ID()); !apperr.IsNotFound(err) {
		t.Fatalf("expected no metadata after abort, got %v", err)
	}
	if _, err := content.Open(ctx, "ns/"+sink.ID()); !apperr.IsNotFound(err) {
		t.Fatalf("expected no content after abort, got %v", err)
	}
}

type failingContent struct {
	ContentStore
}

func (failingContent) Put(ctx context.Context, key string, r io.Reader) (int64, error) {
	return 0, errors.New("disk full")
}

func TestFilesCommitSurfacesContentFailure(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "files.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()
	files := NewFiles(st, failingContent{}, "")

	sink, err := files.OpenWrite(context.Background(), "a.txt", "")
	if err != nil {
		t.Fatalf("open write: %v", err)
	}
	_, _ = sink.Write([]byte("data"))
	_, err = sink.Commit()
	if err == nil || !apperr.Blob.Has(err) {
		t.Fatalf("expected blob error, got %v", err)
	}
	if !strings.Contains(apperr.Message(err), "disk full") {
		t.Fatalf("expected underlying message, got %q", apperr.Message(err))
	}
}
