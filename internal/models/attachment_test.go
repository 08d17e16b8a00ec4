package models

import (
	"testing"
	"time"
)

func TestIsAttachmentTypeIsCaseSensitive(t *testing.T) {
	for _, declared := range []string{"audio", "video", "image", "document"} {
		if !IsAttachmentType(declared) {
			t.Fatalf("expected %q to be an attachment type", declared)
		}
	}
	for _, declared := range []string{"Document", "IMAGE", "text", "", "file"} {
		if IsAttachmentType(declared) {
			t.Fatalf("expected %q not to be an attachment type", declared)
		}
	}
}

func TestParseMediaKind(t *testing.T) {
	got, err := ParseMediaKind(" image ")
	if err != nil {
		t.Fatalf("parse media: %v", err)
	}
	if got != MediaImage {
		t.Fatalf("expected %q, got %q", MediaImage, got)
	}
	if _, err := ParseMediaKind("Image"); err == nil {
		t.Fatal("expected case-sensitive rejection")
	}
	if _, err := ParseMediaKind(""); err == nil {
		t.Fatal("expected required error")
	}
}

func TestParseUploadAction(t *testing.T) {
	if got, err := ParseUploadAction(""); err != nil || got != UploadActionAdd {
		t.Fatalf("expected default add, got %q err=%v", got, err)
	}
	if got, err := ParseUploadAction("edit"); err != nil || got != UploadActionEdit {
		t.Fatalf("expected edit, got %q err=%v", got, err)
	}
	if _, err := ParseUploadAction("replace"); err == nil {
		t.Fatal("expected invalid action error")
	}
}

func TestParseID(t *testing.T) {
	id := NewID()
	got, err := ParseID(" " + id + " ")
	if err != nil {
		t.Fatalf("parse id: %v", err)
	}
	if got != id {
		t.Fatalf("expected %q, got %q", id, got)
	}
	for _, raw := range []string{"", "abc", "zzzzzzzzzzzzzzzzzzzzzzzz"} {
		if IsValidID(raw) {
			t.Fatalf("expected %q to be invalid", raw)
		}
	}
}

func TestIDListSkipsNonStrings(t *testing.T) {
	got := IDList([]any{"a", 3, "", "b", nil})
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected ids: %#v", got)
	}
	if IDList("a") != nil {
		t.Fatal("expected nil for scalar value")
	}
}

func TestBlobFromDocument(t *testing.T) {
	uploaded := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	want := Blob{
		ID:         NewID(),
		Filename:   "notes.txt",
		Length:     12,
		UploadDate: uploaded,
		Metadata:   &Linkage{NID: NewID(), Field: "attachments", Position: 2, Media: MediaDocument, Mime: "text/plain"},
	}

	got, err := BlobFromDocument(want.Document())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != want.ID || got.Filename != want.Filename || got.Length != want.Length {
		t.Fatalf("unexpected blob: %#v", got)
	}
	if !got.UploadDate.Equal(uploaded) {
		t.Fatalf("expected upload date %s, got %s", uploaded, got.UploadDate)
	}
	if got.Metadata == nil || *got.Metadata != *want.Metadata {
		t.Fatalf("unexpected linkage: %#v", got.Metadata)
	}
}

func TestDocumentCloneIsDeep(t *testing.T) {
	doc := Document{"fields": map[string]any{"attachments": []any{"a"}}}
	clone := doc.Clone()
	clone.Fields()["attachments"] = append(clone.Fields()["attachments"].([]any), "b")
	if len(IDList(doc.Fields()["attachments"])) != 1 {
		t.Fatal("clone mutation leaked into original")
	}
}
