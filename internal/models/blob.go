package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Blob is the stored metadata of one binary object.
type Blob struct {
	ID          string    `json:"_id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"contentType,omitempty"`
	Length      int64     `json:"length"`
	UploadDate  time.Time `json:"uploadDate"`
	Metadata    *Linkage  `json:"metadata,omitempty"`
}

// Linkage binds a blob to one position of one attachment field of its owning record.
type Linkage struct {
	NID      string    `json:"nid"`
	Field    string    `json:"field"`
	Position int       `json:"position"`
	Media    MediaKind `json:"media"`
	Mime     string    `json:"mime,omitempty"`
}

// Document returns the linkage in stored form.
func (l Linkage) Document() Document {
	doc := Document{
		"nid":      l.NID,
		"field":    l.Field,
		"position": l.Position,
		"media":    string(l.Media),
	}
	if l.Mime != "" {
		doc["mime"] = l.Mime
	}
	return doc
}

// Document returns the blob metadata in stored form.
func (b Blob) Document() Document {
	doc := Document{
		KeyID:        b.ID,
		"filename":   b.Filename,
		"length":     b.Length,
		"uploadDate": b.UploadDate.UTC().Format(time.RFC3339Nano),
	}
	if b.ContentType != "" {
		doc["contentType"] = b.ContentType
	}
	if b.Metadata != nil {
		doc["metadata"] = b.Metadata.Document()
	}
	return doc
}

// BlobFromDocument decodes stored blob metadata.
func BlobFromDocument(doc Document) (Blob, error) {
	var blob Blob
	payload, err := json.Marshal(doc)
	if err != nil {
		return blob, fmt.Errorf("encode blob metadata: %w", err)
	}
	if err := json.Unmarshal(payload, &blob); err != nil {
		return blob, fmt.Errorf("decode blob metadata: %w", err)
	}
	return blob, nil
}
