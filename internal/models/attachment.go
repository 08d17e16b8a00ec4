package models

import (
	"fmt"
	"strings"
)

// MediaKind is the declared type of an attachment field and the media of a blob.
type MediaKind string

const (
	MediaAudio    MediaKind = "audio"
	MediaVideo    MediaKind = "video"
	MediaImage    MediaKind = "image"
	MediaDocument MediaKind = "document"
)

var validMediaKinds = map[MediaKind]struct{}{
	MediaAudio:    {},
	MediaVideo:    {},
	MediaImage:    {},
	MediaDocument: {},
}

// IsAttachmentType reports whether a declared form field type holds attachments.
// Matching is case-sensitive.
func IsAttachmentType(declared string) bool {
	_, ok := validMediaKinds[MediaKind(declared)]
	return ok
}

func ParseMediaKind(raw string) (MediaKind, error) {
	value := MediaKind(strings.TrimSpace(raw))
	if value == "" {
		return "", fmt.Errorf("media is required")
	}
	if _, ok := validMediaKinds[value]; !ok {
		return "", fmt.Errorf("invalid media: %s", value)
	}
	return value, nil
}

// UploadAction selects append or replace-by-position semantics for uploads.
type UploadAction string

const (
	UploadActionAdd  UploadAction = "add"
	UploadActionEdit UploadAction = "edit"
)

func ParseUploadAction(raw string) (UploadAction, error) {
	value := UploadAction(strings.TrimSpace(raw))
	switch value {
	case "":
		return UploadActionAdd, nil
	case UploadActionAdd, UploadActionEdit:
		return value, nil
	default:
		return "", fmt.Errorf("invalid action: %s", value)
	}
}

// FormField is one declared field of the collection form.
type FormField struct {
	Name     string `json:"name" yaml:"name"`
	Type     string `json:"type" yaml:"type"`
	Label    string `json:"label,omitempty" yaml:"label,omitempty"`
	Required bool   `json:"required,omitempty" yaml:"required,omitempty"`
}

// IsAttachment reports whether the field holds an ordered list of blob ids.
func (f FormField) IsAttachment() bool {
	return IsAttachmentType(f.Type)
}
