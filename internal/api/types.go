package api

import "encoding/json"

// Envelope wraps every service response. Domain failures are reported in
// Errors with HTTP status 200.
type Envelope struct {
	Result bool            `json:"result"`
	Data   json.RawMessage `json:"data,omitempty"`
	Errors *EnvelopeError  `json:"errors,omitempty"`
}

// EnvelopeError is the failure part of an envelope.
type EnvelopeError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse is the transport-level JSON error wrapper used when a
// request never reaches an operation (bad multipart, auth, limits).
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// Record is a stored record as returned by get, list and add.
type Record struct {
	ID       string         `json:"_id"`
	Created  int64          `json:"created,omitempty"`
	Modified int64          `json:"modified,omitempty"`
	Author   string         `json:"author,omitempty"`
	Fields   map[string]any `json:"fields"`
}

// UpdateResponse is the data of a successful update.
type UpdateResponse struct {
	ID string `json:"_id"`
}

// UploadParams are the sidecar fields of an upload.
type UploadParams struct {
	RecordID string
	Field    string
	Position int
	Media    string
	Edit     bool
}

// DeleteFileParams names the blob to delete and its owner.
type DeleteFileParams struct {
	ID       string
	RecordID string
	Field    string
}

// Info is returned by the info endpoint.
type Info struct {
	Service      string   `json:"service"`
	Collection   string   `json:"collection"`
	Environments []string `json:"environments"`
	Multitenant  bool     `json:"multitenant"`
	Attachments  []string `json:"attachments"`
}
