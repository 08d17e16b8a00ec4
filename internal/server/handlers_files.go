package server

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"gcs/internal/attachments"
	"gcs/internal/models"
	"gcs/internal/pipeline"
)

const uploadFilePart = "file"

func (s *Server) fileRequest(r *http.Request) pipeline.FileRequest {
	return pipeline.FileRequest{Env: envParam(r), Principal: principalFromContext(r.Context())}
}

// handleUpload streams the file part of a multipart body into the blob
// store. Sidecar fields must precede the file part.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if !s.acquireLimiter(s.uploadLimiter, w, r, "upload") {
		return
	}
	defer s.releaseLimiter(s.uploadLimiter)

	r.Body = http.MaxBytesReader(w, r.Body, s.uploadMaxBytes)
	reader, err := r.MultipartReader()
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("multipart body is required: %w", err), ErrCodeInvalidForm))
		return
	}

	code := s.engine.Definition().Files.UploadCode
	fields := map[string]string{}
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			s.writeFailure(w, code, "file is required")
			return
		}
		if err != nil {
			s.writeErrorReq(w, r, http.StatusBadRequest, classifyMultipartError(err))
			return
		}

		if part.FileName() == "" {
			value, err := io.ReadAll(io.LimitReader(part, 4<<10))
			part.Close()
			if err != nil {
				s.writeErrorReq(w, r, http.StatusBadRequest, classifyMultipartError(err))
				return
			}
			fields[part.FormName()] = strings.TrimSpace(string(value))
			continue
		}
		if part.FormName() != uploadFilePart {
			part.Close()
			continue
		}

		req, err := uploadRequest(fields, part.FileName(), part.Header.Get("Content-Type"))
		if err != nil {
			part.Close()
			s.writeFailure(w, code, err.Error())
			return
		}
		blob, err := s.engine.Upload(r.Context(), s.fileRequest(r), req, part)
		part.Close()
		if err != nil {
			s.writeRunError(w, r, err)
			return
		}
		s.writeEnvelope(w, blob)
		return
	}
}

func uploadRequest(fields map[string]string, filename, contentType string) (attachments.UploadRequest, error) {
	req := attachments.UploadRequest{
		RecordID: fields["nid"],
		Field:    fields["field"],
		Media:    models.MediaKind(fields["media"]),
		Filename: filename,
	}
	if raw := fields["position"]; raw != "" {
		position, err := strconv.Atoi(raw)
		if err != nil {
			return req, fmt.Errorf("position must be an integer")
		}
		req.Position = position
	}
	action, err := models.ParseUploadAction(fields["action"])
	if err != nil {
		return req, err
	}
	req.Action = action
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil && mediaType != "application/octet-stream" {
		req.ContentType = mediaType
	}
	return req, nil
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	stream, err := s.engine.Download(r.Context(), s.fileRequest(r), r.URL.Query().Get("id"))
	if err != nil {
		s.writeRunError(w, r, err)
		return
	}
	defer stream.Close()

	blob := stream.Blob
	contentType := blob.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(blob.Length, 10))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": blob.Filename}))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, stream); err != nil {
		s.log().Warn("download interrupted", "blob", blob.ID, "error", err)
	}
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	err := s.engine.DeleteFile(r.Context(), s.fileRequest(r), attachments.RemoveRequest{
		BlobID:   query.Get("id"),
		RecordID: firstNonEmpty(query.Get("recordId"), query.Get("nid")),
		Field:    firstNonEmpty(query.Get("fieldName"), query.Get("field")),
	})
	if err != nil {
		s.writeRunError(w, r, err)
		return
	}
	s.writeEnvelope(w, true)
}

func classifyMultipartError(err error) error {
	if err == nil {
		return nil
	}
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return makeAPIError(http.StatusRequestEntityTooLarge, "too_large", ErrCodeRequestTooLarge, fmt.Errorf("request body too large"))
	}
	return badRequestCode(err, ErrCodeInvalidForm)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}
