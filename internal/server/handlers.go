package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"gcs/internal/api"
	"gcs/internal/mutation"
	"gcs/internal/pipeline"
)

const (
	defaultJSONMaxBody = 1 << 20 // 1 MiB
	envelopeHeader     = "X-Gcs-Envelope"
)

func (s *Server) writeErrorReq(w http.ResponseWriter, r *http.Request, status int, err error) {
	if err == nil {
		err = errors.New(http.StatusText(status))
	}

	code := errorCode(status, err)
	numericCode := errorNumericCode(status, err)
	message := err.Error()

	fields := []any{"status", status, "code", code, "error_code", numericCode, "error", err}
	if r != nil {
		fields = append(fields, "method", r.Method, "path", r.URL.Path, "remote_addr", r.RemoteAddr)
	}

	switch {
	case status >= 500:
		s.log().Error("request error", fields...)
		message = "internal error"
	case status >= 400 && shouldWarnClientError(status):
		s.log().Warn("request rejected", fields...)
	case status >= 400:
		s.log().Debug("request rejected", fields...)
	}

	s.writeJSON(w, status, api.ErrorResponse{Error: message, Code: code, ErrorCode: numericCode})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("write json response", "status", status, "error", err)
	}
}

// writeEnvelope reports a successful operation. Data is always present,
// null included.
func (s *Server) writeEnvelope(w http.ResponseWriter, data any) {
	w.Header().Set(envelopeHeader, "true")
	s.writeJSON(w, http.StatusOK, map[string]any{"result": true, "data": data})
}

func (s *Server) writeFailure(w http.ResponseWriter, code int, message string) {
	w.Header().Set(envelopeHeader, "true")
	s.writeJSON(w, http.StatusOK, api.Envelope{
		Result: false,
		Errors: &api.EnvelopeError{Code: code, Message: message},
	})
}

// writeRunError writes operation failures as envelopes and anything else as
// an internal transport error.
func (s *Server) writeRunError(w http.ResponseWriter, r *http.Request, err error) {
	if failure, ok := pipeline.AsFailure(err); ok {
		s.writeFailure(w, failure.Code, failure.Message)
		return
	}
	s.writeErrorReq(w, r, http.StatusInternalServerError, internalError(err))
}

type apiError struct {
	status  int
	code    string
	errCode int
	err     error
}

func (e apiError) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e apiError) Unwrap() error {
	return e.err
}

func makeAPIError(status int, code string, errCode int, err error) error {
	if err == nil {
		err = errors.New(http.StatusText(status))
	}

	var existing apiError
	if errors.As(err, &existing) {
		if existing.status != 0 {
			return existing
		}
	}

	return apiError{status: status, code: code, errCode: errCode, err: err}
}

func badRequestCode(err error, code int) error {
	return makeAPIError(http.StatusBadRequest, "invalid_argument", code, err)
}

func internalError(err error) error {
	return makeAPIError(http.StatusInternalServerError, "internal", ErrCodeInternal, err)
}

func errorCode(status int, err error) string {
	var apiErr apiError
	if errors.As(err, &apiErr) && apiErr.code != "" {
		return apiErr.code
	}
	switch status {
	case http.StatusBadRequest:
		return "invalid_argument"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusRequestEntityTooLarge:
		return "too_large"
	case http.StatusTooManyRequests:
		return "resource_exhausted"
	case http.StatusInternalServerError:
		return "internal"
	default:
		return ""
	}
}

func errorNumericCode(status int, err error) int {
	var apiErr apiError
	if errors.As(err, &apiErr) && apiErr.errCode > 0 {
		return apiErr.errCode
	}
	return defaultErrorCodeByStatus(status)
}

func shouldWarnClientError(status int) bool {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
		return true
	default:
		return false
	}
}

func envParam(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get("env"))
}

// readInput merges the query string with a JSON or form body. Query values
// win over body values of the same name.
func readInput(w http.ResponseWriter, r *http.Request) (mutation.Input, error) {
	input := mutation.Input{}

	if r.Body != nil && r.ContentLength != 0 && r.Method != http.MethodGet {
		mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		r.Body = http.MaxBytesReader(w, r.Body, defaultJSONMaxBody)
		switch mediaType {
		case "application/json", "":
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
				return nil, classifyDecodeJSONError(err)
			}
			for k, v := range body {
				input[k] = v
			}
		case "application/x-www-form-urlencoded":
			if err := r.ParseForm(); err != nil {
				return nil, classifyDecodeJSONError(err)
			}
			for k, values := range r.PostForm {
				input[k] = formValue(values)
			}
		default:
			return nil, badRequestCode(fmt.Errorf("unsupported content type %q", mediaType), ErrCodeInvalidArgument)
		}
	}

	for k, values := range r.URL.Query() {
		if k == "env" {
			continue
		}
		input[k] = formValue(values)
	}
	return input, nil
}

func formValue(values []string) any {
	if len(values) == 1 {
		return values[0]
	}
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func classifyDecodeJSONError(err error) error {
	if err == nil {
		return nil
	}

	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return badRequestCode(fmt.Errorf("request body too large"), ErrCodeRequestTooLarge)
	}

	if errors.Is(err, io.ErrUnexpectedEOF) {
		return badRequestCode(fmt.Errorf("invalid JSON payload"), ErrCodeInvalidJSON)
	}

	return badRequestCode(err, ErrCodeInvalidJSON)
}
