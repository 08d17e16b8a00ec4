package api

import "fmt"

// APIError is a transport-level error returned by the HTTP API.
type APIError struct {
	Status    int
	Code      string
	ErrorCode int
	Message   string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" && e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Status > 0 {
		return fmt.Sprintf("api error: %d", e.Status)
	}
	return "api error"
}

// EnvelopeFailure is a failed operation reported inside an envelope.
type EnvelopeFailure struct {
	Code    int
	Message string
}

func (e *EnvelopeFailure) Error() string {
	return fmt.Sprintf("error %d: %s", e.Code, e.Message)
}
