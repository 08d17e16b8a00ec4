package server

// Numeric codes of transport-level errors. Operation failures use the codes
// of the service definition instead.
const (
	// Validation (1xxx)
	ErrCodeInvalidArgument = 1000
	ErrCodeInvalidJSON     = 1001
	ErrCodeRequestTooLarge = 1002
	ErrCodeInvalidForm     = 1003
	ErrCodeMissingRequired = 1009

	// Auth & limits (3xxx)
	ErrCodeUnauthorized      = 3001
	ErrCodeResourceExhausted = 3003

	// Internal/system (4xxx)
	ErrCodeInternal = 4001
)

func defaultErrorCodeByStatus(status int) int {
	switch status {
	case 400, 413:
		return ErrCodeInvalidArgument
	case 401:
		return ErrCodeUnauthorized
	case 429:
		return ErrCodeResourceExhausted
	case 500:
		return ErrCodeInternal
	default:
		return 0
	}
}
