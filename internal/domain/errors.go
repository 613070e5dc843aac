package domain

import "errors"

var (
	// ErrNotFound is returned when a job or curriculum record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInputInvalid marks malformed job payloads. Fatal, never retried.
	ErrInputInvalid = errors.New("invalid job input")

	// ErrBackendUnavailable marks generative, image or bibliographic service errors.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrSchemaInvalid marks well-formed JSON that does not match the result schema.
	ErrSchemaInvalid = errors.New("schema invalid")

	// ErrDepthInsufficient marks a result that failed the depth policy.
	ErrDepthInsufficient = errors.New("depth insufficient")

	// ErrStorageFailure marks failed blob or key-value writes.
	ErrStorageFailure = errors.New("storage failure")
)

// ValidationError describes the first invalid field of a job input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Unwrap lets errors.Is(err, ErrInputInvalid) match.
func (e *ValidationError) Unwrap() error {
	return ErrInputInvalid
}
