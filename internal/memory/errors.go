package memory

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by a Store or by the service layer wraps
// exactly one of these (WriteFailed additionally wraps the kind that caused it),
// so callers classify with errors.Is.
var (
	ErrValidation    = errors.New("validation error")
	ErrConflict      = errors.New("conflict")
	ErrNotFound      = errors.New("not found")
	ErrStorage       = errors.New("storage error")
	ErrSummarization = errors.New("summarization failed")
	ErrEmbedding     = errors.New("embedding failed")
	ErrWriteFailed   = errors.New("write failed")
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}

func notFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrNotFound}, args...)...)
}

func conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrConflict}, args...)...)
}

// storageErr wraps an engine failure that has no more specific kind.
func storageErr(op string, err error) error {
	return fmt.Errorf("%w: failed to %s: %w", ErrStorage, op, err)
}

// Kind returns a short, stable name for the error kind carried by err.
// Transport adapters use it to pick status codes and error payloads.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrWriteFailed):
		return "write_failed"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrSummarization):
		return "summarization"
	case errors.Is(err, ErrEmbedding):
		return "embedding"
	case errors.Is(err, ErrStorage):
		return "storage"
	default:
		return "internal"
	}
}
