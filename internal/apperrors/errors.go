package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrServerNotFound   = errors.New("server not found")
	ErrAlreadyRunning   = errors.New("monitor already running")
	ErrCacheUnavailable = errors.New("cache unavailable")
	ErrStoreUnavailable = errors.New("metric store unavailable")
)

// ValidationError rejects malformed input before any state is mutated.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
