package models

import (
	"errors"
	"fmt"
)

var (
	// ErrRideNotFound is returned when a referenced ride does not exist.
	ErrRideNotFound = errors.New("ride not found")
	// ErrUserNotFound is returned when a referenced identity does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrVersionConflict is returned by a conditional update whose
	// predicate no longer holds, i.e. a lost race. Callers may re-read
	// and retry.
	ErrVersionConflict = errors.New("ride version conflict")
)

// ValidationError reports malformed or missing caller input. It is
// raised before any storage call and is not retryable as-is.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validationf builds a ValidationError for the given field.
func Validationf(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// StorageError wraps a transient infrastructure failure. It is never
// converted into a business rejection; callers may retry with backoff.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Storagef wraps err as a StorageError for operation op.
func Storagef(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
