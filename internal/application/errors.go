package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/site-roster/internal/persistence"
)

var (
	// ErrUnauthorized is returned when a ledger mutation lacks a valid admin token.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested worker or site does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrConflict is returned when a cell changed underneath a multi-step write.
	ErrConflict = errors.New("application: cell changed concurrently")
	// ErrStorageUnavailable is returned when a storage call failed or timed out.
	// Callers may retry.
	ErrStorageUnavailable = errors.New("application: storage unavailable")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

func fieldError(field, message string) *ValidationError {
	vErr := &ValidationError{}
	vErr.add(field, message)
	return vErr
}

// mapStoreError translates storage failures into the application taxonomy.
// Missing records become ErrNotFound; everything else the store could not do
// is reported as ErrStorageUnavailable.
func mapStoreError(err error) error {
	if err == nil {
		return nil
	}
	var vErr *ValidationError
	switch {
	case errors.As(err, &vErr),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrConflict),
		errors.Is(err, ErrStorageUnavailable),
		errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, persistence.ErrNotFound), errors.Is(err, persistence.ErrForeignKeyViolation):
		return ErrNotFound
	case errors.Is(err, persistence.ErrCellConflict), errors.Is(err, persistence.ErrDuplicate):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}
