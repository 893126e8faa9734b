package application

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/example/site-roster/internal/persistence"
)

func TestValidationError_Error(t *testing.T) {
	t.Parallel()

	var err *ValidationError
	if err.Error() != "" {
		t.Fatalf("expected empty string for nil error, got %q", err.Error())
	}

	withFields := &ValidationError{FieldErrors: map[string]string{"field": "invalid"}}
	if got := withFields.Error(); got != "validation failed" {
		t.Fatalf("expected consistent message for populated error, got %q", got)
	}
}

func TestValidationError_AddAndMerge(t *testing.T) {
	t.Parallel()

	base := &ValidationError{}
	if base.HasErrors() {
		t.Fatalf("expected HasErrors to report false for empty error")
	}
	base.add("first", "value")
	if got := base.FieldErrors["first"]; got != "value" {
		t.Fatalf("expected add to populate map, got %q", got)
	}

	base.merge(fieldError("second", "another"))
	if got := base.FieldErrors["second"]; got != "another" {
		t.Fatalf("expected merge to copy field, got %q", got)
	}

	base.merge(nil)
	if len(base.FieldErrors) != 2 || !base.HasErrors() {
		t.Fatalf("expected merge with nil to leave fields unchanged")
	}
}

func TestMapStoreError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   error
		want error
	}{
		{name: "not found", in: persistence.ErrNotFound, want: ErrNotFound},
		{name: "missing reference", in: fmt.Errorf("insert: %w", persistence.ErrForeignKeyViolation), want: ErrNotFound},
		{name: "slot taken", in: persistence.ErrDuplicate, want: ErrConflict},
		{name: "cell conflict", in: persistence.ErrCellConflict, want: ErrConflict},
		{name: "busy", in: persistence.ErrBusy, want: ErrStorageUnavailable},
		{name: "deadline", in: context.DeadlineExceeded, want: ErrStorageUnavailable},
		{name: "unknown", in: errors.New("disk I/O error"), want: ErrStorageUnavailable},
		{name: "canceled", in: context.Canceled, want: context.Canceled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := mapStoreError(tt.in); !errors.Is(got, tt.want) {
				t.Fatalf("mapStoreError(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}

	if mapStoreError(nil) != nil {
		t.Fatal("nil must stay nil")
	}
	vErr := fieldError("day", "bad")
	if got := mapStoreError(vErr); got != vErr {
		t.Fatalf("validation errors must pass through, got %v", got)
	}
}
