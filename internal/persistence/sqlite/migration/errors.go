package migration

import (
	"errors"
	"fmt"
)

var (
	// ErrMigrationFailed wraps a statement that failed while applying a migration.
	ErrMigrationFailed = errors.New("migration execution failed")

	// ErrInvalidMigrationFile reports a badly named or empty migration file.
	ErrInvalidMigrationFile = errors.New("invalid migration file format")

	// ErrVersionConflict reports a version gap, or an applied version whose file is gone.
	ErrVersionConflict = errors.New("migration version conflict")

	ErrInvalidVersion = errors.New("invalid migration version")

	ErrDuplicateVersion = errors.New("duplicate migration version")

	// ErrChecksumMismatch reports a migration file edited after it was applied.
	ErrChecksumMismatch = errors.New("migration checksum mismatch")
)

// StepError names the migration and the step of the run that failed.
// Database is set when the failure came from SQLite rather than the files.
type StepError struct {
	Version  string
	File     string
	Step     string
	Database bool
	Err      error
}

func (e *StepError) Error() string {
	subject := "migrations"
	switch {
	case e.Version != "" && e.File != "":
		subject = fmt.Sprintf("migration %s (%s)", e.Version, e.File)
	case e.Version != "":
		subject = "migration " + e.Version
	case e.File != "":
		subject = e.File
	}
	if e.Database {
		return fmt.Sprintf("%s: database %s: %v", subject, e.Step, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", subject, e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

func fileStepError(version, file, step string, err error) error {
	return &StepError{Version: version, File: file, Step: step, Err: err}
}

func dbStepError(version, step string, err error) error {
	return &StepError{Version: version, Step: step, Database: true, Err: err}
}
