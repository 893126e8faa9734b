package migration

import (
	"context"
	"io/fs"
	"time"
)

// Migration is one versioned schema change read from a {version}_{description}.sql file.
type Migration struct {
	Version     string
	Description string
	SQL         string
	// FilePath is relative to the source filesystem.
	FilePath string
	// Checksum is the hex SHA-256 of the file content.
	Checksum string
}

// AppliedVersion is one row of schema_migrations.
type AppliedVersion struct {
	Version       string
	AppliedAt     time.Time
	ExecutionTime time.Duration
	Checksum      string
}

// Status compares the database with the available migrations.
type Status struct {
	CurrentVersion string
	Applied        []AppliedVersion
	Pending        []Migration
}

// Scanner reads migrations from a filesystem.
type Scanner interface {
	// ScanMigrations returns the migrations at the root of fsys ordered by version.
	ScanMigrations(fsys fs.FS) ([]Migration, error)
	ValidateFileName(filename string) error
}

// Executor applies migrations and tracks them in schema_migrations.
type Executor interface {
	InitializeVersionTable(ctx context.Context) error
	// ApplyMigration runs the statements and records the version in one transaction.
	ApplyMigration(ctx context.Context, migration Migration) (time.Duration, error)
	AppliedVersions(ctx context.Context) ([]AppliedVersion, error)
}
