// Package migration applies versioned SQL schema changes to the roster database.
//
// Migrations are read from an fs.FS, normally the embedded migrations
// directory of the sqlite package, and must be named {version}_{description}.sql
// (for example "001_roster_schema.sql"). Applied versions and their checksums
// are tracked in the schema_migrations table; a migration whose file changed
// after it was applied stops the run with ErrChecksumMismatch.
//
// Example usage:
//
//	manager := NewManager(NewFileScanner(), NewSQLiteExecutor(db), migrationsFS, logger)
//	if err := manager.Run(ctx); err != nil {
//		return fmt.Errorf("migrate: %w", err)
//	}
package migration
