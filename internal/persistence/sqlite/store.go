// Package sqlite persists workers, sites and assignment slots in SQLite.
package sqlite

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/example/site-roster/internal/persistence/sqlite/migration"
	"github.com/example/site-roster/internal/persistence/sqlite/migrations"
)

// Storage owns the connection pool and hands out repositories bound to it.
type Storage struct {
	pool *ConnectionPool
}

// Open opens the database described by config. Call Migrate before use.
func Open(config migration.SQLiteConfig) (*Storage, error) {
	pool, err := NewConnectionPool(config)
	if err != nil {
		return nil, err
	}
	return &Storage{pool: pool}, nil
}

// Migrate applies the embedded schema migrations.
func (s *Storage) Migrate(ctx context.Context, logger *slog.Logger) error {
	manager := migration.NewManager(
		migration.NewFileScanner(),
		migration.NewSQLiteExecutor(s.pool.DB()),
		migrations.FS,
		logger,
	)
	if err := manager.Run(ctx); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Ping checks that the database answers.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	if s == nil {
		return nil
	}
	return s.pool.Close()
}

// Workers returns the worker repository.
func (s *Storage) Workers() *WorkerRepository {
	return NewWorkerRepository(s.pool)
}

// Sites returns the site repository.
func (s *Storage) Sites() *SiteRepository {
	return NewSiteRepository(s.pool)
}

// Assignments returns the assignment repository.
func (s *Storage) Assignments() *AssignmentRepository {
	return NewAssignmentRepository(s.pool)
}
