package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/site-roster/internal/persistence"
	"github.com/example/site-roster/internal/persistence/sqlite"
	"github.com/example/site-roster/internal/persistence/sqlite/migration"
)

// SQLiteHarness is a migrated roster database in the test's temp directory,
// closed automatically when the test ends.
type SQLiteHarness struct {
	Storage     *sqlite.Storage
	Workers     persistence.WorkerRepository
	Sites       persistence.SiteRepository
	Assignments persistence.AssignmentRepository
}

// NewSQLiteHarness opens and migrates a fresh database file.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	storage, err := sqlite.Open(migration.TempFileTestSQLiteConfig(filepath.Join(tb.TempDir(), "roster.db")))
	if err != nil {
		tb.Fatalf("open roster storage: %v", err)
	}
	tb.Cleanup(func() { _ = storage.Close() })

	if err := storage.Migrate(context.Background(), nil); err != nil {
		tb.Fatalf("migrate roster storage: %v", err)
	}

	return &SQLiteHarness{
		Storage:     storage,
		Workers:     storage.Workers(),
		Sites:       storage.Sites(),
		Assignments: storage.Assignments(),
	}
}

// SeedWorker stores a worker fixture and fails the test on error.
func (h *SQLiteHarness) SeedWorker(tb testing.TB, fixture WorkerFixture) {
	tb.Helper()
	if err := h.Workers.CreateWorker(context.Background(), fixture.Persistence()); err != nil {
		tb.Fatalf("seed worker %s: %v", fixture.ID, err)
	}
}

// SeedSite stores a site fixture and fails the test on error.
func (h *SQLiteHarness) SeedSite(tb testing.TB, fixture SiteFixture) {
	tb.Helper()
	if err := h.Sites.CreateSite(context.Background(), fixture.Persistence()); err != nil {
		tb.Fatalf("seed site %s: %v", fixture.ID, err)
	}
}

// SeedAssignment stores an assignment fixture; its worker and site must exist.
func (h *SQLiteHarness) SeedAssignment(tb testing.TB, fixture AssignmentFixture) {
	tb.Helper()
	if err := h.Assignments.CreateAssignment(context.Background(), fixture.Persistence()); err != nil {
		tb.Fatalf("seed assignment %s on %s: %v", fixture.ID, fixture.Day, err)
	}
}
