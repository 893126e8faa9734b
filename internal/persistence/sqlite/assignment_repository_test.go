package sqlite

import (
	"context"
	"testing"

	"github.com/example/site-roster/internal/persistence"
)

func seedAssignment(t *testing.T, storage *Storage, a persistence.Assignment) {
	t.Helper()
	if err := storage.Assignments().CreateAssignment(context.Background(), a); err != nil {
		t.Fatalf("CreateAssignment failed: %v", err)
	}
}

func TestAssignmentRepository_CreateAndListCell(t *testing.T) {
	t.Parallel()

	storage := setupStorageTest(t)
	seedWorker(t, storage, "w1")
	seedSite(t, storage, "s1", "Harbor Tower")
	repo := storage.Assignments()
	ctx := context.Background()
	day := mustDay(t, "2025-12-24")

	seedAssignment(t, storage, persistence.Assignment{
		ID: "a2", WorkerID: "w1", Day: day, SlotOrder: 1, Label: "legacy",
		Meta: map[string]any{"siteName": "Old Depot"},
	})
	seedAssignment(t, storage, persistence.Assignment{
		ID: "a1", WorkerID: "w1", SiteID: strPtr("s1"), Day: day, SlotOrder: 0, Label: "Harbor Tower", Note: strPtr("early"),
	})

	cell, err := repo.ListCell(ctx, "w1", day)
	if err != nil {
		t.Fatalf("ListCell failed: %v", err)
	}
	if len(cell) != 2 || cell[0].ID != "a1" || cell[1].ID != "a2" {
		t.Fatalf("Expected slot order [a1 a2], got %+v", cell)
	}
	if cell[0].SiteName != "Harbor Tower" || cell[0].Note == nil || *cell[0].Note != "early" {
		t.Errorf("Expected joined site name and note, got %+v", cell[0])
	}
	if cell[1].SiteID != nil || cell[1].Meta["siteName"] != "Old Depot" {
		t.Errorf("Expected unlinked entry with meta, got %+v", cell[1])
	}

	err = repo.CreateAssignment(ctx, persistence.Assignment{ID: "a3", WorkerID: "w1", Day: day, SlotOrder: 0})
	if !isErr(err, persistence.ErrDuplicate) {
		t.Errorf("Expected ErrDuplicate for occupied slot, got %v", err)
	}
	err = repo.CreateAssignment(ctx, persistence.Assignment{ID: "a4", WorkerID: "w1", Day: day, SlotOrder: 2})
	if !isErr(err, persistence.ErrConstraintViolation) {
		t.Errorf("Expected ErrConstraintViolation for slot 2, got %v", err)
	}
	err = repo.CreateAssignment(ctx, persistence.Assignment{ID: "a5", WorkerID: "ghost", Day: day, SlotOrder: 0})
	if !isErr(err, persistence.ErrForeignKeyViolation) {
		t.Errorf("Expected ErrForeignKeyViolation, got %v", err)
	}
}

func TestAssignmentRepository_SwapCell(t *testing.T) {
	t.Parallel()

	storage := setupStorageTest(t)
	seedWorker(t, storage, "w1")
	repo := storage.Assignments()
	ctx := context.Background()
	day := mustDay(t, "2025-12-24")

	seedAssignment(t, storage, persistence.Assignment{ID: "a1", WorkerID: "w1", Day: day, SlotOrder: 0, Label: "A"})
	if _, err := repo.SwapCell(ctx, "w1", day); !isErr(err, persistence.ErrCellConflict) {
		t.Fatalf("Expected ErrCellConflict for single entry, got %v", err)
	}

	seedAssignment(t, storage, persistence.Assignment{ID: "a2", WorkerID: "w1", Day: day, SlotOrder: 1, Label: "B"})
	cell, err := repo.SwapCell(ctx, "w1", day)
	if err != nil {
		t.Fatalf("SwapCell failed: %v", err)
	}
	if len(cell) != 2 || cell[0].Label != "B" || cell[1].Label != "A" {
		t.Fatalf("Expected [B A] after swap, got %+v", cell)
	}
}

func TestAssignmentRepository_RetargetAndDelete(t *testing.T) {
	t.Parallel()

	storage := setupStorageTest(t)
	seedWorker(t, storage, "w1")
	seedSite(t, storage, "s1", "First")
	seedSite(t, storage, "s2", "Second")
	repo := storage.Assignments()
	ctx := context.Background()
	day := mustDay(t, "2025-12-24")

	seedAssignment(t, storage, persistence.Assignment{ID: "a1", WorkerID: "w1", SiteID: strPtr("s1"), Day: day, Label: "First"})
	if err := repo.RetargetAssignment(ctx, persistence.Assignment{ID: "a1", SiteID: strPtr("s2"), Label: "Second"}); err != nil {
		t.Fatalf("RetargetAssignment failed: %v", err)
	}
	cell, err := repo.ListCell(ctx, "w1", day)
	if err != nil {
		t.Fatalf("ListCell failed: %v", err)
	}
	if len(cell) != 1 || cell[0].SiteName != "Second" || cell[0].Label != "Second" {
		t.Fatalf("Expected retargeted entry, got %+v", cell)
	}

	if err := repo.DeleteAssignment(ctx, "a1"); err != nil {
		t.Fatalf("DeleteAssignment failed: %v", err)
	}
	if err := repo.DeleteAssignment(ctx, "a1"); !isErr(err, persistence.ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second delete, got %v", err)
	}
}

func TestAssignmentRepository_DeleteMovesSecondSlotUp(t *testing.T) {
	t.Parallel()

	storage := setupStorageTest(t)
	seedWorker(t, storage, "w1")
	repo := storage.Assignments()
	ctx := context.Background()
	day := mustDay(t, "2025-12-24")

	seedAssignment(t, storage, persistence.Assignment{ID: "a1", WorkerID: "w1", Day: day, SlotOrder: 0, Label: "A"})
	seedAssignment(t, storage, persistence.Assignment{ID: "a2", WorkerID: "w1", Day: day, SlotOrder: 1, Label: "B"})

	if err := repo.DeleteAssignment(ctx, "a1"); err != nil {
		t.Fatalf("DeleteAssignment failed: %v", err)
	}
	cell, err := repo.ListCell(ctx, "w1", day)
	if err != nil {
		t.Fatalf("ListCell failed: %v", err)
	}
	if len(cell) != 1 || cell[0].ID != "a2" || cell[0].SlotOrder != 0 {
		t.Fatalf("Expected a2 in slot 0, got %+v", cell)
	}

	// Slot 1 is free again, so the next insert lands behind the survivor.
	seedAssignment(t, storage, persistence.Assignment{ID: "a3", WorkerID: "w1", Day: day, SlotOrder: 1, Label: "C"})
	cell, err = repo.ListCell(ctx, "w1", day)
	if err != nil {
		t.Fatalf("ListCell failed: %v", err)
	}
	if len(cell) != 2 || cell[0].ID != "a2" || cell[1].ID != "a3" {
		t.Fatalf("Expected [a2 a3], got %+v", cell)
	}

	if err := repo.DeleteAssignment(ctx, "a3"); err != nil {
		t.Fatalf("DeleteAssignment failed: %v", err)
	}
	cell, err = repo.ListCell(ctx, "w1", day)
	if err != nil {
		t.Fatalf("ListCell failed: %v", err)
	}
	if len(cell) != 1 || cell[0].ID != "a2" || cell[0].SlotOrder != 0 {
		t.Fatalf("Deleting slot 1 must leave slot 0 alone, got %+v", cell)
	}
}

func TestAssignmentRepository_ReplaceCell(t *testing.T) {
	t.Parallel()

	storage := setupStorageTest(t)
	seedWorker(t, storage, "w1")
	repo := storage.Assignments()
	ctx := context.Background()
	day := mustDay(t, "2025-12-24")

	seedAssignment(t, storage, persistence.Assignment{ID: "a1", WorkerID: "w1", Day: day, SlotOrder: 0, Label: "A"})
	seedAssignment(t, storage, persistence.Assignment{ID: "a2", WorkerID: "w1", Day: day, SlotOrder: 1, Label: "B"})

	replacement := []persistence.Assignment{
		{ID: "a3", WorkerID: "w1", Day: day, SlotOrder: 0, Label: "C"},
	}
	if err := repo.ReplaceCell(ctx, "w1", day, replacement); err != nil {
		t.Fatalf("ReplaceCell failed: %v", err)
	}
	cell, err := repo.ListCell(ctx, "w1", day)
	if err != nil {
		t.Fatalf("ListCell failed: %v", err)
	}
	if len(cell) != 1 || cell[0].ID != "a3" {
		t.Fatalf("Expected only a3, got %+v", cell)
	}

	// A failing insert leaves the previous cell intact.
	bad := []persistence.Assignment{
		{ID: "a4", WorkerID: "w1", Day: day, SlotOrder: 0, Label: "D"},
		{ID: "a5", WorkerID: "w1", Day: day, SlotOrder: 0, Label: "E"},
	}
	if err := repo.ReplaceCell(ctx, "w1", day, bad); !isErr(err, persistence.ErrDuplicate) {
		t.Fatalf("Expected ErrDuplicate, got %v", err)
	}
	cell, err = repo.ListCell(ctx, "w1", day)
	if err != nil {
		t.Fatalf("ListCell failed: %v", err)
	}
	if len(cell) != 1 || cell[0].ID != "a3" {
		t.Fatalf("Expected rollback to keep a3, got %+v", cell)
	}

	if err := repo.ReplaceCell(ctx, "w1", day, nil); err != nil {
		t.Fatalf("ReplaceCell(nil) failed: %v", err)
	}
	if cell, _ := repo.ListCell(ctx, "w1", day); len(cell) != 0 {
		t.Fatalf("Expected empty cell, got %+v", cell)
	}
}

func TestAssignmentRepository_RangeQueries(t *testing.T) {
	t.Parallel()

	storage := setupStorageTest(t)
	seedWorker(t, storage, "w1")
	seedWorker(t, storage, "w2")
	seedSite(t, storage, "s1", "Depot")
	seedSite(t, storage, "s2", "Tower")
	repo := storage.Assignments()
	ctx := context.Background()

	seedAssignment(t, storage, persistence.Assignment{ID: "a1", WorkerID: "w1", SiteID: strPtr("s1"), Day: mustDay(t, "2025-12-01"), SlotOrder: 0})
	seedAssignment(t, storage, persistence.Assignment{ID: "a2", WorkerID: "w1", SiteID: strPtr("s1"), Day: mustDay(t, "2025-12-15"), SlotOrder: 1})
	seedAssignment(t, storage, persistence.Assignment{ID: "a3", WorkerID: "w2", SiteID: strPtr("s1"), Day: mustDay(t, "2025-12-15"), SlotOrder: 0})
	seedAssignment(t, storage, persistence.Assignment{ID: "a4", WorkerID: "w2", SiteID: strPtr("s2"), Day: mustDay(t, "2026-01-02"), SlotOrder: 0})

	from, to := mustDay(t, "2025-12-01"), mustDay(t, "2025-12-31")

	days, err := repo.AssignedDays(ctx, "w1", "s1", from, to)
	if err != nil {
		t.Fatalf("AssignedDays failed: %v", err)
	}
	if len(days) != 2 || days[0].String() != "2025-12-01" || days[1].String() != "2025-12-15" {
		t.Errorf("Unexpected assigned days %v", days)
	}

	counts, err := repo.CountBySite(ctx, from, to)
	if err != nil {
		t.Fatalf("CountBySite failed: %v", err)
	}
	if counts["s1"] != 3 || counts["s2"] != 0 {
		t.Errorf("Unexpected counts %v", counts)
	}

	listed, err := repo.ListAssignments(ctx, persistence.AssignmentFilter{WorkerIDs: []string{"w2"}, From: from})
	if err != nil {
		t.Fatalf("ListAssignments failed: %v", err)
	}
	if len(listed) != 2 || listed[0].ID != "a3" || listed[1].ID != "a4" {
		t.Errorf("Unexpected filtered assignments %+v", listed)
	}

	newest, err := repo.ListAssignments(ctx, persistence.AssignmentFilter{Newest: true, Limit: 1})
	if err != nil {
		t.Fatalf("ListAssignments failed: %v", err)
	}
	if len(newest) != 1 || newest[0].ID != "a4" {
		t.Errorf("Expected newest a4, got %+v", newest)
	}
}
