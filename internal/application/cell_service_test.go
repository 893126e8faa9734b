package application_test

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/example/site-roster/internal/application"
	"github.com/example/site-roster/internal/calendar"
	"github.com/example/site-roster/internal/history"
	"github.com/example/site-roster/internal/testfixtures"
)

var christmasEve = testfixtures.MustDay("2025-12-24")

func (e *rosterEnv) apply(t *testing.T, action application.CellAction, siteID string) application.CellResult {
	t.Helper()
	result, err := e.roster.Cells.Apply(context.Background(), application.CellRequest{
		WorkerID: e.worker.ID,
		Day:      christmasEve,
		Action:   action,
		SiteID:   siteID,
	})
	if err != nil {
		t.Fatalf("Apply(%s, %s): %v", action, siteID, err)
	}
	return result
}

func TestToggleIsSelfInverse(t *testing.T) {
	t.Parallel()

	env := newRosterEnv(t)
	site := env.addSite(testfixtures.WithSiteName("Harbor Tower"))

	on := env.apply(t, application.ActionToggle, site.ID)
	if !on.Changed || on.EntryID == "" || on.Toggled != "" {
		t.Fatalf("unexpected toggle-on result %+v", on)
	}
	assertSlots(t, on.Before)
	assertSlots(t, on.After, "Harbor Tower")

	off := env.apply(t, application.ActionToggle, site.ID)
	if !off.Changed || off.Toggled != application.ToggledOff || off.EntryID != on.EntryID {
		t.Fatalf("unexpected toggle-off result %+v", off)
	}
	assertSlots(t, off.After)
	if n := len(env.store.Cell(env.worker.ID, christmasEve)); n != 0 {
		t.Fatalf("cell should be empty, holds %d", n)
	}
}

func TestToggleOnFullCellOverwritesSecondSlot(t *testing.T) {
	t.Parallel()

	env := newRosterEnv(t)
	a := env.addSite(testfixtures.WithSiteName("A"))
	b := env.addSite(testfixtures.WithSiteName("B"))
	c := env.addSite(testfixtures.WithSiteName("C"))

	env.apply(t, application.ActionAdd, a.ID)
	second := env.apply(t, application.ActionAdd, b.ID)

	result := env.apply(t, application.ActionToggle, c.ID)
	if !result.Changed || result.Replaced != application.ReplacedSlot2 || result.EntryID != second.EntryID {
		t.Fatalf("unexpected result %+v", result)
	}
	assertSlots(t, result.Before, "A", "B")
	assertSlots(t, result.After, "A", "C")
}

func TestAddRespectsCapacityAndDuplicates(t *testing.T) {
	t.Parallel()

	env := newRosterEnv(t)
	a := env.addSite(testfixtures.WithSiteName("A"))
	b := env.addSite(testfixtures.WithSiteName("B"))
	c := env.addSite(testfixtures.WithSiteName("C"))

	env.apply(t, application.ActionAdd, a.ID)
	if dup := env.apply(t, application.ActionAdd, a.ID); dup.Changed || dup.Reason != application.ReasonAlreadyExists {
		t.Fatalf("expected already-exists, got %+v", dup)
	}
	env.apply(t, application.ActionAdd, b.ID)

	full := env.apply(t, application.ActionAdd, c.ID)
	if full.Changed || full.Reason != application.ReasonCellFull {
		t.Fatalf("expected cell-full, got %+v", full)
	}
	assertSlots(t, full.After, "A", "B")
}

func TestRemoveReportsMissingSite(t *testing.T) {
	t.Parallel()

	env := newRosterEnv(t)
	a := env.addSite()
	b := env.addSite()
	env.apply(t, application.ActionAdd, a.ID)

	if missing := env.apply(t, application.ActionRemove, b.ID); missing.Changed || missing.Reason != application.ReasonNotFound {
		t.Fatalf("expected not-found, got %+v", missing)
	}
	if removed := env.apply(t, application.ActionRemove, a.ID); !removed.Changed || removed.Toggled != "" {
		t.Fatalf("expected removal, got %+v", removed)
	}
}

func TestReplace2(t *testing.T) {
	t.Parallel()

	env := newRosterEnv(t)
	a := env.addSite(testfixtures.WithSiteName("A"))
	b := env.addSite(testfixtures.WithSiteName("B"))
	c := env.addSite(testfixtures.WithSiteName("C"))

	env.apply(t, application.ActionAdd, a.ID)
	created := env.apply(t, application.ActionReplace2, b.ID)
	assertSlots(t, created.After, "A", "B")

	replaced := env.apply(t, application.ActionReplace2, c.ID)
	if !replaced.Changed || replaced.EntryID != created.EntryID {
		t.Fatalf("expected the second slot to be retargeted, got %+v", replaced)
	}
	assertSlots(t, replaced.After, "A", "C")

	if same := env.apply(t, application.ActionReplace2, a.ID); same.Changed || same.Reason != application.ReasonAlreadyExists {
		t.Fatalf("expected already-exists, got %+v", same)
	}
}

func TestSwapIsAnInvolution(t *testing.T) {
	t.Parallel()

	env := newRosterEnv(t)
	a := env.addSite(testfixtures.WithSiteName("A"))
	b := env.addSite(testfixtures.WithSiteName("B"))

	if lone := env.apply(t, application.ActionSwap, ""); lone.Changed || lone.Reason != application.ReasonNotEnoughEntries {
		t.Fatalf("expected not-enough-entries on an empty cell, got %+v", lone)
	}

	env.apply(t, application.ActionAdd, a.ID)
	env.apply(t, application.ActionAdd, b.ID)

	once := env.apply(t, application.ActionSwap, "")
	if !once.Changed {
		t.Fatalf("expected swap to change the cell, got %+v", once)
	}
	assertSlots(t, once.After, "B", "A")

	twice := env.apply(t, application.ActionSwap, "")
	assertSlots(t, twice.After, "A", "B")
}

// staleSwapStore reports the cell unchanged after a swap, as a concurrent
// writer swapping back would.
type staleSwapStore struct {
	*testfixtures.MemoryStore
}

func (s staleSwapStore) SwapSlots(ctx context.Context, workerID string, day calendar.Day) ([]application.Assignment, error) {
	return s.ListDaySlots(ctx, workerID, day)
}

func TestSwapDetectsUnexpectedOrder(t *testing.T) {
	t.Parallel()

	env := newRosterEnv(t)
	a := env.addSite()
	b := env.addSite()
	env.apply(t, application.ActionAdd, a.ID)
	env.apply(t, application.ActionAdd, b.ID)

	roster := env.factory.NewRoster(testfixtures.RosterDeps{Store: env.store, Slots: staleSwapStore{env.store}})
	_, err := roster.Cells.Apply(context.Background(), application.CellRequest{
		WorkerID: env.worker.ID,
		Day:      christmasEve,
		Action:   application.ActionSwap,
	})
	if !errors.Is(err, application.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestApplyResolvesSiteByTrimmedName(t *testing.T) {
	t.Parallel()

	env := newRosterEnv(t)
	existing := env.addSite(testfixtures.WithSiteName("Harbor Tower"))
	ctx := context.Background()

	result, err := env.roster.Cells.Apply(ctx, application.CellRequest{
		WorkerID: env.worker.ID,
		Day:      christmasEve,
		Action:   application.ActionAdd,
		SiteName: "  Harbor Tower ",
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	cell := env.store.Cell(env.worker.ID, christmasEve)
	if !result.Changed || len(cell) != 1 || *cell[0].SiteID != existing.ID {
		t.Fatalf("expected the existing site to be reused, got %+v", cell)
	}

	if _, err := env.roster.Cells.Apply(ctx, application.CellRequest{
		WorkerID: env.worker.ID,
		Day:      christmasEve,
		Action:   application.ActionAdd,
		SiteName: "New Depot",
	}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	sites := env.store.Sites()
	if len(sites) != 2 || sites[1].Name != "New Depot" || sites[1].UsageThreshold != 10 {
		t.Fatalf("expected a new ledger site, got %+v", sites)
	}
	if meta := env.store.Cell(env.worker.ID, christmasEve)[1].Meta["siteName"]; meta != "New Depot" {
		t.Fatalf("meta siteName = %v", meta)
	}
}

func TestApplyValidation(t *testing.T) {
	t.Parallel()

	env := newRosterEnv(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		req   application.CellRequest
		field string
	}{
		{"missing worker", application.CellRequest{Day: christmasEve, Action: application.ActionAdd, SiteName: "A"}, "workerId"},
		{"missing day", application.CellRequest{WorkerID: env.worker.ID, Action: application.ActionAdd, SiteName: "A"}, "day"},
		{"unknown action", application.CellRequest{WorkerID: env.worker.ID, Day: christmasEve, Action: "flip", SiteName: "A"}, "action"},
		{"missing site", application.CellRequest{WorkerID: env.worker.ID, Day: christmasEve, Action: application.ActionToggle, SiteName: "   "}, "siteName"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.roster.Cells.Apply(ctx, tc.req)
			assertFieldError(t, err, tc.field)
		})
	}
	if env.store.Calls("ListDaySlots") != 0 {
		t.Fatal("validation failures must not reach storage")
	}
}

func TestApplyErrors(t *testing.T) {
	t.Parallel()

	env := newRosterEnv(t)
	site := env.addSite()
	ctx := context.Background()

	_, err := env.roster.Cells.Apply(ctx, application.CellRequest{WorkerID: "ghost", Day: christmasEve, Action: application.ActionAdd, SiteID: site.ID})
	if !errors.Is(err, application.ErrNotFound) {
		t.Fatalf("unknown worker: expected ErrNotFound, got %v", err)
	}

	_, err = env.roster.Cells.Apply(ctx, application.CellRequest{WorkerID: env.worker.ID, Day: christmasEve, Action: application.ActionAdd, SiteID: "missing"})
	if !errors.Is(err, application.ErrNotFound) {
		t.Fatalf("unknown site: expected ErrNotFound, got %v", err)
	}

	env.store.FailOn("ListDaySlots", errors.New("disk I/O error"))
	_, err = env.roster.Cells.Apply(ctx, application.CellRequest{WorkerID: env.worker.ID, Day: christmasEve, Action: application.ActionAdd, SiteID: site.ID})
	if !errors.Is(err, application.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
}

func TestCellNeverExceedsTwoDistinctSites(t *testing.T) {
	t.Parallel()

	env := newRosterEnv(t)
	sites := []testfixtures.SiteFixture{env.addSite(), env.addSite(), env.addSite()}
	actions := []application.CellAction{
		application.ActionToggle,
		application.ActionAdd,
		application.ActionRemove,
		application.ActionReplace2,
		application.ActionSwap,
	}
	rng := rand.New(rand.NewPCG(7, 24))

	for i := 0; i < 300; i++ {
		action := actions[rng.IntN(len(actions))]
		site := sites[rng.IntN(len(sites))]
		env.apply(t, action, site.ID)

		cell := env.store.Cell(env.worker.ID, christmasEve)
		if len(cell) > 2 {
			t.Fatalf("step %d (%s): cell holds %d entries", i, action, len(cell))
		}
		seenSlot := map[int]bool{}
		seenSite := map[string]bool{}
		for _, a := range cell {
			if seenSlot[a.SlotOrder] || seenSite[*a.SiteID] {
				t.Fatalf("step %d (%s): duplicate slot or site in %+v", i, action, cell)
			}
			seenSlot[a.SlotOrder] = true
			seenSite[*a.SiteID] = true
		}
	}
}

func TestSetCellAndSnapshot(t *testing.T) {
	t.Parallel()

	env := newRosterEnv(t)
	ctx := context.Background()
	req := application.SetCellRequest{WorkerID: env.worker.ID, Day: christmasEve, Slots: history.SlotsOf("North Yard", "South Yard")}

	result, err := env.roster.Cells.SetCell(ctx, req)
	if err != nil {
		t.Fatalf("SetCell: %v", err)
	}
	if !result.Changed {
		t.Fatal("expected SetCell to report a change")
	}
	assertSlots(t, result.After, "North Yard", "South Yard")

	again, err := env.roster.Cells.SetCell(ctx, req)
	if err != nil {
		t.Fatalf("SetCell: %v", err)
	}
	if again.Changed {
		t.Fatal("setting the same labels must not report a change")
	}
	if len(env.store.Sites()) != 2 {
		t.Fatalf("sites should be resolved by name, got %d", len(env.store.Sites()))
	}

	second := "South Yard"
	if _, err := env.roster.Cells.SetCell(ctx, application.SetCellRequest{WorkerID: env.worker.ID, Day: christmasEve, Slots: history.Slots{nil, &second}}); err != nil {
		t.Fatalf("SetCell: %v", err)
	}
	snapshot, err := env.roster.Cells.Snapshot(ctx, env.worker.ID, christmasEve)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	assertSlots(t, snapshot, "South Yard")
	if cell := env.store.Cell(env.worker.ID, christmasEve); len(cell) != 1 || cell[0].SlotOrder != 0 {
		t.Fatalf("a lone label must be stored in slot 0, got %+v", cell)
	}
}

func TestAddAfterRemovingFirstSlotKeepsExistingFirst(t *testing.T) {
	t.Parallel()

	env := newRosterEnv(t)
	a := env.addSite(testfixtures.WithSiteName("A"))
	b := env.addSite(testfixtures.WithSiteName("B"))
	c := env.addSite(testfixtures.WithSiteName("C"))

	env.apply(t, application.ActionAdd, a.ID)
	env.apply(t, application.ActionAdd, b.ID)

	removed := env.apply(t, application.ActionRemove, a.ID)
	assertSlots(t, removed.Before, "A", "B")
	assertSlots(t, removed.After, "B")

	ctx := context.Background()
	snapshot, err := env.roster.Cells.Snapshot(ctx, env.worker.ID, christmasEve)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	assertSlots(t, snapshot, "B")

	added := env.apply(t, application.ActionAdd, c.ID)
	assertSlots(t, added.After, "B", "C")

	cell := env.store.Cell(env.worker.ID, christmasEve)
	if len(cell) != 2 || *cell[0].SiteID != b.ID || *cell[1].SiteID != c.ID {
		t.Fatalf("expected [B C] in slot order, got %+v", cell)
	}
	if cell[0].SlotOrder != 0 || cell[1].SlotOrder != 1 {
		t.Fatalf("unexpected slot orders %d, %d", cell[0].SlotOrder, cell[1].SlotOrder)
	}
}

func TestUndoRedoThroughCellService(t *testing.T) {
	t.Parallel()

	env := newRosterEnv(t)
	a := env.addSite(testfixtures.WithSiteName("A"))
	b := env.addSite(testfixtures.WithSiteName("B"))
	tracker := history.NewTracker(history.WeekScope(christmasEve.StartOfWeek()))
	base := time.Date(2025, 12, 24, 9, 0, 0, 0, time.UTC)
	record := func(r application.CellResult, at time.Time) {
		if r.Changed {
			tracker.Record(history.Entry{WorkerID: env.worker.ID, Day: christmasEve, Before: r.Before, After: r.After, At: at})
		}
	}

	record(env.apply(t, application.ActionAdd, a.ID), base)
	record(env.apply(t, application.ActionAdd, b.ID), base.Add(200*time.Millisecond))
	if undo, _ := tracker.Depth(); undo != 1 {
		t.Fatalf("rapid edits should merge, depth = %d", undo)
	}

	ctx := context.Background()
	if _, err := tracker.Undo(ctx, env.roster.Cells); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if n := len(env.store.Cell(env.worker.ID, christmasEve)); n != 0 {
		t.Fatalf("undo should empty the cell, holds %d", n)
	}
	if _, err := tracker.Redo(ctx, env.roster.Cells); err != nil {
		t.Fatalf("Redo: %v", err)
	}
	snapshot, err := env.roster.Cells.Snapshot(ctx, env.worker.ID, christmasEve)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	assertSlots(t, snapshot, "A", "B")
}
