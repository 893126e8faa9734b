package history

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/example/site-roster/internal/calendar"
)

type recordingRestorer struct {
	calls []Slots
	err   error
}

func (r *recordingRestorer) RestoreCell(_ context.Context, _ string, _ calendar.Day, slots Slots) error {
	if r.err != nil {
		return r.err
	}
	r.calls = append(r.calls, slots)
	return nil
}

func testDay(t *testing.T) calendar.Day {
	t.Helper()
	d, err := calendar.ParseDay("2025-12-24")
	if err != nil {
		t.Fatalf("ParseDay: %v", err)
	}
	return d
}

func TestRecordMergesRapidEditsOfOneCell(t *testing.T) {
	t.Parallel()

	d := testDay(t)
	base := time.Date(2025, 12, 24, 9, 0, 0, 0, time.UTC)
	tracker := NewTracker(WeekScope(d.StartOfWeek()))

	tracker.Record(Entry{WorkerID: "u1", Day: d, Before: Slots{}, After: SlotsOf("A"), At: base})
	tracker.Record(Entry{WorkerID: "u1", Day: d, Before: SlotsOf("A"), After: SlotsOf("A", "B"), At: base.Add(300 * time.Millisecond)})

	undo, _ := tracker.Depth()
	if undo != 1 {
		t.Fatalf("undo depth = %d, want 1", undo)
	}
	top, _ := tracker.Peek()
	if !top.Before.Equal(Slots{}) || !top.After.Equal(SlotsOf("A", "B")) {
		t.Fatalf("merged entry = %+v", top)
	}

	tracker.Record(Entry{WorkerID: "u1", Day: d, Before: SlotsOf("A", "B"), After: SlotsOf("B"), At: base.Add(2 * time.Second)})
	if undo, _ := tracker.Depth(); undo != 2 {
		t.Fatalf("edit outside the window should not merge, depth = %d", undo)
	}

	tracker.Record(Entry{WorkerID: "u2", Day: d, Before: SlotsOf("B"), After: SlotsOf("C"), At: base.Add(2100 * time.Millisecond)})
	if undo, _ := tracker.Depth(); undo != 3 {
		t.Fatalf("edit of another cell should not merge, depth = %d", undo)
	}
}

func TestUndoRedoRestoresSnapshots(t *testing.T) {
	t.Parallel()

	d := testDay(t)
	tracker := NewTracker(WeekScope(d.StartOfWeek()))
	restorer := &recordingRestorer{}
	ctx := context.Background()

	tracker.Record(Entry{WorkerID: "u1", Day: d, Before: Slots{}, After: SlotsOf("Site"), At: time.Unix(0, 0)})

	if _, err := tracker.Undo(ctx, restorer); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if undo, redo := tracker.Depth(); undo != 0 || redo != 1 {
		t.Fatalf("depth after undo = %d/%d", undo, redo)
	}
	if _, err := tracker.Redo(ctx, restorer); err != nil {
		t.Fatalf("Redo: %v", err)
	}
	if len(restorer.calls) != 2 || !restorer.calls[0].Equal(Slots{}) || !restorer.calls[1].Equal(SlotsOf("Site")) {
		t.Fatalf("restore calls = %+v", restorer.calls)
	}
	if _, err := tracker.Redo(ctx, restorer); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}

func TestFailedRestoreLeavesStacksUntouched(t *testing.T) {
	t.Parallel()

	d := testDay(t)
	tracker := NewTracker(WeekScope(d.StartOfWeek()))
	tracker.Record(Entry{WorkerID: "u1", Day: d, After: SlotsOf("Site"), At: time.Unix(0, 0)})

	boom := errors.New("storage down")
	if _, err := tracker.Undo(context.Background(), &recordingRestorer{err: boom}); !errors.Is(err, boom) {
		t.Fatalf("expected restore error, got %v", err)
	}
	if undo, redo := tracker.Depth(); undo != 1 || redo != 0 {
		t.Fatalf("depth = %d/%d, want 1/0", undo, redo)
	}
}

func TestRecordClearsRedoAndScopeChangeClearsAll(t *testing.T) {
	t.Parallel()

	d := testDay(t)
	tracker := NewTracker(WeekScope(d.StartOfWeek()))
	restorer := &recordingRestorer{}
	ctx := context.Background()

	tracker.Record(Entry{WorkerID: "u1", Day: d, After: SlotsOf("A"), At: time.Unix(0, 0)})
	if _, err := tracker.Undo(ctx, restorer); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	tracker.Record(Entry{WorkerID: "u1", Day: d, After: SlotsOf("B"), At: time.Unix(10, 0)})
	if _, redo := tracker.Depth(); redo != 0 {
		t.Fatalf("redo depth = %d, want 0", redo)
	}

	if tracker.SetScope(WeekScope(d.StartOfWeek())) {
		t.Fatal("same scope must not clear")
	}
	if !tracker.SetScope(MonthScope(d.MonthOf())) {
		t.Fatal("scope change must clear")
	}
	if undo, redo := tracker.Depth(); undo != 0 || redo != 0 {
		t.Fatalf("depth = %d/%d after scope change", undo, redo)
	}
	if tracker.Scope() != "month:2025-12" {
		t.Fatalf("scope = %q", tracker.Scope())
	}
}

func TestStackLimit(t *testing.T) {
	t.Parallel()

	d := testDay(t)
	tracker := NewTracker(YearScope(2025))
	for i := 0; i < StackLimit+10; i++ {
		tracker.Record(Entry{WorkerID: "u" + strconv.Itoa(i), Day: d, At: time.Unix(int64(i), 0)})
	}
	if undo, _ := tracker.Depth(); undo != StackLimit {
		t.Fatalf("undo depth = %d, want %d", undo, StackLimit)
	}
	top, _ := tracker.Peek()
	if top.WorkerID != "u"+strconv.Itoa(StackLimit+9) {
		t.Fatalf("top = %s", top.WorkerID)
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	n := 0
	registry := NewRegistry(2, time.Hour, func() string {
		n++
		return "s" + strconv.Itoa(n)
	})

	id1, _ := registry.Open(YearScope(2025))
	id2, tracker2 := registry.Open(YearScope(2025))
	if got, ok := registry.Get(id2); !ok || got != tracker2 {
		t.Fatal("expected live session")
	}
	registry.Open(YearScope(2026))
	if _, ok := registry.Get(id1); ok {
		t.Fatal("oldest session should be evicted")
	}
	if !registry.Close(id2) {
		t.Fatal("Close should report removal")
	}
	if registry.Len() != 1 {
		t.Fatalf("Len = %d", registry.Len())
	}
	if _, ok := registry.Get(""); ok {
		t.Fatal("empty id must not resolve")
	}
}
