// Package history keeps caller-scoped undo/redo stacks of cell edits.
//
// A Tracker only stores snapshots; restoring a snapshot is delegated to a
// Restorer, normally the cell service's full-replace operation.
package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/example/site-roster/internal/calendar"
)

const (
	// MergeWindow groups rapid successive edits of one cell into a single entry.
	MergeWindow = 800 * time.Millisecond
	// StackLimit is the number of entries each stack retains.
	StackLimit = 50
)

var (
	// ErrEmpty is returned by Undo or Redo when there is nothing to apply.
	ErrEmpty = errors.New("history: nothing to apply")
	// ErrBusy is returned when an undo or redo is already being applied.
	ErrBusy = errors.New("history: restore in progress")
)

// Slots is a cell snapshot: the labels of slot 0 and slot 1, nil when empty.
type Slots [2]*string

// SlotsOf builds a snapshot from up to two labels.
func SlotsOf(labels ...string) Slots {
	var s Slots
	for i := 0; i < len(labels) && i < 2; i++ {
		label := labels[i]
		s[i] = &label
	}
	return s
}

// Equal compares two snapshots by value.
func (s Slots) Equal(other Slots) bool {
	for i := range s {
		a, b := s[i], other[i]
		if (a == nil) != (b == nil) {
			return false
		}
		if a != nil && *a != *b {
			return false
		}
	}
	return true
}

// Entry records one state-changing edit of a cell.
type Entry struct {
	WorkerID string
	Day      calendar.Day
	Before   Slots
	After    Slots
	At       time.Time
}

func (e Entry) sameCell(other Entry) bool {
	return e.WorkerID == other.WorkerID && e.Day == other.Day
}

// Scope identifies the view the stacks belong to.
type Scope string

// WeekScope is the scope of the week starting at start.
func WeekScope(start calendar.Day) Scope { return Scope("week:" + start.String()) }

// MonthScope is the scope of a month view.
func MonthScope(m calendar.Month) Scope { return Scope("month:" + m.String()) }

// YearScope is the scope of a year view.
func YearScope(year int) Scope { return Scope(fmt.Sprintf("year:%04d", year)) }

// Restorer applies a snapshot to a cell by full replacement.
type Restorer interface {
	RestoreCell(ctx context.Context, workerID string, day calendar.Day, slots Slots) error
}

// RestoreFunc adapts a function to Restorer.
type RestoreFunc func(ctx context.Context, workerID string, day calendar.Day, slots Slots) error

// RestoreCell implements Restorer.
func (f RestoreFunc) RestoreCell(ctx context.Context, workerID string, day calendar.Day, slots Slots) error {
	return f(ctx, workerID, day, slots)
}

// Tracker holds the undo and redo stacks of one caller.
type Tracker struct {
	mu    sync.Mutex
	scope Scope
	undo  []Entry
	redo  []Entry
	// busy serializes restores so a second Undo cannot pop the entry being applied.
	busy bool
}

// NewTracker returns an empty tracker bound to scope.
func NewTracker(scope Scope) *Tracker {
	return &Tracker{scope: scope}
}

// Scope returns the current view scope.
func (t *Tracker) Scope() Scope {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.scope
}

// SetScope switches the view scope, clearing both stacks when it changes.
// It reports whether the stacks were cleared.
func (t *Tracker) SetScope(scope Scope) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if scope == t.scope {
		return false
	}
	t.scope = scope
	t.undo = nil
	t.redo = nil
	return true
}

// Record pushes an edit. An edit of the same cell that continues the top entry
// within MergeWindow is folded into it. Any record clears the redo stack.
func (t *Tracker) Record(e Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.redo = nil
	if n := len(t.undo); n > 0 {
		top := &t.undo[n-1]
		if top.sameCell(e) && top.After.Equal(e.Before) && e.At.Sub(top.At) <= MergeWindow {
			top.After = e.After
			top.At = e.At
			return
		}
	}
	t.undo = push(t.undo, e)
}

// Undo restores the Before snapshot of the most recent entry and moves it to
// the redo stack. On restore failure both stacks are left untouched.
func (t *Tracker) Undo(ctx context.Context, r Restorer) (Entry, error) {
	return t.apply(ctx, r, true)
}

// Redo restores the After snapshot of the most recently undone entry and moves
// it back to the undo stack. On restore failure both stacks are left untouched.
func (t *Tracker) Redo(ctx context.Context, r Restorer) (Entry, error) {
	return t.apply(ctx, r, false)
}

func (t *Tracker) apply(ctx context.Context, r Restorer, undo bool) (Entry, error) {
	t.mu.Lock()
	src := &t.redo
	if undo {
		src = &t.undo
	}
	if t.busy {
		t.mu.Unlock()
		return Entry{}, ErrBusy
	}
	if len(*src) == 0 {
		t.mu.Unlock()
		return Entry{}, ErrEmpty
	}
	entry := (*src)[len(*src)-1]
	t.busy = true
	t.mu.Unlock()

	target := entry.After
	if undo {
		target = entry.Before
	}
	err := r.RestoreCell(ctx, entry.WorkerID, entry.Day, target)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.busy = false
	if err != nil {
		return Entry{}, err
	}
	// A scope change during the restore already discarded the stacks.
	if n := len(*src); n == 0 || !sameEntry((*src)[n-1], entry) {
		return entry, nil
	}
	*src = (*src)[:len(*src)-1]
	if undo {
		t.redo = push(t.redo, entry)
	} else {
		t.undo = push(t.undo, entry)
	}
	return entry, nil
}

// Depth returns the sizes of the undo and redo stacks.
func (t *Tracker) Depth() (undo, redo int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.undo), len(t.redo)
}

// Peek returns the top undo entry, if any.
func (t *Tracker) Peek() (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.undo) == 0 {
		return Entry{}, false
	}
	return t.undo[len(t.undo)-1], true
}

func push(stack []Entry, e Entry) []Entry {
	stack = append(stack, e)
	if len(stack) > StackLimit {
		stack = append([]Entry(nil), stack[len(stack)-StackLimit:]...)
	}
	return stack
}

func sameEntry(a, b Entry) bool {
	return a.sameCell(b) && a.At.Equal(b.At) && a.Before.Equal(b.Before) && a.After.Equal(b.After)
}
