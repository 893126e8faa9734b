package grid

import (
	"testing"
	"time"

	"github.com/example/site-roster/internal/calendar"
)

func day(t *testing.T, value string) calendar.Day {
	t.Helper()
	d, err := calendar.ParseDay(value)
	if err != nil {
		t.Fatalf("ParseDay(%q): %v", value, err)
	}
	return d
}

func TestResolveLabelPriority(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		entry Entry
		want  string
	}{
		{
			name:  "linked site wins",
			entry: Entry{SiteName: " Tower A ", Meta: map[string]any{"siteName": "old"}, Label: "summary"},
			want:  "Tower A",
		},
		{
			name: "first legacy meta name",
			entry: Entry{Meta: map[string]any{
				"siteNames":  []any{" North ", "South", 3},
				"siteName":   "North",
				"genbaName":  "East",
				"genbaNames": []string{"South", ""},
			}},
			want: "North",
		},
		{
			name:  "summary fallback",
			entry: Entry{Meta: map[string]any{"other": "x"}, Label: " Depot ", Note: "note"},
			want:  "Depot",
		},
		{
			name:  "note fallback",
			entry: Entry{Note: "Yard"},
			want:  "Yard",
		},
		{
			name:  "no label",
			entry: Entry{},
			want:  "",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := ResolveLabel(tc.entry); got != tc.want {
				t.Fatalf("ResolveLabel = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestMetaSiteNamesMergesKeys(t *testing.T) {
	t.Parallel()

	names := MetaSiteNames(map[string]any{
		"siteNames":  []any{" North ", "South", 3},
		"siteName":   "North",
		"genbaName":  "East",
		"genbaNames": []string{"South", ""},
	})
	want := []string{"North", "South", "East"}
	if len(names) != len(want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("names = %v, want %v", names, want)
		}
	}
}

func TestColor(t *testing.T) {
	t.Parallel()

	if Color("Urgent!") != ColorRed {
		t.Fatal("expected red for marker")
	}
	if Color("Calm") != ColorDefault {
		t.Fatal("expected default color")
	}
}

func TestBuildCellOverflowSuffix(t *testing.T) {
	t.Parallel()

	d := day(t, "2025-03-03")
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	entries := []Entry{
		{ID: "c", Day: d, SlotOrder: 1, CreatedAt: base.Add(3 * time.Second), Label: "C"},
		{ID: "a", Day: d, SlotOrder: 0, CreatedAt: base, Label: "A!"},
		{ID: "b", Day: d, SlotOrder: 1, CreatedAt: base.Add(time.Second), Label: "B"},
		{ID: "d", Day: d, SlotOrder: 1, CreatedAt: base.Add(4 * time.Second), Label: "D"},
		{ID: "e", Day: d, SlotOrder: 1, CreatedAt: base.Add(5 * time.Second)},
	}

	cell := BuildCell(d, entries)
	if cell.Slot0 == nil || cell.Slot0.Label != "A!" || cell.Slot0.Color != ColorRed {
		t.Fatalf("slot0 = %+v", cell.Slot0)
	}
	if cell.Slot1 == nil || cell.Slot1.Label != "B +2" || cell.Slot1.Color != ColorDefault {
		t.Fatalf("slot1 = %+v", cell.Slot1)
	}
}

func TestBuildDayGridIncludesEmptyCells(t *testing.T) {
	t.Parallel()

	workers := []Worker{{ID: "u1", Name: "One"}, {ID: "u2", Name: "Two"}}
	days := calendar.Week(day(t, "2025-03-03"))

	empty := BuildDayGrid(workers, days, nil)
	if len(empty) != 2 {
		t.Fatalf("rows = %d", len(empty))
	}
	for _, row := range empty {
		if len(row.Cells) != 7 {
			t.Fatalf("cells = %d", len(row.Cells))
		}
		for _, c := range row.Cells {
			if c.Slot0 != nil || c.Slot1 != nil {
				t.Fatalf("expected empty cell, got %+v", c)
			}
		}
	}

	rows := BuildDayGrid(workers, days, []Entry{
		{WorkerID: "u2", Day: day(t, "2025-03-05"), SiteName: "Depot"},
		{WorkerID: "ghost", Day: day(t, "2025-03-05"), SiteName: "Ignored"},
	})
	if rows[1].Cells[2].Slot0 == nil || rows[1].Cells[2].Slot0.Label != "Depot" {
		t.Fatalf("unexpected cell %+v", rows[1].Cells[2])
	}
	if rows[0].Cells[2].Slot0 != nil {
		t.Fatal("u1 should stay empty")
	}
	if rows[1].Cells[0].Day != "2025-03-03" || rows[1].Cells[6].Day != "2025-03-09" {
		t.Fatal("cells must follow the requested days")
	}
}

func TestBuildYearGrid(t *testing.T) {
	t.Parallel()

	workers := []Worker{{ID: "u1"}, {ID: "u2"}}
	entries := []Entry{
		{WorkerID: "u1", Day: day(t, "2025-03-01")},
		{WorkerID: "u1", Day: day(t, "2025-03-01")},
		{WorkerID: "u1", Day: day(t, "2025-03-02")},
		{WorkerID: "u1", Day: day(t, "2024-03-02")},
		{WorkerID: "u3", Day: day(t, "2025-03-02")},
	}

	rows := BuildYearGrid(workers, 2025, entries)
	if len(rows) != 2 || len(rows[0].Months) != 12 || len(rows[1].Months) != 12 {
		t.Fatalf("unexpected shape %+v", rows)
	}
	march := rows[0].Months[2]
	if march.Month != "2025-03" || march.Entries != 3 || march.Days != 2 {
		t.Fatalf("march = %+v", march)
	}
	if rows[1].Months[2].Entries != 0 || rows[1].Months[2].Days != 0 {
		t.Fatalf("u2 march = %+v", rows[1].Months[2])
	}
}
