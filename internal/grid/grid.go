// Package grid projects stored assignments into the read-side calendar views.
//
// Every worker × day cell is present in a view even when empty, and at most two
// labeled entries are shown per cell. Entries beyond the second are summarized
// as a " +N" suffix on the second slot.
package grid

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/example/site-roster/internal/calendar"
)

const (
	// ColorRed marks labels that carry an urgency marker.
	ColorRed = "red"
	// ColorDefault is used for every other label.
	ColorDefault = "default"

	urgencyMarker = "!"
)

// legacyMetaKeys lists the metadata keys older clients used to carry site names,
// in priority order.
var legacyMetaKeys = []string{"siteNames", "siteName", "genbaNames", "genbaName"}

// Worker is the row header of a grid.
type Worker struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Entry is a stored assignment as seen by the views.
type Entry struct {
	ID        string
	WorkerID  string
	Day       calendar.Day
	SlotOrder int
	CreatedAt time.Time
	// SiteName is the linked site's current name, empty when no site is linked.
	SiteName string
	Meta     map[string]any
	Label    string
	Note     string
}

// Slot is one rendered cell slot.
type Slot struct {
	Label string `json:"label"`
	Color string `json:"color"`
}

// Cell is one worker × day cell. Empty slots serialize as null.
type Cell struct {
	Day   string `json:"day"`
	Slot0 *Slot  `json:"slot0"`
	Slot1 *Slot  `json:"slot1"`
}

// Row holds one worker's cells in day order.
type Row struct {
	Worker Worker `json:"worker"`
	Cells  []Cell `json:"cells"`
}

// MonthSummary counts one worker's assignments in a month.
type MonthSummary struct {
	Month   string `json:"month"`
	Entries int    `json:"entries"`
	Days    int    `json:"days"`
}

// YearRow holds twelve month summaries for a worker.
type YearRow struct {
	Worker Worker         `json:"worker"`
	Months []MonthSummary `json:"months"`
}

// ResolveLabel returns the display label of an entry: the linked site's name,
// else the first legacy metadata name, else the free-text label or note.
func ResolveLabel(e Entry) string {
	if name := strings.TrimSpace(e.SiteName); name != "" {
		return name
	}
	if names := MetaSiteNames(e.Meta); len(names) > 0 {
		return names[0]
	}
	if label := strings.TrimSpace(e.Label); label != "" {
		return label
	}
	return strings.TrimSpace(e.Note)
}

// MetaSiteNames extracts trimmed, de-duplicated site names from legacy metadata.
func MetaSiteNames(meta map[string]any) []string {
	if len(meta) == 0 {
		return nil
	}
	var names []string
	seen := make(map[string]struct{})
	push := func(v string) {
		v = strings.TrimSpace(v)
		if v == "" {
			return
		}
		if _, ok := seen[v]; ok {
			return
		}
		seen[v] = struct{}{}
		names = append(names, v)
	}
	for _, key := range legacyMetaKeys {
		switch v := meta[key].(type) {
		case string:
			push(v)
		case []string:
			for _, item := range v {
				push(item)
			}
		case []any:
			for _, item := range v {
				if s, ok := item.(string); ok {
					push(s)
				}
			}
		}
	}
	return names
}

// Color returns the display color for a label.
func Color(label string) string {
	if strings.Contains(label, urgencyMarker) {
		return ColorRed
	}
	return ColorDefault
}

// SortEntries orders entries by slot, then creation time, then id.
func SortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.SlotOrder != b.SlotOrder {
			return a.SlotOrder < b.SlotOrder
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// CellLabels returns the labels of the first two labeled entries of one cell.
func CellLabels(entries []Entry) []string {
	sorted := append([]Entry(nil), entries...)
	SortEntries(sorted)
	labels := make([]string, 0, len(sorted))
	for _, e := range sorted {
		if label := ResolveLabel(e); label != "" {
			labels = append(labels, label)
		}
	}
	return labels
}

// BuildCell renders one cell from its entries.
func BuildCell(day calendar.Day, entries []Entry) Cell {
	cell := Cell{Day: day.String()}
	labels := CellLabels(entries)
	if len(labels) > 0 {
		cell.Slot0 = &Slot{Label: labels[0], Color: Color(labels[0])}
	}
	if len(labels) > 1 {
		label := labels[1]
		if extra := len(labels) - 2; extra > 0 {
			label += " +" + strconv.Itoa(extra)
		}
		cell.Slot1 = &Slot{Label: label, Color: Color(labels[1])}
	}
	return cell
}

type cellKey struct {
	workerID string
	day      calendar.Day
}

// BuildDayGrid renders the week or month grid: every worker × every day,
// empty cells included, rows in worker order and cells in day order.
func BuildDayGrid(workers []Worker, days []calendar.Day, entries []Entry) []Row {
	byCell := make(map[cellKey][]Entry, len(entries))
	for _, e := range entries {
		k := cellKey{workerID: e.WorkerID, day: e.Day}
		byCell[k] = append(byCell[k], e)
	}

	rows := make([]Row, 0, len(workers))
	for _, w := range workers {
		row := Row{Worker: w, Cells: make([]Cell, 0, len(days))}
		for _, d := range days {
			row.Cells = append(row.Cells, BuildCell(d, byCell[cellKey{workerID: w.ID, day: d}]))
		}
		rows = append(rows, row)
	}
	return rows
}

// YearMonths lists the twelve month keys of year.
func YearMonths(year int) []string {
	months := make([]string, 12)
	for i := range months {
		months[i] = calendar.Month{Year: year, Month: time.Month(i + 1)}.String()
	}
	return months
}

// BuildYearGrid counts entries and distinct days per worker and month. Entries
// outside year or for unknown workers are ignored.
func BuildYearGrid(workers []Worker, year int, entries []Entry) []YearRow {
	index := make(map[string]int, len(workers))
	rows := make([]YearRow, len(workers))
	months := YearMonths(year)
	for i, w := range workers {
		index[w.ID] = i
		rows[i] = YearRow{Worker: w, Months: make([]MonthSummary, 12)}
		for m := range rows[i].Months {
			rows[i].Months[m] = MonthSummary{Month: months[m]}
		}
	}

	seen := make(map[cellKey]struct{}, len(entries))
	for _, e := range entries {
		i, ok := index[e.WorkerID]
		if !ok || e.Day.Year != year {
			continue
		}
		summary := &rows[i].Months[int(e.Day.Month)-1]
		summary.Entries++
		k := cellKey{workerID: e.WorkerID, day: e.Day}
		if _, dup := seen[k]; !dup {
			seen[k] = struct{}{}
			summary.Days++
		}
	}
	return rows
}
