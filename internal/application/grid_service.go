package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/example/site-roster/internal/calendar"
	"github.com/example/site-roster/internal/grid"
)

// DayGridView is a week or month view.
type DayGridView struct {
	Days []calendar.Day
	Rows []grid.Row
}

// YearGridView is the per-month summary of a year.
type YearGridView struct {
	Year   int
	Months []string
	Rows   []grid.YearRow
}

// GridService assembles the read-side calendar views.
type GridService struct {
	slots    SlotStore
	workers  WorkerDirectory
	settings Settings
}

// NewGridService wires the grid read path.
func NewGridService(slots SlotStore, workers WorkerDirectory, settings Settings) *GridService {
	return &GridService{slots: slots, workers: workers, settings: settings.withDefaults()}
}

func (s *GridService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.settings.Logger, "GridService", operation, attrs...)
}

// Week renders the seven days of the Monday-start week containing start.
func (s *GridService) Week(ctx context.Context, start calendar.Day) (DayGridView, error) {
	if start.IsZero() {
		return DayGridView{}, fieldError("weekStart", "weekStart must be YYYY-MM-DD")
	}
	return s.dayGrid(ctx, "Week", calendar.Week(start.StartOfWeek()))
}

// Month renders every day of month.
func (s *GridService) Month(ctx context.Context, month calendar.Month) (DayGridView, error) {
	if month.Year == 0 {
		return DayGridView{}, fieldError("month", "month must be YYYY-MM")
	}
	return s.dayGrid(ctx, "Month", month.Days())
}

func (s *GridService) dayGrid(ctx context.Context, operation string, days []calendar.Day) (view DayGridView, err error) {
	if s == nil {
		err = fmt.Errorf("GridService is nil")
		return
	}

	ctx, span := startSpan(ctx, "GridService."+operation)
	logger := s.loggerWith(ctx, operation, "from", days[0].String(), "to", days[len(days)-1].String())
	defer func() {
		endSpan(span, err)
		if err != nil {
			logger.ErrorContext(ctx, "failed to build grid", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.DebugContext(ctx, "grid built", "rows", len(view.Rows))
	}()

	workers, entries, err := s.load(ctx, days[0], days[len(days)-1])
	if err != nil {
		return
	}
	view = DayGridView{Days: days, Rows: grid.BuildDayGrid(workers, days, entries)}
	return
}

// Year counts each worker's entries and distinct days for the twelve months of year.
func (s *GridService) Year(ctx context.Context, year int) (view YearGridView, err error) {
	if s == nil {
		err = fmt.Errorf("GridService is nil")
		return
	}
	if year < 1 || year > 9999 {
		err = fieldError("year", "year must be YYYY")
		return
	}

	ctx, span := startSpan(ctx, "GridService.Year")
	logger := s.loggerWith(ctx, "Year", "year", year)
	defer func() {
		endSpan(span, err)
		if err != nil {
			logger.ErrorContext(ctx, "failed to build year grid", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	first := calendar.Month{Year: year, Month: 1}.FirstDay()
	last := calendar.Month{Year: year, Month: 12}.LastDay()
	workers, entries, err := s.load(ctx, first, last)
	if err != nil {
		return
	}
	view = YearGridView{Year: year, Months: grid.YearMonths(year), Rows: grid.BuildYearGrid(workers, year, entries)}
	return
}

func (s *GridService) load(ctx context.Context, from, to calendar.Day) ([]grid.Worker, []grid.Entry, error) {
	ctx, cancel := s.settings.storageContext(ctx)
	defer cancel()

	listed, err := s.workers.ListWorkers(ctx, s.settings.WorkerListLimit)
	if err != nil {
		return nil, nil, mapStoreError(err)
	}
	if len(listed) == 0 {
		return nil, nil, nil
	}

	workers := make([]grid.Worker, len(listed))
	ids := make([]string, len(listed))
	for i, w := range listed {
		workers[i] = grid.Worker{ID: w.ID, Name: w.Name, Email: w.Email}
		ids[i] = w.ID
	}

	assignments, err := s.slots.ListAssignments(ctx, AssignmentRange{WorkerIDs: ids, From: from, To: to})
	if err != nil {
		return nil, nil, mapStoreError(err)
	}
	entries := make([]grid.Entry, len(assignments))
	for i, a := range assignments {
		entries[i] = toGridEntry(a)
	}
	return workers, entries, nil
}

func toGridEntry(a Assignment) grid.Entry {
	entry := grid.Entry{
		ID:        a.ID,
		WorkerID:  a.WorkerID,
		Day:       a.Day,
		SlotOrder: a.SlotOrder,
		CreatedAt: a.CreatedAt,
		SiteName:  a.SiteName,
		Meta:      a.Meta,
		Label:     a.Label,
	}
	if a.Note != nil {
		entry.Note = *a.Note
	}
	return entry
}
