package persistence

import (
	"context"

	"github.com/example/site-roster/internal/calendar"
)

// WorkerRepository stores workers.
type WorkerRepository interface {
	CreateWorker(ctx context.Context, worker Worker) error
	GetWorker(ctx context.Context, id string) (Worker, error)
	ListWorkers(ctx context.Context, limit int) ([]Worker, error)
}

// SiteRepository stores the site ledger.
type SiteRepository interface {
	CreateSite(ctx context.Context, site Site) error
	UpdateSite(ctx context.Context, site Site) error
	GetSite(ctx context.Context, id string) (Site, error)
	// FindSiteByName returns the oldest site whose trimmed name equals name.
	FindSiteByName(ctx context.Context, name string) (Site, error)
	ListSites(ctx context.Context, limit int) ([]Site, error)
}

// AssignmentFilter narrows assignment range queries. From and To are inclusive.
type AssignmentFilter struct {
	WorkerIDs []string
	SiteID    string
	From      calendar.Day
	To        calendar.Day
	// Limit caps the result; zero means unlimited.
	Limit int
	// Newest orders by day descending instead of worker, day and slot.
	Newest bool
}

// AssignmentRepository stores the per-day assignment slots.
type AssignmentRepository interface {
	// ListCell returns a worker's assignments for one day ordered by slot.
	ListCell(ctx context.Context, workerID string, day calendar.Day) ([]Assignment, error)
	CreateAssignment(ctx context.Context, assignment Assignment) error
	// RetargetAssignment points an existing assignment at another site.
	RetargetAssignment(ctx context.Context, assignment Assignment) error
	DeleteAssignment(ctx context.Context, id string) error
	// SwapCell exchanges slot 0 and slot 1 of a full cell in one transaction
	// and returns the cell as stored afterwards.
	SwapCell(ctx context.Context, workerID string, day calendar.Day) ([]Assignment, error)
	// ReplaceCell deletes a cell's assignments and inserts the given ones in one transaction.
	ReplaceCell(ctx context.Context, workerID string, day calendar.Day, assignments []Assignment) error
	ListAssignments(ctx context.Context, filter AssignmentFilter) ([]Assignment, error)
	// AssignedDays returns the distinct days in [from, to] on which the worker
	// holds an assignment for the site.
	AssignedDays(ctx context.Context, workerID, siteID string, from, to calendar.Day) ([]calendar.Day, error)
	// CountBySite counts assignments per site in [from, to].
	CountBySite(ctx context.Context, from, to calendar.Day) (map[string]int, error)
}
