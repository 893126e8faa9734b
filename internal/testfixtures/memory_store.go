package testfixtures

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/example/site-roster/internal/application"
	"github.com/example/site-roster/internal/calendar"
	"github.com/example/site-roster/internal/persistence"
)

// MemoryStore is an in-memory implementation of the application storage
// interfaces. It enforces the same slot constraints as the SQLite schema and
// returns persistence sentinel errors so services map them as in production.
type MemoryStore struct {
	mu          sync.Mutex
	workers     []application.Worker
	sites       []application.Site
	assignments map[string]application.Assignment
	failures    map[string]error
	calls       map[string]int
	hooks       map[string]func()
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		assignments: make(map[string]application.Assignment),
		failures:    make(map[string]error),
		calls:       make(map[string]int),
		hooks:       make(map[string]func()),
	}
}

// FailOn makes every later call of the named method return err. A nil err
// clears the failure.
func (m *MemoryStore) FailOn(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, method)
		return
	}
	m.failures[method] = err
}

// AfterCall runs hook once the named method has released the store, letting a
// test interleave a write between two service reads. Only FindAssignedDays
// honors it.
func (m *MemoryStore) AfterCall(method string, hook func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks[method] = hook
}

func (m *MemoryStore) runHook(method string) {
	m.mu.Lock()
	hook := m.hooks[method]
	m.mu.Unlock()
	if hook != nil {
		hook()
	}
}

// Calls returns how many times the named method was invoked.
func (m *MemoryStore) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

// enter records a call and returns the injected failure, if any. Callers hold mu.
func (m *MemoryStore) enter(method string) error {
	m.calls[method]++
	return m.failures[method]
}

// AddWorker seeds a worker.
func (m *MemoryStore) AddWorker(worker application.Worker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workers = append(m.workers, worker)
}

// AddSite seeds a site.
func (m *MemoryStore) AddSite(site application.Site) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sites = append(m.sites, site)
}

// AddAssignment seeds an assignment without constraint checks.
func (m *MemoryStore) AddAssignment(assignment application.Assignment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assignments[assignment.ID] = assignment
}

// Sites returns every stored site in insertion order.
func (m *MemoryStore) Sites() []application.Site {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]application.Site(nil), m.sites...)
}

// Cell returns a worker's assignments for one day ordered by slot.
func (m *MemoryStore) Cell(workerID string, day calendar.Day) []application.Assignment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cellLocked(workerID, day)
}

// AssignmentCount returns the number of stored assignments.
func (m *MemoryStore) AssignmentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.assignments)
}

// FindWorker implements application.WorkerDirectory.
func (m *MemoryStore) FindWorker(ctx context.Context, id string) (application.Worker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("FindWorker"); err != nil {
		return application.Worker{}, err
	}
	for _, w := range m.workers {
		if w.ID == id {
			return w, nil
		}
	}
	return application.Worker{}, persistence.ErrNotFound
}

// ListWorkers implements application.WorkerDirectory.
func (m *MemoryStore) ListWorkers(ctx context.Context, limit int) ([]application.Worker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ListWorkers"); err != nil {
		return nil, err
	}
	workers := append([]application.Worker(nil), m.workers...)
	if limit > 0 && len(workers) > limit {
		workers = workers[:limit]
	}
	return workers, nil
}

// CreateWorker implements application.WorkerDirectory.
func (m *MemoryStore) CreateWorker(ctx context.Context, worker application.Worker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("CreateWorker"); err != nil {
		return err
	}
	for _, w := range m.workers {
		if w.ID == worker.ID || (worker.Email != "" && w.Email == worker.Email) {
			return persistence.ErrDuplicate
		}
	}
	m.workers = append(m.workers, worker)
	return nil
}

// FindSite implements application.SiteCatalog.
func (m *MemoryStore) FindSite(ctx context.Context, id string) (application.Site, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("FindSite"); err != nil {
		return application.Site{}, err
	}
	for _, s := range m.sites {
		if s.ID == id {
			return s, nil
		}
	}
	return application.Site{}, persistence.ErrNotFound
}

// FindSiteByName implements application.SiteCatalog.
func (m *MemoryStore) FindSiteByName(ctx context.Context, name string) (application.Site, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("FindSiteByName"); err != nil {
		return application.Site{}, err
	}
	name = strings.TrimSpace(name)
	for _, s := range m.sites {
		if strings.TrimSpace(s.Name) == name {
			return s, nil
		}
	}
	return application.Site{}, persistence.ErrNotFound
}

// CreateSite implements application.SiteCatalog.
func (m *MemoryStore) CreateSite(ctx context.Context, site application.Site) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("CreateSite"); err != nil {
		return err
	}
	for _, s := range m.sites {
		if s.ID == site.ID {
			return persistence.ErrDuplicate
		}
	}
	m.sites = append(m.sites, site)
	return nil
}

// UpdateSite implements application.SiteCatalog.
func (m *MemoryStore) UpdateSite(ctx context.Context, site application.Site) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("UpdateSite"); err != nil {
		return err
	}
	for i := range m.sites {
		if m.sites[i].ID == site.ID {
			m.sites[i] = site
			return nil
		}
	}
	return persistence.ErrNotFound
}

// ListSites implements application.SiteCatalog.
func (m *MemoryStore) ListSites(ctx context.Context, limit int) ([]application.Site, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ListSites"); err != nil {
		return nil, err
	}
	sites := append([]application.Site(nil), m.sites...)
	if limit > 0 && len(sites) > limit {
		sites = sites[:limit]
	}
	return sites, nil
}

// ListDaySlots implements application.SlotStore.
func (m *MemoryStore) ListDaySlots(ctx context.Context, workerID string, day calendar.Day) ([]application.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ListDaySlots"); err != nil {
		return nil, err
	}
	return m.cellLocked(workerID, day), nil
}

// CreateSlot implements application.SlotStore.
func (m *MemoryStore) CreateSlot(ctx context.Context, assignment application.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("CreateSlot"); err != nil {
		return err
	}
	return m.insertLocked(assignment)
}

// UpdateSlot implements application.SlotStore.
func (m *MemoryStore) UpdateSlot(ctx context.Context, id string, site application.Site) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("UpdateSlot"); err != nil {
		return err
	}
	a, ok := m.assignments[id]
	if !ok {
		return persistence.ErrNotFound
	}
	siteID := site.ID
	a.SiteID = &siteID
	a.Label = site.Name
	a.Meta = map[string]any{"siteName": site.Name}
	m.assignments[id] = a
	return nil
}

// DeleteSlot implements application.SlotStore.
func (m *MemoryStore) DeleteSlot(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("DeleteSlot"); err != nil {
		return err
	}
	removed, ok := m.assignments[id]
	if !ok {
		return persistence.ErrNotFound
	}
	delete(m.assignments, id)
	if removed.SlotOrder != 0 {
		return nil
	}
	for key, a := range m.assignments {
		if a.WorkerID == removed.WorkerID && a.Day == removed.Day && a.SlotOrder == 1 {
			a.SlotOrder = 0
			m.assignments[key] = a
		}
	}
	return nil
}

// SwapSlots implements application.SlotStore.
func (m *MemoryStore) SwapSlots(ctx context.Context, workerID string, day calendar.Day) ([]application.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("SwapSlots"); err != nil {
		return nil, err
	}
	cell := m.cellLocked(workerID, day)
	if len(cell) != 2 {
		return nil, fmt.Errorf("%w: cell holds %d assignments", persistence.ErrCellConflict, len(cell))
	}
	first, second := cell[0], cell[1]
	first.SlotOrder, second.SlotOrder = second.SlotOrder, first.SlotOrder
	m.assignments[first.ID] = first
	m.assignments[second.ID] = second
	return m.cellLocked(workerID, day), nil
}

// ReplaceDay implements application.SlotStore. The cell is left untouched
// when any insert fails.
func (m *MemoryStore) ReplaceDay(ctx context.Context, workerID string, day calendar.Day, assignments []application.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ReplaceDay"); err != nil {
		return err
	}
	backup := make(map[string]application.Assignment, len(m.assignments))
	for id, a := range m.assignments {
		backup[id] = a
	}
	for _, a := range m.cellLocked(workerID, day) {
		delete(m.assignments, a.ID)
	}
	for _, a := range assignments {
		if a.WorkerID != workerID || a.Day != day {
			m.assignments = backup
			return persistence.ErrConstraintViolation
		}
		if err := m.insertLocked(a); err != nil {
			m.assignments = backup
			return err
		}
	}
	return nil
}

// FindAssignedDays implements application.SlotStore.
func (m *MemoryStore) FindAssignedDays(ctx context.Context, workerID, siteID string, from, to calendar.Day) ([]calendar.Day, error) {
	defer m.runHook("FindAssignedDays")
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("FindAssignedDays"); err != nil {
		return nil, err
	}
	seen := make(map[calendar.Day]struct{})
	var days []calendar.Day
	for _, a := range m.assignments {
		if a.WorkerID != workerID || a.SiteID == nil || *a.SiteID != siteID || !inRange(a.Day, from, to) {
			continue
		}
		if _, ok := seen[a.Day]; ok {
			continue
		}
		seen[a.Day] = struct{}{}
		days = append(days, a.Day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days, nil
}

// ListAssignments implements application.SlotStore.
func (m *MemoryStore) ListAssignments(ctx context.Context, r application.AssignmentRange) ([]application.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ListAssignments"); err != nil {
		return nil, err
	}
	workers := make(map[string]struct{}, len(r.WorkerIDs))
	for _, id := range r.WorkerIDs {
		workers[id] = struct{}{}
	}
	var out []application.Assignment
	for _, a := range m.assignments {
		if _, ok := workers[a.WorkerID]; len(workers) > 0 && !ok {
			continue
		}
		if !inRange(a.Day, r.From, r.To) {
			continue
		}
		out = append(out, m.withSiteName(a))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].WorkerID != out[j].WorkerID {
			return out[i].WorkerID < out[j].WorkerID
		}
		if c := out[i].Day.Compare(out[j].Day); c != 0 {
			return c < 0
		}
		return out[i].SlotOrder < out[j].SlotOrder
	})
	return out, nil
}

// RecentAssignments implements application.SlotStore.
func (m *MemoryStore) RecentAssignments(ctx context.Context, limit int) ([]application.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("RecentAssignments"); err != nil {
		return nil, err
	}
	out := make([]application.Assignment, 0, len(m.assignments))
	for _, a := range m.assignments {
		out = append(out, m.withSiteName(a))
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Day.Compare(out[j].Day); c != 0 {
			return c > 0
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CountBySite implements application.SlotStore.
func (m *MemoryStore) CountBySite(ctx context.Context, from, to calendar.Day) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("CountBySite"); err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, a := range m.assignments {
		if a.SiteID != nil && inRange(a.Day, from, to) {
			counts[*a.SiteID]++
		}
	}
	return counts, nil
}

func (m *MemoryStore) insertLocked(a application.Assignment) error {
	if a.SlotOrder < -1 || a.SlotOrder > 1 {
		return persistence.ErrConstraintViolation
	}
	if !m.hasWorkerLocked(a.WorkerID) {
		return persistence.ErrForeignKeyViolation
	}
	if _, ok := m.assignments[a.ID]; ok {
		return persistence.ErrDuplicate
	}
	for _, existing := range m.assignments {
		if existing.WorkerID == a.WorkerID && existing.Day == a.Day && existing.SlotOrder == a.SlotOrder {
			return persistence.ErrDuplicate
		}
	}
	a.SiteName = ""
	m.assignments[a.ID] = a
	return nil
}

func (m *MemoryStore) hasWorkerLocked(id string) bool {
	for _, w := range m.workers {
		if w.ID == id {
			return true
		}
	}
	return false
}

func (m *MemoryStore) cellLocked(workerID string, day calendar.Day) []application.Assignment {
	var cell []application.Assignment
	for _, a := range m.assignments {
		if a.WorkerID == workerID && a.Day == day {
			cell = append(cell, m.withSiteName(a))
		}
	}
	sort.Slice(cell, func(i, j int) bool {
		if cell[i].SlotOrder != cell[j].SlotOrder {
			return cell[i].SlotOrder < cell[j].SlotOrder
		}
		if !cell[i].CreatedAt.Equal(cell[j].CreatedAt) {
			return cell[i].CreatedAt.Before(cell[j].CreatedAt)
		}
		return cell[i].ID < cell[j].ID
	})
	return cell
}

func (m *MemoryStore) withSiteName(a application.Assignment) application.Assignment {
	a.SiteName = ""
	if a.SiteID == nil {
		return a
	}
	for _, s := range m.sites {
		if s.ID == *a.SiteID {
			a.SiteName = s.Name
			break
		}
	}
	return a
}

func inRange(d, from, to calendar.Day) bool {
	if !from.IsZero() && d.Before(from) {
		return false
	}
	if !to.IsZero() && to.Before(d) {
		return false
	}
	return true
}
