package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/example/site-roster/internal/calendar"
	"github.com/example/site-roster/internal/grid"
	"github.com/example/site-roster/internal/history"
)

const maxLabelLength = 200

// SlotStore captures the assignment storage used by the services. ListDaySlots
// returns a cell ordered by slot.
type SlotStore interface {
	ListDaySlots(ctx context.Context, workerID string, day calendar.Day) ([]Assignment, error)
	CreateSlot(ctx context.Context, assignment Assignment) error
	UpdateSlot(ctx context.Context, id string, site Site) error
	DeleteSlot(ctx context.Context, id string) error
	// SwapSlots exchanges slot 0 and slot 1 atomically and returns the cell afterwards.
	SwapSlots(ctx context.Context, workerID string, day calendar.Day) ([]Assignment, error)
	// ReplaceDay deletes the cell and inserts assignments in one transaction.
	ReplaceDay(ctx context.Context, workerID string, day calendar.Day, assignments []Assignment) error
	FindAssignedDays(ctx context.Context, workerID, siteID string, from, to calendar.Day) ([]calendar.Day, error)
	ListAssignments(ctx context.Context, r AssignmentRange) ([]Assignment, error)
	RecentAssignments(ctx context.Context, limit int) ([]Assignment, error)
	CountBySite(ctx context.Context, from, to calendar.Day) (map[string]int, error)
}

// CellService applies cell actions. It holds no per-caller state; history is
// recorded by the caller from the Before and After snapshots of each result.
type CellService struct {
	slots    SlotStore
	sites    SiteCatalog
	workers  WorkerDirectory
	settings Settings
}

// NewCellService wires the cell engine.
func NewCellService(slots SlotStore, sites SiteCatalog, workers WorkerDirectory, settings Settings) *CellService {
	return &CellService{slots: slots, sites: sites, workers: workers, settings: settings.withDefaults()}
}

func (s *CellService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.settings.Logger, "CellService", operation, attrs...)
}

// Apply interprets req against the cell's current occupancy, which is re-read
// on every call, and performs the resulting writes.
func (s *CellService) Apply(ctx context.Context, req CellRequest) (result CellResult, err error) {
	if s == nil {
		err = fmt.Errorf("CellService is nil")
		return
	}

	ctx, span := startSpan(ctx, "CellService.Apply")
	logger := s.loggerWith(ctx, "Apply",
		"worker_id", req.WorkerID,
		"day", req.Day.String(),
		"action", string(req.Action),
	)
	defer func() {
		endSpan(span, err)
		switch {
		case err != nil:
			logger.ErrorContext(ctx, "cell action failed", "error", err, "error_kind", ErrorKind(err))
		case !result.Changed:
			logger.DebugContext(ctx, "cell action was a no-op", "reason", result.Reason)
		default:
			logger.InfoContext(ctx, "cell changed", "entry_id", result.EntryID)
		}
	}()

	if vErr := validateCellRequest(req); vErr.HasErrors() {
		err = vErr
		return
	}

	ctx, cancel := s.settings.storageContext(ctx)
	defer cancel()

	if err = s.ensureWorker(ctx, req.WorkerID); err != nil {
		return
	}

	var existing []Assignment
	existing, err = s.slots.ListDaySlots(ctx, req.WorkerID, req.Day)
	if err != nil {
		err = mapStoreError(err)
		return
	}
	result = CellResult{Action: req.Action, Before: snapshotOf(existing)}

	if req.Action == ActionSwap {
		result, err = s.swap(ctx, req, existing, result)
		return
	}

	var site Site
	site, err = s.resolveSite(ctx, req.SiteID, req.SiteName)
	if err != nil {
		return
	}

	result, err = s.transition(ctx, req, existing, site, result)
	if err != nil || !result.Changed {
		result.After = result.Before
		return
	}

	var after []Assignment
	after, err = s.slots.ListDaySlots(ctx, req.WorkerID, req.Day)
	if err != nil {
		err = mapStoreError(err)
		return
	}
	result.After = snapshotOf(after)
	return
}

func (s *CellService) transition(ctx context.Context, req CellRequest, existing []Assignment, site Site, result CellResult) (CellResult, error) {
	hit := findBySite(existing, site.ID)

	switch req.Action {
	case ActionRemove:
		if hit == nil {
			return noOp(result, ReasonNotFound), nil
		}
		return s.delete(ctx, hit, result)

	case ActionToggle:
		if hit != nil {
			result.Toggled = ToggledOff
			return s.delete(ctx, hit, result)
		}
		if len(existing) >= 2 {
			result.Replaced = ReplacedSlot2
			return s.retarget(ctx, &existing[1], site, result)
		}
		fallthrough

	case ActionAdd:
		if hit != nil {
			return noOp(result, ReasonAlreadyExists), nil
		}
		if len(existing) >= 2 {
			return noOp(result, ReasonCellFull), nil
		}
		return s.create(ctx, req, nextFreeSlot(existing), site, result)

	case ActionReplace2:
		if hit != nil {
			return noOp(result, ReasonAlreadyExists), nil
		}
		if second := findBySlot(existing, 1); second != nil {
			return s.retarget(ctx, second, site, result)
		}
		return s.create(ctx, req, nextFreeSlot(existing), site, result)
	}

	return result, fieldError("action", "unsupported action")
}

// swap exchanges the two slots inside one storage transaction and verifies the
// stored order before reporting success.
func (s *CellService) swap(ctx context.Context, req CellRequest, existing []Assignment, result CellResult) (CellResult, error) {
	if len(existing) < 2 {
		result = noOp(result, ReasonNotEnoughEntries)
		result.After = result.Before
		return result, nil
	}

	after, err := s.slots.SwapSlots(ctx, req.WorkerID, req.Day)
	if err != nil {
		return result, mapStoreError(err)
	}
	if len(after) != 2 || after[0].ID != existing[1].ID || after[1].ID != existing[0].ID {
		return result, fmt.Errorf("%w: swap left unexpected slot order", ErrConflict)
	}

	result.Changed = true
	result.After = snapshotOf(after)
	return result, nil
}

func (s *CellService) delete(ctx context.Context, target *Assignment, result CellResult) (CellResult, error) {
	if err := s.slots.DeleteSlot(ctx, target.ID); err != nil {
		return result, mapStoreError(err)
	}
	result.Changed = true
	result.EntryID = target.ID
	return result, nil
}

func (s *CellService) retarget(ctx context.Context, target *Assignment, site Site, result CellResult) (CellResult, error) {
	if err := s.slots.UpdateSlot(ctx, target.ID, site); err != nil {
		return result, mapStoreError(err)
	}
	result.Changed = true
	result.EntryID = target.ID
	return result, nil
}

func (s *CellService) create(ctx context.Context, req CellRequest, slot int, site Site, result CellResult) (CellResult, error) {
	assignment := s.newAssignment(req.WorkerID, req.Day, slot, site)
	if err := s.slots.CreateSlot(ctx, assignment); err != nil {
		return result, mapStoreError(err)
	}
	result.Changed = true
	result.EntryID = assignment.ID
	return result, nil
}

func (s *CellService) newAssignment(workerID string, day calendar.Day, slot int, site Site) Assignment {
	siteID := site.ID
	return Assignment{
		ID:        s.settings.IDGenerator(),
		WorkerID:  workerID,
		SiteID:    &siteID,
		Day:       day,
		SlotOrder: slot,
		Label:     site.Name,
		Meta:      map[string]any{"siteName": site.Name},
		CreatedAt: s.settings.Now(),
		SiteName:  site.Name,
	}
}

// Snapshot returns the labels currently held by slot 0 and slot 1.
func (s *CellService) Snapshot(ctx context.Context, workerID string, day calendar.Day) (slots history.Slots, err error) {
	if s == nil {
		return slots, fmt.Errorf("CellService is nil")
	}
	vErr := &ValidationError{}
	validateCellKey(workerID, day, vErr)
	if vErr.HasErrors() {
		return slots, vErr
	}

	ctx, cancel := s.settings.storageContext(ctx)
	defer cancel()

	if err = s.ensureWorker(ctx, workerID); err != nil {
		return slots, err
	}
	existing, err := s.slots.ListDaySlots(ctx, workerID, day)
	if err != nil {
		return slots, mapStoreError(err)
	}
	return snapshotOf(existing), nil
}

// SetCell replaces the whole cell: every assignment of the day is deleted and
// each non-empty label is recreated in order, resolving or creating the site
// by name.
func (s *CellService) SetCell(ctx context.Context, req SetCellRequest) (result CellResult, err error) {
	if s == nil {
		err = fmt.Errorf("CellService is nil")
		return
	}

	ctx, span := startSpan(ctx, "CellService.SetCell")
	logger := s.loggerWith(ctx, "SetCell", "worker_id", req.WorkerID, "day", req.Day.String())
	defer func() {
		endSpan(span, err)
		if err != nil {
			logger.ErrorContext(ctx, "cell replace failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "cell replaced", "changed", result.Changed)
	}()

	vErr := &ValidationError{}
	validateCellKey(req.WorkerID, req.Day, vErr)
	labels := [2]string{}
	for i, label := range req.Slots {
		if label == nil {
			continue
		}
		labels[i] = strings.TrimSpace(*label)
		if utf8.RuneCountInString(labels[i]) > maxLabelLength {
			vErr.add(fmt.Sprintf("slot%d", i), "label is too long")
		}
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	ctx, cancel := s.settings.storageContext(ctx)
	defer cancel()

	if err = s.ensureWorker(ctx, req.WorkerID); err != nil {
		return
	}

	var existing []Assignment
	existing, err = s.slots.ListDaySlots(ctx, req.WorkerID, req.Day)
	if err != nil {
		err = mapStoreError(err)
		return
	}
	result = CellResult{Before: snapshotOf(existing)}

	// Labels are packed to the front: an empty slot 0 moves slot 1 up.
	var assignments []Assignment
	for _, label := range labels {
		if label == "" {
			continue
		}
		var site Site
		site, err = s.resolveSite(ctx, "", label)
		if err != nil {
			return
		}
		slot := len(assignments)
		assignments = append(assignments, s.newAssignment(req.WorkerID, req.Day, slot, site))
		name := site.Name
		result.After[slot] = &name
	}

	if err = s.slots.ReplaceDay(ctx, req.WorkerID, req.Day, assignments); err != nil {
		err = mapStoreError(err)
		return
	}
	result.Changed = !result.Before.Equal(result.After)
	return
}

// RestoreCell implements history.Restorer with a full replace.
func (s *CellService) RestoreCell(ctx context.Context, workerID string, day calendar.Day, slots history.Slots) error {
	_, err := s.SetCell(ctx, SetCellRequest{WorkerID: workerID, Day: day, Slots: slots})
	return err
}

func (s *CellService) ensureWorker(ctx context.Context, workerID string) error {
	if s.workers == nil {
		return nil
	}
	if _, err := s.workers.FindWorker(ctx, workerID); err != nil {
		return mapStoreError(err)
	}
	return nil
}

// resolveSite finds the site by id, else by exact trimmed name, creating it
// when no site has that name. Concurrent callers may create duplicates.
func (s *CellService) resolveSite(ctx context.Context, siteID, siteName string) (Site, error) {
	if siteID != "" {
		site, err := s.sites.FindSite(ctx, siteID)
		if err != nil {
			return Site{}, mapStoreError(err)
		}
		return site, nil
	}

	name := strings.TrimSpace(siteName)
	site, err := s.sites.FindSiteByName(ctx, name)
	if err == nil {
		return site, nil
	}
	if err = mapStoreError(err); !errors.Is(err, ErrNotFound) {
		return Site{}, err
	}

	now := s.settings.Now()
	site = Site{
		ID:             s.settings.IDGenerator(),
		Name:           name,
		UsageThreshold: defaultUsageThreshold,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.sites.CreateSite(ctx, site); err != nil {
		return Site{}, mapStoreError(err)
	}
	s.loggerWith(ctx, "resolveSite", "site_id", site.ID).InfoContext(ctx, "site created from cell input")
	return site, nil
}

func validateCellKey(workerID string, day calendar.Day, vErr *ValidationError) {
	if strings.TrimSpace(workerID) == "" {
		vErr.add("workerId", "workerId is required")
	}
	if day.IsZero() {
		vErr.add("day", "day must be YYYY-MM-DD")
	}
}

func validateCellRequest(req CellRequest) *ValidationError {
	vErr := &ValidationError{}
	validateCellKey(req.WorkerID, req.Day, vErr)
	if !req.Action.Valid() {
		vErr.add("action", "action must be one of toggle, add, remove, replace2, swap")
		return vErr
	}
	if req.Action == ActionSwap {
		return vErr
	}
	name := strings.TrimSpace(req.SiteName)
	switch {
	case req.SiteID == "" && name == "":
		vErr.add("siteName", "siteId or siteName is required")
	case utf8.RuneCountInString(name) > maxLabelLength:
		vErr.add("siteName", "siteName is too long")
	}
	return vErr
}

func noOp(result CellResult, reason string) CellResult {
	result.Changed = false
	result.Reason = reason
	return result
}

func findBySite(entries []Assignment, siteID string) *Assignment {
	for i := range entries {
		if entries[i].SiteID != nil && *entries[i].SiteID == siteID {
			return &entries[i]
		}
	}
	return nil
}

func findBySlot(entries []Assignment, slot int) *Assignment {
	for i := range entries {
		if entries[i].SlotOrder == slot {
			return &entries[i]
		}
	}
	return nil
}

// nextFreeSlot returns 0 for an empty cell and 1 otherwise. Deletes keep a
// lone assignment in slot 0, so a new one always lands behind it.
func nextFreeSlot(entries []Assignment) int {
	if findBySlot(entries, 0) == nil {
		return 0
	}
	return 1
}

// snapshotOf reads the cell the way the grid renders it: the first two
// labeled entries in slot order.
func snapshotOf(entries []Assignment) history.Slots {
	gridEntries := make([]grid.Entry, 0, len(entries))
	for _, a := range entries {
		gridEntries = append(gridEntries, toGridEntry(a))
	}
	var slots history.Slots
	for i, label := range grid.CellLabels(gridEntries) {
		if i >= len(slots) {
			break
		}
		slots[i] = &label
	}
	return slots
}
