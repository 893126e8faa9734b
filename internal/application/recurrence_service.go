package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/example/site-roster/internal/calendar"
	"github.com/example/site-roster/internal/recurrence"
)

// RecurrenceService fills a worker's calendar with a site's repeat pace.
type RecurrenceService struct {
	slots    SlotStore
	sites    SiteCatalog
	workers  WorkerDirectory
	engine   *recurrence.Engine
	settings Settings
}

// NewRecurrenceService wires the recurrence resolver.
func NewRecurrenceService(slots SlotStore, sites SiteCatalog, workers WorkerDirectory, settings Settings) *RecurrenceService {
	settings = settings.withDefaults()
	return &RecurrenceService{
		slots:    slots,
		sites:    sites,
		workers:  workers,
		engine:   recurrence.NewEngine(settings.Location),
		settings: settings,
	}
}

func (s *RecurrenceService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.settings.Logger, "RecurrenceService", operation, attrs...)
}

// Resolve creates one assignment per candidate day of the site's pace that
// the worker does not already hold for the site. Running it again with the
// same input creates nothing. A failure part way keeps what was created.
func (s *RecurrenceService) Resolve(ctx context.Context, req AutoFillRequest) (result AutoFillResult, err error) {
	if s == nil {
		err = fmt.Errorf("RecurrenceService is nil")
		return
	}

	ctx, span := startSpan(ctx, "RecurrenceService.Resolve")
	logger := s.loggerWith(ctx, "Resolve", "worker_id", req.WorkerID, "site_id", req.SiteID)
	defer func() {
		endSpan(span, err)
		if err != nil {
			logger.ErrorContext(ctx, "auto-fill failed", "error", err, "error_kind", ErrorKind(err), "created", result.Created)
			return
		}
		logger.InfoContext(ctx, "auto-fill finished",
			"created", result.Created,
			"skipped", result.Skipped,
			"full", len(result.Full),
			"reason", result.Reason,
		)
	}()

	vErr := &ValidationError{}
	if strings.TrimSpace(req.WorkerID) == "" {
		vErr.add("workerId", "workerId is required")
	}
	if strings.TrimSpace(req.SiteID) == "" {
		vErr.add("siteId", "siteId is required")
	}
	if _, _, tErr := recurrence.NormalizeTarget(recurrence.Target{Month: req.Month, Days: req.Days}); tErr != nil {
		if tv := targetFieldError(tErr); tv != nil {
			vErr.merge(tv)
		} else {
			err = tErr
			return
		}
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	ctx, cancel := s.settings.storageContext(ctx)
	defer cancel()

	if _, err = s.workers.FindWorker(ctx, req.WorkerID); err != nil {
		err = mapStoreError(err)
		return
	}
	var site Site
	site, err = s.sites.FindSite(ctx, req.SiteID)
	if err != nil {
		err = mapStoreError(err)
		return
	}

	var plan recurrence.Plan
	plan, err = s.engine.Project(ruleOf(site), site.CreatedAt, recurrence.Target{Month: req.Month, Days: req.Days})
	if err != nil {
		err = targetError(err)
		return
	}
	if !plan.Active {
		result.Reason = plan.Reason
		return
	}
	if len(plan.Candidates) == 0 {
		return
	}

	// Read what is already assigned before the first write.
	from, to := plan.Candidates[0], plan.Candidates[len(plan.Candidates)-1]
	var assigned []calendar.Day
	assigned, err = s.slots.FindAssignedDays(ctx, req.WorkerID, site.ID, from, to)
	if err != nil {
		err = mapStoreError(err)
		return
	}
	have := make(map[calendar.Day]struct{}, len(assigned))
	for _, d := range assigned {
		have[d] = struct{}{}
	}

	var (
		mu      sync.Mutex
		created int
		full    []calendar.Day
	)
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(s.settings.RecurrenceWorkers)
	for _, day := range plan.Candidates {
		if _, ok := have[day]; ok {
			continue
		}
		group.Go(func() error {
			outcome, err := s.fill(gctx, req.WorkerID, day, site)
			if err != nil {
				return fmt.Errorf("fill %s: %w", day, err)
			}
			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case fillCreated:
				created++
			case fillFull:
				full = append(full, day)
			}
			return nil
		})
	}
	err = group.Wait()

	sort.Slice(full, func(i, j int) bool { return full[i].Before(full[j]) })
	result.Created = created
	result.Skipped = len(plan.Candidates) - created
	result.Full = full
	if err != nil {
		err = mapStoreError(err)
	}
	return
}

type fillOutcome int

const (
	fillCreated fillOutcome = iota
	// fillPresent means another writer linked the site after the assigned
	// days were read.
	fillPresent
	fillFull
)

// fill creates the site's assignment in the next free slot of the day.
func (s *RecurrenceService) fill(ctx context.Context, workerID string, day calendar.Day, site Site) (fillOutcome, error) {
	existing, err := s.slots.ListDaySlots(ctx, workerID, day)
	if err != nil {
		return fillFull, err
	}
	if findBySite(existing, site.ID) != nil {
		return fillPresent, nil
	}
	if len(existing) >= 2 {
		return fillFull, nil
	}

	siteID := site.ID
	assignment := Assignment{
		ID:        s.settings.IDGenerator(),
		WorkerID:  workerID,
		SiteID:    &siteID,
		Day:       day,
		SlotOrder: nextFreeSlot(existing),
		Label:     site.Name,
		Meta:      map[string]any{"siteName": site.Name},
		CreatedAt: s.settings.Now(),
	}
	if err := s.slots.CreateSlot(ctx, assignment); err != nil {
		return fillFull, err
	}
	return fillCreated, nil
}

func ruleOf(site Site) recurrence.Rule {
	if site.RepeatRule == nil {
		return recurrence.Rule{}
	}
	return *site.RepeatRule
}

// targetFieldError maps target errors from the recurrence engine to field
// errors. Anything else yields nil.
func targetFieldError(err error) *ValidationError {
	switch {
	case errors.Is(err, recurrence.ErrTooManyDays):
		return fieldError("days", fmt.Sprintf("at most %d days per request", recurrence.MaxRequestedDays))
	case errors.Is(err, recurrence.ErrNoTarget):
		return fieldError("month", "month or days is required")
	}
	return nil
}

func targetError(err error) error {
	if vErr := targetFieldError(err); vErr != nil {
		return vErr
	}
	return err
}
