package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/example/site-roster/internal/application"
	"github.com/example/site-roster/internal/calendar"
	"github.com/example/site-roster/internal/config"
	"github.com/example/site-roster/internal/history"
	httptransport "github.com/example/site-roster/internal/http"
	"github.com/example/site-roster/internal/logging"
	"github.com/example/site-roster/internal/persistence"
	"github.com/example/site-roster/internal/persistence/sqlite"
	"github.com/example/site-roster/internal/persistence/sqlite/migration"
	"github.com/example/site-roster/internal/recurrence"
	"github.com/example/site-roster/internal/telemetry"
)

const serviceName = "site-roster"

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "hash-token" {
		if err := hashToken(os.Stdout, os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		return
	}

	bootstrap := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		bootstrap.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(os.Stdout, logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		bootstrap.Error("failed to build logger", "error", err)
		os.Exit(1)
	}

	shutdownTracing, err := telemetry.Setup(ctx, serviceName, version, cfg.OTelEndpoint)
	if err != nil {
		logger.Error("failed to set up tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error("failed to flush traces", "error", err)
		}
	}()

	storage, err := sqlite.Open(migration.DefaultSQLiteConfig(cfg.SQLitePath))
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := storage.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if err := storage.Migrate(ctx, logger); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	gate, err := application.NewAdminGate(cfg.AdminTokenHash)
	if err != nil {
		logger.Error("invalid admin token hash", "error", err)
		os.Exit(1)
	}
	if !gate.Enabled() {
		logger.Warn("admin token not configured; ledger writes are open")
	}

	handler := buildHandler(cfg, storage, gate, logger)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("roster API listening", "addr", server.Addr, "timezone", cfg.Timezone, "version", version)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

// buildHandler wires services, handlers and middleware over storage.
func buildHandler(cfg config.Config, storage *sqlite.Storage, gate *application.AdminGate, logger *slog.Logger) http.Handler {
	now := time.Now
	settings := application.Settings{
		Location:          cfg.Location,
		StorageTimeout:    cfg.StorageTimeout,
		RecurrenceWorkers: cfg.RecurrenceWorkers,
		WorkerListLimit:   cfg.WorkerListLimit,
		Logger:            logger,
		IDGenerator:       uuid.NewString,
		Now:               now,
	}

	workers := newWorkerDirectoryAdapter(storage.Workers())
	sites := newSiteCatalogAdapter(storage.Sites())
	slots := newSlotStoreAdapter(storage.Assignments())

	cellService := application.NewCellService(slots, sites, workers, settings)
	recurrenceService := application.NewRecurrenceService(slots, sites, workers, settings)
	gridService := application.NewGridService(slots, workers, settings)
	siteService := application.NewSiteService(sites, slots, settings)
	workerService := application.NewWorkerService(workers, settings)

	registry := history.NewRegistry(cfg.HistoryMaxSessions, cfg.HistorySessionTTL, uuid.NewString)

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}

	return httptransport.NewRouter(httptransport.RouterConfig{
		Schedules: httptransport.NewScheduleHandler(httptransport.ScheduleDeps{
			Cells:      cellService,
			Recurrence: recurrenceService,
			Grid:       gridService,
			History:    registry,
			Location:   cfg.Location,
			Now:        now,
		}, logger),
		History: httptransport.NewHistoryHandler(registry, cellService, logger),
		Sites:   httptransport.NewSiteHandler(siteService, cfg.Location, now, logger),
		Workers: httptransport.NewWorkerHandler(workerService, logger),
		Admin:   httptransport.RequireAdminToken(gate, logger),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.RateLimit(limiter, logger),
		},
	})
}

// hashToken prints the argon2id hash to configure as SCHEDULER_ADMIN_TOKEN_HASH.
func hashToken(w io.Writer, args []string) error {
	if len(args) != 1 || args[0] == "" {
		return errors.New("usage: scheduler hash-token <token>")
	}
	encoded, err := application.CreateTokenHash(args[0], application.DefaultArgon2idParams)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, encoded)
	return err
}

type workerDirectoryAdapter struct {
	repo persistence.WorkerRepository
}

func newWorkerDirectoryAdapter(repo persistence.WorkerRepository) *workerDirectoryAdapter {
	return &workerDirectoryAdapter{repo: repo}
}

func (a *workerDirectoryAdapter) FindWorker(ctx context.Context, id string) (application.Worker, error) {
	worker, err := a.repo.GetWorker(ctx, id)
	if err != nil {
		return application.Worker{}, err
	}
	return toApplicationWorker(worker), nil
}

func (a *workerDirectoryAdapter) ListWorkers(ctx context.Context, limit int) ([]application.Worker, error) {
	workers, err := a.repo.ListWorkers(ctx, limit)
	if err != nil {
		return nil, err
	}
	result := make([]application.Worker, 0, len(workers))
	for _, worker := range workers {
		result = append(result, toApplicationWorker(worker))
	}
	return result, nil
}

func (a *workerDirectoryAdapter) CreateWorker(ctx context.Context, worker application.Worker) error {
	return a.repo.CreateWorker(ctx, persistence.Worker{
		ID:        worker.ID,
		Name:      worker.Name,
		Email:     worker.Email,
		CreatedAt: worker.CreatedAt,
		UpdatedAt: worker.CreatedAt,
	})
}

type siteCatalogAdapter struct {
	repo persistence.SiteRepository
}

func newSiteCatalogAdapter(repo persistence.SiteRepository) *siteCatalogAdapter {
	return &siteCatalogAdapter{repo: repo}
}

func (a *siteCatalogAdapter) FindSite(ctx context.Context, id string) (application.Site, error) {
	site, err := a.repo.GetSite(ctx, id)
	if err != nil {
		return application.Site{}, err
	}
	return toApplicationSite(site), nil
}

func (a *siteCatalogAdapter) FindSiteByName(ctx context.Context, name string) (application.Site, error) {
	site, err := a.repo.FindSiteByName(ctx, name)
	if err != nil {
		return application.Site{}, err
	}
	return toApplicationSite(site), nil
}

func (a *siteCatalogAdapter) CreateSite(ctx context.Context, site application.Site) error {
	return a.repo.CreateSite(ctx, toPersistenceSite(site))
}

func (a *siteCatalogAdapter) UpdateSite(ctx context.Context, site application.Site) error {
	return a.repo.UpdateSite(ctx, toPersistenceSite(site))
}

func (a *siteCatalogAdapter) ListSites(ctx context.Context, limit int) ([]application.Site, error) {
	sites, err := a.repo.ListSites(ctx, limit)
	if err != nil {
		return nil, err
	}
	result := make([]application.Site, 0, len(sites))
	for _, site := range sites {
		result = append(result, toApplicationSite(site))
	}
	return result, nil
}

type slotStoreAdapter struct {
	repo persistence.AssignmentRepository
}

func newSlotStoreAdapter(repo persistence.AssignmentRepository) *slotStoreAdapter {
	return &slotStoreAdapter{repo: repo}
}

func (a *slotStoreAdapter) ListDaySlots(ctx context.Context, workerID string, day calendar.Day) ([]application.Assignment, error) {
	cell, err := a.repo.ListCell(ctx, workerID, day)
	if err != nil {
		return nil, err
	}
	return toApplicationAssignments(cell), nil
}

func (a *slotStoreAdapter) CreateSlot(ctx context.Context, assignment application.Assignment) error {
	return a.repo.CreateAssignment(ctx, toPersistenceAssignment(assignment))
}

func (a *slotStoreAdapter) UpdateSlot(ctx context.Context, id string, site application.Site) error {
	siteID := site.ID
	return a.repo.RetargetAssignment(ctx, persistence.Assignment{
		ID:     id,
		SiteID: &siteID,
		Label:  site.Name,
		Meta:   map[string]any{"siteName": site.Name},
	})
}

func (a *slotStoreAdapter) DeleteSlot(ctx context.Context, id string) error {
	return a.repo.DeleteAssignment(ctx, id)
}

func (a *slotStoreAdapter) SwapSlots(ctx context.Context, workerID string, day calendar.Day) ([]application.Assignment, error) {
	cell, err := a.repo.SwapCell(ctx, workerID, day)
	if err != nil {
		return nil, err
	}
	return toApplicationAssignments(cell), nil
}

func (a *slotStoreAdapter) ReplaceDay(ctx context.Context, workerID string, day calendar.Day, assignments []application.Assignment) error {
	stored := make([]persistence.Assignment, 0, len(assignments))
	for _, assignment := range assignments {
		stored = append(stored, toPersistenceAssignment(assignment))
	}
	return a.repo.ReplaceCell(ctx, workerID, day, stored)
}

func (a *slotStoreAdapter) FindAssignedDays(ctx context.Context, workerID, siteID string, from, to calendar.Day) ([]calendar.Day, error) {
	return a.repo.AssignedDays(ctx, workerID, siteID, from, to)
}

func (a *slotStoreAdapter) ListAssignments(ctx context.Context, r application.AssignmentRange) ([]application.Assignment, error) {
	assignments, err := a.repo.ListAssignments(ctx, persistence.AssignmentFilter{
		WorkerIDs: r.WorkerIDs,
		From:      r.From,
		To:        r.To,
	})
	if err != nil {
		return nil, err
	}
	return toApplicationAssignments(assignments), nil
}

func (a *slotStoreAdapter) RecentAssignments(ctx context.Context, limit int) ([]application.Assignment, error) {
	assignments, err := a.repo.ListAssignments(ctx, persistence.AssignmentFilter{Limit: limit, Newest: true})
	if err != nil {
		return nil, err
	}
	return toApplicationAssignments(assignments), nil
}

func (a *slotStoreAdapter) CountBySite(ctx context.Context, from, to calendar.Day) (map[string]int, error) {
	return a.repo.CountBySite(ctx, from, to)
}

func toApplicationWorker(worker persistence.Worker) application.Worker {
	return application.Worker{
		ID:        worker.ID,
		Name:      worker.Name,
		Email:     worker.Email,
		CreatedAt: worker.CreatedAt,
	}
}

func toApplicationSite(site persistence.Site) application.Site {
	return application.Site{
		ID:             site.ID,
		Name:           site.Name,
		CompanyName:    cloneString(site.CompanyName),
		RepeatRule:     toApplicationRule(site.RepeatRule),
		UsageThreshold: site.UsageThreshold,
		CreatedAt:      site.CreatedAt,
		UpdatedAt:      site.UpdatedAt,
	}
}

func toPersistenceSite(site application.Site) persistence.Site {
	return persistence.Site{
		ID:             site.ID,
		Name:           site.Name,
		CompanyName:    cloneString(site.CompanyName),
		RepeatRule:     toPersistenceRule(site.RepeatRule),
		UsageThreshold: site.UsageThreshold,
		CreatedAt:      site.CreatedAt,
		UpdatedAt:      site.UpdatedAt,
	}
}

func toApplicationRule(rule *persistence.RepeatRule) *recurrence.Rule {
	if rule == nil {
		return nil
	}
	return &recurrence.Rule{
		IntervalMonths: rule.IntervalMonths,
		Weekdays:       append([]int(nil), rule.Weekdays...),
		MonthDays:      append([]int(nil), rule.MonthDays...),
	}
}

func toPersistenceRule(rule *recurrence.Rule) *persistence.RepeatRule {
	if rule == nil {
		return nil
	}
	return &persistence.RepeatRule{
		IntervalMonths: rule.IntervalMonths,
		Weekdays:       append([]int(nil), rule.Weekdays...),
		MonthDays:      append([]int(nil), rule.MonthDays...),
	}
}

func toApplicationAssignments(assignments []persistence.Assignment) []application.Assignment {
	result := make([]application.Assignment, 0, len(assignments))
	for _, assignment := range assignments {
		result = append(result, toApplicationAssignment(assignment))
	}
	return result
}

func toApplicationAssignment(assignment persistence.Assignment) application.Assignment {
	return application.Assignment{
		ID:        assignment.ID,
		WorkerID:  assignment.WorkerID,
		SiteID:    cloneString(assignment.SiteID),
		Day:       assignment.Day,
		SlotOrder: assignment.SlotOrder,
		Label:     assignment.Label,
		Note:      cloneString(assignment.Note),
		Meta:      cloneMeta(assignment.Meta),
		CreatedAt: assignment.CreatedAt,
		SiteName:  assignment.SiteName,
	}
}

func toPersistenceAssignment(assignment application.Assignment) persistence.Assignment {
	return persistence.Assignment{
		ID:        assignment.ID,
		WorkerID:  assignment.WorkerID,
		SiteID:    cloneString(assignment.SiteID),
		Day:       assignment.Day,
		SlotOrder: assignment.SlotOrder,
		Label:     assignment.Label,
		Note:      cloneString(assignment.Note),
		Meta:      cloneMeta(assignment.Meta),
		CreatedAt: assignment.CreatedAt,
		UpdatedAt: assignment.CreatedAt,
	}
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}

func cloneMeta(meta map[string]any) map[string]any {
	if meta == nil {
		return nil
	}
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}
