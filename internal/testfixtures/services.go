package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/site-roster/internal/application"
)

// ServiceFactory assists tests with constructing the roster services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// Settings returns service settings bound to the factory clock and ID
// generator, evaluated in Tokyo. Logger may be nil.
func (f *ServiceFactory) Settings(logger *slog.Logger) application.Settings {
	return application.Settings{
		Location:          Tokyo,
		StorageTimeout:    time.Second,
		RecurrenceWorkers: 4,
		Logger:            logger,
		IDGenerator:       f.IDGenerator.NextFunc(),
		Now:               f.Clock.NowFunc(),
	}
}

// RosterDeps captures the storage the roster services read and write. Any
// nil field falls back to Store.
type RosterDeps struct {
	Store   *MemoryStore
	Slots   application.SlotStore
	Sites   application.SiteCatalog
	Workers application.WorkerDirectory
	Logger  *slog.Logger
}

// Roster bundles every application service over one storage.
type Roster struct {
	Cells      *application.CellService
	Recurrence *application.RecurrenceService
	Grid       *application.GridService
	Sites      *application.SiteService
	Workers    *application.WorkerService
}

// NewRoster builds the roster services using the supplied dependencies
// combined with the factory defaults.
func (f *ServiceFactory) NewRoster(deps RosterDeps) Roster {
	if deps.Store == nil && (deps.Slots == nil || deps.Sites == nil || deps.Workers == nil) {
		deps.Store = NewMemoryStore()
	}
	slots, sites, workers := deps.Slots, deps.Sites, deps.Workers
	if slots == nil {
		slots = deps.Store
	}
	if sites == nil {
		sites = deps.Store
	}
	if workers == nil {
		workers = deps.Store
	}
	settings := f.Settings(deps.Logger)
	return Roster{
		Cells:      application.NewCellService(slots, sites, workers, settings),
		Recurrence: application.NewRecurrenceService(slots, sites, workers, settings),
		Grid:       application.NewGridService(slots, workers, settings),
		Sites:      application.NewSiteService(sites, slots, settings),
		Workers:    application.NewWorkerService(workers, settings),
	}
}
