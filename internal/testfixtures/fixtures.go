package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/site-roster/internal/application"
	"github.com/example/site-roster/internal/calendar"
	"github.com/example/site-roster/internal/persistence"
	"github.com/example/site-roster/internal/recurrence"
)

var (
	workerCounter     uint64
	siteCounter       uint64
	assignmentCounter uint64
)

// Tokyo is the zone the roster evaluates calendar days in.
var Tokyo = time.FixedZone("JST", 9*60*60)

var referenceTime = time.Date(2025, time.March, 3, 9, 0, 0, 0, Tokyo)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// MustDay parses a YYYY-MM-DD key and panics on malformed input.
func MustDay(value string) calendar.Day {
	d, err := calendar.ParseDay(value)
	if err != nil {
		panic(err)
	}
	return d
}

// MustMonth parses a YYYY-MM key and panics on malformed input.
func MustMonth(value string) calendar.Month {
	m, err := calendar.ParseMonth(value)
	if err != nil {
		panic(err)
	}
	return m
}

// ---------------------------- Worker fixtures ----------------------------

// WorkerFixture represents a deterministic worker record.
type WorkerFixture struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
}

// WorkerOption configures the generated worker fixture.
type WorkerOption func(*WorkerFixture)

// NewWorkerFixture returns a deterministic worker fixture with optional overrides.
func NewWorkerFixture(opts ...WorkerOption) WorkerFixture {
	idx := atomic.AddUint64(&workerCounter, 1)
	id := fmt.Sprintf("worker-%03d", idx)
	fixture := WorkerFixture{
		ID:        id,
		Name:      fmt.Sprintf("Worker %03d", idx),
		Email:     fmt.Sprintf("%s@example.com", id),
		CreatedAt: referenceTime.Add(time.Duration(idx) * time.Minute),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithWorkerID overrides the generated worker ID.
func WithWorkerID(id string) WorkerOption {
	return func(f *WorkerFixture) {
		f.ID = id
	}
}

// WithWorkerName overrides the generated name.
func WithWorkerName(name string) WorkerOption {
	return func(f *WorkerFixture) {
		f.Name = name
	}
}

// WithWorkerEmail overrides the generated email address.
func WithWorkerEmail(email string) WorkerOption {
	return func(f *WorkerFixture) {
		f.Email = email
	}
}

// Application returns the fixture as an application.Worker value.
func (f WorkerFixture) Application() application.Worker {
	return application.Worker{ID: f.ID, Name: f.Name, Email: f.Email, CreatedAt: f.CreatedAt}
}

// Persistence returns the fixture as a persistence.Worker value.
func (f WorkerFixture) Persistence() persistence.Worker {
	return persistence.Worker{ID: f.ID, Name: f.Name, Email: f.Email, CreatedAt: f.CreatedAt, UpdatedAt: f.CreatedAt}
}

// ----------------------------- Site fixtures -----------------------------

// SiteFixture represents a deterministic ledger site.
type SiteFixture struct {
	ID             string
	Name           string
	CompanyName    *string
	RepeatRule     *recurrence.Rule
	UsageThreshold int
	CreatedAt      time.Time
}

// SiteOption configures the generated site fixture.
type SiteOption func(*SiteFixture)

// NewSiteFixture returns a deterministic site fixture with optional overrides.
func NewSiteFixture(opts ...SiteOption) SiteFixture {
	idx := atomic.AddUint64(&siteCounter, 1)
	fixture := SiteFixture{
		ID:             fmt.Sprintf("site-%03d", idx),
		Name:           fmt.Sprintf("Site %03d", idx),
		UsageThreshold: 10,
		CreatedAt:      referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithSiteID overrides the generated site ID.
func WithSiteID(id string) SiteOption {
	return func(f *SiteFixture) {
		f.ID = id
	}
}

// WithSiteName overrides the generated site name.
func WithSiteName(name string) SiteOption {
	return func(f *SiteFixture) {
		f.Name = name
	}
}

// WithSiteCompany sets the company the site belongs to.
func WithSiteCompany(company string) SiteOption {
	return func(f *SiteFixture) {
		f.CompanyName = &company
	}
}

// WithSiteRule sets the site's repeat rule.
func WithSiteRule(rule recurrence.Rule) SiteOption {
	return func(f *SiteFixture) {
		f.RepeatRule = &rule
	}
}

// WithSiteThreshold overrides the monthly usage threshold.
func WithSiteThreshold(threshold int) SiteOption {
	return func(f *SiteFixture) {
		f.UsageThreshold = threshold
	}
}

// WithSiteCreatedAt sets the creation instant, which anchors the repeat pace.
func WithSiteCreatedAt(t time.Time) SiteOption {
	return func(f *SiteFixture) {
		f.CreatedAt = t
	}
}

// Application returns the fixture as an application.Site value.
func (f SiteFixture) Application() application.Site {
	return application.Site{
		ID:             f.ID,
		Name:           f.Name,
		CompanyName:    f.CompanyName,
		RepeatRule:     f.RepeatRule,
		UsageThreshold: f.UsageThreshold,
		CreatedAt:      f.CreatedAt,
		UpdatedAt:      f.CreatedAt,
	}
}

// Persistence returns the fixture as a persistence.Site value.
func (f SiteFixture) Persistence() persistence.Site {
	site := persistence.Site{
		ID:             f.ID,
		Name:           f.Name,
		CompanyName:    f.CompanyName,
		UsageThreshold: f.UsageThreshold,
		CreatedAt:      f.CreatedAt,
		UpdatedAt:      f.CreatedAt,
	}
	if f.RepeatRule != nil {
		site.RepeatRule = &persistence.RepeatRule{
			IntervalMonths: f.RepeatRule.IntervalMonths,
			Weekdays:       f.RepeatRule.Weekdays,
			MonthDays:      f.RepeatRule.MonthDays,
		}
	}
	return site
}

// -------------------------- Assignment fixtures --------------------------

// AssignmentFixture represents one occupied slot.
type AssignmentFixture struct {
	ID        string
	WorkerID  string
	SiteID    *string
	Day       calendar.Day
	SlotOrder int
	Label     string
	Note      *string
	Meta      map[string]any
	CreatedAt time.Time
}

// AssignmentOption configures the generated assignment fixture.
type AssignmentOption func(*AssignmentFixture)

// NewAssignmentFixture returns an assignment of site in the worker's day at
// slot 0, labeled with the site name.
func NewAssignmentFixture(workerID string, day calendar.Day, site SiteFixture, opts ...AssignmentOption) AssignmentFixture {
	idx := atomic.AddUint64(&assignmentCounter, 1)
	siteID := site.ID
	fixture := AssignmentFixture{
		ID:        fmt.Sprintf("assignment-%03d", idx),
		WorkerID:  workerID,
		SiteID:    &siteID,
		Day:       day,
		Label:     site.Name,
		Meta:      map[string]any{"siteName": site.Name},
		CreatedAt: referenceTime.Add(time.Duration(idx) * time.Second),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithSlot places the assignment in slot.
func WithSlot(slot int) AssignmentOption {
	return func(f *AssignmentFixture) {
		f.SlotOrder = slot
	}
}

// WithoutSite unlinks the assignment, leaving only its label and metadata.
func WithoutSite() AssignmentOption {
	return func(f *AssignmentFixture) {
		f.SiteID = nil
	}
}

// WithMeta replaces the assignment metadata.
func WithMeta(meta map[string]any) AssignmentOption {
	return func(f *AssignmentFixture) {
		f.Meta = meta
	}
}

// WithLabel overrides the free-text label.
func WithLabel(label string) AssignmentOption {
	return func(f *AssignmentFixture) {
		f.Label = label
	}
}

// Application returns the fixture as an application.Assignment value.
func (f AssignmentFixture) Application() application.Assignment {
	return application.Assignment{
		ID:        f.ID,
		WorkerID:  f.WorkerID,
		SiteID:    f.SiteID,
		Day:       f.Day,
		SlotOrder: f.SlotOrder,
		Label:     f.Label,
		Note:      f.Note,
		Meta:      f.Meta,
		CreatedAt: f.CreatedAt,
	}
}

// Persistence returns the fixture as a persistence.Assignment value.
func (f AssignmentFixture) Persistence() persistence.Assignment {
	return persistence.Assignment{
		ID:        f.ID,
		WorkerID:  f.WorkerID,
		SiteID:    f.SiteID,
		Day:       f.Day,
		SlotOrder: f.SlotOrder,
		Label:     f.Label,
		Note:      f.Note,
		Meta:      f.Meta,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.CreatedAt,
	}
}
