package application

import (
	"time"

	"github.com/example/site-roster/internal/calendar"
	"github.com/example/site-roster/internal/history"
	"github.com/example/site-roster/internal/recurrence"
)

// Worker is a person who can be assigned to sites.
type Worker struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
}

// Site is a job site from the ledger. CreatedAt's month anchors the repeat pace.
type Site struct {
	ID             string
	Name           string
	CompanyName    *string
	RepeatRule     *recurrence.Rule
	UsageThreshold int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// DisplayLabel renders the site as "company / name", or the bare name.
func (s Site) DisplayLabel() string {
	if s.CompanyName != nil && *s.CompanyName != "" {
		return *s.CompanyName + " / " + s.Name
	}
	return s.Name
}

// Assignment occupies one slot of a worker's day.
type Assignment struct {
	ID        string
	WorkerID  string
	SiteID    *string
	Day       calendar.Day
	SlotOrder int
	Label     string
	Note      *string
	Meta      map[string]any
	CreatedAt time.Time
	// SiteName is the linked site's current name, filled on reads.
	SiteName string
}

// AssignmentRange selects assignments of some workers over an inclusive day range.
type AssignmentRange struct {
	WorkerIDs []string
	From      calendar.Day
	To        calendar.Day
}

// CellAction is a requested change to one worker × day cell.
type CellAction string

const (
	ActionToggle   CellAction = "toggle"
	ActionAdd      CellAction = "add"
	ActionRemove   CellAction = "remove"
	ActionReplace2 CellAction = "replace2"
	ActionSwap     CellAction = "swap"
)

// Valid reports whether a is a known action.
func (a CellAction) Valid() bool {
	switch a {
	case ActionToggle, ActionAdd, ActionRemove, ActionReplace2, ActionSwap:
		return true
	}
	return false
}

// No-op reasons reported with Changed == false.
const (
	ReasonNotFound         = "not-found"
	ReasonAlreadyExists    = "already-exists"
	ReasonCellFull         = "cell-full"
	ReasonNotEnoughEntries = "not-enough-entries"
)

const (
	// ToggledOff marks a toggle that removed the site from the cell.
	ToggledOff = "off"
	// ReplacedSlot2 marks a toggle on a full cell that overwrote the second slot.
	ReplacedSlot2 = "slot2"
)

// CellRequest addresses one cell. Swap ignores the site fields; every other
// action needs SiteID or SiteName.
type CellRequest struct {
	WorkerID string
	Day      calendar.Day
	Action   CellAction
	SiteID   string
	SiteName string
}

// CellResult describes what an action did. Changed == false with a Reason is a
// no-op, not a failure.
type CellResult struct {
	Action   CellAction
	Changed  bool
	Reason   string
	Toggled  string
	Replaced string
	// EntryID is the assignment created or updated, when there is one.
	EntryID string
	// Before and After are the cell snapshots around the action.
	Before history.Slots
	After  history.Slots
}

// SetCellRequest fully replaces a cell with up to two labels, each resolved
// to a site by name.
type SetCellRequest struct {
	WorkerID string
	Day      calendar.Day
	Slots    history.Slots
}

// AutoFillRequest asks the recurrence resolver to fill a worker's month, or
// the explicit days, with a site's repeat pace.
type AutoFillRequest struct {
	WorkerID string
	SiteID   string
	Month    *calendar.Month
	Days     []calendar.Day
}

// AutoFillResult counts the projected candidates. Full lists candidate days
// whose cell already held two other sites.
type AutoFillResult struct {
	Created int
	Skipped int
	Reason  string
	Full    []calendar.Day
}

// SiteInput captures caller provided site fields.
type SiteInput struct {
	Name           string
	CompanyName    *string
	UsageThreshold *int
}

// SitePreview lists the days a site's pace would fill in a month.
type SitePreview struct {
	SiteID     string
	Month      calendar.Month
	Active     bool
	Reason     string
	Candidates []calendar.Day
}

// SiteUsage is a site's monthly assignment count against its threshold.
type SiteUsage struct {
	SiteID    string
	Month     calendar.Month
	Count     int
	Threshold int
	Alert     bool
}

// SiteSuggestion is one quick-input entry for the site picker.
type SiteSuggestion struct {
	ID          string
	Name        string
	CompanyName *string
	Label       string
}

// SiteSuggestions holds ledger entries, or recently used names when the ledger is empty.
type SiteSuggestions struct {
	Sites []SiteSuggestion
	Names []string
}

// WorkerInput captures caller provided worker fields.
type WorkerInput struct {
	Name  string
	Email string
}
