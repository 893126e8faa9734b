package persistence

import (
	"time"

	"github.com/example/site-roster/internal/calendar"
)

// Worker is a person who can be assigned to sites.
type Worker struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RepeatRule is a site's stored repeat pace. Weekdays use ISO numbering.
type RepeatRule struct {
	IntervalMonths int
	Weekdays       []int
	MonthDays      []int
}

// Site is a job site from the ledger.
type Site struct {
	ID             string
	Name           string
	CompanyName    *string
	RepeatRule     *RepeatRule
	UsageThreshold int
	CreatedAt      time.Time
	UpdatedAt      time.Time
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
	UpdatedAt time.Time

	// SiteName is the linked site's current name, filled on reads only.
	SiteName string
}
