package recurrence

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/example/site-roster/internal/calendar"
)

var jst = time.FixedZone("JST", 9*60*60)

const (
	// MaxIntervalMonths is the longest supported pace.
	MaxIntervalMonths = 12
	// MaxRequestedDays bounds the explicit day list accepted for a single projection.
	MaxRequestedDays = 62

	// ReasonOffPace explains an empty projection for a month outside the pace.
	ReasonOffPace = "off-pace month"
	// ReasonNoRule explains an empty projection for a site without weekdays or month days.
	ReasonNoRule = "no repeat rule configured"
)

var (
	// ErrInvalidInterval indicates the month interval is outside 1..12.
	ErrInvalidInterval = errors.New("recurrence: interval must be between 1 and 12 months")
	// ErrInvalidWeekday indicates a weekday outside 1 (Monday) .. 7 (Sunday).
	ErrInvalidWeekday = errors.New("recurrence: weekday must be between 1 and 7")
	// ErrInvalidMonthDay indicates a day of month outside 1..31.
	ErrInvalidMonthDay = errors.New("recurrence: month day must be between 1 and 31")
	// ErrTooManyDays indicates the explicit day list exceeds MaxRequestedDays.
	ErrTooManyDays = errors.New("recurrence: too many days requested")
	// ErrNoTarget indicates neither a month nor explicit days were supplied.
	ErrNoTarget = errors.New("recurrence: month or days required")
)

// Rule is a site's repeat pace. Weekdays use ISO numbering (Monday=1).
type Rule struct {
	IntervalMonths int
	Weekdays       []int
	MonthDays      []int
}

// Configured reports whether the rule selects any day at all.
func (r Rule) Configured() bool {
	return len(r.Weekdays) > 0 || len(r.MonthDays) > 0
}

// Interval returns the effective interval; unset or out of range values pace every month.
func (r Rule) Interval() int {
	if r.IntervalMonths < 1 || r.IntervalMonths > MaxIntervalMonths {
		return 1
	}
	return r.IntervalMonths
}

// Validate checks the rule bounds strictly, for use when a rule is being stored.
func (r Rule) Validate() error {
	if r.IntervalMonths < 1 || r.IntervalMonths > MaxIntervalMonths {
		return fmt.Errorf("%w: %d", ErrInvalidInterval, r.IntervalMonths)
	}
	for _, wd := range r.Weekdays {
		if wd < 1 || wd > 7 {
			return fmt.Errorf("%w: %d", ErrInvalidWeekday, wd)
		}
	}
	for _, md := range r.MonthDays {
		if md < 1 || md > 31 {
			return fmt.Errorf("%w: %d", ErrInvalidMonthDay, md)
		}
	}
	return nil
}

// Normalize returns a copy with sorted, de-duplicated, in-range sets.
func (r Rule) Normalize() Rule {
	return Rule{
		IntervalMonths: r.Interval(),
		Weekdays:       uniqueInRange(r.Weekdays, 1, 7),
		MonthDays:      uniqueInRange(r.MonthDays, 1, 31),
	}
}

// Matches reports whether day is selected by the rule's weekday or month-day sets.
func (r Rule) Matches(day calendar.Day) bool {
	for _, md := range r.MonthDays {
		if md == day.Day {
			return true
		}
	}
	wd := day.ISOWeekday()
	for _, w := range r.Weekdays {
		if w == wd {
			return true
		}
	}
	return false
}

// Target selects the month to project, optionally restricted to explicit days.
type Target struct {
	Month *calendar.Month
	Days  []calendar.Day
}

// Plan is the outcome of projecting a rule onto a target.
type Plan struct {
	Month      calendar.Month
	Active     bool
	Reason     string
	Candidates []calendar.Day
}

// Engine projects repeat rules onto calendar months in a fixed time zone.
type Engine struct {
	location *time.Location
}

// NewEngine constructs an Engine evaluating anchor months in loc.
// If loc is nil, Asia/Tokyo (JST) is used.
func NewEngine(loc *time.Location) *Engine {
	if loc == nil {
		loc = jst
	}
	return &Engine{location: loc}
}

// Location returns the engine's time zone.
func (e *Engine) Location() *time.Location {
	if e == nil || e.location == nil {
		return jst
	}
	return e.location
}

// AnchorMonth returns the month of a site's creation instant in the engine's zone.
func (e *Engine) AnchorMonth(createdAt time.Time) calendar.Month {
	return calendar.MonthIn(createdAt, e.Location())
}

// IsActiveMonth reports whether month lies on the pace counted from anchor.
// Months before the anchor are gated by the same modular rule.
func IsActiveMonth(rule Rule, anchor, month calendar.Month) bool {
	interval := rule.Interval()
	if interval == 1 {
		return true
	}
	diff := month.Index() - anchor.Index()
	return floorMod(diff, interval) == 0
}

// NormalizeTarget sorts and de-duplicates the requested days and resolves the
// effective month: the explicit month, else the month of the earliest day.
// The day limit applies to the list as supplied, duplicates included.
func NormalizeTarget(target Target) (calendar.Month, []calendar.Day, error) {
	if len(target.Days) > MaxRequestedDays {
		return calendar.Month{}, nil, fmt.Errorf("%w: %d > %d", ErrTooManyDays, len(target.Days), MaxRequestedDays)
	}
	days := uniqueDays(target.Days)

	var month calendar.Month
	switch {
	case target.Month != nil:
		month = *target.Month
	case len(days) > 0:
		month = days[0].MonthOf()
	default:
		return calendar.Month{}, nil, ErrNoTarget
	}
	return month, days, nil
}

// Project computes the candidate days for rule on target, gating on the pace
// anchored at createdAt. It never touches storage.
func (e *Engine) Project(rule Rule, createdAt time.Time, target Target) (Plan, error) {
	month, days, err := NormalizeTarget(target)
	if err != nil {
		return Plan{}, err
	}

	plan := Plan{Month: month}
	if !IsActiveMonth(rule, e.AnchorMonth(createdAt), month) {
		plan.Reason = ReasonOffPace
		return plan, nil
	}
	if !rule.Configured() {
		plan.Reason = ReasonNoRule
		return plan, nil
	}

	plan.Active = true
	pool := month.Days()
	if len(days) > 0 {
		pool = make([]calendar.Day, 0, len(days))
		for _, d := range days {
			if month.Contains(d) {
				pool = append(pool, d)
			}
		}
	}
	for _, d := range pool {
		if rule.Matches(d) {
			plan.Candidates = append(plan.Candidates, d)
		}
	}
	return plan, nil
}

func floorMod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

func uniqueInRange(values []int, lo, hi int) []int {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[int]struct{}, len(values))
	out := make([]int, 0, len(values))
	for _, v := range values {
		if v < lo || v > hi {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

func uniqueDays(days []calendar.Day) []calendar.Day {
	if len(days) == 0 {
		return nil
	}
	seen := make(map[calendar.Day]struct{}, len(days))
	out := make([]calendar.Day, 0, len(days))
	for _, d := range days {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
