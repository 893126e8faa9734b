// Package calendar holds the local calendar-day arithmetic shared by the
// scheduling engine and its views. A Day is a date in the site's local time
// zone and carries no clock component.
package calendar

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	dayLayout   = "2006-01-02"
	monthLayout = "2006-01"
)

var (
	// ErrInvalidDay is returned when a day key is not a real YYYY-MM-DD date.
	ErrInvalidDay = errors.New("calendar: invalid day")
	// ErrInvalidMonth is returned when a month key is not YYYY-MM.
	ErrInvalidMonth = errors.New("calendar: invalid month")
	// ErrInvalidYear is returned when a year key is not a four digit year.
	ErrInvalidYear = errors.New("calendar: invalid year")
)

// Day identifies a calendar date.
type Day struct {
	Year  int
	Month time.Month
	Day   int
}

// Month identifies a calendar month.
type Month struct {
	Year  int
	Month time.Month
}

// ParseDay parses a YYYY-MM-DD key, rejecting impossible dates such as 2025-02-30.
func ParseDay(value string) (Day, error) {
	value = strings.TrimSpace(value)
	t, err := time.Parse(dayLayout, value)
	if err != nil {
		return Day{}, fmt.Errorf("%w: %q", ErrInvalidDay, value)
	}
	return DayOf(t), nil
}

// ParseMonth parses a YYYY-MM key.
func ParseMonth(value string) (Month, error) {
	value = strings.TrimSpace(value)
	t, err := time.Parse(monthLayout, value)
	if err != nil {
		return Month{}, fmt.Errorf("%w: %q", ErrInvalidMonth, value)
	}
	return Month{Year: t.Year(), Month: t.Month()}, nil
}

// ParseYear parses a four digit year.
func ParseYear(value string) (int, error) {
	value = strings.TrimSpace(value)
	if len(value) != 4 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidYear, value)
	}
	year, err := strconv.Atoi(value)
	if err != nil || year < 1 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidYear, value)
	}
	return year, nil
}

// DayOf returns the calendar date of t in t's own location.
func DayOf(t time.Time) Day {
	y, m, d := t.Date()
	return Day{Year: y, Month: m, Day: d}
}

// DayIn returns the calendar date of t as observed in loc.
func DayIn(t time.Time, loc *time.Location) Day {
	if loc == nil {
		loc = time.UTC
	}
	return DayOf(t.In(loc))
}

// String renders the YYYY-MM-DD key.
func (d Day) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// IsZero reports whether d is the zero Day.
func (d Day) IsZero() bool {
	return d == Day{}
}

// Time returns local midnight of d in loc.
func (d Day) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// AddDays moves d by n calendar days. Calendar arithmetic happens in UTC so
// daylight saving transitions never skip or repeat a date.
func (d Day) AddDays(n int) Day {
	return DayOf(d.Time(time.UTC).AddDate(0, 0, n))
}

// Before reports whether d is strictly earlier than other.
func (d Day) Before(other Day) bool {
	return d.Compare(other) < 0
}

// Compare orders days chronologically.
func (d Day) Compare(other Day) int {
	switch {
	case d.Year != other.Year:
		return cmpInt(d.Year, other.Year)
	case d.Month != other.Month:
		return cmpInt(int(d.Month), int(other.Month))
	default:
		return cmpInt(d.Day, other.Day)
	}
}

// ISOWeekday returns 1 for Monday through 7 for Sunday.
func (d Day) ISOWeekday() int {
	wd := int(d.Time(time.UTC).Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// StartOfWeek returns the Monday on or before d.
func (d Day) StartOfWeek() Day {
	return d.AddDays(-(d.ISOWeekday() - 1))
}

// MonthOf returns the month containing d.
func (d Day) MonthOf() Month {
	return Month{Year: d.Year, Month: d.Month}
}

// String renders the YYYY-MM key.
func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Index returns year*12 + (month-1), the linear month number used for pacing.
func (m Month) Index() int {
	return m.Year*12 + int(m.Month) - 1
}

// FirstDay returns the first day of m.
func (m Month) FirstDay() Day {
	return Day{Year: m.Year, Month: m.Month, Day: 1}
}

// LastDay returns the last day of m.
func (m Month) LastDay() Day {
	return m.FirstDay().AddDays(m.DaysIn() - 1)
}

// DaysIn returns the number of days in m.
func (m Month) DaysIn() int {
	return time.Date(m.Year, m.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Days lists every day of m in order.
func (m Month) Days() []Day {
	n := m.DaysIn()
	days := make([]Day, 0, n)
	for i := 1; i <= n; i++ {
		days = append(days, Day{Year: m.Year, Month: m.Month, Day: i})
	}
	return days
}

// Contains reports whether d falls in m.
func (m Month) Contains(d Day) bool {
	return d.Year == m.Year && d.Month == m.Month
}

// MonthIn returns the month of t as observed in loc.
func MonthIn(t time.Time, loc *time.Location) Month {
	return DayIn(t, loc).MonthOf()
}

// Week returns the seven days starting at start.
func Week(start Day) []Day {
	days := make([]Day, 7)
	for i := range days {
		days[i] = start.AddDays(i)
	}
	return days
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
