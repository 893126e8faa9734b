package testfixtures

import (
	"sync"
	"time"

	"github.com/example/site-roster/internal/calendar"
)

// Clock is a settable time source. Services built by the ServiceFactory stamp
// sites and assignments with it, and the views use it to pick the current
// week, month and year.
type Clock struct {
	mu      sync.Mutex
	current time.Time
}

// NewClock starts at start, or at ReferenceTime when start is zero.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{current: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// NowFunc returns Now for injection; a nil clock yields time.Now.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

// Advance moves the clock forward, for example across the history merge window.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
	return c.current
}

// SetDay moves the clock to 09:00 Tokyo time on day.
func (c *Clock) SetDay(day calendar.Day) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = day.Time(Tokyo).Add(9 * time.Hour)
}

// Today returns the Tokyo calendar day of the clock.
func (c *Clock) Today() calendar.Day {
	return calendar.DayIn(c.Now(), Tokyo)
}
