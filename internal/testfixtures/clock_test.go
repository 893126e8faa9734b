package testfixtures

import (
	"testing"
	"time"
)

func TestClockDefaultsToReferenceTime(t *testing.T) {
	clock := NewClock(time.Time{})
	if !clock.Now().Equal(ReferenceTime()) {
		t.Fatalf("expected ReferenceTime, got %v", clock.Now())
	}
	if got := clock.Today().String(); got != "2025-03-03" {
		t.Fatalf("Today() = %s, want 2025-03-03", got)
	}
}

func TestClockAdvanceIsSeenThroughNowFunc(t *testing.T) {
	start := time.Date(2025, time.December, 24, 9, 26, 0, 0, time.UTC)
	clock := NewClock(start)
	nowFn := clock.NowFunc()

	updated := clock.Advance(800 * time.Millisecond)
	if !updated.Equal(start.Add(800 * time.Millisecond)) {
		t.Fatalf("advance returned %v", updated)
	}
	if got := nowFn(); !got.Equal(updated) {
		t.Fatalf("NowFunc returned %v, want %v", got, updated)
	}
}

func TestClockSetDay(t *testing.T) {
	clock := NewClock(time.Time{})
	clock.SetDay(MustDay("2025-12-24"))

	if got := clock.Today().String(); got != "2025-12-24" {
		t.Fatalf("Today() = %s, want 2025-12-24", got)
	}
	if got := clock.Now().In(Tokyo).Hour(); got != 9 {
		t.Fatalf("hour = %d, want 9", got)
	}
}

func TestClockTodayUsesTokyo(t *testing.T) {
	// 2025-03-31 16:00 UTC is already April 1st in Tokyo.
	clock := NewClock(time.Date(2025, time.March, 31, 16, 0, 0, 0, time.UTC))
	if got := clock.Today().String(); got != "2025-04-01" {
		t.Fatalf("Today() = %s, want 2025-04-01", got)
	}
}
