package recurrence

import (
	"errors"
	"testing"
	"time"

	"github.com/example/site-roster/internal/calendar"
)

func mustMonth(t *testing.T, value string) calendar.Month {
	t.Helper()
	m, err := calendar.ParseMonth(value)
	if err != nil {
		t.Fatalf("ParseMonth(%q): %v", value, err)
	}
	return m
}

func mustDay(t *testing.T, value string) calendar.Day {
	t.Helper()
	d, err := calendar.ParseDay(value)
	if err != nil {
		t.Fatalf("ParseDay(%q): %v", value, err)
	}
	return d
}

func TestIsActiveMonth(t *testing.T) {
	t.Parallel()

	anchor := mustMonth(t, "2024-12")
	rule := Rule{IntervalMonths: 2}

	cases := map[string]bool{
		"2024-12": true,
		"2025-01": false,
		"2025-02": true,
		"2025-03": false,
		"2024-10": true,
		"2024-11": false,
	}
	for month, want := range cases {
		if got := IsActiveMonth(rule, anchor, mustMonth(t, month)); got != want {
			t.Fatalf("IsActiveMonth(%s) = %v, want %v", month, got, want)
		}
	}

	for _, interval := range []int{0, -3, 13} {
		if !IsActiveMonth(Rule{IntervalMonths: interval}, anchor, mustMonth(t, "2025-01")) {
			t.Fatalf("interval %d should pace every month", interval)
		}
	}
}

func TestEngineProject(t *testing.T) {
	t.Parallel()

	engine := NewEngine(nil)
	createdAt := time.Date(2025, 1, 10, 9, 0, 0, 0, jst)

	t.Run("month days and weekdays union", func(t *testing.T) {
		t.Parallel()
		month := mustMonth(t, "2025-03")
		plan, err := engine.Project(Rule{IntervalMonths: 1, MonthDays: []int{1}, Weekdays: []int{7}}, createdAt, Target{Month: &month})
		if err != nil {
			t.Fatalf("Project: %v", err)
		}
		if !plan.Active {
			t.Fatalf("expected active plan, reason %q", plan.Reason)
		}
		want := []string{"2025-03-01", "2025-03-02", "2025-03-09", "2025-03-16", "2025-03-23", "2025-03-30"}
		if len(plan.Candidates) != len(want) {
			t.Fatalf("candidates = %v, want %v", plan.Candidates, want)
		}
		for i, d := range plan.Candidates {
			if d.String() != want[i] {
				t.Fatalf("candidate[%d] = %s, want %s", i, d, want[i])
			}
		}
	})

	t.Run("off pace", func(t *testing.T) {
		t.Parallel()
		month := mustMonth(t, "2025-02")
		plan, err := engine.Project(Rule{IntervalMonths: 2, MonthDays: []int{1}}, createdAt, Target{Month: &month})
		if err != nil {
			t.Fatalf("Project: %v", err)
		}
		if plan.Active || plan.Reason != ReasonOffPace || len(plan.Candidates) != 0 {
			t.Fatalf("unexpected plan %+v", plan)
		}
	})

	t.Run("unconfigured rule", func(t *testing.T) {
		t.Parallel()
		month := mustMonth(t, "2025-02")
		plan, err := engine.Project(Rule{IntervalMonths: 1}, createdAt, Target{Month: &month})
		if err != nil {
			t.Fatalf("Project: %v", err)
		}
		if plan.Reason != ReasonNoRule {
			t.Fatalf("reason = %q", plan.Reason)
		}
	})

	t.Run("explicit days restrict and set month", func(t *testing.T) {
		t.Parallel()
		days := []calendar.Day{mustDay(t, "2025-03-09"), mustDay(t, "2025-03-02"), mustDay(t, "2025-03-02"), mustDay(t, "2025-04-06")}
		plan, err := engine.Project(Rule{Weekdays: []int{7}}, createdAt, Target{Days: days})
		if err != nil {
			t.Fatalf("Project: %v", err)
		}
		if plan.Month.String() != "2025-03" {
			t.Fatalf("month = %s", plan.Month)
		}
		if len(plan.Candidates) != 2 || plan.Candidates[0].String() != "2025-03-02" {
			t.Fatalf("candidates = %v", plan.Candidates)
		}
	})

	t.Run("requires a target", func(t *testing.T) {
		t.Parallel()
		if _, err := engine.Project(Rule{MonthDays: []int{1}}, createdAt, Target{}); !errors.Is(err, ErrNoTarget) {
			t.Fatalf("expected ErrNoTarget, got %v", err)
		}
	})
}

func TestNormalizeTargetLimitsDays(t *testing.T) {
	t.Parallel()

	start := mustDay(t, "2025-01-01")
	days := make([]calendar.Day, 0, MaxRequestedDays+1)
	for i := 0; i <= MaxRequestedDays; i++ {
		days = append(days, start.AddDays(i))
	}
	if _, _, err := NormalizeTarget(Target{Days: days}); !errors.Is(err, ErrTooManyDays) {
		t.Fatalf("expected ErrTooManyDays, got %v", err)
	}
	if _, _, err := NormalizeTarget(Target{Days: days[:MaxRequestedDays]}); err != nil {
		t.Fatalf("62 days should be accepted: %v", err)
	}

	repeated := make([]calendar.Day, MaxRequestedDays+1)
	for i := range repeated {
		repeated[i] = start
	}
	if _, _, err := NormalizeTarget(Target{Days: repeated}); !errors.Is(err, ErrTooManyDays) {
		t.Fatalf("duplicates count toward the limit, got %v", err)
	}
}

func TestRuleValidateAndNormalize(t *testing.T) {
	t.Parallel()

	if err := (Rule{IntervalMonths: 0}).Validate(); !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("expected ErrInvalidInterval, got %v", err)
	}
	if err := (Rule{IntervalMonths: 1, Weekdays: []int{8}}).Validate(); !errors.Is(err, ErrInvalidWeekday) {
		t.Fatalf("expected ErrInvalidWeekday, got %v", err)
	}
	if err := (Rule{IntervalMonths: 1, MonthDays: []int{0}}).Validate(); !errors.Is(err, ErrInvalidMonthDay) {
		t.Fatalf("expected ErrInvalidMonthDay, got %v", err)
	}

	got := Rule{IntervalMonths: 0, Weekdays: []int{5, 1, 5, 9}, MonthDays: []int{31, 1, 1}}.Normalize()
	if got.IntervalMonths != 1 || len(got.Weekdays) != 2 || got.Weekdays[0] != 1 || len(got.MonthDays) != 2 || got.MonthDays[1] != 31 {
		t.Fatalf("Normalize = %+v", got)
	}
}
