package recurrence

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/raysh454/compliscan/internal/apperr"
	"github.com/raysh454/compliscan/internal/model"
)

func intp(v int) *int { return &v }

func utc(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

// ─── Daily ─────────────────────────────────────────────────────────────

func TestNextRun_Daily(t *testing.T) {
	t.Parallel()
	rule := model.Recurrence{Frequency: model.FrequencyDaily, Time: "09:00"}

	tests := []struct {
		name string
		ref  time.Time
		want time.Time
	}{
		{"before time today", utc(2025, 6, 4, 8, 0), utc(2025, 6, 4, 9, 0)},
		{"exactly at time", utc(2025, 6, 4, 9, 0), utc(2025, 6, 5, 9, 0)},
		{"after time today", utc(2025, 6, 4, 10, 0), utc(2025, 6, 5, 9, 0)},
		{"month rollover", utc(2025, 6, 30, 23, 0), utc(2025, 7, 1, 9, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextRun(rule, tt.ref)
			if err != nil {
				t.Fatalf("NextRun: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

// ─── Weekly ────────────────────────────────────────────────────────────

func TestNextRun_Weekly_MondayFromWednesday(t *testing.T) {
	t.Parallel()
	rule := model.Recurrence{Frequency: model.FrequencyWeekly, Time: "09:00", DayOfWeek: intp(1)}
	// 2025-06-04 is a Wednesday.
	got, err := NextRun(rule, utc(2025, 6, 4, 10, 0))
	if err != nil {
		t.Fatalf("NextRun: %v", err)
	}
	want := utc(2025, 6, 9, 9, 0)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if got.Weekday() != time.Monday {
		t.Fatalf("expected Monday, got %v", got.Weekday())
	}
}

func TestNextRun_Weekly_SameDay(t *testing.T) {
	t.Parallel()
	rule := model.Recurrence{Frequency: model.FrequencyWeekly, Time: "09:00", DayOfWeek: intp(1)}
	// 2025-06-02 is a Monday.
	got, _ := NextRun(rule, utc(2025, 6, 2, 8, 59))
	if !got.Equal(utc(2025, 6, 2, 9, 0)) {
		t.Errorf("before time: got %v", got)
	}
	got, _ = NextRun(rule, utc(2025, 6, 2, 9, 0))
	if !got.Equal(utc(2025, 6, 9, 9, 0)) {
		t.Errorf("at time: got %v", got)
	}
}

func TestNextRun_Weekly_Sunday(t *testing.T) {
	t.Parallel()
	rule := model.Recurrence{Frequency: model.FrequencyWeekly, Time: "23:30", DayOfWeek: intp(0)}
	got, err := NextRun(rule, utc(2025, 6, 7, 12, 0)) // Saturday
	if err != nil {
		t.Fatalf("NextRun: %v", err)
	}
	if !got.Equal(utc(2025, 6, 8, 23, 30)) {
		t.Errorf("got %v", got)
	}
}

// ─── Monthly ───────────────────────────────────────────────────────────

func TestNextRun_Monthly_SkipsShortMonths(t *testing.T) {
	t.Parallel()
	rule := model.Recurrence{Frequency: model.FrequencyMonthly, Time: "09:00", DayOfMonth: intp(31)}
	got, err := NextRun(rule, utc(2025, 2, 10, 0, 0))
	if err != nil {
		t.Fatalf("NextRun: %v", err)
	}
	if want := utc(2025, 3, 31, 9, 0); !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	// From March 31 after the fire time, April has no 31st.
	got, _ = NextRun(rule, utc(2025, 3, 31, 9, 0))
	if want := utc(2025, 5, 31, 9, 0); !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestNextRun_Monthly_Clamp(t *testing.T) {
	t.Parallel()
	c := Calculator{Overflow: OverflowClamp}
	rule := model.Recurrence{Frequency: model.FrequencyMonthly, Time: "09:00", DayOfMonth: intp(31)}

	got, err := c.NextRun(rule, utc(2025, 2, 10, 0, 0))
	if err != nil {
		t.Fatalf("NextRun: %v", err)
	}
	if want := utc(2025, 2, 28, 9, 0); !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	got, _ = c.NextRun(rule, utc(2024, 2, 10, 0, 0))
	if want := utc(2024, 2, 29, 9, 0); !got.Equal(want) {
		t.Fatalf("leap year: got %v, want %v", got, want)
	}
}

func TestNextRun_Monthly_NextMonth(t *testing.T) {
	t.Parallel()
	rule := model.Recurrence{Frequency: model.FrequencyMonthly, Time: "06:15", DayOfMonth: intp(15)}
	got, _ := NextRun(rule, utc(2025, 12, 20, 0, 0))
	if want := utc(2026, 1, 15, 6, 15); !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

// ─── Properties ────────────────────────────────────────────────────────

func TestNextRun_StrictlyAfterAndDeterministic(t *testing.T) {
	t.Parallel()
	rules := []model.Recurrence{
		{Frequency: model.FrequencyDaily, Time: "00:00"},
		{Frequency: model.FrequencyWeekly, Time: "12:34", DayOfWeek: intp(3)},
		{Frequency: model.FrequencyMonthly, Time: "23:59", DayOfMonth: intp(29)},
		{Frequency: model.FrequencyMonthly, Time: "7:05", DayOfMonth: intp(1)},
	}
	ref := utc(2025, 1, 1, 0, 0)
	for _, rule := range rules {
		for i := 0; i < 400; i++ {
			a, err := NextRun(rule, ref)
			if err != nil {
				t.Fatalf("NextRun(%+v): %v", rule, err)
			}
			b, _ := NextRun(rule, ref)
			if !a.Equal(b) {
				t.Fatalf("non-deterministic for %+v at %v", rule, ref)
			}
			if !a.After(ref) {
				t.Fatalf("next run %v not after ref %v", a, ref)
			}
			ref = ref.Add(13 * time.Hour)
		}
	}
}

func TestNextRun_Timezone(t *testing.T) {
	t.Parallel()
	rule := model.Recurrence{Frequency: model.FrequencyDaily, Time: "09:00", Timezone: "America/New_York"}
	// 12:00 UTC is 08:00 EDT.
	got, err := NextRun(rule, utc(2025, 6, 1, 12, 0))
	if err != nil {
		t.Fatalf("NextRun: %v", err)
	}
	if want := utc(2025, 6, 1, 13, 0); !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestPreview(t *testing.T) {
	t.Parallel()
	rule := model.Recurrence{Frequency: model.FrequencyDaily, Time: "09:00"}
	runs, err := defaultCalculator.Preview(rule, utc(2025, 6, 4, 10, 0), 3)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	want := []time.Time{utc(2025, 6, 5, 9, 0), utc(2025, 6, 6, 9, 0), utc(2025, 6, 7, 9, 0)}
	for i := range want {
		if !runs[i].Equal(want[i]) {
			t.Errorf("run %d: got %v, want %v", i, runs[i], want[i])
		}
	}
}

// ─── Validation ────────────────────────────────────────────────────────

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		rule model.Recurrence
		ok   bool
	}{
		{"daily ok", model.Recurrence{Frequency: model.FrequencyDaily, Time: "9:05"}, true},
		{"bad frequency", model.Recurrence{Frequency: "hourly", Time: "09:00"}, false},
		{"bad hour", model.Recurrence{Frequency: model.FrequencyDaily, Time: "24:00"}, false},
		{"bad minute", model.Recurrence{Frequency: model.FrequencyDaily, Time: "09:60"}, false},
		{"no colon", model.Recurrence{Frequency: model.FrequencyDaily, Time: "0900"}, false},
		{"weekly missing day", model.Recurrence{Frequency: model.FrequencyWeekly, Time: "09:00"}, false},
		{"weekly day 7", model.Recurrence{Frequency: model.FrequencyWeekly, Time: "09:00", DayOfWeek: intp(7)}, false},
		{"monthly day 0", model.Recurrence{Frequency: model.FrequencyMonthly, Time: "09:00", DayOfMonth: intp(0)}, false},
		{"monthly day 32", model.Recurrence{Frequency: model.FrequencyMonthly, Time: "09:00", DayOfMonth: intp(32)}, false},
		{"bad timezone", model.Recurrence{Frequency: model.FrequencyDaily, Time: "09:00", Timezone: "Mars/Olympus"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.rule)
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok {
				if err == nil {
					t.Fatal("expected error")
				}
				if !apperr.Is(err, apperr.KindValidation) {
					t.Fatalf("expected validation error, got %v", err)
				}
			}
		})
	}
}

func TestParseOverflowPolicy(t *testing.T) {
	t.Parallel()
	if p, err := ParseOverflowPolicy(""); err != nil || p != OverflowSkip {
		t.Errorf("empty: got %q, %v", p, err)
	}
	if p, err := ParseOverflowPolicy("Clamp"); err != nil || p != OverflowClamp {
		t.Errorf("clamp: got %q, %v", p, err)
	}
	if _, err := ParseOverflowPolicy("wrap"); err == nil {
		t.Error("expected error for unknown policy")
	}
}
