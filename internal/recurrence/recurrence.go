// Package recurrence computes fire times for daily, weekly and monthly
// scheduled scans. Every function here is pure.
package recurrence

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/raysh454/compliscan/internal/apperr"
	"github.com/raysh454/compliscan/internal/model"
)

// OverflowPolicy decides what a monthly rule does in months that lack its
// day of month (e.g. the 31st in April).
type OverflowPolicy string

const (
	// OverflowSkip fires only in months that have the day.
	OverflowSkip OverflowPolicy = "skip"
	// OverflowClamp fires on the last day of shorter months.
	OverflowClamp OverflowPolicy = "clamp"
)

// ParseOverflowPolicy accepts "skip" or "clamp"; empty means skip.
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch OverflowPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", OverflowSkip:
		return OverflowSkip, nil
	case OverflowClamp:
		return OverflowClamp, nil
	}
	return "", apperr.Validation("unknown monthly overflow policy %q", s)
}

var hhmm = regexp.MustCompile(`^([01]?[0-9]|2[0-3]):([0-5][0-9])$`)

// monthly rules never need more than a year of lookahead.
const maxMonthsAhead = 13

// Calculator computes next run times under an overflow policy.
type Calculator struct {
	Overflow OverflowPolicy
}

var defaultCalculator = Calculator{Overflow: OverflowSkip}

// NextRun returns the first fire time strictly after ref using the skip policy.
func NextRun(rule model.Recurrence, ref time.Time) (time.Time, error) {
	return defaultCalculator.NextRun(rule, ref)
}

// Validate checks a rule's fields and reports the first problem found.
func Validate(rule model.Recurrence) error {
	switch rule.Frequency {
	case model.FrequencyDaily, model.FrequencyWeekly, model.FrequencyMonthly:
	default:
		return apperr.Validation("frequency must be daily, weekly or monthly, got %q", rule.Frequency)
	}
	if !hhmm.MatchString(rule.Time) {
		return apperr.Validation("time must be HH:MM (24h), got %q", rule.Time)
	}
	switch rule.Frequency {
	case model.FrequencyWeekly:
		if rule.DayOfWeek == nil {
			return apperr.Validation("dayOfWeek is required for weekly schedules")
		}
		if d := *rule.DayOfWeek; d < 0 || d > 6 {
			return apperr.Validation("dayOfWeek must be 0-6, got %d", d)
		}
	case model.FrequencyMonthly:
		if rule.DayOfMonth == nil {
			return apperr.Validation("dayOfMonth is required for monthly schedules")
		}
		if d := *rule.DayOfMonth; d < 1 || d > 31 {
			return apperr.Validation("dayOfMonth must be 1-31, got %d", d)
		}
	}
	if _, err := rule.Location(); err != nil {
		return apperr.Validation("unknown timezone %q", rule.Timezone)
	}
	return nil
}

// NextRun returns the first fire time strictly after ref, in UTC.
func (c Calculator) NextRun(rule model.Recurrence, ref time.Time) (time.Time, error) {
	if err := Validate(rule); err != nil {
		return time.Time{}, err
	}
	loc, _ := rule.Location()
	hour, minute := clockOf(rule.Time)
	local := ref.In(loc)
	y, m, d := local.Date()

	switch rule.Frequency {
	case model.FrequencyDaily:
		cand := time.Date(y, m, d, hour, minute, 0, 0, loc)
		if !cand.After(ref) {
			cand = time.Date(y, m, d+1, hour, minute, 0, 0, loc)
		}
		return cand.UTC(), nil

	case model.FrequencyWeekly:
		ahead := (*rule.DayOfWeek - int(local.Weekday()) + 7) % 7
		cand := time.Date(y, m, d+ahead, hour, minute, 0, 0, loc)
		if !cand.After(ref) {
			cand = time.Date(y, m, d+ahead+7, hour, minute, 0, 0, loc)
		}
		return cand.UTC(), nil

	default:
		dom := *rule.DayOfMonth
		for i := 0; i <= maxMonthsAhead; i++ {
			first := time.Date(y, m+time.Month(i), 1, 0, 0, 0, 0, loc)
			day := dom
			if last := daysIn(first.Year(), first.Month()); dom > last {
				if c.Overflow != OverflowClamp {
					continue
				}
				day = last
			}
			cand := time.Date(first.Year(), first.Month(), day, hour, minute, 0, 0, loc)
			if cand.After(ref) {
				return cand.UTC(), nil
			}
		}
		return time.Time{}, apperr.Internal("no monthly occurrence within a year", nil)
	}
}

// Preview returns the next n fire times after ref.
func (c Calculator) Preview(rule model.Recurrence, ref time.Time, n int) ([]time.Time, error) {
	out := make([]time.Time, 0, n)
	cur := ref
	for i := 0; i < n; i++ {
		next, err := c.NextRun(rule, cur)
		if err != nil {
			return nil, err
		}
		out = append(out, next)
		cur = next
	}
	return out, nil
}

func clockOf(s string) (hour, minute int) {
	m := hhmm.FindStringSubmatch(s)
	hour, _ = strconv.Atoi(m[1])
	minute, _ = strconv.Atoi(m[2])
	return hour, minute
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
