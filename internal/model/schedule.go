package model

import "time"

// Frequency of a recurring scan.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// Recurrence is the calendar rule of a scheduled scan.
type Recurrence struct {
	Frequency Frequency `json:"frequency"`

	// Time is "HH:MM" (24h) in Timezone.
	Time string `json:"time"`

	// DayOfWeek is 0-6 with Sunday = 0. Required iff weekly.
	DayOfWeek *int `json:"dayOfWeek,omitempty"`

	// DayOfMonth is 1-31. Required iff monthly.
	DayOfMonth *int `json:"dayOfMonth,omitempty"`

	// Timezone is an IANA zone name; empty means UTC.
	Timezone string `json:"timezone,omitempty"`
}

// Location resolves Timezone.
func (r Recurrence) Location() (*time.Location, error) {
	if r.Timezone == "" || r.Timezone == "UTC" {
		return time.UTC, nil
	}
	return time.LoadLocation(r.Timezone)
}

// ScheduledScan fires a scan of URLID whenever its recurrence comes due.
type ScheduledScan struct {
	ID        string `json:"id"`
	URLID     string `json:"urlId"`
	ProjectID string `json:"projectId,omitempty"`
	OwnerID   string `json:"ownerId"`

	Recurrence

	Options  ScanOptions `json:"scanOptions"`
	IsActive bool        `json:"isActive"`

	LastRun    *time.Time `json:"lastRun,omitempty"`
	NextRun    *time.Time `json:"nextRun,omitempty"`
	LastScanID string     `json:"lastScanId,omitempty"`
	LastError  string     `json:"lastError,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	ClaimedBy    string     `json:"-"`
	ClaimExpires *time.Time `json:"-"`
}

// IsDue reports whether the rule is active and its next run has arrived.
func (s *ScheduledScan) IsDue(now time.Time) bool {
	return s.IsActive && s.NextRun != nil && !s.NextRun.After(now)
}
