// Package store declares the persistence contracts of the scan, schedule and
// monitor subsystems. Every state transition that must be exclusive is a
// conditional update executed by the backend, so several service instances
// may share one database.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/raysh454/compliscan/internal/model"
)

var (
	ErrNotFound   = errors.New("record not found")
	ErrActiveScan = errors.New("a scan is already in progress for this url")
	ErrDuplicate  = errors.New("record already exists")
	ErrClaimLost  = errors.New("claim no longer held")
)

// TargetStore persists scan targets.
type TargetStore interface {
	CreateTarget(ctx context.Context, t *model.Target) error
	GetTarget(ctx context.Context, id string) (*model.Target, error)
	ListTargets(ctx context.Context, ownerID string) ([]*model.Target, error)
	UpdateTargetScanStatus(ctx context.Context, id string, status model.ScanStatus, at time.Time) error
}

// ScanStore persists scan records and guards their lifecycle.
type ScanStore interface {
	// CreateScan inserts a pending scan. It returns ErrActiveScan when the URL
	// already has a pending or scanning scan.
	CreateScan(ctx context.Context, s *model.Scan) error
	GetScan(ctx context.Context, id string) (*model.Scan, error)

	// ClaimScan moves pending to scanning. False means someone else won.
	ClaimScan(ctx context.Context, id string, at time.Time) (bool, error)

	// CompleteScan moves scanning to completed with results.
	CompleteScan(ctx context.Context, id string, results *model.Results, at time.Time, durationMS int64) (bool, error)

	// FailScan moves pending or scanning to failed.
	FailScan(ctx context.Context, id, message string, at time.Time, durationMS int64) (bool, error)

	ListScansByURL(ctx context.Context, urlID string, limit int) ([]*model.Scan, error)
	ListScansByRequester(ctx context.Context, requestedBy string, limit int) ([]*model.Scan, error)

	// PreviousCompletedScan returns the newest completed scan of urlID created
	// before the given time, or ErrNotFound.
	PreviousCompletedScan(ctx context.Context, urlID string, before time.Time) (*model.Scan, error)

	// ListStaleScans returns active scans whose last transition is older than cutoff.
	ListStaleScans(ctx context.Context, cutoff time.Time) ([]*model.Scan, error)
}

// ScheduleStore persists scheduled scans and their claim leases.
type ScheduleStore interface {
	CreateSchedule(ctx context.Context, s *model.ScheduledScan) error
	GetSchedule(ctx context.Context, id string) (*model.ScheduledScan, error)
	ListSchedules(ctx context.Context, ownerID string) ([]*model.ScheduledScan, error)
	UpdateSchedule(ctx context.Context, s *model.ScheduledScan) error
	DeleteSchedule(ctx context.Context, id string) error

	// ListDueSchedules returns active, unclaimed rules with nextRun <= now,
	// oldest nextRun first.
	ListDueSchedules(ctx context.Context, now time.Time, limit int) ([]*model.ScheduledScan, error)

	// ClaimSchedule leases a due rule to owner until the given time.
	ClaimSchedule(ctx context.Context, id, owner string, now, until time.Time) (bool, error)

	// AdvanceSchedule records a fire and releases the lease. It returns
	// ErrClaimLost if owner no longer holds the lease.
	AdvanceSchedule(ctx context.Context, id, owner string, adv Advance) error

	// ReleaseSchedule drops owner's lease without advancing.
	ReleaseSchedule(ctx context.Context, id, owner string) error
}

// Advance is the bookkeeping written when a scheduled scan fires.
type Advance struct {
	LastRun    time.Time
	NextRun    time.Time
	LastScanID string
	LastError  string
}

// MonitorStore persists monitored websites and their check history.
type MonitorStore interface {
	// CreateWebsite returns ErrDuplicate when the owner already monitors the URL.
	CreateWebsite(ctx context.Context, w *model.Website) error
	GetWebsite(ctx context.Context, id string) (*model.Website, error)
	ListWebsites(ctx context.Context, ownerID string) ([]*model.Website, error)
	SetWebsiteActive(ctx context.Context, id string, active bool, at time.Time) error
	DeleteWebsite(ctx context.Context, id string) error

	// ListDueWebsites returns active, unclaimed websites whose interval has
	// elapsed, least recently checked first.
	ListDueWebsites(ctx context.Context, now time.Time, limit int) ([]*model.Website, error)
	ClaimWebsite(ctx context.Context, id, owner string, now, until time.Time) (bool, error)
	ReleaseWebsite(ctx context.Context, id, owner string) error

	// RecordCheck appends a check, recomputes counters and the windowed
	// uptime over the last window checks, and releases any lease.
	RecordCheck(ctx context.Context, check *model.WebsiteCheck, window int) (*CheckOutcome, error)
	ListChecks(ctx context.Context, websiteID string, limit int) ([]*model.WebsiteCheck, error)

	Close() error
}

// CheckOutcome reports the website after a check together with its state
// before the check, so callers can detect transitions.
type CheckOutcome struct {
	Website        *model.Website
	PreviousStatus model.WebsiteStatus
	FirstCheck     bool
}

// Store is the full persistence surface of the service.
type Store interface {
	TargetStore
	ScanStore
	ScheduleStore
	MonitorStore
}

// ApplyCheck folds one check into w. It is shared by backends so counters and
// status fields are derived identically; uptime is computed by the caller.
func ApplyCheck(w *model.Website, c *model.WebsiteCheck) {
	at := c.CheckedAt
	w.Status = c.Status
	w.ResponseTimeMS = c.ResponseTimeMS
	w.LastStatusCode = c.StatusCode
	w.LastError = c.Error
	w.LastCheck = &at
	w.TotalChecks++
	if c.Status == model.StatusOnline {
		w.SuccessfulChecks++
		w.LastUpTime = &at
	} else {
		w.FailedChecks++
	}
	if c.Status == model.StatusOffline {
		w.LastDownTime = &at
	}
	w.UpdatedAt = at
	w.ClaimedBy = ""
	w.ClaimExpires = nil
}

// Uptime is the percentage of online statuses in checks.
func Uptime(statuses []model.WebsiteStatus) float64 {
	if len(statuses) == 0 {
		return 0
	}
	online := 0
	for _, s := range statuses {
		if s == model.StatusOnline {
			online++
		}
	}
	return float64(online) * 100 / float64(len(statuses))
}
