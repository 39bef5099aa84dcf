package model

import (
	"fmt"
	"time"
)

// Interval is how often a monitored website is probed.
type Interval string

const (
	Interval1Min  Interval = "1min"
	Interval5Min  Interval = "5min"
	Interval30Min Interval = "30min"
)

// DefaultInterval applies when a website is created without one.
const DefaultInterval = Interval5Min

// Duration converts the interval into a time.Duration.
func (i Interval) Duration() (time.Duration, error) {
	switch i {
	case Interval1Min:
		return time.Minute, nil
	case Interval5Min:
		return 5 * time.Minute, nil
	case Interval30Min:
		return 30 * time.Minute, nil
	}
	return 0, fmt.Errorf("unknown interval %q", string(i))
}

// WebsiteStatus is the result of the most recent probe.
type WebsiteStatus string

const (
	StatusOnline  WebsiteStatus = "online"
	StatusOffline WebsiteStatus = "offline"
	StatusWarning WebsiteStatus = "warning"
)

// Website is a URL probed for availability at a fixed interval.
type Website struct {
	ID       string        `json:"id"`
	OwnerID  string        `json:"ownerId"`
	Name     string        `json:"name"`
	URL      string        `json:"url"`
	Interval Interval      `json:"interval"`
	IsActive bool          `json:"isActive"`
	Status   WebsiteStatus `json:"status"`

	ResponseTimeMS int64      `json:"responseTime"`
	Uptime         float64    `json:"uptime"`
	LastCheck      *time.Time `json:"lastCheck,omitempty"`

	TotalChecks      int        `json:"totalChecks"`
	SuccessfulChecks int        `json:"successfulChecks"`
	FailedChecks     int        `json:"failedChecks"`
	LastUpTime       *time.Time `json:"lastUpTime,omitempty"`
	LastDownTime     *time.Time `json:"lastDownTime,omitempty"`
	LastStatusCode   int        `json:"lastStatusCode,omitempty"`
	LastError        string     `json:"lastError,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	ClaimedBy    string     `json:"-"`
	ClaimExpires *time.Time `json:"-"`
}

// IsDue reports whether an active website should be probed at now: never
// checked, or at least one interval since the last check.
func (w *Website) IsDue(now time.Time) bool {
	if !w.IsActive {
		return false
	}
	if w.LastCheck == nil {
		return true
	}
	d, err := w.Interval.Duration()
	if err != nil {
		return false
	}
	return !now.Before(w.LastCheck.Add(d))
}

// WebsiteCheck is one probe outcome kept in a website's history.
type WebsiteCheck struct {
	ID             string        `json:"id"`
	WebsiteID      string        `json:"websiteId"`
	CheckedAt      time.Time     `json:"checkedAt"`
	Status         WebsiteStatus `json:"status"`
	ResponseTimeMS int64         `json:"responseTime"`
	StatusCode     int           `json:"statusCode,omitempty"`
	Error          string        `json:"error,omitempty"`
}

// MonitorStats aggregates an owner's websites.
type MonitorStats struct {
	TotalWebsites       int     `json:"totalWebsites"`
	ActiveWebsites      int     `json:"activeWebsites"`
	OnlineWebsites      int     `json:"onlineWebsites"`
	OfflineWebsites     int     `json:"offlineWebsites"`
	WarningWebsites     int     `json:"warningWebsites"`
	AverageResponseTime int64   `json:"averageResponseTime"`
	AverageUptime       float64 `json:"averageUptime"`
	TotalChecks         int     `json:"totalChecks"`
	SuccessfulChecks    int     `json:"successfulChecks"`
	FailedChecks        int     `json:"failedChecks"`
}

// ComputeStats folds a list of websites into MonitorStats.
func ComputeStats(sites []*Website) MonitorStats {
	var st MonitorStats
	var rtSum int64
	var upSum float64
	for _, w := range sites {
		st.TotalWebsites++
		if w.IsActive {
			st.ActiveWebsites++
		}
		switch w.Status {
		case StatusOnline:
			st.OnlineWebsites++
		case StatusOffline:
			st.OfflineWebsites++
		case StatusWarning:
			st.WarningWebsites++
		}
		rtSum += w.ResponseTimeMS
		upSum += w.Uptime
		st.TotalChecks += w.TotalChecks
		st.SuccessfulChecks += w.SuccessfulChecks
		st.FailedChecks += w.FailedChecks
	}
	if st.TotalWebsites > 0 {
		st.AverageResponseTime = rtSum / int64(st.TotalWebsites)
		st.AverageUptime = upSum / float64(st.TotalWebsites)
	}
	return st
}
