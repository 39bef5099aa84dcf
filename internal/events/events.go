// Package events carries scan and monitor notifications to the configured
// sinks: the log, a webhook, an AMQP exchange and the in-process websocket hub.
package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/raysh454/compliscan/internal/logging"
)

type Type string

const (
	ScanCompleted  Type = "scan_completed"
	ScanFailed     Type = "scan_failed"
	WebsiteOffline Type = "website_offline"
	WebsiteOnline  Type = "website_online"

	// Progress events are only delivered to live subscribers.
	ScanStarted  Type = "scan_started"
	ScanProgress Type = "scan_progress"
)

// Notification reports whether t goes to every publisher or only to the hub.
func (t Type) Notification() bool {
	switch t {
	case ScanCompleted, ScanFailed, WebsiteOffline, WebsiteOnline:
		return true
	}
	return false
}

// Event is the payload delivered to every sink.
type Event struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	ScanID     string    `json:"scanId,omitempty"`
	URLID      string    `json:"urlId,omitempty"`
	WebsiteID  string    `json:"websiteId,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`

	// Progress fields, set on scan_progress only.
	Category  string `json:"category,omitempty"`
	Completed int    `json:"completed,omitempty"`
	Total     int    `json:"total,omitempty"`
}

func newEvent(typ Type, at time.Time) Event {
	return Event{ID: uuid.NewString(), Type: typ, OccurredAt: at.UTC()}
}

func ScanEvent(typ Type, scanID, urlID string, at time.Time) Event {
	ev := newEvent(typ, at)
	ev.ScanID = scanID
	ev.URLID = urlID
	return ev
}

func WebsiteEvent(typ Type, websiteID string, at time.Time) Event {
	ev := newEvent(typ, at)
	ev.WebsiteID = websiteID
	return ev
}

func ProgressEvent(scanID, urlID, category string, completed, total int, at time.Time) Event {
	ev := ScanEvent(ScanProgress, scanID, urlID, at)
	ev.Category = category
	ev.Completed = completed
	ev.Total = total
	return ev
}

// Publisher delivers events to one sink.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, ev Event) error

func (f PublisherFunc) Publish(ctx context.Context, ev Event) error { return f(ctx, ev) }

// Multi fans an event out to every sink. Sinks only receive notification
// types, except those registered as live which also receive progress.
type Multi struct {
	sinks  []Publisher
	live   []Publisher
	logger logging.Logger
}

func NewMulti(logger logging.Logger, sinks ...Publisher) *Multi {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Multi{logger: logger.With(logging.Component("events"))}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// AddLive registers a sink that also receives progress events.
func (m *Multi) AddLive(p Publisher) {
	if p != nil {
		m.live = append(m.live, p)
	}
}

// Publish delivers ev to every matching sink. Failures are logged and joined
// into the returned error; callers are expected to ignore it.
func (m *Multi) Publish(ctx context.Context, ev Event) error {
	var errs []error
	deliver := func(p Publisher) {
		if err := p.Publish(ctx, ev); err != nil {
			m.logger.Warn("publishing event",
				logging.Field{Key: "event_type", Value: string(ev.Type)},
				logging.Field{Key: "event_id", Value: ev.ID},
				logging.Err(err))
			errs = append(errs, err)
		}
	}
	if ev.Type.Notification() {
		for _, p := range m.sinks {
			deliver(p)
		}
	}
	for _, p := range m.live {
		deliver(p)
	}
	return errors.Join(errs...)
}

// Log writes each event as one structured log line.
type Log struct {
	logger logging.Logger
}

func NewLog(logger logging.Logger) *Log {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Log{logger: logger.With(logging.Component("events.log"))}
}

func (l *Log) Publish(_ context.Context, ev Event) error {
	fields := []logging.Field{
		{Key: "event_id", Value: ev.ID},
		{Key: "event_type", Value: string(ev.Type)},
		{Key: "occurred_at", Value: ev.OccurredAt.Format(time.RFC3339)},
	}
	if ev.ScanID != "" {
		fields = append(fields, logging.Field{Key: "scan_id", Value: ev.ScanID}, logging.Field{Key: "url_id", Value: ev.URLID})
	}
	if ev.WebsiteID != "" {
		fields = append(fields, logging.Field{Key: "website_id", Value: ev.WebsiteID})
	}
	l.logger.Info(fmt.Sprintf("event %s", ev.Type), fields...)
	return nil
}
