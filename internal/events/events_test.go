package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/raysh454/compliscan/internal/logging"
)

var at = time.Date(2025, 6, 4, 10, 0, 0, 0, time.UTC)

type recorder struct {
	mu  sync.Mutex
	got []Event
	err error
}

func (r *recorder) Publish(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, ev)
	return r.err
}

func (r *recorder) events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.got...)
}

// ─── Event constructors ────────────────────────────────────────────────

func TestScanEvent_Fields(t *testing.T) {
	t.Parallel()
	ev := ScanEvent(ScanCompleted, "s1", "u1", at.In(time.FixedZone("X", 3600)))
	if ev.ID == "" || ev.ScanID != "s1" || ev.URLID != "u1" || ev.WebsiteID != "" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.OccurredAt.Location() != time.UTC || !ev.OccurredAt.Equal(at) {
		t.Fatalf("expected UTC timestamp, got %v", ev.OccurredAt)
	}
	if other := ScanEvent(ScanCompleted, "s1", "u1", at); other.ID == ev.ID {
		t.Fatal("expected distinct event ids")
	}
}

func TestType_Notification(t *testing.T) {
	t.Parallel()
	for _, typ := range []Type{ScanCompleted, ScanFailed, WebsiteOffline, WebsiteOnline} {
		if !typ.Notification() {
			t.Errorf("%s should be a notification", typ)
		}
	}
	for _, typ := range []Type{ScanStarted, ScanProgress} {
		if typ.Notification() {
			t.Errorf("%s should not be a notification", typ)
		}
	}
}

// ─── Multi ─────────────────────────────────────────────────────────────

func TestMulti_RoutesProgressOnlyToLive(t *testing.T) {
	t.Parallel()
	sink, live := &recorder{}, &recorder{}
	m := NewMulti(logging.NewNop(), sink, nil)
	m.AddLive(live)
	ctx := context.Background()

	_ = m.Publish(ctx, ProgressEvent("s1", "u1", "gdpr", 1, 3, at))
	_ = m.Publish(ctx, ScanEvent(ScanCompleted, "s1", "u1", at))

	if got := sink.events(); len(got) != 1 || got[0].Type != ScanCompleted {
		t.Fatalf("sink expected only scan_completed, got %+v", got)
	}
	if got := live.events(); len(got) != 2 || got[0].Type != ScanProgress || got[0].Completed != 1 {
		t.Fatalf("live expected both events, got %+v", got)
	}
}

func TestMulti_FailureDoesNotStopOthers(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	bad, good := &recorder{err: boom}, &recorder{}
	m := NewMulti(logging.NewNop(), bad, good)

	err := m.Publish(context.Background(), WebsiteEvent(WebsiteOffline, "w1", at))
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if len(good.events()) != 1 {
		t.Fatal("second sink should still receive the event")
	}
}

func TestLog_Publish(t *testing.T) {
	t.Parallel()
	if err := NewLog(nil).Publish(context.Background(), WebsiteEvent(WebsiteOnline, "w1", at)); err != nil {
		t.Fatalf("Log.Publish: %v", err)
	}
}

// ─── Webhook ───────────────────────────────────────────────────────────

func TestWebhook_PostsJSON(t *testing.T) {
	t.Parallel()
	var (
		mu   sync.Mutex
		got  Event
		kind string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		defer mu.Unlock()
		_ = json.Unmarshal(body, &got)
		kind = r.Header.Get("X-Event-Type")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	ev := ScanEvent(ScanFailed, "s1", "u1", at)
	if err := NewWebhook(srv.URL, nil).Publish(context.Background(), ev); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if got.ID != ev.ID || got.Type != ScanFailed || got.ScanID != "s1" || kind != "scan_failed" {
		t.Fatalf("unexpected delivery: %+v (%s)", got, kind)
	}
}

func TestWebhook_Non2xxIsError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if err := NewWebhook(srv.URL, srv.Client()).Publish(context.Background(), WebsiteEvent(WebsiteOffline, "w1", at)); err == nil {
		t.Fatal("expected error on 502")
	}
}

// ─── AMQP ──────────────────────────────────────────────────────────────

type fakeChannel struct {
	mu       sync.Mutex
	exchange string
	key      string
	msg      amqp.Publishing
	closed   bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exchange, f.key, f.msg = exchange, key, msg
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestAMQP_PublishesCloudEvent(t *testing.T) {
	t.Parallel()
	ch := &fakeChannel{}
	p := newAMQP(ch, "test.events", nil)

	ev := ScanEvent(ScanCompleted, "s1", "u1", at)
	if err := p.Publish(context.Background(), ev); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if ch.exchange != "test.events" || ch.key != "scan_completed" {
		t.Fatalf("unexpected routing: %s/%s", ch.exchange, ch.key)
	}
	if ch.msg.ContentType != "application/cloudevents+json" || ch.msg.MessageId != ev.ID {
		t.Fatalf("unexpected publishing: %+v", ch.msg)
	}

	var ce CloudEvent
	if err := json.Unmarshal(ch.msg.Body, &ce); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if ce.SpecVersion != "1.0" || ce.Type != "io.compliscan.scan_completed" || ce.Source != "/compliscan" {
		t.Fatalf("unexpected envelope: %+v", ce)
	}
	if ce.Time != "2025-06-04T10:00:00Z" || ce.Data.ScanID != "s1" {
		t.Fatalf("unexpected envelope payload: %+v", ce)
	}

	if err := p.Close(); err != nil || !ch.closed {
		t.Fatalf("Close: err=%v closed=%v", err, ch.closed)
	}
}

// ─── Hub ───────────────────────────────────────────────────────────────

func TestHub_Broadcast(t *testing.T) {
	t.Parallel()
	h := NewHub()
	a, unsubA := h.Subscribe(4)
	b, unsubB := h.Subscribe(4)
	defer unsubB()

	_ = h.Publish(context.Background(), WebsiteEvent(WebsiteOnline, "w1", at))

	for i, ch := range []<-chan Event{a, b} {
		select {
		case ev := <-ch:
			if ev.WebsiteID != "w1" {
				t.Fatalf("subscriber %d got %+v", i, ev)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d got nothing", i)
		}
	}

	unsubA()
	unsubA()
	if _, ok := <-a; ok {
		t.Fatal("expected closed channel after unsubscribe")
	}
	if h.Subscribers() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", h.Subscribers())
	}
}

func TestHub_SlowSubscriberDrops(t *testing.T) {
	t.Parallel()
	h := NewHub()
	ch, unsub := h.Subscribe(1)
	defer unsub()

	for i := 0; i < 3; i++ {
		_ = h.Publish(context.Background(), WebsiteEvent(WebsiteOnline, "w1", at))
	}
	if h.Dropped() != 2 {
		t.Fatalf("expected 2 dropped, got %d", h.Dropped())
	}
	if len(ch) != 1 {
		t.Fatalf("expected 1 buffered event, got %d", len(ch))
	}
}

func TestHub_Close(t *testing.T) {
	t.Parallel()
	h := NewHub()
	ch, unsub := h.Subscribe(0)
	h.Close()
	unsub()
	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel")
	}
	late, _ := h.Subscribe(0)
	if _, ok := <-late; ok {
		t.Fatal("subscribe after close should return a closed channel")
	}
}
