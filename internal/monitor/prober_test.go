package monitor

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/raysh454/compliscan/internal/clock"
	"github.com/raysh454/compliscan/internal/events"
	"github.com/raysh454/compliscan/internal/model"
	"github.com/raysh454/compliscan/internal/store/sqlite"
	"github.com/raysh454/compliscan/internal/testutil"
)

var t0 = time.Date(2025, 6, 4, 10, 0, 0, 0, time.UTC)

type fixture struct {
	store  *sqlite.Store
	client *testutil.DummyWebClient
	pub    *testutil.RecordingPublisher
	clock  *clock.Fake
	prober *Prober
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	s, err := sqlite.Open(filepath.Join(t.TempDir(), "monitor.db"), &testutil.DummyLogger{})
	if err != nil {
		t.Fatalf("sqlite.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	f := &fixture{
		store:  s,
		client: &testutil.DummyWebClient{Pages: map[string]testutil.DummyPage{}, FailURLs: map[string]bool{}},
		pub:    &testutil.RecordingPublisher{},
		clock:  clock.NewFake(t0),
	}
	f.prober = NewProber(cfg, s, f.client, f.pub, f.clock, &testutil.DummyLogger{})
	return f
}

func (f *fixture) website(t *testing.T, id, url string) *model.Website {
	t.Helper()
	w := &model.Website{
		ID: id, OwnerID: "acct-1", Name: id, URL: url, Interval: model.Interval5Min,
		IsActive: true, Status: model.StatusOffline, CreatedAt: t0, UpdatedAt: t0,
	}
	if err := f.store.CreateWebsite(context.Background(), w); err != nil {
		t.Fatalf("CreateWebsite: %v", err)
	}
	return w
}

func (f *fixture) probe(t *testing.T, w *model.Website) *model.Website {
	t.Helper()
	f.clock.Advance(time.Minute)
	out, err := f.prober.Probe(context.Background(), w)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	return out.Website
}

// ─── Classification ────────────────────────────────────────────────────

func TestClassify(t *testing.T) {
	t.Parallel()
	slow := 5 * time.Second
	cases := []struct {
		code    int
		elapsed time.Duration
		want    model.WebsiteStatus
	}{
		{200, time.Second, model.StatusOnline},
		{301, time.Second, model.StatusOnline},
		{204, 6 * time.Second, model.StatusWarning},
		{404, time.Second, model.StatusWarning},
		{500, time.Second, model.StatusWarning},
		{200, slow, model.StatusWarning},
	}
	for _, tc := range cases {
		if got := Classify(tc.code, tc.elapsed, slow); got != tc.want {
			t.Errorf("Classify(%d, %s) = %s, want %s", tc.code, tc.elapsed, got, tc.want)
		}
	}
}

// ─── Probe ─────────────────────────────────────────────────────────────

func TestProbe_FirstCheckOnlineEmitsNothing(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Config{})
	w := f.website(t, "w1", "https://shop.example/")
	f.client.Pages[w.URL] = testutil.DummyPage{Status: 200, Elapsed: 120 * time.Millisecond}

	got := f.probe(t, w)
	if got.Status != model.StatusOnline || got.ResponseTimeMS != 120 || got.Uptime != 100 {
		t.Fatalf("unexpected website %+v", got)
	}
	if got.LastCheck == nil || !got.LastCheck.Equal(t0.Add(time.Minute)) {
		t.Fatalf("unexpected lastCheck %v", got.LastCheck)
	}
	if len(f.pub.Events) != 0 {
		t.Fatalf("first check must not emit, got %+v", f.pub.Events)
	}
	if ua := f.client.Requests[0].Headers.Get("User-Agent"); ua != DefaultUserAgent {
		t.Fatalf("unexpected user agent %q", ua)
	}
}

func TestProbe_TransitionsEmitEvents(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Config{})
	w := f.website(t, "w1", "https://shop.example/")

	f.probe(t, w)

	f.client.FailURLs[w.URL] = true
	down := f.probe(t, w)
	if down.Status != model.StatusOffline || down.LastError == "" || down.FailedChecks != 1 {
		t.Fatalf("expected offline website, got %+v", down)
	}
	if got := f.pub.OfType(events.WebsiteOffline); len(got) != 1 || got[0].WebsiteID != w.ID {
		t.Fatalf("expected one website_offline event, got %+v", got)
	}

	f.probe(t, w)
	if len(f.pub.OfType(events.WebsiteOffline)) != 1 {
		t.Fatal("offline to offline must not emit")
	}

	delete(f.client.FailURLs, w.URL)
	up := f.probe(t, w)
	if up.Status != model.StatusOnline || up.TotalChecks != 4 || up.SuccessfulChecks != 2 {
		t.Fatalf("unexpected website after recovery %+v", up)
	}
	if len(f.pub.OfType(events.WebsiteOnline)) != 1 {
		t.Fatal("expected one website_online event")
	}
}

func TestProbe_WarningNeverEmits(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Config{SlowThreshold: time.Second})
	w := f.website(t, "w1", "https://shop.example/")

	f.probe(t, w)

	f.client.Pages[w.URL] = testutil.DummyPage{Status: 503}
	warn := f.probe(t, w)
	if warn.Status != model.StatusWarning || warn.LastStatusCode != 503 || warn.LastError != "HTTP 503" {
		t.Fatalf("expected warning for 503, got %+v", warn)
	}

	f.client.Pages[w.URL] = testutil.DummyPage{Status: 200, Elapsed: 2 * time.Second}
	if slow := f.probe(t, w); slow.Status != model.StatusWarning {
		t.Fatalf("expected warning for slow response, got %s", slow.Status)
	}
	if len(f.pub.Events) != 0 {
		t.Fatalf("warning must not emit, got %+v", f.pub.Events)
	}
}

func TestProbe_TimeoutIsOffline(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Config{Timeout: 20 * time.Millisecond})
	w := f.website(t, "w1", "https://slow.example/")
	f.client.ResponseDelay = time.Second

	got := f.probe(t, w)
	if got.Status != model.StatusOffline || got.LastError != "timed out after 20ms" {
		t.Fatalf("expected timed out offline check, got %s %q", got.Status, got.LastError)
	}
}

func TestProbe_WindowedUptime(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Config{UptimeWindow: 2})
	w := f.website(t, "w1", "https://shop.example/")

	f.probe(t, w)
	f.client.FailURLs[w.URL] = true
	if got := f.probe(t, w); got.Uptime != 50 {
		t.Fatalf("expected 50%% uptime, got %v", got.Uptime)
	}
	if got := f.probe(t, w); got.Uptime != 0 {
		t.Fatalf("expected window to forget the first check, got %v", got.Uptime)
	}

	checks, err := f.store.ListChecks(context.Background(), w.ID, 10)
	if err != nil || len(checks) != 3 {
		t.Fatalf("expected full history, got %d %v", len(checks), err)
	}
}

// ─── ProbeAll ──────────────────────────────────────────────────────────

func TestProbeAll_ChecksEveryWebsite(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Config{Workers: 2, RatePerSecond: 100})
	ctx := context.Background()
	var sites []*model.Website
	for _, id := range []string{"a", "b", "c"} {
		w := f.website(t, id, "https://"+id+".example/")
		if ok, err := f.store.ClaimWebsite(ctx, w.ID, "node-1", t0, t0.Add(time.Minute)); err != nil || !ok {
			t.Fatalf("ClaimWebsite: %v %v", ok, err)
		}
		sites = append(sites, w)
	}

	if n := f.prober.ProbeAll(ctx, sites, "node-1"); n != 3 {
		t.Fatalf("expected 3 probes, got %d", n)
	}
	for _, w := range sites {
		got, _ := f.store.GetWebsite(ctx, w.ID)
		if got.TotalChecks != 1 || got.ClaimedBy != "" {
			t.Fatalf("website %s not recorded and released: %+v", w.ID, got)
		}
	}
}

func TestProbeAll_CancelledReleasesLeases(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Config{})
	w := f.website(t, "a", "https://a.example/")
	if ok, _ := f.store.ClaimWebsite(context.Background(), w.ID, "node-1", t0, t0.Add(time.Hour)); !ok {
		t.Fatal("claim failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if n := f.prober.ProbeAll(ctx, []*model.Website{w}, "node-1"); n != 0 {
		t.Fatalf("expected no probes on a cancelled context, got %d", n)
	}
	if ok, err := f.store.ClaimWebsite(context.Background(), w.ID, "node-2", t0, t0.Add(time.Hour)); err != nil || !ok {
		t.Fatalf("lease should have been released: %v %v", ok, err)
	}
}
