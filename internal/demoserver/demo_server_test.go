package demoserver_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/raysh454/compliscan/internal/analyzer"
	"github.com/raysh454/compliscan/internal/demoserver"
	"github.com/raysh454/compliscan/internal/model"
	"github.com/raysh454/compliscan/internal/webclient"
)

func newSite(t *testing.T) (*demoserver.DemoServer, *httptest.Server) {
	t.Helper()
	cfg := demoserver.DefaultConfig()
	cfg.SlowDelay = 50 * time.Millisecond
	ds := demoserver.NewDemoServer(cfg, nil)
	ts := httptest.NewServer(ds.Handler())
	t.Cleanup(ts.Close)
	return ds, ts
}

func analyze(t *testing.T, a analyzer.Analyzer, pageURL string) *model.CategoryResult {
	t.Helper()
	wc, err := webclient.NewNetHTTPClient(webclient.Config{}, nil, nil)
	if err != nil {
		t.Fatalf("NewNetHTTPClient: %v", err)
	}
	ctx := context.Background()
	page, err := analyzer.LoadPage(ctx, wc, pageURL)
	if err != nil {
		t.Fatalf("LoadPage: %v", err)
	}
	res, err := a.Run(ctx, analyzer.NewTarget(pageURL, model.ScanOptions{GDPR: true}, page, wc))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return res
}

// ─── Versions ──────────────────────────────────────────────────────────

func TestDemoServer_HomeVersionsDifferInCompliance(t *testing.T) {
	t.Parallel()
	ds, ts := newSite(t)

	v1 := analyze(t, analyzer.NewGDPR(), ts.URL+"/")
	if v1.Score >= 50 {
		t.Errorf("expected v1 GDPR score below 50, got %d (%v)", v1.Score, v1.Issues)
	}

	ds.SetAll(2)
	v2 := analyze(t, analyzer.NewGDPR(), ts.URL+"/")
	if v2.Score != 100 {
		t.Errorf("expected v2 GDPR score 100, got %d (%v)", v2.Score, v2.Issues)
	}
	a11y := analyze(t, analyzer.NewAccessibility(), ts.URL+"/")
	if a11y.Score != 100 {
		t.Errorf("expected v2 accessibility score 100, got %d (%v)", a11y.Score, a11y.Issues)
	}
}

func TestDemoServer_HeadersFollowVersion(t *testing.T) {
	t.Parallel()
	ds, ts := newSite(t)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.Header.Get("X-Powered-By") == "" || resp.Header.Get("Content-Security-Policy") != "" {
		t.Errorf("v1 should leak and lack CSP: %v", resp.Header)
	}

	if !ds.SetVersion("/", 2) {
		t.Fatal("SetVersion(/) reported unknown page")
	}
	resp, err = http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.Header.Get("X-Powered-By") != "" || resp.Header.Get("Content-Security-Policy") == "" {
		t.Errorf("v2 should be hardened: %v", resp.Header)
	}
}

func TestDemoServer_ControlEndpoints(t *testing.T) {
	t.Parallel()
	_, ts := newSite(t)

	resp, err := http.PostForm(ts.URL+"/demo/set-version", url.Values{"path": {"/contact"}, "version": {"2"}})
	if err != nil {
		t.Fatalf("POST set-version: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	resp, err = http.PostForm(ts.URL+"/demo/set-version", url.Values{"path": {"/nope"}, "version": {"2"}})
	if err != nil {
		t.Fatalf("POST set-version: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for unknown page, got %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/demo/get-versions")
	if err != nil {
		t.Fatalf("GET versions: %v", err)
	}
	defer resp.Body.Close()
	var pages []demoserver.PageInfo
	if err := json.NewDecoder(resp.Body).Decode(&pages); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, p := range pages {
		want := 1
		if p.Path == "/contact" {
			want = 2
		}
		if p.CurrentVersion != want {
			t.Errorf("%s: expected version %d, got %d", p.Path, want, p.CurrentVersion)
		}
	}
}

// ─── Monitor endpoints ─────────────────────────────────────────────────

func TestDemoServer_OutageAndStatus(t *testing.T) {
	t.Parallel()
	_, ts := newSite(t)

	resp, err := http.Post(ts.URL+"/demo/outage", "application/x-www-form-urlencoded", strings.NewReader("on=true"))
	if err != nil {
		t.Fatalf("POST outage: %v", err)
	}
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503 during outage, got %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/status/418")
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusTeapot {
		t.Errorf("expected 418, got %d", resp.StatusCode)
	}

	start := time.Now()
	resp, err = http.Get(ts.URL + "/slow")
	if err != nil {
		t.Fatalf("GET slow: %v", err)
	}
	resp.Body.Close()
	if time.Since(start) < 50*time.Millisecond {
		t.Error("expected /slow to wait for the configured delay")
	}
}
