// Package testutil provides shared test doubles for use across package tests.
// All dummies implement the corresponding interfaces from the production code,
// allowing injection into components under test without real I/O or side effects.
package testutil

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/raysh454/compliscan/internal/analyzer"
	"github.com/raysh454/compliscan/internal/events"
	"github.com/raysh454/compliscan/internal/logging"
	"github.com/raysh454/compliscan/internal/model"
	"github.com/raysh454/compliscan/internal/webclient"
)

// ─── Logger ────────────────────────────────────────────────────────────

// DummyLogger implements logging.Logger with in-memory recording.
type DummyLogger struct {
	mu     sync.Mutex
	Errors []string
	Infos  []string
	Debugs []string
	Warns  []string
}

func (l *DummyLogger) Debug(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Debugs = append(l.Debugs, msg)
}

func (l *DummyLogger) Info(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Infos = append(l.Infos, msg)
}

func (l *DummyLogger) Warn(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Warns = append(l.Warns, msg)
}

func (l *DummyLogger) Error(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Errors = append(l.Errors, msg)
}

func (l *DummyLogger) With(_ ...logging.Field) logging.Logger { return l }

// ErrorCount returns how many errors were logged so far.
func (l *DummyLogger) ErrorCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Errors)
}

// ─── WebClient ─────────────────────────────────────────────────────────

// DummyWebClient implements webclient.WebClient.
// By default it returns body "ok:<url>" with status 200.
// Set FailURLs[url] = true to force an error for a specific URL, or
// Pages[url] to serve a canned response.
type DummyWebClient struct {
	ResponseDelay time.Duration
	FailURLs      map[string]bool
	Pages         map[string]DummyPage

	mu       sync.Mutex
	Requests []*webclient.Request
}

// DummyPage is a canned response.
type DummyPage struct {
	Status  int
	Headers http.Header
	Body    string
	Elapsed time.Duration
}

func (d *DummyWebClient) Do(ctx context.Context, req *webclient.Request) (*webclient.Response, error) {
	if d.ResponseDelay > 0 {
		select {
		case <-time.After(d.ResponseDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	d.mu.Lock()
	d.Requests = append(d.Requests, req)
	d.mu.Unlock()

	if d.FailURLs != nil && d.FailURLs[req.URL] {
		return nil, &errString{"dummy fetch fail for " + req.URL}
	}

	resp := &webclient.Response{
		Request:    req,
		Headers:    http.Header{},
		Body:       []byte("ok:" + req.URL),
		StatusCode: http.StatusOK,
		FinalURL:   req.URL,
		FetchedAt:  time.Now(),
	}
	if p, ok := d.Pages[req.URL]; ok {
		if p.Status != 0 {
			resp.StatusCode = p.Status
		}
		if p.Headers != nil {
			resp.Headers = p.Headers
		}
		resp.Body = []byte(p.Body)
		resp.Elapsed = p.Elapsed
	}
	return resp, nil
}

func (d *DummyWebClient) Get(ctx context.Context, url string) (*webclient.Response, error) {
	return d.Do(ctx, &webclient.Request{Method: "GET", URL: url})
}

func (d *DummyWebClient) Close() error { return nil }

// RequestCount returns the number of requests seen so far.
func (d *DummyWebClient) RequestCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.Requests)
}

// ─── Analyzer ──────────────────────────────────────────────────────────

// StubAnalyzer implements analyzer.Analyzer with a fixed outcome.
// Delay blocks until the context ends or the delay passes; Block ignores the
// context entirely, to exercise the executor's own timeout.
type StubAnalyzer struct {
	Cat    model.Category
	Score  int
	Issues []string
	Err    error
	Delay  time.Duration
	Block  time.Duration
	Panic  bool

	calls atomic.Int32
}

func (s *StubAnalyzer) Category() model.Category { return s.Cat }

func (s *StubAnalyzer) Run(ctx context.Context, _ *analyzer.Target) (*model.CategoryResult, error) {
	s.calls.Add(1)
	if s.Panic {
		panic("stub analyzer panic")
	}
	if s.Block > 0 {
		time.Sleep(s.Block)
	}
	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.Err != nil {
		return nil, s.Err
	}
	issues := append([]string{}, s.Issues...)
	recs := make([]string, 0, len(issues))
	for _, is := range issues {
		recs = append(recs, "fix: "+is)
	}
	return &model.CategoryResult{Score: s.Score, Issues: issues, Recommendations: recs}, nil
}

// Calls returns how many times Run was invoked.
func (s *StubAnalyzer) Calls() int { return int(s.calls.Load()) }

// ─── Events ────────────────────────────────────────────────────────────

// RecordingPublisher implements events.Publisher and keeps every event.
type RecordingPublisher struct {
	mu     sync.Mutex
	Events []events.Event
	Err    error
}

func (r *RecordingPublisher) Publish(_ context.Context, ev events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, ev)
	return r.Err
}

// OfType returns the recorded events of type t, oldest first.
func (r *RecordingPublisher) OfType(t events.Type) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, ev := range r.Events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// ─── Helpers ───────────────────────────────────────────────────────────

// WaitFor polls cond every 5ms until it holds or timeout elapses.
func WaitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

type errString struct{ s string }

func (e *errString) Error() string { return e.s }
