// Package monitor probes monitored websites, records each check and emits
// events when a website goes down or comes back.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/time/rate"

	"github.com/raysh454/compliscan/internal/clock"
	"github.com/raysh454/compliscan/internal/events"
	"github.com/raysh454/compliscan/internal/logging"
	"github.com/raysh454/compliscan/internal/model"
	"github.com/raysh454/compliscan/internal/store"
	"github.com/raysh454/compliscan/internal/webclient"
)

const DefaultUserAgent = "compliscan-monitor/1.0"

// Config tunes probing. Zero fields take their defaults.
type Config struct {
	Timeout       time.Duration
	SlowThreshold time.Duration
	Workers       int
	// RatePerSecond caps probe starts across a batch; zero disables the limit.
	RatePerSecond float64
	UptimeWindow  int
	UserAgent     string
}

func DefaultConfig() Config {
	return Config{
		Timeout:       10 * time.Second,
		SlowThreshold: 5 * time.Second,
		Workers:       10,
		RatePerSecond: 20,
		UptimeWindow:  100,
		UserAgent:     DefaultUserAgent,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.SlowThreshold <= 0 {
		c.SlowThreshold = d.SlowThreshold
	}
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.UptimeWindow <= 0 {
		c.UptimeWindow = d.UptimeWindow
	}
	if c.UserAgent == "" {
		c.UserAgent = d.UserAgent
	}
	return c
}

// Prober checks websites through a webclient and records the outcome.
type Prober struct {
	cfg       Config
	store     store.MonitorStore
	client    webclient.WebClient
	publisher events.Publisher
	clock     clock.Clock
	logger    logging.Logger
	limiter   *rate.Limiter
}

func NewProber(cfg Config, st store.MonitorStore, client webclient.WebClient, publisher events.Publisher, clk clock.Clock, logger logging.Logger) *Prober {
	cfg = cfg.withDefaults()
	if publisher == nil {
		publisher = events.PublisherFunc(func(context.Context, events.Event) error { return nil })
	}
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	limit := rate.Inf
	burst := cfg.Workers
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
		burst = max(1, int(cfg.RatePerSecond))
	}
	return &Prober{
		cfg:       cfg,
		store:     st,
		client:    client,
		publisher: publisher,
		clock:     clk,
		logger:    logger.With(logging.Component("monitor")),
		limiter:   rate.NewLimiter(limit, burst),
	}
}

// Probe performs one availability check of w and records it. Request
// failures are recorded as offline checks and never returned; only store
// errors surface.
func (p *Prober) Probe(ctx context.Context, w *model.Website) (*store.CheckOutcome, error) {
	check := p.check(ctx, w)

	out, err := p.store.RecordCheck(context.WithoutCancel(ctx), check, p.cfg.UptimeWindow)
	if err != nil {
		return nil, fmt.Errorf("recording check for %s: %w", w.ID, err)
	}

	p.logger.Debug("website checked",
		logging.Field{Key: "website_id", Value: w.ID},
		logging.Field{Key: "status", Value: string(check.Status)},
		logging.Field{Key: "response_ms", Value: check.ResponseTimeMS})

	if typ, ok := transition(out); ok {
		p.logger.Info("website status changed",
			logging.Field{Key: "website_id", Value: w.ID},
			logging.Field{Key: "from", Value: string(out.PreviousStatus)},
			logging.Field{Key: "to", Value: string(out.Website.Status)})
		_ = p.publisher.Publish(context.WithoutCancel(ctx), events.WebsiteEvent(typ, w.ID, check.CheckedAt))
	}
	return out, nil
}

// Check performs the request without recording it.
func (p *Prober) Check(ctx context.Context, w *model.Website) *model.WebsiteCheck {
	return p.check(ctx, w)
}

func (p *Prober) check(ctx context.Context, w *model.Website) *model.WebsiteCheck {
	cctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := p.client.Do(cctx, &webclient.Request{
		Method:  http.MethodGet,
		URL:     w.URL,
		Headers: http.Header{"User-Agent": []string{p.cfg.UserAgent}},
		Options: map[string]string{"render": "false"},
	})
	elapsed := time.Since(start)

	check := &model.WebsiteCheck{
		ID:        uuid.NewString(),
		WebsiteID: w.ID,
		CheckedAt: p.clock.Now(),
	}
	if err != nil {
		check.Status = model.StatusOffline
		check.ResponseTimeMS = elapsed.Milliseconds()
		check.Error = probeError(err, p.cfg.Timeout)
		return check
	}
	if resp.Elapsed > 0 {
		elapsed = resp.Elapsed
	}
	check.ResponseTimeMS = elapsed.Milliseconds()
	check.StatusCode = resp.StatusCode
	check.Status = Classify(resp.StatusCode, elapsed, p.cfg.SlowThreshold)
	if check.Status == model.StatusWarning && (resp.StatusCode < 200 || resp.StatusCode >= 400) {
		check.Error = fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	return check
}

// Classify maps a completed response onto a website status. Requests that
// never produced a response are offline and do not reach here.
func Classify(code int, elapsed, slow time.Duration) model.WebsiteStatus {
	if code >= 200 && code < 400 && elapsed < slow {
		return model.StatusOnline
	}
	return model.StatusWarning
}

func probeError(err error, timeout time.Duration) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("timed out after %s", timeout)
	}
	return err.Error()
}

// transition reports the event for an online/offline flip. The first check
// and any change involving warning emit nothing.
func transition(out *store.CheckOutcome) (events.Type, bool) {
	if out == nil || out.Website == nil || out.FirstCheck {
		return "", false
	}
	switch {
	case out.PreviousStatus == model.StatusOnline && out.Website.Status == model.StatusOffline:
		return events.WebsiteOffline, true
	case out.PreviousStatus == model.StatusOffline && out.Website.Status == model.StatusOnline:
		return events.WebsiteOnline, true
	}
	return "", false
}

// ProbeAll checks a batch on a bounded pool and waits for it. Failed
// recordings release the website's lease so the next tick can retry.
func (p *Prober) ProbeAll(ctx context.Context, sites []*model.Website, leaseOwner string) int {
	var (
		wp = pool.New().WithMaxGoroutines(p.cfg.Workers)
		ok = make([]bool, len(sites))
	)
	for i, w := range sites {
		i, w := i, w
		wp.Go(func() {
			if err := p.limiter.Wait(ctx); err != nil {
				p.release(w, leaseOwner)
				return
			}
			if _, err := p.Probe(ctx, w); err != nil {
				p.logger.Warn("probe failed", logging.Field{Key: "website_id", Value: w.ID}, logging.Err(err))
				p.release(w, leaseOwner)
				return
			}
			ok[i] = true
		})
	}
	wp.Wait()

	n := 0
	for _, done := range ok {
		if done {
			n++
		}
	}
	return n
}

func (p *Prober) release(w *model.Website, owner string) {
	if owner == "" {
		return
	}
	if err := p.store.ReleaseWebsite(context.Background(), w.ID, owner); err != nil {
		p.logger.Warn("releasing website lease", logging.Field{Key: "website_id", Value: w.ID}, logging.Err(err))
	}
}
