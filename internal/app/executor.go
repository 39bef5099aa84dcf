package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/raysh454/compliscan/internal/aggregate"
	"github.com/raysh454/compliscan/internal/analyzer"
	"github.com/raysh454/compliscan/internal/apperr"
	"github.com/raysh454/compliscan/internal/clock"
	"github.com/raysh454/compliscan/internal/events"
	"github.com/raysh454/compliscan/internal/logging"
	"github.com/raysh454/compliscan/internal/model"
	"github.com/raysh454/compliscan/internal/store"
	"github.com/raysh454/compliscan/internal/webclient"
)

const (
	msgCancelled   = "cancelled"
	msgInterrupted = "interrupted"
)

// ScanStore is the persistence the executor needs.
type ScanStore interface {
	store.TargetStore
	store.ScanStore
}

// StartRequest asks the executor for one scan of a target.
type StartRequest struct {
	URLID           string
	Options         model.ScanOptions
	RequestedBy     string
	ScheduledScanID string
}

// Executor creates scans, runs their analyzers in the background and
// settles each scan exactly once.
type Executor struct {
	cfg        *Config
	store      ScanStore
	analyzers  *analyzer.Set
	client     webclient.WebClient
	aggregator *aggregate.Aggregator
	publisher  events.Publisher
	clock      clock.Clock
	logger     logging.Logger

	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu   sync.Mutex
	runs map[string]context.CancelFunc
	wg   sync.WaitGroup
}

// ExecutorDeps are the collaborators of an Executor. Nil Publisher, Clock,
// Logger and Aggregator get no-op or default implementations.
type ExecutorDeps struct {
	Store      ScanStore
	Analyzers  *analyzer.Set
	Client     webclient.WebClient
	Aggregator *aggregate.Aggregator
	Publisher  events.Publisher
	Clock      clock.Clock
	Logger     logging.Logger
}

func NewExecutor(cfg *Config, deps ExecutorDeps) *Executor {
	if deps.Aggregator == nil {
		deps.Aggregator = aggregate.New(nil)
	}
	if deps.Publisher == nil {
		deps.Publisher = events.PublisherFunc(func(context.Context, events.Event) error { return nil })
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNop()
	}
	if deps.Analyzers == nil {
		deps.Analyzers = analyzer.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Executor{
		cfg:        cfg.withDefaults(),
		store:      deps.Store,
		analyzers:  deps.Analyzers,
		client:     deps.Client,
		aggregator: deps.Aggregator,
		publisher:  deps.Publisher,
		clock:      deps.Clock,
		logger:     deps.Logger.With(logging.Component("executor")),
		baseCtx:    ctx,
		baseCancel: cancel,
		runs:       make(map[string]context.CancelFunc),
	}
}

// Start creates a pending scan, claims it and launches the run. The returned
// scan is in scanning unless another claimer won, in which case the stored
// record is returned untouched.
func (e *Executor) Start(ctx context.Context, req StartRequest) (*model.Scan, error) {
	if len(req.Options.Enabled()) == 0 {
		return nil, apperr.Validation("at least one scan category must be enabled")
	}
	analyzers, err := e.analyzers.For(req.Options)
	if err != nil {
		return nil, apperr.Internal("analyzer configuration", err)
	}

	target, err := e.store.GetTarget(ctx, req.URLID)
	if err != nil {
		return nil, classify(err, "url")
	}

	now := e.clock.Now()
	scan := &model.Scan{
		ID:              uuid.NewString(),
		URLID:           target.ID,
		ProjectID:       target.ProjectID,
		RequestedBy:     req.RequestedBy,
		ScheduledScanID: req.ScheduledScanID,
		Status:          model.ScanPending,
		Options:         req.Options,
		CreatedAt:       now,
	}
	if err := e.store.CreateScan(ctx, scan); err != nil {
		return nil, classify(err, "scan")
	}

	claimed, err := e.store.ClaimScan(ctx, scan.ID, now)
	if err != nil {
		return nil, apperr.Internal("claiming scan", err)
	}
	if !claimed {
		stored, err := e.store.GetScan(ctx, scan.ID)
		if err != nil {
			return nil, classify(err, "scan")
		}
		return stored, nil
	}
	scan.Status = model.ScanScanning
	scan.StartedAt = &now

	runCtx, cancel := context.WithCancel(e.baseCtx)
	e.mu.Lock()
	e.runs[scan.ID] = cancel
	e.mu.Unlock()

	e.wg.Add(1)
	go e.run(runCtx, scan, target, analyzers)

	e.logger.Info("scan started",
		logging.Field{Key: "scan_id", Value: scan.ID},
		logging.Field{Key: "url_id", Value: scan.URLID},
		logging.Field{Key: "categories", Value: len(analyzers)})
	_ = e.publisher.Publish(ctx, events.ScanEvent(events.ScanStarted, scan.ID, scan.URLID, now))

	out := *scan
	return &out, nil
}

func (e *Executor) run(ctx context.Context, scan *model.Scan, target *model.Target, analyzers []analyzer.Analyzer) {
	defer e.wg.Done()
	defer func() {
		e.mu.Lock()
		if cancel, ok := e.runs[scan.ID]; ok {
			cancel()
			delete(e.runs, scan.ID)
		}
		e.mu.Unlock()
	}()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("scan run panicked",
				logging.Field{Key: "scan_id", Value: scan.ID},
				logging.Field{Key: "panic", Value: fmt.Sprint(r)})
			e.fail(scan, fmt.Sprintf("internal error: %v", r))
		}
	}()

	page, err := analyzer.LoadPage(ctx, e.client, target.URL)
	if err != nil {
		if ctx.Err() != nil {
			e.fail(scan, msgInterrupted)
			return
		}
		e.logger.Warn("pre-flight failed", logging.Field{Key: "scan_id", Value: scan.ID}, logging.Err(err))
		e.fail(scan, fmt.Sprintf("failed to load %s: %v", target.URL, err))
		return
	}
	t := analyzer.NewTarget(target.URL, scan.Options, page, e.client)

	results := e.runAnalyzers(ctx, scan, t, analyzers)
	if ctx.Err() != nil {
		e.fail(scan, msgInterrupted)
		return
	}

	var failures []string
	for _, a := range analyzers {
		if r := results[a.Category()]; r.Failed {
			failures = append(failures, fmt.Sprintf("%s: %s", a.Category(), strings.TrimPrefix(r.Issues[0], "analysis failed: ")))
		}
	}
	if len(failures) == len(analyzers) {
		e.fail(scan, "all analyzers failed: "+strings.Join(failures, "; "))
		return
	}

	res := &model.Results{Overall: e.aggregator.Aggregate(scan.Options, results)}
	for c, r := range results {
		res.Set(c, r)
	}
	e.complete(scan, res)
}

// runAnalyzers fans the analyzers out on a bounded pool. Every enabled
// category gets a result; failures are degraded results.
func (e *Executor) runAnalyzers(ctx context.Context, scan *model.Scan, t *analyzer.Target, analyzers []analyzer.Analyzer) map[model.Category]*model.CategoryResult {
	limit := min(len(analyzers), e.cfg.MaxConcurrency, len(model.Categories))

	var (
		mu      sync.Mutex
		results = make(map[model.Category]*model.CategoryResult, len(analyzers))
		done    int
	)
	p := pool.New().WithMaxGoroutines(limit)
	for _, a := range analyzers {
		a := a
		p.Go(func() {
			res, err := e.runAnalyzer(ctx, a, t)
			if err != nil {
				e.logger.Warn("analyzer failed",
					logging.Field{Key: "scan_id", Value: scan.ID},
					logging.Field{Key: "category", Value: string(a.Category())},
					logging.Err(err))
				res = degraded(err)
			}
			mu.Lock()
			results[a.Category()] = res
			done++
			completed := done
			mu.Unlock()
			_ = e.publisher.Publish(ctx, events.ProgressEvent(scan.ID, scan.URLID, string(a.Category()), completed, len(analyzers), e.clock.Now()))
		})
	}
	p.Wait()
	return results
}

// runAnalyzer bounds one call by the analyzer timeout even if the analyzer
// ignores its context, and turns panics into errors.
func (e *Executor) runAnalyzer(ctx context.Context, a analyzer.Analyzer, t *analyzer.Target) (*model.CategoryResult, error) {
	actx, cancel := context.WithTimeout(ctx, e.cfg.AnalyzerTimeout)
	defer cancel()

	type outcome struct {
		res *model.CategoryResult
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		res, err := a.Run(actx, t)
		if err == nil && res == nil {
			err = errors.New("analyzer returned no result")
		}
		ch <- outcome{res: res, err: err}
	}()

	select {
	case out := <-ch:
		if out.err != nil && errors.Is(out.err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("timed out after %s", e.cfg.AnalyzerTimeout)
		}
		return out.res, out.err
	case <-actx.Done():
		if errors.Is(actx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("timed out after %s", e.cfg.AnalyzerTimeout)
		}
		return nil, actx.Err()
	}
}

func degraded(err error) *model.CategoryResult {
	return &model.CategoryResult{
		Score:           0,
		Issues:          []string{"analysis failed: " + err.Error()},
		Recommendations: []string{},
		Failed:          true,
	}
}

func (e *Executor) complete(scan *model.Scan, res *model.Results) {
	ctx := context.WithoutCancel(e.baseCtx)
	now := e.clock.Now()
	won, err := e.store.CompleteScan(ctx, scan.ID, res, now, e.duration(scan, now))
	if err != nil {
		e.logger.Error("completing scan", logging.Field{Key: "scan_id", Value: scan.ID}, logging.Err(err))
		return
	}
	if !won {
		return
	}
	e.logger.Info("scan completed",
		logging.Field{Key: "scan_id", Value: scan.ID},
		logging.Field{Key: "score", Value: res.Overall.Score},
		logging.Field{Key: "grade", Value: res.Overall.Grade})
	e.settled(ctx, scan, model.ScanCompleted, now)
}

func (e *Executor) fail(scan *model.Scan, message string) {
	ctx := context.WithoutCancel(e.baseCtx)
	now := e.clock.Now()
	won, err := e.store.FailScan(ctx, scan.ID, message, now, e.duration(scan, now))
	if err != nil {
		e.logger.Error("failing scan", logging.Field{Key: "scan_id", Value: scan.ID}, logging.Err(err))
		return
	}
	if !won {
		return
	}
	e.logger.Info("scan failed",
		logging.Field{Key: "scan_id", Value: scan.ID},
		logging.Field{Key: "reason", Value: message})
	e.settled(ctx, scan, model.ScanFailed, now)
}

// settled runs the side effects owned by whoever won the terminal transition.
func (e *Executor) settled(ctx context.Context, scan *model.Scan, status model.ScanStatus, at time.Time) {
	typ := events.ScanCompleted
	if status == model.ScanFailed {
		typ = events.ScanFailed
	}
	_ = e.publisher.Publish(ctx, events.ScanEvent(typ, scan.ID, scan.URLID, at))
	if err := e.store.UpdateTargetScanStatus(ctx, scan.URLID, status, at); err != nil {
		e.logger.Warn("updating target status", logging.Field{Key: "url_id", Value: scan.URLID}, logging.Err(err))
	}
}

func (e *Executor) duration(scan *model.Scan, now time.Time) int64 {
	from := scan.CreatedAt
	if scan.StartedAt != nil {
		from = *scan.StartedAt
	}
	if d := now.Sub(from).Milliseconds(); d > 0 {
		return d
	}
	return 0
}

// Cancel fails an active scan with "cancelled" and stops its run.
func (e *Executor) Cancel(ctx context.Context, scanID string) (*model.Scan, error) {
	scan, err := e.store.GetScan(ctx, scanID)
	if err != nil {
		return nil, classify(err, "scan")
	}
	if scan.Status.IsTerminal() {
		return nil, apperr.Conflict(fmt.Sprintf("scan is already %s", scan.Status), nil)
	}

	now := e.clock.Now()
	won, err := e.store.FailScan(ctx, scanID, msgCancelled, now, e.duration(scan, now))
	if err != nil {
		return nil, apperr.Internal("cancelling scan", err)
	}
	if !won {
		return nil, apperr.Conflict("scan already finished", nil)
	}

	e.mu.Lock()
	if cancel, ok := e.runs[scanID]; ok {
		cancel()
	}
	e.mu.Unlock()

	e.logger.Info("scan cancelled", logging.Field{Key: "scan_id", Value: scanID})
	e.settled(ctx, scan, model.ScanFailed, now)

	updated, err := e.store.GetScan(ctx, scanID)
	if err != nil {
		return nil, classify(err, "scan")
	}
	return updated, nil
}

// RecoverInterrupted fails scans left active by a previous process. Scans
// running in this process are skipped.
func (e *Executor) RecoverInterrupted(ctx context.Context) (int, error) {
	now := e.clock.Now()
	stale, err := e.store.ListStaleScans(ctx, now.Add(-e.cfg.StaleAfter))
	if err != nil {
		return 0, fmt.Errorf("listing stale scans: %w", err)
	}
	n := 0
	for _, scan := range stale {
		if e.Running(scan.ID) {
			continue
		}
		won, err := e.store.FailScan(ctx, scan.ID, msgInterrupted, now, e.duration(scan, now))
		if err != nil {
			return n, fmt.Errorf("failing stale scan %s: %w", scan.ID, err)
		}
		if won {
			n++
			e.settled(ctx, scan, model.ScanFailed, now)
		}
	}
	if n > 0 {
		e.logger.Info("recovered interrupted scans", logging.Field{Key: "count", Value: n})
	}
	return n, nil
}

// Running reports whether scanID has a live run in this process.
func (e *Executor) Running(scanID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.runs[scanID]
	return ok
}

// Wait blocks until every launched run has returned.
func (e *Executor) Wait() { e.wg.Wait() }

// Shutdown cancels every run and waits for them, or for ctx.
func (e *Executor) Shutdown(ctx context.Context) error {
	e.baseCancel()
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for scans: %w", ctx.Err())
	}
}

// classify maps store sentinels onto caller-visible kinds.
func classify(err error, what string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apperr.NotFound(what+" not found", err)
	case errors.Is(err, store.ErrActiveScan):
		return apperr.Conflict("a scan is already in progress for this url", err)
	case errors.Is(err, store.ErrDuplicate):
		return apperr.Conflict(what+" already exists", err)
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.Internal(what+" storage error", err)
}
