package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/raysh454/compliscan/internal/apperr"
	"github.com/raysh454/compliscan/internal/clock"
	"github.com/raysh454/compliscan/internal/history"
	"github.com/raysh454/compliscan/internal/logging"
	"github.com/raysh454/compliscan/internal/model"
	"github.com/raysh454/compliscan/internal/recurrence"
	"github.com/raysh454/compliscan/internal/store"
	"github.com/raysh454/compliscan/internal/utils"
)

const maxNameLength = 100

// Prober runs one availability check and records it.
type Prober interface {
	Probe(ctx context.Context, w *model.Website) (*store.CheckOutcome, error)
}

// Orchestrator is the service facade used by the HTTP layer and the CLI.
// Every call is scoped to an owner; another owner's record is reported as
// not found.
type Orchestrator struct {
	cfg      *Config
	data     Data
	monitor  store.MonitorStore
	executor *Executor
	prober   Prober
	calc     recurrence.Calculator
	clock    clock.Clock
	logger   logging.Logger
}

// Data is the relational persistence behind scans and schedules.
type Data interface {
	store.TargetStore
	store.ScanStore
	store.ScheduleStore
}

// OrchestratorDeps are the collaborators of an Orchestrator.
type OrchestratorDeps struct {
	Data     Data
	Monitor  store.MonitorStore
	Executor *Executor
	Prober   Prober
	Clock    clock.Clock
	Logger   logging.Logger
}

func NewOrchestrator(cfg *Config, deps OrchestratorDeps) *Orchestrator {
	cfg = cfg.withDefaults()
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNop()
	}
	return &Orchestrator{
		cfg:      cfg,
		data:     deps.Data,
		monitor:  deps.Monitor,
		executor: deps.Executor,
		prober:   deps.Prober,
		calc:     recurrence.Calculator{Overflow: cfg.MonthlyOverflow},
		clock:    deps.Clock,
		logger:   deps.Logger.With(logging.Component("orchestrator")),
	}
}

// Executor exposes the scan executor for lifecycle management.
func (o *Orchestrator) Executor() *Executor { return o.executor }

// Calculator is the recurrence calculator configured for this service.
func (o *Orchestrator) Calculator() recurrence.Calculator { return o.calc }

// ─── Targets ───────────────────────────────────────────────────────────

type TargetInput struct {
	URL       string `json:"url"`
	Name      string `json:"name,omitempty"`
	ProjectID string `json:"projectId,omitempty"`
}

func (o *Orchestrator) CreateTarget(ctx context.Context, owner string, in TargetInput) (*model.Target, error) {
	url, err := utils.NormalizeTargetURL(in.URL)
	if err != nil {
		return nil, apperr.Validation("invalid url: %v", err)
	}
	name := strings.TrimSpace(in.Name)
	if len(name) > maxNameLength {
		return nil, apperr.Validation("name must be at most %d characters", maxNameLength)
	}
	t := &model.Target{
		ID:        uuid.NewString(),
		ProjectID: in.ProjectID,
		OwnerID:   owner,
		Name:      name,
		URL:       url,
		CreatedAt: o.clock.Now(),
	}
	if err := o.data.CreateTarget(ctx, t); err != nil {
		return nil, classify(err, "url")
	}
	o.logger.Info("target created", logging.Field{Key: "url_id", Value: t.ID}, logging.Field{Key: "url", Value: t.URL})
	return t, nil
}

func (o *Orchestrator) GetTarget(ctx context.Context, owner, id string) (*model.Target, error) {
	t, err := o.data.GetTarget(ctx, id)
	if err != nil {
		return nil, classify(err, "url")
	}
	if t.OwnerID != owner {
		return nil, apperr.NotFound("url not found", nil)
	}
	return t, nil
}

func (o *Orchestrator) ListTargets(ctx context.Context, owner string) ([]*model.Target, error) {
	ts, err := o.data.ListTargets(ctx, owner)
	if err != nil {
		return nil, classify(err, "url")
	}
	return ts, nil
}

// ─── Scans ─────────────────────────────────────────────────────────────

// StartScan launches a scan of one of owner's targets. Nil options scan the
// default categories.
func (o *Orchestrator) StartScan(ctx context.Context, owner, urlID string, opts *model.ScanOptions) (*model.Scan, error) {
	if _, err := o.GetTarget(ctx, owner, urlID); err != nil {
		return nil, err
	}
	options := model.DefaultScanOptions()
	if opts != nil {
		options = *opts
	}
	return o.executor.Start(ctx, StartRequest{URLID: urlID, Options: options, RequestedBy: owner})
}

// GetScan reads the stored record; it never touches the executor.
func (o *Orchestrator) GetScan(ctx context.Context, owner, id string) (*model.Scan, error) {
	s, err := o.data.GetScan(ctx, id)
	if err != nil {
		return nil, classify(err, "scan")
	}
	if _, err := o.GetTarget(ctx, owner, s.URLID); err != nil {
		return nil, apperr.NotFound("scan not found", nil)
	}
	return s, nil
}

func (o *Orchestrator) ListScans(ctx context.Context, owner, urlID string, limit int) ([]*model.Scan, error) {
	if _, err := o.GetTarget(ctx, owner, urlID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = o.cfg.HistoryLimit
	}
	scans, err := o.data.ListScansByURL(ctx, urlID, limit)
	if err != nil {
		return nil, classify(err, "scan")
	}
	return scans, nil
}

func (o *Orchestrator) RecentScans(ctx context.Context, owner string, limit int) ([]*model.Scan, error) {
	scans, err := o.data.ListScansByRequester(ctx, owner, limit)
	if err != nil {
		return nil, classify(err, "scan")
	}
	return scans, nil
}

func (o *Orchestrator) CancelScan(ctx context.Context, owner, id string) (*model.Scan, error) {
	if _, err := o.GetScan(ctx, owner, id); err != nil {
		return nil, err
	}
	return o.executor.Cancel(ctx, id)
}

// CompareScan diffs a completed scan against the previous completed scan of
// the same target.
func (o *Orchestrator) CompareScan(ctx context.Context, owner, id string) (*history.Comparison, error) {
	head, err := o.GetScan(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if head.Status != model.ScanCompleted {
		return nil, apperr.Conflict("only completed scans can be compared", nil)
	}
	base, err := o.data.PreviousCompletedScan(ctx, head.URLID, head.CreatedAt)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("no earlier completed scan to compare with", err)
		}
		return nil, classify(err, "scan")
	}
	c, err := history.Compare(base, head)
	if err != nil {
		return nil, apperr.Conflict("scans cannot be compared", err)
	}
	return c, nil
}

// ─── Scheduled scans ───────────────────────────────────────────────────

type ScheduleInput struct {
	URLID string `json:"urlId"`
	model.Recurrence
	Options  *model.ScanOptions `json:"scanOptions,omitempty"`
	IsActive *bool              `json:"isActive,omitempty"`
}

func (o *Orchestrator) CreateSchedule(ctx context.Context, owner string, in ScheduleInput) (*model.ScheduledScan, error) {
	target, err := o.GetTarget(ctx, owner, in.URLID)
	if err != nil {
		return nil, err
	}
	now := o.clock.Now()
	s := &model.ScheduledScan{
		ID:         uuid.NewString(),
		URLID:      target.ID,
		ProjectID:  target.ProjectID,
		OwnerID:    owner,
		Recurrence: in.Recurrence,
		Options:    model.DefaultScanOptions(),
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := o.applyScheduleInput(s, in, now); err != nil {
		return nil, err
	}
	if err := o.data.CreateSchedule(ctx, s); err != nil {
		return nil, classify(err, "scheduled scan")
	}
	o.logger.Info("scheduled scan created",
		logging.Field{Key: "schedule_id", Value: s.ID},
		logging.Field{Key: "frequency", Value: string(s.Frequency)},
		logging.Field{Key: "next_run", Value: s.NextRun})
	return s, nil
}

// applyScheduleInput validates the rule and options and recomputes nextRun.
func (o *Orchestrator) applyScheduleInput(s *model.ScheduledScan, in ScheduleInput, now time.Time) error {
	s.Recurrence = in.Recurrence
	if in.Options != nil {
		s.Options = *in.Options
	}
	if in.IsActive != nil {
		s.IsActive = *in.IsActive
	}
	if err := recurrence.Validate(s.Recurrence); err != nil {
		return err
	}
	if len(s.Options.Enabled()) == 0 {
		return apperr.Validation("at least one scan category must be enabled")
	}
	next, err := o.calc.NextRun(s.Recurrence, now)
	if err != nil {
		return err
	}
	s.NextRun = &next
	s.UpdatedAt = now
	return nil
}

func (o *Orchestrator) GetSchedule(ctx context.Context, owner, id string) (*model.ScheduledScan, error) {
	s, err := o.data.GetSchedule(ctx, id)
	if err != nil {
		return nil, classify(err, "scheduled scan")
	}
	if s.OwnerID != owner {
		return nil, apperr.NotFound("scheduled scan not found", nil)
	}
	return s, nil
}

func (o *Orchestrator) ListSchedules(ctx context.Context, owner string) ([]*model.ScheduledScan, error) {
	ss, err := o.data.ListSchedules(ctx, owner)
	if err != nil {
		return nil, classify(err, "scheduled scan")
	}
	return ss, nil
}

// UpdateSchedule replaces the rule and options and recomputes nextRun from now.
func (o *Orchestrator) UpdateSchedule(ctx context.Context, owner, id string, in ScheduleInput) (*model.ScheduledScan, error) {
	s, err := o.GetSchedule(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if err := o.applyScheduleInput(s, in, o.clock.Now()); err != nil {
		return nil, err
	}
	if err := o.data.UpdateSchedule(ctx, s); err != nil {
		return nil, classify(err, "scheduled scan")
	}
	return s, nil
}

// ToggleSchedule pauses or resumes a rule. Resuming recomputes nextRun from
// now so missed fires are not replayed.
func (o *Orchestrator) ToggleSchedule(ctx context.Context, owner, id string, active bool) (*model.ScheduledScan, error) {
	s, err := o.GetSchedule(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	now := o.clock.Now()
	if active && !s.IsActive {
		next, err := o.calc.NextRun(s.Recurrence, now)
		if err != nil {
			return nil, err
		}
		s.NextRun = &next
	}
	s.IsActive = active
	s.UpdatedAt = now
	if err := o.data.UpdateSchedule(ctx, s); err != nil {
		return nil, classify(err, "scheduled scan")
	}
	o.logger.Info("scheduled scan toggled",
		logging.Field{Key: "schedule_id", Value: id},
		logging.Field{Key: "active", Value: active})
	return s, nil
}

func (o *Orchestrator) DeleteSchedule(ctx context.Context, owner, id string) error {
	if _, err := o.GetSchedule(ctx, owner, id); err != nil {
		return err
	}
	if err := o.data.DeleteSchedule(ctx, id); err != nil {
		return classify(err, "scheduled scan")
	}
	return nil
}

// PreviewSchedule returns the next n fire times of a rule from now.
func (o *Orchestrator) PreviewSchedule(ctx context.Context, owner, id string, n int) ([]time.Time, error) {
	s, err := o.GetSchedule(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		n = 5
	}
	if n > o.cfg.PreviewMax {
		return nil, apperr.Validation("n must be at most %d", o.cfg.PreviewMax)
	}
	return o.calc.Preview(s.Recurrence, o.clock.Now(), n)
}

// ─── Websites ──────────────────────────────────────────────────────────

type WebsiteInput struct {
	Name     string         `json:"name"`
	URL      string         `json:"url"`
	Interval model.Interval `json:"interval,omitempty"`
}

func (o *Orchestrator) CreateWebsite(ctx context.Context, owner string, in WebsiteInput) (*model.Website, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" || len(name) > maxNameLength {
		return nil, apperr.Validation("name is required and must be at most %d characters", maxNameLength)
	}
	url, err := utils.NormalizeTargetURL(in.URL)
	if err != nil {
		return nil, apperr.Validation("invalid url: %v", err)
	}
	interval := in.Interval
	if interval == "" {
		interval = model.DefaultInterval
	}
	if _, err := interval.Duration(); err != nil {
		return nil, apperr.Validation("interval must be 1min, 5min or 30min, got %q", interval)
	}
	now := o.clock.Now()
	w := &model.Website{
		ID:        uuid.NewString(),
		OwnerID:   owner,
		Name:      name,
		URL:       url,
		Interval:  interval,
		IsActive:  true,
		Status:    model.StatusOffline,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := o.monitor.CreateWebsite(ctx, w); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.Conflict("this url is already monitored", err)
		}
		return nil, classify(err, "website")
	}
	o.logger.Info("website created", logging.Field{Key: "website_id", Value: w.ID}, logging.Field{Key: "url", Value: w.URL})
	return w, nil
}

func (o *Orchestrator) GetWebsite(ctx context.Context, owner, id string) (*model.Website, error) {
	w, err := o.monitor.GetWebsite(ctx, id)
	if err != nil {
		return nil, classify(err, "website")
	}
	if w.OwnerID != owner {
		return nil, apperr.NotFound("website not found", nil)
	}
	return w, nil
}

func (o *Orchestrator) ListWebsites(ctx context.Context, owner string) ([]*model.Website, error) {
	ws, err := o.monitor.ListWebsites(ctx, owner)
	if err != nil {
		return nil, classify(err, "website")
	}
	return ws, nil
}

func (o *Orchestrator) ToggleWebsite(ctx context.Context, owner, id string, active bool) (*model.Website, error) {
	if _, err := o.GetWebsite(ctx, owner, id); err != nil {
		return nil, err
	}
	if err := o.monitor.SetWebsiteActive(ctx, id, active, o.clock.Now()); err != nil {
		return nil, classify(err, "website")
	}
	return o.GetWebsite(ctx, owner, id)
}

func (o *Orchestrator) DeleteWebsite(ctx context.Context, owner, id string) error {
	if _, err := o.GetWebsite(ctx, owner, id); err != nil {
		return err
	}
	if err := o.monitor.DeleteWebsite(ctx, id); err != nil {
		return classify(err, "website")
	}
	return nil
}

// CheckWebsite probes a website immediately, outside its interval.
func (o *Orchestrator) CheckWebsite(ctx context.Context, owner, id string) (*model.Website, error) {
	w, err := o.GetWebsite(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	out, err := o.prober.Probe(ctx, w)
	if err != nil {
		return nil, classify(err, "website")
	}
	return out.Website, nil
}

func (o *Orchestrator) ListChecks(ctx context.Context, owner, id string, limit int) ([]*model.WebsiteCheck, error) {
	if _, err := o.GetWebsite(ctx, owner, id); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = o.cfg.HistoryLimit
	}
	cs, err := o.monitor.ListChecks(ctx, id, limit)
	if err != nil {
		return nil, classify(err, "website")
	}
	return cs, nil
}

func (o *Orchestrator) MonitorStats(ctx context.Context, owner string) (model.MonitorStats, error) {
	ws, err := o.ListWebsites(ctx, owner)
	if err != nil {
		return model.MonitorStats{}, err
	}
	return model.ComputeStats(ws), nil
}
