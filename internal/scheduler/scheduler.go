// Package scheduler runs the poll-and-claim loop that fires due scheduled
// scans and probes due websites. Several instances may share one store;
// leases make every fire exclusive.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/raysh454/compliscan/internal/app"
	"github.com/raysh454/compliscan/internal/apperr"
	"github.com/raysh454/compliscan/internal/clock"
	"github.com/raysh454/compliscan/internal/logging"
	"github.com/raysh454/compliscan/internal/model"
	"github.com/raysh454/compliscan/internal/recurrence"
	"github.com/raysh454/compliscan/internal/store"
)

// Executor starts scans for fired rules.
type Executor interface {
	Start(ctx context.Context, req app.StartRequest) (*model.Scan, error)
}

// Prober checks a claimed batch of websites and releases what it could not record.
type Prober interface {
	ProbeAll(ctx context.Context, sites []*model.Website, leaseOwner string) int
}

type Config struct {
	TickInterval  time.Duration
	LeaseDuration time.Duration
	BatchSize     int
	// InstanceID owns the leases taken by this process. Empty means a random id.
	InstanceID string
	Calculator recurrence.Calculator
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = 30 * time.Second
	}
	if c.LeaseDuration <= 0 {
		c.LeaseDuration = 2 * time.Minute
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.InstanceID == "" {
		c.InstanceID = "scheduler-" + uuid.NewString()[:8]
	}
	return c
}

type Scheduler struct {
	cfg       Config
	schedules store.ScheduleStore
	websites  store.MonitorStore
	executor  Executor
	prober    Prober
	clock     clock.Clock
	logger    logging.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New builds a Scheduler. A nil websites store or prober disables website
// monitoring.
func New(cfg Config, schedules store.ScheduleStore, websites store.MonitorStore, executor Executor, prober Prober, clk clock.Clock, logger logging.Logger) *Scheduler {
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	cfg = cfg.withDefaults()
	return &Scheduler{
		cfg:       cfg,
		schedules: schedules,
		websites:  websites,
		executor:  executor,
		prober:    prober,
		clock:     clk,
		logger:    logger.With(logging.Component("scheduler"), logging.Field{Key: "instance", Value: cfg.InstanceID}),
		ctx:       ctx,
		cancel:    cancel,
		stopChan:  make(chan struct{}),
	}
}

// InstanceID is the lease owner used by this scheduler.
func (s *Scheduler) InstanceID() string { return s.cfg.InstanceID }

// Start launches the loop. It ticks once immediately.
func (s *Scheduler) Start() {
	s.logger.Info("starting scheduler", logging.Field{Key: "tick", Value: s.cfg.TickInterval.String()})
	s.wg.Add(1)
	go s.loop()
}

// Stop signals the loop and waits for the current tick to finish.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("stopping scheduler")
		close(s.stopChan)
		s.cancel()
	})
	s.wg.Wait()
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	s.Tick(s.ctx)
	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.Tick(s.ctx)
		}
	}
}

// Tick runs one pass over due schedules and due websites. Store errors are
// logged and the pass continues.
func (s *Scheduler) Tick(ctx context.Context) {
	s.fireSchedules(ctx)
	s.probeWebsites(ctx)
}

func (s *Scheduler) fireSchedules(ctx context.Context) {
	if s.schedules == nil || s.executor == nil {
		return
	}
	now := s.clock.Now()
	due, err := s.schedules.ListDueSchedules(ctx, now, s.cfg.BatchSize)
	if err != nil {
		s.logger.Error("listing due schedules", logging.Err(err))
		return
	}
	for _, rule := range due {
		if ctx.Err() != nil {
			return
		}
		ok, err := s.schedules.ClaimSchedule(ctx, rule.ID, s.cfg.InstanceID, now, now.Add(s.cfg.LeaseDuration))
		if err != nil {
			s.logger.Error("claiming schedule", logging.Field{Key: "schedule_id", Value: rule.ID}, logging.Err(err))
			continue
		}
		if !ok {
			continue
		}
		s.fire(ctx, rule, now)
	}
}

// fire starts one scan for a claimed rule and settles the lease. Caller-class
// failures still advance the rule; infrastructure failures leave it due.
func (s *Scheduler) fire(ctx context.Context, rule *model.ScheduledScan, now time.Time) {
	log := s.logger.With(logging.Field{Key: "schedule_id", Value: rule.ID})

	scan, err := s.executor.Start(ctx, app.StartRequest{
		URLID:           rule.URLID,
		Options:         rule.Options,
		RequestedBy:     rule.OwnerID,
		ScheduledScanID: rule.ID,
	})
	if err != nil && !apperr.IsCallerError(err) {
		log.Warn("scheduled scan not started, will retry", logging.Err(err))
		s.release(rule.ID)
		return
	}

	next, nerr := s.cfg.Calculator.NextRun(rule.Recurrence, now)
	if nerr != nil {
		log.Error("rule cannot be advanced, pausing it", logging.Err(nerr))
		s.pause(rule, now, nerr)
		return
	}

	adv := store.Advance{LastRun: now, NextRun: next}
	if err != nil {
		adv.LastError = apperr.Message(err)
		log.Info("scheduled scan rejected", logging.Field{Key: "reason", Value: adv.LastError})
	} else {
		adv.LastScanID = scan.ID
		log.Info("scheduled scan fired",
			logging.Field{Key: "scan_id", Value: scan.ID},
			logging.Field{Key: "next_run", Value: next})
	}
	if err := s.schedules.AdvanceSchedule(context.WithoutCancel(ctx), rule.ID, s.cfg.InstanceID, adv); err != nil {
		if errors.Is(err, store.ErrClaimLost) {
			log.Warn("lease lost before advancing")
			return
		}
		log.Error("advancing schedule", logging.Err(err))
		s.release(rule.ID)
	}
}

func (s *Scheduler) pause(rule *model.ScheduledScan, now time.Time, cause error) {
	rule.IsActive = false
	rule.LastError = cause.Error()
	rule.UpdatedAt = now
	if err := s.schedules.UpdateSchedule(context.Background(), rule); err != nil {
		s.logger.Error("pausing schedule", logging.Field{Key: "schedule_id", Value: rule.ID}, logging.Err(err))
	}
	s.release(rule.ID)
}

func (s *Scheduler) release(id string) {
	if err := s.schedules.ReleaseSchedule(context.Background(), id, s.cfg.InstanceID); err != nil {
		s.logger.Error("releasing schedule", logging.Field{Key: "schedule_id", Value: id}, logging.Err(err))
	}
}

func (s *Scheduler) probeWebsites(ctx context.Context) {
	if s.websites == nil || s.prober == nil {
		return
	}
	now := s.clock.Now()
	due, err := s.websites.ListDueWebsites(ctx, now, s.cfg.BatchSize)
	if err != nil {
		s.logger.Error("listing due websites", logging.Err(err))
		return
	}
	claimed := make([]*model.Website, 0, len(due))
	for _, w := range due {
		ok, err := s.websites.ClaimWebsite(ctx, w.ID, s.cfg.InstanceID, now, now.Add(s.cfg.LeaseDuration))
		if err != nil {
			s.logger.Error("claiming website", logging.Field{Key: "website_id", Value: w.ID}, logging.Err(err))
			continue
		}
		if ok {
			claimed = append(claimed, w)
		}
	}
	if len(claimed) == 0 {
		return
	}
	n := s.prober.ProbeAll(ctx, claimed, s.cfg.InstanceID)
	s.logger.Debug("websites probed", logging.Field{Key: "claimed", Value: len(claimed)}, logging.Field{Key: "recorded", Value: n})
}
