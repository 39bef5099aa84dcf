package cli

import (
	"fmt"
	"net/http"
	"time"

	"github.com/raysh454/compliscan/internal/analyzer"
	"github.com/raysh454/compliscan/internal/app"
	"github.com/raysh454/compliscan/internal/clock"
	"github.com/raysh454/compliscan/internal/config"
	"github.com/raysh454/compliscan/internal/events"
	"github.com/raysh454/compliscan/internal/logging"
	"github.com/raysh454/compliscan/internal/monitor"
	"github.com/raysh454/compliscan/internal/recurrence"
	"github.com/raysh454/compliscan/internal/scheduler"
	"github.com/raysh454/compliscan/internal/server"
	"github.com/raysh454/compliscan/internal/store"
	"github.com/raysh454/compliscan/internal/store/bolt"
	"github.com/raysh454/compliscan/internal/store/sqlite"
	"github.com/raysh454/compliscan/internal/webclient"
)

// runtime is everything serve needs, wired from one config.
type runtime struct {
	app       *app.Application
	server    *server.Server
	scheduler *scheduler.Scheduler
}

func appConfig(cfg *config.Config) (*app.Config, recurrence.Calculator, error) {
	overflow, err := recurrence.ParseOverflowPolicy(cfg.Scheduler.MonthlyOverflow)
	if err != nil {
		return nil, recurrence.Calculator{}, err
	}
	return &app.Config{
		AnalyzerTimeout: cfg.Executor.AnalyzerTimeout,
		StaleAfter:      cfg.Executor.StaleAfter,
		MaxConcurrency:  cfg.Executor.MaxConcurrency,
		MonthlyOverflow: overflow,
		HistoryLimit:    cfg.Executor.HistoryLimit,
		PreviewMax:      cfg.Scheduler.PreviewMax,
	}, recurrence.Calculator{Overflow: overflow}, nil
}

func monitorConfig(cfg config.MonitorConfig) monitor.Config {
	return monitor.Config{
		Timeout:       cfg.Timeout,
		SlowThreshold: cfg.SlowThreshold,
		Workers:       cfg.Workers,
		RatePerSecond: cfg.RatePerSecond,
		UptimeWindow:  cfg.UptimeWindow,
		UserAgent:     cfg.UserAgent,
	}
}

func webclientConfig(cfg config.WebClientConfig) webclient.Config {
	return webclient.Config{
		Client:     webclient.Client(cfg.Backend),
		Timeout:    cfg.Timeout,
		RenderIdle: cfg.RenderIdle,
		UserAgent:  cfg.UserAgent,
	}
}

// openMonitorStore returns the configured monitor backend. The sqlite store
// doubles as the monitor store unless bolt is selected.
func openMonitorStore(cfg *config.Config, data *sqlite.Store) (store.MonitorStore, func() error, error) {
	switch cfg.Storage.MonitorBackend {
	case "", "sqlite":
		return data, func() error { return nil }, nil
	case "bolt":
		b, err := bolt.Open(cfg.MonitorBoltPath())
		if err != nil {
			return nil, nil, err
		}
		return b, b.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown monitor backend %q", cfg.Storage.MonitorBackend)
	}
}

// buildPublisher fans out to the log, the optional webhook and AMQP sinks and
// the websocket hub, which also receives progress events.
func buildPublisher(cfg config.EventsConfig, hub *events.Hub, logger logging.Logger) (*events.Multi, func() error, error) {
	sinks := []events.Publisher{events.NewLog(logger)}
	closeFn := func() error { return nil }

	if cfg.WebhookURL != "" {
		sinks = append(sinks, events.NewWebhook(cfg.WebhookURL, &http.Client{Timeout: 10 * time.Second}))
	}
	if cfg.AMQP.URL != "" {
		pub, err := events.NewAMQP(cfg.AMQP.URL, cfg.AMQP.Exchange, logger)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, pub)
		closeFn = pub.Close
	}

	multi := events.NewMulti(logger, sinks...)
	multi.AddLive(hub)
	return multi, closeFn, nil
}

// build wires the stores, the executor, the prober, the scheduler and the API
// server. Everything opened here is closed by app.Shutdown.
func build(cfg *config.Config, logger logging.Logger) (*runtime, error) {
	appCfg, calc, err := appConfig(cfg)
	if err != nil {
		return nil, err
	}

	data, err := sqlite.Open(cfg.DatabasePath(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	closers := []func() error{data.Close}
	fail := func(err error) (*runtime, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
		return nil, err
	}

	mon, closeMon, err := openMonitorStore(cfg, data)
	if err != nil {
		return fail(fmt.Errorf("failed to open monitor store: %w", err))
	}
	closers = append(closers, closeMon)

	client, err := webclient.NewWebClient(webclientConfig(cfg.WebClient), logger)
	if err != nil {
		return fail(fmt.Errorf("failed to create webclient: %w", err))
	}
	closers = append(closers, client.Close)

	hub := events.NewHub()
	closers = append(closers, func() error { hub.Close(); return nil })
	publisher, closePub, err := buildPublisher(cfg.Events, hub, logger)
	if err != nil {
		return fail(fmt.Errorf("failed to connect event publisher: %w", err))
	}
	closers = append(closers, closePub)

	clk := clock.Real{}
	exec := app.NewExecutor(appCfg, app.ExecutorDeps{
		Store:     data,
		Analyzers: analyzer.Default(),
		Client:    client,
		Publisher: publisher,
		Clock:     clk,
		Logger:    logger,
	})
	prober := monitor.NewProber(monitorConfig(cfg.Monitor), mon, client, publisher, clk, logger)
	orch := app.NewOrchestrator(appCfg, app.OrchestratorDeps{
		Data:     data,
		Monitor:  mon,
		Executor: exec,
		Prober:   prober,
		Clock:    clk,
		Logger:   logger,
	})

	rt := &runtime{}
	var services []app.Service
	if cfg.Scheduler.Enabled {
		rt.scheduler = scheduler.New(scheduler.Config{
			TickInterval:  cfg.Scheduler.TickInterval,
			LeaseDuration: cfg.Scheduler.LeaseDuration,
			BatchSize:     cfg.Scheduler.BatchSize,
			InstanceID:    cfg.Scheduler.InstanceID,
			Calculator:    calc,
		}, data, mon, exec, prober, clk, logger)
		services = append(services, rt.scheduler)
	}

	rt.app = app.NewApplication(appCfg, logger, orch, services...)
	for _, c := range closers {
		rt.app.OnClose(c)
	}
	rt.server = server.NewServer(server.Config{
		ListenAddr:   cfg.Server.ListenAddr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		CORSOrigin:   cfg.Server.CORSOrigin,
		EventBuffer:  cfg.Events.HubBuffer,
		Logger:       logger,
	}, orch, hub)
	return rt, nil
}
