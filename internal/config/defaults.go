package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:   ":8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			CORSOrigin:   "*",
		},
		Storage: StorageConfig{
			DataDir:        "data",
			MonitorBackend: "sqlite",
		},
		Executor: ExecutorConfig{
			AnalyzerTimeout: 60 * time.Second,
			StaleAfter:      10 * time.Minute,
			MaxConcurrency:  5,
			HistoryLimit:    50,
		},
		Scheduler: SchedulerConfig{
			Enabled:         true,
			TickInterval:    30 * time.Second,
			LeaseDuration:   2 * time.Minute,
			BatchSize:       50,
			MonthlyOverflow: "skip",
			PreviewMax:      50,
		},
		Monitor: MonitorConfig{
			Timeout:       10 * time.Second,
			SlowThreshold: 5 * time.Second,
			Workers:       10,
			RatePerSecond: 20,
			UptimeWindow:  100,
			UserAgent:     "compliscan-monitor/1.0",
		},
		WebClient: WebClientConfig{
			Backend:    "nethttp",
			Timeout:    30 * time.Second,
			RenderIdle: 2 * time.Second,
			UserAgent:  "compliscan/1.0",
		},
		Events: EventsConfig{
			AMQP:      AMQPConfig{Exchange: "compliscan.events"},
			HubBuffer: 64,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	// Server defaults
	v.SetDefault("server.listen_addr", d.Server.ListenAddr)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.cors_origin", d.Server.CORSOrigin)

	// Storage defaults
	v.SetDefault("storage.data_dir", d.Storage.DataDir)
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)
	v.SetDefault("storage.monitor_backend", d.Storage.MonitorBackend)
	v.SetDefault("storage.bolt_path", d.Storage.BoltPath)

	// Executor defaults
	v.SetDefault("executor.analyzer_timeout", d.Executor.AnalyzerTimeout)
	v.SetDefault("executor.stale_after", d.Executor.StaleAfter)
	v.SetDefault("executor.max_concurrency", d.Executor.MaxConcurrency)
	v.SetDefault("executor.history_limit", d.Executor.HistoryLimit)

	// Scheduler defaults
	v.SetDefault("scheduler.enabled", d.Scheduler.Enabled)
	v.SetDefault("scheduler.tick_interval", d.Scheduler.TickInterval)
	v.SetDefault("scheduler.lease_duration", d.Scheduler.LeaseDuration)
	v.SetDefault("scheduler.batch_size", d.Scheduler.BatchSize)
	v.SetDefault("scheduler.instance_id", d.Scheduler.InstanceID)
	v.SetDefault("scheduler.monthly_overflow", d.Scheduler.MonthlyOverflow)
	v.SetDefault("scheduler.preview_max", d.Scheduler.PreviewMax)

	// Monitor defaults
	v.SetDefault("monitor.timeout", d.Monitor.Timeout)
	v.SetDefault("monitor.slow_threshold", d.Monitor.SlowThreshold)
	v.SetDefault("monitor.workers", d.Monitor.Workers)
	v.SetDefault("monitor.rate_per_second", d.Monitor.RatePerSecond)
	v.SetDefault("monitor.uptime_window", d.Monitor.UptimeWindow)
	v.SetDefault("monitor.user_agent", d.Monitor.UserAgent)

	// Webclient defaults
	v.SetDefault("webclient.backend", d.WebClient.Backend)
	v.SetDefault("webclient.timeout", d.WebClient.Timeout)
	v.SetDefault("webclient.render_idle", d.WebClient.RenderIdle)
	v.SetDefault("webclient.user_agent", d.WebClient.UserAgent)

	// Events defaults
	v.SetDefault("events.webhook_url", d.Events.WebhookURL)
	v.SetDefault("events.amqp.url", d.Events.AMQP.URL)
	v.SetDefault("events.amqp.exchange", d.Events.AMQP.Exchange)
	v.SetDefault("events.hub_buffer", d.Events.HubBuffer)

	// Logging defaults
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}

// WriteDefault writes a default configuration to the specified path. It
// refuses to overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	}

	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// LoadDotEnv loads variables from the given .env files, or ./.env when none
// are given. Missing files are ignored; existing variables win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}
