// Package config loads service configuration from defaults, an optional YAML
// file and COMPLISCAN_ environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "COMPLISCAN"

type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Storage   StorageConfig   `mapstructure:"storage" yaml:"storage"`
	Executor  ExecutorConfig  `mapstructure:"executor" yaml:"executor"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" yaml:"scheduler"`
	Monitor   MonitorConfig   `mapstructure:"monitor" yaml:"monitor"`
	WebClient WebClientConfig `mapstructure:"webclient" yaml:"webclient"`
	Events    EventsConfig    `mapstructure:"events" yaml:"events"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

type ServerConfig struct {
	ListenAddr   string        `mapstructure:"listen_addr" yaml:"listen_addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	CORSOrigin   string        `mapstructure:"cors_origin" yaml:"cors_origin"`
}

type StorageConfig struct {
	DataDir        string `mapstructure:"data_dir" yaml:"data_dir"`
	SQLitePath     string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	MonitorBackend string `mapstructure:"monitor_backend" yaml:"monitor_backend"`
	BoltPath       string `mapstructure:"bolt_path" yaml:"bolt_path"`
}

type ExecutorConfig struct {
	AnalyzerTimeout time.Duration `mapstructure:"analyzer_timeout" yaml:"analyzer_timeout"`
	StaleAfter      time.Duration `mapstructure:"stale_after" yaml:"stale_after"`
	MaxConcurrency  int           `mapstructure:"max_concurrency" yaml:"max_concurrency"`
	HistoryLimit    int           `mapstructure:"history_limit" yaml:"history_limit"`
}

type SchedulerConfig struct {
	Enabled         bool          `mapstructure:"enabled" yaml:"enabled"`
	TickInterval    time.Duration `mapstructure:"tick_interval" yaml:"tick_interval"`
	LeaseDuration   time.Duration `mapstructure:"lease_duration" yaml:"lease_duration"`
	BatchSize       int           `mapstructure:"batch_size" yaml:"batch_size"`
	InstanceID      string        `mapstructure:"instance_id" yaml:"instance_id"`
	MonthlyOverflow string        `mapstructure:"monthly_overflow" yaml:"monthly_overflow"`
	PreviewMax      int           `mapstructure:"preview_max" yaml:"preview_max"`
}

type MonitorConfig struct {
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	SlowThreshold time.Duration `mapstructure:"slow_threshold" yaml:"slow_threshold"`
	Workers       int           `mapstructure:"workers" yaml:"workers"`
	RatePerSecond float64       `mapstructure:"rate_per_second" yaml:"rate_per_second"`
	UptimeWindow  int           `mapstructure:"uptime_window" yaml:"uptime_window"`
	UserAgent     string        `mapstructure:"user_agent" yaml:"user_agent"`
}

type WebClientConfig struct {
	Backend    string        `mapstructure:"backend" yaml:"backend"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
	RenderIdle time.Duration `mapstructure:"render_idle" yaml:"render_idle"`
	UserAgent  string        `mapstructure:"user_agent" yaml:"user_agent"`
}

type EventsConfig struct {
	WebhookURL string     `mapstructure:"webhook_url" yaml:"webhook_url"`
	AMQP       AMQPConfig `mapstructure:"amqp" yaml:"amqp"`
	HubBuffer  int        `mapstructure:"hub_buffer" yaml:"hub_buffer"`
}

type AMQPConfig struct {
	URL      string `mapstructure:"url" yaml:"url"`
	Exchange string `mapstructure:"exchange" yaml:"exchange"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Load reads configuration. An explicit path must exist; otherwise
// compliscan.yaml is searched in ., ./configs and ~/.config/compliscan and
// is optional. Environment variables override both, e.g.
// COMPLISCAN_SERVER_LISTEN_ADDR.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("compliscan")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "compliscan"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.ListenAddr == "" {
		errs = append(errs, errors.New("server.listen_addr cannot be empty"))
	}
	if c.Storage.DataDir == "" && c.Storage.SQLitePath == "" {
		errs = append(errs, errors.New("storage.data_dir or storage.sqlite_path must be set"))
	}
	switch c.Storage.MonitorBackend {
	case "sqlite", "bolt":
	default:
		errs = append(errs, fmt.Errorf("storage.monitor_backend must be sqlite or bolt, got %q", c.Storage.MonitorBackend))
	}
	if c.Executor.AnalyzerTimeout <= 0 {
		errs = append(errs, errors.New("executor.analyzer_timeout must be positive"))
	}
	if c.Executor.MaxConcurrency <= 0 {
		errs = append(errs, errors.New("executor.max_concurrency must be positive"))
	}
	if c.Scheduler.TickInterval <= 0 {
		errs = append(errs, errors.New("scheduler.tick_interval must be positive"))
	}
	if c.Scheduler.LeaseDuration < c.Scheduler.TickInterval {
		errs = append(errs, errors.New("scheduler.lease_duration must be at least scheduler.tick_interval"))
	}
	if c.Scheduler.BatchSize <= 0 {
		errs = append(errs, errors.New("scheduler.batch_size must be positive"))
	}
	switch c.Scheduler.MonthlyOverflow {
	case "skip", "clamp":
	default:
		errs = append(errs, fmt.Errorf("scheduler.monthly_overflow must be skip or clamp, got %q", c.Scheduler.MonthlyOverflow))
	}
	if c.Monitor.Timeout <= 0 {
		errs = append(errs, errors.New("monitor.timeout must be positive"))
	}
	if c.Monitor.Workers <= 0 {
		errs = append(errs, errors.New("monitor.workers must be positive"))
	}
	if c.Monitor.RatePerSecond < 0 {
		errs = append(errs, errors.New("monitor.rate_per_second cannot be negative"))
	}
	if c.Monitor.UptimeWindow <= 0 {
		errs = append(errs, errors.New("monitor.uptime_window must be positive"))
	}
	switch c.WebClient.Backend {
	case "nethttp", "chromedp":
	default:
		errs = append(errs, fmt.Errorf("webclient.backend must be nethttp or chromedp, got %q", c.WebClient.Backend))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console", "text":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}

// DatabasePath is the sqlite file, defaulting to <data_dir>/compliscan.db.
func (c *Config) DatabasePath() string {
	if c.Storage.SQLitePath != "" {
		return c.Storage.SQLitePath
	}
	return filepath.Join(c.Storage.DataDir, "compliscan.db")
}

// MonitorBoltPath is the bbolt file, defaulting to <data_dir>/monitor.bolt.
func (c *Config) MonitorBoltPath() string {
	if c.Storage.BoltPath != "" {
		return c.Storage.BoltPath
	}
	return filepath.Join(c.Storage.DataDir, "monitor.bolt")
}
