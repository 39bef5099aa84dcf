package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/raysh454/compliscan/internal/clock"
	"github.com/raysh454/compliscan/internal/config"
	"github.com/raysh454/compliscan/internal/logging"
	"github.com/raysh454/compliscan/internal/model"
	"github.com/raysh454/compliscan/internal/monitor"
	"github.com/raysh454/compliscan/internal/recurrence"
	"github.com/raysh454/compliscan/internal/store/bolt"
	"github.com/raysh454/compliscan/internal/store/sqlite"
	"github.com/raysh454/compliscan/internal/utils"
	"github.com/raysh454/compliscan/internal/webclient"
)

func newServeCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server, the scan executor and the scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(opts.cfg.Logging)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			rt, err := build(opts.cfg, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := rt.app.Start(ctx); err != nil {
				return err
			}

			httpServer := rt.server.HTTPServer()
			errCh := make(chan error, 1)
			go func() {
				logger.Info("listening", logging.Field{Key: "addr", Value: httpServer.Addr})
				errCh <- httpServer.ListenAndServe()
			}()

			var serveErr error
			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					serveErr = fmt.Errorf("http server: %w", err)
				}
			case <-ctx.Done():
				logger.Info("shutdown signal received")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("http server shutdown", logging.Err(err))
			}
			if err := rt.app.Shutdown(shutdownCtx); err != nil {
				logger.Warn("application shutdown", logging.Err(err))
			}
			return serveErr
		},
	}
}

func newMigrateCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(opts.cfg.Logging)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			path := opts.cfg.DatabasePath()
			st, err := sqlite.Open(path, logger)
			if err != nil {
				return fmt.Errorf("failed to migrate %s: %w", path, err)
			}
			if err := st.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Database ready: %s\n", path)

			if opts.cfg.Storage.MonitorBackend == "bolt" {
				path := opts.cfg.MonitorBoltPath()
				b, err := bolt.Open(path)
				if err != nil {
					return fmt.Errorf("failed to initialize %s: %w", path, err)
				}
				if err := b.Close(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Monitor store ready: %s\n", path)
			}
			return nil
		},
	}
}

func newInitCommand() *cobra.Command {
	var (
		force bool
		path  string
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default compliscan.yaml",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(path); err == nil {
				if !force {
					return fmt.Errorf("config file already exists at %s. Use --force to overwrite", path)
				}
				if err := os.Remove(path); err != nil {
					return err
				}
			}
			if err := config.WriteDefault(path); err != nil {
				return fmt.Errorf("failed to create config file: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s with default configuration\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	cmd.Flags().StringVar(&path, "path", "compliscan.yaml", "where to write the config file")
	return cmd
}

func newNextRunCommand() *cobra.Command {
	var (
		rule       model.Recurrence
		dayOfWeek  int
		dayOfMonth int
		count      int
		from       string
		overflow   string
	)
	cmd := &cobra.Command{
		Use:   "next-run",
		Short: "Print the upcoming fire times of a recurrence rule",
		Example: `  compliscan next-run --frequency weekly --time 09:00 --day-of-week 1 --timezone Europe/Berlin
  compliscan next-run --frequency monthly --time 02:30 --day-of-month 31 -n 6 --overflow clamp`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if count <= 0 {
				return fmt.Errorf("--count must be positive")
			}
			if cmd.Flags().Changed("day-of-week") {
				rule.DayOfWeek = &dayOfWeek
			}
			if cmd.Flags().Changed("day-of-month") {
				rule.DayOfMonth = &dayOfMonth
			}
			policy, err := recurrence.ParseOverflowPolicy(overflow)
			if err != nil {
				return err
			}
			ref := clock.Real{}.Now()
			if from != "" {
				if ref, err = time.Parse(time.RFC3339, from); err != nil {
					return fmt.Errorf("--from must be RFC 3339: %w", err)
				}
			}
			runs, err := recurrence.Calculator{Overflow: policy}.Preview(rule, ref, count)
			if err != nil {
				return err
			}
			for _, r := range runs {
				fmt.Fprintln(cmd.OutOrStdout(), r.Format(time.RFC3339))
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar((*string)(&rule.Frequency), "frequency", "daily", "daily, weekly or monthly")
	f.StringVar(&rule.Time, "time", "09:00", "time of day as HH:MM")
	f.IntVar(&dayOfWeek, "day-of-week", 0, "0-6, Sunday = 0 (weekly)")
	f.IntVar(&dayOfMonth, "day-of-month", 1, "1-31 (monthly)")
	f.StringVar(&rule.Timezone, "timezone", "UTC", "IANA time zone")
	f.IntVarP(&count, "count", "n", 5, "number of fire times")
	f.StringVar(&from, "from", "", "reference time (RFC 3339); default now")
	f.StringVar(&overflow, "overflow", "skip", "monthly overflow policy: skip or clamp")
	return cmd
}

func newProbeCommand(opts *options) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "probe <url>",
		Short: "Check one URL the way the uptime monitor does",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := utils.NormalizeTargetURL(args[0])
			if err != nil {
				return fmt.Errorf("invalid url: %w", err)
			}
			logger, err := newLogger(opts.cfg.Logging)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			wcCfg := webclientConfig(opts.cfg.WebClient)
			wcCfg.Client = webclient.ClientNetHTTP
			client, err := webclient.NewWebClient(wcCfg, logger)
			if err != nil {
				return err
			}
			defer client.Close()

			monCfg := monitorConfig(opts.cfg.Monitor)
			if timeout > 0 {
				monCfg.Timeout = timeout
			}
			prober := monitor.NewProber(monCfg, nil, client, nil, clock.Real{}, logger)
			check := prober.Check(cmd.Context(), &model.Website{URL: url})

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s\n", url, check.Status)
			if check.StatusCode != 0 {
				fmt.Fprintf(out, "  status code:   %d\n", check.StatusCode)
			}
			fmt.Fprintf(out, "  response time: %dms\n", check.ResponseTimeMS)
			if check.Error != "" {
				fmt.Fprintf(out, "  error:         %s\n", check.Error)
			}
			if check.Status == model.StatusOffline {
				return fmt.Errorf("%s is offline", url)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "request timeout (default from config)")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "compliscan %s\n", Version)
		},
	}
}
