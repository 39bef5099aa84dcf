// Package cli is the compliscan command line: the API server, schema
// migration, config scaffolding and a few one-off diagnostics.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raysh454/compliscan/internal/config"
	"github.com/raysh454/compliscan/internal/logging"
)

// Version is stamped at build time with -ldflags "-X ...cli.Version=...".
var Version = "0.1.0-dev"

// options carries the persistent flags and the config loaded from them.
type options struct {
	cfgFile  string
	envFiles []string
	cfg      *config.Config
}

// NewRootCommand builds a fresh command tree so tests do not share flag state.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "compliscan",
		Short: "Website compliance scanning and uptime monitoring",
		Long: `compliscan scans websites for GDPR, accessibility, security, performance
and SEO issues, runs those scans on recurring schedules and monitors the
availability of registered websites.

Configuration comes from compliscan.yaml, COMPLISCAN_* environment variables
and an optional .env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Skip config loading for commands that don't need it
			skipConfig := map[string]bool{
				"init":     true,
				"help":     true,
				"version":  true,
				"next-run": true,
			}
			if skipConfig[cmd.Name()] {
				return nil
			}

			if err := config.LoadDotEnv(opts.envFiles...); err != nil {
				return err
			}
			cfg, err := config.Load(opts.cfgFile)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			return nil
		},
	}

	root.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file path (default: search for compliscan.yaml)")
	root.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", nil, "dotenv files to load before reading config (default .env)")

	root.AddCommand(
		newServeCommand(opts),
		newMigrateCommand(opts),
		newInitCommand(),
		newNextRunCommand(),
		newProbeCommand(opts),
		newVersionCommand(),
	)
	return root
}

// Execute runs the root command against os.Args.
func Execute() error {
	return NewRootCommand().Execute()
}

func newLogger(cfg config.LoggingConfig) (*logging.ZapLogger, error) {
	logger, err := logging.NewZapLogger(logging.Config{Level: cfg.Level, Format: cfg.Format})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}
