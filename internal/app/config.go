package app

import (
	"time"

	"github.com/raysh454/compliscan/internal/recurrence"
)

// Config holds the tunables of the executor and the facade. It is filled
// from config.Config by the CLI so this package does not import viper.
type Config struct {
	// AnalyzerTimeout bounds each analyzer call.
	AnalyzerTimeout time.Duration

	// StaleAfter is how long a scan may sit in scanning before
	// RecoverInterrupted marks it failed.
	StaleAfter time.Duration

	// MaxConcurrency caps the analyzer fan-out of one scan; it never exceeds
	// the number of enabled categories.
	MaxConcurrency int

	// MonthlyOverflow decides how monthly rules treat short months.
	MonthlyOverflow recurrence.OverflowPolicy

	// HistoryLimit is the default page size of scan listings.
	HistoryLimit int

	// PreviewMax caps how many fire times a schedule preview may request.
	PreviewMax int
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		AnalyzerTimeout: 60 * time.Second,
		StaleAfter:      10 * time.Minute,
		MaxConcurrency:  5,
		MonthlyOverflow: recurrence.OverflowSkip,
		HistoryLimit:    50,
		PreviewMax:      50,
	}
}

func (c *Config) withDefaults() *Config {
	d := DefaultConfig()
	if c == nil {
		return d
	}
	out := *c
	if out.AnalyzerTimeout <= 0 {
		out.AnalyzerTimeout = d.AnalyzerTimeout
	}
	if out.StaleAfter <= 0 {
		out.StaleAfter = d.StaleAfter
	}
	if out.MaxConcurrency <= 0 {
		out.MaxConcurrency = d.MaxConcurrency
	}
	if out.MonthlyOverflow == "" {
		out.MonthlyOverflow = d.MonthlyOverflow
	}
	if out.HistoryLimit <= 0 {
		out.HistoryLimit = d.HistoryLimit
	}
	if out.PreviewMax <= 0 {
		out.PreviewMax = d.PreviewMax
	}
	return &out
}
