package demoserver

import "time"

// Config holds configuration for the demo server.
type Config struct {
	// Port is the port on which the demo server listens.
	Port int

	// InitialVersion is the starting version for all pages (default: 1).
	// Version 1 of every page is non-compliant, version 2 fixes it.
	InitialVersion int

	// SlowDelay is how long /slow waits before answering.
	SlowDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Port:           9999,
		InitialVersion: 1,
		SlowDelay:      6 * time.Second,
	}
}
