package server

import (
	"time"

	"github.com/raysh454/compliscan/internal/logging"
)

type Config struct {
	// ListenAddr is the HTTP listen address, e.g. ":8080".
	ListenAddr   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// CORSOrigin is sent as Access-Control-Allow-Origin; empty means "*".
	CORSOrigin string

	// EventBuffer sizes each websocket subscriber's queue; 0 uses the hub default.
	EventBuffer int

	Logger logging.Logger
}
