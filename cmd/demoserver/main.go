// Command demoserver starts the compliscan demo shop for trying scans and
// uptime monitoring locally.
// Usage: go run ./cmd/demoserver [port]
// Default port: 9999
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/raysh454/compliscan/internal/demoserver"
	"github.com/raysh454/compliscan/internal/logging"
)

func main() {
	cfg := demoserver.DefaultConfig()

	if len(os.Args) > 1 {
		port, err := strconv.Atoi(os.Args[1])
		if err != nil || port < 1 || port > 65535 {
			log.Fatalf("Invalid port: %s", os.Args[1])
		}
		cfg.Port = port
	}

	logger, err := logging.NewZapLogger(logging.Config{Level: "info", Format: "console"})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := demoserver.NewDemoServer(cfg, logger).Start(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
