// Package main is the entry point for the ghdash web server.
//
// MAIN PACKAGE IN GO:
// Every Go program starts execution in the main() function of the "main" package.
// The main package should be kept minimal — its job is to:
// 1. Read configuration (from env vars and .env files)
// 2. Create dependencies (logger)
// 3. Start the application
//
// All actual logic lives in imported packages (internal/server, internal/handler, etc.).
// This separation makes the app testable and its components reusable.
//
// WHY cmd/server/?
// The cmd/ directory is a Go convention for executable entry points.
// This project has two: cmd/server (the web dashboard) and cmd/ghdash (the
// terminal client). Each gets its own directory with its own main.go.
package main

import (
	"log/slog"
	"os"

	"github.com/sakif/ghdash/internal/config"
	"github.com/sakif/ghdash/internal/server"
)

func main() {
	// === 1. READ CONFIGURATION ===
	// Every setting is a GHDASH_* environment variable, optionally from a .env
	// file. See internal/config for the full list and defaults.
	cfg, err := config.NewLoader(config.Prefix).Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. SET UP LOGGING ===
	// slog.New creates a structured logger. slog.NewTextHandler outputs human-readable logs.
	//
	// Log levels (from least to most severe): Debug → Info → Warn → Error
	// GHDASH_LOG_LEVEL picks the minimum; production usually runs at info.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Level(),
	}))

	if cfg.SessionSecret == "" {
		logger.Warn("GHDASH_SESSION_SECRET not set — using the generated secret from the config directory")
	}

	// === 3. CREATE AND START THE SERVER ===
	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
