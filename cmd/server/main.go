// Package main is the entry point for the CodeShare API server.
//
// MAIN PACKAGE IN GO:
// The main package should be kept minimal. Its job is to:
// 1. Read configuration (config.Load: defaults, .env, environment)
// 2. Create the logger
// 3. Hand both to server.New and block in Start
//
// All actual logic lives in imported packages (internal/server, internal/handler, etc.).
package main

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sakif/codeshare/internal/config"
	"github.com/sakif/codeshare/internal/logger"
	"github.com/sakif/codeshare/internal/server"
)

// startupTimeout bounds connecting to the database and Redis.
const startupTimeout = 30 * time.Second

func main() {
	// === 1. READ CONFIGURATION ===
	cfg, warnings, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	// === 2. SET UP LOGGING ===
	// Console output in development, JSON lines in production.
	lg := logger.New(cfg.Env, cfg.LogLevel)
	for _, w := range warnings {
		lg.Warn().Msg(w)
	}

	// === 3. CREATE AND START THE SERVER ===
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	srv, err := server.New(ctx, cfg, lg)
	cancel()
	if err != nil {
		lg.Fatal().Err(err).Msg("failed to create server")
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		lg.Fatal().Err(err).Msg("server error")
	}
}
