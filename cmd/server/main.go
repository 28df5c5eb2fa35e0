// Package main is the entry point for the Ballast portfolio rebalancer.
// Ballast keeps taxable portfolios on target: it tracks tax lots across
// account groups, proposes tax-loss-harvesting trades that respect wash-sale
// windows, and records every resulting transaction in an append-only ledger.
//
// The application follows clean architecture principles:
// - Domain layer is pure (no infrastructure dependencies)
// - Dependency injection via DI container
// - Repository pattern for data access
// - Service layer for business logic
// - HTTP handlers for API endpoints
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ballastd/ballast/internal/config"
	"github.com/ballastd/ballast/internal/di"
	"github.com/ballastd/ballast/internal/reliability"
	"github.com/ballastd/ballast/internal/scheduler"
	"github.com/ballastd/ballast/internal/server"
	"github.com/ballastd/ballast/internal/version"
	"github.com/ballastd/ballast/pkg/logger"
)

// main orchestrates the startup sequence:
// 1. Loads configuration from environment variables
// 2. Initializes the logging system
// 3. Applies any staged restore or corruption recovery (before databases open)
// 4. Wires all dependencies via the DI container (databases, repositories, services)
// 5. Registers and starts the cron scheduler (sweeps, snapshots, backups, maintenance)
// 6. Starts the HTTP server for API endpoints
// 7. Waits for a shutdown signal and performs graceful shutdown
//
// The application uses a 5-database architecture:
// - universe.db: securities and allocation models
// - config.db: application settings
// - ledger.db: immutable transaction audit trail
// - portfolio.db: accounts, groups, tax lots, wash-sale restrictions, proposals
// - history.db: daily group valuation snapshots
func main() {
	// Load configuration first to get log level
	// Configuration is loaded from environment variables (.env file); R2
	// backup credentials can be overridden later from the settings database.
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger with config level
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
	})

	log.Info().Str("version", version.Version).Msg("Starting Ballast")

	// Apply any staged restore BEFORE opening databases.
	// A restore downloaded from R2 is staged to disk and only swapped in
	// here, at boot, so a half-written archive can never replace a live
	// database. A failed verification discards the staging and boots with
	// the existing files.
	restored, err := reliability.ApplyStagedRestore(cfg.DataDir, log)
	if err != nil {
		log.Error().Err(err).Msg("Staged restore was discarded, continuing with existing databases")
	} else if restored {
		log.Info().Msg("Staged restore applied")
	}

	// Apply any staged corruption recoveries. When a health check finds a
	// corrupt database it stages the newest verified backup next to the
	// live file; the swap happens here for the same reason as above.
	recovered, err := reliability.ApplyStagedRecoveries(cfg.DataDir, log)
	if err != nil {
		log.Error().Err(err).Msg("Failed to apply staged recoveries")
	} else if len(recovered) > 0 {
		log.Info().Strs("databases", recovered).Msg("Staged recoveries applied")
	}

	// Wire all dependencies using the DI container.
	// Databases are opened and migrated first, then repositories, then
	// services (event bus, rebalance engine wiring, reliability stack).
	container, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}

	// Close all database connections on exit so final WAL checkpoints are
	// written. Using defer ensures cleanup even on panic.
	defer container.Close()

	// Register and start the background job scheduler: nightly wash-sale
	// sweep, daily valuation snapshots, local and off-site backups, and
	// database maintenance.
	sched := scheduler.New(log)
	if err := di.RegisterJobs(sched, container, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("Failed to register scheduled jobs")
	}
	sched.Start()

	// Initialize the HTTP server. Handlers draw their services from the
	// container; the frontend is served separately and talks to this API
	// over CORS.
	srv := server.New(server.Config{
		Port:      cfg.Port,
		Log:       log,
		Config:    cfg,
		DevMode:   cfg.DevMode,
		Container: container,
	})

	// Start server in goroutine so the main goroutine can wait for
	// shutdown signals. ErrServerClosed is the normal return during a
	// graceful shutdown.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Block until SIGINT (Ctrl+C) or SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	// Stop the scheduler first; this blocks until running jobs finish so
	// a backup or sweep is never cut off mid-write.
	sched.Stop()

	// The HTTP server gets up to 10 seconds to finish in-flight requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
