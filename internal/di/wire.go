package di

import (
	"fmt"

	"github.com/ballastd/ballast/internal/config"
	"github.com/rs/zerolog"
)

// Wire initializes all dependencies and returns a fully configured container.
// Order of operations:
// 1. Initialize databases
// 2. Initialize repositories
// 3. Apply settings-database overrides to the config (R2 credentials live
//    there so they can be rotated from the UI)
// 4. Initialize services
// Jobs are registered separately via RegisterJobs once the caller has a
// scheduler.
func Wire(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container, err := InitializeDatabases(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize databases: %w", err)
	}

	InitializeRepositories(container, log)

	if err := cfg.UpdateFromSettings(container.SettingsRepo); err != nil {
		log.Warn().Err(err).Msg("Failed to read settings overrides, using environment values")
	}

	InitializeServices(container, cfg, log)

	log.Info().Msg("Dependency injection wiring completed")

	return container, nil
}
