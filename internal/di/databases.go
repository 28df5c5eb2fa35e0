package di

import (
	"fmt"
	"path/filepath"

	"github.com/ballastd/ballast/internal/config"
	"github.com/ballastd/ballast/internal/database"
	"github.com/ballastd/ballast/internal/modules/history"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens all five databases and applies schemas
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// 1. universe.db - securities and allocation models
	universeDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "universe.db"),
		Profile: database.ProfileStandard,
		Name:    "universe",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize universe database: %w", err)
	}
	container.UniverseDB = universeDB

	// 2. config.db - application settings
	configDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "config.db"),
		Profile: database.ProfileStandard,
		Name:    "config",
	})
	if err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to initialize config database: %w", err)
	}
	container.ConfigDB = configDB

	// 3. ledger.db - immutable transaction log
	ledgerDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "ledger.db"),
		Profile: database.ProfileLedger, // maximum safety for the audit trail
		Name:    "ledger",
	})
	if err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to initialize ledger database: %w", err)
	}
	container.LedgerDB = ledgerDB

	// 4. portfolio.db - accounts, groups, lots, restrictions, proposals
	portfolioDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "portfolio.db"),
		Profile: database.ProfileStandard,
		Name:    "portfolio",
	})
	if err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to initialize portfolio database: %w", err)
	}
	container.PortfolioDB = portfolioDB

	// Apply schemas to the managed databases (single source of truth)
	for _, db := range []*database.DB{universeDB, configDB, ledgerDB, portfolioDB} {
		if err := db.Migrate(); err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to apply schema to %s: %w", db.Name(), err)
		}
	}

	// 5. history.db - snapshot time series, opened directly with its own
	// inline schema rather than through the migration machinery
	historyConn, err := history.Open(filepath.Join(cfg.DataDir, "history.db"))
	if err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to initialize history database: %w", err)
	}
	container.HistoryConn = historyConn

	log.Info().Msg("All databases initialized and schemas applied")

	return container, nil
}
