package di

import (
	"path/filepath"

	"github.com/ballastd/ballast/internal/config"
	"github.com/ballastd/ballast/internal/events"
	"github.com/ballastd/ballast/internal/modules/accounts"
	"github.com/ballastd/ballast/internal/modules/allocation"
	"github.com/ballastd/ballast/internal/modules/history"
	"github.com/ballastd/ballast/internal/modules/ledger"
	"github.com/ballastd/ballast/internal/modules/portfolio"
	"github.com/ballastd/ballast/internal/modules/rebalance"
	"github.com/ballastd/ballast/internal/modules/settings"
	"github.com/ballastd/ballast/internal/modules/universe"
	"github.com/ballastd/ballast/internal/modules/washsale"
	"github.com/ballastd/ballast/internal/reliability"
	"github.com/rs/zerolog"
)

// InitializeServices creates all services over the repositories. Order
// matters: the event bus first, then domain services bottom-up, then the
// reliability layer which spans every database.
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) {
	// Event bus and manager
	container.EventBus = events.NewBus(log)
	container.EventManager = events.NewManager(container.EventBus, log)

	// Settings
	container.SettingsService = settings.NewService(container.SettingsRepo, log)

	// Universe: price ingestion guards against tickers still referenced by
	// allocation models
	container.UniverseService = universe.NewService(container.SecurityRepo, container.ModelRepo, container.EventManager, log)

	// Allocation models and sleeves
	container.AllocationService = allocation.NewService(container.ModelRepo, container.SecurityRepo, container.EventManager, log)

	// Accounts and rebalancing groups
	container.AccountsService = accounts.NewService(container.GroupRepo, container.ModelRepo, log)

	// Holdings: tax lots priced from the universe
	container.PortfolioService = portfolio.NewService(container.LotRepo, container.GroupRepo, container.SecurityRepo, container.EventManager, log)

	// Ledger: transaction recording keeps lots in sync
	container.LedgerService = ledger.NewService(container.LedgerRepo, container.LotRepo, container.GroupRepo, container.EventManager, log)

	// Wash-sale restrictions derived from the ledger
	container.WashsaleService = washsale.NewService(container.RestrictionRepo, container.LedgerRepo, container.EventManager, log)

	// Rebalance: the engine plus everything it assembles inputs from
	container.RebalanceService = rebalance.NewService(
		rebalance.NewEngine(log),
		container.GroupRepo,
		container.LotRepo,
		container.ModelRepo,
		container.SecurityRepo,
		container.LedgerRepo,
		container.RestrictionRepo,
		container.ProposalRepo,
		container.SettingsService,
		container.EventManager,
		log,
	)

	// History snapshots valued through the rebalance drift report
	container.HistoryService = history.NewService(container.HistoryRepo, container.GroupRepo, container.RebalanceService, container.EventManager, log)

	initializeReliability(container, cfg, log)
}

// initializeReliability wires backups, per-database health checks, and the
// optional R2 off-site layer
func initializeReliability(container *Container, cfg *config.Config, log zerolog.Logger) {
	backupDir := filepath.Join(cfg.DataDir, "backups")

	container.BackupService = reliability.NewBackupService(
		container.ManagedDatabases(),
		container.HistoryConn,
		backupDir,
		container.EventManager,
		log,
	)

	container.HealthServices = make(map[string]*reliability.DatabaseHealthService)
	for name, db := range container.ManagedDatabases() {
		container.HealthServices[name] = reliability.NewDatabaseHealthService(db.Conn(), name, db.Path(), container.BackupService, log)
	}
	container.HealthServices["history"] = reliability.NewDatabaseHealthService(
		container.HistoryConn,
		"history",
		filepath.Join(cfg.DataDir, "history.db"),
		container.BackupService,
		log,
	)

	if !cfg.BackupConfigured() {
		log.Info().Msg("R2 not configured, off-site backups disabled")
		return
	}

	r2Client, err := reliability.NewR2Client(cfg.R2AccountID, cfg.R2AccessKeyID, cfg.R2SecretAccessKey, cfg.R2Bucket, log)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize R2 client, off-site backups disabled")
		return
	}

	container.R2Client = r2Client
	container.R2BackupService = reliability.NewR2BackupService(r2Client, container.BackupService, cfg.DataDir, log)
	container.RestoreService = reliability.NewRestoreService(r2Client, cfg.DataDir, log)
	log.Info().Str("bucket", cfg.R2Bucket).Msg("R2 off-site backups enabled")
}
