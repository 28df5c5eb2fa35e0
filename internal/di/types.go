// Package di wires databases, repositories, and services into a single
// container. The container is the single source of truth for service
// instances; the HTTP server and the scheduler both draw from it.
package di

import (
	"database/sql"

	"github.com/ballastd/ballast/internal/database"
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
)

// Container holds all application dependencies.
//
// Databases: four managed SQLite files (universe, config, ledger, portfolio)
// behind profile-specific PRAGMAs, plus history.db opened directly for the
// snapshot time series. Repositories wrap one database each; services
// coordinate repositories and emit events on the shared bus.
type Container struct {
	// Databases
	UniverseDB  *database.DB // securities and allocation models
	ConfigDB    *database.DB // settings
	LedgerDB    *database.DB // append-only transaction log
	PortfolioDB *database.DB // accounts, groups, tax lots, restrictions, proposals
	HistoryConn *sql.DB      // group valuation snapshots (history.db)

	// Events
	EventBus     *events.Bus
	EventManager *events.Manager

	// Repositories
	SecurityRepo    *universe.SecurityRepository
	ModelRepo       *allocation.Repository
	GroupRepo       *accounts.Repository
	LotRepo         *portfolio.LotRepository
	LedgerRepo      *ledger.Repository
	RestrictionRepo *washsale.Repository
	ProposalRepo    *rebalance.ProposalRepository
	SettingsRepo    *settings.Repository
	HistoryRepo     *history.Repository

	// Services
	SettingsService   *settings.Service
	UniverseService   *universe.Service
	AllocationService *allocation.Service
	AccountsService   *accounts.Service
	PortfolioService  *portfolio.Service
	LedgerService     *ledger.Service
	WashsaleService   *washsale.Service
	RebalanceService  *rebalance.Service
	HistoryService    *history.Service

	// Reliability
	BackupService   *reliability.BackupService
	HealthServices  map[string]*reliability.DatabaseHealthService
	R2Client        *reliability.R2Client        // nil unless R2 is configured
	R2BackupService *reliability.R2BackupService // nil unless R2 is configured
	RestoreService  *reliability.RestoreService  // nil unless R2 is configured
}

// ManagedDatabases returns the profile-managed databases keyed by name.
// The directly-opened history connection is not included.
func (c *Container) ManagedDatabases() map[string]*database.DB {
	return map[string]*database.DB{
		"universe":  c.UniverseDB,
		"config":    c.ConfigDB,
		"ledger":    c.LedgerDB,
		"portfolio": c.PortfolioDB,
	}
}

// Close closes every database connection. Safe to call with a partially
// initialized container.
func (c *Container) Close() {
	if c.HistoryConn != nil {
		c.HistoryConn.Close()
	}
	if c.PortfolioDB != nil {
		c.PortfolioDB.Close()
	}
	if c.LedgerDB != nil {
		c.LedgerDB.Close()
	}
	if c.ConfigDB != nil {
		c.ConfigDB.Close()
	}
	if c.UniverseDB != nil {
		c.UniverseDB.Close()
	}
}
