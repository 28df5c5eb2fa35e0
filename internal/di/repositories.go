package di

import (
	"github.com/ballastd/ballast/internal/modules/accounts"
	"github.com/ballastd/ballast/internal/modules/allocation"
	"github.com/ballastd/ballast/internal/modules/history"
	"github.com/ballastd/ballast/internal/modules/ledger"
	"github.com/ballastd/ballast/internal/modules/portfolio"
	"github.com/ballastd/ballast/internal/modules/rebalance"
	"github.com/ballastd/ballast/internal/modules/settings"
	"github.com/ballastd/ballast/internal/modules/universe"
	"github.com/ballastd/ballast/internal/modules/washsale"
	"github.com/rs/zerolog"
)

// InitializeRepositories creates all repositories over the open databases
func InitializeRepositories(container *Container, log zerolog.Logger) {
	container.SecurityRepo = universe.NewSecurityRepository(container.UniverseDB.Conn(), log)
	container.ModelRepo = allocation.NewRepository(container.UniverseDB.Conn(), log)
	container.SettingsRepo = settings.NewRepository(container.ConfigDB.Conn(), log)
	container.LedgerRepo = ledger.NewRepository(container.LedgerDB.Conn(), log)
	container.GroupRepo = accounts.NewRepository(container.PortfolioDB.Conn(), log)
	container.LotRepo = portfolio.NewLotRepository(container.PortfolioDB.Conn(), log)
	container.RestrictionRepo = washsale.NewRepository(container.PortfolioDB.Conn(), log)
	container.ProposalRepo = rebalance.NewProposalRepository(container.PortfolioDB.Conn(), log)
	container.HistoryRepo = history.NewRepository(container.HistoryConn, log)
}
