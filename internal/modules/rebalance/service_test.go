package rebalance

import (
	"testing"
	"time"

	"github.com/ballastd/ballast/internal/domain"
	"github.com/ballastd/ballast/internal/modules/accounts"
	"github.com/ballastd/ballast/internal/modules/allocation"
	"github.com/ballastd/ballast/internal/modules/ledger"
	"github.com/ballastd/ballast/internal/modules/portfolio"
	"github.com/ballastd/ballast/internal/modules/settings"
	"github.com/ballastd/ballast/internal/modules/universe"
	"github.com/ballastd/ballast/internal/modules/washsale"
	ballasttest "github.com/ballastd/ballast/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type serviceEnv struct {
	service      *Service
	groups       *accounts.Repository
	lots         *portfolio.LotRepository
	models       *allocation.Repository
	securities   *universe.SecurityRepository
	restrictions *washsale.Repository
}

func newServiceEnv(t *testing.T) *serviceEnv {
	t.Helper()
	log := zerolog.Nop()

	portfolioDB, cleanupPortfolio := ballasttest.NewTestDB(t, "portfolio")
	t.Cleanup(cleanupPortfolio)
	universeDB, cleanupUniverse := ballasttest.NewTestDB(t, "universe")
	t.Cleanup(cleanupUniverse)
	ledgerDB, cleanupLedger := ballasttest.NewTestDB(t, "ledger")
	t.Cleanup(cleanupLedger)
	configDB, cleanupConfig := ballasttest.NewTestDB(t, "config")
	t.Cleanup(cleanupConfig)

	env := &serviceEnv{
		groups:       accounts.NewRepository(portfolioDB.Conn(), log),
		lots:         portfolio.NewLotRepository(portfolioDB.Conn(), log),
		models:       allocation.NewRepository(universeDB.Conn(), log),
		securities:   universe.NewSecurityRepository(universeDB.Conn(), log),
		restrictions: washsale.NewRepository(portfolioDB.Conn(), log),
	}
	env.service = NewService(
		NewEngine(log),
		env.groups,
		env.lots,
		env.models,
		env.securities,
		ledger.NewRepository(ledgerDB.Conn(), log),
		env.restrictions,
		NewProposalRepository(portfolioDB.Conn(), log),
		settings.NewService(settings.NewRepository(configDB.Conn(), log), log),
		nil,
		log,
	)
	return env
}

func (e *serviceEnv) seedSecurity(t *testing.T, ticker string, price float64) {
	t.Helper()
	at := time.Now().Unix()
	require.NoError(t, e.securities.Upsert(universe.Security{
		Ticker:         ticker,
		Name:           ticker,
		Active:         true,
		CurrentPrice:   &price,
		PriceUpdatedAt: &at,
	}))
}

// seedGroup sets up the usual fixture: one taxable account with 24k of cash
// in a group assigned to a 60/40 two-sleeve model.
func (e *serviceEnv) seedGroup(t *testing.T) {
	t.Helper()

	model, err := e.models.Create("three-fund", "")
	require.NoError(t, err)
	require.NoError(t, e.models.ReplaceSleeves(model.ID, []allocation.SleeveUpsert{
		{Name: "us-equity", TargetBPS: 6000, Members: []allocation.MemberUpsert{
			{Ticker: "VTI", Rank: 1},
			{Ticker: "SCHB", Rank: 2},
		}},
		{Name: "bonds", TargetBPS: 4000, Members: []allocation.MemberUpsert{
			{Ticker: "BND", Rank: 1},
		}},
	}))

	e.seedSecurity(t, "VTI", 100)
	e.seedSecurity(t, "SCHB", 50)
	e.seedSecurity(t, "BND", 80)

	require.NoError(t, e.groups.UpsertAccount(accounts.Account{
		ID: "brokerage-1", Name: "Brokerage", Type: domain.AccountTaxable,
	}))
	require.NoError(t, e.groups.UpsertGroup(accounts.Group{
		ID: "household", Name: "Household", ModelID: &model.ID,
	}))
	require.NoError(t, e.groups.ReplaceMembers("household", []string{"brokerage-1"}))

	_, err = e.lots.AdjustCash("brokerage-1", domain.CashTicker, 24000)
	require.NoError(t, err)
}

func TestRebalancePersistsProposal(t *testing.T) {
	env := newServiceEnv(t)
	env.seedGroup(t)

	proposal, err := env.service.Rebalance("household", Request{Method: domain.MethodAllocation})
	require.NoError(t, err)
	require.NotNil(t, proposal)

	assert.NotEmpty(t, proposal.ID)
	assert.Equal(t, "household", proposal.GroupID)
	assert.Equal(t, domain.MethodAllocation, proposal.Method)
	require.Len(t, proposal.Trades, 3, "two buys plus the net cash row")

	vti := tradeFor(t, proposal.Trades, "VTI", domain.SideBuy)
	assert.Equal(t, 144.0, vti.Quantity)
	bnd := tradeFor(t, proposal.Trades, "BND", domain.SideBuy)
	assert.Equal(t, 120.0, bnd.Quantity)
	assert.InDelta(t, 0, proposal.Summary.CashRemaining, 1e-6)

	// the run is stored, not just returned
	stored, err := env.service.GetProposal(proposal.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, proposal.Trades, stored.Trades)

	listed, err := env.service.ListProposals("household", 0)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, proposal.ID, listed[0].ID)
}

func TestRebalanceHonorsStoredRestrictions(t *testing.T) {
	env := newServiceEnv(t)
	env.seedGroup(t)

	now := time.Now().Unix()
	require.NoError(t, env.restrictions.Upsert(washsale.Restriction{
		Ticker:       "VTI",
		BlockedUntil: now + 10*24*3600,
		Reason:       "loss sale of 10.0000 shares at 95.00",
	}, now))

	proposal, err := env.service.Rebalance("household", Request{Method: domain.MethodAllocation})
	require.NoError(t, err)

	for _, tr := range proposal.Trades {
		assert.NotEqual(t, "VTI", tr.Ticker, "restricted ticker must not be traded in")
	}
	schb := tradeFor(t, proposal.Trades, "SCHB", domain.SideBuy)
	assert.Equal(t, 288.0, schb.Quantity, "the sleeve falls through to its rank-2 member")
}

func TestRebalanceUnknownGroup(t *testing.T) {
	env := newServiceEnv(t)

	_, err := env.service.Rebalance("nobody", Request{Method: domain.MethodAllocation})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGroupNotFound)
}

func TestRebalanceGroupWithoutModel(t *testing.T) {
	env := newServiceEnv(t)
	require.NoError(t, env.groups.UpsertGroup(accounts.Group{ID: "loose", Name: "Loose"}))

	_, err := env.service.Rebalance("loose", Request{Method: domain.MethodAllocation})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoModelAssigned)
}

func TestRebalanceDeletedModel(t *testing.T) {
	env := newServiceEnv(t)
	env.seedGroup(t)

	detail, err := env.groups.GetGroupDetail("household")
	require.NoError(t, err)
	require.NotNil(t, detail)
	require.NotNil(t, detail.ModelID)
	require.NoError(t, env.models.Delete(*detail.ModelID))

	_, err = env.service.Rebalance("household", Request{Method: domain.MethodAllocation})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoModelAssigned)
}

func TestRebalanceInvalidMethod(t *testing.T) {
	env := newServiceEnv(t)

	_, err := env.service.Rebalance("household", Request{Method: "nope"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownMethod)
}

func TestDriftUsesLiveHoldings(t *testing.T) {
	env := newServiceEnv(t)
	env.seedGroup(t)

	report, err := env.service.Drift("household")
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.Equal(t, "household", report.GroupID)
	assert.InDelta(t, 24000, report.TotalValue, 1e-6)
	assert.InDelta(t, 24000, report.CashValue, 1e-6)
	require.Len(t, report.Sleeves, 2)

	// all cash means both sleeves sit at zero, the full deviation
	assert.InDelta(t, 60, report.MaxAbsPct, 1e-6)
	assert.True(t, report.Exceeded)
}
