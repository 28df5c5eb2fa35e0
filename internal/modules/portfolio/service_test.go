package portfolio_test

import (
	"testing"

	"github.com/ballastd/ballast/internal/domain"
	"github.com/ballastd/ballast/internal/modules/accounts"
	"github.com/ballastd/ballast/internal/modules/portfolio"
	ballasttest "github.com/ballastd/ballast/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPrices struct {
	prices map[string]float64
}

func (s *stubPrices) GetPrices() (map[string]float64, error) {
	return s.prices, nil
}

func newTestService(t *testing.T, prices map[string]float64) *portfolio.Service {
	t.Helper()
	db, cleanup := ballasttest.NewTestDB(t, "portfolio")
	t.Cleanup(cleanup)

	accountsRepo := accounts.NewRepository(db.Conn(), zerolog.Nop())
	require.NoError(t, accountsRepo.UpsertAccount(accounts.Account{
		ID: "brokerage-1", Name: "Taxable", Type: domain.AccountTaxable,
	}))
	require.NoError(t, accountsRepo.UpsertAccount(accounts.Account{
		ID: "ira-1", Name: "IRA", Type: domain.AccountTaxDeferred,
	}))
	require.NoError(t, accountsRepo.UpsertGroup(accounts.Group{ID: "household", Name: "Household"}))
	require.NoError(t, accountsRepo.ReplaceMembers("household", []string{"brokerage-1", "ira-1"}))

	lots := portfolio.NewLotRepository(db.Conn(), zerolog.Nop())
	return portfolio.NewService(lots, accountsRepo, &stubPrices{prices: prices}, nil, zerolog.Nop())
}

func TestServiceAddLotValidation(t *testing.T) {
	svc := newTestService(t, nil)

	_, err := svc.AddLot(portfolio.LotCreate{Ticker: "VTI", Quantity: 1})
	assert.ErrorContains(t, err, "account_id is required")

	_, err = svc.AddLot(portfolio.LotCreate{AccountID: "brokerage-1", Quantity: 1})
	assert.ErrorContains(t, err, "ticker is required")

	_, err = svc.AddLot(portfolio.LotCreate{AccountID: "brokerage-1", Ticker: "VTI", Quantity: 0})
	assert.ErrorContains(t, err, "quantity must be positive")

	_, err = svc.AddLot(portfolio.LotCreate{AccountID: "ghost", Ticker: "VTI", Quantity: 1})
	assert.ErrorContains(t, err, "unknown account")
}

func TestServiceCashFlow(t *testing.T) {
	svc := newTestService(t, nil)

	balance, err := svc.Deposit("brokerage-1", portfolio.CashUpdate{Amount: 10000})
	require.NoError(t, err)
	assert.InDelta(t, 10000, balance, 1e-9)

	balance, err = svc.Withdraw("brokerage-1", portfolio.CashUpdate{Amount: 4000})
	require.NoError(t, err)
	assert.InDelta(t, 6000, balance, 1e-9)

	_, err = svc.Deposit("brokerage-1", portfolio.CashUpdate{Amount: -5})
	assert.ErrorContains(t, err, "must be positive")

	_, err = svc.Deposit("ghost", portfolio.CashUpdate{Amount: 100})
	assert.ErrorContains(t, err, "unknown account")
}

func TestServiceGroupValuation(t *testing.T) {
	svc := newTestService(t, map[string]float64{"VTI": 250.0, "BND": 70.0})

	// brokerage: 10 VTI (2500) in two lots + 1000 cash
	_, err := svc.AddLot(portfolio.LotCreate{AccountID: "brokerage-1", Ticker: "VTI", Quantity: 6, CostBasisPerShare: 200})
	require.NoError(t, err)
	_, err = svc.AddLot(portfolio.LotCreate{AccountID: "brokerage-1", Ticker: "VTI", Quantity: 4, CostBasisPerShare: 260})
	require.NoError(t, err)
	_, err = svc.Deposit("brokerage-1", portfolio.CashUpdate{Amount: 1000})
	require.NoError(t, err)

	// ira: 20 BND (1400)
	_, err = svc.AddLot(portfolio.LotCreate{AccountID: "ira-1", Ticker: "BND", Quantity: 20, CostBasisPerShare: 75})
	require.NoError(t, err)

	valuation, err := svc.GetGroupValuation("household")
	require.NoError(t, err)
	require.NotNil(t, valuation)

	assert.InDelta(t, 2500+1000+1400, valuation.TotalValue, 1e-6)
	assert.InDelta(t, 1000, valuation.CashValue, 1e-6)
	require.Len(t, valuation.Accounts, 2)
	assert.InDelta(t, 3500, valuation.Accounts[0].TotalValue, 1e-6)
	assert.InDelta(t, 1400, valuation.Accounts[1].TotalValue, 1e-6)

	require.Len(t, valuation.Positions, 2)
	vti := valuation.Positions[0]
	assert.Equal(t, "VTI", vti.Ticker)
	assert.InDelta(t, 10, vti.Quantity, 1e-9)
	assert.Equal(t, 2, vti.LotCount)
	// Weighted average cost: (6*200 + 4*260) / 10 = 224
	assert.InDelta(t, 224, vti.AvgCostBasis, 1e-6)
	require.NotNil(t, vti.UnrealizedGain)
	assert.InDelta(t, 10*(250-224), *vti.UnrealizedGain, 1e-6)

	assert.Empty(t, valuation.MissingPrices)
}

func TestServiceGroupValuationMissingPrices(t *testing.T) {
	svc := newTestService(t, map[string]float64{})

	_, err := svc.AddLot(portfolio.LotCreate{AccountID: "brokerage-1", Ticker: "VTI", Quantity: 10, CostBasisPerShare: 200})
	require.NoError(t, err)

	valuation, err := svc.GetGroupValuation("household")
	require.NoError(t, err)

	// Unpriced securities fall back to 1.0
	assert.InDelta(t, 10, valuation.TotalValue, 1e-9)
	assert.Equal(t, []string{"VTI"}, valuation.MissingPrices)
}

func TestServiceGroupValuationUnknownGroup(t *testing.T) {
	svc := newTestService(t, nil)

	_, err := svc.GetGroupValuation("ghost")
	assert.ErrorContains(t, err, "group not found")
}
