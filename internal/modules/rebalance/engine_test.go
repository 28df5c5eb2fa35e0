package rebalance

import (
	"testing"
	"time"

	"github.com/ballastd/ballast/internal/domain"
	"github.com/ballastd/ballast/internal/modules/washsale"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC).Unix()

func daysAgo(d int) int64 {
	return testNow - int64(d)*24*3600
}

func newTestEngine() *Engine {
	return NewEngine(zerolog.Nop())
}

func cashHolding(account string, amount float64) Holding {
	return Holding{
		AccountID:         account,
		AccountType:       domain.AccountTaxable,
		Ticker:            domain.CashTicker,
		Quantity:          amount,
		CostBasisPerShare: 1.0,
		OpenedAt:          testNow,
	}
}

func holdingOf(account string, accountType domain.AccountType, ticker string, qty, cost float64, openedAt int64) Holding {
	return Holding{
		AccountID:         account,
		AccountType:       accountType,
		Ticker:            ticker,
		Quantity:          qty,
		CostBasisPerShare: cost,
		OpenedAt:          openedAt,
	}
}

func activeMember(ticker string, rank int) Member {
	return Member{Ticker: ticker, Rank: rank, IsActive: true}
}

func restrictedFor(ticker string, days int) washsale.Restriction {
	return washsale.Restriction{Ticker: ticker, BlockedUntil: testNow + int64(days)*24*3600}
}

func tradeFor(t *testing.T, trades []Trade, ticker string, action domain.TradeSide) Trade {
	t.Helper()
	for _, tr := range trades {
		if tr.Ticker == ticker && tr.Action == action {
			return tr
		}
	}
	t.Fatalf("no %s trade for %s in %+v", action, ticker, trades)
	return Trade{}
}

func lastCashRow(t *testing.T, trades []Trade) Trade {
	t.Helper()
	require.NotEmpty(t, trades)
	last := trades[len(trades)-1]
	require.True(t, last.IsCash(), "expected the net cash row last, got %s %s", last.Action, last.Ticker)
	return last
}

func TestAllocationBuysUnderweightSleeve(t *testing.T) {
	input := Input{
		GroupID:  "g1",
		Accounts: []Account{{ID: "taxable-1", Type: domain.AccountTaxable}},
		Holdings: []Holding{cashHolding("taxable-1", 100000)},
		Sleeves: []SleeveSpec{
			{Name: "us-equity", TargetBPS: 5000, Members: []Member{activeMember("VTI", 1)}},
		},
		Prices: map[string]float64{"VTI": 100},
		Now:    testNow,
	}

	result, err := newTestEngine().Run(input, Request{Method: domain.MethodAllocation})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Empty(t, result.Blocked)

	buy := tradeFor(t, result.Trades, "VTI", domain.SideBuy)
	assert.Equal(t, 500.0, buy.Quantity)
	assert.InDelta(t, 50000, buy.EstValue, 1e-6)
	assert.Equal(t, "taxable-1", buy.AccountID)
	assert.True(t, buy.CanExecute)
	assert.Empty(t, buy.BlockingReason)

	cash := lastCashRow(t, result.Trades)
	assert.Equal(t, domain.SideSell, cash.Action)
	assert.InDelta(t, 50000, cash.EstValue, 1e-6)

	assert.InDelta(t, 50000, result.Summary.TotalBuyValue, 1e-6)
	assert.InDelta(t, 0, result.Summary.TotalSellValue, 1e-6)
	assert.InDelta(t, 50000, result.Summary.CashRemaining, 1e-6)
}

func TestTLHSwapSellsLossAndBuysSubstitute(t *testing.T) {
	input := Input{
		GroupID:  "g1",
		Accounts: []Account{{ID: "taxable-1", Type: domain.AccountTaxable}},
		Holdings: []Holding{
			holdingOf("taxable-1", domain.AccountTaxable, "VTI", 100, 120, daysAgo(400)),
		},
		Sleeves: []SleeveSpec{
			{Name: "us-equity", TargetBPS: 10000, Members: []Member{
				activeMember("VTI", 1),
				activeMember("SCHB", 2),
			}},
		},
		Prices: map[string]float64{"VTI": 100, "SCHB": 50},
		Now:    testNow,
	}

	result, err := newTestEngine().Run(input, Request{Method: domain.MethodTLHSwap})
	require.NoError(t, err)
	require.Len(t, result.Trades, 2)

	sell := result.Trades[0]
	assert.Equal(t, domain.SideSell, sell.Action)
	assert.Equal(t, "VTI", sell.Ticker)
	assert.Equal(t, 100.0, sell.Quantity)
	assert.InDelta(t, 10000, sell.EstValue, 1e-6)

	buy := result.Trades[1]
	assert.Equal(t, domain.SideBuy, buy.Action)
	assert.Equal(t, "SCHB", buy.Ticker)
	assert.Equal(t, 200.0, buy.Quantity)
	assert.InDelta(t, 10000, buy.EstValue, 1e-6)

	for _, tr := range result.Trades {
		if tr.Action == domain.SideBuy {
			assert.NotEqual(t, "VTI", tr.Ticker, "harvested ticker must not be rebought in the same run")
		}
	}

	assert.InDelta(t, -2000, result.Summary.LongTermGains, 1e-6)
	assert.InDelta(t, 0, result.Summary.ShortTermGains, 1e-6)
	assert.InDelta(t, 0, result.Summary.CashRemaining, 1e-6)
}

func TestAllocationReportsFullyRestrictedSleeve(t *testing.T) {
	input := Input{
		GroupID:  "g1",
		Accounts: []Account{{ID: "acct-1", Type: domain.AccountTaxable}},
		Holdings: []Holding{cashHolding("acct-1", 100000)},
		Sleeves: []SleeveSpec{
			{Name: "a-us", TargetBPS: 5000, Members: []Member{activeMember("VTI", 1)}},
			{Name: "b-intl", TargetBPS: 5000, Members: []Member{
				activeMember("VXUS", 1),
				activeMember("IXUS", 2),
			}},
		},
		Prices: map[string]float64{"VTI": 100, "VXUS": 60, "IXUS": 55},
		Restrictions: []washsale.Restriction{
			restrictedFor("VXUS", 10),
			restrictedFor("IXUS", 5),
		},
		Now: testNow,
	}

	result, err := newTestEngine().Run(input, Request{Method: domain.MethodAllocation})
	require.NoError(t, err)

	// the unrestricted sleeve still rebalances
	buy := tradeFor(t, result.Trades, "VTI", domain.SideBuy)
	assert.Equal(t, 500.0, buy.Quantity)

	for _, tr := range result.Trades {
		assert.NotEqual(t, "VXUS", tr.Ticker)
		assert.NotEqual(t, "IXUS", tr.Ticker)
	}

	require.Len(t, result.Blocked, 1)
	assert.Equal(t, "b-intl", result.Blocked[0].Sleeve)
	assert.Contains(t, result.Blocked[0].Reason, "wash-sale")
}

func TestTLHSwapSkipsPairWithoutSubstitute(t *testing.T) {
	input := Input{
		GroupID:  "g1",
		Accounts: []Account{{ID: "taxable-1", Type: domain.AccountTaxable}},
		Holdings: []Holding{
			holdingOf("taxable-1", domain.AccountTaxable, "VTI", 100, 120, daysAgo(400)),
		},
		Sleeves: []SleeveSpec{
			{Name: "us-equity", TargetBPS: 10000, Members: []Member{activeMember("VTI", 1)}},
		},
		Prices: map[string]float64{"VTI": 100},
		Now:    testNow,
	}

	result, err := newTestEngine().Run(input, Request{Method: domain.MethodTLHSwap})
	require.NoError(t, err)
	assert.Empty(t, result.Trades, "a pair without a substitute is skipped whole, not half-executed")

	require.Len(t, result.Blocked, 1)
	assert.Equal(t, "us-equity", result.Blocked[0].Sleeve)
	assert.Equal(t, "VTI", result.Blocked[0].Ticker)
	assert.Contains(t, result.Blocked[0].Reason, "no unrestricted substitute")
}

func TestInvestCashDeploysMostUnderweightFirst(t *testing.T) {
	input := Input{
		GroupID:  "g1",
		Accounts: []Account{{ID: "acct-1", Type: domain.AccountTaxable}},
		Holdings: []Holding{
			cashHolding("acct-1", 10000),
			holdingOf("acct-1", domain.AccountTaxable, "AAA", 40, 100, daysAgo(50)),
			holdingOf("acct-1", domain.AccountTaxable, "BBB", 60, 100, daysAgo(50)),
		},
		Sleeves: []SleeveSpec{
			{Name: "growth", TargetBPS: 5000, Members: []Member{activeMember("AAA", 1)}},
			{Name: "income", TargetBPS: 4500, Members: []Member{activeMember("BBB", 1)}},
		},
		Prices: map[string]float64{"AAA": 100, "BBB": 100},
		Now:    testNow,
	}

	amount := 10000.0
	result, err := newTestEngine().Run(input, Request{Method: domain.MethodInvestCash, CashAmount: &amount})
	require.NoError(t, err)

	for _, tr := range result.Trades {
		if !tr.IsCash() {
			assert.Equal(t, domain.SideBuy, tr.Action, "investCash never sells")
		}
	}

	// growth is underweight by 6000 and the deeper percentage hole, so it
	// fills first; income takes what it needs from the remainder
	aaa := tradeFor(t, result.Trades, "AAA", domain.SideBuy)
	assert.Equal(t, 60.0, aaa.Quantity)
	assert.InDelta(t, 6000, aaa.EstValue, 1e-6)

	bbb := tradeFor(t, result.Trades, "BBB", domain.SideBuy)
	assert.Equal(t, 30.0, bbb.Quantity)
	assert.InDelta(t, 3000, bbb.EstValue, 1e-6)

	assert.Equal(t, "AAA", result.Trades[0].Ticker)
	assert.Equal(t, "BBB", result.Trades[1].Ticker)

	cash := lastCashRow(t, result.Trades)
	assert.Equal(t, domain.SideSell, cash.Action)
	assert.InDelta(t, 9000, cash.EstValue, 1e-6)

	assert.InDelta(t, 1000, result.Summary.CashRemaining, 1e-6)
}

func TestAllocationScalesBuysToAvailableCash(t *testing.T) {
	input := Input{
		GroupID:  "g1",
		Accounts: []Account{{ID: "acct-1", Type: domain.AccountTaxable}},
		Holdings: []Holding{cashHolding("acct-1", 100000)},
		Sleeves: []SleeveSpec{
			{Name: "p-growth", TargetBPS: 8000, Members: []Member{activeMember("PPP", 1)}},
			{Name: "q-value", TargetBPS: 4000, Members: []Member{activeMember("QQQ", 1)}},
		},
		Prices: map[string]float64{"PPP": 100, "QQQ": 50},
		Now:    testNow,
	}

	result, err := newTestEngine().Run(input, Request{Method: domain.MethodAllocation})
	require.NoError(t, err)

	// 120k of need against 100k of cash scales, never rejects
	totalBuys := 0.0
	for _, tr := range result.Trades {
		if tr.IsCash() || tr.Action != domain.SideBuy {
			continue
		}
		totalBuys += tr.EstValue
		assert.True(t, tr.CanExecute)
		assert.Contains(t, tr.BlockingReason, "scaled")
	}
	assert.LessOrEqual(t, totalBuys, 100000.0)
	assert.GreaterOrEqual(t, totalBuys, 100000.0-150, "scaling loses at most one share per security")

	ppp := tradeFor(t, result.Trades, "PPP", domain.SideBuy)
	assert.Equal(t, 666.0, ppp.Quantity)
	qqq := tradeFor(t, result.Trades, "QQQ", domain.SideBuy)
	assert.Equal(t, 666.0, qqq.Quantity)
}

func TestAllocationOverinvestmentBounded(t *testing.T) {
	input := Input{
		GroupID:  "g1",
		Accounts: []Account{{ID: "acct-1", Type: domain.AccountTaxable}},
		Holdings: []Holding{cashHolding("acct-1", 100000)},
		Sleeves: []SleeveSpec{
			{Name: "p-growth", TargetBPS: 8000, Members: []Member{activeMember("PPP", 1)}},
			{Name: "q-value", TargetBPS: 4000, Members: []Member{activeMember("QQQ", 1)}},
		},
		Prices: map[string]float64{"PPP": 100, "QQQ": 50},
		Now:    testNow,
	}

	result, err := newTestEngine().Run(input, Request{
		Method:              domain.MethodAllocation,
		AllowOverinvestment: true,
	})
	require.NoError(t, err)

	assert.Greater(t, result.Summary.TotalBuyValue, 100000.0, "overinvestment may exceed cash")
	assert.LessOrEqual(t, result.Summary.TotalBuyValue, 105000.0+1e-6, "but only by the default 5 percent")
}

func TestAllocationSellsByRankThenLoss(t *testing.T) {
	input := Input{
		GroupID:  "g1",
		Accounts: []Account{{ID: "acct-1", Type: domain.AccountTaxable}},
		Holdings: []Holding{
			holdingOf("acct-1", domain.AccountTaxable, "SPLG", 100, 5, daysAgo(400)),
			holdingOf("acct-1", domain.AccountTaxable, "IVV", 100, 15, daysAgo(400)),
			holdingOf("acct-1", domain.AccountTaxable, "VOO", 100, 10, daysAgo(400)),
		},
		Sleeves: []SleeveSpec{
			{Name: "tech", TargetBPS: 1000, Members: []Member{
				activeMember("SPLG", 1),
				activeMember("IVV", 2),
				activeMember("VOO", 2),
			}},
		},
		Prices: map[string]float64{"SPLG": 10, "IVV": 10, "VOO": 10},
		Now:    testNow,
	}

	result, err := newTestEngine().Run(input, Request{Method: domain.MethodAllocation})
	require.NoError(t, err)
	require.Len(t, result.Trades, 4)

	// least preferred rank first; among equal ranks the loss position goes
	// before the flat one
	assert.Equal(t, "IVV", result.Trades[0].Ticker)
	assert.Equal(t, 100.0, result.Trades[0].Quantity)
	assert.Equal(t, "VOO", result.Trades[1].Ticker)
	assert.Equal(t, 100.0, result.Trades[1].Quantity)
	assert.Equal(t, "SPLG", result.Trades[2].Ticker)
	assert.Equal(t, 70.0, result.Trades[2].Quantity)

	cash := lastCashRow(t, result.Trades)
	assert.Equal(t, domain.SideBuy, cash.Action)
	assert.InDelta(t, 2700, cash.EstValue, 1e-6)

	assert.InDelta(t, 2700, result.Summary.TotalSellValue, 1e-6)
	assert.InDelta(t, 2700, result.Summary.CashRemaining, 1e-6)
}

func TestAllocationLiquidatesOrphans(t *testing.T) {
	input := Input{
		GroupID:  "g1",
		Accounts: []Account{{ID: "acct-1", Type: domain.AccountTaxable}},
		Holdings: []Holding{
			holdingOf("acct-1", domain.AccountTaxable, "XYZ", 10.5, 40, daysAgo(100)),
		},
		Sleeves: []SleeveSpec{
			{Name: "core", TargetBPS: 10000, Members: []Member{activeMember("VTI", 1)}},
		},
		Prices: map[string]float64{"XYZ": 50, "VTI": 100},
		Now:    testNow,
	}

	result, err := newTestEngine().Run(input, Request{Method: domain.MethodAllocation})
	require.NoError(t, err)

	// full liquidations keep the exact fractional quantity
	sell := tradeFor(t, result.Trades, "XYZ", domain.SideSell)
	assert.Equal(t, 10.5, sell.Quantity)
	assert.InDelta(t, 525, sell.EstValue, 1e-6)

	buy := tradeFor(t, result.Trades, "VTI", domain.SideBuy)
	assert.Equal(t, 5.0, buy.Quantity)

	cash := lastCashRow(t, result.Trades)
	assert.Equal(t, domain.SideBuy, cash.Action)
	assert.InDelta(t, 25, cash.EstValue, 1e-6)

	assert.InDelta(t, 105, result.Summary.ShortTermGains, 1e-6)
	assert.InDelta(t, 0, result.Summary.LongTermGains, 1e-6)
}

func TestTLHRebalanceHarvestsThenRebalances(t *testing.T) {
	input := Input{
		GroupID:  "g1",
		Accounts: []Account{{ID: "taxable-1", Type: domain.AccountTaxable}},
		Holdings: []Holding{
			cashHolding("taxable-1", 10000),
			holdingOf("taxable-1", domain.AccountTaxable, "VTI", 100, 120, daysAgo(400)),
		},
		Sleeves: []SleeveSpec{
			{Name: "us-equity", TargetBPS: 6000, Members: []Member{
				activeMember("VTI", 1),
				activeMember("SCHB", 2),
			}},
		},
		Prices: map[string]float64{"VTI": 100, "SCHB": 50},
		Now:    testNow,
	}

	result, err := newTestEngine().Run(input, Request{Method: domain.MethodTLHRebalance})
	require.NoError(t, err)
	require.Len(t, result.Trades, 3)

	sell := result.Trades[0]
	assert.Equal(t, "VTI", sell.Ticker)
	assert.Equal(t, domain.SideSell, sell.Action)
	assert.Equal(t, 100.0, sell.Quantity)

	// swap buy and allocation top-up merge into a single row, and the
	// harvested ticker is never the top-up candidate
	buy := result.Trades[1]
	assert.Equal(t, "SCHB", buy.Ticker)
	assert.Equal(t, domain.SideBuy, buy.Action)
	assert.Equal(t, 240.0, buy.Quantity)
	assert.InDelta(t, 12000, buy.EstValue, 1e-6)

	cash := lastCashRow(t, result.Trades)
	assert.Equal(t, domain.SideSell, cash.Action)
	assert.InDelta(t, 2000, cash.EstValue, 1e-6)

	assert.InDelta(t, -2000, result.Summary.LongTermGains, 1e-6)
	assert.InDelta(t, 8000, result.Summary.CashRemaining, 1e-6)
	assert.InDelta(t, 0, result.Summary.PostTradeDeviation, 1e-6)
}

func TestNoRestrictedBuysAcrossMethods(t *testing.T) {
	input := Input{
		GroupID:  "g1",
		Accounts: []Account{{ID: "taxable-1", Type: domain.AccountTaxable}},
		Holdings: []Holding{
			cashHolding("taxable-1", 20000),
			holdingOf("taxable-1", domain.AccountTaxable, "VTI", 100, 120, daysAgo(400)),
		},
		Sleeves: []SleeveSpec{
			{Name: "us-equity", TargetBPS: 8000, Members: []Member{
				activeMember("VTI", 1),
				activeMember("SCHB", 2),
				activeMember("ITOT", 3),
			}},
		},
		Prices:       map[string]float64{"VTI": 100, "SCHB": 50, "ITOT": 80},
		Restrictions: []washsale.Restriction{restrictedFor("SCHB", 10)},
		Now:          testNow,
	}

	for _, method := range domain.Methods() {
		t.Run(string(method), func(t *testing.T) {
			result, err := newTestEngine().Run(input, Request{Method: method})
			require.NoError(t, err)
			for _, tr := range result.Trades {
				if tr.Action == domain.SideBuy && !tr.IsCash() {
					assert.NotEqual(t, "SCHB", tr.Ticker, "restricted ticker must never be bought")
				}
			}
		})
	}

	// the swap walks past the restricted rank-2 member to rank 3
	result, err := newTestEngine().Run(input, Request{Method: domain.MethodTLHSwap})
	require.NoError(t, err)
	buy := tradeFor(t, result.Trades, "ITOT", domain.SideBuy)
	assert.Equal(t, 125.0, buy.Quantity)
}

func TestRunIsDeterministic(t *testing.T) {
	input := Input{
		GroupID: "g1",
		Accounts: []Account{
			{ID: "taxable-1", Type: domain.AccountTaxable},
			{ID: "ira-1", Type: domain.AccountTaxDeferred},
		},
		Holdings: []Holding{
			cashHolding("taxable-1", 15000),
			holdingOf("taxable-1", domain.AccountTaxable, "VTI", 100, 120, daysAgo(400)),
			holdingOf("ira-1", domain.AccountTaxDeferred, "BND", 50, 80, daysAgo(200)),
			holdingOf("taxable-1", domain.AccountTaxable, "GLD", 10, 150, daysAgo(30)),
		},
		Sleeves: []SleeveSpec{
			{Name: "bonds", TargetBPS: 3000, Members: []Member{activeMember("BND", 1)}},
			{Name: "us-equity", TargetBPS: 6000, Members: []Member{
				activeMember("VTI", 1),
				activeMember("SCHB", 2),
			}},
		},
		Prices:       map[string]float64{"VTI": 100, "SCHB": 50, "BND": 80, "GLD": 170},
		Restrictions: []washsale.Restriction{restrictedFor("ITOT", 3)},
		Now:          testNow,
	}

	for _, method := range domain.Methods() {
		t.Run(string(method), func(t *testing.T) {
			first, err := newTestEngine().Run(input, Request{Method: method})
			require.NoError(t, err)
			second, err := newTestEngine().Run(input, Request{Method: method})
			require.NoError(t, err)
			assert.Equal(t, first, second)
		})
	}
}

func TestRunRejectsUnknownMethod(t *testing.T) {
	input := Input{
		GroupID:  "g1",
		Accounts: []Account{{ID: "acct-1", Type: domain.AccountTaxable}},
		Now:      testNow,
	}

	_, err := newTestEngine().Run(input, Request{Method: "magic"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownMethod)
}

func TestInvestCashWithZeroCashIsEmpty(t *testing.T) {
	input := Input{
		GroupID:  "g1",
		Accounts: []Account{{ID: "acct-1", Type: domain.AccountTaxable}},
		Holdings: []Holding{
			holdingOf("acct-1", domain.AccountTaxable, "VTI", 10, 100, daysAgo(100)),
		},
		Sleeves: []SleeveSpec{
			{Name: "core", TargetBPS: 10000, Members: []Member{activeMember("VTI", 1)}},
		},
		Prices: map[string]float64{"VTI": 100},
		Now:    testNow,
	}

	result, err := newTestEngine().Run(input, Request{Method: domain.MethodInvestCash})
	require.NoError(t, err, "zero cash is an empty proposal, not an error")
	assert.Empty(t, result.Trades)
	assert.InDelta(t, 0, result.Summary.CashRemaining, 1e-6)
}

func TestMissingPriceDefaultsAndReports(t *testing.T) {
	input := Input{
		GroupID:  "g1",
		Accounts: []Account{{ID: "acct-1", Type: domain.AccountTaxable}},
		Holdings: []Holding{
			holdingOf("acct-1", domain.AccountTaxable, "MYST", 10, 5, daysAgo(100)),
		},
		Sleeves: []SleeveSpec{
			{Name: "odd", TargetBPS: 10000, Members: []Member{activeMember("MYST", 1)}},
		},
		Prices: map[string]float64{},
		Now:    testNow,
	}

	result, err := newTestEngine().Run(input, Request{Method: domain.MethodAllocation})
	require.NoError(t, err)
	assert.Empty(t, result.Trades, "at the 1.0 fallback price the sleeve is exactly on target")

	require.Len(t, result.Blocked, 1)
	assert.Equal(t, "MYST", result.Blocked[0].Ticker)
	assert.Contains(t, result.Blocked[0].Reason, "price unavailable")
}

func TestTLHSwapIgnoresTaxDeferredLosses(t *testing.T) {
	input := Input{
		GroupID:  "g1",
		Accounts: []Account{{ID: "ira-1", Type: domain.AccountTaxDeferred}},
		Holdings: []Holding{
			holdingOf("ira-1", domain.AccountTaxDeferred, "VTI", 100, 120, daysAgo(400)),
		},
		Sleeves: []SleeveSpec{
			{Name: "us-equity", TargetBPS: 10000, Members: []Member{
				activeMember("VTI", 1),
				activeMember("SCHB", 2),
			}},
		},
		Prices: map[string]float64{"VTI": 100, "SCHB": 50},
		Now:    testNow,
	}

	result, err := newTestEngine().Run(input, Request{Method: domain.MethodTLHSwap})
	require.NoError(t, err)
	assert.Empty(t, result.Trades, "losses in tax-deferred accounts cannot be harvested")
	assert.Empty(t, result.Blocked)
}

func TestTLHSwapStaysValueNeutral(t *testing.T) {
	input := Input{
		GroupID:  "g1",
		Accounts: []Account{{ID: "taxable-1", Type: domain.AccountTaxable}},
		Holdings: []Holding{
			holdingOf("taxable-1", domain.AccountTaxable, "VTI", 100, 120, daysAgo(400)),
		},
		Sleeves: []SleeveSpec{
			{Name: "us-equity", TargetBPS: 10000, Members: []Member{
				activeMember("VTI", 1),
				activeMember("SCHV", 2),
			}},
		},
		Prices: map[string]float64{"VTI": 100, "SCHV": 37},
		Now:    testNow,
	}

	result, err := newTestEngine().Run(input, Request{Method: domain.MethodTLHSwap})
	require.NoError(t, err)

	sell := tradeFor(t, result.Trades, "VTI", domain.SideSell)
	buy := tradeFor(t, result.Trades, "SCHV", domain.SideBuy)
	assert.Equal(t, 270.0, buy.Quantity)
	assert.LessOrEqual(t, sell.EstValue-buy.EstValue, 37.0, "swap dust is bounded by one substitute share")

	// the floor dust lands in cash
	cash := lastCashRow(t, result.Trades)
	assert.Equal(t, domain.SideBuy, cash.Action)
	assert.InDelta(t, 10, cash.EstValue, 1e-6)
}

func TestAllocationReachesTargets(t *testing.T) {
	input := Input{
		GroupID:  "g1",
		Accounts: []Account{{ID: "acct-1", Type: domain.AccountTaxable}},
		Holdings: []Holding{
			cashHolding("acct-1", 10000),
			holdingOf("acct-1", domain.AccountTaxable, "VTI", 100, 100, daysAgo(400)),
			holdingOf("acct-1", domain.AccountTaxable, "BND", 50, 80, daysAgo(400)),
		},
		Sleeves: []SleeveSpec{
			{Name: "bonds", TargetBPS: 4000, Members: []Member{activeMember("BND", 1)}},
			{Name: "us-equity", TargetBPS: 6000, Members: []Member{activeMember("VTI", 1)}},
		},
		Prices: map[string]float64{"VTI": 100, "BND": 80},
		Now:    testNow,
	}

	result, err := newTestEngine().Run(input, Request{Method: domain.MethodAllocation})
	require.NoError(t, err)

	vti := tradeFor(t, result.Trades, "VTI", domain.SideBuy)
	assert.Equal(t, 44.0, vti.Quantity)
	bnd := tradeFor(t, result.Trades, "BND", domain.SideBuy)
	assert.Equal(t, 70.0, bnd.Quantity)

	for _, tr := range result.Trades {
		assert.Empty(t, tr.BlockingReason, "needs fit cash exactly, nothing is scaled")
	}

	assert.InDelta(t, 0, result.Summary.PostTradeDeviation, 1e-6)
	assert.InDelta(t, 0, result.Summary.AvgDeviationPct, 1e-6)
	assert.InDelta(t, 0, result.Summary.CashRemaining, 1e-6)
}
