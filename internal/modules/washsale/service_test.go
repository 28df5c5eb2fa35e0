package washsale_test

import (
	"testing"
	"time"

	"github.com/ballastd/ballast/internal/domain"
	"github.com/ballastd/ballast/internal/modules/ledger"
	"github.com/ballastd/ballast/internal/modules/washsale"
	ballasttest "github.com/ballastd/ballast/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sweepEnv struct {
	service      *washsale.Service
	repo         *washsale.Repository
	transactions *ledger.Repository
}

func newSweepEnv(t *testing.T) *sweepEnv {
	t.Helper()
	portfolioDB, cleanupPortfolio := ballasttest.NewTestDB(t, "portfolio")
	t.Cleanup(cleanupPortfolio)
	ledgerDB, cleanupLedger := ballasttest.NewTestDB(t, "ledger")
	t.Cleanup(cleanupLedger)

	repo := washsale.NewRepository(portfolioDB.Conn(), zerolog.Nop())
	transactions := ledger.NewRepository(ledgerDB.Conn(), zerolog.Nop())

	return &sweepEnv{
		service:      washsale.NewService(repo, transactions, nil, zerolog.Nop()),
		repo:         repo,
		transactions: transactions,
	}
}

func (e *sweepEnv) recordSell(t *testing.T, ticker string, executedAt int64, gainLossCents int64) {
	t.Helper()
	cents := domain.Cents(gainLossCents)
	_, _, err := e.transactions.Insert(ledger.Transaction{
		AccountID:  "brokerage-1",
		Ticker:     ticker,
		Side:       domain.SideSell,
		Quantity:   10,
		Price:      55,
		ExecutedAt: executedAt,
	}, &cents)
	require.NoError(t, err)
}

func TestSweepDerivesFromLossSales(t *testing.T) {
	env := newSweepEnv(t)
	now := time.Now()

	env.recordSell(t, "VXUS", now.Unix()-5*86400, -8000) // loss, in window
	env.recordSell(t, "VTI", now.Unix()-5*86400, 5000)   // gain
	env.recordSell(t, "IXUS", now.Unix()-40*86400, -100) // loss, window passed

	result, err := env.service.Sweep(now)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Derived)
	assert.Equal(t, 1, result.Active)

	active, err := env.service.ActiveRestrictions(now)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "VXUS", active[0].Ticker)
	assert.Equal(t, washsale.BlockedUntil(now.Unix()-5*86400), active[0].BlockedUntil)
	assert.Contains(t, active[0].Reason, "loss sale")
	assert.NotNil(t, active[0].SourceTransactionID)
}

func TestSweepKeepsMostRecentLossSale(t *testing.T) {
	env := newSweepEnv(t)
	now := time.Now()

	env.recordSell(t, "VXUS", now.Unix()-20*86400, -500)
	env.recordSell(t, "VXUS", now.Unix()-3*86400, -200)

	_, err := env.service.Sweep(now)
	require.NoError(t, err)

	res, err := env.service.GetRestriction("VXUS")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, washsale.BlockedUntil(now.Unix()-3*86400), res.BlockedUntil)
}

func TestSweepPurgesExpired(t *testing.T) {
	env := newSweepEnv(t)
	now := time.Now()

	env.recordSell(t, "VXUS", now.Unix()-5*86400, -8000)

	_, err := env.service.Sweep(now)
	require.NoError(t, err)

	// 26 days later the window has passed and the row goes away
	later := now.Add(26 * 24 * time.Hour)
	result, err := env.service.Sweep(later)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Derived)
	assert.Equal(t, 1, result.Purged)
	assert.Equal(t, 0, result.Active)

	all, err := env.service.AllRestrictions()
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestDeriveFromTransactions(t *testing.T) {
	now := time.Now().Unix()
	loss := -80.0
	gain := 50.0

	derived := washsale.DeriveFromTransactions([]ledger.Transaction{
		{ID: 1, Ticker: "VXUS", Side: domain.SideSell, RealizedGainLoss: &loss, ExecutedAt: now - 86400, Quantity: 10, Price: 55},
		{ID: 2, Ticker: "VTI", Side: domain.SideSell, RealizedGainLoss: &gain, ExecutedAt: now - 86400, Quantity: 5, Price: 250},
		{ID: 3, Ticker: "BND", Side: domain.SideBuy, ExecutedAt: now - 86400, Quantity: 10, Price: 70},
	})

	require.Len(t, derived, 1)
	assert.Equal(t, "VXUS", derived[0].Ticker)
	require.NotNil(t, derived[0].SourceTransactionID)
	assert.Equal(t, int64(1), *derived[0].SourceTransactionID)
}
