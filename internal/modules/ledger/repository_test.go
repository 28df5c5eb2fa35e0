package ledger

import (
	"testing"
	"time"

	"github.com/ballastd/ballast/internal/domain"
	ballasttest "github.com/ballastd/ballast/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) (*Repository, func()) {
	t.Helper()
	db, cleanup := ballasttest.NewTestDB(t, "ledger")
	return NewRepository(db.Conn(), zerolog.Nop()), cleanup
}

func centsPtr(c domain.Cents) *domain.Cents {
	return &c
}

func TestInsertAndGet(t *testing.T) {
	repo, cleanup := newTestRepo(t)
	defer cleanup()

	inserted, tx, err := repo.Insert(Transaction{
		AccountID:  "brokerage-1",
		Ticker:     "vti",
		Side:       domain.SideSell,
		Quantity:   10,
		Price:      220,
		ExternalID: "broker-001",
		ExecutedAt: time.Now().Unix(),
	}, centsPtr(domain.Cents(-12345)))
	require.NoError(t, err)
	assert.True(t, inserted)
	require.NotNil(t, tx)

	assert.Equal(t, "VTI", tx.Ticker)
	assert.Equal(t, domain.SideSell, tx.Side)
	require.NotNil(t, tx.RealizedGainLoss)
	assert.InDelta(t, -123.45, *tx.RealizedGainLoss, 1e-9)
	assert.InDelta(t, 2200.0, tx.Value(), 1e-9)

	got, err := repo.GetByID(tx.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, tx.ID, got.ID)
}

func TestInsertDuplicateExternalID(t *testing.T) {
	repo, cleanup := newTestRepo(t)
	defer cleanup()

	tx := Transaction{
		AccountID:  "brokerage-1",
		Ticker:     "VTI",
		Side:       domain.SideBuy,
		Quantity:   5,
		Price:      200,
		ExternalID: "broker-dup",
	}

	inserted, first, err := repo.Insert(tx, nil)
	require.NoError(t, err)
	require.True(t, inserted)

	inserted, second, err := repo.Insert(tx, nil)
	require.NoError(t, err)
	assert.False(t, inserted)
	require.NotNil(t, second)
	assert.Equal(t, first.ID, second.ID)

	all, err := repo.List(TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestInsertWithoutExternalIDNeverCollides(t *testing.T) {
	repo, cleanup := newTestRepo(t)
	defer cleanup()

	tx := Transaction{AccountID: "a1", Ticker: "BND", Side: domain.SideBuy, Quantity: 1, Price: 70}

	for i := 0; i < 3; i++ {
		inserted, _, err := repo.Insert(tx, nil)
		require.NoError(t, err)
		assert.True(t, inserted)
	}

	all, err := repo.List(TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestListFilters(t *testing.T) {
	repo, cleanup := newTestRepo(t)
	defer cleanup()

	base := time.Now().Unix() - 1000
	seed := []struct {
		account string
		ticker  string
		side    domain.TradeSide
		at      int64
	}{
		{"a1", "VTI", domain.SideBuy, base},
		{"a1", "BND", domain.SideBuy, base + 100},
		{"a2", "VTI", domain.SideSell, base + 200},
		{"a2", "VXUS", domain.SideBuy, base + 300},
	}
	for _, s := range seed {
		_, _, err := repo.Insert(Transaction{
			AccountID: s.account, Ticker: s.ticker, Side: s.side,
			Quantity: 1, Price: 100, ExecutedAt: s.at,
		}, nil)
		require.NoError(t, err)
	}

	byAccount, err := repo.List(TransactionFilter{AccountID: "a1"})
	require.NoError(t, err)
	require.Len(t, byAccount, 2)
	// newest first
	assert.Equal(t, "BND", byAccount[0].Ticker)
	assert.Equal(t, "VTI", byAccount[1].Ticker)

	byTicker, err := repo.List(TransactionFilter{Ticker: "vti"})
	require.NoError(t, err)
	assert.Len(t, byTicker, 2)

	since, err := repo.List(TransactionFilter{Since: base + 200})
	require.NoError(t, err)
	assert.Len(t, since, 2)

	limited, err := repo.List(TransactionFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "VXUS", limited[0].Ticker)
}

func TestGetSinceChronological(t *testing.T) {
	repo, cleanup := newTestRepo(t)
	defer cleanup()

	base := time.Now().Unix() - 1000
	for i, ticker := range []string{"VTI", "BND", "VXUS"} {
		_, _, err := repo.Insert(Transaction{
			AccountID: "a1", Ticker: ticker, Side: domain.SideBuy,
			Quantity: 1, Price: 100, ExecutedAt: base + int64(i*100),
		}, nil)
		require.NoError(t, err)
	}

	got, err := repo.GetSince(base + 100)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "BND", got[0].Ticker)
	assert.Equal(t, "VXUS", got[1].Ticker)
}

func TestGetLossSalesSince(t *testing.T) {
	repo, cleanup := newTestRepo(t)
	defer cleanup()

	base := time.Now().Unix() - 1000

	// gain sale, loss sale, buy, old loss sale
	_, _, err := repo.Insert(Transaction{AccountID: "a1", Ticker: "VTI", Side: domain.SideSell,
		Quantity: 5, Price: 250, ExecutedAt: base + 100}, centsPtr(domain.Cents(5000)))
	require.NoError(t, err)
	_, _, err = repo.Insert(Transaction{AccountID: "a1", Ticker: "VXUS", Side: domain.SideSell,
		Quantity: 10, Price: 55, ExecutedAt: base + 200}, centsPtr(domain.Cents(-8000)))
	require.NoError(t, err)
	_, _, err = repo.Insert(Transaction{AccountID: "a1", Ticker: "BND", Side: domain.SideBuy,
		Quantity: 10, Price: 70, ExecutedAt: base + 300}, nil)
	require.NoError(t, err)
	_, _, err = repo.Insert(Transaction{AccountID: "a1", Ticker: "IXUS", Side: domain.SideSell,
		Quantity: 10, Price: 60, ExecutedAt: base - 500}, centsPtr(domain.Cents(-100)))
	require.NoError(t, err)

	losses, err := repo.GetLossSalesSince(base)
	require.NoError(t, err)
	require.Len(t, losses, 1)
	assert.Equal(t, "VXUS", losses[0].Ticker)
	require.NotNil(t, losses[0].RealizedGainLoss)
	assert.InDelta(t, -80.0, *losses[0].RealizedGainLoss, 1e-9)
}
