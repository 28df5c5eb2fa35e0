package universe_test

import (
	"testing"

	"github.com/ballastd/ballast/internal/modules/universe"
	ballasttest "github.com/ballastd/ballast/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSleeveChecker struct {
	inUse map[string]bool
}

func (s *stubSleeveChecker) TickerInUse(ticker string) (bool, error) {
	return s.inUse[ticker], nil
}

func newTestService(t *testing.T, checker universe.SleeveMembershipChecker) *universe.Service {
	t.Helper()
	db, cleanup := ballasttest.NewTestDB(t, "universe")
	t.Cleanup(cleanup)

	repo := universe.NewSecurityRepository(db.Conn(), zerolog.Nop())
	return universe.NewService(repo, checker, nil, zerolog.Nop())
}

func TestServiceUpsertSecurity(t *testing.T) {
	svc := newTestService(t, nil)

	sec, err := svc.UpsertSecurity(universe.SecurityUpsert{
		Ticker: "vti",
		Name:   "Vanguard Total Stock Market ETF",
		Price:  floatPtr(252.10),
	})
	require.NoError(t, err)
	require.NotNil(t, sec)
	assert.Equal(t, "VTI", sec.Ticker, "ticker is normalized")
	assert.True(t, sec.Active, "active defaults to true")
	require.NotNil(t, sec.CurrentPrice)
	assert.InDelta(t, 252.10, *sec.CurrentPrice, 0.001)
	assert.NotNil(t, sec.PriceUpdatedAt)
}

func TestServiceUpsertSecurityValidation(t *testing.T) {
	svc := newTestService(t, nil)

	_, err := svc.UpsertSecurity(universe.SecurityUpsert{Ticker: "  "})
	assert.ErrorContains(t, err, "ticker is required")

	_, err = svc.UpsertSecurity(universe.SecurityUpsert{Ticker: "$$$", Name: "Cash"})
	assert.ErrorContains(t, err, "cash pseudo-ticker")

	_, err = svc.UpsertSecurity(universe.SecurityUpsert{Ticker: "MCASH", Name: "Manual Cash"})
	assert.ErrorContains(t, err, "cash pseudo-ticker")

	_, err = svc.UpsertSecurity(universe.SecurityUpsert{Ticker: "VTI", Name: "VTI", Price: floatPtr(-1)})
	assert.ErrorContains(t, err, "must be positive")
}

func TestServiceDeleteSecurityBlockedWhenInSleeve(t *testing.T) {
	checker := &stubSleeveChecker{inUse: map[string]bool{"VTI": true}}
	svc := newTestService(t, checker)

	_, err := svc.UpsertSecurity(universe.SecurityUpsert{Ticker: "VTI", Name: "VTI"})
	require.NoError(t, err)
	_, err = svc.UpsertSecurity(universe.SecurityUpsert{Ticker: "BND", Name: "BND"})
	require.NoError(t, err)

	err = svc.DeleteSecurity("VTI")
	assert.ErrorContains(t, err, "sleeve member")

	require.NoError(t, svc.DeleteSecurity("BND"))
}

func TestServiceUpdatePricesRejectsNonPositive(t *testing.T) {
	svc := newTestService(t, nil)

	_, err := svc.UpsertSecurity(universe.SecurityUpsert{Ticker: "VTI", Name: "VTI"})
	require.NoError(t, err)

	_, err = svc.UpdatePrices(map[string]float64{"VTI": 0})
	assert.ErrorContains(t, err, "must be positive")

	err = svc.UpdatePrice("VTI", -5)
	assert.ErrorContains(t, err, "must be positive")
}

func TestServiceUpdatePricesNormalizesTickers(t *testing.T) {
	svc := newTestService(t, nil)

	_, err := svc.UpsertSecurity(universe.SecurityUpsert{Ticker: "VTI", Name: "VTI"})
	require.NoError(t, err)

	updated, err := svc.UpdatePrices(map[string]float64{" vti ": 252.10})
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	prices, err := svc.GetPrices()
	require.NoError(t, err)
	assert.InDelta(t, 252.10, prices["VTI"], 0.001)
}
