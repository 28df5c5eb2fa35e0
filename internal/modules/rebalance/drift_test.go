package rebalance

import (
	"math"
	"testing"

	"github.com/ballastd/ballast/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func driftInput() Input {
	return Input{
		GroupID:  "g1",
		Accounts: []Account{{ID: "acct-1", Type: domain.AccountTaxable}},
		Holdings: []Holding{
			cashHolding("acct-1", 1000),
			holdingOf("acct-1", domain.AccountTaxable, "VTI", 60, 100, daysAgo(100)),
			holdingOf("acct-1", domain.AccountTaxable, "BND", 30, 100, daysAgo(100)),
		},
		Sleeves: []SleeveSpec{
			{Name: "stocks", TargetBPS: 5000, Members: []Member{activeMember("VTI", 1)}},
			{Name: "bonds", TargetBPS: 4000, Members: []Member{activeMember("BND", 1)}},
		},
		Prices: map[string]float64{"VTI": 100, "BND": 100},
		Now:    testNow,
	}
}

func TestComputeDriftMeasuresDeviation(t *testing.T) {
	report := ComputeDrift(driftInput(), 5.0)

	assert.Equal(t, "g1", report.GroupID)
	assert.InDelta(t, 10000, report.TotalValue, 1e-9)
	assert.InDelta(t, 1000, report.CashValue, 1e-9)

	require.Len(t, report.Sleeves, 2)
	bonds := report.Sleeves[0]
	assert.Equal(t, "bonds", bonds.Sleeve)
	assert.InDelta(t, 40, bonds.TargetPct, 1e-9)
	assert.InDelta(t, 30, bonds.CurrentPct, 1e-9)
	assert.InDelta(t, -10, bonds.DeviationPct, 1e-9)

	stocks := report.Sleeves[1]
	assert.Equal(t, "stocks", stocks.Sleeve)
	assert.InDelta(t, 10, stocks.DeviationPct, 1e-9)

	assert.InDelta(t, 10, report.MeanAbsPct, 1e-9)
	assert.InDelta(t, 10, report.MaxAbsPct, 1e-9)
	assert.InDelta(t, math.Sqrt(200), report.StdDevPct, 1e-6)
	assert.True(t, report.Exceeded, "10 points of drift clears a 5 point threshold")
}

func TestComputeDriftThreshold(t *testing.T) {
	report := ComputeDrift(driftInput(), 15.0)
	assert.False(t, report.Exceeded)

	report = ComputeDrift(driftInput(), 0)
	assert.False(t, report.Exceeded, "a zero threshold disables the alert")
}

func TestComputeDriftIncludesNonEmptyOrphans(t *testing.T) {
	input := driftInput()
	input.Holdings = append(input.Holdings,
		holdingOf("acct-1", domain.AccountTaxable, "GLD", 5, 100, daysAgo(100)),
	)
	input.Prices["GLD"] = 100

	report := ComputeDrift(input, 5.0)

	require.Len(t, report.Sleeves, 3)
	names := []string{report.Sleeves[0].Sleeve, report.Sleeves[1].Sleeve, report.Sleeves[2].Sleeve}
	assert.Contains(t, names, orphanSleeveName)

	// without orphans the synthetic sleeve stays out of the report
	clean := ComputeDrift(driftInput(), 5.0)
	require.Len(t, clean.Sleeves, 2)
	for _, sd := range clean.Sleeves {
		assert.NotEqual(t, orphanSleeveName, sd.Sleeve)
	}
}
