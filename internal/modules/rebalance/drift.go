package rebalance

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// SleeveDrift is one sleeve's live deviation from its target weight.
// DeviationPct is in percentage points, positive when overweight.
type SleeveDrift struct {
	Sleeve       string  `json:"sleeve"`
	TargetPct    float64 `json:"target_pct"`
	CurrentPct   float64 `json:"current_pct"`
	DeviationPct float64 `json:"deviation_pct"`
	TargetValue  float64 `json:"target_value"`
	CurrentValue float64 `json:"current_value"`
}

// DriftReport summarizes how far a group sits from its model right now
type DriftReport struct {
	GroupID      string        `json:"group_id"`
	TotalValue   float64       `json:"total_value"`
	CashValue    float64       `json:"cash_value"`
	Sleeves      []SleeveDrift `json:"sleeves"`
	MeanAbsPct   float64       `json:"mean_abs_pct"`
	MaxAbsPct    float64       `json:"max_abs_pct"`
	StdDevPct    float64       `json:"std_dev_pct"`
	ThresholdPct float64       `json:"threshold_pct"`
	Exceeded     bool          `json:"exceeded"`
}

// ComputeDrift measures per-sleeve deviation over the same normalized state
// a rebalance run would use. The orphan sleeve appears only when something
// is actually orphaned; cash is reported separately, not as drift.
func ComputeDrift(input Input, thresholdPct float64) *DriftReport {
	agg := aggregateHoldings(input.Holdings, input.Prices)
	total := agg.totalValue()
	sleeves := buildSleeves(input.Sleeves, agg, total)

	report := &DriftReport{
		GroupID:      input.GroupID,
		TotalValue:   total,
		CashValue:    agg.cashValue,
		ThresholdPct: thresholdPct,
	}

	var deviations []float64
	for _, sl := range sleeves {
		if sl.Kind == SleeveCash {
			continue
		}
		if sl.Kind == SleeveOrphan && sl.CurrentValue == 0 {
			continue
		}

		currentPct := 0.0
		if total > 0 {
			currentPct = sl.CurrentValue / total
		}
		devPct := (currentPct - sl.TargetPct) * 100

		report.Sleeves = append(report.Sleeves, SleeveDrift{
			Sleeve:       sl.Name,
			TargetPct:    sl.TargetPct * 100,
			CurrentPct:   currentPct * 100,
			DeviationPct: devPct,
			TargetValue:  sl.TargetValue,
			CurrentValue: sl.CurrentValue,
		})
		deviations = append(deviations, devPct)
	}

	if len(deviations) > 0 {
		abs := make([]float64, len(deviations))
		for i, d := range deviations {
			abs[i] = math.Abs(d)
			if abs[i] > report.MaxAbsPct {
				report.MaxAbsPct = abs[i]
			}
		}
		report.MeanAbsPct = stat.Mean(abs, nil)
		if len(deviations) > 1 {
			report.StdDevPct = stat.StdDev(deviations, nil)
		}
	}

	report.Exceeded = report.MaxAbsPct >= thresholdPct && thresholdPct > 0
	return report
}
