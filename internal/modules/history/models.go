// Package history records daily group valuation snapshots in history.db.
package history

// Snapshot is one group's valuation record for one calendar day.
// DeviationPct carries the worst sleeve deviation at capture time so the
// series doubles as a drift trend.
type Snapshot struct {
	GroupID      string  `json:"group_id"`
	Date         string  `json:"date"` // YYYY-MM-DD (UTC)
	TotalValue   float64 `json:"total_value"`
	CashValue    float64 `json:"cash_value"`
	DeviationPct float64 `json:"deviation_pct"`
	CreatedAt    int64   `json:"created_at"`
}

// CaptureResult summarizes one snapshot run across all groups
type CaptureResult struct {
	Captured int `json:"captured"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}
