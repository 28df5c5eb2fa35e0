// Package washsale tracks buy restrictions created by loss sales. Selling at
// a loss and rebuying the same security within 30 days voids the tax benefit,
// so each lossy SELL blocks its ticker for the wash-sale window. Rows live in
// portfolio.db and are re-derived from the ledger by a nightly sweep; the
// rebalance engine additionally folds in the current run's own loss sales so
// a freshly harvested ticker is never rebought before the next sweep.
package washsale

import "github.com/ballastd/ballast/internal/domain"

// Restriction blocks buying a ticker until the wash-sale window ends
type Restriction struct {
	Ticker              string `json:"ticker"`
	BlockedUntil        int64  `json:"blocked_until"`
	Reason              string `json:"reason,omitempty"`
	SourceTransactionID *int64 `json:"source_transaction_id,omitempty"`
	CreatedAt           int64  `json:"created_at"`
	UpdatedAt           int64  `json:"updated_at"`
}

// SweepResult reports what a restriction sweep changed
type SweepResult struct {
	Derived int `json:"derived"`
	Purged  int `json:"purged"`
	Active  int `json:"active"`
}

// BlockedUntil returns the wash-sale expiry for a loss sale executed at soldAt
func BlockedUntil(soldAt int64) int64 {
	return soldAt + domain.WashSaleWindowDays*24*3600
}
