// Package ledger is the append-only trade history in ledger.db. Rows are
// never updated or deleted; realized gain/loss is stored in integer cents
// and converted to dollars exactly once, in the repository.
package ledger

import "github.com/ballastd/ballast/internal/domain"

// Transaction is one executed trade
type Transaction struct {
	ID               int64            `json:"id"`
	AccountID        string           `json:"account_id"`
	Ticker           string           `json:"ticker"`
	Side             domain.TradeSide `json:"side"`
	Quantity         float64          `json:"quantity"`
	Price            float64          `json:"price"`
	RealizedGainLoss *float64         `json:"realized_gain_loss,omitempty"` // dollars; SELLs only
	ExternalID       string           `json:"external_id,omitempty"`
	ExecutedAt       int64            `json:"executed_at"`
	CreatedAt        int64            `json:"created_at"`
}

// Value returns the trade's gross dollar value
func (t Transaction) Value() float64 {
	return t.Quantity * t.Price
}

// IsLossSale reports whether this is a SELL that realized a loss
func (t Transaction) IsLossSale() bool {
	return t.Side == domain.SideSell && t.RealizedGainLoss != nil && *t.RealizedGainLoss < 0
}

// TradeRecord is a trade recording request. ExternalID is the broker's own
// identifier; re-recording the same ExternalID is a no-op. Apply defaults
// to true: the trade mutates lots and cash and realized gain/loss comes
// from FIFO lot matching. Importers backfilling history set Apply to false
// and supply RealizedGainLoss themselves.
type TradeRecord struct {
	AccountID        string           `json:"account_id"`
	Ticker           string           `json:"ticker"`
	Side             domain.TradeSide `json:"side"`
	Quantity         float64          `json:"quantity"`
	Price            float64          `json:"price"`
	ExternalID       string           `json:"external_id,omitempty"`
	ExecutedAt       int64            `json:"executed_at,omitempty"` // defaults to now
	Apply            *bool            `json:"apply,omitempty"`
	RealizedGainLoss *float64         `json:"realized_gain_loss,omitempty"` // backfill only
}

// TransactionFilter narrows ledger queries
type TransactionFilter struct {
	AccountID string
	Ticker    string
	Since     int64
	Limit     int
}
