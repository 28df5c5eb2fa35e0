// Package portfolio manages tax-lot holdings. Every position is a set of
// lots (quantity, cost basis, acquisition date); cash is held as lots of
// the cash pseudo-tickers priced at 1.0 so valuation reads one table.
package portfolio

import "github.com/ballastd/ballast/internal/domain"

// Lot is a single tax lot in portfolio.db
type Lot struct {
	ID                int64   `json:"id"`
	AccountID         string  `json:"account_id"`
	Ticker            string  `json:"ticker"`
	Quantity          float64 `json:"quantity"`
	CostBasisPerShare float64 `json:"cost_basis_per_share"`
	OpenedAt          int64   `json:"opened_at"`
	CreatedAt         int64   `json:"created_at"`
	UpdatedAt         int64   `json:"updated_at"`
}

// CostBasis returns the lot's total cost basis
func (l Lot) CostBasis() float64 {
	return l.Quantity * l.CostBasisPerShare
}

// LotCreate is a lot insert request
type LotCreate struct {
	AccountID         string  `json:"account_id"`
	Ticker            string  `json:"ticker"`
	Quantity          float64 `json:"quantity"`
	CostBasisPerShare float64 `json:"cost_basis_per_share"`
	OpenedAt          int64   `json:"opened_at,omitempty"` // defaults to now
}

// ConsumedLot records a slice taken out of a lot by a FIFO sale
type ConsumedLot struct {
	LotID             int64
	Quantity          float64
	CostBasisPerShare float64
	OpenedAt          int64
}

// Position is the aggregated per-account, per-ticker view of lots
type Position struct {
	AccountID    string  `json:"account_id"`
	Ticker       string  `json:"ticker"`
	Quantity     float64 `json:"quantity"`
	AvgCostBasis float64 `json:"avg_cost_basis"`
	LotCount     int     `json:"lot_count"`
	// Filled in by the service when prices are available
	Price          *float64 `json:"price,omitempty"`
	MarketValue    *float64 `json:"market_value,omitempty"`
	UnrealizedGain *float64 `json:"unrealized_gain,omitempty"`
}

// AccountValuation is one account's contribution to a group valuation
type AccountValuation struct {
	AccountID   string             `json:"account_id"`
	AccountType domain.AccountType `json:"account_type"`
	TotalValue  float64            `json:"total_value"`
	CashValue   float64            `json:"cash_value"`
}

// GroupValuation is the priced view of a rebalancing group's holdings
type GroupValuation struct {
	GroupID       string             `json:"group_id"`
	TotalValue    float64            `json:"total_value"`
	CashValue     float64            `json:"cash_value"`
	Accounts      []AccountValuation `json:"accounts"`
	Positions     []Position         `json:"positions"`
	MissingPrices []string           `json:"missing_prices,omitempty"`
}

// CashUpdate is a cash deposit or withdrawal request. Ticker defaults to
// the broker-settled cash pseudo-ticker.
type CashUpdate struct {
	Amount float64 `json:"amount"`
	Ticker string  `json:"ticker,omitempty"`
}
