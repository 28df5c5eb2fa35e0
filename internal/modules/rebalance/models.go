// Package rebalance computes trade proposals that move a group of accounts
// toward its allocation model. The engine is pure: every run works on an
// Input assembled by the service from the repositories, uses the caller's
// now for wash-sale checks, and performs no I/O, so identical inputs always
// produce identical trade lists.
package rebalance

import (
	"errors"

	"github.com/ballastd/ballast/internal/domain"
	"github.com/ballastd/ballast/internal/modules/ledger"
	"github.com/ballastd/ballast/internal/modules/washsale"
)

// Configuration errors. Everything else the engine encounters (missing
// prices, fully restricted sleeves, zero cash) degrades into flags on the
// result instead of failing the run.
var (
	ErrGroupNotFound   = errors.New("group not found")
	ErrNoModelAssigned = errors.New("group has no model assigned")
	ErrUnknownMethod   = errors.New("unknown rebalance method")
)

// Account identifies one member of the rebalancing group
type Account struct {
	ID   string
	Type domain.AccountType
}

// Holding is one raw tax lot as loaded from portfolio.db, cash lots included
type Holding struct {
	AccountID         string
	AccountType       domain.AccountType
	Ticker            string
	Quantity          float64
	CostBasisPerShare float64
	OpenedAt          int64
}

// MarketValue returns the lot's value at the given price
func (h Holding) MarketValue(price float64) float64 {
	return h.Quantity * price
}

// Member is one ranked security inside a sleeve definition
type Member struct {
	Ticker   string
	Rank     int
	IsActive bool
	IsLegacy bool
}

// SleeveSpec is one sleeve of the allocation model: a target weight in basis
// points and the ranked substitutable securities that may fill it
type SleeveSpec struct {
	Name      string
	TargetBPS int
	Members   []Member
}

// Input is the full snapshot one rebalance run computes over
type Input struct {
	GroupID      string
	Accounts     []Account
	Holdings     []Holding
	Sleeves      []SleeveSpec
	Prices       map[string]float64
	Restrictions []washsale.Restriction
	Transactions []ledger.Transaction
	Now          int64
}

// Request selects the method and its knobs
type Request struct {
	Method                   domain.Method `json:"method"`
	CashAmount               *float64      `json:"cash_amount,omitempty"`
	AllowOverinvestment      bool          `json:"allow_overinvestment,omitempty"`
	MaxOverinvestmentPercent *float64      `json:"max_overinvestment_percent,omitempty"`
}

// Trade is one proposed order. EstValue is always non-negative; Action
// carries the direction. Cash-ticker rows represent the net cash movement
// of the proposal and are excluded from user-facing buy/sell totals.
type Trade struct {
	AccountID      string           `json:"account_id"`
	Ticker         string           `json:"ticker"`
	Action         domain.TradeSide `json:"action"`
	Quantity       float64          `json:"qty"`
	EstPrice       float64          `json:"est_price"`
	EstValue       float64          `json:"est_value"`
	CanExecute     bool             `json:"can_execute"`
	BlockingReason string           `json:"blocking_reason,omitempty"`
}

// IsCash reports whether the trade is a net cash movement row
func (t Trade) IsCash() bool {
	return domain.IsCashTicker(t.Ticker)
}

// Blocked reports a sleeve or swap pair the engine had to skip
type Blocked struct {
	Sleeve string `json:"sleeve"`
	Ticker string `json:"ticker,omitempty"`
	Reason string `json:"reason"`
}

// Summary aggregates a finished trade list for display
type Summary struct {
	TotalBuyValue      float64 `json:"total_buy_value"`
	TotalSellValue     float64 `json:"total_sell_value"`
	CashRemaining      float64 `json:"cash_remaining"`
	LongTermGains      float64 `json:"long_term_gains"`
	ShortTermGains     float64 `json:"short_term_gains"`
	PostTradeDeviation float64 `json:"post_trade_deviation"`
	AvgDeviationPct    float64 `json:"avg_deviation_pct"`
}

// Result is the engine's output for one run
type Result struct {
	Trades  []Trade   `json:"trades"`
	Blocked []Blocked `json:"blocked,omitempty"`
	Summary Summary   `json:"summary"`
}

// MethodInfo describes one rebalance method for the API
type MethodInfo struct {
	Method      domain.Method `json:"method"`
	Description string        `json:"description"`
}

// Methods lists the available rebalance methods
func Methods() []MethodInfo {
	return []MethodInfo{
		{domain.MethodAllocation, "Full rebalance toward model targets: sell overweight sleeves, buy underweight ones"},
		{domain.MethodTLHSwap, "Harvest losing positions and rotate into ranked substitutes, value-neutral"},
		{domain.MethodTLHRebalance, "Harvest losses first, then rebalance the post-swap portfolio toward targets"},
		{domain.MethodInvestCash, "Deploy available cash into the most underweight sleeves, never selling"},
	}
}
