// Package domain provides core domain models and types shared across modules.
package domain

import "math"

// AccountType classifies an account's tax treatment
type AccountType string

const (
	AccountTaxable     AccountType = "TAXABLE"
	AccountTaxDeferred AccountType = "TAX_DEFERRED"
	AccountTaxExempt   AccountType = "TAX_EXEMPT"
)

// IsTaxable reports whether realized gains/losses in this account matter for taxes.
// Wash-sale tracking and loss harvesting only apply to taxable accounts.
func (t AccountType) IsTaxable() bool {
	return t == AccountTaxable
}

// Valid reports whether t is one of the known account types
func (t AccountType) Valid() bool {
	switch t {
	case AccountTaxable, AccountTaxDeferred, AccountTaxExempt:
		return true
	}
	return false
}

// TradeSide represents the direction of a transaction or proposed trade
type TradeSide string

const (
	SideBuy  TradeSide = "BUY"
	SideSell TradeSide = "SELL"
)

// Cash pseudo-tickers. Cash is held as lot rows priced at 1.0 so that account
// valuation and rebalancing see a single uniform holdings shape. CashTicker is
// broker-settled cash; ManualCashTicker is cash tracked by hand (e.g. a linked
// checking account earmarked for investing).
const (
	CashTicker       = "$$$"
	ManualCashTicker = "MCASH"
)

// IsCashTicker reports whether ticker is one of the cash pseudo-tickers
func IsCashTicker(ticker string) bool {
	return ticker == CashTicker || ticker == ManualCashTicker
}

// Cents is a monetary amount in integer cents. The ledger stores realized
// gain/loss in cents; everything else works in float64 dollars. Conversion
// happens exactly once, at the repository boundary, via these helpers.
type Cents int64

// Dollars converts cents to a float64 dollar amount
func (c Cents) Dollars() float64 {
	return float64(c) / 100.0
}

// DollarsToCents converts a dollar amount to cents, rounding half away from zero
func DollarsToCents(d float64) Cents {
	return Cents(math.Round(d * 100.0))
}

// Method selects a rebalancing strategy
type Method string

const (
	MethodAllocation   Method = "allocation"
	MethodTLHSwap      Method = "tlhSwap"
	MethodTLHRebalance Method = "tlhRebalance"
	MethodInvestCash   Method = "investCash"
)

// Valid reports whether m is one of the known rebalancing methods
func (m Method) Valid() bool {
	switch m {
	case MethodAllocation, MethodTLHSwap, MethodTLHRebalance, MethodInvestCash:
		return true
	}
	return false
}

// Methods lists every supported rebalancing method
func Methods() []Method {
	return []Method{MethodAllocation, MethodTLHSwap, MethodTLHRebalance, MethodInvestCash}
}

// HoldingPeriodDays is the cutoff for long-term capital-gains treatment:
// a lot held strictly longer than this many days sells long-term.
const HoldingPeriodDays = 365

// WashSaleWindowDays is the default repurchase-restriction window after a
// loss sale. Tunable through settings; this is the statutory default.
const WashSaleWindowDays = 30
