package rebalance

import (
	"sort"

	"github.com/ballastd/ballast/internal/domain"
)

// accountPosition is one account's aggregated stake in a ticker. Lots sum
// with average cost; unrealized gain is computed per lot before averaging so
// per-account tax character survives the aggregation.
type accountPosition struct {
	AccountID      string
	AccountType    domain.AccountType
	Quantity       float64
	AvgCost        float64
	MarketValue    float64
	UnrealizedGain float64
}

// securityData is the engine's working row: one held or buyable ticker with
// a representative account for trade booking. Rank and TargetPct are filled
// in by sleeve construction; aggregation only knows holdings and prices.
type securityData struct {
	Ticker         string
	Rank           int
	TargetPct      float64
	Price          float64
	Quantity       float64
	MarketValue    float64
	UnrealizedGain float64
	AccountID      string
	IsTaxable      bool
	IsActive       bool
	IsLegacy       bool
	Accounts       []accountPosition
}

// aggregation is the normalized holdings picture for one run
type aggregation struct {
	securities    map[string]*securityData
	cashValue     float64
	missingPrices []string
}

// totalValue returns all non-cash market value plus cash
func (a aggregation) totalValue() float64 {
	total := a.cashValue
	for _, sec := range a.securities {
		total += sec.MarketValue
	}
	return total
}

// tickers returns the aggregated tickers in sorted order
func (a aggregation) tickers() []string {
	out := make([]string, 0, len(a.securities))
	for ticker := range a.securities {
		out = append(out, ticker)
	}
	sort.Strings(out)
	return out
}

// aggregateHoldings folds raw lots into per-ticker rows. Lots with zero or
// negative quantity are dropped silently (fully sold positions); a ticker
// with no resolvable price falls back to 1.0 and is reported; cash tickers
// are segregated into a single cash value, always priced at 1.0.
func aggregateHoldings(holdings []Holding, prices map[string]float64) aggregation {
	agg := aggregation{securities: make(map[string]*securityData)}

	type positionKey struct {
		ticker  string
		account string
	}
	positions := make(map[positionKey]*accountPosition)
	var costTotals = make(map[positionKey]float64)
	missing := make(map[string]bool)

	priceFor := func(ticker string) float64 {
		if p, ok := prices[ticker]; ok && p > 0 {
			return p
		}
		missing[ticker] = true
		return 1.0
	}

	for _, h := range holdings {
		if h.Quantity <= 0 {
			continue
		}
		if domain.IsCashTicker(h.Ticker) {
			agg.cashValue += h.Quantity
			continue
		}

		price := priceFor(h.Ticker)
		key := positionKey{h.Ticker, h.AccountID}
		pos, ok := positions[key]
		if !ok {
			pos = &accountPosition{AccountID: h.AccountID, AccountType: h.AccountType}
			positions[key] = pos
		}
		pos.Quantity += h.Quantity
		pos.MarketValue += h.Quantity * price
		pos.UnrealizedGain += h.Quantity * (price - h.CostBasisPerShare)
		costTotals[key] += h.Quantity * h.CostBasisPerShare
	}

	for key, pos := range positions {
		if pos.Quantity <= 0 {
			continue
		}
		pos.AvgCost = costTotals[key] / pos.Quantity

		sec, ok := agg.securities[key.ticker]
		if !ok {
			sec = &securityData{Ticker: key.ticker, Price: priceFor(key.ticker)}
			agg.securities[key.ticker] = sec
		}
		sec.Quantity += pos.Quantity
		sec.MarketValue += pos.MarketValue
		sec.UnrealizedGain += pos.UnrealizedGain
		sec.Accounts = append(sec.Accounts, *pos)
	}

	// Representative account = largest stake, ties broken by smallest id,
	// so trade booking is deterministic across runs.
	for _, sec := range agg.securities {
		sort.Slice(sec.Accounts, func(i, j int) bool {
			if sec.Accounts[i].MarketValue != sec.Accounts[j].MarketValue {
				return sec.Accounts[i].MarketValue > sec.Accounts[j].MarketValue
			}
			return sec.Accounts[i].AccountID < sec.Accounts[j].AccountID
		})
		sec.AccountID = sec.Accounts[0].AccountID
		sec.IsTaxable = sec.Accounts[0].AccountType.IsTaxable()
	}

	for ticker := range missing {
		agg.missingPrices = append(agg.missingPrices, ticker)
	}
	sort.Strings(agg.missingPrices)

	return agg
}

// primaryAccount returns the account new positions are booked to when no
// account holds the ticker yet: the lexicographically smallest account id.
func primaryAccount(accounts []Account) string {
	if len(accounts) == 0 {
		return ""
	}
	primary := accounts[0].ID
	for _, a := range accounts[1:] {
		if a.ID < primary {
			primary = a.ID
		}
	}
	return primary
}
