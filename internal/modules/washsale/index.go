package washsale

import (
	"github.com/ballastd/ballast/internal/modules/ledger"
)

// Index is a point-in-time lookup of buy-blocked tickers. Entries already
// expired at build time are dropped, so a plain presence check suffices
// afterwards. The index is a value type with no I/O; one is built per
// rebalance run and discarded.
type Index map[string]int64

// NewIndex builds an index from stored restriction rows plus recent
// transactions. Transactions cover the gap between sweeps: a loss sale
// recorded five minutes ago blocks its ticker even though no restriction
// row exists yet.
func NewIndex(restrictions []Restriction, transactions []ledger.Transaction, now int64) Index {
	idx := make(Index)
	for _, r := range restrictions {
		idx.Block(r.Ticker, r.BlockedUntil, now)
	}
	for _, t := range transactions {
		if !t.IsLossSale() {
			continue
		}
		idx.Block(t.Ticker, BlockedUntil(t.ExecutedAt), now)
	}
	return idx
}

// Block records that ticker may not be bought until the given time. A later
// expiry wins over an earlier one; an already-passed expiry is ignored.
func (idx Index) Block(ticker string, until, now int64) {
	if until <= now {
		return
	}
	if existing, ok := idx[ticker]; !ok || until > existing {
		idx[ticker] = until
	}
}

// Blocked reports whether ticker may not be bought
func (idx Index) Blocked(ticker string) bool {
	_, ok := idx[ticker]
	return ok
}

// Tickers returns the blocked tickers in no particular order
func (idx Index) Tickers() []string {
	out := make([]string, 0, len(idx))
	for ticker := range idx {
		out = append(out, ticker)
	}
	return out
}
