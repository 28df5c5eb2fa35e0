package rebalance

import (
	"sort"

	"github.com/ballastd/ballast/internal/domain"
)

// buildSummary derives the display aggregates straight from the final trade
// list so the summary can never disagree with the table it sits above. Cash
// rows are excluded from buy/sell totals; capital gains come from matching
// sold quantity against the run's raw lots oldest-first.
func buildSummary(trades []Trade, st *runState) Summary {
	var s Summary

	for _, t := range trades {
		if t.IsCash() {
			continue
		}
		switch t.Action {
		case domain.SideBuy:
			s.TotalBuyValue += t.EstValue
		case domain.SideSell:
			s.TotalSellValue += t.EstValue
		}
	}
	s.CashRemaining = st.startingCash + s.TotalSellValue - s.TotalBuyValue

	s.LongTermGains, s.ShortTermGains = capitalGains(trades, st.input.Holdings, st.input.Now)

	s.PostTradeDeviation, s.AvgDeviationPct = postTradeDeviation(trades, st)

	return s
}

// capitalGains splits estimated realized gains on the proposal's SELLs into
// long-term (lot held over a year at sale) and short-term. Each sell
// consumes the trade's own account's lots first, then the rest of the
// group's, oldest first; a lot is never consumed twice across trades.
func capitalGains(trades []Trade, holdings []Holding, now int64) (longTerm, shortTerm float64) {
	type openLot struct {
		accountID string
		costBasis float64
		openedAt  int64
		remaining float64
	}

	lotsByTicker := make(map[string][]*openLot)
	for _, h := range holdings {
		if h.Quantity <= 0 || domain.IsCashTicker(h.Ticker) {
			continue
		}
		lotsByTicker[h.Ticker] = append(lotsByTicker[h.Ticker], &openLot{
			accountID: h.AccountID,
			costBasis: h.CostBasisPerShare,
			openedAt:  h.OpenedAt,
			remaining: h.Quantity,
		})
	}
	for _, lots := range lotsByTicker {
		sort.Slice(lots, func(i, j int) bool {
			if lots[i].openedAt != lots[j].openedAt {
				return lots[i].openedAt < lots[j].openedAt
			}
			return lots[i].accountID < lots[j].accountID
		})
	}

	const longTermSeconds = domain.HoldingPeriodDays * 24 * 3600

	for _, t := range trades {
		if t.Action != domain.SideSell || t.IsCash() {
			continue
		}
		lots := lotsByTicker[t.Ticker]
		remaining := t.Quantity

		// two passes: the trade's account first, then everyone else
		for _, ownAccount := range []bool{true, false} {
			for _, lot := range lots {
				if remaining <= 1e-9 {
					break
				}
				if lot.remaining <= 0 || (lot.accountID == t.AccountID) != ownAccount {
					continue
				}
				take := lot.remaining
				if take > remaining {
					take = remaining
				}
				gain := take * (t.EstPrice - lot.costBasis)
				if now-lot.openedAt > longTermSeconds {
					longTerm += gain
				} else {
					shortTerm += gain
				}
				lot.remaining -= take
				remaining -= take
			}
		}
	}

	return longTerm, shortTerm
}

// postTradeDeviation measures how far each non-cash sleeve would sit from
// target after the proposal executes, in dollars summed across sleeves and
// as the average portfolio-relative percentage per sleeve. Baselines are
// the pre-trade snapshots, so two-phase methods do not double count.
func postTradeDeviation(trades []Trade, st *runState) (totalDev, avgPct float64) {
	deltas := make(map[string]float64)
	for _, t := range trades {
		if t.IsCash() {
			continue
		}
		name, ok := st.sleeveOf[t.Ticker]
		if !ok {
			continue
		}
		if t.Action == domain.SideBuy {
			deltas[name] += t.EstValue
		} else {
			deltas[name] -= t.EstValue
		}
	}

	count := 0
	for name, snap := range st.baseline {
		if snap.Kind == SleeveCash {
			continue
		}
		count++
		post := snap.CurrentValue + deltas[name]
		dev := post - snap.TargetValue
		if dev < 0 {
			dev = -dev
		}
		totalDev += dev
	}

	if count > 0 && st.totalValue > 0 {
		avgPct = (totalDev / float64(count)) / st.totalValue * 100
	}
	return totalDev, avgPct
}
