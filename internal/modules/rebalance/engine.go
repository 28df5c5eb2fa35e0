package rebalance

import (
	"fmt"
	"math"
	"sort"

	"github.com/ballastd/ballast/internal/domain"
	"github.com/ballastd/ballast/internal/modules/washsale"
	"github.com/rs/zerolog"
)

// Engine computes trade proposals. It holds no state between runs; the
// logger is its only field.
type Engine struct {
	log zerolog.Logger
}

// NewEngine creates a new rebalance engine
func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{log: log.With().Str("component", "engine").Logger()}
}

// sleeveSnapshot preserves a sleeve's pre-trade values so the summary can
// measure post-trade deviation even after tlhRebalance mutates the working
// copy mid-run.
type sleeveSnapshot struct {
	Kind         SleeveKind
	TargetValue  float64
	CurrentValue float64
}

// runState is the working copy for one run
type runState struct {
	input        Input
	agg          aggregation
	sleeves      []*sleeve
	index        washsale.Index
	totalValue   float64
	startingCash float64
	cash         float64
	primary      string
	sold         map[string]bool
	missing      map[string]bool
	blocked      []Blocked
	sleeveOf     map[string]string
	memberOf     map[string]Member
	baseline     map[string]sleeveSnapshot
}

func newRunState(input Input) *runState {
	agg := aggregateHoldings(input.Holdings, input.Prices)
	total := agg.totalValue()
	sleeves := buildSleeves(input.Sleeves, agg, total)

	st := &runState{
		input:        input,
		agg:          agg,
		sleeves:      sleeves,
		index:        washsale.NewIndex(input.Restrictions, input.Transactions, input.Now),
		totalValue:   total,
		startingCash: agg.cashValue,
		cash:         agg.cashValue,
		primary:      primaryAccount(input.Accounts),
		sold:         make(map[string]bool),
		missing:      make(map[string]bool),
		sleeveOf:     make(map[string]string),
		memberOf:     make(map[string]Member),
		baseline:     make(map[string]sleeveSnapshot),
	}

	for _, ticker := range agg.missingPrices {
		st.missing[ticker] = true
	}

	for _, sl := range sleeves {
		st.baseline[sl.Name] = sleeveSnapshot{
			Kind:         sl.Kind,
			TargetValue:  sl.TargetValue,
			CurrentValue: sl.CurrentValue,
		}
		switch sl.Kind {
		case SleeveStandard:
			for _, m := range sl.Members {
				if _, taken := st.sleeveOf[m.Ticker]; !taken {
					st.sleeveOf[m.Ticker] = sl.Name
					st.memberOf[m.Ticker] = m
				}
			}
		case SleeveOrphan:
			for _, sec := range sl.Securities {
				st.sleeveOf[sec.Ticker] = sl.Name
			}
		}
	}

	return st
}

// priceFor resolves a price for any ticker, held or not, falling back to
// 1.0 and recording the gap.
func (st *runState) priceFor(ticker string) float64 {
	if sec, ok := st.agg.securities[ticker]; ok {
		return sec.Price
	}
	if p, ok := st.input.Prices[ticker]; ok && p > 0 {
		return p
	}
	st.missing[ticker] = true
	return 1.0
}

// accountFor picks the account a trade in ticker is booked to: the
// representative holder, or the primary account for unheld tickers.
func (st *runState) accountFor(ticker string) string {
	if sec, ok := st.agg.securities[ticker]; ok {
		return sec.AccountID
	}
	return st.primary
}

func (st *runState) isRestricted(ticker string) bool {
	return st.index.Blocked(ticker)
}

// tolerance is the at-target comparison slack: relative 1e-9, floored at
// absolute 1e-9, so float noise never produces oscillating one-share trades.
func tolerance(a, b float64) float64 {
	m := math.Max(math.Abs(a), math.Abs(b))
	if m < 1 {
		m = 1
	}
	return 1e-9 * m
}

// Run computes the trade proposal for one method over one input snapshot.
// Only configuration errors cross this boundary; data-quality degradations
// come back as blocked entries and trade flags.
func (e *Engine) Run(input Input, req Request) (*Result, error) {
	if !req.Method.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, req.Method)
	}

	st := newRunState(input)

	e.log.Debug().
		Str("group_id", input.GroupID).
		Str("method", string(req.Method)).
		Float64("total_value", st.totalValue).
		Float64("cash", st.cash).
		Int("restricted", len(st.index)).
		Msg("Rebalance run starting")

	var proposed []Trade
	switch req.Method {
	case domain.MethodAllocation:
		proposed = e.generateAllocation(st, req)
	case domain.MethodTLHSwap:
		proposed = e.generateTLHSwap(st)
	case domain.MethodTLHRebalance:
		swaps := e.generateTLHSwap(st)
		st.applyTrades(swaps)
		proposed = append(swaps, e.generateAllocation(st, req)...)
	case domain.MethodInvestCash:
		proposed = e.generateInvestCash(st, req)
	}

	trades := assemble(st, proposed)
	summary := buildSummary(trades, st)

	for _, ticker := range sortedKeys(st.missing) {
		st.blocked = append(st.blocked, Blocked{
			Ticker: ticker,
			Reason: "price unavailable, defaulted to 1.0",
		})
	}

	return &Result{Trades: trades, Blocked: st.blocked, Summary: summary}, nil
}

// generateAllocation is the full rebalance: raise cash from overweight
// sleeves first, then size buys for underweight ones, scaling buys down
// proportionally when they outrun available cash plus sell proceeds.
func (e *Engine) generateAllocation(st *runState, req Request) []Trade {
	var trades []Trade

	sellProceeds := 0.0
	for _, sl := range st.sleeves {
		if sl.Kind == SleeveCash {
			continue
		}
		excess := -sl.diff()
		if excess <= tolerance(sl.TargetValue, sl.CurrentValue) {
			continue
		}
		for _, sec := range sl.sellOrder() {
			if excess <= tolerance(sl.TargetValue, sl.CurrentValue) {
				break
			}
			if sec.MarketValue <= 0 || sec.Quantity <= 0 {
				continue
			}

			sellValue := math.Min(excess, sec.MarketValue)
			var qty float64
			if sellValue >= sec.MarketValue-tolerance(sellValue, sec.MarketValue) {
				// full liquidation sells the exact position, fractional or not
				qty = sec.Quantity
			} else {
				qty = math.Floor(sellValue / sec.Price)
			}
			if qty <= 0 {
				continue
			}

			value := qty * sec.Price
			trades = append(trades, Trade{
				AccountID:  sec.AccountID,
				Ticker:     sec.Ticker,
				Action:     domain.SideSell,
				Quantity:   qty,
				EstPrice:   sec.Price,
				EstValue:   value,
				CanExecute: true,
			})
			st.sold[sec.Ticker] = true
			excess -= value
			sellProceeds += value
		}
	}

	type buyNeed struct {
		member Member
		need   float64
		price  float64
	}
	var needs []buyNeed
	totalNeed := 0.0
	for _, sl := range standardSleeves(st.sleeves) {
		need := sl.diff()
		if need <= tolerance(sl.TargetValue, sl.CurrentValue) {
			continue
		}
		cand := sl.resolveBuyCandidate(st.isRestricted, st.sold)
		if cand == nil {
			st.blocked = append(st.blocked, Blocked{
				Sleeve: sl.Name,
				Reason: "every buy candidate is wash-sale restricted or was sold this run",
			})
			continue
		}
		needs = append(needs, buyNeed{member: *cand, need: need, price: st.priceFor(cand.Ticker)})
		totalNeed += need
	}

	available := st.cash + sellProceeds
	budget := available
	if req.AllowOverinvestment {
		pct := 5.0
		if req.MaxOverinvestmentPercent != nil {
			pct = *req.MaxOverinvestmentPercent
		}
		budget = available * (1 + pct/100)
	}

	scale := 1.0
	scaled := false
	if totalNeed > budget {
		if budget <= 0 {
			return trades
		}
		scale = budget / totalNeed
		scaled = true
	}

	for _, n := range needs {
		qty := math.Floor(n.need * scale / n.price)
		if qty <= 0 {
			continue
		}
		t := Trade{
			AccountID:  st.accountFor(n.member.Ticker),
			Ticker:     n.member.Ticker,
			Action:     domain.SideBuy,
			Quantity:   qty,
			EstPrice:   n.price,
			EstValue:   qty * n.price,
			CanExecute: true,
		}
		if scaled {
			t.BlockingReason = fmt.Sprintf("buys scaled to %.1f%% of need to fit available cash", scale*100)
		}
		trades = append(trades, t)
	}

	return trades
}

// generateTLHSwap harvests losing taxable positions: sell the full losing
// position, buy equal dollars of the best-ranked substitute in the same
// sleeve and account. Pairs with no buyable substitute are skipped whole so
// the portfolio's invested value never moves by more than floor rounding.
func (e *Engine) generateTLHSwap(st *runState) []Trade {
	// Every harvest target is also barred from being a substitute: buying a
	// ticker that is itself being sold at a loss would trip the wash-sale
	// rule this method exists to respect.
	harvestable := make(map[string]bool)
	for _, sl := range standardSleeves(st.sleeves) {
		for _, sec := range sl.Securities {
			for _, pos := range sec.Accounts {
				if pos.AccountType.IsTaxable() && pos.UnrealizedGain < 0 {
					harvestable[sec.Ticker] = true
				}
			}
		}
	}

	var trades []Trade
	for _, sl := range standardSleeves(st.sleeves) {
		secs := make([]*securityData, len(sl.Securities))
		copy(secs, sl.Securities)
		sort.Slice(secs, func(i, j int) bool {
			if secs[i].Rank != secs[j].Rank {
				return secs[i].Rank < secs[j].Rank
			}
			return secs[i].Ticker < secs[j].Ticker
		})

		for _, sec := range secs {
			for _, pos := range sec.Accounts {
				if !pos.AccountType.IsTaxable() || pos.UnrealizedGain >= 0 {
					continue
				}

				excluded := make(map[string]bool, len(st.sold)+len(harvestable))
				for t := range st.sold {
					excluded[t] = true
				}
				for t := range harvestable {
					excluded[t] = true
				}
				cand := sl.resolveBuyCandidate(st.isRestricted, excluded)
				if cand == nil {
					st.blocked = append(st.blocked, Blocked{
						Sleeve: sl.Name,
						Ticker: sec.Ticker,
						Reason: "no unrestricted substitute, harvest skipped",
					})
					continue
				}

				sellValue := pos.MarketValue
				subPrice := st.priceFor(cand.Ticker)
				buyQty := math.Floor(sellValue / subPrice)
				if buyQty <= 0 {
					st.blocked = append(st.blocked, Blocked{
						Sleeve: sl.Name,
						Ticker: sec.Ticker,
						Reason: fmt.Sprintf("substitute %s share price exceeds harvest value", cand.Ticker),
					})
					continue
				}

				trades = append(trades,
					Trade{
						AccountID:  pos.AccountID,
						Ticker:     sec.Ticker,
						Action:     domain.SideSell,
						Quantity:   pos.Quantity,
						EstPrice:   sec.Price,
						EstValue:   sellValue,
						CanExecute: true,
					},
					Trade{
						AccountID:  pos.AccountID,
						Ticker:     cand.Ticker,
						Action:     domain.SideBuy,
						Quantity:   buyQty,
						EstPrice:   subPrice,
						EstValue:   buyQty * subPrice,
						CanExecute: true,
					},
				)
				st.sold[sec.Ticker] = true
			}
		}
	}

	return trades
}

// generateInvestCash deploys cash into underweight sleeves, most underweight
// first, without ever selling. Zero available cash is an empty proposal, not
// an error.
func (e *Engine) generateInvestCash(st *runState, req Request) []Trade {
	available := st.cash
	if req.CashAmount != nil {
		available = math.Min(*req.CashAmount, st.cash)
	}
	if available <= 0 || st.totalValue <= 0 {
		return nil
	}

	type underweight struct {
		sl  *sleeve
		dev float64
	}
	var candidates []underweight
	for _, sl := range standardSleeves(st.sleeves) {
		if sl.diff() <= tolerance(sl.TargetValue, sl.CurrentValue) {
			continue
		}
		dev := sl.CurrentValue/st.totalValue - sl.TargetPct
		candidates = append(candidates, underweight{sl: sl, dev: dev})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].dev != candidates[j].dev {
			return candidates[i].dev < candidates[j].dev
		}
		return candidates[i].sl.Name < candidates[j].sl.Name
	})

	var trades []Trade
	remaining := available
	for _, c := range candidates {
		if remaining <= 0 {
			break
		}
		cand := c.sl.resolveBuyCandidate(st.isRestricted, st.sold)
		if cand == nil {
			st.blocked = append(st.blocked, Blocked{
				Sleeve: c.sl.Name,
				Reason: "every buy candidate is wash-sale restricted",
			})
			continue
		}

		deploy := math.Min(c.sl.diff(), remaining)
		price := st.priceFor(cand.Ticker)
		qty := math.Floor(deploy / price)
		if qty <= 0 {
			continue
		}

		value := qty * price
		trades = append(trades, Trade{
			AccountID:  st.accountFor(cand.Ticker),
			Ticker:     cand.Ticker,
			Action:     domain.SideBuy,
			Quantity:   qty,
			EstPrice:   price,
			EstValue:   value,
			CanExecute: true,
		})
		remaining -= value
	}

	return trades
}

// applyTrades mutates the working copy with already-generated trades so a
// second phase can rebalance the post-swap portfolio. Sleeve targets stay
// anchored to the original total value; swaps are value-neutral up to floor
// dust, which lands in cash.
func (st *runState) applyTrades(trades []Trade) {
	for _, t := range trades {
		switch t.Action {
		case domain.SideSell:
			st.cash += t.EstValue
			sec, ok := st.agg.securities[t.Ticker]
			if !ok {
				continue
			}
			sec.Quantity -= t.Quantity
			sec.MarketValue -= t.EstValue
			for i := range sec.Accounts {
				pos := &sec.Accounts[i]
				if pos.AccountID != t.AccountID || pos.Quantity <= 0 {
					continue
				}
				fraction := t.Quantity / pos.Quantity
				if fraction > 1 {
					fraction = 1
				}
				pos.UnrealizedGain *= 1 - fraction
				pos.Quantity -= t.Quantity
				pos.MarketValue -= t.EstValue
				break
			}
			if name, ok := st.sleeveOf[t.Ticker]; ok {
				st.adjustSleeve(name, -t.EstValue)
			}

		case domain.SideBuy:
			st.cash -= t.EstValue
			sec, ok := st.agg.securities[t.Ticker]
			if !ok {
				m := st.memberOf[t.Ticker]
				sec = &securityData{
					Ticker:    t.Ticker,
					Rank:      m.Rank,
					IsActive:  m.IsActive,
					IsLegacy:  m.IsLegacy,
					Price:     t.EstPrice,
					AccountID: t.AccountID,
				}
				st.agg.securities[t.Ticker] = sec
				if name, ok := st.sleeveOf[t.Ticker]; ok {
					for _, sl := range st.sleeves {
						if sl.Name == name {
							sl.Securities = append(sl.Securities, sec)
							break
						}
					}
				}
			}
			sec.Quantity += t.Quantity
			sec.MarketValue += t.EstValue
			merged := false
			for i := range sec.Accounts {
				if sec.Accounts[i].AccountID == t.AccountID {
					sec.Accounts[i].Quantity += t.Quantity
					sec.Accounts[i].MarketValue += t.EstValue
					merged = true
					break
				}
			}
			if !merged {
				accountType := domain.AccountTaxable
				for _, a := range st.input.Accounts {
					if a.ID == t.AccountID {
						accountType = a.Type
						break
					}
				}
				sec.Accounts = append(sec.Accounts, accountPosition{
					AccountID:   t.AccountID,
					AccountType: accountType,
					Quantity:    t.Quantity,
					MarketValue: t.EstValue,
				})
			}
			if name, ok := st.sleeveOf[t.Ticker]; ok {
				st.adjustSleeve(name, t.EstValue)
			}
		}
	}

	st.prune()
}

func (st *runState) adjustSleeve(name string, delta float64) {
	for _, sl := range st.sleeves {
		if sl.Name == name {
			sl.CurrentValue += delta
			return
		}
	}
}

// prune removes emptied positions so the second phase never tries to sell
// what the first already sold.
func (st *runState) prune() {
	const eps = 1e-9
	for ticker, sec := range st.agg.securities {
		kept := sec.Accounts[:0]
		for _, pos := range sec.Accounts {
			if pos.Quantity > eps {
				kept = append(kept, pos)
			}
		}
		sec.Accounts = kept
		if sec.Quantity <= eps {
			delete(st.agg.securities, ticker)
		}
	}
	for _, sl := range st.sleeves {
		kept := sl.Securities[:0]
		for _, sec := range sl.Securities {
			if sec.Quantity > eps {
				kept = append(kept, sec)
			}
		}
		sl.Securities = kept
	}
}

// assemble nets the proposed rows per (account, ticker), orders them for
// display, and appends the net cash movement row. Ordering is fixed: SELLs
// first, then BUYs, each by estimated value descending then ticker; the
// cash row, if any, always last.
func assemble(st *runState, proposed []Trade) []Trade {
	type key struct {
		account string
		ticker  string
	}
	type entry struct {
		key      key
		netQty   float64
		price    float64
		can      bool
		blocking string
	}

	entries := make(map[key]*entry)
	var order []key
	for _, t := range proposed {
		if t.Quantity <= 0 {
			continue
		}
		k := key{t.AccountID, t.Ticker}
		en, ok := entries[k]
		if !ok {
			en = &entry{key: k, price: t.EstPrice, can: true}
			entries[k] = en
			order = append(order, k)
		}
		if t.Action == domain.SideBuy {
			en.netQty += t.Quantity
		} else {
			en.netQty -= t.Quantity
		}
		if !t.CanExecute {
			en.can = false
		}
		if en.blocking == "" {
			en.blocking = t.BlockingReason
		}
	}

	trades := make([]Trade, 0, len(order)+1)
	for _, k := range order {
		en := entries[k]
		if math.Abs(en.netQty) <= 1e-9 {
			continue
		}
		action := domain.SideBuy
		qty := en.netQty
		if qty < 0 {
			action = domain.SideSell
			qty = -qty
		}
		trades = append(trades, Trade{
			AccountID:      k.account,
			Ticker:         k.ticker,
			Action:         action,
			Quantity:       qty,
			EstPrice:       en.price,
			EstValue:       qty * en.price,
			CanExecute:     en.can,
			BlockingReason: en.blocking,
		})
	}

	actionOrder := func(a domain.TradeSide) int {
		if a == domain.SideSell {
			return 0
		}
		return 1
	}
	sort.SliceStable(trades, func(i, j int) bool {
		if actionOrder(trades[i].Action) != actionOrder(trades[j].Action) {
			return actionOrder(trades[i].Action) < actionOrder(trades[j].Action)
		}
		if trades[i].EstValue != trades[j].EstValue {
			return trades[i].EstValue > trades[j].EstValue
		}
		return trades[i].Ticker < trades[j].Ticker
	})

	sellTotal, buyTotal := 0.0, 0.0
	for _, t := range trades {
		if t.Action == domain.SideSell {
			sellTotal += t.EstValue
		} else {
			buyTotal += t.EstValue
		}
	}
	delta := sellTotal - buyTotal
	if math.Abs(delta) > 1e-9 {
		action := domain.SideBuy
		if delta < 0 {
			action = domain.SideSell
		}
		trades = append(trades, Trade{
			AccountID:  st.primary,
			Ticker:     domain.CashTicker,
			Action:     action,
			Quantity:   math.Abs(delta),
			EstPrice:   1.0,
			EstValue:   math.Abs(delta),
			CanExecute: true,
		})
	}

	return trades
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
