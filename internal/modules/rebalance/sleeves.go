package rebalance

import (
	"sort"
)

// SleeveKind discriminates real model sleeves from the two synthetic ones
// every run carries. The wire names "cash" and "orphan-securities" exist only
// at the JSON boundary; engine logic switches on Kind, never on name.
type SleeveKind int

const (
	SleeveStandard SleeveKind = iota
	SleeveCash
	SleeveOrphan
)

const (
	cashSleeveName   = "cash"
	orphanSleeveName = "orphan-securities"

	// orphanRank sorts orphans ahead of every ranked member when choosing
	// what to sell.
	orphanRank = 999
)

// sleeve is the engine's working bucket: a target value plus the held rows
// claimed by it. Members lists the full definition (including unheld ones,
// which are the buy candidates); Securities only what is actually held.
type sleeve struct {
	Kind         SleeveKind
	Name         string
	TargetBPS    int
	TargetPct    float64
	TargetValue  float64
	CurrentValue float64
	Members      []Member
	Securities   []*securityData
}

// diff returns how far the sleeve is from target; positive means underweight
func (s *sleeve) diff() float64 {
	return s.TargetValue - s.CurrentValue
}

// buildSleeves constructs the run's sleeves: one per model sleeve plus the
// synthetic cash and orphan sleeves, both always present. Targets distribute
// evenly across active non-legacy members; legacy and inactive members keep
// zero target but still surface their held quantity to be sold down. A
// ticker listed in two sleeves is claimed by the first in name order.
func buildSleeves(specs []SleeveSpec, agg aggregation, totalValue float64) []*sleeve {
	ordered := make([]SleeveSpec, len(specs))
	copy(ordered, specs)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Name < ordered[j].Name })

	claimed := make(map[string]bool)
	sleeves := make([]*sleeve, 0, len(ordered)+2)

	for _, spec := range ordered {
		members := make([]Member, len(spec.Members))
		copy(members, spec.Members)
		sort.Slice(members, func(i, j int) bool { return members[i].Rank < members[j].Rank })

		sl := &sleeve{
			Kind:      SleeveStandard,
			Name:      spec.Name,
			TargetBPS: spec.TargetBPS,
			TargetPct: float64(spec.TargetBPS) / 10000.0,
			Members:   members,
		}
		sl.TargetValue = totalValue * sl.TargetPct

		activeCount := 0
		for _, m := range members {
			if m.IsActive && !m.IsLegacy {
				activeCount++
			}
		}
		memberPct := 0.0
		if activeCount > 0 {
			memberPct = sl.TargetPct / float64(activeCount)
		}

		for _, m := range members {
			if claimed[m.Ticker] {
				continue
			}
			claimed[m.Ticker] = true

			sec, held := agg.securities[m.Ticker]
			if !held {
				continue
			}
			sec.Rank = m.Rank
			sec.IsActive = m.IsActive
			sec.IsLegacy = m.IsLegacy
			if m.IsActive && !m.IsLegacy {
				sec.TargetPct = memberPct
			}
			sl.Securities = append(sl.Securities, sec)
			sl.CurrentValue += sec.MarketValue
		}

		sleeves = append(sleeves, sl)
	}

	orphans := &sleeve{Kind: SleeveOrphan, Name: orphanSleeveName}
	for _, ticker := range agg.tickers() {
		if claimed[ticker] {
			continue
		}
		sec := agg.securities[ticker]
		sec.Rank = orphanRank
		sec.IsActive = false
		orphans.Securities = append(orphans.Securities, sec)
		orphans.CurrentValue += sec.MarketValue
	}
	sleeves = append(sleeves, orphans)

	sleeves = append(sleeves, &sleeve{
		Kind:         SleeveCash,
		Name:         cashSleeveName,
		CurrentValue: agg.cashValue,
	})

	return sleeves
}

// standardSleeves filters to the model's real sleeves, preserving name order
func standardSleeves(sleeves []*sleeve) []*sleeve {
	out := make([]*sleeve, 0, len(sleeves))
	for _, sl := range sleeves {
		if sl.Kind == SleeveStandard {
			out = append(out, sl)
		}
	}
	return out
}

// sellOrder returns the sleeve's held rows in sell-preference order: least
// preferred rank first, then biggest losses, then ticker for determinism.
func (s *sleeve) sellOrder() []*securityData {
	out := make([]*securityData, len(s.Securities))
	copy(out, s.Securities)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rank != out[j].Rank {
			return out[i].Rank > out[j].Rank
		}
		if out[i].UnrealizedGain != out[j].UnrealizedGain {
			return out[i].UnrealizedGain < out[j].UnrealizedGain
		}
		return out[i].Ticker < out[j].Ticker
	})
	return out
}

// resolveBuyCandidate walks the sleeve's members in ascending rank and
// returns the first that may be bought: active, not legacy, not wash-sale
// blocked, not excluded by this run. nil means the sleeve is blocked for
// buying this round; callers report that, they do not error.
func (s *sleeve) resolveBuyCandidate(blocked func(ticker string) bool, excluded map[string]bool) *Member {
	for i := range s.Members {
		m := &s.Members[i]
		if !m.IsActive || m.IsLegacy {
			continue
		}
		if excluded[m.Ticker] || blocked(m.Ticker) {
			continue
		}
		return m
	}
	return nil
}
