package testing

import (
	"time"

	"github.com/ballastd/ballast/internal/domain"
	"github.com/ballastd/ballast/internal/modules/accounts"
	"github.com/ballastd/ballast/internal/modules/allocation"
	"github.com/ballastd/ballast/internal/modules/portfolio"
	"github.com/ballastd/ballast/internal/modules/universe"
)

// SecurityFixtures returns a small investable universe with current prices:
// two substitutable total-market funds and a bond fund.
func SecurityFixtures() []universe.Security {
	now := time.Now().Unix()
	return []universe.Security{
		{
			Ticker:         "VTI",
			Name:           "Vanguard Total Stock Market ETF",
			Active:         true,
			CurrentPrice:   floatPtr(250.0),
			PriceUpdatedAt: &now,
		},
		{
			Ticker:         "ITOT",
			Name:           "iShares Core S&P Total US Stock Market ETF",
			Active:         true,
			CurrentPrice:   floatPtr(110.0),
			PriceUpdatedAt: &now,
		},
		{
			Ticker:         "BND",
			Name:           "Vanguard Total Bond Market ETF",
			Active:         true,
			CurrentPrice:   floatPtr(72.0),
			PriceUpdatedAt: &now,
		},
	}
}

// AccountFixtures returns one taxable and one tax-deferred account.
func AccountFixtures() []accounts.Account {
	return []accounts.Account{
		{ID: "brokerage", Name: "Taxable Brokerage", Type: domain.AccountTaxable},
		{ID: "ira", Name: "Rollover IRA", Type: domain.AccountTaxDeferred},
	}
}

// GroupFixture returns a rebalancing group for the fixture accounts.
// Membership is not included; pair with AccountFixtures and ReplaceMembers.
func GroupFixture() accounts.Group {
	return accounts.Group{ID: "household", Name: "Household"}
}

// ModelUpsertFixture returns a 60/40 model: an equity sleeve with two
// rank-ordered substitution partners and a single-member bond sleeve.
func ModelUpsertFixture() allocation.ModelUpsert {
	return allocation.ModelUpsert{
		Name: "Classic 60/40",
		Sleeves: []allocation.SleeveUpsert{
			{
				Name:      "US Equity",
				TargetBPS: 6000,
				Members: []allocation.MemberUpsert{
					{Ticker: "VTI", Rank: 1},
					{Ticker: "ITOT", Rank: 2},
				},
			},
			{
				Name:      "US Bonds",
				TargetBPS: 4000,
				Members: []allocation.MemberUpsert{
					{Ticker: "BND", Rank: 1},
				},
			},
		},
	}
}

// LotFixtures returns opening tax lots for an account: an appreciated
// equity lot, a bond lot, and a cash lot priced at 1.0.
func LotFixtures(accountID string) []portfolio.LotCreate {
	openedAt := time.Now().AddDate(-1, 0, 0).Unix()
	return []portfolio.LotCreate{
		{AccountID: accountID, Ticker: "VTI", Quantity: 40, CostBasisPerShare: 200.0, OpenedAt: openedAt},
		{AccountID: accountID, Ticker: "BND", Quantity: 50, CostBasisPerShare: 75.0, OpenedAt: openedAt},
		{AccountID: accountID, Ticker: "$$$", Quantity: 2500, CostBasisPerShare: 1.0, OpenedAt: openedAt},
	}
}

func floatPtr(v float64) *float64 {
	return &v
}
