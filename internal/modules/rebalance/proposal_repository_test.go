package rebalance

import (
	"testing"

	"github.com/ballastd/ballast/internal/domain"
	ballasttest "github.com/ballastd/ballast/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProposalRepo(t *testing.T) *ProposalRepository {
	t.Helper()
	db, cleanup := ballasttest.NewTestDB(t, "portfolio")
	t.Cleanup(cleanup)
	return NewProposalRepository(db.Conn(), zerolog.Nop())
}

func sampleProposal(id, groupID string, createdAt int64) *Proposal {
	return &Proposal{
		ID:      id,
		GroupID: groupID,
		Method:  domain.MethodAllocation,
		Trades: []Trade{
			{AccountID: "acct-1", Ticker: "VTI", Action: domain.SideBuy, Quantity: 5, EstPrice: 100, EstValue: 500, CanExecute: true},
			{AccountID: "acct-1", Ticker: domain.CashTicker, Action: domain.SideSell, Quantity: 500, EstPrice: 1, EstValue: 500, CanExecute: true},
		},
		Blocked: []Blocked{
			{Sleeve: "intl", Reason: "every buy candidate is wash-sale restricted or was sold this run"},
		},
		Summary:   Summary{TotalBuyValue: 500, CashRemaining: 100},
		CreatedAt: createdAt,
	}
}

func TestProposalRoundTrip(t *testing.T) {
	repo := newProposalRepo(t)

	p := sampleProposal("prop-1", "household", 1700000000)
	require.NoError(t, repo.Create(p))

	got, err := repo.GetByID("prop-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "household", got.GroupID)
	assert.Equal(t, domain.MethodAllocation, got.Method)
	assert.Equal(t, int64(1700000000), got.CreatedAt)
	require.Len(t, got.Trades, 2)
	assert.Equal(t, "VTI", got.Trades[0].Ticker)
	assert.Equal(t, 5.0, got.Trades[0].Quantity)
	require.Len(t, got.Blocked, 1)
	assert.Equal(t, "intl", got.Blocked[0].Sleeve)
	assert.InDelta(t, 500, got.Summary.TotalBuyValue, 1e-9)
	assert.InDelta(t, 100, got.Summary.CashRemaining, 1e-9)
}

func TestProposalGetMissing(t *testing.T) {
	repo := newProposalRepo(t)

	got, err := repo.GetByID("no-such-proposal")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestProposalCreateDefaults(t *testing.T) {
	repo := newProposalRepo(t)

	p := sampleProposal("prop-1", "household", 0)
	p.Blocked = nil
	require.NoError(t, repo.Create(p))
	assert.NotZero(t, p.CreatedAt, "created_at defaults to now")

	got, err := repo.GetByID("prop-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Empty(t, got.Blocked)
}

func TestProposalsByGroupNewestFirst(t *testing.T) {
	repo := newProposalRepo(t)

	require.NoError(t, repo.Create(sampleProposal("prop-old", "household", 1000)))
	require.NoError(t, repo.Create(sampleProposal("prop-new", "household", 2000)))
	require.NoError(t, repo.Create(sampleProposal("prop-other", "vacation-fund", 3000)))

	proposals, err := repo.GetByGroup("household", 0)
	require.NoError(t, err)
	require.Len(t, proposals, 2)
	assert.Equal(t, "prop-new", proposals[0].ID)
	assert.Equal(t, "prop-old", proposals[1].ID)

	limited, err := repo.GetByGroup("household", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "prop-new", limited[0].ID)
}

func TestProposalPurge(t *testing.T) {
	repo := newProposalRepo(t)

	require.NoError(t, repo.Create(sampleProposal("prop-old", "household", 1000)))
	require.NoError(t, repo.Create(sampleProposal("prop-new", "household", 2000)))

	purged, err := repo.PurgeOlderThan(1500)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	gone, err := repo.GetByID("prop-old")
	require.NoError(t, err)
	assert.Nil(t, gone)

	kept, err := repo.GetByID("prop-new")
	require.NoError(t, err)
	assert.NotNil(t, kept)
}
