package rebalance

import (
	"fmt"
	"sync"
	"time"

	"github.com/ballastd/ballast/internal/events"
	"github.com/ballastd/ballast/internal/modules/accounts"
	"github.com/ballastd/ballast/internal/modules/allocation"
	"github.com/ballastd/ballast/internal/modules/ledger"
	"github.com/ballastd/ballast/internal/modules/portfolio"
	"github.com/ballastd/ballast/internal/modules/settings"
	"github.com/ballastd/ballast/internal/modules/universe"
	"github.com/ballastd/ballast/internal/modules/washsale"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Service assembles engine inputs from the repositories, runs the engine,
// and persists the resulting proposals. Runs are serialized per group so a
// proposal never computes over holdings another run is mid-way through
// describing.
type Service struct {
	engine       *Engine
	groups       *accounts.Repository
	lots         *portfolio.LotRepository
	models       *allocation.Repository
	securities   *universe.SecurityRepository
	transactions *ledger.Repository
	restrictions *washsale.Repository
	proposals    *ProposalRepository
	settings     *settings.Service
	eventManager *events.Manager
	log          zerolog.Logger

	mu         sync.Mutex
	groupLocks map[string]*sync.Mutex
}

// NewService creates a new rebalance service
func NewService(
	engine *Engine,
	groups *accounts.Repository,
	lots *portfolio.LotRepository,
	models *allocation.Repository,
	securities *universe.SecurityRepository,
	transactions *ledger.Repository,
	restrictions *washsale.Repository,
	proposals *ProposalRepository,
	settingsService *settings.Service,
	eventManager *events.Manager,
	log zerolog.Logger,
) *Service {
	return &Service{
		engine:       engine,
		groups:       groups,
		lots:         lots,
		models:       models,
		securities:   securities,
		transactions: transactions,
		restrictions: restrictions,
		proposals:    proposals,
		settings:     settingsService,
		eventManager: eventManager,
		log:          log.With().Str("service", "rebalance").Logger(),
		groupLocks:   make(map[string]*sync.Mutex),
	}
}

// lockGroup serializes rebalance runs per group
func (s *Service) lockGroup(groupID string) func() {
	s.mu.Lock()
	l, ok := s.groupLocks[groupID]
	if !ok {
		l = &sync.Mutex{}
		s.groupLocks[groupID] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Rebalance runs the engine for a group and persists the proposal
func (s *Service) Rebalance(groupID string, req Request) (*Proposal, error) {
	unlock := s.lockGroup(groupID)
	defer unlock()

	start := time.Now()

	if !req.Method.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, req.Method)
	}

	input, err := s.assembleInput(groupID, start)
	if err != nil {
		return nil, err
	}

	if req.MaxOverinvestmentPercent == nil {
		pct := s.settings.MaxOverinvestmentPct()
		req.MaxOverinvestmentPercent = &pct
	}

	result, err := s.engine.Run(*input, req)
	if err != nil {
		return nil, err
	}

	proposal := &Proposal{
		ID:        uuid.New().String(),
		GroupID:   groupID,
		Method:    req.Method,
		Trades:    result.Trades,
		Blocked:   result.Blocked,
		Summary:   result.Summary,
		CreatedAt: start.Unix(),
	}
	if err := s.proposals.Create(proposal); err != nil {
		return nil, err
	}

	duration := time.Since(start)
	s.log.Info().
		Str("group_id", groupID).
		Str("method", string(req.Method)).
		Str("proposal_id", proposal.ID).
		Int("trades", len(proposal.Trades)).
		Int("blocked", len(proposal.Blocked)).
		Dur("duration_ms", duration).
		Msg("Rebalance proposal created")

	if s.eventManager != nil {
		s.eventManager.EmitTyped(events.ProposalCreated, "rebalance", &events.ProposalCreatedData{
			ProposalID:   proposal.ID,
			GroupID:      groupID,
			Method:       string(req.Method),
			TradeCount:   len(proposal.Trades),
			BlockedCount: len(proposal.Blocked),
		})
		s.eventManager.EmitTyped(events.RebalanceCompleted, "rebalance", &events.RebalanceCompletedData{
			ProposalID: proposal.ID,
			GroupID:    groupID,
			Method:     string(req.Method),
			TradeCount: len(proposal.Trades),
			DurationMS: float64(duration.Milliseconds()),
		})
	}

	return proposal, nil
}

// Drift reports the group's live deviation from its model
func (s *Service) Drift(groupID string) (*DriftReport, error) {
	input, err := s.assembleInput(groupID, time.Now())
	if err != nil {
		return nil, err
	}
	return ComputeDrift(*input, s.settings.DriftAlertThresholdPct()), nil
}

// GetProposal returns a stored proposal, or nil
func (s *Service) GetProposal(id string) (*Proposal, error) {
	return s.proposals.GetByID(id)
}

// ListProposals returns a group's stored proposals, newest first
func (s *Service) ListProposals(groupID string, limit int) ([]Proposal, error) {
	return s.proposals.GetByGroup(groupID, limit)
}

// assembleInput loads everything one run needs: the group's accounts and
// lots, the model's sleeves, prices, recent transactions for intra-window
// wash-sale exposure, and the stored restriction rows.
func (s *Service) assembleInput(groupID string, now time.Time) (*Input, error) {
	detail, err := s.groups.GetGroupDetail(groupID)
	if err != nil {
		return nil, err
	}
	if detail == nil {
		return nil, fmt.Errorf("%w: %s", ErrGroupNotFound, groupID)
	}
	if detail.ModelID == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoModelAssigned, groupID)
	}

	model, err := s.models.GetDetail(*detail.ModelID)
	if err != nil {
		return nil, err
	}
	if model == nil {
		// the model was deleted out from under the group
		return nil, fmt.Errorf("%w: %s (model %d no longer exists)", ErrNoModelAssigned, groupID, *detail.ModelID)
	}

	groupAccounts := make([]Account, 0, len(detail.Accounts))
	accountIDs := make([]string, 0, len(detail.Accounts))
	typeByAccount := make(map[string]Account, len(detail.Accounts))
	for _, a := range detail.Accounts {
		acct := Account{ID: a.ID, Type: a.Type}
		groupAccounts = append(groupAccounts, acct)
		accountIDs = append(accountIDs, a.ID)
		typeByAccount[a.ID] = acct
	}

	lots, err := s.lots.GetByAccounts(accountIDs)
	if err != nil {
		return nil, err
	}
	holdings := make([]Holding, 0, len(lots))
	for _, lot := range lots {
		holdings = append(holdings, Holding{
			AccountID:         lot.AccountID,
			AccountType:       typeByAccount[lot.AccountID].Type,
			Ticker:            lot.Ticker,
			Quantity:          lot.Quantity,
			CostBasisPerShare: lot.CostBasisPerShare,
			OpenedAt:          lot.OpenedAt,
		})
	}

	sleeves := make([]SleeveSpec, 0, len(model.Sleeves))
	for _, sd := range model.Sleeves {
		members := make([]Member, 0, len(sd.Members))
		for _, m := range sd.Members {
			members = append(members, Member{
				Ticker:   m.Ticker,
				Rank:     m.Rank,
				IsActive: m.IsActive,
				IsLegacy: m.IsLegacy,
			})
		}
		sleeves = append(sleeves, SleeveSpec{
			Name:      sd.Name,
			TargetBPS: sd.TargetBPS,
			Members:   members,
		})
	}

	prices, err := s.securities.GetPrices()
	if err != nil {
		return nil, err
	}

	windowSeconds := int64(s.settings.WashSaleWindowDays()) * 24 * 3600
	transactions, err := s.transactions.GetSince(now.Unix() - windowSeconds)
	if err != nil {
		return nil, err
	}

	restrictions, err := s.restrictions.GetActive(now.Unix())
	if err != nil {
		return nil, err
	}

	return &Input{
		GroupID:      groupID,
		Accounts:     groupAccounts,
		Holdings:     holdings,
		Sleeves:      sleeves,
		Prices:       prices,
		Restrictions: restrictions,
		Transactions: transactions,
		Now:          now.Unix(),
	}, nil
}
