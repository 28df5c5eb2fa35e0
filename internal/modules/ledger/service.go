package ledger

import (
	"fmt"

	"github.com/ballastd/ballast/internal/domain"
	"github.com/ballastd/ballast/internal/events"
	"github.com/ballastd/ballast/internal/modules/accounts"
	"github.com/ballastd/ballast/internal/modules/portfolio"
	"github.com/ballastd/ballast/internal/utils"
	"github.com/rs/zerolog"
)

// Service records executed trades. Recording spans two databases: the
// append-only row goes to ledger.db and, when the trade is applied, lots
// and cash move in portfolio.db. There is no cross-database transaction;
// holdings are validated and mutated first so the rare late failure
// leaves the ledger short rather than holdings doubled, and the error log
// carries enough context to reconcile by hand.
type Service struct {
	repo         *Repository
	lots         *portfolio.LotRepository
	accounts     *accounts.Repository
	eventManager *events.Manager
	log          zerolog.Logger
}

// NewService creates a new ledger service
func NewService(repo *Repository, lots *portfolio.LotRepository, accountsRepo *accounts.Repository, eventManager *events.Manager, log zerolog.Logger) *Service {
	return &Service{
		repo:         repo,
		lots:         lots,
		accounts:     accountsRepo,
		eventManager: eventManager,
		log:          log.With().Str("service", "ledger").Logger(),
	}
}

// RecordTrade validates and records an executed trade
func (s *Service) RecordTrade(req TradeRecord) (*Transaction, error) {
	ticker := utils.NormalizeTicker(req.Ticker)

	if req.AccountID == "" {
		return nil, fmt.Errorf("account_id is required")
	}
	if ticker == "" {
		return nil, fmt.Errorf("ticker is required")
	}
	if domain.IsCashTicker(ticker) {
		return nil, fmt.Errorf("cash movements are deposits/withdrawals, not trades")
	}
	if req.Side != domain.SideBuy && req.Side != domain.SideSell {
		return nil, fmt.Errorf("side must be BUY or SELL")
	}
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive")
	}
	if req.Price <= 0 {
		return nil, fmt.Errorf("price must be positive")
	}

	account, err := s.accounts.GetAccount(req.AccountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, fmt.Errorf("unknown account: %s", req.AccountID)
	}

	// Duplicate import: return the already-recorded transaction
	if req.ExternalID != "" {
		existing, err := s.repo.GetByExternalID(req.ExternalID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			s.log.Info().Str("external_id", req.ExternalID).Msg("Trade already recorded, skipping")
			return existing, nil
		}
	}

	apply := true
	if req.Apply != nil {
		apply = *req.Apply
	}

	var realizedCents *domain.Cents
	switch {
	case apply && req.Side == domain.SideSell:
		consumed, err := s.lots.ConsumeFIFO(req.AccountID, ticker, req.Quantity)
		if err != nil {
			return nil, err
		}
		realized := 0.0
		for _, c := range consumed {
			realized += c.Quantity * (req.Price - c.CostBasisPerShare)
		}
		cents := domain.DollarsToCents(realized)
		realizedCents = &cents

		if _, err := s.lots.AdjustCash(req.AccountID, domain.CashTicker, req.Quantity*req.Price); err != nil {
			s.logApplyFailure(req, "sell proceeds not credited", err)
			return nil, err
		}

	case apply && req.Side == domain.SideBuy:
		if _, err := s.lots.AdjustCash(req.AccountID, domain.CashTicker, -req.Quantity*req.Price); err != nil {
			return nil, err
		}
		if _, err := s.lots.Create(portfolio.LotCreate{
			AccountID:         req.AccountID,
			Ticker:            ticker,
			Quantity:          req.Quantity,
			CostBasisPerShare: req.Price,
			OpenedAt:          req.ExecutedAt,
		}); err != nil {
			s.logApplyFailure(req, "cash debited but lot not created", err)
			return nil, err
		}

	case !apply && req.RealizedGainLoss != nil:
		cents := domain.DollarsToCents(*req.RealizedGainLoss)
		realizedCents = &cents
	}

	_, recorded, err := s.repo.Insert(Transaction{
		AccountID:  req.AccountID,
		Ticker:     ticker,
		Side:       req.Side,
		Quantity:   req.Quantity,
		Price:      req.Price,
		ExternalID: req.ExternalID,
		ExecutedAt: req.ExecutedAt,
	}, realizedCents)
	if err != nil {
		if apply {
			s.logApplyFailure(req, "holdings mutated but ledger row missing", err)
		}
		return nil, err
	}

	if s.eventManager != nil {
		s.eventManager.EmitTyped(events.TradeRecorded, "ledger", &events.TradeRecordedData{
			AccountID:  req.AccountID,
			Ticker:     ticker,
			Side:       string(req.Side),
			Quantity:   req.Quantity,
			Price:      req.Price,
			ExternalID: req.ExternalID,
		})
		if apply {
			s.eventManager.EmitTyped(events.HoldingsChanged, "ledger", &events.HoldingsChangedData{
				AccountID: req.AccountID,
				Reason:    "trade_applied",
			})
		}
	}

	return recorded, nil
}

// GetTransaction returns a transaction by id, or nil
func (s *Service) GetTransaction(id int64) (*Transaction, error) {
	return s.repo.GetByID(id)
}

// ListTransactions returns filtered transactions, newest first
func (s *Service) ListTransactions(filter TransactionFilter) ([]Transaction, error) {
	return s.repo.List(filter)
}

func (s *Service) logApplyFailure(req TradeRecord, state string, err error) {
	s.log.Error().Err(err).
		Str("account_id", req.AccountID).
		Str("ticker", req.Ticker).
		Str("side", string(req.Side)).
		Float64("quantity", req.Quantity).
		Float64("price", req.Price).
		Str("external_id", req.ExternalID).
		Msg("Trade application inconsistent, manual reconciliation needed: " + state)
}
