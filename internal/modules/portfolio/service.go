package portfolio

import (
	"fmt"
	"sort"

	"github.com/ballastd/ballast/internal/domain"
	"github.com/ballastd/ballast/internal/events"
	"github.com/ballastd/ballast/internal/modules/accounts"
	"github.com/rs/zerolog"
)

// PriceProvider supplies current prices per ticker. Defined here to avoid
// an import cycle with universe; universe.SecurityRepository satisfies it.
type PriceProvider interface {
	GetPrices() (map[string]float64, error)
}

// Service orchestrates holdings operations: lot maintenance, cash
// movements, and priced group valuation.
type Service struct {
	lots         *LotRepository
	accounts     *accounts.Repository
	prices       PriceProvider
	eventManager *events.Manager
	log          zerolog.Logger
}

// NewService creates a new portfolio service
func NewService(lots *LotRepository, accountsRepo *accounts.Repository, prices PriceProvider, eventManager *events.Manager, log zerolog.Logger) *Service {
	return &Service{
		lots:         lots,
		accounts:     accountsRepo,
		prices:       prices,
		eventManager: eventManager,
		log:          log.With().Str("service", "portfolio").Logger(),
	}
}

// AddLot records a new tax lot
func (s *Service) AddLot(req LotCreate) (*Lot, error) {
	if req.AccountID == "" {
		return nil, fmt.Errorf("account_id is required")
	}
	if req.Ticker == "" {
		return nil, fmt.Errorf("ticker is required")
	}
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive")
	}
	if req.CostBasisPerShare < 0 {
		return nil, fmt.Errorf("cost basis cannot be negative")
	}

	account, err := s.accounts.GetAccount(req.AccountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, fmt.Errorf("unknown account: %s", req.AccountID)
	}

	lot, err := s.lots.Create(req)
	if err != nil {
		return nil, err
	}

	s.emitHoldingsChanged(req.AccountID, "lot_added")
	return lot, nil
}

// RemoveLot deletes a tax lot
func (s *Service) RemoveLot(id int64) error {
	lot, err := s.lots.GetByID(id)
	if err != nil {
		return err
	}
	if lot == nil {
		return fmt.Errorf("lot not found: %d", id)
	}

	if err := s.lots.Delete(id); err != nil {
		return err
	}

	s.emitHoldingsChanged(lot.AccountID, "lot_removed")
	return nil
}

// GetAccountLots returns an account's raw lots
func (s *Service) GetAccountLots(accountID string) ([]Lot, error) {
	return s.lots.GetByAccount(accountID)
}

// Deposit adds cash to an account. Ticker defaults to broker-settled cash.
func (s *Service) Deposit(accountID string, req CashUpdate) (float64, error) {
	if req.Amount <= 0 {
		return 0, fmt.Errorf("deposit amount must be positive")
	}
	return s.adjustCash(accountID, req.Ticker, req.Amount, "deposit")
}

// Withdraw removes cash from an account
func (s *Service) Withdraw(accountID string, req CashUpdate) (float64, error) {
	if req.Amount <= 0 {
		return 0, fmt.Errorf("withdrawal amount must be positive")
	}
	return s.adjustCash(accountID, req.Ticker, -req.Amount, "withdrawal")
}

func (s *Service) adjustCash(accountID, ticker string, delta float64, reason string) (float64, error) {
	account, err := s.accounts.GetAccount(accountID)
	if err != nil {
		return 0, err
	}
	if account == nil {
		return 0, fmt.Errorf("unknown account: %s", accountID)
	}

	if ticker == "" {
		ticker = domain.CashTicker
	}

	balance, err := s.lots.AdjustCash(accountID, ticker, delta)
	if err != nil {
		return 0, err
	}

	s.emitHoldingsChanged(accountID, reason)
	return balance, nil
}

// GetCashBalance returns an account's total cash
func (s *Service) GetCashBalance(accountID string) (float64, error) {
	return s.lots.GetCashBalance(accountID)
}

// GetGroupValuation prices a rebalancing group's holdings. Unpriced
// securities are valued at 1.0 and reported in MissingPrices.
func (s *Service) GetGroupValuation(groupID string) (*GroupValuation, error) {
	group, err := s.accounts.GetGroupDetail(groupID)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, fmt.Errorf("group not found: %s", groupID)
	}

	accountIDs := make([]string, len(group.Accounts))
	for i, a := range group.Accounts {
		accountIDs[i] = a.ID
	}

	lots, err := s.lots.GetByAccounts(accountIDs)
	if err != nil {
		return nil, err
	}

	prices := map[string]float64{}
	if s.prices != nil {
		prices, err = s.prices.GetPrices()
		if err != nil {
			return nil, err
		}
	}

	valuation := &GroupValuation{GroupID: groupID}
	perAccount := make(map[string]*AccountValuation)
	for _, a := range group.Accounts {
		perAccount[a.ID] = &AccountValuation{AccountID: a.ID, AccountType: a.Type}
	}

	type positionKey struct {
		accountID string
		ticker    string
	}
	positions := make(map[positionKey]*Position)
	missing := make(map[string]bool)

	for _, lot := range lots {
		av := perAccount[lot.AccountID]
		if av == nil {
			continue
		}

		if domain.IsCashTicker(lot.Ticker) {
			av.CashValue += lot.Quantity
			av.TotalValue += lot.Quantity
			valuation.CashValue += lot.Quantity
			valuation.TotalValue += lot.Quantity
			continue
		}

		price, ok := prices[lot.Ticker]
		if !ok {
			price = 1.0
			missing[lot.Ticker] = true
		}

		key := positionKey{lot.AccountID, lot.Ticker}
		pos := positions[key]
		if pos == nil {
			pos = &Position{AccountID: lot.AccountID, Ticker: lot.Ticker}
			positions[key] = pos
		}

		// Weighted-average cost across the lots
		totalCost := pos.AvgCostBasis*pos.Quantity + lot.CostBasis()
		pos.Quantity += lot.Quantity
		if pos.Quantity > 0 {
			pos.AvgCostBasis = totalCost / pos.Quantity
		}
		pos.LotCount++
		p := price
		pos.Price = &p

		av.TotalValue += lot.Quantity * price
		valuation.TotalValue += lot.Quantity * price
	}

	for _, pos := range positions {
		if pos.Price != nil {
			marketValue := pos.Quantity * *pos.Price
			unrealized := pos.Quantity * (*pos.Price - pos.AvgCostBasis)
			pos.MarketValue = &marketValue
			pos.UnrealizedGain = &unrealized
		}
		valuation.Positions = append(valuation.Positions, *pos)
	}
	sort.Slice(valuation.Positions, func(i, j int) bool {
		if valuation.Positions[i].AccountID != valuation.Positions[j].AccountID {
			return valuation.Positions[i].AccountID < valuation.Positions[j].AccountID
		}
		return valuation.Positions[i].Ticker < valuation.Positions[j].Ticker
	})

	for _, a := range group.Accounts {
		valuation.Accounts = append(valuation.Accounts, *perAccount[a.ID])
	}

	for ticker := range missing {
		valuation.MissingPrices = append(valuation.MissingPrices, ticker)
	}
	sort.Strings(valuation.MissingPrices)

	return valuation, nil
}

func (s *Service) emitHoldingsChanged(accountID, reason string) {
	if s.eventManager == nil {
		return
	}
	s.eventManager.EmitTyped(events.HoldingsChanged, "portfolio", &events.HoldingsChangedData{
		AccountID: accountID,
		Reason:    reason,
	})
}
