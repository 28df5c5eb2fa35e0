package universe

import (
	"fmt"
	"time"

	"github.com/ballastd/ballast/internal/domain"
	"github.com/ballastd/ballast/internal/events"
	"github.com/ballastd/ballast/internal/utils"
	"github.com/rs/zerolog"
)

// SleeveMembershipChecker reports whether a ticker is referenced by any
// allocation model. Satisfied by the allocation repository.
type SleeveMembershipChecker interface {
	TickerInUse(ticker string) (bool, error)
}

// Service provides universe business logic: security maintenance and
// price ingestion.
type Service struct {
	repo         *SecurityRepository
	sleeves      SleeveMembershipChecker
	eventManager *events.Manager
	log          zerolog.Logger
}

// NewService creates a new universe service
func NewService(repo *SecurityRepository, sleeves SleeveMembershipChecker, eventManager *events.Manager, log zerolog.Logger) *Service {
	return &Service{
		repo:         repo,
		sleeves:      sleeves,
		eventManager: eventManager,
		log:          log.With().Str("service", "universe").Logger(),
	}
}

// GetSecurity returns a security by ticker, or nil if not found
func (s *Service) GetSecurity(ticker string) (*Security, error) {
	return s.repo.GetByTicker(ticker)
}

// ListSecurities returns all securities, optionally only active ones
func (s *Service) ListSecurities(activeOnly bool) ([]Security, error) {
	if activeOnly {
		return s.repo.GetAllActive()
	}
	return s.repo.GetAll()
}

// UpsertSecurity validates and stores a security
func (s *Service) UpsertSecurity(req SecurityUpsert) (*Security, error) {
	ticker := utils.NormalizeTicker(req.Ticker)
	if ticker == "" {
		return nil, fmt.Errorf("ticker is required")
	}
	if domain.IsCashTicker(ticker) {
		return nil, fmt.Errorf("cash pseudo-ticker %s cannot be stored as a security", ticker)
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	sec := Security{
		Ticker: ticker,
		Name:   req.Name,
		Active: active,
	}
	if req.Price != nil {
		if *req.Price <= 0 {
			return nil, fmt.Errorf("price must be positive")
		}
		now := time.Now().Unix()
		sec.CurrentPrice = req.Price
		sec.PriceUpdatedAt = &now
	}

	if err := s.repo.Upsert(sec); err != nil {
		return nil, err
	}

	return s.repo.GetByTicker(ticker)
}

// SetActive toggles a security's active flag
func (s *Service) SetActive(ticker string, active bool) error {
	return s.repo.SetActive(utils.NormalizeTicker(ticker), active)
}

// DeleteSecurity removes a security unless an allocation model references it
func (s *Service) DeleteSecurity(ticker string) error {
	normalized := utils.NormalizeTicker(ticker)

	if s.sleeves != nil {
		inUse, err := s.sleeves.TickerInUse(normalized)
		if err != nil {
			return err
		}
		if inUse {
			return fmt.Errorf("security %s is a sleeve member and cannot be deleted", normalized)
		}
	}

	return s.repo.Delete(normalized)
}

// UpdatePrice applies a single price push
func (s *Service) UpdatePrice(ticker string, price float64) error {
	if price <= 0 {
		return fmt.Errorf("price must be positive")
	}

	if err := s.repo.UpdatePrice(utils.NormalizeTicker(ticker), price, time.Now().Unix()); err != nil {
		return err
	}

	if s.eventManager != nil {
		s.eventManager.EmitTyped(events.PricesUpdated, "universe", &events.PricesUpdatedData{Count: 1})
	}

	return nil
}

// UpdatePrices applies a batch of price updates and emits PricesUpdated.
// Unknown tickers are skipped; the returned count covers applied rows only.
func (s *Service) UpdatePrices(prices map[string]float64) (int, error) {
	normalized := make(map[string]float64, len(prices))
	for ticker, price := range prices {
		if price <= 0 {
			return 0, fmt.Errorf("price for %s must be positive", ticker)
		}
		normalized[utils.NormalizeTicker(ticker)] = price
	}

	updated, err := s.repo.UpdatePrices(normalized, time.Now().Unix())
	if err != nil {
		return 0, err
	}

	if s.eventManager != nil && updated > 0 {
		s.eventManager.EmitTyped(events.PricesUpdated, "universe", &events.PricesUpdatedData{Count: updated})
	}

	return updated, nil
}

// GetPrices returns the current price map for active securities
func (s *Service) GetPrices() (map[string]float64, error) {
	return s.repo.GetPrices()
}

// GetStalePrices returns active securities whose price is older than maxAge
func (s *Service) GetStalePrices(maxAge time.Duration) ([]Security, error) {
	return s.repo.GetStale(maxAge)
}
