package washsale

import (
	"fmt"
	"time"

	"github.com/ballastd/ballast/internal/domain"
	"github.com/ballastd/ballast/internal/events"
	"github.com/ballastd/ballast/internal/modules/ledger"
	"github.com/ballastd/ballast/internal/utils"
	"github.com/rs/zerolog"
)

// Service derives and serves wash-sale restrictions
type Service struct {
	repo         *Repository
	transactions *ledger.Repository
	eventManager *events.Manager
	log          zerolog.Logger
}

// NewService creates a new wash-sale service
func NewService(repo *Repository, transactions *ledger.Repository, eventManager *events.Manager, log zerolog.Logger) *Service {
	return &Service{
		repo:         repo,
		transactions: transactions,
		eventManager: eventManager,
		log:          log.With().Str("service", "washsale").Logger(),
	}
}

// Sweep re-derives restrictions from the last 30 days of loss sales and
// purges rows whose window has passed. Runs nightly and on demand.
func (s *Service) Sweep(now time.Time) (*SweepResult, error) {
	nowUnix := now.Unix()
	since := nowUnix - domain.WashSaleWindowDays*24*3600

	lossSales, err := s.transactions.GetLossSalesSince(since)
	if err != nil {
		return nil, fmt.Errorf("failed to load loss sales: %w", err)
	}

	derived := DeriveFromTransactions(lossSales)
	for _, res := range derived {
		if res.BlockedUntil <= nowUnix {
			continue
		}
		if err := s.repo.Upsert(res, nowUnix); err != nil {
			return nil, err
		}
	}

	purged, err := s.repo.PurgeExpired(nowUnix)
	if err != nil {
		return nil, err
	}

	active, err := s.repo.GetActive(nowUnix)
	if err != nil {
		return nil, err
	}

	result := &SweepResult{Derived: len(derived), Purged: purged, Active: len(active)}
	s.log.Info().
		Int("derived", result.Derived).
		Int("purged", result.Purged).
		Int("active", result.Active).
		Msg("Wash-sale sweep completed")

	if s.eventManager != nil {
		s.eventManager.EmitTyped(events.RestrictionsUpdated, "washsale", &events.RestrictionsUpdatedData{
			Added:       result.Derived,
			Expired:     result.Purged,
			ActiveCount: result.Active,
		})
	}

	return result, nil
}

// ActiveRestrictions returns restrictions in force at the given time
func (s *Service) ActiveRestrictions(now time.Time) ([]Restriction, error) {
	return s.repo.GetActive(now.Unix())
}

// AllRestrictions returns every stored restriction including expired ones
func (s *Service) AllRestrictions() ([]Restriction, error) {
	return s.repo.GetAll()
}

// GetRestriction returns the stored restriction for a ticker, or nil
func (s *Service) GetRestriction(ticker string) (*Restriction, error) {
	return s.repo.GetByTicker(ticker)
}

// DeriveFromTransactions computes one restriction per ticker from loss
// sales, keyed to the most recent sale. Non-loss rows are ignored so
// callers can pass unfiltered transaction slices.
func DeriveFromTransactions(transactions []ledger.Transaction) []Restriction {
	latest := make(map[string]ledger.Transaction)
	for _, t := range transactions {
		if !t.IsLossSale() {
			continue
		}
		if prev, ok := latest[t.Ticker]; !ok || t.ExecutedAt > prev.ExecutedAt {
			latest[t.Ticker] = t
		}
	}

	restrictions := make([]Restriction, 0, len(latest))
	for ticker, t := range latest {
		id := t.ID
		restrictions = append(restrictions, Restriction{
			Ticker:              ticker,
			BlockedUntil:        BlockedUntil(t.ExecutedAt),
			Reason:              fmt.Sprintf("loss sale of %.4f shares at %.2f on %s", t.Quantity, t.Price, utils.UnixToDate(t.ExecutedAt)),
			SourceTransactionID: &id,
		})
	}
	return restrictions
}
