package allocation

import (
	"fmt"

	"github.com/ballastd/ballast/internal/domain"
	"github.com/ballastd/ballast/internal/events"
	"github.com/ballastd/ballast/internal/modules/universe"
	"github.com/ballastd/ballast/internal/utils"
	"github.com/rs/zerolog"
)

// TotalModelBPS is the basis-point total a fully invested model sums to.
// Models may target less; the shortfall is simply left in cash.
const TotalModelBPS = 10000

// Service provides allocation model business logic
type Service struct {
	repo         *Repository
	securities   *universe.SecurityRepository
	eventManager *events.Manager
	log          zerolog.Logger
}

// NewService creates a new allocation service
func NewService(repo *Repository, securities *universe.SecurityRepository, eventManager *events.Manager, log zerolog.Logger) *Service {
	return &Service{
		repo:         repo,
		securities:   securities,
		eventManager: eventManager,
		log:          log.With().Str("service", "allocation").Logger(),
	}
}

// CreateModel validates and stores a new model with its sleeve structure
func (s *Service) CreateModel(req ModelUpsert) (*ModelDetail, error) {
	if err := s.validateModel(req); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByName(req.Name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("model %s already exists", req.Name)
	}

	model, err := s.repo.Create(req.Name, req.Description)
	if err != nil {
		return nil, err
	}

	if err := s.repo.ReplaceSleeves(model.ID, req.Sleeves); err != nil {
		return nil, err
	}

	s.emitChanged(model.ID, "created", model.Name)

	return s.repo.GetDetail(model.ID)
}

// UpdateModel validates and replaces an existing model's definition
func (s *Service) UpdateModel(id int64, req ModelUpsert) (*ModelDetail, error) {
	if err := s.validateModel(req); err != nil {
		return nil, err
	}

	model, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if model == nil {
		return nil, fmt.Errorf("model not found: %d", id)
	}

	if err := s.repo.Update(id, req.Name, req.Description); err != nil {
		return nil, err
	}
	if err := s.repo.ReplaceSleeves(id, req.Sleeves); err != nil {
		return nil, err
	}

	s.emitChanged(id, "updated", req.Name)

	return s.repo.GetDetail(id)
}

// DeleteModel removes a model. Groups still pointing at it will fail
// rebalancing until they are reassigned.
func (s *Service) DeleteModel(id int64) error {
	if err := s.repo.Delete(id); err != nil {
		return err
	}

	s.log.Warn().Int64("model_id", id).Msg("Model deleted; groups assigned to it must be repointed")
	s.emitChanged(id, "deleted", "")

	return nil
}

// GetModel returns a model with its sleeves, or nil if not found
func (s *Service) GetModel(id int64) (*ModelDetail, error) {
	return s.repo.GetDetail(id)
}

// ListModels returns all models without sleeve detail
func (s *Service) ListModels() ([]Model, error) {
	return s.repo.List()
}

func (s *Service) emitChanged(id int64, action, name string) {
	if s.eventManager == nil {
		return
	}
	s.eventManager.EmitTyped(events.ModelChanged, "allocation", &events.ModelChangedData{
		ModelID: id,
		Action:  action,
		Name:    name,
	})
}

// validateModel enforces the structural rules for an allocation model:
// sleeve weights are positive and sum to at most 10000 bps, ranks are
// unique and positive within a sleeve, members are real securities (the
// cash sleeve is synthesized at rebalance time, so cash pseudo-tickers
// are rejected here), and names are unique.
func (s *Service) validateModel(req ModelUpsert) error {
	if req.Name == "" {
		return fmt.Errorf("model name is required")
	}
	if len(req.Sleeves) == 0 {
		return fmt.Errorf("model must have at least one sleeve")
	}

	totalBPS := 0
	sleeveNames := make(map[string]bool)

	for _, sleeve := range req.Sleeves {
		if sleeve.Name == "" {
			return fmt.Errorf("sleeve name is required")
		}
		if sleeveNames[sleeve.Name] {
			return fmt.Errorf("duplicate sleeve name: %s", sleeve.Name)
		}
		sleeveNames[sleeve.Name] = true

		if sleeve.TargetBPS <= 0 {
			return fmt.Errorf("sleeve %s: target_bps must be positive", sleeve.Name)
		}
		totalBPS += sleeve.TargetBPS

		if len(sleeve.Members) == 0 {
			return fmt.Errorf("sleeve %s must have at least one member", sleeve.Name)
		}

		ranks := make(map[int]bool)
		tickers := make(map[string]bool)

		for _, member := range sleeve.Members {
			ticker := utils.NormalizeTicker(member.Ticker)
			if ticker == "" {
				return fmt.Errorf("sleeve %s: member ticker is required", sleeve.Name)
			}
			if domain.IsCashTicker(ticker) {
				return fmt.Errorf("sleeve %s: cash pseudo-ticker %s cannot be a sleeve member", sleeve.Name, ticker)
			}
			if tickers[ticker] {
				return fmt.Errorf("sleeve %s: duplicate member %s", sleeve.Name, ticker)
			}
			tickers[ticker] = true

			if member.Rank < 1 {
				return fmt.Errorf("sleeve %s: member %s rank must be >= 1", sleeve.Name, ticker)
			}
			if ranks[member.Rank] {
				return fmt.Errorf("sleeve %s: duplicate rank %d", sleeve.Name, member.Rank)
			}
			ranks[member.Rank] = true

			sec, err := s.securities.GetByTicker(ticker)
			if err != nil {
				return err
			}
			if sec == nil {
				return fmt.Errorf("sleeve %s: unknown security %s", sleeve.Name, ticker)
			}
		}
	}

	if totalBPS > TotalModelBPS {
		return fmt.Errorf("sleeve target weights sum to %d bps, exceeding %d", totalBPS, TotalModelBPS)
	}

	return nil
}
