package accounts

import (
	"fmt"

	"github.com/ballastd/ballast/internal/modules/allocation"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Service provides account and group business logic
type Service struct {
	repo   *Repository
	models *allocation.Repository
	log    zerolog.Logger
}

// NewService creates a new accounts service
func NewService(repo *Repository, models *allocation.Repository, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		models: models,
		log:    log.With().Str("service", "accounts").Logger(),
	}
}

// SaveAccount validates and stores an account. A blank ID gets a UUID.
func (s *Service) SaveAccount(req AccountUpsert) (*Account, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("account name is required")
	}
	if !req.Type.Valid() {
		return nil, fmt.Errorf("invalid account type: %s", req.Type)
	}

	id := req.ID
	if id == "" {
		id = uuid.New().String()
	}

	if err := s.repo.UpsertAccount(Account{ID: id, Name: req.Name, Type: req.Type}); err != nil {
		return nil, err
	}

	return s.repo.GetAccount(id)
}

// GetAccount returns an account by id, or nil if not found
func (s *Service) GetAccount(id string) (*Account, error) {
	return s.repo.GetAccount(id)
}

// ListAccounts returns all accounts
func (s *Service) ListAccounts() ([]Account, error) {
	return s.repo.ListAccounts()
}

// DeleteAccount removes an account and its group memberships
func (s *Service) DeleteAccount(id string) error {
	return s.repo.DeleteAccount(id)
}

// SaveGroup validates and stores a group with its membership. Member
// accounts must exist; the model, when set, must exist in universe.db.
func (s *Service) SaveGroup(req GroupUpsert) (*GroupDetail, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("group name is required")
	}

	for _, accountID := range req.AccountIDs {
		account, err := s.repo.GetAccount(accountID)
		if err != nil {
			return nil, err
		}
		if account == nil {
			return nil, fmt.Errorf("unknown account: %s", accountID)
		}
	}

	if req.ModelID != nil && s.models != nil {
		model, err := s.models.GetByID(*req.ModelID)
		if err != nil {
			return nil, err
		}
		if model == nil {
			return nil, fmt.Errorf("unknown model: %d", *req.ModelID)
		}
	}

	id := req.ID
	if id == "" {
		id = uuid.New().String()
	}

	if err := s.repo.UpsertGroup(Group{ID: id, Name: req.Name, ModelID: req.ModelID}); err != nil {
		return nil, err
	}
	if err := s.repo.ReplaceMembers(id, req.AccountIDs); err != nil {
		return nil, err
	}

	return s.repo.GetGroupDetail(id)
}

// GetGroup returns a group with its member accounts, or nil if not found
func (s *Service) GetGroup(id string) (*GroupDetail, error) {
	return s.repo.GetGroupDetail(id)
}

// ListGroups returns all groups
func (s *Service) ListGroups() ([]Group, error) {
	return s.repo.ListGroups()
}

// DeleteGroup removes a group (accounts and holdings are untouched)
func (s *Service) DeleteGroup(id string) error {
	return s.repo.DeleteGroup(id)
}

// AssignModel points a group at an allocation model
func (s *Service) AssignModel(groupID string, modelID int64) (*GroupDetail, error) {
	group, err := s.repo.GetGroup(groupID)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, fmt.Errorf("group not found: %s", groupID)
	}

	if s.models != nil {
		model, err := s.models.GetByID(modelID)
		if err != nil {
			return nil, err
		}
		if model == nil {
			return nil, fmt.Errorf("unknown model: %d", modelID)
		}
	}

	group.ModelID = &modelID
	if err := s.repo.UpsertGroup(*group); err != nil {
		return nil, err
	}

	return s.repo.GetGroupDetail(groupID)
}
