package allocation

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ballastd/ballast/internal/utils"
	"github.com/rs/zerolog"
)

// Repository handles allocation model database operations. Models, sleeves,
// and sleeve members live in universe.db; sleeve replacement is
// transactional so a model is never observable half-written.
type Repository struct {
	db  *sql.DB // universe.db
	log zerolog.Logger
}

// NewRepository creates a new allocation repository
func NewRepository(universeDB *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  universeDB,
		log: log.With().Str("repo", "allocation").Logger(),
	}
}

// Create inserts a new model and returns it
func (r *Repository) Create(name, description string) (*Model, error) {
	now := time.Now().Unix()

	result, err := r.db.Exec(
		"INSERT INTO models (name, description, created_at, updated_at) VALUES (?, ?, ?, ?)",
		name, description, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create model %s: %w", name, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get model id: %w", err)
	}

	return &Model{ID: id, Name: name, Description: description, CreatedAt: now, UpdatedAt: now}, nil
}

// GetByID returns a model by id, or nil if not found
func (r *Repository) GetByID(id int64) (*Model, error) {
	row := r.db.QueryRow(
		"SELECT id, name, description, created_at, updated_at FROM models WHERE id = ?", id,
	)
	return r.scanModel(row)
}

// GetByName returns a model by name, or nil if not found
func (r *Repository) GetByName(name string) (*Model, error) {
	row := r.db.QueryRow(
		"SELECT id, name, description, created_at, updated_at FROM models WHERE name = ?", name,
	)
	return r.scanModel(row)
}

// List returns all models ordered by name
func (r *Repository) List() ([]Model, error) {
	rows, err := r.db.Query(
		"SELECT id, name, description, created_at, updated_at FROM models ORDER BY name",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query models: %w", err)
	}
	defer rows.Close()

	var models []Model
	for rows.Next() {
		var m Model
		var desc sql.NullString
		if err := rows.Scan(&m.ID, &m.Name, &desc, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan model: %w", err)
		}
		m.Description = desc.String
		models = append(models, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating models: %w", err)
	}

	return models, nil
}

// Update renames a model and updates its description
func (r *Repository) Update(id int64, name, description string) error {
	result, err := r.db.Exec(
		"UPDATE models SET name = ?, description = ?, updated_at = ? WHERE id = ?",
		name, description, time.Now().Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update model %d: %w", id, err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("model not found: %d", id)
	}

	return nil
}

// Delete removes a model and, via cascade, its sleeves and members
func (r *Repository) Delete(id int64) error {
	result, err := r.db.Exec("DELETE FROM models WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete model %d: %w", id, err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("model not found: %d", id)
	}

	return nil
}

// ReplaceSleeves atomically swaps a model's sleeve structure for a new one.
// Existing sleeves (and their members, via cascade) are deleted first.
func (r *Repository) ReplaceSleeves(modelID int64, sleeves []SleeveUpsert) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM sleeves WHERE model_id = ?", modelID); err != nil {
		return fmt.Errorf("failed to clear sleeves for model %d: %w", modelID, err)
	}

	now := time.Now().Unix()
	for _, sleeve := range sleeves {
		result, err := tx.Exec(
			"INSERT INTO sleeves (model_id, name, target_bps, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
			modelID, sleeve.Name, sleeve.TargetBPS, now, now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert sleeve %s: %w", sleeve.Name, err)
		}

		sleeveID, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get sleeve id: %w", err)
		}

		for _, member := range sleeve.Members {
			isActive := true
			if member.IsActive != nil {
				isActive = *member.IsActive
			}
			_, err := tx.Exec(
				"INSERT INTO sleeve_members (sleeve_id, ticker, rank, is_active, is_legacy) VALUES (?, ?, ?, ?, ?)",
				sleeveID, utils.NormalizeTicker(member.Ticker), member.Rank,
				boolToInt(isActive), boolToInt(member.IsLegacy),
			)
			if err != nil {
				return fmt.Errorf("failed to insert sleeve member %s: %w", member.Ticker, err)
			}
		}
	}

	if _, err := tx.Exec("UPDATE models SET updated_at = ? WHERE id = ?", now, modelID); err != nil {
		return fmt.Errorf("failed to touch model %d: %w", modelID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sleeve replacement: %w", err)
	}

	return nil
}

// GetDetail returns a model with its sleeves and rank-ordered members,
// or nil if the model does not exist.
func (r *Repository) GetDetail(modelID int64) (*ModelDetail, error) {
	model, err := r.GetByID(modelID)
	if err != nil {
		return nil, err
	}
	if model == nil {
		return nil, nil
	}

	detail := &ModelDetail{Model: *model}

	sleeveRows, err := r.db.Query(
		"SELECT id, model_id, name, target_bps FROM sleeves WHERE model_id = ? ORDER BY id", modelID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query sleeves for model %d: %w", modelID, err)
	}
	defer sleeveRows.Close()

	for sleeveRows.Next() {
		var s Sleeve
		if err := sleeveRows.Scan(&s.ID, &s.ModelID, &s.Name, &s.TargetBPS); err != nil {
			return nil, fmt.Errorf("failed to scan sleeve: %w", err)
		}
		detail.Sleeves = append(detail.Sleeves, SleeveDetail{Sleeve: s})
	}
	if err := sleeveRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sleeves: %w", err)
	}

	for i := range detail.Sleeves {
		members, err := r.getMembers(detail.Sleeves[i].ID)
		if err != nil {
			return nil, err
		}
		detail.Sleeves[i].Members = members
	}

	return detail, nil
}

func (r *Repository) getMembers(sleeveID int64) ([]SleeveMember, error) {
	rows, err := r.db.Query(
		"SELECT sleeve_id, ticker, rank, is_active, is_legacy FROM sleeve_members WHERE sleeve_id = ? ORDER BY rank",
		sleeveID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query members for sleeve %d: %w", sleeveID, err)
	}
	defer rows.Close()

	var members []SleeveMember
	for rows.Next() {
		var m SleeveMember
		var isActive, isLegacy int
		if err := rows.Scan(&m.SleeveID, &m.Ticker, &m.Rank, &isActive, &isLegacy); err != nil {
			return nil, fmt.Errorf("failed to scan sleeve member: %w", err)
		}
		m.IsActive = isActive != 0
		m.IsLegacy = isLegacy != 0
		members = append(members, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sleeve members: %w", err)
	}

	return members, nil
}

// TickerInUse reports whether any sleeve in any model references the ticker
func (r *Repository) TickerInUse(ticker string) (bool, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM sleeve_members WHERE ticker = ?", ticker).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check sleeve membership for %s: %w", ticker, err)
	}
	return count > 0, nil
}

func (r *Repository) scanModel(row *sql.Row) (*Model, error) {
	var m Model
	var desc sql.NullString

	err := row.Scan(&m.ID, &m.Name, &desc, &m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan model: %w", err)
	}

	m.Description = desc.String
	return &m, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
