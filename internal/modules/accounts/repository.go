package accounts

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ballastd/ballast/internal/domain"
	"github.com/rs/zerolog"
)

const accountColumns = "id, name, account_type, created_at, updated_at"
const groupColumns = "id, name, model_id, created_at, updated_at"

// Repository handles account and group database operations in portfolio.db
type Repository struct {
	db  *sql.DB // portfolio.db
	log zerolog.Logger
}

// NewRepository creates a new accounts repository
func NewRepository(portfolioDB *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  portfolioDB,
		log: log.With().Str("repo", "accounts").Logger(),
	}
}

// UpsertAccount inserts or updates an account
func (r *Repository) UpsertAccount(a Account) error {
	now := time.Now().Unix()

	_, err := r.db.Exec(`
		INSERT INTO accounts (id, name, account_type, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			account_type = excluded.account_type,
			updated_at = excluded.updated_at`,
		a.ID, a.Name, string(a.Type), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert account %s: %w", a.ID, err)
	}

	return nil
}

// GetAccount returns an account by id, or nil if not found
func (r *Repository) GetAccount(id string) (*Account, error) {
	row := r.db.QueryRow("SELECT "+accountColumns+" FROM accounts WHERE id = ?", id)

	var a Account
	var accountType string
	err := row.Scan(&a.ID, &a.Name, &accountType, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}
	a.Type = domain.AccountType(accountType)

	return &a, nil
}

// ListAccounts returns all accounts ordered by id
func (r *Repository) ListAccounts() ([]Account, error) {
	rows, err := r.db.Query("SELECT " + accountColumns + " FROM accounts ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	return scanAccounts(rows)
}

// DeleteAccount removes an account and, via cascade, its group memberships
// and lots
func (r *Repository) DeleteAccount(id string) error {
	result, err := r.db.Exec("DELETE FROM accounts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete account %s: %w", id, err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("account not found: %s", id)
	}

	return nil
}

// UpsertGroup inserts or updates a group row (membership is separate)
func (r *Repository) UpsertGroup(g Group) error {
	now := time.Now().Unix()

	var modelID interface{}
	if g.ModelID != nil {
		modelID = *g.ModelID
	}

	_, err := r.db.Exec(`
		INSERT INTO account_groups (id, name, model_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			model_id = excluded.model_id,
			updated_at = excluded.updated_at`,
		g.ID, g.Name, modelID, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert group %s: %w", g.ID, err)
	}

	return nil
}

// GetGroup returns a group by id, or nil if not found
func (r *Repository) GetGroup(id string) (*Group, error) {
	row := r.db.QueryRow("SELECT "+groupColumns+" FROM account_groups WHERE id = ?", id)

	var g Group
	var modelID sql.NullInt64
	err := row.Scan(&g.ID, &g.Name, &modelID, &g.CreatedAt, &g.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan group: %w", err)
	}
	if modelID.Valid {
		g.ModelID = &modelID.Int64
	}

	return &g, nil
}

// ListGroups returns all groups ordered by name
func (r *Repository) ListGroups() ([]Group, error) {
	rows, err := r.db.Query("SELECT " + groupColumns + " FROM account_groups ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query groups: %w", err)
	}
	defer rows.Close()

	var groups []Group
	for rows.Next() {
		var g Group
		var modelID sql.NullInt64
		if err := rows.Scan(&g.ID, &g.Name, &modelID, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		if modelID.Valid {
			g.ModelID = &modelID.Int64
		}
		groups = append(groups, g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating groups: %w", err)
	}

	return groups, nil
}

// DeleteGroup removes a group and, via cascade, its memberships
func (r *Repository) DeleteGroup(id string) error {
	result, err := r.db.Exec("DELETE FROM account_groups WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete group %s: %w", id, err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("group not found: %s", id)
	}

	return nil
}

// ReplaceMembers atomically replaces a group's account membership
func (r *Repository) ReplaceMembers(groupID string, accountIDs []string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM account_group_members WHERE group_id = ?", groupID); err != nil {
		return fmt.Errorf("failed to clear members for group %s: %w", groupID, err)
	}

	for _, accountID := range accountIDs {
		_, err := tx.Exec(
			"INSERT INTO account_group_members (group_id, account_id) VALUES (?, ?)",
			groupID, accountID,
		)
		if err != nil {
			return fmt.Errorf("failed to add account %s to group %s: %w", accountID, groupID, err)
		}
	}

	if _, err := tx.Exec(
		"UPDATE account_groups SET updated_at = ? WHERE id = ?",
		time.Now().Unix(), groupID,
	); err != nil {
		return fmt.Errorf("failed to touch group %s: %w", groupID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit membership replacement: %w", err)
	}

	return nil
}

// GetGroupAccounts returns a group's member accounts ordered by id
func (r *Repository) GetGroupAccounts(groupID string) ([]Account, error) {
	rows, err := r.db.Query(`
		SELECT a.id, a.name, a.account_type, a.created_at, a.updated_at
		FROM accounts a
		JOIN account_group_members m ON m.account_id = a.id
		WHERE m.group_id = ?
		ORDER BY a.id`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query group accounts: %w", err)
	}
	defer rows.Close()

	return scanAccounts(rows)
}

// GetGroupDetail returns a group with its member accounts, or nil if the
// group does not exist
func (r *Repository) GetGroupDetail(groupID string) (*GroupDetail, error) {
	group, err := r.GetGroup(groupID)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, nil
	}

	members, err := r.GetGroupAccounts(groupID)
	if err != nil {
		return nil, err
	}

	return &GroupDetail{Group: *group, Accounts: members}, nil
}

// GroupsUsingModel returns ids of groups assigned to the given model
func (r *Repository) GroupsUsingModel(modelID int64) ([]string, error) {
	rows, err := r.db.Query("SELECT id FROM account_groups WHERE model_id = ? ORDER BY id", modelID)
	if err != nil {
		return nil, fmt.Errorf("failed to query groups by model: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan group id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating group ids: %w", err)
	}

	return ids, nil
}

func scanAccounts(rows *sql.Rows) ([]Account, error) {
	var accounts []Account
	for rows.Next() {
		var a Account
		var accountType string
		if err := rows.Scan(&a.ID, &a.Name, &accountType, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		a.Type = domain.AccountType(accountType)
		accounts = append(accounts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}

	return accounts, nil
}
