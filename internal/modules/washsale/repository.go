package washsale

import (
	"database/sql"
	"fmt"

	"github.com/ballastd/ballast/internal/utils"
	"github.com/rs/zerolog"
)

const restrictionColumns = "ticker, blocked_until, reason, source_transaction_id, created_at, updated_at"

// Repository handles restriction database operations in portfolio.db
type Repository struct {
	db  *sql.DB // portfolio.db
	log zerolog.Logger
}

// NewRepository creates a new wash-sale restriction repository
func NewRepository(portfolioDB *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  portfolioDB,
		log: log.With().Str("repo", "washsale").Logger(),
	}
}

// Upsert inserts or replaces the restriction for a ticker
func (r *Repository) Upsert(res Restriction, now int64) error {
	var sourceID interface{}
	if res.SourceTransactionID != nil {
		sourceID = *res.SourceTransactionID
	}

	_, err := r.db.Exec(`
		INSERT INTO restricted_securities (ticker, blocked_until, reason, source_transaction_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(ticker) DO UPDATE SET
			blocked_until = excluded.blocked_until,
			reason = excluded.reason,
			source_transaction_id = excluded.source_transaction_id,
			updated_at = excluded.updated_at`,
		utils.NormalizeTicker(res.Ticker), res.BlockedUntil, res.Reason, sourceID, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert restriction for %s: %w", res.Ticker, err)
	}
	return nil
}

// GetByTicker returns the restriction for a ticker, or nil if none exists
func (r *Repository) GetByTicker(ticker string) (*Restriction, error) {
	row := r.db.QueryRow(
		"SELECT "+restrictionColumns+" FROM restricted_securities WHERE ticker = ?",
		utils.NormalizeTicker(ticker),
	)

	res, err := scanRestriction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get restriction: %w", err)
	}
	return res, nil
}

// GetActive returns restrictions still in force at the given time, by ticker
func (r *Repository) GetActive(now int64) ([]Restriction, error) {
	return r.queryRestrictions(
		"SELECT "+restrictionColumns+" FROM restricted_securities WHERE blocked_until > ? ORDER BY ticker",
		now,
	)
}

// GetAll returns every restriction row including expired ones, by ticker
func (r *Repository) GetAll() ([]Restriction, error) {
	return r.queryRestrictions(
		"SELECT " + restrictionColumns + " FROM restricted_securities ORDER BY ticker",
	)
}

// PurgeExpired deletes restrictions whose window has passed
func (r *Repository) PurgeExpired(now int64) (int, error) {
	result, err := r.db.Exec("DELETE FROM restricted_securities WHERE blocked_until <= ?", now)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired restrictions: %w", err)
	}
	affected, _ := result.RowsAffected()
	return int(affected), nil
}

func (r *Repository) queryRestrictions(query string, args ...interface{}) ([]Restriction, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query restrictions: %w", err)
	}
	defer rows.Close()

	var restrictions []Restriction
	for rows.Next() {
		var res Restriction
		var sourceID sql.NullInt64
		if err := rows.Scan(&res.Ticker, &res.BlockedUntil, &res.Reason, &sourceID,
			&res.CreatedAt, &res.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan restriction: %w", err)
		}
		if sourceID.Valid {
			res.SourceTransactionID = &sourceID.Int64
		}
		restrictions = append(restrictions, res)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating restrictions: %w", err)
	}

	return restrictions, nil
}

func scanRestriction(row *sql.Row) (*Restriction, error) {
	var res Restriction
	var sourceID sql.NullInt64
	err := row.Scan(&res.Ticker, &res.BlockedUntil, &res.Reason, &sourceID,
		&res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if sourceID.Valid {
		res.SourceTransactionID = &sourceID.Int64
	}
	return &res, nil
}
