package universe

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ballastd/ballast/internal/utils"
	"github.com/rs/zerolog"
)

// SecurityRepository handles security database operations
type SecurityRepository struct {
	universeDB *sql.DB // universe.db - securities table
	log        zerolog.Logger
}

// securitiesColumns is the list of columns for the securities table.
// Used to avoid SELECT * which can break when schema changes.
const securitiesColumns = `ticker, name, active, current_price, price_updated_at, created_at, updated_at`

// NewSecurityRepository creates a new security repository
func NewSecurityRepository(universeDB *sql.DB, log zerolog.Logger) *SecurityRepository {
	return &SecurityRepository{
		universeDB: universeDB,
		log:        log.With().Str("repo", "security").Logger(),
	}
}

// GetByTicker returns a security by ticker, or nil if not found
func (r *SecurityRepository) GetByTicker(ticker string) (*Security, error) {
	query := "SELECT " + securitiesColumns + " FROM securities WHERE ticker = ?"

	rows, err := r.universeDB.Query(query, utils.NormalizeTicker(ticker))
	if err != nil {
		return nil, fmt.Errorf("failed to query security by ticker: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, nil // Security not found
	}

	security, err := r.scanSecurity(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan security: %w", err)
	}

	return &security, nil
}

// GetAll returns all securities, ordered by ticker
func (r *SecurityRepository) GetAll() ([]Security, error) {
	query := "SELECT " + securitiesColumns + " FROM securities ORDER BY ticker"
	return r.querySecurities(query)
}

// GetAllActive returns all active securities, ordered by ticker
func (r *SecurityRepository) GetAllActive() ([]Security, error) {
	query := "SELECT " + securitiesColumns + " FROM securities WHERE active = 1 ORDER BY ticker"
	return r.querySecurities(query)
}

func (r *SecurityRepository) querySecurities(query string, args ...interface{}) ([]Security, error) {
	rows, err := r.universeDB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query securities: %w", err)
	}
	defer rows.Close()

	var securities []Security
	for rows.Next() {
		security, err := r.scanSecurity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan security: %w", err)
		}
		securities = append(securities, security)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating securities: %w", err)
	}

	return securities, nil
}

// Upsert inserts or updates a security by ticker
func (r *SecurityRepository) Upsert(sec Security) error {
	now := time.Now().Unix()
	ticker := utils.NormalizeTicker(sec.Ticker)
	if ticker == "" {
		return fmt.Errorf("ticker is required")
	}

	_, err := r.universeDB.Exec(`
		INSERT INTO securities (ticker, name, active, current_price, price_updated_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ticker) DO UPDATE SET
			name = excluded.name,
			active = excluded.active,
			current_price = COALESCE(excluded.current_price, securities.current_price),
			price_updated_at = COALESCE(excluded.price_updated_at, securities.price_updated_at),
			updated_at = excluded.updated_at
	`, ticker, sec.Name, boolToInt(sec.Active), sec.CurrentPrice, sec.PriceUpdatedAt, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert security %s: %w", ticker, err)
	}

	return nil
}

// SetActive flips a security's active flag
func (r *SecurityRepository) SetActive(ticker string, active bool) error {
	result, err := r.universeDB.Exec(
		"UPDATE securities SET active = ?, updated_at = ? WHERE ticker = ?",
		boolToInt(active), time.Now().Unix(), utils.NormalizeTicker(ticker),
	)
	if err != nil {
		return fmt.Errorf("failed to set active for %s: %w", ticker, err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("security not found: %s", ticker)
	}

	return nil
}

// UpdatePrice sets the current price for a single security
func (r *SecurityRepository) UpdatePrice(ticker string, price float64, at int64) error {
	result, err := r.universeDB.Exec(
		"UPDATE securities SET current_price = ?, price_updated_at = ?, updated_at = ? WHERE ticker = ?",
		price, at, time.Now().Unix(), utils.NormalizeTicker(ticker),
	)
	if err != nil {
		return fmt.Errorf("failed to update price for %s: %w", ticker, err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("security not found: %s", ticker)
	}

	return nil
}

// UpdatePrices applies a batch of price updates in one transaction.
// Unknown tickers are skipped and reported in the returned count.
func (r *SecurityRepository) UpdatePrices(prices map[string]float64, at int64) (int, error) {
	tx, err := r.universeDB.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().Unix()
	updated := 0
	for ticker, price := range prices {
		result, err := tx.Exec(
			"UPDATE securities SET current_price = ?, price_updated_at = ?, updated_at = ? WHERE ticker = ?",
			price, at, now, utils.NormalizeTicker(ticker),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to update price for %s: %w", ticker, err)
		}
		if affected, _ := result.RowsAffected(); affected > 0 {
			updated++
		} else {
			r.log.Warn().Str("ticker", ticker).Msg("Price update for unknown ticker skipped")
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit price updates: %w", err)
	}

	return updated, nil
}

// GetPrices returns the latest known price per active ticker
func (r *SecurityRepository) GetPrices() (map[string]float64, error) {
	rows, err := r.universeDB.Query(
		"SELECT ticker, current_price FROM securities WHERE active = 1 AND current_price IS NOT NULL",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query prices: %w", err)
	}
	defer rows.Close()

	prices := make(map[string]float64)
	for rows.Next() {
		var ticker string
		var price float64
		if err := rows.Scan(&ticker, &price); err != nil {
			return nil, fmt.Errorf("failed to scan price: %w", err)
		}
		prices[ticker] = price
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating prices: %w", err)
	}

	return prices, nil
}

// GetStale returns active securities whose price is older than maxAge
// or missing entirely.
func (r *SecurityRepository) GetStale(maxAge time.Duration) ([]Security, error) {
	cutoff := time.Now().Add(-maxAge).Unix()
	query := "SELECT " + securitiesColumns + ` FROM securities
		WHERE active = 1 AND (price_updated_at IS NULL OR price_updated_at < ?)
		ORDER BY ticker`
	return r.querySecurities(query, cutoff)
}

// Delete removes a security
func (r *SecurityRepository) Delete(ticker string) error {
	result, err := r.universeDB.Exec("DELETE FROM securities WHERE ticker = ?", utils.NormalizeTicker(ticker))
	if err != nil {
		return fmt.Errorf("failed to delete security %s: %w", ticker, err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("security not found: %s", ticker)
	}

	return nil
}

// scanSecurity scans a security from the current row
func (r *SecurityRepository) scanSecurity(rows *sql.Rows) (Security, error) {
	var sec Security
	var active int
	var price sql.NullFloat64
	var priceAt sql.NullInt64

	err := rows.Scan(&sec.Ticker, &sec.Name, &active, &price, &priceAt, &sec.CreatedAt, &sec.UpdatedAt)
	if err != nil {
		return Security{}, err
	}

	sec.Active = active != 0
	if price.Valid {
		sec.CurrentPrice = &price.Float64
	}
	if priceAt.Valid {
		sec.PriceUpdatedAt = &priceAt.Int64
	}

	return sec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
