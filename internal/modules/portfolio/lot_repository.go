package portfolio

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ballastd/ballast/internal/domain"
	"github.com/ballastd/ballast/internal/utils"
	"github.com/rs/zerolog"
)

const lotColumns = "id, account_id, ticker, quantity, cost_basis_per_share, opened_at, created_at, updated_at"

// LotRepository handles tax-lot database operations in portfolio.db
type LotRepository struct {
	db  *sql.DB // portfolio.db
	log zerolog.Logger
}

// NewLotRepository creates a new lot repository
func NewLotRepository(portfolioDB *sql.DB, log zerolog.Logger) *LotRepository {
	return &LotRepository{
		db:  portfolioDB,
		log: log.With().Str("repo", "lots").Logger(),
	}
}

// Create inserts a new lot and returns it
func (r *LotRepository) Create(req LotCreate) (*Lot, error) {
	now := time.Now().Unix()
	openedAt := req.OpenedAt
	if openedAt == 0 {
		openedAt = now
	}

	result, err := r.db.Exec(`
		INSERT INTO lots (account_id, ticker, quantity, cost_basis_per_share, opened_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		req.AccountID, utils.NormalizeTicker(req.Ticker), req.Quantity,
		req.CostBasisPerShare, openedAt, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create lot for %s in %s: %w", req.Ticker, req.AccountID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get lot id: %w", err)
	}

	return r.GetByID(id)
}

// GetByID returns a lot by id, or nil if not found
func (r *LotRepository) GetByID(id int64) (*Lot, error) {
	row := r.db.QueryRow("SELECT "+lotColumns+" FROM lots WHERE id = ?", id)

	var l Lot
	err := row.Scan(&l.ID, &l.AccountID, &l.Ticker, &l.Quantity,
		&l.CostBasisPerShare, &l.OpenedAt, &l.CreatedAt, &l.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan lot: %w", err)
	}

	return &l, nil
}

// GetByAccount returns an account's lots ordered by ticker then age
func (r *LotRepository) GetByAccount(accountID string) ([]Lot, error) {
	return r.queryLots(
		"SELECT "+lotColumns+" FROM lots WHERE account_id = ? ORDER BY ticker, opened_at, id",
		accountID,
	)
}

// GetByAccounts returns lots for a set of accounts ordered by account,
// ticker, age. Used to load a whole rebalancing group in one query.
func (r *LotRepository) GetByAccounts(accountIDs []string) ([]Lot, error) {
	if len(accountIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(accountIDs)), ",")
	args := make([]interface{}, len(accountIDs))
	for i, id := range accountIDs {
		args[i] = id
	}

	query := "SELECT " + lotColumns + " FROM lots WHERE account_id IN (" + placeholders + ") ORDER BY account_id, ticker, opened_at, id"
	return r.queryLots(query, args...)
}

// GetByTicker returns an account's lots for one ticker in FIFO order
func (r *LotRepository) GetByTicker(accountID, ticker string) ([]Lot, error) {
	return r.queryLots(
		"SELECT "+lotColumns+" FROM lots WHERE account_id = ? AND ticker = ? ORDER BY opened_at, id",
		accountID, utils.NormalizeTicker(ticker),
	)
}

// Delete removes a lot
func (r *LotRepository) Delete(id int64) error {
	result, err := r.db.Exec("DELETE FROM lots WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete lot %d: %w", id, err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("lot not found: %d", id)
	}

	return nil
}

// ConsumeFIFO takes quantity shares of ticker out of an account's lots,
// oldest first, and returns the consumed slices so the caller can compute
// realized gain/loss and holding-period classification. The whole
// consumption is one transaction; insufficient shares roll it back.
func (r *LotRepository) ConsumeFIFO(accountID, ticker string, quantity float64) ([]ConsumedLot, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("consume quantity must be positive")
	}

	normalized := utils.NormalizeTicker(ticker)

	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.Query(
		"SELECT id, quantity, cost_basis_per_share, opened_at FROM lots WHERE account_id = ? AND ticker = ? ORDER BY opened_at, id",
		accountID, normalized,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query lots for consumption: %w", err)
	}

	type lotSlice struct {
		id        int64
		qty       float64
		costBasis float64
		openedAt  int64
	}
	var available []lotSlice
	for rows.Next() {
		var ls lotSlice
		if err := rows.Scan(&ls.id, &ls.qty, &ls.costBasis, &ls.openedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan lot: %w", err)
		}
		available = append(available, ls)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating lots: %w", err)
	}
	rows.Close()

	remaining := quantity
	now := time.Now().Unix()
	var consumed []ConsumedLot

	for _, ls := range available {
		if remaining <= 0 {
			break
		}

		take := ls.qty
		if take > remaining {
			take = remaining
		}

		if take >= ls.qty {
			if _, err := tx.Exec("DELETE FROM lots WHERE id = ?", ls.id); err != nil {
				return nil, fmt.Errorf("failed to delete consumed lot %d: %w", ls.id, err)
			}
		} else {
			if _, err := tx.Exec(
				"UPDATE lots SET quantity = quantity - ?, updated_at = ? WHERE id = ?",
				take, now, ls.id,
			); err != nil {
				return nil, fmt.Errorf("failed to reduce lot %d: %w", ls.id, err)
			}
		}

		consumed = append(consumed, ConsumedLot{
			LotID:             ls.id,
			Quantity:          take,
			CostBasisPerShare: ls.costBasis,
			OpenedAt:          ls.openedAt,
		})
		remaining -= take
	}

	if remaining > 1e-9 {
		return nil, fmt.Errorf("insufficient shares of %s in %s: short %.4f", normalized, accountID, remaining)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit lot consumption: %w", err)
	}

	return consumed, nil
}

// AdjustCash moves an account's cash balance by delta dollars. Cash lots
// are kept as one row per (account, cash ticker) with cost basis 1.0; a
// zero balance removes the row.
func (r *LotRepository) AdjustCash(accountID, cashTicker string, delta float64) (float64, error) {
	if !domain.IsCashTicker(cashTicker) {
		return 0, fmt.Errorf("%s is not a cash pseudo-ticker", cashTicker)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var lotID int64
	var balance float64
	err = tx.QueryRow(
		"SELECT id, quantity FROM lots WHERE account_id = ? AND ticker = ? ORDER BY id LIMIT 1",
		accountID, cashTicker,
	).Scan(&lotID, &balance)
	if err != nil && err != sql.ErrNoRows {
		return 0, fmt.Errorf("failed to read cash lot: %w", err)
	}
	hasLot := err == nil

	newBalance := balance + delta
	if newBalance < -1e-9 {
		return 0, fmt.Errorf("insufficient cash in %s: have %.2f, need %.2f", accountID, balance, -delta)
	}
	if newBalance < 0 {
		newBalance = 0
	}

	now := time.Now().Unix()
	switch {
	case hasLot && newBalance == 0:
		_, err = tx.Exec("DELETE FROM lots WHERE id = ?", lotID)
	case hasLot:
		_, err = tx.Exec("UPDATE lots SET quantity = ?, updated_at = ? WHERE id = ?", newBalance, now, lotID)
	case newBalance > 0:
		_, err = tx.Exec(`
			INSERT INTO lots (account_id, ticker, quantity, cost_basis_per_share, opened_at, created_at, updated_at)
			VALUES (?, ?, ?, 1.0, ?, ?, ?)`,
			accountID, cashTicker, newBalance, now, now, now,
		)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to adjust cash for %s: %w", accountID, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit cash adjustment: %w", err)
	}

	return newBalance, nil
}

// GetCashBalance returns an account's total cash across both pseudo-tickers
func (r *LotRepository) GetCashBalance(accountID string) (float64, error) {
	var balance float64
	err := r.db.QueryRow(
		"SELECT COALESCE(SUM(quantity), 0) FROM lots WHERE account_id = ? AND ticker IN (?, ?)",
		accountID, domain.CashTicker, domain.ManualCashTicker,
	).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("failed to read cash balance for %s: %w", accountID, err)
	}
	return balance, nil
}

func (r *LotRepository) queryLots(query string, args ...interface{}) ([]Lot, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query lots: %w", err)
	}
	defer rows.Close()

	var lots []Lot
	for rows.Next() {
		var l Lot
		if err := rows.Scan(&l.ID, &l.AccountID, &l.Ticker, &l.Quantity,
			&l.CostBasisPerShare, &l.OpenedAt, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan lot: %w", err)
		}
		lots = append(lots, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lots: %w", err)
	}

	return lots, nil
}
