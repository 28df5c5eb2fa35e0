package ledger

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ballastd/ballast/internal/domain"
	"github.com/ballastd/ballast/internal/utils"
	"github.com/rs/zerolog"
)

const transactionColumns = "id, account_id, ticker, side, quantity, price, realized_gain_loss_cents, external_id, executed_at, created_at"

// Repository handles transaction database operations in ledger.db
type Repository struct {
	db  *sql.DB // ledger.db
	log zerolog.Logger
}

// NewRepository creates a new ledger repository
func NewRepository(ledgerDB *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  ledgerDB,
		log: log.With().Str("repo", "ledger").Logger(),
	}
}

// Insert appends a transaction. A duplicate external_id is skipped and
// reported via the returned bool. realizedGainLoss is in cents; pass nil
// for BUYs.
func (r *Repository) Insert(t Transaction, realizedCents *domain.Cents) (bool, *Transaction, error) {
	now := time.Now().Unix()
	executedAt := t.ExecutedAt
	if executedAt == 0 {
		executedAt = now
	}

	var externalID interface{}
	if t.ExternalID != "" {
		externalID = t.ExternalID
	}
	var cents interface{}
	if realizedCents != nil {
		cents = int64(*realizedCents)
	}

	result, err := r.db.Exec(`
		INSERT INTO transactions (account_id, ticker, side, quantity, price, realized_gain_loss_cents, external_id, executed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(external_id) WHERE external_id IS NOT NULL DO NOTHING`,
		t.AccountID, utils.NormalizeTicker(t.Ticker), string(t.Side),
		t.Quantity, t.Price, cents, externalID, executedAt, now,
	)
	if err != nil {
		return false, nil, fmt.Errorf("failed to insert transaction: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		r.log.Debug().Str("external_id", t.ExternalID).Msg("Duplicate transaction skipped")
		existing, err := r.GetByExternalID(t.ExternalID)
		if err != nil {
			return false, nil, err
		}
		return false, existing, nil
	}

	id, err := result.LastInsertId()
	if err != nil {
		return false, nil, fmt.Errorf("failed to get transaction id: %w", err)
	}

	inserted, err := r.GetByID(id)
	if err != nil {
		return false, nil, err
	}
	return true, inserted, nil
}

// GetByID returns a transaction by id, or nil if not found
func (r *Repository) GetByID(id int64) (*Transaction, error) {
	row := r.db.QueryRow("SELECT "+transactionColumns+" FROM transactions WHERE id = ?", id)
	return scanTransactionRow(row)
}

// GetByExternalID returns a transaction by broker identifier, or nil
func (r *Repository) GetByExternalID(externalID string) (*Transaction, error) {
	if externalID == "" {
		return nil, nil
	}
	row := r.db.QueryRow("SELECT "+transactionColumns+" FROM transactions WHERE external_id = ?", externalID)
	return scanTransactionRow(row)
}

// List returns transactions newest first, narrowed by the filter
func (r *Repository) List(filter TransactionFilter) ([]Transaction, error) {
	var conditions []string
	var args []interface{}

	if filter.AccountID != "" {
		conditions = append(conditions, "account_id = ?")
		args = append(args, filter.AccountID)
	}
	if filter.Ticker != "" {
		conditions = append(conditions, "ticker = ?")
		args = append(args, utils.NormalizeTicker(filter.Ticker))
	}
	if filter.Since > 0 {
		conditions = append(conditions, "executed_at >= ?")
		args = append(args, filter.Since)
	}

	query := "SELECT " + transactionColumns + " FROM transactions"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY executed_at DESC, id DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)

	return r.queryTransactions(query, args...)
}

// GetSince returns all transactions executed at or after the timestamp,
// oldest first. The rebalance engine wants chronological order.
func (r *Repository) GetSince(since int64) ([]Transaction, error) {
	return r.queryTransactions(
		"SELECT "+transactionColumns+" FROM transactions WHERE executed_at >= ? ORDER BY executed_at, id",
		since,
	)
}

// GetLossSalesSince returns SELLs with a realized loss executed at or
// after the timestamp. Feeds wash-sale restriction derivation.
func (r *Repository) GetLossSalesSince(since int64) ([]Transaction, error) {
	return r.queryTransactions(
		"SELECT "+transactionColumns+` FROM transactions
		 WHERE side = 'SELL' AND realized_gain_loss_cents < 0 AND executed_at >= ?
		 ORDER BY executed_at, id`,
		since,
	)
}

func (r *Repository) queryTransactions(query string, args ...interface{}) ([]Transaction, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return transactions, nil
}

func scanTransaction(rows *sql.Rows) (Transaction, error) {
	var t Transaction
	var side string
	var cents sql.NullInt64
	var externalID sql.NullString

	err := rows.Scan(&t.ID, &t.AccountID, &t.Ticker, &side, &t.Quantity, &t.Price,
		&cents, &externalID, &t.ExecutedAt, &t.CreatedAt)
	if err != nil {
		return t, fmt.Errorf("failed to scan transaction: %w", err)
	}

	t.Side = domain.TradeSide(side)
	if cents.Valid {
		dollars := domain.Cents(cents.Int64).Dollars()
		t.RealizedGainLoss = &dollars
	}
	t.ExternalID = externalID.String

	return t, nil
}

func scanTransactionRow(row *sql.Row) (*Transaction, error) {
	var t Transaction
	var side string
	var cents sql.NullInt64
	var externalID sql.NullString

	err := row.Scan(&t.ID, &t.AccountID, &t.Ticker, &side, &t.Quantity, &t.Price,
		&cents, &externalID, &t.ExecutedAt, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	t.Side = domain.TradeSide(side)
	if cents.Valid {
		dollars := domain.Cents(cents.Int64).Dollars()
		t.RealizedGainLoss = &dollars
	}
	t.ExternalID = externalID.String

	return &t, nil
}
