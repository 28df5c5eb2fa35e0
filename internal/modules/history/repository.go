package history

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/rs/zerolog"
)

const snapshotColumns = "group_id, date, total_value, cash_value, deviation_pct, created_at"

const schema = `
CREATE TABLE IF NOT EXISTS group_snapshots (
	group_id      TEXT NOT NULL,
	date          TEXT NOT NULL,
	total_value   REAL NOT NULL,
	cash_value    REAL NOT NULL DEFAULT 0,
	deviation_pct REAL NOT NULL DEFAULT 0,
	created_at    INTEGER NOT NULL,
	PRIMARY KEY (group_id, date)
);

CREATE INDEX IF NOT EXISTS idx_group_snapshots_date ON group_snapshots(date);
`

// Open opens the snapshot database at path, creating it and its schema on
// first use. history.db sits outside the managed database set, so it is
// opened directly with WAL and a busy timeout rather than through the
// migration machinery.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping history database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}

	return db, nil
}

// Repository reads and writes group snapshots
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new history repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "history").Logger(),
	}
}

// Upsert writes a snapshot, replacing any existing row for the same group
// and date so the daily job is idempotent
func (r *Repository) Upsert(snap Snapshot) error {
	_, err := r.db.Exec(`
		INSERT INTO group_snapshots (`+snapshotColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(group_id, date) DO UPDATE SET
			total_value = excluded.total_value,
			cash_value = excluded.cash_value,
			deviation_pct = excluded.deviation_pct,
			created_at = excluded.created_at`,
		snap.GroupID, snap.Date, snap.TotalValue, snap.CashValue, snap.DeviationPct, snap.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert snapshot: %w", err)
	}
	return nil
}

// GetRange returns a group's snapshots between two dates inclusive,
// oldest first
func (r *Repository) GetRange(groupID, startDate, endDate string) ([]Snapshot, error) {
	return r.querySnapshots(`
		SELECT `+snapshotColumns+`
		FROM group_snapshots
		WHERE group_id = ? AND date >= ? AND date <= ?
		ORDER BY date ASC`,
		groupID, startDate, endDate,
	)
}

// GetRecent returns a group's most recent snapshots, newest first
func (r *Repository) GetRecent(groupID string, limit int) ([]Snapshot, error) {
	return r.querySnapshots(`
		SELECT `+snapshotColumns+`
		FROM group_snapshots
		WHERE group_id = ?
		ORDER BY date DESC
		LIMIT ?`,
		groupID, limit,
	)
}

// GetLatest returns a group's newest snapshot, or nil if none exists
func (r *Repository) GetLatest(groupID string) (*Snapshot, error) {
	row := r.db.QueryRow(`
		SELECT `+snapshotColumns+`
		FROM group_snapshots
		WHERE group_id = ?
		ORDER BY date DESC
		LIMIT 1`,
		groupID,
	)

	var snap Snapshot
	err := row.Scan(&snap.GroupID, &snap.Date, &snap.TotalValue, &snap.CashValue, &snap.DeviationPct, &snap.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}

	return &snap, nil
}

func (r *Repository) querySnapshots(query string, args ...interface{}) ([]Snapshot, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		var snap Snapshot
		if err := rows.Scan(&snap.GroupID, &snap.Date, &snap.TotalValue, &snap.CashValue, &snap.DeviationPct, &snap.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}

	return snapshots, nil
}
