package rebalance

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ballastd/ballast/internal/domain"
	"github.com/rs/zerolog"
)

// Proposal is one persisted engine run, kept for review and audit
type Proposal struct {
	ID        string        `json:"id"`
	GroupID   string        `json:"group_id"`
	Method    domain.Method `json:"method"`
	Trades    []Trade       `json:"trades"`
	Blocked   []Blocked     `json:"blocked,omitempty"`
	Summary   Summary       `json:"summary"`
	CreatedAt int64         `json:"created_at"`
}

// ProposalRepository handles proposal database operations in portfolio.db
type ProposalRepository struct {
	db  *sql.DB // portfolio.db
	log zerolog.Logger
}

// NewProposalRepository creates a new proposal repository
func NewProposalRepository(portfolioDB *sql.DB, log zerolog.Logger) *ProposalRepository {
	return &ProposalRepository{
		db:  portfolioDB,
		log: log.With().Str("repo", "proposals").Logger(),
	}
}

// Create persists a proposal
func (r *ProposalRepository) Create(p *Proposal) error {
	tradesJSON, err := json.Marshal(p.Trades)
	if err != nil {
		return fmt.Errorf("failed to marshal trades: %w", err)
	}
	summaryJSON, err := json.Marshal(p.Summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	blocked := p.Blocked
	if blocked == nil {
		blocked = []Blocked{}
	}
	blockedJSON, err := json.Marshal(blocked)
	if err != nil {
		return fmt.Errorf("failed to marshal blocked entries: %w", err)
	}

	createdAt := p.CreatedAt
	if createdAt == 0 {
		createdAt = time.Now().Unix()
		p.CreatedAt = createdAt
	}

	_, err = r.db.Exec(`
		INSERT INTO proposals (id, group_id, method, trades_json, summary_json, blocked_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.GroupID, string(p.Method), string(tradesJSON), string(summaryJSON), string(blockedJSON), createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert proposal: %w", err)
	}
	return nil
}

// GetByID returns a proposal, or nil if not found
func (r *ProposalRepository) GetByID(id string) (*Proposal, error) {
	row := r.db.QueryRow(
		"SELECT id, group_id, method, trades_json, summary_json, blocked_json, created_at FROM proposals WHERE id = ?",
		id,
	)

	p, err := scanProposal(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get proposal: %w", err)
	}
	return p, nil
}

// GetByGroup returns a group's proposals, newest first
func (r *ProposalRepository) GetByGroup(groupID string, limit int) ([]Proposal, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(`
		SELECT id, group_id, method, trades_json, summary_json, blocked_json, created_at
		FROM proposals WHERE group_id = ? ORDER BY created_at DESC, id LIMIT ?`,
		groupID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query proposals: %w", err)
	}
	defer rows.Close()

	var proposals []Proposal
	for rows.Next() {
		p, err := scanProposal(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan proposal: %w", err)
		}
		proposals = append(proposals, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating proposals: %w", err)
	}

	return proposals, nil
}

// PurgeOlderThan deletes proposals created before the cutoff. Called by the
// maintenance job, proposals are working papers, not records.
func (r *ProposalRepository) PurgeOlderThan(cutoff int64) (int, error) {
	result, err := r.db.Exec("DELETE FROM proposals WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge proposals: %w", err)
	}
	affected, _ := result.RowsAffected()
	return int(affected), nil
}

func scanProposal(scan func(...interface{}) error) (*Proposal, error) {
	var p Proposal
	var method, tradesJSON, summaryJSON, blockedJSON string

	if err := scan(&p.ID, &p.GroupID, &method, &tradesJSON, &summaryJSON, &blockedJSON, &p.CreatedAt); err != nil {
		return nil, err
	}

	p.Method = domain.Method(method)
	if err := json.Unmarshal([]byte(tradesJSON), &p.Trades); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trades: %w", err)
	}
	if err := json.Unmarshal([]byte(summaryJSON), &p.Summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal summary: %w", err)
	}
	if err := json.Unmarshal([]byte(blockedJSON), &p.Blocked); err != nil {
		return nil, fmt.Errorf("failed to unmarshal blocked entries: %w", err)
	}

	return &p, nil
}
