package history

import (
	"fmt"
	"time"

	"github.com/ballastd/ballast/internal/events"
	"github.com/ballastd/ballast/internal/modules/accounts"
	"github.com/ballastd/ballast/internal/modules/rebalance"
	"github.com/rs/zerolog"
)

// DriftSource produces the live valuation and deviation a snapshot records.
// *rebalance.Service satisfies it.
type DriftSource interface {
	Drift(groupID string) (*rebalance.DriftReport, error)
}

// Service captures and serves group snapshots
type Service struct {
	repo         *Repository
	groups       *accounts.Repository
	drift        DriftSource
	eventManager *events.Manager
	log          zerolog.Logger
}

// NewService creates a new history service
func NewService(repo *Repository, groups *accounts.Repository, drift DriftSource, eventManager *events.Manager, log zerolog.Logger) *Service {
	return &Service{
		repo:         repo,
		groups:       groups,
		drift:        drift,
		eventManager: eventManager,
		log:          log.With().Str("service", "history").Logger(),
	}
}

// Capture records a snapshot for one group at now's UTC calendar date.
// Re-capturing the same day overwrites the earlier row.
func (s *Service) Capture(groupID string, now time.Time) (*Snapshot, error) {
	report, err := s.drift.Drift(groupID)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		GroupID:      report.GroupID,
		Date:         now.UTC().Format("2006-01-02"),
		TotalValue:   report.TotalValue,
		CashValue:    report.CashValue,
		DeviationPct: report.MaxAbsPct,
		CreatedAt:    now.Unix(),
	}

	if err := s.repo.Upsert(*snap); err != nil {
		return nil, err
	}

	if s.eventManager != nil {
		s.eventManager.EmitTyped(events.SnapshotSaved, "history", &events.SnapshotSavedData{
			GroupID:    snap.GroupID,
			TotalValue: snap.TotalValue,
		})
	}

	return snap, nil
}

// CaptureAll snapshots every group with a model assigned. Groups without a
// model have no deviation to record and are skipped. Per-group failures are
// counted and logged without stopping the run, so one broken group does not
// cost the rest their daily point.
func (s *Service) CaptureAll(now time.Time) (*CaptureResult, error) {
	groups, err := s.groups.ListGroups()
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}

	result := &CaptureResult{}
	for _, g := range groups {
		if g.ModelID == nil {
			result.Skipped++
			continue
		}

		if _, err := s.Capture(g.ID, now); err != nil {
			result.Failed++
			s.log.Warn().Err(err).Str("group_id", g.ID).Msg("Snapshot capture failed")
			continue
		}
		result.Captured++
	}

	s.log.Info().
		Int("captured", result.Captured).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("Snapshot run completed")

	return result, nil
}

// Series returns a group's snapshots for the trailing window, oldest first.
// days defaults to 90 and is capped at ten years. An unknown group simply
// has an empty series.
func (s *Service) Series(groupID string, days int, now time.Time) ([]Snapshot, error) {
	if days <= 0 {
		days = 90
	}
	if days > 3650 {
		days = 3650
	}

	end := now.UTC().Format("2006-01-02")
	start := now.UTC().AddDate(0, 0, -days).Format("2006-01-02")
	return s.repo.GetRange(groupID, start, end)
}

// Latest returns a group's newest snapshot, or nil if none exists
func (s *Service) Latest(groupID string) (*Snapshot, error) {
	return s.repo.GetLatest(groupID)
}
