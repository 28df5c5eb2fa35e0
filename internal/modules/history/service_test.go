package history

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/ballastd/ballast/internal/modules/accounts"
	"github.com/ballastd/ballast/internal/modules/rebalance"
	ballasttest "github.com/ballastd/ballast/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var captureTime = time.Date(2025, 6, 2, 21, 30, 0, 0, time.UTC)

type stubDrift struct {
	reports map[string]*rebalance.DriftReport
	errs    map[string]error
}

func (s *stubDrift) Drift(groupID string) (*rebalance.DriftReport, error) {
	if err, ok := s.errs[groupID]; ok {
		return nil, err
	}
	if report, ok := s.reports[groupID]; ok {
		return report, nil
	}
	return nil, fmt.Errorf("%w: %s", rebalance.ErrGroupNotFound, groupID)
}

func driftReport(groupID string, total, cash, maxAbs float64) *rebalance.DriftReport {
	return &rebalance.DriftReport{
		GroupID:    groupID,
		TotalValue: total,
		CashValue:  cash,
		MaxAbsPct:  maxAbs,
	}
}

type serviceEnv struct {
	service *Service
	repo    *Repository
	groups  *accounts.Repository
	drift   *stubDrift
}

func newServiceEnv(t *testing.T) *serviceEnv {
	t.Helper()
	log := zerolog.Nop()

	db, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	portfolioDB, cleanup := ballasttest.NewTestDB(t, "portfolio")
	t.Cleanup(cleanup)

	env := &serviceEnv{
		repo:   NewRepository(db, log),
		groups: accounts.NewRepository(portfolioDB.Conn(), log),
		drift:  &stubDrift{reports: map[string]*rebalance.DriftReport{}, errs: map[string]error{}},
	}
	env.service = NewService(env.repo, env.groups, env.drift, nil, log)
	return env
}

func TestCaptureWritesSnapshot(t *testing.T) {
	env := newServiceEnv(t)
	env.drift.reports["household"] = driftReport("household", 120000, 4000, 3.25)

	snap, err := env.service.Capture("household", captureTime)
	require.NoError(t, err)
	assert.Equal(t, "2025-06-02", snap.Date)
	assert.Equal(t, 120000.0, snap.TotalValue)
	assert.Equal(t, 4000.0, snap.CashValue)
	assert.Equal(t, 3.25, snap.DeviationPct)
	assert.Equal(t, captureTime.Unix(), snap.CreatedAt)

	stored, err := env.repo.GetLatest("household")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, *snap, *stored)
}

func TestCaptureUnknownGroupFails(t *testing.T) {
	env := newServiceEnv(t)

	_, err := env.service.Capture("nobody", captureTime)
	require.ErrorIs(t, err, rebalance.ErrGroupNotFound)
}

func TestCaptureAllSkipsGroupsWithoutModel(t *testing.T) {
	env := newServiceEnv(t)
	modelID := int64(7)
	require.NoError(t, env.groups.UpsertGroup(accounts.Group{ID: "managed", Name: "Managed", ModelID: &modelID}))
	require.NoError(t, env.groups.UpsertGroup(accounts.Group{ID: "loose", Name: "Loose"}))
	env.drift.reports["managed"] = driftReport("managed", 50000, 1000, 1.5)

	result, err := env.service.CaptureAll(captureTime)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Captured)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 0, result.Failed)

	snap, err := env.repo.GetLatest("managed")
	require.NoError(t, err)
	require.NotNil(t, snap)

	missing, err := env.repo.GetLatest("loose")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCaptureAllKeepsGoingPastFailures(t *testing.T) {
	env := newServiceEnv(t)
	modelID := int64(7)
	require.NoError(t, env.groups.UpsertGroup(accounts.Group{ID: "broken", Name: "Broken", ModelID: &modelID}))
	require.NoError(t, env.groups.UpsertGroup(accounts.Group{ID: "healthy", Name: "Healthy", ModelID: &modelID}))
	env.drift.errs["broken"] = fmt.Errorf("price source down")
	env.drift.reports["healthy"] = driftReport("healthy", 80000, 2000, 0.8)

	result, err := env.service.CaptureAll(captureTime)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Captured)
	assert.Equal(t, 1, result.Failed)

	snap, err := env.repo.GetLatest("healthy")
	require.NoError(t, err)
	require.NotNil(t, snap)
}

func TestCaptureSameDayOverwrites(t *testing.T) {
	env := newServiceEnv(t)
	env.drift.reports["household"] = driftReport("household", 120000, 4000, 3.25)

	_, err := env.service.Capture("household", captureTime)
	require.NoError(t, err)

	env.drift.reports["household"] = driftReport("household", 121500, 3500, 2.0)
	_, err = env.service.Capture("household", captureTime.Add(2*time.Hour))
	require.NoError(t, err)

	recent, err := env.repo.GetRecent("household", 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, 121500.0, recent[0].TotalValue)
}

func TestSeriesWindow(t *testing.T) {
	env := newServiceEnv(t)
	for _, snap := range []Snapshot{
		{GroupID: "household", Date: "2025-02-01", TotalValue: 90000, CreatedAt: 1},
		{GroupID: "household", Date: "2025-05-01", TotalValue: 95000, CreatedAt: 2},
		{GroupID: "household", Date: "2025-06-01", TotalValue: 100000, CreatedAt: 3},
	} {
		require.NoError(t, env.repo.Upsert(snap))
	}

	series, err := env.service.Series("household", 45, captureTime)
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, "2025-05-01", series[0].Date)
	assert.Equal(t, "2025-06-01", series[1].Date)
}
