package scheduler

import (
	"context"
	"time"

	"github.com/ballastd/ballast/internal/modules/history"
	"github.com/ballastd/ballast/internal/modules/washsale"
	"github.com/ballastd/ballast/internal/reliability"
	"github.com/rs/zerolog"
)

// r2BackupTimeout bounds one full backup-and-upload cycle
const r2BackupTimeout = 10 * time.Minute

// SweepJob derives wash-sale restrictions from recent loss sales and purges
// expired ones, so the restriction table always reflects the trailing
// 30-day window without any request-path work
type SweepJob struct {
	washsale *washsale.Service
	log      zerolog.Logger
}

// NewSweepJob creates the nightly wash-sale sweep job
func NewSweepJob(service *washsale.Service, log zerolog.Logger) *SweepJob {
	return &SweepJob{
		washsale: service,
		log:      log.With().Str("job", "washsale_sweep").Logger(),
	}
}

// Name returns the job name
func (j *SweepJob) Name() string {
	return "washsale_sweep"
}

// Run executes the sweep
func (j *SweepJob) Run() error {
	result, err := j.washsale.Sweep(time.Now().UTC())
	if err != nil {
		return err
	}

	j.log.Info().
		Int("derived", result.Derived).
		Int("purged", result.Purged).
		Int("active", result.Active).
		Msg("Wash-sale sweep completed")

	return nil
}

// SnapshotJob captures a valuation snapshot for every modeled group.
// Scheduled after market close; re-runs on the same day overwrite.
type SnapshotJob struct {
	history *history.Service
	log     zerolog.Logger
}

// NewSnapshotJob creates the daily snapshot job
func NewSnapshotJob(service *history.Service, log zerolog.Logger) *SnapshotJob {
	return &SnapshotJob{
		history: service,
		log:     log.With().Str("job", "history_snapshot").Logger(),
	}
}

// Name returns the job name
func (j *SnapshotJob) Name() string {
	return "history_snapshot"
}

// Run captures snapshots for all groups
func (j *SnapshotJob) Run() error {
	_, err := j.history.CaptureAll(time.Now().UTC())
	return err
}

// LocalBackupJob writes dated on-disk copies of every database and rotates
// old ones
type LocalBackupJob struct {
	backups  *reliability.BackupService
	keepDays int
	log      zerolog.Logger
}

// NewLocalBackupJob creates the daily local backup job
func NewLocalBackupJob(backups *reliability.BackupService, keepDays int, log zerolog.Logger) *LocalBackupJob {
	return &LocalBackupJob{
		backups:  backups,
		keepDays: keepDays,
		log:      log.With().Str("job", "local_backup").Logger(),
	}
}

// Name returns the job name
func (j *LocalBackupJob) Name() string {
	return "local_backup"
}

// Run creates today's backup set, then prunes expired ones
func (j *LocalBackupJob) Run() error {
	if _, err := j.backups.CreateDailyBackup(time.Now().UTC()); err != nil {
		return err
	}

	_, err := j.backups.RotateDailyBackups(j.keepDays)
	return err
}

// R2BackupJob uploads an archived backup set to R2 and rotates old archives.
// Only registered when R2 credentials are configured.
type R2BackupJob struct {
	r2            *reliability.R2BackupService
	retentionDays int
	log           zerolog.Logger
}

// NewR2BackupJob creates the daily off-site backup job
func NewR2BackupJob(r2 *reliability.R2BackupService, retentionDays int, log zerolog.Logger) *R2BackupJob {
	return &R2BackupJob{
		r2:            r2,
		retentionDays: retentionDays,
		log:           log.With().Str("job", "r2_backup").Logger(),
	}
}

// Name returns the job name
func (j *R2BackupJob) Name() string {
	return "r2_backup"
}

// Run uploads a fresh archive, then applies the retention policy
func (j *R2BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), r2BackupTimeout)
	defer cancel()

	if err := j.r2.CreateAndUploadBackup(ctx); err != nil {
		return err
	}

	return j.r2.RotateOldBackups(ctx, j.retentionDays)
}
