package reliability

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/ballastd/ballast/internal/database"
	"github.com/rs/zerolog"
)

// ProposalPurger trims old rebalance proposals during weekly maintenance.
// *rebalance.ProposalRepository satisfies it.
type ProposalPurger interface {
	PurgeOlderThan(cutoff int64) (int, error)
}

// proposalRetentionDays is how long executed or abandoned proposals stay
// queryable before the weekly sweep drops them
const proposalRetentionDays = 90

// DailyMaintenanceJob runs integrity checks, WAL checkpoints, disk space
// checks, and backup verification every night
type DailyMaintenanceJob struct {
	databases      map[string]*database.DB
	historyConn    *sql.DB
	healthServices map[string]*DatabaseHealthService
	dataDir        string
	backupDir      string
	log            zerolog.Logger
}

// NewDailyMaintenanceJob creates a new daily maintenance job
func NewDailyMaintenanceJob(
	databases map[string]*database.DB,
	historyConn *sql.DB,
	healthServices map[string]*DatabaseHealthService,
	dataDir string,
	backupDir string,
	log zerolog.Logger,
) *DailyMaintenanceJob {
	return &DailyMaintenanceJob{
		databases:      databases,
		historyConn:    historyConn,
		healthServices: healthServices,
		dataDir:        dataDir,
		backupDir:      backupDir,
		log:            log.With().Str("job", "daily_maintenance").Logger(),
	}
}

// Run executes the daily maintenance job
func (j *DailyMaintenanceJob) Run() error {
	j.log.Info().Msg("Starting daily maintenance")
	startTime := time.Now()

	// Integrity first: a corrupt database makes everything after moot
	for _, name := range sortedKeys(j.healthServices) {
		j.log.Debug().Str("database", name).Msg("Running integrity check")

		if err := j.healthServices[name].CheckAndRecover(); err != nil {
			j.log.Error().
				Str("database", name).
				Err(err).
				Msg("CRITICAL: database unhealthy")
			return fmt.Errorf("CRITICAL: %s unhealthy: %w", name, err)
		}
	}

	// WAL checkpoint keeps the sidecar files from growing unbounded
	for name, db := range j.databases {
		j.log.Debug().Str("database", name).Msg("Running WAL checkpoint")

		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			j.log.Warn().
				Str("database", name).
				Err(err).
				Msg("WAL checkpoint failed")
		}
	}
	if j.historyConn != nil {
		var mode, busy, walLog, checkpointed int
		if err := j.historyConn.QueryRow("PRAGMA wal_checkpoint(TRUNCATE)").Scan(&mode, &busy, &walLog, &checkpointed); err != nil {
			j.log.Warn().Err(err).Str("database", "history").Msg("WAL checkpoint failed")
		}
	}

	if err := j.checkDiskSpace(); err != nil {
		return err
	}

	if err := j.verifyYesterdaysBackups(); err != nil {
		j.log.Error().Err(err).Msg("Backup verification failed")
		// Today's backup still runs; no reason to halt
	}

	j.logDatabaseMetrics()

	duration := time.Since(startTime)
	j.log.Info().
		Dur("duration_ms", duration).
		Msg("Daily maintenance completed successfully")

	return nil
}

// Name returns the job name for the scheduler
func (j *DailyMaintenanceJob) Name() string {
	return "daily_maintenance"
}

// checkDiskSpace verifies sufficient disk space is available
func (j *DailyMaintenanceJob) checkDiskSpace() error {
	stat := syscall.Statfs_t{}
	if err := syscall.Statfs(j.dataDir, &stat); err != nil {
		return fmt.Errorf("failed to stat filesystem: %w", err)
	}

	availableBytes := stat.Bavail * uint64(stat.Bsize)
	availableGB := float64(availableBytes) / 1e9

	j.log.Debug().Float64("available_gb", availableGB).Msg("Disk space check")

	if availableGB < 0.5 {
		j.log.Error().
			Float64("available_gb", availableGB).
			Msg("CRITICAL: Insufficient disk space")
		return fmt.Errorf("CRITICAL: only %.2f GB free", availableGB)
	}

	if availableGB < 5.0 {
		j.log.Error().
			Float64("available_gb", availableGB).
			Msg("Low disk space - consider cleanup")
	} else if availableGB < 10.0 {
		j.log.Warn().
			Float64("available_gb", availableGB).
			Msg("Disk space running low")
	}

	return nil
}

// verifyYesterdaysBackups checks integrity of yesterday's backup copies
func (j *DailyMaintenanceJob) verifyYesterdaysBackups() error {
	yesterday := time.Now().UTC().AddDate(0, 0, -1).Format("2006-01-02")
	dailyBackupDir := filepath.Join(j.backupDir, "daily", yesterday)

	for _, name := range sortedKeys(j.healthServices) {
		backupPath := filepath.Join(dailyBackupDir, name+".db")

		if err := verifySQLiteFile(backupPath); err != nil {
			j.log.Error().
				Str("database", name).
				Err(err).
				Msg("Backup verification failed")
			continue
		}

		j.log.Debug().Str("database", name).Msg("Backup verified")
	}

	return nil
}

// logDatabaseMetrics reports per-database size so growth shows up in logs
func (j *DailyMaintenanceJob) logDatabaseMetrics() {
	for _, name := range sortedKeys(j.healthServices) {
		metrics, err := j.healthServices[name].GetMetrics()
		if err != nil {
			j.log.Error().
				Str("database", name).
				Err(err).
				Msg("Failed to get metrics")
			continue
		}

		j.log.Info().
			Str("database", name).
			Float64("size_mb", metrics.SizeMB).
			Float64("wal_size_mb", metrics.WALSizeMB).
			Msg("Database metrics")
	}
}

// WeeklyMaintenanceJob reclaims space: VACUUM on the growing databases and
// a sweep of expired rebalance proposals. The ledger is append-only and
// never vacuumed.
type WeeklyMaintenanceJob struct {
	databases   map[string]*database.DB
	historyConn *sql.DB
	proposals   ProposalPurger
	log         zerolog.Logger
}

// NewWeeklyMaintenanceJob creates a new weekly maintenance job
func NewWeeklyMaintenanceJob(
	databases map[string]*database.DB,
	historyConn *sql.DB,
	proposals ProposalPurger,
	log zerolog.Logger,
) *WeeklyMaintenanceJob {
	return &WeeklyMaintenanceJob{
		databases:   databases,
		historyConn: historyConn,
		proposals:   proposals,
		log:         log.With().Str("job", "weekly_maintenance").Logger(),
	}
}

// Run executes the weekly maintenance job
func (j *WeeklyMaintenanceJob) Run() error {
	j.log.Info().Msg("Starting weekly maintenance")
	startTime := time.Now()

	if j.proposals != nil {
		cutoff := time.Now().AddDate(0, 0, -proposalRetentionDays).Unix()
		purged, err := j.proposals.PurgeOlderThan(cutoff)
		if err != nil {
			j.log.Error().Err(err).Msg("Proposal purge failed")
		} else if purged > 0 {
			j.log.Info().Int("purged", purged).Msg("Purged old proposals")
		}
	}

	for name, db := range j.databases {
		if name == "ledger" {
			j.log.Debug().
				Str("database", name).
				Msg("Skipping VACUUM for append-only ledger")
			continue
		}

		j.log.Info().Str("database", name).Msg("Running VACUUM")
		if err := j.vacuumConn(db.Conn(), name); err != nil {
			j.log.Error().
				Str("database", name).
				Err(err).
				Msg("VACUUM failed")
		}
	}

	if j.historyConn != nil {
		j.log.Info().Str("database", "history").Msg("Running VACUUM")
		if err := j.vacuumConn(j.historyConn, "history"); err != nil {
			j.log.Error().Err(err).Str("database", "history").Msg("VACUUM failed")
		}
	}

	duration := time.Since(startTime)
	j.log.Info().
		Dur("duration_ms", duration).
		Msg("Weekly maintenance completed successfully")

	return nil
}

// Name returns the job name for the scheduler
func (j *WeeklyMaintenanceJob) Name() string {
	return "weekly_maintenance"
}

// vacuumConn performs VACUUM on a database and logs the space reclaimed
func (j *WeeklyMaintenanceJob) vacuumConn(conn *sql.DB, name string) error {
	var pageCount, pageSize int
	conn.QueryRow("PRAGMA page_count").Scan(&pageCount)
	conn.QueryRow("PRAGMA page_size").Scan(&pageSize)
	sizeBefore := float64(pageCount*pageSize) / 1024 / 1024

	if _, err := conn.Exec("VACUUM"); err != nil {
		return fmt.Errorf("VACUUM failed: %w", err)
	}

	conn.QueryRow("PRAGMA page_count").Scan(&pageCount)
	sizeAfter := float64(pageCount*pageSize) / 1024 / 1024

	j.log.Info().
		Str("database", name).
		Float64("size_before_mb", sizeBefore).
		Float64("size_after_mb", sizeAfter).
		Float64("space_reclaimed_mb", sizeBefore-sizeAfter).
		Msg("VACUUM completed")

	return nil
}

// sortedKeys returns map keys in a stable order for deterministic runs
func sortedKeys(m map[string]*DatabaseHealthService) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
