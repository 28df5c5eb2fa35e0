package di

import (
	"fmt"

	"github.com/ballastd/ballast/internal/config"
	"github.com/ballastd/ballast/internal/reliability"
	"github.com/ballastd/ballast/internal/scheduler"
	"github.com/rs/zerolog"
)

// Job schedules. Everything runs in the small hours so daytime API traffic
// never competes with maintenance; the snapshot runs after US market close.
const (
	sweepSchedule             = "30 1 * * *"
	localBackupSchedule       = "0 2 * * *"
	r2BackupSchedule          = "30 2 * * *"
	dailyMaintenanceSchedule  = "0 3 * * *"
	weeklyMaintenanceSchedule = "0 4 * * 0"
	snapshotSchedule          = "30 21 * * *"
)

const (
	localBackupKeepDays = 14
	r2RetentionDays     = 30
)

// RegisterJobs registers all background jobs with the scheduler
func RegisterJobs(sched *scheduler.Scheduler, container *Container, cfg *config.Config, log zerolog.Logger) error {
	jobs := []struct {
		schedule string
		job      scheduler.Job
	}{
		{sweepSchedule, scheduler.NewSweepJob(container.WashsaleService, log)},
		{snapshotSchedule, scheduler.NewSnapshotJob(container.HistoryService, log)},
		{localBackupSchedule, scheduler.NewLocalBackupJob(container.BackupService, localBackupKeepDays, log)},
		{dailyMaintenanceSchedule, reliability.NewDailyMaintenanceJob(
			container.ManagedDatabases(),
			container.HistoryConn,
			container.HealthServices,
			cfg.DataDir,
			container.BackupService.BackupDir(),
			log,
		)},
		{weeklyMaintenanceSchedule, reliability.NewWeeklyMaintenanceJob(
			container.ManagedDatabases(),
			container.HistoryConn,
			container.ProposalRepo,
			log,
		)},
	}

	if container.R2BackupService != nil {
		jobs = append(jobs, struct {
			schedule string
			job      scheduler.Job
		}{r2BackupSchedule, scheduler.NewR2BackupJob(container.R2BackupService, r2RetentionDays, log)})
	}

	for _, j := range jobs {
		if err := sched.AddJob(j.schedule, j.job); err != nil {
			return fmt.Errorf("failed to register job %s: %w", j.job.Name(), err)
		}
	}

	return nil
}
