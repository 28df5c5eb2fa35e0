// Package reliability implements local and off-site backups, database
// health checking, restore staging, and scheduled maintenance.
package reliability

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ballastd/ballast/internal/database"
	"github.com/ballastd/ballast/internal/events"
	"github.com/rs/zerolog"
)

// LocalBackupResult describes one completed local backup run
type LocalBackupResult struct {
	Dir       string `json:"dir"`
	Databases int    `json:"databases"`
	SizeBytes int64  `json:"size_bytes"`
}

// BackupService writes consistent snapshot copies of every database into
// dated directories under <backupDir>/daily. The history database is
// included alongside the managed set.
type BackupService struct {
	conns        map[string]*sql.DB
	backupDir    string
	eventManager *events.Manager
	log          zerolog.Logger
}

// NewBackupService creates a backup service over the managed databases
// plus the directly-opened history connection
func NewBackupService(databases map[string]*database.DB, historyConn *sql.DB, backupDir string, eventManager *events.Manager, log zerolog.Logger) *BackupService {
	conns := make(map[string]*sql.DB, len(databases)+1)
	for name, db := range databases {
		conns[name] = db.Conn()
	}
	if historyConn != nil {
		conns["history"] = historyConn
	}

	return &BackupService{
		conns:        conns,
		backupDir:    backupDir,
		eventManager: eventManager,
		log:          log.With().Str("service", "backup").Logger(),
	}
}

// BackupDir returns the root directory local backups are written under
func (s *BackupService) BackupDir() string {
	return s.backupDir
}

// DatabaseNames returns every database covered by backups, sorted for
// deterministic archive and directory layouts
func (s *BackupService) DatabaseNames() []string {
	names := make([]string, 0, len(s.conns))
	for name := range s.conns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BackupDatabase writes a consistent copy of one database to dstPath using
// VACUUM INTO, which snapshots without blocking writers. The destination
// must not exist; any stale file is removed first.
func (s *BackupService) BackupDatabase(name, dstPath string) error {
	conn, ok := s.conns[name]
	if !ok {
		return fmt.Errorf("unknown database: %s", name)
	}

	if _, err := os.Stat(dstPath); err == nil {
		if err := os.Remove(dstPath); err != nil {
			return fmt.Errorf("failed to remove stale backup %s: %w", dstPath, err)
		}
	}

	if _, err := conn.Exec("VACUUM INTO ?", dstPath); err != nil {
		return fmt.Errorf("failed to back up %s: %w", name, err)
	}

	return nil
}

// CreateDailyBackup backs up every database into <backupDir>/daily/<date>.
// Re-running on the same day replaces that day's copies.
func (s *BackupService) CreateDailyBackup(now time.Time) (*LocalBackupResult, error) {
	start := time.Now()
	dir := filepath.Join(s.backupDir, "daily", now.UTC().Format("2006-01-02"))

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	result := &LocalBackupResult{Dir: dir}
	for _, name := range s.DatabaseNames() {
		dstPath := filepath.Join(dir, name+".db")
		if err := s.BackupDatabase(name, dstPath); err != nil {
			return nil, err
		}

		info, err := os.Stat(dstPath)
		if err != nil {
			return nil, fmt.Errorf("failed to stat backup %s: %w", dstPath, err)
		}
		result.SizeBytes += info.Size()
		result.Databases++
	}

	duration := time.Since(start)
	s.log.Info().
		Str("dir", dir).
		Int("databases", result.Databases).
		Int64("size_bytes", result.SizeBytes).
		Dur("duration_ms", duration).
		Msg("Local backup completed")

	if s.eventManager != nil {
		s.eventManager.EmitTyped(events.BackupCompleted, "reliability", &events.BackupCompletedData{
			Databases: result.Databases,
			SizeBytes: result.SizeBytes,
			Duration:  duration.Seconds(),
		})
	}

	return result, nil
}

// RotateDailyBackups removes dated backup directories older than keepDays,
// always keeping the newest three regardless of age
func (s *BackupService) RotateDailyBackups(keepDays int) (int, error) {
	const minBackupsToKeep = 3

	dailyDir := filepath.Join(s.backupDir, "daily")
	entries, err := os.ReadDir(dailyDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var dates []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := time.Parse("2006-01-02", entry.Name()); err != nil {
			continue
		}
		dates = append(dates, entry.Name())
	}

	// Newest first; the leading minBackupsToKeep survive unconditionally
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))

	cutoff := ""
	if keepDays > 0 {
		cutoff = time.Now().UTC().AddDate(0, 0, -keepDays).Format("2006-01-02")
	}

	deleted := 0
	for i, date := range dates {
		if i < minBackupsToKeep || cutoff == "" || date >= cutoff {
			continue
		}

		if err := os.RemoveAll(filepath.Join(dailyDir, date)); err != nil {
			s.log.Error().Err(err).Str("date", date).Msg("Failed to delete old backup")
			continue
		}
		deleted++
	}

	if deleted > 0 {
		s.log.Info().Int("deleted", deleted).Msg("Rotated old local backups")
	}

	return deleted, nil
}

// LatestBackupPath returns the newest daily backup copy of one database,
// or "" when none exists
func (s *BackupService) LatestBackupPath(name string) string {
	dailyDir := filepath.Join(s.backupDir, "daily")
	entries, err := os.ReadDir(dailyDir)
	if err != nil {
		return ""
	}

	var dates []string
	for _, entry := range entries {
		if entry.IsDir() {
			dates = append(dates, entry.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))

	for _, date := range dates {
		path := filepath.Join(dailyDir, date, name+".db")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}
