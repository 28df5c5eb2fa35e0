package reliability

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// DatabaseMetrics describes one database's on-disk footprint
type DatabaseMetrics struct {
	Name      string  `json:"name"`
	SizeMB    float64 `json:"size_mb"`
	WALSizeMB float64 `json:"wal_size_mb"`
	PageCount int64   `json:"page_count"`
	FreePages int64   `json:"free_pages"`
}

// DatabaseHealthService watches one database file for corruption. When an
// integrity check fails it stages the newest verified backup next to the
// live file; the staged copy is applied at the next boot, before the
// database is opened.
type DatabaseHealthService struct {
	conn    *sql.DB
	name    string
	path    string
	backups *BackupService
	log     zerolog.Logger
}

// NewDatabaseHealthService creates a health service for one database
func NewDatabaseHealthService(conn *sql.DB, name, path string, backups *BackupService, log zerolog.Logger) *DatabaseHealthService {
	return &DatabaseHealthService{
		conn:    conn,
		name:    name,
		path:    path,
		backups: backups,
		log:     log.With().Str("service", "db_health").Str("database", name).Logger(),
	}
}

// Check runs a full integrity check against the live database
func (s *DatabaseHealthService) Check() error {
	var result string
	if err := s.conn.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed for %s: %w", s.name, err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed for %s: %s", s.name, result)
	}
	return nil
}

// CheckAndRecover verifies integrity and, on corruption, stages the newest
// verified backup as <path>.restore. The live file cannot be replaced while
// the connection pool holds it open, so the swap happens at the next boot.
// Returns an error whenever the database is corrupt, staged recovery or not,
// so callers surface the restart requirement.
func (s *DatabaseHealthService) CheckAndRecover() error {
	checkErr := s.Check()
	if checkErr == nil {
		return nil
	}

	s.log.Error().Err(checkErr).Msg("Database corruption detected")

	backupPath := s.backups.LatestBackupPath(s.name)
	if backupPath == "" {
		return fmt.Errorf("%s is corrupt and no backup exists: %w", s.name, checkErr)
	}

	if err := verifySQLiteFile(backupPath); err != nil {
		return fmt.Errorf("%s is corrupt and its latest backup failed verification: %w", s.name, err)
	}

	stagedPath := s.path + ".restore"
	if err := CopyFile(backupPath, stagedPath); err != nil {
		return fmt.Errorf("failed to stage recovery for %s: %w", s.name, err)
	}

	s.log.Error().
		Str("backup", backupPath).
		Str("staged", stagedPath).
		Msg("Recovery staged from backup; restart to apply")

	return fmt.Errorf("%s is corrupt; recovery staged from %s, restart required: %w", s.name, backupPath, checkErr)
}

// GetMetrics reports the database's current size and page accounting
func (s *DatabaseHealthService) GetMetrics() (*DatabaseMetrics, error) {
	metrics := &DatabaseMetrics{Name: s.name}

	if info, err := os.Stat(s.path); err == nil {
		metrics.SizeMB = float64(info.Size()) / 1024 / 1024
	}
	if info, err := os.Stat(s.path + "-wal"); err == nil {
		metrics.WALSizeMB = float64(info.Size()) / 1024 / 1024
	}

	if err := s.conn.QueryRow("PRAGMA page_count").Scan(&metrics.PageCount); err != nil {
		return nil, fmt.Errorf("failed to read page count for %s: %w", s.name, err)
	}
	if err := s.conn.QueryRow("PRAGMA freelist_count").Scan(&metrics.FreePages); err != nil {
		return nil, fmt.Errorf("failed to read freelist count for %s: %w", s.name, err)
	}

	return metrics, nil
}

// ApplyStagedRecoveries swaps any <name>.db.restore files into place. Must
// run at boot before any database is opened. Returns the databases restored.
func ApplyStagedRecoveries(dataDir string, log zerolog.Logger) ([]string, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory: %w", err)
	}

	var restored []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".db.restore") {
			continue
		}

		stagedPath := filepath.Join(dataDir, name)
		livePath := filepath.Join(dataDir, strings.TrimSuffix(name, ".restore"))

		if err := verifySQLiteFile(stagedPath); err != nil {
			log.Error().Err(err).Str("staged", stagedPath).Msg("Staged recovery failed verification, discarding")
			os.Remove(stagedPath)
			continue
		}

		// WAL and SHM sidecars of the corrupt file must not survive the swap
		os.Remove(livePath + "-wal")
		os.Remove(livePath + "-shm")

		if err := os.Rename(stagedPath, livePath); err != nil {
			return restored, fmt.Errorf("failed to apply staged recovery %s: %w", stagedPath, err)
		}

		log.Warn().Str("database", livePath).Msg("Applied staged recovery")
		restored = append(restored, livePath)
	}

	return restored, nil
}
