package reliability

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/ballastd/ballast/internal/database"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openConn(t *testing.T, path string) *sql.DB {
	t.Helper()
	conn, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestCheckHealthyDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portfolio.db")
	createSQLiteFile(t, path, 1)

	service := NewDatabaseHealthService(openConn(t, path), "portfolio", path, nil, zerolog.Nop())
	require.NoError(t, service.Check())
	require.NoError(t, service.CheckAndRecover())
}

func TestGetMetrics(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portfolio.db")
	createSQLiteFile(t, path, 1)

	service := NewDatabaseHealthService(openConn(t, path), "portfolio", path, nil, zerolog.Nop())
	metrics, err := service.GetMetrics()
	require.NoError(t, err)

	assert.Equal(t, "portfolio", metrics.Name)
	assert.Greater(t, metrics.SizeMB, 0.0)
	assert.Greater(t, metrics.PageCount, int64(0))
}

func TestCheckAndRecoverStagesNewestBackup(t *testing.T) {
	dataDir := t.TempDir()
	livePath := filepath.Join(dataDir, "portfolio.db")
	createSQLiteFile(t, livePath, 7)

	backupDir := filepath.Join(t.TempDir(), "backups")
	backupCopy := filepath.Join(backupDir, "daily", "2025-06-01", "portfolio.db")
	require.NoError(t, os.MkdirAll(filepath.Dir(backupCopy), 0755))
	require.NoError(t, CopyFile(livePath, backupCopy))
	backups := NewBackupService(map[string]*database.DB{}, nil, backupDir, nil, zerolog.Nop())

	// Clobber the live file so the integrity check fails
	require.NoError(t, os.WriteFile(livePath, []byte("this is not a database"), 0644))

	conn := openConn(t, livePath)
	service := NewDatabaseHealthService(conn, "portfolio", livePath, backups, zerolog.Nop())

	err := service.CheckAndRecover()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "restart required")
	require.NoError(t, verifySQLiteFile(livePath+".restore"))

	// Next boot swaps the staged copy in
	require.NoError(t, conn.Close())
	restored, err := ApplyStagedRecoveries(dataDir, zerolog.Nop())
	require.NoError(t, err)
	require.Equal(t, []string{livePath}, restored)
	assert.Equal(t, 7, readMarker(t, livePath))
}

func TestCheckAndRecoverWithoutBackup(t *testing.T) {
	dataDir := t.TempDir()
	livePath := filepath.Join(dataDir, "portfolio.db")
	require.NoError(t, os.WriteFile(livePath, []byte("this is not a database"), 0644))

	backups := NewBackupService(map[string]*database.DB{}, nil, filepath.Join(t.TempDir(), "backups"), nil, zerolog.Nop())
	service := NewDatabaseHealthService(openConn(t, livePath), "portfolio", livePath, backups, zerolog.Nop())

	err := service.CheckAndRecover()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no backup exists")

	_, err = os.Stat(livePath + ".restore")
	assert.True(t, os.IsNotExist(err))
}

func TestApplyStagedRecoveriesDiscardsInvalidFile(t *testing.T) {
	dataDir := t.TempDir()
	livePath := filepath.Join(dataDir, "ledger.db")
	createSQLiteFile(t, livePath, 3)
	require.NoError(t, os.WriteFile(livePath+".restore", []byte("garbage"), 0644))

	restored, err := ApplyStagedRecoveries(dataDir, zerolog.Nop())
	require.NoError(t, err)
	assert.Empty(t, restored)

	// Bad staging is dropped, the live database is untouched
	_, err = os.Stat(livePath + ".restore")
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, 3, readMarker(t, livePath))
}

func TestApplyStagedRecoveriesEmptyDir(t *testing.T) {
	restored, err := ApplyStagedRecoveries(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	assert.Empty(t, restored)
}
