package reliability

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ballastd/ballast/internal/database"
	ballasttest "github.com/ballastd/ballast/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBackupEnv(t *testing.T) (*BackupService, string) {
	t.Helper()

	portfolioDB, cleanupPortfolio := ballasttest.NewTestDB(t, "portfolio")
	t.Cleanup(cleanupPortfolio)
	configDB, cleanupConfig := ballasttest.NewTestDB(t, "config")
	t.Cleanup(cleanupConfig)

	backupDir := filepath.Join(t.TempDir(), "backups")
	service := NewBackupService(map[string]*database.DB{
		"portfolio": portfolioDB,
		"config":    configDB,
	}, nil, backupDir, nil, zerolog.Nop())

	return service, backupDir
}

func TestCreateDailyBackupWritesVerifiableCopies(t *testing.T) {
	service, backupDir := newBackupEnv(t)
	now := time.Date(2025, 6, 2, 3, 0, 0, 0, time.UTC)

	result, err := service.CreateDailyBackup(now)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Databases)
	assert.Greater(t, result.SizeBytes, int64(0))
	assert.Equal(t, filepath.Join(backupDir, "daily", "2025-06-02"), result.Dir)

	for _, name := range []string{"portfolio", "config"} {
		require.NoError(t, verifySQLiteFile(filepath.Join(result.Dir, name+".db")))
	}
}

func TestCreateDailyBackupIsRerunnable(t *testing.T) {
	service, _ := newBackupEnv(t)
	now := time.Date(2025, 6, 2, 3, 0, 0, 0, time.UTC)

	_, err := service.CreateDailyBackup(now)
	require.NoError(t, err)

	// Same day again must replace, not fail on the existing files
	result, err := service.CreateDailyBackup(now.Add(4 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Databases)
}

func TestDatabaseNamesSortedAndIncludeHistory(t *testing.T) {
	portfolioDB, cleanup := ballasttest.NewTestDB(t, "portfolio")
	t.Cleanup(cleanup)

	service := NewBackupService(map[string]*database.DB{
		"portfolio": portfolioDB,
	}, portfolioDB.Conn(), t.TempDir(), nil, zerolog.Nop())

	assert.Equal(t, []string{"history", "portfolio"}, service.DatabaseNames())
}

func TestRotateDailyBackupsKeepsMinimumThree(t *testing.T) {
	service, backupDir := newBackupEnv(t)

	// Five dated directories, all ancient
	for _, date := range []string{"2020-01-01", "2020-01-02", "2020-01-03", "2020-01-04", "2020-01-05"} {
		require.NoError(t, os.MkdirAll(filepath.Join(backupDir, "daily", date), 0755))
	}

	deleted, err := service.RotateDailyBackups(7)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	entries, err := os.ReadDir(filepath.Join(backupDir, "daily"))
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "2020-01-03", entries[0].Name())
}

func TestRotateDailyBackupsKeepsRecent(t *testing.T) {
	service, backupDir := newBackupEnv(t)

	recent := time.Now().UTC().Format("2006-01-02")
	for _, date := range []string{"2020-01-01", "2020-01-02", "2020-01-03", recent} {
		require.NoError(t, os.MkdirAll(filepath.Join(backupDir, "daily", date), 0755))
	}

	deleted, err := service.RotateDailyBackups(7)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = os.Stat(filepath.Join(backupDir, "daily", recent))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(backupDir, "daily", "2020-01-01"))
	assert.True(t, os.IsNotExist(err))
}

func TestRotateWithoutBackupDirIsNoop(t *testing.T) {
	service, _ := newBackupEnv(t)

	deleted, err := service.RotateDailyBackups(7)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestLatestBackupPath(t *testing.T) {
	service, _ := newBackupEnv(t)

	assert.Empty(t, service.LatestBackupPath("portfolio"))

	_, err := service.CreateDailyBackup(time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	_, err = service.CreateDailyBackup(time.Date(2025, 6, 2, 3, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	path := service.LatestBackupPath("portfolio")
	assert.Contains(t, path, "2025-06-02")
	assert.Empty(t, service.LatestBackupPath("ledger"))
}
