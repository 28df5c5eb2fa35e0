package reliability

import (
	"crypto/sha256"
	"database/sql"
	"fmt"
	"io"
	"os"

	_ "modernc.org/sqlite" // SQLite driver for backup verification
)

// CopyFile copies src to dst, truncating dst if it exists
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}

	return out.Sync()
}

// fileChecksum computes the SHA256 of a file, formatted "sha256:<hex>"
func fileChecksum(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return fmt.Sprintf("sha256:%x", hash.Sum(nil)), nil
}

// verifySQLiteFile opens a database file read-only and runs an integrity
// check. Used on backup copies, never on live databases.
func verifySQLiteFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("backup file missing: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed for %s: %w", path, err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed for %s: %s", path, result)
	}

	return nil
}
