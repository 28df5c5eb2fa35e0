package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

const stagingDirName = "restore-staging"

// RestoreService stages full database restores from R2 archives. Staging
// never touches the live files; the swap happens at the next boot, before
// any database is opened.
type RestoreService struct {
	r2      *R2Client
	dataDir string
	log     zerolog.Logger
}

// NewRestoreService creates a new restore service
func NewRestoreService(r2 *R2Client, dataDir string, log zerolog.Logger) *RestoreService {
	return &RestoreService{
		r2:      r2,
		dataDir: dataDir,
		log:     log.With().Str("service", "restore").Logger(),
	}
}

// StageFromR2 downloads a backup archive, verifies every database against
// the bundled checksums, and leaves the verified set staged for the next
// boot. Any earlier staging is replaced.
func (s *RestoreService) StageFromR2(ctx context.Context, filename string) error {
	stagingDir := filepath.Join(s.dataDir, stagingDirName)
	if err := os.RemoveAll(stagingDir); err != nil {
		return fmt.Errorf("failed to clear staging directory: %w", err)
	}
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}

	body, err := s.r2.Download(ctx, filename)
	if err != nil {
		return err
	}
	defer body.Close()

	if err := extractArchive(body, stagingDir); err != nil {
		os.RemoveAll(stagingDir)
		return fmt.Errorf("failed to extract %s: %w", filename, err)
	}

	metadata, err := readBackupMetadata(filepath.Join(stagingDir, "backup-metadata.json"))
	if err != nil {
		os.RemoveAll(stagingDir)
		return err
	}

	if err := verifyStagedSet(stagingDir, metadata); err != nil {
		os.RemoveAll(stagingDir)
		return err
	}

	s.log.Info().
		Str("archive", filename).
		Int("databases", len(metadata.Databases)).
		Msg("Restore staged; restart to apply")

	return nil
}

// HasStagedRestore reports whether a staged restore is waiting for the
// next boot
func (s *RestoreService) HasStagedRestore() bool {
	_, err := os.Stat(filepath.Join(s.dataDir, stagingDirName, "backup-metadata.json"))
	return err == nil
}

// ApplyStagedRestore swaps a staged restore set over the live databases.
// Must run at boot before any database is opened. A staging set that fails
// re-verification is discarded so the node still comes up on its current
// data; the error reports what was thrown away.
func ApplyStagedRestore(dataDir string, log zerolog.Logger) (bool, error) {
	stagingDir := filepath.Join(dataDir, stagingDirName)
	if _, err := os.Stat(stagingDir); os.IsNotExist(err) {
		return false, nil
	}

	metadata, err := readBackupMetadata(filepath.Join(stagingDir, "backup-metadata.json"))
	if err != nil {
		os.RemoveAll(stagingDir)
		return false, fmt.Errorf("discarded unreadable restore staging: %w", err)
	}

	if err := verifyStagedSet(stagingDir, metadata); err != nil {
		os.RemoveAll(stagingDir)
		return false, fmt.Errorf("discarded restore staging: %w", err)
	}

	for _, db := range metadata.Databases {
		src := filepath.Join(stagingDir, db.Filename)
		dst := filepath.Join(dataDir, db.Filename)

		// Sidecars of the replaced file must not outlive it
		os.Remove(dst + "-wal")
		os.Remove(dst + "-shm")

		if err := os.Rename(src, dst); err != nil {
			return false, fmt.Errorf("failed to apply %s: %w", db.Filename, err)
		}

		log.Warn().Str("database", dst).Msg("Restored from staged backup")
	}

	os.RemoveAll(stagingDir)
	return true, nil
}

// readBackupMetadata parses the metadata file bundled in every archive
func readBackupMetadata(path string) (*BackupMetadata, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open backup metadata: %w", err)
	}
	defer file.Close()

	var metadata BackupMetadata
	if err := json.NewDecoder(file).Decode(&metadata); err != nil {
		return nil, fmt.Errorf("failed to parse backup metadata: %w", err)
	}
	if len(metadata.Databases) == 0 {
		return nil, fmt.Errorf("backup metadata lists no databases")
	}

	return &metadata, nil
}

// verifyStagedSet checks every staged database against its recorded
// checksum and runs an integrity check on each
func verifyStagedSet(dir string, metadata *BackupMetadata) error {
	for _, db := range metadata.Databases {
		path := filepath.Join(dir, db.Filename)

		checksum, err := fileChecksum(path)
		if err != nil {
			return fmt.Errorf("failed to checksum %s: %w", db.Filename, err)
		}
		if checksum != db.Checksum {
			return fmt.Errorf("checksum mismatch for %s: got %s, want %s", db.Filename, checksum, db.Checksum)
		}

		if err := verifySQLiteFile(path); err != nil {
			return err
		}
	}

	return nil
}

// extractArchive unpacks a tar.gz stream into dstDir, rejecting entries
// that would escape it
func extractArchive(r io.Reader, dstDir string) error {
	gzipReader, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("failed to open gzip stream: %w", err)
	}
	defer gzipReader.Close()

	tarReader := tar.NewReader(gzipReader)
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read archive: %w", err)
		}

		name := filepath.Clean(header.Name)
		if strings.Contains(name, "..") || filepath.IsAbs(name) {
			return fmt.Errorf("archive entry escapes staging directory: %s", header.Name)
		}

		if header.Typeflag != tar.TypeReg {
			continue
		}

		dstPath := filepath.Join(dstDir, name)
		out, err := os.Create(dstPath)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", dstPath, err)
		}

		if _, err := io.Copy(out, tarReader); err != nil {
			out.Close()
			return fmt.Errorf("failed to extract %s: %w", name, err)
		}
		out.Close()
	}
}
