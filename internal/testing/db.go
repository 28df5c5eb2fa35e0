// Package testing provides shared test helpers for Ballast packages.
// Imported as ballasttest so it never shadows the standard library.
package testing

import (
	"path/filepath"
	"testing"

	"github.com/ballastd/ballast/internal/database"
)

// NewTestDB creates an isolated, migrated database for one test. The name
// selects the schema (universe, config, ledger, portfolio) and, for the
// ledger, the same durability profile production runs with. The cleanup
// function is safe to call more than once; the file itself lives in
// t.TempDir and is removed with it.
func NewTestDB(t *testing.T, name string) (*database.DB, func()) {
	t.Helper()

	profile := database.ProfileStandard
	if name == "ledger" {
		profile = database.ProfileLedger
	}

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), name+".db"),
		Profile: profile,
		Name:    name,
	})
	if err != nil {
		t.Fatalf("failed to open test database %s: %v", name, err)
	}

	if err := db.Migrate(); err != nil {
		_ = db.Close()
		t.Fatalf("failed to migrate test database %s: %v", name, err)
	}

	return db, func() {
		_ = db.Close()
	}
}
