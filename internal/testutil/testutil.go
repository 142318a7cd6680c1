// Package testutil provides shared test helpers for contract directories and
// catalog databases.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/ofmock/internal/storage"
)

// TestDBPath returns a temporary SQLite file path that is removed on cleanup.
func TestDBPath(t *testing.T) string {
	t.Helper()
	dbFile, err := os.CreateTemp("", "ofmock-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() {
		os.Remove(dbFile.Name())
		os.Remove(dbFile.Name() + "-wal")
		os.Remove(dbFile.Name() + "-shm")
	})
	return dbFile.Name()
}

// TestContracts creates a temporary contracts directory holding files and
// returns it with a storage.Provider rooted there. A nil map writes Fixtures.
func TestContracts(t *testing.T, files map[string]string) (string, storage.Provider) {
	t.Helper()
	if files == nil {
		files = Fixtures
	}
	dir := t.TempDir()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}
