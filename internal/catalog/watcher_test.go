package catalog

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/ofmock/internal/storage"
	"github.com/starford/ofmock/internal/testutil"
)

// watcherTestEnv sets up an empty contracts dir, storage, and DB for watcher tests.
func watcherTestEnv(t *testing.T) (string, storage.Provider, *DB) {
	t.Helper()
	dir, src := testutil.TestContracts(t, map[string]string{})
	return dir, src, testDB(t)
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestWatcher_NewFileIndexed(t *testing.T) {
	dir, src, db := watcherTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var events []string

	go Watch(ctx, db, src, quietLogger(), func(kind, path string) {
		mu.Lock()
		events = append(events, kind+":"+path)
		mu.Unlock()
	})

	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(dir, "consents.yaml"), []byte(testutil.ConsentsYAML), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("consents.yaml")
		return cs != ""
	}, "new file not indexed by watcher")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range events {
			if e == "created:consents.yaml" || e == "updated:consents.yaml" {
				return true
			}
		}
		return false
	}, "expected a callback for consents.yaml")
}

func TestWatcher_NewDirWatched(t *testing.T) {
	dir, src, db := watcherTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, src, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	subDir := filepath.Join(dir, "accounts")
	_ = os.MkdirAll(subDir, 0o755)
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(subDir, "accounts.json"), []byte(testutil.AccountsJSON), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("accounts/accounts.json")
		return cs != ""
	}, "file in new subdir not indexed by watcher")
}

func TestWatcher_DeleteRemovesFromCatalog(t *testing.T) {
	dir, src, db := watcherTestEnv(t)

	_ = os.WriteFile(filepath.Join(dir, "del.yaml"), []byte(testutil.ResourcesYAML), 0o644)
	_ = Sync(db, src, quietLogger())

	if cs, _ := db.GetChecksum("del.yaml"); cs == "" {
		t.Fatal("precondition: file should be indexed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, src, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Remove(filepath.Join(dir, "del.yaml"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("del.yaml")
		return cs == ""
	}, "deleted file still in catalog")
}

func TestWatcher_RenameReconciles(t *testing.T) {
	dir, src, db := watcherTestEnv(t)

	_ = os.WriteFile(filepath.Join(dir, "old.yaml"), []byte(testutil.ResourcesYAML), 0o644)
	_ = Sync(db, src, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, src, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Rename(filepath.Join(dir, "old.yaml"), filepath.Join(dir, "renamed.yaml"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		oldCS, _ := db.GetChecksum("old.yaml")
		newCS, _ := db.GetChecksum("renamed.yaml")
		return oldCS == "" && newCS != ""
	}, "rename reconciliation failed: old path should be removed and new path indexed")
}

func TestWatcher_BrokenEditDropsEntry(t *testing.T) {
	dir, src, db := watcherTestEnv(t)

	p := filepath.Join(dir, "res.yaml")
	_ = os.WriteFile(p, []byte(testutil.ResourcesYAML), 0o644)
	_ = Sync(db, src, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Watch(ctx, db, src, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(p, []byte(testutil.MalformedYAML), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("res.yaml")
		return cs == ""
	}, "entry of a document that stopped parsing should be dropped")
}
