package index

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/tasklint/internal/rules"
	"github.com/starford/tasklint/internal/storage"
)

// watcherTestEnv sets up a document dir, storage, and DB for watcher tests.
func watcherTestEnv(t *testing.T) (string, storage.Provider, *DB) {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	return root, store, testDB(t)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
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

func TestSync(t *testing.T) {
	root, store, db := watcherTestEnv(t)
	logger := quietLogger()

	_ = os.WriteFile(filepath.Join(root, "a.org"), []byte(sampleDoc), 0o644)
	_ = os.WriteFile(filepath.Join(root, "notes.md"), []byte("# not an outline"), 0o644)
	st, err := Sync(context.Background(), db, store, nil, logger)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if st.Indexed != 1 {
		t.Errorf("stats = %+v, want 1 indexed", st)
	}
	if cs, _ := db.GetChecksum("a.org"); cs == "" {
		t.Error("a.org not indexed")
	}
	if cs, _ := db.GetChecksum("notes.md"); cs != "" {
		t.Error("non-outline file indexed")
	}

	if st, _ := Sync(context.Background(), db, store, nil, logger); st.Unchanged != 1 || st.Indexed != 0 {
		t.Errorf("second pass stats = %+v", st)
	}

	_ = os.Remove(filepath.Join(root, "a.org"))
	st, err = Sync(context.Background(), db, store, nil, logger)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if st.Removed != 1 {
		t.Errorf("stats = %+v, want 1 removed", st)
	}
	if cs, _ := db.GetChecksum("a.org"); cs != "" {
		t.Error("removed file still indexed")
	}
}

func TestWatcher_NewFileIndexed(t *testing.T) {
	root, store, db := watcherTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var events []string

	go Watch(ctx, db, store, root, nil, quietLogger(), func(kind, path string) {
		mu.Lock()
		events = append(events, kind+":"+path)
		mu.Unlock()
	})

	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(root, "new.org"), []byte("* TODO New\n"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("new.org")
		return cs != ""
	}, "new file not indexed by watcher")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range events {
			if e == "created:new.org" {
				return true
			}
		}
		return false
	}, "expected created:new.org callback")
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	root, store, db := watcherTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Watch(ctx, db, store, root, nil, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(root, "skip.org.bak"), []byte("* backup\n"), 0o644)
	_ = os.WriteFile(filepath.Join(root, "keep.org"), []byte("* kept\n"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("keep.org")
		return cs != ""
	}, "keep.org not indexed")
	if cs, _ := db.GetChecksum("skip.org.bak"); cs != "" {
		t.Error("backup file indexed")
	}
}

func TestWatcher_NewDirWatched(t *testing.T) {
	root, store, db := watcherTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, root, nil, quietLogger(), nil)

	time.Sleep(100 * time.Millisecond)

	subDir := filepath.Join(root, "subdir")
	_ = os.MkdirAll(subDir, 0o755)
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(subDir, "deep.org"), []byte("* Deep\n"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("subdir/deep.org")
		return cs != ""
	}, "file in new subdir not indexed by watcher")
}

func TestWatcher_DeleteRemovesFromIndex(t *testing.T) {
	root, store, db := watcherTestEnv(t)
	logger := quietLogger()

	_ = os.WriteFile(filepath.Join(root, "del.org"), []byte("* Delete Me\n"), 0o644)
	_, _ = Sync(context.Background(), db, store, nil, logger)

	cs, _ := db.GetChecksum("del.org")
	if cs == "" {
		t.Fatal("precondition: file should be indexed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, root, nil, logger, nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Remove(filepath.Join(root, "del.org"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("del.org")
		return cs == ""
	}, "deleted file still in index")
}

func TestWatcher_RenameReconciles(t *testing.T) {
	root, store, db := watcherTestEnv(t)
	logger := quietLogger()

	_ = os.WriteFile(filepath.Join(root, "old.org"), []byte("* Rename\n"), 0o644)
	_, _ = Sync(context.Background(), db, store, nil, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, root, nil, logger, nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Rename(filepath.Join(root, "old.org"), filepath.Join(root, "renamed.org"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		oldCS, _ := db.GetChecksum("old.org")
		newCS, _ := db.GetChecksum("renamed.org")
		return oldCS == "" && newCS != ""
	}, "rename reconciliation failed: old path should be removed and new path indexed")
}

func TestSync_RulesetChangeRechecks(t *testing.T) {
	root, store, db := watcherTestEnv(t)
	logger := quietLogger()
	_ = os.WriteFile(filepath.Join(root, "a.org"), []byte(sampleDoc), 0o644)

	if _, err := Sync(context.Background(), db, store, nil, logger); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	cfg := rules.DefaultConfig()
	cfg.CheckNext = false
	st, err := Sync(context.Background(), db, store, &cfg, logger)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if st.Rechecked != 1 || st.Indexed != 0 {
		t.Errorf("stats = %+v, want 1 rechecked", st)
	}
	if got, _ := db.GetDocument("a.org"); got.Infos != 0 {
		t.Errorf("infos = %d after disabling the next-action rule", got.Infos)
	}
}

func TestSync_Cancelled(t *testing.T) {
	root, store, db := watcherTestEnv(t)
	_ = os.WriteFile(filepath.Join(root, "a.org"), []byte(sampleDoc), 0o644)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Sync(ctx, db, store, nil, quietLogger()); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
