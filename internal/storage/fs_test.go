package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/tasklint/internal/apperr"
)

func tempTree(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempTree(t)
	content := []byte("* TODO Hello\nWorld\n")
	if err := s.Write("tasks.org", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("tasks.org")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempTree(t)
	if err := s.Write("a/b/c.org", []byte("deep")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("a/b/c.org")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "deep" {
		t.Errorf("content = %q", got)
	}
}

func TestRead_Missing(t *testing.T) {
	s := tempTree(t)
	if _, err := s.Read("nope.org"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestList(t *testing.T) {
	s := tempTree(t)
	_ = s.Write("a.org", []byte("a"))
	_ = s.Write("sub/b.ORG", []byte("b"))
	_ = s.Write("readme.txt", []byte("not org"))
	_ = s.Write("a.org.20250101120000.bak", []byte("backup"))
	_ = s.Write(".git/c.org", []byte("hidden"))

	items, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %+v, want 2", items)
	}
	if items[0].Path != "a.org" || items[0].Size != 1 || items[0].Checksum == "" {
		t.Errorf("item = %+v", items[0])
	}
}

func TestList_CustomExtensions(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFS(dir, "txt", ".org")
	if err != nil {
		t.Fatal(err)
	}
	_ = s.Write("a.org", []byte("a"))
	_ = s.Write("b.txt", []byte("b"))
	_ = s.Write("c.md", []byte("c"))

	items, err := s.List("")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Errorf("items = %+v", items)
	}
}

func TestBackup(t *testing.T) {
	s := tempTree(t)
	s.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }
	_ = s.Write("sub/tasks.org", []byte("original"))

	p, err := s.Backup("sub/tasks.org")
	if err != nil {
		t.Fatalf("Backup: %v", err)
	}
	if p != "sub/tasks.org.20250102030405.bak" {
		t.Errorf("backup path = %q", p)
	}
	got, err := os.ReadFile(filepath.Join(s.Root(), p))
	if err != nil || string(got) != "original" {
		t.Errorf("backup content = %q, %v", got, err)
	}

	p2, err := s.Backup("sub/tasks.org")
	if err != nil {
		t.Fatalf("second Backup: %v", err)
	}
	if p2 != "sub/tasks.org.20250102030405-1.bak" {
		t.Errorf("second backup path = %q", p2)
	}
}

func TestBackup_Missing(t *testing.T) {
	s := tempTree(t)
	if _, err := s.Backup("missing.org"); !errors.Is(err, apperr.ErrBackupFailed) {
		t.Errorf("err = %v, want ErrBackupFailed", err)
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempTree(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.org",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
		if _, err := s.Backup(p); err == nil {
			t.Errorf("expected error for backup of %q", p)
		}
	}
}

func TestAtomicWriteNoCorruption(t *testing.T) {
	s := tempTree(t)
	_ = s.Write("atomic.org", []byte("original content"))

	updated := []byte("updated content")
	if err := s.Write("atomic.org", updated); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic.org")
	if string(got) != string(updated) {
		t.Errorf("expected updated content, got %q", got)
	}

	// Confirm no leftover temp files.
	matches, _ := filepath.Glob(filepath.Join(s.root, ".tasklint-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestMatches(t *testing.T) {
	s := tempTree(t)
	if !s.Matches("x/y.org") || s.Matches("y.org.bak") || s.Matches("y.md") {
		t.Error("Matches mismatch")
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS("/tmp/tasklint-does-not-exist-" + t.Name())
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "tasklint-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}
