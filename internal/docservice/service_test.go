package docservice

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/tasklint/internal/apperr"
	"github.com/starford/tasklint/internal/checksum"
	"github.com/starford/tasklint/internal/index"
	"github.com/starford/tasklint/internal/models"
	"github.com/starford/tasklint/internal/report"
	"github.com/starford/tasklint/internal/storage"
	"github.com/starford/tasklint/internal/testutil"
)

var frozen = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

const (
	misplaced = "* TODO X\n:PROPERTIES:\n:END:\nSCHEDULED: <2025-01-01>\n"
	relocated = "* TODO X\nSCHEDULED: <2025-01-01>\n:PROPERTIES:\n:END:\n"
	withID    = "* TODO %s\n:PROPERTIES:\n:TASK_ID: 20250101120000\n:END:\n"
)

// faultyStore injects read and backup failures into a real FS.
type faultyStore struct {
	*storage.FS
	readFail   map[string]bool
	backupFail bool
}

func (f *faultyStore) Read(p string) ([]byte, error) {
	if f.readFail[p] {
		return nil, fmt.Errorf("read %s: %w", p, apperr.ErrUnreadable)
	}
	return f.FS.Read(p)
}

func (f *faultyStore) Backup(p string) (string, error) {
	if f.backupFail {
		return "", fmt.Errorf("backup %s: %w", p, apperr.ErrBackupFailed)
	}
	return f.FS.Backup(p)
}

func newService(t *testing.T, withIndex bool) (string, *Service, *index.DB) {
	t.Helper()
	root, store := testutil.TestVault(t)
	opts := []Option{WithGenerator(testutil.FrozenGenerator(frozen))}
	var db *index.DB
	if withIndex {
		db = testutil.TestDB(t)
		opts = append(opts, WithIndex(db))
	}
	return root, NewService(store, opts...), db
}

func TestCheck(t *testing.T) {
	root, svc, _ := newService(t, false)
	testutil.WriteDoc(t, root, "a.org", "#+TITLE: Alpha\n* PROJECT Ship thing\n")

	d, err := svc.Check(context.Background(), "a.org")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if d.Title != "Alpha" || len(d.Headings) != 1 {
		t.Errorf("detail = %+v", d)
	}
	// No progress tracker and no TASK_ID.
	if d.Summary.Warnings != 2 {
		t.Errorf("warnings = %d, want 2: %v", d.Summary.Warnings, d.Summary.Issues)
	}
	if d.Checksum != checksum.Sum([]byte("#+TITLE: Alpha\n* PROJECT Ship thing\n")) {
		t.Error("checksum mismatch")
	}
}

func TestCheck_NotFound(t *testing.T) {
	_, svc, _ := newService(t, false)
	if _, err := svc.Check(context.Background(), "missing.org"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestCheckAll_CrossFileDuplicates(t *testing.T) {
	for _, withIndex := range []bool{false, true} {
		t.Run(fmt.Sprintf("index=%v", withIndex), func(t *testing.T) {
			root, svc, _ := newService(t, withIndex)
			testutil.WriteDoc(t, root, "a.org", fmt.Sprintf(withID, "A"))
			testutil.WriteDoc(t, root, "sub/b.org", fmt.Sprintf(withID, "B"))
			testutil.WriteDoc(t, root, "c.org", "* DONE Clean\n")

			rep, err := svc.CheckAll(context.Background(), "")
			if err != nil {
				t.Fatalf("CheckAll: %v", err)
			}
			if rep.Totals.Documents != 3 || rep.Totals.Clean != 1 || rep.Totals.Errors != 2 {
				t.Errorf("totals = %+v", rep.Totals)
			}
			if rep.Totals.ByCode[models.CodeDuplicateTaskID.String()] != 2 {
				t.Errorf("by code = %v", rep.Totals.ByCode)
			}
			if rep.Outcomes[0].Path != "a.org" {
				t.Errorf("outcomes not sorted: %s", rep.Outcomes[0].Path)
			}
			msg := rep.Outcomes[0].Summary.Issues[0].Message
			if !strings.Contains(msg, "sub/b.org") {
				t.Errorf("message %q should name the other document", msg)
			}
		})
	}
}

func TestCheckAll_ReadFailureContinues(t *testing.T) {
	root, fs := testutil.TestVault(t)
	store := &faultyStore{FS: fs, readFail: map[string]bool{"bad.org": true}}
	svc := NewService(store)
	testutil.WriteDoc(t, root, "bad.org", "* TODO x\n")
	testutil.WriteDoc(t, root, "good.org", "* TODO y\n")

	rep, err := svc.CheckAll(context.Background(), "")
	if err != nil {
		t.Fatalf("CheckAll: %v", err)
	}
	if rep.Totals.Documents != 2 || rep.Totals.Failed != 1 || len(rep.Failures) != 1 {
		t.Fatalf("totals = %+v failures = %v", rep.Totals, rep.Failures)
	}
	if rep.Failures[0].Path != "bad.org" {
		t.Errorf("failure path = %q", rep.Failures[0].Path)
	}
}

func TestCheckAll_Cancelled(t *testing.T) {
	root, svc, _ := newService(t, false)
	testutil.WriteDoc(t, root, "a.org", "* TODO a\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := svc.CheckAll(ctx, ""); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestFix_Preview(t *testing.T) {
	root, svc, _ := newService(t, false)
	testutil.WriteDoc(t, root, "x.org", misplaced)

	o, err := svc.Fix(context.Background(), "x.org", FixOptions{Preview: true})
	if err != nil {
		t.Fatalf("Fix: %v", err)
	}
	if o.Written || o.BackupPath != "" {
		t.Errorf("preview wrote: %+v", o)
	}
	if len(o.Changes) != 1 || o.Changes[0].Kind != models.ChangeMove {
		t.Errorf("changes = %+v", o.Changes)
	}
	if o.Status != report.StatusOK {
		t.Errorf("status after fix = %s, issues %v", o.Status, o.Summary.Issues)
	}
	if got := testutil.ReadDoc(t, root, "x.org"); got != misplaced {
		t.Errorf("preview modified file:\n%s", got)
	}
}

func TestFix_BackupThenWrite(t *testing.T) {
	root, svc, db := newService(t, true)
	testutil.WriteDoc(t, root, "x.org", misplaced)

	var (
		mu     sync.Mutex
		events []string
	)
	svc.notify = func(kind, path string) {
		mu.Lock()
		events = append(events, kind+":"+path)
		mu.Unlock()
	}

	o, err := svc.Fix(context.Background(), "x.org", FixOptions{})
	if err != nil {
		t.Fatalf("Fix: %v", err)
	}
	if !o.Written || o.BackupPath == "" {
		t.Fatalf("outcome = %+v", o)
	}
	if got := testutil.ReadDoc(t, root, "x.org"); got != relocated {
		t.Errorf("fixed content:\n%s", got)
	}
	if got := testutil.ReadDoc(t, root, o.BackupPath); got != misplaced {
		t.Errorf("backup content:\n%s", got)
	}
	if cs, _ := db.GetChecksum("x.org"); cs != checksum.Sum([]byte(relocated)) {
		t.Errorf("index checksum not refreshed")
	}
	if len(events) != 1 || events[0] != "fixed:x.org" {
		t.Errorf("events = %v", events)
	}

	// Second pass is a no-op.
	o, err = svc.Fix(context.Background(), "x.org", FixOptions{})
	if err != nil {
		t.Fatalf("Fix: %v", err)
	}
	if o.Written || len(o.Changes) != 0 {
		t.Errorf("second pass = %+v", o)
	}
}

func TestFix_IfMatch(t *testing.T) {
	root, svc, _ := newService(t, false)
	testutil.WriteDoc(t, root, "x.org", misplaced)

	_, err := svc.Fix(context.Background(), "x.org", FixOptions{IfMatch: "stale"})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	o, err := svc.Fix(context.Background(), "x.org", FixOptions{IfMatch: checksum.Sum([]byte(misplaced))})
	if err != nil || !o.Written {
		t.Errorf("matching checksum: outcome %+v, err %v", o, err)
	}
}

func TestFixAll_BackupFailureBlocksWrite(t *testing.T) {
	root, fs := testutil.TestVault(t)
	store := &faultyStore{FS: fs, backupFail: true}
	svc := NewService(store)
	testutil.WriteDoc(t, root, "a.org", misplaced)
	testutil.WriteDoc(t, root, "b.org", misplaced)
	testutil.WriteDoc(t, root, "clean.org", relocated)

	rep, err := svc.FixAll(context.Background(), "", false)
	if err != nil {
		t.Fatalf("FixAll: %v", err)
	}
	if rep.Totals.Documents != 3 || rep.Totals.Failed != 2 || rep.Totals.Written != 0 {
		t.Errorf("totals = %+v", rep.Totals)
	}
	for _, f := range rep.Failures {
		if !strings.Contains(f.Error, apperr.ErrBackupFailed.Error()) {
			t.Errorf("failure %q should mention the backup", f.Error)
		}
	}
	if got := testutil.ReadDoc(t, root, "a.org"); got != misplaced {
		t.Error("document written despite failed backup")
	}
}

func TestFixAll_Preview(t *testing.T) {
	root, svc, _ := newService(t, false)
	testutil.WriteDoc(t, root, "a.org", misplaced)
	testutil.WriteDoc(t, root, "b.org", relocated)

	rep, err := svc.FixAll(context.Background(), "", true)
	if err != nil {
		t.Fatalf("FixAll: %v", err)
	}
	if !rep.Preview || rep.Totals.Changes != 1 || rep.Totals.Written != 0 {
		t.Errorf("report = %+v", rep.Totals)
	}
	entries, _ := os.ReadDir(root)
	if len(entries) != 2 {
		t.Errorf("preview created files: %d entries", len(entries))
	}
}

func TestEnsureID(t *testing.T) {
	root, svc, _ := newService(t, false)
	testutil.WriteDoc(t, root, "taken.org", fmt.Sprintf(withID, "Taken"))
	testutil.WriteDoc(t, root, "new.org", "* TODO New task\nSCHEDULED: <2025-02-01>\n")

	res, err := svc.EnsureID(context.Background(), "new.org", 0, "")
	if err != nil {
		t.Fatalf("EnsureID: %v", err)
	}
	if !res.Created || res.ID != "20250101120000a" || res.BackupPath == "" {
		t.Errorf("result = %+v", res)
	}
	want := "* TODO New task\nSCHEDULED: <2025-02-01>\n:PROPERTIES:\n:TASK_ID: 20250101120000a\n:END:\n"
	if got := testutil.ReadDoc(t, root, "new.org"); got != want {
		t.Errorf("content:\n%s", got)
	}

	again, err := svc.EnsureID(context.Background(), "new.org", 0, "")
	if err != nil {
		t.Fatalf("EnsureID: %v", err)
	}
	if again.Created || again.ID != res.ID {
		t.Errorf("second call = %+v", again)
	}
}

func TestEnsureID_Errors(t *testing.T) {
	root, svc, _ := newService(t, false)
	testutil.WriteDoc(t, root, "bad.org", "* TODO x\n:PROPERTIES:\n:TASK_ID: nope\n:END:\n")

	if _, err := svc.EnsureID(context.Background(), "bad.org", 0, ""); !errors.Is(err, apperr.ErrMalformedID) {
		t.Errorf("malformed: err = %v", err)
	}
	if _, err := svc.EnsureID(context.Background(), "bad.org", 3, ""); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("out of range: err = %v", err)
	}
}

func TestGenerateID_SkipsTaken(t *testing.T) {
	root, svc, db := newService(t, true)
	testutil.WriteDoc(t, root, "a.org", fmt.Sprintf(withID, "A"))
	if _, err := index.Sync(context.Background(), db, svc.store, svc.rules, svc.logger); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	first, err := svc.GenerateID(context.Background())
	if err != nil {
		t.Fatalf("GenerateID: %v", err)
	}
	second, _ := svc.GenerateID(context.Background())
	if first != "20250101120000a" || second != "20250101120000b" {
		t.Errorf("ids = %s, %s", first, second)
	}
}

func TestIndexQueries(t *testing.T) {
	_, noIndex, _ := newService(t, false)
	if _, _, err := noIndex.List(context.Background(), 10, 0, index.ListFilter{}); !errors.Is(err, ErrNoIndex) {
		t.Errorf("List err = %v", err)
	}
	if _, err := noIndex.Search(context.Background(), "x", 10); !errors.Is(err, ErrNoIndex) {
		t.Errorf("Search err = %v", err)
	}

	root, svc, _ := newService(t, true)
	testutil.WriteDoc(t, root, "a.org", fmt.Sprintf(withID, "A"))
	testutil.WriteDoc(t, root, "b.org", fmt.Sprintf(withID, "B"))
	testutil.WriteDoc(t, root, "c.org", "* NEXT Call plumber\n")
	if _, err := svc.CheckAll(context.Background(), ""); err != nil {
		t.Fatalf("CheckAll: %v", err)
	}

	rows, total, err := svc.List(context.Background(), 10, 0, index.ListFilter{})
	if err != nil || total != 3 || len(rows) != 3 {
		t.Fatalf("List = %d/%d, %v", len(rows), total, err)
	}
	hits, err := svc.Search(context.Background(), "plumber", 10)
	if err != nil || len(hits) != 1 || hits[0].Path != "c.org" {
		t.Errorf("Search = %+v, %v", hits, err)
	}
	next, _ := svc.Headings(context.Background(), index.HeadingFilter{State: "NEXT"})
	if len(next) != 1 {
		t.Errorf("Headings = %+v", next)
	}

	rep, err := svc.Report(context.Background())
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	// Two cross-file duplicates plus one unscheduled next action.
	if rep.Totals.Documents != 3 || rep.Totals.Errors != 2 || rep.Totals.Infos != 1 {
		t.Errorf("report totals = %+v", rep.Totals)
	}
}

func TestReport_WithoutIndex(t *testing.T) {
	root, svc, _ := newService(t, false)
	testutil.WriteDoc(t, root, "a.org", "* FOO odd\n")
	rep, err := svc.Report(context.Background())
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if rep.Totals.Warnings != 1 {
		t.Errorf("totals = %+v", rep.Totals)
	}
}
