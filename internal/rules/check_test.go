package rules

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/tasklint/internal/models"
	"github.com/starford/tasklint/internal/parser"
)

func check(t *testing.T, doc string, cfg *Config) []models.Issue {
	t.Helper()
	return Check(parser.ParseBytes([]byte(doc)), cfg)
}

func count(issues []models.Issue, code models.Code) int {
	n := 0
	for _, is := range issues {
		if is.Code == code {
			n++
		}
	}
	return n
}

func TestCheck_CleanDocument(t *testing.T) {
	doc := "* NEXT Write tests :dev:\nSCHEDULED: <2025-01-01 Wed>\n:PROPERTIES:\n:TASK_ID: 20250101120000\n:END:\n"
	if is := check(t, doc, nil); len(is) != 0 {
		t.Errorf("expected no issues, got %v", is)
	}
}

func TestCheck_MultipleDrawersNested(t *testing.T) {
	doc := "* TODO X\n:PROPERTIES:\n:A: 1\n:PROPERTIES:\n:B: 2\n:END:\n"
	is := check(t, doc, nil)
	if n := count(is, models.CodeMultipleDrawers); n != 1 {
		t.Fatalf("multiple drawer issues = %d, want 1 (%v)", n, is)
	}
	for _, i := range is {
		if i.Code == models.CodeMultipleDrawers && i.Line != 4 {
			t.Errorf("line = %d, want 4", i.Line)
		}
	}
}

func TestCheck_MultipleDrawersSequential(t *testing.T) {
	doc := "* TODO X\n:PROPERTIES:\n:END:\n:PROPERTIES:\n:END:\n"
	is := check(t, doc, nil)
	if n := count(is, models.CodeMultipleDrawers); n != 1 {
		t.Errorf("multiple drawer issues = %d, want 1", n)
	}
}

func TestCheck_DuplicateScheduling(t *testing.T) {
	doc := "* TODO X\nSCHEDULED: <2025-01-01>\nDEADLINE: <2025-01-02>\nSCHEDULED: <2025-01-03>\nDEADLINE: <2025-01-04>\n"
	is := check(t, doc, nil)
	if count(is, models.CodeDuplicateScheduled) != 1 || count(is, models.CodeDuplicateDeadline) != 1 {
		t.Errorf("issues = %v", is)
	}
}

func TestCheck_DuplicateFixableOnlyOnStaleLine(t *testing.T) {
	doc := "* A\nSCHEDULED: <2025-01-01>\nSCHEDULED: <2025-01-02> DEADLINE: <2025-01-03>\nDEADLINE: <2025-01-04>\n"
	var got []bool
	for _, is := range check(t, doc, nil) {
		switch is.Code {
		case models.CodeDuplicateScheduled, models.CodeDuplicateDeadline:
			got = append(got, is.Fixable)
		}
	}
	// Line 3 adds DEADLINE and is kept by the fixer; line 4 only repeats it.
	if len(got) != 2 || got[0] || !got[1] {
		t.Errorf("fixable = %v, want [false true]", got)
	}
}

func TestCheck_SchedulingPlacement(t *testing.T) {
	doc := "* TODO X\n:PROPERTIES:\nSCHEDULED: <2025-01-01>\n:END:\nDEADLINE: <2025-01-02>\n"
	is := check(t, doc, nil)
	if count(is, models.CodeSchedulingInDrawer) != 1 {
		t.Errorf("in-drawer issues: %v", is)
	}
	if count(is, models.CodeSchedulingAfterDrawer) != 1 {
		t.Errorf("after-drawer issues: %v", is)
	}
}

func TestCheck_DuplicateNotAlsoMisplaced(t *testing.T) {
	doc := "* TODO X\nSCHEDULED: <2025-01-01>\n:PROPERTIES:\nSCHEDULED: <2025-01-03>\n:END:\n"
	is := check(t, doc, nil)
	if count(is, models.CodeDuplicateScheduled) != 1 || count(is, models.CodeSchedulingInDrawer) != 0 {
		t.Errorf("issues = %v", is)
	}
}

func TestCheck_Tags(t *testing.T) {
	is := check(t, "* Task :my tag:ok:we-ird:@home:\n", nil)
	if count(is, models.CodeTagWhitespace) != 1 {
		t.Errorf("whitespace issues: %v", is)
	}
	if count(is, models.CodeTagCharacters) != 1 {
		t.Errorf("character issues: %v", is)
	}
	for _, i := range is {
		if i.Code == models.CodeTagWhitespace && i.Severity != models.SevError {
			t.Error("whitespace in tag should be an error")
		}
		if i.Code == models.CodeTagCharacters && i.Severity != models.SevWarning {
			t.Error("bad tag characters should be a warning")
		}
	}
}

func TestCheck_UnknownState(t *testing.T) {
	is := check(t, "* STARTED Something\n", nil)
	if len(is) != 1 || is[0].Code != models.CodeUnknownState || is[0].Severity != models.SevWarning || is[0].Fixable {
		t.Fatalf("issues = %v", is)
	}
	if !strings.Contains(is[0].Message, "TODO") || !strings.Contains(is[0].Message, "DONE") {
		t.Errorf("message should list allowed states: %q", is[0].Message)
	}

	cfg := DefaultConfig()
	cfg.CheckStates = false
	if is := check(t, "* STARTED Something\n", &cfg); len(is) != 0 {
		t.Errorf("disabled check still reports %v", is)
	}
}

func TestCheck_ProjectProgress(t *testing.T) {
	head := ":PROPERTIES:\n:TASK_ID: 20250101120000\n:END:\n"

	is := check(t, "* PROJECT Ship thing\n"+head, nil)
	if count(is, models.CodeProjectNoProgress) != 1 {
		t.Errorf("expected one progress warning, got %v", is)
	}
	for _, i := range is {
		if i.Code == models.CodeProjectNoProgress && !strings.Contains(i.Message, "[n/m]") {
			t.Errorf("message should name the tracker: %q", i.Message)
		}
	}

	is = check(t, "* PROJECT Ship thing [2/5]\n"+head, nil)
	if count(is, models.CodeProjectNoProgress) != 0 {
		t.Errorf("unexpected progress warning: %v", is)
	}
}

func TestCheck_ProjectRequiredProperties(t *testing.T) {
	is := check(t, "* PROJECT Ship thing [0/1]\n", nil)
	if len(is) != 1 || is[0].Code != models.CodeProjectMissingProp {
		t.Errorf("issues = %v", is)
	}
}

func TestCheck_NextAndWaiting(t *testing.T) {
	is := check(t, "* NEXT Call Bob\n* WAITING Reply from Ann\n* WAITING Parts\n:PROPERTIES:\n:WAITING_ON: supplier\n:END:\n", nil)
	if count(is, models.CodeNextUnscheduled) != 1 {
		t.Errorf("next issues: %v", is)
	}
	if count(is, models.CodeWaitingNoFollowUp) != 1 {
		t.Errorf("waiting issues: %v", is)
	}
	for _, i := range is {
		if i.Severity != models.SevInfo {
			t.Errorf("expected info severity, got %v", i)
		}
	}
}

func TestCheck_Recurring(t *testing.T) {
	tests := []struct {
		doc  string
		want int
	}{
		{"* RECURRING Water plants\nSCHEDULED: <2025-01-01 Wed>\n", 1},
		{"* RECURRING Water plants\nSCHEDULED: <2025-01-01 Wed +1w>\n", 0},
		{"* RECURRING Water plants\nSCHEDULED: <2025-01-01 Wed .+2d>\n", 0},
		{"* RECURRING Water plants\nSCHEDULED: <2025-01-01 Wed ++1m>\n", 0},
		{"* TODO Water plants (Recurring)\nSCHEDULED: <2025-01-01>\n", 1},
		{"* RECURRING Water plants (recurring)\n", 1},
		{"* TODO Water plants\nSCHEDULED: <2025-01-01>\n", 0},
	}
	for _, tt := range tests {
		is := check(t, tt.doc, nil)
		if got := count(is, models.CodeRecurringNoInterval); got != tt.want {
			t.Errorf("%q: recurring warnings = %d, want %d", tt.doc, got, tt.want)
		}
	}
}

func TestCheck_TaskIDs(t *testing.T) {
	doc := "* A\n:PROPERTIES:\n:TASK_ID: 20250101120000\n:END:\n* B\n:PROPERTIES:\n:TASK_ID: 20250101120000\n:END:\n* C\n:PROPERTIES:\n:TASK_ID: nope\n:END:\n"
	is := check(t, doc, nil)
	if count(is, models.CodeDuplicateTaskID) != 1 || count(is, models.CodeMalformedTaskID) != 1 {
		t.Errorf("issues = %v", is)
	}
}

func TestCheck_Order(t *testing.T) {
	doc := ":END:\n* PROJECT X\n:PROPERTIES:\n:A: 1\n:A: 2\n:END:\nSCHEDULED: <2025-01-01>\nSCHEDULED: <2025-01-02>\n"
	is := check(t, doc, nil)
	want := []models.Code{
		models.CodeUnmatchedDrawerEnd,
		models.CodeDuplicateProperty,
		models.CodeDuplicateScheduled,
		models.CodeSchedulingAfterDrawer,
		models.CodeProjectNoProgress,
		models.CodeProjectMissingProp,
	}
	if len(is) != len(want) {
		t.Fatalf("issues = %v", is)
	}
	for i, c := range want {
		if is[i].Code != c {
			t.Errorf("issue %d = %s, want %s", i, is[i].Code, c)
		}
		if is[i].HeadingLine != 2 {
			t.Errorf("issue %d heading line = %d", i, is[i].HeadingLine)
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	cfg.ProjectStates = []string{"EPIC"}
	if err := cfg.Validate(); err == nil {
		t.Error("project state outside the allowed set should fail")
	}

	cfg = DefaultConfig()
	cfg.ActiveStates = append(cfg.ActiveStates, "lower")
	if err := cfg.Validate(); err == nil {
		t.Error("lowercase state should fail")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	tomlPath := filepath.Join(dir, "rules.toml")
	if err := os.WriteFile(tomlPath, []byte("check_next = false\nspecial_states = [\"INBOX\", \"HOLD\"]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFile(tomlPath)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.CheckNext || !cfg.CheckProjects || !cfg.Allowed("HOLD") {
		t.Errorf("cfg = %+v", cfg)
	}

	yamlPath := filepath.Join(dir, "rules.yaml")
	if err := os.WriteFile(yamlPath, []byte("project_states: [NOPE]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(yamlPath); err == nil {
		t.Error("expected validation error")
	}
}
