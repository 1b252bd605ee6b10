package fixer

import (
	"strings"

	"github.com/starford/tasklint/internal/models"
	"github.com/starford/tasklint/internal/parser"
	"github.com/starford/tasklint/internal/taskid"
)

// drawerState tracks the first drawer of a section. drawerMerging means a
// later drawer is open and its content is being folded into the first.
type drawerState uint8

const (
	drawerNone drawerState = iota
	drawerOpen
	drawerClosed
	drawerMerging
)

// entry is one buffered output line. A non-zero ref marks a legacy
// cross-reference whose fate is decided when the section is assembled.
type entry struct {
	text string
	ref  int
}

type legacyRef struct {
	line   int
	raw    string
	scheme string
	target string
	drop   bool
}

// section buffers one heading and the lines up to the next heading.
type section struct {
	start int

	pre       []entry // heading line and content before the first drawer
	relocated []entry // scheduling lines moved in front of the drawer
	body      []entry // first drawer content
	merged    []entry // content folded in from later drawers
	post      []entry // content after the first drawer

	drawer    drawerState
	open      string
	openLine  int
	close     string
	closeLine int

	props        map[string]bool
	scheduled    map[string]bool
	hasTaskID    bool
	legacyID     string
	legacyIDLine int
	zkNote       string
	refs         []legacyRef
}

func newSection(n int, heading string) *section {
	return &section{
		start:     n,
		pre:       []entry{{text: heading}},
		props:     make(map[string]bool),
		scheduled: make(map[string]bool),
	}
}

func (s *section) inDrawer() bool {
	return s.drawer == drawerOpen || s.drawer == drawerMerging
}

func (s *section) target() *[]entry {
	switch s.drawer {
	case drawerOpen:
		return &s.body
	case drawerClosed:
		return &s.post
	case drawerMerging:
		return &s.merged
	}
	return &s.pre
}

func (s *section) emit(raw string) {
	t := s.target()
	*t = append(*t, entry{text: raw})
}

func (s *section) addRef(n int, raw string, c parser.Line) {
	s.refs = append(s.refs, legacyRef{line: n, raw: raw, scheme: c.Scheme, target: c.Target})
	t := s.target()
	*t = append(*t, entry{text: raw, ref: len(s.refs)})
}

// assemble resolves pending decisions and appends the section to p.out.
func (s *section) assemble(p *pass) []string {
	indent := leadingSpace(s.open)

	var taskIDLine, zkLine string
	if s.drawer != drawerNone && !s.hasTaskID && s.legacyID != "" {
		if id, ok := s.taskIDFromLegacy(p); ok {
			taskIDLine = indent + ":" + models.PropTaskID + ": " + id
			p.change(s.openLine, models.ChangeAdd, models.PropTaskID+" from legacy "+models.PropLegacyID, "", taskIDLine)
		}
	}

	closed := s.closeLine > 0
	zk := s.zkNote
	for i := range s.refs {
		r := &s.refs[i]
		switch {
		case !closed:
			p.warn(models.WarningAt(models.CodeOrphanCrossRef, r.line,
				"legacy cross-reference [[%s:%s]] has no closed drawer to move into; review manually", r.scheme, r.target))
		case zk == "":
			zk = "[[" + r.scheme + ":" + r.target + "]]"
			zkLine = indent + ":" + models.PropZKNote + ": " + zk
			r.drop = true
			p.change(r.line, models.ChangeRemove, "convert legacy cross-reference to "+models.PropZKNote, r.raw, "")
			p.change(s.closeLine, models.ChangeAdd, "convert legacy cross-reference to "+models.PropZKNote, "", zkLine)
		case strings.Contains(zk, ":"+r.target+"]]"):
			r.drop = true
			p.change(r.line, models.ChangeRemove, "legacy cross-reference already recorded in "+models.PropZKNote, r.raw, "")
		default:
			p.warn(models.WarningAt(models.CodeConflictingXref, r.line,
				"legacy cross-reference [[%s:%s]] conflicts with %s %s; review manually", r.scheme, r.target, models.PropZKNote, zk))
		}
	}

	out := p.out
	out = s.appendEntries(out, s.pre)
	out = s.appendEntries(out, s.relocated)
	if s.drawer != drawerNone {
		out = append(out, s.open)
		if taskIDLine != "" {
			out = append(out, taskIDLine)
		}
	}
	out = s.appendEntries(out, s.body)
	out = s.appendEntries(out, s.merged)
	if zkLine != "" {
		out = append(out, zkLine)
	}
	if closed {
		out = append(out, s.close)
	}
	return s.appendEntries(out, s.post)
}

func (s *section) taskIDFromLegacy(p *pass) (string, bool) {
	if id, ok := taskid.FromLegacy(s.legacyID); ok {
		return id.String(), true
	}
	if p.opts.minter != nil {
		return p.opts.minter.Generate().String(), true
	}
	p.warn(models.WarningAt(models.CodeMalformedTaskID, s.legacyIDLine,
		"legacy %s %q is not a valid task id; assign %s manually", models.PropLegacyID, s.legacyID, models.PropTaskID))
	return "", false
}

func (s *section) appendEntries(out []string, entries []entry) []string {
	for _, e := range entries {
		if e.ref > 0 && s.refs[e.ref-1].drop {
			continue
		}
		out = append(out, e.text)
	}
	return out
}

func leadingSpace(s string) string {
	return s[:len(s)-len(strings.TrimLeft(s, " \t"))]
}

// replaceValue swaps the trailing value of a property line, keeping the key
// and its spacing.
func replaceValue(raw, old, repl string) string {
	i := strings.LastIndex(raw, old)
	if i < 0 || old == "" {
		return strings.TrimRight(raw, " \t") + " " + repl
	}
	return raw[:i] + repl + raw[i+len(old):]
}
