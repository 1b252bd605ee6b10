// Package fixer rewrites outline documents to repair structural defects:
// duplicated drawers and properties, misplaced or repeated scheduling lines,
// legacy cross-references, and non-canonical CREATED stamps.
//
// Every repair fires only when its defect pattern is present, so running the
// fixer over its own output yields no changes.
package fixer

import (
	"fmt"
	"io"
	"sort"

	"github.com/starford/tasklint/internal/apperr"
	"github.com/starford/tasklint/internal/models"
	"github.com/starford/tasklint/internal/parser"
	"github.com/starford/tasklint/internal/taskid"
)

// Result is the outcome of a fixer pass.
type Result struct {
	Lines   []string        `json:"-"`
	Changes []models.Change `json:"changes"`
	// Warnings are defects the fixer left for manual review.
	Warnings []models.Issue `json:"warnings,omitempty"`

	trailingNewline bool
}

// Changed reports whether the pass edited anything.
func (r Result) Changed() bool { return len(r.Changes) > 0 }

// Bytes joins Lines, restoring the input's trailing newline when the result
// came from FixBytes or FixReader.
func (r Result) Bytes() []byte {
	return parser.JoinLines(r.Lines, r.trailingNewline)
}

type options struct {
	minter taskid.Minter
}

// Option configures a fixer pass.
type Option func(*options)

// WithGenerator supplies identifier minting for headings whose legacy ID
// property is not a valid task identifier. Without it such headings are
// reported instead of repaired.
func WithGenerator(m taskid.Minter) Option {
	return func(o *options) { o.minter = m }
}

// Fix returns the repaired lines and the audit log of edits. lines is not
// modified.
func Fix(lines []string, opts ...Option) ([]string, []models.Change) {
	r := FixWithReport(lines, opts...)
	return r.Lines, r.Changes
}

// FixBytes splits data into lines and fixes them.
func FixBytes(data []byte, opts ...Option) Result {
	lines, trailing := parser.SplitLines(data)
	r := FixWithReport(lines, opts...)
	r.trailingNewline = trailing
	return r
}

// FixReader reads the whole document from rd and fixes it. It is the only
// entry point that fails, and only when rd cannot be read.
func FixReader(rd io.Reader, opts ...Option) (Result, error) {
	data, err := io.ReadAll(rd)
	if err != nil {
		return Result{}, fmt.Errorf("fixer: read: %w: %w", apperr.ErrUnreadable, err)
	}
	return FixBytes(data, opts...), nil
}

// FixWithReport runs a fixer pass and also returns manual-review warnings.
func FixWithReport(lines []string, opts ...Option) Result {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	p := &pass{opts: o, out: make([]string, 0, len(lines))}
	for i, raw := range lines {
		p.line(i+1, raw)
	}
	p.flush()

	sort.SliceStable(p.changes, func(i, j int) bool { return p.changes[i].Line < p.changes[j].Line })
	sort.SliceStable(p.warnings, func(i, j int) bool { return p.warnings[i].Line < p.warnings[j].Line })
	return Result{Lines: p.out, Changes: p.changes, Warnings: p.warnings}
}

type pass struct {
	opts     options
	out      []string
	changes  []models.Change
	warnings []models.Issue
	sec      *section // nil before the first heading
}

func (p *pass) change(line int, kind models.ChangeKind, reason, from, to string) {
	p.changes = append(p.changes, models.Change{Line: line, Kind: kind, Reason: reason, From: from, To: to})
}

func (p *pass) warn(is models.Issue) {
	if p.sec != nil {
		is = is.On(p.sec.start)
	}
	p.warnings = append(p.warnings, is)
}

func (p *pass) line(n int, raw string) {
	c := parser.Classify(raw)
	if c.Kind == parser.LineHeading {
		p.flush()
		p.sec = newSection(n, raw)
		return
	}
	if p.sec == nil {
		if c.Kind == parser.LineLegacyRef {
			p.warn(models.WarningAt(models.CodeOrphanCrossRef, n,
				"legacy cross-reference [[%s:%s]] has no heading to attach to; review manually", c.Scheme, c.Target))
		}
		p.out = append(p.out, raw)
		return
	}

	s := p.sec
	switch c.Kind {
	case parser.LineDrawerOpen:
		switch s.drawer {
		case drawerNone:
			s.drawer = drawerOpen
			s.open, s.openLine = raw, n
		case drawerClosed:
			s.drawer = drawerMerging
			p.change(n, models.ChangeRemove, "merge duplicate drawer into the first one", raw, "")
		default:
			p.change(n, models.ChangeRemove, "drop nested drawer marker", raw, "")
		}
		return

	case parser.LineDrawerClose:
		switch s.drawer {
		case drawerOpen:
			s.drawer = drawerClosed
			s.close, s.closeLine = raw, n
		case drawerMerging:
			s.drawer = drawerClosed
			p.change(n, models.ChangeRemove, "merge duplicate drawer into the first one", raw, "")
		default:
			p.change(n, models.ChangeRemove, "drop unmatched "+models.DrawerCloseMarker, raw, "")
		}
		return

	case parser.LineProperty:
		if s.inDrawer() {
			p.property(n, raw, c)
			return
		}

	case parser.LineScheduling:
		p.scheduling(n, raw)
		return

	case parser.LineLegacyRef:
		s.addRef(n, raw, c)
		return
	}

	p.text(n, raw)
}

// text appends a pass-through line to wherever the section currently is.
func (p *pass) text(n int, raw string) {
	s := p.sec
	if s.drawer == drawerMerging {
		p.change(n, models.ChangeMove, "merge duplicate drawer into the first one", raw, raw)
	}
	s.emit(raw)
}

func (p *pass) property(n int, raw string, c parser.Line) {
	s := p.sec
	if s.props[c.Key] {
		p.change(n, models.ChangeRemove, "drop duplicate property "+c.Key, raw, "")
		return
	}
	s.props[c.Key] = true

	switch c.Key {
	case models.PropTaskID:
		s.hasTaskID = true
	case models.PropLegacyID:
		s.legacyID, s.legacyIDLine = c.Value, n
	case models.PropZKNote:
		s.zkNote = c.Value
	case models.PropCreated:
		raw = p.created(n, raw, c.Value)
	}

	p.text(n, raw)
}

func (p *pass) scheduling(n int, raw string) {
	s := p.sec
	fresh := false
	for _, a := range parser.Annotations(raw) {
		if !s.scheduled[a[0]] {
			fresh = true
			s.scheduled[a[0]] = true
		}
	}
	if !fresh {
		p.change(n, models.ChangeRemove, "drop duplicate "+parser.Classify(raw).Keyword, raw, "")
		return
	}
	if s.drawer == drawerNone {
		s.pre = append(s.pre, entry{text: raw})
		return
	}
	s.relocated = append(s.relocated, entry{text: raw})
	p.change(n, models.ChangeMove, "move "+parser.Classify(raw).Keyword+" before the drawer", raw, raw)
}

func (p *pass) created(n int, raw, value string) string {
	canon, ok := NormalizeCreated(value)
	switch {
	case !ok:
		p.warn(models.WarningAt(models.CodeUnparseableCreated, n,
			"%s value %q is not a recognised timestamp; review manually", models.PropCreated, value))
		return raw
	case canon == value:
		return raw
	}
	fixed := replaceValue(raw, value, canon)
	p.change(n, models.ChangeModify, "normalise "+models.PropCreated+" timestamp", raw, fixed)
	return fixed
}

func (p *pass) flush() {
	if p.sec == nil {
		return
	}
	p.out = p.sec.assemble(p)
	p.sec = nil
}
