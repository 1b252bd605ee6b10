// Package parser turns outline documents into headings, drawers, tags, and
// scheduling annotations, collecting syntax defects as issues.
package parser

import (
	"strings"

	"github.com/starford/tasklint/internal/models"
)

// state is the forward-pass context. Only the current heading and the drawer
// it has open are tracked; everything else is already on the result.
type state struct {
	res *models.ParseResult
	cur *models.Heading

	inDrawer    bool
	drawerStart int
	drawerIdx   int // index into cur.Drawers of the open drawer, -1 for the preamble

	// open headings by level, for computing LineEnd
	stack []*models.Heading
	// issues found before the first heading
	pending []models.Issue
}

// ParseBytes splits data into lines and parses them.
func ParseBytes(data []byte) *models.ParseResult {
	lines, _ := SplitLines(data)
	return Parse(lines)
}

// Parse converts lines into a ParseResult. It never fails: malformed input
// is reported through Issues on the nearest heading, or on the result when
// the document has no heading at all.
func Parse(lines []string) *models.ParseResult {
	s := &state{
		res:       &models.ParseResult{LineCount: len(lines), Success: true},
		drawerIdx: -1,
	}
	for i, raw := range lines {
		s.line(i+1, raw)
	}
	s.finish(len(lines))
	return s.res
}

func (s *state) line(n int, raw string) {
	c := Classify(raw)
	switch c.Kind {
	case LineHeading:
		s.openHeading(n, c)
	case LineDrawerOpen:
		s.openDrawer(n)
	case LineDrawerClose:
		s.closeDrawer(n)
	case LineProperty:
		if s.inDrawer {
			s.property(n, c)
		}
	case LineScheduling:
		s.scheduling(n, raw)
	case LineLegacyRef:
		s.legacyRef(n, c)
	case LineFileKeyword:
		if s.cur == nil {
			s.res.FileProperties.Set(c.Key, c.Value, n)
		}
	}
}

func (s *state) openHeading(n int, c Line) {
	if s.inDrawer {
		s.report(models.ErrorAt(models.CodeUnclosedDrawer, s.drawerStart,
			"drawer opened on line %d is never closed", s.drawerStart))
		s.inDrawer = false
	}

	if s.cur != nil {
		settleRefs(s.cur)
	}

	for len(s.stack) > 0 && s.stack[len(s.stack)-1].Level >= c.Level {
		s.stack[len(s.stack)-1].LineEnd = n - 1
		s.stack = s.stack[:len(s.stack)-1]
	}

	ht := splitHeadingText(c.Text)
	h := &models.Heading{
		Level:     c.Level,
		LineStart: n,
		LineEnd:   n,
		State:     ht.state,
		Priority:  ht.priority,
		Title:     ht.title,
		Tags:      ht.tags,
	}
	if s.cur == nil {
		for _, is := range s.pending {
			h.Issues = append(h.Issues, is.On(n))
		}
		s.pending = nil
	}

	s.res.Headings = append(s.res.Headings, h)
	s.stack = append(s.stack, h)
	s.cur = h
	s.drawerIdx = -1
}

func (s *state) openDrawer(n int) {
	if s.inDrawer {
		s.report(s.fixable(models.ErrorAt(models.CodeNestedDrawer, n,
			"drawer opened while the drawer from line %d is still open", s.drawerStart)))
		if s.cur != nil {
			s.cur.Drawers = append(s.cur.Drawers, models.Drawer{Open: n, Nested: true})
		}
		return
	}
	s.inDrawer = true
	s.drawerStart = n
	s.drawerIdx = -1
	if s.cur != nil {
		s.cur.Drawers = append(s.cur.Drawers, models.Drawer{Open: n})
		s.drawerIdx = len(s.cur.Drawers) - 1
	}
}

func (s *state) closeDrawer(n int) {
	if !s.inDrawer {
		s.report(s.fixable(models.WarningAt(models.CodeUnmatchedDrawerEnd, n,
			"%s without an open drawer", models.DrawerCloseMarker)))
		return
	}
	s.inDrawer = false
	if s.cur != nil && s.drawerIdx >= 0 {
		s.cur.Drawers[s.drawerIdx].Close = n
	}
}

func (s *state) property(n int, c Line) {
	props := &s.res.FileProperties
	if s.cur != nil {
		props = &s.cur.Properties
	}
	if props.Set(c.Key, c.Value, n) {
		return
	}
	first, _ := props.Lookup(c.Key)
	s.report(s.fixable(models.ErrorAt(models.CodeDuplicateProperty, n,
		"duplicate property %s; value from line %d kept", c.Key, first.Line)))
}

func (s *state) scheduling(n int, raw string) {
	if s.cur == nil {
		s.report(models.WarningAt(models.CodeOrphanScheduling, n,
			"scheduling line before the first heading"))
		return
	}
	h := s.cur
	after := !s.inDrawer && len(h.Drawers) > 0
	for _, a := range Annotations(raw) {
		h.Annotations = append(h.Annotations, models.Annotation{
			Keyword:     a[0],
			Raw:         a[1],
			Line:        n,
			InDrawer:    s.inDrawer,
			AfterDrawer: after,
		})
		if s.inDrawer {
			continue
		}
		switch a[0] {
		case models.KeywordScheduled:
			if h.Scheduled == "" {
				h.Scheduled = a[1]
			}
		case models.KeywordDeadline:
			if h.Deadline == "" {
				h.Deadline = a[1]
			}
		}
	}
}

// legacyRef records an ID:: line. Outside a drawer it is an error; inside
// one it is a warning, since only the syntax is stale. Fixability is settled
// when the heading ends.
func (s *state) legacyRef(n int, c Line) {
	if s.cur != nil {
		s.cur.LegacyRefs = append(s.cur.LegacyRefs, models.LegacyRef{Line: n, Scheme: c.Scheme, Target: c.Target})
	}
	sev := models.SevError
	if s.inDrawer {
		sev = models.SevWarning
	}
	s.report(models.NewIssue(sev, models.CodeLegacyCrossRef, n,
		"legacy cross-reference [[%s:%s]] should be a %s property", c.Scheme, c.Target, models.PropZKNote))
}

// settleRefs marks the heading's legacy cross-references fixable when they
// can be folded into its first drawer: that drawer is closed, and the
// reference is the first one with no ZK_NOTE set or agrees with ZK_NOTE.
func settleRefs(h *models.Heading) {
	if len(h.LegacyRefs) == 0 || len(h.Drawers) == 0 || h.Drawers[0].Close == 0 {
		return
	}
	zk, _ := h.Properties.Get(models.PropZKNote)
	movable := make(map[int]bool, len(h.LegacyRefs))
	for _, r := range h.LegacyRefs {
		switch {
		case zk == "":
			zk = "[[" + r.Scheme + ":" + r.Target + "]]"
			movable[r.Line] = true
		case strings.Contains(zk, ":"+r.Target+"]]"):
			movable[r.Line] = true
		}
	}
	for i, is := range h.Issues {
		if is.Code == models.CodeLegacyCrossRef && movable[is.Line] {
			h.Issues[i] = is.AsFixable()
		}
	}
}

func (s *state) finish(total int) {
	if s.inDrawer {
		s.report(models.ErrorAt(models.CodeUnclosedDrawerAtEOF, s.drawerStart,
			"drawer opened on line %d is still open at end of file", s.drawerStart))
	}
	for _, h := range s.stack {
		h.LineEnd = total
	}
	if s.cur != nil {
		settleRefs(s.cur)
	}
	if s.cur == nil {
		s.res.Issues = append(s.res.Issues, s.pending...)
	}
}

// fixable marks is as repairable by the fixer, which leaves everything
// before the first heading untouched.
func (s *state) fixable(is models.Issue) models.Issue {
	if s.cur == nil {
		return is
	}
	return is.AsFixable()
}

// report attaches is to the current heading, or defers it until one opens.
func (s *state) report(is models.Issue) {
	if s.cur == nil {
		s.pending = append(s.pending, is)
		return
	}
	s.cur.Issues = append(s.cur.Issues, is.On(s.cur.LineStart))
}
