package rules

import (
	"regexp"
	"slices"
	"strings"
	"unicode"

	"github.com/starford/tasklint/internal/models"
	"github.com/starford/tasklint/internal/taskid"
)

var (
	progressRe = regexp.MustCompile(`\[\d+/\d+\]`)
	repeaterRe = regexp.MustCompile(`(?:\+{1,2}|\.\+)\d+[dwmy]`)
	tagCharRe  = regexp.MustCompile(`^[\p{L}\p{N}_@]+$`)
)

// Check validates doc against cfg and returns every finding in a stable
// order: document-level issues first, then for each heading its parser
// issues, duplicate-block issues, other structural issues, and workflow
// issues. A nil cfg means DefaultConfig.
func Check(doc *models.ParseResult, cfg *Config) []models.Issue {
	if cfg == nil {
		d := DefaultConfig()
		cfg = &d
	}

	out := append([]models.Issue(nil), doc.Issues...)
	ids := make(map[string]int)
	for _, h := range doc.Headings {
		c := &collector{h: h}
		c.add(h.Issues...)
		dup := duplicates(c, h)
		structural(c, h, dup, ids)
		workflow(c, h, cfg)
		out = append(out, c.issues...)
	}
	return out
}

type collector struct {
	h      *models.Heading
	issues []models.Issue
}

func (c *collector) add(is ...models.Issue) {
	for _, i := range is {
		c.issues = append(c.issues, i.On(c.h.LineStart))
	}
}

// duplicates reports repeated scheduling keywords and extra drawers. It
// returns the annotation indexes already reported as duplicates. A repeat is
// fixable only when nothing else on its line is new.
func duplicates(c *collector, h *models.Heading) map[int]bool {
	dup := make(map[int]bool)
	first := make(map[string]int)
	stale := staleLines(h.Annotations)
	for i, a := range h.Annotations {
		line, seen := first[a.Keyword]
		if !seen {
			first[a.Keyword] = a.Line
			continue
		}
		dup[i] = true
		code := models.CodeDuplicateScheduled
		if a.Keyword == models.KeywordDeadline {
			code = models.CodeDuplicateDeadline
		}
		is := models.ErrorAt(code, a.Line, "duplicate %s (first on line %d)", a.Keyword, line)
		if stale[a.Line] {
			is = is.AsFixable()
		}
		c.add(is)
	}

	if len(h.Drawers) > 1 {
		for _, d := range h.Drawers[1:] {
			c.add(models.ErrorAt(models.CodeMultipleDrawers, d.Open,
				"multiple drawers under heading (first on line %d)", h.Drawers[0].Open).AsFixable())
		}
	}
	return dup
}

// staleLines returns the scheduling lines whose every keyword already
// appeared on an earlier line of the same heading.
func staleLines(anns []models.Annotation) map[int]bool {
	seen := make(map[string]bool)
	stale := make(map[int]bool)
	for i := 0; i < len(anns); {
		line := anns[i].Line
		j := i
		fresh := false
		for ; j < len(anns) && anns[j].Line == line; j++ {
			if !seen[anns[j].Keyword] {
				fresh = true
			}
		}
		if !fresh {
			stale[line] = true
		}
		for ; i < j; i++ {
			seen[anns[i].Keyword] = true
		}
	}
	return stale
}

func structural(c *collector, h *models.Heading, dup map[int]bool, ids map[string]int) {
	for _, tag := range h.Tags {
		switch {
		case strings.IndexFunc(tag, unicode.IsSpace) >= 0:
			c.add(models.ErrorAt(models.CodeTagWhitespace, h.LineStart, "tag %q contains whitespace", tag))
		case !tagCharRe.MatchString(tag):
			c.add(models.WarningAt(models.CodeTagCharacters, h.LineStart,
				"tag %q should only contain letters, digits, '_' or '@'", tag))
		}
	}

	for i, a := range h.Annotations {
		if dup[i] {
			continue
		}
		switch {
		case a.InDrawer:
			c.add(models.ErrorAt(models.CodeSchedulingInDrawer, a.Line,
				"%s inside drawer; it belongs directly under the heading", a.Keyword).AsFixable())
		case a.AfterDrawer:
			c.add(models.WarningAt(models.CodeSchedulingAfterDrawer, a.Line,
				"%s after drawer; it belongs before the drawer", a.Keyword).AsFixable())
		}
	}

	if p, ok := h.Properties.Lookup(models.PropTaskID); ok {
		if !taskid.IsValid(p.Value) {
			c.add(models.ErrorAt(models.CodeMalformedTaskID, p.Line, "malformed %s %q", models.PropTaskID, p.Value))
		} else if first, seen := ids[p.Value]; seen {
			c.add(models.ErrorAt(models.CodeDuplicateTaskID, p.Line,
				"%s %s already used on line %d", models.PropTaskID, p.Value, first))
		} else {
			ids[p.Value] = p.Line
		}
	}
}

func workflow(c *collector, h *models.Heading, cfg *Config) {
	if h.State != "" {
		if cfg.CheckStates && !cfg.Allowed(h.State) {
			c.add(models.WarningAt(models.CodeUnknownState, h.LineStart,
				"unknown state %q; allowed: %s", h.State, strings.Join(cfg.AllowedStates(), ", ")))
		}

		if cfg.CheckProjects && slices.Contains(cfg.ProjectStates, h.State) {
			if !progressRe.MatchString(h.Title) {
				c.add(models.WarningAt(models.CodeProjectNoProgress, h.LineStart,
					"project %q has no progress tracker [n/m]", h.Title))
			}
			for _, key := range cfg.ProjectRequiredProperties {
				if !h.Properties.Has(key) {
					c.add(models.WarningAt(models.CodeProjectMissingProp, h.LineStart,
						"project %q is missing property %s", h.Title, strings.ToUpper(key)))
				}
			}
		}

		if cfg.CheckNext && slices.Contains(cfg.NextStates, h.State) && !h.HasScheduling() {
			c.add(models.InfoAt(models.CodeNextUnscheduled, h.LineStart,
				"next action %q has no SCHEDULED or DEADLINE", h.Title))
		}

		if cfg.CheckWaiting && slices.Contains(cfg.WaitingStates, h.State) && !h.HasScheduling() && !hasAny(h, cfg.WaitingProperties) {
			c.add(models.InfoAt(models.CodeWaitingNoFollowUp, h.LineStart,
				"waiting item %q has no follow-up date or %s property", h.Title, strings.Join(cfg.WaitingProperties, "/")))
		}
	}

	if cfg.CheckRecurring && cfg.isRecurring(h) && !repeaterRe.MatchString(h.Scheduled) {
		c.add(models.WarningAt(models.CodeRecurringNoInterval, h.LineStart,
			"recurring task %q has no repeat interval (+1d, ++1w, .+1m) on SCHEDULED", h.Title))
	}
}

func hasAny(h *models.Heading, keys []string) bool {
	for _, k := range keys {
		if h.Properties.Has(k) {
			return true
		}
	}
	return false
}
