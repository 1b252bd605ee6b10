package taskid

import (
	"fmt"
	"strings"

	"github.com/starford/tasklint/internal/apperr"
	"github.com/starford/tasklint/internal/models"
	"github.com/starford/tasklint/internal/parser"
)

// EnsureResult is the outcome of Ensure.
type EnsureResult struct {
	ID ID
	// Lines is the document after the edit. It equals the input when Created
	// is false.
	Lines   []string
	Created bool
	Changes []models.Change
}

// Ensure returns the identifier of the heading at headingIndex (0-based,
// document order), inserting one when the heading has none. A valid legacy
// ID property is carried over as TASK_ID, the same way the fixer migrates it;
// otherwise a new identifier is minted. An existing well-formed TASK_ID is
// never replaced; a malformed one is reported as apperr.ErrMalformedID.
// lines is not modified.
func Ensure(lines []string, headingIndex int, m Minter) (EnsureResult, error) {
	doc := parser.Parse(lines)
	if headingIndex < 0 || headingIndex >= len(doc.Headings) {
		return EnsureResult{}, fmt.Errorf("taskid: ensure: heading %d: %w", headingIndex, apperr.ErrNotFound)
	}
	h := doc.Headings[headingIndex]

	if v, ok := h.Properties.Get(models.PropTaskID); ok {
		id, err := Parse(v)
		if err != nil {
			return EnsureResult{}, fmt.Errorf("taskid: ensure: heading on line %d: %w", h.LineStart, err)
		}
		return EnsureResult{ID: id, Lines: lines}, nil
	}

	reason := "assign " + models.PropTaskID
	id, ok := ID{}, false
	if v, has := h.Properties.Get(models.PropLegacyID); has {
		id, ok = FromLegacy(v)
	}
	if ok {
		reason = models.PropTaskID + " from legacy " + models.PropLegacyID
	} else {
		id = m.Generate()
	}
	var (
		at     int // insert before this 0-based index
		insert []string
		anchor int
	)
	if open := primaryDrawer(h); open > 0 {
		indent := leadingSpace(lines[open-1])
		at, anchor = open, open
		insert = []string{indent + ":" + models.PropTaskID + ": " + id.String()}
	} else {
		at = h.LineStart
		for at < len(lines) && parser.Classify(lines[at]).Kind == parser.LineScheduling {
			at++
		}
		anchor = at
		insert = []string{
			models.DrawerOpenMarker,
			":" + models.PropTaskID + ": " + id.String(),
			models.DrawerCloseMarker,
		}
	}

	out := make([]string, 0, len(lines)+len(insert))
	out = append(out, lines[:at]...)
	out = append(out, insert...)
	out = append(out, lines[at:]...)

	changes := make([]models.Change, 0, len(insert))
	for _, l := range insert {
		changes = append(changes, models.Change{
			Line:   anchor,
			Kind:   models.ChangeAdd,
			Reason: reason,
			To:     l,
		})
	}
	return EnsureResult{ID: id, Lines: out, Created: true, Changes: changes}, nil
}

// primaryDrawer returns the 1-based open line of the heading's first
// top-level drawer, or 0.
func primaryDrawer(h *models.Heading) int {
	for _, d := range h.Drawers {
		if !d.Nested {
			return d.Open
		}
	}
	return 0
}

func leadingSpace(s string) string {
	return s[:len(s)-len(strings.TrimLeft(s, " \t"))]
}
