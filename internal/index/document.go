package index

import (
	"time"

	"github.com/starford/tasklint/internal/checksum"
	"github.com/starford/tasklint/internal/models"
	"github.com/starford/tasklint/internal/parser"
	"github.com/starford/tasklint/internal/report"
	"github.com/starford/tasklint/internal/rules"
)

// Checked is a parsed and validated document ready for storage.
type Checked struct {
	Path     string
	Checksum string
	Doc      *models.ParseResult
	Issues   []models.Issue
}

// CheckDocument parses data and runs the rules over it.
func CheckDocument(path string, data []byte, cfg *rules.Config) Checked {
	doc := parser.ParseBytes(data)
	return Checked{
		Path:     path,
		Checksum: checksum.Sum(data),
		Doc:      doc,
		Issues:   rules.Check(doc, cfg),
	}
}

// Rows converts a checked document into index rows.
func (c Checked) Rows(ruleset string) (DocumentRow, []HeadingRow) {
	sum := report.Summarize(c.Issues)
	d := DocumentRow{
		Path:      c.Path,
		Title:     c.Doc.Title(),
		Checksum:  c.Checksum,
		Ruleset:   ruleset,
		Headings:  len(c.Doc.Headings),
		Errors:    sum.Errors,
		Warnings:  sum.Warnings,
		Infos:     sum.Infos,
		Fixable:   sum.Fixable,
		UpdatedAt: time.Now().UTC(),
	}
	hs := make([]HeadingRow, 0, len(c.Doc.Headings))
	for _, h := range c.Doc.Headings {
		hs = append(hs, HeadingRow{
			Path:      c.Path,
			Line:      h.LineStart,
			Level:     h.Level,
			State:     h.State,
			Priority:  h.Priority,
			Title:     h.Title,
			Tags:      nonNil(h.Tags),
			TaskID:    h.TaskID(),
			Scheduled: h.Scheduled,
			Deadline:  h.Deadline,
		})
	}
	return d, hs
}

// Store upserts c into idx.
func (c Checked) Store(idx DocumentIndex, ruleset string) error {
	d, hs := c.Rows(ruleset)
	return idx.UpsertDocument(d, hs, c.Issues)
}

// IndexDocument parses, checks and stores one document.
func IndexDocument(idx DocumentIndex, path string, data []byte, cfg *rules.Config) (Checked, error) {
	cfg = orDefault(cfg)
	c := CheckDocument(path, data, cfg)
	return c, c.Store(idx, cfg.Fingerprint())
}

func orDefault(cfg *rules.Config) *rules.Config {
	if cfg == nil {
		def := rules.DefaultConfig()
		return &def
	}
	return cfg
}
