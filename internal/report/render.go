package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
	"gopkg.in/yaml.v3"

	"github.com/starford/tasklint/internal/models"
)

// Format selects a renderer.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatText, nil
	}
	return "", fmt.Errorf("report: unknown format %q (text|json|yaml)", s)
}

// TextOptions tune the text renderer.
type TextOptions struct {
	Color bool
	// ShowClean lists documents without findings.
	ShowClean bool
	// ShowChanges lists every fixer edit.
	ShowChanges bool
}

// Write renders r in format f.
func Write(w io.Writer, r *Report, f Format, opts TextOptions) error {
	switch f {
	case FormatJSON:
		return WriteJSON(w, r)
	case FormatYAML:
		return WriteYAML(w, r)
	default:
		return WriteText(w, r, opts)
	}
}

// WriteJSON renders r as indented JSON.
func WriteJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("report: encode json: %w", err)
	}
	return nil
}

// WriteYAML renders r as YAML.
func WriteYAML(w io.Writer, r *Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("report: encode yaml: %w", err)
	}
	return enc.Close()
}

// WriteText renders r for a terminal.
func WriteText(w io.Writer, r *Report, opts TextOptions) error {
	p := newPalette(opts.Color)
	tw := &textWriter{w: w}

	width := 0
	for _, o := range r.Outcomes {
		if shown(o, opts) {
			width = max(width, runewidth.StringWidth(o.Path))
		}
	}

	for _, o := range r.Outcomes {
		if !shown(o, opts) {
			continue
		}
		tw.printf("%s  %s\n", p.path.Sprint(runewidth.FillRight(o.Path, width)), outcomeLabel(p, o, r.Preview))
		if o.Status == StatusError {
			tw.printf("  %s %s\n", p.err.Sprint("error:"), o.Error)
			continue
		}

		lw := lineWidth(o)
		for _, is := range o.Summary.Issues {
			tw.printf("  %s  %s  %s  %s", padLeft(strconv.Itoa(is.Line), lw), severity(p, is.Severity), p.dim.Sprint(is.Code), is.Message)
			if is.Fixable {
				tw.printf(" %s", p.dim.Sprint("(fixable)"))
			}
			tw.printf("\n")
		}
		for _, is := range o.Warnings {
			tw.printf("  %s  %s  %s  %s\n", padLeft(strconv.Itoa(is.Line), lw), severity(p, is.Severity), p.dim.Sprint(is.Code), is.Message)
		}
		if opts.ShowChanges {
			for _, c := range o.Changes {
				tw.printf("  %s  %s  %s\n", padLeft(strconv.Itoa(c.Line), lw), runewidth.FillRight(string(c.Kind), 6), c.Reason)
			}
		}
		if o.BackupPath != "" {
			tw.printf("  %s %s\n", p.dim.Sprint("backup:"), o.BackupPath)
		}
	}

	t := r.Totals
	if len(r.Outcomes) > 0 {
		tw.printf("\n")
	}
	tw.printf("%d %s, %d clean, %d failed: %s, %s, %s (%d fixable)",
		t.Documents, plural(t.Documents, "document"), t.Clean, t.Failed,
		p.err.Sprintf("%d %s", t.Errors, plural(t.Errors, "error")),
		p.warn.Sprintf("%d %s", t.Warnings, plural(t.Warnings, "warning")),
		p.info.Sprintf("%d %s", t.Infos, plural(t.Infos, "info")),
		t.Fixable)
	if t.Changes > 0 || t.Written > 0 {
		tw.printf(", %d %s, %d written", t.Changes, plural(t.Changes, "change"), t.Written)
	}
	tw.printf("\n")
	return tw.err
}

func shown(o Outcome, opts TextOptions) bool {
	return opts.ShowClean || o.Status == StatusError || o.Summary.Total() > 0 || len(o.Changes) > 0 || len(o.Warnings) > 0
}

func outcomeLabel(p palette, o Outcome, preview bool) string {
	switch {
	case o.Status == StatusError:
		return p.err.Sprint("failed")
	case len(o.Changes) > 0 && o.Written:
		return p.ok.Sprintf("fixed (%d %s)", len(o.Changes), plural(len(o.Changes), "change"))
	case len(o.Changes) > 0 && preview:
		return p.warn.Sprintf("would change (%d)", len(o.Changes))
	case len(o.Changes) > 0:
		return p.warn.Sprintf("%d pending %s", len(o.Changes), plural(len(o.Changes), "change"))
	case o.Summary.Total() == 0:
		return p.ok.Sprint("ok")
	}
	return fmt.Sprintf("%d %s", o.Summary.Total(), plural(o.Summary.Total(), "issue"))
}

func severity(p palette, s models.Severity) string {
	label := runewidth.FillRight(s.String(), 7)
	switch s {
	case models.SevError:
		return p.err.Sprint(label)
	case models.SevWarning:
		return p.warn.Sprint(label)
	}
	return p.info.Sprint(label)
}

func lineWidth(o Outcome) int {
	n := 0
	for _, is := range o.Summary.Issues {
		n = max(n, is.Line)
	}
	for _, is := range o.Warnings {
		n = max(n, is.Line)
	}
	for _, c := range o.Changes {
		n = max(n, c.Line)
	}
	return len(strconv.Itoa(n))
}

func padLeft(s string, width int) string {
	if pad := width - runewidth.StringWidth(s); pad > 0 {
		return strings.Repeat(" ", pad) + s
	}
	return s
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

// textWriter remembers the first write error.
type textWriter struct {
	w   io.Writer
	err error
}

func (t *textWriter) printf(format string, args ...any) {
	if t.err != nil {
		return
	}
	_, t.err = fmt.Fprintf(t.w, format, args...)
}
