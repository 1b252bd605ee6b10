// Package report aggregates findings per document and across a batch and
// renders them as text, JSON, or YAML.
package report

import (
	"sort"

	"github.com/starford/tasklint/internal/models"
)

// Summary counts the findings of one document.
type Summary struct {
	Errors   int            `json:"errors" yaml:"errors"`
	Warnings int            `json:"warnings" yaml:"warnings"`
	Infos    int            `json:"infos" yaml:"infos"`
	Fixable  int            `json:"fixable" yaml:"fixable"`
	Issues   []models.Issue `json:"issues,omitempty" yaml:"issues,omitempty"`
}

// Summarize counts issues by severity.
func Summarize(issues []models.Issue) Summary {
	s := Summary{Issues: issues}
	for _, is := range issues {
		switch is.Severity {
		case models.SevError:
			s.Errors++
		case models.SevWarning:
			s.Warnings++
		default:
			s.Infos++
		}
		if is.Fixable {
			s.Fixable++
		}
	}
	return s
}

// Total returns the number of findings.
func (s Summary) Total() int { return s.Errors + s.Warnings + s.Infos }

// Status is the result of processing one document.
type Status string

const (
	StatusOK     Status = "ok"
	StatusIssues Status = "issues"
	StatusError  Status = "error"
)

// Outcome is the structured result for one document. Error is set when the
// document could not be read, backed up, or written.
type Outcome struct {
	Path       string          `json:"path" yaml:"path"`
	Status     Status          `json:"status" yaml:"status"`
	Error      string          `json:"error,omitempty" yaml:"error,omitempty"`
	Summary    Summary         `json:"summary" yaml:"summary"`
	Changes    []models.Change `json:"changes,omitempty" yaml:"changes,omitempty"`
	Warnings   []models.Issue  `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	BackupPath string          `json:"backup_path,omitempty" yaml:"backup_path,omitempty"`
	Written    bool            `json:"written,omitempty" yaml:"written,omitempty"`
}

// NewOutcome builds an outcome from a document's findings.
func NewOutcome(path string, issues []models.Issue) Outcome {
	o := Outcome{Path: path, Summary: Summarize(issues)}
	o.Status = StatusOK
	if o.Summary.Total() > 0 {
		o.Status = StatusIssues
	}
	return o
}

// Failed builds an outcome for a document that could not be processed.
func Failed(path string, err error) Outcome {
	return Outcome{Path: path, Status: StatusError, Error: err.Error()}
}

// Totals aggregates a batch.
type Totals struct {
	Documents int            `json:"documents" yaml:"documents"`
	Clean     int            `json:"clean" yaml:"clean"`
	Failed    int            `json:"failed" yaml:"failed"`
	Errors    int            `json:"errors" yaml:"errors"`
	Warnings  int            `json:"warnings" yaml:"warnings"`
	Infos     int            `json:"infos" yaml:"infos"`
	Fixable   int            `json:"fixable" yaml:"fixable"`
	Changes   int            `json:"changes" yaml:"changes"`
	Written   int            `json:"written" yaml:"written"`
	ByCode    map[string]int `json:"by_code,omitempty" yaml:"by_code,omitempty"`
}

// Failure is a document-level error collected during a batch.
type Failure struct {
	Path  string `json:"path" yaml:"path"`
	Error string `json:"error" yaml:"error"`
}

// Report is the result of a batch run.
type Report struct {
	Preview  bool      `json:"preview,omitempty" yaml:"preview,omitempty"`
	Outcomes []Outcome `json:"documents" yaml:"documents"`
	Totals   Totals    `json:"totals" yaml:"totals"`
	Failures []Failure `json:"failures,omitempty" yaml:"failures,omitempty"`
}

// Add appends o and updates the totals.
func (r *Report) Add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)

	t := &r.Totals
	t.Documents++
	if o.Status == StatusError {
		t.Failed++
		r.Failures = append(r.Failures, Failure{Path: o.Path, Error: o.Error})
		return
	}
	if o.Summary.Total() == 0 {
		t.Clean++
	}
	t.Errors += o.Summary.Errors
	t.Warnings += o.Summary.Warnings
	t.Infos += o.Summary.Infos
	t.Fixable += o.Summary.Fixable
	t.Changes += len(o.Changes)
	if o.Written {
		t.Written++
	}
	for _, is := range o.Summary.Issues {
		if t.ByCode == nil {
			t.ByCode = make(map[string]int)
		}
		t.ByCode[is.Code.String()]++
	}
}

// Sort orders outcomes by path.
func (r *Report) Sort() {
	sort.SliceStable(r.Outcomes, func(i, j int) bool { return r.Outcomes[i].Path < r.Outcomes[j].Path })
	sort.SliceStable(r.Failures, func(i, j int) bool { return r.Failures[i].Path < r.Failures[j].Path })
}

// HasErrors reports whether any document failed or has error-level findings.
func (r *Report) HasErrors() bool {
	return r.Totals.Failed > 0 || r.Totals.Errors > 0
}
