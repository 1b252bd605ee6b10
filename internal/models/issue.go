package models

import (
	"fmt"
	"strings"
)

// Severity grades an Issue.
type Severity uint8

const (
	SevInfo Severity = iota
	SevWarning
	SevError
)

func (s Severity) String() string {
	switch s {
	case SevInfo:
		return "info"
	case SevWarning:
		return "warning"
	case SevError:
		return "error"
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(b []byte) error {
	v, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseSeverity converts "info", "warning" or "error" to a Severity.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "info":
		return SevInfo, nil
	case "warning", "warn":
		return SevWarning, nil
	case "error":
		return SevError, nil
	}
	return SevInfo, fmt.Errorf("unknown severity %q", s)
}

// Code is a stable identifier for a kind of finding.
type Code uint16

const (
	CodeUnknown Code = 0

	// Syntax defects found by the parser.
	CodeUnclosedDrawer      Code = 101
	CodeNestedDrawer        Code = 102
	CodeUnmatchedDrawerEnd  Code = 103
	CodeDuplicateProperty   Code = 104
	CodeLegacyCrossRef      Code = 105
	CodeOrphanScheduling    Code = 106
	CodeUnclosedDrawerAtEOF Code = 107

	// Structural rules.
	CodeDuplicateScheduled    Code = 201
	CodeDuplicateDeadline     Code = 202
	CodeMultipleDrawers       Code = 203
	CodeTagWhitespace         Code = 204
	CodeTagCharacters         Code = 205
	CodeSchedulingInDrawer    Code = 206
	CodeSchedulingAfterDrawer Code = 207
	CodeDuplicateTaskID       Code = 208
	CodeMalformedTaskID       Code = 209

	// Workflow rules.
	CodeUnknownState        Code = 301
	CodeProjectNoProgress   Code = 302
	CodeProjectMissingProp  Code = 303
	CodeNextUnscheduled     Code = 304
	CodeWaitingNoFollowUp   Code = 305
	CodeRecurringNoInterval Code = 306

	// Manual review notes emitted by the fixer.
	CodeOrphanCrossRef     Code = 401
	CodeConflictingXref    Code = 402
	CodeUnparseableCreated Code = 403
)

func (c Code) String() string {
	return fmt.Sprintf("TL%03d", uint16(c))
}

// MarshalText implements encoding.TextMarshaler.
func (c Code) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Code) UnmarshalText(b []byte) error {
	var n uint16
	if _, err := fmt.Sscanf(string(b), "TL%d", &n); err != nil {
		return fmt.Errorf("invalid issue code %q", b)
	}
	*c = Code(n)
	return nil
}

// Issue is one finding about a document.
type Issue struct {
	Severity    Severity `json:"severity" yaml:"severity"`
	Code        Code     `json:"code" yaml:"code"`
	Line        int      `json:"line" yaml:"line"`
	Message     string   `json:"message" yaml:"message"`
	Fixable     bool     `json:"fixable" yaml:"fixable"`
	HeadingLine int      `json:"heading_line,omitempty" yaml:"heading_line,omitempty"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%d: %s %s: %s", i.Line, i.Severity, i.Code, i.Message)
}

// NewIssue builds an Issue.
func NewIssue(sev Severity, code Code, line int, format string, args ...any) Issue {
	return Issue{Severity: sev, Code: code, Line: line, Message: fmt.Sprintf(format, args...)}
}

// ErrorAt is a shortcut for SevError issues.
func ErrorAt(code Code, line int, format string, args ...any) Issue {
	return NewIssue(SevError, code, line, format, args...)
}

// WarningAt is a shortcut for SevWarning issues.
func WarningAt(code Code, line int, format string, args ...any) Issue {
	return NewIssue(SevWarning, code, line, format, args...)
}

// InfoAt is a shortcut for SevInfo issues.
func InfoAt(code Code, line int, format string, args ...any) Issue {
	return NewIssue(SevInfo, code, line, format, args...)
}

// AsFixable marks the issue as repairable by the fixer.
func (i Issue) AsFixable() Issue {
	i.Fixable = true
	return i
}

// On attaches the issue to the heading starting at line.
func (i Issue) On(headingLine int) Issue {
	i.HeadingLine = headingLine
	return i
}
