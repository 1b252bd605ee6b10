package fixer

import (
	"regexp"
	"strings"
	"time"
)

var canonicalCreatedRe = regexp.MustCompile(`^\[\d{4}-\d{2}-\d{2} [A-Z][a-z]{2}( \d{2}:\d{2})?\]$`)

var createdLayouts = []struct {
	layout   string
	withTime bool
}{
	{"2006-01-02 Mon 15:04", true},
	{"2006-01-02 Mon", false},
	{"2006-01-02 15:04", true},
	{"2006-01-02 15:04:05", true},
	{time.RFC3339, true},
	{"2006-01-02T15:04:05", true},
	{"2006-01-02T15:04", true},
	{"2006-01-02", false},
	{"2006/01/02 15:04", true},
	{"2006/01/02", false},
	{"20060102150405", true},
	{"20060102", false},
}

// NormalizeCreated converts a CREATED value to the bracketed
// "[2006-01-02 Mon]" or "[2006-01-02 Mon 15:04]" form. Canonical values are
// returned unchanged. It reports false when the value is not a timestamp.
func NormalizeCreated(value string) (string, bool) {
	v := strings.TrimSpace(value)
	if canonicalCreatedRe.MatchString(v) {
		return value, true
	}

	inner := strings.TrimSpace(strings.Trim(v, "[]<>"))
	for _, l := range createdLayouts {
		t, err := time.Parse(l.layout, inner)
		if err != nil {
			continue
		}
		if l.withTime {
			return t.Format("[2006-01-02 Mon 15:04]"), true
		}
		return t.Format("[2006-01-02 Mon]"), true
	}
	return value, false
}
