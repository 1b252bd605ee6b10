// Package taskid mints and validates task identifiers: a 14-digit UTC
// timestamp followed by an optional lowercase disambiguation suffix.
package taskid

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/starford/tasklint/internal/apperr"
)

// Layout is the time layout of the timestamp component.
const Layout = "20060102150405"

var idRe = regexp.MustCompile(`^(\d{14})([a-z]*)$`)

// ID is a parsed identifier.
type ID struct {
	Timestamp string `json:"timestamp"`
	Suffix    string `json:"suffix,omitempty"`
}

func (id ID) String() string { return id.Timestamp + id.Suffix }

// IsZero reports whether id is the zero value.
func (id ID) IsZero() bool { return id.Timestamp == "" }

// Time returns the timestamp component as a UTC time.
func (id ID) Time() time.Time {
	t, _ := time.Parse(Layout, id.Timestamp)
	return t
}

// Parse splits token into timestamp and suffix. The timestamp must be a real
// calendar time.
func Parse(token string) (ID, error) {
	m := idRe.FindStringSubmatch(strings.TrimSpace(token))
	if m == nil {
		return ID{}, fmt.Errorf("taskid: parse %q: %w", token, apperr.ErrMalformedID)
	}
	if _, err := time.Parse(Layout, m[1]); err != nil {
		return ID{}, fmt.Errorf("taskid: parse %q: %w", token, apperr.ErrMalformedID)
	}
	return ID{Timestamp: m[1], Suffix: m[2]}, nil
}

// IsValid reports whether token is a well-formed identifier.
func IsValid(token string) bool {
	_, err := Parse(token)
	return err == nil
}

// FromLegacy returns the identifier a legacy numeric ID property value
// carries over to TASK_ID. ok is false when value is not a valid identifier.
func FromLegacy(value string) (id ID, ok bool) {
	id, err := Parse(value)
	return id, err == nil
}

// Compare orders identifiers by timestamp, then suffix length, then suffix.
// It returns -1, 0 or +1.
func Compare(a, b ID) int {
	if c := strings.Compare(a.Timestamp, b.Timestamp); c != 0 {
		return c
	}
	switch {
	case len(a.Suffix) < len(b.Suffix):
		return -1
	case len(a.Suffix) > len(b.Suffix):
		return 1
	}
	return strings.Compare(a.Suffix, b.Suffix)
}

// nextSuffix advances a base-26 odometer: "" -> a ... z -> aa -> ab ...
func nextSuffix(s string) string {
	b := []byte(s)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 'z' {
			b[i]++
			return string(b)
		}
		b[i] = 'a'
	}
	return "a" + string(b)
}
