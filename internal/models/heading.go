// Package models defines the domain types for tasklint.
package models

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Annotation is one occurrence of a scheduling keyword under a heading.
type Annotation struct {
	Keyword     string `json:"keyword"`
	Raw         string `json:"raw"`
	Line        int    `json:"line"`
	InDrawer    bool   `json:"in_drawer,omitempty"`
	AfterDrawer bool   `json:"after_drawer,omitempty"`
}

// Drawer records one drawer-open marker and the line that closed it.
// Close is 0 when the drawer was never closed. Nested is set for an open
// marker seen while another drawer was still open.
type Drawer struct {
	Open   int  `json:"open"`
	Close  int  `json:"close,omitempty"`
	Nested bool `json:"nested,omitempty"`
}

// LegacyRef is an inline cross-reference line (ID:: [[scheme:target]]).
type LegacyRef struct {
	Line   int    `json:"line"`
	Scheme string `json:"scheme"`
	Target string `json:"target"`
}

// Heading is one outline node and the metadata attached to it.
type Heading struct {
	Level       int          `json:"level"`
	LineStart   int          `json:"line_start"`
	LineEnd     int          `json:"line_end"`
	State       string       `json:"state,omitempty"`
	Priority    string       `json:"priority,omitempty"`
	Title       string       `json:"title"`
	Tags        []string     `json:"tags,omitempty"`
	Scheduled   string       `json:"scheduled,omitempty"`
	Deadline    string       `json:"deadline,omitempty"`
	Annotations []Annotation `json:"annotations,omitempty"`
	Properties  PropertyMap  `json:"properties"`
	Drawers     []Drawer     `json:"drawers,omitempty"`
	LegacyRefs  []LegacyRef  `json:"legacy_refs,omitempty"`
	Issues      []Issue      `json:"issues,omitempty"`
}

// TaskID returns the canonical identifier property, or "".
func (h *Heading) TaskID() string {
	v, _ := h.Properties.Get(PropTaskID)
	return v
}

// HasScheduling reports whether a canonical SCHEDULED or DEADLINE exists.
func (h *Heading) HasScheduling() bool {
	return h.Scheduled != "" || h.Deadline != ""
}

// ParseResult is the structured form of one document.
type ParseResult struct {
	Headings       []*Heading  `json:"headings"`
	FileProperties PropertyMap `json:"file_properties"`
	// Issues holds findings that could not be attached to any heading.
	Issues    []Issue `json:"issues,omitempty"`
	LineCount int     `json:"line_count"`
	Success   bool    `json:"success"`
	Error     string  `json:"error,omitempty"`
}

// Title returns the #+TITLE file keyword, falling back to the first heading.
func (r *ParseResult) Title() string {
	if t, ok := r.FileProperties.Get("TITLE"); ok && t != "" {
		return t
	}
	if len(r.Headings) > 0 {
		return r.Headings[0].Title
	}
	return ""
}

// Property is a single key/value pair from a drawer.
type Property struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Line  int    `json:"line"`
}

// PropertyMap is an insertion-ordered mapping from uppercase key to value.
// The zero value is ready to use. The first value set for a key wins.
type PropertyMap struct {
	items []Property
	index map[string]int
}

// Set records key=value. It returns false and leaves the map unchanged when
// the key is already present.
func (m *PropertyMap) Set(key, value string, line int) bool {
	key = strings.ToUpper(key)
	if m.index == nil {
		m.index = make(map[string]int)
	}
	if _, ok := m.index[key]; ok {
		return false
	}
	m.index[key] = len(m.items)
	m.items = append(m.items, Property{Key: key, Value: value, Line: line})
	return true
}

// Get returns the value for key (case-insensitive).
func (m *PropertyMap) Get(key string) (string, bool) {
	p, ok := m.Lookup(key)
	return p.Value, ok
}

// Lookup returns the full property record for key.
func (m *PropertyMap) Lookup(key string) (Property, bool) {
	i, ok := m.index[strings.ToUpper(key)]
	if !ok {
		return Property{}, false
	}
	return m.items[i], true
}

// Has reports whether key is present.
func (m *PropertyMap) Has(key string) bool {
	_, ok := m.index[strings.ToUpper(key)]
	return ok
}

// Len returns the number of keys.
func (m *PropertyMap) Len() int { return len(m.items) }

// All returns the properties in insertion order.
func (m *PropertyMap) All() []Property {
	out := make([]Property, len(m.items))
	copy(out, m.items)
	return out
}

// MarshalJSON encodes the map as a JSON object, keys in insertion order.
func (m PropertyMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range m.items {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(p.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(p.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
