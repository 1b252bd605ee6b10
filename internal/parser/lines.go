package parser

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/starford/tasklint/internal/models"
)

// LineKind is the structural role of a single line.
type LineKind uint8

const (
	LineText LineKind = iota
	LineHeading
	LineDrawerOpen
	LineDrawerClose
	LineProperty
	LineScheduling
	LineLegacyRef
	LineFileKeyword
)

var (
	headingRe     = regexp.MustCompile(`^(\*+)[ \t]+(.*)$`)
	propertyRe    = regexp.MustCompile(`^\s*:([^:\s]+):(?:[ \t]+(.*?))?\s*$`)
	schedLeadRe   = regexp.MustCompile(`^\s*(SCHEDULED|DEADLINE):\s*<[^>]*>`)
	schedAllRe    = regexp.MustCompile(`(SCHEDULED|DEADLINE):\s*(<[^>]*>)`)
	legacyRefRe   = regexp.MustCompile(`^\s*ID::\s*\[\[([A-Za-z][A-Za-z0-9+.-]*):([^\]\s]+)\]\]\s*$`)
	fileKeywordRe = regexp.MustCompile(`^#\+([A-Za-z_][A-Za-z0-9_-]*):[ \t]*(.*?)\s*$`)
)

// Line is the classification of one raw line.
type Line struct {
	Kind LineKind
	// Level is the heading depth (LineHeading).
	Level int
	// Text is the heading text after the markers (LineHeading).
	Text string
	// Key and Value hold a property or file keyword; Key is uppercase.
	Key   string
	Value string
	// Keyword is the leading SCHEDULED/DEADLINE keyword (LineScheduling).
	Keyword string
	// Scheme and Target describe a legacy cross-reference (LineLegacyRef).
	Scheme string
	Target string
}

// Classify determines the structural role of raw. It never fails; anything
// unrecognised is LineText.
func Classify(raw string) Line {
	if m := headingRe.FindStringSubmatch(raw); m != nil {
		return Line{Kind: LineHeading, Level: len(m[1]), Text: strings.TrimRight(m[2], " \t\r")}
	}

	trimmed := strings.TrimSpace(raw)
	switch {
	case strings.EqualFold(trimmed, models.DrawerOpenMarker):
		return Line{Kind: LineDrawerOpen}
	case strings.EqualFold(trimmed, models.DrawerCloseMarker):
		return Line{Kind: LineDrawerClose}
	}

	if m := schedLeadRe.FindStringSubmatch(raw); m != nil {
		return Line{Kind: LineScheduling, Keyword: m[1]}
	}
	if m := legacyRefRe.FindStringSubmatch(raw); m != nil {
		return Line{Kind: LineLegacyRef, Scheme: m[1], Target: m[2]}
	}
	if m := propertyRe.FindStringSubmatch(raw); m != nil {
		return Line{Kind: LineProperty, Key: strings.ToUpper(m[1]), Value: m[2]}
	}
	if m := fileKeywordRe.FindStringSubmatch(raw); m != nil {
		return Line{Kind: LineFileKeyword, Key: strings.ToUpper(m[1]), Value: m[2]}
	}
	return Line{Kind: LineText}
}

// Annotations returns every SCHEDULED/DEADLINE keyword and its angle-bracketed
// timestamp found on raw, in order of appearance.
func Annotations(raw string) [][2]string {
	var out [][2]string
	for _, m := range schedAllRe.FindAllStringSubmatch(raw, -1) {
		out = append(out, [2]string{m[1], m[2]})
	}
	return out
}

// SplitLines splits data into lines without their terminators and reports
// whether the final line was newline-terminated.
func SplitLines(data []byte) ([]string, bool) {
	if len(data) == 0 {
		return nil, false
	}
	trailing := bytes.HasSuffix(data, []byte("\n"))
	if trailing {
		data = data[:len(data)-1]
	}
	return strings.Split(string(data), "\n"), trailing
}

// JoinLines is the inverse of SplitLines.
func JoinLines(lines []string, trailingNewline bool) []byte {
	var buf bytes.Buffer
	for i, l := range lines {
		if i > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(l)
	}
	if trailingNewline && len(lines) > 0 {
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}
