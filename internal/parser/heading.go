package parser

import (
	"regexp"
	"strings"
)

var (
	tagBlockRe = regexp.MustCompile(`^:(?:[^:]+:)+$`)
	stateRe    = regexp.MustCompile(`^([A-Z][A-Z_-]*[A-Z])(?:[ \t]+(.*))?$`)
	priorityRe = regexp.MustCompile(`^\[#([A-Z0-9])\](?:[ \t]+(.*))?$`)
)

type headingText struct {
	state    string
	priority string
	title    string
	tags     []string
}

// splitHeadingText breaks the text after the nesting markers into state
// keyword, priority cookie, title, and tags.
func splitHeadingText(text string) headingText {
	var ht headingText

	rest, tags := splitTags(text)
	ht.tags = tags

	if m := stateRe.FindStringSubmatch(rest); m != nil {
		ht.state = m[1]
		rest = m[2]
	}
	if m := priorityRe.FindStringSubmatch(rest); m != nil {
		ht.priority = m[1]
		rest = m[2]
	}
	ht.title = strings.TrimSpace(rest)
	return ht
}

// splitTags strips a trailing tag block from text. The block starts at the
// first whitespace-preceded colon whose remainder is a run of colon-separated
// tags; colons inside the title ("Call re: invoice :work:") stay in the title.
// Whitespace inside tags is kept so that it can be reported.
func splitTags(text string) (string, []string) {
	trimmed := strings.TrimRight(text, " \t")
	if !strings.HasSuffix(trimmed, ":") {
		return text, nil
	}
	for i := 1; i < len(trimmed); i++ {
		if trimmed[i] != ':' || (trimmed[i-1] != ' ' && trimmed[i-1] != '\t') {
			continue
		}
		block := trimmed[i:]
		if !tagBlockRe.MatchString(block) {
			continue
		}
		return strings.TrimRight(trimmed[:i], " \t"), strings.Split(strings.Trim(block, ":"), ":")
	}
	return text, nil
}
