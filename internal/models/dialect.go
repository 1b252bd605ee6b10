package models

// DialectVersion is the version of the outline markup dialect understood by
// the parser, validator, and fixer.
const DialectVersion = 2

// Markers and property keys of the outline dialect.
const (
	HeadingMarker = '*'

	DrawerOpenMarker  = ":PROPERTIES:"
	DrawerCloseMarker = ":END:"

	KeywordScheduled = "SCHEDULED"
	KeywordDeadline  = "DEADLINE"

	// PropTaskID holds the canonical task identifier.
	PropTaskID = "TASK_ID"
	// PropLegacyID is the numeric identifier property written by older versions.
	PropLegacyID = "ID"
	// PropZKNote holds the canonical cross-reference to a Zettelkasten note.
	PropZKNote  = "ZK_NOTE"
	PropCreated = "CREATED"

	// LegacyRefMarker introduces an inline cross-reference line (ID:: [[zk:...]]).
	LegacyRefMarker = "ID::"
	XrefScheme      = "zk"
)
