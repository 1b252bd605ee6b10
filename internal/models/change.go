package models

// ChangeKind classifies a fixer edit.
type ChangeKind string

const (
	ChangeAdd    ChangeKind = "add"
	ChangeRemove ChangeKind = "remove"
	ChangeModify ChangeKind = "modify"
	ChangeMove   ChangeKind = "move"
)

// Change is one audit entry produced by the fixer. Line is the 1-based input
// line the edit was anchored to.
type Change struct {
	Line   int        `json:"line" yaml:"line"`
	Kind   ChangeKind `json:"kind" yaml:"kind"`
	Reason string     `json:"reason" yaml:"reason"`
	From   string     `json:"from,omitempty" yaml:"from,omitempty"`
	To     string     `json:"to,omitempty" yaml:"to,omitempty"`
}
