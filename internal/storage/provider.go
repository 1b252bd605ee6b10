// Package storage defines the document-tree file-system abstraction.
package storage

import (
	"github.com/starford/tasklint/internal/models"
	"github.com/starford/tasklint/internal/parser"
)

// Provider is the interface for document file operations. Paths are
// relative to the tree root.
type Provider interface {
	// List returns metadata for every outline document under dir.
	List(dir string) ([]models.DocumentMeta, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically replaces the file at path.
	Write(path string, content []byte) error
	// Backup copies path to a timestamped sibling and returns its relative path.
	Backup(path string) (string, error)
	// Matches reports whether path names an outline document.
	Matches(path string) bool
}

// ReadLines reads path and splits it into lines. trailing reports whether
// the file ended with a newline.
func ReadLines(p Provider, path string) (lines []string, trailing bool, err error) {
	data, err := p.Read(path)
	if err != nil {
		return nil, false, err
	}
	lines, trailing = parser.SplitLines(data)
	return lines, trailing, nil
}
