package index

import "github.com/starford/tasklint/internal/models"

// DocumentIndex defines the interface for document indexing operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type DocumentIndex interface {
	UpsertDocument(d DocumentRow, headings []HeadingRow, issues []models.Issue) error
	DeleteDocument(path string) error
	GetChecksum(path string) (string, error)
	GetDocument(path string) (*DocumentRow, error)
	ListDocuments(limit, offset int, filter ListFilter) ([]DocumentRow, int, error)
	DocumentIssues(path string) ([]models.Issue, error)
	Headings(filter HeadingFilter) ([]HeadingRow, error)
	TaskIDs() ([]TaskIDRow, error)
	Totals() (Totals, error)
	Search(query string, limit int) ([]SearchResult, error)
	AllChecksums(ruleset string) (map[string]string, error)
	Close() error
}

// Verify *DB satisfies DocumentIndex at compile time.
var _ DocumentIndex = (*DB)(nil)
