// Package docservice coordinates storage, the index, the rule set and the
// identifier generator behind the CLI, HTTP and MCP surfaces.
package docservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/tasklint/internal/apperr"
	"github.com/starford/tasklint/internal/checksum"
	"github.com/starford/tasklint/internal/fixer"
	"github.com/starford/tasklint/internal/index"
	"github.com/starford/tasklint/internal/models"
	"github.com/starford/tasklint/internal/parser"
	"github.com/starford/tasklint/internal/report"
	"github.com/starford/tasklint/internal/rules"
	"github.com/starford/tasklint/internal/storage"
	"github.com/starford/tasklint/internal/taskid"
)

// ErrNoIndex is returned by queries that need the SQLite index when the
// service runs without one.
var ErrNoIndex = errors.New("docservice: no index configured")

// Event kinds passed to the notifier.
const (
	KindChecked = "checked"
	KindFixed   = "fixed"
)

// DocumentDetail is the checked form of one document.
type DocumentDetail struct {
	Path           string             `json:"path"`
	Title          string             `json:"title"`
	Checksum       string             `json:"checksum"`
	Summary        report.Summary     `json:"summary"`
	Headings       []*models.Heading  `json:"headings"`
	FileProperties models.PropertyMap `json:"file_properties"`
}

// FixOptions controls a single-document fix.
type FixOptions struct {
	// Preview computes the edits without backing up or writing.
	Preview bool
	// IfMatch, when set, must equal the current checksum of the document.
	IfMatch string
}

// IDResult is the outcome of EnsureID.
type IDResult struct {
	Path       string          `json:"path"`
	Heading    int             `json:"heading"`
	ID         string          `json:"id"`
	Created    bool            `json:"created"`
	Changes    []models.Change `json:"changes,omitempty"`
	BackupPath string          `json:"backup_path,omitempty"`
}

// Service coordinates storage and index operations.
type Service struct {
	store  storage.Provider
	db     index.DocumentIndex
	rules  *rules.Config
	gen    *taskid.Generator
	logger *slog.Logger
	notify func(kind, path string)
}

// Option configures a Service.
type Option func(*Service)

// WithIndex attaches the SQLite index. Without it List, Search and Headings
// return ErrNoIndex and identifier uniqueness is computed from disk.
func WithIndex(db index.DocumentIndex) Option {
	return func(s *Service) { s.db = db }
}

// WithRules sets the rule configuration.
func WithRules(cfg *rules.Config) Option {
	return func(s *Service) { s.rules = cfg }
}

// WithGenerator sets the identifier generator shared by every operation.
func WithGenerator(g *taskid.Generator) Option {
	return func(s *Service) { s.gen = g }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithNotifier registers fn to be called after a document is checked or
// written.
func WithNotifier(fn func(kind, path string)) Option {
	return func(s *Service) { s.notify = fn }
}

// NewService creates a new document service.
func NewService(store storage.Provider, opts ...Option) *Service {
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	if s.rules == nil {
		def := rules.DefaultConfig()
		s.rules = &def
	}
	if s.gen == nil {
		s.gen = taskid.NewGenerator()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Rules returns the active rule configuration.
func (s *Service) Rules() *rules.Config { return s.rules }

// Check reads, parses and validates one document, including identifiers
// shared with other documents.
func (s *Service) Check(ctx context.Context, path string) (*DocumentDetail, error) {
	data, err := s.store.Read(path)
	if err != nil {
		return nil, err
	}
	reg, err := s.registry(ctx)
	if err != nil {
		return nil, err
	}
	c := index.CheckDocument(path, data, s.rules)
	s.index(c)
	s.emit(KindChecked, path)

	issues := append(c.Issues, duplicateFindings(reg, path, documentIDs(c.Doc))...)
	return &DocumentDetail{
		Path:           path,
		Title:          c.Doc.Title(),
		Checksum:       c.Checksum,
		Summary:        report.Summarize(issues),
		Headings:       c.Doc.Headings,
		FileProperties: c.Doc.FileProperties,
	}, nil
}

// CheckAll validates every document under dir. Unreadable documents are
// reported as failed outcomes; the batch continues past them. Cancelling ctx
// stops the batch between documents and returns the partial report.
func (s *Service) CheckAll(ctx context.Context, dir string) (*report.Report, error) {
	rep := &report.Report{}
	docs, err := s.load(ctx, dir, rep)
	if err != nil {
		return nil, err
	}
	reg, err := s.batchRegistry(docs)
	if err != nil {
		return nil, err
	}

	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			rep.Sort()
			return rep, err
		}
		c := index.CheckDocument(d.path, d.data, s.rules)
		s.index(c)
		issues := append(c.Issues, duplicateFindings(reg, d.path, documentIDs(c.Doc))...)
		rep.Add(report.NewOutcome(d.path, issues))
	}
	rep.Sort()
	return rep, nil
}

// Fix repairs one document. In preview mode nothing is written; otherwise
// a changed document is backed up and then replaced. A failed backup blocks
// the write.
func (s *Service) Fix(ctx context.Context, path string, opts FixOptions) (report.Outcome, error) {
	data, err := s.store.Read(path)
	if err != nil {
		return report.Failed(path, err), err
	}
	if !checksum.Matches(opts.IfMatch, data) {
		return report.Failed(path, apperr.ErrConflict), apperr.ErrConflict
	}
	reg, err := s.registry(ctx)
	if err != nil {
		return report.Failed(path, err), err
	}
	return s.fixOne(path, data, reg, opts.Preview)
}

// FixAll repairs every document under dir sequentially. Per-document I/O and
// backup failures are collected in the report and do not stop the batch.
func (s *Service) FixAll(ctx context.Context, dir string, preview bool) (*report.Report, error) {
	rep := &report.Report{Preview: preview}
	docs, err := s.load(ctx, dir, rep)
	if err != nil {
		return nil, err
	}
	reg, err := s.batchRegistry(docs)
	if err != nil {
		return nil, err
	}

	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			rep.Sort()
			return rep, err
		}
		o, err := s.fixOne(d.path, d.data, reg, preview)
		if err != nil {
			s.logger.Warn("fix failed", slog.String("path", d.path), slog.String("error", err.Error()))
		}
		rep.Add(o)
	}
	rep.Sort()
	return rep, nil
}

func (s *Service) fixOne(path string, data []byte, reg *taskid.Registry, preview bool) (report.Outcome, error) {
	res := fixer.FixBytes(data, fixer.WithGenerator(reg.Minter(s.gen)))
	out := res.Bytes()

	c := index.CheckDocument(path, out, s.rules)
	issues := append(c.Issues, duplicateFindings(reg, path, documentIDs(c.Doc))...)
	o := report.NewOutcome(path, issues)
	o.Changes = res.Changes
	o.Warnings = res.Warnings

	if preview {
		return o, nil
	}
	if !res.Changed() {
		s.index(c)
		return o, nil
	}

	bak, err := s.store.Backup(path)
	if err != nil {
		return report.Failed(path, err), err
	}
	if err := s.store.Write(path, out); err != nil {
		f := report.Failed(path, err)
		f.BackupPath = bak
		return f, fmt.Errorf("docservice: write %s: %w", path, err)
	}
	o.BackupPath = bak
	o.Written = true
	s.logger.Info("document fixed",
		slog.String("path", path),
		slog.Int("changes", len(res.Changes)),
		slog.String("backup", bak))

	s.index(c)
	s.emit(KindFixed, path)
	return o, nil
}

// EnsureID returns the TASK_ID of the heading at headingIndex (0-based),
// minting and writing one when the heading has none.
func (s *Service) EnsureID(ctx context.Context, path string, headingIndex int, ifMatch string) (IDResult, error) {
	data, err := s.store.Read(path)
	if err != nil {
		return IDResult{}, err
	}
	if !checksum.Matches(ifMatch, data) {
		return IDResult{}, apperr.ErrConflict
	}
	reg, err := s.registry(ctx)
	if err != nil {
		return IDResult{}, err
	}

	lines, trailing := parser.SplitLines(data)
	res, err := taskid.Ensure(lines, headingIndex, reg.Minter(s.gen))
	if err != nil {
		return IDResult{}, err
	}
	out := IDResult{Path: path, Heading: headingIndex, ID: res.ID.String(), Created: res.Created, Changes: res.Changes}
	if !res.Created {
		return out, nil
	}

	bak, err := s.store.Backup(path)
	if err != nil {
		return IDResult{}, err
	}
	updated := parser.JoinLines(res.Lines, trailing)
	if err := s.store.Write(path, updated); err != nil {
		return IDResult{}, fmt.Errorf("docservice: write %s: %w", path, err)
	}
	out.BackupPath = bak
	s.index(index.CheckDocument(path, updated, s.rules))
	s.emit(KindFixed, path)
	return out, nil
}

// GenerateID mints an identifier that no known document uses yet.
func (s *Service) GenerateID(ctx context.Context) (string, error) {
	reg, err := s.registry(ctx)
	if err != nil {
		return "", err
	}
	return reg.Mint(s.gen).String(), nil
}

// List returns a page of indexed documents.
func (s *Service) List(_ context.Context, limit, offset int, filter index.ListFilter) ([]index.DocumentRow, int, error) {
	if s.db == nil {
		return nil, 0, ErrNoIndex
	}
	rows, total, err := s.db.ListDocuments(limit, offset, filter)
	if err != nil {
		return nil, 0, err
	}
	if rows == nil {
		rows = []index.DocumentRow{}
	}
	return rows, total, nil
}

// Search delegates full-text search over headings to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	if s.db == nil {
		return nil, ErrNoIndex
	}
	return s.db.Search(query, limit)
}

// Headings lists indexed headings.
func (s *Service) Headings(_ context.Context, filter index.HeadingFilter) ([]index.HeadingRow, error) {
	if s.db == nil {
		return nil, ErrNoIndex
	}
	return s.db.Headings(filter)
}

// Report summarizes the whole tree. With an index it is assembled from the
// stored findings; otherwise every document is checked.
func (s *Service) Report(ctx context.Context) (*report.Report, error) {
	if s.db == nil {
		return s.CheckAll(ctx, "")
	}
	reg, err := s.indexRegistry()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.TaskIDs()
	if err != nil {
		return nil, err
	}
	idsByPath := make(map[string][]idAt)
	for _, r := range rows {
		idsByPath[r.Path] = append(idsByPath[r.Path], idAt{id: r.ID, line: r.Line, heading: r.Line})
	}

	rep := &report.Report{}
	const page = 500
	for offset := 0; ; offset += page {
		docs, total, err := s.db.ListDocuments(page, offset, index.ListFilter{})
		if err != nil {
			return nil, err
		}
		for _, d := range docs {
			if err := ctx.Err(); err != nil {
				return rep, err
			}
			issues, err := s.db.DocumentIssues(d.Path)
			if err != nil {
				return nil, err
			}
			issues = append(issues, duplicateFindings(reg, d.Path, idsByPath[d.Path])...)
			rep.Add(report.NewOutcome(d.Path, issues))
		}
		if offset+page >= total {
			break
		}
	}
	return rep, nil
}

func (s *Service) index(c index.Checked) {
	if s.db == nil {
		return
	}
	if err := c.Store(s.db, s.rules.Fingerprint()); err != nil {
		s.logger.Warn("index update failed", slog.String("path", c.Path), slog.String("error", err.Error()))
	}
}

func (s *Service) emit(kind, path string) {
	if s.notify != nil {
		s.notify(kind, path)
	}
}
