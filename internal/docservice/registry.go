package docservice

import (
	"context"
	"log/slog"

	"github.com/starford/tasklint/internal/models"
	"github.com/starford/tasklint/internal/parser"
	"github.com/starford/tasklint/internal/report"
	"github.com/starford/tasklint/internal/taskid"
)

type loaded struct {
	path string
	data []byte
	doc  *models.ParseResult
}

// idAt is one TASK_ID occurrence inside a document.
type idAt struct {
	id      string
	line    int
	heading int
}

// load reads every document under dir. Read failures are added to rep as
// failed outcomes.
func (s *Service) load(ctx context.Context, dir string, rep *report.Report) ([]loaded, error) {
	metas, err := s.store.List(dir)
	if err != nil {
		return nil, err
	}
	out := make([]loaded, 0, len(metas))
	for _, m := range metas {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := s.store.Read(m.Path)
		if err != nil {
			s.logger.Warn("read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			rep.Add(report.Failed(m.Path, err))
			continue
		}
		out = append(out, loaded{path: m.Path, data: data, doc: parser.ParseBytes(data)})
	}
	return out, nil
}

// batchRegistry indexes the identifiers of docs plus, when an index is
// configured, those of documents outside the batch.
func (s *Service) batchRegistry(docs []loaded) (*taskid.Registry, error) {
	reg := taskid.NewRegistry()
	seen := make(map[string]bool, len(docs))
	for _, d := range docs {
		reg.AddDocument(d.path, d.doc)
		seen[d.path] = true
	}
	if s.db == nil {
		return reg, nil
	}
	rows, err := s.db.TaskIDs()
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		if !seen[r.Path] {
			reg.Add(r.ID, taskid.Location{Path: r.Path, Line: r.Line})
		}
	}
	return reg, nil
}

// registry indexes every identifier the service can see: the index when
// one is configured, otherwise the documents on disk.
func (s *Service) registry(ctx context.Context) (*taskid.Registry, error) {
	if s.db != nil {
		return s.indexRegistry()
	}
	docs, err := s.load(ctx, "", &report.Report{})
	if err != nil {
		return nil, err
	}
	return s.batchRegistry(docs)
}

func (s *Service) indexRegistry() (*taskid.Registry, error) {
	rows, err := s.db.TaskIDs()
	if err != nil {
		return nil, err
	}
	reg := taskid.NewRegistry()
	for _, r := range rows {
		reg.Add(r.ID, taskid.Location{Path: r.Path, Line: r.Line})
	}
	return reg, nil
}

func documentIDs(doc *models.ParseResult) []idAt {
	var out []idAt
	for _, h := range doc.Headings {
		if p, ok := h.Properties.Lookup(models.PropTaskID); ok && p.Value != "" {
			out = append(out, idAt{id: p.Value, line: p.Line, heading: h.LineStart})
		}
	}
	return out
}

// duplicateFindings reports identifiers of path that other documents also
// define. Duplicates within one document are reported by the rules.
func duplicateFindings(reg *taskid.Registry, path string, ids []idAt) []models.Issue {
	var out []models.Issue
	for _, x := range ids {
		for _, loc := range reg.Owners(x.id) {
			if loc.Path == "" || loc.Path == path {
				continue
			}
			out = append(out, models.ErrorAt(models.CodeDuplicateTaskID, x.line,
				"%s %s is also used in %s:%d", models.PropTaskID, x.id, loc.Path, loc.Line).On(x.heading))
			break
		}
	}
	return out
}
