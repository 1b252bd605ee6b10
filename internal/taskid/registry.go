package taskid

import (
	"sort"
	"sync"

	"github.com/starford/tasklint/internal/models"
)

// Location is where an identifier is defined.
type Location struct {
	Path string `json:"path"`
	Line int    `json:"line"`
}

// Duplicate is an identifier defined in more than one place.
type Duplicate struct {
	ID        string     `json:"id"`
	Locations []Location `json:"locations"`
}

// Registry indexes the identifiers present across a set of documents so
// that new identifiers can be minted without cross-file collisions.
type Registry struct {
	mu     sync.RWMutex
	owners map[string][]Location
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{owners: make(map[string][]Location)}
}

// Add records id at loc.
func (r *Registry) Add(id string, loc Location) {
	r.mu.Lock()
	r.owners[id] = append(r.owners[id], loc)
	r.mu.Unlock()
}

// AddDocument records every TASK_ID property of doc.
func (r *Registry) AddDocument(path string, doc *models.ParseResult) {
	for _, h := range doc.Headings {
		if p, ok := h.Properties.Lookup(models.PropTaskID); ok && p.Value != "" {
			r.Add(p.Value, Location{Path: path, Line: p.Line})
		}
	}
}

// Contains reports whether id is already taken.
func (r *Registry) Contains(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.owners[id]
	return ok
}

// Owners returns the locations defining id.
func (r *Registry) Owners(id string) []Location {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Location(nil), r.owners[id]...)
}

// Len returns the number of distinct identifiers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.owners)
}

// Duplicates lists identifiers defined more than once, sorted by id.
func (r *Registry) Duplicates() []Duplicate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Duplicate
	for id, locs := range r.owners {
		if len(locs) > 1 {
			out = append(out, Duplicate{ID: id, Locations: append([]Location(nil), locs...)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Mint generates an identifier not yet in the registry and reserves it.
func (r *Registry) Mint(g *Generator) ID {
	id := g.GenerateUnique(r.Contains)
	r.Add(id.String(), Location{})
	return id
}

// Minter adapts the registry and g into a Minter.
func (r *Registry) Minter(g *Generator) Minter {
	return registryMinter{r: r, g: g}
}

type registryMinter struct {
	r *Registry
	g *Generator
}

func (m registryMinter) Generate() ID { return m.r.Mint(m.g) }
