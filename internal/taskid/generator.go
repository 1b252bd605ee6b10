package taskid

import (
	"sync"
	"time"
)

// Minter hands out identifiers.
type Minter interface {
	Generate() ID
}

// Generator mints strictly increasing identifiers. Create one per batch run
// and pass it to every call site; it is safe for concurrent use.
type Generator struct {
	mu     sync.Mutex
	now    func() time.Time
	last   string
	suffix string
}

// Option configures a Generator.
type Option func(*Generator)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// NewGenerator returns a Generator reading the system clock.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{now: time.Now}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Generate returns the next identifier. Calls within the same second advance
// the suffix. A clock that moves backwards keeps the last timestamp so the
// sequence never decreases.
func (g *Generator) Generate() ID {
	g.mu.Lock()
	defer g.mu.Unlock()

	stamp := g.now().UTC().Format(Layout)
	if g.last != "" && stamp <= g.last {
		g.suffix = nextSuffix(g.suffix)
	} else {
		g.last = stamp
		g.suffix = ""
	}
	return ID{Timestamp: g.last, Suffix: g.suffix}
}

// GenerateUnique generates identifiers until taken reports one as free.
func (g *Generator) GenerateUnique(taken func(string) bool) ID {
	for {
		id := g.Generate()
		if taken == nil || !taken(id.String()) {
			return id
		}
	}
}
