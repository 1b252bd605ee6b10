package internal

import (
	"io"
	"time"

	"github.com/starford/tasklint/internal/report"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	out    io.Writer
	format report.Format
	text   report.TextOptions
	now    func() time.Time
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithOutput sets where command output (reports, identifiers) is written.
func WithOutput(w io.Writer) Option {
	return func(a *application) {
		a.out = w
	}
}

// WithFormat selects the report renderer for check and fix.
func WithFormat(f report.Format) Option {
	return func(a *application) {
		a.format = f
	}
}

// WithTextOptions tunes the text renderer.
func WithTextOptions(o report.TextOptions) Option {
	return func(a *application) {
		a.text = o
	}
}

// WithClock overrides the clock used to mint identifiers.
func WithClock(now func() time.Time) Option {
	return func(a *application) {
		a.now = now
	}
}
