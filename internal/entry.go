// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/tasklint/internal/api"
	"github.com/starford/tasklint/internal/docservice"
	"github.com/starford/tasklint/internal/index"
	"github.com/starford/tasklint/internal/mcpserver"
	"github.com/starford/tasklint/internal/report"
	"github.com/starford/tasklint/internal/sse"
	"github.com/starford/tasklint/internal/storage"
	"github.com/starford/tasklint/internal/taskid"
)

// ErrFindings is returned by RunCheck and RunFix when a document has
// error-level findings or could not be processed.
var ErrFindings = errors.New("documents have errors")

func newApplication(opts []Option) (*application, error) {
	app := &application{
		out:    os.Stdout,
		format: report.FormatText,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// newLogger installs a JSON logger writing to w as the default logger.
func (a *application) newLogger(w io.Writer) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

func (a *application) openStore() (*storage.FS, error) {
	store, err := storage.NewFS(a.config.Vault.Path, a.config.Vault.Extensions...)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	return store, nil
}

func (a *application) service(store storage.Provider, logger *slog.Logger, extra ...docservice.Option) *docservice.Service {
	opts := []docservice.Option{
		docservice.WithRules(&a.config.Rules),
		docservice.WithGenerator(taskid.NewGenerator(taskid.WithClock(a.now))),
		docservice.WithLogger(logger),
	}
	return docservice.NewService(store, append(opts, extra...)...)
}

// openIndex opens the SQLite index and brings it up to date with the tree.
func (a *application) openIndex(ctx context.Context, store storage.Provider, logger *slog.Logger) (*index.DB, error) {
	db, err := index.Open(a.config.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}
	if _, err := index.Sync(ctx, db, store, &a.config.Rules, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}
	return db, nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.newLogger(os.Stdout)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("rules", cfg.Rules.Fingerprint()),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return fmt.Errorf("create vault dir: %w", err)
	}

	store, err := app.openStore()
	if err != nil {
		return err
	}

	db, err := app.openIndex(ctx, store, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	broker := sse.NewBroker(2*time.Second, sse.WithTotals(func() (any, error) {
		return db.Totals()
	}))
	defer broker.Close()

	svc := app.service(store, logger,
		docservice.WithIndex(db),
		docservice.WithNotifier(broker.PublishDocumentEvent),
	)
	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Re-check documents edited outside the API and push events to SSE clients.
	g.Go(func() error {
		if err := index.Watch(gCtx, db, store, store.Root(), &cfg.Rules, logger, broker.PublishDocumentEvent); err != nil {
			logger.Error("watcher failed", slog.String("error", err.Error()))
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunCheck validates every document under dir (relative to the vault root,
// "" for all) and renders the report. It returns ErrFindings when the report
// contains errors.
func RunCheck(ctx context.Context, dir string, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.newLogger(os.Stderr)

	store, err := app.openStore()
	if err != nil {
		return err
	}
	rep, err := app.service(store, logger).CheckAll(ctx, dir)
	if rep == nil {
		return err
	}
	if werr := report.Write(app.out, rep, app.format, app.text); werr != nil {
		return werr
	}
	if err != nil {
		return err
	}
	if rep.HasErrors() {
		return ErrFindings
	}
	return nil
}

// RunFix repairs every document under dir. In preview mode nothing is
// written. Per-document failures are reported and yield ErrFindings.
func RunFix(ctx context.Context, dir string, preview bool, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.newLogger(os.Stderr)

	store, err := app.openStore()
	if err != nil {
		return err
	}
	rep, err := app.service(store, logger).FixAll(ctx, dir, preview)
	if rep == nil {
		return err
	}
	if werr := report.Write(app.out, rep, app.format, app.text); werr != nil {
		return werr
	}
	if err != nil {
		return err
	}
	// Findings left after a fix need manual review; only I/O failures fail the run.
	if rep.Totals.Failed > 0 {
		return ErrFindings
	}
	return nil
}

// RunID prints a fresh identifier that no document uses. When path is set,
// the heading at headingIndex in that document is given an identifier
// instead (an existing one is printed unchanged).
func RunID(ctx context.Context, path string, headingIndex int, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.newLogger(os.Stderr)

	store, err := app.openStore()
	if err != nil {
		return err
	}
	svc := app.service(store, logger)

	if path == "" {
		id, err := svc.GenerateID(ctx)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(app.out, id)
		return err
	}

	res, err := svc.EnsureID(ctx, path, headingIndex, "")
	if err != nil {
		return err
	}
	if res.Created {
		logger.Info("identifier added",
			slog.String("path", path),
			slog.String("id", res.ID),
			slog.String("backup", res.BackupPath))
	}
	_, err = fmt.Fprintln(app.out, res.ID)
	return err
}

// RunMCP serves the MCP tools on stdin/stdout. Logs go to stderr so they do
// not corrupt the protocol stream.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.newLogger(os.Stderr)

	store, err := app.openStore()
	if err != nil {
		return err
	}
	db, err := app.openIndex(ctx, store, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := index.Watch(ctx, db, store, store.Root(), &app.config.Rules, logger, nil); err != nil {
			logger.Error("watcher failed", slog.String("error", err.Error()))
		}
	}()

	svc := app.service(store, logger, docservice.WithIndex(db))
	logger.Info("MCP server starting", slog.String("vault_path", app.config.Vault.Path))
	return mcpserver.New(svc).ServeStdio()
}
