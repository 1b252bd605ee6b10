package index

import (
	"context"
	"log/slog"

	"github.com/starford/tasklint/internal/rules"
	"github.com/starford/tasklint/internal/storage"
)

// SyncStats counts what a Sync pass did.
type SyncStats struct {
	Indexed   int // new or changed on disk
	Rechecked int // unchanged, but checked under another rule set
	Removed   int
	Failed    int
	Unchanged int
}

// Sync walks the document tree and brings the index up to date. New and
// changed files are checked and stored, files checked under a different rule
// set are checked again, and files gone from disk are removed. Per-file
// failures are logged and counted; ctx is checked between files.
func Sync(ctx context.Context, db *DB, store storage.Provider, cfg *rules.Config, logger *slog.Logger) (SyncStats, error) {
	var st SyncStats
	cfg = orDefault(cfg)
	ruleset := cfg.Fingerprint()

	metas, err := store.List("")
	if err != nil {
		return st, err
	}
	current, err := db.AllChecksums(ruleset)
	if err != nil {
		return st, err
	}
	// Checksums regardless of rule set tell new files from stale ones.
	known, err := db.AllChecksums("")
	if err != nil {
		return st, err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		disk[m.Path] = struct{}{}

		if current[m.Path] == m.Checksum {
			st.Unchanged++
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			st.Failed++
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if _, err := IndexDocument(db, m.Path, data, cfg); err != nil {
			st.Failed++
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if known[m.Path] != "" && known[m.Path] == m.Checksum {
			st.Rechecked++
		} else {
			st.Indexed++
		}
		logger.Debug("sync: indexed", slog.String("path", m.Path))
	}

	for p := range known {
		if _, ok := disk[p]; ok {
			continue
		}
		if err := db.DeleteDocument(p); err != nil {
			st.Failed++
			logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		st.Removed++
		logger.Debug("sync: removed stale", slog.String("path", p))
	}

	logger.Info("sync: done",
		slog.Int("indexed", st.Indexed),
		slog.Int("rechecked", st.Rechecked),
		slog.Int("removed", st.Removed),
		slog.Int("failed", st.Failed),
		slog.Int("unchanged", st.Unchanged))
	return st, nil
}
