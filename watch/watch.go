// Package watch polls the settings database for changes and fires an
// action after a debounce window. It is how setting changes made by the
// companion CLI propagate to every open page: the daemon watches the
// database and broadcasts an update message when the version advances.
package watch

import (
	"context"
	"database/sql"
	"log/slog"
	"time"
)

// ChangeDetector reads a version token from the database. Two calls
// returning different values mean "something changed". PRAGMA
// data_version is the default: it advances whenever another connection
// commits.
type ChangeDetector func(ctx context.Context, db *sql.DB) (int64, error)

// PragmaDataVersion is the default detector.
func PragmaDataVersion(ctx context.Context, db *sql.DB) (int64, error) {
	var v int64
	err := db.QueryRowContext(ctx, "PRAGMA data_version").Scan(&v)
	return v, err
}

// Options tunes the watcher.
type Options struct {
	// Interval is the polling frequency. Default: 1s.
	Interval time.Duration
	// Debounce is the quiet period after a detected change before the
	// action fires; further changes reset the timer. 0 fires at once.
	Debounce time.Duration
	// Detector overrides PragmaDataVersion.
	Detector ChangeDetector
	Logger   *slog.Logger
}

func (o *Options) defaults() {
	if o.Interval <= 0 {
		o.Interval = time.Second
	}
	if o.Detector == nil {
		o.Detector = PragmaDataVersion
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Watcher polls a SQLite database and runs an action when it changes.
type Watcher struct {
	db   *sql.DB
	opts Options
}

// New creates a Watcher. Call OnChange to start the loop.
func New(db *sql.DB, opts Options) *Watcher {
	opts.defaults()
	return &Watcher{db: db, opts: opts}
}

// OnChange blocks until ctx is cancelled, polling at the configured
// interval. When the version token advances and the debounce window
// passes without further changes, action runs. If action errors the
// version is not advanced, so it retries on the next cycle.
func (w *Watcher) OnChange(ctx context.Context, action func() error) {
	log := w.opts.Logger

	seen, err := w.opts.Detector(ctx, w.db)
	if err != nil {
		log.Warn("watch: initial version read failed", "error", err)
	}

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	var (
		pending  bool
		deadline time.Time
	)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		v, err := w.opts.Detector(ctx, w.db)
		if err != nil {
			log.Warn("watch: version read failed", "error", err)
			continue
		}
		if v != seen {
			// New change: open (or extend) the debounce window.
			seen = v
			pending = true
			deadline = time.Now().Add(w.opts.Debounce)
		}
		if !pending || time.Now().Before(deadline) {
			continue
		}

		if err := action(); err != nil {
			log.Warn("watch: reload action failed, will retry", "error", err)
			continue
		}
		pending = false
		log.Debug("watch: reload complete", "version", v)
	}
}
