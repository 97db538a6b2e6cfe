// Package hotswap watches the monitor topology for sustained changes.
// Connect/disconnect events often arrive as a burst of intermediate states
// while the OS renegotiates modes, so a change must hold steady through a
// debounce window before anyone is told about it.
package hotswap

import (
	"context"
	"log/slog"
	"time"

	"github.com/cloudburst-desktop/cloudburst/internal/display"
	"github.com/cloudburst-desktop/cloudburst/internal/geometry"
)

// EnumerateFunc supplies the current monitor set.
type EnumerateFunc func() ([]geometry.Monitor, error)

// NotifyFunc is called exactly once per confirmed topology change.
type NotifyFunc func()

// Config holds the watcher cadence.
type Config struct {
	PollInterval time.Duration
	Debounce     time.Duration
	Logger       *slog.Logger
}

// Watcher compares monitor snapshots on a fixed cadence. A snapshot that
// differs from the last confirmed one becomes pending; it is confirmed only
// after surviving the debounce window unchanged. Reverting to the confirmed
// snapshot cancels the pending change without notifying.
type Watcher struct {
	pollInterval time.Duration
	debounce     time.Duration
	enumerate    EnumerateFunc
	notify       NotifyFunc
	logger       *slog.Logger

	confirmed    []display.SnapshotEntry
	seeded       bool
	pending      []display.SnapshotEntry
	pendingSince time.Time

	now func() time.Time
}

// NewWatcher creates a topology watcher.
func NewWatcher(cfg Config, enumerate EnumerateFunc, notify NotifyFunc) *Watcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 2 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Watcher{
		pollInterval: cfg.PollInterval,
		debounce:     cfg.Debounce,
		enumerate:    enumerate,
		notify:       notify,
		logger:       cfg.Logger,
		now:          time.Now,
	}
}

// Run starts the poll loop. Blocks until context is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("monitor watcher started",
		"interval", w.pollInterval, "debounce", w.debounce)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("monitor watcher stopped")
			return
		case <-ticker.C:
			w.PollNow()
		}
	}
}

// PollNow performs a single snapshot-compare pass.
func (w *Watcher) PollNow() {
	monitors, err := w.enumerate()
	if err != nil {
		// Transient enumeration failure; keep the current state rather
		// than treating it as "all monitors gone".
		w.logger.Debug("monitor enumeration failed", "error", err)
		return
	}
	snap := display.Snapshot(monitors)

	// First successful poll seeds the baseline without notifying.
	if !w.seeded {
		w.confirmed = snap
		w.seeded = true
		return
	}

	if display.SnapshotEqual(snap, w.confirmed) {
		if w.pending != nil {
			w.logger.Info("monitor change reverted before debounce expiry")
			w.pending = nil
		}
		return
	}

	now := w.now()
	if w.pending == nil || !display.SnapshotEqual(snap, w.pending) {
		w.pending = snap
		w.pendingSince = now
		w.logger.Info("monitor change detected, debouncing",
			"monitors", len(snap))
		return
	}

	if now.Sub(w.pendingSince) >= w.debounce {
		w.confirmed = snap
		w.pending = nil
		w.logger.Info("monitor change confirmed", "monitors", len(snap))
		w.notify()
	}
}
