// Package engine composes the display backend, window scanner, surface
// supervisor, and topology watcher into the desktop-integration facade the
// IPC server and CLI talk to.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/cloudburst-desktop/cloudburst/internal/display"
	"github.com/cloudburst-desktop/cloudburst/internal/geometry"
	"github.com/cloudburst-desktop/cloudburst/internal/supervisor"
	"github.com/cloudburst-desktop/cloudburst/internal/winscan"
)

// ErrNoMonitors is returned when the platform reports no displays; there is
// no virtual desktop to describe and no sane value to fall back to.
var ErrNoMonitors = errors.New("no monitors available")

// Engine answers desktop-integration queries against the live OS state.
type Engine struct {
	backend display.Backend
	sup     *supervisor.Supervisor
	logger  *slog.Logger
}

// New creates the engine facade.
func New(backend display.Backend, sup *supervisor.Supervisor, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{backend: backend, sup: sup, logger: logger}
}

// Supervisor exposes the surface supervisor for heartbeat and health.
func (e *Engine) Supervisor() *supervisor.Supervisor { return e.sup }

// Displays returns the current monitor set.
func (e *Engine) Displays() ([]geometry.Monitor, error) {
	monitors, err := e.backend.Enumerate()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate displays: %w", err)
	}
	return monitors, nil
}

// VirtualDesktop computes the current virtual-desktop descriptor.
func (e *Engine) VirtualDesktop() (geometry.VirtualDesktop, error) {
	monitors, err := e.Displays()
	if err != nil {
		return geometry.VirtualDesktop{}, err
	}
	if len(monitors) == 0 {
		return geometry.VirtualDesktop{}, ErrNoMonitors
	}
	return geometry.ComputeVirtualDesktop(monitors), nil
}

// DisplayInfo resolves the monitor region a surface is bound to. Surface
// labels encode their monitor as a suffix ("overlay-1"); a bare label means
// monitor 0.
func (e *Engine) DisplayInfo(label string) (geometry.Region, error) {
	desktop, err := e.VirtualDesktop()
	if err != nil {
		return geometry.Region{}, err
	}
	idx := monitorIndexForLabel(label)
	if idx < 0 || idx >= len(desktop.Monitors) {
		return geometry.Region{}, fmt.Errorf("surface %q references monitor %d, have %d", label, idx, len(desktop.Monitors))
	}
	return desktop.Monitors[idx], nil
}

// Heartbeat forwards a renderer heartbeat to the supervisor.
func (e *Engine) Heartbeat(label string) {
	e.sup.Heartbeat(label)
}

// Health returns the current surface health records.
func (e *Engine) Health() map[string]supervisor.Health {
	return e.sup.Snapshot()
}

// DeliverWindows is the poller sink; it fans the classified set out to all
// live surfaces.
func (e *Engine) DeliverWindows(windows []winscan.ForeignWindow) {
	e.sup.DeliverWindows(windows)
}

// OnTopologyChange recomputes the desktop and rebuilds all surfaces. Wired
// as the hot-swap watcher's notify callback.
func (e *Engine) OnTopologyChange() {
	desktop, err := e.VirtualDesktop()
	if err != nil {
		e.logger.Error("topology changed but no desktop available", "error", err)
		return
	}
	e.logger.Info("rebuilding surfaces for new monitor topology",
		"monitors", len(desktop.Monitors),
		"size", fmt.Sprintf("%dx%d", desktop.Width, desktop.Height))
	e.sup.Rebuild(desktop)
}

func monitorIndexForLabel(label string) int {
	if i := strings.LastIndexByte(label, '-'); i >= 0 {
		if n, err := strconv.Atoi(label[i+1:]); err == nil {
			return n
		}
	}
	return 0
}
