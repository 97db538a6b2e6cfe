// Package supervisor keeps the engine's render surfaces alive. Surfaces run
// in a separate renderer process and prove liveness by heartbeating; the
// supervisor detects stalls, destroys and recreates stalled surfaces with
// bounded backoff, and gives up on surfaces that keep crashing.
package supervisor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cloudburst-desktop/cloudburst/internal/geometry"
	"github.com/cloudburst-desktop/cloudburst/internal/winscan"
)

// Surface is one render surface under supervision. Implementations talk to
// the renderer; none of these methods are called with the supervisor lock
// held.
type Surface interface {
	Label() string
	Create(desktop geometry.VirtualDesktop) error
	Destroy()
	Hide()
	DeliverWindows(windows []winscan.ForeignWindow)
}

// Health is the liveness record for one surface.
type Health struct {
	CreatedAt     time.Time `json:"created_at"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	InitComplete  bool      `json:"init_complete"`
	CrashCount    int       `json:"crash_count"`
	GivenUp       bool      `json:"given_up"`
}

// DesktopFunc supplies a fresh virtual-desktop descriptor at recreate time.
// Recovery never reuses the descriptor the surface was created with; the
// monitor topology may be the thing that killed it.
type DesktopFunc func() (geometry.VirtualDesktop, error)

// Config holds the supervision thresholds.
type Config struct {
	// WatchdogInterval is how often surfaces are checked.
	WatchdogInterval time.Duration
	// StartupGrace suppresses all checks right after process start.
	StartupGrace time.Duration
	// StartupStall is the max age of a surface that never heartbeat.
	StartupStall time.Duration
	// HeartbeatStall is the max heartbeat age of an initialized surface.
	HeartbeatStall time.Duration
	// MaxCrashes is the crash count above which a surface is abandoned.
	MaxCrashes int
	// MaxBackoffShift caps the exponential recreate delay at 2^shift seconds.
	MaxBackoffShift int

	Logger *slog.Logger
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		WatchdogInterval: 5 * time.Second,
		StartupGrace:     30 * time.Second,
		StartupStall:     30 * time.Second,
		HeartbeatStall:   15 * time.Second,
		MaxCrashes:       3,
		MaxBackoffShift:  4,
	}
}

// Supervisor owns the health records and the surfaces bound to them. The
// mutex guards only the in-memory records; surface calls and sleeps happen
// outside it.
type Supervisor struct {
	cfg     Config
	desktop DesktopFunc
	logger  *slog.Logger

	mu       sync.Mutex
	health   map[string]*Health
	surfaces map[string]Surface

	startedAt time.Time

	// Injected for tests.
	now   func() time.Time
	after func(d time.Duration, f func())
}

// New creates a supervisor. desktop is called on every recreate.
func New(cfg Config, desktop DesktopFunc) *Supervisor {
	def := DefaultConfig()
	if cfg.WatchdogInterval <= 0 {
		cfg.WatchdogInterval = def.WatchdogInterval
	}
	if cfg.StartupGrace <= 0 {
		cfg.StartupGrace = def.StartupGrace
	}
	if cfg.StartupStall <= 0 {
		cfg.StartupStall = def.StartupStall
	}
	if cfg.HeartbeatStall <= 0 {
		cfg.HeartbeatStall = def.HeartbeatStall
	}
	if cfg.MaxCrashes <= 0 {
		cfg.MaxCrashes = def.MaxCrashes
	}
	if cfg.MaxBackoffShift <= 0 {
		cfg.MaxBackoffShift = def.MaxBackoffShift
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Supervisor{
		cfg:      cfg,
		desktop:  desktop,
		logger:   cfg.Logger,
		health:   make(map[string]*Health),
		surfaces: make(map[string]Surface),
		now:      time.Now,
		after: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
	s.startedAt = s.now()
	return s
}

// Manage creates the surface against the given desktop and starts tracking
// it. Creation failure leaves the surface unmanaged.
func (s *Supervisor) Manage(surface Surface, desktop geometry.VirtualDesktop) error {
	if err := surface.Create(desktop); err != nil {
		return err
	}
	label := surface.Label()

	s.mu.Lock()
	s.surfaces[label] = surface
	s.track(label)
	s.mu.Unlock()

	s.logger.Info("surface created", "label", label)
	return nil
}

// track resets the health record for a (re)created surface. The crash count
// and give-up state survive; everything else starts over. Callers hold mu.
func (s *Supervisor) track(label string) {
	crashes := 0
	givenUp := false
	if old, ok := s.health[label]; ok {
		crashes = old.CrashCount
		givenUp = old.GivenUp
	}
	s.health[label] = &Health{
		CreatedAt:  s.now(),
		CrashCount: crashes,
		GivenUp:    givenUp,
	}
}

// Heartbeat records liveness for a surface. The first heartbeat after a
// (re)creation marks initialization complete. Unknown labels are ignored;
// a renderer may report before its surface is tracked.
func (s *Supervisor) Heartbeat(label string) {
	now := s.now()

	s.mu.Lock()
	h, ok := s.health[label]
	if !ok {
		s.mu.Unlock()
		s.logger.Debug("heartbeat for untracked surface", "label", label)
		return
	}
	first := !h.InitComplete
	var startup time.Duration
	if first {
		h.InitComplete = true
		startup = now.Sub(h.CreatedAt)
	}
	h.LastHeartbeat = now
	s.mu.Unlock()

	if first {
		s.logger.Info("surface initialized", "label", label, "startup", startup)
	}
}

// DeliverWindows fans a classified window set out to every live surface.
func (s *Supervisor) DeliverWindows(windows []winscan.ForeignWindow) {
	s.mu.Lock()
	targets := make([]Surface, 0, len(s.surfaces))
	for label, surface := range s.surfaces {
		if h := s.health[label]; h != nil && !h.GivenUp {
			targets = append(targets, surface)
		}
	}
	s.mu.Unlock()

	for _, surface := range targets {
		surface.DeliverWindows(windows)
	}
}

// Snapshot returns a copy of all health records, keyed by label.
func (s *Supervisor) Snapshot() map[string]Health {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]Health, len(s.health))
	for label, h := range s.health {
		out[label] = *h
	}
	return out
}

// Rebuild destroys and recreates every live surface against a new desktop
// descriptor. Used after a confirmed monitor topology change; crash counts
// are not touched because the surface did nothing wrong.
func (s *Supervisor) Rebuild(desktop geometry.VirtualDesktop) {
	s.mu.Lock()
	targets := make([]Surface, 0, len(s.surfaces))
	for label, surface := range s.surfaces {
		if h := s.health[label]; h != nil && !h.GivenUp {
			targets = append(targets, surface)
		}
	}
	s.mu.Unlock()

	for _, surface := range targets {
		label := surface.Label()
		surface.Destroy()
		if err := surface.Create(desktop); err != nil {
			s.logger.Error("surface rebuild failed", "label", label, "error", err)
			continue
		}
		s.mu.Lock()
		s.track(label)
		s.mu.Unlock()
		s.logger.Info("surface rebuilt", "label", label)
	}
}

// Run starts the watchdog loop. Blocks until context is cancelled.
func (s *Supervisor) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.WatchdogInterval)
	defer ticker.Stop()

	s.logger.Info("watchdog started", "interval", s.cfg.WatchdogInterval)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("watchdog stopped")
			return
		case <-ticker.C:
			s.CheckNow()
		}
	}
}

// CheckNow performs a single watchdog pass.
func (s *Supervisor) CheckNow() {
	now := s.now()
	if now.Sub(s.startedAt) < s.cfg.StartupGrace {
		return
	}

	var stalled []string
	var abandoned []Surface

	s.mu.Lock()
	for label, h := range s.health {
		if h.GivenUp {
			continue
		}
		if h.CrashCount > s.cfg.MaxCrashes {
			h.GivenUp = true
			if surface := s.surfaces[label]; surface != nil {
				abandoned = append(abandoned, surface)
			}
			s.logger.Error("surface abandoned after repeated crashes",
				"label", label, "crash_count", h.CrashCount)
			continue
		}
		if !h.InitComplete {
			if age := now.Sub(h.CreatedAt); age > s.cfg.StartupStall {
				s.logger.Warn("surface stalled at startup", "label", label, "age", age)
				stalled = append(stalled, label)
			}
			continue
		}
		if age := now.Sub(h.LastHeartbeat); age > s.cfg.HeartbeatStall {
			s.logger.Warn("surface heartbeat stalled", "label", label, "age", age)
			stalled = append(stalled, label)
		}
	}
	s.mu.Unlock()

	for _, surface := range abandoned {
		surface.Hide()
	}
	for _, label := range stalled {
		s.recoverSurface(label)
	}
}

// recoverSurface tears a stalled surface down and schedules a recreate with
// exponential backoff. Resetting the health record here keeps the watchdog
// from firing again while the backoff timer runs.
func (s *Supervisor) recoverSurface(label string) {
	s.mu.Lock()
	h, ok := s.health[label]
	if !ok {
		s.mu.Unlock()
		return
	}
	h.CrashCount++
	crashes := h.CrashCount
	h.CreatedAt = s.now()
	h.LastHeartbeat = time.Time{}
	h.InitComplete = false
	surface := s.surfaces[label]
	s.mu.Unlock()

	if surface != nil {
		surface.Destroy()
	}

	shift := crashes
	if shift > s.cfg.MaxBackoffShift {
		shift = s.cfg.MaxBackoffShift
	}
	delay := time.Duration(1<<shift) * time.Second

	s.logger.Warn("surface recovery scheduled",
		"label", label, "crash_count", crashes, "delay", delay)

	s.after(delay, func() { s.recreate(label) })
}

// recreate rebuilds a surface against a fresh desktop descriptor. On
// failure the surface stays absent and the startup-stall check retries.
func (s *Supervisor) recreate(label string) {
	s.mu.Lock()
	surface := s.surfaces[label]
	s.mu.Unlock()
	if surface == nil {
		return
	}

	desktop, err := s.desktop()
	if err != nil {
		s.logger.Error("surface recreate failed: no desktop", "label", label, "error", err)
		return
	}
	if err := surface.Create(desktop); err != nil {
		s.logger.Error("surface recreate failed", "label", label, "error", err)
		return
	}

	s.mu.Lock()
	s.track(label)
	s.mu.Unlock()

	s.logger.Info("surface recreated", "label", label)
}
