package supervisor

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/cloudburst-desktop/cloudburst/internal/geometry"
	"github.com/cloudburst-desktop/cloudburst/internal/winscan"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeSurface struct {
	label     string
	createErr error

	mu        sync.Mutex
	creates   int
	destroys  int
	hides     int
	delivered [][]winscan.ForeignWindow
}

func (f *fakeSurface) Label() string { return f.label }

func (f *fakeSurface) Create(geometry.VirtualDesktop) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.creates++
	return nil
}

func (f *fakeSurface) Destroy() {
	f.mu.Lock()
	f.destroys++
	f.mu.Unlock()
}

func (f *fakeSurface) Hide() {
	f.mu.Lock()
	f.hides++
	f.mu.Unlock()
}

func (f *fakeSurface) DeliverWindows(ws []winscan.ForeignWindow) {
	f.mu.Lock()
	f.delivered = append(f.delivered, ws)
	f.mu.Unlock()
}

// pendingTimer captures scheduled recreates instead of running them.
type pendingTimer struct {
	delay time.Duration
	fire  func()
}

type testRig struct {
	sup    *Supervisor
	clock  *fakeClock
	timers []pendingTimer
}

func newRig(t *testing.T, desktop DesktopFunc) *testRig {
	t.Helper()
	clock := &fakeClock{now: time.Unix(1000, 0)}
	if desktop == nil {
		desktop = func() (geometry.VirtualDesktop, error) {
			return geometry.VirtualDesktop{Width: 1920, Height: 1080}, nil
		}
	}

	cfg := DefaultConfig()
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	rig := &testRig{clock: clock}
	rig.sup = New(cfg, desktop)
	rig.sup.now = clock.Now
	rig.sup.startedAt = clock.Now()
	rig.sup.after = func(d time.Duration, f func()) {
		rig.timers = append(rig.timers, pendingTimer{delay: d, fire: f})
	}
	return rig
}

func (r *testRig) fireTimers() {
	timers := r.timers
	r.timers = nil
	for _, timer := range timers {
		timer.fire()
	}
}

func TestHeartbeatFlipsInitOnce(t *testing.T) {
	rig := newRig(t, nil)
	surface := &fakeSurface{label: "overlay"}
	if err := rig.sup.Manage(surface, geometry.VirtualDesktop{}); err != nil {
		t.Fatalf("Manage: %v", err)
	}

	rig.clock.Advance(2 * time.Second)
	rig.sup.Heartbeat("overlay")

	h := rig.sup.Snapshot()["overlay"]
	if !h.InitComplete {
		t.Fatal("InitComplete not set after first heartbeat")
	}
	if !h.LastHeartbeat.Equal(rig.clock.Now()) {
		t.Fatalf("LastHeartbeat = %v, want %v", h.LastHeartbeat, rig.clock.Now())
	}

	rig.clock.Advance(time.Second)
	rig.sup.Heartbeat("overlay")
	h = rig.sup.Snapshot()["overlay"]
	if !h.LastHeartbeat.Equal(rig.clock.Now()) {
		t.Fatal("later heartbeat did not update LastHeartbeat")
	}
}

func TestHeartbeatUnknownLabelIgnored(t *testing.T) {
	rig := newRig(t, nil)
	rig.sup.Heartbeat("background")
	if len(rig.sup.Snapshot()) != 0 {
		t.Fatal("heartbeat for unknown label created a record")
	}
}

func TestWatchdogQuietDuringStartupGrace(t *testing.T) {
	rig := newRig(t, nil)
	surface := &fakeSurface{label: "overlay"}
	rig.sup.Manage(surface, geometry.VirtualDesktop{})

	// 29s in: inside the grace period, nothing happens even though the
	// surface never heartbeat.
	rig.clock.Advance(29 * time.Second)
	rig.sup.CheckNow()

	if surface.destroys != 0 || len(rig.timers) != 0 {
		t.Fatal("watchdog acted during startup grace")
	}
}

func TestWatchdogRecoversStartupStall(t *testing.T) {
	rig := newRig(t, nil)
	surface := &fakeSurface{label: "overlay"}
	rig.sup.Manage(surface, geometry.VirtualDesktop{})

	rig.clock.Advance(31 * time.Second)
	rig.sup.CheckNow()

	if surface.destroys != 1 {
		t.Fatalf("destroys = %d, want 1", surface.destroys)
	}
	h := rig.sup.Snapshot()["overlay"]
	if h.CrashCount != 1 {
		t.Fatalf("CrashCount = %d, want 1", h.CrashCount)
	}
	if len(rig.timers) != 1 || rig.timers[0].delay != 2*time.Second {
		t.Fatalf("timers = %+v, want one 2s backoff", rig.timers)
	}

	rig.fireTimers()
	if surface.creates != 2 {
		t.Fatalf("creates = %d, want 2 after recreate", surface.creates)
	}
	// Recreate resets the record but keeps the crash count.
	h = rig.sup.Snapshot()["overlay"]
	if h.CrashCount != 1 || h.InitComplete {
		t.Fatalf("post-recreate health = %+v", h)
	}
}

func TestWatchdogHeartbeatStallBoundaries(t *testing.T) {
	rig := newRig(t, nil)
	surface := &fakeSurface{label: "overlay"}
	rig.sup.Manage(surface, geometry.VirtualDesktop{})

	rig.clock.Advance(31 * time.Second)
	rig.sup.Heartbeat("overlay")

	// 14s since heartbeat: healthy.
	rig.clock.Advance(14 * time.Second)
	rig.sup.CheckNow()
	if surface.destroys != 0 {
		t.Fatal("recovered a surface with a 14s-old heartbeat")
	}

	// 16s since heartbeat: stalled.
	rig.clock.Advance(2 * time.Second)
	rig.sup.CheckNow()
	if surface.destroys != 1 {
		t.Fatalf("destroys = %d, want 1 at 16s heartbeat age", surface.destroys)
	}
}

func TestWatchdogRecoveryResetSuppressesRefire(t *testing.T) {
	rig := newRig(t, nil)
	surface := &fakeSurface{label: "overlay"}
	rig.sup.Manage(surface, geometry.VirtualDesktop{})

	rig.clock.Advance(31 * time.Second)
	rig.sup.CheckNow()
	if surface.destroys != 1 {
		t.Fatalf("destroys = %d, want 1", surface.destroys)
	}

	// While the backoff timer is pending the record was reset, so another
	// pass right away must not recover again.
	rig.clock.Advance(5 * time.Second)
	rig.sup.CheckNow()
	if surface.destroys != 1 {
		t.Fatalf("destroys = %d after second pass, want 1", surface.destroys)
	}
}

func TestBackoffCapsAtSixteenSeconds(t *testing.T) {
	rig := newRig(t, nil)
	surface := &fakeSurface{label: "overlay"}
	rig.sup.Manage(surface, geometry.VirtualDesktop{})
	// MaxCrashes raised so the cap is observable before abandonment.
	rig.sup.cfg.MaxCrashes = 10

	wantDelays := []time.Duration{
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		16 * time.Second,
	}
	for i, want := range wantDelays {
		rig.clock.Advance(31 * time.Second)
		rig.sup.CheckNow()
		if len(rig.timers) != 1 {
			t.Fatalf("round %d: %d timers pending", i, len(rig.timers))
		}
		if got := rig.timers[0].delay; got != want {
			t.Fatalf("round %d: backoff = %v, want %v", i, got, want)
		}
		rig.fireTimers()
	}
}

func TestWatchdogGivesUpAfterRepeatedCrashes(t *testing.T) {
	rig := newRig(t, nil)
	surface := &fakeSurface{label: "overlay"}
	rig.sup.Manage(surface, geometry.VirtualDesktop{})

	// Four recovery rounds push the crash count past MaxCrashes (3).
	for i := 0; i < 4; i++ {
		rig.clock.Advance(31 * time.Second)
		rig.sup.CheckNow()
		rig.fireTimers()
	}
	h := rig.sup.Snapshot()["overlay"]
	if h.CrashCount != 4 {
		t.Fatalf("CrashCount = %d, want 4", h.CrashCount)
	}

	rig.clock.Advance(31 * time.Second)
	rig.sup.CheckNow()

	h = rig.sup.Snapshot()["overlay"]
	if !h.GivenUp {
		t.Fatal("surface not marked given up")
	}
	if surface.hides != 1 {
		t.Fatalf("hides = %d, want 1", surface.hides)
	}
	if surface.destroys != 4 {
		t.Fatalf("destroys = %d, want 4 (no recovery after give-up)", surface.destroys)
	}

	// Subsequent passes stay silent.
	rig.clock.Advance(31 * time.Second)
	rig.sup.CheckNow()
	if surface.hides != 1 {
		t.Fatalf("hides = %d after second pass, want 1", surface.hides)
	}
}

func TestRecreateFailureRetriesViaStartupStall(t *testing.T) {
	desktopErr := errors.New("no monitors")
	failing := true
	rig := newRig(t, func() (geometry.VirtualDesktop, error) {
		if failing {
			return geometry.VirtualDesktop{}, desktopErr
		}
		return geometry.VirtualDesktop{Width: 1920, Height: 1080}, nil
	})
	surface := &fakeSurface{label: "overlay"}
	rig.sup.Manage(surface, geometry.VirtualDesktop{})

	rig.clock.Advance(31 * time.Second)
	rig.sup.CheckNow()
	rig.fireTimers()
	if surface.creates != 1 {
		t.Fatalf("creates = %d, want 1 (recreate should have failed)", surface.creates)
	}

	// The reset record ages past the startup stall again and the next
	// round succeeds.
	failing = false
	rig.clock.Advance(31 * time.Second)
	rig.sup.CheckNow()
	rig.fireTimers()
	if surface.creates != 2 {
		t.Fatalf("creates = %d, want 2", surface.creates)
	}
	if h := rig.sup.Snapshot()["overlay"]; h.CrashCount != 2 {
		t.Fatalf("CrashCount = %d, want 2", h.CrashCount)
	}
}

func TestDeliverWindowsSkipsAbandonedSurfaces(t *testing.T) {
	rig := newRig(t, nil)
	live := &fakeSurface{label: "overlay"}
	dead := &fakeSurface{label: "background"}
	rig.sup.Manage(live, geometry.VirtualDesktop{})
	rig.sup.Manage(dead, geometry.VirtualDesktop{})

	rig.sup.mu.Lock()
	rig.sup.health["background"].GivenUp = true
	rig.sup.mu.Unlock()

	rig.sup.DeliverWindows([]winscan.ForeignWindow{{Title: "Editor"}})

	if len(live.delivered) != 1 {
		t.Fatalf("live surface got %d deliveries, want 1", len(live.delivered))
	}
	if len(dead.delivered) != 0 {
		t.Fatalf("abandoned surface got %d deliveries, want 0", len(dead.delivered))
	}
}

func TestManageCreateFailure(t *testing.T) {
	rig := newRig(t, nil)
	surface := &fakeSurface{label: "overlay", createErr: errors.New("renderer unavailable")}
	if err := rig.sup.Manage(surface, geometry.VirtualDesktop{}); err == nil {
		t.Fatal("want error from failed create")
	}
	if len(rig.sup.Snapshot()) != 0 {
		t.Fatal("failed surface was tracked")
	}
}
