//go:build linux

package ipc

import (
	"io"
	"log/slog"
	"testing"

	"github.com/cloudburst-desktop/cloudburst/internal/display"
	"github.com/cloudburst-desktop/cloudburst/internal/engine"
	"github.com/cloudburst-desktop/cloudburst/internal/geometry"
	"github.com/cloudburst-desktop/cloudburst/internal/panel"
	"github.com/cloudburst-desktop/cloudburst/internal/supervisor"
	"github.com/cloudburst-desktop/cloudburst/internal/winscan"
)

type fakeBackend struct {
	monitors []geometry.Monitor
}

func (f *fakeBackend) Enumerate() ([]geometry.Monitor, error) { return f.monitors, nil }
func (f *fakeBackend) Close()                                 {}

var _ display.Backend = (*fakeBackend)(nil)

// startTestServer brings up a server on a socket in a temp runtime dir and
// returns a client pointed at it.
func startTestServer(t *testing.T) (*Client, *Server) {
	t.Helper()
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	backend := &fakeBackend{monitors: []geometry.Monitor{
		{
			Bounds:   geometry.Rect{X: 0, Y: 0, Width: 1920, Height: 1080},
			WorkArea: geometry.Rect{X: 0, Y: 0, Width: 1920, Height: 1032},
			Scale:    1.0, RefreshRate: 60, Primary: true,
		},
		{
			Bounds:   geometry.Rect{X: 1920, Y: 0, Width: 1920, Height: 1080},
			WorkArea: geometry.Rect{X: 1920, Y: 0, Width: 1920, Height: 1032},
			Scale:    1.0, RefreshRate: 60,
		},
	}}

	var eng *engine.Engine
	sup := supervisor.New(supervisor.Config{Logger: logger}, func() (geometry.VirtualDesktop, error) {
		return eng.VirtualDesktop()
	})
	eng = engine.New(backend, sup, logger)

	srv, err := NewServer(eng, logger, make(chan struct{}, 1))
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(srv.Stop)

	return NewClient(), srv
}

func TestStatusRoundTrip(t *testing.T) {
	client, srv := startTestServer(t)

	srv.SetWindows([]winscan.ForeignWindow{
		{Bounds: geometry.Rect{Width: 800, Height: 600}, Title: "Editor"},
	})

	status, err := client.GetStatus()
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if !status.DaemonRunning {
		t.Error("DaemonRunning = false")
	}
	if status.WindowCount != 1 {
		t.Errorf("WindowCount = %d, want 1", status.WindowCount)
	}
}

func TestVirtualDesktopRoundTrip(t *testing.T) {
	client, _ := startTestServer(t)

	desktop, err := client.GetVirtualDesktop()
	if err != nil {
		t.Fatalf("GetVirtualDesktop: %v", err)
	}
	if desktop.Width != 3840 || desktop.Height != 1080 {
		t.Errorf("desktop = %dx%d, want 3840x1080", desktop.Width, desktop.Height)
	}
	if len(desktop.Monitors) != 2 {
		t.Fatalf("monitors = %d, want 2", len(desktop.Monitors))
	}
}

func TestDisplaysRoundTrip(t *testing.T) {
	client, _ := startTestServer(t)

	displays, err := client.GetDisplays()
	if err != nil {
		t.Fatalf("GetDisplays: %v", err)
	}
	if len(displays.Displays) != 2 {
		t.Fatalf("displays = %d, want 2", len(displays.Displays))
	}
	if !displays.Displays[0].Primary {
		t.Error("first display not primary")
	}
}

func TestDisplayInfoRoundTrip(t *testing.T) {
	client, _ := startTestServer(t)

	region, err := client.GetDisplayInfo("overlay-1")
	if err != nil {
		t.Fatalf("GetDisplayInfo: %v", err)
	}
	if region.X != 1920 || region.Width != 1920 {
		t.Errorf("region = x=%d w=%d, want x=1920 w=1920", region.X, region.Width)
	}

	if _, err := client.GetDisplayInfo("overlay-9"); err == nil {
		t.Error("want error for out-of-range monitor")
	}
	if _, err := client.GetDisplayInfo(""); err == nil {
		t.Error("want error for empty label")
	}
}

func TestWindowsRoundTrip(t *testing.T) {
	client, srv := startTestServer(t)

	srv.SetWindows([]winscan.ForeignWindow{
		{Bounds: geometry.Rect{X: 10, Y: 20, Width: 640, Height: 480}, Title: "Terminal", Maximized: true},
	})

	windows, err := client.GetWindows()
	if err != nil {
		t.Fatalf("GetWindows: %v", err)
	}
	if len(windows.Windows) != 1 {
		t.Fatalf("windows = %d, want 1", len(windows.Windows))
	}
	got := windows.Windows[0]
	if got.Title != "Terminal" || !got.Maximized || got.Bounds.Width != 640 {
		t.Errorf("window = %+v", got)
	}
}

func TestHeartbeatAndReload(t *testing.T) {
	client, _ := startTestServer(t)

	if err := client.Heartbeat("overlay-0"); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}
	if err := client.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
}

func TestPanelRoundTrip(t *testing.T) {
	client, _ := startTestServer(t)

	data, err := client.GetPanel(0, 0)
	if err != nil {
		t.Fatalf("GetPanel: %v", err)
	}
	if data.Stored {
		t.Error("Stored = true before any save")
	}

	if err := client.SetPanel(panel.Placement{X: 100, Y: 200, Scale: 1.25}); err != nil {
		t.Fatalf("SetPanel: %v", err)
	}

	data, err = client.GetPanel(0, 0)
	if err != nil {
		t.Fatalf("GetPanel: %v", err)
	}
	if !data.Stored || data.Placement.X != 100 || data.Placement.Y != 200 {
		t.Errorf("placement = %+v, stored=%v", data.Placement, data.Stored)
	}

	if err := client.ResetPanel(); err != nil {
		t.Fatalf("ResetPanel: %v", err)
	}
	data, err = client.GetPanel(0, 0)
	if err != nil {
		t.Fatalf("GetPanel: %v", err)
	}
	if data.Stored {
		t.Error("Stored = true after reset")
	}
}

func TestPanelClampedToWorkArea(t *testing.T) {
	client, _ := startTestServer(t)

	// Off the right edge of the 1920-wide primary work area.
	if err := client.SetPanel(panel.Placement{X: 5000, Y: 500}); err != nil {
		t.Fatalf("SetPanel: %v", err)
	}

	data, err := client.GetPanel(400, 300)
	if err != nil {
		t.Fatalf("GetPanel: %v", err)
	}
	wantX := 1920 - 400 - panel.Margin
	if data.Placement.X != wantX {
		t.Errorf("clamped X = %d, want %d", data.Placement.X, wantX)
	}
	if data.Placement.Y != 500 {
		t.Errorf("clamped Y = %d, want 500", data.Placement.Y)
	}
}

func TestUnknownCommand(t *testing.T) {
	client, _ := startTestServer(t)

	_, err := client.sendRequest(&Request{Command: "BOGUS"})
	if err == nil {
		t.Fatal("want error for unknown command")
	}
}
