//go:build linux

package display

import (
	"fmt"

	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/ewmh"

	"github.com/cloudburst-desktop/cloudburst/internal/geometry"
)

// X11Backend enumerates monitors over XRandR. X11 applies scaling globally
// through the server, so every monitor reports scale 1.0 here.
type X11Backend struct {
	xu   *xgbutil.XUtil
	root xproto.Window
}

var _ Backend = (*X11Backend)(nil)

// NewBackend opens a fresh X11 connection.
func NewBackend() (Backend, error) {
	xu, err := xgbutil.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X11: %w", err)
	}
	if err := randr.Init(xu.Conn()); err != nil {
		xu.Conn().Close()
		return nil, fmt.Errorf("randr init failed: %w", err)
	}
	return &X11Backend{xu: xu, root: xu.RootWin()}, nil
}

// Close closes the underlying X11 connection.
func (b *X11Backend) Close() {
	if b != nil && b.xu != nil {
		b.xu.Conn().Close()
	}
}

// Enumerate queries each active CRTC and resolves bounds, refresh rate,
// primary output, and the EWMH work area.
func (b *X11Backend) Enumerate() ([]geometry.Monitor, error) {
	resources, err := randr.GetScreenResources(b.xu.Conn(), b.root).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get screen resources: %w", err)
	}

	var primaryOutput randr.Output
	if reply, err := randr.GetOutputPrimary(b.xu.Conn(), b.root).Reply(); err == nil {
		primaryOutput = reply.Output
	}

	var monitors []geometry.Monitor
	for _, crtc := range resources.Crtcs {
		info, err := randr.GetCrtcInfo(b.xu.Conn(), crtc, resources.ConfigTimestamp).Reply()
		if err != nil {
			continue
		}
		if info.Width == 0 || info.Height == 0 || len(info.Outputs) == 0 {
			continue
		}

		bounds := geometry.Rect{
			X:      int(info.X),
			Y:      int(info.Y),
			Width:  int(info.Width),
			Height: int(info.Height),
		}

		primary := false
		for _, out := range info.Outputs {
			if out == primaryOutput && primaryOutput != 0 {
				primary = true
				break
			}
		}

		monitors = append(monitors, geometry.Monitor{
			Bounds:      bounds,
			WorkArea:    b.workAreaFor(bounds),
			Scale:       1.0,
			RefreshRate: refreshRateForMode(resources, info.Mode),
			Primary:     primary,
		})
	}

	return monitors, nil
}

// workAreaFor intersects the EWMH work area for the current desktop with the
// monitor bounds. _NET_WORKAREA is root-relative and spans all monitors, so
// the intersection is what the window manager left usable on this one.
func (b *X11Backend) workAreaFor(bounds geometry.Rect) geometry.Rect {
	workAreas, err := ewmh.WorkareaGet(b.xu)
	if err != nil || len(workAreas) == 0 {
		return geometry.FallbackWorkArea(bounds)
	}

	idx := 0
	if current, err := ewmh.CurrentDesktopGet(b.xu); err == nil && int(current) < len(workAreas) {
		idx = int(current)
	}
	wa := workAreas[idx]

	x1 := maxInt(bounds.X, int(wa.X))
	y1 := maxInt(bounds.Y, int(wa.Y))
	x2 := minInt(bounds.X+bounds.Width, int(wa.X)+int(wa.Width))
	y2 := minInt(bounds.Y+bounds.Height, int(wa.Y)+int(wa.Height))
	if x2 <= x1 || y2 <= y1 {
		return geometry.FallbackWorkArea(bounds)
	}
	return geometry.Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

func refreshRateForMode(resources *randr.GetScreenResourcesReply, mode randr.Mode) int {
	for _, m := range resources.Modes {
		if randr.Mode(m.Id) != mode {
			continue
		}
		total := int(m.Htotal) * int(m.Vtotal)
		if total == 0 {
			break
		}
		return int(float64(m.DotClock)/float64(total) + 0.5)
	}
	return 60
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
