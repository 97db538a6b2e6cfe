//go:build linux

package winscan

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"

	"github.com/cloudburst-desktop/cloudburst/internal/geometry"
)

// stickyDesktop marks a window pinned to all desktops in _NET_WM_DESKTOP.
const stickyDesktop = 0xFFFFFFFF

// X11Enumerator walks the window manager's client list over EWMH.
type X11Enumerator struct {
	xu   *xgbutil.XUtil
	root xproto.Window
}

var _ Enumerator = (*X11Enumerator)(nil)

// NewEnumerator opens a fresh X11 connection for window scanning.
func NewEnumerator() (Enumerator, error) {
	xu, err := xgbutil.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X11: %w", err)
	}
	return &X11Enumerator{xu: xu, root: xu.RootWin()}, nil
}

func (e *X11Enumerator) Close() {
	if e != nil && e.xu != nil {
		e.xu.Conn().Close()
	}
}

func (e *X11Enumerator) Windows() ([]Probe, error) {
	clients, err := ewmh.ClientListGet(e.xu)
	if err != nil {
		return nil, fmt.Errorf("failed to get client list: %w", err)
	}

	probes := make([]Probe, len(clients))
	for i, id := range clients {
		probes[i] = &x11Probe{id: id, enum: e}
	}
	return probes, nil
}

type x11Probe struct {
	id   xproto.Window
	enum *X11Enumerator
}

// Visible requires the window to be mapped and of a normal application
// type. Docks, desktops, and splashes never reach the later stages.
func (p *x11Probe) Visible() bool {
	attrs, err := xproto.GetWindowAttributes(p.enum.xu.Conn(), p.id).Reply()
	if err != nil || attrs.MapState != xproto.MapStateViewable {
		return false
	}
	return p.isNormalWindow()
}

func (p *x11Probe) isNormalWindow() bool {
	types, err := ewmh.WmWindowTypeGet(p.enum.xu, p.id)
	if err != nil {
		return true
	}
	for _, t := range types {
		switch t {
		case "_NET_WM_WINDOW_TYPE_NORMAL":
			return true
		case "_NET_WM_WINDOW_TYPE_DESKTOP",
			"_NET_WM_WINDOW_TYPE_DOCK",
			"_NET_WM_WINDOW_TYPE_SPLASH",
			"_NET_WM_WINDOW_TYPE_NOTIFICATION":
			return false
		}
	}
	return len(types) == 0
}

func (p *x11Probe) Minimized() bool {
	states, err := ewmh.WmStateGet(p.enum.xu, p.id)
	if err != nil {
		return false
	}
	for _, state := range states {
		if state == "_NET_WM_STATE_HIDDEN" {
			return true
		}
	}
	return false
}

// Cloaked has no X11 equivalent; compositors do not hide mapped windows
// behind the window manager's back.
func (p *x11Probe) Cloaked() bool { return false }

func (p *x11Probe) OnCurrentDesktop() (bool, error) {
	current, err := ewmh.CurrentDesktopGet(p.enum.xu)
	if err != nil {
		return false, err
	}
	desktop, err := ewmh.WmDesktopGet(p.enum.xu, p.id)
	if err != nil {
		return false, err
	}
	if desktop == stickyDesktop {
		return true, nil
	}
	return desktop == current, nil
}

// Bounds translates the client rectangle to root coordinates and grows it
// by the window manager's frame extents so decorations count.
func (p *x11Probe) Bounds() (geometry.Rect, bool) {
	geom, err := xproto.GetGeometry(p.enum.xu.Conn(), xproto.Drawable(p.id)).Reply()
	if err != nil {
		return geometry.Rect{}, false
	}
	translate, err := xproto.TranslateCoordinates(p.enum.xu.Conn(), p.id, p.enum.root, 0, 0).Reply()
	if err != nil {
		return geometry.Rect{}, false
	}

	r := geometry.Rect{
		X:      int(translate.DstX),
		Y:      int(translate.DstY),
		Width:  int(geom.Width),
		Height: int(geom.Height),
	}

	if extents, err := ewmh.FrameExtentsGet(p.enum.xu, p.id); err == nil {
		r.X -= int(extents.Left)
		r.Y -= int(extents.Top)
		r.Width += int(extents.Left) + int(extents.Right)
		r.Height += int(extents.Top) + int(extents.Bottom)
	}

	return r, true
}

func (p *x11Probe) Class() string {
	wmClass, err := icccm.WmClassGet(p.enum.xu, p.id)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(wmClass.Class)
}

func (p *x11Probe) Title() string {
	if title, err := ewmh.WmNameGet(p.enum.xu, p.id); err == nil {
		if title = strings.TrimSpace(title); title != "" {
			return title
		}
	}
	if title, err := icccm.WmNameGet(p.enum.xu, p.id); err == nil {
		return strings.TrimSpace(title)
	}
	return ""
}

func (p *x11Probe) Maximized() bool {
	states, err := ewmh.WmStateGet(p.enum.xu, p.id)
	if err != nil {
		return false
	}
	horz, vert := false, false
	for _, state := range states {
		switch state {
		case "_NET_WM_STATE_MAXIMIZED_HORZ":
			horz = true
		case "_NET_WM_STATE_MAXIMIZED_VERT":
			vert = true
		}
	}
	return horz && vert
}
