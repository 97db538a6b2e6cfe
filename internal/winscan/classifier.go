package winscan

import (
	"strings"

	"github.com/cloudburst-desktop/cloudburst/internal/geometry"
)

// Default shell and overlay classes that never count as application
// windows. The list is Windows-centric because that is where the desktop
// shell leaks pseudo-windows into enumeration; X11 window managers mostly
// keep theirs out of _NET_CLIENT_LIST.
var defaultClassDenylist = []string{
	"Progman",
	"WorkerW",
	"Shell_TrayWnd",
	"Shell_SecondaryTrayWnd",
	"NotifyIconOverflowWindow",
	"Windows.UI.Core.CoreWindow",
	"XamlExplorerHostIslandWindow",
	"ForegroundStaging",
	"MultitaskingViewFrame",
	"XamlWindow",
	"CEF-OSC-WIDGET",
}

// OS overlay surfaces that pass every structural check but are not
// application windows. Matched by exact title.
var defaultSystemTitles = []string{
	"Windows Input Experience",
	"Microsoft Text Input Application",
	"Task Switching",
	"Task View",
}

const (
	defaultMinWidth  = 50
	defaultMinHeight = 50

	// Phantom windows: invisible input-routing artifacts that report
	// screen-sized portrait bounds near the origin.
	phantomOriginSlack = 50
	phantomMinWidth    = 1000
	phantomMinHeight   = 1800
)

// Options tunes the classifier. Zero values fall back to the defaults
// above; config only overrides what it names.
type Options struct {
	MinWidth       int
	MinHeight      int
	ClassDenylist  []string
	SystemTitles   []string
	OwnTitlePrefix string
	DebugTitlePart string
}

// DefaultOptions returns the stock filter set.
func DefaultOptions() Options {
	return Options{
		MinWidth:       defaultMinWidth,
		MinHeight:      defaultMinHeight,
		ClassDenylist:  defaultClassDenylist,
		SystemTitles:   defaultSystemTitles,
		OwnTitlePrefix: "Cloudburst",
		DebugTitlePart: "DevTools",
	}
}

// Classifier decides whether an enumerated window is a real application
// window. The checks run in a fixed order from cheap to expensive and
// every rejection short-circuits.
type Classifier struct {
	opts      Options
	denyClass map[string]struct{}
	denyTitle map[string]struct{}
}

func NewClassifier(opts Options) *Classifier {
	if opts.MinWidth <= 0 {
		opts.MinWidth = defaultMinWidth
	}
	if opts.MinHeight <= 0 {
		opts.MinHeight = defaultMinHeight
	}
	if opts.ClassDenylist == nil {
		opts.ClassDenylist = defaultClassDenylist
	}
	if opts.SystemTitles == nil {
		opts.SystemTitles = defaultSystemTitles
	}

	c := &Classifier{
		opts:      opts,
		denyClass: make(map[string]struct{}, len(opts.ClassDenylist)),
		denyTitle: make(map[string]struct{}, len(opts.SystemTitles)),
	}
	for _, cls := range opts.ClassDenylist {
		c.denyClass[cls] = struct{}{}
	}
	for _, title := range opts.SystemTitles {
		c.denyTitle[title] = struct{}{}
	}
	return c
}

// Classify runs the filter pipeline over one probe. ok is true only when
// the window is a real, visible application window.
func (c *Classifier) Classify(p Probe) (w ForeignWindow, ok bool) {
	if !p.Visible() {
		return ForeignWindow{}, false
	}
	if p.Minimized() {
		return ForeignWindow{}, false
	}
	if p.Cloaked() {
		return ForeignWindow{}, false
	}

	// Desktop membership is the one check that keeps the window when the
	// query fails: dropping a real window is worse than briefly rendering
	// around one from another desktop.
	if onDesktop, err := p.OnCurrentDesktop(); err == nil && !onDesktop {
		return ForeignWindow{}, false
	}

	bounds, haveBounds := p.Bounds()
	if !haveBounds {
		return ForeignWindow{}, false
	}
	if bounds.Width < c.opts.MinWidth || bounds.Height < c.opts.MinHeight {
		return ForeignWindow{}, false
	}

	if _, denied := c.denyClass[p.Class()]; denied {
		return ForeignWindow{}, false
	}

	if isPhantom(bounds) {
		return ForeignWindow{}, false
	}

	title := p.Title()
	if title == "" {
		return ForeignWindow{}, false
	}
	if c.opts.OwnTitlePrefix != "" && strings.HasPrefix(title, c.opts.OwnTitlePrefix) {
		return ForeignWindow{}, false
	}
	if c.opts.DebugTitlePart != "" && strings.Contains(title, c.opts.DebugTitlePart) {
		return ForeignWindow{}, false
	}

	if _, denied := c.denyTitle[title]; denied {
		return ForeignWindow{}, false
	}

	return ForeignWindow{
		Bounds:    bounds,
		Title:     title,
		Maximized: p.Maximized(),
	}, true
}

// Scan enumerates and classifies in one pass.
func (c *Classifier) Scan(enum Enumerator) ([]ForeignWindow, error) {
	probes, err := enum.Windows()
	if err != nil {
		return nil, err
	}
	windows := make([]ForeignWindow, 0, len(probes))
	for _, p := range probes {
		if w, ok := c.Classify(p); ok {
			windows = append(windows, w)
		}
	}
	return windows, nil
}

func isPhantom(r geometry.Rect) bool {
	nearOrigin := abs(r.X) < phantomOriginSlack && abs(r.Y) < phantomOriginSlack
	portrait := r.Height > r.Width
	screenSized := r.Width >= phantomMinWidth || r.Height >= phantomMinHeight
	return nearOrigin && portrait && screenSized
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
