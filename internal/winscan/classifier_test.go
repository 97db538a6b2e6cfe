package winscan

import (
	"errors"
	"testing"

	"github.com/cloudburst-desktop/cloudburst/internal/geometry"
)

// fakeProbe answers classification queries from fixed fields.
type fakeProbe struct {
	visible    bool
	minimized  bool
	cloaked    bool
	onDesktop  bool
	desktopErr error
	bounds     geometry.Rect
	noBounds   bool
	class      string
	title      string
	maximized  bool
}

func (f *fakeProbe) Visible() bool   { return f.visible }
func (f *fakeProbe) Minimized() bool { return f.minimized }
func (f *fakeProbe) Cloaked() bool   { return f.cloaked }
func (f *fakeProbe) OnCurrentDesktop() (bool, error) {
	return f.onDesktop, f.desktopErr
}
func (f *fakeProbe) Bounds() (geometry.Rect, bool) {
	return f.bounds, !f.noBounds
}
func (f *fakeProbe) Class() string   { return f.class }
func (f *fakeProbe) Title() string   { return f.title }
func (f *fakeProbe) Maximized() bool { return f.maximized }

// normalWindow is a probe that passes every stage.
func normalWindow() *fakeProbe {
	return &fakeProbe{
		visible:   true,
		onDesktop: true,
		bounds:    geometry.Rect{X: 100, Y: 100, Width: 800, Height: 600},
		class:     "Chrome_WidgetWin_1",
		title:     "Documents - Editor",
	}
}

func TestClassifyAcceptsNormalWindow(t *testing.T) {
	c := NewClassifier(DefaultOptions())
	w, ok := c.Classify(normalWindow())
	if !ok {
		t.Fatal("normal window rejected")
	}
	if w.Title != "Documents - Editor" {
		t.Fatalf("title = %q", w.Title)
	}
	if w.Bounds != (geometry.Rect{X: 100, Y: 100, Width: 800, Height: 600}) {
		t.Fatalf("bounds = %+v", w.Bounds)
	}
}

func TestClassifyRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*fakeProbe)
	}{
		{"invisible", func(p *fakeProbe) { p.visible = false }},
		{"minimized", func(p *fakeProbe) { p.minimized = true }},
		{"cloaked", func(p *fakeProbe) { p.cloaked = true }},
		{"other desktop", func(p *fakeProbe) { p.onDesktop = false }},
		{"no bounds", func(p *fakeProbe) { p.noBounds = true }},
		{"too narrow", func(p *fakeProbe) { p.bounds.Width = 49 }},
		{"too short", func(p *fakeProbe) { p.bounds.Height = 49 }},
		{"shell class", func(p *fakeProbe) { p.class = "Progman" }},
		{"tray class", func(p *fakeProbe) { p.class = "Shell_TrayWnd" }},
		{"empty title", func(p *fakeProbe) { p.title = "" }},
		{"own window", func(p *fakeProbe) { p.title = "Cloudburst Overlay" }},
		{"devtools", func(p *fakeProbe) { p.title = "DevTools - localhost" }},
		{"input overlay", func(p *fakeProbe) { p.title = "Windows Input Experience" }},
		{"task view", func(p *fakeProbe) { p.title = "Task View" }},
		{"phantom portrait", func(p *fakeProbe) {
			p.bounds = geometry.Rect{X: 0, Y: 0, Width: 1080, Height: 1920}
		}},
	}

	c := NewClassifier(DefaultOptions())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := normalWindow()
			tt.mutate(p)
			if _, ok := c.Classify(p); ok {
				t.Fatal("window accepted, want rejected")
			}
		})
	}
}

func TestClassifyKeepsWindowOnDesktopQueryError(t *testing.T) {
	// The desktop membership check must not drop windows it cannot judge.
	p := normalWindow()
	p.onDesktop = false
	p.desktopErr = errors.New("com unavailable")

	c := NewClassifier(DefaultOptions())
	if _, ok := c.Classify(p); !ok {
		t.Fatal("window rejected on desktop query error, want kept")
	}
}

func TestClassifyPhantomEdges(t *testing.T) {
	tests := []struct {
		name   string
		bounds geometry.Rect
		ok     bool
	}{
		// Portrait near origin but small on both axes: kept.
		{"small portrait", geometry.Rect{X: 10, Y: 10, Width: 400, Height: 700}, true},
		// Landscape near origin: kept even when screen sized.
		{"maximized landscape", geometry.Rect{X: 0, Y: 0, Width: 1920, Height: 1080}, true},
		// Portrait, tall, but far from origin: a real rotated monitor window.
		{"rotated monitor", geometry.Rect{X: 1920, Y: 0, Width: 1080, Height: 1920}, true},
		{"phantom wide", geometry.Rect{X: -10, Y: 5, Width: 1000, Height: 1001}, false},
		{"phantom tall", geometry.Rect{X: 0, Y: 0, Width: 900, Height: 1800}, false},
	}

	c := NewClassifier(DefaultOptions())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := normalWindow()
			p.bounds = tt.bounds
			if _, ok := c.Classify(p); ok != tt.ok {
				t.Fatalf("ok = %v, want %v for %+v", ok, tt.ok, tt.bounds)
			}
		})
	}
}

type fakeEnumerator struct {
	probes []Probe
	err    error
}

func (f *fakeEnumerator) Windows() ([]Probe, error) { return f.probes, f.err }
func (f *fakeEnumerator) Close()                    {}

func TestScan(t *testing.T) {
	good := normalWindow()
	bad := normalWindow()
	bad.title = ""

	c := NewClassifier(DefaultOptions())
	windows, err := c.Scan(&fakeEnumerator{probes: []Probe{good, bad}})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(windows) != 1 {
		t.Fatalf("got %d windows, want 1", len(windows))
	}
}

func TestScanPropagatesEnumerationError(t *testing.T) {
	c := NewClassifier(DefaultOptions())
	if _, err := c.Scan(&fakeEnumerator{err: errors.New("enumeration failed")}); err == nil {
		t.Fatal("want error")
	}
}
