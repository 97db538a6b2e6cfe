// Package geometry provides the pure coordinate math for the engine:
// logical/physical pixel conversion, virtual-desktop bounding boxes, and
// work-area clamping. Everything here is deterministic and free of OS calls.
package geometry

// Rect is a rectangle in a single coordinate space. Callers track whether
// the values are physical or logical pixels.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ContainsPoint reports whether (x, y) falls inside r.
func (r Rect) ContainsPoint(x, y int) bool {
	return x >= r.X && x < r.X+r.Width && y >= r.Y && y < r.Y+r.Height
}

// Empty reports whether r has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// taskbarFallbackPx is the height reserved for a presumed bottom taskbar
// when the real work area cannot be queried.
const taskbarFallbackPx = 48

// FallbackWorkArea approximates a monitor's work area when the OS query
// fails: the full bounds minus a fixed strip at the bottom. It is a
// degraded guess, not a substitute for the real value.
func FallbackWorkArea(bounds Rect) Rect {
	h := bounds.Height - taskbarFallbackPx
	if h < 0 {
		h = 0
	}
	return Rect{X: bounds.X, Y: bounds.Y, Width: bounds.Width, Height: h}
}
