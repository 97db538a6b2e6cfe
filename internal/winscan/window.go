// Package winscan discovers and classifies foreign application windows: the
// windows owned by other processes that the overlay renders around. Each
// scan rebuilds the set from scratch; nothing about a window is cached
// between polls.
package winscan

import "github.com/cloudburst-desktop/cloudburst/internal/geometry"

// ForeignWindow is one application window that survived classification.
// Bounds are physical pixels in the OS's global coordinate space and use
// the visible frame, not the OS's padded outer rectangle, where the
// platform can tell them apart.
type ForeignWindow struct {
	Bounds    geometry.Rect `json:"bounds"`
	Title     string        `json:"title"`
	Maximized bool          `json:"maximized"`
}

// Probe exposes the per-window queries the classifier needs. Implementations
// answer against the live OS state; each method may be called at most once
// per classification pass.
type Probe interface {
	// Visible reports whether the window is shown at all.
	Visible() bool

	// Minimized reports whether the window is iconified. Platforms with
	// more than one notion of minimized answer true if any of them holds.
	Minimized() bool

	// Cloaked reports whether the compositor hides the window while it
	// still claims to be visible.
	Cloaked() bool

	// OnCurrentDesktop reports whether the window belongs to the active
	// virtual desktop. A non-nil error means the answer is unknown.
	OnCurrentDesktop() (bool, error)

	// Bounds returns the window rectangle in physical pixels, preferring
	// the visible frame over the padded outer rect. ok is false when no
	// rectangle could be resolved at all.
	Bounds() (r geometry.Rect, ok bool)

	// Class returns the window's class or application identifier.
	Class() string

	// Title returns the window's title, which may be empty.
	Title() string

	// Maximized reports whether the window is maximized.
	Maximized() bool
}

// Enumerator produces the candidate windows for one scan. Implementations
// return a fresh, complete top-level window list on every call.
type Enumerator interface {
	Windows() ([]Probe, error)
	Close()
}
