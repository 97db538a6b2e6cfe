// Package display enumerates monitors through a per-platform backend and
// provides integer snapshots of the monitor topology for change detection.
package display

import "github.com/cloudburst-desktop/cloudburst/internal/geometry"

// Backend abstracts monitor enumeration for a platform. Implementations
// resolve every Monitor attribute (bounds, work area, scale, refresh rate,
// primary flag) before returning, applying per-field fallbacks so a partial
// OS failure degrades a field instead of failing the call.
type Backend interface {
	// Enumerate returns all connected monitors. An empty slice means the
	// platform reports no displays; callers treat that as "no virtual
	// desktop available" rather than inventing one.
	Enumerate() ([]geometry.Monitor, error)

	// Close releases any platform connection held by the backend.
	Close()
}
