package display

import (
	"sort"

	"github.com/cloudburst-desktop/cloudburst/internal/geometry"
)

// SnapshotEntry is one monitor's identity for topology diffing. The scale
// factor is stored as permille so snapshot comparison never touches float
// equality.
type SnapshotEntry struct {
	X             int
	Y             int
	Width         int
	Height        int
	ScalePermille int
}

// Snapshot reduces a monitor set to a sorted, comparable form. Two calls
// over the same physical topology produce equal snapshots regardless of
// enumeration order.
func Snapshot(monitors []geometry.Monitor) []SnapshotEntry {
	entries := make([]SnapshotEntry, len(monitors))
	for i, m := range monitors {
		entries[i] = SnapshotEntry{
			X:             m.Bounds.X,
			Y:             m.Bounds.Y,
			Width:         m.Bounds.Width,
			Height:        m.Bounds.Height,
			ScalePermille: int(geometry.SafeScale(m.Scale)*1000 + 0.5),
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.X != b.X {
			return a.X < b.X
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		if a.Width != b.Width {
			return a.Width < b.Width
		}
		if a.Height != b.Height {
			return a.Height < b.Height
		}
		return a.ScalePermille < b.ScalePermille
	})
	return entries
}

// SnapshotEqual reports whether two snapshots describe the same topology.
func SnapshotEqual(a, b []SnapshotEntry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
