// Package panel persists the control panel's placement between sessions.
// The panel is the small settings window the user drags around; its last
// position is restored on startup, clamped to the current work area in case
// the monitor layout changed while the engine was down.
package panel

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cloudburst-desktop/cloudburst/internal/geometry"
)

// Margin keeps the restored panel clear of the work-area edges.
const Margin = 8

// Placement is the stored panel position, in logical pixels.
type Placement struct {
	X int `json:"x"`
	Y int `json:"y"`
	// Scale is the UI scale the user chose, if any.
	Scale float64 `json:"scale,omitempty"`
}

// ClampTo returns the placement moved inside the given work area for a
// panel of the given size.
func (p Placement) ClampTo(work geometry.Rect, width, height int) Placement {
	x, y := geometry.ClampToWorkArea(p.X, p.Y, width, height, work, Margin)
	return Placement{X: x, Y: y, Scale: p.Scale}
}

// Store reads and writes the placement file.
type Store struct {
	path string
}

// NewStore creates a store under the given state directory.
func NewStore(stateDir string) *Store {
	return &Store{path: filepath.Join(stateDir, "panel.json")}
}

// Load returns the stored placement. ok is false when none was saved yet.
// A corrupt file is treated as absent; the panel falls back to its default
// position rather than failing startup.
func (s *Store) Load() (p Placement, ok bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return Placement{}, false
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return Placement{}, false
	}
	return p, true
}

// Save writes the placement atomically.
func (s *Store) Save(p Placement) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal panel placement: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write panel placement: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace panel placement: %w", err)
	}
	return nil
}

// Reset removes the stored placement.
func (s *Store) Reset() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
