//go:build !linux && !windows

package display

import "github.com/cloudburst-desktop/cloudburst/internal/geometry"

// stubBackend reports no monitors on platforms without a display backend.
type stubBackend struct{}

var _ Backend = (*stubBackend)(nil)

func NewBackend() (Backend, error) {
	return &stubBackend{}, nil
}

func (*stubBackend) Enumerate() ([]geometry.Monitor, error) { return nil, nil }

func (*stubBackend) Close() {}
