//go:build !linux && !windows

package winscan

// stubEnumerator reports no windows on platforms without a scanner.
type stubEnumerator struct{}

var _ Enumerator = (*stubEnumerator)(nil)

func NewEnumerator() (Enumerator, error) {
	return &stubEnumerator{}, nil
}

func (*stubEnumerator) Windows() ([]Probe, error) { return nil, nil }

func (*stubEnumerator) Close() {}
