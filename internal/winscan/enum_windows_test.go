//go:build windows

package winscan

import "testing"

func TestEnumeratorDefersCOMToScanningGoroutine(t *testing.T) {
	enum, err := NewEnumerator()
	if err != nil {
		t.Fatalf("NewEnumerator: %v", err)
	}
	defer enum.Close()

	e := enum.(*Win32Enumerator)
	if e.comInitialized || e.desktopManager != nil {
		t.Fatal("COM initialized before the first scan")
	}

	done := make(chan error, 1)
	go func() {
		_, err := e.Windows()
		done <- err
	}()
	if err := <-done; err != nil {
		t.Fatalf("Windows: %v", err)
	}

	if !e.comInitialized {
		t.Error("scanning goroutine did not join the multithreaded apartment")
	}

	// A second scan must not re-initialize.
	if _, err := e.Windows(); err != nil {
		t.Fatalf("second Windows: %v", err)
	}
}
