package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeSessionFile(t *testing.T, dir, stamp string, size int) {
	t.Helper()
	path := filepath.Join(dir, filePrefix+stamp+fileSuffix)
	if err := os.WriteFile(path, make([]byte, size), 0o600); err != nil {
		t.Fatal(err)
	}
}

func listSessions(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestPruneKeepsNewest(t *testing.T) {
	dir := t.TempDir()
	stamps := []string{
		"2026-08-20_10-00-00",
		"2026-08-21_10-00-00",
		"2026-08-22_10-00-00",
		"2026-08-23_10-00-00",
	}
	for _, s := range stamps {
		writeSessionFile(t, dir, s, 10)
	}

	pruneSessions(dir, 2, 1<<20)

	names := listSessions(t, dir)
	if len(names) != 2 {
		t.Fatalf("got %d files, want 2: %v", len(names), names)
	}
	for _, name := range names {
		if !strings.Contains(name, "2026-08-22") && !strings.Contains(name, "2026-08-23") {
			t.Fatalf("old file survived: %s", name)
		}
	}
}

func TestPruneDeletesOversized(t *testing.T) {
	dir := t.TempDir()
	writeSessionFile(t, dir, "2026-08-22_10-00-00", 2048)
	writeSessionFile(t, dir, "2026-08-23_10-00-00", 10)

	pruneSessions(dir, 5, 1024)

	names := listSessions(t, dir)
	if len(names) != 1 || !strings.Contains(names[0], "2026-08-23") {
		t.Fatalf("oversized file not pruned: %v", names)
	}
}

func TestPruneIgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "panel.json"), []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}

	pruneSessions(dir, 0, 1)

	if names := listSessions(t, dir); len(names) != 1 {
		t.Fatalf("foreign file removed: %v", names)
	}
}

func TestNewSessionWritesFile(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 8, 28, 12, 30, 0, 0, time.UTC)

	s := NewSession(Options{Dir: dir, Level: "debug", Keep: 5, MaxSizeMB: 1}, now)
	defer s.Close()

	s.Logger.Info("session start", "label", "overlay")
	s.Close()

	data, err := os.ReadFile(s.Path)
	if err != nil {
		t.Fatalf("session file: %v", err)
	}
	if !strings.Contains(string(data), "session start") {
		t.Fatalf("log record missing from session file: %q", data)
	}
	if !strings.Contains(s.Path, "2026-08-28_12-30-00") {
		t.Fatalf("unexpected session path: %s", s.Path)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
