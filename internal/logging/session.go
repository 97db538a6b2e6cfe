// Package logging sets up per-session log files. Each daemon start writes a
// fresh timestamped file and prunes the leftovers of earlier sessions, so a
// crash report always has the complete log of the run that crashed.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	filePrefix = "cloudburst_"
	fileSuffix = ".log"
	timeLayout = "2006-01-02_15-04-05"
)

// Options configures a logging session.
type Options struct {
	// Dir is where session files live.
	Dir string
	// Level is one of debug, info, warn, error.
	Level string
	// Keep is how many session files survive, including the new one.
	Keep int
	// MaxSizeMB deletes older session files above this size regardless of
	// their age.
	MaxSizeMB int
}

// Session is an open per-session log. Records go to stderr and the session
// file.
type Session struct {
	Logger *slog.Logger
	Path   string

	file *os.File
}

// NewSession creates the session file, prunes old sessions, and returns a
// logger writing to both stderr and the file. If the file cannot be
// created, logging degrades to stderr only instead of failing the daemon.
func NewSession(opts Options, now time.Time) *Session {
	if opts.Keep < 1 {
		opts.Keep = 5
	}
	if opts.MaxSizeMB < 1 {
		opts.MaxSizeMB = 1
	}

	level := ParseLevel(opts.Level)
	s := &Session{}

	var w io.Writer = os.Stderr
	if opts.Dir != "" {
		pruneSessions(opts.Dir, opts.Keep-1, int64(opts.MaxSizeMB)<<20)

		path := filepath.Join(opts.Dir, filePrefix+now.Format(timeLayout)+fileSuffix)
		if f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600); err == nil {
			s.file = f
			s.Path = path
			w = io.MultiWriter(os.Stderr, f)
		} else {
			fmt.Fprintf(os.Stderr, "cloudburst: session log unavailable: %v\n", err)
		}
	}

	s.Logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	return s
}

// Close flushes and closes the session file.
func (s *Session) Close() {
	if s.file != nil {
		s.file.Close()
		s.file = nil
	}
}

// ParseLevel maps a config level string to a slog level. Unknown strings
// fall back to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// pruneSessions removes all but the keep newest session files, plus any
// older file above maxSize. Best effort; errors are ignored.
func pruneSessions(dir string, keep int, maxSize int64) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	var sessions []string
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() && strings.HasPrefix(name, filePrefix) && strings.HasSuffix(name, fileSuffix) {
			sessions = append(sessions, name)
		}
	}

	// Timestamped names sort chronologically; newest last.
	sort.Strings(sessions)

	for i, name := range sessions {
		path := filepath.Join(dir, name)
		if i < len(sessions)-keep {
			os.Remove(path)
			continue
		}
		if info, err := os.Stat(path); err == nil && info.Size() > maxSize {
			os.Remove(path)
		}
	}
}
