// Package config loads the engine configuration from YAML. Unknown keys are
// rejected so typos fail loudly instead of silently running defaults.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration.
type Config struct {
	Log      LogConfig       `yaml:"log"`
	Scan     ScanConfig      `yaml:"scan"`
	Watchdog WatchdogConfig  `yaml:"watchdog"`
	Hotswap  HotswapConfig   `yaml:"hotswap"`
	Surfaces []SurfaceConfig `yaml:"surfaces"`
}

// SurfaceConfig describes one render surface: the command that runs its
// renderer process. The renderer receives the desktop descriptor and is
// expected to heartbeat back over the IPC socket under the same label.
type SurfaceConfig struct {
	Label   string   `yaml:"label"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

// LogConfig controls the session log files.
type LogConfig struct {
	Level string `yaml:"level"`
	// Dir overrides the state directory for log files. Empty uses the
	// platform default.
	Dir string `yaml:"dir"`
	// Keep is how many session log files survive cleanup.
	Keep int `yaml:"keep"`
	// MaxSizeMB deletes old session logs larger than this during cleanup.
	MaxSizeMB int `yaml:"max_size_mb"`
}

// ScanConfig controls the foreign-window poller and classifier.
type ScanConfig struct {
	IntervalMS int `yaml:"interval_ms"`
	DiagEvery  int `yaml:"diag_every"`
	MinWidth   int `yaml:"min_width"`
	MinHeight  int `yaml:"min_height"`
	// ClassDenylist replaces the built-in shell class list when set.
	ClassDenylist []string `yaml:"class_denylist"`
	// SystemTitles replaces the built-in OS overlay title list when set.
	SystemTitles []string `yaml:"system_titles"`
}

// WatchdogConfig controls surface supervision thresholds.
type WatchdogConfig struct {
	IntervalS       int `yaml:"interval_s"`
	StartupGraceS   int `yaml:"startup_grace_s"`
	StartupStallS   int `yaml:"startup_stall_s"`
	HeartbeatStallS int `yaml:"heartbeat_stall_s"`
	MaxCrashes      int `yaml:"max_crashes"`
}

// HotswapConfig controls monitor topology watching.
type HotswapConfig struct {
	PollS     int `yaml:"poll_s"`
	DebounceS int `yaml:"debounce_s"`
}

// Default returns the stock configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:     "info",
			Keep:      5,
			MaxSizeMB: 1,
		},
		Scan: ScanConfig{
			IntervalMS: 16,
			DiagEvery:  600,
			MinWidth:   50,
			MinHeight:  50,
		},
		Watchdog: WatchdogConfig{
			IntervalS:       5,
			StartupGraceS:   30,
			StartupStallS:   30,
			HeartbeatStallS: 15,
			MaxCrashes:      3,
		},
		Hotswap: HotswapConfig{
			PollS:     5,
			DebounceS: 2,
		},
	}
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", c.Log.Level)
	}
	if c.Log.Keep < 1 {
		return fmt.Errorf("log.keep: must be at least 1, got %d", c.Log.Keep)
	}
	if c.Scan.IntervalMS < 1 {
		return fmt.Errorf("scan.interval_ms: must be positive, got %d", c.Scan.IntervalMS)
	}
	if c.Scan.MinWidth < 1 || c.Scan.MinHeight < 1 {
		return fmt.Errorf("scan.min_width/min_height: must be positive")
	}
	if c.Watchdog.IntervalS < 1 {
		return fmt.Errorf("watchdog.interval_s: must be positive, got %d", c.Watchdog.IntervalS)
	}
	if c.Watchdog.HeartbeatStallS <= c.Watchdog.IntervalS {
		return fmt.Errorf("watchdog.heartbeat_stall_s (%d) must exceed interval_s (%d)",
			c.Watchdog.HeartbeatStallS, c.Watchdog.IntervalS)
	}
	if c.Watchdog.MaxCrashes < 1 {
		return fmt.Errorf("watchdog.max_crashes: must be at least 1, got %d", c.Watchdog.MaxCrashes)
	}
	if c.Hotswap.PollS < 1 {
		return fmt.Errorf("hotswap.poll_s: must be positive, got %d", c.Hotswap.PollS)
	}
	if c.Hotswap.DebounceS < 1 {
		return fmt.Errorf("hotswap.debounce_s: must be positive, got %d", c.Hotswap.DebounceS)
	}
	labels := make(map[string]struct{}, len(c.Surfaces))
	for i, s := range c.Surfaces {
		if s.Label == "" {
			return fmt.Errorf("surfaces[%d]: label is required", i)
		}
		if s.Command == "" {
			return fmt.Errorf("surfaces[%d] (%s): command is required", i, s.Label)
		}
		if _, dup := labels[s.Label]; dup {
			return fmt.Errorf("surfaces: duplicate label %q", s.Label)
		}
		labels[s.Label] = struct{}{}
	}
	return nil
}

// ScanInterval returns the poll cadence as a duration.
func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.Scan.IntervalMS) * time.Millisecond
}
