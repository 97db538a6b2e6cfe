// Package surface implements render surfaces as supervised external
// renderer processes. The engine feeds each renderer the desktop descriptor
// at launch and streams window updates over its stdin as JSON lines; the
// renderer proves liveness by heartbeating back over the IPC socket.
package surface

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"

	"github.com/cloudburst-desktop/cloudburst/internal/geometry"
	"github.com/cloudburst-desktop/cloudburst/internal/winscan"
)

// message is one control line on the renderer's stdin.
type message struct {
	Type    string                   `json:"type"`
	Desktop *geometry.VirtualDesktop `json:"desktop,omitempty"`
	Windows []winscan.ForeignWindow  `json:"windows,omitempty"`
}

// Process is a render surface backed by a child renderer process.
type Process struct {
	label   string
	command string
	args    []string
	logger  *slog.Logger

	mu    sync.Mutex
	cmd   *exec.Cmd
	stdin io.WriteCloser
}

// NewProcess creates a process surface. Nothing is launched until Create.
func NewProcess(label, command string, args []string, logger *slog.Logger) *Process {
	if logger == nil {
		logger = slog.Default()
	}
	return &Process{label: label, command: command, args: args, logger: logger}
}

func (p *Process) Label() string { return p.label }

// Create launches the renderer with the desktop descriptor on its
// environment and as the first stdin message. An already-running renderer
// is torn down first.
func (p *Process) Create(desktop geometry.VirtualDesktop) error {
	p.Destroy()

	desktopJSON, err := json.Marshal(desktop)
	if err != nil {
		return fmt.Errorf("failed to marshal desktop for surface %s: %w", p.label, err)
	}

	cmd := exec.Command(p.command, p.args...)
	cmd.Env = append(os.Environ(),
		"CLOUDBURST_SURFACE_LABEL="+p.label,
		"CLOUDBURST_DESKTOP="+string(desktopJSON),
	)
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdin for surface %s: %w", p.label, err)
	}
	if err := cmd.Start(); err != nil {
		stdin.Close()
		return fmt.Errorf("failed to start renderer for surface %s: %w", p.label, err)
	}

	p.mu.Lock()
	p.cmd = cmd
	p.stdin = stdin
	p.mu.Unlock()

	// Reap the process when it exits so a crashed renderer does not
	// linger as a zombie until the next Destroy.
	go func() { cmd.Wait() }()

	p.send(message{Type: "desktop", Desktop: &desktop})

	p.logger.Info("renderer started", "label", p.label, "pid", cmd.Process.Pid)
	return nil
}

// Destroy kills the renderer process if one is running.
func (p *Process) Destroy() {
	p.mu.Lock()
	cmd := p.cmd
	stdin := p.stdin
	p.cmd = nil
	p.stdin = nil
	p.mu.Unlock()

	if stdin != nil {
		stdin.Close()
	}
	if cmd != nil && cmd.Process != nil {
		cmd.Process.Kill()
		p.logger.Info("renderer stopped", "label", p.label)
	}
}

// Hide asks the renderer to hide its window without tearing it down.
func (p *Process) Hide() {
	p.send(message{Type: "hide"})
}

// DeliverWindows streams the classified window set to the renderer. Write
// failures are dropped; a dead renderer is the watchdog's problem, not the
// poller's.
func (p *Process) DeliverWindows(windows []winscan.ForeignWindow) {
	p.send(message{Type: "windows", Windows: windows})
}

func (p *Process) send(m message) {
	p.mu.Lock()
	stdin := p.stdin
	p.mu.Unlock()
	if stdin == nil {
		return
	}

	data, err := json.Marshal(m)
	if err != nil {
		return
	}
	data = append(data, '\n')
	stdin.Write(data)
}
