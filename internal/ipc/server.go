package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/cloudburst-desktop/cloudburst/internal/engine"
	"github.com/cloudburst-desktop/cloudburst/internal/geometry"
	"github.com/cloudburst-desktop/cloudburst/internal/panel"
	"github.com/cloudburst-desktop/cloudburst/internal/runtimepath"
	"github.com/cloudburst-desktop/cloudburst/internal/winscan"
)

// Server handles IPC requests from clients: CLI queries, and the renderer
// process reporting heartbeats.
type Server struct {
	socketPath string
	listener   net.Listener
	eng        *engine.Engine
	logger     *slog.Logger
	startTime  time.Time
	reloadChan chan struct{}
	panelStore *panel.Store

	windowsMu   sync.RWMutex
	lastWindows []winscan.ForeignWindow

	shuttingDown bool
	shutdownMu   sync.Mutex
}

// NewServer creates a new IPC server
func NewServer(eng *engine.Engine, logger *slog.Logger, reloadChan chan struct{}) (*Server, error) {
	socketPath, err := runtimepath.SocketPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve IPC socket path: %w", err)
	}

	// Remove existing socket if present
	os.Remove(socketPath)

	// The panel store lives in the state dir. A missing state dir disables
	// panel persistence but not the daemon.
	var panelStore *panel.Store
	if stateDir, err := runtimepath.StateDir(); err == nil {
		panelStore = panel.NewStore(stateDir)
	} else {
		logger.Warn("panel placement persistence disabled", "error", err)
	}

	return &Server{
		socketPath: socketPath,
		eng:        eng,
		logger:     logger,
		startTime:  time.Now(),
		reloadChan: reloadChan,
		panelStore: panelStore,
	}, nil
}

// Start begins listening for IPC connections
func (s *Server) Start() error {
	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create IPC socket: %w", err)
	}
	s.listener = listener

	// Set socket permissions
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.logger.Info("IPC server listening", "socket", s.socketPath)

	go s.acceptLoop()

	return nil
}

// SetWindows updates the window set served by GET_WINDOWS. Called from the
// poller sink.
func (s *Server) SetWindows(windows []winscan.ForeignWindow) {
	s.windowsMu.Lock()
	s.lastWindows = windows
	s.windowsMu.Unlock()
}

// acceptLoop accepts incoming connections
func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.shutdownMu.Lock()
			if s.shuttingDown {
				s.shutdownMu.Unlock()
				return
			}
			s.shutdownMu.Unlock()
			s.logger.Error("IPC accept error", "error", err)
			continue
		}

		go s.handleConnection(conn)
	}
}

// handleConnection handles a single IPC connection
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)

	// Read the request (expect JSON on a single line)
	data, err := reader.ReadBytes('\n')
	if err != nil && err != io.EOF {
		s.logger.Error("IPC read error", "error", err)
		return
	}

	req, err := ParseRequest(data)
	if err != nil {
		s.sendError(conn, fmt.Sprintf("Invalid request: %v", err))
		return
	}

	resp := s.handleCommand(req)

	respData, err := resp.Marshal()
	if err != nil {
		s.logger.Error("failed to marshal response", "error", err)
		return
	}

	respData = append(respData, '\n')
	if _, err := conn.Write(respData); err != nil {
		s.logger.Error("failed to send response", "error", err)
	}
}

// handleCommand processes an IPC command and returns a response
func (s *Server) handleCommand(req *Request) *Response {
	switch req.Command {
	case CommandReload:
		return s.handleReload()
	case CommandGetStatus:
		return s.handleGetStatus()
	case CommandGetVirtualDesktop:
		return s.handleGetVirtualDesktop()
	case CommandGetDisplays:
		return s.handleGetDisplays()
	case CommandGetDisplayInfo:
		return s.handleGetDisplayInfo(req.Payload)
	case CommandGetWindows:
		return s.handleGetWindows()
	case CommandHeartbeat:
		return s.handleHeartbeat(req.Payload)
	case CommandGetPanel:
		return s.handleGetPanel(req.Payload)
	case CommandSetPanel:
		return s.handleSetPanel(req.Payload)
	case CommandResetPanel:
		return s.handleResetPanel()
	default:
		return NewErrorResponse(fmt.Sprintf("Unknown command: %s", req.Command))
	}
}

func (s *Server) handleReload() *Response {
	s.logger.Info("IPC: received RELOAD command")

	// Notify the main daemon via channel (non-blocking)
	select {
	case s.reloadChan <- struct{}{}:
	default:
	}

	resp, _ := NewOKResponse(nil)
	return resp
}

func (s *Server) handleGetStatus() *Response {
	s.windowsMu.RLock()
	windowCount := len(s.lastWindows)
	s.windowsMu.RUnlock()

	status := StatusData{
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		DaemonRunning: true,
		WindowCount:   windowCount,
		Surfaces:      s.eng.Health(),
	}

	resp, _ := NewOKResponse(status)
	return resp
}

func (s *Server) handleGetVirtualDesktop() *Response {
	desktop, err := s.eng.VirtualDesktop()
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to get virtual desktop: %v", err))
	}

	resp, _ := NewOKResponse(desktop)
	return resp
}

func (s *Server) handleGetDisplays() *Response {
	displays, err := s.eng.Displays()
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to get displays: %v", err))
	}

	resp, _ := NewOKResponse(DisplaysData{Displays: displays})
	return resp
}

func (s *Server) handleGetDisplayInfo(payload json.RawMessage) *Response {
	var req DisplayInfoPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return NewErrorResponse(fmt.Sprintf("Invalid display info payload: %v", err))
	}
	if req.Label == "" {
		return NewErrorResponse("label is required")
	}

	region, err := s.eng.DisplayInfo(req.Label)
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to get display info: %v", err))
	}

	resp, _ := NewOKResponse(region)
	return resp
}

func (s *Server) handleGetWindows() *Response {
	s.windowsMu.RLock()
	windows := s.lastWindows
	s.windowsMu.RUnlock()

	resp, _ := NewOKResponse(WindowsData{Windows: windows})
	return resp
}

func (s *Server) handleHeartbeat(payload json.RawMessage) *Response {
	var req HeartbeatPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return NewErrorResponse(fmt.Sprintf("Invalid heartbeat payload: %v", err))
	}
	if req.Label == "" {
		return NewErrorResponse("label is required")
	}

	s.eng.Heartbeat(req.Label)

	resp, _ := NewOKResponse(nil)
	return resp
}

func (s *Server) handleGetPanel(payload json.RawMessage) *Response {
	if s.panelStore == nil {
		return NewErrorResponse("panel store unavailable")
	}

	var req GetPanelPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			return NewErrorResponse(fmt.Sprintf("Invalid panel payload: %v", err))
		}
	}

	p, stored := s.panelStore.Load()
	if stored && req.Width > 0 && req.Height > 0 {
		if desktop, err := s.eng.VirtualDesktop(); err == nil {
			primary := desktop.Monitors[desktop.PrimaryIndex]
			work := geometry.Rect{
				X: primary.WorkX, Y: primary.WorkY,
				Width: primary.WorkWidth, Height: primary.WorkHeight,
			}
			p = p.ClampTo(work, req.Width, req.Height)
		}
	}

	resp, _ := NewOKResponse(PanelData{Placement: p, Stored: stored})
	return resp
}

func (s *Server) handleSetPanel(payload json.RawMessage) *Response {
	if s.panelStore == nil {
		return NewErrorResponse("panel store unavailable")
	}

	var p panel.Placement
	if err := json.Unmarshal(payload, &p); err != nil {
		return NewErrorResponse(fmt.Sprintf("Invalid panel payload: %v", err))
	}
	if err := s.panelStore.Save(p); err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to save panel placement: %v", err))
	}

	resp, _ := NewOKResponse(nil)
	return resp
}

func (s *Server) handleResetPanel() *Response {
	if s.panelStore == nil {
		return NewErrorResponse("panel store unavailable")
	}
	if err := s.panelStore.Reset(); err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to reset panel placement: %v", err))
	}

	resp, _ := NewOKResponse(nil)
	return resp
}

// sendError sends an error response
func (s *Server) sendError(conn net.Conn, errMsg string) {
	resp := NewErrorResponse(errMsg)
	data, _ := resp.Marshal()
	data = append(data, '\n')
	conn.Write(data)
}

// Stop gracefully shuts down the IPC server
func (s *Server) Stop() {
	s.shutdownMu.Lock()
	s.shuttingDown = true
	s.shutdownMu.Unlock()

	if s.listener != nil {
		s.listener.Close()
	}
	os.Remove(s.socketPath)
}
