package ipc

import (
	"encoding/json"
	"fmt"

	"github.com/cloudburst-desktop/cloudburst/internal/geometry"
	"github.com/cloudburst-desktop/cloudburst/internal/panel"
	"github.com/cloudburst-desktop/cloudburst/internal/supervisor"
	"github.com/cloudburst-desktop/cloudburst/internal/winscan"
)

// CommandType represents different IPC command types
type CommandType string

const (
	CommandReload            CommandType = "RELOAD"
	CommandGetStatus         CommandType = "GET_STATUS"
	CommandGetVirtualDesktop CommandType = "GET_VIRTUAL_DESKTOP"
	CommandGetDisplays       CommandType = "GET_DISPLAYS"
	CommandGetDisplayInfo    CommandType = "GET_DISPLAY_INFO"
	CommandGetWindows        CommandType = "GET_WINDOWS"
	CommandHeartbeat         CommandType = "HEARTBEAT"
	CommandGetPanel          CommandType = "GET_PANEL"
	CommandSetPanel          CommandType = "SET_PANEL"
	CommandResetPanel        CommandType = "RESET_PANEL"
)

// Request represents an IPC request from client to server
type Request struct {
	Command CommandType     `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response represents an IPC response from server to client
type Response struct {
	Status string          `json:"status"` // "OK" or "ERROR"
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// StatusData represents the data returned by GET_STATUS
type StatusData struct {
	UptimeSeconds int64                        `json:"uptime_seconds"`
	DaemonRunning bool                         `json:"daemon_running"`
	WindowCount   int                          `json:"window_count"`
	Surfaces      map[string]supervisor.Health `json:"surfaces"`
}

// DisplaysData represents the data returned by GET_DISPLAYS
type DisplaysData struct {
	Displays []geometry.Monitor `json:"displays"`
}

// WindowsData represents the data returned by GET_WINDOWS
type WindowsData struct {
	Windows []winscan.ForeignWindow `json:"windows"`
}

// HeartbeatPayload carries the surface label for HEARTBEAT
type HeartbeatPayload struct {
	Label string `json:"label"`
}

// DisplayInfoPayload carries the surface label for GET_DISPLAY_INFO
type DisplayInfoPayload struct {
	Label string `json:"label"`
}

// GetPanelPayload carries the panel size for GET_PANEL. When both
// dimensions are positive the stored placement is clamped to the primary
// monitor's work area before it is returned.
type GetPanelPayload struct {
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`
}

// PanelData represents the data returned by GET_PANEL
type PanelData struct {
	Placement panel.Placement `json:"placement"`
	Stored    bool            `json:"stored"`
}

// NewOKResponse creates a successful response with optional data
func NewOKResponse(data interface{}) (*Response, error) {
	var dataBytes json.RawMessage
	if data != nil {
		bytes, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response data: %w", err)
		}
		dataBytes = bytes
	}

	return &Response{
		Status: "OK",
		Data:   dataBytes,
	}, nil
}

// NewErrorResponse creates an error response with a message
func NewErrorResponse(errMsg string) *Response {
	return &Response{
		Status: "ERROR",
		Error:  errMsg,
	}
}

// ParseRequest parses a request from JSON bytes
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return &req, nil
}

// Marshal converts a response to JSON bytes
func (r *Response) Marshal() ([]byte, error) {
	return json.Marshal(r)
}
