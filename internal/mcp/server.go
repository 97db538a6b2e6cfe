// Package mcp exposes the engine's diagnostic state over the Model Context
// Protocol so agent tooling can inspect the desktop without shelling out to
// the CLI. All tools are read-only queries against the running daemon.
package mcp

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/cloudburst-desktop/cloudburst/internal/geometry"
	"github.com/cloudburst-desktop/cloudburst/internal/ipc"
	"github.com/cloudburst-desktop/cloudburst/internal/supervisor"
	"github.com/cloudburst-desktop/cloudburst/internal/winscan"
)

const (
	ServerName    = "cloudburst"
	ServerVersion = "0.1.0"
)

// Server is the MCP diagnostics server. It talks to the daemon over the
// same IPC socket the CLI uses.
type Server struct {
	mcpServer *mcpsdk.Server
	client    *ipc.Client
}

// NewServer creates a new MCP server backed by the daemon's IPC socket.
func NewServer() *Server {
	s := &Server{
		client: ipc.NewClient(),
	}

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		},
		nil,
	)

	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport, blocking until done.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "get_virtual_desktop",
		Description: "Get the current virtual desktop descriptor: the bounding box of all monitors with per-monitor regions, work areas, scale factors, and refresh rates. Coordinates are logical pixels relative to the desktop origin.",
	}, s.handleGetVirtualDesktop)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_windows",
		Description: "List the application windows currently classified as visible, with physical-pixel bounds, titles, and maximized state. Shell windows, overlays, and minimized windows are excluded.",
	}, s.handleListWindows)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "surface_status",
		Description: "Get daemon uptime and the health of every render surface: creation time, last heartbeat, initialization state, and crash count.",
	}, s.handleSurfaceStatus)
}

// GetVirtualDesktopOutput is the result of get_virtual_desktop.
type GetVirtualDesktopOutput struct {
	Desktop geometry.VirtualDesktop `json:"desktop"`
}

// ListWindowsOutput is the result of list_windows.
type ListWindowsOutput struct {
	Windows []winscan.ForeignWindow `json:"windows"`
	Count   int                     `json:"count"`
}

// SurfaceStatusOutput is the result of surface_status.
type SurfaceStatusOutput struct {
	UptimeSeconds int64                        `json:"uptime_seconds"`
	WindowCount   int                          `json:"window_count"`
	Surfaces      map[string]supervisor.Health `json:"surfaces"`
}

type emptyInput struct{}

func (s *Server) handleGetVirtualDesktop(_ context.Context, _ *mcpsdk.CallToolRequest, _ emptyInput) (*mcpsdk.CallToolResult, GetVirtualDesktopOutput, error) {
	desktop, err := s.client.GetVirtualDesktop()
	if err != nil {
		return nil, GetVirtualDesktopOutput{}, fmt.Errorf("get_virtual_desktop: %w", err)
	}
	return nil, GetVirtualDesktopOutput{Desktop: *desktop}, nil
}

func (s *Server) handleListWindows(_ context.Context, _ *mcpsdk.CallToolRequest, _ emptyInput) (*mcpsdk.CallToolResult, ListWindowsOutput, error) {
	data, err := s.client.GetWindows()
	if err != nil {
		return nil, ListWindowsOutput{}, fmt.Errorf("list_windows: %w", err)
	}
	return nil, ListWindowsOutput{Windows: data.Windows, Count: len(data.Windows)}, nil
}

func (s *Server) handleSurfaceStatus(_ context.Context, _ *mcpsdk.CallToolRequest, _ emptyInput) (*mcpsdk.CallToolResult, SurfaceStatusOutput, error) {
	status, err := s.client.GetStatus()
	if err != nil {
		return nil, SurfaceStatusOutput{}, fmt.Errorf("surface_status: %w", err)
	}
	return nil, SurfaceStatusOutput{
		UptimeSeconds: status.UptimeSeconds,
		WindowCount:   status.WindowCount,
		Surfaces:      status.Surfaces,
	}, nil
}
