package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/cloudburst-desktop/cloudburst/internal/geometry"
	"github.com/cloudburst-desktop/cloudburst/internal/panel"
	"github.com/cloudburst-desktop/cloudburst/internal/runtimepath"
)

// Client handles IPC communication with the daemon
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a new IPC client
func NewClient() *Client {
	socketPath, err := runtimepath.SocketPath()
	if err != nil {
		// Keep constructor non-failing; sendRequest surfaces connection errors.
		socketPath = ""
	}

	return &Client{
		socketPath: socketPath,
		timeout:    5 * time.Second,
	}
}

// sendRequest sends a request and waits for a response
func (c *Client) sendRequest(req *Request) (*Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w (is the daemon running?)", err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(c.timeout))

	reqData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	reqData = append(reqData, '\n')
	if _, err := conn.Write(reqData); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	reader := bufio.NewReader(conn)
	respData, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(respData, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if resp.Status == "ERROR" {
		return nil, fmt.Errorf("daemon error: %s", resp.Error)
	}

	return &resp, nil
}

// Reload asks the daemon to reload its configuration
func (c *Client) Reload() error {
	_, err := c.sendRequest(&Request{Command: CommandReload})
	return err
}

// GetStatus retrieves daemon status
func (c *Client) GetStatus() (*StatusData, error) {
	resp, err := c.sendRequest(&Request{Command: CommandGetStatus})
	if err != nil {
		return nil, err
	}

	var status StatusData
	if err := json.Unmarshal(resp.Data, &status); err != nil {
		return nil, fmt.Errorf("failed to parse status data: %w", err)
	}
	return &status, nil
}

// GetVirtualDesktop retrieves the current virtual-desktop descriptor
func (c *Client) GetVirtualDesktop() (*geometry.VirtualDesktop, error) {
	resp, err := c.sendRequest(&Request{Command: CommandGetVirtualDesktop})
	if err != nil {
		return nil, err
	}

	var desktop geometry.VirtualDesktop
	if err := json.Unmarshal(resp.Data, &desktop); err != nil {
		return nil, fmt.Errorf("failed to parse virtual desktop data: %w", err)
	}
	return &desktop, nil
}

// GetDisplays retrieves the enumerated monitor list
func (c *Client) GetDisplays() (*DisplaysData, error) {
	resp, err := c.sendRequest(&Request{Command: CommandGetDisplays})
	if err != nil {
		return nil, err
	}

	var displays DisplaysData
	if err := json.Unmarshal(resp.Data, &displays); err != nil {
		return nil, fmt.Errorf("failed to parse displays data: %w", err)
	}
	return &displays, nil
}

// GetDisplayInfo retrieves the monitor region bound to a surface label
func (c *Client) GetDisplayInfo(label string) (*geometry.Region, error) {
	payload, err := json.Marshal(DisplayInfoPayload{Label: label})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal display info payload: %w", err)
	}

	resp, err := c.sendRequest(&Request{Command: CommandGetDisplayInfo, Payload: payload})
	if err != nil {
		return nil, err
	}

	var region geometry.Region
	if err := json.Unmarshal(resp.Data, &region); err != nil {
		return nil, fmt.Errorf("failed to parse display info data: %w", err)
	}
	return &region, nil
}

// GetWindows retrieves the latest classified window set
func (c *Client) GetWindows() (*WindowsData, error) {
	resp, err := c.sendRequest(&Request{Command: CommandGetWindows})
	if err != nil {
		return nil, err
	}

	var windows WindowsData
	if err := json.Unmarshal(resp.Data, &windows); err != nil {
		return nil, fmt.Errorf("failed to parse windows data: %w", err)
	}
	return &windows, nil
}

// Heartbeat reports renderer liveness for a surface
func (c *Client) Heartbeat(label string) error {
	payload, err := json.Marshal(HeartbeatPayload{Label: label})
	if err != nil {
		return fmt.Errorf("failed to marshal heartbeat payload: %w", err)
	}

	_, err = c.sendRequest(&Request{Command: CommandHeartbeat, Payload: payload})
	return err
}

// GetPanel retrieves the stored panel placement, clamped to the primary
// work area when a panel size is given
func (c *Client) GetPanel(width, height int) (*PanelData, error) {
	payload, err := json.Marshal(GetPanelPayload{Width: width, Height: height})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal panel payload: %w", err)
	}

	resp, err := c.sendRequest(&Request{Command: CommandGetPanel, Payload: payload})
	if err != nil {
		return nil, err
	}

	var data PanelData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse panel data: %w", err)
	}
	return &data, nil
}

// SetPanel stores the panel placement
func (c *Client) SetPanel(p panel.Placement) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal panel placement: %w", err)
	}

	_, err = c.sendRequest(&Request{Command: CommandSetPanel, Payload: payload})
	return err
}

// ResetPanel removes the stored panel placement
func (c *Client) ResetPanel() error {
	_, err := c.sendRequest(&Request{Command: CommandResetPanel})
	return err
}

// Ping checks if the daemon is responding
func (c *Client) Ping() error {
	_, err := c.GetStatus()
	return err
}
