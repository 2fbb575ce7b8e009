package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/1broseidon/winsync/internal/geometry"
	"github.com/1broseidon/winsync/internal/output"
	"github.com/1broseidon/winsync/internal/runtimepath"
	"github.com/1broseidon/winsync/internal/windowstate"
)

// Client handles IPC communication with the daemon
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a client for the default daemon instance.
func NewClient() *Client {
	socketPath, err := runtimepath.SocketPath()
	if err != nil {
		// Keep constructor non-failing; sendRequest surfaces connection errors.
		socketPath = ""
	}
	return NewClientFor(socketPath)
}

// NewClientFor creates a client talking to the daemon at socketPath.
func NewClientFor(socketPath string) *Client {
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

func (c *Client) command(cmd CommandType, payload interface{}, out interface{}) error {
	req := &Request{Command: cmd}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal %s payload: %w", cmd, err)
		}
		req.Payload = data
	}

	resp, err := c.sendRequest(req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("failed to parse %s data: %w", cmd, err)
	}
	return nil
}

// Reload sends a RELOAD command to the daemon
func (c *Client) Reload() error {
	return c.command(CommandReload, nil, nil)
}

// GetStatus retrieves daemon status
func (c *Client) GetStatus() (*StatusData, error) {
	var status StatusData
	if err := c.command(CommandGetStatus, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetOutputs retrieves the outputs known to the backend.
func (c *Client) GetOutputs() ([]output.Output, error) {
	var data OutputsData
	if err := c.command(CommandGetOutputs, nil, &data); err != nil {
		return nil, err
	}
	return data.Outputs, nil
}

// RequestBounds asks the window to resize or move itself.
func (c *Client) RequestBounds(bounds geometry.Rect) error {
	return c.command(CommandRequestBounds, RequestBoundsPayload{Bounds: bounds}, nil)
}

// SetWindowState asks the window to switch to kind.
func (c *Client) SetWindowState(kind windowstate.Kind) error {
	return c.command(CommandSetWindowState, SetWindowStatePayload{Kind: kind}, nil)
}

// SimulateConfigure injects a compositor configure and returns its serial.
func (c *Client) SimulateConfigure(p SimulateConfigurePayload) (int64, error) {
	var data SimulateConfigureData
	if err := c.command(CommandSimulateConfigure, p, &data); err != nil {
		return 0, err
	}
	return data.Serial, nil
}

// LoseProducer simulates a crash of the frame producer.
func (c *Client) LoseProducer() error {
	return c.command(CommandLoseProducer, nil, nil)
}

// Ping checks if the daemon is responding
func (c *Client) Ping() error {
	_, err := c.GetStatus()
	return err
}
