package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/1broseidon/replybot/internal/runtimepath"
)

// Client handles IPC communication with a running reply loop
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
	return NewClientAt(socketPath)
}

// NewClientAt creates a client for an explicit socket path.
func NewClientAt(socketPath string) *Client {
	return &Client{
		socketPath: socketPath,
		timeout:    5 * time.Second,
	}
}

// sendRequest sends a request and waits for a response
func (c *Client) sendRequest(req *Request) (*Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to replybot: %w (is `replybot run` active?)", err)
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
		return nil, fmt.Errorf("replybot error: %s", resp.Error)
	}

	return &resp, nil
}

func (c *Client) statusCommand(cmd CommandType) (*StatusData, error) {
	resp, err := c.sendRequest(&Request{Command: cmd})
	if err != nil {
		return nil, err
	}

	var status StatusData
	if err := json.Unmarshal(resp.Data, &status); err != nil {
		return nil, fmt.Errorf("failed to parse status data: %w", err)
	}
	return &status, nil
}

// GetStatus retrieves the loop status
func (c *Client) GetStatus() (*StatusData, error) {
	return c.statusCommand(CommandGetStatus)
}

// Pause stops new replies until Resume. It returns the status after pausing.
func (c *Client) Pause() (*StatusData, error) {
	return c.statusCommand(CommandPause)
}

// Resume re-enables replies.
func (c *Client) Resume() (*StatusData, error) {
	return c.statusCommand(CommandResume)
}

// Reload asks the running loop to re-read its config file
func (c *Client) Reload() error {
	_, err := c.sendRequest(&Request{Command: CommandReload})
	return err
}
