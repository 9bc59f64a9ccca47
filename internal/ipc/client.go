package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// SessionStart begins acquisition under a label.
func (c *Client) SessionStart(label string) (*SessionStartResponse, error) {
	var resp SessionStartResponse
	if err := c.client.Call("WaveDAQ.SessionStart", SessionStartRequest{Label: label}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SessionStop ends the active session.
func (c *Client) SessionStop() (*SessionStopResponse, error) {
	var resp SessionStopResponse
	if err := c.client.Call("WaveDAQ.SessionStop", SessionStopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("WaveDAQ.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SessionList returns catalog sessions, newest first.
func (c *Client) SessionList(limit int) (*SessionListResponse, error) {
	var resp SessionListResponse
	if err := c.client.Call("WaveDAQ.SessionList", SessionListRequest{Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FileList returns one session's recording files.
func (c *Client) FileList(sessionID string) (*FileListResponse, error) {
	var resp FileListResponse
	if err := c.client.Call("WaveDAQ.FileList", FileListRequest{SessionID: sessionID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeviceList returns serial adapters currently present.
func (c *Client) DeviceList() (*DeviceListResponse, error) {
	var resp DeviceListResponse
	if err := c.client.Call("WaveDAQ.DeviceList", DeviceListRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Snapshot returns the newest live samples.
func (c *Client) Snapshot(limit int) (*SnapshotResponse, error) {
	var resp SnapshotResponse
	if err := c.client.Call("WaveDAQ.Snapshot", SnapshotRequest{Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
