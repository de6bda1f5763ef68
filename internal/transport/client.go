package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
)

// DefaultTimeout bounds one call when the caller sets none.
const DefaultTimeout = 10 * time.Second

// Client issues JSON-RPC calls to the daemon over a Unix socket. Each call
// uses its own connection, so a Client is safe for concurrent use.
type Client struct {
	path    string
	timeout time.Duration
}

// NewClient creates a client for the socket at path.
func NewClient(path string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{path: path, timeout: timeout}
}

// Path returns the socket path.
func (c *Client) Path() string {
	return c.path
}

// Call sends method with params and decodes the result into result, which
// may be nil. Errors reported by the daemon are returned as *Error.
func (c *Client) Call(ctx context.Context, method string, params any, result any) error {
	req := Request{
		JSONRPC: "2.0",
		Method:  method,
		ID:      uuid.NewString(),
	}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("%s: encode params: %w", method, err)
		}
		req.Params = raw
	}

	dialer := net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "unix", c.path)
	if err != nil {
		return c.wrap(method, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return c.wrap(method, err)
	}

	if err := WriteMessage(conn, req); err != nil {
		return c.wrap(method, err)
	}

	line, err := ReadLine(bufio.NewReader(conn))
	if err != nil {
		return c.wrap(method, err)
	}

	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return fmt.Errorf("%s: decode response: %w", method, err)
	}
	if id, _ := resp.ID.(string); id != req.ID {
		return fmt.Errorf("%s: response id %v does not match request %v", method, resp.ID, req.ID)
	}
	if resp.Error != nil {
		return fmt.Errorf("%s: %w", method, resp.Error)
	}
	if result == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return fmt.Errorf("%s: decode result: %w", method, err)
	}
	return nil
}

func (c *Client) wrap(method string, err error) error {
	if IsConnectivity(err) {
		return fmt.Errorf("%s: %w: %s: %w", method, ErrConnectivity, c.path, err)
	}
	return fmt.Errorf("%s: %s: %w", method, c.path, err)
}
