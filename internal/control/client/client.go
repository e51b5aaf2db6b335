// Package client talks to a running tabpal daemon over its control socket.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/tabpal/tabpal/internal/control"
	"github.com/tabpal/tabpal/internal/engine"
	"github.com/tabpal/tabpal/internal/metrics"
	"github.com/tabpal/tabpal/internal/state"
)

const (
	// defaultTimeout is used when the caller does not provide a context deadline.
	defaultTimeout = 3 * time.Second
)

// Client talks to the running tabpal daemon over its control socket.
type Client struct {
	socketPath string
}

type (
	// TabReport mirrors the active tab payload returned by the daemon.
	TabReport = engine.TabReport
	// World mirrors the group layout snapshot returned by the daemon.
	World = state.World
	// RouteResult reports the outcome of an on-demand routing cycle.
	RouteResult = control.RouteResult
	// MetricsSnapshot mirrors the counter payload returned by the daemon.
	MetricsSnapshot = metrics.Snapshot
)

// New creates a client that connects to the provided socket path. When path is
// empty, the default runtime path is used.
func New(path string) (*Client, error) {
	if path == "" {
		var err error
		path, err = control.DefaultSocketPath()
		if err != nil {
			return nil, err
		}
	}
	return &Client{socketPath: path}, nil
}

// Info retrieves the daemon's view of the active tab and its rule traces.
func (c *Client) Info(ctx context.Context) (TabReport, error) {
	var report TabReport
	if err := c.do(ctx, control.Request{Action: control.ActionTabInfo}, &report); err != nil {
		return TabReport{}, err
	}
	return report, nil
}

// Dump retrieves the daemon's current group layout snapshot.
func (c *Client) Dump(ctx context.Context) (World, error) {
	var world World
	if err := c.do(ctx, control.Request{Action: control.ActionGroupsDump}, &world); err != nil {
		return World{}, err
	}
	return world, nil
}

// Route asks the daemon to evaluate the active tab immediately.
func (c *Client) Route(ctx context.Context) (RouteResult, error) {
	var result RouteResult
	if err := c.do(ctx, control.Request{Action: control.ActionRoute}, &result); err != nil {
		return RouteResult{}, err
	}
	return result, nil
}

// Reload asks the daemon to reload its configuration.
func (c *Client) Reload(ctx context.Context) error {
	return c.do(ctx, control.Request{Action: control.ActionReload}, nil)
}

// Metrics retrieves the daemon's routing counters.
func (c *Client) Metrics(ctx context.Context) (MetricsSnapshot, error) {
	var snap MetricsSnapshot
	if err := c.do(ctx, control.Request{Action: control.ActionMetricsGet}, &snap); err != nil {
		return MetricsSnapshot{}, err
	}
	return snap, nil
}

func (c *Client) do(ctx context.Context, req control.Request, out any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTimeout)
		defer cancel()
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return fmt.Errorf("dial control socket: %w", err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	var resp control.Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.Status != control.StatusOK {
		if resp.Error != "" {
			return fmt.Errorf("daemon error: %s", resp.Error)
		}
		return fmt.Errorf("daemon returned status %q", resp.Status)
	}
	if out == nil {
		return nil
	}
	raw, err := json.Marshal(resp.Data)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
