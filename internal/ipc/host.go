// Package ipc speaks the editor host's companion protocol: a JSON
// query/command socket and a line-framed event socket.
package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/tabpal/tabpal/internal/state"
)

const (
	// SocketEnv names the env var carrying the host query socket path.
	SocketEnv = "TABPAL_HOST_SOCKET"
	// EventSocketEnv names the env var carrying the host event socket path.
	EventSocketEnv = "TABPAL_HOST_EVENT_SOCKET"

	defaultRequestTimeout = 3 * time.Second
)

// Client talks to the editor host over its query/command socket. One request
// is sent per connection.
type Client struct {
	socketPath string
}

// NewClient locates the host socket from the environment.
func NewClient() (*Client, error) {
	path := os.Getenv(SocketEnv)
	if path == "" {
		return nil, fmt.Errorf("%s not set", SocketEnv)
	}
	return &Client{socketPath: path}, nil
}

// NewClientWithSocket returns a client bound to an explicit socket path.
func NewClientWithSocket(path string) *Client {
	return &Client{socketPath: path}
}

type request struct {
	Op     string         `json:"op"`
	Params map[string]any `json:"params,omitempty"`
}

type response struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

func (c *Client) do(ctx context.Context, req request, out any) error {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultRequestTimeout)
		defer cancel()
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return fmt.Errorf("dial host socket: %w", err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return fmt.Errorf("encode %s request: %w", req.Op, err)
	}
	var resp response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return fmt.Errorf("decode %s response: %w", req.Op, err)
	}
	if resp.Status != "ok" {
		if resp.Error == "" {
			resp.Error = "unknown host error"
		}
		return fmt.Errorf("%s: %s", req.Op, resp.Error)
	}
	if out == nil || len(resp.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("decode %s payload: %w", req.Op, err)
	}
	return nil
}

type rawTab struct {
	Label    string `json:"label"`
	Pinned   bool   `json:"pinned"`
	Active   bool   `json:"active"`
	Preview  bool   `json:"preview"`
	Kind     string `json:"kind"`
	URI      string `json:"uri"`
	ViewType string `json:"viewType"`
	GroupID  int    `json:"groupId"`
}

func (r rawTab) toState() state.Tab {
	return state.Tab{
		Label:   r.Label,
		Pinned:  r.Pinned,
		Active:  r.Active,
		Preview: r.Preview,
		Input: state.TabInput{
			Kind:     state.ParseInputKind(r.Kind),
			URI:      r.URI,
			ViewType: r.ViewType,
		},
		GroupID: r.GroupID,
	}
}

// ListGroups returns every display group with its tabs.
func (c *Client) ListGroups(ctx context.Context) ([]state.Group, error) {
	var raw []struct {
		ID       int      `json:"id"`
		Position int      `json:"position"`
		Active   bool     `json:"active"`
		Tabs     []rawTab `json:"tabs"`
	}
	if err := c.do(ctx, request{Op: "groups.list"}, &raw); err != nil {
		return nil, err
	}
	groups := make([]state.Group, 0, len(raw))
	for _, g := range raw {
		group := state.Group{ID: g.ID, Position: g.Position, Active: g.Active}
		for _, t := range g.Tabs {
			tab := t.toState()
			if tab.GroupID == 0 {
				tab.GroupID = g.ID
			}
			group.Tabs = append(group.Tabs, tab)
		}
		groups = append(groups, group)
	}
	return groups, nil
}

// ActiveTab returns the host's active tab, or nil when none is focused.
func (c *Client) ActiveTab(ctx context.Context) (*state.Tab, error) {
	var raw *rawTab
	if err := c.do(ctx, request{Op: "tab.active"}, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	tab := raw.toState()
	return &tab, nil
}

// LanguageID asks the host to open the resource and report its content
// language identifier.
func (c *Client) LanguageID(ctx context.Context, uri string) (string, error) {
	if uri == "" {
		return "", errors.New("empty resource locator")
	}
	var payload struct {
		LanguageID string `json:"languageId"`
	}
	if err := c.do(ctx, request{Op: "lang.resolve", Params: map[string]any{"uri": uri}}, &payload); err != nil {
		return "", err
	}
	return payload.LanguageID, nil
}

// MoveActiveTab moves the active tab into the group at the given index.
func (c *Client) MoveActiveTab(ctx context.Context, group int) error {
	return c.do(ctx, request{Op: "tab.move", Params: map[string]any{"group": group}}, nil)
}

// SplitRight asks the host to create one more group to the right. The effect
// is observed only by re-querying the layout.
func (c *Client) SplitRight(ctx context.Context) error {
	return c.do(ctx, request{Op: "group.split"}, nil)
}

var _ state.DataSource = (*Client)(nil)
