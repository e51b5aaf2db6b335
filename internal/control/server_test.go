package control

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"sync"
	"testing"

	"github.com/tabpal/tabpal/internal/config"
	"github.com/tabpal/tabpal/internal/engine"
	"github.com/tabpal/tabpal/internal/state"
	"github.com/tabpal/tabpal/internal/util"
)

type fakeHost struct {
	mu     sync.Mutex
	groups []state.Group
	active *state.Tab
	moves  []int
}

func (f *fakeHost) ListGroups(context.Context) ([]state.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]state.Group(nil), f.groups...), nil
}

func (f *fakeHost) ActiveTab(context.Context) (*state.Tab, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active == nil {
		return nil, nil
	}
	tab := *f.active
	return &tab, nil
}

func (f *fakeHost) LanguageID(context.Context, string) (string, error) { return "", nil }

func (f *fakeHost) MoveActiveTab(_ context.Context, group int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moves = append(f.moves, group)
	return nil
}

func (f *fakeHost) SplitRight(context.Context) error { return nil }

func (f *fakeHost) moveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.moves)
}

func newTestServer(t *testing.T, host *fakeHost, reload func(string) error) *Server {
	t.Helper()
	logger := util.NewLoggerWithWriter(util.LevelError, io.Discard)
	cfg := config.Default()
	cfg.Rules = []config.RuleDeclaration{{Pattern: `\.md$`, Group: 3}}
	eng := engine.New(host, logger, cfg, false)
	srv, err := NewServer(eng, logger, reload)
	if err != nil {
		t.Fatalf("create server: %v", err)
	}
	return srv
}

func roundTrip(t *testing.T, srv *Server, req Request) Response {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	var (
		wg   sync.WaitGroup
		resp Response
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := json.NewEncoder(clientConn).Encode(req); err != nil {
			t.Errorf("encode request: %v", err)
			return
		}
		if err := json.NewDecoder(clientConn).Decode(&resp); err != nil {
			t.Errorf("decode response: %v", err)
		}
	}()

	srv.handle(context.Background(), serverConn)
	wg.Wait()
	return resp
}

func TestHandleTabInfo(t *testing.T) {
	host := &fakeHost{
		groups: []state.Group{{ID: 101, Position: 1}, {ID: 102, Position: 2}},
		active: &state.Tab{
			Label:   "notes.md",
			Active:  true,
			Input:   state.TabInput{Kind: state.InputText, URI: "file:///u/notes.md"},
			GroupID: 101,
		},
	}
	srv := newTestServer(t, host, nil)

	resp := roundTrip(t, srv, Request{Action: ActionTabInfo})
	if resp.Status != StatusOK {
		t.Fatalf("expected ok status, got %s (error=%s)", resp.Status, resp.Error)
	}
	raw, err := json.Marshal(resp.Data)
	if err != nil {
		t.Fatalf("remarshal data: %v", err)
	}
	var report engine.TabReport
	if err := json.Unmarshal(raw, &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Identity != "Text|file:///u/notes.md" {
		t.Fatalf("unexpected identity %q", report.Identity)
	}
	if report.CurrentGroup != 1 {
		t.Fatalf("unexpected current group %d", report.CurrentGroup)
	}
	if len(report.Rules) != 1 || !report.Rules[0].Matched {
		t.Fatalf("unexpected rule traces: %+v", report.Rules)
	}
}

func TestHandleTabInfoNoActiveTab(t *testing.T) {
	srv := newTestServer(t, &fakeHost{groups: []state.Group{{ID: 101, Position: 1}}}, nil)
	resp := roundTrip(t, srv, Request{Action: ActionTabInfo})
	if resp.Status != StatusError || resp.Error != "no active tab" {
		t.Fatalf("expected no-active-tab error, got %+v", resp)
	}
}

func TestHandleRouteMovesTab(t *testing.T) {
	host := &fakeHost{
		groups: []state.Group{
			{ID: 101, Position: 1},
			{ID: 102, Position: 2},
			{ID: 103, Position: 3},
		},
		active: &state.Tab{
			Label:   "notes.md",
			Active:  true,
			Input:   state.TabInput{Kind: state.InputText, URI: "file:///u/notes.md"},
			GroupID: 101,
		},
	}
	srv := newTestServer(t, host, nil)

	resp := roundTrip(t, srv, Request{Action: ActionRoute})
	if resp.Status != StatusOK {
		t.Fatalf("expected ok status, got %s (error=%s)", resp.Status, resp.Error)
	}
	raw, _ := json.Marshal(resp.Data)
	var result RouteResult
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if !result.Evaluated || result.Moves != 1 {
		t.Fatalf("unexpected route result: %+v", result)
	}
	if host.moveCount() != 1 {
		t.Fatalf("expected one host move, got %d", host.moveCount())
	}
}

func TestHandleReload(t *testing.T) {
	var reloaded []string
	srv := newTestServer(t, &fakeHost{}, func(reason string) error {
		reloaded = append(reloaded, reason)
		return nil
	})
	resp := roundTrip(t, srv, Request{Action: ActionReload})
	if resp.Status != StatusOK {
		t.Fatalf("expected ok status, got %s (error=%s)", resp.Status, resp.Error)
	}
	if len(reloaded) != 1 || reloaded[0] != "control request" {
		t.Fatalf("unexpected reload calls: %v", reloaded)
	}
}

func TestHandleUnknownAction(t *testing.T) {
	srv := newTestServer(t, &fakeHost{}, nil)
	resp := roundTrip(t, srv, Request{Action: "bogus"})
	if resp.Status != StatusError {
		t.Fatalf("expected error status, got %+v", resp)
	}
}
