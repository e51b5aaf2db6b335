package ipc

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/tabpal/tabpal/internal/util"
)

// Event is one host change notification. Payloads are advisory; the engine
// re-queries state rather than trusting them.
type Event struct {
	Kind    string
	Payload string
}

// Change notification kinds emitted by the host.
const (
	EventTabsChanged    = "tabschanged"
	EventGroupsChanged  = "groupschanged"
	EventActiveEditor   = "activeeditor"
	EventActiveTerminal = "activeterminal"
)

// Subscribe connects to the host event socket and streams events until
// context cancellation.
func Subscribe(ctx context.Context, logger *util.Logger) (<-chan Event, error) {
	socket := os.Getenv(EventSocketEnv)
	if socket == "" {
		return nil, fmt.Errorf("%s not set", EventSocketEnv)
	}
	conn, err := net.Dial("unix", socket)
	if err != nil {
		return nil, fmt.Errorf("connect event socket: %w", err)
	}
	events := make(chan Event)
	go func() {
		defer close(events)
		defer conn.Close()
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			line := scanner.Text()
			parts := strings.SplitN(line, ">>", 2)
			ev := Event{Kind: parts[0]}
			if len(parts) == 2 {
				ev.Payload = parts[1]
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			logger.Warnf("event stream error: %v", err)
		}
	}()
	return events, nil
}
