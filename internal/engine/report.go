package engine

import (
	"context"
	"errors"

	"github.com/tabpal/tabpal/internal/rules"
	"github.com/tabpal/tabpal/internal/state"
	"github.com/tabpal/tabpal/internal/topology"
)

// TabReport is the structured view of the active tab served to the control
// surface: identity, every resolvable attribute, and per-rule match traces.
type TabReport struct {
	Tab          state.Tab          `json:"tab"`
	Identity     string             `json:"identity"`
	CurrentGroup int                `json:"currentGroup,omitempty"`
	Attributes   map[string]string  `json:"attributes"`
	Rules        []rules.MatchTrace `json:"rules,omitempty"`
}

// ErrNoActiveTab reports that the host has no focused tab to inspect.
var ErrNoActiveTab = errors.New("no active tab")

// ActiveTabReport builds a report for the currently active tab.
func (e *Engine) ActiveTabReport(ctx context.Context) (*TabReport, error) {
	_, compiled := e.snapshotConfig()
	world, err := state.NewWorld(ctx, e.host)
	if err != nil {
		return nil, err
	}
	if world.Active == nil {
		return nil, ErrNoActiveTab
	}
	tab := *world.Active
	report := &TabReport{
		Tab:        tab,
		Identity:   tab.Identity(),
		Attributes: make(map[string]string, len(rules.MatchFields)),
	}
	if current, err := topology.CurrentGroupOf(world.Groups, tab); err == nil {
		report.CurrentGroup = current
	}
	for _, field := range rules.MatchFields {
		report.Attributes[string(field)] = rules.Resolve(ctx, tab, field, e.host)
	}
	report.Rules = rules.Explain(ctx, tab, compiled, e.host)
	return report, nil
}
