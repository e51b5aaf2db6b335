// Package engine implements the routing decision loop: debounced reaction to
// host change notifications, rule matching, group topology checks, and the
// suppression windows that keep the move action from re-triggering itself.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tabpal/tabpal/internal/config"
	"github.com/tabpal/tabpal/internal/ipc"
	"github.com/tabpal/tabpal/internal/metrics"
	"github.com/tabpal/tabpal/internal/rules"
	"github.com/tabpal/tabpal/internal/state"
	"github.com/tabpal/tabpal/internal/topology"
	"github.com/tabpal/tabpal/internal/util"
)

type hostClient interface {
	state.DataSource
	rules.LanguageResolver
	topology.Splitter
	MoveActiveTab(ctx context.Context, group int) error
}

type subscribeFunc func(ctx context.Context, logger *util.Logger) (<-chan ipc.Event, error)

const (
	// globalSuppressionWindow mutes all evaluation after a move, long enough
	// to absorb the cascade of notifications the move itself produces.
	globalSuppressionWindow = 300 * time.Millisecond
	// keyedSuppressionWindow blocks a repeat move of the same tab to the same
	// group while the first move is still propagating through the host.
	keyedSuppressionWindow = 1500 * time.Millisecond
)

// Engine ties the rule set, group topology, and host IPC together.
type Engine struct {
	host      hostClient
	logger    *util.Logger
	collector *metrics.Collector
	topo      *topology.Topology
	dryRun    bool

	mu            sync.Mutex
	cfg           *config.Config
	compiled      []rules.Rule
	suppressUntil time.Time
	suppressKeys  map[string]time.Time

	// evalMu serializes evaluation cycles; the debounce timer and explicit
	// route requests share it, so two evaluations never interleave.
	evalMu sync.Mutex

	clock     Clock
	subscribe subscribeFunc
}

// New creates an engine for the given host and configuration.
func New(host hostClient, logger *util.Logger, cfg *config.Config, dryRun bool) *Engine {
	return &Engine{
		host:         host,
		logger:       logger,
		collector:    metrics.NewCollector(),
		topo:         topology.New(host, host, logger),
		dryRun:       dryRun,
		cfg:          cfg,
		compiled:     rules.Compile(cfg.Rules, logger),
		suppressKeys: make(map[string]time.Time),
		clock:        realClock{},
		subscribe:    ipc.Subscribe,
	}
}

// Reload swaps the configuration and recompiled rule set atomically. In-flight
// evaluations keep the snapshot they started with.
func (e *Engine) Reload(cfg *config.Config) {
	compiled := rules.Compile(cfg.Rules, e.logger)
	e.mu.Lock()
	e.cfg = cfg
	e.compiled = compiled
	e.suppressUntil = time.Time{}
	e.suppressKeys = make(map[string]time.Time)
	e.mu.Unlock()
	e.logger.Infof("reloaded configuration: %d of %d rules active", len(compiled), len(cfg.Rules))
}

func (e *Engine) snapshotConfig() (*config.Config, []rules.Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg, e.compiled
}

// Run subscribes to host notifications and drives the debounce loop until
// context cancellation.
func (e *Engine) Run(ctx context.Context) error {
	events, err := e.subscribeEvents(ctx)
	if err != nil {
		return err
	}
	var (
		timer  Timer
		timerC <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return fmt.Errorf("event stream closed")
			}
			if !isInteresting(ev.Kind) {
				continue
			}
			if e.globallySuppressed(e.clock.Now()) {
				e.logger.Tracef("ignoring %s inside suppression window", ev.Kind)
				continue
			}
			interval := e.debounceInterval()
			if timer == nil {
				timer = e.clock.NewTimer(interval)
				timerC = timer.C()
			} else {
				if !timer.Stop() {
					select {
					case <-timerC:
					default:
					}
				}
				timer.Reset(interval)
			}
			e.logger.Tracef("evaluation scheduled in %s after %s", interval, ev.Kind)
		case <-timerC:
			timer = nil
			timerC = nil
			if err := e.evaluate(ctx); err != nil && ctx.Err() != nil {
				return ctx.Err()
			}
		}
	}
}

func (e *Engine) subscribeEvents(ctx context.Context) (<-chan ipc.Event, error) {
	if e.subscribe != nil {
		return e.subscribe(ctx, e.logger)
	}
	return ipc.Subscribe(ctx, e.logger)
}

func (e *Engine) debounceInterval() time.Duration {
	cfg, _ := e.snapshotConfig()
	return cfg.DebounceInterval()
}

// RouteNow runs an immediate evaluation, bypassing the debounce timer. The
// global suppression window still applies.
func (e *Engine) RouteNow(ctx context.Context) error {
	return e.evaluate(ctx)
}

// evaluate runs one routing cycle. Every abort is terminal for the cycle: no
// retries are scheduled here, the next host notification is the only
// re-trigger.
func (e *Engine) evaluate(ctx context.Context) error {
	e.evalMu.Lock()
	defer e.evalMu.Unlock()

	cfg, compiled := e.snapshotConfig()
	e.collector.RecordEvaluation()

	// The deadline may have moved between scheduling and firing.
	now := e.clock.Now()
	if e.globallySuppressed(now) {
		e.logger.Debugf("evaluation suppressed by global window")
		e.collector.RecordSuppressedGlobal()
		return nil
	}

	world, err := state.NewWorld(ctx, e.host)
	if err != nil {
		e.logger.Errorf("query host layout: %v", err)
		return err
	}
	tab := world.Active
	if tab == nil {
		e.logger.Debugf("no active tab")
		return nil
	}
	if cfg.SkipPinnedTabs && tab.Pinned {
		e.logger.Debugf("skipping pinned tab %q", tab.Label)
		return nil
	}

	current, err := topology.CurrentGroupOf(world.Groups, *tab)
	if err != nil {
		e.logger.Debugf("abandoning route for %q: %v", tab.Label, err)
		return nil
	}

	match, traces := rules.FirstMatch(ctx, *tab, compiled, e.host)
	e.logTraces(tab.Label, traces)
	if match == nil {
		e.logger.Debugf("no rule matched %q", tab.Label)
		return nil
	}
	e.collector.RecordMatch()

	target := match.TargetGroup
	if target == current {
		e.logger.Debugf("tab %q already in group %d", tab.Label, target)
		return nil
	}

	if !topology.Exists(world.Groups, target) {
		if !cfg.AutoCreateGroups {
			if cfg.RequireTargetGroup {
				e.logger.Debugf("target group %d does not exist and auto-create is disabled", target)
			} else {
				e.logger.Debugf("target group %d does not exist; not creating", target)
			}
			return nil
		}
		ok, created, err := e.topo.Ensure(ctx, target, topology.EnsurePolicy{MaxCreates: cfg.MaxAutoCreates})
		e.collector.AddGroupsCreated(created)
		if err != nil {
			e.logger.Errorf("ensure group %d: %v", target, err)
			return nil
		}
		if !ok {
			e.logger.Debugf("group %d could not be created", target)
			return nil
		}
	}

	key := suppressionKey(tab.Identity(), target)
	if e.keySuppressed(key, now) {
		e.logger.Debugf("move of %q to group %d suppressed", tab.Label, target)
		e.collector.RecordSuppressedKeyed()
		return nil
	}
	e.markSuppressed(key, now)

	if e.dryRun {
		e.logger.Infof("dry-run: would move %q to group %d (pattern %q)", tab.Label, target, match.Source.Pattern)
		return nil
	}
	if err := e.host.MoveActiveTab(ctx, target); err != nil {
		// Not retried: the next organic change notification re-triggers
		// evaluation naturally.
		e.logger.Errorf("move %q to group %d: %v", tab.Label, target, err)
		e.collector.RecordMoveError()
		return nil
	}
	e.collector.RecordMove()
	e.logger.Infof("moved %q to group %d (pattern %q)", tab.Label, target, match.Source.Pattern)
	return nil
}

func (e *Engine) logTraces(label string, traces []rules.MatchTrace) {
	if e.logger.Level() > util.LevelDebug {
		return
	}
	for _, trace := range traces {
		switch {
		case trace.Matched:
			e.logger.Debugf("rule %q on %s matched %q for %q", trace.Pattern, trace.Field, trace.Value, label)
		case trace.Skipped != "":
			e.logger.Debugf("rule %q on %s skipped for %q (%s)", trace.Pattern, trace.Field, label, trace.Skipped)
		default:
			e.logger.Debugf("rule %q on %s did not match %q for %q", trace.Pattern, trace.Field, trace.Value, label)
		}
	}
}

func isInteresting(kind string) bool {
	switch kind {
	case ipc.EventTabsChanged, ipc.EventGroupsChanged, ipc.EventActiveEditor, ipc.EventActiveTerminal:
		return true
	default:
		return false
	}
}

// MetricsSnapshot returns the current routing counters.
func (e *Engine) MetricsSnapshot() metrics.Snapshot {
	return e.collector.Snapshot()
}

// Snapshot re-queries the host and returns the full tab layout.
func (e *Engine) Snapshot(ctx context.Context) (*state.World, error) {
	return state.NewWorld(ctx, e.host)
}
