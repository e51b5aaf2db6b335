// Command smoke evaluates a tabpal configuration against a layout fixture
// without a live host. Useful for checking rules before installing them.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tabpal/tabpal/internal/config"
	"github.com/tabpal/tabpal/internal/engine"
	"github.com/tabpal/tabpal/internal/state"
	"github.com/tabpal/tabpal/internal/util"
)

type fixture struct {
	Groups    []fixtureGroup    `yaml:"groups"`
	Languages map[string]string `yaml:"languages"`
}

type fixtureGroup struct {
	ID   int          `yaml:"id"`
	Tabs []fixtureTab `yaml:"tabs"`
}

type fixtureTab struct {
	Label    string `yaml:"label"`
	Kind     string `yaml:"kind"`
	URI      string `yaml:"uri"`
	ViewType string `yaml:"viewType"`
	Pinned   bool   `yaml:"pinned"`
	Active   bool   `yaml:"active"`
}

// fixtureHost replays a static layout and records the moves the engine asks for.
type fixtureHost struct {
	groups []state.Group
	langs  map[string]string
	moves  []int
	splits int
}

func (f *fixtureHost) ListGroups(context.Context) ([]state.Group, error) {
	return append([]state.Group(nil), f.groups...), nil
}

func (f *fixtureHost) ActiveTab(context.Context) (*state.Tab, error) {
	for _, group := range f.groups {
		for _, tab := range group.Tabs {
			if tab.Active {
				t := tab
				return &t, nil
			}
		}
	}
	return nil, nil
}

func (f *fixtureHost) LanguageID(_ context.Context, uri string) (string, error) {
	return f.langs[uri], nil
}

func (f *fixtureHost) MoveActiveTab(_ context.Context, group int) error {
	f.moves = append(f.moves, group)
	return nil
}

func (f *fixtureHost) SplitRight(context.Context) error {
	f.splits++
	next := len(f.groups) + 1
	f.groups = append(f.groups, state.Group{ID: 1000 + next, Position: next})
	return nil
}

func main() {
	home, _ := os.UserHomeDir()
	defaultConfig := filepath.Join(home, ".config", "tabpal", "config.yaml")

	cfgPath := flag.String("config", defaultConfig, "path to YAML config")
	fixturePath := flag.String("fixture", "", "path to YAML layout fixture")
	logLevel := flag.String("log-level", "debug", "log level (trace|debug|info|warn|error)")
	flag.Parse()

	logger := util.NewLogger(util.ParseLogLevel(*logLevel))

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		exitErr(fmt.Errorf("load config: %w", err))
	}
	if *fixturePath == "" {
		exitErr(fmt.Errorf("smoke requires -fixture <path>"))
	}
	host, err := loadFixture(*fixturePath)
	if err != nil {
		exitErr(fmt.Errorf("load fixture: %w", err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	fmt.Printf("Loaded config from %s\n", *cfgPath)
	fmt.Println("\n=== Configuration ===")
	if err := marshalYAML(cfg); err != nil {
		logger.Warnf("failed to print config: %v", err)
	}

	eng := engine.New(host, logger, cfg, true)

	world, err := eng.Snapshot(ctx)
	if err != nil {
		exitErr(fmt.Errorf("build world: %w", err))
	}
	fmt.Println("\n=== World Snapshot ===")
	if err := marshalJSON(world); err != nil {
		logger.Warnf("failed to print world snapshot: %v", err)
	}

	report, err := eng.ActiveTabReport(ctx)
	if err != nil {
		if err == engine.ErrNoActiveTab {
			fmt.Println("\nNo active tab in fixture; nothing to evaluate.")
			return
		}
		exitErr(fmt.Errorf("inspect active tab: %w", err))
	}

	fmt.Println("\n=== Active Tab ===")
	if err := marshalJSON(report); err != nil {
		logger.Warnf("failed to print tab report: %v", err)
	}

	fmt.Println("\n=== Dry Run ===")
	if err := eng.RouteNow(ctx); err != nil {
		exitErr(fmt.Errorf("evaluate: %w", err))
	}
	snap := eng.MetricsSnapshot()
	if snap.Matches == 0 {
		fmt.Println("No rule matched the active tab.")
	} else {
		fmt.Printf("Evaluations: %d, matches: %d, groups created: %d\n",
			snap.Evaluations, snap.Matches, snap.GroupsCreated)
	}
}

func loadFixture(path string) (*fixtureHost, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var fx fixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	host := &fixtureHost{langs: fx.Languages}
	for i, group := range fx.Groups {
		g := state.Group{ID: group.ID, Position: i + 1}
		if g.ID == 0 {
			g.ID = 100 + i + 1
		}
		for _, tab := range group.Tabs {
			g.Tabs = append(g.Tabs, state.Tab{
				Label:   tab.Label,
				Pinned:  tab.Pinned,
				Active:  tab.Active,
				GroupID: g.ID,
				Input: state.TabInput{
					Kind:     state.ParseInputKind(tab.Kind),
					URI:      tab.URI,
					ViewType: tab.ViewType,
				},
			})
			if tab.Active {
				g.Active = true
			}
		}
		host.groups = append(host.groups, g)
	}
	return host, nil
}

func exitErr(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func marshalYAML(v any) error {
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(v)
}

func marshalJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
