package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultDebounceMs is applied when the config omits debounceMs.
	DefaultDebounceMs = 120
	// DefaultMaxAutoCreates bounds group creation per ensure call; 0 means
	// unlimited up to the hard group ceiling.
	DefaultMaxAutoCreates = 2
	// MaxTargetGroup is the highest group index a rule may target.
	MaxTargetGroup = 9
)

// RuleDeclaration is a single externally supplied routing rule.
type RuleDeclaration struct {
	Pattern    string `yaml:"pattern" json:"pattern"`
	Group      int    `yaml:"group" json:"group"`
	MatchField string `yaml:"matchField,omitempty" json:"matchField,omitempty"`
}

// Config is the top-level configuration document.
type Config struct {
	Rules              []RuleDeclaration `yaml:"rules"`
	Debug              bool              `yaml:"debug"`
	DebounceMs         int               `yaml:"debounceMs"`
	RequireTargetGroup bool              `yaml:"requireTargetGroup"`
	AutoCreateGroups   bool              `yaml:"autoCreateGroups"`
	MaxAutoCreates     int               `yaml:"maxAutoCreates"`
	SkipPinnedTabs     bool              `yaml:"skipPinnedTabs"`
}

// UnmarshalYAML applies defaults for fields where the zero value is meaningful.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	type rawConfig struct {
		Rules              []RuleDeclaration `yaml:"rules"`
		Debug              bool              `yaml:"debug"`
		DebounceMs         *int              `yaml:"debounceMs"`
		RequireTargetGroup *bool             `yaml:"requireTargetGroup"`
		AutoCreateGroups   bool              `yaml:"autoCreateGroups"`
		MaxAutoCreates     *int              `yaml:"maxAutoCreates"`
		SkipPinnedTabs     bool              `yaml:"skipPinnedTabs"`
	}

	var raw rawConfig
	if err := value.Decode(&raw); err != nil {
		return err
	}

	c.Rules = raw.Rules
	c.Debug = raw.Debug
	c.AutoCreateGroups = raw.AutoCreateGroups
	c.SkipPinnedTabs = raw.SkipPinnedTabs

	c.DebounceMs = DefaultDebounceMs
	if raw.DebounceMs != nil {
		c.DebounceMs = *raw.DebounceMs
	}
	c.RequireTargetGroup = true
	if raw.RequireTargetGroup != nil {
		c.RequireTargetGroup = *raw.RequireTargetGroup
	}
	c.MaxAutoCreates = DefaultMaxAutoCreates
	if raw.MaxAutoCreates != nil {
		c.MaxAutoCreates = *raw.MaxAutoCreates
	}
	return nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		DebounceMs:         DefaultDebounceMs,
		RequireTargetGroup: true,
		MaxAutoCreates:     DefaultMaxAutoCreates,
	}
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate performs sanity checks on the global settings. Per-rule issues are
// deliberately not load errors: bad rules are dropped with a diagnostic at
// compile time so one typo never takes the whole rule set down.
func (c *Config) Validate() error {
	if c.DebounceMs < 0 {
		return fmt.Errorf("debounceMs cannot be negative")
	}
	if c.MaxAutoCreates < 0 {
		return fmt.Errorf("maxAutoCreates cannot be negative")
	}
	return nil
}

// DebounceInterval returns the debounce window as a duration.
func (c *Config) DebounceInterval() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

var knownMatchFields = map[string]struct{}{
	"fileName":     {},
	"uri":          {},
	"tabLabel":     {},
	"tabInputType": {},
	"viewType":     {},
	"languageId":   {},
}

// Lint reports per-rule issues without failing. The same checks decide which
// declarations the compiler drops.
func (c *Config) Lint() []error {
	var errs []error
	for i, r := range c.Rules {
		if strings.TrimSpace(r.Pattern) == "" {
			errs = append(errs, fmt.Errorf("rule %d: pattern is empty", i+1))
			continue
		}
		if _, err := regexp.Compile(r.Pattern); err != nil {
			errs = append(errs, fmt.Errorf("rule %d: invalid pattern %q: %v", i+1, r.Pattern, err))
		}
		if r.Group < 1 || r.Group > MaxTargetGroup {
			errs = append(errs, fmt.Errorf("rule %d: group %d outside [1,%d]", i+1, r.Group, MaxTargetGroup))
		}
		if r.MatchField != "" {
			if _, ok := knownMatchFields[r.MatchField]; !ok {
				errs = append(errs, fmt.Errorf("rule %d: unknown matchField %q", i+1, r.MatchField))
			}
		}
	}
	return errs
}

// LintFile loads a configuration file and lints it.
func LintFile(path string) ([]error, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return cfg.Lint(), nil
}
