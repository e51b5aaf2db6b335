package config

import (
	"strings"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"
)

// Diff returns a line diff between two configurations in their serialized
// form, or "" when they are equivalent. Used to log what a reload changed.
func Diff(previous, current *Config) string {
	return cmp.Diff(serializedLines(previous), serializedLines(current))
}

func serializedLines(cfg *Config) []string {
	if cfg == nil {
		return nil
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil
	}
	text := strings.TrimSuffix(string(data), "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}
