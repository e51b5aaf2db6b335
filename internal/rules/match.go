package rules

import (
	"context"

	"github.com/tabpal/tabpal/internal/state"
)

// MatchTrace records one rule's evaluation outcome for diagnostics.
type MatchTrace struct {
	Pattern     string     `json:"pattern"`
	TargetGroup int        `json:"targetGroup"`
	Field       MatchField `json:"field"`
	Value       string     `json:"value,omitempty"`
	Matched     bool       `json:"matched"`
	Skipped     string     `json:"skipped,omitempty"`
}

// FirstMatch applies rules in declaration order and returns the first whose
// pattern finds a match in the tab's resolved field value, along with the
// traces accumulated up to and including that rule. Fields are resolved one
// rule at a time, so a hit on an early rule never resolves fields for the
// rules after it. Rules whose resolved value is empty are skipped
// without testing the pattern, so patterns accepting empty input cannot
// match unresolved tabs.
func FirstMatch(ctx context.Context, tab state.Tab, rs []Rule, langs LanguageResolver) (*Rule, []MatchTrace) {
	traces := make([]MatchTrace, 0, len(rs))
	for i := range rs {
		trace := evalRule(ctx, tab, &rs[i], langs)
		traces = append(traces, trace)
		if trace.Matched {
			return &rs[i], traces
		}
	}
	return nil, traces
}

// Explain evaluates every rule without stopping at the first hit. Used by
// the tab.info control surface.
func Explain(ctx context.Context, tab state.Tab, rs []Rule, langs LanguageResolver) []MatchTrace {
	traces := make([]MatchTrace, 0, len(rs))
	for i := range rs {
		traces = append(traces, evalRule(ctx, tab, &rs[i], langs))
	}
	return traces
}

func evalRule(ctx context.Context, tab state.Tab, r *Rule, langs LanguageResolver) MatchTrace {
	trace := MatchTrace{
		Pattern:     r.Source.Pattern,
		TargetGroup: r.TargetGroup,
		Field:       r.Field,
	}
	value := Resolve(ctx, tab, r.Field, langs)
	trace.Value = value
	if value == "" {
		trace.Skipped = "empty value"
		return trace
	}
	trace.Matched = r.Matcher.MatchString(value)
	return trace
}
