// Package rules compiles routing declarations and matches them against tabs.
package rules

import (
	"regexp"
	"strings"

	"github.com/tabpal/tabpal/internal/config"
	"github.com/tabpal/tabpal/internal/util"
)

// Rule is a compiled routing rule ready for evaluation.
type Rule struct {
	Matcher     *regexp.Regexp
	TargetGroup int
	Field       MatchField
	Source      config.RuleDeclaration
}

// Compile turns declarations into compiled rules, preserving declaration
// order (rule priority is declaration order). Invalid declarations are
// dropped with one diagnostic line each; a bad rule never aborts the batch.
func Compile(decls []config.RuleDeclaration, logger *util.Logger) []Rule {
	out := make([]Rule, 0, len(decls))
	for i, d := range decls {
		if strings.TrimSpace(d.Pattern) == "" {
			logger.Warnf("rule %d dropped: pattern is empty", i+1)
			continue
		}
		if d.Group < 1 || d.Group > config.MaxTargetGroup {
			logger.Warnf("rule %d dropped: target group %d outside [1,%d]", i+1, d.Group, config.MaxTargetGroup)
			continue
		}
		field := FieldFileName
		if d.MatchField != "" {
			parsed, ok := ParseMatchField(d.MatchField)
			if !ok {
				logger.Warnf("rule %d dropped: unknown match field %q", i+1, d.MatchField)
				continue
			}
			field = parsed
		}
		matcher, err := regexp.Compile(d.Pattern)
		if err != nil {
			logger.Warnf("rule %d dropped: invalid pattern %q: %v", i+1, d.Pattern, err)
			continue
		}
		out = append(out, Rule{
			Matcher:     matcher,
			TargetGroup: d.Group,
			Field:       field,
			Source:      d,
		})
	}
	return out
}
