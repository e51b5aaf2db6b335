package rules

import (
	"bytes"
	"strings"
	"testing"

	"github.com/tabpal/tabpal/internal/config"
	"github.com/tabpal/tabpal/internal/util"
)

func TestCompileDropsInvalidDeclarations(t *testing.T) {
	var logs bytes.Buffer
	logger := util.NewLoggerWithWriter(util.LevelWarn, &logs)
	decls := []config.RuleDeclaration{
		{Pattern: `\.md$`, Group: 3},
		{Pattern: "", Group: 1},
		{Pattern: "[", Group: 2},
		{Pattern: "ok", Group: 0},
		{Pattern: "ok", Group: 10},
		{Pattern: "ok", Group: 2, MatchField: "bogus"},
		{Pattern: `\.go$`, Group: 2, MatchField: "fileName"},
	}
	compiled := Compile(decls, logger)
	if len(compiled) != 2 {
		t.Fatalf("expected 2 compiled rules, got %d", len(compiled))
	}
	if compiled[0].Source.Pattern != `\.md$` || compiled[1].Source.Pattern != `\.go$` {
		t.Fatalf("compiled rules out of order: %+v", compiled)
	}
	out := logs.String()
	if got := strings.Count(out, "dropped"); got != 5 {
		t.Fatalf("expected 5 diagnostic lines, got %d:\n%s", got, out)
	}
}

func TestCompileDefaultsMatchField(t *testing.T) {
	logger := util.NewLoggerWithWriter(util.LevelError, &bytes.Buffer{})
	compiled := Compile([]config.RuleDeclaration{{Pattern: "x", Group: 1}}, logger)
	if len(compiled) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(compiled))
	}
	if compiled[0].Field != FieldFileName {
		t.Fatalf("expected fileName default, got %s", compiled[0].Field)
	}
}

func TestCompilePreservesDeclarationOrder(t *testing.T) {
	logger := util.NewLoggerWithWriter(util.LevelError, &bytes.Buffer{})
	decls := []config.RuleDeclaration{
		{Pattern: "a", Group: 1, MatchField: "tabLabel"},
		{Pattern: "b", Group: 2, MatchField: "uri"},
		{Pattern: "c", Group: 3, MatchField: "languageId"},
	}
	compiled := Compile(decls, logger)
	if len(compiled) != 3 {
		t.Fatalf("expected 3 rules, got %d", len(compiled))
	}
	for i, want := range []string{"a", "b", "c"} {
		if compiled[i].Source.Pattern != want {
			t.Fatalf("rule %d has pattern %q, want %q", i, compiled[i].Source.Pattern, want)
		}
	}
}

func TestParseMatchField(t *testing.T) {
	for _, field := range MatchFields {
		if got, ok := ParseMatchField(string(field)); !ok || got != field {
			t.Fatalf("ParseMatchField(%q) = %v,%v", field, got, ok)
		}
	}
	if _, ok := ParseMatchField("FileName"); ok {
		t.Fatalf("field names are case-sensitive")
	}
}
