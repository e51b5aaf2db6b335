package rules

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/tabpal/tabpal/internal/config"
	"github.com/tabpal/tabpal/internal/state"
	"github.com/tabpal/tabpal/internal/util"
)

type fakeLangs struct {
	byURI map[string]string
	err   error
	calls int
}

func (f *fakeLangs) LanguageID(_ context.Context, uri string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.byURI[uri], nil
}

func compileFixture(t *testing.T, decls ...config.RuleDeclaration) []Rule {
	t.Helper()
	logger := util.NewLoggerWithWriter(util.LevelError, &bytes.Buffer{})
	compiled := Compile(decls, logger)
	if len(compiled) != len(decls) {
		t.Fatalf("fixture rules did not all compile: %d of %d", len(compiled), len(decls))
	}
	return compiled
}

func textTab(uri string) state.Tab {
	return state.Tab{
		Label:   "tab",
		Input:   state.TabInput{Kind: state.InputText, URI: uri},
		GroupID: 1,
	}
}

func TestResolveMappingTable(t *testing.T) {
	tab := state.Tab{
		Label: "notes.md",
		Input: state.TabInput{Kind: state.InputText, URI: "file:///home/u/notes.md"},
	}
	langs := &fakeLangs{byURI: map[string]string{"file:///home/u/notes.md": "markdown"}}
	ctx := context.Background()

	if got := Resolve(ctx, tab, FieldFileName, langs); got != "/home/u/notes.md" {
		t.Fatalf("fileName = %q", got)
	}
	if got := Resolve(ctx, tab, FieldURI, langs); got != "file:///home/u/notes.md" {
		t.Fatalf("uri = %q", got)
	}
	if got := Resolve(ctx, tab, FieldTabLabel, langs); got != "notes.md" {
		t.Fatalf("tabLabel = %q", got)
	}
	if got := Resolve(ctx, tab, FieldTabInputType, langs); got != "Text" {
		t.Fatalf("tabInputType = %q", got)
	}
	if got := Resolve(ctx, tab, FieldViewType, langs); got != "" {
		t.Fatalf("viewType for text tab = %q", got)
	}
	if got := Resolve(ctx, tab, FieldLanguageID, langs); got != "markdown" {
		t.Fatalf("languageId = %q", got)
	}
}

func TestResolveFailureYieldsEmpty(t *testing.T) {
	tab := textTab("file:///p/main.go")
	langs := &fakeLangs{err: errors.New("cannot open resource")}
	if got := Resolve(context.Background(), tab, FieldLanguageID, langs); got != "" {
		t.Fatalf("expected empty languageId on resolver error, got %q", got)
	}
	term := state.Tab{Label: "zsh", Input: state.TabInput{Kind: state.InputTerminal}}
	if got := Resolve(context.Background(), term, FieldLanguageID, langs); got != "" {
		t.Fatalf("expected empty languageId for resourceless tab, got %q", got)
	}
}

func TestFirstMatchPriorityIsDeclarationOrder(t *testing.T) {
	rs := compileFixture(t,
		config.RuleDeclaration{Pattern: `\.md$`, Group: 3},
		config.RuleDeclaration{Pattern: `notes`, Group: 5},
	)
	match, traces := FirstMatch(context.Background(), textTab("file:///u/notes.md"), rs, nil)
	if match == nil {
		t.Fatalf("expected a match")
	}
	if match.TargetGroup != 3 {
		t.Fatalf("first declared rule must win, got target %d", match.TargetGroup)
	}
	if len(traces) != 1 || !traces[0].Matched {
		t.Fatalf("expected evaluation to stop at the first hit, traces=%+v", traces)
	}
}

func TestFirstMatchSkipsEmptyValues(t *testing.T) {
	// .* accepts empty input, but an unresolved field must never be tested.
	rs := compileFixture(t,
		config.RuleDeclaration{Pattern: `.*`, Group: 2, MatchField: "languageId"},
		config.RuleDeclaration{Pattern: `.+`, Group: 4, MatchField: "languageId"},
	)
	term := state.Tab{Label: "zsh", Input: state.TabInput{Kind: state.InputTerminal}}
	match, traces := FirstMatch(context.Background(), term, rs, &fakeLangs{})
	if match != nil {
		t.Fatalf("expected no match for unresolved languageId, got target %d", match.TargetGroup)
	}
	for _, trace := range traces {
		if trace.Skipped != "empty value" {
			t.Fatalf("expected empty-value skip, got %+v", trace)
		}
	}
}

func TestFirstMatchUsesSearchSemantics(t *testing.T) {
	rs := compileFixture(t, config.RuleDeclaration{Pattern: `notes`, Group: 2})
	match, _ := FirstMatch(context.Background(), textTab("file:///u/notes.md"), rs, nil)
	if match == nil {
		t.Fatalf("expected substring search to match mid-path")
	}
}

func TestFirstMatchResolvesOnlyAsNeeded(t *testing.T) {
	rs := compileFixture(t,
		config.RuleDeclaration{Pattern: `\.md$`, Group: 3},
		config.RuleDeclaration{Pattern: `markdown`, Group: 5, MatchField: "languageId"},
	)
	langs := &fakeLangs{byURI: map[string]string{"file:///u/readme.md": "markdown"}}
	match, _ := FirstMatch(context.Background(), textTab("file:///u/readme.md"), rs, langs)
	if match == nil || match.TargetGroup != 3 {
		t.Fatalf("expected first rule to match")
	}
	if langs.calls != 0 {
		t.Fatalf("languageId must not be resolved when an earlier rule matches, calls=%d", langs.calls)
	}
}

func TestExplainEvaluatesEveryRule(t *testing.T) {
	rs := compileFixture(t,
		config.RuleDeclaration{Pattern: `\.md$`, Group: 3},
		config.RuleDeclaration{Pattern: `\.go$`, Group: 2},
	)
	traces := Explain(context.Background(), textTab("file:///u/notes.md"), rs, nil)
	if len(traces) != 2 {
		t.Fatalf("expected a trace per rule, got %d", len(traces))
	}
	if !traces[0].Matched || traces[1].Matched {
		t.Fatalf("unexpected trace outcomes: %+v", traces)
	}
	if traces[0].Value != "/u/notes.md" {
		t.Fatalf("trace should carry resolved value, got %q", traces[0].Value)
	}
}

func TestFirstMatchIsRepeatable(t *testing.T) {
	rs := compileFixture(t, config.RuleDeclaration{Pattern: `\.md$`, Group: 3})
	tab := textTab("file:///u/notes.md")
	for i := 0; i < 3; i++ {
		match, _ := FirstMatch(context.Background(), tab, rs, nil)
		if match == nil || match.TargetGroup != 3 {
			t.Fatalf("iteration %d: unexpected result %+v", i, match)
		}
	}
}
