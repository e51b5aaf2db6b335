package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestRunCheckSuccess(t *testing.T) {
	cfg := `rules:
  - pattern: '\.md$'
    group: 3
  - pattern: 'terminal'
    group: 9
    matchField: tabInputType
`
	path := writeTempConfig(t, cfg)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	if err := runCheck([]string{"--config", path}, &stdout, &stderr); err != nil {
		t.Fatalf("runCheck returned error: %v", err)
	}
	if strings.TrimSpace(stdout.String()) != "Configuration OK" {
		t.Fatalf("unexpected stdout: %q", stdout.String())
	}
	if strings.TrimSpace(stderr.String()) != "" {
		t.Fatalf("expected no stderr, got %q", stderr.String())
	}
}

func TestRunCheckFailure(t *testing.T) {
	cfg := `rules:
  - pattern: ''
    group: 3
  - pattern: '\.go$'
    group: 12
  - pattern: '[unclosed'
    group: 2
  - pattern: 'x'
    group: 1
    matchField: windowTitle
`
	path := writeTempConfig(t, cfg)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	err := runCheck([]string{"--config", path}, &stdout, &stderr)
	if err == nil {
		t.Fatalf("expected error from runCheck")
	}
	if strings.TrimSpace(stdout.String()) != "" {
		t.Fatalf("expected no stdout, got %q", stdout.String())
	}
	output := stderr.String()
	if !strings.Contains(output, "Configuration has 4 issue(s):") {
		t.Fatalf("expected aggregated error output, got %q", output)
	}
	if !strings.Contains(output, "rule 1: pattern is empty") {
		t.Fatalf("missing empty pattern error: %q", output)
	}
	if !strings.Contains(output, "rule 2: group 12 outside [1,9]") {
		t.Fatalf("missing group range error: %q", output)
	}
	if !strings.Contains(output, "rule 3: invalid pattern") {
		t.Fatalf("missing pattern compile error: %q", output)
	}
	if !strings.Contains(output, `rule 4: unknown matchField "windowTitle"`) {
		t.Fatalf("missing matchField error: %q", output)
	}
}

func TestRunCheckMissingConfigFlag(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	if err := runCheck(nil, &stdout, &stderr); err == nil {
		t.Fatalf("expected error for missing --config")
	}
}
