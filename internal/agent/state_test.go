package agent

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/scrypster/volition/pkg/types"
)

// TestRunState_RoundTrip verifies save/load preserves the full state,
// including the bounded logs.
func TestRunState_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "agent.json")

	state := &types.AgentRunState{
		LastRun:    time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
		RunCount:   42,
		IdleCycles: 3,
	}
	state.RecordError(state.LastRun, "reasoning call failed")
	state.RecordInsight(state.LastRun, "strategic_planning", "focus the week on shipping")

	if err := SaveRunState(path, state); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := LoadRunState(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.RunCount != 42 || loaded.IdleCycles != 3 {
		t.Errorf("counters lost in round trip: %+v", loaded)
	}
	if !loaded.LastRun.Equal(state.LastRun) {
		t.Errorf("expected last run %v, got %v", state.LastRun, loaded.LastRun)
	}
	if len(loaded.Errors) != 1 || loaded.Errors[0].Message != "reasoning call failed" {
		t.Errorf("error log lost: %+v", loaded.Errors)
	}
	if len(loaded.Insights) != 1 || loaded.Insights[0].Pass != "strategic_planning" {
		t.Errorf("insight log lost: %+v", loaded.Insights)
	}
}

// TestLoadRunState_MissingFileIsFreshState verifies the first-run path.
func TestLoadRunState_MissingFileIsFreshState(t *testing.T) {
	state, err := LoadRunState(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if state.RunCount != 0 || !state.LastRun.IsZero() {
		t.Errorf("expected zero state, got %+v", state)
	}
}

// TestLoadRunState_CorruptFileErrors verifies a torn or corrupt state file
// surfaces as an error instead of silently resetting the agent.
func TestLoadRunState_CorruptFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadRunState(path); err == nil {
		t.Error("expected parse error for corrupt state file")
	}
}

// TestSaveRunState_LeavesNoTempFiles verifies the atomic write cleans up
// after itself.
func TestSaveRunState_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.json")

	for i := 0; i < 3; i++ {
		if err := SaveRunState(path, &types.AgentRunState{RunCount: i}); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "agent.json" {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("expected only agent.json, got %v", names)
	}
}

// TestUrgentExcerpt covers keyword matching and the payload bound.
func TestUrgentExcerpt(t *testing.T) {
	if got := urgentExcerpt("all calm, nothing to report"); got != "" {
		t.Errorf("calm text should yield no excerpt, got %q", got)
	}
	if got := urgentExcerpt("URGENT: disk almost full"); got == "" {
		t.Error("urgency keyword should yield an excerpt regardless of case")
	}

	long := "critical: " + strings.Repeat("x", 2*maxUrgencyChars)
	if got := urgentExcerpt(long); len([]rune(got)) != maxUrgencyChars {
		t.Errorf("expected excerpt bounded to %d chars, got %d", maxUrgencyChars, len([]rune(got)))
	}

	// Truncation counts characters, not bytes, and never splits a rune.
	wide := "critical: " + strings.Repeat("日", 2*maxUrgencyChars)
	got := urgentExcerpt(wide)
	if !utf8.ValidString(got) {
		t.Error("excerpt split a multi-byte character")
	}
	if n := len([]rune(got)); n != maxUrgencyChars {
		t.Errorf("expected %d characters, got %d", maxUrgencyChars, n)
	}
}

// stubGenerator scripts per-prompt responses for sub-agent tests.
type stubGenerator struct {
	respond func(prompt string) (string, error)
}

func (g *stubGenerator) Complete(_ context.Context, prompt string) (string, error) {
	return g.respond(prompt)
}

// TestDispatchRoles_AllRolesSeeTruncatedContext verifies every role is
// invoked with its own instructions plus the shared excerpt.
func TestDispatchRoles_AllRolesSeeTruncatedContext(t *testing.T) {
	contextText := strings.Repeat("situation ", 100)
	gen := &stubGenerator{respond: func(prompt string) (string, error) {
		if !strings.HasSuffix(prompt, contextText[:200]) {
			t.Error("prompt should end with the truncated context excerpt")
		}
		if strings.Contains(prompt, contextText[:201]) {
			t.Error("context excerpt exceeds the 200-char budget")
		}
		return "ok", nil
	}}

	results := DispatchRoles(context.Background(), gen, contextText, 200)
	if len(results) != len(AllRoles) {
		t.Fatalf("expected %d role results, got %d", len(AllRoles), len(results))
	}
	for _, role := range AllRoles {
		r, ok := results[role]
		if !ok {
			t.Errorf("missing result for role %s", role)
			continue
		}
		if r.Err != nil || r.Response != "ok" {
			t.Errorf("role %s: unexpected result %+v", role, r)
		}
	}
}

// TestMergeRoleReports_OmitsFailures verifies the merged report contains
// only successful roles, in fixed order.
func TestMergeRoleReports_OmitsFailures(t *testing.T) {
	gen := &stubGenerator{respond: func(prompt string) (string, error) {
		if strings.Contains(prompt, "audit specialist") {
			return "", context.DeadlineExceeded
		}
		if strings.Contains(prompt, "research specialist") {
			return "open questions found", nil
		}
		return "did work", nil
	}}

	results := DispatchRoles(context.Background(), gen, "situation", 0)
	report := MergeRoleReports(results)

	if !strings.Contains(report, "## research\nopen questions found") {
		t.Errorf("research section missing from report:\n%s", report)
	}
	if strings.Contains(report, "## audit") {
		t.Errorf("failed role should be omitted from report:\n%s", report)
	}
	if idx := strings.Index(report, "## research"); idx != 0 {
		t.Errorf("research should lead the report, found at %d", idx)
	}
}
