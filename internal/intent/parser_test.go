package intent

import (
	"testing"
	"time"
)

func countKind(r ParseResult, kind string) int {
	n := 0
	for _, d := range r.Directives {
		if d.Kind == kind {
			n++
		}
	}
	return n
}

// TestParse_WellFormedTagsRoundTrip verifies extracted directives match the
// well-formed tags in the text, one for one.
func TestParse_WellFormedTagsRoundTrip(t *testing.T) {
	text := `Here is my plan.
[GOAL: Ship the quarterly report | DEADLINE: 2026-09-15]
[GOAL: Tidy the backlog]
Some narration in between.
[ACTION: Draft the outline | PRIORITY: 4]
[ACTION: Book a review slot | PRIORITY: 2]
[STRATEGY: Batch similar work | WEIGHT: 0.8]
[REFLECTION: Mornings are more productive]
[REMEMBER: The review board meets on Tuesdays]`

	r := Parse(text)
	if r.Malformed != 0 {
		t.Errorf("expected no malformed tags, got %d", r.Malformed)
	}
	if got := countKind(r, KindGoal); got != 2 {
		t.Errorf("expected 2 goals, got %d", got)
	}
	if got := countKind(r, KindAction); got != 2 {
		t.Errorf("expected 2 actions, got %d", got)
	}
	if got := countKind(r, KindStrategy); got != 1 {
		t.Errorf("expected 1 strategy, got %d", got)
	}
	if got := countKind(r, KindReflection); got != 1 {
		t.Errorf("expected 1 reflection, got %d", got)
	}
	if got := countKind(r, KindRemember); got != 1 {
		t.Errorf("expected 1 fact, got %d", got)
	}

	for _, d := range r.Directives {
		if d.Kind == KindGoal && d.Deadline != nil {
			want := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)
			if !d.Deadline.Equal(want) {
				t.Errorf("expected deadline %v, got %v", want, d.Deadline)
			}
		}
	}
}

// TestParse_MalformedActionsNeverExtracted verifies actions missing a
// priority, or carrying a non-numeric or out-of-range one, are counted as
// malformed and never yield a directive.
func TestParse_MalformedActionsNeverExtracted(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"missing priority", "[ACTION: Do the thing]"},
		{"non-numeric priority", "[ACTION: Do the thing | PRIORITY: high]"},
		{"out-of-range priority", "[ACTION: Do the thing | PRIORITY: 9]"},
		{"zero priority", "[ACTION: Do the thing | PRIORITY: 0]"},
	}

	for _, tt := range tests {
		r := Parse(tt.text)
		if got := countKind(r, KindAction); got != 0 {
			t.Errorf("%s: expected no actions, got %d", tt.name, got)
		}
		if r.Malformed != 1 {
			t.Errorf("%s: expected 1 malformed, got %d", tt.name, r.Malformed)
		}
	}
}

// TestParse_OrderIndependent verifies the same tags in a different order
// produce the same directive set.
func TestParse_OrderIndependent(t *testing.T) {
	a := Parse("[ACTION: First | PRIORITY: 1]\n[GOAL: Second]")
	b := Parse("[GOAL: Second]\n[ACTION: First | PRIORITY: 1]")

	if len(a.Directives) != len(b.Directives) {
		t.Fatalf("directive counts differ: %d vs %d", len(a.Directives), len(b.Directives))
	}
	if countKind(a, KindGoal) != countKind(b, KindGoal) ||
		countKind(a, KindAction) != countKind(b, KindAction) {
		t.Error("directive kinds differ between orderings")
	}
}

// TestParse_TagsAnywhereAreExtracted documents the accepted ambiguity: a
// tag inside quoted prose is still extracted.
func TestParse_TagsAnywhereAreExtracted(t *testing.T) {
	text := `For example you could write "[GOAL: an example goal]" in a response.`
	r := Parse(text)
	if got := countKind(r, KindGoal); got != 1 {
		t.Errorf("expected quoted tag to be extracted, got %d goals", got)
	}
}

// TestParse_BlockedAndDone covers the lifecycle directives.
func TestParse_BlockedAndDone(t *testing.T) {
	r := Parse("[DONE: draft outline]\n[BLOCKED: book slot | REASON: waiting on calendar access]")

	if got := countKind(r, KindDone); got != 1 {
		t.Fatalf("expected 1 done, got %d", got)
	}
	if got := countKind(r, KindBlocked); got != 1 {
		t.Fatalf("expected 1 blocked, got %d", got)
	}
	for _, d := range r.Directives {
		if d.Kind == KindBlocked && d.Reason != "waiting on calendar access" {
			t.Errorf("unexpected blocked reason %q", d.Reason)
		}
	}
}

// TestParse_UnparseableDeadlineDropsDeadlineOnly keeps the goal when the
// deadline text is not a date.
func TestParse_UnparseableDeadlineDropsDeadlineOnly(t *testing.T) {
	r := Parse("[GOAL: Ship it | DEADLINE: whenever]")
	if got := countKind(r, KindGoal); got != 1 {
		t.Fatalf("expected 1 goal, got %d", got)
	}
	if r.Directives[0].Deadline != nil {
		t.Error("unparseable deadline should be dropped")
	}
}

// TestParse_InvalidStrategyWeight rejects weights outside [0,1].
func TestParse_InvalidStrategyWeight(t *testing.T) {
	r := Parse("[STRATEGY: Over-weighted | WEIGHT: 1.5]")
	if got := countKind(r, KindStrategy); got != 0 {
		t.Errorf("expected no strategies, got %d", got)
	}
	if r.Malformed != 1 {
		t.Errorf("expected 1 malformed, got %d", r.Malformed)
	}

	// Missing weight defaults to 0.5.
	r = Parse("[STRATEGY: Sensible default]")
	if len(r.Directives) != 1 || r.Directives[0].Weight != 0.5 {
		t.Errorf("expected default weight 0.5, got %+v", r.Directives)
	}
}
