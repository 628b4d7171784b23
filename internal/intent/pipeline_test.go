package intent_test

import (
	"context"
	"testing"

	"github.com/scrypster/volition/internal/intent"
	"github.com/scrypster/volition/internal/storage"
	"github.com/scrypster/volition/internal/storage/sqlite"
	"github.com/scrypster/volition/pkg/types"
)

func newTestStore(t *testing.T) *sqlite.GraphStore {
	t.Helper()
	store, err := sqlite.NewGraphStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// TestApply_CreatesItems verifies each directive kind lands as the right
// item type.
func TestApply_CreatesItems(t *testing.T) {
	store := newTestStore(t)
	p := intent.NewPipeline(store)
	ctx := context.Background()

	text := `[GOAL: Build the reporting pipeline]
[ACTION: Sketch the schema | PRIORITY: 3]
[STRATEGY: Prefer small steps | WEIGHT: 0.6]
[REMEMBER: Reports are due monthly]`

	result := p.Apply(ctx, text, "")
	if result.GoalsCreated != 1 || result.ActionsCreated != 1 ||
		result.StrategiesCreated != 1 || result.FactsSaved != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.WriteFailures != 0 || result.Malformed != 0 {
		t.Fatalf("unexpected failures: %+v", result)
	}

	goalList, err := store.List(ctx, storage.ListOptions{Type: types.TypeGoal})
	if err != nil {
		t.Fatalf("list goals: %v", err)
	}
	if len(goalList) != 1 || goalList[0].Status != types.StatusActive {
		t.Errorf("unexpected goals: %+v", goalList)
	}

	actions, err := store.PendingActions(ctx, 10)
	if err != nil {
		t.Fatalf("pending actions: %v", err)
	}
	if len(actions) != 1 || actions[0].Priority != 3 {
		t.Errorf("unexpected actions: %+v", actions)
	}
}

// TestApply_Idempotent verifies re-applying the same response text does not
// duplicate already-committed items.
func TestApply_Idempotent(t *testing.T) {
	store := newTestStore(t)
	p := intent.NewPipeline(store)
	ctx := context.Background()

	text := "[GOAL: Build the reporting pipeline]\n[ACTION: Sketch the schema | PRIORITY: 3]"

	first := p.Apply(ctx, text, "")
	if first.GoalsCreated != 1 || first.ActionsCreated != 1 {
		t.Fatalf("first apply: %+v", first)
	}

	second := p.Apply(ctx, text, "")
	if second.GoalsCreated != 0 || second.ActionsCreated != 0 {
		t.Errorf("second apply created items: %+v", second)
	}
	if second.Duplicates != 2 {
		t.Errorf("expected 2 duplicates on second apply, got %d", second.Duplicates)
	}

	goalList, err := store.List(ctx, storage.ListOptions{Type: types.TypeGoal})
	if err != nil {
		t.Fatalf("list goals: %v", err)
	}
	if len(goalList) != 1 {
		t.Errorf("expected 1 goal after re-apply, got %d", len(goalList))
	}
}

// TestApply_DoneMarksMatchingAction verifies [DONE: …] completes the first
// pending action matching by substring, case-insensitively.
func TestApply_DoneMarksMatchingAction(t *testing.T) {
	store := newTestStore(t)
	p := intent.NewPipeline(store)
	ctx := context.Background()

	p.Apply(ctx, "[ACTION: Sketch the schema | PRIORITY: 3]", "")

	result := p.Apply(ctx, "[DONE: sketch the SCHEMA]", "")
	if result.ActionsCompleted != 1 {
		t.Fatalf("expected 1 completed action, got %+v", result)
	}

	pending, err := store.PendingActions(ctx, 10)
	if err != nil {
		t.Fatalf("pending actions: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("expected no pending actions, got %d", len(pending))
	}
}

// TestApply_BlockedRecordsReason verifies [BLOCKED: …] moves the action to
// blocked with the reason in last_error.
func TestApply_BlockedRecordsReason(t *testing.T) {
	store := newTestStore(t)
	p := intent.NewPipeline(store)
	ctx := context.Background()

	p.Apply(ctx, "[ACTION: Call the vendor | PRIORITY: 2]", "")
	result := p.Apply(ctx, "[BLOCKED: call the vendor | REASON: no contact details]", "")
	if result.ActionsBlocked != 1 {
		t.Fatalf("expected 1 blocked action, got %+v", result)
	}

	blocked, err := store.List(ctx, storage.ListOptions{Type: types.TypeAction, Status: types.StatusBlocked})
	if err != nil {
		t.Fatalf("list blocked: %v", err)
	}
	if len(blocked) != 1 || blocked[0].LastError != "no contact details" {
		t.Errorf("unexpected blocked items: %+v", blocked)
	}
}

// TestApply_UnmatchedDoneIsWriteFailure verifies a DONE with no matching
// pending action is counted as a failure but does not abort siblings.
func TestApply_UnmatchedDoneIsWriteFailure(t *testing.T) {
	store := newTestStore(t)
	p := intent.NewPipeline(store)
	ctx := context.Background()

	result := p.Apply(ctx, "[DONE: nothing like this]\n[GOAL: Still created]", "")
	if result.WriteFailures != 1 {
		t.Errorf("expected 1 write failure, got %+v", result)
	}
	if result.GoalsCreated != 1 {
		t.Errorf("sibling directive should still apply, got %+v", result)
	}
}
