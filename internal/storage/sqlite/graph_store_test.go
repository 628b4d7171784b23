package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/scrypster/volition/internal/storage"
	"github.com/scrypster/volition/pkg/types"
)

// newTestStore creates an in-memory store with the full schema applied.
func newTestStore(t *testing.T) *GraphStore {
	t.Helper()
	store, err := NewGraphStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testGoal(id, content string, priority int) *types.MemoryItem {
	return &types.MemoryItem{
		ID:       id,
		Type:     types.TypeGoal,
		Content:  content,
		Status:   types.StatusActive,
		Priority: priority,
	}
}

func testAction(id, content string, priority int) *types.MemoryItem {
	return &types.MemoryItem{
		ID:       id,
		Type:     types.TypeAction,
		Content:  content,
		Status:   types.StatusPending,
		Priority: priority,
	}
}

// TestInsertAndGet_RoundTrip verifies the core fields survive a round trip.
func TestInsertAndGet_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	deadline := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)
	item := &types.MemoryItem{
		ID:       "goal:roundtrip",
		Type:     types.TypeGoal,
		Content:  "Ship the quarterly report",
		Status:   types.StatusActive,
		Priority: 4,
		Weight:   0.25,
		Deadline: &deadline,
		Metadata: map[string]interface{}{"source": "test"},
	}
	if err := store.Insert(ctx, item); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if item.Revision != 1 {
		t.Errorf("expected revision 1 after insert, got %d", item.Revision)
	}

	got, err := store.Get(ctx, "goal:roundtrip")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Content != item.Content || got.Type != types.TypeGoal || got.Priority != 4 {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.Deadline == nil || !got.Deadline.Equal(deadline) {
		t.Errorf("deadline mismatch: %v", got.Deadline)
	}
	if got.Metadata["source"] != "test" {
		t.Errorf("metadata mismatch: %v", got.Metadata)
	}
}

// TestInsert_ValidatesInvariants rejects empty content and unknown types.
func TestInsert_ValidatesInvariants(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	bad := []*types.MemoryItem{
		{ID: "x", Type: types.TypeGoal, Content: ""},
		{ID: "x", Type: "mystery", Content: "something"},
		{ID: "", Type: types.TypeGoal, Content: "something"},
	}
	for _, item := range bad {
		if err := store.Insert(ctx, item); !errors.Is(err, storage.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for %+v, got %v", item, err)
		}
	}
}

// TestGet_NotFound returns the sentinel for missing items.
func TestGet_NotFound(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Get(context.Background(), "nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// TestUpdateIf_RejectsStaleRevision verifies the optimistic-versioning path:
// a writer holding an outdated revision loses, a current one wins.
func TestUpdateIf_RejectsStaleRevision(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	item := testGoal("goal:ver", "Versioned goal content here", 3)
	if err := store.Insert(ctx, item); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// First conditional write at revision 1 succeeds.
	item.Content = "Versioned goal, first edit"
	if err := store.UpdateIf(ctx, item, 1); err != nil {
		t.Fatalf("first UpdateIf: %v", err)
	}
	if item.Revision != 2 {
		t.Errorf("expected revision 2, got %d", item.Revision)
	}

	// A second writer still holding revision 1 must be rejected.
	stale := testGoal("goal:ver", "Stale write attempt", 3)
	if err := store.UpdateIf(ctx, stale, 1); !errors.Is(err, storage.ErrStaleRevision) {
		t.Errorf("expected ErrStaleRevision, got %v", err)
	}

	// The stale write left no trace.
	got, err := store.Get(ctx, "goal:ver")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Content != "Versioned goal, first edit" {
		t.Errorf("stale write leaked: %q", got.Content)
	}

	// Missing items are reported as such, not as races.
	missing := testGoal("goal:absent", "No such item", 1)
	if err := store.UpdateIf(ctx, missing, 1); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// TestClaimAction_SecondClaimerRejected verifies the atomic claim: one owner
// wins, the second gets ErrAlreadyClaimed, and release frees the action.
func TestClaimAction_SecondClaimerRejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Insert(ctx, testAction("action:claim", "Contended action", 3)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	claim, err := store.ClaimAction(ctx, "action:claim", "proc-a", 15*time.Minute)
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if claim.Owner != "proc-a" {
		t.Errorf("unexpected claim owner %q", claim.Owner)
	}

	if _, err := store.ClaimAction(ctx, "action:claim", "proc-b", 15*time.Minute); !errors.Is(err, storage.ErrAlreadyClaimed) {
		t.Errorf("expected ErrAlreadyClaimed, got %v", err)
	}

	// Releasing under the wrong owner is a no-op; the claim holds.
	if err := store.ReleaseClaim(ctx, "action:claim", "proc-b"); err != nil {
		t.Fatalf("foreign release: %v", err)
	}
	if _, err := store.ClaimAction(ctx, "action:claim", "proc-b", 15*time.Minute); !errors.Is(err, storage.ErrAlreadyClaimed) {
		t.Errorf("foreign release should not free the claim, got %v", err)
	}

	// The rightful owner's release frees it.
	if err := store.ReleaseClaim(ctx, "action:claim", "proc-a"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := store.ClaimAction(ctx, "action:claim", "proc-b", 15*time.Minute); err != nil {
		t.Errorf("claim after release: %v", err)
	}

	if _, err := store.ClaimAction(ctx, "action:gone", "proc-a", time.Minute); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing action, got %v", err)
	}
}

// TestCompleteGoalCascade_ShallowOnly verifies the one-level cascade: the
// goal and its direct children complete, grandchildren are untouched.
func TestCompleteGoalCascade_ShallowOnly(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	goal := testGoal("goal:top", "Top level goal content", 3)
	if err := store.Insert(ctx, goal); err != nil {
		t.Fatalf("insert goal: %v", err)
	}
	child := testGoal("goal:mid", "Mid level child goal", 3)
	child.ParentID = "goal:top"
	if err := store.Insert(ctx, child); err != nil {
		t.Fatalf("insert child: %v", err)
	}
	grandchild := testAction("action:leaf", "Leaf action", 2)
	grandchild.ParentID = "goal:mid"
	if err := store.Insert(ctx, grandchild); err != nil {
		t.Fatalf("insert grandchild: %v", err)
	}

	if err := store.CompleteGoalCascade(ctx, "goal:top"); err != nil {
		t.Fatalf("cascade: %v", err)
	}

	top, _ := store.Get(ctx, "goal:top")
	if top.Type != types.TypeCompletedGoal || top.Status != types.StatusCompleted {
		t.Errorf("goal not completed: type=%s status=%s", top.Type, top.Status)
	}
	if top.CompletedAt == nil {
		t.Error("expected completed_at to be stamped")
	}

	mid, _ := store.Get(ctx, "goal:mid")
	if mid.Status != types.StatusCompleted {
		t.Errorf("direct child not completed: %s", mid.Status)
	}

	leaf, _ := store.Get(ctx, "action:leaf")
	if leaf.Status != types.StatusPending {
		t.Errorf("grandchild status must be unchanged, got %s", leaf.Status)
	}

	if err := store.CompleteGoalCascade(ctx, "goal:absent"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// TestPendingActions_PriorityThenAge verifies ordering: priority descending,
// then oldest first within a priority band.
func TestPendingActions_PriorityThenAge(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	items := []*types.MemoryItem{
		{ID: "a:low", Type: types.TypeAction, Content: "Low priority", Status: types.StatusPending, Priority: 1, CreatedAt: base},
		{ID: "a:high-old", Type: types.TypeAction, Content: "High old", Status: types.StatusPending, Priority: 5, CreatedAt: base.Add(time.Minute)},
		{ID: "a:high-new", Type: types.TypeAction, Content: "High new", Status: types.StatusPending, Priority: 5, CreatedAt: base.Add(2 * time.Minute)},
		{ID: "a:done", Type: types.TypeAction, Content: "Already done", Status: types.StatusCompleted, Priority: 5, CreatedAt: base},
	}
	for _, item := range items {
		if err := store.Insert(ctx, item); err != nil {
			t.Fatalf("insert %s: %v", item.ID, err)
		}
	}

	actions, err := store.PendingActions(ctx, 10)
	if err != nil {
		t.Fatalf("pending actions: %v", err)
	}
	if len(actions) != 3 {
		t.Fatalf("expected 3 pending actions, got %d", len(actions))
	}
	wantOrder := []string{"a:high-old", "a:high-new", "a:low"}
	for i, want := range wantOrder {
		if actions[i].ID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, actions[i].ID)
		}
	}
}

// TestActiveGoalsWithChildCounts verifies counts and status filtering.
func TestActiveGoalsWithChildCounts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	parent := testGoal("goal:parent", "Parent goal with children", 4)
	if err := store.Insert(ctx, parent); err != nil {
		t.Fatalf("insert: %v", err)
	}
	childless := testGoal("goal:childless", "Childless goal here", 2)
	if err := store.Insert(ctx, childless); err != nil {
		t.Fatalf("insert: %v", err)
	}
	archived := testGoal("goal:archived", "Archived goal content", 5)
	archived.Status = types.StatusArchived
	if err := store.Insert(ctx, archived); err != nil {
		t.Fatalf("insert: %v", err)
	}

	kid := testAction("action:kid", "Child action", 1)
	kid.ParentID = "goal:parent"
	if err := store.Insert(ctx, kid); err != nil {
		t.Fatalf("insert: %v", err)
	}

	goalList, err := store.ActiveGoalsWithChildCounts(ctx)
	if err != nil {
		t.Fatalf("active goals: %v", err)
	}
	if len(goalList) != 2 {
		t.Fatalf("expected 2 goals (archived excluded), got %d", len(goalList))
	}
	// Priority descending: parent (4) before childless (2).
	if goalList[0].Goal.ID != "goal:parent" || goalList[0].ChildCount != 1 {
		t.Errorf("unexpected first goal: %s count=%d", goalList[0].Goal.ID, goalList[0].ChildCount)
	}
	if goalList[1].Goal.ID != "goal:childless" || goalList[1].ChildCount != 0 {
		t.Errorf("unexpected second goal: %s count=%d", goalList[1].Goal.ID, goalList[1].ChildCount)
	}
}

// TestDecomposeGoal_AtomicChildInsert verifies all-or-nothing child writes.
func TestDecomposeGoal_AtomicChildInsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	goal := testGoal("goal:decomp", "Goal slated for decomposition", 3)
	if err := store.Insert(ctx, goal); err != nil {
		t.Fatalf("insert: %v", err)
	}

	children := []*types.MemoryItem{
		{ID: "goal:sub1", Type: types.TypeGoal, Content: "Sub goal one", Status: types.StatusActive, Priority: 3},
		{ID: "action:step1", Type: types.TypeAction, Content: "Step one", Status: types.StatusPending, Priority: 2},
	}
	if err := store.DecomposeGoal(ctx, "goal:decomp", children); err != nil {
		t.Fatalf("decompose: %v", err)
	}

	kids, err := store.List(ctx, storage.ListOptions{ParentID: "goal:decomp"})
	if err != nil {
		t.Fatalf("list children: %v", err)
	}
	if len(kids) != 2 {
		t.Errorf("expected 2 children, got %d", len(kids))
	}

	// A batch containing an invalid child writes nothing.
	bad := []*types.MemoryItem{
		{ID: "goal:sub2", Type: types.TypeGoal, Content: "Sub goal two", Status: types.StatusActive},
		{ID: "goal:bad", Type: types.TypeGoal, Content: "", Status: types.StatusActive},
	}
	if err := store.DecomposeGoal(ctx, "goal:decomp", bad); !errors.Is(err, storage.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	kids, _ = store.List(ctx, storage.ListOptions{ParentID: "goal:decomp"})
	if len(kids) != 2 {
		t.Errorf("partial decomposition leaked: %d children", len(kids))
	}

	// Decomposing under a missing parent is rejected.
	if err := store.DecomposeGoal(ctx, "goal:absent", children); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// TestGetCounters aggregates the situation-report counts.
func TestGetCounters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Insert(ctx, testGoal("goal:a", "Active goal", 3)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := store.Insert(ctx, testAction("action:a", "Pending action", 2)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	blocked := testAction("action:b", "Blocked action", 2)
	blocked.Status = types.StatusBlocked
	blocked.LastError = "stuck"
	if err := store.Insert(ctx, blocked); err != nil {
		t.Fatalf("insert: %v", err)
	}

	c, err := store.GetCounters(ctx)
	if err != nil {
		t.Fatalf("counters: %v", err)
	}
	if c.ActiveGoals != 1 || c.PendingActions != 1 || c.BlockedItems != 1 {
		t.Errorf("unexpected counters: %+v", c)
	}
	if c.RecentErrors != 1 {
		t.Errorf("expected 1 recent error, got %d", c.RecentErrors)
	}
}

// TestMarkActionCompleted_ClearsClaim verifies completion stamps the time
// and drops any claim.
func TestMarkActionCompleted_ClearsClaim(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Insert(ctx, testAction("action:done", "To be completed", 3)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := store.ClaimAction(ctx, "action:done", "proc-a", time.Minute); err != nil {
		t.Fatalf("claim: %v", err)
	}

	if err := store.MarkActionCompleted(ctx, "action:done"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	got, _ := store.Get(ctx, "action:done")
	if got.Status != types.StatusCompleted || got.CompletedAt == nil {
		t.Errorf("not completed: %+v", got)
	}
	if got.Owner != "" || got.LeaseUntil != nil {
		t.Errorf("claim not cleared: owner=%q", got.Owner)
	}

	if err := store.MarkActionCompleted(ctx, "goal:not-an-action"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// TestLogSystemEvent writes an archived system_event item.
func TestLogSystemEvent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.LogSystemEvent(ctx, "nightly consolidation", map[string]interface{}{"archived": 3}); err != nil {
		t.Fatalf("log event: %v", err)
	}

	events, err := store.List(ctx, storage.ListOptions{Type: types.TypeSystemEvent})
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 1 || events[0].Status != types.StatusArchived {
		t.Errorf("unexpected events: %+v", events)
	}
}
