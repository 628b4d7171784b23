// Package storage provides the graph-store interfaces for the Volition
// system.
//
// The store holds a single collection of MemoryItem nodes forming a forest
// via parent_id edges. Interfaces are kept small and focused so backends
// (SQLite, Postgres) can be implemented independently and composed.
package storage

import (
	"context"
	"time"

	"github.com/scrypster/volition/pkg/types"
)

// GraphStore is the persistent graph store consumed by every loop process.
//
// The store applies last-write-wins semantics for unconditional writes;
// UpdateIf and ClaimAction provide optimistic versioning and work claiming
// for callers that need to avoid racing a concurrently running process.
// No operation spans more than a single mutation call transactionally,
// except DecomposeGoal which inserts a decomposition's children atomically.
type GraphStore interface {
	// Insert persists a new item. The item's revision is set to 1.
	// Returns ErrInvalidInput for empty content or an invalid type.
	Insert(ctx context.Context, item *types.MemoryItem) error

	// Get retrieves an item by ID. Returns ErrNotFound if missing.
	Get(ctx context.Context, id string) (*types.MemoryItem, error)

	// List retrieves items filtered by type, status and parent.
	List(ctx context.Context, opts ListOptions) ([]*types.MemoryItem, error)

	// Update overwrites an item unconditionally (last-write-wins) and
	// increments its revision. Returns ErrNotFound if missing.
	Update(ctx context.Context, item *types.MemoryItem) error

	// UpdateIf overwrites an item only when its stored revision still equals
	// expectedRevision. Returns ErrStaleRevision when another writer got
	// there first, ErrNotFound if the item is missing.
	UpdateIf(ctx context.Context, item *types.MemoryItem, expectedRevision int64) error

	// Delete removes an item permanently. Returns ErrNotFound if missing.
	Delete(ctx context.Context, id string) error

	// ActiveGoalsWithChildCounts returns active and pending goals together
	// with their direct child counts, ordered by priority descending then age.
	ActiveGoalsWithChildCounts(ctx context.Context) ([]GoalWithChildren, error)

	// PendingActions returns pending actions ordered by priority descending
	// then creation time ascending. Actions without an explicit priority
	// order last.
	PendingActions(ctx context.Context, limit int) ([]*types.MemoryItem, error)

	// ActiveStrategies returns active strategies ordered by weight descending
	// then recency.
	ActiveStrategies(ctx context.Context, limit int) ([]*types.MemoryItem, error)

	// RecentReflections returns the most recent reflections, newest first.
	RecentReflections(ctx context.Context, limit int) ([]*types.MemoryItem, error)

	// GetCounters returns the aggregate counters for situation reports.
	GetCounters(ctx context.Context) (*Counters, error)

	// MarkActionCompleted sets an action to completed and stamps completed_at.
	MarkActionCompleted(ctx context.Context, id string) error

	// MarkActionBlocked sets an action to blocked and records the reason in
	// last_error.
	MarkActionBlocked(ctx context.Context, id string, reason string) error

	// CompleteGoalCascade completes a goal and cascades exactly one level:
	// the goal becomes type completed_goal with status completed, and its
	// direct children are marked completed. Grandchildren are untouched;
	// the shallow cascade is the documented contract.
	CompleteGoalCascade(ctx context.Context, id string) error

	// BlockGoal sets a goal to blocked and records the reason in last_error.
	BlockGoal(ctx context.Context, id string, reason string) error

	// DecomposeGoal atomically inserts a decomposition's children under the
	// given goal: all sub-goals and actions land in one transaction so a
	// concurrent sweep never observes a half-written decomposition.
	DecomposeGoal(ctx context.Context, goalID string, children []*types.MemoryItem) error

	// ClaimAction atomically assigns owner and a lease to a pending action.
	// The claim succeeds only when the action is unclaimed or its previous
	// lease has lapsed; otherwise ErrAlreadyClaimed is returned.
	ClaimAction(ctx context.Context, id, owner string, lease time.Duration) (*Claim, error)

	// ReleaseClaim clears an action's owner and lease if held by owner.
	ReleaseClaim(ctx context.Context, id, owner string) error

	// LogSystemEvent records a system_event item. Best-effort observability;
	// callers typically ignore the error.
	LogSystemEvent(ctx context.Context, content string, metadata map[string]interface{}) error

	// Close releases any resources held by the store.
	Close() error
}

// SimilarityProvider surfaces items close in embedding space. Implemented by
// the Postgres backend via pgvector; the deep-think consolidation pass uses
// it when available to propose cross-links and archival candidates.
type SimilarityProvider interface {
	// StoreEmbedding attaches an embedding vector to an item.
	StoreEmbedding(ctx context.Context, itemID string, embedding []float32) error

	// SimilarItems returns up to limit items nearest to the given item's
	// embedding, excluding the item itself. Items without embeddings are
	// skipped. Returns an empty slice (not an error) when the item has no
	// embedding.
	SimilarItems(ctx context.Context, itemID string, limit int) ([]SimilarItem, error)
}
