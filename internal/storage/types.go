package storage

import (
	"errors"
	"time"

	"github.com/scrypster/volition/pkg/types"
)

var (
	// ErrNotFound indicates that the requested item was not found.
	ErrNotFound = errors.New("item not found")

	// ErrInvalidInput indicates that the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrStaleRevision indicates that a conditional update lost the race:
	// the item was modified by another writer since it was read.
	ErrStaleRevision = errors.New("stale revision")

	// ErrAlreadyClaimed indicates that another process holds a live lease
	// on the item.
	ErrAlreadyClaimed = errors.New("item already claimed")
)

// ListOptions provides filtering and pagination for item queries.
type ListOptions struct {
	// Type filters by item type. Empty means no type filter.
	Type types.ItemType

	// Status filters by lifecycle status. Empty means no status filter.
	Status types.ItemStatus

	// ParentID filters by parent. Use RootOnly to select forest roots instead.
	ParentID string

	// RootOnly restricts results to items with no parent.
	RootOnly bool

	// Limit is the maximum number of items to return (default: 50, max: 500).
	Limit int

	// Offset is the number of items to skip.
	Offset int
}

// Normalize applies defaults and caps to the options.
func (o *ListOptions) Normalize() {
	if o.Limit < 1 {
		o.Limit = 50
	}
	if o.Limit > 500 {
		o.Limit = 500
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
}

// GoalWithChildren is a goal plus the number of direct children attached to
// it. Child counts let the decomposition engine select childless goals
// without a second round-trip per goal. Children is populated only by the
// hierarchy view; list queries leave it nil.
type GoalWithChildren struct {
	Goal       *types.MemoryItem
	Children   []*types.MemoryItem
	ChildCount int
}

// Counters are the aggregate counts embedded into each cycle's situation
// report.
type Counters struct {
	ActiveGoals    int `json:"active_goals"`
	PendingActions int `json:"pending_actions"`
	BlockedItems   int `json:"blocked_items"`
	RecentErrors   int `json:"recent_errors"` // items with a last_error set in the trailing 24h
}

// SimilarItem is an item surfaced by vector similarity, with its cosine
// distance to the query item (smaller is closer).
type SimilarItem struct {
	Item     *types.MemoryItem
	Distance float64
}

// Claim describes an atomic ownership grant over an action.
type Claim struct {
	ItemID     string
	Owner      string
	LeaseUntil time.Time
}
