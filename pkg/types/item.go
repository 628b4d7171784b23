package types

import "time"

// MemoryItem is the single polymorphic node of the persistent graph store.
// Goals and actions form trees rooted at ParentID == "" (a forest); parent
// edges are only ever created by attaching a child to an already-persisted
// parent, so cycles cannot form.
type MemoryItem struct {
	// Core identification fields
	ID        string    `json:"id"`         // Unique identifier
	Type      ItemType  `json:"type"`       // Item type (goal, action, strategy, ...)
	Content   string    `json:"content"`    // Free-text payload; must be non-empty
	CreatedAt time.Time `json:"created_at"` // When the item was created

	// Lifecycle
	Status      ItemStatus `json:"status"`                 // Lifecycle status
	CompletedAt *time.Time `json:"completed_at,omitempty"` // When the item reached completed

	// Ordering and relevance
	Priority int     `json:"priority,omitempty"` // 1 (low) - 5 (high); 0 means unset
	Weight   float64 `json:"weight,omitempty"`   // Relevance score used to rank strategies

	// Hierarchy
	ParentID string `json:"parent_id,omitempty"` // Optional back-reference to another item

	// Failure tracking
	RetryCount int    `json:"retry_count,omitempty"` // Number of retries attempted on this item
	LastError  string `json:"last_error,omitempty"`  // Last error observed while acting on the item

	// Open metadata bag and scheduling
	Metadata map[string]interface{} `json:"metadata,omitempty"` // Arbitrary key-value metadata
	Deadline *time.Time             `json:"deadline,omitempty"` // Optional deadline

	// Optimistic versioning: incremented on every store write. Conditional
	// updates compare against it and reject stale writes.
	Revision int64 `json:"revision"`

	// Claim fields: a loop process atomically claims an action (owner + lease)
	// before acting on it so concurrent processes do not double-execute.
	Owner      string     `json:"owner,omitempty"`
	LeaseUntil *time.Time `json:"lease_until,omitempty"`
}

// IsMalformed reports whether the item violates the non-empty-content
// invariant. Normal writers never produce malformed items; hygiene routines
// use this to detect entries written by broken tooling.
func (m *MemoryItem) IsMalformed() bool {
	return m.Content == ""
}

// ClaimedBy reports whether the item currently holds a live lease for owner.
func (m *MemoryItem) ClaimedBy(owner string, now time.Time) bool {
	return m.Owner == owner && m.LeaseUntil != nil && m.LeaseUntil.After(now)
}

// LeaseExpired reports whether any previous claim on the item has lapsed.
// Unclaimed items count as expired.
func (m *MemoryItem) LeaseExpired(now time.Time) bool {
	return m.LeaseUntil == nil || !m.LeaseUntil.After(now)
}
