// Package types defines the core data structures for the Volition autonomous
// operation loop. A single polymorphic node type (MemoryItem) represents
// facts, goals, actions, strategies and reflections in one persistent forest.
package types

// ItemType classifies the purpose of a MemoryItem.
type ItemType string

// Item type constants.
const (
	TypeFact          ItemType = "fact"
	TypeGoal          ItemType = "goal"
	TypeCompletedGoal ItemType = "completed_goal"
	TypePreference    ItemType = "preference"
	TypeReminder      ItemType = "reminder"
	TypeNote          ItemType = "note"
	TypeAction        ItemType = "action"
	TypeStrategy      ItemType = "strategy"
	TypeReflection    ItemType = "reflection"
	TypeSystemEvent   ItemType = "system_event"
)

// ValidItemTypes lists every item type accepted by the graph store.
var ValidItemTypes = []ItemType{
	TypeFact,
	TypeGoal,
	TypeCompletedGoal,
	TypePreference,
	TypeReminder,
	TypeNote,
	TypeAction,
	TypeStrategy,
	TypeReflection,
	TypeSystemEvent,
}

// IsValidItemType checks if the given item type is valid.
func IsValidItemType(t ItemType) bool {
	for _, valid := range ValidItemTypes {
		if valid == t {
			return true
		}
	}
	return false
}

// ItemStatus represents the lifecycle status of a MemoryItem.
type ItemStatus string

// Item status constants. The conventional lifecycle is
// pending/active → blocked ⇄ active/pending → completed → archived.
// Completed and archived are treated as terminal by downstream consumers;
// the store does not enforce a hard state machine.
const (
	StatusActive    ItemStatus = "active"
	StatusPending   ItemStatus = "pending"
	StatusBlocked   ItemStatus = "blocked"
	StatusCompleted ItemStatus = "completed"
	StatusArchived  ItemStatus = "archived"
)

// ValidItemStatuses lists every status accepted by the graph store.
var ValidItemStatuses = []ItemStatus{
	StatusActive,
	StatusPending,
	StatusBlocked,
	StatusCompleted,
	StatusArchived,
}

// IsValidItemStatus checks if the given status is valid.
func IsValidItemStatus(s ItemStatus) bool {
	for _, valid := range ValidItemStatuses {
		if valid == s {
			return true
		}
	}
	return false
}

// IsTerminalStatus reports whether downstream consumers should treat the
// status as final. Hygiene jobs may still delete or resurrect such items.
func IsTerminalStatus(s ItemStatus) bool {
	return s == StatusCompleted || s == StatusArchived
}

// Priority bounds for goals and actions.
const (
	PriorityLow  = 1
	PriorityHigh = 5
)

// IsValidPriority checks that a priority falls in the accepted 1-5 range.
func IsValidPriority(p int) bool {
	return p >= PriorityLow && p <= PriorityHigh
}

// EffectivePriority returns the priority used for ordering. Items without an
// explicit priority (zero value) order as lowest priority.
func EffectivePriority(p int) int {
	if !IsValidPriority(p) {
		return PriorityLow
	}
	return p
}
