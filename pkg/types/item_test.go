package types

import (
	"testing"
	"time"
)

// TestEffectivePriority pins the ordering rule: out-of-range priorities order
// as lowest.
func TestEffectivePriority(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, PriorityLow},
		{1, 1},
		{3, 3},
		{5, 5},
		{6, PriorityLow},
		{-1, PriorityLow},
	}
	for _, tt := range tests {
		if got := EffectivePriority(tt.in); got != tt.want {
			t.Errorf("EffectivePriority(%d): expected %d, got %d", tt.in, tt.want, got)
		}
	}
}

// TestClaimedBy covers the lease predicates on MemoryItem.
func TestClaimedBy(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Minute)
	past := now.Add(-time.Minute)

	live := &MemoryItem{Owner: "agent-1", LeaseUntil: &future}
	if !live.ClaimedBy("agent-1", now) {
		t.Error("live lease should count as claimed by its owner")
	}
	if live.ClaimedBy("agent-2", now) {
		t.Error("live lease should not count as claimed by another owner")
	}
	if live.LeaseExpired(now) {
		t.Error("live lease should not be expired")
	}

	lapsed := &MemoryItem{Owner: "agent-1", LeaseUntil: &past}
	if lapsed.ClaimedBy("agent-1", now) {
		t.Error("lapsed lease should not count as claimed")
	}
	if !lapsed.LeaseExpired(now) {
		t.Error("lapsed lease should be expired")
	}

	unclaimed := &MemoryItem{}
	if !unclaimed.LeaseExpired(now) {
		t.Error("unclaimed item should count as expired")
	}
}

// TestIsTerminalStatus verifies completed and archived are the only terminal
// statuses.
func TestIsTerminalStatus(t *testing.T) {
	for _, s := range ValidItemStatuses {
		want := s == StatusCompleted || s == StatusArchived
		if got := IsTerminalStatus(s); got != want {
			t.Errorf("IsTerminalStatus(%s): expected %v, got %v", s, want, got)
		}
	}
}
