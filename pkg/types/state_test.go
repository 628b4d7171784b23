package types

import (
	"fmt"
	"testing"
	"time"
)

// TestMarkCycle_IdleTracking verifies idle cycles accumulate while the graph
// is empty and reset on any activity.
func TestMarkCycle_IdleTracking(t *testing.T) {
	var s AgentRunState
	now := time.Now()

	s.MarkCycle(now, 0, 0)
	s.MarkCycle(now, 0, 0)
	if s.IdleCycles != 2 {
		t.Errorf("expected 2 idle cycles, got %d", s.IdleCycles)
	}
	if s.RunCount != 2 {
		t.Errorf("expected run count 2, got %d", s.RunCount)
	}

	s.MarkCycle(now, 1, 3)
	if s.IdleCycles != 0 {
		t.Errorf("activity should reset idle cycles, got %d", s.IdleCycles)
	}
	if s.LastGoalCount != 1 || s.LastActionCount != 3 {
		t.Errorf("expected counts 1/3, got %d/%d", s.LastGoalCount, s.LastActionCount)
	}
	if !s.LastRun.Equal(now) {
		t.Errorf("expected last run %v, got %v", now, s.LastRun)
	}
}

// TestRecordError_BoundedLog verifies the error log keeps only the trailing
// MaxErrorLog entries.
func TestRecordError_BoundedLog(t *testing.T) {
	var s AgentRunState
	now := time.Now()

	for i := 0; i < MaxErrorLog+5; i++ {
		s.RecordError(now, fmt.Sprintf("error %d", i))
	}

	if len(s.Errors) != MaxErrorLog {
		t.Fatalf("expected %d errors kept, got %d", MaxErrorLog, len(s.Errors))
	}
	if s.Errors[0].Message != "error 5" {
		t.Errorf("expected oldest kept entry to be error 5, got %q", s.Errors[0].Message)
	}
	if s.Errors[len(s.Errors)-1].Message != fmt.Sprintf("error %d", MaxErrorLog+4) {
		t.Errorf("unexpected newest entry %q", s.Errors[len(s.Errors)-1].Message)
	}
}

// TestRecordInsight_BoundedLog verifies the insight log keeps only the
// trailing MaxInsightLog entries.
func TestRecordInsight_BoundedLog(t *testing.T) {
	var s AgentRunState
	now := time.Now()

	for i := 0; i < MaxInsightLog+3; i++ {
		s.RecordInsight(now, "strategic_planning", fmt.Sprintf("insight %d", i))
	}

	if len(s.Insights) != MaxInsightLog {
		t.Fatalf("expected %d insights kept, got %d", MaxInsightLog, len(s.Insights))
	}
	if s.Insights[0].Text != "insight 3" {
		t.Errorf("expected oldest kept entry to be insight 3, got %q", s.Insights[0].Text)
	}
}
