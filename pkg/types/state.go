package types

import "time"

// Bounded log sizes for AgentRunState.
const (
	// MaxErrorLog is the number of trailing cycle errors kept for observability.
	MaxErrorLog = 10

	// MaxInsightLog is the number of trailing deep-think insights kept.
	MaxInsightLog = 20
)

// AgentRunState is the per-process local bookkeeping for a loop process.
// It is created on first run, persisted after every cycle, and never shared
// across processes.
type AgentRunState struct {
	LastRun         time.Time `json:"last_run"`
	RunCount        int       `json:"run_count"`
	IdleCycles      int       `json:"idle_cycles"` // consecutive cycles with no goals and no actions
	LastGoalCount   int       `json:"last_goal_count"`
	LastActionCount int       `json:"last_action_count"`

	// Errors is a rolling log of the last MaxErrorLog cycle errors.
	Errors []RunError `json:"errors,omitempty"`

	// Insights is a rolling log of the last MaxInsightLog deep-think insights.
	Insights []Insight `json:"insights,omitempty"`
}

// RunError is a single entry in the bounded error log.
type RunError struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// Insight is a single entry in the bounded insight log, extracted from a
// deep-think pass purely for observability.
type Insight struct {
	Time time.Time `json:"time"`
	Pass string    `json:"pass"`
	Text string    `json:"text"`
}

// RecordError appends an error to the bounded log, dropping the oldest entry
// once MaxErrorLog is exceeded.
func (s *AgentRunState) RecordError(t time.Time, msg string) {
	s.Errors = append(s.Errors, RunError{Time: t, Message: msg})
	if len(s.Errors) > MaxErrorLog {
		s.Errors = s.Errors[len(s.Errors)-MaxErrorLog:]
	}
}

// RecordInsight appends an insight to the bounded log, dropping the oldest
// entry once MaxInsightLog is exceeded.
func (s *AgentRunState) RecordInsight(t time.Time, pass, text string) {
	s.Insights = append(s.Insights, Insight{Time: t, Pass: pass, Text: text})
	if len(s.Insights) > MaxInsightLog {
		s.Insights = s.Insights[len(s.Insights)-MaxInsightLog:]
	}
}

// MarkCycle updates idle bookkeeping after a cycle's context fetch. A cycle
// is idle when it saw no goals and no actions; idle cycles increment the
// counter, any activity resets it. This is bookkeeping only and does not
// currently alter scheduling.
func (s *AgentRunState) MarkCycle(now time.Time, goalCount, actionCount int) {
	if goalCount == 0 && actionCount == 0 {
		s.IdleCycles++
	} else {
		s.IdleCycles = 0
	}
	s.LastGoalCount = goalCount
	s.LastActionCount = actionCount
	s.LastRun = now
	s.RunCount++
}
