package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/scrypster/volition/internal/intent"
	"github.com/scrypster/volition/internal/storage"
	"github.com/scrypster/volition/pkg/types"
)

// cycleContext is one cycle's joined view of the graph store, assembled from
// concurrent fetches before prompt construction.
type cycleContext struct {
	Goals       []storage.GoalWithChildren
	Actions     []*types.MemoryItem
	Strategies  []*types.MemoryItem
	Reflections []*types.MemoryItem
	Counters    *storage.Counters
}

// Idle reports whether the cycle saw no goals and no actions.
func (c *cycleContext) Idle() bool {
	return len(c.Goals) == 0 && len(c.Actions) == 0
}

// buildSituationReport renders the single natural-language prompt for the
// cycle: counters, goals, actions, strategies, reflections, and the tag
// legend the reasoning service is instructed to use.
func buildSituationReport(cc *cycleContext, state *types.AgentRunState, now time.Time) string {
	var b strings.Builder

	b.WriteString("You are the autonomous operation loop of a personal agent. ")
	b.WriteString("Review the current situation and decide what to do next.\n\n")

	fmt.Fprintf(&b, "Time: %s | Cycle #%d | Idle cycles: %d\n\n",
		now.Format("2006-01-02 15:04"), state.RunCount+1, state.IdleCycles)

	if cc.Counters != nil {
		fmt.Fprintf(&b, "Overview: %d active goals, %d pending actions, %d blocked items, %d recent errors.\n\n",
			cc.Counters.ActiveGoals, cc.Counters.PendingActions,
			cc.Counters.BlockedItems, cc.Counters.RecentErrors)
	}

	if len(cc.Goals) == 0 {
		b.WriteString("Goals: none.\n")
	} else {
		b.WriteString("Goals:\n")
		for _, g := range cc.Goals {
			fmt.Fprintf(&b, "- [p%d] %s (%d children", types.EffectivePriority(g.Goal.Priority), g.Goal.Content, g.ChildCount)
			if g.Goal.Deadline != nil {
				fmt.Fprintf(&b, ", deadline %s", g.Goal.Deadline.Format("2006-01-02"))
			}
			b.WriteString(")\n")
		}
	}

	if len(cc.Actions) == 0 {
		b.WriteString("\nPending actions: none.\n")
	} else {
		b.WriteString("\nPending actions:\n")
		for _, a := range cc.Actions {
			fmt.Fprintf(&b, "- [p%d] %s", types.EffectivePriority(a.Priority), a.Content)
			if a.LastError != "" {
				fmt.Fprintf(&b, " (last error: %s)", a.LastError)
			}
			b.WriteString("\n")
		}
	}

	if len(cc.Strategies) > 0 {
		b.WriteString("\nActive strategies:\n")
		for _, s := range cc.Strategies {
			fmt.Fprintf(&b, "- [w%.2f] %s\n", s.Weight, s.Content)
		}
	}

	if len(cc.Reflections) > 0 {
		b.WriteString("\nRecent reflections:\n")
		for _, r := range cc.Reflections {
			fmt.Fprintf(&b, "- %s\n", r.Content)
		}
	}

	b.WriteString("\n")
	b.WriteString(intent.TagLegend)
	return b.String()
}

// urgencyKeywords trigger a best-effort notification when they appear in a
// cycle's response.
var urgencyKeywords = []string{"urgent", "critical", "error", "blocked"}

// maxUrgencyChars bounds the notification payload, counted in runes so
// truncation never splits a multi-byte character.
const maxUrgencyChars = 500

// urgentExcerpt returns the first maxUrgencyChars characters of text when it
// contains an urgency keyword, and "" otherwise. Matching is
// case-insensitive.
func urgentExcerpt(text string) string {
	lower := strings.ToLower(text)
	for _, kw := range urgencyKeywords {
		if strings.Contains(lower, kw) {
			if runes := []rune(text); len(runes) > maxUrgencyChars {
				return string(runes[:maxUrgencyChars])
			}
			return text
		}
	}
	return ""
}
