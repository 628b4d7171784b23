// Package goals implements the goal/action graph engine: it decides which
// goals are worth breaking down, asks the reasoning service to decompose
// them, and manages goal lifecycle transitions on the graph store.
package goals

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/scrypster/volition/internal/intent"
	"github.com/scrypster/volition/internal/llm"
	"github.com/scrypster/volition/internal/storage"
	"github.com/scrypster/volition/pkg/types"
)

// complexityLexicon marks goals that describe multi-step work. A childless
// goal qualifies for decomposition only when its content mentions one of
// these verbs.
var complexityLexicon = []string{
	"build", "create", "develop", "implement", "design", "set up",
	"configure", "integrate", "migrate", "refactor", "launch", "deploy",
	"automate", "optimize", "establish",
}

// minDecomposableWords is the floor below which a goal is considered simple
// enough to act on directly.
const minDecomposableWords = 5

const (
	hierarchyCacheSize = 128
	hierarchyCacheTTL  = 30 * time.Second
)

// Engine coordinates decomposition and lifecycle operations on the goal
// forest.
type Engine struct {
	store storage.GraphStore
	gen   llm.TextGenerator
	retry llm.RetryConfig

	// hierarchy holds recently built single-level goal views. Entries expire
	// quickly so completed children do not linger in reports.
	hierarchy *expirable.LRU[string, *storage.GoalWithChildren]
}

// NewEngine creates an engine over the given store and text generator.
func NewEngine(store storage.GraphStore, gen llm.TextGenerator, retry llm.RetryConfig) *Engine {
	return &Engine{
		store:     store,
		gen:       gen,
		retry:     retry,
		hierarchy: expirable.NewLRU[string, *storage.GoalWithChildren](hierarchyCacheSize, nil, hierarchyCacheTTL),
	}
}

// IsDecomposable reports whether a goal's content is complex enough to be
// worth breaking down: at least minDecomposableWords words and a complexity
// verb. Matching is case-insensitive substring matching, which accepts the
// occasional false positive ("rebuild" matches "build").
func IsDecomposable(content string) bool {
	if len(strings.Fields(content)) < minDecomposableWords {
		return false
	}
	lower := strings.ToLower(content)
	for _, verb := range complexityLexicon {
		if strings.Contains(lower, verb) {
			return true
		}
	}
	return false
}

// FindDecomposableGoals returns active goals that have no children and whose
// content passes IsDecomposable.
func (e *Engine) FindDecomposableGoals(ctx context.Context) ([]*types.MemoryItem, error) {
	withCounts, err := e.store.ActiveGoalsWithChildCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active goals: %w", err)
	}

	var out []*types.MemoryItem
	for _, g := range withCounts {
		if g.ChildCount > 0 {
			continue
		}
		if !IsDecomposable(g.Goal.Content) {
			continue
		}
		out = append(out, g.Goal)
	}
	return out, nil
}

// DecomposeGoal asks the reasoning service to break the goal into sub-goals
// and actions, then inserts the resulting children in one transaction.
//
// Sub-goals inherit the parent's priority when the response does not carry
// one; actions attach directly to the original goal rather than to the
// sub-goal they appeared under. A failed reasoning call writes nothing.
// Children that fail validation are skipped and logged; the remaining valid
// children are still inserted.
func (e *Engine) DecomposeGoal(ctx context.Context, goal *types.MemoryItem) (int, error) {
	if goal == nil || goal.Type != types.TypeGoal {
		return 0, fmt.Errorf("%w: decomposition requires a goal", storage.ErrInvalidInput)
	}

	prompt := buildDecompositionPrompt(goal)
	result := llm.CallWithRetry(ctx, e.gen, prompt, e.retry)
	if result.Err != nil {
		return 0, fmt.Errorf("decompose %q: %w", goal.ID, result.Err)
	}

	parsed := intent.Parse(result.Response)
	if parsed.Malformed > 0 {
		log.Printf("[goals] decomposition of %s produced %d malformed tags", goal.ID, parsed.Malformed)
	}

	var children []*types.MemoryItem
	for _, d := range parsed.Directives {
		switch d.Kind {
		case intent.KindGoal:
			children = append(children, &types.MemoryItem{
				ID:       "goal:" + uuid.NewString(),
				Type:     types.TypeGoal,
				Content:  d.Content,
				Status:   types.StatusActive,
				Priority: goal.Priority,
				ParentID: goal.ID,
				Deadline: d.Deadline,
			})
		case intent.KindAction:
			children = append(children, &types.MemoryItem{
				ID:       "action:" + uuid.NewString(),
				Type:     types.TypeAction,
				Content:  d.Content,
				Status:   types.StatusPending,
				Priority: d.Priority,
				ParentID: goal.ID,
			})
		default:
			// Decomposition prompts only ask for goals and actions; anything
			// else in the response is ignored here.
		}
	}

	if len(children) == 0 {
		log.Printf("[goals] decomposition of %s yielded no children", goal.ID)
		return 0, nil
	}

	valid := children[:0]
	for _, c := range children {
		if c.IsMalformed() {
			log.Printf("[goals] skipping malformed child of %s", goal.ID)
			continue
		}
		valid = append(valid, c)
	}

	if err := e.store.DecomposeGoal(ctx, goal.ID, valid); err != nil {
		return 0, fmt.Errorf("insert decomposition of %q: %w", goal.ID, err)
	}

	e.hierarchy.Remove(goal.ID)
	e.logEvent(ctx, fmt.Sprintf("decomposed goal %s into %d children", goal.ID, len(valid)),
		map[string]interface{}{"goal_id": goal.ID, "children": len(valid), "attempts": result.Attempts})
	return len(valid), nil
}

// CompleteGoal completes a goal with the one-level cascade: the goal becomes
// a completed_goal and its direct children are marked completed. Deeper
// descendants are left untouched; that shallow cascade is the contract.
func (e *Engine) CompleteGoal(ctx context.Context, id string) error {
	if err := e.store.CompleteGoalCascade(ctx, id); err != nil {
		return err
	}
	e.hierarchy.Remove(id)
	return nil
}

// BlockGoal marks a goal blocked with the given reason.
func (e *Engine) BlockGoal(ctx context.Context, id, reason string) error {
	if err := e.store.BlockGoal(ctx, id, reason); err != nil {
		return err
	}
	e.hierarchy.Remove(id)
	return nil
}

// GetGoalHierarchy returns a goal with its direct children ordered by
// priority descending. Views are cached briefly; mutations through this
// engine invalidate the affected entry.
func (e *Engine) GetGoalHierarchy(ctx context.Context, id string) (*storage.GoalWithChildren, error) {
	if cached, ok := e.hierarchy.Get(id); ok {
		return cached, nil
	}

	goal, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if goal.Type != types.TypeGoal && goal.Type != types.TypeCompletedGoal {
		return nil, fmt.Errorf("%w: %q is not a goal", storage.ErrInvalidInput, id)
	}

	children, err := e.store.List(ctx, storage.ListOptions{ParentID: id, Limit: 500})
	if err != nil {
		return nil, fmt.Errorf("list children of %q: %w", id, err)
	}
	sortChildrenByPriority(children)

	view := &storage.GoalWithChildren{
		Goal:       goal,
		Children:   children,
		ChildCount: len(children),
	}
	e.hierarchy.Add(id, view)
	return view, nil
}

func (e *Engine) logEvent(ctx context.Context, content string, metadata map[string]interface{}) {
	if err := e.store.LogSystemEvent(ctx, content, metadata); err != nil {
		log.Printf("[goals] log system event: %v", err)
	}
}

// sortChildrenByPriority orders by effective priority descending, then
// creation time ascending. Stable insertion sort; child lists are small.
func sortChildrenByPriority(items []*types.MemoryItem) {
	for i := 1; i < len(items); i++ {
		for j := i; j > 0; j-- {
			a, b := items[j-1], items[j]
			pa, pb := types.EffectivePriority(a.Priority), types.EffectivePriority(b.Priority)
			if pa > pb || (pa == pb && !a.CreatedAt.After(b.CreatedAt)) {
				break
			}
			items[j-1], items[j] = b, a
		}
	}
}

func buildDecompositionPrompt(goal *types.MemoryItem) string {
	var b strings.Builder
	b.WriteString("Break down the following goal into 2-5 concrete sub-goals, ")
	b.WriteString("each with 1-3 immediately actionable steps.\n\n")
	fmt.Fprintf(&b, "Goal: %s\n", goal.Content)
	if goal.Deadline != nil {
		fmt.Fprintf(&b, "Deadline: %s\n", goal.Deadline.Format("2006-01-02"))
	}
	b.WriteString("\nRespond only with directive tags, one per line:\n")
	b.WriteString("[GOAL: <sub-goal text>]\n")
	b.WriteString("[ACTION: <step text> | PRIORITY: <1-5>]\n")
	b.WriteString("List each sub-goal followed by its actions. Text outside tags is ignored.")
	return b.String()
}
