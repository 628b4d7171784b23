package intent

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/scrypster/volition/internal/storage"
	"github.com/scrypster/volition/pkg/types"
)

// Pipeline applies parsed directives to the graph store. Creation directives
// are deduplicated against existing items by (type, content, parent), so
// re-applying the same response is idempotent. Per-directive write failures
// are logged and counted but never abort the rest of the batch.
type Pipeline struct {
	store storage.GraphStore
}

// NewPipeline creates a pipeline over the given store.
func NewPipeline(store storage.GraphStore) *Pipeline {
	return &Pipeline{store: store}
}

// ApplyResult summarizes one pipeline run for logging and the run state.
type ApplyResult struct {
	GoalsCreated      int
	ActionsCreated    int
	StrategiesCreated int
	ReflectionsSaved  int
	FactsSaved        int
	ActionsCompleted  int
	ActionsBlocked    int
	Duplicates        int
	Malformed         int
	WriteFailures     int
}

// Mutations reports how many graph changes the run produced.
func (r ApplyResult) Mutations() int {
	return r.GoalsCreated + r.ActionsCreated + r.StrategiesCreated +
		r.ReflectionsSaved + r.FactsSaved + r.ActionsCompleted + r.ActionsBlocked
}

// Apply parses text and commits every valid directive under parentID (empty
// for forest roots). Directives are applied in parse order.
func (p *Pipeline) Apply(ctx context.Context, text, parentID string) ApplyResult {
	parsed := Parse(text)
	result := ApplyResult{Malformed: parsed.Malformed}

	for _, d := range parsed.Directives {
		if err := p.applyOne(ctx, d, parentID, &result); err != nil {
			result.WriteFailures++
			log.Printf("[intent] directive %s failed: %v", d.Kind, err)
		}
	}

	return result
}

func (p *Pipeline) applyOne(ctx context.Context, d Directive, parentID string, result *ApplyResult) error {
	switch d.Kind {
	case KindGoal:
		item := &types.MemoryItem{
			ID:       "goal:" + uuid.NewString(),
			Type:     types.TypeGoal,
			Content:  d.Content,
			Status:   types.StatusActive,
			ParentID: parentID,
			Deadline: d.Deadline,
		}
		created, err := p.insertUnlessDuplicate(ctx, item)
		if err != nil {
			return err
		}
		if created {
			result.GoalsCreated++
		} else {
			result.Duplicates++
		}
		return nil

	case KindAction:
		item := &types.MemoryItem{
			ID:       "action:" + uuid.NewString(),
			Type:     types.TypeAction,
			Content:  d.Content,
			Status:   types.StatusPending,
			Priority: d.Priority,
			ParentID: parentID,
		}
		created, err := p.insertUnlessDuplicate(ctx, item)
		if err != nil {
			return err
		}
		if created {
			result.ActionsCreated++
		} else {
			result.Duplicates++
		}
		return nil

	case KindStrategy:
		item := &types.MemoryItem{
			ID:      "strategy:" + uuid.NewString(),
			Type:    types.TypeStrategy,
			Content: d.Content,
			Status:  types.StatusActive,
			Weight:  d.Weight,
		}
		created, err := p.insertUnlessDuplicate(ctx, item)
		if err != nil {
			return err
		}
		if created {
			result.StrategiesCreated++
		} else {
			result.Duplicates++
		}
		return nil

	case KindReflection:
		if err := p.store.Insert(ctx, &types.MemoryItem{
			ID:      "reflection:" + uuid.NewString(),
			Type:    types.TypeReflection,
			Content: d.Content,
			Status:  types.StatusArchived,
		}); err != nil {
			return err
		}
		result.ReflectionsSaved++
		return nil

	case KindRemember:
		item := &types.MemoryItem{
			ID:      "fact:" + uuid.NewString(),
			Type:    types.TypeFact,
			Content: d.Content,
			Status:  types.StatusActive,
		}
		created, err := p.insertUnlessDuplicate(ctx, item)
		if err != nil {
			return err
		}
		if created {
			result.FactsSaved++
		} else {
			result.Duplicates++
		}
		return nil

	case KindDone:
		action, err := p.matchPendingAction(ctx, d.Content)
		if err != nil {
			return err
		}
		if action == nil {
			return fmt.Errorf("no pending action matches %q", d.Content)
		}
		if err := p.store.MarkActionCompleted(ctx, action.ID); err != nil {
			return err
		}
		result.ActionsCompleted++
		return nil

	case KindBlocked:
		action, err := p.matchPendingAction(ctx, d.Content)
		if err != nil {
			return err
		}
		if action == nil {
			return fmt.Errorf("no pending action matches %q", d.Content)
		}
		reason := d.Reason
		if reason == "" {
			reason = "blocked without stated reason"
		}
		if err := p.store.MarkActionBlocked(ctx, action.ID, reason); err != nil {
			return err
		}
		result.ActionsBlocked++
		return nil

	default:
		return fmt.Errorf("unknown directive kind %q", d.Kind)
	}
}

// insertUnlessDuplicate inserts item unless an existing non-terminal item of
// the same type, content and parent already exists. Returns whether an insert
// happened.
func (p *Pipeline) insertUnlessDuplicate(ctx context.Context, item *types.MemoryItem) (bool, error) {
	existing, err := p.store.List(ctx, storage.ListOptions{
		Type:     item.Type,
		ParentID: item.ParentID,
		RootOnly: item.ParentID == "",
		Limit:    500,
	})
	if err != nil {
		return false, fmt.Errorf("duplicate check: %w", err)
	}
	for _, e := range existing {
		if types.IsTerminalStatus(e.Status) {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(e.Content), strings.TrimSpace(item.Content)) {
			return false, nil
		}
	}
	if err := p.store.Insert(ctx, item); err != nil {
		return false, err
	}
	return true, nil
}

// matchPendingAction finds the first pending action whose content contains
// the match text, case-insensitively. A nil result means no match.
func (p *Pipeline) matchPendingAction(ctx context.Context, match string) (*types.MemoryItem, error) {
	actions, err := p.store.PendingActions(ctx, 500)
	if err != nil {
		return nil, fmt.Errorf("match pending actions: %w", err)
	}
	needle := strings.ToLower(strings.TrimSpace(match))
	for _, a := range actions {
		if strings.Contains(strings.ToLower(a.Content), needle) {
			return a, nil
		}
	}
	return nil, nil
}
