// Package deepthink implements the idle-time reasoning cycle: four
// sequential passes over one context snapshot, each committed through the
// intent pipeline independently. It runs in its own process with its own
// gate, separate from the main agent cycle.
package deepthink

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/scrypster/volition/internal/agent"
	"github.com/scrypster/volition/internal/config"
	"github.com/scrypster/volition/internal/intent"
	"github.com/scrypster/volition/internal/llm"
	"github.com/scrypster/volition/internal/notify"
	"github.com/scrypster/volition/internal/storage"
	"github.com/scrypster/volition/pkg/types"
)

// Pass identifies one of the four sequential reasoning passes.
type Pass string

const (
	PassStrategicPlanning   Pass = "strategic_planning"
	PassSystemOptimization  Pass = "system_optimization"
	PassMemoryConsolidation Pass = "memory_consolidation"
	PassRiskAnalysis        Pass = "risk_analysis"
)

// passOrder is the fixed execution sequence.
var passOrder = []Pass{
	PassStrategicPlanning,
	PassSystemOptimization,
	PassMemoryConsolidation,
	PassRiskAnalysis,
}

var passInstructions = map[Pass]string{
	PassStrategicPlanning: "Strategic planning pass. Review the goal structure " +
		"below and recommend structural, process, and priority changes.",
	PassSystemOptimization: "System optimization pass. Review the situation " +
		"below for inefficiencies in the action pipeline and goal hierarchy, " +
		"and propose optimizations.",
	PassMemoryConsolidation: "Memory consolidation pass. Synthesize patterns " +
		"from the situation below, propose cross-links between related items, " +
		"and flag candidates for archival.",
	PassRiskAnalysis: "Risk analysis pass. Identify goal, dependency, resource, " +
		"and external risks in the situation below, each with a mitigation.",
}

// Cycle runs deep-think cycles when the idle gate opens.
type Cycle struct {
	store    storage.GraphStore
	gen      llm.TextGenerator
	pipeline *intent.Pipeline
	events   *notify.EventWriter

	// similarity and embedder enrich the consolidation pass when the store
	// backend supports vector similarity. Both optional.
	similarity storage.SimilarityProvider
	embedder   llm.EmbeddingGenerator

	cfg   config.DeepThinkConfig
	retry llm.RetryConfig
}

// New creates a deep-think cycle. similarity, embedder and events may be nil.
func New(store storage.GraphStore, gen llm.TextGenerator, events *notify.EventWriter, cfg config.DeepThinkConfig, retry llm.RetryConfig) *Cycle {
	return &Cycle{
		store:    store,
		gen:      gen,
		pipeline: intent.NewPipeline(store),
		events:   events,
		cfg:      cfg,
		retry:    retry,
	}
}

// WithSimilarity attaches a vector-similarity provider used by the
// consolidation pass.
func (c *Cycle) WithSimilarity(provider storage.SimilarityProvider, embedder llm.EmbeddingGenerator) *Cycle {
	c.similarity = provider
	c.embedder = embedder
	return c
}

// ShouldRun evaluates the idle gate: enough time since the last completed
// run AND enough active goals to be worth thinking about. A closed gate has
// no side effects.
func (c *Cycle) ShouldRun(ctx context.Context, now time.Time) (bool, error) {
	state, err := agent.LoadRunState(c.cfg.StatePath)
	if err != nil {
		return false, err
	}
	if !state.LastRun.IsZero() && now.Sub(state.LastRun) < c.cfg.MinIdle {
		return false, nil
	}

	counters, err := c.store.GetCounters(ctx)
	if err != nil {
		return false, fmt.Errorf("deepthink gate: %w", err)
	}
	return counters.ActiveGoals >= c.cfg.MinGoals, nil
}

// RunCycle takes one context snapshot and runs the four passes strictly in
// sequence. Passes are not transactional: a failed pass leaves earlier
// passes' mutations in place and later passes still run.
func (c *Cycle) RunCycle(ctx context.Context) error {
	state, err := agent.LoadRunState(c.cfg.StatePath)
	if err != nil {
		log.Printf("[deepthink] run state unreadable, starting fresh: %v", err)
		state = &types.AgentRunState{}
	}

	snapshot, err := c.buildSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("context snapshot: %w", err)
	}

	var failures int
	for _, pass := range passOrder {
		if err := c.runPass(ctx, pass, snapshot, state); err != nil {
			failures++
			log.Printf("[deepthink] pass %s failed: %v", pass, err)
			state.RecordError(time.Now(), fmt.Sprintf("%s: %v", pass, err))
		}
	}

	now := time.Now()
	state.LastRun = now
	state.RunCount++
	if err := agent.SaveRunState(c.cfg.StatePath, state); err != nil {
		log.Printf("[deepthink] persist run state: %v", err)
	}

	if c.events != nil {
		_ = c.events.Notify(notify.EventDeepThinkDone, "",
			fmt.Sprintf("run %d, %d/%d passes ok", state.RunCount, len(passOrder)-failures, len(passOrder)))
	}

	if failures == len(passOrder) {
		return fmt.Errorf("all %d passes failed", len(passOrder))
	}
	return nil
}

func (c *Cycle) runPass(ctx context.Context, pass Pass, snapshot string, state *types.AgentRunState) error {
	prompt := passInstructions[pass] + "\n\n" + snapshot
	if pass == PassMemoryConsolidation {
		if pairs := c.similarPairs(ctx); pairs != "" {
			prompt += "\n\nItems close in embedding space (consider cross-linking or merging):\n" + pairs
		}
	}
	prompt += "\n\n" + intent.TagLegend

	result := llm.CallWithRetry(ctx, c.gen, prompt, c.retry)
	if result.Err != nil {
		return result.Err
	}

	applied := c.pipeline.Apply(ctx, result.Response, "")
	log.Printf("[deepthink] pass %s: %d mutations, %d malformed", pass, applied.Mutations(), applied.Malformed)

	if insight := extractInsight(result.Response); insight != "" {
		state.RecordInsight(time.Now(), string(pass), insight)
	}
	return nil
}

// buildSnapshot assembles the shared context all four passes reason over.
// Taken once at cycle start; passes see the same snapshot even as their own
// mutations land.
func (c *Cycle) buildSnapshot(ctx context.Context) (string, error) {
	goals, err := c.store.ActiveGoalsWithChildCounts(ctx)
	if err != nil {
		return "", err
	}
	actions, err := c.store.PendingActions(ctx, 25)
	if err != nil {
		return "", err
	}
	strategies, err := c.store.ActiveStrategies(ctx, 10)
	if err != nil {
		return "", err
	}
	reflections, err := c.store.RecentReflections(ctx, 5)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("Current situation:\n\nGoals:\n")
	if len(goals) == 0 {
		b.WriteString("- none\n")
	}
	for _, g := range goals {
		fmt.Fprintf(&b, "- [p%d] %s (%d children)\n",
			types.EffectivePriority(g.Goal.Priority), g.Goal.Content, g.ChildCount)
	}
	b.WriteString("\nPending actions:\n")
	if len(actions) == 0 {
		b.WriteString("- none\n")
	}
	for _, a := range actions {
		fmt.Fprintf(&b, "- [p%d] %s\n", types.EffectivePriority(a.Priority), a.Content)
	}
	if len(strategies) > 0 {
		b.WriteString("\nStrategies:\n")
		for _, s := range strategies {
			fmt.Fprintf(&b, "- [w%.2f] %s\n", s.Weight, s.Content)
		}
	}
	if len(reflections) > 0 {
		b.WriteString("\nRecent reflections:\n")
		for _, r := range reflections {
			fmt.Fprintf(&b, "- %s\n", r.Content)
		}
	}
	return b.String(), nil
}

// similarPairs renders near-duplicate item pairs for the consolidation
// prompt. Best-effort: any failure yields an empty enrichment.
func (c *Cycle) similarPairs(ctx context.Context) string {
	if c.similarity == nil {
		return ""
	}

	strategies, err := c.store.ActiveStrategies(ctx, 5)
	if err != nil {
		return ""
	}
	c.refreshEmbeddings(ctx, strategies)

	var b strings.Builder
	for _, s := range strategies {
		similar, err := c.similarity.SimilarItems(ctx, s.ID, 3)
		if err != nil || len(similar) == 0 {
			continue
		}
		for _, sim := range similar {
			fmt.Fprintf(&b, "- %q ~ %q (distance %.3f)\n", s.Content, sim.Item.Content, sim.Distance)
		}
	}
	return b.String()
}

// refreshEmbeddings computes and stores embeddings for the given items so
// the similarity queries have vectors to work with. Skipped when no
// embedding generator is configured; per-item failures are logged only.
func (c *Cycle) refreshEmbeddings(ctx context.Context, items []*types.MemoryItem) {
	if c.embedder == nil {
		return
	}
	for _, item := range items {
		vec, err := c.embedder.Embed(ctx, item.Content)
		if err != nil {
			log.Printf("[deepthink] embed %s: %v", item.ID, err)
			continue
		}
		if err := c.similarity.StoreEmbedding(ctx, item.ID, vec); err != nil {
			log.Printf("[deepthink] store embedding %s: %v", item.ID, err)
		}
	}
}

// extractInsight pulls a short pass summary for the bounded insight log:
// the first reflection or strategy directive if present, otherwise the
// first non-empty line.
func extractInsight(response string) string {
	parsed := intent.Parse(response)
	for _, d := range parsed.Directives {
		if d.Kind == intent.KindReflection || d.Kind == intent.KindStrategy {
			return d.Content
		}
	}
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			return line
		}
	}
	return ""
}
