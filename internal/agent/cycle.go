// Package agent implements the main autonomous cycle: fetch context from the
// graph store, prompt the reasoning service with retry, commit the tagged
// response through the intent pipeline, and keep per-process run state.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/scrypster/volition/internal/config"
	"github.com/scrypster/volition/internal/intent"
	"github.com/scrypster/volition/internal/llm"
	"github.com/scrypster/volition/internal/notify"
	"github.com/scrypster/volition/internal/storage"
	"github.com/scrypster/volition/pkg/types"
)

// contextFetchLimit bounds each of the cycle's list fetches.
const contextFetchLimit = 25

// Agent runs the main autonomous cycle against the graph store.
type Agent struct {
	store    storage.GraphStore
	gen      llm.TextGenerator
	pipeline *intent.Pipeline
	notifier notify.Notifier
	events   *notify.EventWriter

	statePath string
	retry     llm.RetryConfig
	cfg       config.AgentConfig

	// OnCycle, when set, receives a summary after every cycle. The monitor
	// server uses it to stream live cycle events.
	OnCycle func(CycleSummary)
}

// CycleSummary is one cycle's observable outcome.
type CycleSummary struct {
	Time      time.Time `json:"time"`
	RunCount  int       `json:"run_count"`
	Idle      bool      `json:"idle"`
	Goals     int       `json:"goals"`
	Actions   int       `json:"actions"`
	Mutations int       `json:"mutations"`
	Malformed int       `json:"malformed"`
	Attempts  int       `json:"attempts"`
	Err       string    `json:"err,omitempty"`
}

// New creates an agent. notifier may be nil when no webhook is configured.
func New(store storage.GraphStore, gen llm.TextGenerator, notifier notify.Notifier, events *notify.EventWriter, cfg config.AgentConfig, retry llm.RetryConfig) *Agent {
	return &Agent{
		store:     store,
		gen:       gen,
		pipeline:  intent.NewPipeline(store),
		notifier:  notifier,
		events:    events,
		statePath: cfg.StatePath,
		retry:     retry,
		cfg:       cfg,
	}
}

// RunCycle executes one full cycle. Every failure path is contained: the
// method recovers panics, records the error in the bounded run-state log,
// and returns so the hosting loop simply waits for the next invocation.
func (a *Agent) RunCycle(ctx context.Context) (summary CycleSummary, err error) {
	state, stateErr := LoadRunState(a.statePath)
	if stateErr != nil {
		log.Printf("[agent] run state unreadable, starting fresh: %v", stateErr)
		state = &types.AgentRunState{}
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("cycle panic: %v", rec)
		}
		if err != nil {
			state.RecordError(time.Now(), err.Error())
			summary.Err = err.Error()
		}
		if saveErr := SaveRunState(a.statePath, state); saveErr != nil {
			log.Printf("[agent] persist run state: %v", saveErr)
		}
		if a.OnCycle != nil {
			a.OnCycle(summary)
		}
	}()

	cc, err := a.fetchContext(ctx)
	if err != nil {
		return summary, fmt.Errorf("context fetch: %w", err)
	}

	now := time.Now()
	state.MarkCycle(now, len(cc.Goals), len(cc.Actions))
	summary = CycleSummary{
		Time:     now,
		RunCount: state.RunCount,
		Idle:     cc.Idle(),
		Goals:    len(cc.Goals),
		Actions:  len(cc.Actions),
	}

	if cc.Idle() {
		log.Printf("[agent] cycle %d idle (%d consecutive)", state.RunCount, state.IdleCycles)
	}

	prompt := buildSituationReport(cc, state, now)
	result := llm.CallWithRetry(ctx, a.gen, prompt, a.retry)
	summary.Attempts = result.Attempts
	if result.Err != nil {
		return summary, fmt.Errorf("reasoning call failed after %d attempts: %w", result.Attempts, result.Err)
	}

	applied := a.pipeline.Apply(ctx, result.Response, "")
	summary.Mutations = applied.Mutations()
	summary.Malformed = applied.Malformed
	log.Printf("[agent] cycle %d: %d mutations, %d duplicates, %d malformed, %d write failures (attempts=%d)",
		state.RunCount, applied.Mutations(), applied.Duplicates, applied.Malformed,
		applied.WriteFailures, result.Attempts)

	a.notifyIfUrgent(ctx, result.Response)

	if a.events != nil {
		if evtErr := a.events.Notify(notify.EventCycleCompleted, "", fmt.Sprintf("cycle %d", state.RunCount)); evtErr != nil {
			log.Printf("[agent] cycle event: %v", evtErr)
		}
	}
	return summary, nil
}

// fetchContext issues the five store reads concurrently and joins them
// before prompt construction. Any single failure fails the fetch.
func (a *Agent) fetchContext(ctx context.Context) (*cycleContext, error) {
	cc := &cycleContext{}
	errc := make(chan error, 5)

	go func() {
		var err error
		cc.Goals, err = a.store.ActiveGoalsWithChildCounts(ctx)
		errc <- err
	}()
	go func() {
		var err error
		cc.Actions, err = a.store.PendingActions(ctx, contextFetchLimit)
		errc <- err
	}()
	go func() {
		var err error
		cc.Strategies, err = a.store.ActiveStrategies(ctx, contextFetchLimit)
		errc <- err
	}()
	go func() {
		var err error
		cc.Reflections, err = a.store.RecentReflections(ctx, 5)
		errc <- err
	}()
	go func() {
		var err error
		cc.Counters, err = a.store.GetCounters(ctx)
		errc <- err
	}()

	var firstErr error
	for i := 0; i < 5; i++ {
		if err := <-errc; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return cc, firstErr
}

// notifyIfUrgent fires a best-effort notification when the response trips
// the urgency heuristic. Failures are swallowed.
func (a *Agent) notifyIfUrgent(ctx context.Context, response string) {
	excerpt := urgentExcerpt(response)
	if excerpt == "" || a.notifier == nil {
		return
	}
	if err := a.notifier.Send(ctx, "", excerpt); err != nil {
		log.Printf("[agent] urgency notification failed: %v", err)
	}
}

// RunNightly performs the nightly consolidation hygiene: completed actions
// older than the retention window are archived, and the run is recorded as a
// system event. Safe to call more than once inside the nightly window; a
// second run finds nothing left to archive.
func (a *Agent) RunNightly(ctx context.Context, retention time.Duration) error {
	cutoff := time.Now().Add(-retention)
	completed, err := a.store.List(ctx, storage.ListOptions{
		Type:   types.TypeAction,
		Status: types.StatusCompleted,
		Limit:  500,
	})
	if err != nil {
		return fmt.Errorf("nightly: list completed actions: %w", err)
	}

	archived := 0
	for _, item := range completed {
		if item.CompletedAt == nil || item.CompletedAt.After(cutoff) {
			continue
		}
		item.Status = types.StatusArchived
		if err := a.store.Update(ctx, item); err != nil {
			log.Printf("[agent] nightly archive %s: %v", item.ID, err)
			continue
		}
		archived++
	}

	if err := a.store.LogSystemEvent(ctx, "nightly consolidation", map[string]interface{}{
		"archived": archived,
	}); err != nil {
		log.Printf("[agent] nightly event: %v", err)
	}
	log.Printf("[agent] nightly consolidation: archived %d completed actions", archived)
	return nil
}

// ExecutePending claims and executes up to max pending actions in priority
// order. Actions holding a live claim from another process are skipped;
// other per-action failures are logged and the rest still run. Returns the
// number of actions executed.
func (a *Agent) ExecutePending(ctx context.Context, owner string, max int) int {
	if max <= 0 {
		return 0
	}
	actions, err := a.store.PendingActions(ctx, contextFetchLimit)
	if err != nil {
		log.Printf("[agent] list pending actions: %v", err)
		return 0
	}

	executed := 0
	for _, action := range actions {
		if executed >= max {
			break
		}
		if err := a.ExecuteAction(ctx, action, owner); err != nil {
			if errors.Is(err, storage.ErrAlreadyClaimed) {
				continue
			}
			log.Printf("[agent] execute action %s: %v", action.ID, err)
			continue
		}
		executed++
	}
	return executed
}

// ExecuteAction claims a pending action, dispatches the four sub-agent roles
// against it, and applies the merged report through the intent pipeline.
// The claim (owner + lease) keeps a concurrently running process from acting
// on the same item; ErrAlreadyClaimed means another process got there first
// and is not a failure of this cycle.
func (a *Agent) ExecuteAction(ctx context.Context, action *types.MemoryItem, owner string) error {
	if _, err := a.store.ClaimAction(ctx, action.ID, owner, a.cfg.ActionLease); err != nil {
		return err
	}
	defer func() {
		if err := a.store.ReleaseClaim(ctx, action.ID, owner); err != nil {
			log.Printf("[agent] release claim on %s: %v", action.ID, err)
		}
	}()

	contextText := fmt.Sprintf("Action: %s\nPriority: %d\nRetries so far: %d\nLast error: %s",
		action.Content, types.EffectivePriority(action.Priority), action.RetryCount, action.LastError)
	results := DispatchRoles(ctx, a.gen, contextText, a.cfg.SubAgentContext)
	report := MergeRoleReports(results)
	if report == "" {
		return fmt.Errorf("all sub-agent roles failed for action %s", action.ID)
	}

	applied := a.pipeline.Apply(ctx, report, action.ParentID)
	log.Printf("[agent] action %s: sub-agent report applied (%d mutations, %d malformed)",
		action.ID, applied.Mutations(), applied.Malformed)
	return nil
}
