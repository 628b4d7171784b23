// cmd/volition-agent is the main autonomous loop process. Each wake-up runs
// one agent cycle: fetch context from the graph store, prompt the reasoning
// service, commit the tagged response through the intent pipeline, and
// persist local run state. The adaptive scheduler decides the gap until the
// next cycle, and the embedded monitor server streams cycle events.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/scrypster/volition/internal/agent"
	"github.com/scrypster/volition/internal/config"
	"github.com/scrypster/volition/internal/llm"
	"github.com/scrypster/volition/internal/loop"
	"github.com/scrypster/volition/internal/monitor"
	"github.com/scrypster/volition/internal/notify"
	"github.com/scrypster/volition/internal/scheduler"
	"github.com/scrypster/volition/internal/storage"
	"github.com/scrypster/volition/internal/storage/postgres"
	"github.com/scrypster/volition/internal/storage/sqlite"
)

// nightlyRetention is how long completed actions survive before the nightly
// consolidation archives them.
const nightlyRetention = 7 * 24 * time.Hour

// maxActionsPerCycle caps how many claimed actions one cycle hands to the
// sub-agent roles, bounding reasoning-service load per wake-up.
const maxActionsPerCycle = 2

func main() {
	log.SetOutput(os.Stderr)
	log.SetPrefix("volition-agent: ")
	log.SetFlags(log.LstdFlags)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := os.MkdirAll(cfg.Storage.DataPath, 0o700); err != nil {
		log.Fatalf("failed to create data directory %q: %v", cfg.Storage.DataPath, err)
	}

	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("failed to open graph store: %v", err)
	}
	defer store.Close()

	gen, err := llm.NewTextGenerator(cfg.Reasoning)
	if err != nil {
		log.Fatalf("failed to create reasoning client: %v", err)
	}

	var notifier notify.Notifier
	if cfg.Notify.WebhookURL != "" {
		notifier = notify.NewWebhookNotifier(cfg.Notify.WebhookURL, cfg.Notify.Timeout)
	}
	events := notify.NewEventWriter(cfg.Storage.DataPath)

	retry := llm.RetryConfig{MaxAttempts: cfg.Reasoning.MaxRetries}
	ag := agent.New(store, gen, notifier, events, cfg.Agent, retry)

	pattern, err := loadWorkPattern(cfg.Scheduler.WorkPatternPath)
	if err != nil {
		log.Fatalf("failed to load work pattern: %v", err)
	}
	sched := scheduler.New(scheduler.Config{
		MinInterval:  cfg.Scheduler.MinInterval,
		BaseInterval: cfg.Scheduler.BaseInterval,
		MaxInterval:  cfg.Scheduler.MaxInterval,
	}, pattern, scheduler.SystemClock())

	ctx, cancel := loop.SignalContext(context.Background())
	defer cancel()

	if cfg.Monitor.Enabled {
		srv := monitor.NewServer(store, cfg.Agent.StatePath, cfg.Storage.DataPath, cfg.Monitor)
		srv.Start(ctx)
		ag.OnCycle = func(s agent.CycleSummary) { srv.Hub().Broadcast(s) }
	}

	owner := fmt.Sprintf("volition-agent-%d", os.Getpid())

	var lastNightly time.Time
	runner := loop.NewRunner("agent", nil, func(ctx context.Context) (time.Duration, error) {
		summary, err := ag.RunCycle(ctx)

		executed := 0
		if err == nil && summary.Actions > 0 {
			executed = ag.ExecutePending(ctx, owner, maxActionsPerCycle)
		}
		sched.MarkRun((!summary.Idle && summary.Mutations > 0) || executed > 0)

		if sched.NightlyWindow() && time.Since(lastNightly) > time.Hour {
			lastNightly = time.Now()
			if nightlyErr := ag.RunNightly(ctx, nightlyRetention); nightlyErr != nil {
				log.Printf("nightly consolidation failed: %v", nightlyErr)
			}
		}

		interval := sched.NextInterval(summary.Actions)
		log.Printf("cycle %d done (mode %s, %d actions executed), next in %v",
			summary.RunCount, sched.Mode(), executed, interval)
		return interval, err
	})

	if err := runner.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("agent loop: %v", err)
	}
}

// openStore opens the configured storage backend.
func openStore(cfg *config.Config) (storage.GraphStore, error) {
	switch cfg.Storage.StorageEngine {
	case "postgres":
		return postgres.NewGraphStore(cfg.Storage.PostgresURL)
	case "", "sqlite":
		return sqlite.NewGraphStore(fmt.Sprintf("%s/volition.db", cfg.Storage.DataPath))
	default:
		return nil, fmt.Errorf("unknown storage engine %q", cfg.Storage.StorageEngine)
	}
}

// loadWorkPattern loads the YAML work pattern, falling back to the default
// windows when no file is configured.
func loadWorkPattern(path string) (scheduler.WorkPattern, error) {
	if path == "" {
		return scheduler.DefaultWorkPattern(), nil
	}
	return scheduler.LoadWorkPattern(path)
}
