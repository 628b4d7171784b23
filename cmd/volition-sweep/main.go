// cmd/volition-sweep is the goal-decomposition sweep process. Each wake-up
// it selects childless complex goals and asks the reasoning service to break
// them into sub-goals and actions. Cadence follows the adaptive scheduler so
// decomposition keeps pace with how busy the system is.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/scrypster/volition/internal/config"
	"github.com/scrypster/volition/internal/goals"
	"github.com/scrypster/volition/internal/llm"
	"github.com/scrypster/volition/internal/loop"
	"github.com/scrypster/volition/internal/scheduler"
	"github.com/scrypster/volition/internal/storage"
	"github.com/scrypster/volition/internal/storage/postgres"
	"github.com/scrypster/volition/internal/storage/sqlite"
)

// maxDecompositionsPerSweep caps the reasoning-service load of one sweep.
const maxDecompositionsPerSweep = 3

func main() {
	log.SetOutput(os.Stderr)
	log.SetPrefix("volition-sweep: ")
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

	retry := llm.RetryConfig{MaxAttempts: cfg.Reasoning.MaxRetries}
	engine := goals.NewEngine(store, gen, retry)

	pattern := scheduler.DefaultWorkPattern()
	if cfg.Scheduler.WorkPatternPath != "" {
		pattern, err = scheduler.LoadWorkPattern(cfg.Scheduler.WorkPatternPath)
		if err != nil {
			log.Fatalf("failed to load work pattern: %v", err)
		}
	}
	sched := scheduler.New(scheduler.Config{
		MinInterval:  cfg.Scheduler.MinInterval,
		BaseInterval: cfg.Scheduler.BaseInterval,
		MaxInterval:  cfg.Scheduler.MaxInterval,
	}, pattern, scheduler.SystemClock())

	ctx, cancel := loop.SignalContext(context.Background())
	defer cancel()

	runner := loop.NewRunner("sweep", nil, func(ctx context.Context) (time.Duration, error) {
		candidates, err := engine.FindDecomposableGoals(ctx)
		if err != nil {
			sched.MarkRun(false)
			return sched.NextInterval(0), err
		}

		decomposed := 0
		for _, goal := range candidates {
			if decomposed >= maxDecompositionsPerSweep {
				break
			}
			n, err := engine.DecomposeGoal(ctx, goal)
			if err != nil {
				log.Printf("decompose %s: %v", goal.ID, err)
				continue
			}
			if n > 0 {
				decomposed++
			}
		}

		sched.MarkRun(decomposed > 0)
		interval := sched.NextInterval(len(candidates))
		log.Printf("sweep done: %d/%d candidates decomposed, next in %v",
			decomposed, len(candidates), interval)
		return interval, nil
	})

	if err := runner.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("sweep loop: %v", err)
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
