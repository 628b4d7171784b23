// cmd/volition-deepthink is the idle-time reasoning process. It polls the
// deep-think gate on a fine interval and, when the gate opens, runs the four
// sequential passes (strategic planning, system optimization, memory
// consolidation, risk analysis) against one context snapshot. Runs in its
// own process, coordinating with the agent only through the graph store.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/scrypster/volition/internal/config"
	"github.com/scrypster/volition/internal/deepthink"
	"github.com/scrypster/volition/internal/llm"
	"github.com/scrypster/volition/internal/loop"
	"github.com/scrypster/volition/internal/notify"
	"github.com/scrypster/volition/internal/storage"
	"github.com/scrypster/volition/internal/storage/postgres"
	"github.com/scrypster/volition/internal/storage/sqlite"
)

func main() {
	log.SetOutput(os.Stderr)
	log.SetPrefix("volition-deepthink: ")
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

	events := notify.NewEventWriter(cfg.Storage.DataPath)
	retry := llm.RetryConfig{MaxAttempts: cfg.Reasoning.MaxRetries}
	cycle := deepthink.New(store, gen, events, cfg.DeepThink, retry)

	// The Postgres backend doubles as a similarity provider when pgvector
	// is installed; the consolidation pass uses it to surface near-duplicate
	// items.
	if provider, ok := store.(storage.SimilarityProvider); ok {
		cycle = cycle.WithSimilarity(provider, llm.NewEmbeddingGenerator(cfg.Reasoning))
		log.Printf("vector similarity enabled for consolidation pass")
	}

	ctx, cancel := loop.SignalContext(context.Background())
	defer cancel()

	runner := loop.NewRunner("deepthink", nil, func(ctx context.Context) (time.Duration, error) {
		open, err := cycle.ShouldRun(ctx, time.Now())
		if err != nil {
			return cfg.DeepThink.PollInterval, err
		}
		if !open {
			return cfg.DeepThink.PollInterval, nil
		}
		return cfg.DeepThink.PollInterval, cycle.RunCycle(ctx)
	})

	if err := runner.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("deepthink loop: %v", err)
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
