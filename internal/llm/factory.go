package llm

import (
	"fmt"

	"github.com/scrypster/volition/internal/config"
)

// NewTextGenerator creates a reasoning-service client from configuration,
// wrapped with the configured rate limit. Supported providers: subprocess
// (the default) and ollama.
func NewTextGenerator(cfg config.ReasoningConfig) (TextGenerator, error) {
	var gen TextGenerator

	switch cfg.Provider {
	case "", "subprocess":
		client, err := NewSubprocessClient(SubprocessConfig{
			Command: cfg.Command,
			Timeout: cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		gen = client

	case "ollama":
		gen = NewOllamaClient(OllamaConfig{
			BaseURL:        cfg.OllamaURL,
			Model:          cfg.OllamaModel,
			EmbeddingModel: cfg.EmbeddingModel,
			Timeout:        cfg.Timeout,
		})

	default:
		return nil, fmt.Errorf("llm: unknown reasoning provider %q", cfg.Provider)
	}

	return NewRateLimitedGenerator(gen, cfg.RatePerMinute), nil
}

// NewEmbeddingGenerator creates an embedding client from configuration.
// Only the ollama provider supports embeddings; other providers return nil
// without error so callers can treat embeddings as optional.
func NewEmbeddingGenerator(cfg config.ReasoningConfig) EmbeddingGenerator {
	if cfg.Provider != "ollama" {
		return nil
	}
	return NewOllamaClient(OllamaConfig{
		BaseURL:        cfg.OllamaURL,
		Model:          cfg.OllamaModel,
		EmbeddingModel: cfg.EmbeddingModel,
		Timeout:        cfg.Timeout,
	})
}
