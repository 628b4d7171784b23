// Package llm provides clients for the external reasoning service: a
// blocking subprocess provider (the primary contract) and an Ollama HTTP
// provider, both wrapped with circuit-breaker and rate-limit protection,
// plus the self-healing retry helper used by the loop processes.
package llm

import "context"

// TextGenerator produces free-text completions from free-text prompts.
// Non-nil errors cover non-zero exits, timeouts and transport failures; no
// structured response format is assumed beyond whatever tag grammar the
// caller asked the service to honor.
type TextGenerator interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// EmbeddingGenerator produces embedding vectors for text. Only the Ollama
// provider implements it; callers treat it as optional.
type EmbeddingGenerator interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
