package llm

import (
	"context"
	"fmt"
	"log"
	"time"
)

// RetryResult reports the outcome of a retried reasoning call.
type RetryResult struct {
	// Response is the successful completion text, empty on failure.
	Response string

	// Attempts is the number of attempts actually made.
	Attempts int

	// Err is the last failure when all attempts were exhausted.
	Err error
}

// RetryConfig bounds the self-healing retry loop.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts (default: 3).
	MaxAttempts int

	// Backoff is the base delay; attempt N waits N×Backoff before
	// re-invoking (default: 2s).
	Backoff time.Duration
}

// DefaultRetryConfig returns the standard retry bounds.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, Backoff: 2 * time.Second}
}

// CallWithRetry invokes the reasoning service with prompt-level self-healing:
// each failure's error text is folded into a revised prompt for the next
// attempt so the service can correct itself. It returns on first success or
// after exhausting the attempts, reporting the true attempt count either way.
//
// The prompt grows with each failure; there is no truncation across retries,
// so a long failure chain produces an increasingly large prompt. That cost
// is accepted — failure text is the self-healing signal.
func CallWithRetry(ctx context.Context, gen TextGenerator, prompt string, cfg RetryConfig) RetryResult {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 2 * time.Second
	}

	currentPrompt := prompt
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			// Linear backoff: attempt index × base delay.
			delay := time.Duration(attempt-1) * cfg.Backoff
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return RetryResult{Attempts: attempt - 1, Err: ctx.Err()}
			}
		}

		response, err := gen.Complete(ctx, currentPrompt)
		if err == nil {
			return RetryResult{Response: response, Attempts: attempt}
		}

		lastErr = err
		log.Printf("llm: attempt %d/%d failed: %v", attempt, cfg.MaxAttempts, err)

		currentPrompt = fmt.Sprintf(
			"%s\n\nPrevious attempt failed with: %s\nFix the issue and retry.",
			currentPrompt, err.Error())
	}

	return RetryResult{
		Attempts: cfg.MaxAttempts,
		Err:      fmt.Errorf("reasoning call failed after %d attempts: %w", cfg.MaxAttempts, lastErr),
	}
}
