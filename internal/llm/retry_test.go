package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// scriptedGenerator fails a fixed number of times, then succeeds. It records
// every prompt it was given.
type scriptedGenerator struct {
	failures int
	calls    int
	prompts  []string
}

func (g *scriptedGenerator) Complete(_ context.Context, prompt string) (string, error) {
	g.calls++
	g.prompts = append(g.prompts, prompt)
	if g.calls <= g.failures {
		return "", errors.New("simulated failure " + strings.Repeat("x", g.calls))
	}
	return "ok", nil
}

// TestCallWithRetry_SelfHealingPromptChain pins the retry contract: a stub
// that fails twice then succeeds yields success on attempt 3, and the third
// attempt's prompt contains the second attempt's error text.
func TestCallWithRetry_SelfHealingPromptChain(t *testing.T) {
	gen := &scriptedGenerator{failures: 2}
	result := CallWithRetry(context.Background(), gen, "base prompt", RetryConfig{
		MaxAttempts: 3,
		Backoff:     time.Millisecond,
	})

	if result.Err != nil {
		t.Fatalf("expected success, got %v", result.Err)
	}
	if result.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", result.Attempts)
	}
	if result.Response != "ok" {
		t.Errorf("unexpected response %q", result.Response)
	}

	if len(gen.prompts) != 3 {
		t.Fatalf("expected 3 prompts, got %d", len(gen.prompts))
	}
	if gen.prompts[0] != "base prompt" {
		t.Errorf("first prompt altered: %q", gen.prompts[0])
	}
	// The second failure's error text ("simulated failure xx") must be
	// folded into the third prompt.
	if !strings.Contains(gen.prompts[2], "simulated failure xx") {
		t.Errorf("third prompt missing second failure text: %q", gen.prompts[2])
	}
	if !strings.Contains(gen.prompts[2], "base prompt") {
		t.Errorf("third prompt lost the original prompt: %q", gen.prompts[2])
	}
}

// TestCallWithRetry_ExhaustedReturnsLastFailure verifies a permanently
// failing generator surfaces the final error with the true attempt count.
func TestCallWithRetry_ExhaustedReturnsLastFailure(t *testing.T) {
	gen := &scriptedGenerator{failures: 10}
	result := CallWithRetry(context.Background(), gen, "prompt", RetryConfig{
		MaxAttempts: 3,
		Backoff:     time.Millisecond,
	})

	if result.Err == nil {
		t.Fatal("expected failure")
	}
	if result.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", result.Attempts)
	}
	if result.Response != "" {
		t.Errorf("failed result should carry no response, got %q", result.Response)
	}
}

// TestCallWithRetry_ContextCancelStopsRetrying verifies cancellation during
// backoff aborts the chain.
func TestCallWithRetry_ContextCancelStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gen := &scriptedGenerator{failures: 10}
	result := CallWithRetry(ctx, gen, "prompt", RetryConfig{
		MaxAttempts: 3,
		Backoff:     time.Hour,
	})

	if result.Err == nil {
		t.Fatal("expected failure")
	}
	if gen.calls > 1 {
		t.Errorf("expected at most 1 call after cancellation, got %d", gen.calls)
	}
}
