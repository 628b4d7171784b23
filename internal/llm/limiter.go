package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimitedGenerator wraps a TextGenerator with a token-bucket rate limit
// so several loop processes' worth of prompting cannot saturate the
// reasoning service.
type RateLimitedGenerator struct {
	inner   TextGenerator
	limiter *rate.Limiter
}

// NewRateLimitedGenerator wraps gen with a per-minute call budget. A
// non-positive budget disables limiting.
func NewRateLimitedGenerator(gen TextGenerator, callsPerMinute int) *RateLimitedGenerator {
	var limiter *rate.Limiter
	if callsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(callsPerMinute)/60.0), callsPerMinute)
	}
	return &RateLimitedGenerator{inner: gen, limiter: limiter}
}

// Complete waits for rate-limit headroom, then delegates to the wrapped
// generator. Context cancellation during the wait is returned as-is.
func (g *RateLimitedGenerator) Complete(ctx context.Context, prompt string) (string, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait aborted: %w", err)
		}
	}
	return g.inner.Complete(ctx, prompt)
}

// Compile-time assertion that RateLimitedGenerator satisfies TextGenerator.
var _ TextGenerator = (*RateLimitedGenerator)(nil)
