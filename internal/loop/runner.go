// Package loop runs the long-lived cycle processes. Each process owns one
// Runner: a repeating cycle with a cancellable timer between iterations and
// an injectable clock so tests can drive virtual time. Cancellation is
// coarse on purpose: a cancel during a cycle lets the cycle finish its
// current mutation and then exits, with no mid-cycle rollback.
package loop

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"
)

// Clock supplies time to a Runner. The system clock is the default;
// tests substitute a virtual clock to step through intervals instantly.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemClock returns the real wall clock.
func SystemClock() Clock { return systemClock{} }

// CycleFunc runs one cycle and returns the interval until the next one.
// Returning an error logs the failure; the loop continues regardless, so a
// single bad cycle never terminates the process.
type CycleFunc func(ctx context.Context) (time.Duration, error)

// Runner repeatedly executes a cycle with a cancellable wait in between.
type Runner struct {
	name  string
	clock Clock
	cycle CycleFunc

	// MinWait floors the interval returned by the cycle so a buggy interval
	// calculation cannot spin the loop hot.
	MinWait time.Duration
}

// NewRunner creates a runner. A nil clock defaults to the system clock.
func NewRunner(name string, clock Clock, cycle CycleFunc) *Runner {
	if clock == nil {
		clock = SystemClock()
	}
	return &Runner{name: name, clock: clock, cycle: cycle, MinWait: time.Second}
}

// Run executes cycles until ctx is cancelled. The first cycle runs
// immediately; each subsequent cycle runs after the interval the previous
// one returned. Panics inside a cycle are recovered and logged.
func (r *Runner) Run(ctx context.Context) error {
	log.Printf("[%s] loop starting", r.name)
	for {
		interval := r.runOnce(ctx)
		if interval < r.MinWait {
			interval = r.MinWait
		}

		select {
		case <-ctx.Done():
			log.Printf("[%s] loop stopping: %v", r.name, ctx.Err())
			return ctx.Err()
		case <-r.clock.After(interval):
		}
	}
}

// runOnce executes one cycle under a recover harness and returns the next
// interval. A panicking or failing cycle yields MinWait so the loop backs
// off briefly and tries again.
func (r *Runner) runOnce(ctx context.Context) (interval time.Duration) {
	interval = r.MinWait
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[%s] cycle panic recovered: %v", r.name, rec)
		}
	}()

	start := r.clock.Now()
	next, err := r.cycle(ctx)
	if err != nil {
		log.Printf("[%s] cycle failed after %v: %v", r.name, r.clock.Now().Sub(start), err)
	}
	if next > 0 {
		interval = next
	}
	return interval
}

// SignalContext returns a context cancelled by SIGINT or SIGTERM, for
// orderly process shutdown.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// Group runs several runners concurrently and waits for all of them. The
// first runner error other than context cancellation is returned.
func Group(ctx context.Context, runners ...*Runner) error {
	errc := make(chan error, len(runners))
	for _, r := range runners {
		r := r
		go func() { errc <- r.Run(ctx) }()
	}

	var firstErr error
	for range runners {
		if err := <-errc; err != nil && err != context.Canceled && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return fmt.Errorf("loop group: %w", firstErr)
	}
	return nil
}
