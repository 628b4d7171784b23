// Package scheduler implements the adaptive scheduler that decides the
// operating tempo of a loop process. The core is a pure time-of-day →
// operating-mode mapping plus interval arithmetic; a thin stateful wrapper
// tracks run timestamps and consecutive idle runs per process.
package scheduler

import (
	"time"
)

// Mode is the operating tempo of a loop process.
type Mode string

// Operating modes.
const (
	ModeAggressive Mode = "aggressive"
	ModeNormal     Mode = "normal"
	ModeLow        Mode = "low"
	ModeIdle       Mode = "idle"
)

// Config holds the interval bounds for interval arithmetic. All results are
// clamped to [MinInterval, 2×MaxInterval].
type Config struct {
	MinInterval  time.Duration
	BaseInterval time.Duration
	MaxInterval  time.Duration
}

// DefaultConfig returns the standard interval bounds.
func DefaultConfig() Config {
	return Config{
		MinInterval:  2 * time.Minute,
		BaseInterval: 10 * time.Minute,
		MaxInterval:  30 * time.Minute,
	}
}

// ScheduleMode maps an hour of day (0-23) into the caller's work-pattern
// windows. Hours outside all windows default to ModeNormal, so the mapping
// is total over all 24 hours.
func ScheduleMode(hour int, pattern WorkPattern) Mode {
	switch {
	case pattern.HighFocus.Contains(hour):
		return ModeAggressive
	case pattern.Execution.Contains(hour):
		return ModeNormal
	case pattern.LowCognitive.Contains(hour):
		return ModeLow
	default:
		return ModeNormal
	}
}

// CalculateInterval returns the wake-up interval for the given mode and
// current active-action count:
//
//   - aggressive: the minimum interval, halved (floored) when more than 5
//     actions are active;
//   - normal: the base interval, collapsed to the minimum when more than 3
//     actions are active;
//   - low: the maximum interval;
//   - idle: double the maximum interval.
//
// The result is always clamped to [MinInterval, 2×MaxInterval].
func CalculateInterval(mode Mode, activeActions int, cfg Config) time.Duration {
	var interval time.Duration

	switch mode {
	case ModeAggressive:
		interval = cfg.MinInterval
		if activeActions > 5 {
			interval = cfg.MinInterval / 2
		}
	case ModeNormal:
		interval = cfg.BaseInterval
		if activeActions > 3 {
			interval = cfg.MinInterval
		}
	case ModeLow:
		interval = cfg.MaxInterval
	case ModeIdle:
		interval = 2 * cfg.MaxInterval
	default:
		interval = cfg.BaseInterval
	}

	if interval < cfg.MinInterval {
		interval = cfg.MinInterval
	}
	if max := 2 * cfg.MaxInterval; interval > max {
		interval = max
	}
	return interval
}

// Clock abstracts wall-clock access so loop cadence is testable with
// virtual time.
type Clock interface {
	Now() time.Time
}

// systemClock reads the real wall clock.
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return systemClock{} }

// Scheduler is the stateful wrapper around the pure scheduling core. State
// is per-process and ephemeral: it is recomputed every cycle and never
// persisted to the graph store.
type Scheduler struct {
	cfg     Config
	pattern WorkPattern
	clock   Clock

	mode                Mode
	interval            time.Duration
	lastRun             time.Time
	nextRun             time.Time
	consecutiveIdleRuns int
}

// New creates a scheduler with the given bounds and work pattern. A nil
// clock defaults to the system clock.
func New(cfg Config, pattern WorkPattern, clock Clock) *Scheduler {
	if clock == nil {
		clock = SystemClock()
	}
	return &Scheduler{cfg: cfg, pattern: pattern, clock: clock, mode: ModeNormal}
}

// NextInterval recomputes the current mode from the local hour and returns
// the interval until the next run. Three consecutive idle runs drop the
// scheduler into idle tempo regardless of the time of day.
func (s *Scheduler) NextInterval(activeActions int) time.Duration {
	now := s.clock.Now()
	s.mode = ScheduleMode(now.Hour(), s.pattern)
	if s.consecutiveIdleRuns >= 3 {
		s.mode = ModeIdle
	}
	s.interval = CalculateInterval(s.mode, activeActions, s.cfg)
	return s.interval
}

// MarkRun records a completed run: activity resets the idle-run counter,
// inactivity increments it, and nextRun advances by the current interval.
func (s *Scheduler) MarkRun(hadActivity bool) {
	if hadActivity {
		s.consecutiveIdleRuns = 0
	} else {
		s.consecutiveIdleRuns++
	}
	s.lastRun = s.clock.Now()
	if s.interval == 0 {
		s.interval = s.cfg.BaseInterval
	}
	s.nextRun = s.lastRun.Add(s.interval)
}

// ShouldRun reports whether the wall clock has reached nextRun. A scheduler
// that has never run is always due.
func (s *Scheduler) ShouldRun() bool {
	if s.nextRun.IsZero() {
		return true
	}
	return !s.clock.Now().Before(s.nextRun)
}

// Mode returns the most recently computed operating mode.
func (s *Scheduler) Mode() Mode {
	return s.mode
}

// ConsecutiveIdleRuns returns the current idle-run streak.
func (s *Scheduler) ConsecutiveIdleRuns() int {
	return s.consecutiveIdleRuns
}

// Nightly consolidation window: 02:00-02:05 local time.
const (
	nightlyHour      = 2
	nightlyWindowMin = 5
)

// NightlyWindow reports whether the local time is inside the fixed
// five-minute daily consolidation window. Nothing prevents a slow poll loop
// from observing the window more than once, or multiple processes from
// observing it simultaneously, so callers must be idempotent across it.
func (s *Scheduler) NightlyWindow() bool {
	now := s.clock.Now()
	return now.Hour() == nightlyHour && now.Minute() < nightlyWindowMin
}
