package safety

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os/exec"
	"strings"
	"time"
)

// Sentinel errors surfaced by the executor. Validation failures are
// synchronous and never retried.
var (
	ErrBlocked            = errors.New("command blocked by safety gate")
	ErrConfirmationDenied = errors.New("command confirmation denied")
)

// ConfirmFunc decides whether a dangerous command may run. It receives the
// command and the gate's verdict. A nil ConfirmFunc denies every dangerous
// command.
type ConfirmFunc func(command string, verdict Verdict) bool

// Result captures one command execution.
type Result struct {
	Command  string        `json:"command"`
	Verdict  Verdict       `json:"verdict"`
	Stdout   string        `json:"stdout,omitempty"`
	Stderr   string        `json:"stderr,omitempty"`
	ExitCode int           `json:"exit_code"`
	Attempts int           `json:"attempts"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// Success reports whether the command ran and exited zero.
func (r *Result) Success() bool {
	return r.Err == nil && r.ExitCode == 0
}

// Executor runs commands that pass the gate.
type Executor struct {
	gate    *Gate
	confirm ConfirmFunc

	// ShellPath is the shell used for execution. Defaults to /bin/sh.
	ShellPath string
}

// NewExecutor creates an executor over the given gate. confirm may be nil,
// in which case dangerous commands are always denied.
func NewExecutor(gate *Gate, confirm ConfirmFunc) *Executor {
	return &Executor{gate: gate, confirm: confirm, ShellPath: "/bin/sh"}
}

// Execute validates the command, resolves confirmation if required, then
// runs it via the shell and captures stdout, stderr and the exit status.
func (e *Executor) Execute(ctx context.Context, command string) *Result {
	verdict := e.gate.ValidateCommand(command)
	result := &Result{Command: command, Verdict: verdict, Attempts: 1}

	if verdict.Tier == TierBlocked {
		result.Err = fmt.Errorf("%w: %s", ErrBlocked, verdict.Reason)
		result.ExitCode = -1
		return result
	}
	if verdict.RequiresConfirmation {
		if e.confirm == nil || !e.confirm(command, verdict) {
			result.Err = fmt.Errorf("%w: %s", ErrConfirmationDenied, verdict.Reason)
			result.ExitCode = -1
			return result
		}
	}

	start := time.Now()
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.shell(), "-c", command)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result.Duration = time.Since(start)
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			result.Err = fmt.Errorf("command exited %d: %s", result.ExitCode, firstLine(result.Stderr))
		} else {
			result.ExitCode = -1
			result.Err = fmt.Errorf("command failed to run: %w", err)
		}
	}
	return result
}

// RetryOptions bounds ExecuteWithRetry.
type RetryOptions struct {
	// MaxAttempts is the total number of attempts (default: 3).
	MaxAttempts int

	// Delay is the base backoff; attempt N waits N×Delay before retrying
	// (default: 1s).
	Delay time.Duration
}

// ExecuteWithRetry re-runs a failing command with linear backoff. Validation
// failures (blocked, confirmation denied) are terminal and never retried.
// The returned result carries the true number of attempts taken.
func (e *Executor) ExecuteWithRetry(ctx context.Context, command string, opts RetryOptions) *Result {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 3
	}
	if opts.Delay <= 0 {
		opts.Delay = time.Second
	}

	var result *Result
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		if attempt > 1 {
			backoff := time.Duration(attempt) * opts.Delay
			log.Printf("[safety] retrying in %v (attempt %d/%d): %s", backoff, attempt, opts.MaxAttempts, command)
			select {
			case <-ctx.Done():
				result.Err = fmt.Errorf("retry aborted: %w", ctx.Err())
				return result
			case <-time.After(backoff):
			}
		}

		result = e.Execute(ctx, command)
		result.Attempts = attempt
		if result.Success() {
			return result
		}
		if errors.Is(result.Err, ErrBlocked) || errors.Is(result.Err, ErrConfirmationDenied) {
			return result
		}
	}
	return result
}

// BatchOptions configures ExecuteBatch.
type BatchOptions struct {
	// ContinueOnError keeps running later commands after a failure instead
	// of stopping at the first one.
	ContinueOnError bool
}

// ExecuteBatch runs commands sequentially. By default it stops at the first
// failure; commands after the stop are not executed and produce no result.
func (e *Executor) ExecuteBatch(ctx context.Context, commands []string, opts BatchOptions) []*Result {
	results := make([]*Result, 0, len(commands))
	for _, command := range commands {
		r := e.Execute(ctx, command)
		results = append(results, r)
		if !r.Success() && !opts.ContinueOnError {
			break
		}
	}
	return results
}

func (e *Executor) shell() string {
	if e.ShellPath != "" {
		return e.ShellPath
	}
	return "/bin/sh"
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
