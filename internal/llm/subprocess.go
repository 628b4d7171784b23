package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// SubprocessClient invokes the reasoning service as a blocking subprocess:
// the prompt is written to stdin, the completion is read from stdout, and a
// non-zero exit status is a failure. Calls are wrapped with circuit-breaker
// protection and bounded by a per-attempt wall-clock timeout.
type SubprocessClient struct {
	command        string
	args           []string
	timeout        time.Duration
	circuitBreaker *CircuitBreaker
}

// SubprocessConfig holds subprocess client configuration.
type SubprocessConfig struct {
	// Command is the executable to invoke for each completion.
	Command string

	// Args are fixed arguments passed before the prompt is piped to stdin.
	Args []string

	// Timeout is the per-call wall-clock timeout (default: 10 minutes).
	Timeout time.Duration
}

// NewSubprocessClient creates a subprocess-backed reasoning client.
func NewSubprocessClient(config SubprocessConfig) (*SubprocessClient, error) {
	if config.Command == "" {
		return nil, errors.New("llm: subprocess command is required")
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Minute
	}

	return &SubprocessClient{
		command:        config.Command,
		args:           config.Args,
		timeout:        config.Timeout,
		circuitBreaker: NewCircuitBreaker(),
	}, nil
}

// Complete sends the prompt to the subprocess and returns its stdout.
func (c *SubprocessClient) Complete(ctx context.Context, prompt string) (string, error) {
	result, err := c.circuitBreaker.Execute(ctx, func() (interface{}, error) {
		return c.complete(ctx, prompt)
	})
	if err != nil {
		if errors.Is(err, ErrCircuitOpen) {
			return "", fmt.Errorf("reasoning circuit breaker open: %w", err)
		}
		return "", err
	}
	return result.(string), nil
}

func (c *SubprocessClient) complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.command, c.args...)
	cmd.Stdin = strings.NewReader(prompt)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("reasoning service timed out after %s", c.timeout)
		}
		// Fold stderr into the error so retry prompts can carry the real
		// failure text.
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return "", fmt.Errorf("reasoning service failed: %s", detail)
	}

	return stdout.String(), nil
}

// Compile-time assertion that SubprocessClient satisfies TextGenerator.
var _ TextGenerator = (*SubprocessClient)(nil)
