package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"time"
)

// SubprocessRunner executes tools directly on the host with the workspace
// as the working directory. It trades the container's isolation for zero
// setup and is meant for trusted samples and CI.
type SubprocessRunner struct {
	workspace string
	timeout   time.Duration
	maxOutput int
}

func NewSubprocessRunner(workspace string, opts Options) (*SubprocessRunner, error) {
	abs, err := filepath.Abs(workspace)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace: %w", err)
	}
	opts = opts.withDefaults()
	return &SubprocessRunner{
		workspace: abs,
		timeout:   opts.Timeout,
		maxOutput: opts.MaxOutputChars,
	}, nil
}

func (r *SubprocessRunner) Run(ctx context.Context, argv []string) (*RunResult, error) {
	if len(argv) == 0 {
		return nil, errors.New("empty command")
	}

	execCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, argv[0], argv[1:]...)
	cmd.Dir = r.workspace

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &RunResult{Duration: time.Since(start)}
	result.Stdout, result.StdoutTruncated = truncate(stdout.String(), r.maxOutput)
	result.Stderr, result.StderrTruncated = truncate(stderr.String(), r.maxOutput)

	switch {
	case execCtx.Err() == context.DeadlineExceeded:
		result.TimedOut = true
		result.ExitCode = -1
	case runErr == nil:
		result.ExitCode = 0
	default:
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			// The process never started, most often a missing binary.
			result.ExitCode = 127
			result.Stderr = fmt.Sprintf("command failed to start: %s: %v", argv[0], runErr)
		}
	}

	return result, nil
}

func (r *SubprocessRunner) PathFor(resolved string) string { return resolved }

func (r *SubprocessRunner) Timeout() time.Duration { return r.timeout }

var _ Runner = (*SubprocessRunner)(nil)
