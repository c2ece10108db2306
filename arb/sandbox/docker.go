package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// DockerRunner executes tools inside a locked down container: no network,
// read-only root, capped memory and CPU, with the workspace mounted
// read-only at WorkspaceMount.
type DockerRunner struct {
	workspace string
	image     string
	platform  string
	memory    string
	cpus      string
	timeout   time.Duration
	maxOutput int
}

func NewDockerRunner(workspace string, opts Options) (*DockerRunner, error) {
	abs, err := filepath.Abs(workspace)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace: %w", err)
	}
	opts = opts.withDefaults()
	return &DockerRunner{
		workspace: abs,
		image:     opts.Image,
		platform:  opts.Platform,
		memory:    opts.Memory,
		cpus:      opts.CPUs,
		timeout:   opts.Timeout,
		maxOutput: opts.MaxOutputChars,
	}, nil
}

func (r *DockerRunner) commandArgs(argv []string) []string {
	args := []string{
		"run", "--rm",
		"--platform", r.platform,
		"--network=none",
		"--read-only",
		"--memory=" + r.memory,
		"--cpus=" + r.cpus,
		"-v", r.workspace + ":" + WorkspaceMount + ":ro",
		"-w", WorkspaceMount,
		r.image,
	}
	return append(args, argv...)
}

func (r *DockerRunner) Run(ctx context.Context, argv []string) (*RunResult, error) {
	if len(argv) == 0 {
		return nil, errors.New("empty command")
	}

	execCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, "docker", r.commandArgs(argv)...)

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
		if !errors.As(runErr, &exitErr) {
			// The docker client itself failed to start.
			return nil, fmt.Errorf("docker unavailable: %w", runErr)
		}
		result.ExitCode = exitErr.ExitCode()
	}

	return result, nil
}

// PathFor maps a validated host path to its in-container location.
func (r *DockerRunner) PathFor(resolved string) string {
	rel, err := filepath.Rel(r.workspace, resolved)
	if err != nil || strings.HasPrefix(rel, "..") {
		return resolved
	}
	return path.Join(WorkspaceMount, filepath.ToSlash(rel))
}

func (r *DockerRunner) Timeout() time.Duration { return r.timeout }

var _ Runner = (*DockerRunner)(nil)
