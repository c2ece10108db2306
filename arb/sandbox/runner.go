package sandbox

import (
	"context"
	"time"
)

// WorkspaceMount is where the dockerised runner exposes the workspace
// inside the container. Model-produced paths carrying this prefix are
// normalised back to workspace-relative form before validation.
const WorkspaceMount = "/workspace"

// TruncationMarker is appended to any captured stream that hit the
// per-stream output cap.
const TruncationMarker = "\n... [output truncated]"

const (
	DefaultTimeout        = 30 * time.Second
	DefaultMaxOutputChars = 50000
)

// RunResult captures everything a single tool execution produced. The
// exit code reflects the process outcome regardless of truncation.
type RunResult struct {
	Stdout          string
	Stderr          string
	ExitCode        int
	TimedOut        bool
	StdoutTruncated bool
	StderrTruncated bool
	Duration        time.Duration
}

// Runner executes one fixed argv and returns its captured output. The
// argv is exec'd directly, never interpreted by a shell. On timeout the
// child is terminated and whatever output was buffered comes back with
// the timed-out flag set.
type Runner interface {
	Run(ctx context.Context, argv []string) (*RunResult, error)

	// PathFor renders a validated absolute workspace path the way the
	// executed command must address it.
	PathFor(resolved string) string

	// Timeout reports the per-command wall clock limit.
	Timeout() time.Duration
}

// Options carries runner construction settings. Zero fields fall back to
// package defaults.
type Options struct {
	Image          string
	Platform       string
	Memory         string
	CPUs           string
	Timeout        time.Duration
	MaxOutputChars int
}

func (o Options) withDefaults() Options {
	if o.Image == "" {
		o.Image = "agentre-bench-tools:latest"
	}
	if o.Platform == "" {
		o.Platform = "linux/amd64"
	}
	if o.Memory == "" {
		o.Memory = "512m"
	}
	if o.CPUs == "" {
		o.CPUs = "1"
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MaxOutputChars <= 0 {
		o.MaxOutputChars = DefaultMaxOutputChars
	}
	return o
}

// NewRunner builds the runner matching the isolation mode.
func NewRunner(useDocker bool, workspace string, opts Options) (Runner, error) {
	if useDocker {
		return NewDockerRunner(workspace, opts)
	}
	return NewSubprocessRunner(workspace, opts)
}

func truncate(s string, limit int) (string, bool) {
	if limit <= 0 || len(s) <= limit {
		return s, false
	}
	return s[:limit] + TruncationMarker, true
}
