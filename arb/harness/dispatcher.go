package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	ports "github.com/ZanzyTHEbar/agentre-bench/arb/harness/ports"
	"github.com/ZanzyTHEbar/agentre-bench/arb/harness/tools"
	"github.com/ZanzyTHEbar/agentre-bench/arb/sandbox"
)

// Outcome is the result of one dispatched tool call. A terminal submission
// carries the verdict; everything else carries model-visible text.
type Outcome struct {
	IsFinal   bool
	Verdict   json.RawMessage
	Content   string
	IsError   bool
	ExitCode  int
	TimedOut  bool
	Truncated bool
}

// Dispatcher routes requested tool calls to sandboxed commands. The
// submission tool is recognized here and never reaches the runner.
type Dispatcher struct {
	registry *tools.Registry
	paths    *sandbox.PathValidator
	runner   sandbox.Runner
	logger   zerolog.Logger
}

func NewDispatcher(registry *tools.Registry, paths *sandbox.PathValidator, runner sandbox.Runner, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		paths:    paths,
		runner:   runner,
		logger:   logger,
	}
}

// Dispatch executes one tool call. Disallowed tools, bad arguments and
// sandbox violations come back as error outcomes the model can react to;
// only a broken runner returns an error and aborts the run.
func (d *Dispatcher) Dispatch(ctx context.Context, call ports.ToolCall) (*Outcome, error) {
	if call.Name == tools.FinalAnswerName {
		return &Outcome{IsFinal: true, Verdict: call.Input}, nil
	}

	tool, ok := d.registry.Lookup(call.Name)
	if !ok {
		return errorOutcome(fmt.Sprintf("Tool %q is not allowed.", call.Name)), nil
	}

	target, err := d.resolveTarget(call.Input)
	if err != nil {
		return errorOutcome(err.Error()), nil
	}

	argv, err := tool.BuildArgv(call.Input, target)
	if err != nil {
		return errorOutcome(err.Error()), nil
	}

	res, err := d.runner.Run(ctx, argv)
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", call.Name, err)
	}

	d.logger.Debug().
		Str("tool", call.Name).
		Int("exit_code", res.ExitCode).
		Bool("timed_out", res.TimedOut).
		Dur("duration", res.Duration).
		Msg("tool executed")

	return &Outcome{
		Content:   formatResult(res),
		ExitCode:  res.ExitCode,
		TimedOut:  res.TimedOut,
		Truncated: res.StdoutTruncated || res.StderrTruncated,
	}, nil
}

// Specs returns the tool declarations offered to the model, submission
// tool last.
func (d *Dispatcher) Specs() []ports.ToolSpec {
	return d.registry.Specs()
}

// resolveTarget pulls the path argument, strips the sandbox mount prefix
// and validates containment before the value is embedded in any argv.
// Models phrase paths either relative to the mount ("/workspace/x") or to
// the workspace root ("x"); both resolve identically.
func (d *Dispatcher) resolveTarget(args json.RawMessage) (string, error) {
	var params struct {
		Path string `json:"path"`
	}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &params); err != nil {
			return "", fmt.Errorf("invalid arguments: %w", err)
		}
	}

	clean := params.Path
	if strings.HasPrefix(clean, sandbox.WorkspaceMount+"/") {
		clean = clean[len(sandbox.WorkspaceMount)+1:]
	} else if strings.HasPrefix(clean, sandbox.WorkspaceMount) {
		clean = clean[len(sandbox.WorkspaceMount):]
	}

	resolved, err := d.paths.Validate(clean)
	if err != nil {
		return "", err
	}
	return d.runner.PathFor(resolved), nil
}

func errorOutcome(msg string) *Outcome {
	return &Outcome{IsError: true, Content: msg}
}

// formatResult renders a run result as model-visible text. Timeout and
// truncation appear inline since tool-result content is the model's only
// return channel.
func formatResult(res *sandbox.RunResult) string {
	var parts []string
	if res.Stdout != "" {
		parts = append(parts, res.Stdout)
	}
	if res.Stderr != "" {
		parts = append(parts, "[stderr] "+res.Stderr)
	}
	if res.TimedOut {
		parts = append(parts, "[timed out]")
	}
	if res.StdoutTruncated || res.StderrTruncated {
		parts = append(parts, "[output was truncated]")
	}
	if len(parts) == 0 {
		return "(no output)"
	}
	return strings.Join(parts, "\n")
}
