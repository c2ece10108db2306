package sandbox

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubprocessRunnerCapturesOutput(t *testing.T) {
	r, err := NewSubprocessRunner(t.TempDir(), Options{})
	require.NoError(t, err)

	res, err := r.Run(context.Background(), []string{"sh", "-c", "echo out; echo err 1>&2; exit 3"})
	require.NoError(t, err)

	assert.Equal(t, "out\n", res.Stdout)
	assert.Equal(t, "err\n", res.Stderr)
	assert.Equal(t, 3, res.ExitCode)
	assert.False(t, res.TimedOut)
	assert.False(t, res.StdoutTruncated)
	assert.False(t, res.StderrTruncated)
}

func TestSubprocessRunnerZeroExit(t *testing.T) {
	r, err := NewSubprocessRunner(t.TempDir(), Options{})
	require.NoError(t, err)

	res, err := r.Run(context.Background(), []string{"echo", "hello"})
	require.NoError(t, err)

	assert.Equal(t, "hello\n", res.Stdout)
	assert.Equal(t, 0, res.ExitCode)
}

func TestSubprocessRunnerTimeoutKeepsPartialOutput(t *testing.T) {
	r, err := NewSubprocessRunner(t.TempDir(), Options{Timeout: 200 * time.Millisecond})
	require.NoError(t, err)

	res, err := r.Run(context.Background(), []string{"sh", "-c", "echo started; sleep 5"})
	require.NoError(t, err)

	assert.True(t, res.TimedOut)
	assert.Equal(t, -1, res.ExitCode)
	assert.Contains(t, res.Stdout, "started")
}

func TestSubprocessRunnerTruncatesStreams(t *testing.T) {
	r, err := NewSubprocessRunner(t.TempDir(), Options{MaxOutputChars: 64})
	require.NoError(t, err)

	res, err := r.Run(context.Background(), []string{"sh", "-c", "yes a | head -c 500"})
	require.NoError(t, err)

	assert.True(t, res.StdoutTruncated)
	assert.True(t, strings.HasSuffix(res.Stdout, TruncationMarker))
	assert.Len(t, res.Stdout, 64+len(TruncationMarker))
	// Truncation never rewrites the process outcome.
	assert.Equal(t, 0, res.ExitCode)
	assert.False(t, res.StderrTruncated)
}

func TestSubprocessRunnerCommandNotFound(t *testing.T) {
	r, err := NewSubprocessRunner(t.TempDir(), Options{})
	require.NoError(t, err)

	res, err := r.Run(context.Background(), []string{"definitely-not-a-real-tool-zzz"})
	require.NoError(t, err)

	assert.Equal(t, 127, res.ExitCode)
	assert.Contains(t, res.Stderr, "failed to start")
}

func TestSubprocessRunnerCanceledContext(t *testing.T) {
	r, err := NewSubprocessRunner(t.TempDir(), Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = r.Run(ctx, []string{"echo", "hello"})
	assert.Error(t, err)
}

func TestSubprocessRunnerEmptyArgv(t *testing.T) {
	r, err := NewSubprocessRunner(t.TempDir(), Options{})
	require.NoError(t, err)

	_, err = r.Run(context.Background(), nil)
	assert.Error(t, err)
}

func TestDockerRunnerCommandArgs(t *testing.T) {
	ws := t.TempDir()
	r, err := NewDockerRunner(ws, Options{Image: "re-tools:2", Memory: "256m", CPUs: "2"})
	require.NoError(t, err)

	args := r.commandArgs([]string{"file", "/workspace/sample.bin"})

	wsAbs, err := filepath.Abs(ws)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"run", "--rm",
		"--platform", "linux/amd64",
		"--network=none",
		"--read-only",
		"--memory=256m",
		"--cpus=2",
		"-v", wsAbs + ":" + WorkspaceMount + ":ro",
		"-w", WorkspaceMount,
		"re-tools:2",
		"file", "/workspace/sample.bin",
	}, args)
}

func TestDockerRunnerPathFor(t *testing.T) {
	ws := t.TempDir()
	r, err := NewDockerRunner(ws, Options{})
	require.NoError(t, err)

	wsAbs, err := filepath.Abs(ws)
	require.NoError(t, err)

	assert.Equal(t, "/workspace/sample.bin", r.PathFor(filepath.Join(wsAbs, "sample.bin")))
	assert.Equal(t, "/workspace/nested/x", r.PathFor(filepath.Join(wsAbs, "nested", "x")))
	assert.Equal(t, WorkspaceMount, r.PathFor(wsAbs))

	// Paths outside the workspace come back untouched.
	assert.Equal(t, "/etc/passwd", r.PathFor("/etc/passwd"))
}

func TestSubprocessRunnerPathFor(t *testing.T) {
	r, err := NewSubprocessRunner(t.TempDir(), Options{})
	require.NoError(t, err)

	assert.Equal(t, "/some/where/bin", r.PathFor("/some/where/bin"))
}

func TestNewRunnerSelectsImplementation(t *testing.T) {
	ws := t.TempDir()

	local, err := NewRunner(false, ws, Options{})
	require.NoError(t, err)
	assert.IsType(t, (*SubprocessRunner)(nil), local)

	docker, err := NewRunner(true, ws, Options{})
	require.NoError(t, err)
	assert.IsType(t, (*DockerRunner)(nil), docker)
}

func TestTruncate(t *testing.T) {
	s, cut := truncate("short", 100)
	assert.Equal(t, "short", s)
	assert.False(t, cut)

	s, cut = truncate("abcdefgh", 4)
	assert.True(t, cut)
	assert.Equal(t, "abcd"+TruncationMarker, s)

	s, cut = truncate("anything", 0)
	assert.Equal(t, "anything", s)
	assert.False(t, cut)
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{}.withDefaults()

	assert.Equal(t, DefaultTimeout, o.Timeout)
	assert.Equal(t, DefaultMaxOutputChars, o.MaxOutputChars)
	assert.Equal(t, "linux/amd64", o.Platform)
	assert.NotEmpty(t, o.Image)
	assert.NotEmpty(t, o.Memory)
	assert.NotEmpty(t, o.CPUs)
}
