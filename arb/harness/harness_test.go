package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ports "github.com/ZanzyTHEbar/agentre-bench/arb/harness/ports"
	"github.com/ZanzyTHEbar/agentre-bench/arb/harness/tools"
	"github.com/ZanzyTHEbar/agentre-bench/arb/sandbox"
)

// stubProvider implements ports.Provider for testing.
type stubProvider struct {
	sendFunc func(ctx context.Context, req ports.Request) (*ports.Response, error)
	requests []ports.Request
	calls    int
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Send(ctx context.Context, req ports.Request) (*ports.Response, error) {
	p.requests = append(p.requests, req)
	p.calls++
	if p.sendFunc != nil {
		return p.sendFunc(ctx, req)
	}
	return &ports.Response{StopReason: ports.StopEndTurn}, nil
}

var _ ports.Provider = (*stubProvider)(nil)

// scriptedProvider replays responses in order, repeating the last one.
func scriptedProvider(responses ...*ports.Response) *stubProvider {
	p := &stubProvider{}
	i := 0
	p.sendFunc = func(ctx context.Context, req ports.Request) (*ports.Response, error) {
		r := responses[min(i, len(responses)-1)]
		i++
		return r, nil
	}
	return p
}

func toolUseResponse(text string, calls ...ports.ToolCall) *ports.Response {
	return &ports.Response{StopReason: ports.StopToolUse, Text: text, ToolCalls: calls}
}

func endTurnResponse(text string) *ports.Response {
	return &ports.Response{StopReason: ports.StopEndTurn, Text: text}
}

const testVerdict = `{"file_type": "ELF64", "encoded_strings": true, "decoded_c2": "10.0.0.1:4444", "techniques": ["xor_encoding"], "c2_protocol": "TCP"}`

func finalAnswerCall(id string) ports.ToolCall {
	return ports.ToolCall{ID: id, Name: tools.FinalAnswerName, Input: json.RawMessage(testVerdict)}
}

func fileCall(id, path string) ports.ToolCall {
	return ports.ToolCall{ID: id, Name: "file", Input: json.RawMessage(fmt.Sprintf(`{"path": %q}`, path))}
}

func newTestController(t *testing.T, provider ports.Provider, runner sandbox.Runner, policy *Policy) (*Controller, string) {
	t.Helper()
	d, root := newTestDispatcher(t, runner)
	return NewController(provider, d, policy, noOpTracer{}, zerolog.New(zerolog.Nop())), root
}

// countTextBlocks counts text blocks in the transcript whose content has
// the given prefix.
func countTextBlocks(turns []ports.Turn, prefix string) int {
	n := 0
	for _, turn := range turns {
		for _, b := range turn.Blocks {
			if b.Type == ports.BlockText && strings.HasPrefix(b.Text, prefix) {
				n++
			}
		}
	}
	return n
}

// TestControllerRun_InvestigateThenSubmit tests the standard two-turn run:
// one investigation call, then a submission.
func TestControllerRun_InvestigateThenSubmit(t *testing.T) {
	provider := scriptedProvider(
		toolUseResponse("Let me inspect the file.", fileCall("toolu_01", "sample.bin")),
		toolUseResponse("", finalAnswerCall("toolu_02")),
	)
	provider.sendFunc = withUsage(provider.sendFunc, ports.Usage{InputTokens: 100, OutputTokens: 40})
	runner := &stubRunner{result: &sandbox.RunResult{Stdout: "ELF 64-bit LSB executable"}}
	c, _ := newTestController(t, provider, runner, nil)

	record, err := c.Run(context.Background(), "task_01", "system prompt")
	require.NoError(t, err)

	assert.True(t, record.HasValidAnswer)
	assert.JSONEq(t, testVerdict, string(record.FinalAnswer))
	assert.Equal(t, "task_01", record.TaskID)
	assert.Equal(t, 2, record.ToolCallCount)
	assert.Equal(t, map[string]int{"file": 1, tools.FinalAnswerName: 1}, record.ToolCallsByType)
	assert.False(t, record.MaxStepsHit)
	assert.Empty(t, record.BackendError)
	assert.Zero(t, record.InvalidToolCalls)
	assert.Zero(t, record.InvalidJSONAttempts)
	assert.Zero(t, record.RedundantToolCalls)
	assert.Equal(t, 200, record.InputTokens)
	assert.Equal(t, 80, record.OutputTokens)
	assert.Equal(t, 280, record.TotalTokens)

	require.Len(t, record.ToolCallsLog, 2)
	assert.Equal(t, 1, record.ToolCallsLog[0].CallNumber)
	assert.Equal(t, "file", record.ToolCallsLog[0].Tool)
	assert.Equal(t, "ELF 64-bit LSB executable", record.ToolCallsLog[0].OutputPreview)
	assert.Equal(t, 2, record.ToolCallsLog[1].CallNumber)
	assert.True(t, record.ToolCallsLog[1].IsFinalAnswer)

	// Initial instruction, assistant tool turn, results turn, submission
	// turn. No results turn follows the submission.
	require.Len(t, record.Transcript, 4)
	assert.Equal(t, ports.RoleUser, record.Transcript[0].Role)
	assert.Equal(t, initialInstruction, record.Transcript[0].Blocks[0].Text)
	assert.Equal(t, ports.RoleAssistant, record.Transcript[1].Role)
	assert.Equal(t, ports.BlockToolResult, record.Transcript[2].Blocks[0].Type)
	assert.Equal(t, "toolu_01", record.Transcript[2].Blocks[0].ToolUseID)
	last := record.Transcript[3]
	assert.Equal(t, ports.RoleAssistant, last.Role)
	assert.Equal(t, tools.FinalAnswerName, last.Blocks[len(last.Blocks)-1].Name)

	assert.Equal(t, 2, provider.calls)
	assert.Equal(t, "system prompt", provider.requests[0].System)
	specs := provider.requests[0].Tools
	require.NotEmpty(t, specs)
	assert.Equal(t, tools.FinalAnswerName, specs[len(specs)-1].Name)
}

// withUsage layers fixed token usage onto every scripted response.
func withUsage(inner func(context.Context, ports.Request) (*ports.Response, error), usage ports.Usage) func(context.Context, ports.Request) (*ports.Response, error) {
	return func(ctx context.Context, req ports.Request) (*ports.Response, error) {
		resp, err := inner(ctx, req)
		if resp != nil {
			r := *resp
			r.Usage = usage
			return &r, err
		}
		return resp, err
	}
}

// TestControllerRun_SalvagesFencedVerdict tests recovery of a verdict the
// model emitted as fenced text instead of a tool call.
func TestControllerRun_SalvagesFencedVerdict(t *testing.T) {
	provider := scriptedProvider(endTurnResponse("Here is my analysis:\n```json\n" + testVerdict + "\n```"))
	runner := &stubRunner{}
	c, _ := newTestController(t, provider, runner, nil)

	record, err := c.Run(context.Background(), "task_01", "system prompt")
	require.NoError(t, err)

	assert.True(t, record.HasValidAnswer)
	assert.JSONEq(t, testVerdict, string(record.FinalAnswer))
	assert.Zero(t, record.ToolCallCount)
	assert.Zero(t, record.InvalidJSONAttempts)
	assert.Zero(t, runner.runCount)
	assert.Equal(t, 1, provider.calls)
}

// TestControllerRun_NudgesUnparseableText tests that plain prose draws a
// submission nudge and counts as a malformed attempt.
func TestControllerRun_NudgesUnparseableText(t *testing.T) {
	provider := scriptedProvider(
		endTurnResponse("I believe this is a dropper."),
		toolUseResponse("", finalAnswerCall("toolu_01")),
	)
	c, _ := newTestController(t, provider, &stubRunner{}, nil)

	record, err := c.Run(context.Background(), "task_01", "system prompt")
	require.NoError(t, err)

	assert.True(t, record.HasValidAnswer)
	assert.Equal(t, 1, record.InvalidJSONAttempts)
	assert.Equal(t, 2, provider.calls)

	// Initial, assistant prose, nudge, submission turn.
	require.Len(t, record.Transcript, 4)
	assert.Equal(t, "I believe this is a dropper.", record.Transcript[1].Blocks[0].Text)
	assert.Equal(t, nudgeSubmit, record.Transcript[2].Blocks[0].Text)
}

// TestControllerRun_BudgetExhaustion tests that a run investigating one
// call per turn ends without a verdict once the budget is spent.
func TestControllerRun_BudgetExhaustion(t *testing.T) {
	provider := &stubProvider{}
	provider.sendFunc = func(ctx context.Context, req ports.Request) (*ports.Response, error) {
		id := fmt.Sprintf("toolu_%02d", provider.calls)
		return toolUseResponse("", fileCall(id, "sample.bin")), nil
	}
	runner := &stubRunner{}
	policy := &Policy{MaxToolCalls: 3, MaxTokens: 1024, WarnRemaining: 5, CriticalRemaining: 2, MaxIterations: 50}
	c, _ := newTestController(t, provider, runner, policy)

	record, err := c.Run(context.Background(), "task_01", "system prompt")
	require.NoError(t, err)

	assert.True(t, record.MaxStepsHit)
	assert.False(t, record.HasValidAnswer)
	assert.Nil(t, record.FinalAnswer)
	assert.Equal(t, 3, record.ToolCallCount)
	assert.Equal(t, 3, runner.runCount)
	assert.Equal(t, 3, provider.calls)
}

// TestControllerRun_BackendErrorEndsRun tests that a provider failure on
// the first request ends the run with zero actions and the error recorded.
func TestControllerRun_BackendErrorEndsRun(t *testing.T) {
	provider := &stubProvider{
		sendFunc: func(ctx context.Context, req ports.Request) (*ports.Response, error) {
			return nil, errors.New("connection refused")
		},
	}
	runner := &stubRunner{}
	c, _ := newTestController(t, provider, runner, nil)

	record, err := c.Run(context.Background(), "task_01", "system prompt")
	require.NoError(t, err)

	assert.Equal(t, 1, provider.calls)
	assert.Zero(t, record.ToolCallCount)
	assert.Zero(t, runner.runCount)
	assert.False(t, record.HasValidAnswer)
	assert.False(t, record.MaxStepsHit)
	assert.Contains(t, record.BackendError, "connection refused")
	require.Len(t, record.Transcript, 1)
}

// TestControllerRun_WarningsExactlyOnce tests that each budget warning
// appears once, at its threshold, and never again.
func TestControllerRun_WarningsExactlyOnce(t *testing.T) {
	provider := &stubProvider{}
	provider.sendFunc = func(ctx context.Context, req ports.Request) (*ports.Response, error) {
		id := fmt.Sprintf("toolu_%02d", provider.calls)
		return toolUseResponse("", fileCall(id, "sample.bin")), nil
	}
	policy := &Policy{MaxToolCalls: 7, MaxTokens: 1024, WarnRemaining: 5, CriticalRemaining: 2, MaxIterations: 50}
	c, _ := newTestController(t, provider, &stubRunner{}, policy)

	record, err := c.Run(context.Background(), "task_01", "system prompt")
	require.NoError(t, err)

	assert.True(t, record.MaxStepsHit)
	assert.Equal(t, 7, record.ToolCallCount)
	assert.Equal(t, 1, countTextBlocks(record.Transcript, "IMPORTANT:"))
	assert.Equal(t, 1, countTextBlocks(record.Transcript, "CRITICAL:"))

	// The low warning lands right after the results turn that left 5 calls.
	wantLow := fmt.Sprintf(warnLowTemplate, 5)
	wantCritical := fmt.Sprintf(warnCriticalTemplate, 2)
	assert.Equal(t, 1, countTextBlocks(record.Transcript, wantLow))
	assert.Equal(t, 1, countTextBlocks(record.Transcript, wantCritical))
}

// TestControllerRun_ViolationSpendsBudget tests that a rejected path costs
// budget and surfaces as an error result without spawning anything.
func TestControllerRun_ViolationSpendsBudget(t *testing.T) {
	provider := scriptedProvider(
		toolUseResponse("", fileCall("toolu_01", "../../../etc/passwd")),
		toolUseResponse("", finalAnswerCall("toolu_02")),
	)
	runner := &stubRunner{}
	c, _ := newTestController(t, provider, runner, nil)

	record, err := c.Run(context.Background(), "task_01", "system prompt")
	require.NoError(t, err)

	assert.Zero(t, runner.runCount)
	assert.Equal(t, 2, record.ToolCallCount)
	assert.Equal(t, 1, record.InvalidToolCalls)
	require.Len(t, record.ToolCallsLog, 2)
	assert.True(t, strings.HasPrefix(record.ToolCallsLog[0].OutputPreview, "Error: "), "preview %q", record.ToolCallsLog[0].OutputPreview)

	results := record.Transcript[2]
	require.Equal(t, ports.BlockToolResult, results.Blocks[0].Type)
	assert.Contains(t, results.Blocks[0].Content, "Error: ")
}

// TestControllerRun_SubmissionDropsRemainingRequests tests that calls
// requested after a submission in the same turn never run.
func TestControllerRun_SubmissionDropsRemainingRequests(t *testing.T) {
	provider := scriptedProvider(toolUseResponse("",
		fileCall("toolu_01", "sample.bin"),
		finalAnswerCall("toolu_02"),
		fileCall("toolu_03", "sample.bin"),
	))
	runner := &stubRunner{}
	c, _ := newTestController(t, provider, runner, nil)

	record, err := c.Run(context.Background(), "task_01", "system prompt")
	require.NoError(t, err)

	assert.True(t, record.HasValidAnswer)
	assert.Equal(t, 1, runner.runCount)
	assert.Equal(t, 2, record.ToolCallCount)
	require.Len(t, record.ToolCallsLog, 2)

	// The run ends at submission; the pending results turn is dropped.
	require.Len(t, record.Transcript, 2)
	assert.Equal(t, ports.RoleAssistant, record.Transcript[1].Role)
}

// TestControllerRun_BudgetGateDropsRemainingRequests tests the per-call
// budget gate inside a single multi-call turn.
func TestControllerRun_BudgetGateDropsRemainingRequests(t *testing.T) {
	provider := scriptedProvider(toolUseResponse("",
		fileCall("toolu_01", "sample.bin"),
		fileCall("toolu_02", "sample.bin"),
		fileCall("toolu_03", "sample.bin"),
	))
	runner := &stubRunner{}
	policy := &Policy{MaxToolCalls: 2, MaxTokens: 1024, WarnRemaining: 5, CriticalRemaining: 2, MaxIterations: 50}
	c, _ := newTestController(t, provider, runner, policy)

	record, err := c.Run(context.Background(), "task_01", "system prompt")
	require.NoError(t, err)

	assert.Equal(t, 2, runner.runCount)
	assert.Equal(t, 2, record.ToolCallCount)
	assert.True(t, record.MaxStepsHit)
	assert.Equal(t, 1, provider.calls)

	results := record.Transcript[2]
	assert.Len(t, results.Blocks, 2)
}

// TestControllerRun_MaxTokensContinueNudge tests that a length-truncated
// reply is kept as partial assistant text and the model is told to
// continue.
func TestControllerRun_MaxTokensContinueNudge(t *testing.T) {
	provider := scriptedProvider(
		&ports.Response{StopReason: ports.StopMaxTokens, Text: "The binary contains"},
		toolUseResponse("", finalAnswerCall("toolu_01")),
	)
	c, _ := newTestController(t, provider, &stubRunner{}, nil)

	record, err := c.Run(context.Background(), "task_01", "system prompt")
	require.NoError(t, err)

	assert.True(t, record.HasValidAnswer)
	require.Len(t, record.Transcript, 4)
	assert.Equal(t, "The binary contains", record.Transcript[1].Blocks[0].Text)
	assert.Equal(t, nudgeContinue, record.Transcript[2].Blocks[0].Text)
}

// TestControllerRun_UnexpectedStopEndsRun tests the defensive exit on an
// unknown stop reason.
func TestControllerRun_UnexpectedStopEndsRun(t *testing.T) {
	provider := scriptedProvider(&ports.Response{StopReason: ports.StopOther})
	c, _ := newTestController(t, provider, &stubRunner{}, nil)

	record, err := c.Run(context.Background(), "task_01", "system prompt")
	require.NoError(t, err)

	assert.Equal(t, 1, provider.calls)
	assert.False(t, record.HasValidAnswer)
	assert.False(t, record.MaxStepsHit)
}

// TestControllerRun_IterationLimit tests that nudge loops cannot spin
// forever when no budget is ever spent.
func TestControllerRun_IterationLimit(t *testing.T) {
	provider := scriptedProvider(endTurnResponse("Working on it."))
	policy := &Policy{MaxToolCalls: 25, MaxTokens: 1024, WarnRemaining: 5, CriticalRemaining: 2, MaxIterations: 4}
	c, _ := newTestController(t, provider, &stubRunner{}, policy)

	record, err := c.Run(context.Background(), "task_01", "system prompt")
	require.NoError(t, err)

	assert.Equal(t, 4, provider.calls)
	assert.Equal(t, 4, record.InvalidJSONAttempts)
	assert.False(t, record.HasValidAnswer)
	assert.False(t, record.MaxStepsHit)
}

// TestControllerRun_RedundantCallsTallied tests that repeat calls are
// counted regardless of argument key order.
func TestControllerRun_RedundantCallsTallied(t *testing.T) {
	first := ports.ToolCall{ID: "toolu_01", Name: "hexdump", Input: json.RawMessage(`{"path": "sample.bin", "offset": 0}`)}
	second := ports.ToolCall{ID: "toolu_02", Name: "hexdump", Input: json.RawMessage(`{"offset": 0, "path": "sample.bin"}`)}
	provider := scriptedProvider(
		toolUseResponse("", first, second),
		toolUseResponse("", finalAnswerCall("toolu_03")),
	)
	c, _ := newTestController(t, provider, &stubRunner{}, nil)

	record, err := c.Run(context.Background(), "task_01", "system prompt")
	require.NoError(t, err)

	assert.Equal(t, 1, record.RedundantToolCalls)
	assert.Equal(t, map[string]int{"hexdump": 2, tools.FinalAnswerName: 1}, record.ToolCallsByType)
}

// TestControllerRun_FatalRunnerError tests that a broken sandbox aborts
// the run with an error instead of a record.
func TestControllerRun_FatalRunnerError(t *testing.T) {
	provider := scriptedProvider(toolUseResponse("", fileCall("toolu_01", "sample.bin")))
	runner := &stubRunner{err: errors.New("docker daemon not running")}
	c, _ := newTestController(t, provider, runner, nil)

	record, err := c.Run(context.Background(), "task_01", "system prompt")
	require.Error(t, err)
	assert.Nil(t, record)
	assert.Contains(t, err.Error(), "docker daemon not running")
}

// TestControllerRun_RecordMarshalsWithStableKeys tests the serialized
// record shape consumed by reports.
func TestControllerRun_RecordMarshalsWithStableKeys(t *testing.T) {
	provider := scriptedProvider(toolUseResponse("", finalAnswerCall("toolu_01")))
	c, _ := newTestController(t, provider, &stubRunner{}, nil)

	record, err := c.Run(context.Background(), "task_01", "system prompt")
	require.NoError(t, err)

	out, err := json.Marshal(record)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	for _, key := range []string{
		"task_id", "final_answer", "transcript", "tool_call_count",
		"tool_calls_by_type", "tool_calls_log", "redundant_tool_calls",
		"invalid_tool_calls", "invalid_json_attempts", "input_tokens",
		"output_tokens", "total_tokens", "wall_time_seconds",
		"max_steps_hit", "has_valid_answer",
	} {
		assert.Contains(t, decoded, key)
	}
	assert.NotContains(t, decoded, "backend_error")
}

// TestActionBudget tests spend accounting around the cap.
func TestActionBudget(t *testing.T) {
	b := NewActionBudget(2)
	assert.Equal(t, 2, b.Remaining())
	assert.False(t, b.Exhausted())

	b.Spend()
	assert.Equal(t, 1, b.Spent())
	assert.False(t, b.Exhausted())

	b.Spend()
	assert.True(t, b.Exhausted())
	assert.Zero(t, b.Remaining())

	// A terminal submission may spend past the cap.
	b.Spend()
	assert.Equal(t, 3, b.Spent())
	assert.True(t, b.Exhausted())
}

// TestTallyInvocations tests per-tool counts and redundancy detection.
func TestTallyInvocations(t *testing.T) {
	log := []InvocationEntry{
		{Tool: "file", Input: json.RawMessage(`{"path": "a"}`)},
		{Tool: "file", Input: json.RawMessage(`{"path": "b"}`)},
		{Tool: "file", Input: json.RawMessage(`{"path": "a"}`)},
		{Tool: "strings", Input: json.RawMessage(`{"path": "a"}`)},
	}

	byType, redundant := tallyInvocations(log)
	assert.Equal(t, map[string]int{"file": 3, "strings": 1}, byType)
	assert.Equal(t, 1, redundant)
}

// TestPreview tests rune-safe truncation of logged output.
func TestPreview(t *testing.T) {
	assert.Equal(t, "short", preview("short", 10))
	assert.Equal(t, "abcde", preview("abcdefgh", 5))
	assert.Equal(t, "héllo", preview("héllo wörld", 5))
}

// BenchmarkExtractVerdict measures salvage over a typical fenced reply.
func BenchmarkExtractVerdict(b *testing.B) {
	text := "Based on my analysis of the headers and strings output, here is the verdict:\n```json\n" + testVerdict + "\n```"
	for i := 0; i < b.N; i++ {
		if _, ok := ExtractVerdict(text); !ok {
			b.Fatal("expected a verdict")
		}
	}
}

// BenchmarkTallyInvocations measures record finalization on a full log.
func BenchmarkTallyInvocations(b *testing.B) {
	log := make([]InvocationEntry, 0, 25)
	for i := 0; i < 25; i++ {
		log = append(log, InvocationEntry{
			Tool:  "hexdump",
			Input: json.RawMessage(fmt.Sprintf(`{"path": "sample.bin", "offset": %d}`, i*256)),
		})
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tallyInvocations(log)
	}
}
