package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	ports "github.com/ZanzyTHEbar/agentre-bench/arb/harness/ports"
	"github.com/ZanzyTHEbar/agentre-bench/arb/harness/tools"
)

// initialInstruction seeds the conversation. The system prompt carries the
// task specifics; this turn only points the model at the workflow.
const initialInstruction = "Analyze the binary file in the workspace and submit your findings " +
	"using the final_answer tool. The binary is located at the path " +
	"shown in the system prompt. Use the available RE tools to examine it."

const nudgeSubmit = "Please submit your analysis using the final_answer tool. " +
	"Do not respond with plain text — you must call the " +
	"final_answer tool with your findings."

const nudgeContinue = "Please continue your analysis and submit via final_answer tool."

const warnLowTemplate = "IMPORTANT: You have only %d tool calls remaining. " +
	"Start wrapping up your analysis and submit your " +
	"findings using the final_answer tool soon. " +
	"Submit your best answer with what you've found so far " +
	"rather than running out of tool calls."

const warnCriticalTemplate = "CRITICAL: You have only %d tool calls left. " +
	"You MUST call the final_answer tool NOW with your " +
	"best analysis. Do not use any more investigation tools."

// Policy bounds a single agent run.
type Policy struct {
	MaxToolCalls      int
	MaxTokens         int
	WarnRemaining     int
	CriticalRemaining int
	// MaxIterations caps model round-trips. Nudge-only turns spend no
	// budget, so without this a model that never calls tools could loop
	// indefinitely.
	MaxIterations int
}

func DefaultPolicy() *Policy {
	return &Policy{
		MaxToolCalls:      25,
		MaxTokens:         4096,
		WarnRemaining:     5,
		CriticalRemaining: 2,
		MaxIterations:     100,
	}
}

// Controller drives one bounded conversation between the model backend and
// the tool dispatcher, producing exactly one verdict or a flagged
// non-answer. Each run owns its conversation state and budget; nothing is
// shared across runs.
type Controller struct {
	provider   ports.Provider
	dispatcher *Dispatcher
	verdicts   *VerdictValidator
	policy     *Policy
	tracer     ports.Tracer
	logger     zerolog.Logger
}

func NewController(provider ports.Provider, dispatcher *Dispatcher, policy *Policy, tracer ports.Tracer, logger zerolog.Logger) *Controller {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &Controller{
		provider:   provider,
		dispatcher: dispatcher,
		verdicts:   NewVerdictValidator(),
		policy:     policy,
		tracer:     tracer,
		logger:     logger,
	}
}

// Run executes the agent loop for one task. Backend failures end the run
// with the error recorded on the RunRecord; only a broken sandbox runner
// returns an error.
func (c *Controller) Run(ctx context.Context, taskID, systemPrompt string) (*RunRecord, error) {
	start := time.Now()
	ctx, endRun := c.tracer.StartSpan(ctx, "agent.run", map[string]any{"task_id": taskID})

	specs := c.dispatcher.Specs()
	budget := NewActionBudget(c.policy.MaxToolCalls)
	turns := []ports.Turn{userTextTurn(initialInstruction)}
	invocations := []InvocationEntry{}

	var (
		finalAnswer         json.RawMessage
		inputTokens         int
		outputTokens        int
		invalidToolCalls    int
		invalidJSONAttempts int
		maxStepsHit         bool
		backendErr          string
		warnedLow           bool
		warnedCritical      bool
	)

loop:
	for iter := 0; ; iter++ {
		if budget.Exhausted() {
			maxStepsHit = true
			c.tracer.Event(ctx, "max_tool_calls_hit", map[string]any{
				"task_id":        taskID,
				"max_tool_calls": budget.Max(),
			})
			c.logger.Warn().Str("task_id", taskID).Int("max_tool_calls", budget.Max()).Msg("tool call budget exhausted")
			break
		}
		if c.policy.MaxIterations > 0 && iter >= c.policy.MaxIterations {
			c.logger.Warn().Str("task_id", taskID).Int("iterations", iter).Msg("iteration limit reached")
			break
		}

		sendCtx, endSend := c.tracer.StartSpan(ctx, "llm.create_message", map[string]any{
			"task_id":         taskID,
			"tool_call_count": budget.Spent(),
		})
		resp, err := c.provider.Send(sendCtx, ports.Request{
			System:    systemPrompt,
			Turns:     turns,
			Tools:     specs,
			MaxTokens: c.policy.MaxTokens,
		})
		endSend(err)
		if err != nil {
			backendErr = err.Error()
			c.logger.Error().Err(err).Str("task_id", taskID).Msg("provider error")
			c.tracer.Event(ctx, "provider_error", map[string]any{"task_id": taskID, "error": err.Error()})
			break
		}

		inputTokens += resp.Usage.InputTokens
		outputTokens += resp.Usage.OutputTokens

		switch {
		case resp.StopReason == ports.StopToolUse && len(resp.ToolCalls) > 0:
			turns = append(turns, assistantToolTurn(resp.Text, resp.ToolCalls))

			results := []ports.Block{}
			submitted := false
			for _, call := range resp.ToolCalls {
				if budget.Exhausted() && call.Name != tools.FinalAnswerName {
					// Remaining requests in this turn are dropped; no
					// command runs past the budget.
					break
				}
				budget.Spend()
				entry := InvocationEntry{
					CallNumber: budget.Spent(),
					Tool:       call.Name,
					Input:      call.Input,
				}

				toolCtx, endTool := c.tracer.StartSpan(ctx, "tool."+call.Name, map[string]any{
					"task_id":     taskID,
					"call_number": budget.Spent(),
				})
				outcome, derr := c.dispatcher.Dispatch(toolCtx, call)
				endTool(derr)
				if derr != nil {
					return nil, derr
				}

				if outcome.IsFinal {
					finalAnswer = outcome.Verdict
					entry.IsFinalAnswer = true
					invocations = append(invocations, entry)
					if verr := c.verdicts.Validate(finalAnswer); verr != nil {
						c.logger.Warn().Err(verr).Str("task_id", taskID).Msg("submitted verdict does not conform to schema")
					}
					c.tracer.Event(ctx, "final_answer_submitted", map[string]any{"task_id": taskID})
					submitted = true
					break
				}

				content := outcome.Content
				if outcome.IsError {
					invalidToolCalls++
					content = "Error: " + content
				}
				entry.OutputPreview = preview(content, 500)
				invocations = append(invocations, entry)
				results = append(results, toolResultBlock(call.ID, content))
			}

			if submitted {
				break loop
			}

			if len(results) > 0 {
				turns = append(turns, toolResultsTurn(results))

				remaining := budget.Remaining()
				if remaining == c.policy.WarnRemaining && !warnedLow {
					turns = append(turns, userTextTurn(fmt.Sprintf(warnLowTemplate, remaining)))
					warnedLow = true
				} else if remaining == c.policy.CriticalRemaining && !warnedCritical {
					turns = append(turns, userTextTurn(fmt.Sprintf(warnCriticalTemplate, remaining)))
					warnedCritical = true
				}
			}

		case resp.StopReason == ports.StopEndTurn || resp.StopReason == ports.StopToolUse:
			// The model stopped without a usable tool call (tool_use with
			// an empty call list degenerates to this); salvage a verdict
			// from the free text if one is there.
			if verdict, ok := ExtractVerdict(resp.Text); ok {
				finalAnswer = verdict
				c.tracer.Event(ctx, "verdict_salvaged", map[string]any{"task_id": taskID})
				break loop
			}
			invalidJSONAttempts++
			if resp.Text != "" {
				turns = append(turns, assistantTextTurn(resp.Text))
			}
			turns = append(turns, userTextTurn(nudgeSubmit))

		case resp.StopReason == ports.StopMaxTokens:
			if resp.Text != "" {
				turns = append(turns, assistantTextTurn(resp.Text))
			}
			turns = append(turns, userTextTurn(nudgeContinue))

		default:
			c.logger.Warn().Str("task_id", taskID).Str("stop_reason", string(resp.StopReason)).Msg("unexpected stop reason")
			break loop
		}
	}

	wall := time.Since(start).Seconds()
	byType, redundant := tallyInvocations(invocations)

	record := &RunRecord{
		TaskID:              taskID,
		FinalAnswer:         finalAnswer,
		Transcript:          turns,
		ToolCallCount:       budget.Spent(),
		ToolCallsByType:     byType,
		ToolCallsLog:        invocations,
		RedundantToolCalls:  redundant,
		InvalidToolCalls:    invalidToolCalls,
		InvalidJSONAttempts: invalidJSONAttempts,
		InputTokens:         inputTokens,
		OutputTokens:        outputTokens,
		TotalTokens:         inputTokens + outputTokens,
		WallTimeSeconds:     math.Round(wall*100) / 100,
		MaxStepsHit:         maxStepsHit,
		HasValidAnswer:      finalAnswer != nil,
		BackendError:        backendErr,
	}
	endRun(nil)

	c.logger.Info().
		Str("task_id", taskID).
		Int("tool_calls", record.ToolCallCount).
		Bool("has_answer", record.HasValidAnswer).
		Float64("wall_time_s", record.WallTimeSeconds).
		Int("total_tokens", record.TotalTokens).
		Msg("run finished")

	return record, nil
}
