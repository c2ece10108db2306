package harnessports

import (
	"context"
	"encoding/json"
)

// StopReason says why the model stopped producing output. Vendor-specific
// finish reasons are folded into these four.
type StopReason string

const (
	StopToolUse   StopReason = "tool_use"
	StopEndTurn   StopReason = "end_turn"
	StopMaxTokens StopReason = "max_tokens"
	StopOther     StopReason = "other"
)

// ToolCall represents a model-requested tool invocation with JSON
// arguments. IDs are unique within one response; providers without native
// call IDs synthesize them.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// Request aggregates everything the provider needs for one model call.
type Request struct {
	System    string     // system instructions
	Turns     []Turn     // ordered conversation so far
	Tools     []ToolSpec // tool declarations available to the model
	MaxTokens int        // output token cap for this call
}

// Usage captures token accounting for cost/telemetry.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Response is the provider's reply, already translated to the canonical
// shape.
type Response struct {
	StopReason StopReason
	Text       string
	ToolCalls  []ToolCall
	Raw        any // raw provider payload for debugging/telemetry
	Usage      Usage
}

// Provider is the abstraction over all model backends. A failed Send is
// fatal for the run; callers do not retry.
type Provider interface {
	Name() string
	Send(ctx context.Context, in Request) (*Response, error)
}
