package harness

import (
	"encoding/json"

	ports "github.com/ZanzyTHEbar/agentre-bench/arb/harness/ports"
)

// InvocationEntry is one line of the append-only invocation log.
type InvocationEntry struct {
	CallNumber    int             `json:"call_number"`
	Tool          string          `json:"tool"`
	Input         json.RawMessage `json:"input"`
	IsFinalAnswer bool            `json:"is_final_answer,omitempty"`
	OutputPreview string          `json:"output_preview,omitempty"`
}

// RunRecord is the result of one agent run. It is created once when the
// run terminates and never mutated afterwards.
type RunRecord struct {
	TaskID              string            `json:"task_id"`
	FinalAnswer         json.RawMessage   `json:"final_answer"`
	Transcript          []ports.Turn      `json:"transcript"`
	ToolCallCount       int               `json:"tool_call_count"`
	ToolCallsByType     map[string]int    `json:"tool_calls_by_type"`
	ToolCallsLog        []InvocationEntry `json:"tool_calls_log"`
	RedundantToolCalls  int               `json:"redundant_tool_calls"`
	InvalidToolCalls    int               `json:"invalid_tool_calls"`
	InvalidJSONAttempts int               `json:"invalid_json_attempts"`
	InputTokens         int               `json:"input_tokens"`
	OutputTokens        int               `json:"output_tokens"`
	TotalTokens         int               `json:"total_tokens"`
	WallTimeSeconds     float64           `json:"wall_time_seconds"`
	MaxStepsHit         bool              `json:"max_steps_hit"`
	HasValidAnswer      bool              `json:"has_valid_answer"`
	BackendError        string            `json:"backend_error,omitempty"`
}

// canonicalArgs renders tool arguments with sorted keys so argument
// equality is stable across formatting differences.
func canonicalArgs(input json.RawMessage) string {
	var v any
	if err := json.Unmarshal(input, &v); err != nil {
		return string(input)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return string(input)
	}
	return string(out)
}

// tallyInvocations computes per-tool counts and the number of redundant
// calls, where redundant means an exact repeat of name plus canonicalized
// arguments. Redundancy is an analysis signal, never a control-flow input.
func tallyInvocations(log []InvocationEntry) (map[string]int, int) {
	byType := make(map[string]int)
	seen := make(map[string]bool)
	redundant := 0
	for _, e := range log {
		byType[e.Tool]++
		key := e.Tool + ":" + canonicalArgs(e.Input)
		if seen[key] {
			redundant++
		}
		seen[key] = true
	}
	return byType, redundant
}
