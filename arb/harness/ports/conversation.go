package harnessports

import "encoding/json"

// Turn roles. The transcript alternates user and assistant turns; tool
// results travel inside user turns.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Block kinds.
const (
	BlockText       = "text"
	BlockToolUse    = "tool_use"
	BlockToolResult = "tool_result"
)

// Block is one typed content segment of a conversation turn. The JSON
// shape matches the Anthropic messages format, which the other provider
// adapters translate from.
type Block struct {
	Type string `json:"type"`

	// BlockText
	Text string `json:"text,omitempty"`

	// BlockToolUse
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// BlockToolResult
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

// Turn is one ordered, role-tagged conversation message. Transcripts are
// append-only; a turn is never edited after it is added.
type Turn struct {
	Role   string  `json:"role"`
	Blocks []Block `json:"content"`
}
