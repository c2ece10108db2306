package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	ports "github.com/ZanzyTHEbar/agentre-bench/arb/harness/ports"
)

const openaiBaseURL = "https://api.openai.com/v1"

// OpenAIClient speaks the chat completions API. The canonical block turns
// are flattened into chat messages: tool results become role:"tool"
// messages, assistant tool uses become tool_calls entries. DeepSeek and
// OpenRouter reuse this client with their own base URLs.
type OpenAIClient struct {
	name         string
	apiKey       string
	model        string
	baseURL      string
	extraHeaders map[string]string
	httpc        *http.Client
	logger       zerolog.Logger
}

func NewOpenAIClient(cfg ClientConfig) *OpenAIClient {
	return newOpenAIClient("openai", openaiBaseURL, nil, cfg)
}

func newOpenAIClient(name, defaultBaseURL string, extraHeaders map[string]string, cfg ClientConfig) *OpenAIClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &OpenAIClient{
		name:         name,
		apiKey:       cfg.APIKey,
		model:        cfg.Model,
		baseURL:      strings.TrimRight(baseURL, "/"),
		extraHeaders: extraHeaders,
		httpc:        cfg.httpClient(),
		logger:       cfg.Logger,
	}
}

func (c *OpenAIClient) Name() string { return c.name }

type openaiRequest struct {
	Model               string          `json:"model"`
	Messages            []openaiMessage `json:"messages"`
	Tools               []openaiTool    `json:"tools"`
	MaxCompletionTokens int             `json:"max_completion_tokens"`
}

type openaiMessage struct {
	Role       string           `json:"role"`
	Content    *string          `json:"content"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
	ToolCalls  []openaiToolCall `json:"tool_calls,omitempty"`
}

type openaiToolCall struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Function openaiFunction `json:"function"`
}

type openaiFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type openaiTool struct {
	Type     string        `json:"type"`
	Function openaiToolDef `json:"function"`
}

type openaiToolDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

type openaiResponse struct {
	Choices []openaiChoice `json:"choices"`
	Usage   openaiUsage    `json:"usage"`
	Error   *apiError      `json:"error"`
}

type openaiChoice struct {
	Message      openaiChoiceMessage `json:"message"`
	FinishReason string              `json:"finish_reason"`
}

type openaiChoiceMessage struct {
	Content   *string          `json:"content"`
	ToolCalls []openaiToolCall `json:"tool_calls"`
}

type openaiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

func (c *OpenAIClient) Send(ctx context.Context, in ports.Request) (*ports.Response, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("%s: api key not configured", c.name)
	}

	start := time.Now()
	payload, err := json.Marshal(openaiRequest{
		Model:               c.model,
		Messages:            turnsToOpenAI(in.System, in.Turns),
		Tools:               toolsToOpenAI(in.Tools),
		MaxCompletionTokens: in.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: marshal request: %w", c.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", c.name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	for k, v := range c.extraHeaders {
		req.Header.Set(k, v)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: request failed: %w", c.name, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", c.name, err)
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Error().Str("provider", c.name).Int("status", resp.StatusCode).Str("body", string(raw)).Msg("chat completions api error")
		return nil, fmt.Errorf("%s: status %d: %s", c.name, resp.StatusCode, raw)
	}

	var decoded openaiResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", c.name, err)
	}
	if decoded.Error != nil {
		return nil, fmt.Errorf("%s: api error: %s", c.name, decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 {
		return nil, fmt.Errorf("%s: no choices in response", c.name)
	}

	choice := decoded.Choices[0]
	calls := make([]ports.ToolCall, 0, len(choice.Message.ToolCalls))
	for _, tc := range choice.Message.ToolCalls {
		args := json.RawMessage(tc.Function.Arguments)
		if !json.Valid(args) {
			args = json.RawMessage(`{}`)
		}
		calls = append(calls, ports.ToolCall{ID: tc.ID, Name: tc.Function.Name, Input: args})
	}

	text := ""
	if choice.Message.Content != nil {
		text = *choice.Message.Content
	}

	c.logger.Debug().
		Str("provider", c.name).
		Str("model", c.model).
		Str("finish_reason", choice.FinishReason).
		Int("tool_calls", len(calls)).
		Dur("elapsed", time.Since(start)).
		Msg("chat completions response")

	return &ports.Response{
		StopReason: openaiStop(choice.FinishReason),
		Text:       text,
		ToolCalls:  calls,
		Raw:        json.RawMessage(raw),
		Usage: ports.Usage{
			InputTokens:  decoded.Usage.PromptTokens,
			OutputTokens: decoded.Usage.CompletionTokens,
		},
	}, nil
}

// turnsToOpenAI flattens block turns into chat messages. A user turn can
// fan out into a user text message plus one role:"tool" message per tool
// result; an assistant turn folds its tool uses into tool_calls.
func turnsToOpenAI(system string, turns []ports.Turn) []openaiMessage {
	msgs := []openaiMessage{{Role: "system", Content: strPtr(system)}}

	for _, turn := range turns {
		switch turn.Role {
		case ports.RoleUser:
			var texts []string
			var toolMsgs []openaiMessage
			for _, b := range turn.Blocks {
				switch b.Type {
				case ports.BlockText:
					texts = append(texts, b.Text)
				case ports.BlockToolResult:
					toolMsgs = append(toolMsgs, openaiMessage{
						Role:       "tool",
						ToolCallID: b.ToolUseID,
						Content:    strPtr(b.Content),
					})
				}
			}
			if len(texts) > 0 {
				msgs = append(msgs, openaiMessage{Role: "user", Content: strPtr(strings.Join(texts, "\n"))})
			}
			msgs = append(msgs, toolMsgs...)

		case ports.RoleAssistant:
			var texts []string
			var calls []openaiToolCall
			for _, b := range turn.Blocks {
				switch b.Type {
				case ports.BlockText:
					texts = append(texts, b.Text)
				case ports.BlockToolUse:
					calls = append(calls, openaiToolCall{
						ID:   b.ID,
						Type: "function",
						Function: openaiFunction{
							Name:      b.Name,
							Arguments: string(b.Input),
						},
					})
				}
			}
			msg := openaiMessage{Role: "assistant", ToolCalls: calls}
			if len(texts) > 0 {
				msg.Content = strPtr(strings.Join(texts, "\n"))
			}
			msgs = append(msgs, msg)
		}
	}
	return msgs
}

func toolsToOpenAI(specs []ports.ToolSpec) []openaiTool {
	tools := make([]openaiTool, 0, len(specs))
	for _, s := range specs {
		tools = append(tools, openaiTool{
			Type: "function",
			Function: openaiToolDef{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  json.RawMessage(s.JSONSchema),
			},
		})
	}
	return tools
}

func openaiStop(finishReason string) ports.StopReason {
	switch finishReason {
	case "tool_calls":
		return ports.StopToolUse
	case "length":
		return ports.StopMaxTokens
	default:
		return ports.StopEndTurn
	}
}

var _ ports.Provider = (*OpenAIClient)(nil)
