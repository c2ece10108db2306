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

const (
	anthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion = "2023-06-01"
)

// AnthropicClient speaks the Anthropic messages API. The canonical turn
// and block shapes already match this wire format, so turns go out as-is.
type AnthropicClient struct {
	apiKey  string
	model   string
	baseURL string
	httpc   *http.Client
	logger  zerolog.Logger
}

func NewAnthropicClient(cfg ClientConfig) *AnthropicClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = anthropicBaseURL
	}
	return &AnthropicClient{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   cfg.httpClient(),
		logger:  cfg.Logger,
	}
}

func (c *AnthropicClient) Name() string { return "anthropic" }

type anthropicRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	System    string          `json:"system"`
	Messages  []ports.Turn    `json:"messages"`
	Tools     []anthropicTool `json:"tools"`
}

type anthropicTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

type anthropicResponse struct {
	Content    []anthropicBlock `json:"content"`
	StopReason string           `json:"stop_reason"`
	Usage      anthropicUsage   `json:"usage"`
	Error      *apiError        `json:"error"`
}

type anthropicBlock struct {
	Type  string          `json:"type"`
	Text  string          `json:"text"`
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func (c *AnthropicClient) Send(ctx context.Context, in ports.Request) (*ports.Response, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("anthropic: api key not configured")
	}

	start := time.Now()
	payload, err := json.Marshal(anthropicRequest{
		Model:     c.model,
		MaxTokens: in.MaxTokens,
		System:    in.System,
		Messages:  in.Turns,
		Tools:     toolsToAnthropic(in.Tools),
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("anthropic: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("anthropic: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("anthropic: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Error().Int("status", resp.StatusCode).Str("body", string(raw)).Msg("anthropic api error")
		return nil, fmt.Errorf("anthropic: status %d: %s", resp.StatusCode, raw)
	}

	var decoded anthropicResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("anthropic: decode response: %w", err)
	}
	if decoded.Error != nil {
		return nil, fmt.Errorf("anthropic: api error: %s", decoded.Error.Message)
	}

	var texts []string
	var calls []ports.ToolCall
	for _, block := range decoded.Content {
		switch block.Type {
		case "text":
			texts = append(texts, block.Text)
		case "tool_use":
			calls = append(calls, ports.ToolCall{ID: block.ID, Name: block.Name, Input: block.Input})
		}
	}

	c.logger.Debug().
		Str("model", c.model).
		Str("stop_reason", decoded.StopReason).
		Int("tool_calls", len(calls)).
		Dur("elapsed", time.Since(start)).
		Msg("anthropic response")

	return &ports.Response{
		StopReason: anthropicStop(decoded.StopReason),
		Text:       strings.Join(texts, "\n"),
		ToolCalls:  calls,
		Raw:        json.RawMessage(raw),
		Usage: ports.Usage{
			InputTokens:  decoded.Usage.InputTokens,
			OutputTokens: decoded.Usage.OutputTokens,
		},
	}, nil
}

func toolsToAnthropic(specs []ports.ToolSpec) []anthropicTool {
	tools := make([]anthropicTool, 0, len(specs))
	for _, s := range specs {
		tools = append(tools, anthropicTool{
			Name:        s.Name,
			Description: s.Description,
			InputSchema: json.RawMessage(s.JSONSchema),
		})
	}
	return tools
}

// anthropicStop folds the vendor stop reason into the canonical set.
// Anything unrecognized (stop_sequence included) counts as turn end.
func anthropicStop(reason string) ports.StopReason {
	switch reason {
	case "tool_use":
		return ports.StopToolUse
	case "max_tokens":
		return ports.StopMaxTokens
	default:
		return ports.StopEndTurn
	}
}

var _ ports.Provider = (*AnthropicClient)(nil)
