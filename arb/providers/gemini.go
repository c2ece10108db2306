package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	ports "github.com/ZanzyTHEbar/agentre-bench/arb/harness/ports"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"

// GeminiClient speaks the generateContent API. Tool calls come back as
// functionCall parts without IDs, so the client synthesizes
// "gemini_<name>_<index>" ids and later recovers the function name from
// them when sending tool results back as functionResponse parts.
type GeminiClient struct {
	apiKey  string
	model   string
	baseURL string
	httpc   *http.Client
	logger  zerolog.Logger
}

func NewGeminiClient(cfg ClientConfig) *GeminiClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = geminiBaseURL
	}
	return &GeminiClient{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   cfg.httpClient(),
		logger:  cfg.Logger,
	}
}

func (c *GeminiClient) Name() string { return "gemini" }

type geminiRequest struct {
	SystemInstruction geminiContent   `json:"system_instruction"`
	Contents          []geminiContent `json:"contents"`
	Tools             []geminiTool    `json:"tools"`
	GenerationConfig  geminiGenConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

// geminiPart is a union: exactly one member is set. Text is a pointer so
// an intentionally empty text part still marshals as {"text": ""}.
type geminiPart struct {
	Text             *string                 `json:"text,omitempty"`
	FunctionCall     *geminiFunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *geminiFunctionResponse `json:"functionResponse,omitempty"`
}

type geminiFunctionCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

type geminiFunctionResponse struct {
	Name     string           `json:"name"`
	Response geminiToolResult `json:"response"`
}

type geminiToolResult struct {
	Result string `json:"result"`
}

type geminiTool struct {
	FunctionDeclarations []geminiDeclaration `json:"function_declarations"`
}

type geminiDeclaration struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

type geminiGenConfig struct {
	MaxOutputTokens int `json:"maxOutputTokens"`
}

type geminiResponse struct {
	Candidates    []geminiCandidate `json:"candidates"`
	UsageMetadata geminiUsage       `json:"usageMetadata"`
	Error         *apiError         `json:"error"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type geminiUsage struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
}

func (c *GeminiClient) Send(ctx context.Context, in ports.Request) (*ports.Response, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("gemini: api key not configured")
	}

	start := time.Now()
	payload, err := json.Marshal(geminiRequest{
		SystemInstruction: geminiContent{Parts: []geminiPart{{Text: strPtr(in.System)}}},
		Contents:          turnsToGemini(in.Turns),
		Tools:             []geminiTool{{FunctionDeclarations: toolsToGemini(in.Tools)}},
		GenerationConfig:  geminiGenConfig{MaxOutputTokens: in.MaxTokens},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s:generateContent?key=%s", c.baseURL, c.model, url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("gemini: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gemini: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Error().Int("status", resp.StatusCode).Str("body", string(raw)).Msg("gemini api error")
		return nil, fmt.Errorf("gemini: status %d: %s", resp.StatusCode, raw)
	}

	var decoded geminiResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("gemini: decode response: %w", err)
	}
	if decoded.Error != nil {
		return nil, fmt.Errorf("gemini: api error: %s", decoded.Error.Message)
	}
	if len(decoded.Candidates) == 0 {
		return nil, fmt.Errorf("gemini: no candidates in response")
	}

	candidate := decoded.Candidates[0]
	var texts []string
	var calls []ports.ToolCall
	for _, part := range candidate.Content.Parts {
		switch {
		case part.FunctionCall != nil:
			args := part.FunctionCall.Args
			if len(args) == 0 {
				args = json.RawMessage(`{}`)
			}
			calls = append(calls, ports.ToolCall{
				ID:    fmt.Sprintf("gemini_%s_%d", part.FunctionCall.Name, len(calls)),
				Name:  part.FunctionCall.Name,
				Input: args,
			})
		case part.Text != nil:
			texts = append(texts, *part.Text)
		}
	}

	stop := ports.StopEndTurn
	if len(calls) > 0 {
		stop = ports.StopToolUse
	} else if candidate.FinishReason == "MAX_TOKENS" {
		stop = ports.StopMaxTokens
	}

	c.logger.Debug().
		Str("model", c.model).
		Str("finish_reason", candidate.FinishReason).
		Int("tool_calls", len(calls)).
		Dur("elapsed", time.Since(start)).
		Msg("gemini response")

	return &ports.Response{
		StopReason: stop,
		Text:       strings.Join(texts, "\n"),
		ToolCalls:  calls,
		Raw:        json.RawMessage(raw),
		Usage: ports.Usage{
			InputTokens:  decoded.UsageMetadata.PromptTokenCount,
			OutputTokens: decoded.UsageMetadata.CandidatesTokenCount,
		},
	}, nil
}

// turnsToGemini maps block turns onto user/model contents. Tool results
// become functionResponse parts named after the call they answer.
func turnsToGemini(turns []ports.Turn) []geminiContent {
	contents := make([]geminiContent, 0, len(turns))

	for _, turn := range turns {
		var parts []geminiPart
		role := "user"

		switch turn.Role {
		case ports.RoleUser:
			for _, b := range turn.Blocks {
				switch b.Type {
				case ports.BlockText:
					parts = append(parts, geminiPart{Text: strPtr(b.Text)})
				case ports.BlockToolResult:
					parts = append(parts, geminiPart{FunctionResponse: &geminiFunctionResponse{
						Name:     toolNameFromID(b.ToolUseID),
						Response: geminiToolResult{Result: b.Content},
					}})
				}
			}

		case ports.RoleAssistant:
			role = "model"
			for _, b := range turn.Blocks {
				switch b.Type {
				case ports.BlockText:
					parts = append(parts, geminiPart{Text: strPtr(b.Text)})
				case ports.BlockToolUse:
					args := b.Input
					if len(args) == 0 {
						args = json.RawMessage(`{}`)
					}
					parts = append(parts, geminiPart{FunctionCall: &geminiFunctionCall{
						Name: b.Name,
						Args: args,
					}})
				}
			}
		}

		if len(parts) == 0 {
			parts = []geminiPart{{Text: strPtr("")}}
		}
		contents = append(contents, geminiContent{Role: role, Parts: parts})
	}
	return contents
}

// toolNameFromID recovers the function name from a synthesized
// "gemini_<name>_<index>" id. Ids minted elsewhere map to "unknown".
func toolNameFromID(id string) string {
	trimmed := strings.TrimPrefix(id, "gemini_")
	if trimmed == id {
		return "unknown"
	}
	if i := strings.LastIndex(trimmed, "_"); i > 0 {
		return trimmed[:i]
	}
	return trimmed
}

func toolsToGemini(specs []ports.ToolSpec) []geminiDeclaration {
	decls := make([]geminiDeclaration, 0, len(specs))
	for _, s := range specs {
		decls = append(decls, geminiDeclaration{
			Name:        s.Name,
			Description: s.Description,
			Parameters:  json.RawMessage(s.JSONSchema),
		})
	}
	return decls
}

var _ ports.Provider = (*GeminiClient)(nil)
