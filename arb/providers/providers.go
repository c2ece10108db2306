// Package providers implements the model backends behind the harness
// Provider port. Each vendor gets a raw net/http client that translates
// the canonical conversation into its wire format and folds its finish
// reasons back into the canonical stop reasons. One call per Send, no
// retries: a failed call ends the run.
package providers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	ports "github.com/ZanzyTHEbar/agentre-bench/arb/harness/ports"
)

// DefaultRequestTimeout bounds one model call when the config names no
// timeout of its own.
const DefaultRequestTimeout = 300 * time.Second

// ClientConfig carries the vendor-independent connection settings.
type ClientConfig struct {
	APIKey  string
	Model   string
	BaseURL string        // empty selects the vendor default
	Timeout time.Duration // zero selects DefaultRequestTimeout
	Logger  zerolog.Logger
}

func (c ClientConfig) httpClient() *http.Client {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &http.Client{Timeout: timeout}
}

// apiError is the error envelope shared by the vendor response payloads.
type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Names lists the supported provider names in display order.
func Names() []string {
	return []string{"anthropic", "openai", "gemini", "deepseek", "openrouter"}
}

// ModelDefaults maps a provider name to the model used when the config
// names none.
var ModelDefaults = map[string]string{
	"anthropic": "claude-opus-4-6",
	"openai":    "gpt-4o",
	"gemini":    "gemini-2.0-flash",
	"deepseek":  "deepseek-chat",
}

// DefaultModel returns the default model for a provider.
func DefaultModel(provider string) string {
	if m, ok := ModelDefaults[provider]; ok {
		return m
	}
	return "claude-opus-4-6"
}

// New builds the named provider client. The model falls back to the
// provider default when empty.
func New(name string, cfg ClientConfig) (ports.Provider, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultModel(name)
	}
	switch name {
	case "anthropic":
		return NewAnthropicClient(cfg), nil
	case "openai":
		return NewOpenAIClient(cfg), nil
	case "gemini":
		return NewGeminiClient(cfg), nil
	case "deepseek":
		return NewDeepSeekClient(cfg), nil
	case "openrouter":
		return NewOpenRouterClient(cfg), nil
	default:
		return nil, fmt.Errorf("unknown provider %q, choose from: %s", name, strings.Join(Names(), ", "))
	}
}

func strPtr(s string) *string { return &s }
