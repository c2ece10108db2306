package providers

const openrouterBaseURL = "https://openrouter.ai/api/v1"

// NewOpenRouterClient builds an OpenRouter client on the OpenAI wire
// format, with the attribution headers OpenRouter uses for rankings.
func NewOpenRouterClient(cfg ClientConfig) *OpenAIClient {
	headers := map[string]string{
		"HTTP-Referer": "https://github.com/AgentRE-Bench",
		"X-Title":      "AgentRE-Bench",
	}
	return newOpenAIClient("openrouter", openrouterBaseURL, headers, cfg)
}
