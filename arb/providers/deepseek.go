package providers

const deepseekBaseURL = "https://api.deepseek.com"

// NewDeepSeekClient builds a DeepSeek client. The API is OpenAI
// chat-completions compatible, only the base URL differs.
func NewDeepSeekClient(cfg ClientConfig) *OpenAIClient {
	return newOpenAIClient("deepseek", deepseekBaseURL, nil, cfg)
}
