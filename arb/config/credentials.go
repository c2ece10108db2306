package config

import (
	"fmt"
	"os"
	"strings"
)

// Credential is a resolved API credential handed to a provider client.
// Resolution happens here so nothing downstream reads the process
// environment directly.
type Credential struct {
	Provider string
	APIKey   string
}

// providerEnvKeys maps a provider name to the environment variable that
// carries its API key.
var providerEnvKeys = map[string]string{
	"anthropic":  "ANTHROPIC_API_KEY",
	"openai":     "OPENAI_API_KEY",
	"gemini":     "GOOGLE_API_KEY",
	"deepseek":   "DEEPSEEK_API_KEY",
	"openrouter": "OPENROUTER_API_KEY",
}

// EnvKeyFor reports the environment variable name for a provider.
func EnvKeyFor(provider string) (string, bool) {
	key, ok := providerEnvKeys[strings.ToLower(strings.TrimSpace(provider))]
	return key, ok
}

// ResolveCredential produces the credential for a provider. An explicit
// key wins over the environment. A missing key is an error so runs fail
// before the first model call rather than partway through.
func ResolveCredential(provider, explicitKey string) (Credential, error) {
	name := strings.ToLower(strings.TrimSpace(provider))
	if explicitKey != "" {
		return Credential{Provider: name, APIKey: explicitKey}, nil
	}
	envKey, ok := providerEnvKeys[name]
	if !ok {
		return Credential{}, fmt.Errorf("unknown provider: %s", provider)
	}
	value := strings.TrimSpace(os.Getenv(envKey))
	if value == "" {
		return Credential{}, fmt.Errorf("no API key for provider %s: set %s or pass --api-key", name, envKey)
	}
	return Credential{Provider: name, APIKey: value}, nil
}
