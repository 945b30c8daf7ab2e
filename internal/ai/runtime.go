package ai

import "context"

// Runtime is the chat backend used by the in-process agent runner. OpenAI,
// OpenRouter and a local Ollama all implement it.
type Runtime interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// Provider identifiers used across the CLI for selection.
const (
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
	ProviderOllama     = "ollama"
	ProviderLocal      = "local"
)

// APIKeyEnv names the environment variable holding the key of provider.
// Local runtimes need no key and return "".
func APIKeyEnv(provider string) string {
	switch provider {
	case ProviderOpenRouter:
		return "OPENROUTER_API_KEY"
	case ProviderOllama, ProviderLocal:
		return ""
	}
	return "OPENAI_API_KEY"
}

// NeedsAPIKey reports whether provider authenticates with an API key.
func NeedsAPIKey(provider string) bool { return APIKeyEnv(provider) != "" }
