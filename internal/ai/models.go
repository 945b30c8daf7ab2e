package ai

import "sort"

// ModelInfo carries the context window and illustrative pricing of a model.
// Prices are estimates for progress output only.
type ModelInfo struct {
	Name          string
	Provider      string
	ContextTokens int     // approximate context window
	InputPerK     float64 // USD per 1K input tokens
	OutputPerK    float64 // USD per 1K output tokens
}

var models = map[string]ModelInfo{
	"gpt-5":        {Name: "gpt-5", Provider: ProviderOpenAI, ContextTokens: 400000, InputPerK: 0.00125, OutputPerK: 0.01},
	"gpt-5-mini":   {Name: "gpt-5-mini", Provider: ProviderOpenAI, ContextTokens: 400000, InputPerK: 0.00025, OutputPerK: 0.002},
	"gpt-4.1":      {Name: "gpt-4.1", Provider: ProviderOpenAI, ContextTokens: 1000000, InputPerK: 0.002, OutputPerK: 0.008},
	"gpt-4.1-mini": {Name: "gpt-4.1-mini", Provider: ProviderOpenAI, ContextTokens: 1000000, InputPerK: 0.0004, OutputPerK: 0.0016},
	"gpt-4o":       {Name: "gpt-4o", Provider: ProviderOpenAI, ContextTokens: 128000, InputPerK: 0.0025, OutputPerK: 0.01},

	"openai/gpt-5":                {Name: "openai/gpt-5", Provider: ProviderOpenRouter, ContextTokens: 400000, InputPerK: 0.00125, OutputPerK: 0.01},
	"openai/gpt-4o-mini":          {Name: "openai/gpt-4o-mini", Provider: ProviderOpenRouter, ContextTokens: 128000, InputPerK: 0.00015, OutputPerK: 0.0006},
	"anthropic/claude-3.5-sonnet": {Name: "anthropic/claude-3.5-sonnet", Provider: ProviderOpenRouter, ContextTokens: 200000, InputPerK: 0.003, OutputPerK: 0.015},

	// Common local (Ollama) tags
	"llama3.1:8b":      {Name: "llama3.1:8b", Provider: ProviderOllama, ContextTokens: 131072},
	"qwen2.5-coder:7b": {Name: "qwen2.5-coder:7b", Provider: ProviderOllama, ContextTokens: 32768},
}

var defaultModels = map[string]string{
	ProviderOpenAI:     "gpt-5",
	ProviderOpenRouter: "openai/gpt-5",
	ProviderOllama:     "llama3.1:8b",
}

// LookupModel returns ModelInfo and ok flag.
func LookupModel(name string) (ModelInfo, bool) {
	mi, ok := models[name]
	return mi, ok
}

// DefaultModel returns the model used for provider when none is configured.
func DefaultModel(provider string) string {
	if m, ok := defaultModels[provider]; ok {
		return m
	}
	return defaultModels[ProviderOpenAI]
}

// ModelsFor lists the known models of provider in name order.
func ModelsFor(provider string) []ModelInfo {
	var out []ModelInfo
	for _, mi := range models {
		if mi.Provider == provider {
			out = append(out, mi)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// EstimateCostUSD estimates total cost in USD for given tokens using model pricing.
// If the model is unknown, returns 0 and ok=false.
func EstimateCostUSD(model string, promptTokens, completionTokens int) (float64, bool) {
	mi, ok := LookupModel(model)
	if !ok {
		return 0, false
	}
	inCost := (float64(promptTokens) / 1000.0) * mi.InputPerK
	outCost := (float64(completionTokens) / 1000.0) * mi.OutputPerK
	return inCost + outCost, true
}
