package llm

import (
	"context"
	"fmt"
	"strings"
)

// FactoryConfig holds the parameters needed to create a provider Client.
// It is defined in the llm package to keep the package free of
// infrastructure dependencies.
type FactoryConfig struct {
	// Provider is the provider name ("openai", "anthropic", "gemini",
	// "ollama").
	Provider string
	// OpenAI contains OpenAI-specific settings.
	OpenAI OpenAIConfig
	// Anthropic contains Anthropic-specific settings.
	Anthropic AnthropicConfig
	// Gemini contains Gemini-specific settings.
	Gemini GeminiConfig
	// Ollama contains Ollama-specific settings.
	Ollama OllamaConfig
}

// OllamaConfig holds the parameters for a local Ollama endpoint, reached
// through its OpenAI-compatible API.
type OllamaConfig struct {
	// Endpoint is the Ollama base URL (e.g., "http://localhost:11434").
	Endpoint string
	// Model is the model identifier (e.g., "llama3.1:8b").
	Model string
}

// NewClient creates a provider Client based on the configuration. Returns an
// error for unsupported providers or missing credentials; callers that can
// degrade (triage) should treat that error as "no provider available" rather
// than fatal.
func NewClient(ctx context.Context, cfg FactoryConfig) (Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		if cfg.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("openai: API key is not set")
		}
		return NewOpenAIClient(cfg.OpenAI), nil

	case "anthropic":
		if cfg.Anthropic.APIKey == "" {
			return nil, fmt.Errorf("anthropic: API key is not set")
		}
		return NewAnthropicClient(cfg.Anthropic), nil

	case "gemini":
		if cfg.Gemini.APIKey == "" {
			return nil, fmt.Errorf("gemini: API key is not set")
		}
		return NewGeminiClient(ctx, cfg.Gemini)

	case "ollama":
		// Ollama ignores the API key but the client config requires one.
		endpoint := strings.TrimRight(cfg.Ollama.Endpoint, "/")
		if !strings.HasSuffix(endpoint, "/v1") {
			endpoint += "/v1"
		}
		return newOpenAICompatible("ollama", OpenAIConfig{
			APIKey:  "ollama",
			Model:   cfg.Ollama.Model,
			BaseURL: endpoint,
		}), nil

	default:
		return nil, fmt.Errorf("unsupported llm provider: %q", cfg.Provider)
	}
}
