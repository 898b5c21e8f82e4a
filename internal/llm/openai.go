package llm

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient implements Client on the OpenAI Chat Completions API. It also
// backs the "ollama" provider, which exposes an OpenAI-compatible endpoint.
type OpenAIClient struct {
	client   *openai.Client
	provider string
	model    string
}

// OpenAIConfig holds the parameters needed to create an OpenAI client.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key.
	APIKey string
	// Model is the model identifier (e.g., "gpt-4o").
	Model string
	// BaseURL is the API base URL (empty means the OpenAI default).
	BaseURL string
}

// NewOpenAIClient creates a Client backed by the OpenAI API.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	return newOpenAICompatible("openai", cfg)
}

// newOpenAICompatible builds an OpenAI-protocol client under the given
// provider name.
func newOpenAICompatible(provider string, cfg OpenAIConfig) *OpenAIClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIClient{
		client:   openai.NewClientWithConfig(clientCfg),
		provider: provider,
		model:    cfg.Model,
	}
}

// Complete issues one chat completion call.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (*Completion, error) {
	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, c.wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s: response contains no choices", c.provider)
	}

	return &Completion{
		Text:        resp.Choices[0].Message.Content,
		TotalTokens: resp.Usage.TotalTokens,
		Model:       c.model,
	}, nil
}

// Provider returns the provider name.
func (c *OpenAIClient) Provider() string { return c.provider }

// Model returns the model identifier being used.
func (c *OpenAIClient) Model() string { return c.model }

// wrapError converts SDK errors into *APIError so the gateway can classify
// them. Errors without an HTTP status (network failures) keep StatusCode 0,
// which counts as transient.
func (c *OpenAIClient) wrapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &APIError{
			Provider:   c.provider,
			StatusCode: apiErr.HTTPStatusCode,
			Message:    apiErr.Message,
			Type:       apiErr.Type,
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &APIError{
			Provider:   c.provider,
			StatusCode: reqErr.HTTPStatusCode,
			Message:    reqErr.Error(),
		}
	}

	return &APIError{Provider: c.provider, Message: err.Error()}
}
