package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	anthropic "github.com/liushuangls/go-anthropic/v2"
)

// AnthropicClient implements Client on the Anthropic Messages API.
type AnthropicClient struct {
	client *anthropic.Client
	model  string
}

// AnthropicConfig holds the parameters needed to create an Anthropic client.
type AnthropicConfig struct {
	// APIKey is the Anthropic API key.
	APIKey string
	// Model is the model identifier (e.g., "claude-3-5-sonnet-latest").
	Model string
	// BaseURL is the API base URL (empty means the Anthropic default).
	BaseURL string
}

// NewAnthropicClient creates a Client backed by the Anthropic API.
func NewAnthropicClient(cfg AnthropicConfig) *AnthropicClient {
	var opts []anthropic.ClientOption
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
	}
	return &AnthropicClient{
		client: anthropic.NewClient(cfg.APIKey, opts...),
		model:  cfg.Model,
	}
}

// Complete issues one messages call.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (*Completion, error) {
	temperature := req.Temperature

	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:  anthropic.Model(c.model),
		System: req.System,
		Messages: []anthropic.Message{
			{
				Role: anthropic.RoleUser,
				Content: []anthropic.MessageContent{
					anthropic.NewTextMessageContent(req.Prompt),
				},
			},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: &temperature,
	})
	if err != nil {
		return nil, c.wrapError(err)
	}
	if len(resp.Content) == 0 || resp.Content[0].Text == nil {
		return nil, fmt.Errorf("anthropic: response contains no text content")
	}

	return &Completion{
		Text:        *resp.Content[0].Text,
		TotalTokens: resp.Usage.InputTokens + resp.Usage.OutputTokens,
		Model:       c.model,
	}, nil
}

// Provider returns the provider name.
func (c *AnthropicClient) Provider() string { return "anthropic" }

// Model returns the model identifier being used.
func (c *AnthropicClient) Model() string { return c.model }

// wrapError converts SDK errors into *APIError. Anthropic reports errors
// either as a typed API error (rate_limit_error, overloaded_error, api_error,
// authentication_error, invalid_request_error) or as a request-level error
// carrying the HTTP status.
func (c *AnthropicClient) wrapError(err error) error {
	var reqErr *anthropic.RequestError
	if errors.As(err, &reqErr) {
		return &APIError{
			Provider:   "anthropic",
			StatusCode: reqErr.StatusCode,
			Message:    reqErr.Error(),
		}
	}

	var apiErr *anthropic.APIError
	if errors.As(err, &apiErr) {
		return &APIError{
			Provider:   "anthropic",
			StatusCode: anthropicStatus(string(apiErr.Type)),
			Message:    apiErr.Message,
			Type:       string(apiErr.Type),
		}
	}

	return &APIError{Provider: "anthropic", Message: err.Error()}
}

// anthropicStatus maps the Anthropic error type taxonomy onto HTTP status
// codes so APIError.IsTransient applies uniformly across providers.
func anthropicStatus(errType string) int {
	switch errType {
	case "rate_limit_error":
		return http.StatusTooManyRequests
	case "overloaded_error", "api_error":
		return http.StatusInternalServerError
	case "authentication_error", "permission_error":
		return http.StatusUnauthorized
	default:
		return http.StatusBadRequest
	}
}
