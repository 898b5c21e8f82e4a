package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GeminiClient implements Client on the Google Generative AI API.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// GeminiConfig holds the parameters needed to create a Gemini client.
type GeminiConfig struct {
	// APIKey is the Google AI API key.
	APIKey string
	// Model is the model identifier (e.g., "gemini-1.5-flash").
	Model string
}

// NewGeminiClient creates a Client backed by the Gemini API.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &GeminiClient{client: client, model: cfg.Model}, nil
}

// Complete issues one generate-content call.
func (c *GeminiClient) Complete(ctx context.Context, req Request) (*Completion, error) {
	model := c.client.GenerativeModel(c.model)
	model.SetTemperature(req.Temperature)
	model.SetMaxOutputTokens(int32(req.MaxTokens))
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return nil, c.wrapError(err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("gemini: response contains no candidates")
	}

	text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return nil, fmt.Errorf("gemini: response part is not text")
	}

	tokens := 0
	if resp.UsageMetadata != nil {
		tokens = int(resp.UsageMetadata.TotalTokenCount)
	}

	return &Completion{
		Text:        string(text),
		TotalTokens: tokens,
		Model:       c.model,
	}, nil
}

// Provider returns the provider name.
func (c *GeminiClient) Provider() string { return "gemini" }

// Model returns the model identifier being used.
func (c *GeminiClient) Model() string { return c.model }

// Close releases the underlying API client.
func (c *GeminiClient) Close() error {
	return c.client.Close()
}

// wrapError converts Google API errors into *APIError.
func (c *GeminiClient) wrapError(err error) error {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return &APIError{
			Provider:   "gemini",
			StatusCode: gErr.Code,
			Message:    gErr.Message,
		}
	}
	return &APIError{Provider: "gemini", Message: err.Error()}
}
