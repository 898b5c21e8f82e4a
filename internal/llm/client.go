// Package llm provides the provider-abstracted model invocation layer for the
// paper evaluation pipeline.
//
// Each supported provider (OpenAI, Anthropic, Gemini, and Ollama through its
// OpenAI-compatible endpoint) implements the Client interface and encapsulates
// its own request shape and transient-error classification. The Gateway wraps
// the selected client with prompt validation, per-purpose generation options,
// outbound rate limiting and bounded exponential-backoff retry.
package llm

import (
	"context"
)

// Purpose identifies why the pipeline is calling the model. Triage calls use
// a small output ceiling and a cheaper temperature than full summary/scoring
// calls.
type Purpose string

const (
	// PurposeTriage is the cheap preliminary relevance classification.
	PurposeTriage Purpose = "triage"

	// PurposeFull covers full summarization and scoring calls.
	PurposeFull Purpose = "full"
)

// Request is a single completion request to a provider.
type Request struct {
	// System is an optional system-level instruction.
	System string
	// Prompt is the fully rendered user prompt; no placeholders remain.
	Prompt string
	// Temperature is the sampling temperature, fixed low for determinism.
	Temperature float32
	// MaxTokens bounds the response length.
	MaxTokens int
}

// Completion is the provider's answer to a Request.
type Completion struct {
	// Text is the raw response text.
	Text string
	// TotalTokens is the token count reported by the provider, zero when
	// the provider does not report usage.
	TotalTokens int
	// Model is the identifier of the model that produced the response.
	Model string
}

// Client is implemented once per provider.
//
// Implementations issue exactly one generative call per Complete invocation,
// respect context cancellation, and wrap provider failures in *APIError so
// the Gateway can classify them as transient or permanent.
type Client interface {
	// Complete issues one completion call.
	Complete(ctx context.Context, req Request) (*Completion, error)

	// Provider returns the provider name (e.g., "openai", "anthropic").
	Provider() string

	// Model returns the model identifier being used.
	Model() string
}
