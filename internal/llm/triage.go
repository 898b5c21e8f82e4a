package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/reasoninghub/paper-eval-service/internal/extract"
)

// FallbackModelID marks triage decisions produced without a model call.
const FallbackModelID = "fallback-default"

// TriageDecision is the outcome of a relevance check on a paper.
type TriageDecision struct {
	// Relevant reports whether the paper should continue through the pipeline.
	Relevant bool
	// Reason is the model's one-line justification, empty for fallback
	// decisions.
	Reason string
	// Model identifies what produced the decision, FallbackModelID when no
	// provider was available.
	Model string
	// Tokens is the token count consumed by the decision.
	Tokens int
}

const triagePromptTemplate = `You are a strict relevance filter for a research feed about reasoning in AI systems (LLM reasoning, planning, chain-of-thought, formal and mathematical reasoning, agents, evaluation of reasoning).

Decide whether the paper below is relevant to that feed.

Title: %s

Abstract: %s

Respond with only a JSON object, no prose:
{"relevant": true or false, "reason": "one short sentence"}`

// Triage asks the model whether a paper is relevant. When no provider is
// configured the gateway degrades: it returns a decision marking the paper
// relevant so that no paper is silently dropped for want of credentials.
func (g *Gateway) Triage(ctx context.Context, title, abstract string) (*TriageDecision, error) {
	if g.client == nil {
		g.metrics.TriageFallbacks.Inc()
		g.logger.Debug().Str("title", title).Msg("no triage provider, defaulting to relevant")
		return &TriageDecision{
			Relevant: true,
			Model:    FallbackModelID,
			Tokens:   0,
		}, nil
	}

	prompt := fmt.Sprintf(triagePromptTemplate, strings.TrimSpace(title), strings.TrimSpace(abstract))

	completion, err := g.Invoke(ctx, PurposeTriage, prompt)
	if err != nil {
		return nil, fmt.Errorf("triage: %w", err)
	}

	raw, err := extract.FirstJSONObject(completion.Text)
	if err != nil {
		return nil, fmt.Errorf("triage: %w", err)
	}

	var parsed struct {
		Relevant bool   `json:"relevant"`
		Reason   string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("triage: decode decision: %w", err)
	}

	return &TriageDecision{
		Relevant: parsed.Relevant,
		Reason:   parsed.Reason,
		Model:    completion.Model,
		Tokens:   completion.TotalTokens,
	}, nil
}
