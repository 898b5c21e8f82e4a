package llm

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/reasoninghub/paper-eval-service/internal/domain"
	"github.com/reasoninghub/paper-eval-service/internal/observability"
)

// RetryPolicy controls the exponential backoff applied to transient provider
// failures.
type RetryPolicy struct {
	// Multiplier is the exponential growth factor between waits.
	Multiplier float64
	// MinWait is the wait before the first retry.
	MinWait time.Duration
	// MaxWait caps the wait between retries.
	MaxWait time.Duration
	// MaxAttempts is the total number of attempts, including the first call.
	MaxAttempts int
}

// DefaultRetryPolicy returns the backoff used in production: 5s doubling up
// to 90s, 8 attempts total.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Multiplier:  2,
		MinWait:     5 * time.Second,
		MaxWait:     90 * time.Second,
		MaxAttempts: 8,
	}
}

// Backoff returns the wait before retry number retryIndex (zero-based):
// min(MaxWait, MinWait * Multiplier^retryIndex).
func (p RetryPolicy) Backoff(retryIndex int) time.Duration {
	wait := float64(p.MinWait) * math.Pow(p.Multiplier, float64(retryIndex))
	if wait > float64(p.MaxWait) {
		return p.MaxWait
	}
	return time.Duration(wait)
}

// CallOptions are the per-purpose sampling parameters sent with each request.
type CallOptions struct {
	// System is the system prompt, empty for none.
	System string
	// Temperature is the sampling temperature.
	Temperature float32
	// MaxTokens caps the completion length.
	MaxTokens int
}

// GatewayConfig holds the tunables for a Gateway.
type GatewayConfig struct {
	// Retry is the backoff policy for transient failures.
	Retry RetryPolicy
	// Full are the call options for summarization and scoring calls.
	Full CallOptions
	// Triage are the call options for cheap relevance checks.
	Triage CallOptions
	// CallTimeout bounds a single provider call; zero means no per-call
	// deadline beyond the caller's context.
	CallTimeout time.Duration
	// RateLimitRPS is the outbound request rate limit; zero or negative
	// disables limiting.
	RateLimitRPS float64
	// RateLimitBurst is the rate limiter burst size.
	RateLimitBurst int
}

// Gateway is the single entry point for model calls. It wraps a provider
// Client with retry, rate limiting, per-purpose call options, and metrics.
// The client may be nil, in which case Invoke fails with ErrNoProvider and
// Triage degrades to the fallback decision.
type Gateway struct {
	client      Client
	retry       RetryPolicy
	full        CallOptions
	triage      CallOptions
	callTimeout time.Duration
	limiter     *rate.Limiter
	logger      zerolog.Logger
	metrics     *observability.Metrics
}

// NewGateway creates a Gateway around client. A nil client is allowed and
// produces a gateway in degraded mode.
func NewGateway(client Client, cfg GatewayConfig, logger zerolog.Logger, metrics *observability.Metrics) *Gateway {
	limit := rate.Inf
	burst := 0
	if cfg.RateLimitRPS > 0 {
		limit = rate.Limit(cfg.RateLimitRPS)
		burst = cfg.RateLimitBurst
		if burst < 1 {
			burst = 1
		}
	}

	return &Gateway{
		client:      client,
		retry:       cfg.Retry,
		full:        cfg.Full,
		triage:      cfg.Triage,
		callTimeout: cfg.CallTimeout,
		limiter:     rate.NewLimiter(limit, burst),
		logger:      logger,
		metrics:     metrics,
	}
}

// options returns the call options for the given purpose.
func (g *Gateway) options(purpose Purpose) CallOptions {
	if purpose == PurposeTriage {
		return g.triage
	}
	return g.full
}

// model returns the configured model identifier, or a placeholder in
// degraded mode.
func (g *Gateway) model() string {
	if g.client == nil {
		return FallbackModelID
	}
	return g.client.Model()
}

// Invoke sends one prompt to the provider, retrying transient failures with
// exponential backoff. Permanent failures (bad credentials, malformed
// requests, unparseable responses) are returned immediately.
func (g *Gateway) Invoke(ctx context.Context, purpose Purpose, prompt string) (*Completion, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, domain.NewValidationError("prompt", "prompt cannot be empty")
	}
	if g.client == nil {
		return nil, domain.ErrNoProvider
	}

	opts := g.options(purpose)
	req := Request{
		System:      opts.System,
		Prompt:      prompt,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}

	var lastErr error
	for attempt := 0; attempt < g.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			wait := g.retry.Backoff(attempt - 1)
			g.logger.Warn().
				Str("purpose", string(purpose)).
				Int("attempt", attempt).
				Dur("wait", wait).
				Err(lastErr).
				Msg("retrying model call")
			g.metrics.LLMRetries.Inc()

			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("llm: wait for retry: %w", ctx.Err())
			case <-time.After(wait):
			}
		}

		if err := g.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("llm: rate limiter: %w", err)
		}

		start := time.Now()
		completion, err := g.complete(ctx, req)
		if err == nil {
			g.metrics.RecordLLMRequest(string(purpose), g.client.Model(), time.Since(start).Seconds(), completion.TotalTokens)
			return completion, nil
		}

		lastErr = err
		g.metrics.RecordLLMRequestFailed(string(purpose), g.client.Model(), errorType(err))
		if !IsTransient(err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("llm: %d attempts exhausted: %w", g.retry.MaxAttempts, lastErr)
}

// complete issues one provider call under the per-call timeout. A timed-out
// attempt surfaces as a provider network error and stays retryable; only the
// caller's own context aborts the retry loop.
func (g *Gateway) complete(ctx context.Context, req Request) (*Completion, error) {
	if g.callTimeout > 0 {
		callCtx, cancel := context.WithTimeout(ctx, g.callTimeout)
		defer cancel()
		ctx = callCtx
	}
	return g.client.Complete(ctx, req)
}

// errorType classifies an error for the failure metric label.
func errorType(err error) string {
	apiErr, ok := AsAPIError(err)
	if !ok {
		return "other"
	}
	switch {
	case apiErr.StatusCode == 0:
		return "network"
	case apiErr.StatusCode == 429:
		return "rate_limit"
	case apiErr.StatusCode >= 500:
		return "server"
	default:
		return "client"
	}
}
