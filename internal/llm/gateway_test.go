package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reasoninghub/paper-eval-service/internal/domain"
	"github.com/reasoninghub/paper-eval-service/internal/observability"
)

// fakeClient returns scripted results in sequence, then repeats the last one.
type fakeClient struct {
	results []fakeResult
	calls   int
	lastReq Request
}

type fakeResult struct {
	completion *Completion
	err        error
}

func (f *fakeClient) Complete(_ context.Context, req Request) (*Completion, error) {
	f.lastReq = req
	idx := f.calls
	if idx >= len(f.results) {
		idx = len(f.results) - 1
	}
	f.calls++
	r := f.results[idx]
	return r.completion, r.err
}

func (f *fakeClient) Provider() string { return "fake" }
func (f *fakeClient) Model() string    { return "fake-model" }

func testGateway(t *testing.T, client Client, retry RetryPolicy) *Gateway {
	t.Helper()
	metrics := observability.NewMetrics("test", prometheus.NewRegistry())
	cfg := GatewayConfig{
		Retry:  retry,
		Full:   CallOptions{Temperature: 0.2, MaxTokens: 2000},
		Triage: CallOptions{Temperature: 0.1, MaxTokens: 100},
	}
	return NewGateway(client, cfg, zerolog.Nop(), metrics)
}

func fastRetry(attempts int) RetryPolicy {
	return RetryPolicy{
		Multiplier:  2,
		MinWait:     time.Millisecond,
		MaxWait:     5 * time.Millisecond,
		MaxAttempts: attempts,
	}
}

func TestRetryPolicyBackoff(t *testing.T) {
	t.Parallel()

	p := RetryPolicy{Multiplier: 2, MinWait: 5 * time.Second, MaxWait: 90 * time.Second, MaxAttempts: 8}

	assert.Equal(t, 5*time.Second, p.Backoff(0))
	assert.Equal(t, 10*time.Second, p.Backoff(1))
	assert.Equal(t, 20*time.Second, p.Backoff(2))
	assert.Equal(t, 40*time.Second, p.Backoff(3))
	assert.Equal(t, 80*time.Second, p.Backoff(4))
	// 160s is capped at the maximum.
	assert.Equal(t, 90*time.Second, p.Backoff(5))
	assert.Equal(t, 90*time.Second, p.Backoff(10))
}

func TestDefaultRetryPolicy(t *testing.T) {
	t.Parallel()

	p := DefaultRetryPolicy()

	assert.Equal(t, float64(2), p.Multiplier)
	assert.Equal(t, 5*time.Second, p.MinWait)
	assert.Equal(t, 90*time.Second, p.MaxWait)
	assert.Equal(t, 8, p.MaxAttempts)
}

func TestGatewayInvoke(t *testing.T) {
	t.Parallel()

	t.Run("returns completion on first success", func(t *testing.T) {
		t.Parallel()

		client := &fakeClient{results: []fakeResult{
			{completion: &Completion{Text: "ok", TotalTokens: 42, Model: "fake-model"}},
		}}
		gw := testGateway(t, client, fastRetry(3))

		completion, err := gw.Invoke(context.Background(), PurposeFull, "summarize this")
		require.NoError(t, err)

		assert.Equal(t, "ok", completion.Text)
		assert.Equal(t, 42, completion.TotalTokens)
		assert.Equal(t, 1, client.calls)
	})

	t.Run("applies full options for full purpose", func(t *testing.T) {
		t.Parallel()

		client := &fakeClient{results: []fakeResult{
			{completion: &Completion{Text: "ok"}},
		}}
		gw := testGateway(t, client, fastRetry(1))

		_, err := gw.Invoke(context.Background(), PurposeFull, "prompt")
		require.NoError(t, err)

		assert.Equal(t, float32(0.2), client.lastReq.Temperature)
		assert.Equal(t, 2000, client.lastReq.MaxTokens)
	})

	t.Run("applies triage options for triage purpose", func(t *testing.T) {
		t.Parallel()

		client := &fakeClient{results: []fakeResult{
			{completion: &Completion{Text: "ok"}},
		}}
		gw := testGateway(t, client, fastRetry(1))

		_, err := gw.Invoke(context.Background(), PurposeTriage, "prompt")
		require.NoError(t, err)

		assert.Equal(t, float32(0.1), client.lastReq.Temperature)
		assert.Equal(t, 100, client.lastReq.MaxTokens)
	})

	t.Run("retries transient errors until success", func(t *testing.T) {
		t.Parallel()

		client := &fakeClient{results: []fakeResult{
			{err: &APIError{Provider: "fake", StatusCode: 429, Message: "slow down"}},
			{err: &APIError{Provider: "fake", StatusCode: 503, Message: "overloaded"}},
			{completion: &Completion{Text: "ok"}},
		}}
		gw := testGateway(t, client, fastRetry(5))

		completion, err := gw.Invoke(context.Background(), PurposeFull, "prompt")
		require.NoError(t, err)

		assert.Equal(t, "ok", completion.Text)
		assert.Equal(t, 3, client.calls)
	})

	t.Run("does not retry permanent errors", func(t *testing.T) {
		t.Parallel()

		permanent := &APIError{Provider: "fake", StatusCode: 401, Message: "bad key"}
		client := &fakeClient{results: []fakeResult{{err: permanent}}}
		gw := testGateway(t, client, fastRetry(5))

		_, err := gw.Invoke(context.Background(), PurposeFull, "prompt")
		require.Error(t, err)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 401, apiErr.StatusCode)
		assert.Equal(t, 1, client.calls)
	})

	t.Run("does not retry non-API errors", func(t *testing.T) {
		t.Parallel()

		client := &fakeClient{results: []fakeResult{
			{err: errors.New("fake: response contains no choices")},
		}}
		gw := testGateway(t, client, fastRetry(5))

		_, err := gw.Invoke(context.Background(), PurposeFull, "prompt")
		require.Error(t, err)
		assert.Equal(t, 1, client.calls)
	})

	t.Run("exhausts attempts and wraps last error", func(t *testing.T) {
		t.Parallel()

		transient := &APIError{Provider: "fake", StatusCode: 500, Message: "boom"}
		client := &fakeClient{results: []fakeResult{{err: transient}}}
		gw := testGateway(t, client, fastRetry(3))

		_, err := gw.Invoke(context.Background(), PurposeFull, "prompt")
		require.Error(t, err)

		assert.Equal(t, 3, client.calls)
		assert.Contains(t, err.Error(), "3 attempts exhausted")

		var apiErr *APIError
		assert.ErrorAs(t, err, &apiErr)
	})

	t.Run("rejects empty prompt", func(t *testing.T) {
		t.Parallel()

		client := &fakeClient{results: []fakeResult{
			{completion: &Completion{Text: "ok"}},
		}}
		gw := testGateway(t, client, fastRetry(3))

		_, err := gw.Invoke(context.Background(), PurposeFull, "   \n")
		require.Error(t, err)

		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		assert.Equal(t, 0, client.calls)
	})

	t.Run("fails with ErrNoProvider when client is nil", func(t *testing.T) {
		t.Parallel()

		gw := testGateway(t, nil, fastRetry(3))

		_, err := gw.Invoke(context.Background(), PurposeFull, "prompt")
		assert.ErrorIs(t, err, domain.ErrNoProvider)
	})

	t.Run("stops retrying when context is cancelled", func(t *testing.T) {
		t.Parallel()

		transient := &APIError{Provider: "fake", StatusCode: 500, Message: "boom"}
		client := &fakeClient{results: []fakeResult{{err: transient}}}
		gw := testGateway(t, client, RetryPolicy{
			Multiplier:  2,
			MinWait:     time.Hour,
			MaxWait:     time.Hour,
			MaxAttempts: 5,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := gw.Invoke(ctx, PurposeFull, "prompt")
		require.Error(t, err)

		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, 1, client.calls)
	})
}

func TestGatewayTriage(t *testing.T) {
	t.Parallel()

	t.Run("falls back to relevant when no provider is configured", func(t *testing.T) {
		t.Parallel()

		gw := testGateway(t, nil, fastRetry(3))

		decision, err := gw.Triage(context.Background(), "Some Paper", "An abstract.")
		require.NoError(t, err)

		assert.True(t, decision.Relevant)
		assert.Equal(t, FallbackModelID, decision.Model)
		assert.Zero(t, decision.Tokens)
	})

	t.Run("parses decision from model response", func(t *testing.T) {
		t.Parallel()

		client := &fakeClient{results: []fakeResult{
			{completion: &Completion{
				Text:        `{"relevant": false, "reason": "about protein folding"}`,
				TotalTokens: 37,
				Model:       "fake-model",
			}},
		}}
		gw := testGateway(t, client, fastRetry(3))

		decision, err := gw.Triage(context.Background(), "AlphaFold", "Protein structure prediction.")
		require.NoError(t, err)

		assert.False(t, decision.Relevant)
		assert.Equal(t, "about protein folding", decision.Reason)
		assert.Equal(t, "fake-model", decision.Model)
		assert.Equal(t, 37, decision.Tokens)
	})

	t.Run("tolerates commentary around the JSON decision", func(t *testing.T) {
		t.Parallel()

		client := &fakeClient{results: []fakeResult{
			{completion: &Completion{
				Text:  "Sure, here is my verdict:\n{\"relevant\": true, \"reason\": \"novel reasoning benchmark\"}\nHope that helps!",
				Model: "fake-model",
			}},
		}}
		gw := testGateway(t, client, fastRetry(3))

		decision, err := gw.Triage(context.Background(), "Title", "Abstract")
		require.NoError(t, err)
		assert.True(t, decision.Relevant)
	})

	t.Run("returns an error for unparseable responses", func(t *testing.T) {
		t.Parallel()

		client := &fakeClient{results: []fakeResult{
			{completion: &Completion{Text: "I cannot decide.", Model: "fake-model"}},
		}}
		gw := testGateway(t, client, fastRetry(3))

		_, err := gw.Triage(context.Background(), "Title", "Abstract")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "triage")
	})

	t.Run("propagates provider errors", func(t *testing.T) {
		t.Parallel()

		client := &fakeClient{results: []fakeResult{
			{err: &APIError{Provider: "fake", StatusCode: 401, Message: "bad key"}},
		}}
		gw := testGateway(t, client, fastRetry(3))

		_, err := gw.Triage(context.Background(), "Title", "Abstract")
		require.Error(t, err)

		var apiErr *APIError
		assert.ErrorAs(t, err, &apiErr)
	})
}

func TestAPIErrorIsTransient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		transient bool
	}{
		{"network failure", 0, true},
		{"rate limited", 429, true},
		{"server error", 500, true},
		{"bad gateway", 502, true},
		{"unauthorized", 401, false},
		{"bad request", 400, false},
		{"not found", 404, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := &APIError{Provider: "test", StatusCode: tt.status}
			assert.Equal(t, tt.transient, err.IsTransient())
			assert.Equal(t, tt.transient, IsTransient(err))
		})
	}

	t.Run("plain errors are permanent", func(t *testing.T) {
		t.Parallel()
		assert.False(t, IsTransient(errors.New("boom")))
	})
}
