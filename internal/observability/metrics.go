package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the paper evaluation pipeline.
// Metrics are organized by subsystem: triage, summarization, scoring, and LLM
// operations. Counters and histograms are registered via promauto against the
// registerer passed to NewMetrics.
type Metrics struct {
	// PapersTriaged counts papers put through the relevance triage stage.
	PapersTriaged prometheus.Counter

	// PapersSkipped counts papers marked not relevant at triage.
	PapersSkipped prometheus.Counter

	// TriageFallbacks counts triage calls answered by the fallback decision
	// because no triage provider was available.
	TriageFallbacks prometheus.Counter

	// PapersSummarized counts papers that received a summary.
	PapersSummarized prometheus.Counter

	// PapersScored counts papers that received a validated score.
	PapersScored prometheus.Counter

	// PapersFailed counts papers that failed a stage, labeled by stage.
	PapersFailed *prometheus.CounterVec

	// BatchDuration observes end-to-end batch duration in seconds, labeled by stage.
	BatchDuration *prometheus.HistogramVec

	// ScoresRescaled counts scores adjusted by the statistical rescaler.
	ScoresRescaled prometheus.Counter

	// LLMRequestsTotal counts LLM API requests, labeled by purpose and model.
	LLMRequestsTotal *prometheus.CounterVec

	// LLMRequestsFailed counts failed LLM API requests, labeled by purpose, model, and error type.
	LLMRequestsFailed *prometheus.CounterVec

	// LLMRequestDuration observes LLM API request duration in seconds, labeled by purpose and model.
	LLMRequestDuration *prometheus.HistogramVec

	// LLMTokensUsed counts tokens consumed by LLM calls, labeled by purpose and model.
	LLMTokensUsed *prometheus.CounterVec

	// LLMRetries counts retry attempts against LLM providers.
	LLMRetries prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics initialized and
// registered against reg. The namespace is used as a prefix for all metric
// names.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Pipeline stages
		PapersTriaged: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_triaged_total",
			Help:      "Total number of papers put through relevance triage",
		}),
		PapersSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_skipped_total",
			Help:      "Total number of papers skipped as not relevant",
		}),
		TriageFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "triage_fallbacks_total",
			Help:      "Total number of triage calls answered by the fallback decision",
		}),
		PapersSummarized: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_summarized_total",
			Help:      "Total number of papers summarized",
		}),
		PapersScored: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_scored_total",
			Help:      "Total number of papers scored",
		}),
		PapersFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_failed_total",
			Help:      "Total number of papers that failed a pipeline stage",
		}, []string{"stage"}),
		BatchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Duration of pipeline batches in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200, 1800},
		}, []string{"stage"}),
		ScoresRescaled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scores_rescaled_total",
			Help:      "Total number of scores adjusted by statistical rescaling",
		}),

		// LLM
		LLMRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of LLM requests by purpose",
		}, []string{"purpose", "model"}),
		LLMRequestsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_failed_total",
			Help:      "Total number of failed LLM requests by purpose",
		}, []string{"purpose", "model", "error_type"}),
		LLMRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Duration of LLM requests in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"purpose", "model"}),
		LLMTokensUsed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_used_total",
			Help:      "Total number of tokens used by LLM calls",
		}, []string{"purpose", "model"}),
		LLMRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_retries_total",
			Help:      "Total number of retry attempts against LLM providers",
		}),
	}
}

// RecordLLMRequest records a completed LLM request.
func (m *Metrics) RecordLLMRequest(purpose, model string, durationSeconds float64, totalTokens int) {
	m.LLMRequestsTotal.WithLabelValues(purpose, model).Inc()
	m.LLMRequestDuration.WithLabelValues(purpose, model).Observe(durationSeconds)
	m.LLMTokensUsed.WithLabelValues(purpose, model).Add(float64(totalTokens))
}

// RecordLLMRequestFailed records a failed LLM request.
func (m *Metrics) RecordLLMRequestFailed(purpose, model, errorType string) {
	m.LLMRequestsFailed.WithLabelValues(purpose, model, errorType).Inc()
}

// RecordStageFailure records a paper that failed a pipeline stage.
func (m *Metrics) RecordStageFailure(stage string) {
	m.PapersFailed.WithLabelValues(stage).Inc()
}
