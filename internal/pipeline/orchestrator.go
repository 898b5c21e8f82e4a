package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/reasoninghub/paper-eval-service/internal/domain"
	"github.com/reasoninghub/paper-eval-service/internal/llm"
	"github.com/reasoninghub/paper-eval-service/internal/observability"
	"github.com/reasoninghub/paper-eval-service/internal/repository"
	"github.com/reasoninghub/paper-eval-service/internal/scoring"
)

// ModelGateway is the slice of the model gateway the orchestrator needs.
type ModelGateway interface {
	Invoke(ctx context.Context, purpose llm.Purpose, prompt string) (*llm.Completion, error)
	Triage(ctx context.Context, title, abstract string) (*llm.TriageDecision, error)
}

// BatchOptions selects which papers a batch run processes.
type BatchOptions struct {
	// IDs restricts the run to specific papers; when set, Limit is ignored.
	IDs []int64
	// Force reprocesses papers that already carry stage output.
	Force bool
	// Limit caps how many papers are selected when IDs is empty.
	Limit int
}

// SummaryReport describes the outcome of one summarization run.
type SummaryReport struct {
	RunID        string
	Selected     int
	Triaged      int
	Skipped      int
	Summarized   int
	Failed       int
	TriageTokens int
	// MissingIDs are explicitly requested papers that were not found.
	MissingIDs []int64
}

// ScoreReport describes the outcome of one scoring run.
type ScoreReport struct {
	RunID    string
	Selected int
	Scored   int
	Failed   int
	Rescaled int
	// MissingIDs are explicitly requested papers that were not selectable.
	MissingIDs []int64
}

// Orchestrator drives papers through the staged evaluation pipeline. Each
// stage persists its output immediately, so an interrupted run resumes where
// it stopped: papers already carrying stage output are not selected again
// unless forced.
//
// Storage failures abort the batch; per-paper model or validation failures
// are logged and the batch moves on.
type Orchestrator struct {
	store       repository.PaperStore
	gateway     ModelGateway
	rubric      scoring.Rubric
	tiers       scoring.TierTable
	rescaler    scoring.Rescaler
	truncateLen int
	logger      zerolog.Logger
	metrics     *observability.Metrics
}

// NewOrchestrator wires an Orchestrator.
func NewOrchestrator(
	store repository.PaperStore,
	gateway ModelGateway,
	rubric scoring.Rubric,
	tiers scoring.TierTable,
	rescaler scoring.Rescaler,
	truncateLen int,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *Orchestrator {
	return &Orchestrator{
		store:       store,
		gateway:     gateway,
		rubric:      rubric,
		tiers:       tiers,
		rescaler:    rescaler,
		truncateLen: truncateLen,
		logger:      logger,
		metrics:     metrics,
	}
}

// Summarize runs the triage and summarization stages over one batch.
func (o *Orchestrator) Summarize(ctx context.Context, opts BatchOptions) (*SummaryReport, error) {
	report := &SummaryReport{RunID: uuid.NewString()}
	logger := observability.WithBatchContext(o.logger, report.RunID, "summarize")
	start := time.Now()
	defer func() {
		o.metrics.BatchDuration.WithLabelValues("summarize").Observe(time.Since(start).Seconds())
	}()

	papers, err := o.store.SelectForSummary(ctx, opts.IDs, opts.Force, opts.Limit)
	if err != nil {
		return nil, err
	}
	report.Selected = len(papers)
	report.MissingIDs = missingIDs(opts.IDs, papers)
	if len(report.MissingIDs) > 0 {
		logger.Warn().Ints64("missing_ids", report.MissingIDs).Msg("requested papers not found")
	}
	if len(papers) == 0 {
		logger.Info().Msg("no papers need summaries")
		return report, nil
	}

	logger.Info().Int("papers", len(papers)).Msg("starting summarization batch")

	for _, paper := range papers {
		plog := observability.WithPaperContext(logger, paper.ID, paper.Title)

		// Explicitly requested papers may already carry a real summary.
		if !opts.Force && paper.HasSummary() {
			plog.Debug().Msg("already summarized, skipping")
			continue
		}

		relevant, err := o.triage(ctx, paper, report, plog)
		if err != nil {
			return report, err
		}
		if !relevant {
			continue
		}

		if err := o.summarize(ctx, paper, report, plog); err != nil {
			return report, err
		}
	}

	logger.Info().
		Int("triaged", report.Triaged).
		Int("skipped", report.Skipped).
		Int("summarized", report.Summarized).
		Int("failed", report.Failed).
		Int("triage_tokens", report.TriageTokens).
		Msg("summarization batch finished")

	return report, nil
}

// triage runs the relevance check for one paper. A false return means the
// paper was rejected and persisted as skipped. Triage call failures are not
// fatal: the paper proceeds to full summarization.
func (o *Orchestrator) triage(ctx context.Context, paper *domain.Paper, report *SummaryReport, plog zerolog.Logger) (bool, error) {
	decision, err := o.gateway.Triage(ctx, paper.Title, paper.Abstract)
	if err != nil {
		if isContextErr(err) {
			return false, err
		}
		plog.Warn().Err(err).Msg("triage failed, proceeding with full summary")
		return true, nil
	}

	report.Triaged++
	report.TriageTokens += decision.Tokens
	o.metrics.PapersTriaged.Inc()

	if decision.Relevant {
		return true, nil
	}

	if err := o.store.SaveTriageSkip(ctx, paper.ID, decision.Reason, decision.Model); err != nil {
		return false, err
	}
	report.Skipped++
	o.metrics.PapersSkipped.Inc()
	plog.Info().Str("reason", decision.Reason).Msg("skipped, not relevant")

	return false, nil
}

// summarize runs the full summarization stage for one paper.
func (o *Orchestrator) summarize(ctx context.Context, paper *domain.Paper, report *SummaryReport, plog zerolog.Logger) error {
	completion, err := o.gateway.Invoke(ctx, llm.PurposeFull, buildSummaryPrompt(paper))
	if err != nil {
		if isContextErr(err) {
			return err
		}
		report.Failed++
		o.metrics.RecordStageFailure("summarize")
		plog.Error().Err(err).Msg("summary failed")
		return nil
	}

	markdown := strings.TrimSpace(completion.Text)
	if markdown == "" {
		report.Failed++
		o.metrics.RecordStageFailure("summarize")
		plog.Error().Msg("summary response was empty")
		return nil
	}

	if violations := boilerplateViolations(markdown); len(violations) > 0 {
		plog.Warn().Strs("phrases", violations).Msg("summary contains boilerplate")
	}

	tldr := ExtractTLDR(markdown)
	if err := o.store.SaveSummary(ctx, paper.ID, markdown, tldr, completion.Model, completion.TotalTokens); err != nil {
		return err
	}

	report.Summarized++
	o.metrics.PapersSummarized.Inc()
	plog.Info().Int("chars", len(markdown)).Msg("summarized")

	return nil
}

// Score runs the scoring stage over one batch. All raw scores are collected
// before anything is persisted so that batch rescaling sees the complete
// population; the tier is derived from the final (possibly rescaled) score.
func (o *Orchestrator) Score(ctx context.Context, opts BatchOptions) (*ScoreReport, error) {
	report := &ScoreReport{RunID: uuid.NewString()}
	logger := observability.WithBatchContext(o.logger, report.RunID, "score")
	start := time.Now()
	defer func() {
		o.metrics.BatchDuration.WithLabelValues("score").Observe(time.Since(start).Seconds())
	}()

	papers, err := o.store.SelectForScoring(ctx, opts.IDs, opts.Force, opts.Limit)
	if err != nil {
		return nil, err
	}
	report.Selected = len(papers)
	report.MissingIDs = missingIDs(opts.IDs, papers)
	if len(report.MissingIDs) > 0 {
		logger.Warn().Ints64("missing_ids", report.MissingIDs).Msg("requested papers not selectable for scoring")
	}
	if len(papers) == 0 {
		logger.Info().Msg("no papers need scoring")
		return report, nil
	}

	logger.Info().Int("papers", len(papers)).Msg("starting scoring batch")

	results := make([]*scoring.BatchScoreResult, 0, len(papers))
	for _, paper := range papers {
		plog := observability.WithPaperContext(logger, paper.ID, paper.Title)

		completion, err := o.gateway.Invoke(ctx, llm.PurposeFull, buildScoringPrompt(&o.rubric, paper, o.truncateLen))
		if err != nil {
			if isContextErr(err) {
				return report, err
			}
			report.Failed++
			o.metrics.RecordStageFailure("score")
			plog.Error().Err(err).Msg("scoring call failed")
			continue
		}

		card, err := o.rubric.ParseResponse(completion.Text)
		if err != nil {
			report.Failed++
			o.metrics.RecordStageFailure("score")
			plog.Error().Err(err).Msg("scoring response rejected")
			continue
		}

		raw := card.Total()
		results = append(results, &scoring.BatchScoreResult{
			PaperID:       paper.ID,
			Values:        card.Values,
			RawScore:      raw,
			Category:      paper.Category,
			RescaledScore: raw,
			Reasoning:     card.Reasoning,
		})
	}

	o.rescaler.Apply(results)

	scoredAt := time.Now().UTC()
	for _, result := range results {
		if result.RescaledScore != result.RawScore {
			report.Rescaled++
			o.metrics.ScoresRescaled.Inc()
		}

		tier := o.tiers.Tier(result.RescaledScore)
		breakdown := formatBreakdown(&o.rubric, result.Values)
		if err := o.store.SaveScore(ctx, result.PaperID, result.RawScore, result.RescaledScore, tier, breakdown, result.Reasoning, scoredAt); err != nil {
			return report, err
		}

		report.Scored++
		o.metrics.PapersScored.Inc()
		logger.Info().
			Int64("paper_id", result.PaperID).
			Int("raw_score", result.RawScore).
			Int("final_score", result.RescaledScore).
			Str("tier", tier).
			Str("breakdown", breakdown).
			Msg("scored")
	}

	logger.Info().
		Int("scored", report.Scored).
		Int("failed", report.Failed).
		Int("rescaled", report.Rescaled).
		Msg("scoring batch finished")

	return report, nil
}

// missingIDs returns the explicitly requested IDs absent from the selection.
func missingIDs(requested []int64, papers []*domain.Paper) []int64 {
	if len(requested) == 0 {
		return nil
	}
	found := make(map[int64]struct{}, len(papers))
	for _, p := range papers {
		found[p.ID] = struct{}{}
	}
	var missing []int64
	for _, id := range requested {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

// isContextErr reports whether err stems from cancellation or deadline
// expiry, which should abort the whole batch rather than count as a per-paper
// failure.
func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
