package repository

import (
	"context"
	"time"

	"github.com/reasoninghub/paper-eval-service/internal/domain"
)

// PaperStore handles paper persistence for the evaluation pipeline. Each save
// method updates exactly the columns owned by one pipeline stage, so that a
// re-run never clobbers the output of a later stage.
type PaperStore interface {
	// SelectForSummary retrieves papers that still need a summary. Papers that
	// already have one (including the skip sentinel) are excluded unless force
	// is set. When ids is non-empty only those papers are considered and limit
	// is ignored.
	SelectForSummary(ctx context.Context, ids []int64, force bool, limit int) ([]*domain.Paper, error)

	// SelectForScoring retrieves papers that have a real summary but no score
	// yet. Skipped papers never qualify. When force is set, already-scored
	// papers qualify again. When ids is non-empty only those papers are
	// considered and limit is ignored.
	SelectForScoring(ctx context.Context, ids []int64, force bool, limit int) ([]*domain.Paper, error)

	// SaveTriageSkip records that triage rejected a paper. The summary column
	// is set to the skip sentinel so the paper never re-enters the pipeline.
	// Returns domain.ErrNotFound if the paper does not exist.
	SaveTriageSkip(ctx context.Context, id int64, reason, model string) error

	// SaveSummary persists the summarization output for a paper.
	// Returns domain.ErrNotFound if the paper does not exist.
	SaveSummary(ctx context.Context, id int64, summaryMarkdown, tldr, model string, tokens int) error

	// SaveScore persists the scoring output for a paper.
	// Returns domain.ErrNotFound if the paper does not exist.
	SaveScore(ctx context.Context, id int64, rawScore, finalScore int, tier, breakdown, reasoning string, scoredAt time.Time) error
}
