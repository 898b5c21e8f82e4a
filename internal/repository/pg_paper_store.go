package repository

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/reasoninghub/paper-eval-service/internal/database"
	"github.com/reasoninghub/paper-eval-service/internal/domain"
)

// Compile-time interface verification.
var _ PaperStore = (*PgPaperStore)(nil)

// psql builds queries with PostgreSQL-style $n placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// paperColumns are the columns scanned by scanPaper, in order. Nullable
// columns are coalesced so papers that have not reached a stage yet scan
// cleanly into the domain struct.
var paperColumns = []string{
	"id",
	"title",
	"COALESCE(authors, '')",
	"COALESCE(abstract, '')",
	"published_at",
	"COALESCE(category, '')",
	"COALESCE(link, '')",
	"COALESCE(notes, '')",
	"COALESCE(summary_markdown, '')",
	"COALESCE(tldr, '')",
	"COALESCE(model_used, '')",
	"COALESCE(summary_tokens, 0)",
	"COALESCE(raw_score, 0)",
	"COALESCE(final_score, 0)",
	"COALESCE(tier, '')",
	"COALESCE(score_breakdown, '')",
	"COALESCE(reasoning, '')",
	"last_summarized_at",
	"last_scored_at",
	"created_at",
}

// PgPaperStore is a PostgreSQL implementation of PaperStore.
type PgPaperStore struct {
	db database.DBTX
}

// NewPgPaperStore creates a new PostgreSQL paper store.
func NewPgPaperStore(db database.DBTX) *PgPaperStore {
	return &PgPaperStore{db: db}
}

// SelectForSummary retrieves papers that still need a summary.
func (s *PgPaperStore) SelectForSummary(ctx context.Context, ids []int64, force bool, limit int) ([]*domain.Paper, error) {
	builder := psql.Select(paperColumns...).From("papers")

	if len(ids) > 0 {
		builder = builder.Where(sq.Eq{"id": ids})
	} else if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	if !force {
		builder = builder.Where("(summary_markdown IS NULL OR TRIM(summary_markdown) = '' OR tldr IS NULL OR TRIM(tldr) = '')")
	}
	builder = builder.OrderBy("id DESC")

	return s.queryPapers(ctx, builder, "select papers for summary")
}

// SelectForScoring retrieves papers ready to be scored. Skipped papers never
// qualify regardless of force.
func (s *PgPaperStore) SelectForScoring(ctx context.Context, ids []int64, force bool, limit int) ([]*domain.Paper, error) {
	builder := psql.Select(paperColumns...).From("papers").
		Where("summary_markdown IS NOT NULL AND summary_markdown <> ''").
		Where(sq.NotLike{"summary_markdown": domain.SkipPrefix + "%"})

	if len(ids) > 0 {
		builder = builder.Where(sq.Eq{"id": ids})
	} else if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	if !force {
		builder = builder.Where("COALESCE(final_score, 0) = 0")
	}
	builder = builder.OrderBy("id DESC")

	return s.queryPapers(ctx, builder, "select papers for scoring")
}

// SaveTriageSkip marks a paper as rejected by triage. The skip sentinel in
// the summary column keeps the paper out of later selections.
func (s *PgPaperStore) SaveTriageSkip(ctx context.Context, id int64, reason, model string) error {
	query, args, err := psql.Update("papers").
		Set("summary_markdown", domain.SkipSentinel).
		Set("tldr", reason).
		Set("model_used", model).
		Set("summary_tokens", 0).
		Set("last_summarized_at", time.Now().UTC()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build triage skip query: %w", err)
	}

	return s.execPaperUpdate(ctx, id, query, args, "save triage skip")
}

// SaveSummary persists the summarization output for a paper.
func (s *PgPaperStore) SaveSummary(ctx context.Context, id int64, summaryMarkdown, tldr, model string, tokens int) error {
	if summaryMarkdown == "" {
		return domain.NewValidationError("summary_markdown", "summary cannot be empty")
	}

	query, args, err := psql.Update("papers").
		Set("summary_markdown", summaryMarkdown).
		Set("tldr", tldr).
		Set("model_used", model).
		Set("summary_tokens", tokens).
		Set("last_summarized_at", time.Now().UTC()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build summary query: %w", err)
	}

	return s.execPaperUpdate(ctx, id, query, args, "save summary")
}

// SaveScore persists the scoring output for a paper.
func (s *PgPaperStore) SaveScore(ctx context.Context, id int64, rawScore, finalScore int, tier, breakdown, reasoning string, scoredAt time.Time) error {
	if tier == "" {
		return domain.NewValidationError("tier", "tier cannot be empty")
	}

	query, args, err := psql.Update("papers").
		Set("raw_score", rawScore).
		Set("final_score", finalScore).
		Set("tier", tier).
		Set("score_breakdown", breakdown).
		Set("reasoning", reasoning).
		Set("last_scored_at", scoredAt.UTC()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build score query: %w", err)
	}

	return s.execPaperUpdate(ctx, id, query, args, "save score")
}

// queryPapers runs a select built by squirrel and scans all rows.
func (s *PgPaperStore) queryPapers(ctx context.Context, builder sq.SelectBuilder, op string) ([]*domain.Paper, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %s: %w", op, err)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var papers []*domain.Paper
	for rows.Next() {
		paper, err := scanPaper(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		papers = append(papers, paper)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", op, err)
	}

	return papers, nil
}

// execPaperUpdate runs an update that must touch exactly one paper.
func (s *PgPaperStore) execPaperUpdate(ctx context.Context, id int64, query string, args []interface{}, op string) error {
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("paper", fmt.Sprintf("%d", id))
	}
	return nil
}

// scanPaper scans a single paper row in paperColumns order.
func scanPaper(row pgx.Row) (*domain.Paper, error) {
	var paper domain.Paper
	err := row.Scan(
		&paper.ID,
		&paper.Title,
		&paper.Authors,
		&paper.Abstract,
		&paper.PublishedAt,
		&paper.Category,
		&paper.Link,
		&paper.Notes,
		&paper.SummaryMarkdown,
		&paper.TLDR,
		&paper.ModelUsed,
		&paper.SummaryTokens,
		&paper.RawScore,
		&paper.FinalScore,
		&paper.Tier,
		&paper.ScoreBreakdown,
		&paper.Reasoning,
		&paper.LastSummarizedAt,
		&paper.LastScoredAt,
		&paper.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &paper, nil
}
