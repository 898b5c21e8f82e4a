// Package domain contains the core entities of the paper evaluation service.
package domain

import (
	"strings"
	"time"
)

// SkipSentinel is stored in SummaryMarkdown when triage marks a paper as not
// relevant. Any summary beginning with SkipPrefix is treated as skipped, which
// keeps older sentinel wordings recognizable.
const (
	SkipSentinel = "[Skipped - not relevant]"
	SkipPrefix   = "[Skipped"
)

// Paper represents one research paper record under evaluation.
//
// The pipeline owns the derived fields (SummaryMarkdown, TLDR, RawScore,
// FinalScore, Tier, ScoreBreakdown, Reasoning and the stage timestamps); the
// storage layer owns persistence and uniqueness of ID.
type Paper struct {
	ID       int64
	Title    string
	Authors  string
	Abstract string
	// PublishedAt is the publication date reported by the upstream feed.
	PublishedAt *time.Time
	// Category is a free-text grouping label, optional. It is used as the
	// grouping key for per-group score rescaling.
	Category string
	// Link is the canonical URL for the paper (arXiv page or PDF).
	Link string
	// Notes is optional curator-supplied context passed to the summarizer.
	Notes string

	// SummaryMarkdown is the structured technical summary, empty until the
	// paper is summarized, or SkipSentinel when triage rejected it.
	SummaryMarkdown string
	// TLDR is the short highlight extracted from the summary, or the triage
	// reason for skipped papers.
	TLDR string
	// ModelUsed records the model that produced the summary.
	ModelUsed string
	// SummaryTokens is the token count reported for the summary call.
	SummaryTokens int

	// RawScore is the composite score before rescaling.
	RawScore int
	// FinalScore is the composite score after rescaling. It equals RawScore
	// when rescaling is disabled and always lies within the rubric range.
	FinalScore int
	// Tier is the letter grade derived from FinalScore, empty until scored.
	Tier string
	// ScoreBreakdown is a human-readable rendering of per-dimension values.
	ScoreBreakdown string
	// Reasoning is the model's free-text justification for the score.
	Reasoning string

	LastSummarizedAt *time.Time
	LastScoredAt     *time.Time
	CreatedAt        time.Time
}

// IsSkipped reports whether triage marked this paper as not relevant.
func (p *Paper) IsSkipped() bool {
	return strings.HasPrefix(strings.TrimSpace(p.SummaryMarkdown), SkipPrefix)
}

// HasSummary reports whether the paper carries a real (non-skipped) summary.
func (p *Paper) HasSummary() bool {
	return strings.TrimSpace(p.SummaryMarkdown) != "" && !p.IsSkipped()
}

// IsScored reports whether the paper already carries a nonzero score.
func (p *Paper) IsScored() bool {
	return p.FinalScore != 0
}
