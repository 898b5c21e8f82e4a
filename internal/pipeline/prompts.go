// Package pipeline orchestrates the staged evaluation of papers: relevance
// triage, structured summarization, and rubric scoring.
package pipeline

import (
	"fmt"
	"strings"

	"github.com/reasoninghub/paper-eval-service/internal/domain"
	"github.com/reasoninghub/paper-eval-service/internal/scoring"
)

const summaryPromptTemplate = `You are a **Critical Technical Reviewer** for an AI research lab. Your audience consists of ML engineers and researchers who want deep technical insights, not marketing fluff.

**GOAL**: Deconstruct this paper into its core technical contributions.

**NEGATIVE CONSTRAINTS (STRICTLY ENFORCED)**:
- NO generic praise ("promising results", "novel approach", "state-of-the-art").
- NO vague summaries ("The authors propose a method to improve...").
- NO marketing speak ("revolutionizes", "game-changer").
- If a bullet point does not contain a specific number, metric, or concrete architectural detail, DELETE IT.

**OUTPUT FORMAT (Markdown)**:

# The Big Idea
<1 punchy sentence that captures the "aha!" moment. What is the core innovation?>

# Insight
<2-3 sentences explaining the *technical mechanism* that makes this work. How does it actually solve the problem? Be specific about architecture/loss/data.>

## Problem
<1 bullet: What specific limitation or gap is being addressed?>

## Method
<2-3 bullets: The technical approach. Mention specific architectures (e.g., Transformer, Mamba), algorithms (e.g., DPO, PPO), or data scales.>

## Results
<3-5 bullets. EVERY bullet must cite a specific number, percentage, or comparison from the paper. Example: "Achieves 85.2%% on GSM8K, surpassing Llama-2-70B (83.1%%).">

## Limitations
<1-3 bullets: What does it *fail* to do? What are the constraints? (e.g., "Requires 8x H100s", "Fails on long-context >32k")>

## Why It Matters
<2-3 bullets: Practical implications for engineers. Can we use this? Does it change how we train models?>

## Notable Quotes
<2-3 verbatim quotes from the paper that capture key insights or philosophy.>

---

Title: %s
Authors: %s
ArXiv ID/URL: %s

Abstract:
%s

Optional context:
%s`

// buildSummaryPrompt renders the summarization prompt for a paper.
func buildSummaryPrompt(paper *domain.Paper) string {
	return fmt.Sprintf(summaryPromptTemplate,
		paper.Title,
		paper.Authors,
		paper.Link,
		paper.Abstract,
		paper.Notes,
	)
}

// boilerplatePhrases are banned by the summary prompt; their presence in a
// summary is logged as a quality warning.
var boilerplatePhrases = []string{
	"novel approach",
	"promising results",
	"significant improvement",
}

// boilerplateViolations returns the banned phrases present in a summary.
func boilerplateViolations(summary string) []string {
	lower := strings.ToLower(summary)
	var found []string
	for _, phrase := range boilerplatePhrases {
		if strings.Contains(lower, phrase) {
			found = append(found, phrase)
		}
	}
	return found
}

// buildScoringPrompt renders the scoring prompt from the rubric so the model
// sees exactly the dimensions and bounds the validator will enforce. The
// summary text is truncated to keep cost and drift low.
func buildScoringPrompt(rubric *scoring.Rubric, paper *domain.Paper, truncateLen int) string {
	summary := strings.TrimSpace(paper.SummaryMarkdown)
	if len(summary) > truncateLen {
		summary = summary[:truncateLen]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Score this AI research paper on a %d-%d scale.\n\n", rubric.MinTotal(), rubric.MaxTotal())
	b.WriteString("**SCORING RUBRIC** (total = sum of all):\n\n")
	for _, dim := range rubric.Dimensions() {
		fmt.Fprintf(&b, "%s (%d-%d): %s\n", strings.ToUpper(dim.Name), dim.Min, dim.Max, dimensionGuidance(dim.Name))
	}

	b.WriteString("\n**OUTPUT**: JSON only, no other text.\n{\n")
	for _, dim := range rubric.Dimensions() {
		fmt.Fprintf(&b, "  %q: <%d-%d>,\n", dim.Name, dim.Min, dim.Max)
	}
	b.WriteString("  \"reasoning\": \"<2 sentences: what's good and what's lacking>\"\n}\n")

	b.WriteString(`
**REASONING RULES**:
- Start with the key strength or weakness, not "This paper..."
- Be specific: cite benchmarks, methods, or gaps
- No fluff words: "novel", "promising", "interesting"

`)
	fmt.Fprintf(&b, "**CALIBRATION**: Use the full %d-%d range. Don't default to middle scores - commit to your assessment.\n\n",
		rubric.MinTotal(), rubric.MaxTotal())

	b.WriteString("---\n")
	fmt.Fprintf(&b, "Title: %s\n\n", paper.Title)
	fmt.Fprintf(&b, "TLDR: %s\n\n", strings.TrimSpace(paper.TLDR))
	fmt.Fprintf(&b, "Summary:\n%s", summary)

	return b.String()
}

// dimensionGuidance returns scoring guidance for the well-known rubric
// dimensions; unknown dimensions get a generic instruction.
func dimensionGuidance(name string) string {
	switch name {
	case "novelty":
		return "0 rehash of existing work, 1 incremental improvement, 2 new method or meaningful architectural change, 3 paradigm shift"
	case "utility":
		return "0 toy problem or narrow niche, 1 real bottleneck or practical use case"
	case "results":
		return "0 weak baselines or marginal gains, 1 solid results as claimed, 2 SOTA on major benchmarks or big efficiency win"
	case "access":
		return "0 no code/models/data released, 1 open artifacts available"
	default:
		return "score strictly within the stated bounds"
	}
}

// formatBreakdown renders per-dimension values in rubric order, e.g.
// "Novelty:2, Utility:1, Results:2, Access:1".
func formatBreakdown(rubric *scoring.Rubric, values map[string]int) string {
	parts := make([]string, 0, len(values))
	for _, dim := range rubric.Dimensions() {
		parts = append(parts, fmt.Sprintf("%s:%d", titleCase(dim.Name), values[dim.Name]))
	}
	return strings.Join(parts, ", ")
}

// titleCase upper-cases the first byte of an ASCII name.
func titleCase(name string) string {
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
