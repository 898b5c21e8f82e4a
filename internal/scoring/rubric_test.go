package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRubric returns the four-dimension rubric used across the tests:
// novelty 0-3, utility 0-1, results 0-2, access 0-1, reasoning >= 8 chars.
func newTestRubric(t *testing.T) Rubric {
	t.Helper()

	rubric, err := NewRubric([]Dimension{
		{Name: "novelty", Min: 0, Max: 3},
		{Name: "utility", Min: 0, Max: 1},
		{Name: "results", Min: 0, Max: 2},
		{Name: "access", Min: 0, Max: 1},
	}, 8)
	require.NoError(t, err)
	return rubric
}

func TestNewRubric_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		dims []Dimension
	}{
		{name: "empty dimensions", dims: nil},
		{name: "blank name", dims: []Dimension{{Name: "  ", Min: 0, Max: 1}}},
		{name: "duplicate name", dims: []Dimension{{Name: "novelty", Min: 0, Max: 3}, {Name: "novelty", Min: 0, Max: 1}}},
		{name: "inverted bounds", dims: []Dimension{{Name: "novelty", Min: 3, Max: 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewRubric(tt.dims, 8)
			assert.Error(t, err)
		})
	}
}

func TestRubric_Totals(t *testing.T) {
	t.Parallel()

	rubric := newTestRubric(t)
	assert.Equal(t, 0, rubric.MinTotal())
	assert.Equal(t, 7, rubric.MaxTotal())
}

func TestParseResponse_DirectJSON(t *testing.T) {
	t.Parallel()

	rubric := newTestRubric(t)
	card, err := rubric.ParseResponse(`{"novelty": 2, "utility": 1, "results": 2, "access": 1, "reasoning": "Strong benchmarks, no ablations."}`)

	require.NoError(t, err)
	assert.Equal(t, 2, card.Values["novelty"])
	assert.Equal(t, 1, card.Values["utility"])
	assert.Equal(t, 2, card.Values["results"])
	assert.Equal(t, 1, card.Values["access"])
	assert.Equal(t, 6, card.Total())
}

func TestParseResponse_CodeFences(t *testing.T) {
	t.Parallel()

	rubric := newTestRubric(t)
	raw := "```json\n{\"novelty\": 1, \"utility\": 0, \"results\": 1, \"access\": 0, \"reasoning\": \"Marginal gains on a toy task.\"}\n```"

	card, err := rubric.ParseResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, 2, card.Total())
}

func TestParseResponse_CommentaryFallsBackToExtraction(t *testing.T) {
	t.Parallel()

	rubric := newTestRubric(t)
	raw := `Based on review: {"novelty": 2, "utility": 1, "results": 2, "access": 1, "reasoning": "Solid empirical gains, no released code."}`

	card, err := rubric.ParseResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, 6, card.Total())
	assert.Equal(t, "Solid empirical gains, no released code.", card.Reasoning)
}

func TestParseResponse_LegacyAccessibilityAlias(t *testing.T) {
	t.Parallel()

	rubric := newTestRubric(t)
	raw := `{"novelty": 2, "utility": 1, "results": 1, "accessibility": 1, "reasoning": "Open weights and a clean eval suite."}`

	card, err := rubric.ParseResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, 1, card.Values["access"])
}

func TestParseResponse_CanonicalFieldWinsOverAlias(t *testing.T) {
	t.Parallel()

	rubric := newTestRubric(t)
	raw := `{"novelty": 2, "utility": 1, "results": 1, "access": 0, "accessibility": 1, "reasoning": "Code promised but not released."}`

	card, err := rubric.ParseResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, 0, card.Values["access"])
}

func TestParseResponse_OutOfRange(t *testing.T) {
	t.Parallel()

	rubric := newTestRubric(t)

	tests := []struct {
		name    string
		raw     string
		wantDim string
	}{
		{
			name:    "above max",
			raw:     `{"novelty": 5, "utility": 1, "results": 1, "access": 1, "reasoning": "Overenthusiastic model output."}`,
			wantDim: "novelty",
		},
		{
			name:    "negative value",
			raw:     `{"novelty": 2, "utility": -1, "results": 1, "access": 1, "reasoning": "Negative values are invalid."}`,
			wantDim: "utility",
		},
		{
			name:    "missing field",
			raw:     `{"novelty": 2, "utility": 1, "access": 1, "reasoning": "Results dimension never emitted."}`,
			wantDim: "results",
		},
		{
			name:    "fractional value rejected not truncated",
			raw:     `{"novelty": 2, "utility": 1, "results": 1.5, "access": 1, "reasoning": "Half points are not a thing."}`,
			wantDim: "results",
		},
		{
			name:    "string value",
			raw:     `{"novelty": "high", "utility": 1, "results": 1, "access": 1, "reasoning": "Words are not integers."}`,
			wantDim: "novelty",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := rubric.ParseResponse(tt.raw)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantDim+" out of range")
		})
	}
}

func TestParseResponse_Reasoning(t *testing.T) {
	t.Parallel()

	rubric := newTestRubric(t)

	tests := []struct {
		name string
		raw  string
	}{
		{name: "missing", raw: `{"novelty": 2, "utility": 1, "results": 1, "access": 1}`},
		{name: "too short", raw: `{"novelty": 2, "utility": 1, "results": 1, "access": 1, "reasoning": "ok"}`},
		{name: "whitespace only", raw: `{"novelty": 2, "utility": 1, "results": 1, "access": 1, "reasoning": "          "}`},
		{name: "not a string", raw: `{"novelty": 2, "utility": 1, "results": 1, "access": 1, "reasoning": 42}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := rubric.ParseResponse(tt.raw)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "missing/short reasoning")
		})
	}
}

func TestParseResponse_SelfReportedTotalIgnored(t *testing.T) {
	t.Parallel()

	rubric := newTestRubric(t)
	// The model claims a total of 7; the recomputed sum is 4.
	raw := `{"novelty": 1, "utility": 1, "results": 1, "access": 1, "total": 7, "reasoning": "Model arithmetic is not trusted."}`

	card, err := rubric.ParseResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, 4, card.Total())
	assert.Equal(t, 4, Composite(card.Values))
}

func TestParseResponse_NoObjectAnywhere(t *testing.T) {
	t.Parallel()

	rubric := newTestRubric(t)
	_, err := rubric.ParseResponse("I cannot score this paper.")
	assert.Error(t, err)
}
