package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstJSONObject_PlainObject(t *testing.T) {
	t.Parallel()

	got, err := FirstJSONObject(`{"novelty": 2, "utility": 1}`)
	require.NoError(t, err)
	assert.Equal(t, `{"novelty": 2, "utility": 1}`, got)
}

func TestFirstJSONObject_SurroundingCommentary(t *testing.T) {
	t.Parallel()

	text := "Based on my review of the paper: {\"novelty\": 2} Hope that helps!"
	got, err := FirstJSONObject(text)
	require.NoError(t, err)
	assert.Equal(t, `{"novelty": 2}`, got)
}

func TestFirstJSONObject_BracesInsideStrings(t *testing.T) {
	t.Parallel()

	text := `{"text": "a {b} c", "n": 1}`
	got, err := FirstJSONObject(text)
	require.NoError(t, err)
	assert.Equal(t, text, got)
}

func TestFirstJSONObject_EscapedQuotes(t *testing.T) {
	t.Parallel()

	text := `{"reasoning": "the \"best\" result {so far}", "n": 1}`
	got, err := FirstJSONObject(text)
	require.NoError(t, err)
	assert.Equal(t, text, got)
}

func TestFirstJSONObject_NestedObjects(t *testing.T) {
	t.Parallel()

	text := `prefix {"outer": {"inner": 1}, "n": 2} suffix`
	got, err := FirstJSONObject(text)
	require.NoError(t, err)
	assert.Equal(t, `{"outer": {"inner": 1}, "n": 2}`, got)
}

func TestFirstJSONObject_ReturnsOnlyFirstObject(t *testing.T) {
	t.Parallel()

	text := `{"a": 1} {"b": 2}`
	got, err := FirstJSONObject(text)
	require.NoError(t, err)
	assert.Equal(t, `{"a": 1}`, got)
}

func TestFirstJSONObject_NoObject(t *testing.T) {
	t.Parallel()

	_, err := FirstJSONObject("the model refused to answer")
	assert.ErrorIs(t, err, ErrNoObject)
}

func TestFirstJSONObject_Unbalanced(t *testing.T) {
	t.Parallel()

	_, err := FirstJSONObject(`{"a": {"b": 1}`)
	assert.ErrorIs(t, err, ErrUnbalanced)
}

func TestFirstJSONObject_BraceClosedInsideStringOnly(t *testing.T) {
	t.Parallel()

	// The only closing brace lives inside a string value, so the object
	// never closes structurally.
	_, err := FirstJSONObject(`{"a": "}"`)
	assert.ErrorIs(t, err, ErrUnbalanced)
}

func TestFirstJSONObject_Idempotent(t *testing.T) {
	t.Parallel()

	text := "```json\n{\"novelty\": 3, \"note\": \"uses {braces}\"}\n```"
	once, err := FirstJSONObject(text)
	require.NoError(t, err)

	twice, err := FirstJSONObject(once)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}
