package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractTLDR(t *testing.T) {
	t.Parallel()

	t.Run("takes the line after the big idea header", func(t *testing.T) {
		t.Parallel()

		markdown := "# The Big Idea\nSelf-verification beats longer chains of thought.\n\n# Insight\nDetails."
		assert.Equal(t, "Self-verification beats longer chains of thought.", ExtractTLDR(markdown))
	})

	t.Run("matches a tldr header case-insensitively", func(t *testing.T) {
		t.Parallel()

		markdown := "## TLDR\n\nSmall models can self-correct with a cheap critic."
		assert.Equal(t, "Small models can self-correct with a cheap critic.", ExtractTLDR(markdown))
	})

	t.Run("skips headers below the matched header", func(t *testing.T) {
		t.Parallel()

		markdown := "# The Big Idea\n## Subheading\nActual takeaway line."
		assert.Equal(t, "Actual takeaway line.", ExtractTLDR(markdown))
	})

	t.Run("gives up on a header with no nearby body", func(t *testing.T) {
		t.Parallel()

		// Six blank lines put the body outside the search window; the
		// fallback picks the first non-header line instead.
		markdown := "# TLDR\n\n\n\n\n\n\nFar away line."
		assert.Equal(t, "Far away line.", ExtractTLDR(markdown))
	})

	t.Run("falls back to first non-header line", func(t *testing.T) {
		t.Parallel()

		markdown := "# Insight\nThe mechanism is a learned router over expert heads."
		assert.Equal(t, "The mechanism is a learned router over expert heads.", ExtractTLDR(markdown))
	})

	t.Run("fallback truncates long lines", func(t *testing.T) {
		t.Parallel()

		long := strings.Repeat("a", 400)
		got := ExtractTLDR("# Insight\n" + long)
		assert.Len(t, got, tldrFallbackLimit)
	})

	t.Run("returns empty string for header-only input", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, "", ExtractTLDR("# One\n## Two"))
		assert.Equal(t, "", ExtractTLDR(""))
	})
}
