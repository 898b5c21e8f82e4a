package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestTierTable returns the S-D table used across the tests:
// S=7, A>=5, B>=4, C>=2, D>=0.
func newTestTierTable(t *testing.T) TierTable {
	t.Helper()

	table, err := NewTierTable([]TierBand{
		{Tier: "S", MinScore: 7},
		{Tier: "A", MinScore: 5},
		{Tier: "B", MinScore: 4},
		{Tier: "C", MinScore: 2},
		{Tier: "D", MinScore: 0},
	})
	require.NoError(t, err)
	return table
}

func TestNewTierTable_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewTierTable(nil)
	assert.Error(t, err)

	_, err = NewTierTable([]TierBand{{Tier: "A", MinScore: 5}, {Tier: "B", MinScore: 5}})
	assert.Error(t, err)

	_, err = NewTierTable([]TierBand{{Tier: "", MinScore: 0}})
	assert.Error(t, err)
}

func TestTierTable_Bands(t *testing.T) {
	t.Parallel()

	table := newTestTierTable(t)

	want := map[int]string{
		0: "D", 1: "D",
		2: "C", 3: "C",
		4: "B",
		5: "A", 6: "A",
		7: "S",
	}
	for score, tier := range want {
		assert.Equal(t, tier, table.Tier(score), "score %d", score)
	}
}

func TestTierTable_TotalAndMonotone(t *testing.T) {
	t.Parallel()

	table := newTestTierTable(t)

	// Tier rank by letter, higher is better.
	rank := map[string]int{"D": 0, "C": 1, "B": 2, "A": 3, "S": 4}

	prev := -1
	for score := -2; score <= 10; score++ {
		tier := table.Tier(score)
		r, known := rank[tier]
		require.True(t, known, "unexpected tier %q for score %d", tier, score)
		assert.GreaterOrEqual(t, r, prev, "tier rank regressed at score %d", score)
		prev = r
	}
}

func TestComposite_SumsAllValues(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 6, Composite(map[string]int{"novelty": 2, "utility": 1, "results": 2, "access": 1}))
	assert.Equal(t, 0, Composite(map[string]int{}))
}
