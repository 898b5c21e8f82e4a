package scoring

import (
	"fmt"
	"sort"
	"strings"

	"github.com/reasoninghub/paper-eval-service/internal/domain"
)

// TierBand maps a letter grade to the lowest composite score it covers. A
// band extends up to the next band's MinScore.
type TierBand struct {
	Tier     string
	MinScore int
}

// TierTable is a fixed, non-overlapping step function from composite score to
// letter tier. Bands are held sorted by MinScore descending, so lookup walks
// from the top tier down.
type TierTable struct {
	bands []TierBand
}

// NewTierTable validates the band configuration and builds a TierTable.
// Boundaries are configuration, not computed; the table only requires unique,
// named thresholds.
func NewTierTable(bands []TierBand) (TierTable, error) {
	if len(bands) == 0 {
		return TierTable{}, domain.NewValidationError("tiers", "at least one tier band is required")
	}

	sorted := make([]TierBand, len(bands))
	copy(sorted, bands)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MinScore > sorted[j].MinScore })

	for i, b := range sorted {
		if strings.TrimSpace(b.Tier) == "" {
			return TierTable{}, domain.NewValidationError("tiers", "tier letter cannot be empty")
		}
		if i > 0 && sorted[i-1].MinScore == b.MinScore {
			return TierTable{}, domain.NewValidationError("tiers", fmt.Sprintf("duplicate tier threshold %d", b.MinScore))
		}
	}

	return TierTable{bands: sorted}, nil
}

// Tier returns the letter grade for a composite score: the highest band whose
// threshold the score meets. Scores below every threshold fall into the
// lowest band, which keeps the function total and monotone non-decreasing.
func (t TierTable) Tier(score int) string {
	for _, b := range t.bands {
		if score >= b.MinScore {
			return b.Tier
		}
	}
	return t.bands[len(t.bands)-1].Tier
}

// Composite returns the sum of the given dimension values. The model's
// self-reported total is never consulted.
func Composite(values map[string]int) int {
	total := 0
	for _, v := range values {
		total += v
	}
	return total
}
