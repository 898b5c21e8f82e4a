package scoring

import (
	"math"

	"github.com/reasoninghub/paper-eval-service/internal/domain"
)

// RescaleMode selects which population the rescaling statistics are computed
// over.
type RescaleMode string

const (
	// RescaleModeGlobal computes mean and spread over the whole batch.
	RescaleModeGlobal RescaleMode = "global"

	// RescaleModeGrouped computes statistics per grouping key, falling back
	// to global statistics for groups too small for a meaningful spread.
	RescaleModeGrouped RescaleMode = "grouped"
)

// minGroupSize is the smallest group that gets its own statistics; a standard
// deviation over fewer members is meaningless.
const minGroupSize = 3

// stdDevEpsilon guards against division blow-up on zero or near-zero spread.
const stdDevEpsilon = 1e-9

// BatchScoreResult is the per-paper working record of one scoring pass. It is
// created with RescaledScore equal to RawScore, mutated in place by the
// rescaler, then persisted and discarded.
type BatchScoreResult struct {
	PaperID int64
	// Values holds the validated per-dimension scores.
	Values map[string]int
	// RawScore is the locally computed composite score.
	RawScore int
	// Category is the paper's grouping label, used only for grouped rescaling.
	Category string
	// RescaledScore defaults to RawScore and is overwritten when rescaling
	// is enabled.
	RescaledScore int
	// Reasoning is the validated justification text.
	Reasoning string
}

// Rescaler recalibrates a batch of composite scores toward a target
// mean/spread without changing relative order within a group. It is a pure,
// batch-scoped computation with no I/O.
type Rescaler struct {
	Enabled    bool
	Mode       RescaleMode
	TargetMean float64
	TargetStd  float64
	// MinScore and MaxScore bound the rescaled values to the rubric's
	// global score range.
	MinScore int
	MaxScore int
}

// NewRescaler validates the rescaling configuration against the rubric range.
func NewRescaler(enabled bool, mode RescaleMode, targetMean, targetStd float64, rubric Rubric) (Rescaler, error) {
	if enabled {
		switch mode {
		case RescaleModeGlobal, RescaleModeGrouped:
		default:
			return Rescaler{}, domain.NewValidationError("rescale.mode", "must be \"global\" or \"grouped\"")
		}
		if targetStd < 0 {
			return Rescaler{}, domain.NewValidationError("rescale.target_std", "cannot be negative")
		}
	}
	return Rescaler{
		Enabled:    enabled,
		Mode:       mode,
		TargetMean: targetMean,
		TargetStd:  targetStd,
		MinScore:   rubric.MinTotal(),
		MaxScore:   rubric.MaxTotal(),
	}, nil
}

// Apply populates RescaledScore for every item in the batch. When disabled it
// is an identity pass. When enabled each raw score is mapped through
// target_mean + z*target_std (z computed against its group's statistics),
// clamped to the valid score range and rounded to the nearest integer.
func (r Rescaler) Apply(batch []*BatchScoreResult) {
	for _, item := range batch {
		item.RescaledScore = item.RawScore
	}
	if !r.Enabled || len(batch) == 0 {
		return
	}

	globalMean, globalStd := rawStats(batch)

	for _, item := range batch {
		mean, std := globalMean, globalStd
		if r.Mode == RescaleModeGrouped {
			group := groupOf(batch, item.Category)
			if len(group) >= minGroupSize {
				mean, std = rawStats(group)
			}
		}

		z := (float64(item.RawScore) - mean) / std
		rescaled := r.TargetMean + z*r.TargetStd
		rescaled = math.Min(rescaled, float64(r.MaxScore))
		rescaled = math.Max(rescaled, float64(r.MinScore))
		item.RescaledScore = int(math.Round(rescaled))
	}
}

// rawStats returns the mean and population standard deviation of the raw
// scores, substituting 1.0 for a zero or near-zero spread.
func rawStats(batch []*BatchScoreResult) (mean, std float64) {
	n := float64(len(batch))
	sum := 0.0
	for _, item := range batch {
		sum += float64(item.RawScore)
	}
	mean = sum / n

	variance := 0.0
	for _, item := range batch {
		d := float64(item.RawScore) - mean
		variance += d * d
	}
	std = math.Sqrt(variance / n)
	if std < stdDevEpsilon {
		std = 1.0
	}
	return mean, std
}

// groupOf returns the batch items sharing the given grouping key.
func groupOf(batch []*BatchScoreResult, category string) []*BatchScoreResult {
	var group []*BatchScoreResult
	for _, item := range batch {
		if item.Category == category {
			group = append(group, item)
		}
	}
	return group
}
