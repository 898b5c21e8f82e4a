// Package scoring validates model-produced rubric scores and derives the
// composite score, tier and optional batch rescaling for paper evaluation.
package scoring

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/reasoninghub/paper-eval-service/internal/domain"
	"github.com/reasoninghub/paper-eval-service/internal/extract"
)

// fieldAliases maps legacy response field names to their canonical names.
// The alias is only applied when the canonical field is absent.
var fieldAliases = map[string]string{
	"accessibility": "access",
}

// reasoningField is the free-text justification field required in every
// scoring response.
const reasoningField = "reasoning"

// Dimension is one scored axis of the rubric with fixed integer bounds.
type Dimension struct {
	Name string
	Min  int
	Max  int
}

// Rubric is the immutable scoring configuration shared by the validator and
// the rescaler. It is built once at startup and never mutated.
type Rubric struct {
	dimensions         []Dimension
	minReasoningLength int
}

// NewRubric validates the dimension configuration and builds a Rubric.
func NewRubric(dimensions []Dimension, minReasoningLength int) (Rubric, error) {
	if len(dimensions) == 0 {
		return Rubric{}, domain.NewValidationError("dimensions", "at least one rubric dimension is required")
	}
	seen := make(map[string]struct{}, len(dimensions))
	for _, d := range dimensions {
		name := strings.TrimSpace(d.Name)
		if name == "" {
			return Rubric{}, domain.NewValidationError("dimensions", "dimension name cannot be empty")
		}
		if _, dup := seen[name]; dup {
			return Rubric{}, domain.NewValidationError("dimensions", fmt.Sprintf("duplicate dimension %q", name))
		}
		seen[name] = struct{}{}
		if d.Min > d.Max {
			return Rubric{}, domain.NewValidationError("dimensions", fmt.Sprintf("dimension %q has min %d above max %d", name, d.Min, d.Max))
		}
	}
	if minReasoningLength < 0 {
		return Rubric{}, domain.NewValidationError("min_reasoning_length", "cannot be negative")
	}

	dims := make([]Dimension, len(dimensions))
	copy(dims, dimensions)
	return Rubric{dimensions: dims, minReasoningLength: minReasoningLength}, nil
}

// Dimensions returns the configured dimensions in rubric order.
func (r Rubric) Dimensions() []Dimension {
	dims := make([]Dimension, len(r.dimensions))
	copy(dims, r.dimensions)
	return dims
}

// MinTotal returns the lowest attainable composite score.
func (r Rubric) MinTotal() int {
	total := 0
	for _, d := range r.dimensions {
		total += d.Min
	}
	return total
}

// MaxTotal returns the highest attainable composite score.
func (r Rubric) MaxTotal() int {
	total := 0
	for _, d := range r.dimensions {
		total += d.Max
	}
	return total
}

// ScoreCard holds a validated scoring response: one integer per rubric
// dimension plus the justification text.
type ScoreCard struct {
	Values    map[string]int
	Reasoning string
}

// Total returns the composite score: the sum of all dimension values. Any
// total the model itself reported is ignored, because model-produced totals
// are unreliable against their own breakdown.
func (c *ScoreCard) Total() int {
	total := 0
	for _, v := range c.Values {
		total += v
	}
	return total
}

// ParseResponse decodes and validates a raw scoring response.
//
// The cleaned text is tried as JSON directly; if that fails the first
// balanced object is extracted from the original text instead. Legacy field
// names are aliased onto their canonical names, every rubric dimension must
// be an in-range integer, and the reasoning field must meet the configured
// minimum length. Fractional values are rejected, never truncated.
func (r Rubric) ParseResponse(raw string) (*ScoreCard, error) {
	data, err := decodeScorePayload(raw)
	if err != nil {
		return nil, err
	}

	for legacy, canonical := range fieldAliases {
		if _, ok := data[canonical]; ok {
			continue
		}
		if v, ok := data[legacy]; ok {
			data[canonical] = v
		}
	}

	values := make(map[string]int, len(r.dimensions))
	for _, dim := range r.dimensions {
		v, ok := asInt(data[dim.Name])
		if !ok || v < dim.Min || v > dim.Max {
			return nil, fmt.Errorf("%s out of range: %v", dim.Name, data[dim.Name])
		}
		values[dim.Name] = v
	}

	reasoning, ok := data[reasoningField].(string)
	if !ok || len(strings.TrimSpace(reasoning)) < r.minReasoningLength {
		return nil, fmt.Errorf("missing/short reasoning")
	}

	return &ScoreCard{Values: values, Reasoning: strings.TrimSpace(reasoning)}, nil
}

// decodeScorePayload strips code-fence markup and decodes the response body,
// falling back to balanced-object extraction on the original text.
func decodeScorePayload(raw string) (map[string]any, error) {
	cleaned := stripCodeFences(raw)

	if data, err := decodeJSONObject(cleaned); err == nil {
		return data, nil
	}

	obj, err := extract.FirstJSONObject(raw)
	if err != nil {
		return nil, err
	}
	data, err := decodeJSONObject(obj)
	if err != nil {
		return nil, fmt.Errorf("decode extracted object: %w", err)
	}
	return data, nil
}

// decodeJSONObject unmarshals a single JSON object keeping numbers as
// json.Number so fractional values stay detectable.
func decodeJSONObject(s string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return nil, err
	}
	return data, nil
}

// stripCodeFences removes surrounding markdown code-fence markup, if present.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "```json", "```")
	if strings.HasPrefix(s, "```") && strings.HasSuffix(s, "```") && len(s) >= 6 {
		s = strings.TrimSpace(s[3 : len(s)-3])
	}
	return s
}

// asInt reports whether v is a JSON integer and returns its value. Fractions
// such as 2.5 (and 2.0, which is not the declared integer type) fail.
func asInt(v any) (int, bool) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	i, err := n.Int64()
	if err != nil {
		return 0, false
	}
	return int(i), true
}
