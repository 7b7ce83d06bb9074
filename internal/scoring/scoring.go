// Package scoring combines category sub-scores with user weights into the
// 0-100 composite sustainability score and assigns display bands.
package scoring

import (
	"math"

	"github.com/ecoshop/ecoshop/internal/domain"
)

// Band is the color band used by the presentation layer
type Band string

const (
	BandGood    Band = "good"
	BandFair    Band = "fair"
	BandPoor    Band = "poor"
	BandUnknown Band = "unknown"
)

const (
	// GoodThreshold is the lowest composite score in the good band
	GoodThreshold = 70
	// FairThreshold is the lowest composite score in the fair band
	FairThreshold = 40

	MaxRawScore   = 10.0
	MaxComposite  = 100
	ceilTolerance = 1e-9
)

// ComputeComposite returns the weighted composite score for a breakdown.
// ok is false when no category carries data; absent is never reported as zero.
//
// The weighted mean of the raw scores is scaled to 0-100 and always rounded up.
// Categories without data contribute 0 to the sum but keep their weight.
func ComputeComposite(breakdown []domain.ScoreBreakdown, weights domain.UserWeights) (score int, ok bool) {
	var weighted, total float64
	hasData := false

	for _, category := range domain.Categories {
		w := float64(clampWeight(weights.For(category)))
		total += w

		raw, found := rawFor(breakdown, category)
		if !found {
			continue
		}
		hasData = true
		weighted += ClampRaw(raw) * w
	}

	if !hasData {
		return 0, false
	}

	// ceilTolerance absorbs float noise such as 0.7*10 == 7.000000000000001
	composite := int(math.Ceil(weighted/total*10 - ceilTolerance))
	if composite < 0 {
		composite = 0
	}
	if composite > MaxComposite {
		composite = MaxComposite
	}
	return composite, true
}

// Composite is ComputeComposite returning nil for absent
func Composite(breakdown []domain.ScoreBreakdown, weights domain.UserWeights) *int {
	score, ok := ComputeComposite(breakdown, weights)
	if !ok {
		return nil
	}
	return &score
}

// rawFor finds the usable raw score for a category
func rawFor(breakdown []domain.ScoreBreakdown, category domain.Category) (float64, bool) {
	for _, b := range breakdown {
		if b.Category != category || b.RawScore == nil {
			continue
		}
		raw := *b.RawScore
		if math.IsNaN(raw) || raw < 0 {
			return 0, false
		}
		return raw, true
	}
	return 0, false
}

func clampWeight(w int) int {
	if w < domain.MinWeight {
		return domain.MinWeight
	}
	if w > domain.MaxWeight {
		return domain.MaxWeight
	}
	return w
}

// ClampRaw limits a raw category score to [0,10]
func ClampRaw(raw float64) float64 {
	if math.IsNaN(raw) || raw < 0 {
		return 0
	}
	if raw > MaxRawScore {
		return MaxRawScore
	}
	return raw
}

// DisplayScore returns the unweighted category score clamped to [0,10] with one decimal.
// Weights never affect this value.
func DisplayScore(raw *float64) (float64, bool) {
	if raw == nil || math.IsNaN(*raw) {
		return 0, false
	}
	return math.Round(ClampRaw(*raw)*10) / 10, true
}

// BandFor maps a composite score to its color band
func BandFor(score int) Band {
	switch {
	case score >= GoodThreshold:
		return BandGood
	case score >= FairThreshold:
		return BandFair
	default:
		return BandPoor
	}
}

// CompositeBand maps an optional composite score to its band
func CompositeBand(score *int) Band {
	if score == nil {
		return BandUnknown
	}
	return BandFor(*score)
}

// CategoryBand applies the composite thresholds to a raw category score scaled by ten
func CategoryBand(raw *float64) Band {
	v, ok := DisplayScore(raw)
	if !ok {
		return BandUnknown
	}
	scaled := v * 10
	switch {
	case scaled >= GoodThreshold:
		return BandGood
	case scaled >= FairThreshold:
		return BandFair
	default:
		return BandPoor
	}
}

// RatingLabel returns the textual rating for a raw category score
func RatingLabel(raw *float64) string {
	switch CategoryBand(raw) {
	case BandGood:
		return domain.RatingGood
	case BandFair:
		return domain.RatingFair
	case BandPoor:
		return domain.RatingPoor
	}
	return domain.RatingNoData
}

// Reweight recomputes the composite of a cached result under new weights.
// The breakdown is reused as is, so no network call is ever needed.
func Reweight(result *domain.ScoreResult, weights domain.UserWeights) *domain.ScoreResult {
	if result == nil {
		return nil
	}
	out := result.Clone()
	if out.Failed() {
		return out
	}
	out.CompositeScore = Composite(out.Breakdown[:], weights)
	return out
}
