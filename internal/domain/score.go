package domain

import "fmt"

// Category is one of the three fixed sustainability dimensions
type Category string

const (
	CategoryProductionAndBrand      Category = "production_and_brand"
	CategoryCircularityAndEndOfLife Category = "circularity_and_end_of_life"
	CategoryMaterialComposition     Category = "material_composition"
)

// Categories lists the fixed categories in display order
var Categories = []Category{
	CategoryProductionAndBrand,
	CategoryCircularityAndEndOfLife,
	CategoryMaterialComposition,
}

// Label returns the human-readable category name
func (c Category) Label() string {
	switch c {
	case CategoryProductionAndBrand:
		return "Production & Brand"
	case CategoryCircularityAndEndOfLife:
		return "Circularity & End of Life"
	case CategoryMaterialComposition:
		return "Material Composition"
	}
	return string(c)
}

// Certainty is a qualitative confidence label accompanying a score
type Certainty string

const (
	CertaintyLow     Certainty = "low"
	CertaintyMedium  Certainty = "medium"
	CertaintyHigh    Certainty = "high"
	CertaintyPending Certainty = "pending"
)

// ScoreBreakdown is the per-category analysis record.
// RawScore is nil when the category has no data, which is distinct from zero.
type ScoreBreakdown struct {
	Category    Category `json:"category"`
	RawScore    *float64 `json:"score,omitempty"`
	RatingLabel string   `json:"rating"`
	Analysis    string   `json:"analysis"`
}

// Alternative is a suggested brand with a better score
type Alternative struct {
	Brand string `json:"brand" yaml:"brand"`
	Score int    `json:"score" yaml:"score"`
}

// ScoreResult is the externally visible artifact for one product.
// CompositeScore is nil when no category had data or when the result carries an error.
type ScoreResult struct {
	Brand          string            `json:"brand"`
	ProductName    string            `json:"productName,omitempty"`
	URL            string            `json:"url,omitempty"`
	CompositeScore *int              `json:"compositeScore,omitempty"`
	Breakdown      [3]ScoreBreakdown `json:"breakdown"`
	Certainty      Certainty         `json:"certainty"`
	Message        string            `json:"message"`
	Alternatives   []Alternative     `json:"alternatives"`
	Err            error             `json:"-"`
}

// Failed reports whether the result is a user-facing error object
func (r *ScoreResult) Failed() bool {
	return r != nil && r.Err != nil
}

// Clone returns a copy that does not share score pointers or slices with r
func (r *ScoreResult) Clone() *ScoreResult {
	if r == nil {
		return nil
	}
	out := *r
	if r.CompositeScore != nil {
		v := *r.CompositeScore
		out.CompositeScore = &v
	}
	for i, b := range r.Breakdown {
		if b.RawScore != nil {
			v := *b.RawScore
			out.Breakdown[i].RawScore = &v
		}
	}
	out.Alternatives = append([]Alternative(nil), r.Alternatives...)
	return &out
}

// ErrorResult builds the ScoreResult-shaped error object for a failed lookup.
// It never carries a composite score.
func ErrorResult(brand string, err error) *ScoreResult {
	result := &ScoreResult{
		Brand:        brand,
		Certainty:    CertaintyLow,
		Message:      UserMessage(err),
		Alternatives: []Alternative{},
		Err:          err,
	}
	for i, c := range Categories {
		result.Breakdown[i] = ScoreBreakdown{Category: c, RatingLabel: RatingNoData}
	}
	return result
}

// Rating labels attached to category scores
const (
	RatingGood   = "Good"
	RatingFair   = "Fair"
	RatingPoor   = "Poor"
	RatingNoData = "No data"
)

// UserWeights holds the user's per-category importance, each in [1,5]
type UserWeights struct {
	ProductionAndBrand      int `json:"production_and_brand" yaml:"production_and_brand"`
	CircularityAndEndOfLife int `json:"circularity_and_end_of_life" yaml:"circularity_and_end_of_life"`
	MaterialComposition     int `json:"material_composition" yaml:"material_composition"`
}

const (
	MinWeight     = 1
	MaxWeight     = 5
	DefaultWeight = 5
)

// DefaultWeights returns the neutral weighting
func DefaultWeights() UserWeights {
	return UserWeights{
		ProductionAndBrand:      DefaultWeight,
		CircularityAndEndOfLife: DefaultWeight,
		MaterialComposition:     DefaultWeight,
	}
}

// For returns the weight configured for a category
func (w UserWeights) For(c Category) int {
	switch c {
	case CategoryProductionAndBrand:
		return w.ProductionAndBrand
	case CategoryCircularityAndEndOfLife:
		return w.CircularityAndEndOfLife
	case CategoryMaterialComposition:
		return w.MaterialComposition
	}
	return 0
}

// Validate checks every weight is within [MinWeight, MaxWeight]
func (w UserWeights) Validate() error {
	for _, c := range Categories {
		if v := w.For(c); v < MinWeight || v > MaxWeight {
			return fmt.Errorf("%w: weight for %s must be between %d and %d, got %d",
				ErrInvalidWeights, c, MinWeight, MaxWeight, v)
		}
	}
	return nil
}
