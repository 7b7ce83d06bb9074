package scoring

import (
	"math"
	"testing"

	"github.com/ecoshop/ecoshop/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

func breakdownOf(production, circularity, material *float64) []domain.ScoreBreakdown {
	return []domain.ScoreBreakdown{
		{Category: domain.CategoryProductionAndBrand, RawScore: production},
		{Category: domain.CategoryCircularityAndEndOfLife, RawScore: circularity},
		{Category: domain.CategoryMaterialComposition, RawScore: material},
	}
}

func allWeights() []domain.UserWeights {
	var out []domain.UserWeights
	for a := 1; a <= 5; a++ {
		for b := 1; b <= 5; b++ {
			for c := 1; c <= 5; c++ {
				out = append(out, domain.UserWeights{ProductionAndBrand: a, CircularityAndEndOfLife: b, MaterialComposition: c})
			}
		}
	}
	return out
}

func TestComputeComposite_Extremes(t *testing.T) {
	for _, w := range allWeights() {
		score, ok := ComputeComposite(breakdownOf(f(10), f(10), f(10)), w)
		require.True(t, ok)
		assert.Equal(t, 100, score, "weights %+v", w)

		score, ok = ComputeComposite(breakdownOf(f(0), f(0), f(0)), w)
		require.True(t, ok)
		assert.Equal(t, 0, score, "weights %+v", w)
	}
}

func TestComputeComposite_RoundsUp(t *testing.T) {
	score, ok := ComputeComposite(breakdownOf(f(7.01), f(7.01), f(7.01)), domain.DefaultWeights())
	require.True(t, ok)
	assert.Equal(t, 71, score)
}

func TestComputeComposite_NoFloatNoiseOnExactValues(t *testing.T) {
	score, ok := ComputeComposite(breakdownOf(f(0.7), f(0.7), f(0.7)), domain.DefaultWeights())
	require.True(t, ok)
	assert.Equal(t, 7, score)
}

func TestComputeComposite_EndToEndExample(t *testing.T) {
	score, ok := ComputeComposite(breakdownOf(f(7), f(6), f(8)), domain.DefaultWeights())
	require.True(t, ok)
	assert.Equal(t, 70, score)
	assert.Equal(t, BandGood, BandFor(score))
}

func TestComputeComposite_AllAbsent(t *testing.T) {
	_, ok := ComputeComposite(breakdownOf(nil, nil, nil), domain.DefaultWeights())
	assert.False(t, ok)
	assert.Nil(t, Composite(breakdownOf(nil, nil, nil), domain.DefaultWeights()))

	_, ok = ComputeComposite(nil, domain.DefaultWeights())
	assert.False(t, ok)
}

func TestComputeComposite_PartialDataKeepsWeight(t *testing.T) {
	// (8*5 + 0*5 + 0*5) / 15 * 10 = 26.67 -> 27
	score, ok := ComputeComposite(breakdownOf(f(8), nil, nil), domain.DefaultWeights())
	require.True(t, ok)
	assert.Equal(t, 27, score)
}

func TestComputeComposite_WeightsShiftComposite(t *testing.T) {
	b := breakdownOf(f(10), f(0), f(0))
	low, _ := ComputeComposite(b, domain.UserWeights{ProductionAndBrand: 1, CircularityAndEndOfLife: 5, MaterialComposition: 5})
	high, _ := ComputeComposite(b, domain.UserWeights{ProductionAndBrand: 5, CircularityAndEndOfLife: 1, MaterialComposition: 1})
	// 10/11*10 = 9.09 -> 10 ; 50/7*10 = 71.4 -> 72
	assert.Equal(t, 10, low)
	assert.Equal(t, 72, high)
}

func TestComputeComposite_RangeAndMonotonic(t *testing.T) {
	steps := []float64{0, 0.5, 1, 2.3, 3.3, 4.99, 5, 6.01, 7.5, 9.9, 10}
	weights := []domain.UserWeights{
		domain.DefaultWeights(),
		{ProductionAndBrand: 1, CircularityAndEndOfLife: 3, MaterialComposition: 5},
		{ProductionAndBrand: 5, CircularityAndEndOfLife: 1, MaterialComposition: 2},
	}

	for _, w := range weights {
		for _, b := range steps {
			for _, c := range steps {
				prev := -1
				for _, a := range steps {
					score, ok := ComputeComposite(breakdownOf(f(a), f(b), f(c)), w)
					require.True(t, ok)
					assert.GreaterOrEqual(t, score, 0)
					assert.LessOrEqual(t, score, 100)
					assert.GreaterOrEqual(t, score, prev, "not monotonic at a=%v b=%v c=%v w=%+v", a, b, c, w)
					prev = score
				}
			}
		}
	}
}

func TestComputeComposite_Idempotent(t *testing.T) {
	b := breakdownOf(f(3.3), f(6.6), f(9.1))
	w := domain.UserWeights{ProductionAndBrand: 2, CircularityAndEndOfLife: 4, MaterialComposition: 3}
	first, _ := ComputeComposite(b, w)
	for i := 0; i < 10; i++ {
		again, _ := ComputeComposite(b, w)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, 3.3, *b[0].RawScore)
}

func TestComputeComposite_ClampsOutOfRange(t *testing.T) {
	score, ok := ComputeComposite(breakdownOf(f(14), f(10), f(10)), domain.DefaultWeights())
	require.True(t, ok)
	assert.Equal(t, 100, score)

	// Negative and NaN are not data
	_, ok = ComputeComposite(breakdownOf(f(-1), f(math.NaN()), nil), domain.DefaultWeights())
	assert.False(t, ok)
}

func TestBands(t *testing.T) {
	assert.Equal(t, BandGood, BandFor(70))
	assert.Equal(t, BandFair, BandFor(69))
	assert.Equal(t, BandFair, BandFor(40))
	assert.Equal(t, BandPoor, BandFor(39))
	assert.Equal(t, BandUnknown, CompositeBand(nil))

	assert.Equal(t, BandGood, CategoryBand(f(7)))
	assert.Equal(t, BandFair, CategoryBand(f(4)))
	assert.Equal(t, BandPoor, CategoryBand(f(3.9)))
	assert.Equal(t, BandUnknown, CategoryBand(nil))
	assert.Equal(t, BandUnknown, CategoryBand(f(math.NaN())))
}

func TestDisplayScore(t *testing.T) {
	v, ok := DisplayScore(f(7.04))
	require.True(t, ok)
	assert.Equal(t, 7.0, v)

	v, ok = DisplayScore(f(11))
	require.True(t, ok)
	assert.Equal(t, 10.0, v)

	_, ok = DisplayScore(nil)
	assert.False(t, ok)
}

func TestRatingLabel(t *testing.T) {
	assert.Equal(t, domain.RatingGood, RatingLabel(f(8)))
	assert.Equal(t, domain.RatingFair, RatingLabel(f(5)))
	assert.Equal(t, domain.RatingPoor, RatingLabel(f(1)))
	assert.Equal(t, domain.RatingNoData, RatingLabel(nil))
}

func TestReweight(t *testing.T) {
	score := 70
	result := &domain.ScoreResult{Brand: "Sony", CompositeScore: &score}
	copy(result.Breakdown[:], breakdownOf(f(10), f(0), f(0)))

	reweighted := Reweight(result, domain.UserWeights{ProductionAndBrand: 5, CircularityAndEndOfLife: 1, MaterialComposition: 1})
	require.NotNil(t, reweighted.CompositeScore)
	assert.Equal(t, 72, *reweighted.CompositeScore)
	assert.Equal(t, 70, *result.CompositeScore, "original must not be mutated")

	failed := domain.ErrorResult("Sony", domain.ErrTimeout)
	assert.Nil(t, Reweight(failed, domain.DefaultWeights()).CompositeScore)
	assert.Nil(t, Reweight(nil, domain.DefaultWeights()))
}
