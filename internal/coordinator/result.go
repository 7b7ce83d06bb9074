package coordinator

import (
	"fmt"
	"math"

	"github.com/ecoshop/ecoshop/internal/domain"
	"github.com/ecoshop/ecoshop/internal/scoring"
)

// resultFromPayload converts a wire payload into an unweighted ScoreResult.
// Raw scores are clamped on the way in; negative or non-numeric scores count as no data.
// Any server-side composite is ignored, the composite is always computed locally.
func resultFromPayload(payload *domain.ProductPayload, info domain.ProductInfo) (*domain.ScoreResult, error) {
	if payload == nil {
		return nil, fmt.Errorf("%w: empty payload", domain.ErrInvalidResponse)
	}

	result := &domain.ScoreResult{
		Brand:        firstNonEmpty(payload.Brand, info.Brand),
		ProductName:  firstNonEmpty(payload.ProductName, info.Name),
		URL:          firstNonEmpty(info.URL, payload.URL),
		Certainty:    normalizeCertainty(payload.Certainty),
		Message:      payload.Message,
		Alternatives: append([]domain.Alternative{}, payload.Alternatives...),
	}

	for i, category := range domain.Categories {
		b := domain.ScoreBreakdown{Category: category, RatingLabel: domain.RatingNoData}
		if cp, ok := payload.Breakdown[category]; ok {
			b.Analysis = cp.Analysis
			if cp.Score != nil && !math.IsNaN(*cp.Score) && *cp.Score >= 0 {
				raw := scoring.ClampRaw(*cp.Score)
				b.RawScore = &raw
				b.RatingLabel = firstNonEmpty(cp.Rating, scoring.RatingLabel(&raw))
			}
		}
		result.Breakdown[i] = b
	}

	return result, nil
}

func normalizeCertainty(c domain.Certainty) domain.Certainty {
	switch c {
	case domain.CertaintyLow, domain.CertaintyMedium, domain.CertaintyHigh, domain.CertaintyPending:
		return c
	}
	return domain.CertaintyLow
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
