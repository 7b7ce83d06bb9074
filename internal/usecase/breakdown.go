package usecase

import (
	"math"
	"strings"
	"time"

	"github.com/ecoshop/ecoshop/internal/domain"
	"github.com/ecoshop/ecoshop/internal/scoring"
)

// Base scores on the 0..10 category scale
var (
	materialScores = map[string]float64{
		"recycled":  9,
		"natural":   8,
		"wood":      8,
		"metal":     6,
		"mixed":     4,
		"synthetic": 2,
	}
	laborScores = map[string]float64{
		"positive": 8,
		"neutral":  5,
		"negative": 2,
	}
	durabilityScores = map[string]float64{
		"high":   8,
		"medium": 5,
		"low":    2,
	}
)

const (
	neutralBase           = 5.0
	certificationBonus    = 0.5
	maxCertificationBonus = 2.0
	localShippingBonus    = 1.0
	longShippingPenalty   = 1.0
	plasticFreeBonus      = 1.5
	ecoPackagingBonus     = 1.0
)

var ecoPackagingTerms = []string{"eco", "recyclable", "recycled", "biodegradable", "compostable", "sustainable", "minimal"}

// BuildBreakdown converts a structured analysis into the three category scores.
// A category without usable signals is left without a score rather than defaulted.
func BuildBreakdown(a *domain.ProductAnalysis) []domain.ScoreBreakdown {
	breakdown := make([]domain.ScoreBreakdown, 0, len(domain.Categories))
	for _, category := range domain.Categories {
		var (
			raw      *float64
			analysis string
		)
		if a != nil {
			switch category {
			case domain.CategoryProductionAndBrand:
				raw, analysis = productionScore(a)
			case domain.CategoryCircularityAndEndOfLife:
				raw, analysis = circularityScore(a)
			case domain.CategoryMaterialComposition:
				raw, analysis = materialScore(a)
			}
		}
		if raw != nil {
			v := roundTenth(scoring.ClampRaw(*raw))
			raw = &v
		}
		breakdown = append(breakdown, domain.ScoreBreakdown{
			Category:    category,
			RawScore:    raw,
			RatingLabel: scoring.RatingLabel(raw),
			Analysis:    analysis,
		})
	}
	return breakdown
}

func materialScore(a *domain.ProductAnalysis) (*float64, string) {
	analysis := joinNonEmpty(a.Materials.Analysis, a.Materials.Reasoning)
	base, ok := materialScores[strings.ToLower(strings.TrimSpace(a.Materials.Type))]
	if !ok {
		return nil, orNoData(analysis)
	}
	return &base, analysis
}

func productionScore(a *domain.ProductAnalysis) (*float64, string) {
	labor, laborKnown := laborScores[strings.ToLower(strings.TrimSpace(a.ManufacturingAndOrigin.LaborImplications))]
	certs := nonEmpty(a.Certifications.List)

	parts := []string{}
	if origin := strings.TrimSpace(a.ManufacturingAndOrigin.CountryOfOrigin); origin != "" && !isUnknown(origin) {
		parts = append(parts, "Made in "+origin+".")
	}
	parts = append(parts, a.ManufacturingAndOrigin.Reasoning)
	if len(certs) > 0 {
		parts = append(parts, "Certifications: "+strings.Join(certs, ", ")+".")
	}
	analysis := joinNonEmpty(parts...)

	if !laborKnown && len(certs) == 0 {
		return nil, orNoData(analysis)
	}

	score := neutralBase
	if laborKnown {
		score = labor
	}
	score += math.Min(float64(len(certs))*certificationBonus, maxCertificationBonus)

	switch strings.ToLower(strings.TrimSpace(a.LogisticsAndShipping.ShippingDistanceImplication)) {
	case "local":
		score += localShippingBonus
	case "international":
		score -= longShippingPenalty
	}
	return &score, analysis
}

func circularityScore(a *domain.ProductAnalysis) (*float64, string) {
	durability, durabilityKnown := durabilityScores[strings.ToLower(strings.TrimSpace(a.DurabilityAndLongevity.Assessment))]
	packaging := strings.TrimSpace(a.Packaging.Description)
	mentioned := bool(a.Packaging.Mentioned) && packaging != "" && !isUnknown(packaging)

	parts := []string{a.DurabilityAndLongevity.Reasoning}
	if mentioned {
		parts = append(parts, "Packaging: "+packaging+".")
	}
	analysis := joinNonEmpty(parts...)

	if !durabilityKnown && !mentioned {
		return nil, orNoData(analysis)
	}

	score := neutralBase
	if durabilityKnown {
		score = durability
	}
	if mentioned {
		lower := strings.ToLower(packaging)
		switch {
		case strings.Contains(lower, "plastic-free") || strings.Contains(lower, "plastic free"):
			score += plasticFreeBonus
		case containsAny(lower, ecoPackagingTerms):
			score += ecoPackagingBonus
		}
	}
	return &score, analysis
}

// CertaintyFor derives the confidence label from how many categories carry data
func CertaintyFor(breakdown []domain.ScoreBreakdown) (domain.Certainty, string) {
	withData := 0
	for _, b := range breakdown {
		if b.RawScore != nil {
			withData++
		}
	}
	switch withData {
	case 0:
		return domain.CertaintyLow, "Not enough information on the product page to score this product."
	case 1:
		return domain.CertaintyLow, ""
	case 2:
		return domain.CertaintyMedium, ""
	}
	return domain.CertaintyHigh, ""
}

// NewRecord assembles the persisted analysis of one listing
func NewRecord(key domain.ListingKey, info domain.ProductInfo, a *domain.ProductAnalysis, now time.Time) *domain.ProductRecord {
	breakdown := BuildBreakdown(a)
	certainty, message := CertaintyFor(breakdown)

	record := &domain.ProductRecord{
		ListingID:    key.ListingID,
		SourceSite:   key.SourceSite,
		URL:          info.URL,
		ProductName:  info.Name,
		Brand:        info.Brand,
		Breakdown:    breakdown,
		DefaultScore: scoring.Composite(breakdown, domain.DefaultWeights()),
		Certainty:    certainty,
		Message:      message,
		CreatedAt:    now.UTC(),
	}
	if a != nil {
		record.Category = a.ProductCategory
		if record.ProductName == "" {
			record.ProductName = a.ProductName
		}
		if record.Brand == "" && !isUnknown(a.Brand) {
			record.Brand = a.Brand
		}
		if record.Message == "" {
			record.Message = a.OverallSummary
		}
	}
	return record
}

// PayloadFromRecord renders a stored record in its wire form
func PayloadFromRecord(record *domain.ProductRecord) *domain.ProductPayload {
	if record == nil {
		return nil
	}
	payload := &domain.ProductPayload{
		Brand:        record.Brand,
		ProductName:  record.ProductName,
		Category:     record.Category,
		URL:          record.URL,
		Breakdown:    make(map[domain.Category]domain.CategoryPayload, len(record.Breakdown)),
		Certainty:    record.Certainty,
		Message:      record.Message,
		Alternatives: append([]domain.Alternative{}, record.Alternatives...),
	}
	if record.DefaultScore != nil {
		v := *record.DefaultScore
		payload.Score = &v
	}
	for _, b := range record.Breakdown {
		cp := domain.CategoryPayload{Rating: b.RatingLabel, Analysis: b.Analysis}
		if b.RawScore != nil {
			v := *b.RawScore
			cp.Score = &v
		}
		if cp.Rating == "" {
			cp.Rating = scoring.RatingLabel(cp.Score)
		}
		payload.Breakdown[b.Category] = cp
	}
	return payload
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}

func isUnknown(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "unknown", "not mentioned", "n/a", "none":
		return true
	}
	return false
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" && !isUnknown(v) {
			out = append(out, v)
		}
	}
	return out
}

func joinNonEmpty(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" && !isUnknown(p) {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

func orNoData(analysis string) string {
	if analysis != "" {
		return analysis
	}
	return "No information available."
}
