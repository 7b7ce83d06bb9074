package usecase

import (
	"regexp"
	"strings"
)

// Compiled regex patterns for product text cleaning
var (
	// Matches size/quantity patterns like "500 ml", "12 oz", "1.5 liter", "2 kg"
	sizeQuantityPattern = regexp.MustCompile(`(?i)\b\d+\.?\d*\s*(fl\s*)?oz\b|\b\d+\.?\d*\s*(fl\s*)?ounces?\b|\b\d+\.?\d*\s*lbs?\b|\b\d+\.?\d*\s*ml\b|\b\d+\.?\d*\s*liters?\b|\b\d+\.?\d*\s*kg\b|\b\d+\.?\d*\s*grams?\b|\b\d+\.?\d*\s*g\b|\b\d+\.?\d*\s*(cm|mm|inch(es)?)\b`)

	// Matches pack/count patterns like "12 pack", "pack of 6", "6-pack", "24 pcs"
	packCountPattern = regexp.MustCompile(`(?i)\b\d+[-\s]*(pack|pk|count|ct|pcs|pieces?)\b|\bpack\s*of\s*\d+\b|\b(set|bundle)\s*of\s*\d+\b`)

	// Shop listing titles are often wrapped in bracketed promos: "[READY STOCK]", "【Free Gift】"
	bracketPromoPattern = regexp.MustCompile(`\[[^\]]*\]|【[^】]*】`)

	multipleSpacesRegex  = regexp.MustCompile(`\s+`)
	nonAlphanumericRegex = regexp.MustCompile(`[^a-z0-9\s]`)

	orphanedInnerPunctuation    = regexp.MustCompile(`\s+[,\-;:|]+\s+`)
	orphanedTrailingPunctuation = regexp.MustCompile(`[,\-;:|]+\s*$`)
	orphanedLeadingPunctuation  = regexp.MustCompile(`^\s*[,\-;:|]+`)
)

// titleNoiseWords are marketing terms that carry no product identity
var titleNoiseWords = map[string]bool{
	"new": true, "hot": true, "sale": true, "promo": true, "original": true,
	"authentic": true, "official": true, "premium": true, "best": true,
	"seller": true, "bestseller": true, "free": true, "shipping": true,
	"ready": true, "stock": true, "cod": true, "local": true, "warranty": true,
	"2024": true, "2025": true, "2026": true,
}

// Specification entries mentioning any of these are review widgets, not product data
var reviewNoiseMarkers = []string{
	"review", "rating", "comment", "report abuse", "5.0 out of 5", "star", "media", "helpful?",
}

// CleanSpecifications drops review and rating noise scraped alongside product
// specifications. Keys naming review widgets are removed; values are truncated at
// the first review marker and dropped when nothing is left.
func CleanSpecifications(specs map[string]string) map[string]string {
	cleaned := make(map[string]string, len(specs))
	for key, value := range specs {
		k := strings.TrimSpace(key)
		if k == "" || containsAny(strings.ToLower(k), reviewNoiseMarkers) {
			continue
		}
		v := truncateAtMarker(value, reviewNoiseMarkers)
		v = strings.TrimSpace(multipleSpacesRegex.ReplaceAllString(v, " "))
		if v == "" {
			continue
		}
		cleaned[k] = v
	}
	return cleaned
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// truncateAtMarker cuts value at the earliest marker, case-insensitively
func truncateAtMarker(value string, markers []string) string {
	lower := strings.ToLower(value)
	cut := len(value)
	for _, m := range markers {
		if idx := strings.Index(lower, m); idx >= 0 && idx < cut {
			cut = idx
		}
	}
	return value[:cut]
}

// CleanProductName strips promo brackets, sizes, pack counts and marketing noise
// from a listing title so that equivalent listings normalize to the same text.
func CleanProductName(name string) string {
	if name == "" {
		return ""
	}

	cleaned := bracketPromoPattern.ReplaceAllString(name, " ")
	cleaned = sizeQuantityPattern.ReplaceAllString(cleaned, " ")
	cleaned = packCountPattern.ReplaceAllString(cleaned, " ")
	cleaned = removeNoiseWords(cleaned)
	cleaned = cleanOrphanedPunctuation(cleaned)

	cleaned = multipleSpacesRegex.ReplaceAllString(cleaned, " ")
	cleaned = strings.TrimSpace(cleaned)

	if len(cleaned) > 120 {
		cleaned = cleaned[:120]
		if lastSpace := strings.LastIndex(cleaned, " "); lastSpace > 60 {
			cleaned = cleaned[:lastSpace]
		}
	}
	return cleaned
}

// removeNoiseWords removes marketing terms while preserving the original casing
func removeNoiseWords(s string) string {
	words := strings.Fields(s)
	kept := words[:0]
	for _, word := range words {
		cleanWord := strings.ToLower(strings.Trim(word, ",.!?;:-'\""))
		if !titleNoiseWords[cleanWord] {
			kept = append(kept, word)
		}
	}
	return strings.Join(kept, " ")
}

// cleanOrphanedPunctuation removes punctuation left alone after the removals above
func cleanOrphanedPunctuation(s string) string {
	result := orphanedInnerPunctuation.ReplaceAllString(s, " ")
	result = orphanedTrailingPunctuation.ReplaceAllString(result, "")
	return orphanedLeadingPunctuation.ReplaceAllString(result, "")
}

// normalizeForCacheKey normalizes a string for use as cache key component.
// Converts to lowercase, removes special characters, and trims whitespace.
func normalizeForCacheKey(s string) string {
	if s == "" {
		return ""
	}
	result := strings.ToLower(s)
	result = nonAlphanumericRegex.ReplaceAllString(result, "")
	result = multipleSpacesRegex.ReplaceAllString(result, " ")
	return strings.TrimSpace(result)
}
