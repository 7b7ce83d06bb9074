package usecase

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ecoshop/ecoshop/internal/domain"
	"github.com/ecoshop/ecoshop/internal/logging"
)

// Package-level compiled regex pattern for performance
var punctuationRegex = regexp.MustCompile(`[^\w\s&']`)

// MaxAlternatives caps the suggested better brands attached to a result
const MaxAlternatives = 3

// brandStopWords are tokens that never identify a brand on their own
var brandStopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "of": true, "by": true,
	"inc": true, "co": true, "ltd": true, "corp": true, "corporation": true,
	"company": true, "official": true, "store": true, "shop": true, "brand": true,
}

// categories is the static category summary served by /api/categories
var categories = []domain.ProductCategory{
	{ID: "fashion", Name: "Fashion & Clothing", AvgScore: 53, TopBrands: []string{"Patagonia", "Reformation", "Everlane"}},
	{ID: "electronics", Name: "Electronics", AvgScore: 62, TopBrands: []string{"Fairphone", "Framework", "Microsoft"}},
	{ID: "food", Name: "Food & Beverages", AvgScore: 48, TopBrands: []string{"Dr. Bronner's", "Equal Exchange", "Seventh Generation"}},
	{ID: "home", Name: "Home & Furniture", AvgScore: 57, TopBrands: []string{"IKEA", "West Elm", "Ecobirdy"}},
}

// BrandService answers brand-level ESG lookups against the dataset
type BrandService struct {
	directory domain.BrandDirectory
	logger    logrus.FieldLogger
}

// NewBrandService creates a brand service over a dataset
func NewBrandService(directory domain.BrandDirectory, logger logrus.FieldLogger) *BrandService {
	return &BrandService{
		directory: directory,
		logger:    logging.Component(logger, "brands"),
	}
}

// Lookup finds the ESG record for a brand name.
// Matching tries an exact name, then containment either way, then a small edit
// distance on each query token. No match is ErrBrandNotFound; there is no neutral fallback.
func (s *BrandService) Lookup(ctx context.Context, query string) (*domain.BrandScore, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: missing brand parameter", domain.ErrInvalidRequest)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	brands := s.directory.Brands()
	match, how := matchBrand(query, brands)
	if match == nil {
		s.logger.WithField("brand", query).Debug("No ESG record for brand")
		return nil, fmt.Errorf("%w: %s", domain.ErrBrandNotFound, query)
	}

	s.logger.WithFields(logrus.Fields{
		"query": query,
		"brand": match.Brand,
		"match": how,
	}).Debug("Brand matched")

	out := *match
	out.Certifications = append([]string(nil), match.Certifications...)
	if len(out.Alternatives) == 0 {
		score := out.Score
		out.Alternatives = betterBrands(brands, &score, out.Brand)
	}
	return &out, nil
}

// Alternatives returns up to MaxAlternatives brands scoring strictly above score,
// best first. A nil score returns the top brands overall.
func (s *BrandService) Alternatives(score *int, exclude string) []domain.Alternative {
	return betterBrands(s.directory.Brands(), score, exclude)
}

// List returns every brand with its score, best first
func (s *BrandService) List() []domain.Alternative {
	brands := s.directory.Brands()
	out := make([]domain.Alternative, 0, len(brands))
	for _, b := range brands {
		out = append(out, domain.Alternative{Brand: b.Brand, Score: b.Score})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// Categories returns the static product category summaries
func (s *BrandService) Categories() []domain.ProductCategory {
	out := make([]domain.ProductCategory, len(categories))
	copy(out, categories)
	return out
}

func matchBrand(query string, brands []domain.BrandScore) (*domain.BrandScore, string) {
	q := domain.NormalizeBrand(query)

	for i := range brands {
		if domain.NormalizeBrand(brands[i].Brand) == q {
			return &brands[i], "exact"
		}
	}

	if len(q) >= 2 {
		for i := range brands {
			b := domain.NormalizeBrand(brands[i].Brand)
			if strings.Contains(b, q) || containsWord(q, b) {
				return &brands[i], "partial"
			}
		}
	}

	queryTokens := tokenize(query)
	best, bestDistance := -1, 1<<30
	for i := range brands {
		b := strings.Join(tokenize(brands[i].Brand), "")
		for _, token := range queryTokens {
			if !fuzzyTokenMatch(token, b, fuzzyThreshold(b)) {
				continue
			}
			if d := levenshteinDistance(token, b); d < bestDistance {
				best, bestDistance = i, d
			}
		}
	}
	if best >= 0 {
		return &brands[best], "fuzzy"
	}
	return nil, ""
}

// containsWord reports whether word occurs in s on word boundaries
func containsWord(s, word string) bool {
	for start := 0; ; {
		idx := strings.Index(s[start:], word)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(word)
		before := idx == 0 || s[idx-1] == ' '
		after := end == len(s) || s[end] == ' '
		if before && after {
			return true
		}
		start = idx + 1
	}
}

func fuzzyThreshold(brand string) int {
	if len(brand) >= 7 {
		return 2
	}
	return 1
}

func betterBrands(brands []domain.BrandScore, score *int, exclude string) []domain.Alternative {
	excluded := domain.NormalizeBrand(exclude)
	candidates := make([]domain.Alternative, 0, len(brands))
	for _, b := range brands {
		if excluded != "" && domain.NormalizeBrand(b.Brand) == excluded {
			continue
		}
		if score != nil && b.Score <= *score {
			continue
		}
		candidates = append(candidates, domain.Alternative{Brand: b.Brand, Score: b.Score})
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })
	if len(candidates) > MaxAlternatives {
		candidates = candidates[:MaxAlternatives]
	}
	return candidates
}

// tokenize splits a string into normalized lowercase tokens.
// Removes punctuation, stop words and pure numeric tokens.
func tokenize(s string) []string {
	cleaned := punctuationRegex.ReplaceAllString(strings.ToLower(s), " ")
	cleaned = strings.NewReplacer("'", "", "&", "").Replace(cleaned)

	var tokens []string
	for _, word := range strings.Fields(cleaned) {
		if len(word) <= 1 || brandStopWords[word] || isNumeric(word) {
			continue
		}
		tokens = append(tokens, word)
	}
	return tokens
}

// isNumeric checks if a string contains only digits
func isNumeric(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}

// fuzzyTokenMatch checks if two tokens are similar within the edit distance threshold
func fuzzyTokenMatch(token1, token2 string, threshold int) bool {
	if token1 == token2 {
		return true
	}

	// Short tokens are too close to each other to compare by edit distance
	if len(token1) < 5 || len(token2) < 5 {
		return false
	}

	lenDiff := len(token1) - len(token2)
	if lenDiff < 0 {
		lenDiff = -lenDiff
	}
	if lenDiff > threshold {
		return false
	}

	return levenshteinDistance(token1, token2) <= threshold
}

// levenshteinDistance calculates the edit distance between two strings
func levenshteinDistance(s1, s2 string) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	r1 := []rune(s1)
	r2 := []rune(s2)
	m := len(r1)
	n := len(r2)

	// Two rows instead of the full matrix
	prev := make([]int, n+1)
	curr := make([]int, n+1)

	for j := 0; j <= n; j++ {
		prev[j] = j
	}

	for i := 1; i <= m; i++ {
		curr[0] = i
		for j := 1; j <= n; j++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = 1
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[n]
}
