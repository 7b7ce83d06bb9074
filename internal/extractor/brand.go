package extractor

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultKnownBrands is matched against product names when no brand element exists
var DefaultKnownBrands = []string{
	"Adidas", "Anker", "Apple", "Asus", "Bose", "Canon", "Dell", "Dyson",
	"Garnier", "H&M", "HP", "Huawei", "IKEA", "JBL", "Lenovo", "Levi's",
	"LG", "Logitech", "L'Oreal", "Maybelline", "Muji", "Nestle", "Nike",
	"Nivea", "Oppo", "Panasonic", "Patagonia", "Philips", "Puma", "Realme",
	"Samsung", "Sharp", "Sony", "The North Face", "Uniqlo", "Unilever",
	"Vivo", "Xiaomi", "Zara",
}

// bracketStopwords are generic listing tags that are never a brand
var bracketStopwords = map[string]bool{
	"new":           true,
	"sale":          true,
	"latest":        true,
	"hot":           true,
	"hot sale":      true,
	"official":      true,
	"original":      true,
	"authentic":     true,
	"genuine":       true,
	"ready stock":   true,
	"in stock":      true,
	"local stock":   true,
	"free shipping": true,
	"free gift":     true,
	"promo":         true,
	"best seller":   true,
	"bestseller":    true,
	"limited":       true,
	"cod":           true,
	"sg":            true,
	"sg stock":      true,
	"warranty":      true,
}

var bracketTokenRegex = regexp.MustCompile(`\[([^\[\]]+)\]`)

// brandIndex matches known brand names on word boundaries
type brandIndex struct {
	names    []string
	patterns []string
}

func newBrandIndex(brands []string) *brandIndex {
	idx := &brandIndex{}
	for _, b := range brands {
		norm := normalizeForMatch(b)
		if norm == "" {
			continue
		}
		idx.names = append(idx.names, b)
		idx.patterns = append(idx.patterns, " "+norm+" ")
	}
	return idx
}

// match returns the known brand occurring earliest in name, preferring the longer one on ties
func (b *brandIndex) match(name string) string {
	haystack := " " + normalizeForMatch(name) + " "
	best, bestPos, bestLen := "", -1, 0
	for i, p := range b.patterns {
		pos := strings.Index(haystack, p)
		if pos < 0 {
			continue
		}
		if bestPos < 0 || pos < bestPos || (pos == bestPos && len(p) > bestLen) {
			best, bestPos, bestLen = b.names[i], pos, len(p)
		}
	}
	return best
}

// normalizeForMatch lowercases and replaces punctuation with single spaces
func normalizeForMatch(s string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '&' || r == '\'' {
			sb.WriteRune(r)
		} else {
			sb.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

// InferBrand guesses a brand from a product name.
// Known brands win, then a bracketed token such as "[Anker]", then a capitalized first word.
func (e *Extractor) InferBrand(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	if b := e.brands.match(name); b != "" {
		return b
	}

	for _, m := range bracketTokenRegex.FindAllStringSubmatch(name, -1) {
		token := strings.TrimSpace(m[1])
		if token == "" || utf8.RuneCountInString(token) > e.maxBracketLen {
			continue
		}
		if bracketStopwords[strings.ToLower(token)] {
			continue
		}
		return token
	}

	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	first := strings.TrimRight(fields[0], ",:;-|")
	r, _ := utf8.DecodeRuneInString(first)
	if unicode.IsUpper(r) && utf8.RuneCountInString(first) > 2 {
		return first
	}
	return ""
}
