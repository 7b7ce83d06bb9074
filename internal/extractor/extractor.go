// Package extractor pulls product identity and specification data out of
// loaded product pages using ordered selector fallbacks.
package extractor

import (
	"io"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ecoshop/ecoshop/internal/domain"
)

// Default selector candidates, tried in order. The first selector whose element
// has non-empty trimmed text wins.
var (
	DefaultBrandSelectors = []string{
		`[itemprop="brand"] [itemprop="name"]`,
		`[itemprop="brand"]`,
		`[data-testid="product-brand"]`,
		`#bylineInfo`,
		`.product-brand`,
		`.product__vendor`,
		`.brand-name`,
		`.brand`,
		`a[href*="/brand/"]`,
	}

	DefaultNameSelectors = []string{
		`#productTitle`,
		`h1[itemprop="name"]`,
		`[data-testid="product-title"]`,
		`.product-title`,
		`.product__title`,
		`.product-name`,
		`[itemprop="name"]`,
		`h1`,
	}

	DefaultSpecContainers = []string{
		`#productDetails_techSpec_section_1`,
		`#productDetails_detailBullets_sections1`,
		`#detailBullets_feature_div`,
		`.product-specs`,
		`.specifications`,
		`[class*="spec"]`,
		`[class*="detail"]`,
		`table`,
		`dl`,
	}

	multiSpaceRegex = regexp.MustCompile(`\s+`)
)

// Config controls the selector lists and brand inference
type Config struct {
	BrandSelectors []string
	NameSelectors  []string
	SpecContainers []string
	KnownBrands    []string
	// MaxBracketTokenLength rejects bracketed tokens longer than this many runes
	MaxBracketTokenLength int
}

// DefaultConfig returns the built-in selector lists and brand list
func DefaultConfig() Config {
	return Config{
		BrandSelectors:        DefaultBrandSelectors,
		NameSelectors:         DefaultNameSelectors,
		SpecContainers:        DefaultSpecContainers,
		KnownBrands:           DefaultKnownBrands,
		MaxBracketTokenLength: 20,
	}
}

// Extractor turns a document into a ProductInfo record
type Extractor struct {
	brandSelectors []string
	nameSelectors  []string
	specContainers []string
	brands         *brandIndex
	maxBracketLen  int
}

// New creates an extractor, filling unset fields from DefaultConfig
func New(cfg Config) *Extractor {
	def := DefaultConfig()
	if len(cfg.BrandSelectors) == 0 {
		cfg.BrandSelectors = def.BrandSelectors
	}
	if len(cfg.NameSelectors) == 0 {
		cfg.NameSelectors = def.NameSelectors
	}
	if len(cfg.SpecContainers) == 0 {
		cfg.SpecContainers = def.SpecContainers
	}
	if len(cfg.KnownBrands) == 0 {
		cfg.KnownBrands = def.KnownBrands
	}
	if cfg.MaxBracketTokenLength <= 0 {
		cfg.MaxBracketTokenLength = def.MaxBracketTokenLength
	}

	return &Extractor{
		brandSelectors: cfg.BrandSelectors,
		nameSelectors:  cfg.NameSelectors,
		specContainers: cfg.SpecContainers,
		brands:         newBrandIndex(cfg.KnownBrands),
		maxBracketLen:  cfg.MaxBracketTokenLength,
	}
}

// ExtractHTML parses r and extracts from it. A document that cannot be parsed
// yields an empty record carrying only the URL.
func (e *Extractor) ExtractHTML(r io.Reader, pageURL string) domain.ProductInfo {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return domain.ProductInfo{URL: pageURL, Specifications: map[string]string{}}
	}
	return e.Extract(doc, pageURL)
}

// Extract scans doc for brand, name and specifications.
// It never fails: missing data is left empty and the record is simply not dispatchable.
func (e *Extractor) Extract(doc *goquery.Document, pageURL string) domain.ProductInfo {
	info := domain.ProductInfo{URL: pageURL, Specifications: map[string]string{}}
	if doc == nil {
		return info
	}

	// Brand and name are resolved independently
	info.Brand = firstText(doc, e.brandSelectors)
	info.Name = firstText(doc, e.nameSelectors)

	if info.Brand == "" && info.Name == "" {
		info.Name = metaContent(doc, "og:title")
		info.Brand = metaContent(doc, "product:brand", "og:brand")
	}

	if info.Brand == "" && info.Name != "" {
		info.Brand = e.InferBrand(info.Name)
	}

	info.Specifications = e.extractSpecifications(doc)
	if info.Brand == "" {
		if b := info.Specifications["brand"]; b != "" {
			info.Brand = b
		}
	}

	return info
}

// firstText returns the text of the first selector that matches non-empty content
func firstText(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		var found string
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			found = nodeText(s)
			return found == ""
		})
		if found != "" {
			return found
		}
	}
	return ""
}

// nodeText returns trimmed text, falling back to a content attribute for meta-style nodes
func nodeText(s *goquery.Selection) string {
	text := cleanText(s.Text())
	if text != "" {
		return text
	}
	if content, ok := s.Attr("content"); ok {
		return cleanText(content)
	}
	return ""
}

// metaContent returns the content of the first meta tag whose property or name matches
func metaContent(doc *goquery.Document, keys ...string) string {
	for _, key := range keys {
		var found string
		doc.Find("meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			property, _ := s.Attr("property")
			name, _ := s.Attr("name")
			if property != key && name != key {
				return true
			}
			content, _ := s.Attr("content")
			found = cleanText(content)
			return found == ""
		})
		if found != "" {
			return found
		}
	}
	return ""
}

func cleanText(s string) string {
	return strings.TrimSpace(multiSpaceRegex.ReplaceAllString(s, " "))
}
