package domain

import (
	"strings"
	"time"
)

// ProductInfo represents product identity extracted from an e-commerce page
type ProductInfo struct {
	Brand          string            `json:"brand"`
	Name           string            `json:"name"`
	URL            string            `json:"url"`
	Specifications map[string]string `json:"specifications"`
}

// Dispatchable reports whether the record carries enough identity to be sent for analysis.
// At least one of brand or name must be present.
func (p ProductInfo) Dispatchable() bool {
	return strings.TrimSpace(p.Brand) != "" || strings.TrimSpace(p.Name) != ""
}

// NormalizeBrand lowercases and trims a brand name for use as a cache key
func NormalizeBrand(brand string) string {
	return strings.ToLower(strings.TrimSpace(brand))
}

// ProductRecord is the persisted server-side analysis of a single listing
type ProductRecord struct {
	ListingID    string           `json:"listing_id"`
	SourceSite   string           `json:"source_site"`
	URL          string           `json:"url"`
	ProductName  string           `json:"product_name"`
	Brand        string           `json:"brand"`
	Category     string           `json:"category"`
	Breakdown    []ScoreBreakdown `json:"sustainability_breakdown"`
	DefaultScore *int             `json:"default_sustainability_score,omitempty"`
	Certainty    Certainty        `json:"certainty"`
	Message      string           `json:"message,omitempty"`
	Alternatives []Alternative    `json:"alternatives,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

// ListingKey identifies a product listing independent of URL noise
type ListingKey struct {
	SourceSite string
	ListingID  string
}

// String renders the key in the "site:listing" form used for cache keys
func (k ListingKey) String() string {
	return k.SourceSite + ":" + k.ListingID
}

// BrandScore is a brand-level ESG record served by the simple score lookup
type BrandScore struct {
	Brand          string        `json:"brand" yaml:"brand"`
	Score          int           `json:"score" yaml:"score"`
	CO2e           float64       `json:"co2e,omitempty" yaml:"co2e"`
	WaterUsage     string        `json:"waterUsage,omitempty" yaml:"waterUsage"`
	WasteGenerated string        `json:"wasteGenerated,omitempty" yaml:"wasteGenerated"`
	LaborPractices string        `json:"laborPractices,omitempty" yaml:"laborPractices"`
	Certifications []string      `json:"certifications,omitempty" yaml:"certifications"`
	Certainty      Certainty     `json:"certainty,omitempty" yaml:"certainty"`
	Message        string        `json:"message,omitempty" yaml:"message"`
	Alternatives   []Alternative `json:"alternatives,omitempty" yaml:"alternatives"`
}

// ProductCategory is a static product category summary
type ProductCategory struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	AvgScore  int      `json:"avgScore"`
	TopBrands []string `json:"topBrands"`
}

// Contribution is a user-submitted sustainability observation
type Contribution struct {
	Brand       string `json:"brand" binding:"required"`
	URL         string `json:"url,omitempty"`
	Observation string `json:"observation" binding:"required"`
}
