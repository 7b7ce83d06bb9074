// Package esg loads the brand-level ESG dataset.
package esg

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ecoshop/ecoshop/internal/domain"
)

//go:embed brands.yaml
var builtin []byte

// Directory is an immutable set of brand records
type Directory struct {
	brands []domain.BrandScore
}

// Builtin returns the dataset compiled into the binary
func Builtin() (*Directory, error) {
	return Parse(builtin)
}

// Load reads a dataset file. JSON and YAML are both accepted.
// An empty path loads the built-in dataset.
func Load(path string) (*Directory, error) {
	if path == "" {
		return Builtin()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ESG dataset: %w", err)
	}
	dir, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return dir, nil
}

// Parse decodes a list of brand records. Records without a brand name are
// rejected; scores are clamped to 0..100.
func Parse(data []byte) (*Directory, error) {
	var brands []domain.BrandScore
	if err := yaml.Unmarshal(data, &brands); err != nil {
		return nil, fmt.Errorf("parse ESG dataset: %w", err)
	}

	seen := make(map[string]bool, len(brands))
	for i := range brands {
		b := &brands[i]
		b.Brand = strings.TrimSpace(b.Brand)
		if b.Brand == "" {
			return nil, fmt.Errorf("ESG record %d: brand is empty", i)
		}
		key := domain.NormalizeBrand(b.Brand)
		if seen[key] {
			return nil, fmt.Errorf("ESG record %d: duplicate brand %q", i, b.Brand)
		}
		seen[key] = true

		if b.Score < 0 {
			b.Score = 0
		}
		if b.Score > 100 {
			b.Score = 100
		}
		if b.Certainty == "" {
			b.Certainty = domain.CertaintyMedium
		}
	}
	return &Directory{brands: brands}, nil
}

// Brands returns a copy of every record in dataset order
func (d *Directory) Brands() []domain.BrandScore {
	out := make([]domain.BrandScore, len(d.brands))
	copy(out, d.brands)
	return out
}

// Len returns the number of records
func (d *Directory) Len() int {
	return len(d.brands)
}
