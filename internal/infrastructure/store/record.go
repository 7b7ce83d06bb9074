// Package store persists analysed product listings.
package store

import (
	"encoding/json"
	"fmt"

	"github.com/ecoshop/ecoshop/internal/domain"
)

// encoded holds the JSON columns of a product row
type encoded struct {
	breakdown    []byte
	alternatives []byte
}

func encodeRecord(r *domain.ProductRecord) (encoded, error) {
	breakdown, err := json.Marshal(r.Breakdown)
	if err != nil {
		return encoded{}, fmt.Errorf("encode breakdown: %w", err)
	}
	alts := r.Alternatives
	if alts == nil {
		alts = []domain.Alternative{}
	}
	alternatives, err := json.Marshal(alts)
	if err != nil {
		return encoded{}, fmt.Errorf("encode alternatives: %w", err)
	}
	return encoded{breakdown: breakdown, alternatives: alternatives}, nil
}

func decodeRecord(r *domain.ProductRecord, e encoded) error {
	if err := json.Unmarshal(e.breakdown, &r.Breakdown); err != nil {
		return fmt.Errorf("decode breakdown: %w", err)
	}
	if len(e.alternatives) > 0 {
		if err := json.Unmarshal(e.alternatives, &r.Alternatives); err != nil {
			return fmt.Errorf("decode alternatives: %w", err)
		}
	}
	return nil
}

func validate(r *domain.ProductRecord) error {
	if r == nil || r.SourceSite == "" || r.ListingID == "" {
		return fmt.Errorf("%w: record needs source site and listing id", domain.ErrInvalidRequest)
	}
	return nil
}
