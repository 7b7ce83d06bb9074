package store

import (
	"context"
	"sync"

	"github.com/ecoshop/ecoshop/internal/domain"
)

// MemoryStore keeps records in process memory. Used when no database is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[domain.ListingKey]domain.ProductRecord
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[domain.ListingKey]domain.ProductRecord)}
}

// GetByListing returns the stored record or domain.ErrProductNotFound
func (s *MemoryStore) GetByListing(ctx context.Context, key domain.ListingKey) (*domain.ProductRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[key]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return copyRecord(r), nil
}

// Save inserts or replaces the record for its listing
func (s *MemoryStore) Save(ctx context.Context, record *domain.ProductRecord) error {
	if err := validate(record); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[domain.ListingKey{SourceSite: record.SourceSite, ListingID: record.ListingID}] = *copyRecord(*record)
	return nil
}

// Ping always succeeds
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (s *MemoryStore) Close() error {
	return nil
}

func copyRecord(r domain.ProductRecord) *domain.ProductRecord {
	out := r
	out.Breakdown = make([]domain.ScoreBreakdown, len(r.Breakdown))
	for i, b := range r.Breakdown {
		out.Breakdown[i] = b
		if b.RawScore != nil {
			v := *b.RawScore
			out.Breakdown[i].RawScore = &v
		}
	}
	if r.DefaultScore != nil {
		v := *r.DefaultScore
		out.DefaultScore = &v
	}
	out.Alternatives = append([]domain.Alternative(nil), r.Alternatives...)
	return &out
}
