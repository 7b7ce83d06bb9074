package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations.
// Values are opaque JSON documents so memory and Redis backends behave alike.
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// ProductRepository persists analysed product listings
type ProductRepository interface {
	GetByListing(ctx context.Context, key ListingKey) (*ProductRecord, error)
	Save(ctx context.Context, record *ProductRecord) error
	Ping(ctx context.Context) error
	Close() error
}

// ProductAnalyzer is the opaque analysis service turning product text into structured factors
type ProductAnalyzer interface {
	Analyze(ctx context.Context, product ProductInfo) (*ProductAnalysis, error)
}

// BrandDirectory serves brand-level ESG records
type BrandDirectory interface {
	Brands() []BrandScore
}
