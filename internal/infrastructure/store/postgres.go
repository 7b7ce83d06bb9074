package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ecoshop/ecoshop/internal/domain"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS product_analyses (
	source_site   TEXT NOT NULL,
	listing_id    TEXT NOT NULL,
	url           TEXT NOT NULL DEFAULT '',
	product_name  TEXT NOT NULL DEFAULT '',
	brand         TEXT NOT NULL DEFAULT '',
	category      TEXT NOT NULL DEFAULT '',
	breakdown     JSONB NOT NULL,
	default_score INTEGER,
	certainty     TEXT NOT NULL DEFAULT '',
	message       TEXT NOT NULL DEFAULT '',
	alternatives  JSONB NOT NULL DEFAULT '[]',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (source_site, listing_id)
);`

// PostgresStore implements domain.ProductRepository on PostgreSQL
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore connects to dsn and creates the table if needed
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &PostgresStore{db: pool}, nil
}

// GetByListing returns the stored record or domain.ErrProductNotFound
func (s *PostgresStore) GetByListing(ctx context.Context, key domain.ListingKey) (*domain.ProductRecord, error) {
	query := `
		SELECT source_site, listing_id, url, product_name, brand, category, breakdown,
		       default_score, certainty, message, alternatives, created_at
		FROM product_analyses
		WHERE source_site = $1 AND listing_id = $2;
	`
	row := s.db.QueryRow(ctx, query, key.SourceSite, key.ListingID)

	var (
		r         domain.ProductRecord
		e         encoded
		score     *int32
		certainty string
	)
	err := row.Scan(
		&r.SourceSite,
		&r.ListingID,
		&r.URL,
		&r.ProductName,
		&r.Brand,
		&r.Category,
		&e.breakdown,
		&score,
		&certainty,
		&r.Message,
		&e.alternatives,
		&r.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	if score != nil {
		v := int(*score)
		r.DefaultScore = &v
	}
	r.Certainty = domain.Certainty(certainty)
	if err := decodeRecord(&r, e); err != nil {
		return nil, err
	}
	return &r, nil
}

// Save inserts or updates the record for its listing
func (s *PostgresStore) Save(ctx context.Context, record *domain.ProductRecord) error {
	if err := validate(record); err != nil {
		return err
	}
	e, err := encodeRecord(record)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO product_analyses (source_site, listing_id, url, product_name, brand, category,
			breakdown, default_score, certainty, message, alternatives, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (source_site, listing_id) DO UPDATE SET
			url = EXCLUDED.url,
			product_name = EXCLUDED.product_name,
			brand = EXCLUDED.brand,
			category = EXCLUDED.category,
			breakdown = EXCLUDED.breakdown,
			default_score = EXCLUDED.default_score,
			certainty = EXCLUDED.certainty,
			message = EXCLUDED.message,
			alternatives = EXCLUDED.alternatives,
			created_at = EXCLUDED.created_at;
	`
	_, err = s.db.Exec(ctx, query,
		record.SourceSite,
		record.ListingID,
		record.URL,
		record.ProductName,
		record.Brand,
		record.Category,
		e.breakdown,
		record.DefaultScore,
		string(record.Certainty),
		record.Message,
		e.alternatives,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Ping checks the connection
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close releases the pool
func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}
