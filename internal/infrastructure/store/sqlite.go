package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ecoshop/ecoshop/internal/domain"
	_ "modernc.org/sqlite" // SQLite driver
)

var sqlitePragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA busy_timeout=5000",
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS product_analyses (
	source_site   TEXT NOT NULL,
	listing_id    TEXT NOT NULL,
	url           TEXT NOT NULL DEFAULT '',
	product_name  TEXT NOT NULL DEFAULT '',
	brand         TEXT NOT NULL DEFAULT '',
	category      TEXT NOT NULL DEFAULT '',
	breakdown     TEXT NOT NULL,
	default_score INTEGER,
	certainty     TEXT NOT NULL DEFAULT '',
	message       TEXT NOT NULL DEFAULT '',
	alternatives  TEXT NOT NULL DEFAULT '[]',
	created_at    INTEGER NOT NULL,
	PRIMARY KEY (source_site, listing_id)
);`

// SQLiteStore implements domain.ProductRepository on a SQLite file
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dsn. ":memory:" is accepted.
func NewSQLiteStore(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection keeps ":memory:" databases alive and serializes writers
	db.SetMaxOpenConns(1)

	for _, pragma := range sqlitePragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// GetByListing returns the stored record or domain.ErrProductNotFound
func (s *SQLiteStore) GetByListing(ctx context.Context, key domain.ListingKey) (*domain.ProductRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT source_site, listing_id, url, product_name, brand, category, breakdown,
		       default_score, certainty, message, alternatives, created_at
		FROM product_analyses
		WHERE source_site = ? AND listing_id = ?`,
		key.SourceSite, key.ListingID)

	var (
		r         domain.ProductRecord
		breakdown string
		alts      string
		score     sql.NullInt64
		certainty string
		created   int64
	)
	err := row.Scan(&r.SourceSite, &r.ListingID, &r.URL, &r.ProductName, &r.Brand, &r.Category,
		&breakdown, &score, &certainty, &r.Message, &alts, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	if score.Valid {
		v := int(score.Int64)
		r.DefaultScore = &v
	}
	r.Certainty = domain.Certainty(certainty)
	r.CreatedAt = time.Unix(0, created).UTC()
	if err := decodeRecord(&r, encoded{breakdown: []byte(breakdown), alternatives: []byte(alts)}); err != nil {
		return nil, err
	}
	return &r, nil
}

// Save inserts or updates the record for its listing
func (s *SQLiteStore) Save(ctx context.Context, record *domain.ProductRecord) error {
	if err := validate(record); err != nil {
		return err
	}
	e, err := encodeRecord(record)
	if err != nil {
		return err
	}

	var score sql.NullInt64
	if record.DefaultScore != nil {
		score = sql.NullInt64{Int64: int64(*record.DefaultScore), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO product_analyses (source_site, listing_id, url, product_name, brand, category,
			breakdown, default_score, certainty, message, alternatives, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source_site, listing_id) DO UPDATE SET
			url = excluded.url,
			product_name = excluded.product_name,
			brand = excluded.brand,
			category = excluded.category,
			breakdown = excluded.breakdown,
			default_score = excluded.default_score,
			certainty = excluded.certainty,
			message = excluded.message,
			alternatives = excluded.alternatives,
			created_at = excluded.created_at`,
		record.SourceSite, record.ListingID, record.URL, record.ProductName, record.Brand, record.Category,
		string(e.breakdown), score, string(record.Certainty), record.Message, string(e.alternatives),
		record.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Ping checks the connection
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
