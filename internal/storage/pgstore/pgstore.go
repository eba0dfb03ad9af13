// Package pgstore is a read-only listing source backed by Postgres.
// It serves deployments where providers and listings live in a managed
// database owned by another service; this process never writes to it.
package pgstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dshills/listingsearch/internal/storage"
	"github.com/dshills/listingsearch/pkg/types"
)

// Schema is the table layout the store expects. EnsureSchema applies it for
// local development and tests.
const Schema = `
CREATE TABLE IF NOT EXISTS providers (
    id TEXT PRIMARY KEY,
    first_name TEXT NOT NULL DEFAULT '',
    last_name TEXT NOT NULL DEFAULT '',
    city TEXT NOT NULL DEFAULT '',
    neighborhood TEXT NOT NULL DEFAULT '',
    experience_years INTEGER NOT NULL DEFAULT 0,
    rating DOUBLE PRECISION CHECK (rating IS NULL OR rating BETWEEN 0 AND 5),
    completed_jobs INTEGER NOT NULL DEFAULT 0,
    specification TEXT NOT NULL DEFAULT '',
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS listings (
    id TEXT PRIMARY KEY,
    provider_id TEXT NOT NULL REFERENCES providers(id) ON DELETE CASCADE,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    category TEXT NOT NULL CHECK (category <> ''),
    price INTEGER NOT NULL CHECK (price >= 0),
    duration_minutes INTEGER NOT NULL CHECK (duration_minutes > 0),
    tags TEXT[] NOT NULL DEFAULT '{}',
    location_mode TEXT NOT NULL,
    is_urgent_available BOOLEAN NOT NULL DEFAULT FALSE,
    is_group_service BOOLEAN NOT NULL DEFAULT FALSE,
    average_rating DOUBLE PRECISION CHECK (average_rating IS NULL OR average_rating BETWEEN 0 AND 5),
    total_reviews INTEGER,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_listings_provider_active ON listings(provider_id, is_active);
`

// Store reads providers and listings through a pgx connection pool
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.BulkListingSource = (*Store)(nil)

// Open creates and verifies a connection pool. A non-empty searchPath is
// set on every connection, which lets tests work in an isolated schema.
func Open(ctx context.Context, databaseURL, searchPath string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.ParseConfig: %w", err)
	}
	if searchPath != "" {
		cfg.ConnConfig.RuntimeParams["search_path"] = searchPath
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Pool exposes the underlying pool, mainly for fixtures
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *Store) Close() {
	s.pool.Close()
}

// EnsureSchema creates the expected tables when they are missing
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensureSchema: %w", err)
	}
	return nil
}

func (s *Store) ListActiveProviders(ctx context.Context) ([]types.Provider, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, first_name, last_name, city, neighborhood, experience_years,
		       rating, completed_jobs, specification
		FROM providers
		WHERE is_active
		ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("listActiveProviders query: %w", err)
	}
	defer rows.Close()

	providers := make([]types.Provider, 0)
	for rows.Next() {
		var p types.Provider
		if err := rows.Scan(
			&p.ID, &p.FirstName, &p.LastName, &p.City, &p.Neighborhood, &p.ExperienceYears,
			&p.Rating, &p.CompletedJobs, &p.Specification,
		); err != nil {
			return nil, fmt.Errorf("listActiveProviders scan: %w", err)
		}
		providers = append(providers, p)
	}
	return providers, rows.Err()
}

const listingSelect = `
		SELECT l.id, l.provider_id, l.title, l.description, l.category, l.price,
		       l.duration_minutes, l.tags, l.location_mode, l.is_urgent_available,
		       l.is_group_service, l.average_rating, l.total_reviews, l.created_at
		FROM listings l`

func (s *Store) ListActiveListings(ctx context.Context, providerID string) ([]types.Listing, error) {
	rows, err := s.pool.Query(ctx,
		listingSelect+` WHERE l.provider_id = $1 AND l.is_active ORDER BY l.created_at, l.id`, providerID)
	if err != nil {
		return nil, fmt.Errorf("listActiveListings query: %w", err)
	}
	return collectListings(rows)
}

func (s *Store) ListAllActiveListings(ctx context.Context) ([]types.Listing, error) {
	rows, err := s.pool.Query(ctx, listingSelect+`
		JOIN providers p ON p.id = l.provider_id
		WHERE l.is_active AND p.is_active
		ORDER BY p.created_at, p.id, l.created_at, l.id`)
	if err != nil {
		return nil, fmt.Errorf("listAllActiveListings query: %w", err)
	}
	return collectListings(rows)
}

func collectListings(rows pgx.Rows) ([]types.Listing, error) {
	defer rows.Close()

	listings := make([]types.Listing, 0)
	for rows.Next() {
		var l types.Listing
		var mode string
		if err := rows.Scan(
			&l.ID, &l.ProviderID, &l.Title, &l.Description, &l.Category, &l.Price,
			&l.DurationMinutes, &l.Tags, &mode, &l.IsUrgentAvailable,
			&l.IsGroupService, &l.AverageRating, &l.TotalReviews, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("listings scan: %w", err)
		}
		l.LocationMode = types.LocationMode(mode)
		listings = append(listings, l)
	}
	return listings, rows.Err()
}
