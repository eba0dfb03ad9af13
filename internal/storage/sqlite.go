package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dshills/listingsearch/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
)

// timeLayout is fixed width so that TEXT ordering matches time ordering
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

var _ Storage = (*SQLiteStorage)(nil)

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// A single connection keeps :memory: databases shared and serialises writers
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// withTx runs fn inside a transaction, rolling back on error
func (s *SQLiteStorage) withTx(ctx context.Context, fn func(q querier) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Provider operations

func upsertProvider(ctx context.Context, q querier, p *types.Provider) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid provider %q: %w", p.ID, err)
	}

	query := `
		INSERT INTO providers (id, first_name, last_name, city, neighborhood, experience_years,
		                       rating, completed_jobs, specification, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			city = excluded.city,
			neighborhood = excluded.neighborhood,
			experience_years = excluded.experience_years,
			rating = excluded.rating,
			completed_jobs = excluded.completed_jobs,
			specification = excluded.specification,
			is_active = 1,
			updated_at = excluded.updated_at
	`
	now := formatTime(time.Now())
	_, err := q.ExecContext(ctx, query,
		p.ID, p.FirstName, p.LastName, p.City, p.Neighborhood, p.ExperienceYears,
		nullFloat(p.Rating), p.CompletedJobs, p.Specification, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert provider: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) UpsertProvider(ctx context.Context, provider *types.Provider) error {
	return upsertProvider(ctx, s.db, provider)
}

const providerColumns = `id, first_name, last_name, city, neighborhood, experience_years,
		       rating, completed_jobs, specification`

type scanner interface {
	Scan(dest ...any) error
}

func scanProvider(row scanner) (types.Provider, error) {
	var p types.Provider
	var rating sql.NullFloat64
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.City, &p.Neighborhood,
		&p.ExperienceYears, &rating, &p.CompletedJobs, &p.Specification)
	if err != nil {
		return p, err
	}
	if rating.Valid {
		p.Rating = &rating.Float64
	}
	return p, nil
}

// GetProvider returns a provider by ID whether or not it is active
func (s *SQLiteStorage) GetProvider(ctx context.Context, id string) (*types.Provider, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+providerColumns+` FROM providers WHERE id = ?`, id)
	p, err := scanProvider(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// DeactivateProvider hides a provider and, through the active join, its listings
func (s *SQLiteStorage) DeactivateProvider(ctx context.Context, id string) error {
	return s.deactivate(ctx, "providers", id)
}

func (s *SQLiteStorage) ListActiveProviders(ctx context.Context) ([]types.Provider, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+providerColumns+`
		FROM providers
		WHERE is_active = 1
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list providers: %w", err)
	}
	defer rows.Close()

	providers := make([]types.Provider, 0)
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return providers, rows.Err()
}

// Listing operations

func upsertListing(ctx context.Context, q querier, l *types.Listing) error {
	if err := l.Validate(); err != nil {
		return fmt.Errorf("invalid listing %q: %w", l.ID, err)
	}

	var exists int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM providers WHERE id = ?`, l.ProviderID).Scan(&exists)
	if err == sql.ErrNoRows {
		return fmt.Errorf("provider %q: %w", l.ProviderID, ErrNotFound)
	}
	if err != nil {
		return err
	}

	tags := l.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}

	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO listings (id, provider_id, title, description, category, price, duration_minutes,
		                      tags, location_mode, is_urgent_available, is_group_service,
		                      average_rating, total_reviews, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			provider_id = excluded.provider_id,
			title = excluded.title,
			description = excluded.description,
			category = excluded.category,
			price = excluded.price,
			duration_minutes = excluded.duration_minutes,
			tags = excluded.tags,
			location_mode = excluded.location_mode,
			is_urgent_available = excluded.is_urgent_available,
			is_group_service = excluded.is_group_service,
			average_rating = excluded.average_rating,
			total_reviews = excluded.total_reviews,
			is_active = 1,
			updated_at = excluded.updated_at
	`
	_, err = q.ExecContext(ctx, query,
		l.ID, l.ProviderID, l.Title, l.Description, l.Category, l.Price, l.DurationMinutes,
		string(tagsJSON), string(l.LocationMode), l.IsUrgentAvailable, l.IsGroupService,
		nullFloat(l.AverageRating), nullInt(l.TotalReviews),
		formatTime(l.CreatedAt), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to upsert listing: %w", err)
	}
	return nil
}

// UpsertListing validates and stores a listing. The owning provider must exist.
func (s *SQLiteStorage) UpsertListing(ctx context.Context, listing *types.Listing) error {
	return upsertListing(ctx, s.db, listing)
}

const listingColumns = `l.id, l.provider_id, l.title, l.description, l.category, l.price,
		       l.duration_minutes, l.tags, l.location_mode, l.is_urgent_available,
		       l.is_group_service, l.average_rating, l.total_reviews, l.created_at`

func scanListing(row scanner) (types.Listing, error) {
	var l types.Listing
	var tagsJSON, mode, created string
	var rating sql.NullFloat64
	var reviews sql.NullInt64

	err := row.Scan(&l.ID, &l.ProviderID, &l.Title, &l.Description, &l.Category, &l.Price,
		&l.DurationMinutes, &tagsJSON, &mode, &l.IsUrgentAvailable,
		&l.IsGroupService, &rating, &reviews, &created)
	if err != nil {
		return l, err
	}

	if err := json.Unmarshal([]byte(tagsJSON), &l.Tags); err != nil {
		return l, fmt.Errorf("listing %s: failed to decode tags: %w", l.ID, err)
	}
	l.LocationMode = types.LocationMode(mode)
	if rating.Valid {
		l.AverageRating = &rating.Float64
	}
	if reviews.Valid {
		n := int(reviews.Int64)
		l.TotalReviews = &n
	}
	l.CreatedAt, err = time.Parse(timeLayout, created)
	if err != nil {
		return l, fmt.Errorf("listing %s: invalid created_at %q: %w", l.ID, created, err)
	}
	return l, nil
}

// GetListing returns a listing by ID whether or not it is active
func (s *SQLiteStorage) GetListing(ctx context.Context, id string) (*types.Listing, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+listingColumns+` FROM listings l WHERE l.id = ?`, id)
	l, err := scanListing(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *SQLiteStorage) DeactivateListing(ctx context.Context, id string) error {
	return s.deactivate(ctx, "listings", id)
}

// ListActiveListings returns the active listings of one provider, oldest first
func (s *SQLiteStorage) ListActiveListings(ctx context.Context, providerID string) ([]types.Listing, error) {
	return s.queryListings(ctx, `
		SELECT `+listingColumns+`
		FROM listings l
		WHERE l.provider_id = ? AND l.is_active = 1
		ORDER BY l.created_at, l.id
	`, providerID)
}

// ListAllActiveListings returns the active listings of every active provider
func (s *SQLiteStorage) ListAllActiveListings(ctx context.Context) ([]types.Listing, error) {
	return s.queryListings(ctx, `
		SELECT `+listingColumns+`
		FROM listings l
		JOIN providers p ON p.id = l.provider_id
		WHERE l.is_active = 1 AND p.is_active = 1
		ORDER BY p.created_at, p.id, l.created_at, l.id
	`)
}

func (s *SQLiteStorage) queryListings(ctx context.Context, query string, args ...any) ([]types.Listing, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}
	defer rows.Close()

	listings := make([]types.Listing, 0)
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// Import writes providers before listings so foreign keys resolve
func (s *SQLiteStorage) Import(ctx context.Context, providers []types.Provider, listings []types.Listing) error {
	return s.withTx(ctx, func(q querier) error {
		for i := range providers {
			if err := upsertProvider(ctx, q, &providers[i]); err != nil {
				return err
			}
		}
		for i := range listings {
			if err := upsertListing(ctx, q, &listings[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteStorage) deactivate(ctx context.Context, table, id string) error {
	// table is one of two constants above, never user input
	result, err := s.db.ExecContext(ctx,
		`UPDATE `+table+` SET is_active = 0, updated_at = ? WHERE id = ?`,
		formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to deactivate %s %q: %w", table, id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Status operations

func (s *SQLiteStorage) GetStatus(ctx context.Context) (*Status, error) {
	status := &Status{}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN is_active = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN is_active = 0 THEN 1 ELSE 0 END), 0)
		FROM providers
	`).Scan(&status.ActiveProviders, &status.InactiveProviders)
	if err != nil {
		return nil, fmt.Errorf("failed to count providers: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN is_active = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN is_active = 0 THEN 1 ELSE 0 END), 0)
		FROM listings
	`).Scan(&status.ActiveListings, &status.InactiveListings)
	if err != nil {
		return nil, fmt.Errorf("failed to count listings: %w", err)
	}

	version, err := currentVersion(ctx, s.db)
	if err != nil {
		return nil, err
	}
	status.SchemaVersion = version.String()

	return status, nil
}

// Helper functions

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
