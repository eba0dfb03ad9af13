package pgstore

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Requires a reachable Postgres; set LISTINGSEARCH_TEST_PG_DSN to run.
func openTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := os.Getenv("LISTINGSEARCH_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("LISTINGSEARCH_TEST_PG_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	schema := "lstest_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	admin, err := Open(ctx, dsn, "")
	require.NoError(t, err)
	_, err = admin.Pool().Exec(ctx, "CREATE SCHEMA "+schema)
	require.NoError(t, err)

	store, err := Open(ctx, dsn, schema)
	require.NoError(t, err)
	require.NoError(t, store.EnsureSchema(ctx))

	t.Cleanup(func() {
		store.Close()
		_, _ = admin.Pool().Exec(context.Background(), "DROP SCHEMA "+schema+" CASCADE")
		admin.Close()
	})
	return store
}

func TestStore_ListActive(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.Pool().Exec(ctx, `
		INSERT INTO providers (id, first_name, last_name, city, rating, is_active, created_at) VALUES
			('p1', 'Ana', 'Lopes', 'Lisbon', 4.5, TRUE, '2025-01-01T00:00:00Z'),
			('p2', 'Rui', 'Melo', 'Porto', NULL, FALSE, '2025-01-02T00:00:00Z')`)
	require.NoError(t, err)

	_, err = store.Pool().Exec(ctx, `
		INSERT INTO listings (id, provider_id, title, category, price, duration_minutes, tags,
		                      location_mode, average_rating, total_reviews, is_active, created_at) VALUES
			('l1', 'p1', 'Home Cleaning', 'cleaning', 4000, 60, '{home,weekly}', 'either', 4.5, 10, TRUE, '2025-02-01T00:00:00Z'),
			('l2', 'p1', 'Ironing', 'cleaning', 2000, 30, '{}', 'at-provider-site', NULL, NULL, FALSE, '2025-02-02T00:00:00Z'),
			('l3', 'p2', 'Moving', 'moving', 9000, 240, '{}', 'at-customer-site', NULL, NULL, TRUE, '2025-02-03T00:00:00Z')`)
	require.NoError(t, err)

	providers, err := store.ListActiveProviders(ctx)
	require.NoError(t, err)
	require.Len(t, providers, 1)
	assert.Equal(t, "p1", providers[0].ID)
	require.NotNil(t, providers[0].Rating)
	assert.Equal(t, 4.5, *providers[0].Rating)

	listings, err := store.ListActiveListings(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, []string{"home", "weekly"}, listings[0].Tags)
	require.NotNil(t, listings[0].TotalReviews)
	assert.Equal(t, 10, *listings[0].TotalReviews)

	all, err := store.ListAllActiveListings(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1, "listings of inactive providers are excluded")
	assert.Equal(t, "l1", all[0].ID)
}
