package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/listingsearch/pkg/types"
)

const seedJSON = `{
  "providers": [
    {"id": "p1", "first_name": "Ana", "last_name": "Lopes", "city": "Lisbon", "rating": 4.5},
    {"id": "p2", "first_name": "Rui", "last_name": "Melo", "city": "Porto"}
  ],
  "listings": [
    {"id": "l1", "provider_id": "p1", "title": "Home Cleaning", "category": "cleaning",
     "price": 4000, "duration_minutes": 60, "location_mode": "at-customer-site"},
    {"provider_id": "p2", "title": "Piano Moving", "category": "moving",
     "price": 12000, "duration_minutes": 120, "location_mode": "at-customer-site"}
  ]
}`

// isolate points the CLI at a fresh database and clears inherited settings
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, env := range []string{
		"LISTINGSEARCH_CONFIG", "LISTINGSEARCH_PG_DSN", "LISTINGSEARCH_STORAGE",
		"LISTINGSEARCH_CACHE_TTL", "LISTINGSEARCH_FETCH_WORKERS", "LISTINGSEARCH_MEMO_SIZE",
	} {
		t.Setenv(env, "")
	}
	t.Setenv("LISTINGSEARCH_DB_PATH", filepath.Join(dir, "db", "listings.db"))
	t.Setenv("LISTINGSEARCH_LOG_LEVEL", "error")
	resetSearchFlags()
	return dir
}

func resetSearchFlags() {
	configPath, logLevel = "", ""
	searchCategories, searchModes = nil, nil
	searchMinPrice, searchMaxPrice = -1, -1
	searchMinRating = 0
	searchCity, searchHood = "", ""
	searchUrgent, searchGroup = false, false
	searchSort = string(types.SortRelevance)
	searchLimit = 10
	searchJSON = false
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}

func TestVersionCmd(t *testing.T) {
	originalVersion := version
	version = "test-version-1.0.0"
	defer func() { version = originalVersion }()

	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "listingsearch version test-version-1.0.0")
	assert.Contains(t, out, "SQLite Driver:")
}

func TestSeedThenSearch(t *testing.T) {
	dir := isolate(t)
	seedPath := filepath.Join(dir, "seed.json")
	require.NoError(t, os.WriteFile(seedPath, []byte(seedJSON), 0o600))

	out, err := execute(t, "seed", seedPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2 providers and 2 listings")

	resetSearchFlags()
	out, err = execute(t, "search", "cleaning", "--json")
	require.NoError(t, err)

	var results []types.SearchResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "l1", results[0].Listing.ID)
	assert.Equal(t, "Ana", results[0].Provider.FirstName)

	resetSearchFlags()
	out, err = execute(t, "search", "--sort", "price-desc")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.Contains(t, lines[0], "Piano Moving")

	resetSearchFlags()
	out, err = execute(t, "search", "plumbing")
	require.NoError(t, err)
	assert.Contains(t, out, "No results found.")
}

func TestSeed_InvalidFileWritesNothing(t *testing.T) {
	dir := isolate(t)
	seedPath := filepath.Join(dir, "seed.json")
	bad := strings.Replace(seedJSON, `"price": 12000`, `"price": -1`, 1)
	require.NoError(t, os.WriteFile(seedPath, []byte(bad), 0o600))

	_, err := execute(t, "seed", seedPath)
	require.ErrorIs(t, err, types.ErrNegativePrice)

	resetSearchFlags()
	out, err := execute(t, "search")
	require.NoError(t, err)
	assert.Contains(t, out, "No results found.")
}

func TestBuildFilters(t *testing.T) {
	resetSearchFlags()
	defer resetSearchFlags()

	searchMaxPrice = 10000
	searchModes = []string{"either"}
	searchCity = "Lisbon"
	f, err := buildFilters([]string{"cleaning"})
	require.NoError(t, err)
	assert.Equal(t, "cleaning", f.Query)
	require.NotNil(t, f.PriceRange)
	assert.Equal(t, types.PriceRange{Min: 0, Max: 10000}, *f.PriceRange)
	assert.Equal(t, []types.LocationMode{types.LocationEither}, f.Availability.LocationModes)
	assert.Equal(t, "Lisbon", f.Location.City)

	resetSearchFlags()
	f, err = buildFilters(nil)
	require.NoError(t, err)
	assert.Nil(t, f.PriceRange)

	searchSort = "cheapest"
	_, err = buildFilters(nil)
	require.Error(t, err)

	resetSearchFlags()
	searchModes = []string{"mars"}
	_, err = buildFilters(nil)
	require.Error(t, err)
}
