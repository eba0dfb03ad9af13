package searcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/listingsearch/internal/cache"
	"github.com/dshills/listingsearch/internal/ranking"
	"github.com/dshills/listingsearch/internal/storage"
	"github.com/dshills/listingsearch/pkg/types"
)

func ptrF(v float64) *float64 { return &v }
func ptrI(v int) *int         { return &v }

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeSource is an in-memory storage.BulkListingSource
type fakeSource struct {
	mu        sync.Mutex
	providers []types.Provider
	listings  []types.Listing
	err       error
	gate      chan struct{}

	fetches atomic.Int32
}

func (s *fakeSource) ListActiveProviders(ctx context.Context) ([]types.Provider, error) {
	s.fetches.Add(1)
	s.mu.Lock()
	gate, err := s.gate, s.err
	providers := append([]types.Provider(nil), s.providers...)
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return providers, nil
}

func (s *fakeSource) ListActiveListings(ctx context.Context, providerID string) ([]types.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Listing
	for _, l := range s.listings {
		if l.ProviderID == providerID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *fakeSource) ListAllActiveListings(ctx context.Context) ([]types.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.Listing(nil), s.listings...), nil
}

func (s *fakeSource) set(fn func(s *fakeSource)) {
	s.mu.Lock()
	fn(s)
	s.mu.Unlock()
}

var _ storage.BulkListingSource = (*fakeSource)(nil)

func scenarioSource() *fakeSource {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return &fakeSource{
		providers: []types.Provider{
			{ID: "p1", FirstName: "Ana", LastName: "Lopes", City: "Lisbon", Neighborhood: "Alfama"},
			{ID: "p2", FirstName: "Rui", LastName: "Melo", City: "Porto"},
		},
		listings: []types.Listing{
			{ID: "home", ProviderID: "p1", Title: "Home Cleaning", Category: "home", Price: 4000, DurationMinutes: 60,
				LocationMode: types.LocationAtCustomerSite, AverageRating: ptrF(4.5), TotalReviews: ptrI(10), CreatedAt: base},
			{ID: "deep", ProviderID: "p2", Title: "Deep Cleaning Service", Category: "home", Price: 9000, DurationMinutes: 180,
				LocationMode: types.LocationAtCustomerSite, AverageRating: ptrF(5.0), TotalReviews: ptrI(2), CreatedAt: base.Add(time.Hour)},
			{ID: "piano", ProviderID: "p2", Title: "Piano Moving", Category: "moving", Price: 12000, DurationMinutes: 120,
				LocationMode: types.LocationAtCustomerSite, Description: "includes cleaning of the floor", CreatedAt: base.Add(2 * time.Hour)},
		},
	}
}

func newTestSearcher(t *testing.T, src storage.ListingSource, opts ...cache.Option) *Searcher {
	t.Helper()
	c := cache.New(cache.NewLoader(src, &cache.LoaderConfig{Workers: 2, Retry: cache.RetryConfig{MaxAttempts: 1}}, nil), opts...)
	s, err := NewSearcher(c, nil, nil)
	require.NoError(t, err)
	return s
}

func resultIDs(results []types.SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Listing.ID
	}
	return out
}

func TestSearch_TextMatchRankingScenario(t *testing.T) {
	s := newTestSearcher(t, scenarioSource())

	results, err := s.Search(context.Background(), types.SearchFilters{Query: "cleaning", SortBy: types.SortRelevance})
	require.NoError(t, err)

	// home: title 50 + rating 10*4.5 + reviews min(2*10, 20) = 115
	// deep: title 50 + rating 10*5.0 + reviews min(2*2, 20)  = 104
	// piano: description 10 + nothing else                    = 10
	require.Equal(t, []string{"home", "deep", "piano"}, resultIDs(results))
	assert.InDelta(t, 115.0, results[0].RelevanceScore, 1e-9)
	assert.InDelta(t, 104.0, results[1].RelevanceScore, 1e-9)
	assert.InDelta(t, 10.0, results[2].RelevanceScore, 1e-9)
	for _, r := range results {
		assert.Zero(t, r.Distance)
	}
}

func TestSearch_PriceBandExclusion(t *testing.T) {
	s := newTestSearcher(t, scenarioSource())

	for _, q := range []string{"", "piano", "moving", "cleaning"} {
		results, err := s.Search(context.Background(), types.SearchFilters{
			Query:      q,
			PriceRange: &types.PriceRange{Min: 0, Max: 10000},
		})
		require.NoError(t, err)
		assert.NotContains(t, resultIDs(results), "piano", "query %q", q)
	}
}

func TestSearch_EmptyFiltersReturnAll(t *testing.T) {
	s := newTestSearcher(t, scenarioSource())

	results, err := s.Search(context.Background(), types.SearchFilters{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"home", "deep", "piano"}, resultIDs(results))
	for _, r := range results {
		assert.GreaterOrEqual(t, r.RelevanceScore, 0.0)
	}
}

func TestSearch_NoMatchesIsEmptyNotError(t *testing.T) {
	s := newTestSearcher(t, scenarioSource())

	results, err := s.Search(context.Background(), types.SearchFilters{Query: "plumbing"})
	require.NoError(t, err)
	require.NotNil(t, results)
	assert.Empty(t, results)
}

func TestSearch_SortStrategies(t *testing.T) {
	s := newTestSearcher(t, scenarioSource())
	ctx := context.Background()

	tests := []struct {
		sortBy types.SortStrategy
		want   []string
	}{
		{types.SortPriceAsc, []string{"home", "deep", "piano"}},
		{types.SortPriceDesc, []string{"piano", "deep", "home"}},
		{types.SortRating, []string{"deep", "home", "piano"}},
		{types.SortNewest, []string{"piano", "deep", "home"}},
		{types.SortDistance, []string{"home", "deep", "piano"}},
		{"bogus", []string{"home", "deep", "piano"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.sortBy), func(t *testing.T) {
			results, err := s.Search(ctx, types.SearchFilters{Query: "cleaning", SortBy: tt.sortBy})
			require.NoError(t, err)
			assert.Equal(t, tt.want, resultIDs(results))
		})
	}
}

func TestSearch_RespectsCacheTTL(t *testing.T) {
	src := scenarioSource()
	clock := &fakeClock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	s := newTestSearcher(t, src, cache.WithClock(clock.Now), cache.WithTTL(5*time.Minute))
	ctx := context.Background()

	_, err := s.Search(ctx, types.SearchFilters{Query: "a"})
	require.NoError(t, err)
	clock.Advance(4 * time.Minute)
	_, err = s.Search(ctx, types.SearchFilters{Query: "b"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), src.fetches.Load())

	clock.Advance(2 * time.Minute)
	_, err = s.Search(ctx, types.SearchFilters{Query: "c"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.fetches.Load())
}

func TestSearch_SingleFlight(t *testing.T) {
	src := scenarioSource()
	gate := make(chan struct{})
	src.gate = gate
	s := newTestSearcher(t, src)

	const callers = 10
	var wg sync.WaitGroup
	counts := make([]int, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results, err := s.Search(context.Background(), types.SearchFilters{Query: "cleaning"})
			counts[i], errs[i] = len(results), err
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	assert.Equal(t, int32(1), src.fetches.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, 3, counts[i])
	}
}

func TestSearch_StaleFallback(t *testing.T) {
	src := scenarioSource()
	clock := &fakeClock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	s := newTestSearcher(t, src, cache.WithClock(clock.Now))
	ctx := context.Background()

	first, err := s.Search(ctx, types.SearchFilters{Query: "cleaning"})
	require.NoError(t, err)

	src.set(func(s *fakeSource) { s.err = errors.New("connection refused") })
	clock.Advance(time.Hour)

	second, err := s.Search(ctx, types.SearchFilters{Query: "cleaning"})
	require.NoError(t, err)
	assert.Equal(t, resultIDs(first), resultIDs(second))
	assert.Equal(t, int64(1), s.Status().Cache.StaleServes)
}

func TestSearch_CallerDeadlineDuringRefreshServesStale(t *testing.T) {
	src := scenarioSource()
	clock := &fakeClock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	s := newTestSearcher(t, src, cache.WithClock(clock.Now))

	first, err := s.Search(context.Background(), types.SearchFilters{Query: "cleaning"})
	require.NoError(t, err)

	gate := make(chan struct{})
	src.set(func(s *fakeSource) { s.gate = gate })
	t.Cleanup(func() { close(gate) })
	clock.Advance(10 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	results, err := s.Search(ctx, types.SearchFilters{Query: "cleaning"})
	require.NoError(t, err)
	assert.Equal(t, resultIDs(first), resultIDs(results))
	assert.Equal(t, int64(1), s.Status().Cache.StaleServes)
}

func TestSearch_DataUnavailable(t *testing.T) {
	src := scenarioSource()
	src.err = errors.New("connection refused")
	s := newTestSearcher(t, src)

	results, err := s.Search(context.Background(), types.SearchFilters{})
	require.ErrorIs(t, err, types.ErrDataUnavailable)
	assert.Nil(t, results)
}

func TestSearch_DoesNotMutateFilters(t *testing.T) {
	s := newTestSearcher(t, scenarioSource())

	f := types.SearchFilters{
		Query:      "  Cleaning",
		Categories: []string{"moving", "home"},
		PriceRange: &types.PriceRange{Min: 0, Max: 50000},
	}
	_, err := s.Search(context.Background(), f)
	require.NoError(t, err)

	assert.Equal(t, "  Cleaning", f.Query)
	assert.Equal(t, []string{"moving", "home"}, f.Categories)
	assert.Equal(t, types.SortStrategy(""), f.SortBy)
}

func TestSearch_MemoServesCopies(t *testing.T) {
	s := newTestSearcher(t, scenarioSource())
	ctx := context.Background()
	f := types.SearchFilters{Query: "cleaning"}

	first, err := s.Search(ctx, f)
	require.NoError(t, err)
	first[0].Listing.Title = "tampered"
	first[0].Listing.Tags = append(first[0].Listing.Tags, "x")
	*first[0].Listing.AverageRating = 0

	second, err := s.Search(ctx, types.SearchFilters{Query: " CLEANING "})
	require.NoError(t, err)
	assert.Equal(t, "Home Cleaning", second[0].Listing.Title)
	assert.Empty(t, second[0].Listing.Tags)
	assert.Equal(t, 4.5, *second[0].Listing.AverageRating)

	st := s.Status()
	assert.Equal(t, int64(1), st.MemoHits, "equivalent filters share a memo entry")
	assert.Equal(t, 1, st.MemoEntries)
	assert.Equal(t, int64(2), st.Searches)
}

func TestInvalidateCache_PicksUpWrites(t *testing.T) {
	src := scenarioSource()
	s := newTestSearcher(t, src)
	ctx := context.Background()

	results, err := s.Search(ctx, types.SearchFilters{Query: "window"})
	require.NoError(t, err)
	assert.Empty(t, results)

	src.set(func(s *fakeSource) {
		s.listings = append(s.listings, types.Listing{
			ID: "window", ProviderID: "p1", Title: "Window Washing", Category: "home",
			Price: 2000, DurationMinutes: 30, LocationMode: types.LocationEither,
		})
	})

	results, err = s.Search(ctx, types.SearchFilters{Query: "window"})
	require.NoError(t, err)
	assert.Empty(t, results, "within the TTL the write is not visible yet")

	s.InvalidateCache()
	results, err = s.Search(ctx, types.SearchFilters{Query: "window"})
	require.NoError(t, err)
	assert.Equal(t, []string{"window"}, resultIDs(results))
	assert.Equal(t, int32(2), src.fetches.Load())
}

func TestSetWeights(t *testing.T) {
	s := newTestSearcher(t, scenarioSource())
	ctx := context.Background()
	f := types.SearchFilters{Query: "cleaning"}

	before, err := s.Search(ctx, f)
	require.NoError(t, err)
	require.Equal(t, "home", before[0].Listing.ID)

	w := ranking.DefaultWeights()
	w.RatingFactor = 40 // rating now outweighs the review gap
	require.NoError(t, s.SetWeights(w))
	assert.Equal(t, w, s.Weights())

	after, err := s.Search(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, "deep", after[0].Listing.ID)

	bad := ranking.DefaultWeights()
	bad.TitleMatch = -1
	require.ErrorIs(t, s.SetWeights(bad), ranking.ErrNegativeWeight)
	assert.Equal(t, w, s.Weights())
}

func TestNewSearcher_RejectsInvalidWeights(t *testing.T) {
	w := ranking.DefaultWeights()
	w.CityBonus = -5
	_, err := NewSearcher(cache.New(nil), &Config{Weights: w}, nil)
	require.ErrorIs(t, err, ranking.ErrNegativeWeight)
}

func TestSearch_WithSQLiteStore(t *testing.T) {
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	src := scenarioSource()
	require.NoError(t, store.Import(ctx, src.providers, src.listings))

	s := newTestSearcher(t, store)
	results, err := s.Search(ctx, types.SearchFilters{Query: "cleaning", Location: types.LocationFilter{City: "Porto"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"deep", "piano"}, resultIDs(results))

	require.NoError(t, store.DeactivateListing(ctx, "deep"))
	s.InvalidateCache()

	results, err = s.Search(ctx, types.SearchFilters{Query: "cleaning", Location: types.LocationFilter{City: "Porto"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"piano"}, resultIDs(results))
}
