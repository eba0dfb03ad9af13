package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/listingsearch/pkg/types"
)

// perProviderSource implements only storage.ListingSource
type perProviderSource struct {
	providers []types.Provider
	listings  map[string][]types.Listing

	mu          sync.Mutex
	failures    map[string]int // remaining failures per provider ID
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	calls       atomic.Int32
}

func (s *perProviderSource) ListActiveProviders(ctx context.Context) ([]types.Provider, error) {
	s.calls.Add(1)
	return s.providers, nil
}

func (s *perProviderSource) ListActiveListings(ctx context.Context, providerID string) ([]types.Listing, error) {
	s.calls.Add(1)
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		peak := s.maxInFlight.Load()
		if n <= peak || s.maxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	s.mu.Lock()
	if s.failures[providerID] > 0 {
		s.failures[providerID]--
		s.mu.Unlock()
		return nil, fmt.Errorf("transient failure for %s", providerID)
	}
	s.mu.Unlock()

	return s.listings[providerID], nil
}

// bulkSource also implements storage.BulkListingSource
type bulkSource struct {
	*perProviderSource
	all        []types.Listing
	bulkCalled atomic.Bool
}

func (s *bulkSource) ListAllActiveListings(ctx context.Context) ([]types.Listing, error) {
	s.bulkCalled.Store(true)
	return s.all, nil
}

func makeSource(providerCount, listingsEach int) *perProviderSource {
	src := &perProviderSource{
		listings: make(map[string][]types.Listing),
		failures: make(map[string]int),
	}
	for i := 0; i < providerCount; i++ {
		pid := fmt.Sprintf("p%02d", i)
		src.providers = append(src.providers, types.Provider{ID: pid})
		for j := 0; j < listingsEach; j++ {
			src.listings[pid] = append(src.listings[pid], types.Listing{
				ID:         fmt.Sprintf("%s-l%d", pid, j),
				ProviderID: pid,
			})
		}
	}
	return src
}

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
}

func TestLoader_PerProviderKeepsOrder(t *testing.T) {
	src := makeSource(12, 3)
	loader := NewLoader(src, &LoaderConfig{Workers: 4, Retry: fastRetry(1)}, nil)

	data, err := loader.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, data.Providers, 12)
	require.Len(t, data.Listings, 36)

	for i, l := range data.Listings {
		assert.Equal(t, fmt.Sprintf("p%02d-l%d", i/3, i%3), l.ID)
	}
	assert.LessOrEqual(t, src.maxInFlight.Load(), int32(4), "worker limit must bound concurrent reads")
}

func TestLoader_UsesBulkPath(t *testing.T) {
	src := &bulkSource{
		perProviderSource: makeSource(2, 1),
		all:               []types.Listing{{ID: "x", ProviderID: "p00"}},
	}
	loader := NewLoader(src, nil, nil)

	data, err := loader.Fetch(context.Background())
	require.NoError(t, err)
	assert.True(t, src.bulkCalled.Load())
	assert.Equal(t, int32(1), src.calls.Load(), "only the provider list is read through the per-provider API")
	require.Len(t, data.Listings, 1)
	assert.Equal(t, "x", data.Listings[0].ID)
}

func TestLoader_RetriesTransientFailures(t *testing.T) {
	src := makeSource(3, 1)
	src.failures["p01"] = 2
	loader := NewLoader(src, &LoaderConfig{Workers: 2, Retry: fastRetry(3)}, nil)

	data, err := loader.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, data.Listings, 3)
}

func TestLoader_FailsAfterRetriesExhausted(t *testing.T) {
	src := makeSource(3, 1)
	src.failures["p02"] = 5
	loader := NewLoader(src, &LoaderConfig{Workers: 2, Retry: fastRetry(2)}, nil)

	_, err := loader.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "p02")
}

func TestLoader_RateLimited(t *testing.T) {
	src := makeSource(4, 1)
	loader := NewLoader(src, &LoaderConfig{Workers: 4, RateLimit: 50, Burst: 1, Retry: fastRetry(1)}, nil)

	start := time.Now()
	_, err := loader.Fetch(context.Background())
	require.NoError(t, err)

	// five calls at 50/s with burst 1 need at least four 20ms intervals
	assert.GreaterOrEqual(t, time.Since(start), 70*time.Millisecond)
}

func TestLoader_FeedsCache(t *testing.T) {
	src := makeSource(2, 2)
	c := New(NewLoader(src, &LoaderConfig{Workers: 2, Retry: fastRetry(1)}, nil))

	snap, err := c.EnsureFresh(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Entries(), 4)
}

func TestRetryWithBackoff_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	_, err := retryWithBackoff(ctx, RetryConfig{MaxAttempts: 5, BaseDelay: time.Second, Multiplier: 2}, func() (int, error) {
		calls++
		cancel()
		return 0, errors.New("fail")
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestRetryWithBackoff_ReturnsLastError(t *testing.T) {
	var calls int
	_, err := retryWithBackoff(context.Background(), fastRetry(3), func() (int, error) {
		calls++
		return 0, fmt.Errorf("attempt %d", calls)
	})
	require.EqualError(t, err, "attempt 3")
	assert.Equal(t, 3, calls)
}
