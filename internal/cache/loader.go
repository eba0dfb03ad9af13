package cache

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/dshills/listingsearch/internal/logging"
	"github.com/dshills/listingsearch/internal/storage"
	"github.com/dshills/listingsearch/pkg/types"
)

// Dataset is the raw result of one bulk fetch
type Dataset struct {
	Providers []types.Provider
	Listings  []types.Listing
}

// Fetcher produces a fresh dataset. Loader is the production implementation.
type Fetcher interface {
	Fetch(ctx context.Context) (*Dataset, error)
}

// LoaderConfig contains configuration for the loader
type LoaderConfig struct {
	Workers   int     // Concurrent per-provider reads (default: runtime.NumCPU())
	RateLimit float64 // Store calls per second, 0 = unlimited
	Burst     int     // Rate limiter burst (default: Workers)
	Retry     RetryConfig
}

// Loader reads the active dataset from a listing source. Sources that
// support bulk reads are read in two calls; others are read provider by
// provider with a bounded worker pool.
type Loader struct {
	source  storage.ListingSource
	workers int
	limiter *rate.Limiter
	retry   RetryConfig
	logger  *logging.Logger
}

// NewLoader creates a loader for source. A nil config uses defaults.
func NewLoader(source storage.ListingSource, config *LoaderConfig, logger *logging.Logger) *Loader {
	if config == nil {
		config = &LoaderConfig{Retry: DefaultRetryConfig()}
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	workers := config.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	l := &Loader{
		source:  source,
		workers: workers,
		retry:   config.Retry,
		logger:  logger,
	}

	if config.RateLimit > 0 {
		burst := config.Burst
		if burst <= 0 {
			burst = workers
		}
		l.limiter = rate.NewLimiter(rate.Limit(config.RateLimit), burst)
	}

	return l
}

// Fetch reads all active providers and their active listings
func (l *Loader) Fetch(ctx context.Context) (*Dataset, error) {
	providers, err := call(ctx, l, func() ([]types.Provider, error) {
		return l.source.ListActiveProviders(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}

	if bulk, ok := l.source.(storage.BulkListingSource); ok {
		listings, err := call(ctx, l, func() ([]types.Listing, error) {
			return bulk.ListAllActiveListings(ctx)
		})
		if err != nil {
			return nil, fmt.Errorf("list listings: %w", err)
		}
		return &Dataset{Providers: providers, Listings: listings}, nil
	}

	listings, err := l.fetchPerProvider(ctx, providers)
	if err != nil {
		return nil, err
	}
	return &Dataset{Providers: providers, Listings: listings}, nil
}

// fetchPerProvider reads each provider's listings concurrently while
// keeping the result in provider order.
func (l *Loader) fetchPerProvider(ctx context.Context, providers []types.Provider) ([]types.Listing, error) {
	slots := make([][]types.Listing, len(providers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)

	for i := range providers {
		providerID := providers[i].ID
		g.Go(func() error {
			listings, err := call(gctx, l, func() ([]types.Listing, error) {
				return l.source.ListActiveListings(gctx, providerID)
			})
			if err != nil {
				return fmt.Errorf("list listings for provider %s: %w", providerID, err)
			}
			slots[i] = listings
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, s := range slots {
		total += len(s)
	}
	listings := make([]types.Listing, 0, total)
	for _, s := range slots {
		listings = append(listings, s...)
	}

	l.logger.Debug("per-provider fetch complete", "providers", len(providers), "listings", total)
	return listings, nil
}

// call paces fn through the rate limiter and retries it with backoff
func call[T any](ctx context.Context, l *Loader, fn func() (T, error)) (T, error) {
	return retryWithBackoff(ctx, l.retry, func() (T, error) {
		if l.limiter != nil {
			if err := l.limiter.Wait(ctx); err != nil {
				var zero T
				return zero, err
			}
		}
		return fn()
	})
}
