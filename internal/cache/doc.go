// Package cache keeps an in-memory snapshot of every active provider and
// listing and decides when to refetch it.
//
// A snapshot is served as long as it is younger than the TTL (five minutes
// by default) and has not been invalidated. Once stale, the next caller
// triggers a refresh through a Loader; callers that arrive while that
// refresh is running wait for it instead of starting their own
// (golang.org/x/sync/singleflight). Each waiter still honors its own
// context, and the shared fetch is bounded by its own timeout.
//
// If a refresh fails and an older snapshot exists, the older snapshot is
// returned and a warning is logged, and it keeps being served without
// touching the store for a short failure backoff. A waiter whose context
// ends before the refresh finishes also gets the older snapshot. With
// nothing to fall back on the error is returned to the caller.
//
// Usage:
//
//	loader := cache.NewLoader(store, &cache.LoaderConfig{Workers: 8}, logger)
//	c := cache.New(loader, cache.WithTTL(5*time.Minute), cache.WithLogger(logger))
//	snap, err := c.EnsureFresh(ctx)
//
// Snapshots are immutable. Invalidate and Clear never modify a snapshot
// that a concurrent search may still be reading.
package cache
