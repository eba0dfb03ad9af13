package cache

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dshills/listingsearch/internal/logging"
)

const (
	DefaultTTL            = 5 * time.Minute
	DefaultFetchTimeout   = 10 * time.Second
	DefaultFailureBackoff = 5 * time.Second
)

// ErrNoFetcher is returned when a cache is built without a data source
var ErrNoFetcher = errors.New("cache: no fetcher configured")

// Option configures a Cache
type Option func(*Cache)

// WithTTL sets how long a snapshot is served without refetching
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithFetchTimeout bounds a single refresh. A timeout counts as a fetch failure.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

// WithFailureBackoff sets how long, after a failed refresh, the previous
// snapshot is served without trying the store again. Zero retries on every
// call. Invalidate ends the window early.
func WithFailureBackoff(d time.Duration) Option {
	return func(c *Cache) {
		if d >= 0 {
			c.failureBackoff = d
		}
	}
}

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

func WithLogger(logger *logging.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Stats is a point-in-time view of cache activity
type Stats struct {
	HasSnapshot bool
	Version     uint64
	Age         time.Duration
	Listings    int
	Providers   int
	Orphans     int
	Hits        int64
	Fetches     int64
	Failures    int64
	StaleServes int64
}

// Cache holds the latest snapshot and refreshes it when it is older than
// the TTL or has been invalidated. Concurrent callers that find it stale
// share one fetch.
type Cache struct {
	fetcher        Fetcher
	ttl            time.Duration
	fetchTimeout   time.Duration
	failureBackoff time.Duration
	now            func() time.Time
	logger         *logging.Logger

	group singleflight.Group

	mu        sync.RWMutex
	snap      *Snapshot
	snapEpoch uint64 // epoch the snapshot was fetched under
	epoch     uint64 // bumped by Invalidate and Clear
	clears    uint64
	version   uint64

	failedAt    time.Time // last failed refresh that fell back on snap
	failedEpoch uint64

	hits        atomic.Int64
	fetches     atomic.Int64
	failures    atomic.Int64
	staleServes atomic.Int64
}

// New creates an empty cache. Nothing is fetched until the first EnsureFresh.
func New(fetcher Fetcher, opts ...Option) *Cache {
	c := &Cache{
		fetcher:        fetcher,
		ttl:            DefaultTTL,
		fetchTimeout:   DefaultFetchTimeout,
		failureBackoff: DefaultFailureBackoff,
		now:            time.Now,
		logger:         logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EnsureFresh returns a snapshot that is younger than the TTL and not
// invalidated, fetching a new one if needed. When a fetch fails and an
// older snapshot exists, the older snapshot is returned instead.
func (c *Cache) EnsureFresh(ctx context.Context) (*Snapshot, error) {
	c.mu.RLock()
	epoch := c.epoch
	snap, stale := c.servableLocked(epoch, c.now())
	c.mu.RUnlock()

	if snap != nil {
		c.countServe(stale)
		return snap, nil
	}

	if c.fetcher == nil {
		return nil, ErrNoFetcher
	}

	ch := c.group.DoChan("refresh-"+strconv.FormatUint(epoch, 10), func() (any, error) {
		return c.refresh(epoch)
	})

	select {
	case <-ctx.Done():
		// The shared fetch keeps running; this caller takes what is there.
		if prev := c.Current(); prev != nil {
			c.staleServes.Add(1)
			c.logger.Warn("gave up waiting for refresh, serving stale snapshot",
				"error", ctx.Err(),
				"version", prev.Version,
				"age", prev.Age(c.now()).String())
			return prev, nil
		}
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Snapshot), nil
	}
}

// refresh runs one fetch on behalf of every caller waiting on epoch. It is
// detached from the callers' contexts so one caller giving up does not fail
// the others.
func (c *Cache) refresh(epoch uint64) (*Snapshot, error) {
	c.mu.RLock()
	clears := c.clears
	snap, stale := c.servableLocked(epoch, c.now())
	c.mu.RUnlock()

	// A caller that saw a stale snapshot can get here after an earlier
	// flight for the same epoch has already landed.
	if snap != nil {
		c.countServe(stale)
		return snap, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.fetchTimeout)
	defer cancel()

	c.fetches.Add(1)
	start := c.now()
	data, err := c.fetcher.Fetch(ctx)
	if err != nil {
		c.failures.Add(1)

		c.mu.Lock()
		prev := c.snap
		if prev != nil {
			c.failedAt = c.now()
			c.failedEpoch = epoch
		}
		c.mu.Unlock()

		if prev != nil {
			c.staleServes.Add(1)
			c.logger.Warn("refresh failed, serving stale snapshot",
				"error", err,
				"version", prev.Version,
				"age", prev.Age(c.now()).String())
			return prev, nil
		}

		c.logger.Error("refresh failed with no snapshot to fall back on", "error", err)
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.version++
	snap = NewSnapshot(data.Providers, data.Listings, c.now(), c.version)

	if snap.Orphans() > 0 {
		c.logger.Debug("listings without an active provider skipped", "count", snap.Orphans())
	}

	switch {
	case c.clears != clears:
		// Cleared while fetching: hand the data to waiters but stay unfetched.
	case c.snap != nil && c.snapEpoch > epoch:
		// A newer refresh already landed.
	default:
		c.snap = snap
		c.snapEpoch = epoch
		c.failedAt = time.Time{}
	}

	c.logger.Debug("snapshot refreshed",
		"version", snap.Version,
		"providers", len(snap.Providers),
		"listings", len(snap.Listings),
		"duration", c.now().Sub(start).String())

	return snap, nil
}

// Invalidate forces the next EnsureFresh to refetch regardless of the TTL.
// The current snapshot is kept as a fallback if that fetch fails.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.epoch++
	c.mu.Unlock()
}

// Clear drops the snapshot, returning the cache to its unfetched state
func (c *Cache) Clear() {
	c.mu.Lock()
	c.snap = nil
	c.snapEpoch = 0
	c.failedAt = time.Time{}
	c.epoch++
	c.clears++
	c.mu.Unlock()
}

// servableLocked returns the snapshot that can be served for epoch without
// fetching, or nil. stale is set when it is served only because a recent
// refresh failed. c.mu must be held.
func (c *Cache) servableLocked(epoch uint64, now time.Time) (snap *Snapshot, stale bool) {
	if c.snap == nil {
		return nil, false
	}
	if c.snapEpoch == epoch && c.snap.Age(now) < c.ttl {
		return c.snap, false
	}
	if !c.failedAt.IsZero() && c.failedEpoch == epoch && now.Sub(c.failedAt) < c.failureBackoff {
		return c.snap, true
	}
	return nil, false
}

func (c *Cache) countServe(stale bool) {
	if stale {
		c.staleServes.Add(1)
		return
	}
	c.hits.Add(1)
}

// Current returns the installed snapshot without fetching, or nil
func (c *Cache) Current() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

func (c *Cache) TTL() time.Duration {
	return c.ttl
}

func (c *Cache) Stats() Stats {
	c.mu.RLock()
	snap := c.snap
	c.mu.RUnlock()

	st := Stats{
		Hits:        c.hits.Load(),
		Fetches:     c.fetches.Load(),
		Failures:    c.failures.Load(),
		StaleServes: c.staleServes.Load(),
	}
	if snap != nil {
		st.HasSnapshot = true
		st.Version = snap.Version
		st.Age = snap.Age(c.now())
		st.Listings = len(snap.Listings)
		st.Providers = len(snap.Providers)
		st.Orphans = snap.Orphans()
	}
	return st
}
