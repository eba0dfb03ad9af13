package searcher

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/listingsearch/internal/cache"
	"github.com/dshills/listingsearch/internal/filter"
	"github.com/dshills/listingsearch/internal/logging"
	"github.com/dshills/listingsearch/internal/ranking"
	"github.com/dshills/listingsearch/pkg/types"
)

// DefaultMemoSize is the number of distinct queries whose results are kept
const DefaultMemoSize = 1000

// Config contains configuration for the searcher
type Config struct {
	Weights  ranking.Weights
	MemoSize int // Result memo entries; 0 = DefaultMemoSize, negative disables
}

// Status is a point-in-time view of the searcher and its cache
type Status struct {
	Cache       cache.Stats
	MemoEntries int
	MemoHits    int64
	Searches    int64
	Weights     ranking.Weights
}

type weightState struct {
	weights    ranking.Weights
	generation uint64
}

// Searcher is the single entry point for listing searches. It keeps the
// snapshot cache fresh, filters, scores and sorts.
type Searcher struct {
	cache   *cache.Cache
	weights atomic.Pointer[weightState]
	memo    *lru.Cache[[32]byte, []types.SearchResult]
	logger  *logging.Logger

	searches atomic.Int64
	memoHits atomic.Int64
}

// NewSearcher creates a Searcher over c. A nil config uses default weights.
func NewSearcher(c *cache.Cache, config *Config, logger *logging.Logger) (*Searcher, error) {
	if config == nil {
		config = &Config{Weights: ranking.DefaultWeights()}
	}
	if err := config.Weights.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	s := &Searcher{
		cache:  c,
		logger: logger,
	}
	s.weights.Store(&weightState{weights: config.Weights})

	size := config.MemoSize
	if size == 0 {
		size = DefaultMemoSize
	}
	if size > 0 {
		memo, err := lru.New[[32]byte, []types.SearchResult](size)
		if err != nil {
			return nil, fmt.Errorf("failed to create result memo: %w", err)
		}
		s.memo = memo
	}

	return s, nil
}

// Search returns the listings matching every criterion of filters, ranked
// by filters.SortBy. An empty match is an empty slice, not an error. The
// only error returned wraps types.ErrDataUnavailable: the snapshot could
// not be fetched and there was no earlier one to fall back on.
func (s *Searcher) Search(ctx context.Context, filters types.SearchFilters) ([]types.SearchResult, error) {
	startTime := time.Now()
	s.searches.Add(1)

	snap, err := s.cache.EnsureFresh(ctx)
	if err != nil {
		s.logger.Error("search data unavailable", "error", err)
		return nil, fmt.Errorf("%w: %w", types.ErrDataUnavailable, err)
	}

	nf := filters.Normalized()
	state := s.weights.Load()
	hash := computeQueryHash(snap.Version, state.generation, nf)

	if s.memo != nil {
		if cached, ok := s.memo.Get(hash); ok {
			s.memoHits.Add(1)
			return copyResults(cached), nil
		}
	}

	candidates := filter.Apply(snap, nf)
	results := make([]types.SearchResult, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, types.SearchResult{
			Listing:        copyListing(c.Listing),
			Provider:       copyProvider(c.Provider),
			RelevanceScore: ranking.Score(c.Listing, c.Provider, nf, state.weights),
		})
	}
	ranking.Sort(results, nf.SortBy)

	if s.memo != nil {
		s.memo.Add(hash, copyResults(results))
	}

	s.logger.Debug("search complete",
		"query", nf.Query,
		"sort", string(nf.SortBy),
		"results", len(results),
		"snapshot", snap.Version,
		"duration", time.Since(startTime).String())

	return results, nil
}

// InvalidateCache makes the next search refetch the dataset, typically
// after a listing or provider was written.
func (s *Searcher) InvalidateCache() {
	s.cache.Invalidate()
	if s.memo != nil {
		s.memo.Purge()
	}
}

// SetWeights swaps the scoring weights used by subsequent searches
func (s *Searcher) SetWeights(w ranking.Weights) error {
	if err := w.Validate(); err != nil {
		return err
	}
	for {
		cur := s.weights.Load()
		next := &weightState{weights: w, generation: cur.generation + 1}
		if s.weights.CompareAndSwap(cur, next) {
			break
		}
	}
	if s.memo != nil {
		s.memo.Purge()
	}
	s.logger.Info("scoring weights updated")
	return nil
}

func (s *Searcher) Weights() ranking.Weights {
	return s.weights.Load().weights
}

func (s *Searcher) Status() Status {
	st := Status{
		Cache:    s.cache.Stats(),
		MemoHits: s.memoHits.Load(),
		Searches: s.searches.Load(),
		Weights:  s.Weights(),
	}
	if s.memo != nil {
		st.MemoEntries = s.memo.Len()
	}
	return st
}

// computeQueryHash keys a result set by snapshot, weights and filters.
// filters must already be normalized.
func computeQueryHash(version, generation uint64, filters types.SearchFilters) [32]byte {
	h := sha256.New()

	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], version)
	binary.BigEndian.PutUint64(buf[8:], generation)
	h.Write(buf[:])

	// SearchFilters holds only plain values, so Marshal cannot fail
	data, _ := json.Marshal(filters)
	h.Write(data)

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// copyResults deep-copies results so neither the memo nor the snapshot is
// reachable from what callers receive.
func copyResults(src []types.SearchResult) []types.SearchResult {
	dst := make([]types.SearchResult, len(src))
	for i := range src {
		dst[i] = types.SearchResult{
			Listing:        copyListing(&src[i].Listing),
			Provider:       copyProvider(&src[i].Provider),
			RelevanceScore: src[i].RelevanceScore,
			Distance:       src[i].Distance,
		}
	}
	return dst
}

func copyListing(l *types.Listing) types.Listing {
	out := *l
	out.Tags = slices.Clone(l.Tags)
	if l.AverageRating != nil {
		r := *l.AverageRating
		out.AverageRating = &r
	}
	if l.TotalReviews != nil {
		n := *l.TotalReviews
		out.TotalReviews = &n
	}
	return out
}

func copyProvider(p *types.Provider) types.Provider {
	out := *p
	if p.Rating != nil {
		r := *p.Rating
		out.Rating = &r
	}
	return out
}
