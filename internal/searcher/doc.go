// Package searcher is the search façade: the only thing callers talk to.
//
// A search runs four steps against one snapshot:
//
//  1. cache.EnsureFresh returns the current snapshot, refetching it when it
//     is older than the TTL or has been invalidated.
//  2. filter.Apply keeps the listings that satisfy every filter criterion.
//  3. ranking.Score computes a relevance score for each survivor, whatever
//     the sort strategy.
//  4. ranking.Sort orders the results by the requested strategy.
//
// # Basic Usage
//
//	c := cache.New(cache.NewLoader(store, nil, logger), cache.WithLogger(logger))
//	s, err := searcher.NewSearcher(c, nil, logger)
//	if err != nil {
//	    return err
//	}
//
//	results, err := s.Search(ctx, types.SearchFilters{
//	    Query:      "cleaning",
//	    PriceRange: &types.PriceRange{Min: 0, Max: 10000},
//	    SortBy:     types.SortRelevance,
//	})
//	if errors.Is(err, types.ErrDataUnavailable) {
//	    // nothing has ever been fetched; ask the user to retry
//	}
//
// # Result Memo
//
// Results are memoized in an LRU keyed by the snapshot version, the
// scoring weights generation and the normalized filters, so repeated
// keystrokes over the same snapshot skip filtering and scoring. Results are
// deep-copied on the way in and out.
//
// # Failure Handling
//
// A failed refresh with an earlier snapshot available is invisible to the
// caller; the earlier snapshot is used and a warning is logged. Zero matches
// is never an error.
package searcher
