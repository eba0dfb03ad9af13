package ranking

import (
	"sort"

	"github.com/dshills/listingsearch/pkg/types"
)

// Sort orders results in place by the named strategy. All strategies are
// stable: results with equal keys keep their incoming order. Unknown
// strategies fall back to relevance.
func Sort(results []types.SearchResult, strategy types.SortStrategy) {
	sort.SliceStable(results, lessFunc(results, strategy))
}

func lessFunc(r []types.SearchResult, strategy types.SortStrategy) func(i, j int) bool {
	switch strategy {
	case types.SortPriceAsc:
		return func(i, j int) bool { return r[i].Listing.Price < r[j].Listing.Price }
	case types.SortPriceDesc:
		return func(i, j int) bool { return r[i].Listing.Price > r[j].Listing.Price }
	case types.SortRating:
		return func(i, j int) bool {
			return types.EffectiveRating(&r[i].Listing, &r[i].Provider) >
				types.EffectiveRating(&r[j].Listing, &r[j].Provider)
		}
	case types.SortDistance:
		// Distance is always 0 until listings carry coordinates, so this is a no-op
		return func(i, j int) bool { return r[i].Distance < r[j].Distance }
	case types.SortNewest:
		return func(i, j int) bool { return r[i].Listing.CreatedAt.After(r[j].Listing.CreatedAt) }
	default:
		return func(i, j int) bool { return r[i].RelevanceScore > r[j].RelevanceScore }
	}
}
