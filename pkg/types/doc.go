// Package types provides the domain types shared by the listing search engine.
//
// # Core Types
//
// Listing is a bookable service offering; Provider is the business that owns
// it. Listings reference their provider by ID:
//
//	listing := types.Listing{
//	    ID:              "lst-1",
//	    ProviderID:      "prv-1",
//	    Title:           "Deep Cleaning Service",
//	    Category:        "cleaning",
//	    Price:           4500,
//	    DurationMinutes: 120,
//	    LocationMode:    types.LocationAtCustomerSite,
//	}
//
// Optional quality signals (AverageRating, TotalReviews, Provider.Rating) are
// pointers: nil means "unknown" and triggers the documented fallbacks in
// EffectiveRating and EffectiveReviewCount.
//
// # Queries
//
// SearchFilters is the query contract. Its zero value places no restriction
// other than requiring a resolvable provider:
//
//	filters := types.SearchFilters{
//	    Query:      "cleaning",
//	    Categories: []string{"cleaning"},
//	    PriceRange: &types.PriceRange{Min: 0, Max: 10000},
//	    MinRating:  4,
//	    SortBy:     types.SortRelevance,
//	}
//
// # Validation
//
//	if err := listing.Validate(); err != nil {
//	    return err
//	}
//
// Storage adapters validate on write; the search path trusts the snapshot.
package types
