// Package filter narrows a snapshot to the listings that satisfy every
// criterion of a search. Filtering decides inclusion; scoring only orders
// what survives, so every predicate here must be exact.
package filter

import (
	"slices"
	"strings"

	"github.com/dshills/listingsearch/internal/cache"
	"github.com/dshills/listingsearch/pkg/types"
)

// Candidate is a listing paired with its provider and searchable text
type Candidate = cache.Entry

// NewCandidate builds a candidate outside of a snapshot
func NewCandidate(l *types.Listing, p *types.Provider) Candidate {
	return Candidate{Listing: l, Provider: p, Text: l.Searchable(p)}
}

// Predicate reports whether c passes one criterion of f. Predicates expect
// normalized filters (see types.SearchFilters.Normalized).
type Predicate func(c Candidate, f types.SearchFilters) bool

// Predicates is the full AND-composed chain, cheapest checks first
var Predicates = []Predicate{
	MatchCategory,
	MatchPrice,
	MatchUrgent,
	MatchGroup,
	MatchLocationMode,
	MatchLocation,
	MatchRating,
	MatchText,
}

// Apply returns the snapshot entries that pass every predicate, in
// snapshot order. Listings without a resolvable provider never appear.
func Apply(snap *cache.Snapshot, f types.SearchFilters) []Candidate {
	if snap == nil {
		return []Candidate{}
	}

	nf := f.Normalized()
	out := make([]Candidate, 0)
	for _, c := range snap.Entries() {
		if matches(c, nf) {
			out = append(out, c)
		}
	}
	return out
}

// Matches re-evaluates the whole chain for a single candidate
func Matches(c Candidate, f types.SearchFilters) bool {
	if c.Listing == nil || c.Provider == nil {
		return false
	}
	if c.Text == "" {
		c.Text = c.Listing.Searchable(c.Provider)
	}
	return matches(c, f.Normalized())
}

func matches(c Candidate, f types.SearchFilters) bool {
	for _, p := range Predicates {
		if !p(c, f) {
			return false
		}
	}
	return true
}

// MatchText is a case-insensitive substring match over title, description,
// category, tags, provider names and specification. An empty query passes.
func MatchText(c Candidate, f types.SearchFilters) bool {
	if f.Query == "" {
		return true
	}
	return strings.Contains(c.Text, f.Query)
}

func MatchCategory(c Candidate, f types.SearchFilters) bool {
	return len(f.Categories) == 0 || slices.Contains(f.Categories, c.Listing.Category)
}

// MatchPrice checks the inclusive price band. An inverted band matches nothing.
func MatchPrice(c Candidate, f types.SearchFilters) bool {
	return f.PriceRange == nil || f.PriceRange.Contains(c.Listing.Price)
}

// MatchRating compares the listing rating, falling back to the provider
// rating and then to 0, against the threshold. A zero threshold passes.
func MatchRating(c Candidate, f types.SearchFilters) bool {
	if f.MinRating == 0 {
		return true
	}
	return types.EffectiveRating(c.Listing, c.Provider) >= f.MinRating
}

// MatchLocation requires an exact city match, and an exact neighborhood
// match when a neighborhood is also given. MaxDistanceKm cannot exclude
// anything until listings carry coordinates.
func MatchLocation(c Candidate, f types.SearchFilters) bool {
	if f.Location.City == "" {
		return true
	}
	if c.Provider.City != f.Location.City {
		return false
	}
	return f.Location.Neighborhood == "" || c.Provider.Neighborhood == f.Location.Neighborhood
}

func MatchUrgent(c Candidate, f types.SearchFilters) bool {
	return !f.Availability.IsUrgentAvailable || c.Listing.IsUrgentAvailable
}

func MatchGroup(c Candidate, f types.SearchFilters) bool {
	return !f.Availability.IsGroupService || c.Listing.IsGroupService
}

func MatchLocationMode(c Candidate, f types.SearchFilters) bool {
	modes := f.Availability.LocationModes
	return len(modes) == 0 || slices.Contains(modes, c.Listing.LocationMode)
}
