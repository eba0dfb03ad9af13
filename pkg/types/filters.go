package types

import (
	"slices"
	"strings"
)

// SortStrategy selects how search results are ordered
type SortStrategy string

const (
	SortRelevance SortStrategy = "relevance"
	SortPriceAsc  SortStrategy = "price-asc"
	SortPriceDesc SortStrategy = "price-desc"
	SortRating    SortStrategy = "rating"
	SortDistance  SortStrategy = "distance"
	SortNewest    SortStrategy = "newest"
)

// SortStrategies lists every supported strategy
func SortStrategies() []SortStrategy {
	return []SortStrategy{SortRelevance, SortPriceAsc, SortPriceDesc, SortRating, SortDistance, SortNewest}
}

// Valid reports whether s names a supported strategy
func (s SortStrategy) Valid() bool {
	return slices.Contains(SortStrategies(), s)
}

// PriceRange is an inclusive price band
type PriceRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Contains reports whether price lies within the band, bounds included
func (r PriceRange) Contains(price int) bool {
	return price >= r.Min && price <= r.Max
}

// LocationFilter restricts results to a provider city and neighborhood
type LocationFilter struct {
	City          string   `json:"city,omitempty"`
	Neighborhood  string   `json:"neighborhood,omitempty"`
	MaxDistanceKm *float64 `json:"max_distance_km,omitempty"`
}

// AvailabilityFilter restricts results by listing availability flags
type AvailabilityFilter struct {
	IsUrgentAvailable bool           `json:"is_urgent_available"`
	IsGroupService    bool           `json:"is_group_service"`
	LocationModes     []LocationMode `json:"location_modes,omitempty"`
}

// SearchFilters is the query contract of a search. The zero value matches
// every listing that has a resolvable provider.
type SearchFilters struct {
	Query        string             `json:"query"`
	Categories   []string           `json:"categories,omitempty"`
	PriceRange   *PriceRange        `json:"price_range,omitempty"` // nil = unrestricted
	MinRating    float64            `json:"min_rating"`
	Location     LocationFilter     `json:"location"`
	Availability AvailabilityFilter `json:"availability"`
	SortBy       SortStrategy       `json:"sort_by,omitempty"`
}

// Normalized returns a canonical copy of the filters: the query trimmed and
// lower-cased, set-valued fields sorted and the sort strategy defaulted.
// The receiver is left untouched.
func (f SearchFilters) Normalized() SearchFilters {
	out := f
	out.Query = strings.ToLower(strings.TrimSpace(f.Query))

	if len(f.Categories) > 0 {
		out.Categories = slices.Clone(f.Categories)
		slices.Sort(out.Categories)
	}
	if f.PriceRange != nil {
		pr := *f.PriceRange
		out.PriceRange = &pr
	}
	if f.Location.MaxDistanceKm != nil {
		d := *f.Location.MaxDistanceKm
		out.Location.MaxDistanceKm = &d
	}
	if len(f.Availability.LocationModes) > 0 {
		out.Availability.LocationModes = slices.Clone(f.Availability.LocationModes)
		slices.Sort(out.Availability.LocationModes)
	}
	if !out.SortBy.Valid() {
		out.SortBy = SortRelevance
	}
	return out
}
