package types

import (
	"strings"
	"time"
)

// LocationMode describes where a service is delivered
type LocationMode string

const (
	LocationAtProviderSite LocationMode = "at-provider-site"
	LocationAtCustomerSite LocationMode = "at-customer-site"
	LocationEither         LocationMode = "either"
)

// Valid reports whether m is one of the known location modes
func (m LocationMode) Valid() bool {
	switch m {
	case LocationAtProviderSite, LocationAtCustomerSite, LocationEither:
		return true
	default:
		return false
	}
}

// Listing is a single bookable service offering owned by a provider
type Listing struct {
	// Identification
	ID         string `json:"id"`
	ProviderID string `json:"provider_id"`

	// Content
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags,omitempty"`

	// Offer
	Price           int          `json:"price"`
	DurationMinutes int          `json:"duration_minutes"`
	LocationMode    LocationMode `json:"location_mode"`

	// Availability flags
	IsUrgentAvailable bool `json:"is_urgent_available"`
	IsGroupService    bool `json:"is_group_service"`

	// Quality signals, nil means not yet rated / unknown
	AverageRating *float64 `json:"average_rating,omitempty"`
	TotalReviews  *int     `json:"total_reviews,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the listing invariants
func (l *Listing) Validate() error {
	if l.ID == "" {
		return ErrMissingID
	}
	if l.ProviderID == "" {
		return ErrMissingProvider
	}
	if l.Price < 0 {
		return ErrNegativePrice
	}
	if l.DurationMinutes <= 0 {
		return ErrInvalidDuration
	}
	if strings.TrimSpace(l.Category) == "" {
		return ErrEmptyCategory
	}
	if !l.LocationMode.Valid() {
		return ErrInvalidLocationMode
	}
	if l.AverageRating != nil && !ratingInRange(*l.AverageRating) {
		return ErrInvalidRating
	}
	if l.TotalReviews != nil && *l.TotalReviews < 0 {
		return ErrInvalidReviewCount
	}
	return nil
}

// Searchable returns the lower-cased text the query is matched against:
// title, description, category, tags, provider names and specification.
func (l *Listing) Searchable(p *Provider) string {
	parts := make([]string, 0, 6+len(l.Tags))
	parts = append(parts, l.Title, l.Description, l.Category)
	parts = append(parts, l.Tags...)
	if p != nil {
		parts = append(parts, p.FirstName, p.LastName, p.Specification)
	}
	return strings.ToLower(strings.Join(parts, " "))
}

// EffectiveRating is the listing rating, falling back to the provider
// rating and then to zero.
func EffectiveRating(l *Listing, p *Provider) float64 {
	if l.AverageRating != nil {
		return *l.AverageRating
	}
	if p != nil && p.Rating != nil {
		return *p.Rating
	}
	return 0
}

// EffectiveReviewCount is the listing review count, falling back to the
// provider's completed jobs and then to zero.
func EffectiveReviewCount(l *Listing, p *Provider) int {
	if l.TotalReviews != nil {
		return *l.TotalReviews
	}
	if p != nil {
		return p.CompletedJobs
	}
	return 0
}

func ratingInRange(r float64) bool {
	return r >= MinRatingValue && r <= MaxRatingValue
}
