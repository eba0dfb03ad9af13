package types

import "strings"

// Rating bounds shared by listings and providers
const (
	MinRatingValue = 0.0
	MaxRatingValue = 5.0
)

// Provider is the professional or business that owns listings
type Provider struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`

	City         string `json:"city"`
	Neighborhood string `json:"neighborhood,omitempty"`

	ExperienceYears int      `json:"experience_years"`
	Rating          *float64 `json:"rating,omitempty"`
	CompletedJobs   int      `json:"completed_jobs"`
	Specification   string   `json:"specification,omitempty"`
}

// FullName returns "First Last" without surrounding whitespace
func (p *Provider) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Validate checks the provider invariants
func (p *Provider) Validate() error {
	if p.ID == "" {
		return ErrMissingID
	}
	if p.Rating != nil && !ratingInRange(*p.Rating) {
		return ErrInvalidRating
	}
	if p.ExperienceYears < 0 {
		return ErrInvalidExperience
	}
	if p.CompletedJobs < 0 {
		return ErrInvalidReviewCount
	}
	return nil
}
