package ranking

import (
	"errors"
	"fmt"
	"reflect"
)

// Weights holds the scoring constants. Every field is overridable from the
// [scoring] table of the config file.
type Weights struct {
	// Query match against listing and provider fields
	TitleMatch        float64 `toml:"title_match" json:"title_match"`
	CategoryMatch     float64 `toml:"category_match" json:"category_match"`
	TagMatch          float64 `toml:"tag_match" json:"tag_match"` // per matching tag
	ProviderNameMatch float64 `toml:"provider_name_match" json:"provider_name_match"`
	DescriptionMatch  float64 `toml:"description_match" json:"description_match"`

	// Quality signals
	RatingFactor     float64 `toml:"rating_factor" json:"rating_factor"`
	ReviewFactor     float64 `toml:"review_factor" json:"review_factor"`
	ReviewCap        float64 `toml:"review_cap" json:"review_cap"`
	ExperienceFactor float64 `toml:"experience_factor" json:"experience_factor"`
	ExperienceCap    float64 `toml:"experience_cap" json:"experience_cap"`

	// Bonuses for satisfying optional filter clauses
	UrgentBonus       float64 `toml:"urgent_bonus" json:"urgent_bonus"`
	GroupBonus        float64 `toml:"group_bonus" json:"group_bonus"`
	CityBonus         float64 `toml:"city_bonus" json:"city_bonus"`
	NeighborhoodBonus float64 `toml:"neighborhood_bonus" json:"neighborhood_bonus"`
}

// ErrNegativeWeight is returned by Validate when any weight is below zero
var ErrNegativeWeight = errors.New("scoring weight must be >= 0")

// DefaultWeights returns the stock scoring constants
func DefaultWeights() Weights {
	return Weights{
		TitleMatch:        50,
		CategoryMatch:     30,
		TagMatch:          20,
		ProviderNameMatch: 15,
		DescriptionMatch:  10,

		RatingFactor:     10,
		ReviewFactor:     2,
		ReviewCap:        20,
		ExperienceFactor: 3,
		ExperienceCap:    15,

		UrgentBonus:       25,
		GroupBonus:        25,
		CityBonus:         20,
		NeighborhoodBonus: 30,
	}
}

// Validate rejects negative weights so scores stay non-negative
func (w Weights) Validate() error {
	v := reflect.ValueOf(w)
	for i := 0; i < v.NumField(); i++ {
		if v.Field(i).Float() < 0 {
			return fmt.Errorf("%w: %s=%v", ErrNegativeWeight, v.Type().Field(i).Name, v.Field(i).Float())
		}
	}
	return nil
}
