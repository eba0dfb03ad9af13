package types

import "errors"

// ErrDataUnavailable is returned by a search when the listing store could
// not be read and no earlier snapshot exists to fall back on.
var ErrDataUnavailable = errors.New("listing data unavailable")

// Validation errors for listings and providers
var (
	ErrMissingID           = errors.New("id is required")
	ErrMissingProvider     = errors.New("provider id is required")
	ErrNegativePrice       = errors.New("price must be >= 0")
	ErrInvalidDuration     = errors.New("duration must be > 0")
	ErrEmptyCategory       = errors.New("category cannot be empty")
	ErrInvalidLocationMode = errors.New("invalid location mode")
	ErrInvalidRating       = errors.New("rating must be between 0 and 5")
	ErrInvalidReviewCount  = errors.New("review count must be >= 0")
	ErrInvalidExperience   = errors.New("experience years must be >= 0")
)
