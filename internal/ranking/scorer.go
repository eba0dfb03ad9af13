package ranking

import (
	"math"
	"strings"

	"github.com/dshills/listingsearch/pkg/types"
)

// Score computes the additive relevance score of a listing for the given
// filters. It is a pure function of its arguments and never negative.
// Scores only order results; they never decide inclusion.
func Score(l *types.Listing, p *types.Provider, f types.SearchFilters, w Weights) float64 {
	score := textScore(l, p, strings.ToLower(strings.TrimSpace(f.Query)), w)

	score += w.RatingFactor * types.EffectiveRating(l, p)
	score += math.Min(w.ReviewFactor*float64(types.EffectiveReviewCount(l, p)), w.ReviewCap)
	if p != nil {
		score += math.Min(w.ExperienceFactor*float64(p.ExperienceYears), w.ExperienceCap)
	}

	if f.Availability.IsUrgentAvailable && l.IsUrgentAvailable {
		score += w.UrgentBonus
	}
	if f.Availability.IsGroupService && l.IsGroupService {
		score += w.GroupBonus
	}

	if p != nil && f.Location.City != "" && p.City == f.Location.City {
		score += w.CityBonus
		if f.Location.Neighborhood != "" && p.Neighborhood == f.Location.Neighborhood {
			score += w.NeighborhoodBonus
		}
	}

	return math.Max(score, 0)
}

// textScore rewards substring matches of the lower-cased query q
func textScore(l *types.Listing, p *types.Provider, q string, w Weights) float64 {
	if q == "" {
		return 0
	}

	var score float64
	if containsFold(l.Title, q) {
		score += w.TitleMatch
	}
	if containsFold(l.Category, q) {
		score += w.CategoryMatch
	}
	for _, tag := range l.Tags {
		if containsFold(tag, q) {
			score += w.TagMatch
		}
	}
	if p != nil && containsFold(p.FullName(), q) {
		score += w.ProviderNameMatch
	}
	if containsFold(l.Description, q) {
		score += w.DescriptionMatch
	}
	return score
}

// containsFold reports whether s contains the already lower-cased q
func containsFold(s, q string) bool {
	return strings.Contains(strings.ToLower(s), q)
}
