package types

// SearchResult is one ranked hit produced by a search. It is built per
// query and never persisted.
type SearchResult struct {
	Listing  Listing  `json:"listing"`
	Provider Provider `json:"provider"`

	// RelevanceScore is always computed, whatever the sort strategy
	RelevanceScore float64 `json:"relevance_score"`

	// Distance is a placeholder until listings carry coordinates; it is always 0
	Distance float64 `json:"distance"`
}
