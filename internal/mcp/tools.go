package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/listingsearch/internal/storage"
	"github.com/dshills/listingsearch/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams    = -32602 // Invalid method parameters
	ErrorCodeInternalError    = -32603 // Internal JSON-RPC error
	ErrorCodeDataUnavailable  = -32001 // Listing data could not be loaded; retryable
	ErrorCodeProviderNotFound = -32002 // create_listing named an unknown provider
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// dataUnavailableMessage is all a client learns about a failed load
const dataUnavailableMessage = "listing data is temporarily unavailable, please retry"

// handleSearchListings handles the search_listings tool invocation
func (s *Server) handleSearchListings(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		if request.Params.Arguments != nil {
			return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
		}
		args = map[string]interface{}{}
	}

	filters, err := parseFilters(args)
	if err != nil {
		return nil, err
	}

	limit, err := getIntDefault(args, "limit", DefaultLimit)
	if err != nil {
		return nil, err
	}
	if limit < 1 || limit > MaxLimit {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	results, err := s.searcher.Search(ctx, filters)
	if err != nil {
		if errors.Is(err, types.ErrDataUnavailable) {
			return nil, newMCPError(ErrorCodeDataUnavailable, dataUnavailableMessage, map[string]interface{}{
				"retryable": true,
			})
		}
		s.logger.Error("search failed", "error", err)
		return nil, newMCPError(ErrorCodeInternalError, "search failed", nil)
	}

	total := len(results)
	if len(results) > limit {
		results = results[:limit]
	}

	items := make([]map[string]interface{}, 0, len(results))
	for i, r := range results {
		items = append(items, map[string]interface{}{
			"rank":            i + 1,
			"relevance_score": r.RelevanceScore,
			"distance":        r.Distance,
			"listing":         r.Listing,
			"provider": map[string]interface{}{
				"id":               r.Provider.ID,
				"name":             r.Provider.FullName(),
				"city":             r.Provider.City,
				"neighborhood":     r.Provider.Neighborhood,
				"rating":           r.Provider.Rating,
				"experience_years": r.Provider.ExperienceYears,
			},
		})
	}

	response := map[string]interface{}{
		"total":    total,
		"returned": len(items),
		"sort_by":  string(filters.Normalized().SortBy),
		"results":  items,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// parseFilters maps tool arguments onto SearchFilters
func parseFilters(args map[string]interface{}) (types.SearchFilters, error) {
	f := types.SearchFilters{
		Query:      getStringDefault(args, "query", ""),
		Categories: getStringSlice(args, "categories"),
		MinRating:  getFloatDefault(args, "min_rating", 0),
		SortBy:     types.SortStrategy(getStringDefault(args, "sort_by", "")),
		Location: types.LocationFilter{
			City:         getStringDefault(args, "city", ""),
			Neighborhood: getStringDefault(args, "neighborhood", ""),
		},
		Availability: types.AvailabilityFilter{
			IsUrgentAvailable: getBoolDefault(args, "urgent", false),
			IsGroupService:    getBoolDefault(args, "group", false),
		},
	}

	if f.MinRating < types.MinRatingValue || f.MinRating > types.MaxRatingValue {
		return f, newMCPError(ErrorCodeInvalidParams, "min_rating must be between 0 and 5", map[string]interface{}{
			"param": "min_rating",
			"value": f.MinRating,
		})
	}

	_, hasMin := args["min_price"]
	_, hasMax := args["max_price"]
	if hasMin || hasMax {
		minPrice, err := getIntDefault(args, "min_price", 0)
		if err != nil {
			return f, err
		}
		maxPrice, err := getIntDefault(args, "max_price", math.MaxInt)
		if err != nil {
			return f, err
		}
		pr := types.PriceRange{Min: minPrice, Max: maxPrice}
		if pr.Min < 0 || pr.Max < 0 {
			return f, newMCPError(ErrorCodeInvalidParams, "prices must be >= 0", map[string]interface{}{
				"param": "min_price/max_price",
			})
		}
		f.PriceRange = &pr
	}

	if v, ok := args["max_distance_km"].(float64); ok {
		f.Location.MaxDistanceKm = &v
	}

	for _, m := range getStringSlice(args, "location_modes") {
		mode := types.LocationMode(m)
		if !mode.Valid() {
			return f, newMCPError(ErrorCodeInvalidParams, "invalid location mode", map[string]interface{}{
				"param":   "location_modes",
				"value":   m,
				"allowed": locationModeNames(),
			})
		}
		f.Availability.LocationModes = append(f.Availability.LocationModes, mode)
	}

	return f, nil
}

// handleCreateListing handles the create_listing tool invocation
func (s *Server) handleCreateListing(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.storage == nil {
		return nil, newMCPError(ErrorCodeInternalError, "listing store is read-only", nil)
	}

	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	for _, key := range []string{"provider_id", "title", "category"} {
		if v, ok := args[key].(string); !ok || v == "" {
			return nil, newMCPError(ErrorCodeInvalidParams, key+" parameter is required", map[string]interface{}{
				"param":  key,
				"reason": "missing or empty",
			})
		}
	}

	price, err := getIntDefault(args, "price", -1)
	if err != nil {
		return nil, err
	}
	duration, err := getIntDefault(args, "duration_minutes", 0)
	if err != nil {
		return nil, err
	}

	listing := &types.Listing{
		ID:                uuid.NewString(),
		ProviderID:        getStringDefault(args, "provider_id", ""),
		Title:             getStringDefault(args, "title", ""),
		Description:       getStringDefault(args, "description", ""),
		Category:          getStringDefault(args, "category", ""),
		Price:             price,
		DurationMinutes:   duration,
		Tags:              getStringSlice(args, "tags"),
		LocationMode:      types.LocationMode(getStringDefault(args, "location_mode", string(types.LocationEither))),
		IsUrgentAvailable: getBoolDefault(args, "urgent", false),
		IsGroupService:    getBoolDefault(args, "group", false),
	}

	if err := s.storage.UpsertListing(ctx, listing); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, newMCPError(ErrorCodeProviderNotFound, "provider not found", map[string]interface{}{
				"param": "provider_id",
				"value": listing.ProviderID,
			})
		}
		if isValidationError(err) {
			return nil, newMCPError(ErrorCodeInvalidParams, "invalid listing", map[string]interface{}{
				"reason": err.Error(),
			})
		}
		s.logger.Error("create listing failed", "error", err)
		return nil, newMCPError(ErrorCodeInternalError, "failed to store listing", nil)
	}

	s.searcher.InvalidateCache()
	s.logger.Info("listing created", "id", listing.ID, "provider", listing.ProviderID)

	response := map[string]interface{}{
		"created": true,
		"id":      listing.ID,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleInvalidateCache handles the invalidate_cache tool invocation
func (s *Server) handleInvalidateCache(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.searcher.InvalidateCache()
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{"invalidated": true})), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st := s.searcher.Status()

	cacheStatus := map[string]interface{}{
		"has_snapshot": st.Cache.HasSnapshot,
		"fetches":      st.Cache.Fetches,
		"failures":     st.Cache.Failures,
		"stale_serves": st.Cache.StaleServes,
		"hits":         st.Cache.Hits,
	}
	if st.Cache.HasSnapshot {
		cacheStatus["version"] = st.Cache.Version
		cacheStatus["age_seconds"] = st.Cache.Age.Seconds()
		cacheStatus["listings"] = st.Cache.Listings
		cacheStatus["providers"] = st.Cache.Providers
		cacheStatus["orphaned_listings"] = st.Cache.Orphans
	}

	response := map[string]interface{}{
		"cache": cacheStatus,
		"search": map[string]interface{}{
			"searches":     st.Searches,
			"memo_entries": st.MemoEntries,
			"memo_hits":    st.MemoHits,
		},
		"weights": st.Weights,
	}

	if s.storage != nil {
		status, err := s.storage.GetStatus(ctx)
		if err != nil {
			s.logger.Error("failed to get store status", "error", err)
			return nil, newMCPError(ErrorCodeInternalError, "failed to get status", nil)
		}
		response["store"] = map[string]interface{}{
			"active_providers":   status.ActiveProviders,
			"inactive_providers": status.InactiveProviders,
			"active_listings":    status.ActiveListings,
			"inactive_listings":  status.InactiveListings,
			"schema_version":     status.SchemaVersion,
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

func isValidationError(err error) bool {
	for _, target := range []error{
		types.ErrMissingID, types.ErrMissingProvider, types.ErrNegativePrice, types.ErrInvalidDuration,
		types.ErrEmptyCategory, types.ErrInvalidLocationMode, types.ErrInvalidRating, types.ErrInvalidReviewCount,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value. JSON
// numbers arrive as float64; fractional, non-finite and out-of-range values
// are rejected rather than truncated.
func getIntDefault(args map[string]interface{}, key string, defaultValue int) (int, error) {
	switch val := args[key].(type) {
	case int:
		return val, nil
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) || val != math.Trunc(val) ||
			val < float64(math.MinInt) || val >= float64(math.MaxInt) {
			return 0, newMCPError(ErrorCodeInvalidParams, key+" must be a whole number", map[string]interface{}{
				"param": key,
				"value": fmt.Sprint(val),
			})
		}
		return int(val), nil
	}
	return defaultValue, nil
}

// getFloatDefault extracts a number parameter with a default value
func getFloatDefault(args map[string]interface{}, key string, defaultValue float64) float64 {
	if val, ok := args[key].(float64); ok {
		return val
	}
	if val, ok := args[key].(int); ok {
		return float64(val)
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// getStringSlice extracts a string array parameter, skipping non-strings
func getStringSlice(args map[string]interface{}, key string) []string {
	switch v := args[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
