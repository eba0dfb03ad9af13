package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/listingsearch/pkg/types"
)

func sortStrategyNames() []string {
	out := make([]string, 0, len(types.SortStrategies()))
	for _, s := range types.SortStrategies() {
		out = append(out, string(s))
	}
	return out
}

func locationModeNames() []string {
	return []string{
		string(types.LocationAtProviderSite),
		string(types.LocationAtCustomerSite),
		string(types.LocationEither),
	}
}

// searchListingsTool returns the tool definition for search_listings
func searchListingsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_listings",
		Description: "Search active marketplace listings with filters and a sort strategy",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Free text matched case-insensitively against title, description, category, tags and provider",
				},
				"categories": map[string]interface{}{
					"type":        "array",
					"description": "Accepted categories; empty means any",
					"items":       map[string]interface{}{"type": "string"},
				},
				"min_price": map[string]interface{}{
					"type":        "integer",
					"description": "Inclusive lower price bound",
					"minimum":     0,
				},
				"max_price": map[string]interface{}{
					"type":        "integer",
					"description": "Inclusive upper price bound",
					"minimum":     0,
				},
				"min_rating": map[string]interface{}{
					"type":        "number",
					"description": "Minimum listing rating, falling back to provider rating (0-5)",
					"minimum":     0.0,
					"maximum":     5.0,
				},
				"city": map[string]interface{}{
					"type":        "string",
					"description": "Provider city, exact match",
				},
				"neighborhood": map[string]interface{}{
					"type":        "string",
					"description": "Provider neighborhood, exact match; only applied together with city",
				},
				"max_distance_km": map[string]interface{}{
					"type":        "number",
					"description": "Accepted for forward compatibility; does not narrow results yet",
				},
				"urgent": map[string]interface{}{
					"type":        "boolean",
					"description": "Only listings available for urgent bookings",
					"default":     false,
				},
				"group": map[string]interface{}{
					"type":        "boolean",
					"description": "Only listings that support group sessions",
					"default":     false,
				},
				"location_modes": map[string]interface{}{
					"type":        "array",
					"description": "Accepted location modes; empty means any",
					"items": map[string]interface{}{
						"type": "string",
						"enum": locationModeNames(),
					},
				},
				"sort_by": map[string]interface{}{
					"type":        "string",
					"description": "Result order",
					"enum":        sortStrategyNames(),
					"default":     string(types.SortRelevance),
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     DefaultLimit,
					"minimum":     1,
					"maximum":     MaxLimit,
				},
			},
		},
	}
}

// createListingTool returns the tool definition for create_listing
func createListingTool() mcp.Tool {
	return mcp.Tool{
		Name:        "create_listing",
		Description: "Create a listing for an existing provider; it is searchable immediately",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"provider_id": map[string]interface{}{
					"type":        "string",
					"description": "ID of the owning provider",
				},
				"title": map[string]interface{}{
					"type": "string",
				},
				"description": map[string]interface{}{
					"type": "string",
				},
				"category": map[string]interface{}{
					"type": "string",
				},
				"price": map[string]interface{}{
					"type":    "integer",
					"minimum": 0,
				},
				"duration_minutes": map[string]interface{}{
					"type":    "integer",
					"minimum": 1,
				},
				"tags": map[string]interface{}{
					"type":  "array",
					"items": map[string]interface{}{"type": "string"},
				},
				"location_mode": map[string]interface{}{
					"type":    "string",
					"enum":    locationModeNames(),
					"default": string(types.LocationEither),
				},
				"urgent": map[string]interface{}{
					"type":    "boolean",
					"default": false,
				},
				"group": map[string]interface{}{
					"type":    "boolean",
					"default": false,
				},
			},
			Required: []string{"provider_id", "title", "category", "price", "duration_minutes"},
		},
	}
}

// invalidateCacheTool returns the tool definition for invalidate_cache
func invalidateCacheTool() mcp.Tool {
	return mcp.Tool{
		Name:        "invalidate_cache",
		Description: "Force the next search to reload listings from the store",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report cache freshness, search counters and store statistics",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
