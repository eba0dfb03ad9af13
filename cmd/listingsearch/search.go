package main

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/listingsearch/pkg/types"
)

var (
	searchCategories []string
	searchMinPrice   int
	searchMaxPrice   int
	searchMinRating  float64
	searchCity       string
	searchHood       string
	searchUrgent     bool
	searchGroup      bool
	searchModes      []string
	searchSort       string
	searchLimit      int
	searchJSON       bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search active listings",
	Long: `Runs one search against the configured store and prints the ranked
results. The query is optional; with no filters every active listing is
returned.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSearch,
}

func init() {
	f := searchCmd.Flags()
	f.StringSliceVar(&searchCategories, "category", nil, "accepted categories (repeatable)")
	f.IntVar(&searchMinPrice, "min-price", -1, "inclusive lower price bound")
	f.IntVar(&searchMaxPrice, "max-price", -1, "inclusive upper price bound")
	f.Float64Var(&searchMinRating, "min-rating", 0, "minimum rating (0-5)")
	f.StringVar(&searchCity, "city", "", "provider city")
	f.StringVar(&searchHood, "neighborhood", "", "provider neighborhood (with --city)")
	f.BoolVar(&searchUrgent, "urgent", false, "only urgent-capable listings")
	f.BoolVar(&searchGroup, "group", false, "only group-capable listings")
	f.StringSliceVar(&searchModes, "location-mode", nil, "accepted location modes (repeatable)")
	f.StringVarP(&searchSort, "sort", "s", string(types.SortRelevance), "sort strategy")
	f.IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results (0 = all)")
	f.BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

// buildFilters maps the search flags onto SearchFilters
func buildFilters(args []string) (types.SearchFilters, error) {
	f := types.SearchFilters{
		Categories: searchCategories,
		MinRating:  searchMinRating,
		SortBy:     types.SortStrategy(searchSort),
		Location: types.LocationFilter{
			City:         searchCity,
			Neighborhood: searchHood,
		},
		Availability: types.AvailabilityFilter{
			IsUrgentAvailable: searchUrgent,
			IsGroupService:    searchGroup,
		},
	}
	if len(args) > 0 {
		f.Query = args[0]
	}

	if searchMinPrice >= 0 || searchMaxPrice >= 0 {
		pr := types.PriceRange{Min: 0, Max: math.MaxInt}
		if searchMinPrice >= 0 {
			pr.Min = searchMinPrice
		}
		if searchMaxPrice >= 0 {
			pr.Max = searchMaxPrice
		}
		f.PriceRange = &pr
	}

	for _, m := range searchModes {
		mode := types.LocationMode(m)
		if !mode.Valid() {
			return f, fmt.Errorf("invalid location mode %q", m)
		}
		f.Availability.LocationModes = append(f.Availability.LocationModes, mode)
	}

	if !f.SortBy.Valid() {
		return f, fmt.Errorf("unknown sort strategy %q (valid: %s)", searchSort, sortNames())
	}
	return f, nil
}

func sortNames() string {
	names := make([]string, 0, len(types.SortStrategies()))
	for _, s := range types.SortStrategies() {
		names = append(names, string(s))
	}
	return strings.Join(names, ", ")
}

func runSearch(cmd *cobra.Command, args []string) error {
	filters, err := buildFilters(args)
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	results, err := a.searcher.Search(cmd.Context(), filters)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchLimit > 0 && len(results) > searchLimit {
		results = results[:searchLimit]
	}

	if searchJSON {
		return outputSearchJSON(cmd, results)
	}
	outputSearchTable(cmd, results)
	return nil
}

func outputSearchJSON(cmd *cobra.Command, results []types.SearchResult) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, results []types.SearchResult) {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return
	}

	for i := range results {
		r := &results[i]
		cmd.Printf("  [%d] %s - %s (%.2f)\n", i+1, r.Listing.Title, r.Listing.Category, r.RelevanceScore)
		cmd.Printf("      %s, %s | price %d | %d min\n",
			r.Provider.FullName(), r.Provider.City, r.Listing.Price, r.Listing.DurationMinutes)
	}
}
