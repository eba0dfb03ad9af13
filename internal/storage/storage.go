package storage

import (
	"context"

	"github.com/dshills/listingsearch/pkg/types"
)

// ListingSource is the read side the search engine depends on: all active
// providers, and the active listings of one provider.
type ListingSource interface {
	ListActiveProviders(ctx context.Context) ([]types.Provider, error)
	ListActiveListings(ctx context.Context, providerID string) ([]types.Listing, error)
}

// BulkListingSource is implemented by sources that can return every active
// listing of every active provider in one call.
type BulkListingSource interface {
	ListingSource
	ListAllActiveListings(ctx context.Context) ([]types.Listing, error)
}

// Storage defines the full listing store used by the CLI and MCP write tools
type Storage interface {
	BulkListingSource

	// Provider operations
	UpsertProvider(ctx context.Context, provider *types.Provider) error
	GetProvider(ctx context.Context, id string) (*types.Provider, error)
	DeactivateProvider(ctx context.Context, id string) error

	// Listing operations
	UpsertListing(ctx context.Context, listing *types.Listing) error
	GetListing(ctx context.Context, id string) (*types.Listing, error)
	DeactivateListing(ctx context.Context, id string) error

	// Import writes providers and listings in a single transaction
	Import(ctx context.Context, providers []types.Provider, listings []types.Listing) error

	// Status operations
	GetStatus(ctx context.Context) (*Status, error)

	// Database operations
	Close() error
}

// Status contains row counts for the listing store
type Status struct {
	ActiveProviders   int
	InactiveProviders int
	ActiveListings    int
	InactiveListings  int
	SchemaVersion     string
}
