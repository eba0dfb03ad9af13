package cache

import (
	"time"

	"github.com/dshills/listingsearch/pkg/types"
)

// Entry pairs a listing with its resolved provider and the lower-cased text
// used for query matching.
type Entry struct {
	Listing  *types.Listing
	Provider *types.Provider
	Text     string
}

// Snapshot is one immutable bulk fetch of providers and listings. Once built
// it is never modified; a refresh replaces it with a new value.
type Snapshot struct {
	Listings  []types.Listing
	Providers []types.Provider
	FetchedAt time.Time
	Version   uint64

	providerIndex map[string]*types.Provider
	entries       []Entry
	orphans       int
}

// NewSnapshot builds a snapshot and its provider index. Listings whose
// provider is not among providers are kept in Listings but left out of
// Entries. When two providers share an ID the first one wins.
func NewSnapshot(providers []types.Provider, listings []types.Listing, fetchedAt time.Time, version uint64) *Snapshot {
	s := &Snapshot{
		Listings:      listings,
		Providers:     providers,
		FetchedAt:     fetchedAt,
		Version:       version,
		providerIndex: make(map[string]*types.Provider, len(providers)),
		entries:       make([]Entry, 0, len(listings)),
	}

	for i := range s.Providers {
		p := &s.Providers[i]
		if _, dup := s.providerIndex[p.ID]; dup {
			continue
		}
		s.providerIndex[p.ID] = p
	}

	for i := range s.Listings {
		l := &s.Listings[i]
		p, ok := s.providerIndex[l.ProviderID]
		if !ok {
			s.orphans++
			continue
		}
		s.entries = append(s.entries, Entry{Listing: l, Provider: p, Text: l.Searchable(p)})
	}

	return s
}

// Provider looks up a provider by ID
func (s *Snapshot) Provider(id string) (*types.Provider, bool) {
	p, ok := s.providerIndex[id]
	return p, ok
}

// Entries returns the listings that have a resolvable provider, in fetch order.
// Callers must not modify the returned entries.
func (s *Snapshot) Entries() []Entry {
	return s.entries
}

// Orphans is the number of listings whose provider could not be resolved
func (s *Snapshot) Orphans() int {
	return s.orphans
}

// Age reports how old the snapshot is at now
func (s *Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.FetchedAt)
}
