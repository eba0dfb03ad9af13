// Package storage provides the listing store the search engine reads from.
//
// The engine itself only depends on ListingSource (two read operations) and,
// when available, BulkListingSource. SQLiteStorage implements the full
// Storage interface, including the writes used by the CLI seed command and
// the MCP create_listing tool.
//
// # Database Schema
//
// Tables:
//   - providers: provider profile, nullable rating, is_active flag
//   - listings: listing content, tags as a JSON array, nullable rating and
//     review count, is_active flag, created_at as fixed-width UTC text
//   - schema_version: applied migrations (semver)
//
// # Basic Usage
//
//	store, err := storage.NewSQLiteStorage("~/.listingsearch/listings.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	err = store.Import(ctx, providers, listings)
//
// # Build Modes
//
// The default build uses modernc.org/sqlite (pure Go). Build with
// -tags sqlite_cgo to use github.com/mattn/go-sqlite3 instead.
//
// # Postgres
//
// Package pgstore offers a read-only ListingSource over Postgres for
// deployments where listings live in a managed database.
package storage
