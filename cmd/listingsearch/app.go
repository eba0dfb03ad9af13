package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dshills/listingsearch/internal/cache"
	"github.com/dshills/listingsearch/internal/config"
	"github.com/dshills/listingsearch/internal/logging"
	"github.com/dshills/listingsearch/internal/searcher"
	"github.com/dshills/listingsearch/internal/storage"
	"github.com/dshills/listingsearch/internal/storage/pgstore"
)

// app holds the wired components shared by the commands
type app struct {
	store    storage.Storage // nil for read-only sources
	source   storage.ListingSource
	searcher *searcher.Searcher
	close    func()
}

// newApp opens the configured listing source and builds the search stack on it
func newApp(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*app, error) {
	a := &app{close: func() {}}

	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		pg, err := pgstore.Open(ctx, cfg.Storage.PostgresDSN, "")
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		a.source = pg
		a.close = pg.Close

	default:
		store, err := openSQLite(cfg.Storage.DBPath)
		if err != nil {
			return nil, err
		}
		a.store = store
		a.source = store
		a.close = func() { _ = store.Close() }
	}

	loader := cache.NewLoader(a.source, &cache.LoaderConfig{
		Workers:   cfg.Cache.Workers,
		RateLimit: cfg.Cache.RateLimit,
		Burst:     cfg.Cache.Burst,
		Retry: cache.RetryConfig{
			MaxAttempts: cfg.Cache.RetryAttempts,
			BaseDelay:   cfg.Cache.RetryBaseDelay.Duration,
			MaxDelay:    cache.DefaultRetryConfig().MaxDelay,
			Multiplier:  cache.DefaultRetryConfig().Multiplier,
		},
	}, logger.With("component", "loader"))

	c := cache.New(loader,
		cache.WithTTL(cfg.Cache.TTL.Duration),
		cache.WithFetchTimeout(cfg.Cache.FetchTimeout.Duration),
		cache.WithFailureBackoff(cfg.Cache.FailureBackoff.Duration),
		cache.WithLogger(logger.With("component", "cache")),
	)

	srch, err := searcher.NewSearcher(c, &searcher.Config{
		Weights:  cfg.Scoring,
		MemoSize: cfg.Search.MemoSize,
	}, logger.With("component", "searcher"))
	if err != nil {
		a.close()
		return nil, err
	}
	a.searcher = srch

	return a, nil
}

// openSQLite expands the path, creates its directory and opens the store
func openSQLite(dbPath string) (*storage.SQLiteStorage, error) {
	path, err := config.ExpandPath(dbPath)
	if err != nil {
		return nil, err
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	store, err := storage.NewSQLiteStorage(path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return store, nil
}
