// Package cache stores normalized post records keyed by their raw source
// URL. Backends are functionally equivalent but differ in persistence:
// a whole-file JSON store, an embedded sqlite database, and a document
// database for multi-process deployments.
package cache

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stormydragon/twitfix/internal/config"
	"github.com/stormydragon/twitfix/internal/domain"
)

// LinkCache is the polymorphic cache contract.
//
// There is deliberately no per-key in-flight coalescing here: two
// concurrent requests for the same uncached URL can both miss, both
// resolve upstream and both write. Wasteful but not corrupting, since both
// compute the same record and writes are last-writer-wins.
type LinkCache interface {
	// Get returns the record for sourceURL, or (nil, nil) on a miss.
	// A hit increments the record's hit counter and persists it before
	// returning. Backend unavailability degrades to a miss wrapped in
	// domain.ErrCacheUnavailable.
	Get(ctx context.Context, sourceURL string) (*domain.PostRecord, error)

	// Put stores the record under sourceURL, reporting whether it was
	// persisted.
	Put(ctx context.Context, sourceURL string, rec *domain.PostRecord) (bool, error)

	// TopByField returns records sorted descending by field ("hits",
	// "likes" or "rts"), ties broken by insertion order, sliced to
	// [offset, offset+count).
	TopByField(ctx context.Context, field string, count, offset int) ([]*domain.PostRecord, error)

	// Latest returns records newest-first by insertion, sliced to
	// [offset, offset+count).
	Latest(ctx context.Context, count, offset int) ([]*domain.PostRecord, error)

	// Close releases backend resources.
	Close(ctx context.Context) error
}

// sortFields are the record counters TopByField accepts.
var sortFields = map[string]bool{
	"hits":  true,
	"likes": true,
	"rts":   true,
}

func validSortField(field string) error {
	if !sortFields[field] {
		return fmt.Errorf("unsupported sort field %q", field)
	}
	return nil
}

// New constructs the configured cache backend.
func New(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) (LinkCache, error) {
	switch cfg.Backend {
	case config.CacheFile:
		return NewFileCache(cfg.FilePath, logger)
	case config.CacheSQLite:
		return NewSQLiteCache(cfg.SQLitePath, logger)
	case config.CacheMongo:
		return NewMongoCache(ctx, cfg.MongoURI, cfg.MongoDatabase, logger)
	}
	return nil, fmt.Errorf("unrecognized cache backend %q", cfg.Backend)
}
