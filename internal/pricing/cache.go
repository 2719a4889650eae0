package pricing

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by a Cache that holds no catalog
var ErrCacheMiss = errors.New("price cache is empty")

// Cache persists a price catalog together with the time it was fetched
type Cache interface {
	LoadCatalog(ctx context.Context) (Catalog, time.Time, error)
	StoreCatalog(ctx context.Context, catalog Catalog, fetchedAt time.Time) error
}

// Fresh reports whether data fetched at fetchedAt is still usable at now.
// A non-positive ttl never expires.
func Fresh(fetchedAt, now time.Time, ttl time.Duration) bool {
	if fetchedAt.IsZero() {
		return false
	}
	if ttl <= 0 {
		return true
	}
	return now.Sub(fetchedAt) < ttl
}

// CatalogState describes where the active catalog came from
type CatalogState struct {
	FetchedAt time.Time `json:"fetched_at,omitempty"`
	Fallback  bool      `json:"fallback"`
	Stale     bool      `json:"stale"`
}

// LoadCatalog returns the cached catalog when it is fresh. A stale cached
// catalog is still preferred over the built-in one, and the built-in one is
// used when the cache is empty. Only unexpected cache errors are returned.
func LoadCatalog(ctx context.Context, cache Cache, now time.Time, ttl time.Duration) (Catalog, CatalogState, error) {
	if cache == nil {
		return DefaultCatalog(), CatalogState{Fallback: true}, nil
	}
	catalog, fetchedAt, err := cache.LoadCatalog(ctx)
	if errors.Is(err, ErrCacheMiss) || (err == nil && catalog.Len() == 0) {
		return DefaultCatalog(), CatalogState{Fallback: true}, nil
	}
	if err != nil {
		return nil, CatalogState{}, err
	}
	return catalog, CatalogState{FetchedAt: fetchedAt, Stale: !Fresh(fetchedAt, now, ttl)}, nil
}
