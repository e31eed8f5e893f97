package domain

import (
	"context"
	"time"
)

// CacheRepository is the result cache used around live pipeline stages.
// Get returns ErrCacheMiss for absent or expired keys.
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// UpstreamClient defines the interface for talking to the proxied commerce site
type UpstreamClient interface {
	// SearchPrimary queries the first candidate search API
	SearchPrimary(ctx context.Context, query SearchQuery) ([]ProductItem, error)
	// SearchSecondary queries the on-sale search API with its own envelope
	SearchSecondary(ctx context.Context, query SearchQuery) ([]ProductItem, error)
	// FetchPage returns the rendered HTML of a listing page
	FetchPage(ctx context.Context, target ProxyTarget) ([]byte, error)
	// FetchResource fetches an arbitrary upstream resource, forwarding the given headers
	FetchResource(ctx context.Context, target ProxyTarget, header map[string]string) (*Resource, error)
}

// Catalog serves the bundled static listing datasets
type Catalog interface {
	// Brand returns the dataset for a normalized brand key
	Brand(brand string) ([]ProductItem, bool)
	// Filter returns generic fallback items whose title contains term, case-insensitively.
	// An empty term matches everything.
	Filter(term string) []ProductItem
}
