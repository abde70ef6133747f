// Package cache is the local key/value store for JSON blobs that must survive
// across sessions: the last-viewed product, local-only reviews and rating
// summaries, and the facet listing.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("cache: key not found")

// Well-known keys.
const (
	KeyLastViewed    = "product:last-viewed"
	KeyFacetsListing = "facets:listing"
)

// ReviewsKey is the key of the local review list of a product.
func ReviewsKey(productID string) string { return "reviews:" + productID }

// SummaryKey is the key of the local rating summary of a product.
func SummaryKey(productID string) string { return "rating-summary:" + productID }

// Store holds opaque blobs by key. Writes replace the whole value; the last
// writer wins.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// GetJSON loads key and decodes it into out. It returns ErrNotFound when the
// key is missing.
func GetJSON(ctx context.Context, s Store, key string, out any) error {
	data, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding %s: %w", key, err)
	}
	return nil
}

// PutJSON encodes v and stores it under key.
func PutJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	return s.Put(ctx, key, data)
}

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Options selects and configures a backend.
type Options struct {
	Backend  string
	DataDir  string
	RedisURL string
}

// Open builds the store named by opts.Backend. An empty backend means sqlite.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case "", BackendSQLite:
		return NewSQLiteStore(opts.DataDir)
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendRedis:
		return NewRedisStore(ctx, opts.RedisURL)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", opts.Backend)
	}
}
