package facets

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/tayloree/shopcli/internal/api"
	"github.com/tayloree/shopcli/internal/cache"
	"github.com/tayloree/shopcli/internal/filter"
	"github.com/tayloree/shopcli/internal/logging"
)

// Source fetches the raw facet listing.
type Source interface {
	FetchFacets(ctx context.Context) (*api.FacetsResponse, error)
}

// Listing is the cleaned facet values per kind.
type Listing struct {
	Values map[Kind][]string `json:"values"`
	// FromCache is set when the listing came from the local cache because the
	// facets endpoint failed.
	FromCache bool `json:"-"`
}

// Count returns the number of values across all kinds.
func (l *Listing) Count() int {
	n := 0
	for _, v := range l.Values {
		n += len(v)
	}
	return n
}

// Loader fetches and cleans facet listings, keeping the last good listing in
// the cache for when the endpoint is down.
type Loader struct {
	src    Source
	store  cache.Store
	logger *zap.Logger
}

// NewLoader builds a Loader. store may be nil to disable the fallback.
func NewLoader(src Source, store cache.Store, logger *zap.Logger) *Loader {
	return &Loader{src: src, store: store, logger: logging.OrNop(logger)}
}

// Load returns the cleaned listing. Raw groups of the same kind are merged
// before cleaning; groups of unknown kind are ignored.
func (l *Loader) Load(ctx context.Context) (*Listing, error) {
	resp, err := l.src.FetchFacets(ctx)
	if err != nil {
		return l.fallback(ctx, err)
	}

	raw := make(map[Kind][]any)
	for _, group := range resp.Filters {
		kind, ok := ParseKind(group.FilterType)
		if !ok {
			l.logger.Debug("skipping unknown facet group", zap.String("filterType", group.FilterType))
			continue
		}
		raw[kind] = append(raw[kind], group.Filters...)
	}

	listing := &Listing{Values: make(map[Kind][]string, len(Kinds))}
	for _, kind := range Kinds {
		listing.Values[kind] = filter.NormalizeValues(raw[kind])
	}

	if l.store != nil {
		if err := cache.PutJSON(ctx, l.store, cache.KeyFacetsListing, listing); err != nil {
			l.logger.Warn("caching facet listing", zap.Error(err))
		}
	}
	return listing, nil
}

func (l *Loader) fallback(ctx context.Context, fetchErr error) (*Listing, error) {
	if l.store == nil {
		return nil, fmt.Errorf("loading facets: %w", fetchErr)
	}

	var listing Listing
	err := cache.GetJSON(ctx, l.store, cache.KeyFacetsListing, &listing)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			l.logger.Warn("reading cached facet listing", zap.Error(err))
		}
		return nil, fmt.Errorf("loading facets: %w", fetchErr)
	}

	l.logger.Info("facets endpoint failed, using cached listing", zap.Error(fetchErr))
	listing.FromCache = true
	if listing.Values == nil {
		listing.Values = make(map[Kind][]string)
	}
	return &listing, nil
}
