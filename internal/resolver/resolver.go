// Package resolver reconciles one product's identity across the inbound
// navigation payload, the local last-viewed snapshot, the favorites list and
// the canonical product endpoint.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/tayloree/shopcli/internal/api"
	"github.com/tayloree/shopcli/internal/cache"
	"github.com/tayloree/shopcli/internal/logging"
	"github.com/tayloree/shopcli/internal/sequence"
	"github.com/tayloree/shopcli/internal/session"
)

// ErrNotFound matches every *NotFoundError.
var ErrNotFound = errors.New("product not found")

// Reasons carried by NotFoundError.
const (
	ReasonUnauthorized = "unauthorized"
	ReasonFetchFailed  = "fetch failed"
	ReasonNotFound     = "not found"
)

// NotFoundError is returned when no source could identify the product.
type NotFoundError struct {
	ID     string
	Reason string
	Err    error
}

func (e *NotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("product %s: %s: %v", e.ID, e.Reason, e.Err)
	}
	return fmt.Sprintf("product %s: %s", e.ID, e.Reason)
}

func (e *NotFoundError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrNotFound}
	}
	return []error{ErrNotFound, e.Err}
}

// Backend is the subset of the API client the resolver needs.
type Backend interface {
	FetchProduct(ctx context.Context, id string, tok *oauth2.Token) (*api.Product, error)
	FetchFavorites(ctx context.Context, tok *oauth2.Token) ([]api.Favorite, error)
}

// Context is what the caller already knows about the product.
type Context struct {
	// Inbound is the product as passed by the navigating view, if any.
	Inbound *ProductRef
}

// Resolution is the reconciled product.
type Resolution struct {
	Product ProductRef
	// Authoritative is set when the canonical endpoint answered.
	Authoritative bool
	// Sources lists, in order, every source that contributed.
	Sources []Source
}

// Resolver resolves product ids. It is safe for concurrent use; a resolution
// overtaken by a later Resolve returns sequence.ErrSuperseded.
type Resolver struct {
	backend Backend
	store   cache.Store
	sess    *session.Session
	logger  *zap.Logger
	now     func() time.Time
	guard   sequence.Guard
}

// New builds a Resolver. store and sess may be nil.
func New(backend Backend, store cache.Store, sess *session.Session, logger *zap.Logger) *Resolver {
	return &Resolver{
		backend: backend,
		store:   store,
		sess:    sess,
		logger:  logging.OrNop(logger),
		now:     time.Now,
	}
}

// Resolve identifies externalID. It never reports NotFound when any source
// matched.
func (r *Resolver) Resolve(ctx context.Context, externalID string, rc Context) (*Resolution, error) {
	seq := r.guard.Next()
	id := NormalizeID(externalID)
	if id == "" {
		return nil, &NotFoundError{ID: externalID, Reason: ReasonNotFound}
	}
	log := r.logger.With(zap.String("productId", id))

	var bearer *oauth2.Token
	if r.sess != nil {
		bearer, _ = r.sess.Validate(r.now())
	}

	var (
		prov    *ProductRef
		sources []Source
	)
	adopt := func(ref ProductRef, src Source) {
		if prov == nil {
			prov = &ProductRef{}
		}
		ref.Source = src
		prov.mergeFrom(ref)
		sources = append(sources, src)
	}

	if in := rc.Inbound; in != nil && NormalizeID(in.ExternalID) == id {
		ref := *in
		ref.NormalizedID = id
		adopt(ref, SourceInbound)
	}

	if !prov.Complete() {
		if ref, ok := r.lastViewed(ctx, id); ok {
			adopt(ref, SourceCache)
		}
	}

	if !prov.Complete() && bearer != nil {
		if ref, ok, err := r.favorite(ctx, id, bearer); err != nil {
			log.Debug("favorites lookup failed", zap.Error(err))
		} else if ok {
			adopt(ref, SourceFavorites)
		}
	}

	p, fetchErr := r.backend.FetchProduct(ctx, id, bearer)
	if fetchErr == nil {
		ref := FromProduct(p)
		if ref.NormalizedID == "" {
			ref.NormalizedID, ref.ExternalID = id, externalID
		}
		if err := r.guard.Check(seq); err != nil {
			return nil, err
		}
		r.remember(ctx, ref)
		return &Resolution{
			Product:       ref,
			Authoritative: true,
			Sources:       append(sources, SourceCanonical),
		}, nil
	}
	log.Debug("canonical fetch failed", zap.Error(fetchErr))

	if bearer != nil {
		if ref, ok, err := r.favorite(ctx, id, bearer); err != nil {
			log.Debug("favorites fallback failed", zap.Error(err))
		} else if ok {
			adopt(ref, SourceFavorites)
			return r.finish(seq, &Resolution{Product: *prov, Sources: sources})
		}
	}

	if prov != nil {
		return r.finish(seq, &Resolution{Product: *prov, Sources: sources})
	}

	nf := &NotFoundError{ID: id, Reason: ReasonFetchFailed, Err: fetchErr}
	switch {
	case api.IsAuthFailure(fetchErr):
		nf.Reason = ReasonUnauthorized
	case api.IsNotFound(fetchErr):
		nf.Reason = ReasonNotFound
	}
	if err := r.guard.Check(seq); err != nil {
		return nil, err
	}
	return nil, nf
}

func (r *Resolver) finish(seq sequence.Token, res *Resolution) (*Resolution, error) {
	if err := r.guard.Check(seq); err != nil {
		return nil, err
	}
	return res, nil
}

func (r *Resolver) lastViewed(ctx context.Context, id string) (ProductRef, bool) {
	if r.store == nil {
		return ProductRef{}, false
	}
	var ref ProductRef
	if err := cache.GetJSON(ctx, r.store, cache.KeyLastViewed, &ref); err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			r.logger.Warn("reading last-viewed snapshot", zap.Error(err))
		}
		return ProductRef{}, false
	}
	if NormalizeID(ref.NormalizedID) != id && NormalizeID(ref.ExternalID) != id {
		return ProductRef{}, false
	}
	ref.NormalizedID = id
	return ref, true
}

func (r *Resolver) remember(ctx context.Context, ref ProductRef) {
	if r.store == nil {
		return
	}
	if err := cache.PutJSON(ctx, r.store, cache.KeyLastViewed, ref); err != nil {
		r.logger.Warn("writing last-viewed snapshot", zap.Error(err))
	}
}

func (r *Resolver) favorite(ctx context.Context, id string, tok *oauth2.Token) (ProductRef, bool, error) {
	favs, err := r.backend.FetchFavorites(ctx, tok)
	if err != nil {
		return ProductRef{}, false, err
	}
	for _, f := range favs {
		if NormalizeID(f.ItemID) == id || NormalizeID(f.ID) == id {
			ref := fromFavorite(f)
			ref.NormalizedID = id
			return ref, true, nil
		}
	}
	return ProductRef{}, false, nil
}
