// Package search builds catalog search queries and dispatches them on the
// authenticated or guest endpoint, recovering from expired or rejected
// sessions by falling back to guest mode.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/tayloree/shopcli/internal/api"
	"github.com/tayloree/shopcli/internal/facets"
	"github.com/tayloree/shopcli/internal/filter"
	"github.com/tayloree/shopcli/internal/logging"
	"github.com/tayloree/shopcli/internal/sequence"
	"github.com/tayloree/shopcli/internal/session"
)

// Backend is the subset of the API client search needs.
type Backend interface {
	FetchCatalog(ctx context.Context) ([]api.Product, error)
	SearchProducts(ctx context.Context, q api.SearchQuery, tok *oauth2.Token) ([]api.Product, error)
	SearchProductsGuest(ctx context.Context, term string) ([]api.Product, error)
}

// Mode says which path produced a result.
type Mode string

const (
	ModeCatalog       Mode = "catalog"
	ModeAuthenticated Mode = "authenticated"
	ModeGuest         Mode = "guest"
)

// Notices attached to results. They are informational, never errors.
const (
	NoticeSessionExpired  = "session expired; showing guest results"
	NoticeSessionRejected = "session rejected by server; showing guest results"
	NoticeFacetsIgnored   = "facet filters need a signed-in session and were ignored"
)

// Request is one search invocation.
type Request struct {
	FreeText string
	Facets   facets.Selection
}

// Result is the outcome of a search. Products keep the endpoint's order.
type Result struct {
	Products []api.Product
	Mode     Mode
	Query    api.SearchQuery
	Notices  []string
}

// Searcher runs searches. It is safe for concurrent use; only the most
// recently started Search may return results.
type Searcher struct {
	backend Backend
	sess    *session.Session
	logger  *zap.Logger
	now     func() time.Time
	guard   sequence.Guard

	mu      sync.RWMutex
	catalog []api.Product
}

// Option customizes a Searcher.
type Option func(*Searcher)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Searcher) { s.logger = logging.OrNop(l) }
}

// WithClock replaces time.Now for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Searcher) { s.now = now }
}

// New builds a Searcher. sess may be nil for guest-only use.
func New(backend Backend, sess *session.Session, opts ...Option) *Searcher {
	s := &Searcher{
		backend: backend,
		sess:    sess,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadCatalog fetches the full catalog and keeps it for blank searches.
func (s *Searcher) LoadCatalog(ctx context.Context) ([]api.Product, error) {
	products, err := s.backend.FetchCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	s.mu.Lock()
	s.catalog = products
	s.mu.Unlock()
	return clone(products), nil
}

// Catalog returns the cached catalog.
func (s *Searcher) Catalog() []api.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.catalog)
}

// BuildQuery serializes a request for the authenticated endpoint: the trimmed
// term plus, per facet kind, the cleaned selected values joined by commas.
func BuildQuery(term string, sel facets.Selection) api.SearchQuery {
	join := func(kind facets.Kind) string {
		return strings.Join(filter.Normalize(sel.Values(kind)), ",")
	}
	return api.SearchQuery{
		Term:         strings.TrimSpace(term),
		Brand:        join(facets.Brand),
		Category:     join(facets.Category),
		Manufacturer: join(facets.Manufacturer),
		Ingredients:  join(facets.Ingredient),
	}
}

// Search runs req. A blank term with no facets returns the cached catalog
// without touching the network. A request overtaken by a later Search
// returns sequence.ErrSuperseded.
func (s *Searcher) Search(ctx context.Context, req Request) (*Result, error) {
	tok := s.guard.Next()
	term := strings.TrimSpace(req.FreeText)

	if term == "" && req.Facets.IsEmpty() {
		res := &Result{Products: s.Catalog(), Mode: ModeCatalog}
		return s.finish(tok, res)
	}

	res := &Result{}
	var bearer *oauth2.Token
	if s.sess != nil {
		var expired bool
		bearer, expired = s.sess.Validate(s.now())
		if expired {
			s.logger.Info("session token expired, searching as guest")
			res.Notices = append(res.Notices, NoticeSessionExpired)
		}
	}

	if bearer != nil {
		q := BuildQuery(term, req.Facets)
		products, err := s.backend.SearchProducts(ctx, q, bearer)
		switch {
		case err == nil:
			res.Products, res.Mode, res.Query = products, ModeAuthenticated, q
			return s.finish(tok, res)
		case api.IsAuthFailure(err):
			s.logger.Info("authenticated search rejected, retrying as guest",
				zap.Int("status", api.StatusCode(err)))
			s.sess.Clear(session.Expired)
			res.Notices = append(res.Notices, NoticeSessionRejected)
		default:
			return nil, s.stale(tok, fmt.Errorf("searching products: %w", err))
		}
	}

	if !req.Facets.IsEmpty() {
		res.Notices = append(res.Notices, NoticeFacetsIgnored)
	}
	products, err := s.backend.SearchProductsGuest(ctx, term)
	if err != nil {
		return nil, s.stale(tok, fmt.Errorf("searching products as guest: %w", err))
	}
	res.Products, res.Mode, res.Query = products, ModeGuest, api.SearchQuery{Term: term}
	return s.finish(tok, res)
}

func (s *Searcher) finish(tok sequence.Token, res *Result) (*Result, error) {
	if err := s.guard.Check(tok); err != nil {
		return nil, err
	}
	return res, nil
}

// stale prefers ErrSuperseded over err so callers drop outdated failures too.
func (s *Searcher) stale(tok sequence.Token, err error) error {
	if superseded := s.guard.Check(tok); superseded != nil {
		return errors.Join(superseded, err)
	}
	return err
}

func clone(in []api.Product) []api.Product {
	if in == nil {
		return []api.Product{}
	}
	return append([]api.Product(nil), in...)
}
