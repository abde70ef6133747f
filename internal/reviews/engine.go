package reviews

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/tayloree/shopcli/internal/api"
	"github.com/tayloree/shopcli/internal/cache"
	"github.com/tayloree/shopcli/internal/logging"
	"github.com/tayloree/shopcli/internal/sequence"
	"github.com/tayloree/shopcli/internal/session"
)

var (
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
	ErrLoginRequired = errors.New("sign in to rate products")
)

// OwnAuthorLabel labels reviews submitted from this client.
const OwnAuthorLabel = "You"

// Backend is the subset of the API client the engine needs.
type Backend interface {
	FetchReviews(ctx context.Context, productID string) ([]api.Review, error)
	FetchRatingSummary(ctx context.Context, productID string) (*api.RatingSummary, error)
	SubmitRating(ctx context.Context, productID string, sub api.RatingSubmission, tok *oauth2.Token) error
}

// Snapshot is the engine state at one point in time.
type Snapshot struct {
	ProductID string   `json:"productId"`
	Reviews   []Review `json:"reviews"`
	Summary   Summary  `json:"summary"`
	// Degraded is set when the remote list could not be fetched and the
	// cached list stands in for it.
	Degraded bool `json:"degraded,omitempty"`
}

// Outcome says where a submitted review ended up.
type Outcome string

const (
	OutcomeConfirmed Outcome = "confirmed"
	OutcomeLocalOnly Outcome = "local-only"
)

// SubmitResult describes an accepted submission.
type SubmitResult struct {
	Outcome  Outcome  `json:"outcome"`
	Review   Review   `json:"review"`
	Snapshot Snapshot `json:"snapshot"`
}

// Engine holds the review set of one product. It is safe for concurrent use.
type Engine struct {
	productID string
	backend   Backend
	store     cache.Store
	sess      *session.Session
	logger    *zap.Logger
	now       func() time.Time
	guard     sequence.Guard

	mu       sync.Mutex
	reviews  []Review
	summary  Summary
	degraded bool
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock replaces time.Now for record timestamps and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = logging.OrNop(l) }
}

// NewEngine builds an engine for productID. store and sess may be nil.
func NewEngine(productID string, backend Backend, store cache.Store, sess *session.Session, opts ...Option) *Engine {
	e := &Engine{
		productID: productID,
		backend:   backend,
		store:     store,
		sess:      sess,
		logger:    zap.NewNop(),
		now:       time.Now,
		summary:   Summarize(nil),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(zap.String("productId", productID))
	return e
}

// Snapshot returns a copy of the current state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() Snapshot {
	return Snapshot{
		ProductID: e.productID,
		Reviews:   append([]Review{}, e.reviews...),
		Summary:   e.summary.clone(),
		Degraded:  e.degraded,
	}
}

type loaded struct {
	remote       []Review
	remoteErr    error
	remoteSum    *Summary
	remoteSumErr error
	cached       []Review
	cachedSum    *Summary
}

// Load fetches the remote list and summary and the cached list and summary
// concurrently, then rebuilds the review set. It fails only when neither the
// remote nor the cached list is available.
func (e *Engine) Load(ctx context.Context) (*Snapshot, error) {
	seq := e.guard.Next()
	in := e.fetchAll(ctx)

	if in.remoteErr != nil && in.cached == nil {
		if err := e.guard.Check(seq); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("loading reviews: %w", in.remoteErr)
	}

	merged := Merge(in.remote, in.cached)
	summary := chooseSummary(in)
	if !summary.consistentWith(len(merged)) {
		e.logger.Debug("summary disagrees with review set, recomputing",
			zap.Int("summaryTotal", summary.TotalRatings), zap.Int("reviews", len(merged)))
		summary = Summarize(merged)
	}

	if err := e.guard.Check(seq); err != nil {
		return nil, err
	}

	if in.remoteErr == nil && in.remoteSumErr == nil && in.cached != nil {
		// A local-only record the server has not echoed back is still pending;
		// it must outlive any cache cleanup.
		if pending := localOnly(merged); len(pending) > 0 {
			e.persist(ctx, Snapshot{Reviews: pending, Summary: summary})
		} else if supersedes(in) {
			e.dropCache(ctx)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.reviews = merged
	e.summary = summary
	e.degraded = in.remoteErr != nil
	snap := e.snapshotLocked()
	return &snap, nil
}

func (e *Engine) fetchAll(ctx context.Context) loaded {
	var (
		in loaded
		g  errgroup.Group
	)

	g.Go(func() error {
		list, err := e.backend.FetchReviews(ctx, e.productID)
		if err != nil {
			in.remoteErr = err
			e.logger.Info("fetching remote reviews", zap.Error(err))
			return nil
		}
		in.remote = fromAPIList(list)
		return nil
	})
	g.Go(func() error {
		sum, err := e.backend.FetchRatingSummary(ctx, e.productID)
		if err != nil {
			in.remoteSumErr = err
			return nil
		}
		if sum == nil {
			in.remoteSumErr = errors.New("empty rating summary")
			return nil
		}
		s := summaryFromAPI(sum)
		in.remoteSum = &s
		return nil
	})
	if e.store != nil {
		g.Go(func() error {
			var list []Review
			if err := cache.GetJSON(ctx, e.store, cache.ReviewsKey(e.productID), &list); err != nil {
				e.logCacheMiss("reviews", err)
				return nil
			}
			if list == nil {
				list = []Review{}
			}
			in.cached = list
			return nil
		})
		g.Go(func() error {
			var s Summary
			if err := cache.GetJSON(ctx, e.store, cache.SummaryKey(e.productID), &s); err != nil {
				e.logCacheMiss("summary", err)
				return nil
			}
			in.cachedSum = &s
			return nil
		})
	}

	// Every goroutine records its own failure; none aborts the others.
	_ = g.Wait()
	return in
}

func (e *Engine) logCacheMiss(what string, err error) {
	if !errors.Is(err, cache.ErrNotFound) {
		e.logger.Warn("reading cached "+what, zap.Error(err))
	}
}

// chooseSummary picks the base summary: remote, unless it failed or the
// cached one counts more ratings.
func chooseSummary(in loaded) Summary {
	switch {
	case in.remoteSum != nil && in.cachedSum != nil && in.cachedSum.TotalRatings > in.remoteSum.TotalRatings:
		return in.cachedSum.clone()
	case in.remoteSum != nil:
		return *in.remoteSum
	case in.cachedSum != nil:
		return in.cachedSum.clone()
	default:
		return Summarize(nil)
	}
}

// supersedes reports whether confirmed remote data is at least as complete as
// the cached copy.
func supersedes(in loaded) bool {
	cachedTotal := len(in.cached)
	if in.cachedSum != nil && in.cachedSum.TotalRatings > cachedTotal {
		cachedTotal = in.cachedSum.TotalRatings
	}
	return in.remoteSum.TotalRatings >= cachedTotal
}

func localOnly(list []Review) []Review {
	var out []Review
	for _, r := range list {
		if r.IsLocalOnly {
			out = append(out, r)
		}
	}
	return out
}

func (e *Engine) dropCache(ctx context.Context) {
	for _, key := range []string{cache.ReviewsKey(e.productID), cache.SummaryKey(e.productID)} {
		if err := e.store.Delete(ctx, key); err != nil {
			e.logger.Warn("dropping superseded cache entry", zap.String("key", key), zap.Error(err))
		}
	}
	e.logger.Debug("remote reviews superseded local cache")
}

// Submit posts a rating. Validation failures return ErrInvalidRating or
// ErrLoginRequired without touching the network. Any remote failure keeps the
// review locally and still reports success, with OutcomeLocalOnly.
func (e *Engine) Submit(ctx context.Context, rating int, comment string) (*SubmitResult, error) {
	if rating < 1 || rating > 5 {
		return nil, ErrInvalidRating
	}
	if e.sess == nil {
		return nil, ErrLoginRequired
	}
	tok, _ := e.sess.Validate(e.now())
	if tok == nil {
		return nil, ErrLoginRequired
	}

	rev := Review{
		ID:          uuid.NewString(),
		AuthorLabel: OwnAuthorLabel,
		Rating:      rating,
		CreatedAt:   e.now().UTC(),
		State:       StatePending,
	}
	comment = strings.TrimSpace(comment)
	if comment != "" {
		rev.Comment = &comment
	}

	err := e.backend.SubmitRating(ctx, e.productID, api.RatingSubmission{Rating: rating, Comment: comment}, tok)
	if err != nil {
		if api.IsForbidden(err) {
			e.logger.Warn("rating submission forbidden, keeping it locally", zap.Error(err))
		} else {
			e.logger.Warn("rating submission failed, keeping it locally",
				zap.Int("status", api.StatusCode(err)), zap.Error(err))
		}
		rev.State = StateLocalOnly
		rev.IsLocalOnly = true
		snap := e.insert(rev)
		e.persist(ctx, snap)
		return &SubmitResult{Outcome: OutcomeLocalOnly, Review: rev, Snapshot: snap}, nil
	}

	rev.State = StateConfirmed
	snap := e.insert(rev)

	remote, err := e.backend.FetchReviews(ctx, e.productID)
	if err != nil {
		e.logger.Info("refreshing reviews after submit", zap.Error(err))
		return &SubmitResult{Outcome: OutcomeConfirmed, Review: rev, Snapshot: snap}, nil
	}

	e.mu.Lock()
	e.reviews = Merge(fromAPIList(remote), e.reviews)
	e.summary = Summarize(e.reviews)
	snap = e.snapshotLocked()
	e.mu.Unlock()
	return &SubmitResult{Outcome: OutcomeConfirmed, Review: rev, Snapshot: snap}, nil
}

func (e *Engine) insert(rev Review) Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reviews = append([]Review{rev}, e.reviews...)
	e.summary.Add(rev.Rating)
	return e.snapshotLocked()
}

func (e *Engine) persist(ctx context.Context, snap Snapshot) {
	if e.store == nil {
		return
	}
	if err := cache.PutJSON(ctx, e.store, cache.ReviewsKey(e.productID), snap.Reviews); err != nil {
		e.logger.Warn("persisting local reviews", zap.Error(err))
	}
	if err := cache.PutJSON(ctx, e.store, cache.SummaryKey(e.productID), snap.Summary); err != nil {
		e.logger.Warn("persisting local summary", zap.Error(err))
	}
}
