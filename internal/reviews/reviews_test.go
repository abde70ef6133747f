package reviews_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/oauth2"

	"github.com/tayloree/shopcli/internal/api"
	"github.com/tayloree/shopcli/internal/cache"
	"github.com/tayloree/shopcli/internal/reviews"
	"github.com/tayloree/shopcli/internal/sequence"
	"github.com/tayloree/shopcli/internal/session"
)

const productID = "42"

var now = time.Date(2026, 4, 2, 15, 0, 0, 0, time.UTC)

func ptr(s string) *string { return &s }

func signedIn(t *testing.T) *session.Session {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}).SignedString([]byte("k"))
	require.NoError(t, err)
	return session.New(raw)
}

type fakeBackend struct {
	mu sync.Mutex

	reviews    []api.Review
	reviewsErr error
	summary    *api.RatingSummary
	summaryErr error
	submitErr  error

	submitted   []api.RatingSubmission
	reviewCalls int
	// afterSubmit replaces reviews once a submission succeeds.
	afterSubmit []api.Review
}

func (f *fakeBackend) FetchReviews(context.Context, string) ([]api.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reviewCalls++
	return f.reviews, f.reviewsErr
}

func (f *fakeBackend) FetchRatingSummary(context.Context, string) (*api.RatingSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.summary, f.summaryErr
}

func (f *fakeBackend) SubmitRating(_ context.Context, _ string, sub api.RatingSubmission, _ *oauth2.Token) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, sub)
	if f.submitErr == nil && f.afterSubmit != nil {
		f.reviews = f.afterSubmit
	}
	return f.submitErr
}

func newEngine(t *testing.T, b *fakeBackend, store cache.Store, sess *session.Session) *reviews.Engine {
	return reviews.NewEngine(productID, b, store, sess,
		reviews.WithClock(func() time.Time { return now }),
		reviews.WithLogger(zaptest.NewLogger(t)))
}

func TestSummary_AddIsIncremental(t *testing.T) {
	s := reviews.Summarize(nil)
	s.Add(5)
	s.Add(3)
	s.Add(2)

	assert.Equal(t, 3, s.TotalRatings)
	assert.InDelta(t, 10.0/3.0, s.AverageRating, 1e-9)
	assert.InDelta(t, 3.3, s.RoundedAverage(), 1e-9)
	assert.Equal(t, map[int]int{1: 0, 2: 1, 3: 1, 4: 0, 5: 1}, s.Distribution)
}

func TestSummarize(t *testing.T) {
	s := reviews.Summarize([]reviews.Review{{Rating: 4}, {Rating: 4}, {Rating: 1}})
	assert.Equal(t, 3, s.TotalRatings)
	assert.InDelta(t, 3.0, s.AverageRating, 1e-9)
	assert.Equal(t, 2, s.Distribution[4])
}

func TestMerge(t *testing.T) {
	remote := []reviews.Review{
		{ID: "r1", Rating: 5, Comment: ptr("Great"), CreatedAt: now},
		{ID: "r2", Rating: 2, CreatedAt: now.Add(-time.Hour)},
	}
	local := []reviews.Review{
		{ID: "l1", Rating: 5, Comment: ptr(" Great "), CreatedAt: now.Add(45 * time.Second)},
		{ID: "l2", Rating: 5, Comment: ptr("Great"), CreatedAt: now.Add(61 * time.Second)},
		{ID: "l3", Rating: 4, Comment: ptr("Great"), CreatedAt: now},
		{ID: "r2", Rating: 3, CreatedAt: now},
		{ID: "l4", Rating: 2, CreatedAt: now.Add(-time.Hour + 10*time.Second)},
	}

	got := reviews.Merge(remote, local)
	ids := make([]string, len(got))
	for i, r := range got {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"l2", "l3", "r1", "r2"}, ids)
}

func TestLoad_MergesCachedLocalRecords(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()
	// Persisted records are whole snapshots: the local-only review plus the
	// confirmed ones known at the time.
	local := []reviews.Review{
		{ID: "local-1", AuthorLabel: "You", Rating: 1, CreatedAt: now, State: reviews.StateLocalOnly, IsLocalOnly: true},
		{ID: "1", AuthorLabel: "Ann", Rating: 5, CreatedAt: now.Add(-time.Hour), State: reviews.StateConfirmed},
		{ID: "2", AuthorLabel: "Anonymous", Rating: 4, CreatedAt: now.Add(-2 * time.Hour), State: reviews.StateConfirmed},
	}
	require.NoError(t, cache.PutJSON(ctx, store, cache.ReviewsKey(productID), local))
	require.NoError(t, cache.PutJSON(ctx, store, cache.SummaryKey(productID), reviews.Summarize(local)))

	b := &fakeBackend{
		reviews: []api.Review{
			{ID: "1", Author: "Ann", Rating: 5, CreatedAt: now.Add(-time.Hour)},
			{ID: "2", Rating: 4, CreatedAt: now.Add(-2 * time.Hour)},
		},
		summary: &api.RatingSummary{AverageRating: 4.5, TotalRatings: 2, Distribution: map[int]int{4: 1, 5: 1}},
	}
	snap, err := newEngine(t, b, store, nil).Load(ctx)
	require.NoError(t, err)

	require.Len(t, snap.Reviews, 3)
	assert.Equal(t, "local-1", snap.Reviews[0].ID)
	assert.True(t, snap.Reviews[0].IsLocalOnly)
	assert.Equal(t, "Anonymous", snap.Reviews[2].AuthorLabel)
	assert.Equal(t, reviews.StateConfirmed, snap.Reviews[1].State)
	assert.False(t, snap.Degraded)

	assert.Equal(t, 3, snap.Summary.TotalRatings)
	assert.InDelta(t, 10.0/3.0, snap.Summary.AverageRating, 1e-9)

	// Remote still counts fewer ratings than the cache, so the cache stays.
	_, err = store.Get(ctx, cache.ReviewsKey(productID))
	assert.NoError(t, err)
}

func TestLoad_RemoteSupersedesCache(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()
	local := []reviews.Review{{ID: "x", Rating: 3, Comment: ptr("ok"), CreatedAt: now, State: reviews.StateLocalOnly, IsLocalOnly: true}}
	require.NoError(t, cache.PutJSON(ctx, store, cache.ReviewsKey(productID), local))
	require.NoError(t, cache.PutJSON(ctx, store, cache.SummaryKey(productID), reviews.Summarize(local)))

	b := &fakeBackend{
		reviews: []api.Review{{ID: "srv-9", Rating: 3, Comment: ptr("ok"), CreatedAt: now.Add(20 * time.Second)}},
		summary: &api.RatingSummary{AverageRating: 3, TotalRatings: 1, Distribution: map[int]int{3: 1}},
	}
	snap, err := newEngine(t, b, store, nil).Load(ctx)
	require.NoError(t, err)

	require.Len(t, snap.Reviews, 1)
	assert.Equal(t, "srv-9", snap.Reviews[0].ID)
	assert.Equal(t, 1, snap.Summary.TotalRatings)

	_, err = store.Get(ctx, cache.ReviewsKey(productID))
	assert.ErrorIs(t, err, cache.ErrNotFound)
	_, err = store.Get(ctx, cache.SummaryKey(productID))
	assert.ErrorIs(t, err, cache.ErrNotFound)
}

func TestLoad_RemoteFailureDegradesToCache(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()
	local := []reviews.Review{
		{ID: "a", Rating: 4, CreatedAt: now, State: reviews.StateConfirmed},
		{ID: "b", Rating: 2, CreatedAt: now, State: reviews.StateLocalOnly, IsLocalOnly: true},
	}
	require.NoError(t, cache.PutJSON(ctx, store, cache.ReviewsKey(productID), local))
	require.NoError(t, cache.PutJSON(ctx, store, cache.SummaryKey(productID), reviews.Summarize(local)))

	b := &fakeBackend{
		reviewsErr: errors.New("timeout"),
		summaryErr: errors.New("timeout"),
	}
	snap, err := newEngine(t, b, store, nil).Load(ctx)
	require.NoError(t, err)

	assert.True(t, snap.Degraded)
	assert.Len(t, snap.Reviews, 2)
	assert.Equal(t, 2, snap.Summary.TotalRatings)
	assert.InDelta(t, 3.0, snap.Summary.AverageRating, 1e-9)

	_, err = store.Get(ctx, cache.ReviewsKey(productID))
	assert.NoError(t, err)
}

func TestLoad_InconsistentRemoteSummaryIsRecomputed(t *testing.T) {
	b := &fakeBackend{
		reviews: []api.Review{{ID: "1", Rating: 5, CreatedAt: now}, {ID: "2", Rating: 3, CreatedAt: now}},
		summary: &api.RatingSummary{AverageRating: 4.9, TotalRatings: 120, Distribution: map[int]int{5: 120}},
	}
	snap, err := newEngine(t, b, nil, nil).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Summary.TotalRatings)
	assert.InDelta(t, 4.0, snap.Summary.AverageRating, 1e-9)
}

func TestLoad_ConsistentRemoteSummaryIsKept(t *testing.T) {
	b := &fakeBackend{
		reviews: []api.Review{{ID: "1", Rating: 5, CreatedAt: now}, {ID: "2", Rating: 4, CreatedAt: now}},
		summary: &api.RatingSummary{AverageRating: 4.5, TotalRatings: 2, Distribution: map[int]int{4: 1, 5: 1}},
	}
	snap, err := newEngine(t, b, nil, nil).Load(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 4.5, snap.Summary.AverageRating, 1e-9)
	assert.Equal(t, 0, snap.Summary.Distribution[1])
}

func TestLoad_NothingAvailable(t *testing.T) {
	b := &fakeBackend{reviewsErr: errors.New("down"), summaryErr: errors.New("down")}
	_, err := newEngine(t, b, cache.NewMemoryStore(), nil).Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "down")
}

func TestSubmit_Validation(t *testing.T) {
	b := &fakeBackend{}

	_, err := newEngine(t, b, nil, signedIn(t)).Submit(context.Background(), 0, "")
	assert.ErrorIs(t, err, reviews.ErrInvalidRating)
	_, err = newEngine(t, b, nil, signedIn(t)).Submit(context.Background(), 6, "")
	assert.ErrorIs(t, err, reviews.ErrInvalidRating)

	_, err = newEngine(t, b, nil, nil).Submit(context.Background(), 4, "")
	assert.ErrorIs(t, err, reviews.ErrLoginRequired)
	_, err = newEngine(t, b, nil, session.New("")).Submit(context.Background(), 4, "")
	assert.ErrorIs(t, err, reviews.ErrLoginRequired)

	assert.Empty(t, b.submitted)
	assert.Zero(t, b.reviewCalls)
}

func TestSubmit_ConfirmedThenRefreshed(t *testing.T) {
	ctx := context.Background()
	b := &fakeBackend{
		reviews: []api.Review{{ID: "1", Rating: 4, CreatedAt: now.Add(-time.Hour)}},
		summary: &api.RatingSummary{AverageRating: 4, TotalRatings: 1, Distribution: map[int]int{4: 1}},
		afterSubmit: []api.Review{
			{ID: "srv-2", Author: "me@example.com", Rating: 2, Comment: ptr("Too sweet"), CreatedAt: now.Add(3 * time.Second)},
			{ID: "1", Rating: 4, CreatedAt: now.Add(-time.Hour)},
		},
	}
	e := newEngine(t, b, cache.NewMemoryStore(), signedIn(t))
	_, err := e.Load(ctx)
	require.NoError(t, err)

	res, err := e.Submit(ctx, 2, "  Too sweet ")
	require.NoError(t, err)

	assert.Equal(t, reviews.OutcomeConfirmed, res.Outcome)
	assert.Equal(t, reviews.StateConfirmed, res.Review.State)
	assert.Equal(t, reviews.OwnAuthorLabel, res.Review.AuthorLabel)
	assert.NotEmpty(t, res.Review.ID)
	require.Len(t, b.submitted, 1)
	assert.Equal(t, api.RatingSubmission{Rating: 2, Comment: "Too sweet"}, b.submitted[0])

	snap := res.Snapshot
	require.Len(t, snap.Reviews, 2)
	assert.Equal(t, "srv-2", snap.Reviews[0].ID)
	assert.Equal(t, 2, snap.Summary.TotalRatings)
	assert.InDelta(t, 3.0, snap.Summary.AverageRating, 1e-9)
}

func TestSubmit_RefreshFailureKeepsOptimisticState(t *testing.T) {
	ctx := context.Background()
	b := &fakeBackend{
		reviews: []api.Review{{ID: "1", Rating: 4, CreatedAt: now}},
		summary: &api.RatingSummary{AverageRating: 4, TotalRatings: 1, Distribution: map[int]int{4: 1}},
	}
	e := newEngine(t, b, nil, signedIn(t))
	_, err := e.Load(ctx)
	require.NoError(t, err)

	b.mu.Lock()
	b.reviewsErr = errors.New("flaky")
	b.mu.Unlock()

	res, err := e.Submit(ctx, 5, "")
	require.NoError(t, err)
	assert.Equal(t, reviews.OutcomeConfirmed, res.Outcome)
	assert.Nil(t, res.Review.Comment)

	snap := e.Snapshot()
	require.Len(t, snap.Reviews, 2)
	assert.Equal(t, res.Review.ID, snap.Reviews[0].ID)
	assert.Equal(t, 2, snap.Summary.TotalRatings)
	assert.InDelta(t, 4.5, snap.Summary.AverageRating, 1e-9)
	assert.Equal(t, 1, snap.Summary.Distribution[5])
}

func TestSubmit_FailureKeepsLocalOnlyRecord(t *testing.T) {
	for _, submitErr := range []error{
		&api.StatusError{StatusCode: 403},
		&api.StatusError{StatusCode: 500},
		errors.New("connection reset"),
	} {
		ctx := context.Background()
		store := cache.NewMemoryStore()
		b := &fakeBackend{
			reviews:   []api.Review{{ID: "1", Rating: 4, CreatedAt: now.Add(-time.Hour)}},
			summary:   &api.RatingSummary{AverageRating: 4, TotalRatings: 1, Distribution: map[int]int{4: 1}},
			submitErr: submitErr,
		}
		e := newEngine(t, b, store, signedIn(t))
		_, err := e.Load(ctx)
		require.NoError(t, err)

		res, err := e.Submit(ctx, 1, "Stale")
		require.NoError(t, err, "submit error %v", submitErr)
		assert.Equal(t, reviews.OutcomeLocalOnly, res.Outcome)
		assert.True(t, res.Review.IsLocalOnly)
		assert.Equal(t, reviews.StateLocalOnly, res.Review.State)
		assert.Equal(t, 2, res.Snapshot.Summary.TotalRatings)

		var persisted []reviews.Review
		require.NoError(t, cache.GetJSON(ctx, store, cache.ReviewsKey(productID), &persisted))
		require.Len(t, persisted, 2)
		assert.Equal(t, res.Review.ID, persisted[0].ID)

		var sum reviews.Summary
		require.NoError(t, cache.GetJSON(ctx, store, cache.SummaryKey(productID), &sum))
		assert.Equal(t, 2, sum.TotalRatings)

		// A later session with the service still lagging shows the local record.
		snap, err := newEngine(t, b, store, nil).Load(ctx)
		require.NoError(t, err)
		require.Len(t, snap.Reviews, 2)
		assert.True(t, snap.Reviews[0].IsLocalOnly)
		assert.Equal(t, 2, snap.Summary.TotalRatings)
	}
}

func TestLoad_KeepsPendingLocalRatingWhenRemoteGrows(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()
	b := &fakeBackend{
		reviews: []api.Review{
			{ID: "r1", Rating: 5, CreatedAt: now.Add(-2 * time.Hour)},
			{ID: "r2", Rating: 4, CreatedAt: now.Add(-time.Hour)},
		},
		summary:   &api.RatingSummary{AverageRating: 4.5, TotalRatings: 2, Distribution: map[int]int{4: 1, 5: 1}},
		submitErr: &api.StatusError{StatusCode: 403},
	}
	e := newEngine(t, b, store, signedIn(t))
	_, err := e.Load(ctx)
	require.NoError(t, err)
	res, err := e.Submit(ctx, 1, "awful")
	require.NoError(t, err)
	require.Equal(t, reviews.OutcomeLocalOnly, res.Outcome)

	// Someone else's rating lands; ours still has not.
	b.mu.Lock()
	b.reviews = append(b.reviews, api.Review{ID: "r3", Rating: 3, CreatedAt: now.Add(-time.Minute)})
	b.summary = &api.RatingSummary{AverageRating: 4, TotalRatings: 3, Distribution: map[int]int{3: 1, 4: 1, 5: 1}}
	b.mu.Unlock()

	for i := range 2 {
		snap, err := newEngine(t, b, store, nil).Load(ctx)
		require.NoError(t, err)
		require.Len(t, snap.Reviews, 4, "load %d", i+1)
		assert.Equal(t, res.Review.ID, snap.Reviews[0].ID, "load %d", i+1)
		assert.True(t, snap.Reviews[0].IsLocalOnly, "load %d", i+1)
		assert.Equal(t, 4, snap.Summary.TotalRatings, "load %d", i+1)
	}

	var persisted []reviews.Review
	require.NoError(t, cache.GetJSON(ctx, store, cache.ReviewsKey(productID), &persisted))
	require.Len(t, persisted, 1)
	assert.Equal(t, res.Review.ID, persisted[0].ID)
}

// gatedBackend parks the first FetchReviews until release is closed, then
// answers with stale.
type gatedBackend struct {
	*fakeBackend
	entered chan struct{}
	release chan struct{}
	stale   []api.Review
	calls   atomic.Int32
}

func (g *gatedBackend) FetchReviews(ctx context.Context, id string) ([]api.Review, error) {
	if g.calls.Add(1) == 1 {
		close(g.entered)
		<-g.release
		return g.stale, nil
	}
	return g.fakeBackend.FetchReviews(ctx, id)
}

func TestLoad_OvertakenLoadLeavesStateAlone(t *testing.T) {
	ctx := context.Background()
	b := &gatedBackend{
		fakeBackend: &fakeBackend{
			reviews: []api.Review{{ID: "1", Rating: 5, CreatedAt: now}, {ID: "2", Rating: 3, CreatedAt: now}},
			summary: &api.RatingSummary{AverageRating: 4, TotalRatings: 2, Distribution: map[int]int{3: 1, 5: 1}},
		},
		entered: make(chan struct{}),
		release: make(chan struct{}),
		stale:   []api.Review{{ID: "old", Rating: 1, CreatedAt: now.Add(-time.Hour)}},
	}
	e := reviews.NewEngine(productID, b, nil, nil,
		reviews.WithClock(func() time.Time { return now }),
		reviews.WithLogger(zaptest.NewLogger(t)))

	firstErr := make(chan error, 1)
	go func() {
		_, err := e.Load(ctx)
		firstErr <- err
	}()
	<-b.entered

	fresh, err := e.Load(ctx)
	require.NoError(t, err)
	require.Len(t, fresh.Reviews, 2)

	close(b.release)
	require.ErrorIs(t, <-firstErr, sequence.ErrSuperseded)
	assert.Equal(t, *fresh, e.Snapshot())
}

func TestSubmit_ForbiddenIsLoggedApart(t *testing.T) {
	for _, tt := range []struct {
		err  error
		want string
	}{
		{&api.StatusError{StatusCode: 403}, "rating submission forbidden, keeping it locally"},
		{&api.StatusError{StatusCode: 500}, "rating submission failed, keeping it locally"},
	} {
		core, logs := observer.New(zapcore.WarnLevel)
		b := &fakeBackend{submitErr: tt.err}
		e := reviews.NewEngine(productID, b, nil, signedIn(t),
			reviews.WithClock(func() time.Time { return now }),
			reviews.WithLogger(zap.New(core)))

		res, err := e.Submit(context.Background(), 2, "")
		require.NoError(t, err)
		assert.Equal(t, reviews.OutcomeLocalOnly, res.Outcome)

		entries := logs.FilterMessage(tt.want).All()
		assert.Len(t, entries, 1, "status %d", api.StatusCode(tt.err))
	}
}
