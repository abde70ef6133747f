package resolver_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/oauth2"

	"github.com/tayloree/shopcli/internal/api"
	"github.com/tayloree/shopcli/internal/cache"
	"github.com/tayloree/shopcli/internal/resolver"
	"github.com/tayloree/shopcli/internal/sequence"
	"github.com/tayloree/shopcli/internal/session"
)

func signedIn(t *testing.T) *session.Session {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "u"}).
		SignedString([]byte("k"))
	require.NoError(t, err)
	return session.New(raw)
}

type fakeBackend struct {
	product      *api.Product
	productErr   error
	favorites    [][]api.Favorite
	favoritesErr error

	productCalls   int
	favoritesCalls int
}

func (f *fakeBackend) FetchProduct(_ context.Context, _ string, _ *oauth2.Token) (*api.Product, error) {
	f.productCalls++
	return f.product, f.productErr
}

func (f *fakeBackend) FetchFavorites(context.Context, *oauth2.Token) ([]api.Favorite, error) {
	f.favoritesCalls++
	if f.favoritesErr != nil {
		return nil, f.favoritesErr
	}
	if len(f.favorites) == 0 {
		return nil, nil
	}
	i := min(f.favoritesCalls, len(f.favorites)) - 1
	return f.favorites[i], nil
}

func TestNormalizeID(t *testing.T) {
	tests := []struct {
		input any
		want  string
	}{
		{"42", "42"},
		{" 42 ", "42"},
		{42, "42"},
		{int64(42), "42"},
		{42.0, "42"},
		{42.5, "42.5"},
		{1e21, "1000000000000000000000"},
		{api.ID("sku-9"), "sku-9"},
		{nil, ""},
		{[]int{1}, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, resolver.NormalizeID(tt.input), "NormalizeID(%#v)", tt.input)
	}
}

func TestResolve_CanonicalIsAuthoritativeAndRemembered(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()
	b := &fakeBackend{product: &api.Product{ID: "42", Name: "Oat Milk", Brand: "Oatly", Manufacturer: "Oatly AB"}}
	r := resolver.New(b, store, nil, zaptest.NewLogger(t))

	inbound := &resolver.ProductRef{ExternalID: "42", Name: "Old Name"}
	res, err := r.Resolve(ctx, "42", resolver.Context{Inbound: inbound})
	require.NoError(t, err)

	assert.True(t, res.Authoritative)
	assert.Equal(t, "Oat Milk", res.Product.Name)
	assert.Equal(t, resolver.SourceCanonical, res.Product.Source)
	assert.Equal(t, []resolver.Source{resolver.SourceInbound, resolver.SourceCanonical}, res.Sources)

	var snap resolver.ProductRef
	require.NoError(t, cache.GetJSON(ctx, store, cache.KeyLastViewed, &snap))
	assert.Equal(t, "42", snap.NormalizedID)
	assert.Equal(t, "Oat Milk", snap.Name)
}

func TestResolve_ProvisionalChainMergesFields(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()
	require.NoError(t, cache.PutJSON(ctx, store, cache.KeyLastViewed, resolver.ProductRef{
		ExternalID: "42", NormalizedID: "42", Brand: "Oatly", Category: "Dairy",
	}))
	b := &fakeBackend{
		productErr: &api.StatusError{StatusCode: 500},
		favorites: [][]api.Favorite{
			{{ID: "fav-1", ItemID: "42", Manufacturer: "Oatly AB"}},
			{},
		},
	}
	r := resolver.New(b, store, signedIn(t), nil)

	inbound := &resolver.ProductRef{ExternalID: "42", Name: "Oat Milk"}
	res, err := r.Resolve(ctx, "42", resolver.Context{Inbound: inbound})
	require.NoError(t, err)

	assert.False(t, res.Authoritative)
	assert.Equal(t, "Oat Milk", res.Product.Name)
	assert.Equal(t, "Oatly", res.Product.Brand)
	assert.Equal(t, "Oatly AB", res.Product.Manufacturer)
	assert.Equal(t, "Dairy", res.Product.Category)
	assert.Equal(t, []resolver.Source{resolver.SourceInbound, resolver.SourceCache, resolver.SourceFavorites}, res.Sources)
	assert.Equal(t, 2, b.favoritesCalls)
}

func TestResolve_CompleteInboundSkipsLookups(t *testing.T) {
	b := &fakeBackend{product: &api.Product{ID: "7", Name: "Bread", Brand: "B", Manufacturer: "M"}}
	r := resolver.New(b, cache.NewMemoryStore(), signedIn(t), nil)

	inbound := &resolver.ProductRef{ExternalID: "7", Name: "Bread", Brand: "B", Manufacturer: "M"}
	_, err := r.Resolve(context.Background(), "7", resolver.Context{Inbound: inbound})
	require.NoError(t, err)
	assert.Zero(t, b.favoritesCalls)
	assert.Equal(t, 1, b.productCalls)
}

func TestResolve_InboundForOtherProductIgnored(t *testing.T) {
	b := &fakeBackend{productErr: &api.StatusError{StatusCode: 404}}
	r := resolver.New(b, nil, nil, nil)

	inbound := &resolver.ProductRef{ExternalID: "8", Name: "Other"}
	_, err := r.Resolve(context.Background(), "7", resolver.Context{Inbound: inbound})

	var nf *resolver.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, resolver.ReasonNotFound, nf.Reason)
	assert.ErrorIs(t, err, resolver.ErrNotFound)
}

func TestResolve_LegacyFavoriteIDMatches(t *testing.T) {
	b := &fakeBackend{
		productErr: &api.StatusError{StatusCode: 503},
		favorites:  [][]api.Favorite{{{ID: "42", Name: "Legacy favorite"}}},
	}
	r := resolver.New(b, nil, signedIn(t), nil)

	res, err := r.Resolve(context.Background(), " 42 ", resolver.Context{})
	require.NoError(t, err)
	assert.Equal(t, "Legacy favorite", res.Product.Name)
	assert.Equal(t, "42", res.Product.NormalizedID)
}

func TestResolve_FavoritesFallbackAfterCanonicalFailure(t *testing.T) {
	b := &fakeBackend{
		productErr: &api.StatusError{StatusCode: 401},
		favorites: [][]api.Favorite{
			{},
			{{ItemID: "42", Name: "Oat Milk", Brand: "Oatly"}},
		},
	}
	r := resolver.New(b, nil, signedIn(t), nil)

	res, err := r.Resolve(context.Background(), "42", resolver.Context{})
	require.NoError(t, err)
	assert.Equal(t, "Oat Milk", res.Product.Name)
	assert.Equal(t, []resolver.Source{resolver.SourceFavorites}, res.Sources)
	assert.Equal(t, 2, b.favoritesCalls)
}

func TestResolve_NotFoundReasons(t *testing.T) {
	tests := []struct {
		err    error
		reason string
	}{
		{&api.StatusError{StatusCode: 401}, resolver.ReasonUnauthorized},
		{&api.StatusError{StatusCode: 403}, resolver.ReasonUnauthorized},
		{&api.StatusError{StatusCode: 404}, resolver.ReasonNotFound},
		{&api.StatusError{StatusCode: 500}, resolver.ReasonFetchFailed},
		{errors.New("dial tcp: refused"), resolver.ReasonFetchFailed},
	}
	for _, tt := range tests {
		b := &fakeBackend{productErr: tt.err, favoritesErr: errors.New("down")}
		r := resolver.New(b, cache.NewMemoryStore(), signedIn(t), nil)

		res, err := r.Resolve(context.Background(), "42", resolver.Context{})
		assert.Nil(t, res)

		var nf *resolver.NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, tt.reason, nf.Reason, "for %v", tt.err)
		assert.Equal(t, "42", nf.ID)
	}
}

func TestResolve_BlankID(t *testing.T) {
	r := resolver.New(&fakeBackend{}, nil, nil, nil)
	_, err := r.Resolve(context.Background(), "  ", resolver.Context{})
	assert.ErrorIs(t, err, resolver.ErrNotFound)
}

// gatedBackend parks the first FetchProduct until release is closed.
type gatedBackend struct {
	entered chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (g *gatedBackend) FetchProduct(_ context.Context, id string, _ *oauth2.Token) (*api.Product, error) {
	if g.calls.Add(1) == 1 {
		close(g.entered)
		<-g.release
	}
	return &api.Product{ID: api.ID(id), Name: "Product " + id}, nil
}

func (g *gatedBackend) FetchFavorites(context.Context, *oauth2.Token) ([]api.Favorite, error) {
	return nil, nil
}

func TestResolve_OvertakenResolutionIsDropped(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()
	b := &gatedBackend{entered: make(chan struct{}), release: make(chan struct{})}
	r := resolver.New(b, store, nil, zaptest.NewLogger(t))

	type outcome struct {
		res *resolver.Resolution
		err error
	}
	first := make(chan outcome, 1)
	go func() {
		res, err := r.Resolve(ctx, "42", resolver.Context{})
		first <- outcome{res, err}
	}()
	<-b.entered

	res, err := r.Resolve(ctx, "7", resolver.Context{})
	require.NoError(t, err)
	assert.Equal(t, "Product 7", res.Product.Name)

	close(b.release)
	got := <-first
	assert.Nil(t, got.res)
	require.ErrorIs(t, got.err, sequence.ErrSuperseded)

	var snap resolver.ProductRef
	require.NoError(t, cache.GetJSON(ctx, store, cache.KeyLastViewed, &snap))
	assert.Equal(t, "7", snap.NormalizedID, "the overtaken product must not become last viewed")
}
