package facets_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/tayloree/shopcli/internal/api"
	"github.com/tayloree/shopcli/internal/cache"
	"github.com/tayloree/shopcli/internal/facets"
)

func values(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("Value %03d", i)
	}
	return out
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		input string
		want  facets.Kind
	}{
		{"BRAND", facets.Brand},
		{"categories", facets.Category},
		{" Manufacturer ", facets.Manufacturer},
		{"INGREDIENTS", facets.Ingredient},
		{"ingredient", facets.Ingredient},
	}
	for _, tt := range tests {
		got, ok := facets.ParseKind(tt.input)
		assert.True(t, ok, "ParseKind(%q)", tt.input)
		assert.Equal(t, tt.want, got, "ParseKind(%q)", tt.input)
	}

	_, ok := facets.ParseKind("color")
	assert.False(t, ok)
	assert.Equal(t, "ingredients", facets.Ingredient.Param())
	assert.Equal(t, "Brand", facets.Brand.Label())
}

func TestSelection(t *testing.T) {
	var s facets.Selection
	assert.True(t, s.IsEmpty())

	assert.True(t, s.Toggle(facets.Brand, "Oatly"))
	assert.True(t, s.Toggle(facets.Brand, "Alpro"))
	assert.True(t, s.Toggle(facets.Category, "Dairy"))
	assert.Equal(t, 3, s.Count())
	assert.Equal(t, []string{"Alpro", "Oatly"}, s.Values(facets.Brand))

	assert.False(t, s.Toggle(facets.Brand, "Oatly"))
	assert.False(t, s.Has(facets.Brand, "Oatly"))

	s.Add(facets.Brand, "   ")
	assert.Equal(t, 2, s.Count())
	assert.Equal(t, "brand:Alpro; category:Dairy", s.Summary())
}

func TestSelection_ToggleBlankSelectsNothing(t *testing.T) {
	var s facets.Selection
	assert.False(t, s.Toggle(facets.Brand, ""))
	assert.False(t, s.Toggle(facets.Brand, "  "))
	assert.True(t, s.IsEmpty())

	d := facets.NewDrawer(facets.DisclosureConfig{})
	assert.False(t, d.Toggle(facets.Category, "\t"))
	assert.True(t, d.Selection.IsEmpty())
}

func TestSelection_CloneIsIndependent(t *testing.T) {
	s := facets.NewSelection(map[facets.Kind][]string{
		facets.Brand:    {"Alpro"},
		facets.Category: {"Dairy"},
	})

	clone := s.Clone()
	s.Clear()
	assert.True(t, s.IsEmpty())
	assert.Equal(t, 2, clone.Count())
}

func TestNewSelection(t *testing.T) {
	s := facets.NewSelection(map[facets.Kind][]string{
		facets.Ingredient: {"Sugar", "Salt", "Sugar"},
	})
	assert.Equal(t, []string{"Salt", "Sugar"}, s.Values(facets.Ingredient))
}

func TestDisclosure_Cycle(t *testing.T) {
	d := facets.NewDisclosure(facets.DisclosureConfig{CollapsedBase: 5, Step: 50})
	const total = 120

	assert.Equal(t, 5, d.Visible(facets.Brand, total))
	assert.Equal(t, "Show 50 more", d.MoreLabel(facets.Brand, total))

	st := d.ToggleShowMore(facets.Brand, total)
	assert.Equal(t, facets.DisclosureState{Expanded: true, Reveals: 1}, st)
	assert.Equal(t, 55, d.Visible(facets.Brand, total))
	assert.Equal(t, "Show 50 more", d.MoreLabel(facets.Brand, total))

	st = d.ToggleShowMore(facets.Brand, total)
	assert.Equal(t, 2, st.Reveals)
	assert.Equal(t, 105, d.Visible(facets.Brand, total))
	assert.Equal(t, "Show 15 more", d.MoreLabel(facets.Brand, total))

	st = d.ToggleShowMore(facets.Brand, total)
	assert.Equal(t, 3, st.Reveals)
	assert.Equal(t, total, d.Visible(facets.Brand, total))
	assert.Equal(t, "Show less", d.MoreLabel(facets.Brand, total))

	st = d.ToggleShowMore(facets.Brand, total)
	assert.Equal(t, facets.DisclosureState{}, st)
	assert.Equal(t, 5, d.Visible(facets.Brand, total))
}

func TestDisclosure_NothingToReveal(t *testing.T) {
	d := facets.NewDisclosure(facets.DisclosureConfig{})
	assert.Equal(t, facets.DefaultCollapsedBase, d.Config().CollapsedBase)
	assert.Equal(t, facets.DefaultStep, d.Config().Step)

	st := d.ToggleShowMore(facets.Category, 5)
	assert.Equal(t, facets.DisclosureState{}, st)
	assert.Equal(t, 3, d.Visible(facets.Category, 3))
	assert.Empty(t, d.MoreLabel(facets.Category, 5))
}

func TestDisclosure_KindsAreIndependent(t *testing.T) {
	d := facets.NewDisclosure(facets.DisclosureConfig{CollapsedBase: 2, Step: 2})
	d.ToggleShowMore(facets.Brand, 10)
	d.ToggleShowMore(facets.Brand, 10)

	assert.Equal(t, 6, d.Visible(facets.Brand, 10))
	assert.Equal(t, 2, d.Visible(facets.Category, 10))
}

func TestDisclosure_ClosingPanelCollapses(t *testing.T) {
	d := facets.NewDisclosure(facets.DisclosureConfig{CollapsedBase: 2, Step: 2})
	assert.True(t, d.TogglePanel(facets.Brand))
	d.ToggleShowMore(facets.Brand, 10)
	assert.True(t, d.State(facets.Brand).Expanded)

	assert.False(t, d.TogglePanel(facets.Brand))
	assert.False(t, d.PanelOpen(facets.Brand))
	assert.Equal(t, facets.DisclosureState{}, d.State(facets.Brand))
}

func TestDrawer_ReopenResets(t *testing.T) {
	d := facets.NewDrawer(facets.DisclosureConfig{CollapsedBase: 5, Step: 50})
	d.SetValues(map[facets.Kind][]string{facets.Brand: values(60)})

	d.Open()
	d.TogglePanel(facets.Brand)
	d.ToggleShowMore(facets.Brand)
	d.Toggle(facets.Brand, "Value 001")
	assert.Len(t, d.VisibleValues(facets.Brand), 55)
	assert.Equal(t, "Show 5 more", d.MoreLabel(facets.Brand))

	d.Close()
	assert.False(t, d.IsOpen())
	assert.Equal(t, 1, d.Selection.Count())

	d.Open()
	assert.True(t, d.IsOpen())
	assert.True(t, d.Selection.IsEmpty())
	assert.False(t, d.Disclosure.PanelOpen(facets.Brand))
	assert.Len(t, d.VisibleValues(facets.Brand), 5)
	assert.Len(t, d.Values(facets.Brand), 60)
}

type fakeSource struct {
	resp *api.FacetsResponse
	err  error
}

func (f *fakeSource) FetchFacets(context.Context) (*api.FacetsResponse, error) {
	return f.resp, f.err
}

func TestLoader_CleansAndCaches(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()
	src := &fakeSource{resp: &api.FacetsResponse{Filters: []api.FacetGroup{
		{FilterType: "BRAND", Filters: []any{"Oatly", "oatly.", nil, 7}},
		{FilterType: "INGREDIENTS", Filters: []any{"Sugar", "Contains milk", "and"}},
		{FilterType: "INGREDIENTS", Filters: []any{"Salt"}},
		{FilterType: "COLOR", Filters: []any{"Red"}},
	}}}

	loader := facets.NewLoader(src, store, zaptest.NewLogger(t))
	listing, err := loader.Load(ctx)
	require.NoError(t, err)

	assert.False(t, listing.FromCache)
	assert.Equal(t, []string{"Oatly"}, listing.Values[facets.Brand])
	assert.Equal(t, []string{"Salt", "Sugar"}, listing.Values[facets.Ingredient])
	assert.Empty(t, listing.Values[facets.Category])
	assert.Equal(t, 3, listing.Count())

	src.err = errors.New("connection refused")
	cached, err := loader.Load(ctx)
	require.NoError(t, err)
	assert.True(t, cached.FromCache)
	assert.Equal(t, listing.Values[facets.Ingredient], cached.Values[facets.Ingredient])
}

func TestLoader_FailureWithoutCache(t *testing.T) {
	src := &fakeSource{err: errors.New("boom")}

	_, err := facets.NewLoader(src, cache.NewMemoryStore(), nil).Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	_, err = facets.NewLoader(src, nil, nil).Load(context.Background())
	assert.Error(t, err)
}
