package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/spf13/cobra"
	"github.com/tayloree/shopcli/internal/display"
	"github.com/tayloree/shopcli/internal/facets"
)

var (
	flagFacetKinds   []string
	flagFacetMatch   string
	flagFacetExplain bool
)

var facetsCmd = &cobra.Command{
	Use:   "facets [VALUE...]",
	Short: "List the cleaned filter values for brands, categories, manufacturers and ingredients",
	Long: "List the filter values the search accepts, after cleaning and deduplication.\n" +
		"With --explain, report for each VALUE whether the cleaner keeps or drops it.",
	Example: `  shopcli facets
  shopcli facets --kind brand --match oat
  shopcli facets -k ingredient -k category --json
  shopcli facets --explain "Contains milk" "Sea Salt."`,
	RunE: runFacets,
}

func init() {
	f := facetsCmd.Flags()
	f.StringArrayVarP(&flagFacetKinds, "kind", "k", nil, "Restrict to a facet kind: brand, category, manufacturer, ingredient (repeatable)")
	f.StringVar(&flagFacetMatch, "match", "", "Keep values that fuzzy-match this text, best match first")
	f.BoolVar(&flagFacetExplain, "explain", false, "Explain why each VALUE argument is kept or dropped")
	rootCmd.AddCommand(facetsCmd)
}

func runFacets(cmd *cobra.Command, args []string) error {
	if flagFacetExplain {
		if len(args) == 0 {
			return invalidArgsError(
				"--explain needs at least one value",
				`shopcli facets --explain "Contains milk"`,
			)
		}
		if flagJSON {
			return display.PrintExplainJSON(cmd.OutOrStdout(), args)
		}
		display.PrintExplain(cmd.OutOrStdout(), args)
		return nil
	}
	if len(args) > 0 {
		return invalidArgsError(
			fmt.Sprintf("unexpected argument %q", args[0]),
			"shopcli facets --match "+args[0],
			"shopcli facets --explain "+args[0],
		)
	}

	kinds, err := parseFacetKinds(flagFacetKinds)
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	listing, err := facets.NewLoader(a.client, a.store, a.logger.Named("facets")).Load(cmd.Context())
	if err != nil {
		return upstreamError("facets", err)
	}

	if match := strings.TrimSpace(flagFacetMatch); match != "" {
		listing = matchListing(listing, kinds, match)
		if listing.Count() == 0 {
			return notFoundError(
				fmt.Sprintf("no facet values match %q", match),
				"Try a shorter --match text.",
				"shopcli facets --kind brand",
			)
		}
	}

	if flagJSON {
		return display.PrintFacetsJSON(cmd.OutOrStdout(), listing, kinds)
	}
	display.PrintFacets(cmd.OutOrStdout(), listing, kinds)
	return nil
}

func parseFacetKinds(raw []string) ([]facets.Kind, error) {
	if len(raw) == 0 {
		return facets.Kinds, nil
	}
	seen := make(map[facets.Kind]bool, len(raw))
	kinds := make([]facets.Kind, 0, len(raw))
	for _, r := range raw {
		for _, part := range strings.Split(r, ",") {
			kind, ok := facets.ParseKind(part)
			if !ok {
				return nil, invalidArgsError(
					fmt.Sprintf("unknown facet kind %q (use brand, category, manufacturer, or ingredient)", strings.TrimSpace(part)),
					"shopcli facets --kind brand",
				)
			}
			if !seen[kind] {
				seen[kind] = true
				kinds = append(kinds, kind)
			}
		}
	}
	// Keep display order stable regardless of flag order.
	sort.SliceStable(kinds, func(i, j int) bool { return kindIndex(kinds[i]) < kindIndex(kinds[j]) })
	return kinds, nil
}

func kindIndex(kind facets.Kind) int {
	for i, k := range facets.Kinds {
		if k == kind {
			return i
		}
	}
	return len(facets.Kinds)
}

// matchListing keeps the values of kinds that fuzzy-match text, ordered by
// match distance and then by their listing order.
func matchListing(listing *facets.Listing, kinds []facets.Kind, text string) *facets.Listing {
	out := &facets.Listing{
		Values:    make(map[facets.Kind][]string, len(kinds)),
		FromCache: listing.FromCache,
	}
	for _, kind := range kinds {
		ranks := fuzzy.RankFindNormalizedFold(text, listing.Values[kind])
		sort.SliceStable(ranks, func(i, j int) bool {
			if ranks[i].Distance != ranks[j].Distance {
				return ranks[i].Distance < ranks[j].Distance
			}
			return ranks[i].OriginalIndex < ranks[j].OriginalIndex
		})
		values := make([]string, 0, len(ranks))
		for _, r := range ranks {
			values = append(values, r.Target)
		}
		out.Values[kind] = values
	}
	return out
}
