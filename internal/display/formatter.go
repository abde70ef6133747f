package display

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/tayloree/shopcli/internal/api"
	"github.com/tayloree/shopcli/internal/facets"
	"github.com/tayloree/shopcli/internal/filter"
	"github.com/tayloree/shopcli/internal/resolver"
	"github.com/tayloree/shopcli/internal/reviews"
	"github.com/tayloree/shopcli/internal/search"
)

// Styles for terminal output.
var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	localTag     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("5")) // magenta
	starStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))            // yellow
	brandStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))            // green
	dimStyle     = lipgloss.NewStyle().Faint(true)
	cyanStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
)

// ProductJSON is the JSON output shape for a product.
type ProductJSON struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Brand        string   `json:"brand"`
	Manufacturer string   `json:"manufacturer"`
	Category     string   `json:"category"`
	Ingredients  []string `json:"ingredients"`
	Description  string   `json:"description,omitempty"`
	ImageURL     string   `json:"imageUrl,omitempty"`
}

// SearchJSON is the JSON output shape for a search result.
type SearchJSON struct {
	Mode     string        `json:"mode"`
	Count    int           `json:"count"`
	Notices  []string      `json:"notices"`
	Products []ProductJSON `json:"products"`
}

// FavoriteJSON is the JSON output shape for a favorite.
type FavoriteJSON struct {
	ID           string `json:"id"`
	ProductID    string `json:"productId"`
	Name         string `json:"name"`
	Brand        string `json:"brand"`
	Manufacturer string `json:"manufacturer"`
}

// ResolutionJSON is the JSON output shape for a resolved product.
type ResolutionJSON struct {
	Product       resolver.ProductRef `json:"product"`
	Authoritative bool                `json:"authoritative"`
	Sources       []resolver.Source   `json:"sources"`
}

// PrintSearch renders a search result to the writer. limit <= 0 shows all.
func PrintSearch(w io.Writer, res *search.Result, limit int) {
	products := res.Products
	if limit > 0 && len(products) > limit {
		products = products[:limit]
	}

	fmt.Fprintf(w, "\n%s (%s) — %s\n\n",
		headerStyle.Render("Products"),
		res.Mode,
		cyanStyle.Render(fmt.Sprintf("%d items", len(res.Products))),
	)
	for _, n := range res.Notices {
		PrintWarning(w, "  "+n)
	}
	if len(res.Notices) > 0 {
		fmt.Fprintln(w)
	}

	for _, p := range products {
		printProduct(w, p)
		fmt.Fprintln(w)
	}
	if hidden := len(res.Products) - len(products); hidden > 0 {
		fmt.Fprintf(w, "  %s\n\n", dimStyle.Render(fmt.Sprintf("… %d more (raise --limit)", hidden)))
	}
}

// PrintSearchJSON renders a search result as JSON.
func PrintSearchJSON(w io.Writer, res *search.Result, limit int) error {
	products := res.Products
	if limit > 0 && len(products) > limit {
		products = products[:limit]
	}
	out := SearchJSON{
		Mode:     string(res.Mode),
		Count:    len(products),
		Notices:  res.Notices,
		Products: make([]ProductJSON, 0, len(products)),
	}
	if out.Notices == nil {
		out.Notices = []string{}
	}
	for _, p := range products {
		out.Products = append(out.Products, toProductJSON(p))
	}
	return json.NewEncoder(w).Encode(out)
}

// PrintFacets renders a facet listing, one block per kind.
func PrintFacets(w io.Writer, listing *facets.Listing, kinds []facets.Kind) {
	fmt.Fprintf(w, "\n%s\n", titleStyle.Render("Filters"))
	if listing.FromCache {
		PrintWarning(w, "  facets service unavailable; showing cached listing")
	}
	for _, kind := range kinds {
		values := listing.Values[kind]
		fmt.Fprintf(w, "\n  %s %s\n", cyanStyle.Render(kind.Label()), dimStyle.Render(fmt.Sprintf("(%d)", len(values))))
		for _, v := range values {
			fmt.Fprintf(w, "    %s\n", v)
		}
	}
	fmt.Fprintln(w)
}

// PrintFacetsJSON renders a facet listing as JSON keyed by query parameter.
func PrintFacetsJSON(w io.Writer, listing *facets.Listing, kinds []facets.Kind) error {
	out := make(map[string][]string, len(kinds))
	for _, kind := range kinds {
		values := listing.Values[kind]
		if values == nil {
			values = []string{}
		}
		out[kind.Param()] = values
	}
	return json.NewEncoder(w).Encode(out)
}

// ExplainJSON is the JSON output shape of a normalizer verdict.
type ExplainJSON struct {
	Input    string `json:"input"`
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

// PrintExplain renders why each input would be kept or dropped.
func PrintExplain(w io.Writer, inputs []string) {
	for _, in := range inputs {
		if reason, rejected := filter.Explain(in); rejected {
			fmt.Fprintf(w, "  %s %q: %s\n", errorStyle.Render("drop"), in, reason)
			continue
		}
		fmt.Fprintf(w, "  %s %q\n", brandStyle.Render("keep"), in)
	}
}

// PrintExplainJSON renders normalizer verdicts as JSON.
func PrintExplainJSON(w io.Writer, inputs []string) error {
	out := make([]ExplainJSON, 0, len(inputs))
	for _, in := range inputs {
		reason, rejected := filter.Explain(in)
		out = append(out, ExplainJSON{Input: in, Accepted: !rejected, Reason: reason})
	}
	return json.NewEncoder(w).Encode(out)
}

// PrintFavorites renders the favorites list.
func PrintFavorites(w io.Writer, favs []api.Favorite) {
	fmt.Fprintf(w, "\n%s — %s\n\n",
		headerStyle.Render("Favorites"),
		cyanStyle.Render(fmt.Sprintf("%d items", len(favs))),
	)
	for _, f := range favs {
		id := f.ItemID
		if id == "" {
			id = f.ID
		}
		fmt.Fprintf(w, "  %s  %s\n", cyanStyle.Render("#"+id.String()), titleStyle.Render(fallback(f.Name, "Unnamed product")))
		if meta := joinNonEmpty(" | ", f.Brand, f.Manufacturer); meta != "" {
			fmt.Fprintf(w, "        %s\n", dimStyle.Render(meta))
		}
	}
	fmt.Fprintln(w)
}

// PrintFavoritesJSON renders favorites as JSON.
func PrintFavoritesJSON(w io.Writer, favs []api.Favorite) error {
	out := make([]FavoriteJSON, 0, len(favs))
	for _, f := range favs {
		out = append(out, FavoriteJSON{
			ID:           f.ID.String(),
			ProductID:    f.ItemID.String(),
			Name:         f.Name,
			Brand:        f.Brand,
			Manufacturer: f.Manufacturer,
		})
	}
	return json.NewEncoder(w).Encode(out)
}

// PrintResolution renders a resolved product.
func PrintResolution(w io.Writer, res *resolver.Resolution) {
	p := res.Product
	fmt.Fprintf(w, "\n  %s\n", titleStyle.Render(fallback(p.Name, "Unknown product")))
	if meta := joinNonEmpty(" | ", p.Brand, p.Manufacturer, p.Category); meta != "" {
		fmt.Fprintf(w, "    %s\n", brandStyle.Render(meta))
	}
	fmt.Fprintf(w, "    %s\n", dimStyle.Render("id "+p.NormalizedID))
	if !res.Authoritative {
		sources := make([]string, 0, len(res.Sources))
		for _, s := range res.Sources {
			sources = append(sources, string(s))
		}
		PrintWarning(w, "    live product data unavailable; assembled from "+strings.Join(sources, ", "))
	}
	fmt.Fprintln(w)
}

// PrintResolutionJSON renders a resolved product as JSON.
func PrintResolutionJSON(w io.Writer, res *resolver.Resolution) error {
	sources := res.Sources
	if sources == nil {
		sources = []resolver.Source{}
	}
	return json.NewEncoder(w).Encode(ResolutionJSON{
		Product:       res.Product,
		Authoritative: res.Authoritative,
		Sources:       sources,
	})
}

// PrintReviews renders a review snapshot with its summary.
func PrintReviews(w io.Writer, snap *reviews.Snapshot) {
	s := snap.Summary
	fmt.Fprintf(w, "\n%s — %s %s\n",
		headerStyle.Render("Reviews"),
		starStyle.Render(fmt.Sprintf("%.1f★", s.RoundedAverage())),
		cyanStyle.Render(fmt.Sprintf("(%d ratings)", s.TotalRatings)),
	)
	if snap.Degraded {
		PrintWarning(w, "  ratings service unavailable; showing saved reviews")
	}
	for star := 5; star >= 1; star-- {
		fmt.Fprintf(w, "  %d %s %d\n", star, starStyle.Render(strings.Repeat("▇", min(s.Distribution[star], 40))), s.Distribution[star])
	}
	fmt.Fprintln(w)

	for _, r := range snap.Reviews {
		printReview(w, r)
	}
}

// PrintReviewsJSON renders a review snapshot as JSON.
func PrintReviewsJSON(w io.Writer, snap *reviews.Snapshot) error {
	out := *snap
	if out.Reviews == nil {
		out.Reviews = []reviews.Review{}
	}
	return json.NewEncoder(w).Encode(out)
}

// PrintSubmitResult renders the outcome of a rating submission.
func PrintSubmitResult(w io.Writer, res *reviews.SubmitResult) {
	switch res.Outcome {
	case reviews.OutcomeLocalOnly:
		PrintWarning(w, fmt.Sprintf("Saved your %d★ rating on this device; it will be sent when the ratings service accepts it.", res.Review.Rating))
	default:
		fmt.Fprintln(w, brandStyle.Render(fmt.Sprintf("Thanks! Your %d★ rating was submitted.", res.Review.Rating)))
	}
	s := res.Snapshot.Summary
	fmt.Fprintf(w, "%s\n", dimStyle.Render(fmt.Sprintf("Now %.1f★ from %d ratings", s.RoundedAverage(), s.TotalRatings)))
}

// PrintSubmitResultJSON renders a submission outcome as JSON.
func PrintSubmitResultJSON(w io.Writer, res *reviews.SubmitResult) error {
	return json.NewEncoder(w).Encode(res)
}

// PrintError prints a styled error message.
func PrintError(w io.Writer, msg string) {
	fmt.Fprintln(w, errorStyle.Render(msg))
}

// PrintWarning prints a styled warning message.
func PrintWarning(w io.Writer, msg string) {
	fmt.Fprintln(w, warningStyle.Render(msg))
}

func printProduct(w io.Writer, p api.Product) {
	name := filter.CleanText(p.Name)
	if name == "" {
		name = "Unknown"
	}
	fmt.Fprintf(w, "  %s  %s\n", cyanStyle.Render("#"+p.ID.String()), titleStyle.Render(name))

	if meta := joinNonEmpty(" | ", filter.CleanText(p.Brand), filter.CleanText(p.Manufacturer)); meta != "" {
		fmt.Fprintf(w, "    %s\n", brandStyle.Render(meta))
	}
	if desc := filter.CleanText(p.Description); desc != "" {
		fmt.Fprintf(w, "    %s\n", dimStyle.Render(wordWrap(desc, 72, "    ")))
	}
	if cat := filter.CleanText(p.Category); cat != "" {
		fmt.Fprintf(w, "    %s\n", dimStyle.Render(cat))
	}
}

func printReview(w io.Writer, r reviews.Review) {
	tag := ""
	if r.IsLocalOnly {
		tag = localTag.Render("LOCAL") + " "
	}
	fmt.Fprintf(w, "  %s%s %s  %s\n",
		tag,
		starStyle.Render(strings.Repeat("★", r.Rating)+strings.Repeat("☆", 5-r.Rating)),
		titleStyle.Render(r.AuthorLabel),
		dimStyle.Render(r.CreatedAt.Format("2006-01-02")),
	)
	if c := filter.CleanText(filter.Deref(r.Comment)); c != "" {
		fmt.Fprintf(w, "    %s\n", wordWrap(c, 72, "    "))
	}
	fmt.Fprintln(w)
}

func toProductJSON(p api.Product) ProductJSON {
	ingredients := p.Ingredients
	if ingredients == nil {
		ingredients = []string{}
	}
	return ProductJSON{
		ID:           p.ID.String(),
		Name:         filter.CleanText(p.Name),
		Brand:        filter.CleanText(p.Brand),
		Manufacturer: filter.CleanText(p.Manufacturer),
		Category:     filter.CleanText(p.Category),
		Ingredients:  ingredients,
		Description:  filter.CleanText(p.Description),
		ImageURL:     p.ImageURL,
	}
}

func fallback(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func joinNonEmpty(sep string, parts ...string) string {
	var kept []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

func wordWrap(text string, width int, indent string) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}

	var lines []string
	line := words[0]
	for _, w := range words[1:] {
		if len(line)+1+len(w) > width {
			lines = append(lines, line)
			line = w
		} else {
			line += " " + w
		}
	}
	lines = append(lines, line)
	return strings.Join(lines, "\n"+indent)
}
