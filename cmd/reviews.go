package cmd

import (
	"github.com/spf13/cobra"
	"github.com/tayloree/shopcli/internal/display"
	"github.com/tayloree/shopcli/internal/resolver"
	"github.com/tayloree/shopcli/internal/reviews"
)

var reviewsCmd = &cobra.Command{
	Use:   "reviews ID",
	Short: "Show a product's reviews and rating summary",
	Example: `  shopcli reviews 42
  shopcli reviews 42 --json`,
	Args: productIDArgs("shopcli reviews 42"),
	RunE: runReviews,
}

func init() {
	rootCmd.AddCommand(reviewsCmd)
}

func newReviewEngine(a *app, rawID string) *reviews.Engine {
	return reviews.NewEngine(
		resolver.NormalizeID(rawID),
		a.client,
		a.store,
		a.session,
		reviews.WithLogger(a.logger.Named("reviews")),
	)
}

func runReviews(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	snap, err := newReviewEngine(a, args[0]).Load(cmd.Context())
	if err != nil {
		return upstreamError("reviews", err)
	}

	if flagJSON {
		return display.PrintReviewsJSON(cmd.OutOrStdout(), snap)
	}
	display.PrintReviews(cmd.OutOrStdout(), snap)
	return nil
}
