package cmd

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/tayloree/shopcli/internal/display"
	"github.com/tayloree/shopcli/internal/reviews"
	"go.uber.org/zap"
)

var (
	flagRating  int
	flagComment string
)

var rateCmd = &cobra.Command{
	Use:   "rate ID",
	Short: "Rate a product from 1 to 5 stars",
	Long: "Submit a rating for a product. Requires a signed-in session. When the\n" +
		"ratings service is down the rating is kept on this device and shown with\n" +
		"the product's reviews.",
	Example: `  shopcli rate 42 --rating 5
  shopcli rate 42 -r 3 --comment "A bit sweet"`,
	Args: productIDArgs("shopcli rate 42 --rating 5"),
	RunE: runRate,
}

func init() {
	f := rateCmd.Flags()
	f.IntVarP(&flagRating, "rating", "r", 0, "Star rating from 1 to 5")
	f.StringVar(&flagComment, "comment", "", "Optional review text")
	rootCmd.AddCommand(rateCmd)
}

func runRate(cmd *cobra.Command, args []string) error {
	if flagRating < 1 || flagRating > 5 {
		return invalidArgsError(
			"--rating must be between 1 and 5",
			"shopcli rate "+args[0]+" --rating 5",
		)
	}

	a, err := newApp(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.session.Active() {
		return loginRequiredError("sign in to rate products")
	}

	engine := newReviewEngine(a, args[0])
	// The current set is only context for the merge after submitting.
	if _, err := engine.Load(cmd.Context()); err != nil {
		a.logger.Info("loading reviews before submit", zap.Error(err))
	}

	res, err := engine.Submit(cmd.Context(), flagRating, flagComment)
	switch {
	case errors.Is(err, reviews.ErrInvalidRating):
		return invalidArgsError(err.Error(), "shopcli rate "+args[0]+" --rating 5")
	case errors.Is(err, reviews.ErrLoginRequired):
		return loginRequiredError("your session has expired; sign in again to rate products")
	case err != nil:
		return upstreamError("rating", err)
	}

	if flagJSON {
		return display.PrintSubmitResultJSON(cmd.OutOrStdout(), res)
	}
	display.PrintSubmitResult(cmd.OutOrStdout(), res)
	return nil
}
