package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/tayloree/shopcli/internal/api"
	"github.com/tayloree/shopcli/internal/display"
	"github.com/tayloree/shopcli/internal/session"
)

var favoritesCmd = &cobra.Command{
	Use:   "favorites",
	Short: "List the signed-in user's favorite products",
	Example: `  shopcli favorites
  shopcli favorites --token "$SHOPCLI_TOKEN" --json`,
	Args: cobra.NoArgs,
	RunE: runFavorites,
}

func init() {
	rootCmd.AddCommand(favoritesCmd)
}

func runFavorites(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	tok, expired := a.session.Validate(time.Now())
	if tok == nil {
		if expired {
			return loginRequiredError("your session has expired; sign in again to see favorites")
		}
		return loginRequiredError("sign in to see favorites")
	}

	favs, err := a.client.FetchFavorites(cmd.Context(), tok)
	if err != nil {
		if api.IsAuthFailure(err) {
			a.session.Clear(session.Expired)
			return loginRequiredError("the server rejected your session; sign in again to see favorites")
		}
		return upstreamError("favorites", err)
	}
	if len(favs) == 0 {
		return notFoundError(
			"no favorites saved yet",
			"Mark products as favorites in the shop, then retry.",
		)
	}

	if flagJSON {
		return display.PrintFavoritesJSON(cmd.OutOrStdout(), favs)
	}
	display.PrintFavorites(cmd.OutOrStdout(), favs)
	return nil
}
