package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tayloree/shopcli/internal/display"
	"github.com/tayloree/shopcli/internal/resolver"
)

var flagProductName string

var productCmd = &cobra.Command{
	Use:   "product ID",
	Short: "Show one product, reconciled across the catalog, favorites and the local cache",
	Long: "Resolve a product id to its details. When the catalog cannot answer, the\n" +
		"product is assembled from the last viewed product, the favorites list and\n" +
		"any --name passed in by the caller.",
	Example: `  shopcli product 42
  shopcli product 42 --name "Oat Milk" --json`,
	Args: productIDArgs("shopcli product 42"),
	RunE: runProduct,
}

func init() {
	productCmd.Flags().StringVar(&flagProductName, "name", "", "Product name already known to the caller")
	rootCmd.AddCommand(productCmd)
}

// productIDArgs requires exactly one non-blank product id.
func productIDArgs(example string) cobra.PositionalArgs {
	return func(_ *cobra.Command, args []string) error {
		if len(args) != 1 || resolver.NormalizeID(args[0]) == "" {
			return invalidArgsError("a single product ID is required", example)
		}
		return nil
	}
}

func runProduct(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	var rc resolver.Context
	if name := strings.TrimSpace(flagProductName); name != "" {
		rc.Inbound = &resolver.ProductRef{ExternalID: args[0], Name: name}
	}

	res, err := resolver.New(a.client, a.store, a.session, a.logger.Named("resolver")).
		Resolve(cmd.Context(), args[0], rc)
	if err != nil {
		var nf *resolver.NotFoundError
		if errors.As(err, &nf) {
			suggestions := []string{"shopcli --query " + args[0]}
			if nf.Reason == resolver.ReasonUnauthorized {
				suggestions = append(suggestions, "Sign in and retry: shopcli --token TOKEN product "+args[0])
			}
			return notFoundError(fmt.Sprintf("product %s not found (%s)", nf.ID, nf.Reason), suggestions...)
		}
		return upstreamError("product", err)
	}

	if flagJSON {
		return display.PrintResolutionJSON(cmd.OutOrStdout(), res)
	}
	display.PrintResolution(cmd.OutOrStdout(), res)
	return nil
}
