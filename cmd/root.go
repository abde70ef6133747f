package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/tayloree/shopcli/internal/display"
	"github.com/tayloree/shopcli/internal/facets"
	"github.com/tayloree/shopcli/internal/search"
)

var (
	flagQuery        string
	flagBrand        []string
	flagCategory     []string
	flagManufacturer []string
	flagIngredient   []string
	flagLimit        int
	flagToken        string
	flagConfig       string
	flagJSON         bool
	flagVerbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "shopcli",
	Short: "Search the product catalog and its filters",
	Long: "CLI tool that searches the product catalog with cleaned brand, category,\n" +
		"manufacturer and ingredient filters, resolves products and manages ratings.\n" +
		"Searches run signed in when a token is available and fall back to guest search.\n\n" +
		"Agent-friendly mode: minor syntax issues are auto-corrected when intent is clear " +
		"(for example: -query oat, query=oat, --qeury oat).",
	Example: `  shopcli --query granola
  shopcli --query granola --brand Oatly --brand "Bob's Red Mill"
  shopcli --category Snacks --limit 10 --json
  shopcli facets --kind brand --match oat
  shopcli product 42
  shopcli rate 42 --rating 5 --comment "Great"`,
	Args: cobra.NoArgs,
	RunE: runSearch,
}

func init() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagToken, "token", "", "Session token (overrides SHOPCLI_TOKEN and the token file)")
	pf.StringVar(&flagConfig, "config", "", "Config file (default ~/.shopcli/config.toml)")
	pf.BoolVar(&flagJSON, "json", false, "Output as JSON")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "Log debug output to stderr")

	registerSearchFlags(rootCmd.Flags())
}

// Execute runs the root command.
func Execute() {
	os.Exit(runCLI(os.Args[1:], os.Stdout, os.Stderr))
}

func runCLI(args []string, stdout, stderr io.Writer) int {
	resetCLIState()

	normalizedArgs, notes := normalizeCLIArgs(args)
	for _, note := range notes {
		fmt.Fprintf(stderr, "note: %s\n", note)
	}

	if len(normalizedArgs) == 0 {
		if err := printQuickStart(stdout, !isTTY(stdout)); err != nil {
			cliErr := classifyCLIError(err)
			fmt.Fprintln(stderr, formatCLIErrorText(cliErr))
			return cliErr.ExitCode
		}
		return ExitSuccess
	}

	if shouldAutoJSON(normalizedArgs, isTTY(stdout)) {
		normalizedArgs = append(normalizedArgs, "--json")
	}

	setCommandIO(rootCmd, stdout, stderr)
	rootCmd.SetArgs(normalizedArgs)

	if err := rootCmd.Execute(); err != nil {
		cliErr := classifyCLIError(err)
		if hasJSONPreference(normalizedArgs) {
			if jerr := printCLIErrorJSON(stderr, cliErr); jerr != nil {
				fmt.Fprintln(stderr, formatCLIErrorText(classifyCLIError(jerr)))
				return ExitInternal
			}
		} else {
			fmt.Fprintln(stderr, formatCLIErrorText(cliErr))
		}
		return cliErr.ExitCode
	}
	return ExitSuccess
}

func setCommandIO(cmd *cobra.Command, stdout, stderr io.Writer) {
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	for _, child := range cmd.Commands() {
		setCommandIO(child, stdout, stderr)
	}
}

func resetCLIState() {
	flagQuery = ""
	flagBrand = nil
	flagCategory = nil
	flagManufacturer = nil
	flagIngredient = nil
	flagLimit = 0
	flagToken = ""
	flagConfig = ""
	flagJSON = false
	flagVerbose = false
	flagFacetKinds = nil
	flagFacetMatch = ""
	flagFacetExplain = false
	flagProductName = ""
	flagRating = 0
	flagComment = ""

	// Slice flags append to their current value, so the pflag state has to be
	// cleared along with the variables between in-process runs.
	resetFlagSet(rootCmd.Flags())
	for _, child := range rootCmd.Commands() {
		resetFlagSet(child.Flags())
	}
}

func resetFlagSet(fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		}
		f.Changed = false
	})
}

func registerSearchFlags(f *pflag.FlagSet) {
	f.StringVarP(&flagQuery, "query", "q", "", "Free-text search term")
	f.StringArrayVarP(&flagBrand, "brand", "b", nil, "Filter by brand (repeatable)")
	f.StringArrayVarP(&flagCategory, "category", "c", nil, "Filter by category (repeatable)")
	f.StringArrayVarP(&flagManufacturer, "manufacturer", "m", nil, "Filter by manufacturer (repeatable)")
	f.StringArrayVarP(&flagIngredient, "ingredient", "i", nil, "Filter by ingredient (repeatable)")
	f.IntVarP(&flagLimit, "limit", "n", 0, "Limit number of results (0 = all)")
}

// selectionFromFlags builds the facet selection from the repeatable filter
// flags. Values are kept raw; the query builder cleans them.
func selectionFromFlags() facets.Selection {
	return facets.NewSelection(map[facets.Kind][]string{
		facets.Brand:        flagBrand,
		facets.Category:     flagCategory,
		facets.Manufacturer: flagManufacturer,
		facets.Ingredient:   flagIngredient,
	})
}

func validateLimit() error {
	if flagLimit < 0 {
		return invalidArgsError(
			"--limit must be zero or positive",
			"shopcli --query granola --limit 10",
		)
	}
	return nil
}

func runSearch(cmd *cobra.Command, _ []string) error {
	if err := validateLimit(); err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	searcher := search.New(a.client, a.session, search.WithLogger(a.logger.Named("search")))
	req := search.Request{
		FreeText: flagQuery,
		Facets:   selectionFromFlags(),
	}

	if strings.TrimSpace(req.FreeText) == "" && req.Facets.IsEmpty() {
		if _, err := searcher.LoadCatalog(cmd.Context()); err != nil {
			return upstreamError("catalog", err)
		}
	}

	res, err := searcher.Search(cmd.Context(), req)
	if err != nil {
		return upstreamError("search", err)
	}

	if len(res.Products) == 0 {
		return notFoundError(
			"no products match your search",
			"Relax filters like --brand/--category/--ingredient.",
			"shopcli facets to list valid filter values.",
		)
	}

	if flagJSON {
		return display.PrintSearchJSON(cmd.OutOrStdout(), res, flagLimit)
	}
	display.PrintSearch(cmd.OutOrStdout(), res, flagLimit)
	return nil
}
