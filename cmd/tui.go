package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/tayloree/shopcli/internal/facets"
	"github.com/tayloree/shopcli/internal/resolver"
	"github.com/tayloree/shopcli/internal/reviews"
	"github.com/tayloree/shopcli/internal/search"
	"github.com/tayloree/shopcli/internal/session"
	"go.uber.org/zap"
	"golang.org/x/term"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Browse the catalog interactively with a filter drawer",
	Long: "Interactive catalog browser: search as you type, narrow results with the\n" +
		"brand, category, manufacturer and ingredient drawer, and open a product for\n" +
		"live details and reviews. Signing in or out in another shell (by writing or\n" +
		"removing the token file) takes effect immediately.",
	Example: `  shopcli tui
  shopcli tui --query granola --brand Oatly`,
	Args: cobra.NoArgs,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
	registerSearchFlags(tuiCmd.Flags())
}

func runTUI(cmd *cobra.Command, _ []string) error {
	if err := validateLimit(); err != nil {
		return err
	}
	if !flagJSON && !isInteractiveSession(cmd.InOrStdin(), cmd.OutOrStdout()) {
		return invalidArgsError(
			"`shopcli tui` requires an interactive terminal",
			"Use `shopcli --query granola --json` in pipelines.",
		)
	}
	if flagJSON {
		// Robot mode gets the same first page the TUI would open with.
		return runSearch(cmd, nil)
	}

	a, err := newApp(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Log lines would tear the alternate screen; only --verbose keeps them.
	logger := zap.NewNop()
	if flagVerbose {
		logger = a.logger
	}

	if path := a.cfg.TokenFilePath(); path != "" && flagToken == "" {
		fw, err := session.NewFileWatcher(path, a.session, logger.Named("session"))
		if err != nil {
			a.logger.Warn("token file watch disabled", zap.Error(err))
		} else {
			defer fw.Close()
			go fw.Run(ctx)
		}
	}

	deps := tuiDeps{
		ctx:      ctx,
		searcher: search.New(a.client, a.session, search.WithLogger(logger.Named("search"))),
		facets:   facets.NewLoader(a.client, a.store, logger.Named("facets")),
		resolver: resolver.New(a.client, a.store, a.session, logger.Named("resolver")),
		reviews: func(productID string) *reviews.Engine {
			return reviews.NewEngine(productID, a.client, a.store, a.session, reviews.WithLogger(logger.Named("reviews")))
		},
		drawer: facets.DisclosureConfig{
			CollapsedBase: a.cfg.Facets.CollapsedBase,
			Step:          a.cfg.Facets.Step,
		},
		initial: search.Request{
			FreeText: flagQuery,
			Facets:   selectionFromFlags(),
		},
		limit:    flagLimit,
		signedIn: a.session.Active,
	}

	program := tea.NewProgram(
		newLoadingShopTUIModel(deps),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
		tea.WithInput(cmd.InOrStdin()),
		tea.WithOutput(cmd.OutOrStdout()),
	)
	unsubscribe := a.session.Subscribe(func(e session.Event) {
		program.Send(tuiSessionMsg{event: e})
	})
	defer unsubscribe()

	final, err := program.Run()
	if err != nil {
		return fmt.Errorf("running tui: %w", err)
	}
	if m, ok := final.(shopTUIModel); ok && m.fatalErr != nil {
		return upstreamError("catalog", m.fatalErr)
	}
	return nil
}

func isInteractiveSession(stdin io.Reader, stdout io.Writer) bool {
	inputFile, ok := stdin.(*os.File)
	if !ok {
		return false
	}
	if !term.IsTerminal(int(inputFile.Fd())) {
		return false
	}
	return isTTY(stdout)
}
