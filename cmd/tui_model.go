package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/tayloree/shopcli/internal/api"
	"github.com/tayloree/shopcli/internal/facets"
	"github.com/tayloree/shopcli/internal/filter"
	"github.com/tayloree/shopcli/internal/resolver"
	"github.com/tayloree/shopcli/internal/reviews"
	"github.com/tayloree/shopcli/internal/search"
	"github.com/tayloree/shopcli/internal/sequence"
	"github.com/tayloree/shopcli/internal/session"
)

const (
	minTUIWidth    = 92
	minTUIHeight   = 20
	tuiDrawerWidth = 34
	tuiSearchDelay = 250 * time.Millisecond
	tuiMaxReviews  = 5
)

var (
	tuiHeaderStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	tuiMetaStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	tuiHintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	tuiValueStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229"))
	tuiLocalStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	tuiTitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229"))
	tuiMutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	tuiSectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))
	tuiCursorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	tuiStatusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// tuiDeps is everything the model reaches outside itself for.
type tuiDeps struct {
	ctx      context.Context
	searcher *search.Searcher
	facets   *facets.Loader
	resolver *resolver.Resolver
	reviews  func(productID string) *reviews.Engine
	drawer   facets.DisclosureConfig
	initial  search.Request
	limit    int
	signedIn func() bool
}

type tuiCatalogLoadedMsg struct {
	products []api.Product
}

type tuiCatalogErrMsg struct {
	err error
}

type tuiFacetsLoadedMsg struct {
	listing *facets.Listing
	err     error
}

type tuiSearchTickMsg struct {
	seq sequence.Token
}

type tuiSearchMsg struct {
	seq sequence.Token
	res *search.Result
	err error
}

type tuiProductMsg struct {
	seq sequence.Token
	res *resolver.Resolution
	err error
}

type tuiReviewsMsg struct {
	seq  sequence.Token
	snap *reviews.Snapshot
	err  error
}

type tuiSessionMsg struct {
	event session.Event
}

type tuiFocus int

const (
	tuiFocusResults tuiFocus = iota
	tuiFocusDetail
	tuiFocusFacets
	tuiFocusSearch
)

func (f tuiFocus) String() string {
	switch f {
	case tuiFocusDetail:
		return "detail"
	case tuiFocusFacets:
		return "filters"
	case tuiFocusSearch:
		return "search"
	default:
		return "results"
	}
}

type tuiProductItem struct {
	product     api.Product
	title       string
	description string
	filterValue string
}

func (p tuiProductItem) FilterValue() string { return p.filterValue }
func (p tuiProductItem) Title() string       { return p.title }
func (p tuiProductItem) Description() string { return p.description }

type tuiRowKind int

const (
	tuiRowHeader tuiRowKind = iota
	tuiRowValue
	tuiRowMore
)

// tuiFacetRow is one line of the facet drawer.
type tuiFacetRow struct {
	kind  facets.Kind
	row   tuiRowKind
	value string
}

type shopTUIModel struct {
	deps     tuiDeps
	loading  bool
	spinner  spinner.Model
	fatalErr error

	input  textinput.Model
	list   list.Model
	detail viewport.Model

	drawer *facets.Drawer
	rows   []tuiFacetRow
	cursor int

	searchGuard *sequence.Guard
	detailGuard *sequence.Guard
	searching   bool
	result      *search.Result

	opened     *api.Product
	resolution *resolver.Resolution
	snapshot   *reviews.Snapshot
	detailErr  error

	status   string
	focus    tuiFocus
	showHelp bool

	width, height   int
	bodyHeight      int
	drawerPaneWidth int
	listPaneWidth   int
	detailPaneWidth int
	tooSmall        bool
}

func newLoadingShopTUIModel(deps tuiDeps) shopTUIModel {
	delegate := list.NewDefaultDelegate()
	delegate.SetHeight(2)
	delegate.SetSpacing(1)

	lst := list.New([]list.Item{}, delegate, 0, 0)
	lst.Title = "Products"
	lst.SetStatusBarItemName("product", "products")
	lst.SetShowStatusBar(true)
	lst.SetFilteringEnabled(false)
	lst.SetShowHelp(false)
	lst.SetShowPagination(true)
	lst.DisableQuitKeybindings()

	detail := viewport.New(0, 0)
	detail.KeyMap.PageDown.SetKeys("f", "pgdown")
	detail.KeyMap.PageUp.SetKeys("b", "pgup")
	detail.KeyMap.HalfPageDown.SetKeys("d")
	detail.KeyMap.HalfPageUp.SetKeys("u")

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))

	input := textinput.New()
	input.Prompt = "search: "
	input.Placeholder = "type to search, enter to run now"
	input.CharLimit = 120
	input.SetValue(deps.initial.FreeText)

	drawer := facets.NewDrawer(deps.drawer)
	if !deps.initial.Facets.IsEmpty() {
		drawer.Open()
		drawer.Selection = deps.initial.Facets.Clone()
		for _, kind := range facets.Kinds {
			if len(drawer.Selection.Values(kind)) > 0 {
				drawer.TogglePanel(kind)
			}
		}
	}

	m := shopTUIModel{
		deps:        deps,
		loading:     true,
		spinner:     spin,
		input:       input,
		list:        lst,
		detail:      detail,
		drawer:      drawer,
		searchGuard: &sequence.Guard{},
		detailGuard: &sequence.Guard{},
		focus:       tuiFocusResults,
	}
	if drawer.IsOpen() {
		m.focus = tuiFocusFacets
	}
	m.rebuildRows()
	return m
}

func loadTUICatalogCmd(deps tuiDeps) tea.Cmd {
	return func() tea.Msg {
		products, err := deps.searcher.LoadCatalog(deps.ctx)
		if err != nil {
			return tuiCatalogErrMsg{err: err}
		}
		return tuiCatalogLoadedMsg{products: products}
	}
}

func loadTUIFacetsCmd(deps tuiDeps) tea.Cmd {
	return func() tea.Msg {
		listing, err := deps.facets.Load(deps.ctx)
		return tuiFacetsLoadedMsg{listing: listing, err: err}
	}
}

func tuiSearchCmd(deps tuiDeps, seq sequence.Token, req search.Request) tea.Cmd {
	return func() tea.Msg {
		res, err := deps.searcher.Search(deps.ctx, req)
		return tuiSearchMsg{seq: seq, res: res, err: err}
	}
}

func (m shopTUIModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, loadTUICatalogCmd(m.deps), loadTUIFacetsCmd(m.deps))
}

func (m shopTUIModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case tuiCatalogLoadedMsg:
		m.loading = false
		m.setResult(&search.Result{Products: msg.products, Mode: search.ModeCatalog})
		m.resize()
		if m.hasQuery() {
			return m, m.searchNow()
		}
		return m, nil

	case tuiCatalogErrMsg:
		m.loading = false
		m.fatalErr = msg.err
		return m, tea.Quit

	case tuiFacetsLoadedMsg:
		if msg.err != nil {
			m.status = "Filters unavailable: " + msg.err.Error()
			return m, nil
		}
		m.drawer.SetValues(msg.listing.Values)
		if msg.listing.FromCache {
			m.status = "Filter service unavailable; showing saved filters."
		}
		m.rebuildRows()
		return m, nil

	case tuiSearchTickMsg:
		if !m.searchGuard.IsCurrent(msg.seq) {
			return m, nil
		}
		m.searching = true
		return m, tuiSearchCmd(m.deps, msg.seq, m.request())

	case tuiSearchMsg:
		if !m.searchGuard.IsCurrent(msg.seq) || errors.Is(msg.err, sequence.ErrSuperseded) {
			return m, nil
		}
		m.searching = false
		if msg.err != nil {
			m.status = "Search failed: " + msg.err.Error()
			return m, nil
		}
		m.setResult(msg.res)
		return m, nil

	case tuiProductMsg:
		if !m.detailGuard.IsCurrent(msg.seq) || errors.Is(msg.err, sequence.ErrSuperseded) {
			return m, nil
		}
		m.resolution = msg.res
		m.detailErr = msg.err
		m.refreshDetail(false)
		return m, nil

	case tuiReviewsMsg:
		if !m.detailGuard.IsCurrent(msg.seq) || errors.Is(msg.err, sequence.ErrSuperseded) {
			return m, nil
		}
		m.snapshot = msg.snap
		if msg.err != nil {
			m.status = "Reviews unavailable: " + msg.err.Error()
		}
		m.refreshDetail(false)
		return m, nil

	case tuiSessionMsg:
		switch msg.event {
		case session.SignedIn:
			m.status = "Signed in."
			if !m.loading {
				return m, m.searchNow()
			}
		case session.SignedOut:
			m.status = "Signed out; searching as guest."
		case session.Expired:
			m.status = "Session expired; searching as guest."
		}
		return m, nil

	case spinner.TickMsg:
		if m.loading {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
	}

	keyMsg, isKey := msg.(tea.KeyMsg)
	if isKey {
		if keyMsg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.loading {
			if keyMsg.String() == "q" {
				return m, tea.Quit
			}
			return m, nil
		}
	}

	if m.loading {
		return m, nil
	}

	if isKey {
		return m.handleKey(keyMsg)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m shopTUIModel) handleKey(keyMsg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := keyMsg.String()

	if m.focus == tuiFocusSearch {
		switch key {
		case "esc":
			m.input.Blur()
			m.focus = tuiFocusResults
			return m, nil
		case "enter":
			m.input.Blur()
			m.focus = tuiFocusResults
			return m, m.searchNow()
		case "tab":
			m.input.Blur()
			m.focus = m.nextFocus()
			return m, nil
		}
		before := m.input.Value()
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(keyMsg)
		if m.input.Value() != before {
			return m, tea.Batch(cmd, m.scheduleSearch())
		}
		return m, cmd
	}

	switch key {
	case "q":
		return m, tea.Quit
	case "/":
		m.focus = tuiFocusSearch
		return m, m.input.Focus()
	case "tab":
		m.focus = m.nextFocus()
		return m, nil
	case "?":
		m.showHelp = !m.showHelp
		m.resize()
		return m, nil
	case "F":
		return m, m.toggleDrawer()
	case "x":
		if m.drawer.IsOpen() && !m.drawer.Selection.IsEmpty() {
			m.drawer.Reset()
			m.rebuildRows()
			return m, m.searchNow()
		}
		return m, nil
	}

	switch m.focus {
	case tuiFocusFacets:
		return m.updateFacets(key)
	case tuiFocusDetail:
		if key == "esc" {
			m.focus = tuiFocusResults
			return m, nil
		}
		var cmd tea.Cmd
		m.detail, cmd = m.detail.Update(keyMsg)
		return m, cmd
	default:
		if key == "enter" {
			return m, m.openSelected()
		}
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(keyMsg)
		m.refreshDetail(false)
		return m, cmd
	}
}

func (m shopTUIModel) updateFacets(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}
	case "esc":
		m.focus = tuiFocusResults
	case "enter", " ":
		if m.cursor >= len(m.rows) {
			return m, nil
		}
		row := m.rows[m.cursor]
		switch row.row {
		case tuiRowHeader:
			m.drawer.TogglePanel(row.kind)
		case tuiRowMore:
			m.drawer.ToggleShowMore(row.kind)
		case tuiRowValue:
			m.drawer.Toggle(row.kind, row.value)
			m.rebuildRows()
			return m, m.searchNow()
		}
		m.rebuildRows()
	}
	return m, nil
}

func (m shopTUIModel) View() string {
	if m.loading {
		return m.loadingView()
	}
	if m.width == 0 || m.height == 0 {
		return tuiMetaStyle.Render("Loading interface...")
	}
	if m.tooSmall {
		return lipgloss.NewStyle().
			Padding(1, 2).
			Render(
				fmt.Sprintf(
					"Terminal too small (%dx%d).\nResize to at least %dx%d for the catalog browser.",
					m.width, m.height, minTUIWidth, minTUIHeight,
				),
			)
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.headerView(),
		m.searchView(),
		m.bodyView(),
		m.footerView(),
	)
}

func (m shopTUIModel) loadingView() string {
	width := m.width
	if width == 0 {
		width = 80
	}
	lines := []string{
		tuiHeaderStyle.Render("shopcli tui"),
		tuiMetaStyle.Render("Preparing catalog browser..."),
		"",
		fmt.Sprintf("%s Fetching catalog and filters", m.spinner.View()),
		tuiHintStyle.Render("Tip: press q to cancel."),
	}
	return lipgloss.NewStyle().
		Width(width).
		Padding(1, 2).
		Render(strings.Join(lines, "\n"))
}

func (m *shopTUIModel) resize() {
	if m.width == 0 || m.height == 0 {
		return
	}
	if m.loading {
		return
	}

	m.tooSmall = m.width < minTUIWidth || m.height < minTUIHeight
	if m.tooSmall {
		return
	}

	headerH := 3
	searchH := 1
	footerH := 2
	if m.showHelp {
		footerH = 7
	}
	m.bodyHeight = maxInt(6, m.height-headerH-searchH-footerH-1)

	avail := m.width
	m.drawerPaneWidth = 0
	if m.drawer.IsOpen() {
		m.drawerPaneWidth = tuiDrawerWidth
		avail -= tuiDrawerWidth + 1
	}

	listWidth := maxInt(30, int(float64(avail)*0.45))
	detailWidth := avail - listWidth - 1
	if detailWidth < 28 {
		detailWidth = 28
		listWidth = avail - detailWidth - 1
	}
	m.listPaneWidth = listWidth
	m.detailPaneWidth = detailWidth

	panelInnerHeight := maxInt(4, m.bodyHeight-2)
	m.list.SetSize(maxInt(20, listWidth-4), panelInnerHeight)
	m.detail.Width = maxInt(20, detailWidth-4)
	m.detail.Height = panelInnerHeight
	m.input.Width = maxInt(20, m.width-12)
	m.refreshDetail(false)
}

func (m shopTUIModel) headerView() string {
	mode := "catalog"
	count := 0
	if m.result != nil {
		mode = string(m.result.Mode)
		count = len(m.result.Products)
	}
	who := "guest"
	if m.deps.signedIn != nil && m.deps.signedIn() {
		who = "signed in"
	}

	top := fmt.Sprintf("shopcli tui  |  %s  |  mode: %s", who, mode)
	if m.searching {
		top += "  |  searching..."
	}
	filters := m.drawer.Selection.Summary()
	if filters == "" {
		filters = "none"
	}
	bottom := fmt.Sprintf("products: %d  |  filters: %s  |  focus: %s", count, filters, m.focus)

	status := m.status
	if status == "" {
		status = " "
	}

	return lipgloss.NewStyle().
		Width(m.width).
		Padding(0, 1).
		Render(tuiHeaderStyle.Render(top) + "\n" + tuiMetaStyle.Render(bottom) + "\n" + tuiStatusStyle.Render(status))
}

func (m shopTUIModel) searchView() string {
	return lipgloss.NewStyle().Padding(0, 1).Render(m.input.View())
}

func (m shopTUIModel) bodyView() string {
	base := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("241")).
		Padding(0, 1)
	focused := base.BorderForeground(lipgloss.Color("86"))
	pane := func(f tuiFocus) lipgloss.Style {
		if m.focus == f {
			return focused
		}
		return base
	}

	panes := make([]string, 0, 5)
	if m.drawer.IsOpen() {
		panes = append(panes,
			pane(tuiFocusFacets).Width(m.drawerPaneWidth).Height(m.bodyHeight).Render(m.drawerView()),
			" ",
		)
	}
	panes = append(panes,
		pane(tuiFocusResults).Width(m.listPaneWidth).Height(m.bodyHeight).Render(m.list.View()),
		" ",
		pane(tuiFocusDetail).Width(m.detailPaneWidth).Height(m.bodyHeight).Render(m.detail.View()),
	)
	return lipgloss.JoinHorizontal(lipgloss.Top, panes...)
}

func (m shopTUIModel) drawerView() string {
	width := maxInt(12, m.drawerPaneWidth-4)
	height := maxInt(1, m.bodyHeight-2)

	lines := make([]string, 0, len(m.rows))
	for i, row := range m.rows {
		text := truncateText(renderFacetRow(m.drawer, row), width-2)
		if i == m.cursor && m.focus == tuiFocusFacets {
			lines = append(lines, tuiCursorStyle.Render("> "+text))
			continue
		}
		switch row.row {
		case tuiRowHeader:
			text = tuiSectionStyle.Render(text)
		case tuiRowMore:
			text = tuiHintStyle.Render(text)
		}
		lines = append(lines, "  "+text)
	}
	if len(lines) == 0 {
		lines = append(lines, tuiMutedStyle.Render("No filters loaded."))
	}

	start := 0
	if m.cursor >= height {
		start = m.cursor - height + 1
	}
	end := minInt(len(lines), start+height)
	return strings.Join(lines[start:end], "\n")
}

func (m shopTUIModel) footerView() string {
	var base string
	switch m.focus {
	case tuiFocusSearch:
		base = "Search: type to search • enter run now • esc back to results"
	case tuiFocusFacets:
		base = "Filters: j/k move • enter/space toggle • x clear • F close drawer • tab next pane • q quit"
	case tuiFocusDetail:
		base = "Detail: j/k or ↑/↓ scroll • u/d half-page • b/f page • esc results • q quit"
	default:
		base = "/ search • F filters • enter open product • tab switch pane • ? help • q quit"
	}

	if !m.showHelp {
		return lipgloss.NewStyle().Padding(0, 1).Render(tuiHintStyle.Render(base))
	}

	lines := []string{
		"Key Help",
		"search: / focus search box • typing searches after a short pause • enter searches now",
		"filters: F open/close drawer (reopening starts clean) • enter on a heading opens it • enter on Show more reveals more",
		"results: ↑/↓ or j/k move • enter load live details and reviews • detail pane: u/d half-page, b/f page",
		"global: tab switch pane • x clear filters • ? toggle help • q quit • ctrl+c force quit",
	}
	return lipgloss.NewStyle().
		Padding(0, 1).
		Render(tuiHintStyle.Render(strings.Join(lines, "\n")))
}

func (m shopTUIModel) request() search.Request {
	return search.Request{
		FreeText: m.input.Value(),
		Facets:   m.drawer.Selection.Clone(),
	}
}

func (m shopTUIModel) hasQuery() bool {
	return strings.TrimSpace(m.input.Value()) != "" || !m.drawer.Selection.IsEmpty()
}

// scheduleSearch debounces typing: only the tick of the latest keystroke
// turns into a search.
func (m *shopTUIModel) scheduleSearch() tea.Cmd {
	seq := m.searchGuard.Next()
	return tea.Tick(tuiSearchDelay, func(time.Time) tea.Msg {
		return tuiSearchTickMsg{seq: seq}
	})
}

func (m *shopTUIModel) searchNow() tea.Cmd {
	seq := m.searchGuard.Next()
	m.searching = true
	return tuiSearchCmd(m.deps, seq, m.request())
}

func (m *shopTUIModel) toggleDrawer() tea.Cmd {
	if m.drawer.IsOpen() {
		m.drawer.Close()
		if m.focus == tuiFocusFacets {
			m.focus = tuiFocusResults
		}
		m.resize()
		return nil
	}

	hadSelection := !m.drawer.Selection.IsEmpty()
	m.drawer.Open()
	m.cursor = 0
	m.rebuildRows()
	m.focus = tuiFocusFacets
	m.resize()
	if hadSelection {
		return m.searchNow()
	}
	return nil
}

func (m shopTUIModel) nextFocus() tuiFocus {
	order := []tuiFocus{tuiFocusResults, tuiFocusDetail}
	if m.drawer.IsOpen() {
		order = append([]tuiFocus{tuiFocusFacets}, order...)
	}
	for i, f := range order {
		if f == m.focus {
			return order[(i+1)%len(order)]
		}
	}
	return order[0]
}

func (m *shopTUIModel) rebuildRows() {
	m.rows = buildFacetRows(m.drawer)
	if m.cursor >= len(m.rows) {
		m.cursor = maxInt(0, len(m.rows)-1)
	}
}

func (m *shopTUIModel) setResult(res *search.Result) {
	m.result = res
	products := res.Products
	if m.deps.limit > 0 && len(products) > m.deps.limit {
		products = products[:m.deps.limit]
	}

	items := make([]list.Item, 0, len(products))
	for _, p := range products {
		items = append(items, buildTUIProductItem(p))
	}
	m.list.Title = fmt.Sprintf("Products • %d", len(res.Products))
	m.list.SetItems(items)
	if len(items) > 0 {
		m.list.Select(0)
	}
	if len(res.Notices) > 0 {
		m.status = strings.Join(res.Notices, " • ")
	}
	m.refreshDetail(true)
}

// openSelected resolves the highlighted product and loads its reviews. Both
// replies carry the same token; moving to another product invalidates them.
func (m *shopTUIModel) openSelected() tea.Cmd {
	item, ok := m.list.SelectedItem().(tuiProductItem)
	if !ok {
		return nil
	}
	p := item.product
	m.opened = &p
	m.resolution = nil
	m.snapshot = nil
	m.detailErr = nil
	m.focus = tuiFocusDetail
	m.refreshDetail(true)

	seq := m.detailGuard.Next()
	ref := resolver.FromProduct(&p)
	id := ref.NormalizedID
	deps := m.deps
	return tea.Batch(
		func() tea.Msg {
			res, err := deps.resolver.Resolve(deps.ctx, ref.ExternalID, resolver.Context{Inbound: &ref})
			return tuiProductMsg{seq: seq, res: res, err: err}
		},
		func() tea.Msg {
			snap, err := deps.reviews(id).Load(deps.ctx)
			return tuiReviewsMsg{seq: seq, snap: snap, err: err}
		},
	)
}

func (m *shopTUIModel) refreshDetail(resetScroll bool) {
	var content string
	if item, ok := m.list.SelectedItem().(tuiProductItem); ok {
		if m.opened != nil && m.opened.ID != item.product.ID {
			m.detailGuard.Next()
			m.opened, m.resolution, m.snapshot, m.detailErr = nil, nil, nil, nil
			resetScroll = true
		}
		content = renderProductDetailContent(item.product, m.detail.Width)
		if m.opened != nil {
			content += "\n\n" + m.renderOpenedDetail()
		} else {
			content += "\n\n" + tuiHintStyle.Render("Press enter for live details and reviews.")
		}
	}
	if content == "" {
		content = "No products match the current search.\n\nPress / to change the search or x to clear filters."
	}

	if resetScroll {
		m.detail.GotoTop()
	}
	m.detail.SetContent(content)
}

func (m shopTUIModel) renderOpenedDetail() string {
	width := maxInt(24, m.detail.Width)
	lines := []string{}

	switch {
	case m.resolution != nil:
		if m.resolution.Authoritative {
			lines = append(lines, tuiMetaStyle.Render("Live product data."))
		} else {
			sources := make([]string, 0, len(m.resolution.Sources))
			for _, s := range m.resolution.Sources {
				sources = append(sources, string(s))
			}
			lines = append(lines, tuiStatusStyle.Render(wrapText("Live data unavailable; assembled from "+strings.Join(sources, ", "), width)))
		}
	case m.detailErr != nil:
		lines = append(lines, tuiStatusStyle.Render(wrapText("Product lookup failed: "+m.detailErr.Error(), width)))
	default:
		lines = append(lines, tuiMutedStyle.Render("Loading live details..."))
	}

	lines = append(lines, "")
	if m.snapshot == nil {
		lines = append(lines, tuiMutedStyle.Render("Loading reviews..."))
		return strings.Join(lines, "\n")
	}

	s := m.snapshot.Summary
	lines = append(lines, fmt.Sprintf("%s %s %s",
		tuiSectionStyle.Render("Reviews:"),
		tuiValueStyle.Render(fmt.Sprintf("%.1f★", s.RoundedAverage())),
		tuiMetaStyle.Render(fmt.Sprintf("(%d ratings)", s.TotalRatings)),
	))
	if m.snapshot.Degraded {
		lines = append(lines, tuiStatusStyle.Render("Ratings service unavailable; showing saved reviews."))
	}
	for i, r := range m.snapshot.Reviews {
		if i == tuiMaxReviews {
			lines = append(lines, tuiMutedStyle.Render(fmt.Sprintf("… %d more (shopcli reviews %s)", len(m.snapshot.Reviews)-i, m.snapshot.ProductID)))
			break
		}
		head := fmt.Sprintf("%s %s", strings.Repeat("★", r.Rating)+strings.Repeat("☆", 5-r.Rating), r.AuthorLabel)
		if r.IsLocalOnly {
			head += " " + tuiLocalStyle.Render("[saved locally]")
		}
		lines = append(lines, head)
		if r.Comment != nil && strings.TrimSpace(*r.Comment) != "" {
			lines = append(lines, tuiMutedStyle.Render(wrapText(*r.Comment, width)))
		}
	}
	return strings.Join(lines, "\n")
}

func buildFacetRows(d *facets.Drawer) []tuiFacetRow {
	rows := make([]tuiFacetRow, 0, len(facets.Kinds))
	for _, kind := range facets.Kinds {
		rows = append(rows, tuiFacetRow{kind: kind, row: tuiRowHeader})
		if !d.Disclosure.PanelOpen(kind) {
			continue
		}
		for _, v := range d.VisibleValues(kind) {
			rows = append(rows, tuiFacetRow{kind: kind, row: tuiRowValue, value: v})
		}
		if d.MoreLabel(kind) != "" {
			rows = append(rows, tuiFacetRow{kind: kind, row: tuiRowMore})
		}
	}
	return rows
}

func renderFacetRow(d *facets.Drawer, row tuiFacetRow) string {
	switch row.row {
	case tuiRowHeader:
		arrow := "▸"
		if d.Disclosure.PanelOpen(row.kind) {
			arrow = "▾"
		}
		text := fmt.Sprintf("%s %s (%d)", arrow, row.kind.Label(), len(d.Values(row.kind)))
		if n := len(d.Selection.Values(row.kind)); n > 0 {
			text += fmt.Sprintf(" • %d selected", n)
		}
		return text
	case tuiRowMore:
		return "  " + d.MoreLabel(row.kind)
	default:
		box := "[ ]"
		if d.Selection.Has(row.kind, row.value) {
			box = "[x]"
		}
		return "  " + box + " " + row.value
	}
}

func buildTUIProductItem(p api.Product) tuiProductItem {
	title := filter.CleanText(p.Name)
	if title == "" {
		title = "Unknown product"
	}
	desc := joinLabels(" • ", filter.CleanText(p.Brand), filter.CleanText(p.Category))
	if desc == "" {
		desc = "#" + p.ID.String()
	}
	return tuiProductItem{
		product:     p,
		title:       title,
		description: desc,
		filterValue: strings.ToLower(strings.Join([]string{title, p.Brand, p.Manufacturer, p.Category}, " ")),
	}
}

func renderProductDetailContent(p api.Product, width int) string {
	maxWidth := maxInt(24, width)

	title := filter.CleanText(p.Name)
	if title == "" {
		title = "Unknown product"
	}
	desc := filter.CleanText(p.Description)
	if desc == "" {
		desc = "No description provided."
	}

	lines := []string{tuiTitleStyle.Render(wrapText(title, maxWidth))}
	if meta := joinLabels("  |  ", filter.CleanText(p.Brand), filter.CleanText(p.Manufacturer)); meta != "" {
		lines = append(lines, tuiMetaStyle.Render(wrapText(meta, maxWidth)))
	}
	lines = append(lines, "")
	if cat := filter.CleanText(p.Category); cat != "" {
		lines = append(lines, fmt.Sprintf("%s %s", tuiMetaStyle.Render("Category:"), cat))
	}
	lines = append(lines, fmt.Sprintf("%s %s", tuiMetaStyle.Render("ID:"), p.ID.String()))
	lines = append(lines, "")
	lines = append(lines, tuiMetaStyle.Render("Description:"))
	lines = append(lines, wrapText(desc, maxWidth))

	if ingredients := filter.Normalize(p.Ingredients); len(ingredients) > 0 {
		lines = append(lines, "")
		lines = append(lines, tuiMetaStyle.Render("Ingredients:"))
		lines = append(lines, wrapText(strings.Join(ingredients, ", "), maxWidth))
	}
	if img := strings.TrimSpace(p.ImageURL); img != "" {
		lines = append(lines, "")
		lines = append(lines, tuiMutedStyle.Render("Image URL:"))
		lines = append(lines, tuiMutedStyle.Render(wrapText(img, maxWidth)))
	}
	return strings.Join(lines, "\n")
}

func joinLabels(sep string, parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}

func truncateText(s string, width int) string {
	r := []rune(s)
	if width <= 1 || len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}

func wrapText(text string, width int) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}
	if width < 12 {
		width = 12
	}

	line := words[0]
	lines := make([]string, 0, len(words)/6+1)
	for _, w := range words[1:] {
		if len(line)+1+len(w) > width {
			lines = append(lines, line)
			line = w
			continue
		}
		line += " " + w
	}
	lines = append(lines, line)
	return strings.Join(lines, "\n")
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
