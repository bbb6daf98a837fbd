// Package ui implements the interactive project browser.
package ui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/bouwkansen/pkg/chunks"
	"github.com/vanderheijden86/bouwkansen/pkg/debug"
	"github.com/vanderheijden86/bouwkansen/pkg/export"
	"github.com/vanderheijden86/bouwkansen/pkg/geo"
	"github.com/vanderheijden86/bouwkansen/pkg/model"
	"github.com/vanderheijden86/bouwkansen/pkg/query"
	"github.com/vanderheijden86/bouwkansen/pkg/watcher"
)

// focus represents which UI element has keyboard focus
type focus int

const (
	focusList focus = iota
	focusSearch
	focusPicker
	focusCategories
	focusDetail
	focusTop
	focusHelp
)

type phase int

const (
	phaseLoading phase = iota
	phaseReady
	phaseFatal
)

// SessionFactory builds a session that reports settled chunks to onSettled.
// It is called once at start and again on every reload.
type SessionFactory func(onSettled func(chunks.Event)) *chunks.Session

// Options configures NewModel.
type Options struct {
	// PageSize defaults to query.DefaultPageSize.
	PageSize int
	// RequireFilter hides the result list until a filter is set.
	RequireFilter bool
	Sort          query.SortOption
	Filters       query.Filters
	// Source is shown in the header.
	Source string
	// ExportDir receives exports started from the browser.
	ExportDir string
	// Watcher, if set, offers a reload when the dataset changes on disk.
	Watcher *watcher.Watcher
	// Now replaces time.Now (tests).
	Now func() time.Time
}

// Model is the Bubble Tea model of the project browser.
type Model struct {
	newSession SessionFactory
	session    *chunks.Session
	events     Events
	ctx        context.Context
	cancel     context.CancelFunc
	watcher    *watcher.Watcher

	theme  Theme
	width  int
	height int
	ready  bool
	source string
	now    func() time.Time

	phase          phase
	fatalErr       error
	manifestErr    error
	warning        string
	loadingAll     bool
	datasetChanged bool

	filters       query.Filters
	sortOpt       query.SortOption
	pageSize      int
	page          int
	cursor        int
	requireFilter bool

	results        []model.Project
	resultsVersion uint64
	resultsValid   bool

	focused    focus
	search     textinput.Model
	searchPrev string
	picker     MunicipalityPicker
	categories []query.CategoryCount
	catCursor  int
	topCursor  int
	viewport   viewport.Model
	detail     *model.Project
	mdRenderer *glamour.TermRenderer
	mdWidth    int

	statusMsg     string
	statusIsError bool
	statusSeq     int

	exportDir string
}

// NewModel creates the browser. Loading starts with Init.
func NewModel(newSession SessionFactory, opts Options) Model {
	events := NewEvents()
	ctx, cancel := context.WithCancel(context.Background())

	size := opts.PageSize
	if size <= 0 {
		size = query.DefaultPageSize
	}
	sortOpt := opts.Sort
	if sortOpt == "" {
		sortOpt = query.SortAmountDesc
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	exportDir := opts.ExportDir
	if exportDir == "" {
		exportDir = "."
	}

	theme := DefaultTheme(lipgloss.DefaultRenderer())
	ti := textinput.New()
	ti.Placeholder = "zoek in projectnaam, beschrijving of gemeente"
	ti.CharLimit = query.MaxSearchLength
	ti.Prompt = "/ "

	return Model{
		newSession:    newSession,
		session:       newSession(events.OnSettled),
		events:        events,
		ctx:           ctx,
		cancel:        cancel,
		watcher:       opts.Watcher,
		theme:         theme,
		source:        opts.Source,
		now:           now,
		filters:       opts.Filters.Normalize(),
		sortOpt:       sortOpt,
		pageSize:      size,
		page:          1,
		requireFilter: opts.RequireFilter,
		search:        ti,
		picker:        NewMunicipalityPicker(nil, theme),
		viewport:      viewport.New(80, 20),
		exportDir:     exportDir,
	}
}

// Init starts chunk 0 and the manifest.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		ReadyTimeoutCmd(),
		startCmd(m.ctx, m.session, false),
		waitEventCmd(m.ctx, m.events),
		WatchDatasetCmd(m.watcher),
	)
}

// Close stops loading. Safe to call more than once.
func (m Model) Close() {
	m.cancel()
	m.session.Close()
	if m.watcher != nil {
		m.watcher.Stop()
	}
}

// Session returns the active session.
func (m Model) Session() *chunks.Session { return m.session }

// Filters returns the active filters.
func (m Model) Filters() query.Filters { return m.filters }

// SortOption returns the active sort.
func (m Model) SortOption() query.SortOption { return m.sortOpt }

// CurrentPage returns the visible page of results.
func (m Model) CurrentPage() query.PageResult {
	return query.Page(m.visibleResults(), m.page, m.pageSize)
}

// Results returns every result of the current query, ignoring the
// require-filter policy.
func (m Model) Results() []model.Project { return m.results }

// Warning returns the partial-failure notice, if shown.
func (m Model) Warning() string { return m.warning }

// Status returns the status line message.
func (m Model) Status() string { return m.statusMsg }

// FatalErr returns the error shown on the hard error screen.
func (m Model) FatalErr() error {
	if m.phase != phaseFatal {
		return nil
	}
	return m.fatalErr
}

// FocusState names the focused element, for tests and debugging.
func (m Model) FocusState() string {
	switch m.focused {
	case focusSearch:
		return "search"
	case focusPicker:
		return "picker"
	case focusCategories:
		return "categories"
	case focusDetail:
		return "detail"
	case focusTop:
		return "top"
	case focusHelp:
		return "help"
	default:
		return "list"
	}
}

// filterGateClosed reports whether the require-filter policy hides results.
func (m Model) filterGateClosed() bool {
	return m.requireFilter && m.filters.Empty()
}

func (m Model) visibleResults() []model.Project {
	if m.filterGateClosed() {
		return nil
	}
	return m.results
}

func (m Model) manifest() *model.Manifest {
	man, _ := m.session.Manifest()
	return man
}

// canLoadAll reports whether the load-all action is offered.
func (m Model) canLoadAll() bool {
	if m.phase != phaseReady || m.loadingAll {
		return false
	}
	if _, ok := m.session.Manifest(); !ok {
		return false
	}
	return !m.session.Progress().AllLoaded()
}

// refreshResults reruns the query when the store or the filters changed.
func (m *Model) refreshResults() {
	st := m.session.Store()
	if m.resultsValid && st.Version() == m.resultsVersion {
		return
	}
	m.resultsVersion = st.Version()
	m.results = query.Run(st.Snapshot(), m.filters, m.sortOpt)
	m.resultsValid = true
	m.clampCursor()
}

// invalidate marks results stale after a filter or sort change.
func (m *Model) invalidate() {
	m.resultsValid = false
	m.page = 1
	m.cursor = 0
	m.refreshResults()
}

func (m *Model) clampCursor() {
	pr := m.CurrentPage()
	m.page = pr.Page
	if m.cursor >= len(pr.Items) {
		m.cursor = len(pr.Items) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) selected() *model.Project {
	pr := m.CurrentPage()
	if m.cursor < 0 || m.cursor >= len(pr.Items) {
		return nil
	}
	p := pr.Items[m.cursor]
	return &p
}

func (m *Model) setStatus(msg string, isErr bool) tea.Cmd {
	m.statusMsg = msg
	m.statusIsError = isErr
	m.statusSeq++
	return clearStatusCmd(m.statusSeq)
}

func (m *Model) shutdown() {
	m.cancel()
	m.session.Close()
	if m.watcher != nil {
		m.watcher.Stop()
	}
}

// reload replaces the session after the dataset changed on disk.
func (m *Model) reload() tea.Cmd {
	m.session.Close()
	m.session = m.newSession(m.events.OnSettled)
	m.phase = phaseLoading
	m.fatalErr = nil
	m.manifestErr = nil
	m.warning = ""
	m.loadingAll = false
	m.datasetChanged = false
	m.resultsValid = false
	m.results = nil
	debug.Log("ui: reloading dataset from %s", m.source)
	return startCmd(m.ctx, m.session, false)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		m.picker.SetSize(m.width, m.bodyHeight())
		m.viewport.Width = m.width
		m.viewport.Height = m.bodyHeight()
		if m.detail != nil {
			m.renderDetail()
		}
		return m, nil

	case ReadyTimeoutMsg:
		if !m.ready {
			m.ready = true
			if m.width == 0 {
				m.width, m.height = 100, 30
			}
		}
		return m, nil

	case StartedMsg:
		if msg.Session != m.session {
			return m, nil
		}
		return m.handleStarted(msg)

	case LoadAllDoneMsg:
		if msg.Session != m.session {
			return m, nil
		}
		return m.handleLoadAllDone(msg)

	case ChunkSettledMsg:
		m.refreshResults()
		return m, waitEventCmd(m.ctx, m.events)

	case DatasetChangedMsg:
		m.datasetChanged = true
		what := "Dataset gewijzigd op schijf"
		if n := len(msg.Files); n > 1 {
			what = fmt.Sprintf("%d datasetbestanden gewijzigd", n)
		} else if msg.Manifest {
			what = "Metadata gewijzigd op schijf"
		}
		return m, tea.Batch(m.setStatus(what+", druk R om te herladen", false), WatchDatasetCmd(m.watcher))

	case ExportDoneMsg:
		if msg.Err != nil {
			return m, m.setStatus("Export mislukt: "+msg.Err.Error(), true)
		}
		return m, m.setStatus("Geëxporteerd naar "+msg.Path, false)

	case statusClearMsg:
		if msg.seq == m.statusSeq {
			m.statusMsg = ""
			m.statusIsError = false
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleStarted(msg StartedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil && (errors.Is(msg.Err, context.Canceled) || errors.Is(msg.Err, chunks.ErrClosed)) {
		return m, nil
	}
	if msg.Err != nil {
		m.phase = phaseFatal
		m.fatalErr = msg.Err
		return m, nil
	}
	m.phase = phaseReady
	m.fatalErr = nil
	m.manifestErr = msg.Result.ManifestErr
	m.resultsValid = false
	m.refreshResults()
	if m.manifestErr != nil {
		return m, m.setStatus("Metadata niet beschikbaar; alles laden is uitgeschakeld", true)
	}
	return m, nil
}

func (m Model) handleLoadAllDone(msg LoadAllDoneMsg) (tea.Model, tea.Cmd) {
	m.loadingAll = false
	m.refreshResults()
	if msg.Err != nil {
		if errors.Is(msg.Err, context.Canceled) || errors.Is(msg.Err, chunks.ErrClosed) {
			return m, nil
		}
		return m, m.setStatus("Laden mislukt: "+msg.Err.Error(), true)
	}
	if msg.Result.Failed > 0 {
		m.warning = fmt.Sprintf("%d chunk(s) konden niet worden geladen. Sommige projecten ontbreken mogelijk.", msg.Result.Failed)
		return m, nil
	}
	return m, m.setStatus(fmt.Sprintf("Alle projecten geladen (%s)", export.FormatInt(m.session.Store().Len())), false)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.shutdown()
		return m, tea.Quit
	}

	if m.phase == phaseFatal {
		switch msg.String() {
		case "r":
			m.phase = phaseLoading
			m.fatalErr = nil
			return m, startCmd(m.ctx, m.session, true)
		case "q", "esc":
			m.shutdown()
			return m, tea.Quit
		}
		return m, nil
	}

	switch m.focused {
	case focusSearch:
		return m.handleSearchKeys(msg)
	case focusPicker:
		return m.handlePickerKeys(msg)
	case focusCategories:
		return m.handleCategoryKeys(msg), nil
	case focusDetail:
		return m.handleDetailKeys(msg)
	case focusTop:
		return m.handleTopKeys(msg), nil
	case focusHelp:
		m.focused = focusList
		return m, nil
	}
	return m.handleListKeys(msg)
}

func (m Model) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		m.shutdown()
		return m, tea.Quit

	case "?":
		m.focused = focusHelp

	case "esc":
		m.warning = ""

	case "/":
		m.searchPrev = m.filters.Search
		m.search.SetValue(m.filters.Search)
		m.search.CursorEnd()
		m.search.Focus()
		m.focused = focusSearch

	case "m":
		names := query.Municipalities(m.session.Store().Snapshot())
		if len(names) == 0 {
			return m, m.setStatus("Nog geen gemeenten geladen", true)
		}
		m.picker.SetNames(names)
		m.picker.Reset()
		m.picker.SetSize(m.width, m.bodyHeight())
		m.focused = focusPicker

	case "M":
		if m.filters.Municipality != "" {
			m.filters.Municipality = ""
			m.invalidate()
		}

	case "v":
		m.filters.Province = nextProvince(m.filters.Province)
		m.invalidate()

	case "c":
		m.categories = query.CategoryCounts(m.session.Store().Snapshot(), m.filters.Municipality, m.manifest())
		m.catCursor = 0
		m.focused = focusCategories

	case "x":
		m.filters = query.Filters{}
		m.invalidate()

	case "s":
		m.sortOpt = m.sortOpt.Next()
		m.invalidate()
		return m, m.setStatus("Sortering: "+m.sortOpt.Label(), false)

	case "n", "right", "pgdown":
		if pr := m.CurrentPage(); pr.HasNext() {
			m.page++
			m.cursor = 0
		}

	case "p", "left", "pgup":
		if pr := m.CurrentPage(); pr.HasPrev() {
			m.page--
			m.cursor = 0
		}

	case "j", "down":
		if m.cursor < len(m.CurrentPage().Items)-1 {
			m.cursor++
		}

	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}

	case "g", "home":
		m.cursor = 0

	case "G", "end":
		m.cursor = len(m.CurrentPage().Items) - 1
		m.clampCursor()

	case "enter":
		if p := m.selected(); p != nil {
			m.detail = p
			m.renderDetail()
			m.focused = focusDetail
		}

	case "t":
		if m.manifest() == nil {
			return m, m.setStatus("Metadata niet beschikbaar", true)
		}
		m.topCursor = 0
		m.focused = focusTop

	case "a":
		if !m.canLoadAll() {
			if _, ok := m.session.Manifest(); !ok {
				return m, m.setStatus("Alles laden vereist metadata", true)
			}
			return m, nil
		}
		m.loadingAll = true
		m.warning = ""
		return m, loadAllCmd(m.ctx, m.session)

	case "R":
		if m.datasetChanged {
			return m, m.reload()
		}

	case "e":
		return m, m.exportCmd(export.FormatCSV)

	case "E":
		return m, m.exportCmd(export.FormatMD)

	case "y":
		return m, m.copySelected()
	}
	return m, nil
}

func (m Model) handleSearchKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.search.Blur()
		m.focused = focusList
		return m, nil
	case "esc":
		m.search.Blur()
		m.focused = focusList
		m.filters.Search = m.searchPrev
		m.invalidate()
		return m, nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	if next := (query.Filters{Search: m.search.Value()}).Normalize().Search; next != m.filters.Search {
		m.filters.Search = next
		m.invalidate()
	}
	return m, cmd
}

func (m Model) handlePickerKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.focused = focusList
	case "enter":
		if name := m.picker.Selected(); name != "" {
			m.filters.Municipality = name
			m.invalidate()
		}
		m.focused = focusList
	case "up", "ctrl+k", "ctrl+p":
		m.picker.MoveUp()
	case "down", "ctrl+j", "ctrl+n":
		m.picker.MoveDown()
	default:
		m.picker.UpdateInput(msg)
	}
	return m, nil
}

func (m Model) handleCategoryKeys(msg tea.KeyMsg) Model {
	switch msg.String() {
	case "esc", "c", "q":
		m.focused = focusList
	case "j", "down":
		if m.catCursor < len(m.categories)-1 {
			m.catCursor++
		}
	case "k", "up":
		if m.catCursor > 0 {
			m.catCursor--
		}
	case " ", "enter":
		if m.catCursor < len(m.categories) {
			m.filters = m.filters.ToggleCategory(m.categories[m.catCursor].ID)
			m.invalidate()
		}
	}
	return m
}

func (m Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q", "enter":
		m.focused = focusList
		m.detail = nil
		return m, nil
	case "y":
		return m, m.copySelected()
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) handleTopKeys(msg tea.KeyMsg) Model {
	cats := m.manifest().SortedCategories()
	switch msg.String() {
	case "esc", "t", "q":
		m.focused = focusList
	case "j", "down", "right", "l":
		if m.topCursor < len(cats)-1 {
			m.topCursor++
		}
	case "k", "up", "left", "h":
		if m.topCursor > 0 {
			m.topCursor--
		}
	case "enter":
		if m.topCursor < len(cats) {
			m.filters = query.Filters{Categories: []string{cats[m.topCursor].ID}}
			m.invalidate()
			m.focused = focusList
		}
	}
	return m
}

// nextProvince cycles "" -> each province in display order -> "".
func nextProvince(code string) string {
	if code == "" {
		return geo.Provinces[0].Code
	}
	for i, p := range geo.Provinces {
		if p.Code == code && i+1 < len(geo.Provinces) {
			return geo.Provinces[i+1].Code
		}
	}
	return ""
}

func (m *Model) renderDetail() {
	if m.detail == nil {
		return
	}
	md := export.ProjectMarkdown(m.detail, m.manifest())
	wrap := m.width - 4
	if wrap < 20 {
		wrap = 20
	}
	if m.mdRenderer == nil || m.mdWidth != wrap {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(wrap),
		)
		if err == nil {
			m.mdRenderer, m.mdWidth = r, wrap
		}
	}
	content := md
	if m.mdRenderer != nil {
		if out, err := m.mdRenderer.Render(md); err == nil {
			content = out
		}
	}
	m.viewport.SetContent(content)
	m.viewport.GotoTop()
}

func (m *Model) copySelected() tea.Cmd {
	p := m.detail
	if p == nil {
		p = m.selected()
	}
	if p == nil {
		return nil
	}
	if err := clipboard.WriteAll(export.ProjectMarkdown(p, m.manifest())); err != nil {
		return m.setStatus("Klembord niet beschikbaar: "+err.Error(), true)
	}
	return m.setStatus("Project gekopieerd naar klembord", false)
}

func (m *Model) exportCmd(f export.Format) tea.Cmd {
	results := m.visibleResults()
	if len(results) == 0 {
		return m.setStatus("Geen projecten om te exporteren", true)
	}
	path := filepath.Join(m.exportDir, export.DefaultFileName(f, m.now()))
	v := export.View{
		Results:  results,
		Filters:  m.filters,
		Manifest: m.manifest(),
		Title:    "Gemeentelijke investeringsprojecten",
		Source:   m.source,
	}
	return func() tea.Msg {
		return ExportDoneMsg{Path: path, Err: export.Write(f, path, v)}
	}
}
