package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/bouwkansen/pkg/export"
	"github.com/vanderheijden86/bouwkansen/pkg/geo"
	"github.com/vanderheijden86/bouwkansen/pkg/metrics"
	"github.com/vanderheijden86/bouwkansen/pkg/model"
)

const (
	// chromeHeight is header + filter bar + summary + table header + pager.
	chromeHeight = 5
	// CompactWidth hides the category column below this width.
	CompactWidth = 90
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// clip cuts styled text to width cells without breaking escape sequences.
func clip(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return lipgloss.NewStyle().MaxWidth(width).Render(s)
}

func (m Model) bodyHeight() int {
	h := m.height - 1 // footer
	if m.height == 0 {
		h = 29
	}
	if h < 5 {
		h = 5
	}
	return h
}

// View renders the browser.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}
	defer metrics.Timer(metrics.UIRender)()

	var body string
	switch {
	case m.phase == phaseLoading:
		body = m.renderLoadingScreen()
	case m.phase == phaseFatal:
		body = m.renderErrorScreen()
	case m.focused == focusHelp:
		body = m.renderHelpOverlay()
	case m.focused == focusPicker:
		body = m.picker.View()
	case m.focused == focusCategories:
		body = m.renderCategoryPanel()
	case m.focused == focusTop:
		body = m.renderTopProjects()
	case m.focused == focusDetail:
		body = m.viewport.View()
	default:
		body = m.renderBrowser()
	}

	final := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		MaxHeight(m.height)
	return final.Render(lipgloss.JoinVertical(lipgloss.Left, body, m.renderFooter()))
}

func (m Model) renderLoadingScreen() string {
	t := m.theme
	p := m.session.Progress()
	lines := []string{
		t.Info.Render(spinnerFrames[p.Loaded%len(spinnerFrames)]),
		"",
		t.Base.Bold(true).Render("Projecten laden..."),
	}
	if m.source != "" {
		lines = append(lines, "", t.Muted.Render(m.source))
	}
	content := lipgloss.JoinVertical(lipgloss.Center, lines...)
	return lipgloss.Place(m.width, m.bodyHeight(), lipgloss.Center, lipgloss.Center, content)
}

func (m Model) renderErrorScreen() string {
	t := m.theme
	msg := "onbekende fout"
	if m.fatalErr != nil {
		msg = m.fatalErr.Error()
	}
	width := m.width - 10
	if width > 70 {
		width = 70
	}
	if width < 20 {
		width = 20
	}
	content := t.Error.Render("Fout bij het laden van projecten") + "\n\n" +
		t.Base.Width(width).Render(msg) + "\n\n" +
		t.Key.Render("r") + t.Muted.Render(" opnieuw proberen   ") +
		t.Key.Render("q") + t.Muted.Render(" afsluiten")
	box := t.Box.BorderForeground(ColorDanger).Render(content)
	return lipgloss.Place(m.width, m.bodyHeight(), lipgloss.Center, lipgloss.Center, box)
}

func (m Model) renderBrowser() string {
	rows := []string{m.renderHeader(), m.renderFilterBar()}
	if m.warning != "" {
		rows = append(rows, m.theme.Warning.Width(m.width).Render("⚠ "+m.warning+"  (esc: sluiten)"))
	}
	rows = append(rows, m.renderSummary())

	listHeight := m.bodyHeight() - chromeHeight
	if m.warning != "" {
		listHeight--
	}
	if listHeight < 1 {
		listHeight = 1
	}

	switch {
	case m.filterGateClosed():
		rows = append(rows, m.renderFilterPrompt(listHeight+2))
	case len(m.results) == 0:
		rows = append(rows, m.renderEmpty(listHeight+2))
	default:
		rows = append(rows, m.renderTable(listHeight), m.renderPager())
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (m Model) renderHeader() string {
	title := "bk · Gemeentelijke investeringsprojecten 2026-2031"
	if m.source != "" && m.width > 80 {
		title += " · " + m.source
	}
	return m.theme.Header.Width(m.width).Render(truncate(title, m.width-2))
}

func (m Model) renderFilterBar() string {
	t := m.theme
	var parts []string
	if m.focused == focusSearch {
		parts = append(parts, m.search.View())
	} else if m.filters.Search != "" {
		parts = append(parts, t.FilterTag.Render(fmt.Sprintf("zoek %q", m.filters.Search)))
	}
	if m.filters.Municipality != "" {
		parts = append(parts, t.FilterTag.Render("gemeente "+m.filters.Municipality))
	}
	if m.filters.Province != "" {
		parts = append(parts, t.FilterTag.Render("provincie "+geo.ProvinceName(m.filters.Province)))
	}
	if len(m.filters.Categories) > 0 {
		labels := make([]string, len(m.filters.Categories))
		for i, id := range m.filters.Categories {
			labels[i] = m.manifest().Label(id)
		}
		parts = append(parts, t.FilterTag.Render("categorie "+strings.Join(labels, ", ")))
	}
	if len(parts) == 0 {
		parts = append(parts, t.Muted.Render("geen filters"))
	}
	parts = append(parts, t.Muted.Render("sortering: "+m.sortOpt.Label()))
	return clip(strings.Join(parts, t.Muted.Render(" · ")), m.width)
}

func (m Model) renderSummary() string {
	t := m.theme
	visible := m.visibleResults()
	var total float64
	for i := range visible {
		total += visible[i].TotalAmount
	}
	line := t.Base.Render("Gevonden projecten: ") + t.Amount.Render(export.FormatInt(len(visible))) +
		t.Muted.Render(" · ") + t.Base.Render("Totaal: ") + t.Amount.Render(export.FormatMillions(total))

	if la := m.loadAllLabel(); la != "" {
		line += t.Muted.Render(" · ") + la
	}
	return clip(line, m.width)
}

// loadAllLabel renders the load-all affordance; empty once everything is
// loaded.
func (m Model) loadAllLabel() string {
	t := m.theme
	p := m.session.Progress()
	if p.AllLoaded() {
		return ""
	}
	man, ok := m.session.Manifest()
	if !ok {
		return t.Muted.Render("alles laden niet beschikbaar (geen metadata)")
	}
	counts := fmt.Sprintf("(%s/%s)", export.FormatInt(p.Records), export.FormatInt(man.TotalProjects))
	if m.loadingAll {
		return t.Info.Render(fmt.Sprintf("%s laden... %s chunk %d/%d", spinnerFrames[p.Loaded%len(spinnerFrames)], counts, p.Loaded, p.Total))
	}
	return t.Key.Render("a") + t.Base.Render(" laad alle projecten "+counts)
}

func (m Model) renderFilterPrompt(height int) string {
	t := m.theme
	lines := []string{
		t.Title.Render("Kies een filter om projecten te tonen"),
		"",
		t.Key.Render("m") + t.Muted.Render(" gemeente   ") +
			t.Key.Render("v") + t.Muted.Render(" provincie   ") +
			t.Key.Render("c") + t.Muted.Render(" categorie   ") +
			t.Key.Render("/") + t.Muted.Render(" zoeken"),
	}
	if man := m.manifest(); man != nil {
		lines = append(lines, "",
			t.Muted.Render(fmt.Sprintf("%s projecten in %s gemeenten, samen %s",
				export.FormatInt(man.TotalProjects), export.FormatInt(man.Municipalities), export.FormatMillions(man.TotalAmount))),
			t.Key.Render("t")+t.Muted.Render(" top projecten per categorie"))
	}
	content := lipgloss.JoinVertical(lipgloss.Center, lines...)
	return lipgloss.Place(m.width, height, lipgloss.Center, lipgloss.Center, content)
}

func (m Model) renderEmpty(height int) string {
	t := m.theme
	content := lipgloss.JoinVertical(lipgloss.Center,
		t.Base.Bold(true).Render("Geen projecten gevonden"),
		t.Muted.Render("Pas je filters aan om meer resultaten te zien"),
	)
	return lipgloss.Place(m.width, height, lipgloss.Center, lipgloss.Center, content)
}

type columns struct {
	rank, muni, name, cats, amount int
}

func (m Model) columnWidths() columns {
	c := columns{rank: 5, muni: 18, amount: 14}
	if m.width >= CompactWidth {
		c.cats = 24
	}
	gaps := 4
	if c.cats == 0 {
		gaps = 3
	}
	c.name = m.width - c.rank - c.muni - c.cats - c.amount - gaps
	if c.name < 10 {
		c.name = 10
	}
	return c
}

func (m Model) renderTable(height int) string {
	t := m.theme
	pr := m.CurrentPage()
	c := m.columnWidths()

	header := padLeft("#", c.rank) + " " + fitCell("Gemeente", c.muni) + " " + fitCell("Project", c.name)
	if c.cats > 0 {
		header += " " + fitCell("Categorieën", c.cats)
	}
	header += " " + padLeft("Bedrag", c.amount)
	lines := []string{t.Muted.Bold(true).Render(header)}

	start := 0
	if m.cursor >= height {
		start = m.cursor - height + 1
	}
	end := start + height
	if end > len(pr.Items) {
		end = len(pr.Items)
	}
	man := m.manifest()
	for i := start; i < end; i++ {
		p := &pr.Items[i]
		row := padLeft(itoa(pr.Offset()+i+1), c.rank) + " " +
			fitCell(p.Municipality, c.muni) + " " +
			fitCell(singleLine(p.Title()), c.name)
		if c.cats > 0 {
			row += " " + fitCell(categoryCell(p, man), c.cats)
		}
		row += " " + padLeft(export.FormatEuro(p.TotalAmount), c.amount)
		if i == m.cursor {
			row = t.Selected.Render(row)
		}
		lines = append(lines, row)
	}
	return strings.Join(lines, "\n")
}

func categoryCell(p *model.Project, m *model.Manifest) string {
	if len(p.Categories) == 0 {
		return ""
	}
	first := m.Label(p.Categories[0])
	if len(p.Categories) > 1 {
		first += fmt.Sprintf(" +%d", len(p.Categories)-1)
	}
	return first
}

func (m Model) renderPager() string {
	pr := m.CurrentPage()
	var parts []string
	if pr.HasPrev() {
		parts = append(parts, m.theme.Key.Render("p")+m.theme.Muted.Render(" vorige"))
	}
	parts = append(parts, m.theme.Muted.Render(fmt.Sprintf("pagina %d/%d", pr.Page, pr.Pages)))
	if pr.HasNext() {
		parts = append(parts, m.theme.Key.Render("n")+m.theme.Muted.Render(" volgende"))
	}
	return strings.Join(parts, "  ")
}

func (m Model) renderCategoryPanel() string {
	t := m.theme
	lines := []string{t.Title.Render("Categorieën"), ""}
	if m.filters.Municipality != "" {
		lines[0] = t.Title.Render("Categorieën in " + m.filters.Municipality)
	}
	if len(m.categories) == 0 {
		lines = append(lines, t.Muted.Italic(true).Render("  Geen categorieën"))
	}
	for i, cc := range m.categories {
		mark := "[ ]"
		if m.filters.HasCategory(cc.ID) {
			mark = "[x]"
		}
		prefix := "  "
		if i == m.catCursor {
			prefix = "> "
		}
		label := padRight(truncate(cc.Label, 36), 36)
		row := prefix + mark + " " + t.CategoryStyle(cc.ID).Render(label) + " " +
			padLeft(export.FormatInt(cc.Count), 7) + "  " + padLeft(export.FormatMillions(cc.Amount), 10)
		if i == m.catCursor {
			row = t.Key.Render(prefix+mark+" ") + t.CategoryStyle(cc.ID).Bold(true).Render(label) + " " +
				padLeft(export.FormatInt(cc.Count), 7) + "  " + padLeft(export.FormatMillions(cc.Amount), 10)
		}
		lines = append(lines, row)
	}
	lines = append(lines, "", t.Muted.Italic(true).Render("↑/↓: kies | spatie: aan/uit | esc: sluiten"))
	box := t.Box.Render(strings.Join(lines, "\n"))
	return lipgloss.Place(m.width, m.bodyHeight(), lipgloss.Center, lipgloss.Center, box)
}

// renderTopProjects lists the largest projects of the selected category as
// published in the manifest.
func (m Model) renderTopProjects() string {
	t := m.theme
	cats := m.manifest().SortedCategories()
	lines := []string{t.Title.Render("Top projecten per categorie"), ""}
	if len(cats) == 0 {
		lines = append(lines, t.Muted.Render("Geen categorieën in de metadata"))
		return lipgloss.Place(m.width, m.bodyHeight(), lipgloss.Center, lipgloss.Center, t.Box.Render(strings.Join(lines, "\n")))
	}

	cur := m.topCursor
	if cur >= len(cats) {
		cur = len(cats) - 1
	}
	var tabs []string
	for i, c := range cats {
		label := truncate(c.Label, 18)
		if i == cur {
			tabs = append(tabs, t.CategoryStyle(c.ID).Bold(true).Underline(true).Render(label))
		} else {
			tabs = append(tabs, t.Muted.Render(label))
		}
	}
	lines = append(lines, clip(strings.Join(tabs, "  "), m.width-8), "")

	c := cats[cur]
	lines = append(lines, t.Base.Render(fmt.Sprintf("%s projecten · %s", export.FormatInt(c.ProjectCount), export.FormatMillions(c.TotalAmount))), "")
	n := len(c.LargestProjects)
	if n > 10 {
		n = 10
	}
	nameWidth := m.width - 50
	if nameWidth < 20 {
		nameWidth = 20
	}
	for i := 0; i < n; i++ {
		p := c.LargestProjects[i]
		lines = append(lines, padLeft(itoa(i+1), 3)+". "+
			fitCell(singleLine(p.ACShort), nameWidth)+" "+
			fitCell(p.Municipality, 18)+" "+
			t.Amount.Render(padLeft(export.FormatMillions(p.TotalAmount), 10)))
	}
	if n == 0 {
		lines = append(lines, t.Muted.Italic(true).Render("Geen voorbeeldprojecten"))
	}
	lines = append(lines, "", t.Muted.Italic(true).Render("←/→: categorie | enter: filter op categorie | esc: sluiten"))
	return lipgloss.Place(m.width, m.bodyHeight(), lipgloss.Center, lipgloss.Center, t.Box.Render(strings.Join(lines, "\n")))
}

func (m Model) renderHelpOverlay() string {
	t := m.theme
	keys := [][2]string{
		{"/", "zoeken"},
		{"m / M", "gemeente kiezen / wissen"},
		{"v", "volgende provincie"},
		{"c", "categorieën"},
		{"x", "alle filters wissen"},
		{"s", "sortering wisselen"},
		{"n / p", "volgende / vorige pagina"},
		{"enter", "projectdetail"},
		{"a", "alle projecten laden"},
		{"t", "top projecten per categorie"},
		{"e / E", "exporteer CSV / Markdown"},
		{"y", "kopieer project naar klembord"},
		{"R", "herladen na wijziging op schijf"},
		{"q", "afsluiten"},
	}
	lines := []string{t.Title.Render("Sneltoetsen"), ""}
	for _, k := range keys {
		lines = append(lines, t.Key.Render(padRight(k[0], 8))+" "+t.Base.Render(k[1]))
	}
	lines = append(lines, "", t.Muted.Italic(true).Render("druk op een toets om te sluiten"))
	return lipgloss.Place(m.width, m.bodyHeight(), lipgloss.Center, lipgloss.Center, t.Box.Render(strings.Join(lines, "\n")))
}

func (m Model) renderFooter() string {
	t := m.theme
	if m.statusMsg != "" {
		style, prefix := t.Success, "✓ "
		if m.statusIsError {
			style, prefix = t.Error, "✗ "
		}
		return style.Render(truncate(prefix+m.statusMsg, m.width-2))
	}

	var hints []string
	add := func(key, label string) {
		hints = append(hints, t.Key.Render(key)+" "+t.Muted.Render(label))
	}
	switch {
	case m.phase == phaseFatal:
		add("r", "opnieuw")
		add("q", "afsluiten")
	case m.focused == focusSearch:
		add("enter", "klaar")
		add("esc", "annuleren")
	case m.focused == focusDetail:
		add("↑/↓", "scrollen")
		add("y", "kopiëren")
		add("esc", "terug")
	case m.focused != focusList:
		add("esc", "terug")
	default:
		add("/", "zoek")
		add("m", "gemeente")
		add("c", "categorie")
		add("s", "sorteer")
		add("enter", "detail")
		add("?", "help")
		add("q", "stop")
	}
	if m.datasetChanged {
		hints = append(hints, t.Warning.Render("R herladen"))
	}
	return clip(strings.Join(hints, "  "), m.width)
}
