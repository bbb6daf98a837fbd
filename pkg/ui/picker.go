package ui

import (
	"sort"
	"strings"
	"unicode"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
)

// MunicipalityPicker is a fuzzy search popup over the municipalities seen in
// the loaded records. Names are kept in the order given (Dutch collation).
type MunicipalityPicker struct {
	all           []string
	filtered      []string
	input         textinput.Model
	selectedIndex int
	width         int
	height        int
	theme         Theme
}

// NewMunicipalityPicker creates a picker over names.
func NewMunicipalityPicker(names []string, theme Theme) MunicipalityPicker {
	ti := textinput.New()
	ti.Placeholder = "typ om te zoeken..."
	ti.CharLimit = 50
	ti.Width = 30
	ti.Focus()

	p := MunicipalityPicker{input: ti, theme: theme}
	p.SetNames(names)
	return p
}

// SetSize updates the picker dimensions.
func (p *MunicipalityPicker) SetSize(width, height int) {
	p.width = width
	p.height = height
}

// SetNames replaces the candidate list and refilters.
func (p *MunicipalityPicker) SetNames(names []string) {
	p.all = append([]string(nil), names...)
	p.filter()
}

// Len returns the number of candidates.
func (p *MunicipalityPicker) Len() int { return len(p.all) }

// MoveUp moves the selection up.
func (p *MunicipalityPicker) MoveUp() {
	if p.selectedIndex > 0 {
		p.selectedIndex--
	}
}

// MoveDown moves the selection down.
func (p *MunicipalityPicker) MoveDown() {
	if p.selectedIndex < len(p.filtered)-1 {
		p.selectedIndex++
	}
}

// Selected returns the highlighted name, or "" when nothing matches.
func (p *MunicipalityPicker) Selected() string {
	if len(p.filtered) == 0 || p.selectedIndex >= len(p.filtered) {
		return ""
	}
	return p.filtered[p.selectedIndex]
}

// Filtered returns the names matching the current input.
func (p *MunicipalityPicker) Filtered() []string { return p.filtered }

// UpdateInput feeds a key message to the text input.
func (p *MunicipalityPicker) UpdateInput(msg interface{}) {
	p.input, _ = p.input.Update(msg)
	p.filter()
}

// SetQuery replaces the input text.
func (p *MunicipalityPicker) SetQuery(q string) {
	p.input.SetValue(q)
	p.filter()
}

// Reset clears the input and the selection.
func (p *MunicipalityPicker) Reset() {
	p.input.SetValue("")
	p.filter()
}

func (p *MunicipalityPicker) filter() {
	q := strings.TrimSpace(p.input.Value())
	if q == "" {
		p.filtered = p.all
		p.selectedIndex = 0
		return
	}

	type scored struct {
		name  string
		score int
		pos   int
	}
	var matches []scored
	for i, name := range p.all {
		if s := fuzzyScore(name, q); s > 0 {
			matches = append(matches, scored{name, s, i})
		}
	}
	// Higher score first; ties keep the collated order.
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].pos < matches[j].pos
	})

	p.filtered = make([]string, len(matches))
	for i, m := range matches {
		p.filtered[i] = m.name
	}
	if p.selectedIndex >= len(p.filtered) {
		p.selectedIndex = len(p.filtered) - 1
	}
	if p.selectedIndex < 0 {
		p.selectedIndex = 0
	}
}

// fuzzyScore returns how well query matches name (0 = no match), fzf-style:
// exact beats prefix beats substring beats subsequence, with bonuses for
// consecutive runs and word starts. Matching is case-folded per rune.
func fuzzyScore(name, query string) int {
	fold := cases.Fold()
	n := fold.String(name)
	q := fold.String(query)

	if n == q {
		return 1000
	}
	if strings.HasPrefix(n, q) {
		return 500 + len(q)
	}
	if strings.Contains(n, q) {
		return 200 + len(q)
	}

	nr, qr := []rune(n), []rune(q)
	ni, qi := 0, 0
	score, consecutive, last := 0, 0, -1
	for ni < len(nr) && qi < len(qr) {
		if nr[ni] == qr[qi] {
			qi++
			s := 10
			if last == ni-1 {
				consecutive++
				s += consecutive * 5
			} else {
				consecutive = 0
			}
			if ni == 0 || !unicode.IsLetter(nr[ni-1]) {
				s += 15
			}
			score += s
			last = ni
		}
		ni++
	}
	if qi == len(qr) {
		return score
	}
	return 0
}

// View renders the picker overlay.
func (p *MunicipalityPicker) View() string {
	width, height := p.width, p.height
	if width == 0 {
		width = 60
	}
	if height == 0 {
		height = 20
	}
	t := p.theme

	boxWidth := 44
	if width < 54 {
		boxWidth = width - 10
	}
	if boxWidth < 25 {
		boxWidth = 25
	}
	maxVisible := 10
	if height < 17 {
		maxVisible = height - 7
	}
	if maxVisible < 3 {
		maxVisible = 3
	}

	lines := []string{t.Title.Render("Kies gemeente"), ""}
	inputStyle := t.Renderer.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(ColorSecondary).
		Padding(0, 1).
		Width(boxWidth - 6)
	lines = append(lines, inputStyle.Render(p.input.View()), "")

	if len(p.filtered) == 0 {
		lines = append(lines, t.Muted.Italic(true).Render("  Geen gemeente gevonden"))
	} else {
		start := 0
		if p.selectedIndex >= maxVisible {
			start = p.selectedIndex - maxVisible + 1
		}
		end := start + maxVisible
		if end > len(p.filtered) {
			end = len(p.filtered)
		}
		for i := start; i < end; i++ {
			prefix, style := "  ", t.Base
			if i == p.selectedIndex {
				prefix, style = "> ", t.Key
			}
			lines = append(lines, style.Render(prefix+truncate(p.filtered[i], boxWidth-8)))
		}
		if len(p.filtered) > maxVisible {
			lines = append(lines, "", t.Muted.Italic(true).Render(
				"  ("+itoa(p.selectedIndex+1)+"/"+itoa(len(p.filtered))+")"))
		}
	}

	lines = append(lines, "", t.Muted.Italic(true).Render("↑/↓: kies | enter: toepassen | esc: annuleren"))

	box := t.Box.Width(boxWidth).Render(strings.Join(lines, "\n"))
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}
