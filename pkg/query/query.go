// Package query filters, sorts and pages project records. Every function is
// pure: it reads its inputs, never modifies them, and performs no I/O.
package query

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/vanderheijden86/bouwkansen/pkg/geo"
	"github.com/vanderheijden86/bouwkansen/pkg/metrics"
	"github.com/vanderheijden86/bouwkansen/pkg/model"
)

// MaxSearchLength caps the free-text search input, in runes.
const MaxSearchLength = 200

// DefaultPageSize is the number of results per page.
const DefaultPageSize = 50

// Filters selects records. Zero-valued fields do not filter.
type Filters struct {
	Municipality string   `json:"municipality,omitempty"`
	Province     string   `json:"province,omitempty"` // province NIS code
	Categories   []string `json:"categories,omitempty"`
	Search       string   `json:"search,omitempty"`
}

// Normalize trims inputs, caps the search text and removes blank or repeated
// categories. It returns a copy.
func (f Filters) Normalize() Filters {
	out := Filters{
		Municipality: strings.TrimSpace(f.Municipality),
		Province:     strings.TrimSpace(f.Province),
		Search:       strings.TrimSpace(f.Search),
	}
	if utf8.RuneCountInString(out.Search) > MaxSearchLength {
		out.Search = strings.TrimSpace(string([]rune(out.Search)[:MaxSearchLength]))
	}
	seen := make(map[string]bool, len(f.Categories))
	for _, c := range f.Categories {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out.Categories = append(out.Categories, c)
	}
	return out
}

// Empty reports whether no filter is set.
func (f Filters) Empty() bool {
	return f.Municipality == "" && f.Province == "" && len(f.Categories) == 0 && f.Search == ""
}

// HasCategory reports whether id is one of the selected categories.
func (f Filters) HasCategory(id string) bool {
	for _, c := range f.Categories {
		if c == id {
			return true
		}
	}
	return false
}

// ToggleCategory returns a copy with id added to or removed from the
// selection.
func (f Filters) ToggleCategory(id string) Filters {
	out := f
	out.Categories = nil
	found := false
	for _, c := range f.Categories {
		if c == id {
			found = true
			continue
		}
		out.Categories = append(out.Categories, c)
	}
	if !found {
		out.Categories = append(out.Categories, id)
	}
	return out
}

// SortOption orders query results.
type SortOption string

const (
	SortAmountDesc   SortOption = "amount-desc"
	SortAmountAsc    SortOption = "amount-asc"
	SortMunicipality SortOption = "municipality"
	SortCategory     SortOption = "category"
)

// SortOptions lists the sort options in cycling order.
var SortOptions = []SortOption{SortAmountDesc, SortAmountAsc, SortMunicipality, SortCategory}

// ParseSort parses a sort option; "_" may stand in for "-". The empty
// string is SortAmountDesc.
func ParseSort(s string) (SortOption, error) {
	switch SortOption(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")) {
	case "", SortAmountDesc:
		return SortAmountDesc, nil
	case SortAmountAsc:
		return SortAmountAsc, nil
	case SortMunicipality:
		return SortMunicipality, nil
	case SortCategory:
		return SortCategory, nil
	}
	return "", fmt.Errorf("unknown sort %q (want one of amount-desc, amount-asc, municipality, category)", s)
}

// Next returns the option after o in SortOptions.
func (o SortOption) Next() SortOption {
	for i, s := range SortOptions {
		if s == o {
			return SortOptions[(i+1)%len(SortOptions)]
		}
	}
	return SortAmountDesc
}

// Label is a short Dutch description for display.
func (o SortOption) Label() string {
	switch o {
	case SortAmountAsc:
		return "Bedrag (laag-hoog)"
	case SortMunicipality:
		return "Gemeente (A-Z)"
	case SortCategory:
		return "Categorie"
	default:
		return "Bedrag (hoog-laag)"
	}
}

// Run returns the records passing f in the order given by s. The input is
// not modified. Sorting is stable; records that compare equal keep their
// input order.
func Run(records []model.Project, f Filters, s SortOption) []model.Project {
	defer metrics.Timer(metrics.QueryRun)()

	m := newMatcher(f)
	out := make([]model.Project, 0, len(records))
	for i := range records {
		if m.match(&records[i]) {
			out = append(out, records[i])
		}
	}
	sortProjects(out, s)
	return out
}

type matcher struct {
	f      Filters
	fold   cases.Caser
	needle string
}

func newMatcher(f Filters) *matcher {
	// Casers keep state and are not safe for concurrent use.
	m := &matcher{f: f, fold: cases.Fold()}
	if f.Search != "" {
		m.needle = m.fold.String(f.Search)
	}
	return m
}

func (m *matcher) match(p *model.Project) bool {
	if m.f.Municipality != "" && p.Municipality != m.f.Municipality {
		return false
	}
	if m.f.Province != "" && geo.ProvinceFor(p.NISCode) != m.f.Province {
		return false
	}
	if len(m.f.Categories) > 0 && !m.anyCategory(p) {
		return false
	}
	if m.needle != "" {
		return m.contains(p.ACShort) || m.contains(p.ACLong) || m.contains(p.Municipality)
	}
	return true
}

func (m *matcher) anyCategory(p *model.Project) bool {
	for _, c := range m.f.Categories {
		if p.HasCategory(c) {
			return true
		}
	}
	return false
}

func (m *matcher) contains(s string) bool {
	return s != "" && strings.Contains(m.fold.String(s), m.needle)
}

func sortProjects(ps []model.Project, s SortOption) {
	switch s {
	case SortAmountAsc:
		sort.SliceStable(ps, func(i, j int) bool { return ps[i].TotalAmount < ps[j].TotalAmount })
	case SortMunicipality:
		col := collate.New(language.Dutch)
		sort.SliceStable(ps, func(i, j int) bool {
			return col.CompareString(ps[i].Municipality, ps[j].Municipality) < 0
		})
	case SortCategory:
		col := collate.New(language.Dutch)
		sort.SliceStable(ps, func(i, j int) bool {
			return col.CompareString(firstCategory(&ps[i]), firstCategory(&ps[j])) < 0
		})
	default:
		sort.SliceStable(ps, func(i, j int) bool { return ps[i].TotalAmount > ps[j].TotalAmount })
	}
}

func firstCategory(p *model.Project) string {
	if len(p.Categories) == 0 {
		return ""
	}
	return p.Categories[0]
}

func sortDutch(names []string) {
	collate.New(language.Dutch).SortStrings(names)
}
