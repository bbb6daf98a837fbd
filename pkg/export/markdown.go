package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/natefinch/atomic"

	"github.com/vanderheijden86/bouwkansen/pkg/geo"
	"github.com/vanderheijden86/bouwkansen/pkg/model"
	"github.com/vanderheijden86/bouwkansen/pkg/query"
)

// escapeCell makes text safe inside a Markdown table cell.
var escapeCell = strings.NewReplacer("|", "\\|", "\n", " ", "\r", "")

// CategoryLabels joins the labels of p's categories.
func CategoryLabels(p *model.Project, m *model.Manifest) string {
	labels := make([]string, len(p.Categories))
	for i, c := range p.Categories {
		labels[i] = m.Label(c)
	}
	return strings.Join(labels, ", ")
}

// ProjectMarkdown renders the detail sheet of one project: identity, amounts,
// description, yearly planning with shares and peak year, and the policy
// context it belongs to.
func ProjectMarkdown(p *model.Project, m *model.Manifest) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s\n\n", p.Title())
	fmt.Fprintf(&sb, "- **Gemeente:** %s (NIS %s, %s)\n", p.Municipality, p.NISCode, geo.ProvinceName(geo.ProvinceFor(p.NISCode)))
	fmt.Fprintf(&sb, "- **Projectcode:** `%s`\n", p.ACCode)
	if len(p.Categories) > 0 {
		fmt.Fprintf(&sb, "- **Categorieën:** %s\n", CategoryLabels(p, m))
	}
	fmt.Fprintf(&sb, "- **Totaal:** %s", FormatEuro(p.TotalAmount))
	if p.AmountPerCapita > 0 {
		fmt.Fprintf(&sb, " (%s per inwoner)", FormatEuroCents(p.AmountPerCapita))
	}
	sb.WriteString("\n\n")

	if desc := strings.TrimSpace(p.ACLong); desc != "" && desc != p.Title() {
		sb.WriteString("## Beschrijving\n\n")
		sb.WriteString(desc)
		sb.WriteString("\n\n")
	}

	sb.WriteString("## Meerjarenplanning\n\n")
	sb.WriteString("| Jaar | Bedrag | Aandeel |\n")
	sb.WriteString("|------|-------:|--------:|\n")
	sum := p.YearlyAmounts.Sum()
	for i, year := range model.Years {
		amount := p.YearlyAmounts[i]
		share := "-"
		if sum > 0 {
			share = FormatPercent(amount / sum)
		}
		fmt.Fprintf(&sb, "| %d | %s | %s |\n", year, FormatEuro(amount), share)
	}
	if year, amount := p.YearlyAmounts.Peak(); amount > 0 {
		fmt.Fprintf(&sb, "\nPiekjaar: **%d** (%s)\n", year, FormatEuro(amount))
	}

	if p.APShort != "" || p.BDShort != "" {
		sb.WriteString("\n## Context\n\n")
		if p.APShort != "" {
			fmt.Fprintf(&sb, "- **Actieplan** %s: %s\n", p.APCode, p.APShort)
		}
		if p.BDShort != "" {
			fmt.Fprintf(&sb, "- **Beleidsdoelstelling** %s: %s\n", p.BDCode, p.BDShort)
		}
	}
	return sb.String()
}

// ReportOptions configures ReportMarkdown.
type ReportOptions struct {
	Title    string
	Filters  query.Filters
	Manifest *model.Manifest
	// Limit caps the project table; 0 means 100.
	Limit int
	// Now stamps the report; zero uses time.Now.
	Now time.Time
}

// ReportMarkdown renders a summary report of a result set: totals, category
// breakdown and the largest projects.
func ReportMarkdown(results []model.Project, opts ReportOptions) string {
	if opts.Title == "" {
		opts.Title = "Gemeentelijke investeringsprojecten"
	}
	if opts.Limit <= 0 {
		opts.Limit = 100
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", opts.Title)
	fmt.Fprintf(&sb, "*Gegenereerd: %s*\n\n", opts.Now.Format("2006-01-02 15:04"))

	if f := describeFilters(opts.Filters, opts.Manifest); f != "" {
		fmt.Fprintf(&sb, "Filters: %s\n\n", f)
	}

	s := query.Summarize(results)
	sb.WriteString("## Samenvatting\n\n")
	fmt.Fprintf(&sb, "- **Projecten:** %s\n", FormatInt(s.Count))
	fmt.Fprintf(&sb, "- **Totaal:** %s\n", FormatEuro(s.Total))
	if s.Count > 0 {
		fmt.Fprintf(&sb, "- **Gemiddeld:** %s\n", FormatEuro(s.Mean))
		fmt.Fprintf(&sb, "- **Mediaan:** %s\n", FormatEuro(s.Median))
	}
	sb.WriteString("\n")

	if counts := query.CategoryCounts(results, opts.Filters.Municipality, opts.Manifest); len(counts) > 0 {
		sb.WriteString("## Per categorie\n\n")
		sb.WriteString("| Categorie | Projecten | Bedrag |\n")
		sb.WriteString("|-----------|----------:|-------:|\n")
		for _, c := range counts {
			fmt.Fprintf(&sb, "| %s | %d | %s |\n", escapeCell.Replace(c.Label), c.Count, FormatEuro(c.Amount))
		}
		sb.WriteString("\n")
	}

	if len(results) > 0 {
		sb.WriteString("## Projecten\n\n")
		sb.WriteString("| Gemeente | Project | Bedrag |\n")
		sb.WriteString("|----------|---------|-------:|\n")
		for i := range results {
			if i == opts.Limit {
				fmt.Fprintf(&sb, "\n*… en nog %d projecten*\n", len(results)-opts.Limit)
				break
			}
			p := &results[i]
			fmt.Fprintf(&sb, "| %s | %s | %s |\n",
				escapeCell.Replace(p.Municipality), escapeCell.Replace(p.Title()), FormatEuro(p.TotalAmount))
		}
	}
	return sb.String()
}

func describeFilters(f query.Filters, m *model.Manifest) string {
	var parts []string
	if f.Municipality != "" {
		parts = append(parts, "gemeente "+f.Municipality)
	}
	if f.Province != "" {
		parts = append(parts, "provincie "+geo.ProvinceName(f.Province))
	}
	for _, c := range f.Categories {
		parts = append(parts, "categorie "+m.Label(c))
	}
	if f.Search != "" {
		parts = append(parts, fmt.Sprintf("zoekterm %q", f.Search))
	}
	return strings.Join(parts, ", ")
}

// ExportMarkdown writes ReportMarkdown output to path atomically.
func ExportMarkdown(path string, results []model.Project, opts ReportOptions) error {
	if err := ensureParent(path); err != nil {
		return err
	}
	return atomic.WriteFile(path, strings.NewReader(ReportMarkdown(results, opts)))
}
