package export

import (
	"fmt"
	"sort"

	"github.com/vanderheijden86/bouwkansen/pkg/debug"
	"github.com/vanderheijden86/bouwkansen/pkg/model"
	"github.com/vanderheijden86/bouwkansen/pkg/query"
)

// View is the data an export writes: the current result set and the context
// it was produced in.
type View struct {
	Results  []model.Project
	Filters  query.Filters
	Manifest *model.Manifest
	Title    string
	Source   string
}

// Write exports v to path in format f. An empty format is inferred from the
// path.
func Write(f Format, path string, v View) error {
	if f == "" {
		var err error
		if f, err = FormatFromPath(path); err != nil {
			return err
		}
	}
	debug.Log("export %s: %d projects to %s", f, len(v.Results), path)

	switch f {
	case FormatCSV:
		return ExportCSV(path, v.Results)
	case FormatSQLite:
		e := NewSQLiteExporter(v.Results, v.Manifest)
		e.Title = v.Title
		e.Source = v.Source
		e.Filters = describeFilters(v.Filters, v.Manifest)
		return e.Export(path)
	case FormatSVG, FormatPNG:
		counts := query.CategoryCounts(v.Results, v.Filters.Municipality, v.Manifest)
		sortByAmount(counts)
		s := query.Summarize(v.Results)
		return SaveCategoryChart(ChartOptions{
			Path:     path,
			Format:   f,
			Title:    v.Title,
			Subtitle: fmt.Sprintf("%s projecten, totaal %s", FormatInt(s.Count), FormatMillions(s.Total)),
			Counts:   counts,
		})
	case FormatMD:
		return ExportMarkdown(path, v.Results, ReportOptions{Title: v.Title, Filters: v.Filters, Manifest: v.Manifest})
	}
	return fmt.Errorf("unsupported export format %q", f)
}

// sortByAmount orders chart bars by amount descending, keeping "overige"
// last.
func sortByAmount(counts []query.CategoryCount) {
	sort.SliceStable(counts, func(i, j int) bool {
		a, b := counts[i], counts[j]
		if (a.ID == model.OtherCategory) != (b.ID == model.OtherCategory) {
			return b.ID == model.OtherCategory
		}
		return a.Amount > b.Amount
	})
}
