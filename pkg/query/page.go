package query

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/vanderheijden86/bouwkansen/pkg/model"
)

// PageResult is one page of query results.
type PageResult struct {
	Items []model.Project
	// Page is 1-based and clamped to [1, Pages].
	Page  int
	Pages int
	Size  int
	Total int
}

// Page returns page n (1-based) of results. A size <= 0 uses
// DefaultPageSize. Out-of-range pages are clamped.
func Page(results []model.Project, n, size int) PageResult {
	if size <= 0 {
		size = DefaultPageSize
	}
	pages := (len(results) + size - 1) / size
	if pages == 0 {
		pages = 1
	}
	if n < 1 {
		n = 1
	}
	if n > pages {
		n = pages
	}
	start := (n - 1) * size
	end := start + size
	if end > len(results) {
		end = len(results)
	}
	return PageResult{
		Items: results[start:end:end],
		Page:  n,
		Pages: pages,
		Size:  size,
		Total: len(results),
	}
}

// HasNext reports whether a page follows this one.
func (p PageResult) HasNext() bool { return p.Page < p.Pages }

// HasPrev reports whether a page precedes this one.
func (p PageResult) HasPrev() bool { return p.Page > 1 }

// Offset returns the 0-based index of the first item within all results.
func (p PageResult) Offset() int { return (p.Page - 1) * p.Size }

// Summary aggregates the amounts of a result set.
type Summary struct {
	Count  int     `json:"count"`
	Total  float64 `json:"total"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Max    float64 `json:"max"`
	// Yearly sums the planned amounts per year.
	Yearly model.YearAmounts `json:"yearly"`
}

// Summarize computes totals and distribution figures for results.
func Summarize(results []model.Project) Summary {
	s := Summary{Count: len(results)}
	if len(results) == 0 {
		return s
	}
	amounts := make([]float64, len(results))
	for i := range results {
		amounts[i] = results[i].TotalAmount
		for y := range s.Yearly {
			s.Yearly[y] += results[i].YearlyAmounts[y]
		}
	}
	s.Total = floats.Sum(amounts)
	s.Mean = stat.Mean(amounts, nil)
	sort.Float64s(amounts)
	s.Median = stat.Quantile(0.5, stat.Empirical, amounts, nil)
	s.Max = floats.Max(amounts)
	return s
}

// CategoryCount is the number of records carrying one category.
type CategoryCount struct {
	ID     string
	Label  string
	Count  int
	Amount float64
}

// CategoryCounts counts records per category, restricted to municipality
// when it is non-empty. Labels come from m when available. The result is
// ordered by count descending, then label, with "overige" last.
func CategoryCounts(records []model.Project, municipality string, m *model.Manifest) []CategoryCount {
	byID := make(map[string]*CategoryCount)
	for i := range records {
		p := &records[i]
		if municipality != "" && p.Municipality != municipality {
			continue
		}
		for _, c := range p.Categories {
			cc, ok := byID[c]
			if !ok {
				cc = &CategoryCount{ID: c, Label: m.Label(c)}
				byID[c] = cc
			}
			cc.Count++
			cc.Amount += p.TotalAmount
		}
	}
	out := make([]CategoryCount, 0, len(byID))
	for _, cc := range byID {
		out = append(out, *cc)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if (a.ID == model.OtherCategory) != (b.ID == model.OtherCategory) {
			return b.ID == model.OtherCategory
		}
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if a.Label != b.Label {
			return a.Label < b.Label
		}
		return a.ID < b.ID
	})
	return out
}

// Municipalities returns the distinct municipality names in records in
// Dutch collation order.
func Municipalities(records []model.Project) []string {
	seen := make(map[string]struct{})
	var names []string
	for i := range records {
		n := records[i].Municipality
		if _, ok := seen[n]; ok || n == "" {
			continue
		}
		seen[n] = struct{}{}
		names = append(names, n)
	}
	sortDutch(names)
	return names
}
