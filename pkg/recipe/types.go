// Package recipe provides named filter presets for bk.
//
// Recipes come from three layers, later layers overriding earlier ones by
// name: built-in, user (~/.config/bk/recipes.yaml) and project
// (./.bk/recipes.yaml). A recipe set to null in a later layer is disabled.
package recipe

import (
	"fmt"

	"github.com/vanderheijden86/bouwkansen/pkg/query"
)

// Recipe is a named filter and sort preset.
type Recipe struct {
	Name        string       `yaml:"-" json:"name"`
	Description string       `yaml:"description,omitempty" json:"description,omitempty"`
	Filters     FilterConfig `yaml:"filters,omitempty" json:"filters,omitempty"`
	Sort        string       `yaml:"sort,omitempty" json:"sort,omitempty"`
}

// FilterConfig mirrors query.Filters in recipe files.
type FilterConfig struct {
	Municipality string   `yaml:"municipality,omitempty" json:"municipality,omitempty"`
	Province     string   `yaml:"province,omitempty" json:"province,omitempty"`
	Categories   []string `yaml:"categories,omitempty" json:"categories,omitempty"`
	Search       string   `yaml:"search,omitempty" json:"search,omitempty"`
}

// Query returns the filters and sort option of r. An empty sort is "".
func (r *Recipe) Query() (query.Filters, query.SortOption, error) {
	f := query.Filters{
		Municipality: r.Filters.Municipality,
		Province:     r.Filters.Province,
		Categories:   r.Filters.Categories,
		Search:       r.Filters.Search,
	}.Normalize()
	if r.Sort == "" {
		return f, "", nil
	}
	s, err := query.ParseSort(r.Sort)
	if err != nil {
		return f, "", fmt.Errorf("recipe %s: %w", r.Name, err)
	}
	return f, s, nil
}

// Merge overlays overrides on base: every non-empty field of overrides
// wins.
func Merge(base, overrides query.Filters) query.Filters {
	out := base
	if overrides.Municipality != "" {
		out.Municipality = overrides.Municipality
	}
	if overrides.Province != "" {
		out.Province = overrides.Province
	}
	if len(overrides.Categories) > 0 {
		out.Categories = overrides.Categories
	}
	if overrides.Search != "" {
		out.Search = overrides.Search
	}
	return out.Normalize()
}

// Summary describes a recipe for listings.
type Summary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Source      string `json:"source"` // builtin, user or project
}

// File is the layout of a recipes.yaml file. A nil entry disables the
// recipe of that name.
type File struct {
	Recipes map[string]*Recipe `yaml:"recipes"`
}
