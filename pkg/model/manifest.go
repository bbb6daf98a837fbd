package model

import (
	"errors"
	"fmt"
	"sort"
)

// ProjectSummary is the compact project sample carried by the manifest.
type ProjectSummary struct {
	ACCode        string      `json:"ac_code"`
	ACShort       string      `json:"ac_short"`
	Municipality  string      `json:"municipality"`
	NISCode       string      `json:"nis_code"`
	TotalAmount   float64     `json:"total_amount"`
	YearlyAmounts YearAmounts `json:"yearly_amounts"`
}

// Category describes one category tag and its dataset-wide totals.
type Category struct {
	ID              string           `json:"id"`
	Label           string           `json:"label"`
	ProjectCount    int              `json:"project_count"`
	TotalAmount     float64          `json:"total_amount"`
	LargestProjects []ProjectSummary `json:"largest_projects"`
}

// Manifest is the dataset-level metadata loaded before any chunk.
type Manifest struct {
	TotalProjects  int                 `json:"total_projects"`
	TotalAmount    float64             `json:"total_amount"`
	Municipalities int                 `json:"municipalities"`
	Chunks         int                 `json:"chunks"`
	ChunkSize      int                 `json:"chunk_size"`
	Categories     map[string]Category `json:"categories"`
}

// Validate checks the fields the loader depends on.
func (m *Manifest) Validate() error {
	if m.Chunks < 0 {
		return fmt.Errorf("chunks must be >= 0, got %d", m.Chunks)
	}
	if m.Chunks == 0 && m.TotalProjects > 0 {
		return errors.New("manifest lists projects but no chunks")
	}
	if m.ChunkSize < 0 {
		return fmt.Errorf("chunk_size must be >= 0, got %d", m.ChunkSize)
	}
	return nil
}

// Label returns the display label for a category id, or the id itself.
func (m *Manifest) Label(id string) string {
	if m == nil {
		return id
	}
	if c, ok := m.Categories[id]; ok && c.Label != "" {
		return c.Label
	}
	return id
}

// SortedCategories returns the non-empty categories ordered by total amount
// descending, with "overige" always last.
func (m *Manifest) SortedCategories() []Category {
	if m == nil {
		return nil
	}
	out := make([]Category, 0, len(m.Categories))
	for id, c := range m.Categories {
		if c.ProjectCount <= 0 {
			continue
		}
		if c.ID == "" {
			c.ID = id
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ID == OtherCategory {
			return false
		}
		if out[j].ID == OtherCategory {
			return true
		}
		if out[i].TotalAmount != out[j].TotalAmount {
			return out[i].TotalAmount > out[j].TotalAmount
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// OtherCategory is the catch-all category id.
const OtherCategory = "overige"
