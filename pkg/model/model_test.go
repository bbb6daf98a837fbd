package model_test

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/vanderheijden86/bouwkansen/pkg/model"
)

func TestYearAmountsDecode(t *testing.T) {
	var y model.YearAmounts
	if err := json.Unmarshal([]byte(`{"2026": 10, "2031": 5.5}`), &y); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if y.Get(2026) != 10 || y.Get(2031) != 5.5 {
		t.Errorf("unexpected amounts %v", y)
	}
	if y.Get(2028) != 0 {
		t.Errorf("missing year should be 0, got %v", y.Get(2028))
	}
	if y.Get(2040) != 0 {
		t.Errorf("out of range year should be 0")
	}
}

func TestYearAmountsRejectsUnknownYear(t *testing.T) {
	var y model.YearAmounts
	if err := json.Unmarshal([]byte(`{"2025": 1}`), &y); err == nil {
		t.Fatal("expected error for year outside planning period")
	}
	if err := json.Unmarshal([]byte(`{"twenty": 1}`), &y); err == nil {
		t.Fatal("expected error for non-numeric year key")
	}
}

func TestYearAmountsPeakAndSum(t *testing.T) {
	y := model.YearAmounts{1, 7, 7, 2, 0, 3}
	year, amount := y.Peak()
	if year != 2027 || amount != 7 {
		t.Errorf("Peak() = %d, %v; want 2027, 7", year, amount)
	}
	if y.Sum() != 20 {
		t.Errorf("Sum() = %v; want 20", y.Sum())
	}
}

func TestProjectDecodeAndKey(t *testing.T) {
	raw := `{"municipality":"Gent","nis_code":"44021","ac_code":"AC1","ac_short":"Fietspad",
		"total_amount":1200.5,"yearly_amounts":{"2026":1200.5},"categories":["mobiliteit"]}`
	var p model.Project
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got := p.Key(); got != (model.Key{NIS: "44021", Code: "AC1"}) {
		t.Errorf("Key() = %v", got)
	}
	if !p.HasCategory("mobiliteit") || p.HasCategory("sport") {
		t.Errorf("HasCategory mismatch for %v", p.Categories)
	}
}

func TestProjectValidate(t *testing.T) {
	tests := []struct {
		name string
		p    model.Project
	}{
		{"missing nis", model.Project{Municipality: "Gent", ACCode: "A"}},
		{"missing code", model.Project{Municipality: "Gent", NISCode: "44021"}},
		{"missing municipality", model.Project{NISCode: "44021", ACCode: "A"}},
		{"blank category", model.Project{Municipality: "Gent", NISCode: "44021", ACCode: "A", Categories: []string{" "}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.p.Validate(); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}

func TestManifestSortedCategories(t *testing.T) {
	m := model.Manifest{
		Chunks: 2,
		Categories: map[string]model.Category{
			"overige":    {Label: "Overige", ProjectCount: 5, TotalAmount: 1e9},
			"sport":      {Label: "Sport", ProjectCount: 2, TotalAmount: 10},
			"mobiliteit": {Label: "Mobiliteit", ProjectCount: 3, TotalAmount: 50},
			"leeg":       {Label: "Leeg", ProjectCount: 0, TotalAmount: 100},
		},
	}
	got := m.SortedCategories()
	want := []string{"mobiliteit", "sport", "overige"}
	if len(got) != len(want) {
		t.Fatalf("got %d categories, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("position %d: got %s, want %s", i, got[i].ID, id)
		}
	}
	if m.Label("sport") != "Sport" || m.Label("unknown") != "unknown" {
		t.Errorf("Label lookup mismatch")
	}
}

func TestManifestValidate(t *testing.T) {
	if err := (&model.Manifest{Chunks: -1}).Validate(); err == nil {
		t.Error("expected error for negative chunks")
	}
	if err := (&model.Manifest{TotalProjects: 3}).Validate(); err == nil {
		t.Error("expected error for projects without chunks")
	}
	if err := (&model.Manifest{Chunks: 3, TotalProjects: 3}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
