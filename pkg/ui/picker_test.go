package ui

import (
	"strings"
	"testing"
)

func TestFuzzyScore(t *testing.T) {
	tests := []struct {
		name, query string
		min         int
		max         int
	}{
		{"Gent", "gent", 1000, 1000},
		{"Gent", "GENT", 1000, 1000},
		{"Gent", "ge", 500, 999},
		{"Sint-Genesius-Rode", "genes", 200, 499},
		{"Oostende", "otd", 1, 199},
		{"Gent", "xyz", 0, 0},
		{"Gent", "gentbrugge", 0, 0},
	}
	for _, tt := range tests {
		got := fuzzyScore(tt.name, tt.query)
		if got < tt.min || got > tt.max {
			t.Errorf("fuzzyScore(%q, %q) = %d, want in [%d, %d]", tt.name, tt.query, got, tt.min, tt.max)
		}
	}
}

func TestFuzzyScore_WordStartBonus(t *testing.T) {
	boundary := fuzzyScore("Oud-Heverlee", "oh")
	inner := fuzzyScore("Hooghe", "oh")
	if boundary <= inner {
		t.Errorf("word starts should score higher: %d <= %d", boundary, inner)
	}
}

func TestFuzzyScore_Accents(t *testing.T) {
	if fuzzyScore("Écaussinnes", "écaussinnes") != 1000 {
		t.Error("case folding should handle accented capitals")
	}
}

func pickerNames() []string {
	return []string{"Antwerpen", "Brugge", "Gent", "Sint-Genesius-Rode"}
}

func TestMunicipalityPicker_Filter(t *testing.T) {
	p := NewMunicipalityPicker(pickerNames(), TestTheme())
	if p.Len() != 4 || len(p.Filtered()) != 4 {
		t.Fatalf("expected all names before typing, got %v", p.Filtered())
	}

	p.SetQuery("gen")
	got := p.Filtered()
	if len(got) != 2 || got[0] != "Gent" || got[1] != "Sint-Genesius-Rode" {
		t.Fatalf("filtered = %v, want prefix match first", got)
	}
	if p.Selected() != "Gent" {
		t.Errorf("selected = %q", p.Selected())
	}

	p.MoveDown()
	if p.Selected() != "Sint-Genesius-Rode" {
		t.Errorf("after MoveDown selected = %q", p.Selected())
	}
	p.MoveDown()
	if p.Selected() != "Sint-Genesius-Rode" {
		t.Errorf("MoveDown past the end moved to %q", p.Selected())
	}
	p.MoveUp()
	p.MoveUp()
	if p.Selected() != "Gent" {
		t.Errorf("after MoveUp selected = %q", p.Selected())
	}
}

func TestMunicipalityPicker_NoMatch(t *testing.T) {
	p := NewMunicipalityPicker(pickerNames(), TestTheme())
	p.SetQuery("zzz")
	if p.Selected() != "" {
		t.Errorf("selected = %q, want empty", p.Selected())
	}
	if !strings.Contains(p.View(), "Geen gemeente gevonden") {
		t.Error("view should show the empty state")
	}

	p.Reset()
	if len(p.Filtered()) != 4 || p.Selected() != "Antwerpen" {
		t.Errorf("reset = %v / %q", p.Filtered(), p.Selected())
	}
}

func TestMunicipalityPicker_SetNamesKeepsQuery(t *testing.T) {
	p := NewMunicipalityPicker(nil, TestTheme())
	p.SetQuery("brug")
	if len(p.Filtered()) != 0 {
		t.Fatalf("expected no matches on an empty list")
	}
	p.SetNames(pickerNames())
	if got := p.Filtered(); len(got) != 1 || got[0] != "Brugge" {
		t.Errorf("filtered = %v", got)
	}
}

func TestMunicipalityPicker_View(t *testing.T) {
	p := NewMunicipalityPicker(pickerNames(), TestTheme())
	p.SetSize(80, 24)
	view := p.View()
	for _, want := range []string{"Kies gemeente", "Antwerpen", "Sint-Genesius-Rode"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}
