package query_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"pgregory.net/rapid"

	"github.com/vanderheijden86/bouwkansen/pkg/geo"
	"github.com/vanderheijden86/bouwkansen/pkg/model"
	"github.com/vanderheijden86/bouwkansen/pkg/query"
	"github.com/vanderheijden86/bouwkansen/pkg/testutil"
)

func scenario() []model.Project {
	return []model.Project{
		testutil.P("Gent", "44021", "A1", 100, "wegenbouw"),
		testutil.P("Gent", "44021", "A2", 50, "zorg"),
		testutil.P("Brugge", "31005", "A3", 200, "wegenbouw"),
	}
}

func TestRunScenario(t *testing.T) {
	records := scenario()

	testutil.AssertKeys(t, query.Run(records, query.Filters{Municipality: "Gent"}, query.SortOption("none")), "A1", "A2")
	testutil.AssertKeys(t, query.Run(records, query.Filters{Categories: []string{"wegenbouw"}}, query.SortAmountAsc), "A1", "A3")
	testutil.AssertKeys(t, query.Run(records, query.Filters{}, query.SortAmountDesc), "A3", "A1", "A2")
}

func TestRunSorts(t *testing.T) {
	records := []model.Project{
		testutil.P("Zwevegem", "34042", "Z", 10, "zorg"),
		testutil.P("Aalst", "41002", "A", 30, "cultuur"),
		testutil.P("Ieper", "33011", "I", 20, "sport"),
		testutil.P("Aalst", "41002", "A2", 30),
	}
	testutil.AssertKeys(t, query.Run(records, query.Filters{}, query.SortAmountAsc), "Z", "I", "A", "A2")
	testutil.AssertKeys(t, query.Run(records, query.Filters{}, query.SortAmountDesc), "A", "A2", "I", "Z")
	testutil.AssertKeys(t, query.Run(records, query.Filters{}, query.SortMunicipality), "A", "A2", "I", "Z")
	// No categories sorts first under the category order.
	testutil.AssertKeys(t, query.Run(records, query.Filters{}, query.SortCategory), "A2", "A", "I", "Z")
}

func TestRunCategorySortIsCollated(t *testing.T) {
	records := []model.Project{
		testutil.P("Gent", "44021", "Z", 10, "Zorg"),
		testutil.P("Gent", "44021", "S", 10, "sport"),
		testutil.P("Gent", "44021", "E", 10, "école"),
	}
	// Case and accents do not push a category to the end.
	testutil.AssertKeys(t, query.Run(records, query.Filters{}, query.SortCategory), "E", "S", "Z")
}

func TestRunDoesNotModifyInput(t *testing.T) {
	records := scenario()
	before := append([]model.Project(nil), records...)
	_ = query.Run(records, query.Filters{}, query.SortAmountAsc)
	if diff := cmp.Diff(before, records); diff != "" {
		t.Errorf("input modified (-before +after):\n%s", diff)
	}
}

func TestRunSearch(t *testing.T) {
	records := []model.Project{
		testutil.P("Gent", "44021", "A1", 1),
		testutil.P("Brugge", "31005", "A2", 2),
		testutil.P("Leuven", "24062", "A3", 3),
	}
	records[0].ACShort = "Heraanleg FIETSPAD Kerkstraat"
	records[1].ACLong = "Nieuwe sporthal met fietsenstalling"
	records[2].ACShort = "Renovatie stadhuis"

	got := query.Run(records, query.Filters{Search: "fiets"}, query.SortAmountAsc)
	testutil.AssertKeys(t, got, "A1", "A2")

	got = query.Run(records, query.Filters{Search: "LEUVEN"}, query.SortAmountAsc)
	testutil.AssertKeys(t, got, "A3")

	got = query.Run(records, query.Filters{Search: "fiets", Municipality: "Brugge"}, query.SortAmountAsc)
	testutil.AssertKeys(t, got, "A2")
}

func TestRunProvince(t *testing.T) {
	records := scenario()
	got := query.Run(records, query.Filters{Province: geo.ProvinceWestFlanders}, query.SortAmountDesc)
	testutil.AssertKeys(t, got, "A3")
}

func TestRunCategoryIntersection(t *testing.T) {
	records := []model.Project{
		testutil.P("Gent", "44021", "A1", 1, "wegenbouw", "riolering"),
		testutil.P("Gent", "44021", "A2", 2, "zorg"),
		testutil.P("Gent", "44021", "A3", 3, "riolering"),
	}
	got := query.Run(records, query.Filters{Categories: []string{"riolering", "zorg"}}, query.SortAmountAsc)
	testutil.AssertKeys(t, got, "A1", "A2", "A3")
	got = query.Run(records, query.Filters{Categories: []string{"sport"}}, query.SortAmountAsc)
	testutil.AssertKeys(t, got)
}

func TestNormalize(t *testing.T) {
	long := strings.Repeat("é", 250)
	f := query.Filters{
		Municipality: "  Gent ",
		Categories:   []string{"zorg", " ", "zorg", "sport"},
		Search:       "  " + long,
	}.Normalize()

	if f.Municipality != "Gent" {
		t.Errorf("municipality = %q", f.Municipality)
	}
	if diff := cmp.Diff([]string{"zorg", "sport"}, f.Categories); diff != "" {
		t.Errorf("categories (-want +got):\n%s", diff)
	}
	if n := len([]rune(f.Search)); n != query.MaxSearchLength {
		t.Errorf("search length = %d runes, want %d", n, query.MaxSearchLength)
	}
	if !(query.Filters{Search: "   "}).Normalize().Empty() {
		t.Error("whitespace-only filters should normalize to empty")
	}
}

func TestToggleCategory(t *testing.T) {
	f := query.Filters{}.ToggleCategory("zorg").ToggleCategory("sport")
	if !f.HasCategory("zorg") || !f.HasCategory("sport") {
		t.Fatalf("toggle on failed: %v", f.Categories)
	}
	f2 := f.ToggleCategory("zorg")
	if f2.HasCategory("zorg") || !f.HasCategory("zorg") {
		t.Errorf("toggle off must not alias the original: %v / %v", f.Categories, f2.Categories)
	}
}

func TestParseSort(t *testing.T) {
	for in, want := range map[string]query.SortOption{
		"":             query.SortAmountDesc,
		"amount-desc":  query.SortAmountDesc,
		"AMOUNT-ASC":   query.SortAmountAsc,
		"amount_asc":   query.SortAmountAsc,
		"municipality": query.SortMunicipality,
		" category ":   query.SortCategory,
	} {
		got, err := query.ParseSort(in)
		if err != nil || got != want {
			t.Errorf("ParseSort(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := query.ParseSort("random"); err == nil {
		t.Error("expected error for unknown sort")
	}
	if query.SortCategory.Next() != query.SortAmountDesc {
		t.Error("Next should cycle back to the default")
	}
}

func TestRunIdempotentProperty(t *testing.T) {
	munis := []string{"Gent", "Brugge", "Aalst"}
	cats := []string{"wegenbouw", "zorg", "sport", "overige"}

	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 40).Draw(t, "n")
		records := make([]model.Project, n)
		for i := range records {
			records[i] = testutil.P(
				rapid.SampledFrom(munis).Draw(t, "muni"),
				"44021",
				fmt.Sprintf("AC%03d", i),
				float64(rapid.IntRange(0, 5).Draw(t, "amount")),
				rapid.SliceOfNDistinct(rapid.SampledFrom(cats), 0, 2, rapid.ID[string]).Draw(t, "cats")...,
			)
		}
		f := query.Filters{
			Municipality: rapid.SampledFrom(append([]string{""}, munis...)).Draw(t, "fmuni"),
			Categories:   rapid.SliceOfNDistinct(rapid.SampledFrom(cats), 0, 2, rapid.ID[string]).Draw(t, "fcats"),
		}
		s := rapid.SampledFrom(query.SortOptions).Draw(t, "sort")

		first := query.Run(records, f, s)
		second := query.Run(records, f, s)
		if diff := cmp.Diff(first, second); diff != "" {
			t.Fatalf("Run not idempotent:\n%s", diff)
		}
		// Re-running on the output with the same filters is a fixed point.
		if diff := cmp.Diff(first, query.Run(first, f, s)); diff != "" {
			t.Fatalf("Run over its own output changed it:\n%s", diff)
		}
		for i := range first {
			if f.Municipality != "" && first[i].Municipality != f.Municipality {
				t.Fatalf("result %d violates municipality filter", i)
			}
		}
	})
}
