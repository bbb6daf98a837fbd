package recipe_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/vanderheijden86/bouwkansen/pkg/query"
	"github.com/vanderheijden86/bouwkansen/pkg/recipe"
)

func builtinOnly(t *testing.T) *recipe.Loader {
	t.Helper()
	loader := recipe.NewLoader(recipe.WithProjectDir(""))
	if err := loader.Load(); err != nil {
		t.Fatalf("Failed to load: %v", err)
	}
	return loader
}

func TestLoaderBuiltinRecipes(t *testing.T) {
	loader := builtinOnly(t)

	for _, name := range []string{"infrastructuur", "scholen", "brussel"} {
		r := loader.Get(name)
		if r == nil {
			t.Fatalf("missing builtin recipe %q", name)
		}
		if r.Name != name {
			t.Errorf("recipe name = %q, want %q", r.Name, name)
		}
		if loader.Source(name) != recipe.SourceBuiltin {
			t.Errorf("source(%s) = %q", name, loader.Source(name))
		}
		if _, _, err := r.Query(); err != nil {
			t.Errorf("builtin %s does not parse: %v", name, err)
		}
	}
}

func TestBuiltinRecipesSetAFilter(t *testing.T) {
	loader := builtinOnly(t)
	for _, name := range loader.Names() {
		f, _, err := loader.Get(name).Query()
		if err != nil {
			t.Fatal(err)
		}
		if f.Empty() {
			t.Errorf("builtin %s has no filter", name)
		}
	}
}

func TestLoaderGetNonExistent(t *testing.T) {
	if r := builtinOnly(t).Get("nope"); r != nil {
		t.Errorf("expected nil, got %+v", r)
	}
}

func TestLoaderUserOverride(t *testing.T) {
	userPath := filepath.Join(t.TempDir(), "recipes.yaml")
	userConfig := `
recipes:
  gent-sport:
    description: "Sport in Gent"
    filters:
      municipality: Gent
      categories: [sport]
    sort: amount_asc
  scholen:
    description: "Scholen in Antwerpen"
    filters:
      province: "10000"
      categories: [scholenbouw]
`
	if err := os.WriteFile(userPath, []byte(userConfig), 0o644); err != nil {
		t.Fatal(err)
	}

	loader := recipe.NewLoader(recipe.WithUserPath(userPath), recipe.WithProjectDir(""))
	if err := loader.Load(); err != nil {
		t.Fatalf("Failed to load: %v", err)
	}

	custom := loader.Get("gent-sport")
	if custom == nil || loader.Source("gent-sport") != recipe.SourceUser {
		t.Fatalf("custom recipe = %+v (source %q)", custom, loader.Source("gent-sport"))
	}
	f, s, err := custom.Query()
	if err != nil {
		t.Fatal(err)
	}
	want := query.Filters{Municipality: "Gent", Categories: []string{"sport"}}
	if diff := cmp.Diff(want, f); diff != "" {
		t.Errorf("filters mismatch (-want +got):\n%s", diff)
	}
	if s != query.SortAmountAsc {
		t.Errorf("sort = %q", s)
	}

	if got := loader.Get("scholen"); got.Description != "Scholen in Antwerpen" || loader.Source("scholen") != recipe.SourceUser {
		t.Errorf("builtin not overridden: %+v", got)
	}
}

func TestLoaderProjectOverride(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, ".bk"), 0o755); err != nil {
		t.Fatal(err)
	}
	content := "recipes:\n  lokaal:\n    description: Lokaal\n    filters:\n      search: fietspad\n"
	if err := os.WriteFile(filepath.Join(dir, ".bk", "recipes.yaml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	loader := recipe.NewLoader(recipe.WithProjectDir(dir))
	if err := loader.Load(); err != nil {
		t.Fatal(err)
	}
	if loader.Source("lokaal") != recipe.SourceProject {
		t.Errorf("source = %q", loader.Source("lokaal"))
	}
}

func TestLoaderDisableRecipe(t *testing.T) {
	userPath := filepath.Join(t.TempDir(), "recipes.yaml")
	if err := os.WriteFile(userPath, []byte("recipes:\n  brussel: null\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	loader := recipe.NewLoader(recipe.WithUserPath(userPath), recipe.WithProjectDir(""))
	if err := loader.Load(); err != nil {
		t.Fatalf("Failed to load: %v", err)
	}
	if r := loader.Get("brussel"); r != nil {
		t.Error("Expected brussel recipe to be disabled")
	}
	if r := loader.Get("scholen"); r == nil {
		t.Error("Expected scholen recipe to still exist")
	}
}

func TestLoaderInvalidSort(t *testing.T) {
	userPath := filepath.Join(t.TempDir(), "recipes.yaml")
	if err := os.WriteFile(userPath, []byte("recipes:\n  x:\n    sort: random\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	loader := recipe.NewLoader(recipe.WithUserPath(userPath), recipe.WithProjectDir(""))
	if err := loader.Load(); err != nil {
		t.Fatal(err)
	}
	if _, _, err := loader.Get("x").Query(); err == nil {
		t.Error("expected sort error")
	}
}

func TestLoaderListSummaries(t *testing.T) {
	summaries := builtinOnly(t).ListSummaries()
	if len(summaries) == 0 {
		t.Fatal("Expected summaries")
	}
	for i, s := range summaries {
		if s.Name == "" || s.Source == "" {
			t.Errorf("incomplete summary %+v", s)
		}
		if i > 0 && summaries[i-1].Name >= s.Name {
			t.Errorf("summaries not sorted: %q before %q", summaries[i-1].Name, s.Name)
		}
	}
}

func TestLoaderMissingFiles(t *testing.T) {
	loader := recipe.NewLoader(
		recipe.WithUserPath("/nonexistent/path/recipes.yaml"),
		recipe.WithProjectDir("/nonexistent/project"),
	)
	if err := loader.Load(); err != nil {
		t.Errorf("Missing files should not error: %v", err)
	}
}

func TestLoaderInvalidYAML(t *testing.T) {
	userPath := filepath.Join(t.TempDir(), "recipes.yaml")
	if err := os.WriteFile(userPath, []byte("recipes: [bad"), 0o644); err != nil {
		t.Fatal(err)
	}
	loader := recipe.NewLoader(recipe.WithUserPath(userPath), recipe.WithProjectDir(""))
	if err := loader.Load(); err == nil {
		t.Error("expected parse error")
	}
}

func TestMerge(t *testing.T) {
	base := query.Filters{Province: "21000", Categories: []string{"sport"}}
	got := recipe.Merge(base, query.Filters{Municipality: " Elsene ", Categories: []string{"zorg"}})
	want := query.Filters{Municipality: "Elsene", Province: "21000", Categories: []string{"zorg"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("merge mismatch (-want +got):\n%s", diff)
	}
}
