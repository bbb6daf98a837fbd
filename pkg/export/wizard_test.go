package export

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vanderheijden86/bouwkansen/pkg/model"
	"github.com/vanderheijden86/bouwkansen/pkg/query"
	"github.com/vanderheijden86/bouwkansen/pkg/testutil"
)

func TestWizardConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bk", "export-wizard.json")

	if cfg, err := LoadWizardConfig(path); err != nil || cfg != nil {
		t.Fatalf("missing config = %v, %v; want nil, nil", cfg, err)
	}
	in := &WizardConfig{Format: FormatSQLite, OutputDir: "/tmp/exports", Title: "Gent"}
	if err := SaveWizardConfig(path, in); err != nil {
		t.Fatalf("SaveWizardConfig: %v", err)
	}
	out, err := LoadWizardConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if *out != *in {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
}

func TestWizardResult(t *testing.T) {
	w := NewWizard("exports")
	w.now = func() time.Time { return time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC) }

	res := w.Result()
	if res.Format != FormatCSV || res.Path != filepath.Join("exports", "gemeentelijke-investeringen-projecten-2026-05-01.csv") {
		t.Errorf("default result = %+v", res)
	}

	w.config.Format = FormatPNG
	w.config.OutputDir = "  "
	if res := w.Result(); res.Path != "gemeentelijke-investeringen-2026-05-01.png" {
		t.Errorf("png result path = %q", res.Path)
	}
}

func TestValidateDir(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := validateDir(dir); err != nil {
		t.Errorf("existing dir rejected: %v", err)
	}
	if err := validateDir(filepath.Join(dir, "new")); err != nil {
		t.Errorf("missing dir rejected: %v", err)
	}
	if err := validateDir(file); err == nil {
		t.Error("regular file accepted as directory")
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{
		"csv": FormatCSV, ".SVG": FormatSVG, "sqlite3": FormatSQLite, "db": FormatSQLite, "markdown": FormatMD, "png": FormatPNG,
	} {
		if got, err := ParseFormat(in); err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("xlsx"); err == nil {
		t.Error("expected error for xlsx")
	}
	if _, err := FormatFromPath("noext"); err == nil {
		t.Error("expected error without extension")
	}
	if FormatSQLite.Extension() != ".sqlite3" || FormatCSV.Extension() != ".csv" {
		t.Error("unexpected extensions")
	}
}

func TestWriteDispatch(t *testing.T) {
	ds := testutil.QuickDataset(20, 2000)
	v := View{Results: ds.Projects, Manifest: &ds.Manifest, Title: "Alle projecten", Filters: query.Filters{}}
	dir := t.TempDir()

	for _, name := range []string{"a.csv", "a.sqlite3", "a.svg", "a.png", "a.md"} {
		path := filepath.Join(dir, name)
		if err := Write("", path, v); err != nil {
			t.Errorf("Write(%s): %v", name, err)
			continue
		}
		if fi, err := os.Stat(path); err != nil || fi.Size() == 0 {
			t.Errorf("%s not written: %v", name, err)
		}
	}
	if err := Write("", filepath.Join(dir, "a.xlsx"), v); err == nil {
		t.Error("expected error for unsupported extension")
	}
}

func TestSortByAmountKeepsOtherLast(t *testing.T) {
	counts := []query.CategoryCount{
		{ID: model.OtherCategory, Amount: 1000},
		{ID: "zorg", Amount: 10},
		{ID: "sport", Amount: 500},
	}
	sortByAmount(counts)
	if counts[0].ID != "sport" || counts[1].ID != "zorg" || counts[2].ID != model.OtherCategory {
		t.Errorf("order = %v", counts)
	}
}
