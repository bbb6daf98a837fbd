package export

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/vanderheijden86/bouwkansen/pkg/model"
	"github.com/vanderheijden86/bouwkansen/pkg/testutil"

	_ "modernc.org/sqlite"
)

func TestSQLiteExport(t *testing.T) {
	ds := testutil.QuickDataset(40, 2000)
	path := filepath.Join(t.TempDir(), "view.sqlite3")

	exp := NewSQLiteExporter(ds.Projects, &ds.Manifest)
	exp.Title = "Test export"
	if err := exp.Export(path); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary database left behind")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM projects`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 40 {
		t.Errorf("projects = %d, want 40", n)
	}

	var links int
	if err := db.QueryRow(`SELECT COUNT(*) FROM project_categories`).Scan(&links); err != nil {
		t.Fatal(err)
	}
	want := 0
	for _, p := range ds.Projects {
		want += len(p.Categories)
	}
	if links != want {
		t.Errorf("category links = %d, want %d", links, want)
	}

	var firstCode string
	if err := db.QueryRow(`SELECT ac_code FROM projects ORDER BY position LIMIT 1`).Scan(&firstCode); err != nil {
		t.Fatal(err)
	}
	if firstCode != ds.Projects[0].ACCode {
		t.Errorf("position order lost: first = %s, want %s", firstCode, ds.Projects[0].ACCode)
	}

	var title, count string
	if err := db.QueryRow(`SELECT value FROM export_meta WHERE key = 'title'`).Scan(&title); err != nil {
		t.Fatal(err)
	}
	if err := db.QueryRow(`SELECT value FROM export_meta WHERE key = 'project_count'`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if title != "Test export" || count != "40" {
		t.Errorf("meta title=%q count=%q", title, count)
	}
}

func TestSQLiteExportCategoryLabels(t *testing.T) {
	projects := []model.Project{testutil.P("Gent", "44021", "AC1", 10, "zorg")}
	m := &model.Manifest{Categories: map[string]model.Category{"zorg": {ID: "zorg", Label: "Sociale Infrastructuur & Zorg"}}}
	path := filepath.Join(t.TempDir(), "labels.sqlite3")
	if err := NewSQLiteExporter(projects, m).Export(path); err != nil {
		t.Fatal(err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	var label, province string
	if err := db.QueryRow(`SELECT label FROM categories WHERE id = 'zorg'`).Scan(&label); err != nil {
		t.Fatal(err)
	}
	if err := db.QueryRow(`SELECT province FROM projects`).Scan(&province); err != nil {
		t.Fatal(err)
	}
	if label != "Sociale Infrastructuur & Zorg" || province != "40000" {
		t.Errorf("label=%q province=%q", label, province)
	}
}

func TestSQLiteExportReplacesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "view.sqlite3")
	if err := os.WriteFile(path, []byte("not a database"), 0o644); err != nil {
		t.Fatal(err)
	}
	projects := []model.Project{testutil.P("Gent", "44021", "AC1", 10)}
	if err := NewSQLiteExporter(projects, nil).Export(path); err != nil {
		t.Fatalf("Export over existing file: %v", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM projects`).Scan(&n); err != nil || n != 1 {
		t.Errorf("count = %d, %v", n, err)
	}
}
