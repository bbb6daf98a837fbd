package main

import (
	"bytes"
	"context"
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"

	"github.com/vanderheijden86/bouwkansen/internal/datasource"
	"github.com/vanderheijden86/bouwkansen/pkg/config"
	"github.com/vanderheijden86/bouwkansen/pkg/loader"
	"github.com/vanderheijden86/bouwkansen/pkg/query"
	"github.com/vanderheijden86/bouwkansen/pkg/testutil"
)

func testFlags(t *testing.T, args ...string) *cliFlags {
	t.Helper()
	fs := flag.NewFlagSet("bk", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	f, err := parseFlags(fs, args)
	if err != nil {
		t.Fatalf("parseFlags(%v): %v", args, err)
	}
	return f
}

func TestParseFlags_Categories(t *testing.T) {
	f := testFlags(t, "--category", "sport, zorg", "--category=wegenbouw", "--category", ",")
	want := []string{"sport", "zorg", "wegenbouw"}
	if diff := cmp.Diff(want, []string(f.categories)); diff != "" {
		t.Errorf("categories mismatch (-want +got):\n%s", diff)
	}
}

func TestParseFlags_Filters(t *testing.T) {
	f := testFlags(t, "--municipality", " Gent ", "--search", "  sporthal ", "--category", "sport,sport")
	got := f.filters()
	want := query.Filters{Municipality: "Gent", Categories: []string{"sport"}, Search: "sporthal"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("filters mismatch (-want +got):\n%s", diff)
	}
}

func TestHeadlessModes(t *testing.T) {
	tests := []struct {
		args []string
		want bool
	}{
		{nil, false},
		{[]string{"--municipality", "Gent"}, false},
		{[]string{"--robot-query"}, true},
		{[]string{"--export-csv", "out.csv"}, true},
		{[]string{"--export-chart", "out.svg"}, true},
		{[]string{"--export-wizard"}, true},
	}
	for _, tt := range tests {
		if got := testFlags(t, tt.args...).headless(); got != tt.want {
			t.Errorf("headless(%v) = %v, want %v", tt.args, got, tt.want)
		}
	}
}

func TestResolveConfig_Precedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "source:\n  base: /from/file\n  dataset: file-set\nfetch:\n  retries: 2\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BK_BASE", "/from/env")
	t.Setenv("BK_DATASET", "")

	cfg, err := resolveConfig(testFlags(t, "--config", path, "--retries", "7", "--sort", "municipality"))
	if err != nil {
		t.Fatalf("resolveConfig: %v", err)
	}
	if cfg.Source.Base != "/from/env" {
		t.Errorf("env should override file, base = %q", cfg.Source.Base)
	}
	if cfg.Source.Dataset != "file-set" {
		t.Errorf("dataset = %q", cfg.Source.Dataset)
	}
	if cfg.Fetch.Retries != 7 {
		t.Errorf("flag should override file, retries = %d", cfg.Fetch.Retries)
	}
	if cfg.UI.DefaultSort != "municipality" {
		t.Errorf("sort = %q", cfg.UI.DefaultSort)
	}

	cfg, err = resolveConfig(testFlags(t, "--config", path, "--base", "/from/flag"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Source.Base != "/from/flag" {
		t.Errorf("flag should override env, base = %q", cfg.Source.Base)
	}
}

func TestResolveConfig_InvalidSort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := resolveConfig(testFlags(t, "--config", path, "--sort", "random")); err == nil {
		t.Error("expected validation error for unknown sort")
	}
}

func TestChartFormat(t *testing.T) {
	if f, err := chartFormat("out/chart.PNG"); err != nil || f != "png" {
		t.Errorf("chartFormat(png) = %q, %v", f, err)
	}
	if _, err := chartFormat("out/chart.csv"); err == nil {
		t.Error("csv is not a chart format")
	}
}

// headlessFixture writes a generated dataset and returns a source and
// config pointing at it.
func headlessFixture(t *testing.T) (testutil.Dataset, string, datasource.Source, config.Config) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	ds := testutil.QuickDataset(25, 10)
	dir := testutil.WriteDataset(t, ds)
	src, err := datasource.NewDirSource(dir)
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.DefaultConfig()
	cfg.Source.Base = dir
	cfg.Fetch.Retries = 1
	cfg.Fetch.Backoff = time.Millisecond
	return ds, dir, src, cfg
}

func runRobot(t *testing.T, src datasource.Source, cfg config.Config, args ...string) RobotOutput {
	t.Helper()
	var buf bytes.Buffer
	f := testFlags(t, append([]string{"--robot-query"}, args...)...)
	if err := runHeadless(context.Background(), src, cfg, f, &buf); err != nil {
		t.Fatalf("runHeadless: %v", err)
	}
	var out RobotOutput
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("robot output is not JSON: %v\n%s", err, buf.String())
	}
	return out
}

func TestRobotQuery_LoadsEverything(t *testing.T) {
	ds, _, src, cfg := headlessFixture(t)
	out := runRobot(t, src, cfg)

	if !out.Complete || out.ChunksTotal != len(ds.Chunks) || out.ChunksLoaded != len(ds.Chunks) {
		t.Errorf("complete=%v chunks=%d/%d", out.Complete, out.ChunksLoaded, out.ChunksTotal)
	}
	if out.Total != len(ds.Projects) || out.Summary.Count != len(ds.Projects) {
		t.Errorf("total = %d, want %d", out.Total, len(ds.Projects))
	}
	if out.Sort != string(query.SortAmountDesc) {
		t.Errorf("sort = %q", out.Sort)
	}
	for i := 1; i < len(out.Projects); i++ {
		if out.Projects[i].TotalAmount > out.Projects[i-1].TotalAmount {
			t.Fatalf("projects not sorted by amount at %d", i)
		}
	}
}

func TestRobotQuery_FiltersAndPages(t *testing.T) {
	ds, _, src, cfg := headlessFixture(t)
	cfg.UI.PageSize = 5

	out := runRobot(t, src, cfg, "--page", "2")
	if out.Page != 2 || out.PageSize != 5 || len(out.Projects) != 5 {
		t.Errorf("page=%d size=%d items=%d", out.Page, out.PageSize, len(out.Projects))
	}

	muni := ds.Projects[0].Municipality
	out = runRobot(t, src, cfg, "--municipality", muni, "--page", "99")
	if out.Total == 0 {
		t.Fatalf("no projects for %s", muni)
	}
	if out.Page != out.Pages {
		t.Errorf("out-of-range page should clamp to %d, got %d", out.Pages, out.Page)
	}
	for _, p := range out.Projects {
		if p.Municipality != muni {
			t.Errorf("project %s from %s leaked through the filter", p.ACCode, p.Municipality)
		}
	}
	if out.Filters.Municipality != muni {
		t.Errorf("filters not echoed: %+v", out.Filters)
	}
}

func TestRobotQuery_FailedChunkIsReported(t *testing.T) {
	_, dir, src, cfg := headlessFixture(t)
	chunk := filepath.Join(dir, filepath.FromSlash(loader.DefaultLayout().ChunkKey(1)))
	if err := os.Remove(chunk); err != nil {
		t.Fatal(err)
	}

	out := runRobot(t, src, cfg)
	if out.Complete {
		t.Error("output should be marked incomplete")
	}
	if diff := cmp.Diff([]int{1}, out.FailedChunks); diff != "" {
		t.Errorf("failed chunks mismatch (-want +got):\n%s", diff)
	}
}

func TestRobotQuery_MissingManifest(t *testing.T) {
	ds, dir, src, cfg := headlessFixture(t)
	manifest := filepath.Join(dir, filepath.FromSlash(loader.DefaultLayout().ManifestKey()))
	if err := os.Remove(manifest); err != nil {
		t.Fatal(err)
	}

	out := runRobot(t, src, cfg)
	if out.Complete || out.ManifestError == "" {
		t.Errorf("complete=%v manifest_error=%q", out.Complete, out.ManifestError)
	}
	if out.ChunksLoaded != 1 || out.Total != len(ds.Chunks[0]) {
		t.Errorf("expected chunk 0 only, got %d chunks / %d projects", out.ChunksLoaded, out.Total)
	}
}

func TestRunHeadless_FirstChunkMissing(t *testing.T) {
	_, dir, src, cfg := headlessFixture(t)
	chunk := filepath.Join(dir, filepath.FromSlash(loader.DefaultLayout().ChunkKey(0)))
	if err := os.Remove(chunk); err != nil {
		t.Fatal(err)
	}
	err := runHeadless(context.Background(), src, cfg, testFlags(t, "--robot-query"), io.Discard)
	if err == nil || !strings.Contains(err.Error(), "no project data") {
		t.Errorf("expected no-data error, got %v", err)
	}
}

func TestRunHeadless_ExportCSV(t *testing.T) {
	ds, _, src, cfg := headlessFixture(t)
	out := filepath.Join(t.TempDir(), "export", "projects.csv")

	var buf bytes.Buffer
	if err := runHeadless(context.Background(), src, cfg, testFlags(t, "--export-csv", out), &buf); err != nil {
		t.Fatalf("runHeadless: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("csv not written: %v", err)
	}
	lines := strings.Count(strings.TrimRight(string(data), "\r\n"), "\n")
	if lines != len(ds.Projects) {
		t.Errorf("csv has %d data rows, want %d", lines, len(ds.Projects))
	}
	if !strings.Contains(buf.String(), "Geëxporteerd naar") {
		t.Errorf("missing confirmation: %q", buf.String())
	}
}

func TestRunHeadless_ExportChartRejectsCSV(t *testing.T) {
	_, _, src, cfg := headlessFixture(t)
	out := filepath.Join(t.TempDir(), "chart.csv")
	if err := runHeadless(context.Background(), src, cfg, testFlags(t, "--export-chart", out), io.Discard); err == nil {
		t.Error("expected an error for a non-chart extension")
	}
}

func TestRunHeadless_PreExportHookCancels(t *testing.T) {
	_, _, src, cfg := headlessFixture(t)
	hooksDir := config.ConfigDir()
	if err := os.MkdirAll(hooksDir, 0o755); err != nil {
		t.Fatal(err)
	}
	content := "hooks:\n  pre-export:\n    - name: guard\n      command: exit 1\n"
	if err := os.WriteFile(filepath.Join(hooksDir, "hooks.yaml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(t.TempDir(), "projects.csv")

	err := runHeadless(context.Background(), src, cfg, testFlags(t, "--export-csv", out), io.Discard)
	if err == nil || !strings.Contains(err.Error(), "cancelled") {
		t.Fatalf("expected cancelled export, got %v", err)
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Error("export should not have been written")
	}

	if err := runHeadless(context.Background(), src, cfg, testFlags(t, "--export-csv", out, "--no-hooks"), io.Discard); err != nil {
		t.Fatalf("--no-hooks export failed: %v", err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("export missing with --no-hooks: %v", err)
	}
}

func TestRobotQuery_Recipe(t *testing.T) {
	_, _, src, cfg := headlessFixture(t)
	out := runRobot(t, src, cfg, "--recipe", "brussel")
	if out.Filters.Province != "21000" || out.Sort != string(query.SortMunicipality) {
		t.Errorf("recipe not applied: filters=%+v sort=%q", out.Filters, out.Sort)
	}

	out = runRobot(t, src, cfg, "--recipe", "brussel", "--sort", "amount_asc", "--province", "10000")
	if out.Filters.Province != "10000" || out.Sort != string(query.SortAmountAsc) {
		t.Errorf("flags should override the recipe: filters=%+v sort=%q", out.Filters, out.Sort)
	}
}

func TestResolveQuery_SortFlagBeatsRecipe(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cfg := config.DefaultConfig()

	_, sortOpt, err := resolveQuery(testFlags(t, "--recipe", "brussel", "--sort", "amount_asc"), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if sortOpt != query.SortAmountAsc {
		t.Errorf("sort = %q, want %q", sortOpt, query.SortAmountAsc)
	}

	_, sortOpt, err = resolveQuery(testFlags(t, "--recipe", "brussel"), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if sortOpt != query.SortMunicipality {
		t.Errorf("recipe sort = %q, want %q", sortOpt, query.SortMunicipality)
	}

	_, sortOpt, err = resolveQuery(testFlags(t, "--sort", "category"), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if sortOpt != query.SortCategory {
		t.Errorf("flag sort without recipe = %q, want %q", sortOpt, query.SortCategory)
	}
}

func TestResolveQuery_UnknownRecipe(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	_, _, err := resolveQuery(testFlags(t, "--recipe", "bestaat-niet"), config.DefaultConfig())
	if err == nil || !strings.Contains(err.Error(), "scholen") {
		t.Errorf("expected unknown recipe error listing the presets, got %v", err)
	}
}

func TestPrintRecipes(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	var buf bytes.Buffer
	if err := printRecipes(&buf); err != nil {
		t.Fatal(err)
	}
	var list []struct {
		Name   string `json:"name"`
		Source string `json:"source"`
	}
	if err := json.Unmarshal(buf.Bytes(), &list); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if len(list) == 0 || list[0].Source != "builtin" {
		t.Errorf("recipes = %+v", list)
	}
}
