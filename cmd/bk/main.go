package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/bouwkansen/internal/datasource"
	_ "github.com/vanderheijden86/bouwkansen/pkg/agents"
	"github.com/vanderheijden86/bouwkansen/pkg/chunks"
	"github.com/vanderheijden86/bouwkansen/pkg/config"
	"github.com/vanderheijden86/bouwkansen/pkg/debug"
	"github.com/vanderheijden86/bouwkansen/pkg/metrics"
	"github.com/vanderheijden86/bouwkansen/pkg/query"
	"github.com/vanderheijden86/bouwkansen/pkg/recipe"
	"github.com/vanderheijden86/bouwkansen/pkg/ui"
	"github.com/vanderheijden86/bouwkansen/pkg/version"
	"github.com/vanderheijden86/bouwkansen/pkg/watcher"
)

// stringList collects a repeatable flag; each value may hold a comma list.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*s = append(*s, part)
		}
	}
	return nil
}

// cliFlags holds every command-line option.
type cliFlags struct {
	configPath   string
	base         string
	dataset      string
	retries      int
	timeout      time.Duration
	municipality string
	province     string
	categories   stringList
	search       string
	sort         string
	page         int
	robotQuery   bool
	exportCSV    string
	exportSQLite string
	exportChart  string
	exportWizard bool
	noHooks      bool
	recipe       string
	listRecipes  bool
	metricsAddr  string
	version      bool
	help         bool
}

func parseFlags(fs *flag.FlagSet, args []string) (*cliFlags, error) {
	f := &cliFlags{}
	fs.StringVar(&f.configPath, "config", "", "Config file (default ~/.config/bk/config.yaml)")
	fs.StringVar(&f.base, "base", "", "Dataset location: URL, directory or s3://bucket/prefix")
	fs.StringVar(&f.dataset, "dataset", "", "Dataset name under data/")
	fs.IntVar(&f.retries, "retries", 0, "Attempts per chunk")
	fs.DurationVar(&f.timeout, "timeout", 0, "Timeout per chunk attempt (e.g. 30s)")
	fs.StringVar(&f.municipality, "municipality", "", "Filter on municipality name")
	fs.StringVar(&f.province, "province", "", "Filter on province NIS code")
	fs.Var(&f.categories, "category", "Filter on category id (repeatable, comma separated)")
	fs.StringVar(&f.search, "search", "", "Free-text search")
	fs.StringVar(&f.recipe, "recipe", "", "Start from a named filter preset (see --list-recipes)")
	fs.BoolVar(&f.listRecipes, "list-recipes", false, "List the filter presets as JSON")
	fs.StringVar(&f.sort, "sort", "", "Sort: amount-desc, amount-asc, municipality, category")
	fs.IntVar(&f.page, "page", 1, "Result page for --robot-query")
	fs.BoolVar(&f.robotQuery, "robot-query", false, "Load all chunks and print one result page as JSON")
	fs.StringVar(&f.exportCSV, "export-csv", "", "Load all chunks and export the results as CSV")
	fs.StringVar(&f.exportSQLite, "export-sqlite", "", "Load all chunks and export the results as SQLite")
	fs.StringVar(&f.exportChart, "export-chart", "", "Load all chunks and write a category chart (.svg or .png)")
	fs.BoolVar(&f.exportWizard, "export-wizard", false, "Choose an export interactively")
	fs.BoolVar(&f.noHooks, "no-hooks", false, "Skip the export hooks in ~/.config/bk/hooks.yaml")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	fs.BoolVar(&f.version, "version", false, "Show version")
	fs.BoolVar(&f.help, "help", false, "Show help")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return f, nil
}

// headless reports whether f asks for a non-interactive run.
func (f *cliFlags) headless() bool {
	return f.robotQuery || f.exportCSV != "" || f.exportSQLite != "" || f.exportChart != "" || f.exportWizard
}

// filters builds the query filters from the flags.
func (f *cliFlags) filters() query.Filters {
	return query.Filters{
		Municipality: f.municipality,
		Province:     f.province,
		Categories:   f.categories,
		Search:       f.search,
	}.Normalize()
}

func recipeLoader() *recipe.Loader {
	return recipe.NewLoader(recipe.WithUserPath(filepath.Join(config.ConfigDir(), "recipes.yaml")))
}

// resolveQuery combines the recipe named by --recipe with the filter flags.
// Flags win over the recipe, and the recipe's sort wins over the config.
func resolveQuery(f *cliFlags, cfg config.Config) (query.Filters, query.SortOption, error) {
	filters := f.filters()
	sortOpt := mustSort(cfg.UI.DefaultSort)
	if f.sort != "" {
		sortOpt = mustSort(f.sort)
	}
	if f.recipe == "" {
		return filters, sortOpt, nil
	}

	loader := recipeLoader()
	if err := loader.Load(); err != nil {
		return filters, sortOpt, err
	}
	r := loader.Get(f.recipe)
	if r == nil {
		return filters, sortOpt, fmt.Errorf("unknown recipe %q (available: %s)", f.recipe, strings.Join(loader.Names(), ", "))
	}
	rf, rs, err := r.Query()
	if err != nil {
		return filters, sortOpt, err
	}
	if f.sort == "" && rs != "" {
		sortOpt = rs
	}
	return recipe.Merge(rf, filters), sortOpt, nil
}

// resolveConfig applies file, environment and flags in increasing precedence.
func resolveConfig(f *cliFlags) (config.Config, error) {
	var cfg config.Config
	var err error
	if f.configPath != "" {
		cfg, err = config.LoadFrom(f.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return cfg, err
	}
	cfg.ApplyEnv()

	if f.base != "" {
		cfg.Source.Base = f.base
	}
	if f.dataset != "" {
		cfg.Source.Dataset = f.dataset
	}
	if f.retries != 0 {
		cfg.Fetch.Retries = f.retries
	}
	if f.timeout != 0 {
		cfg.Fetch.Timeout = f.timeout
	}
	if f.sort != "" {
		cfg.UI.DefaultSort = f.sort
	}
	return cfg, cfg.Validate()
}

func main() {
	fs := flag.CommandLine
	f, err := parseFlags(fs, os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	if f.help {
		fmt.Println("Usage: bk [options]")
		fmt.Println("\nBrowse the planned investment projects of Belgian municipalities.")
		fs.PrintDefaults()
		os.Exit(0)
	}
	if f.version {
		fmt.Printf("bk %s\n", version.Version)
		os.Exit(0)
	}

	cfg, err := resolveConfig(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	if f.listRecipes {
		if err := printRecipes(os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	filters, sortOpt, err := resolveQuery(f, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	if f.metricsAddr != "" {
		startMetricsServer(f.metricsAddr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, err := datasource.Open(ctx, cfg.Source.Base, datasource.Options{S3: cfg.S3})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening dataset: %v\n", err)
		os.Exit(1)
	}
	debug.Log("dataset source %s (%s)", src, src.Type())

	if f.headless() {
		if err := runHeadless(ctx, src, cfg, f, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			if errors.Is(err, chunks.ErrNoDataAvailable) {
				os.Exit(3)
			}
			os.Exit(1)
		}
		return
	}
	stop()

	m := ui.NewModel(sessionFactory(src, cfg), ui.Options{
		PageSize:      cfg.UI.PageSize,
		RequireFilter: cfg.UI.FilterRequired(),
		Sort:          sortOpt,
		Filters:       filters,
		Source:        src.String(),
		ExportDir:     cfg.Export.DefaultDir,
		Watcher:       datasetWatcher(src, cfg),
	})
	defer m.Close()

	if err := runTUIProgram(m); err != nil {
		fmt.Fprintf(os.Stderr, "Error running bk: %v\n", err)
		os.Exit(1)
	}
}

// sessionFactory creates sessions reading from src with the configured
// fetch settings.
func sessionFactory(src datasource.Source, cfg config.Config) ui.SessionFactory {
	return func(onSettled func(chunks.Event)) *chunks.Session {
		return chunks.NewSession(src, chunks.SessionOptions{
			Layout:      cfg.Source.Layout(),
			Fetch:       cfg.Fetch.FetcherOptions(),
			Concurrency: cfg.Fetch.MaxConcurrent,
			OnSettled:   onSettled,
		})
	}
}

// datasetWatcher watches a local dataset for changes. Remote sources return
// nil.
func datasetWatcher(src datasource.Source, cfg config.Config) *watcher.Watcher {
	dir, ok := src.(*datasource.DirSource)
	if !ok {
		return nil
	}
	layout := cfg.Source.Layout()
	manifest := dir.Path(layout.ManifestKey())
	w, err := watcher.New(
		filepath.Dir(manifest),
		filepath.Base(manifest),
		layout.ChunkName+"_chunk_",
		watcher.WithOnError(func(err error) { debug.Log("watcher: %v", err) }),
	)
	if err != nil {
		debug.Log("watcher disabled: %v", err)
		return nil
	}
	if err := w.Start(); err != nil {
		debug.Log("watcher disabled: %v", err)
		return nil
	}
	return w
}

func mustSort(s string) query.SortOption {
	opt, err := query.ParseSort(s)
	if err != nil {
		return query.SortAmountDesc
	}
	return opt
}

func startMetricsServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "metrics server: %v\n", err)
		}
	}()
}

func runTUIProgram(m ui.Model) error {
	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithoutSignalHandler(),
	)

	runDone := make(chan struct{})
	defer close(runDone)

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-runDone:
			return
		case <-sigCh:
		}

		p.Quit()

		select {
		case <-runDone:
			return
		case <-sigCh:
		case <-time.After(5 * time.Second):
		}

		p.Kill()
	}()

	// Optional auto-quit for automated tests: set BK_TUI_AUTOCLOSE_MS.
	if v := os.Getenv("BK_TUI_AUTOCLOSE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			go func() {
				timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
				defer timer.Stop()

				select {
				case <-runDone:
					return
				case <-timer.C:
				}

				p.Quit()

				select {
				case <-runDone:
					return
				case <-time.After(2 * time.Second):
				}

				p.Kill()
			}()
		}
	}

	final, err := p.Run()
	if fm, ok := final.(ui.Model); ok {
		fm.Close()
	}
	if err != nil && (errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, tea.ErrInterrupted)) {
		return nil
	}
	return err
}
