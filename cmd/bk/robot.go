package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/bouwkansen/internal/datasource"
	"github.com/vanderheijden86/bouwkansen/pkg/chunks"
	"github.com/vanderheijden86/bouwkansen/pkg/config"
	"github.com/vanderheijden86/bouwkansen/pkg/debug"
	"github.com/vanderheijden86/bouwkansen/pkg/export"
	"github.com/vanderheijden86/bouwkansen/pkg/hooks"
	"github.com/vanderheijden86/bouwkansen/pkg/metrics"
	"github.com/vanderheijden86/bouwkansen/pkg/model"
	"github.com/vanderheijden86/bouwkansen/pkg/query"
	"github.com/vanderheijden86/bouwkansen/pkg/version"
)

// RobotOutput is the JSON document printed by --robot-query.
type RobotOutput struct {
	GeneratedAt time.Time     `json:"generated_at"`
	Version     string        `json:"version"`
	Source      string        `json:"source"`
	Dataset     string        `json:"dataset"`
	Filters     query.Filters `json:"filters"`
	Sort        string        `json:"sort"`

	// Complete is false when chunks failed or the manifest was missing, so
	// the results may lack projects.
	Complete      bool   `json:"complete"`
	ChunksTotal   int    `json:"chunks_total"`
	ChunksLoaded  int    `json:"chunks_loaded"`
	FailedChunks  []int  `json:"failed_chunks,omitempty"`
	ManifestError string `json:"manifest_error,omitempty"`

	Summary  query.Summary   `json:"summary"`
	Page     int             `json:"page"`
	Pages    int             `json:"pages"`
	PageSize int             `json:"page_size"`
	Total    int             `json:"total"`
	Projects []model.Project `json:"projects"`
}

// loadResult is the dataset as far as it could be loaded headlessly.
type loadResult struct {
	session  *chunks.Session
	manifest *model.Manifest
	all      chunks.LoadAllResult
	complete bool
}

// loadEverything starts a session and loads every chunk the manifest lists.
// Without a manifest only chunk 0 is available.
func loadEverything(ctx context.Context, src datasource.Source, cfg config.Config) (*loadResult, error) {
	s := chunks.NewSession(src, chunks.SessionOptions{
		Layout:      cfg.Source.Layout(),
		Fetch:       cfg.Fetch.FetcherOptions(),
		Concurrency: cfg.Fetch.MaxConcurrent,
	})
	start, err := s.Start(ctx)
	if err != nil {
		return nil, err
	}
	res := &loadResult{session: s, manifest: start.Manifest}
	if start.Manifest == nil {
		debug.Log("manifest unavailable, continuing with chunk 0: %v", start.ManifestErr)
		return res, nil
	}
	all, err := s.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading chunks: %w", err)
	}
	res.all = all
	res.complete = all.Complete()
	debug.Log("loaded %d/%d chunks, %d failed", all.Loaded, all.Total, all.Failed)
	return res, nil
}

// runHeadless serves --robot-query and the export flags.
func runHeadless(ctx context.Context, src datasource.Source, cfg config.Config, f *cliFlags, stdout io.Writer) error {
	filters, sortOpt, err := resolveQuery(f, cfg)
	if err != nil {
		return err
	}

	loaded, err := loadEverything(ctx, src, cfg)
	if err != nil {
		return err
	}
	defer loaded.session.Close()
	defer logTimings()

	results := query.Run(loaded.session.Store().Snapshot(), filters, sortOpt)

	view := export.View{
		Results:  results,
		Filters:  filters,
		Manifest: loaded.manifest,
		Title:    "Gemeentelijke investeringsprojecten",
		Source:   src.String(),
	}

	if f.exportWizard {
		wiz := export.NewWizard(cfg.Export.DefaultDir)
		choice, err := wiz.Run()
		if err != nil {
			return fmt.Errorf("export wizard: %w", err)
		}
		if choice.Title != "" {
			view.Title = choice.Title
		}
		if err := writeExport(choice.Format, choice.Path, view, f.noHooks); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Geëxporteerd naar %s\n", choice.Path)
	}

	for _, e := range []struct {
		format export.Format
		path   string
	}{
		{export.FormatCSV, f.exportCSV},
		{export.FormatSQLite, f.exportSQLite},
		{"", f.exportChart},
	} {
		if e.path == "" {
			continue
		}
		format := e.format
		if format == "" {
			if format, err = chartFormat(e.path); err != nil {
				return err
			}
		}
		if err := writeExport(format, e.path, view, f.noHooks); err != nil {
			return err
		}
		if !f.robotQuery {
			fmt.Fprintf(stdout, "Geëxporteerd naar %s (%d projecten)\n", e.path, len(results))
		}
	}

	if !f.robotQuery {
		return nil
	}
	out := buildRobotOutput(loaded, src, cfg, filters, sortOpt, results, f.page)
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func printRecipes(w io.Writer) error {
	loader := recipeLoader()
	if err := loader.Load(); err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(loader.ListSummaries())
}

// writeExport writes one export, running the configured hooks around it.
func writeExport(format export.Format, path string, v export.View, noHooks bool) error {
	exec, err := hooks.RunHooks(config.ConfigDir(), hooks.ExportContext{
		ExportPath:   path,
		ExportFormat: string(format),
		ProjectCount: len(v.Results),
		Source:       v.Source,
		Timestamp:    time.Now(),
	}, noHooks)
	if err != nil {
		return fmt.Errorf("hooks: %w", err)
	}
	if exec != nil {
		defer func() {
			if summary := exec.Summary(); summary != "" {
				fmt.Fprintln(os.Stderr, summary)
			}
		}()
		if err := exec.RunPreExport(); err != nil {
			return fmt.Errorf("export %s cancelled: %w", path, err)
		}
	}

	if err := export.Write(format, path, v); err != nil {
		return fmt.Errorf("export %s: %w", path, err)
	}

	if exec != nil {
		if err := exec.RunPostExport(); err != nil {
			debug.Log("post-export: %v", err)
		}
	}
	return nil
}

// chartFormat picks SVG or PNG from the file extension.
func chartFormat(path string) (export.Format, error) {
	f, err := export.FormatFromPath(path)
	if err != nil {
		return "", err
	}
	if f != export.FormatSVG && f != export.FormatPNG {
		return "", errors.New("--export-chart needs a .svg or .png path")
	}
	return f, nil
}

func buildRobotOutput(loaded *loadResult, src datasource.Source, cfg config.Config, filters query.Filters, sortOpt query.SortOption, results []model.Project, page int) RobotOutput {
	p := query.Page(results, page, cfg.UI.PageSize)
	out := RobotOutput{
		GeneratedAt:  time.Now().UTC(),
		Version:      version.Version,
		Source:       src.String(),
		Dataset:      cfg.Source.Dataset,
		Filters:      filters,
		Sort:         string(sortOpt),
		Complete:     loaded.complete,
		ChunksTotal:  loaded.all.Total,
		ChunksLoaded: loaded.all.Loaded,
		FailedChunks: loaded.all.FailedIndices,
		Summary:      query.Summarize(results),
		Page:         p.Page,
		Pages:        p.Pages,
		PageSize:     p.Size,
		Total:        p.Total,
		Projects:     p.Items,
	}
	if loaded.manifest == nil {
		out.ChunksLoaded = loaded.session.Progress().Loaded
		if err := loaded.session.ManifestErr(); err != nil {
			out.ManifestError = err.Error()
		}
	}
	if out.Projects == nil {
		out.Projects = []model.Project{}
	}
	return out
}

func logTimings() {
	if !debug.Enabled() || !metrics.Enabled() {
		return
	}
	for _, st := range metrics.AllStageStats() {
		if st.Count > 0 {
			debug.Log("timing %s: n=%d avg=%.2fms max=%.2fms", st.Name, st.Count, st.AvgMs, st.MaxMs)
		}
	}
}
