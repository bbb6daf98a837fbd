package export

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/goccy/go-json"
	"github.com/natefinch/atomic"
	"golang.org/x/term"
)

// WizardConfig holds the choices of the export wizard; the last run is
// remembered to prefill the next one.
type WizardConfig struct {
	Format    Format `json:"format"`
	OutputDir string `json:"output_dir"`
	Title     string `json:"title,omitempty"`
}

// WizardResult is the outcome of a wizard run.
type WizardResult struct {
	Format Format
	Path   string
	Title  string
}

// Wizard runs the interactive export flow.
type Wizard struct {
	config     WizardConfig
	configPath string
	now        func() time.Time
}

// NewWizard creates a wizard writing into defaultDir unless a saved
// configuration says otherwise.
func NewWizard(defaultDir string) *Wizard {
	if defaultDir == "" {
		defaultDir = "."
	}
	return &Wizard{
		config:     WizardConfig{Format: FormatCSV, OutputDir: defaultDir},
		configPath: WizardConfigPath(),
		now:        time.Now,
	}
}

// isTerminal checks if stdin is connected to a terminal
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// newForm creates a form with appropriate settings based on TTY detection
func newForm(groups ...*huh.Group) *huh.Form {
	form := huh.NewForm(groups...).WithTheme(huh.ThemeDracula())
	if !isTerminal() {
		form = form.WithAccessible(true)
	}
	return form
}

// Run asks for format, output location and title, then saves the choices.
func (w *Wizard) Run() (*WizardResult, error) {
	if saved, err := LoadWizardConfig(w.configPath); err == nil && saved != nil {
		if saved.Format != "" {
			w.config.Format = saved.Format
		}
		if saved.OutputDir != "" {
			w.config.OutputDir = saved.OutputDir
		}
		w.config.Title = saved.Title
	}

	fmt.Println("Export")
	fmt.Println("────────────────────────────")

	options := make([]huh.Option[Format], len(Formats))
	for i, f := range Formats {
		options[i] = huh.NewOption(f.Description(), f)
	}

	form := newForm(
		huh.NewGroup(
			huh.NewSelect[Format]().
				Title("Export format").
				Options(options...).
				Value(&w.config.Format),
			huh.NewInput().
				Title("Output directory").
				Value(&w.config.OutputDir).
				Placeholder(".").
				Validate(validateDir),
			huh.NewInput().
				Title("Title (optional)").
				Value(&w.config.Title),
		),
	)
	if err := form.Run(); err != nil {
		return nil, err
	}

	res := w.Result()
	if err := SaveWizardConfig(w.configPath, &w.config); err != nil {
		fmt.Printf("Warning: could not save export settings: %v\n", err)
	}
	return res, nil
}

// Result derives the output file from the current configuration.
func (w *Wizard) Result() *WizardResult {
	dir := strings.TrimSpace(w.config.OutputDir)
	if dir == "" {
		dir = "."
	}
	return &WizardResult{
		Format: w.config.Format,
		Path:   filepath.Join(dir, DefaultFileName(w.config.Format, w.now())),
		Title:  strings.TrimSpace(w.config.Title),
	}
}

// Config returns the current wizard configuration.
func (w *Wizard) Config() WizardConfig { return w.config }

func validateDir(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	fi, err := os.Stat(s)
	if errors.Is(err, os.ErrNotExist) {
		// Created on export.
		return nil
	}
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return fmt.Errorf("%s is not a directory", s)
	}
	return nil
}

// DefaultFileName returns the export file name for format f on day t.
func DefaultFileName(f Format, t time.Time) string {
	if f == FormatCSV {
		return CSVFileName(t)
	}
	return fmt.Sprintf("gemeentelijke-investeringen-%s%s", t.Format("2006-01-02"), f.Extension())
}

// WizardConfigPath returns the path to the wizard config file.
func WizardConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "bk", "export-wizard.json")
}

// LoadWizardConfig loads previously saved wizard configuration. A missing
// file returns nil, nil.
func LoadWizardConfig(path string) (*WizardConfig, error) {
	if path == "" {
		return nil, fmt.Errorf("could not determine config path")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var config WizardConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, err
	}
	return &config, nil
}

// SaveWizardConfig saves wizard configuration for future runs.
func SaveWizardConfig(path string, config *WizardConfig) error {
	if path == "" {
		return fmt.Errorf("could not determine config path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}
	return atomic.WriteFile(path, bytes.NewReader(data))
}
