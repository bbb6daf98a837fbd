// Package config handles loading and saving bk configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/bk/config.yaml
//   - State:   ~/.local/state/bk/ (last view)
//
// Precedence is flags > environment (BK_BASE, BK_DATASET) > file > defaults;
// flags are applied by the caller.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/bouwkansen/internal/datasource"
	"github.com/vanderheijden86/bouwkansen/pkg/chunks"
	"github.com/vanderheijden86/bouwkansen/pkg/loader"
	"github.com/vanderheijden86/bouwkansen/pkg/query"
)

// SourceConfig locates the dataset.
type SourceConfig struct {
	// Base is an http(s) URL, a local directory or s3://bucket/prefix.
	Base         string `yaml:"base,omitempty"`
	Dataset      string `yaml:"dataset,omitempty"`
	ManifestName string `yaml:"manifest_name,omitempty"`
	ChunkName    string `yaml:"chunk_name,omitempty"`
}

// Layout returns the file layout described by s.
func (s SourceConfig) Layout() loader.Layout {
	return loader.Layout{Dataset: s.Dataset, ManifestName: s.ManifestName, ChunkName: s.ChunkName}
}

// FetchConfig tunes chunk fetching.
type FetchConfig struct {
	Retries       int           `yaml:"retries,omitempty"`
	Timeout       time.Duration `yaml:"timeout,omitempty"`
	Backoff       time.Duration `yaml:"backoff,omitempty"`
	MaxConcurrent int           `yaml:"max_concurrent,omitempty"`
}

// FetcherOptions converts f for chunks.NewFetcher.
func (f FetchConfig) FetcherOptions() chunks.FetcherOptions {
	return chunks.FetcherOptions{Retries: f.Retries, Timeout: f.Timeout, BaseBackoff: f.Backoff}
}

// UIConfig holds browser preferences.
type UIConfig struct {
	PageSize int `yaml:"page_size,omitempty"`
	// RequireFilter hides results until at least one filter is set.
	RequireFilter *bool  `yaml:"require_filter,omitempty"`
	DefaultSort   string `yaml:"default_sort,omitempty"`
}

// FilterRequired reports the effective require_filter setting.
func (u UIConfig) FilterRequired() bool {
	return u.RequireFilter == nil || *u.RequireFilter
}

// ExportConfig holds export preferences.
type ExportConfig struct {
	DefaultDir string `yaml:"default_dir,omitempty"`
}

// Config is the top-level configuration for bk.
type Config struct {
	Source SourceConfig        `yaml:"source,omitempty"`
	Fetch  FetchConfig         `yaml:"fetch,omitempty"`
	S3     datasource.S3Config `yaml:"s3,omitempty"`
	UI     UIConfig            `yaml:"ui,omitempty"`
	Export ExportConfig        `yaml:"export,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Source: SourceConfig{
			Base:         ".",
			Dataset:      loader.DefaultDataset,
			ManifestName: loader.DefaultManifestName,
			ChunkName:    loader.DefaultChunkName,
		},
		Fetch: FetchConfig{
			Retries:       chunks.DefaultRetries,
			Timeout:       chunks.DefaultTimeout,
			Backoff:       chunks.DefaultBaseBackoff,
			MaxConcurrent: chunks.DefaultConcurrency,
		},
		UI: UIConfig{
			PageSize:    query.DefaultPageSize,
			DefaultSort: string(query.SortAmountDesc),
		},
		Export: ExportConfig{DefaultDir: "."},
	}
}

// Validate checks values that would otherwise fail later.
func (c Config) Validate() error {
	if c.Fetch.Retries < 1 {
		return fmt.Errorf("fetch.retries must be >= 1, got %d", c.Fetch.Retries)
	}
	if c.Fetch.Timeout < 0 || c.Fetch.Backoff < 0 {
		return fmt.Errorf("fetch.timeout and fetch.backoff must not be negative")
	}
	if c.UI.PageSize < 0 {
		return fmt.Errorf("ui.page_size must not be negative, got %d", c.UI.PageSize)
	}
	if _, err := query.ParseSort(c.UI.DefaultSort); err != nil {
		return fmt.Errorf("ui.default_sort: %w", err)
	}
	return nil
}

// ApplyEnv overlays BK_BASE and BK_DATASET.
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv("BK_BASE")); v != "" {
		c.Source.Base = v
	}
	if v := strings.TrimSpace(os.Getenv("BK_DATASET")); v != "" {
		c.Source.Dataset = v
	}
}

// ConfigDir returns the XDG config directory for bk.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "bk")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "bk")
}

// StateDir returns the XDG state directory for bk.
func StateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "bk")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "state", "bk")
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the config file from the XDG config directory.
// Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path.
// Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	if datasource.DetectType(cfg.Source.Base) == datasource.SourceTypeDir {
		cfg.Source.Base = expandHome(cfg.Source.Base)
	}
	cfg.Export.DefaultDir = expandHome(cfg.Export.DefaultDir)

	return cfg, nil
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path atomically.
func SaveTo(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
