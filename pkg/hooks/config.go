// Package hooks runs user commands around bk exports.
//
// Hooks live in hooks.yaml next to config.yaml (~/.config/bk/hooks.yaml):
//
//	hooks:
//	  pre-export:
//	    - name: check-dir
//	      command: test -w "$(dirname "$BK_EXPORT_PATH")"
//	  post-export:
//	    - name: upload
//	      command: aws s3 cp "$BK_EXPORT_PATH" s3://exports/
//	      formats: [csv, sqlite]
//	      timeout: 2m
package hooks

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// HookPhase is when a hook runs relative to writing the export file.
type HookPhase string

const (
	// PreExport hooks may veto the export.
	PreExport HookPhase = "pre-export"
	// PostExport hooks see the finished file.
	PostExport HookPhase = "post-export"
)

// ErrorPolicy decides what a failing hook does to the export.
type ErrorPolicy string

const (
	OnErrorFail     ErrorPolicy = "fail"
	OnErrorContinue ErrorPolicy = "continue"
)

// defaultPolicy is fail before the file exists and continue after.
func (p HookPhase) defaultPolicy() ErrorPolicy {
	if p == PreExport {
		return OnErrorFail
	}
	return OnErrorContinue
}

// DefaultTimeout bounds a hook without an explicit timeout.
const DefaultTimeout = 30 * time.Second

// FileName is the hooks file looked up in the config directory.
const FileName = "hooks.yaml"

// Hook is one configured command. Command runs with sh -c; Env values are
// expanded against the process environment.
type Hook struct {
	Name    string            `yaml:"name" json:"name"`
	Command string            `yaml:"command" json:"command"`
	Timeout time.Duration     `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Env     map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	OnError ErrorPolicy       `yaml:"on_error,omitempty" json:"on_error,omitempty"`
	// Formats limits the hook to these export formats; empty means all.
	Formats []string `yaml:"formats,omitempty" json:"formats,omitempty"`
}

// Applies reports whether h runs for an export in format.
func (h Hook) Applies(format string) bool {
	return len(h.Formats) == 0 || slices.Contains(h.Formats, strings.ToLower(format))
}

// UnmarshalYAML accepts timeouts as durations ("5s") or plain seconds.
func (h *Hook) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Name    string            `yaml:"name"`
		Command string            `yaml:"command"`
		Timeout string            `yaml:"timeout"`
		Env     map[string]string `yaml:"env"`
		OnError ErrorPolicy       `yaml:"on_error"`
		Formats []string          `yaml:"formats"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	timeout, err := parseTimeout(raw.Timeout)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*h = Hook{
		Name:    raw.Name,
		Command: raw.Command,
		Timeout: timeout,
		Env:     raw.Env,
		OnError: raw.OnError,
	}
	for _, f := range raw.Formats {
		h.Formats = append(h.Formats, strings.ToLower(strings.TrimSpace(f)))
	}
	return nil
}

func parseTimeout(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q", s)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// HooksByPhase groups hooks by phase, in file order.
type HooksByPhase struct {
	PreExport  []Hook `yaml:"pre-export,omitempty" json:"pre-export,omitempty"`
	PostExport []Hook `yaml:"post-export,omitempty" json:"post-export,omitempty"`
}

// Config is the parsed hooks.yaml.
type Config struct {
	Hooks HooksByPhase `yaml:"hooks" json:"hooks"`
}

// phase returns the hooks of p, or nil for an unknown phase.
func (c *Config) phase(p HookPhase) []Hook {
	switch p {
	case PreExport:
		return c.Hooks.PreExport
	case PostExport:
		return c.Hooks.PostExport
	default:
		return nil
	}
}

// ExportContext describes the export; hooks receive it as BK_* variables.
type ExportContext struct {
	ExportPath   string
	ExportFormat string // csv, sqlite, svg, png or md
	ProjectCount int
	Source       string
	Timestamp    time.Time
}

// ToEnv renders the context as environment assignments.
func (c ExportContext) ToEnv() []string {
	return []string{
		"BK_EXPORT_PATH=" + c.ExportPath,
		"BK_EXPORT_FORMAT=" + c.ExportFormat,
		"BK_PROJECT_COUNT=" + strconv.Itoa(c.ProjectCount),
		"BK_SOURCE=" + c.Source,
		"BK_TIMESTAMP=" + c.Timestamp.Format(time.RFC3339),
	}
}

// Loader reads hooks.yaml from one directory.
type Loader struct {
	dir      string
	config   *Config
	warnings []string
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithDir sets the directory holding hooks.yaml.
func WithDir(dir string) LoaderOption {
	return func(l *Loader) { l.dir = dir }
}

// NewLoader returns a Loader for the current directory unless WithDir is
// given.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{}
	for _, opt := range opts {
		opt(l)
	}
	if l.dir == "" {
		l.dir, _ = os.Getwd()
	}
	return l
}

// Path returns the hooks file location.
func (l *Loader) Path() string {
	return filepath.Join(l.dir, FileName)
}

// Load reads hooks.yaml. A missing file means no hooks.
func (l *Loader) Load() error {
	l.warnings = nil
	data, err := os.ReadFile(l.Path())
	if os.IsNotExist(err) {
		l.config = &Config{}
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading hooks config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parsing %s: %w", l.Path(), err)
	}
	cfg.Hooks.PreExport = l.normalize(PreExport, cfg.Hooks.PreExport)
	cfg.Hooks.PostExport = l.normalize(PostExport, cfg.Hooks.PostExport)
	l.config = &cfg
	return nil
}

// normalize fills defaults and drops hooks without a command.
func (l *Loader) normalize(phase HookPhase, in []Hook) []Hook {
	var out []Hook
	for i, h := range in {
		if strings.TrimSpace(h.Command) == "" {
			l.warnings = append(l.warnings, fmt.Sprintf("%s hook %d has empty command; skipping", phase, i+1))
			continue
		}
		if h.Name == "" {
			h.Name = fmt.Sprintf("%s-%d", phase, i+1)
		}
		if h.Timeout <= 0 {
			h.Timeout = DefaultTimeout
		}
		switch h.OnError {
		case OnErrorFail, OnErrorContinue:
		case "":
			h.OnError = phase.defaultPolicy()
		default:
			l.warnings = append(l.warnings, fmt.Sprintf("%s hook %q: unknown on_error %q, using %q", phase, h.Name, h.OnError, phase.defaultPolicy()))
			h.OnError = phase.defaultPolicy()
		}
		out = append(out, h)
	}
	return out
}

// Config returns the loaded configuration, empty before Load.
func (l *Loader) Config() *Config {
	if l.config == nil {
		return &Config{}
	}
	return l.config
}

// HasHooks reports whether any hook is configured.
func (l *Loader) HasHooks() bool {
	c := l.Config()
	return len(c.Hooks.PreExport)+len(c.Hooks.PostExport) > 0
}

// GetHooks returns the hooks of one phase.
func (l *Loader) GetHooks(phase HookPhase) []Hook {
	return l.Config().phase(phase)
}

// Warnings returns the problems found by the last Load.
func (l *Loader) Warnings() []string {
	return l.warnings
}
