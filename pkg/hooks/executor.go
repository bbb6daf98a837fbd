package hooks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/vanderheijden86/bouwkansen/pkg/debug"
)

// maxSummaryStderr caps the stderr excerpt shown per failed hook.
const maxSummaryStderr = 200

// HookResult is the outcome of one hook run.
type HookResult struct {
	Hook     Hook
	Phase    HookPhase
	Success  bool
	Stdout   string
	Stderr   string
	Duration time.Duration
	Error    error
}

// Executor runs the hooks of a Config for one export.
type Executor struct {
	config  *Config
	context ExportContext
	results []HookResult
}

// NewExecutor creates an executor. A nil config runs nothing.
func NewExecutor(config *Config, ctx ExportContext) *Executor {
	if config == nil {
		config = &Config{}
	}
	return &Executor{config: config, context: ctx}
}

// RunPreExport runs the pre-export hooks in order and stops at the first
// failing hook whose on_error is "fail".
func (e *Executor) RunPreExport() error {
	return e.runPhase(PreExport, true)
}

// RunPostExport runs every post-export hook. A failing hook with
// on_error "fail" is reported after the rest have run.
func (e *Executor) RunPostExport() error {
	return e.runPhase(PostExport, false)
}

// runPhase runs the hooks of phase that apply to the export format.
func (e *Executor) runPhase(phase HookPhase, stopOnFail bool) error {
	var firstErr error
	for _, h := range e.config.phase(phase) {
		if !h.Applies(e.context.ExportFormat) {
			debug.Log("hook %s/%s: skipped for format %s", phase, h.Name, e.context.ExportFormat)
			continue
		}
		res := e.run(phase, h)
		e.results = append(e.results, res)
		if res.Success || h.OnError == OnErrorContinue {
			continue
		}
		err := fmt.Errorf("%s hook %q failed: %w", phase, h.Name, res.Error)
		if stopOnFail {
			return err
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (e *Executor) run(phase HookPhase, h Hook) HookResult {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", h.Command)
	cmd.Env = append(os.Environ(), e.context.ToEnv()...)
	for k, v := range h.Env {
		cmd.Env = append(cmd.Env, k+"="+os.ExpandEnv(v))
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	start := time.Now()
	err := cmd.Run()
	res := HookResult{
		Hook:     h,
		Phase:    phase,
		Stdout:   strings.TrimSpace(stdout.String()),
		Stderr:   strings.TrimSpace(stderr.String()),
		Duration: time.Since(start),
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("timed out after %v", timeout)
	}
	res.Error = err
	res.Success = err == nil
	debug.Log("hook %s/%s: success=%v in %v", phase, h.Name, res.Success, res.Duration)
	return res
}

// Results returns the results of every hook run so far.
func (e *Executor) Results() []HookResult {
	return e.results
}

// Summary describes the hook runs in one line per failure.
func (e *Executor) Summary() string {
	if len(e.results) == 0 {
		return ""
	}
	var ok, failed int
	var lines []string
	for _, r := range e.results {
		if r.Success {
			ok++
			continue
		}
		failed++
		line := fmt.Sprintf("  %s %s: %v", r.Phase, r.Hook.Name, r.Error)
		if r.Stderr != "" {
			stderr := r.Stderr
			if len(stderr) > maxSummaryStderr {
				stderr = stderr[:maxSummaryStderr] + "..."
			}
			line += " (" + stderr + ")"
		}
		lines = append(lines, line)
	}
	head := fmt.Sprintf("Hooks: %d succeeded, %d failed", ok, failed)
	if len(lines) == 0 {
		return head
	}
	return head + "\n" + strings.Join(lines, "\n")
}

// RunHooks loads hooks.yaml from dir and returns an executor for ctx. It
// returns nil when noHooks is set or no hooks are configured.
func RunHooks(dir string, ctx ExportContext, noHooks bool) (*Executor, error) {
	if noHooks {
		return nil, nil
	}
	loader := NewLoader(WithDir(dir))
	if err := loader.Load(); err != nil {
		return nil, err
	}
	for _, w := range loader.Warnings() {
		debug.Log("hooks: %s", w)
	}
	if !loader.HasHooks() {
		return nil, nil
	}
	return NewExecutor(loader.Config(), ctx), nil
}
