// Package watcher notices on-disk changes to a local dataset so the browser
// can offer a reload. It watches the dataset directory with fsnotify and
// falls back to snapshot polling on remote filesystems, where inotify misses
// writes made by other hosts.
package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultPollInterval is the snapshot interval in polling mode.
const DefaultPollInterval = 2 * time.Second

var (
	ErrManifestRemoved = errors.New("dataset manifest was removed")
	ErrPermission      = errors.New("permission denied")
	ErrAlreadyStarted  = errors.New("watcher already started")
)

// Mode is how a running Watcher learns about changes.
type Mode int

const (
	ModeStopped Mode = iota
	ModeEvents
	ModePolling
)

func (m Mode) String() string {
	switch m {
	case ModeEvents:
		return "events"
	case ModePolling:
		return "polling"
	default:
		return "stopped"
	}
}

// Change is one settled burst of dataset file changes.
type Change struct {
	// Files holds the base names that changed, sorted.
	Files []string
	// Manifest is set when the manifest was among them.
	Manifest bool
}

func (c Change) merge(o Change) Change {
	seen := make(map[string]bool, len(c.Files)+len(o.Files))
	var files []string
	for _, f := range append(append([]string{}, c.Files...), o.Files...) {
		if !seen[f] {
			seen[f] = true
			files = append(files, f)
		}
	}
	sort.Strings(files)
	return Change{Files: files, Manifest: c.Manifest || o.Manifest}
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period that closes a burst.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithPollInterval sets the snapshot interval for polling mode.
func WithPollInterval(d time.Duration) Option {
	return func(w *Watcher) { w.pollInterval = d }
}

// WithOnError sets the callback for watch errors.
func WithOnError(fn func(error)) Option {
	return func(w *Watcher) { w.onError = fn }
}

// WithForcePoll skips fsnotify even where it is available.
func WithForcePoll(force bool) Option {
	return func(w *Watcher) { w.forcePoll = force }
}

type stamp struct {
	mtime time.Time
	size  int64
}

// Watcher reports changes to the manifest and chunk files of one dataset
// directory.
type Watcher struct {
	dir          string
	manifest     string
	chunkPrefix  string
	debounce     time.Duration
	pollInterval time.Duration
	onError      func(error)
	forcePoll    bool

	mu       sync.Mutex
	mode     Mode
	fsType   FilesystemType
	fsw      *fsnotify.Watcher
	cancel   context.CancelFunc
	snapshot map[string]stamp
	pending  Change

	debouncer *Debouncer
	changes   chan Change
}

// New watches manifestName and every "<chunkPrefix>*.json" file in dir.
func New(dir, manifestName, chunkPrefix string, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		dir:          abs,
		manifest:     manifestName,
		chunkPrefix:  chunkPrefix,
		debounce:     DefaultDebounceDuration,
		pollInterval: DefaultPollInterval,
		onError:      func(error) {},
		changes:      make(chan Change, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.debouncer = NewDebouncer(w.debounce)
	return w, nil
}

// Dir returns the watched dataset directory.
func (w *Watcher) Dir() string { return w.dir }

// Relevant reports whether a base name belongs to the dataset.
func (w *Watcher) Relevant(name string) bool {
	if name == w.manifest {
		return true
	}
	return w.chunkPrefix != "" && strings.HasPrefix(name, w.chunkPrefix) && strings.HasSuffix(name, ".json")
}

// Start begins watching. Polling is used when forced, when BK_FORCE_POLLING
// or BK_FORCE_POLL is set, on remote filesystems, or when fsnotify cannot
// watch the directory.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.mode != ModeStopped {
		return ErrAlreadyStarted
	}

	snap, err := w.scan()
	if err != nil && os.IsPermission(err) {
		return ErrPermission
	}
	w.snapshot = snap
	w.pending = Change{}
	w.fsType = detectFilesystemTypeFunc(w.dir)

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	poll := w.forcePoll || envBool("BK_FORCE_POLLING") || envBool("BK_FORCE_POLL") || isRemoteFilesystem(w.fsType)
	if !poll {
		if fsw, err := fsnotify.NewWatcher(); err == nil {
			if err := fsw.Add(w.dir); err == nil {
				w.fsw = fsw
				w.mode = ModeEvents
				go w.runEvents(ctx, fsw.Events, fsw.Errors)
				return nil
			}
			fsw.Close()
		}
	}
	w.mode = ModePolling
	go w.runPolling(ctx)
	return nil
}

// Stop stops watching and drops any unsettled burst. The Changes channel
// stays open.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.mode == ModeStopped {
		return
	}
	w.cancel()
	if w.fsw != nil {
		w.fsw.Close()
		w.fsw = nil
	}
	w.debouncer.Cancel()
	w.pending = Change{}
	w.mode = ModeStopped
}

// Mode returns the current watch mode.
func (w *Watcher) Mode() Mode {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.mode
}

// IsPolling reports whether the watcher runs in polling mode.
func (w *Watcher) IsPolling() bool { return w.Mode() == ModePolling }

// FilesystemType returns the classification made at Start.
func (w *Watcher) FilesystemType() FilesystemType {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fsType
}

// PollInterval returns the snapshot interval.
func (w *Watcher) PollInterval() time.Duration { return w.pollInterval }

// Changes delivers settled bursts. Bursts that arrive before the previous
// one is received are merged into it.
func (w *Watcher) Changes() <-chan Change { return w.changes }

func (w *Watcher) runEvents(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			name := filepath.Base(ev.Name)
			if !w.Relevant(name) {
				continue
			}
			if ev.Op&fsnotify.Remove != 0 && name == w.manifest {
				w.onError(ErrManifestRemoved)
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				w.record(name)
			}
		case err, ok := <-errs:
			if !ok {
				return
			}
			w.onError(err)
		}
	}
}

func (w *Watcher) runPolling(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll()
		}
	}
}

func (w *Watcher) poll() {
	next, err := w.scan()
	if err != nil {
		if os.IsPermission(err) {
			err = ErrPermission
		}
		w.onError(err)
		return
	}

	w.mu.Lock()
	prev := w.snapshot
	w.snapshot = next
	w.mu.Unlock()

	_, hadManifest := prev[w.manifest]
	if _, ok := next[w.manifest]; hadManifest && !ok {
		w.onError(ErrManifestRemoved)
	}
	for _, name := range diffSnapshots(prev, next) {
		if name == w.manifest {
			if _, ok := next[name]; !ok {
				continue
			}
		}
		w.record(name)
	}
}

// scan stats every relevant file in the dataset directory.
func (w *Watcher) scan() (map[string]stamp, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return map[string]stamp{}, err
	}
	snap := make(map[string]stamp)
	for _, e := range entries {
		if e.IsDir() || !w.Relevant(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		snap[e.Name()] = stamp{mtime: info.ModTime(), size: info.Size()}
	}
	return snap, nil
}

// diffSnapshots returns the sorted names that were added, removed or
// modified between two snapshots.
func diffSnapshots(prev, next map[string]stamp) []string {
	var names []string
	for name, s := range next {
		if p, ok := prev[name]; !ok || !p.mtime.Equal(s.mtime) || p.size != s.size {
			names = append(names, name)
		}
	}
	for name := range prev {
		if _, ok := next[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (w *Watcher) record(name string) {
	w.mu.Lock()
	if w.mode == ModeStopped {
		w.mu.Unlock()
		return
	}
	w.pending = w.pending.merge(Change{Files: []string{name}, Manifest: name == w.manifest})
	w.mu.Unlock()
	w.debouncer.Trigger(w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	c := w.pending
	w.pending = Change{}
	stopped := w.mode == ModeStopped
	w.mu.Unlock()

	if stopped || len(c.Files) == 0 {
		return
	}
	for {
		select {
		case w.changes <- c:
			return
		default:
		}
		select {
		case old := <-w.changes:
			c = old.merge(c)
		default:
		}
	}
}

func envBool(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}
