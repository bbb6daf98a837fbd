package chunks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/vanderheijden86/bouwkansen/internal/datasource"
	"github.com/vanderheijden86/bouwkansen/pkg/debug"
	"github.com/vanderheijden86/bouwkansen/pkg/loader"
	"github.com/vanderheijden86/bouwkansen/pkg/metrics"
	"github.com/vanderheijden86/bouwkansen/pkg/model"
)

// Fetch defaults.
const (
	DefaultRetries     = 3
	DefaultTimeout     = 30 * time.Second
	DefaultBaseBackoff = time.Second
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// FetcherOptions configures a Fetcher. Zero values use the defaults.
type FetcherOptions struct {
	// Retries is the total number of attempts per chunk.
	Retries int
	// Timeout bounds each attempt.
	Timeout time.Duration
	// BaseBackoff is the wait after the first failed attempt; it doubles
	// after each further failure.
	BaseBackoff time.Duration
	// Sleep replaces the backoff wait (tests).
	Sleep SleepFunc
	// Logger receives retry diagnostics. Nil discards them.
	Logger *log.Logger
	// Parse is passed to the chunk decoder.
	Parse loader.ParseOptions
}

// Fetcher downloads and decodes single chunks with a bounded retry budget.
// It keeps no state between calls.
type Fetcher struct {
	src     datasource.Source
	layout  loader.Layout
	retries int
	timeout time.Duration
	base    time.Duration
	sleep   SleepFunc
	logger  *log.Logger
	parse   loader.ParseOptions
}

// NewFetcher returns a fetcher reading from src using layout keys.
func NewFetcher(src datasource.Source, layout loader.Layout, opts FetcherOptions) *Fetcher {
	f := &Fetcher{
		src:     src,
		layout:  layout,
		retries: opts.Retries,
		timeout: opts.Timeout,
		base:    opts.BaseBackoff,
		sleep:   opts.Sleep,
		logger:  opts.Logger,
		parse:   opts.Parse,
	}
	if f.retries <= 0 {
		f.retries = DefaultRetries
	}
	if f.timeout <= 0 {
		f.timeout = DefaultTimeout
	}
	if f.base <= 0 {
		f.base = DefaultBaseBackoff
	}
	if f.sleep == nil {
		f.sleep = sleepContext
	}
	if f.logger == nil {
		f.logger = debug.Logger()
	}
	if f.parse.WarningHandler == nil {
		f.parse.WarningHandler = func(msg string) { f.logger.Print(msg) }
	}
	return f
}

// Layout returns the key layout used by the fetcher.
func (f *Fetcher) Layout() loader.Layout { return f.layout }

// Retries returns the attempt budget per chunk.
func (f *Fetcher) Retries() int { return f.retries }

// Backoff returns the wait after failed attempt n (1-based): base·2^(n-1).
func Backoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return base << (attempt - 1)
}

// FetchChunk fetches chunk index, retrying failed attempts with exponential
// backoff. After the last failed attempt it returns *ChunkFetchFailed.
// Cancellation of ctx aborts the loop and returns ctx.Err().
func (f *Fetcher) FetchChunk(ctx context.Context, index int) ([]model.Project, error) {
	defer metrics.Timer(metrics.ChunkFetch)()

	var last *TransientFetchError
	for attempt := 1; attempt <= f.retries; attempt++ {
		projects, err := f.fetchOnce(ctx, index)
		if err == nil {
			if attempt > 1 {
				f.logger.Printf("chunk %d loaded on attempt %d", index, attempt)
			}
			return projects, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		last = &TransientFetchError{Index: index, Attempt: attempt, Err: err}
		f.logger.Printf("chunk %d attempt %d/%d failed: %v", index, attempt, f.retries, err)

		if attempt < f.retries {
			if err := f.sleep(ctx, Backoff(f.base, attempt)); err != nil {
				return nil, err
			}
		}
	}
	return nil, &ChunkFetchFailed{Index: index, Attempts: f.retries, Last: last}
}

func (f *Fetcher) fetchOnce(ctx context.Context, index int) ([]model.Project, error) {
	start := time.Now()
	actx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	projects, err := f.openChunk(actx, index)
	metrics.ObserveFetchAttempt(err == nil, time.Since(start).Seconds())
	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return nil, fmt.Errorf("timed out after %v: %w", f.timeout, err)
	}
	return projects, err
}

func (f *Fetcher) openChunk(ctx context.Context, index int) ([]model.Project, error) {
	rc, err := f.src.Open(ctx, f.layout.ChunkKey(index))
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	done := metrics.Timer(metrics.ChunkDecode)
	res, err := loader.ParseChunkWithOptions(rc, f.parse)
	done()
	if err != nil {
		return nil, err
	}
	metrics.AddSkippedRows(res.Skipped)
	return res.Projects, nil
}

// FetchManifest loads the manifest in a single attempt bounded by the
// per-attempt timeout.
func (f *Fetcher) FetchManifest(ctx context.Context) (*model.Manifest, error) {
	defer metrics.Timer(metrics.ManifestLoad)()

	actx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	rc, err := f.src.Open(actx, f.layout.ManifestKey())
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return loader.ParseManifest(rc)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
