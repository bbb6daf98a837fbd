package chunks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/bouwkansen/internal/datasource"
	"github.com/vanderheijden86/bouwkansen/pkg/debug"
	"github.com/vanderheijden86/bouwkansen/pkg/loader"
	"github.com/vanderheijden86/bouwkansen/pkg/model"
	"github.com/vanderheijden86/bouwkansen/pkg/store"
)

// SessionOptions configures NewSession.
type SessionOptions struct {
	Layout      loader.Layout
	Fetch       FetcherOptions
	Concurrency int
	OnSettled   func(Event)
	Logger      *log.Logger
}

// Session owns everything loaded while browsing one dataset: the manifest,
// the chunk state table, the record store and the coordinator driving them.
type Session struct {
	src         datasource.Source
	fetcher     *Fetcher
	coordinator *Coordinator
	states      *StateTable
	store       *store.Store

	mu          sync.RWMutex
	manifest    *model.Manifest
	manifestErr error
}

// NewSession builds a session reading from src.
func NewSession(src datasource.Source, opts SessionOptions) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = debug.Logger()
	}
	fetchOpts := opts.Fetch
	if fetchOpts.Logger == nil {
		fetchOpts.Logger = logger
	}
	f := NewFetcher(src, opts.Layout, fetchOpts)
	states := NewStateTable()
	st := store.New()
	c := NewCoordinator(f, states, st, CoordinatorOptions{
		Concurrency: opts.Concurrency,
		OnSettled:   opts.OnSettled,
		Logger:      logger,
	})
	return &Session{
		src:         src,
		fetcher:     f,
		coordinator: c,
		states:      states,
		store:       st,
	}
}

// Source returns the dataset source.
func (s *Session) Source() datasource.Source { return s.src }

// Coordinator returns the chunk coordinator.
func (s *Session) Coordinator() *Coordinator { return s.coordinator }

// Store returns the record store.
func (s *Session) Store() *store.Store { return s.store }

// States returns the chunk state table.
func (s *Session) States() *StateTable { return s.states }

// Manifest returns the loaded manifest, if any.
func (s *Session) Manifest() (*model.Manifest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.manifest, s.manifest != nil
}

// ManifestErr returns the last manifest load failure.
func (s *Session) ManifestErr() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.manifestErr
}

// LoadManifest fetches the manifest once. A loaded manifest is returned as
// is; a failed load is recorded and returns an error matching
// ErrManifestUnavailable, and may be attempted again later.
func (s *Session) LoadManifest(ctx context.Context) (*model.Manifest, error) {
	if m, ok := s.Manifest(); ok {
		return m, nil
	}
	m, err := s.fetcher.FetchManifest(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.manifest != nil {
		return s.manifest, nil
	}
	if err != nil {
		s.manifestErr = err
		return nil, fmt.Errorf("%w: %v", ErrManifestUnavailable, err)
	}
	s.manifest = m
	s.manifestErr = nil
	s.coordinator.SetChunkCount(m.Chunks)
	return m, nil
}

// StartResult is the outcome of Start.
type StartResult struct {
	Manifest    *model.Manifest
	ManifestErr error
	First       Outcome
	FirstErr    error
}

// Start loads the manifest and chunk 0 in parallel. The returned error is
// ErrNoDataAvailable when chunk 0 could not be loaded, and the cancellation
// cause (ErrClosed or a context error) when loading was interrupted. A
// missing manifest alone is reported in StartResult.ManifestErr and is not
// fatal.
func (s *Session) Start(ctx context.Context) (StartResult, error) {
	defer debug.LogEnterExit("Session.Start")()

	var res StartResult
	var g errgroup.Group
	g.Go(func() error {
		res.Manifest, res.ManifestErr = s.LoadManifest(ctx)
		return nil
	})
	g.Go(func() error {
		res.First, res.FirstErr = s.coordinator.LoadChunk(ctx, 0)
		return nil
	})
	_ = g.Wait()

	switch res.First {
	case OutcomeLoaded, OutcomeAlreadyLoaded, OutcomeInFlight:
		return res, nil
	}
	if res.First == OutcomeCancelled || errors.Is(res.FirstErr, context.Canceled) {
		return res, res.FirstErr
	}
	return res, fmt.Errorf("%w: %v", ErrNoDataAvailable, res.FirstErr)
}

// Retry clears every failed chunk and starts again from chunk 0. A manifest
// that failed before is fetched again.
func (s *Session) Retry(ctx context.Context) (StartResult, error) {
	s.coordinator.ResetFailed()
	return s.Start(ctx)
}

// LoadAll loads the remaining chunks. It requires the manifest.
func (s *Session) LoadAll(ctx context.Context) (LoadAllResult, error) {
	if _, ok := s.Manifest(); !ok {
		return LoadAllResult{}, ErrManifestUnavailable
	}
	return s.coordinator.LoadAll(ctx)
}

// Progress summarises chunk loading for display.
type Progress struct {
	Loaded   int
	InFlight int
	Failed   int
	// Total is 0 while the manifest is unavailable.
	Total   int
	Records int
}

// Progress returns the current loading progress.
func (s *Session) Progress() Progress {
	c := s.states.Counts()
	p := Progress{Loaded: c.Loaded, InFlight: c.InFlight, Failed: c.Failed, Records: s.store.Len()}
	if n, ok := s.coordinator.ChunkCount(); ok {
		p.Total = n
	}
	return p
}

// AllLoaded reports whether every chunk listed by the manifest is loaded.
func (p Progress) AllLoaded() bool {
	return p.Total > 0 && p.Loaded >= p.Total
}

// Close stops all loading. The session's data stays readable.
func (s *Session) Close() {
	s.coordinator.Close()
}
