package chunks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/bouwkansen/pkg/debug"
	"github.com/vanderheijden86/bouwkansen/pkg/metrics"
	"github.com/vanderheijden86/bouwkansen/pkg/model"
	"github.com/vanderheijden86/bouwkansen/pkg/store"
)

// DefaultConcurrency caps parallel fetches started by LoadAll.
const DefaultConcurrency = 8

// ChunkFetcher fetches one chunk. *Fetcher implements it.
type ChunkFetcher interface {
	FetchChunk(ctx context.Context, index int) ([]model.Project, error)
}

// Outcome is the result of a LoadChunk call.
type Outcome int

const (
	// OutcomeLoaded: this call fetched the chunk and merged it.
	OutcomeLoaded Outcome = iota
	// OutcomeAlreadyLoaded: the chunk was loaded earlier; nothing happened.
	OutcomeAlreadyLoaded
	// OutcomeInFlight: another caller is fetching the chunk.
	OutcomeInFlight
	// OutcomeFailed: the chunk is (now) failed and will not be retried.
	OutcomeFailed
	// OutcomeCancelled: the fetch was abandoned; the chunk is unloaded again.
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeLoaded:
		return "loaded"
	case OutcomeAlreadyLoaded:
		return "already-loaded"
	case OutcomeInFlight:
		return "in-flight"
	case OutcomeFailed:
		return "failed"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Event reports a chunk settling.
type Event struct {
	Index int
	State State
	// Added is the number of new records merged (0 unless loaded).
	Added int
	Err   error
}

// CoordinatorOptions configures a Coordinator.
type CoordinatorOptions struct {
	// Concurrency caps LoadAll fan-out. 0 uses DefaultConcurrency, a
	// negative value removes the cap.
	Concurrency int
	// OnSettled is called after every fetch this coordinator performs
	// settles. It runs on the fetching goroutine.
	OnSettled func(Event)
	// Logger receives load diagnostics. Nil uses the debug logger.
	Logger *log.Logger
}

// Coordinator schedules chunk loads against a state table and merges the
// results into a store.
type Coordinator struct {
	fetcher   ChunkFetcher
	states    *StateTable
	store     *store.Store
	limit     int
	onSettled func(Event)
	logger    *log.Logger

	chunkCount atomic.Int64 // -1 until known

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex // guards closed transitions against wg.Add
	closed atomic.Bool
	wg     sync.WaitGroup
}

// NewCoordinator wires a coordinator. The state table and store are owned by
// the caller (usually a Session).
func NewCoordinator(f ChunkFetcher, states *StateTable, st *store.Store, opts CoordinatorOptions) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		fetcher:   f,
		states:    states,
		store:     st,
		limit:     opts.Concurrency,
		onSettled: opts.OnSettled,
		logger:    opts.Logger,
		ctx:       ctx,
		cancel:    cancel,
	}
	if c.limit == 0 {
		c.limit = DefaultConcurrency
	}
	if c.logger == nil {
		c.logger = debug.Logger()
	}
	c.chunkCount.Store(-1)
	return c
}

// SetChunkCount records the number of chunks once the manifest is known.
func (c *Coordinator) SetChunkCount(n int) {
	c.chunkCount.Store(int64(n))
}

// ChunkCount returns the known chunk count.
func (c *Coordinator) ChunkCount() (int, bool) {
	n := c.chunkCount.Load()
	if n < 0 {
		return 0, false
	}
	return int(n), true
}

// States returns the state table.
func (c *Coordinator) States() *StateTable { return c.states }

// Store returns the record store.
func (c *Coordinator) Store() *store.Store { return c.store }

// LoadChunk loads chunk i unless it is loaded, failed, or already in flight.
// Failed chunks are not retried until ResetFailed. An in-flight chunk
// returns OutcomeInFlight immediately without waiting.
func (c *Coordinator) LoadChunk(ctx context.Context, i int) (Outcome, error) {
	if c.closed.Load() {
		return OutcomeCancelled, ErrClosed
	}
	if err := c.checkIndex(i); err != nil {
		return OutcomeFailed, err
	}

	started, st, _ := c.states.TryStart(i)
	if !started {
		switch st {
		case StateLoaded:
			return OutcomeAlreadyLoaded, nil
		case StateFailed:
			return OutcomeFailed, fmt.Errorf("chunk %d: %w", i, ErrChunkExhausted)
		default:
			return OutcomeInFlight, nil
		}
	}
	return c.run(ctx, i)
}

func (c *Coordinator) checkIndex(i int) error {
	if i < 0 {
		return fmt.Errorf("%w: %d", ErrChunkIndex, i)
	}
	if n, ok := c.ChunkCount(); ok && i >= n {
		return fmt.Errorf("%w: %d (chunks=%d)", ErrChunkIndex, i, n)
	}
	return nil
}

// run owns the in-flight marker of i and always clears it.
func (c *Coordinator) run(ctx context.Context, i int) (outcome Outcome, err error) {
	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		c.states.Finish(i, StateUnloaded)
		return OutcomeCancelled, ErrClosed
	}
	c.wg.Add(1)
	c.mu.Unlock()
	metrics.ChunkStarted()

	final := StateUnloaded
	added := 0
	defer func() {
		c.states.Finish(i, final)
		metrics.ChunkSettled()
		if final != StateUnloaded {
			metrics.ObserveChunkOutcome(final.String())
		}
		if c.onSettled != nil {
			c.onSettled(Event{Index: i, State: final, Added: added, Err: err})
		}
		c.wg.Done()
	}()

	fctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(c.ctx, cancel)
	defer stop()

	projects, err := c.fetcher.FetchChunk(fctx, i)
	if err != nil {
		if errors.Is(err, ErrChunkExhausted) {
			final = StateFailed
			c.logger.Printf("chunk %d marked failed: %v", i, err)
			return OutcomeFailed, err
		}
		if fctx.Err() != nil {
			c.logger.Printf("chunk %d abandoned: %v", i, err)
			return OutcomeCancelled, err
		}
		// Any other error from a custom fetcher counts as terminal.
		final = StateFailed
		return OutcomeFailed, &ChunkFetchFailed{Index: i, Attempts: 1, Last: &TransientFetchError{Index: i, Attempt: 1, Err: err}}
	}

	added = c.store.Merge(projects)
	final = StateLoaded
	c.logger.Printf("chunk %d loaded: %d records (%d new)", i, len(projects), added)
	return OutcomeLoaded, nil
}

// LoadAllResult reports how every chunk settled.
type LoadAllResult struct {
	Total         int
	Loaded        int
	Failed        int
	FailedIndices []int
	// Pending counts chunks left unloaded because loading was cancelled.
	Pending int
}

// Complete reports whether every chunk is loaded.
func (r LoadAllResult) Complete() bool {
	return r.Loaded == r.Total
}

// LoadAll loads every chunk the manifest lists and waits until each one has
// settled, including chunks that another caller already has in flight. One
// chunk failing never stops the rest.
func (c *Coordinator) LoadAll(ctx context.Context) (LoadAllResult, error) {
	n, ok := c.ChunkCount()
	if !ok {
		return LoadAllResult{}, ErrManifestUnavailable
	}
	if c.closed.Load() {
		return LoadAllResult{}, ErrClosed
	}
	defer debug.LogEnterExit(fmt.Sprintf("LoadAll(%d chunks)", n))()

	var g errgroup.Group
	if c.limit > 0 {
		g.SetLimit(c.limit)
	}
	for i := 0; i < n; i++ {
		g.Go(func() error {
			c.settle(ctx, i)
			return nil // per-chunk failures are read back from the state table
		})
	}
	_ = g.Wait()

	res := LoadAllResult{Total: n}
	for i := 0; i < n; i++ {
		switch c.states.State(i) {
		case StateLoaded:
			res.Loaded++
		case StateFailed:
			res.Failed++
			res.FailedIndices = append(res.FailedIndices, i)
		default:
			res.Pending++
		}
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}

// settle loads i or waits for the fetch already in flight.
func (c *Coordinator) settle(ctx context.Context, i int) {
	for !c.closed.Load() {
		started, st, done := c.states.TryStart(i)
		if started {
			c.run(ctx, i)
			return
		}
		if st != StateInFlight || done == nil {
			return
		}
		select {
		case <-done:
			// An abandoned fetch leaves the chunk unloaded; try again.
		case <-ctx.Done():
			return
		case <-c.ctx.Done():
			return
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// ResetFailed clears the failed set so those chunks can be fetched again.
func (c *Coordinator) ResetFailed() []int {
	reset := c.states.ResetFailed()
	if len(reset) > 0 {
		c.logger.Printf("reset failed chunks %v", reset)
	}
	return reset
}

// Close stops scheduling new loads and cancels outstanding fetches. It waits
// for running fetches to return.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed.Swap(true) {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.cancel()
	c.wg.Wait()
}

// Closed reports whether Close has been called.
func (c *Coordinator) Closed() bool { return c.closed.Load() }
