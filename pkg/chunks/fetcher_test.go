package chunks_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/vanderheijden86/bouwkansen/internal/datasource"
	"github.com/vanderheijden86/bouwkansen/pkg/chunks"
	"github.com/vanderheijden86/bouwkansen/pkg/loader"
	"github.com/vanderheijden86/bouwkansen/pkg/testutil"
)

// recordingSleep captures backoff waits without sleeping.
type recordingSleep struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (r *recordingSleep) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.waits = append(r.waits, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *recordingSleep) Waits() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.waits...)
}

func newHTTPFetcher(t *testing.T, srv *testutil.ChunkServer, opts chunks.FetcherOptions) *chunks.Fetcher {
	t.Helper()
	src, err := datasource.NewHTTPSource(srv.URL, srv.Client())
	if err != nil {
		t.Fatal(err)
	}
	return chunks.NewFetcher(src, loader.DefaultLayout(), opts)
}

func TestBackoff(t *testing.T) {
	base := time.Second
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}
	for i, w := range want {
		if got := chunks.Backoff(base, i+1); got != w {
			t.Errorf("Backoff(%d) = %v, want %v", i+1, got, w)
		}
	}
}

func TestFetchChunk_Success(t *testing.T) {
	ds := testutil.QuickDataset(20, 10)
	srv := testutil.NewChunkServer(t, ds)
	f := newHTTPFetcher(t, srv, chunks.FetcherOptions{})

	projects, err := f.FetchChunk(context.Background(), 1)
	if err != nil {
		t.Fatalf("FetchChunk: %v", err)
	}
	testutil.AssertProjectCount(t, projects, 10)
	if srv.ChunkHits(1) != 1 {
		t.Errorf("expected one request, got %d", srv.ChunkHits(1))
	}
}

func TestFetchChunk_RetriesThenSucceeds(t *testing.T) {
	ds := testutil.QuickDataset(10, 10)
	srv := testutil.NewChunkServer(t, ds)
	srv.FailChunk(0, 2)
	sleep := &recordingSleep{}
	f := newHTTPFetcher(t, srv, chunks.FetcherOptions{Sleep: sleep.Sleep})

	projects, err := f.FetchChunk(context.Background(), 0)
	if err != nil {
		t.Fatalf("FetchChunk: %v", err)
	}
	testutil.AssertProjectCount(t, projects, 10)
	if srv.ChunkHits(0) != 3 {
		t.Errorf("expected 3 attempts, got %d", srv.ChunkHits(0))
	}
	waits := sleep.Waits()
	if len(waits) != 2 || waits[0] != time.Second || waits[1] != 2*time.Second {
		t.Errorf("backoff waits = %v, want [1s 2s]", waits)
	}
}

func TestFetchChunk_ExhaustsAfterThreeAttempts(t *testing.T) {
	ds := testutil.QuickDataset(10, 10)
	srv := testutil.NewChunkServer(t, ds)
	srv.FailChunk(0, -1)
	sleep := &recordingSleep{}
	f := newHTTPFetcher(t, srv, chunks.FetcherOptions{Sleep: sleep.Sleep})

	_, err := f.FetchChunk(context.Background(), 0)
	if !errors.Is(err, chunks.ErrChunkExhausted) {
		t.Fatalf("expected ErrChunkExhausted, got %v", err)
	}
	var failed *chunks.ChunkFetchFailed
	if !errors.As(err, &failed) || failed.Attempts != 3 || failed.Index != 0 {
		t.Fatalf("unexpected failure detail: %#v", err)
	}
	var status *datasource.HTTPStatusError
	if !errors.As(err, &status) || status.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("last attempt error not preserved: %v", err)
	}
	if srv.ChunkHits(0) != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", srv.ChunkHits(0))
	}
	if waits := sleep.Waits(); len(waits) != 2 {
		t.Errorf("expected 2 backoff waits (none after last attempt), got %v", waits)
	}
}

func TestFetchChunk_RealBackoffTiming(t *testing.T) {
	ds := testutil.QuickDataset(10, 10)
	srv := testutil.NewChunkServer(t, ds)
	srv.FailChunk(0, 2)
	base := 20 * time.Millisecond
	f := newHTTPFetcher(t, srv, chunks.FetcherOptions{BaseBackoff: base})

	start := time.Now()
	if _, err := f.FetchChunk(context.Background(), 0); err != nil {
		t.Fatalf("FetchChunk: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 3*base {
		t.Errorf("elapsed %v, want at least %v (base + 2*base)", elapsed, 3*base)
	}
}

func TestFetchChunk_MalformedPayloadCountsAsAttempt(t *testing.T) {
	ds := testutil.QuickDataset(10, 10)
	srv := testutil.NewChunkServer(t, ds)
	srv.SetChunkBody(0, []byte(`{"oops": true}`))
	sleep := &recordingSleep{}
	f := newHTTPFetcher(t, srv, chunks.FetcherOptions{Sleep: sleep.Sleep, Retries: 2})

	_, err := f.FetchChunk(context.Background(), 0)
	if !errors.Is(err, chunks.ErrChunkExhausted) {
		t.Fatalf("expected exhaustion on malformed payload, got %v", err)
	}
	if srv.ChunkHits(0) != 2 {
		t.Errorf("expected 2 attempts, got %d", srv.ChunkHits(0))
	}
}

func TestFetchChunk_AttemptTimeout(t *testing.T) {
	ds := testutil.QuickDataset(10, 10)
	srv := testutil.NewChunkServer(t, ds)
	srv.Gate = make(chan struct{}) // never opened
	sleep := &recordingSleep{}
	f := newHTTPFetcher(t, srv, chunks.FetcherOptions{
		Timeout: 30 * time.Millisecond,
		Retries: 2,
		Sleep:   sleep.Sleep,
	})

	_, err := f.FetchChunk(context.Background(), 0)
	if !errors.Is(err, chunks.ErrChunkExhausted) {
		t.Fatalf("expected exhaustion after timeouts, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded as cause, got %v", err)
	}
}

func TestFetchChunk_ContextCancelStopsRetries(t *testing.T) {
	ds := testutil.QuickDataset(10, 10)
	srv := testutil.NewChunkServer(t, ds)
	srv.FailChunk(0, -1)

	ctx, cancel := context.WithCancel(context.Background())
	f := newHTTPFetcher(t, srv, chunks.FetcherOptions{
		Sleep: func(context.Context, time.Duration) error {
			cancel()
			return context.Canceled
		},
	})
	_, err := f.FetchChunk(ctx, 0)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if errors.Is(err, chunks.ErrChunkExhausted) {
		t.Errorf("cancellation must not look like exhaustion")
	}
	if srv.ChunkHits(0) != 1 {
		t.Errorf("expected a single attempt, got %d", srv.ChunkHits(0))
	}
}

func TestFetchManifest(t *testing.T) {
	ds := testutil.QuickDataset(30, 10)
	srv := testutil.NewChunkServer(t, ds)
	f := newHTTPFetcher(t, srv, chunks.FetcherOptions{})

	m, err := f.FetchManifest(context.Background())
	if err != nil {
		t.Fatalf("FetchManifest: %v", err)
	}
	if m.Chunks != 3 || m.TotalProjects != 30 {
		t.Errorf("unexpected manifest %+v", m)
	}

	srv.FailManifest(1)
	if _, err := f.FetchManifest(context.Background()); err == nil {
		t.Error("expected manifest failure")
	}
}
