package chunks_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vanderheijden86/bouwkansen/internal/datasource"
	"github.com/vanderheijden86/bouwkansen/pkg/chunks"
	"github.com/vanderheijden86/bouwkansen/pkg/testutil"
)

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func newHTTPSession(t *testing.T, srv *testutil.ChunkServer) *chunks.Session {
	t.Helper()
	src, err := datasource.NewHTTPSource(srv.URL, srv.Client())
	if err != nil {
		t.Fatal(err)
	}
	s := chunks.NewSession(src, chunks.SessionOptions{
		Fetch: chunks.FetcherOptions{Sleep: noSleep},
	})
	t.Cleanup(s.Close)
	return s
}

func TestSessionStart(t *testing.T) {
	ds := testutil.QuickDataset(30, 10)
	srv := testutil.NewChunkServer(t, ds)
	s := newHTTPSession(t, srv)

	res, err := s.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if res.Manifest == nil || res.Manifest.Chunks != 3 {
		t.Fatalf("manifest not loaded: %+v", res)
	}
	if res.First != chunks.OutcomeLoaded {
		t.Errorf("first chunk outcome = %v", res.First)
	}
	p := s.Progress()
	if p.Loaded != 1 || p.Total != 3 || p.Records != 10 || p.AllLoaded() {
		t.Errorf("progress after start = %+v", p)
	}
	if srv.ChunkHits(1) != 0 {
		t.Error("Start must not fetch beyond chunk 0")
	}
}

func TestSessionStartAfterCloseIsNotNoData(t *testing.T) {
	ds := testutil.QuickDataset(30, 10)
	srv := testutil.NewChunkServer(t, ds)
	s := newHTTPSession(t, srv)
	s.Close()

	res, err := s.Start(context.Background())
	if !errors.Is(err, chunks.ErrClosed) {
		t.Fatalf("Start after Close: err = %v, want ErrClosed", err)
	}
	if errors.Is(err, chunks.ErrNoDataAvailable) {
		t.Error("an interrupted start must not be reported as missing data")
	}
	if res.First != chunks.OutcomeCancelled {
		t.Errorf("first outcome = %v", res.First)
	}
}

func TestSessionManifestFailureIsNotFatal(t *testing.T) {
	ds := testutil.QuickDataset(30, 10)
	srv := testutil.NewChunkServer(t, ds)
	srv.FailManifest(-1)
	s := newHTTPSession(t, srv)

	res, err := s.Start(context.Background())
	if err != nil {
		t.Fatalf("Start should succeed with chunk 0 only: %v", err)
	}
	if !errors.Is(res.ManifestErr, chunks.ErrManifestUnavailable) {
		t.Errorf("ManifestErr = %v", res.ManifestErr)
	}
	if s.Store().Len() != 10 {
		t.Errorf("records = %d, want 10", s.Store().Len())
	}
	if _, err := s.LoadAll(context.Background()); !errors.Is(err, chunks.ErrManifestUnavailable) {
		t.Errorf("LoadAll without manifest = %v", err)
	}
	if p := s.Progress(); p.Total != 0 || p.AllLoaded() {
		t.Errorf("progress without manifest = %+v", p)
	}
}

func TestSessionFirstChunkFailure(t *testing.T) {
	ds := testutil.QuickDataset(30, 10)
	srv := testutil.NewChunkServer(t, ds)
	srv.FailChunk(0, 3)
	s := newHTTPSession(t, srv)

	_, err := s.Start(context.Background())
	if !errors.Is(err, chunks.ErrNoDataAvailable) {
		t.Fatalf("expected ErrNoDataAvailable, got %v", err)
	}
	if s.States().State(0) != chunks.StateFailed {
		t.Errorf("chunk 0 state = %v", s.States().State(0))
	}

	// The failure budget is spent; an explicit retry succeeds.
	res, err := s.Retry(context.Background())
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if res.First != chunks.OutcomeLoaded {
		t.Errorf("retry outcome = %v", res.First)
	}
	if srv.ChunkHits(0) != 4 {
		t.Errorf("chunk 0 hits = %d, want 4", srv.ChunkHits(0))
	}
}

func TestSessionLoadAllDeduplicates(t *testing.T) {
	ds := testutil.New(testutil.GeneratorConfig{Seed: 9, Projects: 60, ChunkSize: 10, DuplicateRate: 0.5}).Dataset()
	srv := testutil.NewChunkServer(t, ds)
	s := newHTTPSession(t, srv)

	if _, err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	res, err := s.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if !res.Complete() {
		t.Fatalf("LoadAll incomplete: %+v", res)
	}
	snap := s.Store().Snapshot()
	testutil.AssertProjectCount(t, snap, 60)
	testutil.AssertNoDuplicateKeys(t, snap)
	if srv.ChunkHits(0) != 1 {
		t.Errorf("chunk 0 refetched by LoadAll: %d hits", srv.ChunkHits(0))
	}
	if !s.Progress().AllLoaded() {
		t.Errorf("progress = %+v", s.Progress())
	}
}

func TestSessionLoadAllPartialFailure(t *testing.T) {
	ds := testutil.QuickDataset(50, 10)
	srv := testutil.NewChunkServer(t, ds)
	srv.FailChunk(3, -1)
	s := newHTTPSession(t, srv)

	if _, err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	res, err := s.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if res.Loaded != 4 || res.Failed != 1 || len(res.FailedIndices) != 1 || res.FailedIndices[0] != 3 {
		t.Errorf("result = %+v", res)
	}
	if s.Store().Len() != 40 {
		t.Errorf("records = %d, want 40", s.Store().Len())
	}
	if srv.ChunkHits(3) != chunks.DefaultRetries {
		t.Errorf("chunk 3 hits = %d, want %d", srv.ChunkHits(3), chunks.DefaultRetries)
	}
}

func TestSessionDirSource(t *testing.T) {
	ds := testutil.QuickDataset(25, 10)
	dir := testutil.WriteDataset(t, ds)
	src, err := datasource.NewDirSource(dir)
	if err != nil {
		t.Fatal(err)
	}
	s := chunks.NewSession(src, chunks.SessionOptions{})
	defer s.Close()

	if _, err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	res, err := s.LoadAll(context.Background())
	if err != nil || !res.Complete() {
		t.Fatalf("LoadAll = %+v, %v", res, err)
	}
	testutil.AssertProjectCount(t, s.Store().Snapshot(), 25)
}
