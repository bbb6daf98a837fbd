package testutil

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/bouwkansen/pkg/loader"
	"github.com/vanderheijden86/bouwkansen/pkg/model"
)

// AssertProjectCount verifies the expected number of projects.
func AssertProjectCount(t *testing.T, projects []model.Project, expected int) {
	t.Helper()
	if len(projects) != expected {
		t.Errorf("expected %d projects, got %d", expected, len(projects))
	}
}

// AssertNoDuplicateKeys verifies every (nis_code, ac_code) pair is unique.
func AssertNoDuplicateKeys(t *testing.T, projects []model.Project) {
	t.Helper()
	seen := make(map[model.Key]bool, len(projects))
	for i := range projects {
		k := projects[i].Key()
		if seen[k] {
			t.Errorf("duplicate project key: %s", k)
		}
		seen[k] = true
	}
}

// AssertAllValid verifies all projects pass validation.
func AssertAllValid(t *testing.T, projects []model.Project) {
	t.Helper()
	for i := range projects {
		if err := projects[i].Validate(); err != nil {
			t.Errorf("project %d (%s) invalid: %v", i, projects[i].Key(), err)
		}
	}
}

// AssertKeys verifies projects appear exactly in the given ac_code order.
func AssertKeys(t *testing.T, projects []model.Project, codes ...string) {
	t.Helper()
	got := make([]string, len(projects))
	for i := range projects {
		got[i] = projects[i].ACCode
	}
	if strings.Join(got, ",") != strings.Join(codes, ",") {
		t.Errorf("ac_code order = %v, want %v", got, codes)
	}
}

// WriteDataset writes ds below a temp dir using the default layout and
// returns the directory.
func WriteDataset(t *testing.T, ds Dataset) string {
	t.Helper()
	dir, err := ds.WriteDir(t.TempDir(), loader.DefaultLayout())
	if err != nil {
		t.Fatalf("write dataset: %v", err)
	}
	return dir
}

// GoldenFile handles golden file comparisons.
type GoldenFile struct {
	t      *testing.T
	dir    string
	name   string
	update bool
}

// NewGoldenFile creates a golden file helper.
// If GENERATE_GOLDEN env var is set, golden files will be updated.
func NewGoldenFile(t *testing.T, dir, name string) *GoldenFile {
	t.Helper()
	return &GoldenFile{t: t, dir: dir, name: name, update: os.Getenv("GENERATE_GOLDEN") != ""}
}

// Assert compares actual content against the golden file.
func (g *GoldenFile) Assert(actual string) {
	g.t.Helper()
	path := filepath.Join(g.dir, g.name)
	if g.update {
		if err := os.MkdirAll(g.dir, 0755); err != nil {
			g.t.Fatalf("failed to create golden dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(actual), 0644); err != nil {
			g.t.Fatalf("failed to write golden file: %v", err)
		}
		return
	}
	expected, err := os.ReadFile(path)
	if err != nil {
		g.t.Fatalf("golden file %s: %v\nRun with GENERATE_GOLDEN=1 to create it", path, err)
	}
	if string(expected) != actual {
		g.t.Errorf("golden file mismatch for %s:\nexpected:\n%s\nactual:\n%s", g.name, expected, actual)
	}
}

// ChunkServer serves a dataset over HTTP with per-chunk failure injection.
type ChunkServer struct {
	*httptest.Server

	layout loader.Layout

	mu       sync.Mutex
	manifest []byte
	chunks   map[string][]byte
	failures map[string]int // remaining failing responses per key; -1 = always
	hits     map[string]int

	// Gate, when set, is waited on before answering each chunk request.
	Gate chan struct{}

	requests atomic.Int64
}

// NewChunkServer starts a server for ds using the default layout.
func NewChunkServer(t *testing.T, ds Dataset) *ChunkServer {
	t.Helper()
	s := &ChunkServer{
		layout:   loader.DefaultLayout(),
		chunks:   make(map[string][]byte),
		failures: make(map[string]int),
		hits:     make(map[string]int),
	}
	s.manifest = ManifestJSON(ds.Manifest)
	for i, c := range ds.Chunks {
		s.chunks["/"+s.layout.ChunkKey(i)] = ChunkJSON(c)
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

func (s *ChunkServer) serve(w http.ResponseWriter, r *http.Request) {
	s.requests.Add(1)
	key := r.URL.Path

	s.mu.Lock()
	s.hits[key]++
	fail := s.failures[key]
	if fail > 0 {
		s.failures[key] = fail - 1
	}
	gate := s.Gate
	s.mu.Unlock()

	if key == "/"+s.layout.ManifestKey() {
		if fail != 0 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(s.manifest)
		return
	}

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}
	if fail != 0 {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	s.mu.Lock()
	body, ok := s.chunks[key]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

// FailChunk makes the next n requests for chunk i fail (n < 0: always).
func (s *ChunkServer) FailChunk(i, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures["/"+s.layout.ChunkKey(i)] = n
}

// FailManifest makes the next n manifest requests fail (n < 0: always).
func (s *ChunkServer) FailManifest(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures["/"+s.layout.ManifestKey()] = n
}

// ChunkHits returns how many requests chunk i received.
func (s *ChunkServer) ChunkHits(i int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits["/"+s.layout.ChunkKey(i)]
}

// SetChunkBody replaces the payload of chunk i.
func (s *ChunkServer) SetChunkBody(i int, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks["/"+s.layout.ChunkKey(i)] = body
}

// Requests returns the total number of requests served.
func (s *ChunkServer) Requests() int64 { return s.requests.Load() }

// MustJSON marshals v or fails the test.
func MustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}
