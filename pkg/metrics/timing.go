// Package metrics instruments the loader and browser.
//
// Two kinds of metrics live here:
//   - in-process stage timings (chunk fetch, decode, merge, query, export,
//     render) kept with atomics and logged under BK_DEBUG
//   - Prometheus collectors for the chunk pipeline, served by Handler when
//     bk runs with --metrics-addr
//
// Stage timing is on unless BK_METRICS=0.
//
//	func run() {
//	    defer metrics.Timer(metrics.QueryRun)()
//	    // ...
//	}
package metrics

import (
	"os"
	"sync/atomic"
	"time"
)

var enabled atomic.Bool

func init() {
	enabled.Store(os.Getenv("BK_METRICS") != "0")
}

// Enabled reports whether stage timings are collected.
func Enabled() bool { return enabled.Load() }

// SetEnabled switches stage timing on or off.
func SetEnabled(e bool) { enabled.Store(e) }

// Stage accumulates durations of one pipeline stage.
type Stage struct {
	name  string
	count atomic.Int64
	total atomic.Int64
	max   atomic.Int64
	// min is 0 until the first sample.
	min atomic.Int64
}

func newStage(name string) *Stage { return &Stage{name: name} }

// Name returns the stage name.
func (s *Stage) Name() string { return s.name }

// Count returns the number of samples.
func (s *Stage) Count() int64 { return s.count.Load() }

// Record adds one sample and mirrors it into the stage histogram.
func (s *Stage) Record(d time.Duration) {
	if !Enabled() {
		return
	}
	ns := d.Nanoseconds()
	s.count.Add(1)
	s.total.Add(ns)
	for {
		old := s.max.Load()
		if ns <= old || s.max.CompareAndSwap(old, ns) {
			break
		}
	}
	for {
		old := s.min.Load()
		if (old != 0 && ns >= old) || s.min.CompareAndSwap(old, ns) {
			break
		}
	}
	stageDuration.WithLabelValues(s.name).Observe(d.Seconds())
}

// Reset clears the samples. The histogram is cumulative and keeps them.
func (s *Stage) Reset() {
	s.count.Store(0)
	s.total.Store(0)
	s.max.Store(0)
	s.min.Store(0)
}

// StageStats is a snapshot of a Stage in milliseconds.
type StageStats struct {
	Name    string  `json:"name"`
	Count   int64   `json:"count"`
	TotalMs float64 `json:"total_ms"`
	AvgMs   float64 `json:"avg_ms"`
	MaxMs   float64 `json:"max_ms"`
	MinMs   float64 `json:"min_ms,omitempty"`
}

// Stats snapshots s.
func (s *Stage) Stats() StageStats {
	n, total := s.count.Load(), s.total.Load()
	st := StageStats{
		Name:    s.name,
		Count:   n,
		TotalMs: ms(total),
		MaxMs:   ms(s.max.Load()),
		MinMs:   ms(s.min.Load()),
	}
	if n > 0 {
		st.AvgMs = ms(total / n)
	}
	return st
}

func ms(ns int64) float64 { return float64(ns) / 1e6 }

// Timer starts timing s; call the result to record the sample.
func Timer(s *Stage) func() {
	if !Enabled() || s == nil {
		return func() {}
	}
	start := time.Now()
	return func() { s.Record(time.Since(start)) }
}

// Pipeline stages.
var (
	ChunkFetch   = newStage("chunk_fetch")
	ChunkDecode  = newStage("chunk_decode")
	ManifestLoad = newStage("manifest_load")
	StoreMerge   = newStage("store_merge")
	QueryRun     = newStage("query_run")
	Export       = newStage("export")
	UIRender     = newStage("ui_render")
)

// Stages lists every pipeline stage in load order.
func Stages() []*Stage {
	return []*Stage{ManifestLoad, ChunkFetch, ChunkDecode, StoreMerge, QueryRun, Export, UIRender}
}

// ResetAll clears every stage.
func ResetAll() {
	for _, s := range Stages() {
		s.Reset()
	}
}

// AllStageStats returns snapshots of the stages that have samples.
func AllStageStats() []StageStats {
	var out []StageStats
	for _, s := range Stages() {
		if s.Count() > 0 {
			out = append(out, s.Stats())
		}
	}
	return out
}
