package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the pipeline collectors. It is private to bk so tests and
// embedders never collide with the global default registry.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	fetchAttemptsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "bk_chunk_fetch_attempts_total",
		Help: "Chunk fetch attempts by result",
	}, []string{"result"})

	chunkOutcomesTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "bk_chunk_outcomes_total",
		Help: "Settled chunk loads by final state",
	}, []string{"state"})

	fetchDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "bk_chunk_fetch_duration_seconds",
		Help:    "Duration of a single chunk fetch attempt",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})

	skippedRowsTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "bk_chunk_rows_skipped_total",
		Help: "Chunk rows quarantined by decoding or validation",
	})

	storeRecords = factory.NewGauge(prometheus.GaugeOpts{
		Name: "bk_store_records",
		Help: "Distinct project records held in memory",
	})

	stageDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bk_stage_duration_seconds",
		Help:    "Duration of in-process pipeline stages",
		Buckets: prometheus.ExponentialBuckets(0.0005, 4, 9),
	}, []string{"stage"})

	chunksInFlight = factory.NewGauge(prometheus.GaugeOpts{
		Name: "bk_chunks_in_flight",
		Help: "Chunk fetches currently outstanding",
	})
)

func init() {
	Registry.MustRegister(collectors.NewGoCollector())
}

// ObserveFetchAttempt records one fetch attempt and its duration.
func ObserveFetchAttempt(ok bool, seconds float64) {
	result := "error"
	if ok {
		result = "ok"
	}
	fetchAttemptsTotal.WithLabelValues(result).Inc()
	fetchDuration.Observe(seconds)
}

// ObserveChunkOutcome records a chunk reaching a terminal state.
func ObserveChunkOutcome(state string) {
	chunkOutcomesTotal.WithLabelValues(state).Inc()
}

// AddSkippedRows counts quarantined rows.
func AddSkippedRows(n int) {
	if n > 0 {
		skippedRowsTotal.Add(float64(n))
	}
}

// SetStoreRecords publishes the current store size.
func SetStoreRecords(n int) {
	storeRecords.Set(float64(n))
}

// ChunkStarted and ChunkSettled bracket an outstanding fetch.
func ChunkStarted() { chunksInFlight.Inc() }
func ChunkSettled() { chunksInFlight.Dec() }

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
