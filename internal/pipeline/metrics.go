package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the Prometheus series exported for runs.
type Metrics struct {
	runsTotal     *prometheus.CounterVec
	activeRuns    prometheus.Gauge
	runDuration   prometheus.Histogram
	chunksTotal   prometheus.Counter
	sourceRows    prometheus.Counter
	cleanedRows   prometheus.Counter
	rowsWritten   *prometheus.CounterVec
	bytesRead     prometheus.Counter
	chunkDuration prometheus.Histogram
}

// NewMetrics registers the run metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		runsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_etl_runs_total",
			Help: "Finished runs by final state and error code",
		}, []string{"state", "code"}),
		activeRuns: f.NewGauge(prometheus.GaugeOpts{
			Name: "catalog_etl_active_runs",
			Help: "Runs currently in progress",
		}),
		runDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "catalog_etl_run_duration_seconds",
			Help:    "Wall time of a run from start to done or failed",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		chunksTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "catalog_etl_chunks_loaded_total",
			Help: "Chunks fully loaded",
		}),
		sourceRows: f.NewCounter(prometheus.CounterOpts{
			Name: "catalog_etl_source_rows_total",
			Help: "Feed rows read in loaded chunks",
		}),
		cleanedRows: f.NewCounter(prometheus.CounterOpts{
			Name: "catalog_etl_cleaned_rows_total",
			Help: "Rows left after within-chunk dedup",
		}),
		rowsWritten: f.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_etl_rows_written_total",
			Help: "Rows appended per table",
		}, []string{"table"}),
		bytesRead: f.NewCounter(prometheus.CounterOpts{
			Name: "catalog_etl_feed_bytes_read_total",
			Help: "Decompressed feed bytes consumed",
		}),
		chunkDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "catalog_etl_chunk_duration_seconds",
			Help:    "Time to clean, project and load one chunk",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
	}
}

func (m *Metrics) runStarted() {
	if m == nil {
		return
	}
	m.activeRuns.Inc()
}

// observeChunk records a loaded chunk. prevBytes is the run's byte count
// before this chunk.
func (m *Metrics) observeChunk(s ChunkStats, prevBytes int64) {
	if m == nil {
		return
	}
	m.chunksTotal.Inc()
	m.sourceRows.Add(float64(s.SourceRows))
	m.cleanedRows.Add(float64(s.CleanedRows))
	for table, n := range s.Rows {
		m.rowsWritten.WithLabelValues(table).Add(float64(n))
	}
	if d := s.BytesRead - prevBytes; d > 0 {
		m.bytesRead.Add(float64(d))
	}
	m.chunkDuration.Observe(s.Duration.Seconds())
}

func (m *Metrics) runFinished(rep *Report) {
	if m == nil {
		return
	}
	m.activeRuns.Dec()
	code := ""
	if rep.Err != nil {
		code = Describe(rep.Err).Code
	}
	m.runsTotal.WithLabelValues(string(rep.State), code).Inc()
	m.runDuration.Observe(rep.Duration.Seconds())
}
