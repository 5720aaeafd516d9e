package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	runsTotal     *prometheus.CounterVec
	recordsTotal  *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	fetchPasses   prometheus.Counter
	fetchBatch    prometheus.Histogram
	fetchRequeued prometheus.Counter
	latency       *prometheus.HistogramVec
}

// New creates a recorder registered on the default registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a recorder registered on reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		runsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "candlesync_runs_total",
				Help: "Synchronization runs by final status",
			},
			[]string{"status"},
		),
		recordsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "candlesync_records_total",
				Help: "New candles handed to the store per series",
			},
			[]string{"symbol", "period"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "candlesync_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		fetchPasses: f.NewCounter(prometheus.CounterOpts{
			Name: "candlesync_fetch_passes_total",
			Help: "Fetch passes executed",
		}),
		fetchBatch: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "candlesync_fetch_batch_size",
			Help:    "Requests popped per fetch pass",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
		}),
		fetchRequeued: f.NewCounter(prometheus.CounterOpts{
			Name: "candlesync_fetch_requeued_total",
			Help: "Failed requests pushed back for another pass",
		}),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "candlesync_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordRun counts a finished run.
func (r *Recorder) RecordRun(status string) {
	r.runsTotal.WithLabelValues(status).Inc()
}

// RecordRecords counts new records for a series.
func (r *Recorder) RecordRecords(symbol, period string, n int) {
	r.recordsTotal.WithLabelValues(symbol, period).Add(float64(n))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordFetchPass records one executor pass.
func (r *Recorder) RecordFetchPass(batch, requeued int) {
	r.fetchPasses.Inc()
	r.fetchBatch.Observe(float64(batch))
	r.fetchRequeued.Add(float64(requeued))
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
