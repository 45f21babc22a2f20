package ingestion

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/silverlake/silverlake/pkg/report"
)

// Metrics collects pipeline counters on a private registry so a batch run
// can export them to a textfile collector.
type Metrics struct {
	registry *prometheus.Registry

	filesTotal    *prometheus.CounterVec
	rowsTotal     *prometheus.CounterVec
	batchesTotal  *prometheus.CounterVec
	batchRows     *prometheus.CounterVec
	batchDuration *prometheus.HistogramVec
	runDuration   prometheus.Histogram
	lastRun       *prometheus.GaugeVec
}

// NewMetrics creates the pipeline collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		filesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "silverlake_files_total",
				Help: "Staged files handled, by kind and outcome",
			},
			[]string{"kind", "status"},
		),

		rowsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "silverlake_rows_total",
				Help: "Rows written or dropped, by table",
			},
			[]string{"table", "outcome"}, // loaded, dropped
		),

		batchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "silverlake_batches_total",
				Help: "Committed write batches, by table",
			},
			[]string{"table"},
		),

		batchRows: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "silverlake_committed_rows_total",
				Help: "Rows in committed write batches, by table",
			},
			[]string{"table"},
		),

		batchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "silverlake_batch_duration_seconds",
				Help:    "Time to write and commit one batch",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
			},
			[]string{"table"},
		),

		runDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "silverlake_run_duration_seconds",
				Help:    "Wall time of a pipeline run",
				Buckets: []float64{1, 5, 15, 60, 300, 900, 1800, 3600},
			},
		),

		lastRun: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "silverlake_last_run_timestamp_seconds",
				Help: "Unix time the last run finished, by status",
			},
			[]string{"status"},
		),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// RecordBatch observes one committed batch.
func (m *Metrics) RecordBatch(table string, rows int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.batchesTotal.WithLabelValues(table).Inc()
	m.batchRows.WithLabelValues(table).Add(float64(rows))
	m.batchDuration.WithLabelValues(table).Observe(elapsed.Seconds())
}

// RecordFile observes the outcome of one staged file.
func (m *Metrics) RecordFile(o report.FileOutcome) {
	if m == nil {
		return
	}
	m.filesTotal.WithLabelValues(string(o.Kind), string(o.Status)).Inc()
	switch o.Kind {
	case report.KindCatalog:
		m.rowsTotal.WithLabelValues("products", "loaded").Add(float64(o.RowsLoaded))
	case report.KindSales:
		m.rowsTotal.WithLabelValues("sales", "loaded").Add(float64(o.RowsLoaded))
		m.rowsTotal.WithLabelValues("sales", "dropped").Add(float64(o.RowsDropped))
	}
}

// RecordRun observes a finished run.
func (m *Metrics) RecordRun(rep *report.RunReport) {
	if m == nil {
		return
	}
	m.runDuration.Observe(rep.Duration().Seconds())
	m.lastRun.WithLabelValues(rep.Status).Set(float64(rep.FinishedAt.Unix()))
}

// WriteTextfile writes all collected metrics in the text exposition
// format, atomically replacing path.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
