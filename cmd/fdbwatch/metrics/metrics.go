// Package metrics provides Prometheus instrumentation for the fdbwatch monitor.
//
// Metrics exposed:
//   - fdbwatch_run_status: classification of the latest run (0 missing, 1 complete, 2 incomplete)
//   - fdbwatch_check_ok: 1 if the last check passed
//   - fdbwatch_failed_files: number of files missing from the latest run
//   - fdbwatch_missing_runs: number of runs in the retention window with no data
//   - fdbwatch_latest_run_timestamp_seconds: start of the latest expected run
//   - fdbwatch_check_duration_seconds: duration of one model check
//   - fdbwatch_index_query_seconds: duration of one index query
//   - fdbwatch_index_queries_total: index queries by result
//   - fdbwatch_errors_total: errors by component and reason
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/HatiCode/fdbwatch/pkg/archive"
)

// Metrics holds all fdbwatch collectors.
type Metrics struct {
	RunStatus          *prometheus.GaugeVec
	CheckOK            *prometheus.GaugeVec
	FailedFiles        *prometheus.GaugeVec
	MissingRuns        *prometheus.GaugeVec
	LatestRunTimestamp *prometheus.GaugeVec
	CheckSeconds       *prometheus.HistogramVec
	IndexQuerySeconds  *prometheus.HistogramVec
	IndexQueriesTotal  *prometheus.CounterVec
	ErrorsTotal        *prometheus.CounterVec
}

// New creates all collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		RunStatus: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fdbwatch_run_status",
			Help: "Classification of the latest run: 0 missing, 1 complete, 2 incomplete",
		}, []string{"model"}),

		CheckOK: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fdbwatch_check_ok",
			Help: "1 if the latest run is complete and no run in the retention window is missing",
		}, []string{"model"}),

		FailedFiles: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fdbwatch_failed_files",
			Help: "Number of files missing from the latest run",
		}, []string{"model"}),

		MissingRuns: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fdbwatch_missing_runs",
			Help: "Number of runs in the retention window with no archived data",
		}, []string{"model"}),

		LatestRunTimestamp: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fdbwatch_latest_run_timestamp_seconds",
			Help: "Start time of the latest run expected in the archive",
		}, []string{"model"}),

		CheckSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fdbwatch_check_duration_seconds",
			Help:    "Time spent checking one model",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"model"}),

		IndexQuerySeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fdbwatch_index_query_seconds",
			Help:    "Time spent on one metadata index query",
			Buckets: prometheus.DefBuckets,
		}, []string{"index"}),

		IndexQueriesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fdbwatch_index_queries_total",
			Help: "Metadata index queries by result",
		}, []string{"index", "result"}),

		ErrorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fdbwatch_errors_total",
			Help: "Total number of errors by component and reason",
		}, []string{"component", "reason"}),
	}
}

// ObserveReport updates the per-model gauges from r.
func (m *Metrics) ObserveReport(r *archive.Report) {
	ok := 0.0
	if r.OK() {
		ok = 1
	}
	m.RunStatus.WithLabelValues(r.Model).Set(float64(r.Summary))
	m.CheckOK.WithLabelValues(r.Model).Set(ok)
	m.FailedFiles.WithLabelValues(r.Model).Set(float64(len(r.FailedFiles)))
	m.MissingRuns.WithLabelValues(r.Model).Set(float64(r.MissingRuns()))
	m.LatestRunTimestamp.WithLabelValues(r.Model).Set(float64(r.RunStart.Unix()))
}

// RecordCheck records the duration of one model check.
func (m *Metrics) RecordCheck(model string, d time.Duration) {
	m.CheckSeconds.WithLabelValues(model).Observe(d.Seconds())
}

// IndexQueryHook returns a callback suitable for archive.Checker.OnQuery.
func (m *Metrics) IndexQueryHook(index string) func(time.Duration, error) {
	return func(d time.Duration, err error) {
		m.IndexQuerySeconds.WithLabelValues(index).Observe(d.Seconds())
		result := "ok"
		if err != nil {
			result = "error"
		}
		m.IndexQueriesTotal.WithLabelValues(index, result).Inc()
	}
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(component, reason string) {
	m.ErrorsTotal.WithLabelValues(component, reason).Inc()
}
