// Package metrics exposes the Prometheus counters/gauges/histograms
// every worker reports on its /metrics endpoint (§6 of SPEC_FULL.md: one
// Prometheus endpoint per worker, success/failure totals, a
// total-to-process gauge, a progress ratio, and three duration
// histograms). Grounded on the original implementation's Metrics class
// (metrics.py), adapted to promauto registration in the style of the
// reference Go service's pkg/snapshotter/metrics.go.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the counters, gauges, and histograms one worker
// process reports.
type Metrics struct {
	successTotal prometheus.Counter
	failureTotal prometheus.Counter
	total        prometheus.Gauge
	progress     prometheus.Gauge

	downloadDuration   prometheus.Histogram
	uploadDuration     prometheus.Histogram
	processingDuration prometheus.Histogram

	processed int64
}

// New registers and returns the metric set for worker, using reg as the
// registry (pass prometheus.DefaultRegisterer in production, a fresh
// prometheus.NewRegistry() in tests).
func New(reg prometheus.Registerer, worker string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		successTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "forest",
			Subsystem: worker,
			Name:      "success_total",
			Help:      "Total number of successfully processed items.",
		}),
		failureTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "forest",
			Subsystem: worker,
			Name:      "failure_total",
			Help:      "Total number of failed items.",
		}),
		total: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "forest",
			Subsystem: worker,
			Name:      "total",
			Help:      "Total number of items expected to be processed in the current pass.",
		}),
		progress: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "forest",
			Subsystem: worker,
			Name:      "progress_ratio",
			Help:      "Fraction of the current pass's items processed so far.",
		}),
		downloadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "forest",
			Subsystem: worker,
			Name:      "download_duration_seconds",
			Help:      "Duration of download operations in seconds.",
			Buckets:   prometheus.DefBuckets,
		}),
		uploadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "forest",
			Subsystem: worker,
			Name:      "upload_duration_seconds",
			Help:      "Duration of upload operations in seconds.",
			Buckets:   prometheus.DefBuckets,
		}),
		processingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "forest",
			Subsystem: worker,
			Name:      "processing_duration_seconds",
			Help:      "Duration of end-to-end message processing in seconds.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// IncSuccess increments the success counter.
func (m *Metrics) IncSuccess() { m.successTotal.Inc() }

// IncFailure increments the failure counter.
func (m *Metrics) IncFailure() { m.failureTotal.Inc() }

// SetTotal sets the total gauge and restarts progress (processed count and
// progress gauge back to zero) for a new pass. The success/failure
// counters are not reset; they stay cumulative for the process lifetime.
func (m *Metrics) SetTotal(total int64) {
	m.total.Set(float64(total))
	m.processed = 0
	m.progress.Set(0)
}

// Advance increments the processed count and recomputes the progress
// ratio against the total passed to this call.
func (m *Metrics) Advance(total int64) {
	m.processed++
	if total > 0 {
		m.progress.Set(float64(m.processed) / float64(total))
	}
}

// TrackDownload runs fn, observing its duration in the download
// histogram regardless of outcome.
func (m *Metrics) TrackDownload(ctx context.Context, fn func(context.Context) error) error {
	start := time.Now()
	defer func() { m.downloadDuration.Observe(time.Since(start).Seconds()) }()
	return fn(ctx)
}

// TrackUpload runs fn, observing its duration in the upload histogram
// regardless of outcome.
func (m *Metrics) TrackUpload(ctx context.Context, fn func(context.Context) error) error {
	start := time.Now()
	defer func() { m.uploadDuration.Observe(time.Since(start).Seconds()) }()
	return fn(ctx)
}

// TrackProcessing runs fn, observing its duration in the processing
// histogram regardless of outcome.
func (m *Metrics) TrackProcessing(ctx context.Context, fn func(context.Context) error) error {
	start := time.Now()
	defer func() { m.processingDuration.Observe(time.Since(start).Seconds()) }()
	return fn(ctx)
}
