package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tendant/filemanager/pkg/filemanager"
)

const namespace = "filemanager"

// Metrics owns a Prometheus registry with HTTP, file and reconcile
// collectors. It implements filemanager.Hooks.
type Metrics struct {
	reg *prometheus.Registry

	inflight prometheus.Gauge
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec

	uploads       *prometheus.CounterVec
	uploadedBytes prometheus.Histogram
	deletes       *prometheus.CounterVec

	orphans     prometheus.Gauge
	dangling    prometheus.Gauge
	unparseable prometheus.Gauge
}

var _ filemanager.Hooks = (*Metrics)(nil)

// New creates a Metrics instance with a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		reg: reg,
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of inflight HTTP requests.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests processed, partitioned by status code and method.",
		}, []string{"code", "method"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Histogram of latencies for HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"code", "method"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "files",
			Name:      "uploads_total",
			Help:      "Files processed by upload batches, partitioned by result kind.",
		}, []string{"result"}),
		uploadedBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "files",
			Name:      "uploaded_bytes",
			Help:      "Size of stored files in bytes.",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 10),
		}),
		deletes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "files",
			Name:      "deletes_total",
			Help:      "Delete requests, partitioned by result kind.",
		}, []string{"result"}),
		orphans: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "orphan_objects",
			Help:      "Objects without a record in the last reconcile report.",
		}),
		dangling: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "dangling_records",
			Help:      "Records without an object in the last reconcile report.",
		}),
		unparseable: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "unparseable_keys",
			Help:      "Object keys outside the owner/name layout in the last reconcile report.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.inflight, m.requests, m.latency,
		m.uploads, m.uploadedBytes, m.deletes,
		m.orphans, m.dangling, m.unparseable,
	)
	return m
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Middleware records inflight requests, counts and latencies
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return promhttp.InstrumentHandlerInFlight(m.inflight,
		promhttp.InstrumentHandlerDuration(m.latency,
			promhttp.InstrumentHandlerCounter(m.requests, next)))
}

func resultLabel(kind filemanager.Kind) string {
	if kind == "" {
		return "ok"
	}
	return string(kind)
}

func (m *Metrics) FileUploaded(ctx context.Context, record *filemanager.Record, size int64) {
	m.uploads.WithLabelValues(resultLabel("")).Inc()
	m.uploadedBytes.Observe(float64(size))
}

func (m *Metrics) FileRejected(ctx context.Context, ownerID int64, name string, kind filemanager.Kind) {
	m.uploads.WithLabelValues(resultLabel(kind)).Inc()
}

func (m *Metrics) RecordDeleted(ctx context.Context, record *filemanager.Record) {
	m.deletes.WithLabelValues(resultLabel("")).Inc()
}

func (m *Metrics) DeleteFailed(ctx context.Context, ownerID int64, kind filemanager.Kind) {
	m.deletes.WithLabelValues(resultLabel(kind)).Inc()
}

// ObserveReconcile records the sizes of the latest reconcile report
func (m *Metrics) ObserveReconcile(orphans, dangling, unparseable int) {
	m.orphans.Set(float64(orphans))
	m.dangling.Set(float64(dangling))
	m.unparseable.Set(float64(unparseable))
}
