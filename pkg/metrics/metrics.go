// Package metrics provides Prometheus metrics for the selector and its cache.
package metrics

import (
	"net/http"
	"time"

	"github.com/illmade-knight/go-inclusionfilter/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors. It satisfies both cache.Recorder and
// selector.Recorder.
type Metrics struct {
	// Cache metrics
	CacheHitsTotal    prometheus.Counter
	CacheMissesTotal  prometheus.Counter
	CacheCreatedTotal prometheus.Counter

	// Selector metrics
	SelectTotal    *prometheus.CounterVec
	SelectLatency  prometheus.Histogram
	RecordsScanned prometheus.Counter
	RecordsRemoved prometheus.Counter

	gatherer prometheus.Gatherer
}

// NewMetrics registers the collectors with reg under namespace.
// reg must not already hold collectors with the same names.
func NewMetrics(reg *prometheus.Registry, namespace string) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CacheHitsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of keyed cache lookups that found an entry",
		}),
		CacheMissesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of keyed cache lookups that had to create an entry",
		}),
		CacheCreatedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_entries_created_total",
			Help:      "Total number of keyed cache entries created",
		}),

		SelectTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "select_calls_total",
			Help:      "Total number of selector calls by outcome",
		}, []string{"code"}),
		SelectLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "select_latency_seconds",
			Help:      "Selector call latency in seconds",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}),
		RecordsScanned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_scanned_total",
			Help:      "Total number of records visited by the inclusion filter",
		}),
		RecordsRemoved: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_removed_total",
			Help:      "Total number of records removed by the inclusion filter",
		}),

		gatherer: reg,
	}
}

// CacheHit implements cache.Recorder.
func (m *Metrics) CacheHit() { m.CacheHitsTotal.Inc() }

// CacheMiss implements cache.Recorder.
func (m *Metrics) CacheMiss() { m.CacheMissesTotal.Inc() }

// CacheCreated implements cache.Recorder.
func (m *Metrics) CacheCreated() { m.CacheCreatedTotal.Inc() }

// SelectDone implements selector.Recorder.
func (m *Metrics) SelectDone(code types.ErrorCode, elapsed time.Duration) {
	m.SelectTotal.WithLabelValues(code.String()).Inc()
	m.SelectLatency.Observe(elapsed.Seconds())
}

// RecordsFiltered implements selector.Recorder.
func (m *Metrics) RecordsFiltered(scanned, removed int) {
	m.RecordsScanned.Add(float64(scanned))
	m.RecordsRemoved.Add(float64(removed))
}

// Handler returns the HTTP handler exposing the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
