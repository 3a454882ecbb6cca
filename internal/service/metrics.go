package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 필터 실행 지표
type Metrics struct {
	runs      *prometheus.CounterVec
	changed   *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	evictions prometheus.Counter
	sinks     *prometheus.CounterVec
}

// NewMetrics registers the run collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arbfilter",
			Name:      "runs_total",
			Help:      "Filter runs by kind and status.",
		}, []string{"kind", "status"}),
		changed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arbfilter",
			Name:      "quotes_changed_total",
			Help:      "Quotes adjusted or discarded by the filter.",
		}, []string{"kind", "action"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "arbfilter",
			Name:      "run_duration_seconds",
			Help:      "Wall time of a filter run.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"kind"}),
		evictions: f.NewCounter(prometheus.CounterOpts{
			Namespace: "arbfilter",
			Name:      "registry_evictions_total",
			Help:      "Runs dropped from the in-memory registry.",
		}),
		sinks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arbfilter",
			Name:      "sink_errors_total",
			Help:      "Failed writes to the run store or cache.",
		}, []string{"sink"}),
	}
}
