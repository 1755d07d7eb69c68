package speech

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts cache activity.
type Metrics struct {
	Hits      prometheus.Counter
	Misses    prometheus.Counter
	Failures  prometheus.Counter
	Latency   prometheus.Histogram
	Evictions prometheus.Counter
}

// NewMetrics registers speech metrics with reg. A nil registerer yields
// working but unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Hits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "kaizen",
			Subsystem: "speech",
			Name:      "cache_hits_total",
			Help:      "Synthesis requests served from the on-disk cache",
		}),
		Misses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "kaizen",
			Subsystem: "speech",
			Name:      "cache_misses_total",
			Help:      "Synthesis requests that called the speech service",
		}),
		Failures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "kaizen",
			Subsystem: "speech",
			Name:      "failures_total",
			Help:      "Synthesis requests that produced no audio",
		}),
		Latency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "kaizen",
			Subsystem: "speech",
			Name:      "synthesis_seconds",
			Help:      "Speech service round-trip time",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		Evictions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "kaizen",
			Subsystem: "speech",
			Name:      "invalidations_total",
			Help:      "Forced cache invalidations",
		}),
	}
}
