package playback

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts controller activity. A nil Registerer keeps the collectors
// unregistered, which suits tests.
type Metrics struct {
	DriftCorrections prometheus.Counter
	Segments         *prometheus.CounterVec
	PlayFailures     *prometheus.CounterVec
	LateNarration    prometheus.Counter
}

// NewMetrics builds and registers the playback collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		DriftCorrections: factory.NewCounter(prometheus.CounterOpts{
			Name: "kaizen_playback_drift_corrections_total",
			Help: "Corrective seeks of the after video towards the before video.",
		}),
		Segments: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kaizen_playback_segments_completed_total",
			Help: "Completed process segments by resulting action.",
		}, []string{"action"}),
		PlayFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kaizen_playback_play_failures_total",
			Help: "Tracks that rejected a play request.",
		}, []string{"track"}),
		LateNarration: factory.NewCounter(prometheus.CounterOpts{
			Name: "kaizen_playback_narration_late_joins_total",
			Help: "Narrations that became ready after their segment had started.",
		}),
	}
}
