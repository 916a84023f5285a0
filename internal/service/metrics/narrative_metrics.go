package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	NarrativeLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "stockpulse",
			Subsystem: "narrative",
			Name:      "latency_seconds",
			Help:      "Time from narrative request to the last chunk",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
		},
		[]string{"provider"},
	)

	NarrativeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stockpulse",
			Subsystem: "narrative",
			Name:      "errors_total",
			Help:      "Narrative streams that ended in an error",
		},
		[]string{"provider"},
	)

	NarrativeChunks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stockpulse",
			Subsystem: "narrative",
			Name:      "chunks_total",
			Help:      "Narrative chunks delivered",
		},
		[]string{"provider"},
	)
)

// Register adds the narrative collectors to the default registry once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(NarrativeLatency, NarrativeErrors, NarrativeChunks)
	})
}
