package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	fetchesTotal *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	inFlight     *prometheus.GaugeVec
	latency      *prometheus.HistogramVec
	scores       *prometheus.HistogramVec
	fragments    *prometheus.CounterVec
}

// New creates a recorder on the default registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates a recorder on reg; tests pass a fresh registry.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		fetchesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockpulse_fetches_total",
				Help: "Total number of symbol fetches by market and result",
			},
			[]string{"market", "result"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockpulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		inFlight: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stockpulse_fetches_in_flight",
				Help: "Provider calls currently admitted by the scheduler",
			},
			[]string{"market"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stockpulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		scores: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stockpulse_score",
				Help:    "Distribution of composite scores",
				Buckets: prometheus.LinearBuckets(0, 10, 11),
			},
			[]string{"market"},
		),
		fragments: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockpulse_fragments_total",
				Help: "Stream fragments emitted by kind",
			},
			[]string{"kind"},
		),
	}
}

// RecordFetch counts one fetch outcome; result is ok, empty or an error kind.
func (r *Recorder) RecordFetch(market, result string) {
	r.fetchesTotal.WithLabelValues(market, result).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func (r *Recorder) FetchStarted(market string) { r.inFlight.WithLabelValues(market).Inc() }
func (r *Recorder) FetchFinished(market string) { r.inFlight.WithLabelValues(market).Dec() }

func (r *Recorder) RecordScore(market string, score int) {
	r.scores.WithLabelValues(market).Observe(float64(score))
}

func (r *Recorder) RecordFragment(kind string) {
	r.fragments.WithLabelValues(kind).Inc()
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordFetch(string, string) {}
func (Nop) RecordError(string) {}
func (Nop) RecordLatency(string, float64) {}
func (Nop) FetchStarted(string) {}
func (Nop) FetchFinished(string) {}
func (Nop) RecordScore(string, int) {}
func (Nop) RecordFragment(string) {}
