package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	applogger "StockPulse/pkg/logger"
)

// streamContentType marks long-lived fragment streams; they are measured apart from
// plain request/response calls so they do not skew latency buckets.
const streamContentType = "application/x-ndjson"

type httpMetrics struct {
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	size      *prometheus.HistogramVec
	inFlight  *prometheus.GaugeVec
	streams   *prometheus.HistogramVec
	streamOut *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metrics     *httpMetrics
)

func loadHTTPMetrics() *httpMetrics {
	metricsOnce.Do(func() {
		m := &httpMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stockpulse",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests by route, method and status class.",
			}, []string{"route", "method", "class"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "stockpulse",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Latency of non-streaming HTTP requests.",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			}, []string{"route", "method", "class"}),
			size: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "stockpulse",
				Subsystem: "http",
				Name:      "response_size_bytes",
				Help:      "Size of non-streaming HTTP responses.",
				Buckets:   prometheus.ExponentialBuckets(256, 4, 8),
			}, []string{"route", "class"}),
			inFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "stockpulse",
				Subsystem: "http",
				Name:      "in_flight_requests",
				Help:      "Requests currently being served, streams included.",
			}, []string{"route"}),
			streams: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "stockpulse",
				Subsystem: "http",
				Name:      "stream_duration_seconds",
				Help:      "Lifetime of fragment streams.",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
			}, []string{"route"}),
			streamOut: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stockpulse",
				Subsystem: "http",
				Name:      "stream_bytes_total",
				Help:      "Bytes written to fragment streams.",
			}, []string{"route"}),
		}
		prometheus.MustRegister(m.requests, m.latency, m.size, m.inFlight, m.streams, m.streamOut)
		metrics = m
	})
	return metrics
}

// Metrics records per-route request metrics. Errors and requests slower than
// slowThreshold are logged; streams are never reported as slow.
func Metrics(l *applogger.Logger, slowThreshold time.Duration) echo.MiddlewareFunc {
	m := loadHTTPMetrics()
	if l == nil {
		l = applogger.NewNop()
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method

			gauge := m.inFlight.WithLabelValues(route)
			gauge.Inc()
			defer gauge.Dec()
			start := time.Now()

			if err := next(c); err != nil {
				c.Error(err)
			}

			res := c.Response()
			took := time.Since(start)
			class := statusClass(res.Status)
			m.requests.WithLabelValues(route, method, class).Inc()

			if res.Header().Get(echo.HeaderContentType) == streamContentType {
				m.streams.WithLabelValues(route).Observe(took.Seconds())
				m.streamOut.WithLabelValues(route).Add(float64(res.Size))
				return nil
			}
			m.latency.WithLabelValues(route, method, class).Observe(took.Seconds())
			m.size.WithLabelValues(route, class).Observe(float64(res.Size))

			fields := []applogger.Field{
				applogger.String("route", route),
				applogger.String("method", method),
				applogger.Int("status", res.Status),
				applogger.Duration("duration_ms", took),
			}
			if res.Status >= http.StatusInternalServerError {
				l.Error("http request failed", fields...)
			} else if slowThreshold > 0 && took >= slowThreshold {
				l.Warn("http request slow", fields...)
			}
			return nil
		}
	}
}

func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "other"
	}
	return strconv.Itoa(code/100) + "xx"
}
