package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors for one server instance.
type Metrics struct {
	registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	requestCounter  *prometheus.CounterVec
	activeRequests  prometheus.Gauge

	predictions       *prometheus.CounterVec
	predictionLatency prometheus.Histogram
}

// NewMetrics registers the server collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
		requestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_request_count_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		activeRequests: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_request_active",
				Help: "Number of active HTTP requests",
			},
		),
		predictions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emissions_predictions_total",
				Help: "Total number of predictions by outcome",
			},
			[]string{"outcome"},
		),
		predictionLatency: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "emissions_prediction_duration_seconds",
				Help:    "Time spent computing a single prediction",
				Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
			},
		),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordPrediction counts one prediction attempt.
func (m *Metrics) RecordPrediction(outcome string, duration time.Duration) {
	m.predictions.WithLabelValues(outcome).Inc()
	if outcome == outcomeOK {
		m.predictionLatency.Observe(duration.Seconds())
	}
}

// Middleware records request count and duration labelled by route template.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}

		m.activeRequests.Inc()
		defer m.activeRequests.Dec()

		next.ServeHTTP(sw, r)

		labels := prometheus.Labels{
			"method": r.Method,
			"route":  routeTemplate(r),
			"status": strconv.Itoa(sw.Status()),
		}
		m.requestDuration.With(labels).Observe(time.Since(start).Seconds())
		m.requestCounter.With(labels).Inc()
	})
}

// routeTemplate keeps label cardinality bounded for unmatched paths.
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// statusWriter wraps http.ResponseWriter to capture the status code
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}
